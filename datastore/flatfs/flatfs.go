// Package flatfs implements the block/BlockStore interface
package flatfs

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/golang/snappy"

	"uptime/datamodel/block"
	"uptime/oid"

	log "github.com/sirupsen/logrus"
)

// Do an indirection to make sure FlatFS implementa the required interfaces
var _ block.BlockStore = (*FlatFS)(nil)

// FlatFS implements the block.BlockStore interface
// File name is a string representation of the OID.
// The storage is organized by the OID. First 4 characters after the common OID prefix are used as a subdirectory.
// Files hold the snappy-compressed block payload; the block length is the decompressed length.
type FlatFS struct {
	basePath string
}

func New(basePath string) (*FlatFS, error) {
	// Sanitize the basePath
	basePath = filepath.Clean(basePath)

	// Make sure the directory exists and create if missing
	if err := ensureDir(basePath); err != nil {
		return nil, err
	}

	log.Infof("Opened FlatFS at %s", basePath)

	return &FlatFS{basePath: basePath}, nil
}

// ensureDir checks if a directory exists at the given path, and if not, creates it.
func ensureDir(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(path, 0755)
		}
		return err
	}
	if !stat.IsDir() {
		return &os.PathError{Op: "ensureDir", Path: path, Err: os.ErrExist}
	}
	return nil
}

// Enumerate creates a list of OIDs of all existing blocks in the FlatFS.
// Entries that don't conform to the expected structure are skipped with a warning.
func (f *FlatFS) Enumerate() ([]*oid.Oid, error) {
	var oids []*oid.Oid

	shardDirEntries, err := os.ReadDir(f.basePath)
	if err != nil {
		log.Errorf("Error reading base path %s for enumeration: %v", f.basePath, err)
		return nil, err
	}

	for _, shardDirEntry := range shardDirEntries {
		if !shardDirEntry.IsDir() {
			log.Warnf("Skipping non-directory entry in FlatFS base path during enumeration: %s", filepath.Join(f.basePath, shardDirEntry.Name()))
			continue
		}

		shardPath := filepath.Join(f.basePath, shardDirEntry.Name())
		blockFileEntries, err := os.ReadDir(shardPath)
		if err != nil {
			log.Errorf("Error reading shard directory %s during enumeration: %v", shardPath, err)
			return nil, err
		}

		for _, blockFileEntry := range blockFileEntries {
			if blockFileEntry.IsDir() {
				log.Warnf("Skipping unexpected subdirectory in shard %s during enumeration: %s", shardPath, blockFileEntry.Name())
				continue
			}

			o, parseErr := oid.FromString(blockFileEntry.Name())
			if parseErr != nil {
				log.Warnf("Skipping file %s in shard %s during enumeration, not a valid OID: %v", blockFileEntry.Name(), shardPath, parseErr)
				continue
			}
			oids = append(oids, o)
		}
	}

	return oids, nil
}

func (f *FlatFS) Close() error {
	return nil
}

func (f *FlatFS) Get(o *oid.Oid) (*block.Block, error) {
	_, filePath := f.oidToPath(o)

	raw, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, block.ErrNotFound
		}
		return nil, err
	}

	data, err := snappy.Decode(nil, raw)
	if err != nil {
		log.Errorf("FlatFS.Get: failed to decompress %s: %v", o.String(), err)
		return nil, block.ErrCorrupted
	}

	if !o.Verify(data) {
		log.Errorf("FlatFS.Get: content of %s does not match its OID", o.String())
		return nil, block.ErrCorrupted
	}

	return &block.Block{
		Oid:    *o,
		Length: uint64(len(data)),
		Data:   data,
	}, nil
}

// oidToPath converts an OID to its corresponding file path within the FlatFS structure.
// It also returns the directory path.
func (f *FlatFS) oidToPath(o *oid.Oid) (dirPath string, filePath string) {
	oidStr := o.String()

	// The first 5 base32 characters only encode the version, padding and type bytes, so shard on the hash part
	dirPath = filepath.Join(f.basePath, oidStr[5:9])
	filePath = filepath.Join(dirPath, oidStr)

	return dirPath, filePath
}

func (f *FlatFS) Has(o *oid.Oid) (bool, error) {
	_, filePath := f.oidToPath(o)
	stat, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !stat.IsDir(), nil
}

func (f *FlatFS) Put(b *block.Block) (*oid.Oid, error) {
	if b == nil {
		return nil, os.ErrInvalid
	}

	// Blocks are immutable, an existing file already holds the same content
	if ok, err := f.Has(&b.Oid); err != nil {
		return nil, err
	} else if ok {
		o := b.Oid
		return &o, nil
	}

	dirPath, filePath := f.oidToPath(&b.Oid)
	if err := ensureDir(dirPath); err != nil {
		return nil, err
	}

	// Write to a temporary file and rename so readers never observe a partial block
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, snappy.Encode(nil, b.Data), 0644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return nil, err
	}

	o := b.Oid
	return &o, nil
}

func (f *FlatFS) Delete(o *oid.Oid) error {
	_, filePath := f.oidToPath(o)

	err := os.Remove(filePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
