package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"

	"uptime/datamodel/block"
	"uptime/oid"

	log "github.com/sirupsen/logrus"
)

var _ block.BlockStore = (*BlockStore)(nil)

type BlockStore struct {
	LevelDB
}

func NewBlockStore(path string) (*BlockStore, error) {
	ldb, err := initLevelDb(path)
	if err != nil {
		return nil, err
	}

	return &BlockStore{
		LevelDB: LevelDB{
			path: path,
			db:   ldb,
		},
	}, nil
}

func (l *BlockStore) Get(o *oid.Oid) (*block.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.db.Get(keyFromOid(o), nil)
	if err == errors.ErrNotFound {
		return nil, block.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// Compare the content hash just in case
	if !o.Verify(data) {
		log.Errorf("BlockStore.Get: content of %s does not match its OID", o.String())
		return nil, block.ErrCorrupted
	}

	return &block.Block{Oid: *o, Length: uint64(len(data)), Data: data}, nil
}

func (l *BlockStore) Has(o *oid.Oid) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Has(keyFromOid(o), nil)
}

func (l *BlockStore) Put(b *block.Block) (*oid.Oid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := keyFromOid(&b.Oid)
	ok, err := l.db.Has(key, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := l.db.Put(key, b.Data, nil); err != nil {
			return nil, err
		}
	}

	o := b.Oid
	return &o, nil
}

func (l *BlockStore) Delete(o *oid.Oid) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Delete(keyFromOid(o), nil)
}

func (l *BlockStore) Enumerate() ([]*oid.Oid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var results []*oid.Oid

	iter := l.db.NewIterator(util.BytesPrefix([]byte(keyPrefixBlock)), nil)
	defer iter.Release()

	for iter.Next() {
		o, err := oid.FromString(string(iter.Key()[len(keyPrefixBlock):]))
		if err != nil {
			log.Warnf("BlockStore.Enumerate: skipping malformed key %q: %v", iter.Key(), err)
			continue
		}
		results = append(results, o)
	}

	return results, iter.Error()
}
