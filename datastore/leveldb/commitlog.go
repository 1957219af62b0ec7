package leveldb

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"uptime/datamodel/block"

	log "github.com/sirupsen/logrus"
)

var _ block.CommitLog = (*CommitLog)(nil)

// CommitLog keeps every committed state root under a monotonically increasing sequence number.
// The entry with the highest sequence number is the current root.
type CommitLog struct {
	LevelDB
	seq uint64
}

func NewCommitLog(path string) (*CommitLog, error) {
	// Init the underlying LevelDB object
	ldb, err := initLevelDb(path)
	if err != nil {
		return nil, err
	}

	// Scan the database to identify the sequence
	iter := ldb.NewIterator(util.BytesPrefix([]byte(keyPrefixSeq)), nil)
	defer iter.Release()

	var maxSeq uint64 = 0
	if iter.Last() {
		seq, err := seqFromKey(iter.Key())
		if err != nil {
			ldb.Close()
			return nil, err
		}
		maxSeq = seq
	}

	log.Debugf("CommitLog at %s resumes at sequence %d", path, maxSeq)

	return &CommitLog{
		LevelDB: LevelDB{
			path: path,
			db:   ldb,
		},
		seq: maxSeq,
	}, nil
}

func (l *CommitLog) get(seq uint64) (*block.Commit, error) {
	raw, err := l.db.Get(keyFromSeq(seq), nil)
	if err == errors.ErrNotFound {
		return nil, block.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c := &block.Commit{}
	if err := cbor.Unmarshal(raw, c); err != nil {
		return nil, err
	}

	// Compare the Sequence Number just in case
	if c.Seq != seq {
		log.Errorf("CommitLog: Sequence Number mismatch: %d != %d", seq, c.Seq)
		return nil, block.ErrCorrupted
	}

	return c, nil
}

func (l *CommitLog) Head() (*block.Commit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seq == 0 {
		return nil, block.ErrNoRoot
	}
	return l.get(l.seq)
}

func (l *CommitLog) GetBySeq(seq uint64) (*block.Commit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(seq)
}

func (l *CommitLog) Append(commit *block.Commit) (*block.Commit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Copy the commit object for writing
	c := *commit
	c.Seq = l.seq + 1
	if c.Time.IsZero() {
		c.Time = time.Now()
	}

	raw, err := cbor.Marshal(&c)
	if err != nil {
		return nil, err
	}

	// Sync the write, the root pointer must survive a crash once the call is acknowledged
	if err := l.db.Put(keyFromSeq(c.Seq), raw, &opt.WriteOptions{Sync: true}); err != nil {
		return nil, err
	}

	// Keep the last sequence number
	l.seq = c.Seq

	return &c, nil
}

func (l *CommitLog) EnumerateBySeq(start uint64, end uint64) ([]*block.Commit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if start > end {
		return nil, fmt.Errorf("EnumerateBySeq: invalid range: start (%d) > end (%d)", start, end)
	}

	var results []*block.Commit

	// Limit is exclusive, so extend the range by one to include end
	limit := util.BytesPrefix([]byte(keyPrefixSeq)).Limit
	if end < ^uint64(0) {
		limit = keyFromSeq(end + 1)
	}

	iter := l.db.NewIterator(&util.Range{Start: keyFromSeq(start), Limit: limit}, nil)
	defer iter.Release()

	for iter.Next() {
		c := &block.Commit{}
		if err := cbor.Unmarshal(iter.Value(), c); err != nil {
			return nil, err
		}
		results = append(results, c)
	}

	return results, iter.Error()
}

func (l *CommitLog) GetSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}
