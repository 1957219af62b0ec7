// Package memory implements block.BlockStore and block.CommitLog in process memory.
package memory

import (
	"fmt"
	"sync"
	"time"

	"uptime/datamodel/block"
	"uptime/oid"
)

var _ block.BlockStore = (*BlockStore)(nil)
var _ block.CommitLog = (*CommitLog)(nil)

type BlockStore struct {
	mu     sync.RWMutex
	blocks map[oid.Oid][]byte
}

func NewBlockStore() *BlockStore {
	return &BlockStore{blocks: make(map[oid.Oid][]byte)}
}

func (m *BlockStore) Get(o *oid.Oid) (*block.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blocks[*o]
	if !ok {
		return nil, block.ErrNotFound
	}
	return &block.Block{Oid: *o, Length: uint64(len(data)), Data: append([]byte(nil), data...)}, nil
}

func (m *BlockStore) Has(o *oid.Oid) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[*o]
	return ok, nil
}

func (m *BlockStore) Put(b *block.Block) (*oid.Oid, error) {
	if b == nil {
		return nil, fmt.Errorf("memory.BlockStore.Put: nil block")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blocks[b.Oid]; !ok {
		m.blocks[b.Oid] = append([]byte(nil), b.Data...)
	}
	o := b.Oid
	return &o, nil
}

func (m *BlockStore) Delete(o *oid.Oid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocks, *o)
	return nil
}

func (m *BlockStore) Enumerate() ([]*oid.Oid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	oids := make([]*oid.Oid, 0, len(m.blocks))
	for o := range m.blocks {
		o := o
		oids = append(oids, &o)
	}
	return oids, nil
}

func (m *BlockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

func (m *BlockStore) Close() error {
	return nil
}

type CommitLog struct {
	mu      sync.Mutex
	commits []*block.Commit
}

func NewCommitLog() *CommitLog {
	return &CommitLog{}
}

func (c *CommitLog) Head() (*block.Commit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.commits) == 0 {
		return nil, block.ErrNoRoot
	}
	head := *c.commits[len(c.commits)-1]
	return &head, nil
}

func (c *CommitLog) Append(commit *block.Commit) (*block.Commit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := *commit
	stored.Seq = uint64(len(c.commits)) + 1
	if stored.Time.IsZero() {
		stored.Time = time.Now()
	}
	c.commits = append(c.commits, &stored)

	out := stored
	return &out, nil
}

func (c *CommitLog) GetBySeq(seq uint64) (*block.Commit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq == 0 || seq > uint64(len(c.commits)) {
		return nil, block.ErrNotFound
	}
	out := *c.commits[seq-1]
	return &out, nil
}

func (c *CommitLog) EnumerateBySeq(start uint64, end uint64) ([]*block.Commit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if start > end {
		return nil, fmt.Errorf("EnumerateBySeq: invalid range: start (%d) > end (%d)", start, end)
	}

	var results []*block.Commit
	for _, commit := range c.commits {
		if commit.Seq >= start && commit.Seq <= end {
			out := *commit
			results = append(results, &out)
		}
	}
	return results, nil
}

func (c *CommitLog) GetSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.commits))
}

func (c *CommitLog) Close() error {
	return nil
}
