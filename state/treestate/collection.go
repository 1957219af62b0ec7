package treestate

import (
	"crypto/sha256"
	"slices"

	"uptime/datamodel/block"
	"uptime/oid"
	"uptime/peer"
	"uptime/state"

	log "github.com/sirupsen/logrus"
)

// Number of buckets per collection. A key lands in bucket sha256(key)[0] % fanout.
const fanout = 32

// bucketRef points at the block that stores one non-empty bucket
type bucketRef struct {
	_     struct{} `cbor:",toarray"`
	Index uint8
	Oid   oid.Oid
}

// collectionNode is the serialized head of a collection
type collectionNode struct {
	Count   uint64      `cbor:"1,keyasint"`           // Number of entries across all buckets
	Buckets []bucketRef `cbor:"2,keyasint,omitempty"` // Non-empty buckets ordered by index
}

func bucketOf(id peer.ID) uint8 {
	h := sha256.Sum256([]byte(id))
	return h[0] % fanout
}

// collection is a copy-on-write map from peer ID to V spread over content-addressed buckets.
// Buckets are loaded on first access; only modified buckets are written back on flush.
type collection[V any] struct {
	bs     block.BlockStore
	clone  func(V) V
	count  uint64
	refs   map[uint8]oid.Oid
	loaded map[uint8]map[peer.ID]V
	dirty  map[uint8]bool
	stored *oid.Oid // OID of the collection node while nothing changed since load or flush
}

func newCollection[V any](bs block.BlockStore, clone func(V) V) *collection[V] {
	return &collection[V]{
		bs:     bs,
		clone:  clone,
		refs:   make(map[uint8]oid.Oid),
		loaded: make(map[uint8]map[peer.ID]V),
		dirty:  make(map[uint8]bool),
	}
}

func loadCollection[V any](bs block.BlockStore, clone func(V) V, o *oid.Oid) (*collection[V], error) {
	node := collectionNode{}
	if err := state.GetObject(bs, o, &node); err != nil {
		return nil, err
	}

	c := newCollection(bs, clone)
	c.count = node.Count
	for _, ref := range node.Buckets {
		c.refs[ref.Index] = ref.Oid
	}
	stored := *o
	c.stored = &stored
	return c, nil
}

func (c *collection[V]) bucket(i uint8) (map[peer.ID]V, error) {
	if b, ok := c.loaded[i]; ok {
		return b, nil
	}

	b := make(map[peer.ID]V)
	if ref, ok := c.refs[i]; ok {
		if err := state.GetObject(c.bs, &ref, &b); err != nil {
			return nil, err
		}
	}
	c.loaded[i] = b
	return b, nil
}

func (c *collection[V]) get(id peer.ID) (V, bool, error) {
	var zero V
	b, err := c.bucket(bucketOf(id))
	if err != nil {
		return zero, false, err
	}
	v, ok := b[id]
	if !ok {
		return zero, false, nil
	}
	return c.clone(v), true, nil
}

func (c *collection[V]) set(id peer.ID, v V) error {
	i := bucketOf(id)
	b, err := c.bucket(i)
	if err != nil {
		return err
	}
	if _, ok := b[id]; !ok {
		c.count++
	}
	b[id] = c.clone(v)
	c.touch(i)
	return nil
}

func (c *collection[V]) delete(id peer.ID) (bool, error) {
	i := bucketOf(id)
	b, err := c.bucket(i)
	if err != nil {
		return false, err
	}
	if _, ok := b[id]; !ok {
		return false, nil
	}
	delete(b, id)
	c.count--
	c.touch(i)
	return true, nil
}

func (c *collection[V]) touch(i uint8) {
	c.dirty[i] = true
	c.stored = nil
}

// each visits every entry, bucket by bucket. Entries are passed without cloning.
func (c *collection[V]) each(fn func(id peer.ID, v V) error) error {
	for i := uint8(0); i < fanout; i++ {
		if _, ok := c.refs[i]; !ok && !c.dirty[i] {
			continue
		}
		b, err := c.bucket(i)
		if err != nil {
			return err
		}
		for id, v := range b {
			if err := fn(id, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *collection[V]) flush() (*oid.Oid, error) {
	if c.stored != nil {
		return c.stored, nil
	}

	for i := range c.dirty {
		b := c.loaded[i]
		if len(b) == 0 {
			delete(c.refs, i)
			continue
		}
		o, err := state.PutObject(c.bs, oid.OidTypeBucket, b)
		if err != nil {
			return nil, err
		}
		c.refs[i] = *o
		log.Debugf("treestate: flushed bucket %d (%d entries) -> %s", i, len(b), o.String())
	}
	c.dirty = make(map[uint8]bool)

	node := collectionNode{Count: c.count}
	indexes := make([]uint8, 0, len(c.refs))
	for i := range c.refs {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)
	for _, i := range indexes {
		node.Buckets = append(node.Buckets, bucketRef{Index: i, Oid: c.refs[i]})
	}

	o, err := state.PutObject(c.bs, oid.OidTypeCollection, &node)
	if err != nil {
		return nil, err
	}
	c.stored = o
	return o, nil
}
