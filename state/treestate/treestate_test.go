package treestate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"uptime/datamodel/block"
	"uptime/datastore/memory"
	"uptime/peer"
	"uptime/state"
	"uptime/state/statetest"
)

func TestConformance(t *testing.T) {
	statetest.Run(t, func(bs block.BlockStore) state.Backend { return NewBackend(bs) })
}

func TestFlushRewritesOnlyTouchedBuckets(t *testing.T) {
	bs := memory.NewBlockStore()
	backend := NewBackend(bs)

	st, err := backend.New(nil)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		id := peer.ID(fmt.Sprintf("QmN%03d", i))
		require.NoError(t, st.UpsertMember(1, peer.NewNodeInfo(id, 1, nil)))
	}
	root, err := st.Flush()
	require.NoError(t, err)
	before := bs.Len()

	loaded, err := backend.Load(root)
	require.NoError(t, err)
	require.NoError(t, loaded.UpsertMember(1, peer.NewNodeInfo("QmN000", 1, []peer.MultiAddr{"/ip4/10.0.0.1/tcp/80"})))
	_, err = loaded.Flush()
	require.NoError(t, err)

	// One bucket, one members collection node and one root
	require.Equal(t, before+3, bs.Len())
}

func TestBucketOfIsStable(t *testing.T) {
	require.Equal(t, bucketOf("QmA"), bucketOf("QmA"))
	for i := 0; i < 1000; i++ {
		require.Less(t, bucketOf(peer.ID(fmt.Sprintf("Qm%d", i))), uint8(fanout))
	}
}

func TestEmptyCollectionHasNoBuckets(t *testing.T) {
	bs := memory.NewBlockStore()
	c := newCollection(bs, cloneNode)
	require.NoError(t, c.set("QmA", peer.NewNodeInfo("QmA", 1, nil)))
	removed, err := c.delete("QmA")
	require.NoError(t, err)
	require.True(t, removed)

	o, err := c.flush()
	require.NoError(t, err)

	node := collectionNode{}
	require.NoError(t, state.GetObject(bs, o, &node))
	require.Zero(t, node.Count)
	require.Empty(t, node.Buckets)
}
