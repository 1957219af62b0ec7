package mapstate

import (
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

func TestFlushWritesSingleBlock(t *testing.T) {
	bs := memory.NewBlockStore()
	st, err := NewBackend(bs).New([]*peer.NodeInfo{peer.NewNodeInfo("QmA", 1, nil)})
	require.NoError(t, err)

	require.NoError(t, st.UpsertMember(2, peer.NewNodeInfo("QmM", 2, nil)))
	_, err = st.Flush()
	require.NoError(t, err)
	require.Equal(t, 1, bs.Len())
}
