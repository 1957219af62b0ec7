package peer

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"uptime/exitcode"
)

func TestAdmitVoteFreshRecord(t *testing.T) {
	v, err := AdmitVote(nil, "QmB", 10, 200)
	require.NoError(t, err)
	require.Equal(t, ChainEpoch(10), v.LastVote)
	require.Equal(t, []ID{"QmB"}, v.Voters)
}

func TestAdmitVoteWithinWindow(t *testing.T) {
	v, err := AdmitVote(nil, "QmB", 10, 200)
	require.NoError(t, err)

	v2, err := AdmitVote(v, "QmC", 15, 200)
	require.NoError(t, err)
	require.Equal(t, 2, v2.TotalVotes())
	require.Equal(t, ChainEpoch(15), v2.LastVote)

	// the input record is untouched
	require.Equal(t, 1, v.TotalVotes())

	_, err = AdmitVote(v2, "QmB", 16, 200)
	require.ErrorIs(t, err, exitcode.ErrAlreadyVoted)
}

func TestAdmitVoteWindowBoundary(t *testing.T) {
	v, _ := AdmitVote(nil, "QmB", 10, 200)

	// 10 + 200 < 210 is false: still inside the window
	inside, err := AdmitVote(v, "QmC", 210, 200)
	require.NoError(t, err)
	require.Equal(t, 2, inside.TotalVotes())

	// 10 + 200 < 211: stale, the window restarts
	reset, err := AdmitVote(v, "QmC", 211, 200)
	require.NoError(t, err)
	require.Equal(t, []ID{"QmC"}, reset.Voters)
	require.Equal(t, ChainEpoch(211), reset.LastVote)

	// the previous voter may vote again in the new window
	again, err := AdmitVote(reset, "QmB", 211, 200)
	require.NoError(t, err)
	require.Equal(t, []ID{"QmC", "QmB"}, again.Voters)
}

func TestNodeInfoValidate(t *testing.T) {
	require.NoError(t, NewNodeInfo("QmA", 100, nil).Validate())
	require.ErrorIs(t, NewNodeInfo("", 100, nil).Validate(), ErrEmptyID)
	require.ErrorIs(t, NewNodeInfo("QmA", 0, nil).Validate(), ErrNoCreator)
}

func TestNodeInfoCBOR(t *testing.T) {
	n := NewNodeInfo("QmA", 100, []MultiAddr{"/ip4/10.1.1.1/tcp/8081/http/get/healthcheck"})

	enc, err := cbor.Marshal(n)
	require.NoError(t, err)

	var n2 NodeInfo
	require.NoError(t, cbor.Unmarshal(enc, &n2))
	require.True(t, n.Equal(&n2))

	c := n.Clone()
	c.Addresses[0] = "changed"
	require.NotEqual(t, c.Addresses[0], n.Addresses[0])
}

func TestSortByID(t *testing.T) {
	nodes := []*NodeInfo{NewNodeInfo("QmC", 1, nil), NewNodeInfo("QmA", 1, nil), NewNodeInfo("QmB", 1, nil)}
	SortByID(nodes)
	require.Equal(t, ID("QmA"), nodes[0].ID)
	require.Equal(t, ID("QmB"), nodes[1].ID)
	require.Equal(t, ID("QmC"), nodes[2].ID)
}
