package actor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"uptime/datamodel/block"
	"uptime/datastore/memory"
	"uptime/exitcode"
	"uptime/oid"
	"uptime/peer"
	"uptime/state"
	"uptime/state/mapstate"
	"uptime/state/treestate"
)

type testRuntime struct {
	caller  peer.ActorID
	peer    peer.ID
	epoch   peer.ChainEpoch
	root    *oid.Oid
	commits int
}

func (rt *testRuntime) Caller() peer.ActorID       { return rt.caller }
func (rt *testRuntime) CallerPeer() peer.ID        { return rt.peer }
func (rt *testRuntime) CurrEpoch() peer.ChainEpoch { return rt.epoch }

func (rt *testRuntime) Root() (*oid.Oid, error) {
	if rt.root == nil {
		return nil, block.ErrNoRoot
	}
	return rt.root, nil
}

func (rt *testRuntime) SetRoot(o *oid.Oid) error {
	rt.root = o
	rt.commits++
	return nil
}

// as switches the acting identity and clock
func (rt *testRuntime) as(caller peer.ActorID, p peer.ID, epoch peer.ChainEpoch) *testRuntime {
	rt.caller = caller
	rt.peer = p
	rt.epoch = epoch
	return rt
}

func backends() map[string]func() state.Backend {
	return map[string]func() state.Backend{
		"map":  func() state.Backend { return mapstate.NewBackend(memory.NewBlockStore()) },
		"tree": func() state.Backend { return treestate.NewBackend(memory.NewBlockStore()) },
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, a *Actor)) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, New(mk(), DefaultWindow))
		})
	}
}

// Checkers A, B, C owned by accounts 1, 2, 3
func setup(t *testing.T, a *Actor, ids ...peer.ID) *testRuntime {
	t.Helper()
	if len(ids) == 0 {
		ids = []peer.ID{"A", "B", "C"}
	}
	nodes := make([]*peer.NodeInfo, 0, len(ids))
	for i, id := range ids {
		nodes = append(nodes, peer.NewNodeInfo(id, peer.ActorID(i+1), []peer.MultiAddr{"/ip4/127.0.0.1/tcp/4001"}))
	}
	rt := &testRuntime{}
	_, err := a.Constructor(rt.as(100, "", 0), NewInitParams(nodes))
	require.NoError(t, err)
	return rt
}

func load(t *testing.T, a *Actor, rt *testRuntime) state.State {
	t.Helper()
	st, err := a.Load(rt)
	require.NoError(t, err)
	return st
}

func TestQuorumReached(t *testing.T) {
	cases := []struct {
		total, votes int
		want         bool
	}{
		{0, 0, false},
		{1, 1, true},
		{2, 1, false},
		{2, 2, true},
		{3, 2, false},
		{3, 3, true},
		{4, 2, false},
		{4, 3, true},
		{6, 4, false},
		{6, 5, true},
		{100, 66, false},
		{100, 67, true},
	}
	for _, c := range cases {
		require.Equal(t, c.want, QuorumReached(c.total, c.votes), "total=%d votes=%d", c.total, c.votes)
	}
}

func TestConstructor(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := setup(t, a)
		st := load(t, a, rt)

		checkers, err := st.Checkers()
		require.NoError(t, err)
		require.Len(t, checkers, 3)
		require.Equal(t, peer.ID("A"), checkers[0].ID)

		members, err := st.TotalMembers()
		require.NoError(t, err)
		require.Zero(t, members)
	})
}

func TestConstructorRejectsBadParams(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := &testRuntime{}

		_, err := a.Constructor(rt, &InitParams{
			IDs:       []peer.ID{"A", "B"},
			Creators:  []peer.ActorID{1},
			Addresses: [][]peer.MultiAddr{nil, nil},
		})
		require.ErrorIs(t, err, exitcode.ErrCannotDeserialize)

		_, err = a.Constructor(rt, &InitParams{
			IDs:       []peer.ID{"A"},
			Creators:  []peer.ActorID{0},
			Addresses: [][]peer.MultiAddr{nil},
		})
		require.ErrorIs(t, err, exitcode.ErrCannotDeserialize)

		_, err = a.Constructor(rt, nil)
		require.ErrorIs(t, err, exitcode.ErrCannotDeserialize)

		require.Zero(t, rt.commits)
	})
}

func TestUninitialized(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := &testRuntime{caller: 1, peer: "A"}
		err := a.NewMember(rt, peer.NewNodeInfo("A", 1, nil))
		require.Equal(t, exitcode.Storage, exitcode.CodeOf(err))
		require.ErrorIs(t, err, block.ErrNoRoot)
	})
}

func TestOwnership(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := setup(t, a)

		// Anyone may register a fresh member
		require.NoError(t, a.NewMember(rt.as(50, "M", 1), peer.NewNodeInfo("M", 50, nil)))

		root := rt.root
		err := a.EditMember(rt.as(51, "M", 2), peer.NewNodeInfo("M", 51, nil))
		require.ErrorIs(t, err, exitcode.ErrNotOwner)
		require.True(t, root.Equal(rt.root))

		err = a.EditChecker(rt.as(9, "A", 2), peer.NewNodeInfo("A", 9, nil))
		require.ErrorIs(t, err, exitcode.ErrNotOwner)

		// The owner may edit and transfer
		require.NoError(t, a.EditChecker(rt.as(1, "A", 3), peer.NewNodeInfo("A", 11, []peer.MultiAddr{"/dns/a.example/tcp/443"})))
		c, err := load(t, a, rt).Checker("A")
		require.NoError(t, err)
		require.Equal(t, peer.ActorID(11), c.Creator)

		err = a.NewChecker(rt.as(1, "A", 4), peer.NewNodeInfo("A", 1, nil))
		require.ErrorIs(t, err, exitcode.ErrNotOwner)

		err = a.NewChecker(rt.as(1, "A", 4), peer.NewNodeInfo("", 1, nil))
		require.ErrorIs(t, err, exitcode.ErrCannotDeserialize)
	})
}

func TestSelfRemoval(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := setup(t, a)
		require.NoError(t, a.NewMember(rt.as(50, "M", 1), peer.NewNodeInfo("M", 50, nil)))

		require.ErrorIs(t, a.RemoveMember(rt.as(50, "Z", 2)), exitcode.ErrNotExists)
		require.ErrorIs(t, a.RemoveMember(rt.as(51, "M", 2)), exitcode.ErrNotOwner)
		require.NoError(t, a.RemoveMember(rt.as(50, "M", 2)))

		// B owns its checker record, but account 1 does not
		require.ErrorIs(t, a.RemoveChecker(rt.as(1, "B", 3)), exitcode.ErrNotOwner)
		require.NoError(t, a.RemoveChecker(rt.as(2, "B", 3)))

		st := load(t, a, rt)
		ok, err := st.IsChecker("B")
		require.NoError(t, err)
		require.False(t, ok)
		m, err := st.Member("M")
		require.NoError(t, err)
		require.Nil(t, m)
	})
}

func TestReportScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := setup(t, a)

		rep, err := a.ReportChecker(rt.as(2, "B", 10), "A")
		require.NoError(t, err)
		require.Equal(t, 1, rep.Votes)
		require.False(t, rep.Evicted)

		rep, err = a.ReportChecker(rt.as(3, "C", 15), "A")
		require.NoError(t, err)
		require.Equal(t, 2, rep.Votes)
		require.Equal(t, 3, rep.Total)
		require.False(t, rep.Evicted, "2 of 3 is not more than two thirds")

		v, err := load(t, a, rt).Votes("A")
		require.NoError(t, err)
		require.Equal(t, peer.ChainEpoch(15), v.LastVote)
		require.Equal(t, []peer.ID{"B", "C"}, v.Voters)

		// A fourth checker raises the threshold to 3 of 4
		require.NoError(t, a.NewChecker(rt.as(4, "D", 16), peer.NewNodeInfo("D", 4, nil)))
		rep, err = a.ReportChecker(rt.as(4, "D", 20), "A")
		require.NoError(t, err)
		require.Equal(t, 3, rep.Votes)
		require.Equal(t, 4, rep.Total)
		require.True(t, rep.Evicted)

		st := load(t, a, rt)
		ok, err := st.IsChecker("A")
		require.NoError(t, err)
		require.False(t, ok)

		// Eviction leaves no vote record behind
		v, err = st.Votes("A")
		require.NoError(t, err)
		require.Nil(t, v)
	})
}

func TestReportEvictsAtThreeOfThree(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := setup(t, a)

		_, err := a.ReportChecker(rt.as(2, "B", 10), "A")
		require.NoError(t, err)
		_, err = a.ReportChecker(rt.as(3, "C", 11), "A")
		require.NoError(t, err)
		rep, err := a.ReportChecker(rt.as(1, "A", 12), "A")
		require.NoError(t, err)
		require.True(t, rep.Evicted)
	})
}

func TestReportAlreadyVoted(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := setup(t, a)

		_, err := a.ReportChecker(rt.as(2, "B", 10), "A")
		require.NoError(t, err)
		root := rt.root

		_, err = a.ReportChecker(rt.as(2, "B", 11), "A")
		require.ErrorIs(t, err, exitcode.ErrAlreadyVoted)
		require.True(t, root.Equal(rt.root))

		v, err := load(t, a, rt).Votes("A")
		require.NoError(t, err)
		require.Equal(t, peer.ChainEpoch(10), v.LastVote)
	})
}

func TestReportWindowReset(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := setup(t, a)

		_, err := a.ReportChecker(rt.as(2, "B", 10), "A")
		require.NoError(t, err)

		// 10+200 is still inside the window
		rep, err := a.ReportChecker(rt.as(3, "C", 210), "A")
		require.NoError(t, err)
		require.Equal(t, 2, rep.Votes)

		// Past 210+200 the previous voters are dropped
		rep, err = a.ReportChecker(rt.as(3, "C", 411), "A")
		require.NoError(t, err)
		require.Equal(t, 1, rep.Votes)

		rep, err = a.ReportChecker(rt.as(2, "B", 411), "A")
		require.NoError(t, err)
		require.Equal(t, 2, rep.Votes)
		require.False(t, rep.Evicted)
	})
}

func TestReportNotCaller(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := setup(t, a)
		require.NoError(t, a.NewMember(rt.as(50, "M", 1), peer.NewNodeInfo("M", 50, nil)))
		root := rt.root

		// Members are not checkers
		_, err := a.ReportChecker(rt.as(50, "M", 10), "A")
		require.ErrorIs(t, err, exitcode.ErrNotCaller)
		require.True(t, root.Equal(rt.root))

		v, err := load(t, a, rt).Votes("A")
		require.NoError(t, err)
		require.Nil(t, v)

		_, err = a.ReportChecker(rt.as(2, "B", 10), "")
		require.ErrorIs(t, err, exitcode.ErrCannotDeserialize)
	})
}

func TestReportUnderAnotherCheckersPeer(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := setup(t, a, "A", "B", "C", "D")
		root := rt.root

		// Account 99 owns no checker and cannot vote as B, C or D
		for i, p := range []peer.ID{"B", "C", "D"} {
			_, err := a.ReportChecker(rt.as(99, p, peer.ChainEpoch(10+i)), "A")
			require.ErrorIs(t, err, exitcode.ErrNotCaller, "peer %s", p)
		}

		// Account 2 owns B but not C
		_, err := a.ReportChecker(rt.as(2, "C", 20), "A")
		require.ErrorIs(t, err, exitcode.ErrNotCaller)
		require.True(t, root.Equal(rt.root))

		st := load(t, a, rt)
		v, err := st.Votes("A")
		require.NoError(t, err)
		require.Nil(t, v)
		ok, err := st.IsChecker("A")
		require.NoError(t, err)
		require.True(t, ok)
	})
}

func TestReportIgnoresDepartedVoters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := setup(t, a, "A", "B", "C", "D")

		_, err := a.ReportChecker(rt.as(2, "B", 10), "A")
		require.NoError(t, err)
		_, err = a.ReportChecker(rt.as(3, "C", 11), "A")
		require.NoError(t, err)

		// C leaves; its vote must not count toward the quorum
		require.NoError(t, a.RemoveChecker(rt.as(3, "C", 12)))

		rep, err := a.ReportChecker(rt.as(4, "D", 13), "A")
		require.NoError(t, err)
		require.Equal(t, 2, rep.Votes)
		require.Equal(t, 3, rep.Total)
		require.False(t, rep.Evicted)
	})
}

func TestCompactVotes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, a *Actor) {
		rt := setup(t, a)

		_, err := a.ReportChecker(rt.as(2, "B", 10), "A")
		require.NoError(t, err)
		_, err = a.ReportChecker(rt.as(1, "A", 150), "C")
		require.NoError(t, err)

		commits := rt.commits
		purged, err := a.CompactVotes(rt.as(0, "", 100))
		require.NoError(t, err)
		require.Zero(t, purged)
		require.Equal(t, commits, rt.commits)

		purged, err = a.CompactVotes(rt.as(0, "", 300))
		require.NoError(t, err)
		require.Equal(t, 1, purged)

		st := load(t, a, rt)
		v, err := st.Votes("A")
		require.NoError(t, err)
		require.Nil(t, v)
		v, err = st.Votes("C")
		require.NoError(t, err)
		require.NotNil(t, v)
	})
}
