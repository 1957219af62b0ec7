// Package statetest holds the behaviour every state.Backend must share.
package statetest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"uptime/datamodel/block"
	"uptime/datastore/memory"
	"uptime/exitcode"
	"uptime/peer"
	"uptime/state"
)

type NewBackendFunc func(bs block.BlockStore) state.Backend

func seed() []*peer.NodeInfo {
	return []*peer.NodeInfo{
		peer.NewNodeInfo("QmA", 100, []peer.MultiAddr{"/ip4/10.0.0.1/tcp/4001/p2p/QmA/ping"}),
		peer.NewNodeInfo("QmB", 101, nil),
		peer.NewNodeInfo("QmC", 102, nil),
	}
}

// Run executes the conformance suite against backends produced by newBackend.
func Run(t *testing.T, newBackend NewBackendFunc) {
	t.Run("Seed", func(t *testing.T) { testSeed(t, newBackend) })
	t.Run("UpsertOwnership", func(t *testing.T) { testUpsertOwnership(t, newBackend) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, newBackend) })
	t.Run("IndependentNamespaces", func(t *testing.T) { testNamespaces(t, newBackend) })
	t.Run("Votes", func(t *testing.T) { testVotes(t, newBackend) })
	t.Run("PurgeStaleVotes", func(t *testing.T) { testPurge(t, newBackend) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newBackend) })
	t.Run("DeterministicRoot", func(t *testing.T) { testDeterministicRoot(t, newBackend) })
	t.Run("ManyPeers", func(t *testing.T) { testManyPeers(t, newBackend) })
}

func testSeed(t *testing.T, newBackend NewBackendFunc) {
	st, err := newBackend(memory.NewBlockStore()).New(seed())
	require.NoError(t, err)

	n, err := st.TotalCheckers()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	m, err := st.TotalMembers()
	require.NoError(t, err)
	require.Equal(t, 0, m)

	ok, err := st.IsChecker("QmA")
	require.NoError(t, err)
	require.True(t, ok)

	c, err := st.Checker("QmA")
	require.NoError(t, err)
	require.True(t, seed()[0].Equal(c))

	missing, err := st.Checker("QmZ")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func testUpsertOwnership(t *testing.T, newBackend NewBackendFunc) {
	st, err := newBackend(memory.NewBlockStore()).New(seed())
	require.NoError(t, err)

	// A fresh id can be registered by anyone
	require.NoError(t, st.UpsertMember(500, peer.NewNodeInfo("QmM", 500, nil)))

	// Non-owner edit fails and leaves the record unchanged
	err = st.UpsertMember(501, peer.NewNodeInfo("QmM", 501, []peer.MultiAddr{"/dns/evil"}))
	require.ErrorIs(t, err, exitcode.ErrNotOwner)
	m, err := st.Member("QmM")
	require.NoError(t, err)
	require.Equal(t, peer.ActorID(500), m.Creator)
	require.Empty(t, m.Addresses)

	err = st.UpsertChecker(999, peer.NewNodeInfo("QmA", 999, nil))
	require.ErrorIs(t, err, exitcode.ErrNotOwner)

	// Owner edit replaces the record and may transfer ownership
	require.NoError(t, st.UpsertMember(500, peer.NewNodeInfo("QmM", 600, []peer.MultiAddr{"/ip4/1.2.3.4/tcp/80"})))
	m, err = st.Member("QmM")
	require.NoError(t, err)
	require.Equal(t, peer.ActorID(600), m.Creator)
	require.Equal(t, []peer.MultiAddr{"/ip4/1.2.3.4/tcp/80"}, m.Addresses)

	// The previous owner lost control, the new one gained it
	require.ErrorIs(t, st.UpsertMember(500, peer.NewNodeInfo("QmM", 500, nil)), exitcode.ErrNotOwner)
	require.NoError(t, st.UpsertMember(600, peer.NewNodeInfo("QmM", 600, nil)))

	total, err := st.TotalMembers()
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func testRemove(t *testing.T, newBackend NewBackendFunc) {
	st, err := newBackend(memory.NewBlockStore()).New(seed())
	require.NoError(t, err)

	require.ErrorIs(t, st.RemoveMember(100, "QmA"), exitcode.ErrNotExists)
	require.ErrorIs(t, st.RemoveChecker(100, "QmZ"), exitcode.ErrNotExists)

	require.ErrorIs(t, st.RemoveChecker(101, "QmA"), exitcode.ErrNotOwner)
	ok, err := st.IsChecker("QmA")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, st.RemoveChecker(100, "QmA"))
	ok, err = st.IsChecker("QmA")
	require.NoError(t, err)
	require.False(t, ok)

	// Unchecked removal ignores ownership and absent ids
	require.NoError(t, st.RemoveCheckerUnchecked("QmB"))
	require.NoError(t, st.RemoveCheckerUnchecked("QmZ"))

	n, err := st.TotalCheckers()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func testNamespaces(t *testing.T, newBackend NewBackendFunc) {
	st, err := newBackend(memory.NewBlockStore()).New(seed())
	require.NoError(t, err)

	// The same peer can be a member under a different owner
	require.NoError(t, st.UpsertMember(777, peer.NewNodeInfo("QmA", 777, nil)))

	m, err := st.Member("QmA")
	require.NoError(t, err)
	c, err := st.Checker("QmA")
	require.NoError(t, err)
	require.Equal(t, peer.ActorID(777), m.Creator)
	require.Equal(t, peer.ActorID(100), c.Creator)

	require.NoError(t, st.RemoveMember(777, "QmA"))
	ok, err := st.IsChecker("QmA")
	require.NoError(t, err)
	require.True(t, ok)
}

func testVotes(t *testing.T, newBackend NewBackendFunc) {
	st, err := newBackend(memory.NewBlockStore()).New(seed())
	require.NoError(t, err)

	v, err := st.Votes("QmA")
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = st.RecordVote("QmA", "QmB", 10, 200)
	require.NoError(t, err)
	require.Equal(t, 1, v.TotalVotes())

	v, err = st.RecordVote("QmA", "QmC", 15, 200)
	require.NoError(t, err)
	require.Equal(t, 2, v.TotalVotes())

	_, err = st.RecordVote("QmA", "QmB", 16, 200)
	require.ErrorIs(t, err, exitcode.ErrAlreadyVoted)

	// A failed vote leaves the record unchanged
	v, err = st.Votes("QmA")
	require.NoError(t, err)
	require.Equal(t, peer.ChainEpoch(15), v.LastVote)
	require.Equal(t, []peer.ID{"QmB", "QmC"}, v.Voters)

	// Past the window the record restarts
	v, err = st.RecordVote("QmA", "QmB", 300, 200)
	require.NoError(t, err)
	require.Equal(t, []peer.ID{"QmB"}, v.Voters)

	require.NoError(t, st.ClearVotes("QmA"))
	v, err = st.Votes("QmA")
	require.NoError(t, err)
	require.Nil(t, v)
}

func testPurge(t *testing.T, newBackend NewBackendFunc) {
	st, err := newBackend(memory.NewBlockStore()).New(seed())
	require.NoError(t, err)

	_, err = st.RecordVote("QmA", "QmB", 10, 200)
	require.NoError(t, err)
	_, err = st.RecordVote("QmB", "QmC", 100, 200)
	require.NoError(t, err)

	purged, err := st.PurgeStaleVotes(250, 200)
	require.NoError(t, err)
	require.Equal(t, 1, purged)

	v, err := st.Votes("QmA")
	require.NoError(t, err)
	require.Nil(t, v)
	v, err = st.Votes("QmB")
	require.NoError(t, err)
	require.NotNil(t, v)
}

func testRoundTrip(t *testing.T, newBackend NewBackendFunc) {
	bs := memory.NewBlockStore()
	backend := newBackend(bs)

	st, err := backend.New(seed())
	require.NoError(t, err)
	require.NoError(t, st.UpsertMember(300, peer.NewNodeInfo("QmM1", 300, []peer.MultiAddr{"/ip4/10.0.0.9/tcp/8081/http/get/healthcheck"})))
	require.NoError(t, st.UpsertMember(301, peer.NewNodeInfo("QmM2", 301, nil)))
	_, err = st.RecordVote("QmC", "QmA", 42, 200)
	require.NoError(t, err)

	root, err := st.Flush()
	require.NoError(t, err)

	loaded, err := backend.Load(root)
	require.NoError(t, err)

	requireSameState(t, st, loaded)

	// Flushing the loaded state without changes yields the same root
	root2, err := loaded.Flush()
	require.NoError(t, err)
	require.True(t, root.Equal(root2))

	// Changes after loading do not affect the stored snapshot
	require.NoError(t, loaded.RemoveMember(300, "QmM1"))
	again, err := backend.Load(root)
	require.NoError(t, err)
	m, err := again.Member("QmM1")
	require.NoError(t, err)
	require.NotNil(t, m)
}

func testDeterministicRoot(t *testing.T, newBackend NewBackendFunc) {
	build := func(order []int) state.State {
		st, err := newBackend(memory.NewBlockStore()).New(nil)
		require.NoError(t, err)
		for _, i := range order {
			id := peer.ID(fmt.Sprintf("QmP%d", i))
			require.NoError(t, st.UpsertChecker(peer.ActorID(i+1), peer.NewNodeInfo(id, peer.ActorID(i+1), nil)))
		}
		return st
	}

	a := build([]int{1, 2, 3, 4, 5})
	b := build([]int{5, 3, 1, 4, 2})

	ra, err := a.Flush()
	require.NoError(t, err)
	rb, err := b.Flush()
	require.NoError(t, err)
	require.True(t, ra.Equal(rb), "insertion order must not change the root: %s != %s", ra, rb)

	// Adding and removing a record returns to the same root
	require.NoError(t, b.UpsertMember(9, peer.NewNodeInfo("QmTmp", 9, nil)))
	require.NoError(t, b.RemoveMember(9, "QmTmp"))
	rb2, err := b.Flush()
	require.NoError(t, err)
	require.True(t, ra.Equal(rb2))
}

func testManyPeers(t *testing.T, newBackend NewBackendFunc) {
	bs := memory.NewBlockStore()
	backend := newBackend(bs)

	st, err := backend.New(nil)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		id := peer.ID(fmt.Sprintf("Qm%04d", i))
		require.NoError(t, st.UpsertChecker(1, peer.NewNodeInfo(id, 1, nil)))
	}
	root, err := st.Flush()
	require.NoError(t, err)

	loaded, err := backend.Load(root)
	require.NoError(t, err)
	n, err := loaded.TotalCheckers()
	require.NoError(t, err)
	require.Equal(t, 200, n)

	all, err := loaded.Checkers()
	require.NoError(t, err)
	require.Len(t, all, 200)
	require.Equal(t, peer.ID("Qm0000"), all[0].ID)
	require.Equal(t, peer.ID("Qm0199"), all[199].ID)
}

func requireSameState(t *testing.T, want, got state.State) {
	t.Helper()

	wm, err := want.Members()
	require.NoError(t, err)
	gm, err := got.Members()
	require.NoError(t, err)
	require.Equal(t, wm, gm)

	wc, err := want.Checkers()
	require.NoError(t, err)
	gc, err := got.Checkers()
	require.NoError(t, err)
	require.Equal(t, wc, gc)

	for _, c := range wc {
		wv, err := want.Votes(c.ID)
		require.NoError(t, err)
		gv, err := got.Votes(c.ID)
		require.NoError(t, err)
		require.Equal(t, wv, gv)
	}
}
