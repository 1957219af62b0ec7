// Package treestate stores the registry as a small content-addressed tree:
// a root block points at one collection block per map, and each collection spreads its entries
// over hash-selected bucket blocks. A flush rewrites only the buckets touched since the last load,
// so large registries pay for the size of the change rather than the size of the registry.
package treestate

import (
	"uptime/datamodel/block"
	"uptime/oid"
	"uptime/peer"
	"uptime/state"
)

var _ state.State = (*State)(nil)
var _ state.Backend = (*Backend)(nil)

// rootNode is the serialized state root
type rootNode struct {
	Members         oid.Oid `cbor:"1,keyasint"` // Collection of member NodeInfo
	Checkers        oid.Oid `cbor:"2,keyasint"` // Collection of checker NodeInfo
	OfflineCheckers oid.Oid `cbor:"3,keyasint"` // Collection of Votes by subject
}

func cloneNode(n *peer.NodeInfo) *peer.NodeInfo { return n.Clone() }
func cloneVotes(v *peer.Votes) *peer.Votes      { return v.Clone() }

type Backend struct {
	bs block.BlockStore
}

func NewBackend(bs block.BlockStore) *Backend {
	return &Backend{bs: bs}
}

func (b *Backend) Name() string {
	return "tree"
}

func (b *Backend) New(seed []*peer.NodeInfo) (state.State, error) {
	st := &State{
		members:  newCollection(b.bs, cloneNode),
		checkers: newCollection(b.bs, cloneNode),
		votes:    newCollection(b.bs, cloneVotes),
	}
	for _, n := range seed {
		if err := st.checkers.set(n.ID, n); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (b *Backend) Load(root *oid.Oid) (state.State, error) {
	r := rootNode{}
	if err := state.GetObject(b.bs, root, &r); err != nil {
		return nil, err
	}

	members, err := loadCollection(b.bs, cloneNode, &r.Members)
	if err != nil {
		return nil, err
	}
	checkers, err := loadCollection(b.bs, cloneNode, &r.Checkers)
	if err != nil {
		return nil, err
	}
	votes, err := loadCollection(b.bs, cloneVotes, &r.OfflineCheckers)
	if err != nil {
		return nil, err
	}

	return &State{members: members, checkers: checkers, votes: votes}, nil
}

type State struct {
	members  *collection[*peer.NodeInfo]
	checkers *collection[*peer.NodeInfo]
	votes    *collection[*peer.Votes]
}

func upsert(c *collection[*peer.NodeInfo], caller peer.ActorID, info *peer.NodeInfo) error {
	existing, ok, err := c.get(info.ID)
	if err != nil {
		return err
	}
	if ok {
		if err := state.EnsureOwner(caller, existing); err != nil {
			return err
		}
	}
	return c.set(info.ID, info)
}

func remove(c *collection[*peer.NodeInfo], caller peer.ActorID, id peer.ID) error {
	existing, ok, err := c.get(id)
	if err != nil {
		return err
	}
	if !ok {
		return state.NotExists(id)
	}
	if err := state.EnsureOwner(caller, existing); err != nil {
		return err
	}
	_, err = c.delete(id)
	return err
}

func get(c *collection[*peer.NodeInfo], id peer.ID) (*peer.NodeInfo, error) {
	n, ok, err := c.get(id)
	if err != nil || !ok {
		return nil, err
	}
	return n, nil
}

func list(c *collection[*peer.NodeInfo]) ([]*peer.NodeInfo, error) {
	out := make([]*peer.NodeInfo, 0, c.count)
	err := c.each(func(_ peer.ID, n *peer.NodeInfo) error {
		out = append(out, n.Clone())
		return nil
	})
	if err != nil {
		return nil, err
	}
	peer.SortByID(out)
	return out, nil
}

func (st *State) UpsertMember(caller peer.ActorID, info *peer.NodeInfo) error {
	return upsert(st.members, caller, info)
}

func (st *State) RemoveMember(caller peer.ActorID, id peer.ID) error {
	return remove(st.members, caller, id)
}

func (st *State) UpsertChecker(caller peer.ActorID, info *peer.NodeInfo) error {
	return upsert(st.checkers, caller, info)
}

func (st *State) RemoveChecker(caller peer.ActorID, id peer.ID) error {
	return remove(st.checkers, caller, id)
}

func (st *State) RemoveCheckerUnchecked(id peer.ID) error {
	_, err := st.checkers.delete(id)
	return err
}

func (st *State) Member(id peer.ID) (*peer.NodeInfo, error) {
	return get(st.members, id)
}

func (st *State) Checker(id peer.ID) (*peer.NodeInfo, error) {
	return get(st.checkers, id)
}

func (st *State) IsChecker(id peer.ID) (bool, error) {
	_, ok, err := st.checkers.get(id)
	return ok, err
}

func (st *State) Members() ([]*peer.NodeInfo, error) {
	return list(st.members)
}

func (st *State) Checkers() ([]*peer.NodeInfo, error) {
	return list(st.checkers)
}

func (st *State) TotalMembers() (int, error) {
	return int(st.members.count), nil
}

func (st *State) TotalCheckers() (int, error) {
	return int(st.checkers.count), nil
}

func (st *State) Votes(subject peer.ID) (*peer.Votes, error) {
	v, ok, err := st.votes.get(subject)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

func (st *State) RecordVote(subject peer.ID, voter peer.ID, epoch peer.ChainEpoch, window peer.ChainEpoch) (*peer.Votes, error) {
	existing, err := st.Votes(subject)
	if err != nil {
		return nil, err
	}
	next, err := peer.AdmitVote(existing, voter, epoch, window)
	if err != nil {
		return nil, err
	}
	if err := st.votes.set(subject, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (st *State) ClearVotes(subject peer.ID) error {
	_, err := st.votes.delete(subject)
	return err
}

func (st *State) PurgeStaleVotes(epoch peer.ChainEpoch, window peer.ChainEpoch) (int, error) {
	var stale []peer.ID
	err := st.votes.each(func(subject peer.ID, v *peer.Votes) error {
		if v.Stale(epoch, window) {
			stale = append(stale, subject)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, subject := range stale {
		if _, err := st.votes.delete(subject); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

func (st *State) Flush() (*oid.Oid, error) {
	r := rootNode{}

	o, err := st.members.flush()
	if err != nil {
		return nil, err
	}
	r.Members = *o

	if o, err = st.checkers.flush(); err != nil {
		return nil, err
	}
	r.Checkers = *o

	if o, err = st.votes.flush(); err != nil {
		return nil, err
	}
	r.OfflineCheckers = *o

	return state.PutObject(st.members.bs, oid.OidTypeState, &r)
}
