// Package mapstate stores the whole registry as a single block: the flat layout.
// Every flush rewrites the full snapshot, which keeps the layout simple and suits small registries.
package mapstate

import (
	"uptime/datamodel/block"
	"uptime/oid"
	"uptime/peer"
	"uptime/state"

	log "github.com/sirupsen/logrus"
)

var _ state.State = (*State)(nil)
var _ state.Backend = (*Backend)(nil)

// snapshot is the serialized form of the registry
type snapshot struct {
	Members         map[peer.ID]*peer.NodeInfo `cbor:"1,keyasint"` // Nodes whose liveness is monitored
	Checkers        map[peer.ID]*peer.NodeInfo `cbor:"2,keyasint"` // Nodes allowed to report offline checkers
	OfflineCheckers map[peer.ID]*peer.Votes    `cbor:"3,keyasint"` // Offline votes by subject
}

func (s *snapshot) ensure() {
	if s.Members == nil {
		s.Members = make(map[peer.ID]*peer.NodeInfo)
	}
	if s.Checkers == nil {
		s.Checkers = make(map[peer.ID]*peer.NodeInfo)
	}
	if s.OfflineCheckers == nil {
		s.OfflineCheckers = make(map[peer.ID]*peer.Votes)
	}
}

type Backend struct {
	bs block.BlockStore
}

func NewBackend(bs block.BlockStore) *Backend {
	return &Backend{bs: bs}
}

func (b *Backend) Name() string {
	return "map"
}

func (b *Backend) New(seed []*peer.NodeInfo) (state.State, error) {
	st := &State{bs: b.bs}
	st.s.ensure()
	for _, n := range seed {
		st.s.Checkers[n.ID] = n.Clone()
	}
	return st, nil
}

func (b *Backend) Load(root *oid.Oid) (state.State, error) {
	st := &State{bs: b.bs}
	if err := state.GetObject(b.bs, root, &st.s); err != nil {
		return nil, err
	}
	st.s.ensure()
	return st, nil
}

type State struct {
	bs block.BlockStore
	s  snapshot
}

func upsert(m map[peer.ID]*peer.NodeInfo, caller peer.ActorID, info *peer.NodeInfo) error {
	if existing, ok := m[info.ID]; ok {
		if err := state.EnsureOwner(caller, existing); err != nil {
			return err
		}
		// A different creator in info is an ownership transfer
	}
	m[info.ID] = info.Clone()
	return nil
}

func remove(m map[peer.ID]*peer.NodeInfo, caller peer.ActorID, id peer.ID) error {
	existing, ok := m[id]
	if !ok {
		return state.NotExists(id)
	}
	if err := state.EnsureOwner(caller, existing); err != nil {
		return err
	}
	delete(m, id)
	return nil
}

func list(m map[peer.ID]*peer.NodeInfo) []*peer.NodeInfo {
	out := make([]*peer.NodeInfo, 0, len(m))
	for _, n := range m {
		out = append(out, n.Clone())
	}
	peer.SortByID(out)
	return out
}

func get(m map[peer.ID]*peer.NodeInfo, id peer.ID) *peer.NodeInfo {
	if n, ok := m[id]; ok {
		return n.Clone()
	}
	return nil
}

func (st *State) UpsertMember(caller peer.ActorID, info *peer.NodeInfo) error {
	return upsert(st.s.Members, caller, info)
}

func (st *State) RemoveMember(caller peer.ActorID, id peer.ID) error {
	return remove(st.s.Members, caller, id)
}

func (st *State) UpsertChecker(caller peer.ActorID, info *peer.NodeInfo) error {
	return upsert(st.s.Checkers, caller, info)
}

func (st *State) RemoveChecker(caller peer.ActorID, id peer.ID) error {
	return remove(st.s.Checkers, caller, id)
}

func (st *State) RemoveCheckerUnchecked(id peer.ID) error {
	delete(st.s.Checkers, id)
	return nil
}

func (st *State) Member(id peer.ID) (*peer.NodeInfo, error) {
	return get(st.s.Members, id), nil
}

func (st *State) Checker(id peer.ID) (*peer.NodeInfo, error) {
	return get(st.s.Checkers, id), nil
}

func (st *State) IsChecker(id peer.ID) (bool, error) {
	_, ok := st.s.Checkers[id]
	return ok, nil
}

func (st *State) Members() ([]*peer.NodeInfo, error) {
	return list(st.s.Members), nil
}

func (st *State) Checkers() ([]*peer.NodeInfo, error) {
	return list(st.s.Checkers), nil
}

func (st *State) TotalMembers() (int, error) {
	return len(st.s.Members), nil
}

func (st *State) TotalCheckers() (int, error) {
	return len(st.s.Checkers), nil
}

func (st *State) Votes(subject peer.ID) (*peer.Votes, error) {
	if v, ok := st.s.OfflineCheckers[subject]; ok {
		return v.Clone(), nil
	}
	return nil, nil
}

func (st *State) RecordVote(subject peer.ID, voter peer.ID, epoch peer.ChainEpoch, window peer.ChainEpoch) (*peer.Votes, error) {
	next, err := peer.AdmitVote(st.s.OfflineCheckers[subject], voter, epoch, window)
	if err != nil {
		return nil, err
	}
	st.s.OfflineCheckers[subject] = next
	return next.Clone(), nil
}

func (st *State) ClearVotes(subject peer.ID) error {
	delete(st.s.OfflineCheckers, subject)
	return nil
}

func (st *State) PurgeStaleVotes(epoch peer.ChainEpoch, window peer.ChainEpoch) (int, error) {
	purged := 0
	for subject, v := range st.s.OfflineCheckers {
		if v.Stale(epoch, window) {
			delete(st.s.OfflineCheckers, subject)
			purged++
		}
	}
	return purged, nil
}

func (st *State) Flush() (*oid.Oid, error) {
	root, err := state.PutObject(st.bs, oid.OidTypeState, &st.s)
	if err != nil {
		return nil, err
	}
	log.Debugf("mapstate.Flush: %d members, %d checkers, %d vote records -> %s",
		len(st.s.Members), len(st.s.Checkers), len(st.s.OfflineCheckers), root.String())
	return root, nil
}
