// Package state defines the registry state: the members and checkers collections and the
// offline vote ledger, with ownership-checked mutations. Backends decide how the state is laid
// out in the block store.
package state

import (
	"uptime/oid"
	"uptime/peer"
)

// State is one loaded snapshot of the registry. Mutations stay in memory until Flush.
// A State is not safe for concurrent use; the host serializes calls.
type State interface {
	// UpsertMember inserts or replaces a member. Replacing requires caller to own the stored record.
	UpsertMember(caller peer.ActorID, info *peer.NodeInfo) error
	// RemoveMember deletes a member owned by caller. Fails with NotExists or NotOwner.
	RemoveMember(caller peer.ActorID, id peer.ID) error
	// UpsertChecker inserts or replaces a checker. Replacing requires caller to own the stored record.
	UpsertChecker(caller peer.ActorID, info *peer.NodeInfo) error
	// RemoveChecker deletes a checker owned by caller. Fails with NotExists or NotOwner.
	RemoveChecker(caller peer.ActorID, id peer.ID) error
	// RemoveCheckerUnchecked deletes a checker without any ownership check. Used for eviction.
	RemoveCheckerUnchecked(id peer.ID) error

	// Member and Checker return nil without error when the record is absent.
	Member(id peer.ID) (*peer.NodeInfo, error)
	Checker(id peer.ID) (*peer.NodeInfo, error)
	IsChecker(id peer.ID) (bool, error)
	Members() ([]*peer.NodeInfo, error)
	Checkers() ([]*peer.NodeInfo, error)
	TotalMembers() (int, error)
	TotalCheckers() (int, error)

	// Votes returns the vote record of subject or nil.
	Votes(subject peer.ID) (*peer.Votes, error)
	// RecordVote admits voter into the record of subject and returns the updated record.
	RecordVote(subject peer.ID, voter peer.ID, epoch peer.ChainEpoch, window peer.ChainEpoch) (*peer.Votes, error)
	// ClearVotes drops the record of subject.
	ClearVotes(subject peer.ID) error
	// PurgeStaleVotes drops every record whose window expired at epoch and returns how many were dropped.
	PurgeStaleVotes(epoch peer.ChainEpoch, window peer.ChainEpoch) (int, error)

	// Flush writes the snapshot into the block store and returns the root OID.
	Flush() (*oid.Oid, error)
}

// Backend creates and loads states in one layout.
type Backend interface {
	// Name identifies the layout in logs and config.
	Name() string
	// New builds the initial state: checkers seeded from the given records, no members, no votes.
	New(seed []*peer.NodeInfo) (State, error)
	// Load materializes the state stored under root.
	Load(root *oid.Oid) (State, error)
}
