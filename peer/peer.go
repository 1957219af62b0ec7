// Package peer holds the value types of the registry: peer identities, node records and offline votes.
package peer

import (
	"errors"
	"slices"
)

// ID is a libp2p peer identity string. Equality is exact string equality.
type ID string

// MultiAddr is a connection or health-check endpoint, e.g. /ip4/10.1.1.1/tcp/8081/http/get/healthcheck
type MultiAddr = string

// ActorID is the account that authorizes changes to a record.
type ActorID uint64

// ChainEpoch is the logical clock supplied by the host.
type ChainEpoch int64

var ErrEmptyID = errors.New("peer id is empty")
var ErrNoCreator = errors.New("node creator is not set")

// NodeInfo describes a registered peer. Only the creator may edit or remove it.
type NodeInfo struct {
	ID        ID          `cbor:"1,keyasint" json:"id"`                               // Peer identity
	Creator   ActorID     `cbor:"2,keyasint" json:"creator"`                          // Owner of the record
	Addresses []MultiAddr `cbor:"3,keyasint,omitempty" json:"addresses,omitempty"` // Liveness-check endpoints
}

func NewNodeInfo(id ID, creator ActorID, addresses []MultiAddr) *NodeInfo {
	return &NodeInfo{ID: id, Creator: creator, Addresses: addresses}
}

// Validate rejects records that must never be stored. Account 0 is reserved for the host.
func (n *NodeInfo) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if n.Creator == 0 {
		return ErrNoCreator
	}
	return nil
}

func (n *NodeInfo) Clone() *NodeInfo {
	return &NodeInfo{
		ID:        n.ID,
		Creator:   n.Creator,
		Addresses: slices.Clone(n.Addresses),
	}
}

func (n *NodeInfo) Equal(other *NodeInfo) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.ID == other.ID && n.Creator == other.Creator && slices.Equal(n.Addresses, other.Addresses)
}

// SortByID orders records by peer identity so listings are stable.
func SortByID(nodes []*NodeInfo) {
	slices.SortFunc(nodes, func(a, b *NodeInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
