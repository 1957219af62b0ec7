// Package protocol defines the request and response bodies of the Registry RPC service.
// Invoke takes a host.Message and replies with a host.Receipt.
package protocol

import (
	"uptime/datamodel/block"
	"uptime/peer"
)

const (
	ServiceName = "Registry"

	MethodInvoke   = ServiceName + ".Invoke"
	MethodCheckers = ServiceName + ".Checkers"
	MethodMembers  = ServiceName + ".Members"
	MethodVotes    = ServiceName + ".Votes"
	MethodHistory  = ServiceName + ".History"
	MethodStatus   = ServiceName + ".Status"
)

// Largest number of commits returned by a single History call
const MaxHistoryBatch = 1000

type ListRequest struct{}

type ListResponse struct {
	Nodes []*peer.NodeInfo `cbor:"1,keyasint,omitempty"` // Sorted by peer ID
}

type VotesRequest struct {
	Subject peer.ID `cbor:"1,keyasint"` // Checker the votes were cast against
}

type VotesResponse struct {
	Votes *peer.Votes `cbor:"1,keyasint,omitempty"` // Nil when no record exists
}

type HistoryRequest struct {
	From uint64 `cbor:"1,keyasint,omitempty"` // First sequence number, inclusive
	To   uint64 `cbor:"2,keyasint,omitempty"` // Last sequence number, inclusive
}

type HistoryResponse struct {
	Commits []*block.Commit `cbor:"1,keyasint,omitempty"`
}

type StatusRequest struct{}

type StatusResponse struct {
	Initialized bool            `cbor:"1,keyasint,omitempty"`
	Head        *block.Commit   `cbor:"2,keyasint,omitempty"`
	Epoch       peer.ChainEpoch `cbor:"3,keyasint"` // Epoch the next message would run at
	Window      peer.ChainEpoch `cbor:"4,keyasint"`
	Layout      string          `cbor:"5,keyasint,omitempty"` // State backend name
}
