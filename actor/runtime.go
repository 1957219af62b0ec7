package actor

import (
	"uptime/oid"
	"uptime/peer"
)

// Runtime is what the host hands to every invocation: who is calling, when, and where the state lives.
type Runtime interface {
	// Caller is the account that signed the message.
	Caller() peer.ActorID

	// CallerPeer is the peer identity the host authenticated for the message.
	CallerPeer() peer.ID

	// CurrEpoch is the host's logical clock. It never decreases between invocations.
	CurrEpoch() peer.ChainEpoch

	// Root returns the current state root. It fails with block.ErrNoRoot before the constructor ran.
	Root() (*oid.Oid, error)

	// SetRoot publishes a new state root. Only called after a successful mutation.
	SetRoot(*oid.Oid) error
}
