package block

import (
	"errors"
	"time"

	"uptime/oid"
	"uptime/peer"
)

var (
	ErrNotFound  = errors.New("block not found")
	ErrCorrupted = errors.New("block content does not match its OID")
	ErrNoRoot    = errors.New("no state root committed")
)

// OID of a BLOCK is identified by the blocks content
type Block struct {
	_      struct{} `cbor:",toarray"` // This is compact, but doesn't retain the field structure
	Oid    oid.Oid
	Length uint64
	Data   []byte
}

func New(t oid.OidType, data []byte) *Block {
	return &Block{
		Oid:    *oid.Sum(t, data),
		Length: uint64(len(data)),
		Data:   data,
	}
}

// Commit records one accepted state transition: the root it produced and the message that produced it.
type Commit struct {
	Seq    uint64          `cbor:"1,keyasint"`           // Local commit sequence number, starting at 1
	Root   oid.Oid         `cbor:"2,keyasint"`           // State root after the transition
	Epoch  peer.ChainEpoch `cbor:"3,keyasint"`           // Host epoch of the message
	Method uint64          `cbor:"4,keyasint,omitempty"` // Method number of the message
	Caller peer.ActorID    `cbor:"5,keyasint,omitempty"` // Account that sent the message
	Time   time.Time       `cbor:"6,keyasint,omitempty"` // Wall clock time of the commit
}

// BlockStore defines the interface for storing and retrieving blocks of data.
type BlockStore interface {
	// Get retrieves a block from the store by its OID.
	// It returns ErrNotFound if the block does not exist.
	Get(*oid.Oid) (*Block, error)

	// Has checks if a block with the given OID exists in the store.
	Has(*oid.Oid) (bool, error)

	// Put stores a block in the store and returns its OID.
	// Putting a block that already exists is a no-op.
	Put(*Block) (*oid.Oid, error)

	// Delete removes a block from the store by its OID. Deleting a missing block is not an error.
	Delete(*oid.Oid) error

	// Enumerate returns a list of OIDs for all blocks currently in the store.
	Enumerate() ([]*oid.Oid, error)

	// Close releases any resources held by the BlockStore.
	Close() error
}

// CommitLog is the root pointer of the registry together with its history.
// Each Append assigns the next sequence number; the entry with the highest sequence is the head.
type CommitLog interface {
	// Head returns the latest commit, or ErrNoRoot if nothing was committed yet.
	Head() (*Commit, error)

	// Append stores a commit under a new sequence number (the Seq field of the argument is ignored)
	// and returns the stored entry.
	Append(*Commit) (*Commit, error)

	// GetBySeq returns the commit with the given sequence number or ErrNotFound.
	GetBySeq(uint64) (*Commit, error)

	// EnumerateBySeq returns commits with sequence numbers in the inclusive range [start, end].
	EnumerateBySeq(start uint64, end uint64) ([]*Commit, error)

	// GetSeq returns the current highest sequence number, 0 when empty.
	GetSeq() uint64

	// Close releases any resources held by the CommitLog.
	Close() error
}
