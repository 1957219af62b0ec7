package state

import (
	"github.com/fxamacker/cbor/v2"

	"uptime/datamodel/block"
	"uptime/exitcode"
	"uptime/oid"
	"uptime/peer"
)

// Snapshots are content-addressed, so the same logical state must always encode to the same bytes.
var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Marshal encodes v with the deterministic encoding used for state blocks.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// PutObject encodes v and stores it as a block of type t.
func PutObject(bs block.BlockStore, t oid.OidType, v any) (*oid.Oid, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, exitcode.Storagef(err, "encode state object")
	}
	o, err := bs.Put(block.New(t, data))
	if err != nil {
		return nil, exitcode.Storagef(err, "put block")
	}
	return o, nil
}

// GetObject loads the block under o and decodes it into v.
func GetObject(bs block.BlockStore, o *oid.Oid, v any) error {
	b, err := bs.Get(o)
	if err != nil {
		return exitcode.Storagef(err, "get block %s", o.String())
	}
	if err := cbor.Unmarshal(b.Data, v); err != nil {
		return exitcode.Storagef(err, "decode block %s", o.String())
	}
	return nil
}

// EnsureOwner fails with NotOwner unless caller created the stored record.
func EnsureOwner(caller peer.ActorID, stored *peer.NodeInfo) error {
	if stored.Creator != caller {
		return exitcode.Wrap(exitcode.NotOwner, "peer "+string(stored.ID), nil)
	}
	return nil
}

// NotExists reports a missing record.
func NotExists(id peer.ID) error {
	return exitcode.Wrap(exitcode.NotExists, "peer "+string(id), nil)
}
