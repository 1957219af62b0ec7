package host

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"uptime/exitcode"
	"uptime/oid"
	"uptime/peer"
)

type MethodNum uint64

const (
	MethodConstructor   MethodNum = 1
	MethodNewChecker    MethodNum = 2
	MethodNewMember     MethodNum = 3
	MethodEditChecker   MethodNum = 4
	MethodEditMember    MethodNum = 5
	MethodRemoveChecker MethodNum = 6
	MethodRemoveMember  MethodNum = 7
	MethodReportChecker MethodNum = 8
	MethodCompactVotes  MethodNum = 9
)

var methodNames = map[MethodNum]string{
	MethodConstructor:   "Constructor",
	MethodNewChecker:    "NewChecker",
	MethodNewMember:     "NewMember",
	MethodEditChecker:   "EditChecker",
	MethodEditMember:    "EditMember",
	MethodRemoveChecker: "RemoveChecker",
	MethodRemoveMember:  "RemoveMember",
	MethodReportChecker: "ReportChecker",
	MethodCompactVotes:  "CompactVotes",
}

func (m MethodNum) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", uint64(m))
}

// MethodByName resolves a method name as printed by String.
func MethodByName(name string) (MethodNum, bool) {
	for m, s := range methodNames {
		if s == name {
			return m, true
		}
	}
	return 0, false
}

// Message is one call into the registry. Caller and Peer are trusted by the host.
type Message struct {
	Method MethodNum    `cbor:"1,keyasint"`
	Caller peer.ActorID `cbor:"2,keyasint"`
	Peer   peer.ID      `cbor:"3,keyasint,omitempty"`
	Params []byte       `cbor:"4,keyasint,omitempty"` // CBOR-encoded method parameters
}

// Receipt reports the outcome of a message. Seq and Root are set when the message committed a new state.
type Receipt struct {
	ExitCode exitcode.Code `cbor:"1,keyasint" json:"exit_code"`
	Message  string        `cbor:"2,keyasint,omitempty" json:"message,omitempty"`
	Seq      uint64        `cbor:"3,keyasint,omitempty" json:"seq,omitempty"`
	Root     *oid.Oid      `cbor:"4,keyasint,omitempty" json:"root,omitempty"`
	Return   []byte        `cbor:"5,keyasint,omitempty" json:"return,omitempty"` // CBOR-encoded method result
}

func (r *Receipt) Ok() bool {
	return r.ExitCode == exitcode.Ok
}

// Err turns a failed receipt back into a typed error.
func (r *Receipt) Err() error {
	if r.Ok() {
		return nil
	}
	return &exitcode.Error{Code: r.ExitCode, Msg: r.Message}
}

// ReportReturn is the result of ReportChecker.
type ReportReturn struct {
	Votes   int  `cbor:"1,keyasint" json:"votes"`
	Total   int  `cbor:"2,keyasint" json:"total"`
	Evicted bool `cbor:"3,keyasint,omitempty" json:"evicted,omitempty"`
}

// CompactReturn is the result of CompactVotes.
type CompactReturn struct {
	Purged int `cbor:"1,keyasint" json:"purged"`
}

var decMode = mustDecMode()

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

// EncodeParams encodes method parameters for Message.Params.
func EncodeParams(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

// DecodeParams decodes method parameters. Any failure is CannotDeserialize.
func DecodeParams(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return exitcode.Wrap(exitcode.CannotDeserialize, "params", err)
	}
	return nil
}
