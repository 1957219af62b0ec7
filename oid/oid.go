package oid

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/json"
	"errors"

	log "github.com/sirupsen/logrus"
)

type OidType int

const (
	OidVersionV01 = 0x01

	OidTypeRaw        = 0x00 // Opaque payload
	OidTypeState      = 0x01 // Registry state root (whole snapshot or tree root)
	OidTypeCollection = 0x02 // Collection node of a tree state: bucket index and element count
	OidTypeBucket     = 0x03 // Leaf bucket of a tree state collection

	OidPaddingByte = 0xAA
)

var ErrorHashNot32Bytes = errors.New("hash must be 32 bytes")
var ErrorInvalidOidString = errors.New("invalid OID string")
var ErrorInvalidOidFormat = errors.New("invalid OID format")

// Byte structure of an OID is as follows <version:1><padding:1><type:1><hash:32>
// Raw bytes are encoded by Base32

// Oid holds the string representation of the OID as well as cached type and binary representation.
// Oid implements the MarshalBinary and UnmarshalBinary interfaces so CBOR stores it as a byte string.
type Oid struct {
	b [35]byte
	t OidType
	s string
}

func (o *Oid) String() string {
	return o.s
}

func (o *Oid) Type() OidType {
	return o.t
}

// Hash returns the content hash part of the OID.
func (o *Oid) Hash() [32]byte {
	var h [32]byte
	copy(h[:], o.b[3:])
	return h
}

// IsZero reports whether the OID was never assigned.
func (o *Oid) IsZero() bool {
	return o.b[0] == 0
}

func (o *Oid) MarshalBinary() ([]byte, error) {
	return o.b[:], nil
}

func (o *Oid) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return ErrorInvalidOidFormat
	}

	switch data[0] {
	case OidVersionV01:
		if len(data) != 35 {
			return ErrorInvalidOidString
		}
		if data[1] != OidPaddingByte {
			return ErrorInvalidOidString
		}
		o.t = OidType(data[2])
		o.s = base32.StdEncoding.EncodeToString(data)
		copy(o.b[:], data)
	default:
		return ErrorInvalidOidFormat
	}

	return nil
}

func (o *Oid) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *Oid) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	oid, err := FromString(s)
	if err != nil {
		return err
	}
	*o = *oid
	return nil
}

func Encode(t OidType, hash [32]byte) *Oid {
	oidbytes := make([]byte, 0, 35)
	oidbytes = append(oidbytes, byte(OidVersionV01), OidPaddingByte, byte(t))
	oidbytes = append(oidbytes, hash[:]...)

	o := &Oid{
		t: t,
		s: base32.StdEncoding.EncodeToString(oidbytes),
	}
	copy(o.b[:], oidbytes)
	return o
}

// Sum derives the OID of a payload from its SHA256 hash.
func Sum(t OidType, data []byte) *Oid {
	return Encode(t, sha256.Sum256(data))
}

// Verify checks that data hashes to the OID.
func (o *Oid) Verify(data []byte) bool {
	return sha256.Sum256(data) == o.Hash()
}

func FromString(s string) (*Oid, error) {
	oidBytes, err := base32.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}

	o := &Oid{}
	if err := o.UnmarshalBinary(oidBytes); err != nil {
		return nil, err
	}
	return o, nil
}

func FromStringMustParse(s string) *Oid {
	o, err := FromString(s)
	if err != nil {
		log.Fatalf("Failed to parse OID: %v", err)
	}
	return o
}

// Equal helper
func (o *Oid) Equal(other *Oid) bool {
	if o == nil && other == nil {
		return true
	}
	if o == nil || other == nil {
		return false
	}
	return o.b == other.b
}
