package oid

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestSumIsDeterministic(t *testing.T) {
	a := Sum(OidTypeState, []byte("registry"))
	b := Sum(OidTypeState, []byte("registry"))
	if !a.Equal(b) {
		t.Fatalf("OIDs differ for identical content: %s != %s", a, b)
	}

	c := Sum(OidTypeBucket, []byte("registry"))
	if a.Equal(c) {
		t.Fatalf("OIDs of different types must differ")
	}
	if c.Type() != OidTypeBucket {
		t.Fatalf("Type = %d, want %d", c.Type(), OidTypeBucket)
	}
	if !a.Verify([]byte("registry")) || a.Verify([]byte("other")) {
		t.Fatalf("Verify mismatch")
	}
}

func TestStringRoundTrip(t *testing.T) {
	o := Sum(OidTypeCollection, []byte("checkers"))

	o2, err := FromString(o.String())
	if err != nil {
		t.Fatal(err)
	}
	if !o.Equal(o2) {
		t.Fatalf("Decoded OID differs: %s != %s", o, o2)
	}

	if _, err := FromString("not-base32"); err == nil {
		t.Fatalf("expected error for invalid string")
	}
}

func TestCBORRoundTrip(t *testing.T) {
	type holder struct {
		Root Oid `cbor:"1,keyasint"`
	}
	h := holder{Root: *Sum(OidTypeState, []byte("x"))}

	enc, err := cbor.Marshal(&h)
	if err != nil {
		t.Fatal(err)
	}

	var h2 holder
	if err := cbor.Unmarshal(enc, &h2); err != nil {
		t.Fatal(err)
	}
	if h.Root != h2.Root {
		t.Fatalf("Oids do not match: %v != %v", h.Root.String(), h2.Root.String())
	}
}

func TestZero(t *testing.T) {
	var o Oid
	if !o.IsZero() {
		t.Fatalf("zero OID not reported as zero")
	}
	if Sum(OidTypeRaw, nil).IsZero() {
		t.Fatalf("encoded OID reported as zero")
	}
}
