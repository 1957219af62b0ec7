package crpc

// RequestHeader precedes every request body on the wire
type RequestHeader struct {
	Seq    uint64 `cbor:"1,keyasint,omitempty"`
	Method string `cbor:"2,keyasint,omitempty"` // "Service.Method"
}

// ResponseHeader precedes a response body. When Err is set no body follows.
type ResponseHeader struct {
	Seq uint64 `cbor:"1,keyasint,omitempty"`
	Err string `cbor:"2,keyasint,omitempty"`
}
