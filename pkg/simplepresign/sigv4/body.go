package sigv4

import (
	"crypto/sha256"
	"encoding/hex"
)

// Payload hash sentinels understood by SigV4 services
const (
	UnsignedPayloadHash                 = "UNSIGNED-PAYLOAD"
	StreamingUnsignedPayloadTrailerHash = "STREAMING-UNSIGNED-PAYLOAD-TRAILER"

	// EmptyPayloadHash is the hex SHA-256 of an empty body
	EmptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// SignableBody describes the payload a signature is computed over. The set of
// implementations is closed: UnsignedPayload, Bytes,
// StreamingUnsignedPayloadTrailer and Precomputed.
//
// Values are immutable and cheap to copy.
type SignableBody interface {
	// PayloadHash returns the value placed in the canonical request
	PayloadHash() string
	String() string

	signableBody()
}

// UnsignedPayload leaves the payload out of the signature
type UnsignedPayload struct{}

func (UnsignedPayload) PayloadHash() string { return UnsignedPayloadHash }
func (UnsignedPayload) String() string { return "UnsignedPayload" }
func (UnsignedPayload) signableBody() {}

// StreamingUnsignedPayloadTrailer marks a streamed body of unknown size whose
// checksum travels in a trailer
type StreamingUnsignedPayloadTrailer struct{}

func (StreamingUnsignedPayloadTrailer) PayloadHash() string {
	return StreamingUnsignedPayloadTrailerHash
}
func (StreamingUnsignedPayloadTrailer) String() string { return "StreamingUnsignedPayloadTrailer" }
func (StreamingUnsignedPayloadTrailer) signableBody() {}

// Bytes signs an in-memory payload. The byte slice is shared, never copied, so
// callers must not modify it after handing it over.
type Bytes struct {
	data []byte
}

// BytesBody wraps data as a signable body
func BytesBody(data []byte) Bytes {
	return Bytes{data: data}
}

// Data returns the wrapped payload
func (b Bytes) Data() []byte {
	return b.data
}

func (b Bytes) PayloadHash() string {
	sum := sha256.Sum256(b.data)
	return hex.EncodeToString(sum[:])
}

func (b Bytes) String() string { return "Bytes" }
func (Bytes) signableBody() {}

// Precomputed carries a payload digest computed elsewhere
type Precomputed string

func (p Precomputed) PayloadHash() string { return string(p) }
func (p Precomputed) String() string { return "Precomputed(" + string(p) + ")" }
func (Precomputed) signableBody() {}
