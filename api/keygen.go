// File: api/keygen.go
//
// External collaborators for the WebSocket handshake: a source of
// handshake keys/masks and a UTF-8 validator for outbound text frames.

package api

// KeyGenerator mints values the handshake and frame codec need fresh
// randomness for. The default implementation (see protocol.CryptoRand)
// sources both from crypto/rand.
type KeyGenerator interface {
	// SecWebSocketKey returns a base64-encoded 16-byte value for the
	// Sec-WebSocket-Key request header.
	SecWebSocketKey() string

	// FrameMask returns a 32-bit client-to-server frame mask.
	FrameMask() [4]byte
}

// UTF8Validator checks that outbound text-frame payloads are valid UTF-8
// before they are sent, per spec: TEXT payloads produced by the client
// must be valid UTF-8.
type UTF8Validator interface {
	Valid(b []byte) bool
}
