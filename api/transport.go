// File: api/transport.go
//
// Defines the byte-stream transport abstraction the connection state
// machine drives through DNS resolution, connect, optional handshake
// (TLS negotiation), and HTTP/WebSocket framing. A Transport owns exactly
// one underlying socket; it is created fresh for every connection attempt.

package api

import "time"

// Transport is the narrow capability set the core consumes; concrete
// implementations wrap plain TCP or TLS-over-TCP. Every method blocks the
// calling goroutine — callers run it inside a task submitted to a Reactor
// so the block never stalls the caller's own goroutine.
type Transport interface {
	// Connect dials one endpoint (host:port already resolved by the
	// caller). Returns an error on refusal or timeout.
	Connect(endpoint string, timeout time.Duration) error

	// Handshake performs protocol negotiation above the raw byte stream
	// (TLS for secure transports). It is a no-op for plain TCP.
	Handshake() error

	// ReadUntil blocks until delim has been read, returning all bytes
	// read including delim. Bytes read past delim are retained
	// internally and returned by the next Read* call.
	ReadUntil(delim []byte) ([]byte, error)

	// ReadExactly blocks until exactly n bytes are available, or returns
	// an error (including io.EOF if the peer closed early).
	ReadExactly(n int) ([]byte, error)

	// ReadSome blocks until at least 1 byte is available and returns
	// whatever is immediately available, without waiting for more.
	ReadSome() ([]byte, error)

	// WriteAll blocks until every byte of data has been written.
	WriteAll(data []byte) error

	// Close releases the underlying socket. Concurrent Read*/WriteAll
	// calls unblock with an error.
	Close() error
}
