// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development. Provides predictable,
// controllable behavior for the external collaborators the core consumes.

package fake

import (
	"bufio"
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/momentics/hioload-ws/api"
)

// Transport is a fake api.Transport backed by an in-memory scripted read
// stream and a recorded write log, for driving the connection state
// machine in tests without a real socket.
type Transport struct {
	mu sync.Mutex

	connectErr   error
	handshakeErr error

	readBuf *bufio.Reader
	feed    *bytes.Buffer

	writes [][]byte
	closed bool

	writeErr error
	readErr  error
}

// NewTransport returns an unconnected fake transport with an empty read
// stream.
func NewTransport() *Transport {
	t := &Transport{feed: &bytes.Buffer{}}
	t.readBuf = bufio.NewReader(t.feed)
	return t
}

func (t *Transport) Connect(endpoint string, timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectErr
}

func (t *Transport) Handshake() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handshakeErr
}

func (t *Transport) ReadUntil(delim []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return nil, t.readErr
	}
	last := delim[len(delim)-1]
	var acc []byte
	for {
		chunk, err := t.readBuf.ReadBytes(last)
		if err != nil {
			return nil, err
		}
		acc = append(acc, chunk...)
		if bytes.HasSuffix(acc, delim) {
			return acc, nil
		}
	}
}

func (t *Transport) ReadExactly(n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return nil, t.readErr
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.readBuf, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *Transport) ReadSome() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return nil, t.readErr
	}
	buf := make([]byte, 4096)
	n, err := t.readBuf.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (t *Transport) WriteAll(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	t.writes = append(t.writes, cp)
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Feed appends bytes the next Read* call will see, simulating data
// arriving from the peer.
func (t *Transport) Feed(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.feed.Write(data)
}

// SetConnectError makes every subsequent Connect call fail with err.
func (t *Transport) SetConnectError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectErr = err
}

// SetReadError makes every subsequent Read* call fail with err (e.g.
// io.EOF to simulate an unspecified-length identity body ending).
func (t *Transport) SetReadError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readErr = err
}

// SetWriteError makes every subsequent WriteAll call fail with err.
func (t *Transport) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// Writes returns every buffer passed to WriteAll so far.
func (t *Transport) Writes() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.writes))
	copy(out, t.writes)
	return out
}

// Closed reports whether Close has been called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

var _ api.Transport = (*Transport)(nil)
