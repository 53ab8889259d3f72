// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
//
// Package transport implements api.Transport over plain TCP and
// TLS-over-TCP. Every method blocks; the connection state machine always
// calls through a task submitted to its Reactor.
package transport

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"time"

	"github.com/momentics/hioload-ws/api"
)

// TCP is the plain-text api.Transport implementation.
type TCP struct {
	conn net.Conn
	br   *bufio.Reader
}

// NewTCP constructs an unconnected TCP transport.
func NewTCP() *TCP {
	return &TCP{}
}

func (t *TCP) Connect(endpoint string, timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", endpoint)
	if err != nil {
		return err
	}
	t.conn = conn
	t.br = bufio.NewReader(conn)
	return nil
}

// Handshake is a no-op for plain TCP.
func (t *TCP) Handshake() error { return nil }

// ReadUntil generalizes to any delimiter ending in the byte ReadBytes
// stops at: repeatedly read up to that byte and check whether the
// accumulated tail matches delim, since bufio.Reader only natively
// stops at a single byte.
func (t *TCP) ReadUntil(delim []byte) ([]byte, error) {
	return readUntil(t.br, delim)
}

// readUntil generalizes bufio.Reader.ReadBytes (which only stops at a
// single byte) to an arbitrary multi-byte delimiter: keep reading up to
// the delimiter's last byte and check whether the accumulated tail
// matches, repeating on a near-miss.
func readUntil(br *bufio.Reader, delim []byte) ([]byte, error) {
	if len(delim) == 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "transport: empty delimiter")
	}
	last := delim[len(delim)-1]
	var acc []byte
	for {
		chunk, err := br.ReadBytes(last)
		if err != nil {
			return nil, err
		}
		acc = append(acc, chunk...)
		if bytes.HasSuffix(acc, delim) {
			return acc, nil
		}
	}
}

func (t *TCP) ReadExactly(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *TCP) ReadSome() ([]byte, error) {
	buf := make([]byte, 4096)
	n, err := t.br.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (t *TCP) WriteAll(data []byte) error {
	for len(data) > 0 {
		n, err := t.conn.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (t *TCP) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
