// File: protocol/handshake.go
package protocol

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/textproto"
	"strings"
)

const (
	WebSocketGUID            = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	MaxHandshakeHeadersSize  = 8192
	HeaderConnection         = "Connection"
	HeaderUpgrade            = "Upgrade"
	HeaderSecWebSocketKey    = "Sec-WebSocket-Key"
	HeaderSecWebSocketAccept = "Sec-WebSocket-Accept"
	HeaderSecWebSocketVer    = "Sec-WebSocket-Version"
	RequiredWebSocketVersion = "13"
)

var ErrInvalidUpgradeHeaders = fmt.Errorf("protocol: response missing Upgrade/Connection tokens")

// ComputeAccept derives the Sec-WebSocket-Accept value a conformant server
// must return for the given client-generated Sec-WebSocket-Key.
func ComputeAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyUpgradeResponse checks that hdr carries the Upgrade/Connection
// tokens an RFC 6455 handshake response must have. It does not require
// Sec-WebSocket-Accept to be present or to match ComputeAccept(key):
// validating it is not mandated, and callers that want to know whether it
// matched use AcceptMatches, e.g. for a debug-level log rather than a
// failed upgrade.
func VerifyUpgradeResponse(hdr http.Header, key string) error {
	if !headerContainsToken(hdr, HeaderConnection, "Upgrade") ||
		!headerContainsToken(hdr, HeaderUpgrade, "websocket") {
		return ErrInvalidUpgradeHeaders
	}
	return nil
}

// AcceptMatches reports whether hdr's Sec-WebSocket-Accept equals what
// ComputeAccept(key) produces. A missing header is not a match.
func AcceptMatches(hdr http.Header, key string) bool {
	return hdr.Get(HeaderSecWebSocketAccept) == ComputeAccept(key)
}

// ParseHeaders reads MIME-style header lines (as found after an HTTP
// status line) from br and rejects the block when its names and values
// total more than MaxHandshakeHeadersSize bytes. The limit is checked
// after the whole block has been read, so it does not cap the memory
// used while reading.
func ParseHeaders(br *bufio.Reader) (http.Header, error) {
	tp := textproto.NewReader(br)
	mh, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("protocol: read headers: %w", err)
	}
	total := 0
	for k, vs := range mh {
		total += len(k)
		for _, v := range vs {
			total += len(v)
		}
	}
	if total > MaxHandshakeHeadersSize {
		return nil, fmt.Errorf("protocol: headers exceed %d bytes", MaxHandshakeHeadersSize)
	}
	return http.Header(mh), nil
}

func headerContainsToken(h http.Header, headerName, token string) bool {
	vals := h[http.CanonicalHeaderKey(headerName)]
	token = strings.ToLower(token)
	for _, v := range vals {
		for _, p := range strings.Split(v, ",") {
			if strings.ToLower(strings.TrimSpace(p)) == token {
				return true
			}
		}
	}
	return false
}
