// Package urlkey implements the URL value type and pool origin key used
// throughout the client: {protocol, host, port, endpoint}, with the
// secure/websocket invariants and the origin-equality reuse policy spec §4.1
// describes as otherwise-opaque to callers.
package urlkey

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// URL is the client's own small URL value type, deliberately narrower than
// net/url.URL: the core only ever needs scheme/host/port/path+query, and
// keeping it a flat struct makes OriginKey and CanReuseFor trivial value
// comparisons instead of string surgery at every call site.
type URL struct {
	Protocol string // one of http, https, ws, wss (lowercased by Parse)
	Host     string
	Port     int
	Endpoint string // path + query, without a leading slash
}

// defaultPorts maps a scheme to its implicit port when none is given.
var defaultPorts = map[string]int{
	"http":  80,
	"https": 443,
	"ws":    80,
	"wss":   443,
}

// Parse interprets rawURL as an absolute http/https/ws/wss URL.
func Parse(rawURL string) (URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return URL{}, fmt.Errorf("urlkey: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if _, ok := defaultPorts[scheme]; !ok {
		return URL{}, fmt.Errorf("urlkey: unsupported protocol %q", u.Scheme)
	}
	port := defaultPorts[scheme]
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return URL{}, fmt.Errorf("urlkey: invalid port %q: %w", p, err)
		}
		port = n
	}
	endpoint := strings.TrimPrefix(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		endpoint += "?" + u.RawQuery
	}
	return URL{
		Protocol: scheme,
		Host:     u.Hostname(),
		Port:     port,
		Endpoint: endpoint,
	}, nil
}

// Secure reports whether the protocol requires TLS.
func (u URL) Secure() bool {
	switch strings.ToLower(u.Protocol) {
	case "https", "wss":
		return true
	default:
		return false
	}
}

// IsWebSocket reports whether the protocol is a WebSocket scheme.
func (u URL) IsWebSocket() bool {
	switch strings.ToLower(u.Protocol) {
	case "ws", "wss":
		return true
	default:
		return false
	}
}

// OriginKey is the stable pool-bucket identifier: lower(protocol) + "." +
// lower(host) + "." + decimal(port). Matches spec §4.1/§6 exactly.
type OriginKey string

// Origin computes u's OriginKey.
func (u URL) Origin() OriginKey {
	return OriginKey(strings.ToLower(u.Protocol) + "." + strings.ToLower(u.Host) + "." + strconv.Itoa(u.Port))
}

// CanReuseFor reports whether a connection already established for other
// may be reused to serve a request to u without reconnecting. Reuse is
// origin-scoped only — the path/query changes per request, so it is
// deliberately excluded, mirroring the original source's
// URL::CanUseConnection (endpoint never enters into the comparison).
func (u URL) CanReuseFor(other URL) bool {
	return u.Origin() == other.Origin()
}

// String renders the URL back to its wire form, primarily for logging.
func (u URL) String() string {
	return fmt.Sprintf("%s://%s:%d/%s", u.Protocol, u.Host, u.Port, u.Endpoint)
}
