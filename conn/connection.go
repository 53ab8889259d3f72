package conn

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-ws/api"
	"github.com/momentics/hioload-ws/protocol"
	"github.com/momentics/hioload-ws/transport"
	"github.com/momentics/hioload-ws/urlkey"
)

// Delegates are the application-observable callbacks. All of them run on
// the Dispatcher's single worker, in posting order.
type Delegates struct {
	State func(old, next SocketState)
	Data  func(rd *protocol.RequestData)
	Frame func(f *protocol.Frame)
	Error func(err error)
}

// Options carries the external collaborators and per-connection defaults
// a Connection needs but never constructs itself.
type Options struct {
	Reactor        api.Reactor
	Dispatcher     api.Dispatcher
	KeyGen         api.KeyGenerator
	Logger         api.Logger
	UTF8           api.UTF8Validator
	UserAgent      string
	ClientID       string
	ConnectTimeout time.Duration
	TLS            transport.TLSConfig

	// NewTransport overrides transport construction, primarily for tests.
	// When nil, a plain TCP or TLS transport is built from url.Secure().
	NewTransport func(secure bool) api.Transport

	// OnBytesSent, when set, is called with the length of every buffer
	// successfully written to the transport (request bytes and outbound
	// WebSocket frames). ClientContext wires this to its Counters.
	OnBytesSent func(n int)
}

// Connection is the central per-socket state machine: it owns one
// Transport at a time (a fresh one on every reconnect and retry) and
// drives it from DNS resolution through
// either HTTP response delivery or the WebSocket frame read/write loop.
type Connection struct {
	opts Options

	mu            sync.Mutex
	socketState   SocketState
	internalState internalState

	url          urlkey.URL
	connectedURL urlkey.URL

	method      string
	headers     http.Header
	body        []byte
	isWebSocket bool
	wsKey       string

	transport api.Transport

	wsInBuffer      []byte
	pendingResponse *protocol.RequestData

	pendingSends *queue.Queue
	activeSends  *queue.Queue
	sendInFlight int
	sendError    bool
	wsActive     bool

	retryAttempts int
	requestsSent  int64

	delegates Delegates
}

// New constructs an idle, CLOSED connection bound to no URL yet.
func New(opts Options) *Connection {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = api.NopLogger{}
	}
	return &Connection{
		opts:         opts,
		socketState:  StateClosed,
		pendingSends: queue.New(),
		activeSends:  queue.New(),
	}
}

// SetDelegates installs the application callbacks.
func (c *Connection) SetDelegates(d Delegates) {
	c.mu.Lock()
	c.delegates = d
	c.mu.Unlock()
}

// Origin reports the origin key of the connection's last bound URL,
// satisfying pool.Conn.
func (c *Connection) Origin() urlkey.OriginKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectedURL.Origin()
}

// Connected reports whether the connection is in the CONNECTED state,
// satisfying pool.Conn.
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socketState == StateConnected
}

// State returns the current socket state.
func (c *Connection) State() SocketState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socketState
}

// Send is the entry point: bind (or rebind) a URL/request and drive the
// connection toward delivering a response or beginning a WebSocket
// session. Failures from DNS/connect/handshake are delivered
// asynchronously via onDisconnected, never synchronously from Send.
func (c *Connection) Send(u urlkey.URL, method string, headers http.Header, body []byte, isWebSocket bool) error {
	c.mu.Lock()
	canReuse := c.socketState == StateConnected && !c.isWebSocket && !isWebSocket && c.connectedURL.CanReuseFor(u)
	c.url = u
	c.method = method
	c.headers = headers
	c.body = body

	if canReuse {
		c.mu.Unlock()
		return c.opts.Reactor.Post(func() { c.emitRequest() })
	}

	if c.transport != nil {
		_ = c.transport.Close()
	}
	c.isWebSocket = isWebSocket
	c.retryAttempts = 0
	c.transport = c.newTransport(u.Secure())
	old := c.socketState
	c.socketState = StateConnecting
	c.internalState = internalResolving
	c.mu.Unlock()

	c.postState(old, StateConnecting)
	return c.opts.Reactor.Post(func() { c.doConnect() })
}

// Close initiates a client-requested close: the eventual disconnect
// callback reports CLOSED rather than DISCONNECTED, distinguishing it
// from a peer-initiated or transport-level close.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.socketState != StateConnected && c.socketState != StateConnecting {
		c.mu.Unlock()
		return nil
	}
	old := c.socketState
	c.socketState = StateClosing
	c.mu.Unlock()
	c.postState(old, StateClosing)
	return c.opts.Reactor.Post(func() {
		c.mu.Lock()
		t := c.transport
		c.mu.Unlock()
		if t != nil {
			_ = t.Close()
		}
		c.onDisconnected(nil)
	})
}

func (c *Connection) newTransport(secure bool) api.Transport {
	if c.opts.NewTransport != nil {
		return c.opts.NewTransport(secure)
	}
	if secure {
		cfg := c.opts.TLS
		if cfg.ServerName == "" {
			cfg.ServerName = c.url.Host
		}
		return transport.NewSecure(cfg)
	}
	return transport.NewTCP()
}

// doConnect resolves c.url.Host and attempts each resulting endpoint in
// order, per spec §4.4.2.
func (c *Connection) doConnect() {
	c.mu.Lock()
	host, port := c.url.Host, c.url.Port
	c.internalState = internalConnectingTCP
	c.mu.Unlock()

	ips, err := net.DefaultResolver.LookupHost(context.Background(), host)
	if err != nil || len(ips) == 0 {
		c.opts.Logger.Error("conn: resolve failed", "host", host, "err", errOrNoEndpoints(err))
		c.onDisconnected(fmt.Errorf("conn: resolve %s: %w", host, errOrNoEndpoints(err)))
		return
	}

	var lastErr error
	for _, ip := range ips {
		endpoint := net.JoinHostPort(ip, fmt.Sprint(port))
		if err := c.transport.Connect(endpoint, c.opts.ConnectTimeout); err != nil {
			lastErr = err
			continue
		}
		c.onConnectSucceeded()
		return
	}
	c.opts.Logger.Error("conn: connect failed", "host", host, "err", lastErr)
	c.onDisconnected(fmt.Errorf("conn: connect %s: %w", host, lastErr))
}

func errOrNoEndpoints(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("no endpoints resolved")
}

func (c *Connection) onConnectSucceeded() {
	if !c.url.Secure() {
		c.onConnected()
		return
	}
	if err := c.transport.Handshake(); err != nil {
		c.opts.Logger.Error("conn: tls handshake failed", "host", c.url.Host, "err", err)
		c.onDisconnected(fmt.Errorf("conn: tls handshake: %w", err))
		return
	}
	c.onConnected()
}

// onConnected runs on the dispatcher, per spec §4.4.4.
func (c *Connection) onConnected() {
	c.opts.Dispatcher.Post(func() {
		c.mu.Lock()
		switch c.socketState {
		case StateConnecting:
			old := c.socketState
			c.socketState = StateConnected
			c.connectedURL = c.url
			c.mu.Unlock()
			c.postState(old, StateConnected)
			_ = c.opts.Reactor.Post(func() { c.emitRequest() })
		case StateClosing:
			t := c.transport
			c.mu.Unlock()
			_ = c.opts.Reactor.Post(func() {
				_ = t.Close()
				c.onDisconnected(nil)
			})
		default:
			c.mu.Unlock()
			_ = c.opts.Reactor.Post(func() { c.onDisconnected(fmt.Errorf("conn: unexpected state on connect")) })
		}
	})
}

// onDisconnected runs the disconnect/close notification and, when
// eligible, schedules the one permitted retry. Per spec: a connection
// closed via client initiative (CLOSING) reports CLOSED, never
// DISCONNECTED, and is never retried.
func (c *Connection) onDisconnected(err error) {
	c.opts.Dispatcher.Post(func() {
		c.mu.Lock()
		old := c.socketState
		clientInitiated := old == StateClosing
		var retry bool
		if clientInitiated {
			c.socketState = StateClosed
		} else {
			retry = c.retryAttempts < MaxRetryAttempts
			if retry {
				c.retryAttempts++
				c.socketState = StateRetry
			} else {
				c.socketState = StateDisconnected
			}
		}
		if !retry {
			c.isWebSocket = false
			c.wsActive = false
		}
		newState := c.socketState
		c.mu.Unlock()

		if c.delegates.State != nil {
			c.delegates.State(old, newState)
		}
		if err != nil && c.delegates.Error != nil {
			c.delegates.Error(err)
		}
		if retry {
			c.opts.Logger.Debug("conn: retrying after disconnect", "attempt", c.retryAttempts, "err", err)
			c.mu.Lock()
			_ = c.transport.Close()
			c.transport = c.newTransport(c.url.Secure())
			c.socketState = StateConnecting
			c.mu.Unlock()
			if c.delegates.State != nil {
				c.delegates.State(StateRetry, StateConnecting)
			}
			_ = c.opts.Reactor.Post(func() { c.doConnect() })
		}
	})
}

func (c *Connection) postState(old, next SocketState) {
	c.opts.Dispatcher.Post(func() {
		if c.delegates.State != nil {
			c.delegates.State(old, next)
		}
	})
}

// emitRequest builds and writes the HTTP request or WebSocket handshake
// request, per spec §4.4.5.
func (c *Connection) emitRequest() {
	c.mu.Lock()
	c.internalState = internalSendingRequest
	isWS := c.isWebSocket
	method, endpoint, host := c.method, c.url.Endpoint, c.url.Host
	body := c.body
	userHeaders := c.headers
	c.mu.Unlock()

	var buf bytes.Buffer
	if isWS {
		key := c.opts.KeyGen.SecWebSocketKey()
		c.mu.Lock()
		c.wsKey = key
		c.mu.Unlock()

		fmt.Fprintf(&buf, "GET /%s HTTP/1.1\r\n", endpoint)
		fmt.Fprintf(&buf, "Host: %s\r\n", host)
		buf.WriteString("Upgrade: websocket\r\n")
		buf.WriteString("Connection: Upgrade\r\n")
		fmt.Fprintf(&buf, "Sec-WebSocket-Key: %s\r\n", key)
		buf.WriteString("Sec-WebSocket-Version: 13\r\n")
		if c.opts.UserAgent != "" {
			fmt.Fprintf(&buf, "User-Agent: %s\r\n", c.opts.UserAgent)
		}
		if c.opts.ClientID != "" {
			fmt.Fprintf(&buf, "ClientId: %s\r\n", c.opts.ClientID)
		}
		writeExtraHeaders(&buf, userHeaders)
		buf.WriteString("\r\n")
	} else {
		fmt.Fprintf(&buf, "%s /%s HTTP/1.1\r\n", method, endpoint)
		buf.WriteString("Accept: */*\r\n")
		fmt.Fprintf(&buf, "Host: %s\r\n", host)
		if c.opts.UserAgent != "" {
			fmt.Fprintf(&buf, "User-Agent: %s\r\n", c.opts.UserAgent)
		}
		buf.WriteString("Connection: Keep-Alive\r\n")
		if c.opts.ClientID != "" {
			fmt.Fprintf(&buf, "ClientId: %s\r\n", c.opts.ClientID)
		}
		if method == "POST" || method == "PUT" {
			fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(body))
		}
		writeExtraHeaders(&buf, userHeaders)
		buf.WriteString("\r\n")
		if method == "POST" || method == "PUT" {
			buf.Write(body)
		}
	}

	if buf.Len() == 0 {
		// Nothing to send: per spec, this schedules a clean close rather
		// than the disconnect/retry path — there is no peer to retry with.
		c.onClose()
		return
	}

	if err := c.transport.WriteAll(buf.Bytes()); err != nil {
		c.opts.Logger.Error("conn: write request failed", "host", host, "err", err)
		c.onDisconnected(fmt.Errorf("conn: write request: %w", err))
		return
	}
	if c.opts.OnBytesSent != nil {
		c.opts.OnBytesSent(buf.Len())
	}

	c.mu.Lock()
	c.requestsSent++
	c.internalState = internalReadingHeaders
	c.mu.Unlock()

	c.readHeaders()
}

func writeExtraHeaders(buf *bytes.Buffer, h http.Header) {
	for name, values := range h {
		for _, v := range values {
			fmt.Fprintf(buf, "%s: %s\r\n", name, v)
		}
	}
}

// readHeaders implements spec §4.4.6.
func (c *Connection) readHeaders() {
	block, err := c.transport.ReadUntil([]byte("\r\n\r\n"))
	if err != nil {
		c.onReadError(err)
		return
	}
	rd, err := protocol.ReadResponseHead(bufio.NewReader(bytes.NewReader(block)))
	if err != nil {
		c.onProtocolError(err)
		return
	}

	if rd.IsContinue() {
		c.readHeaders()
		return
	}

	if c.boundIsWebSocket() {
		c.handleUpgradeResponse(rd)
		return
	}

	switch {
	case rd.IsChunked():
		c.readChunkedBody(rd)
	default:
		c.readIdentityBody(rd)
	}
}

func (c *Connection) boundIsWebSocket() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isWebSocket
}

func (c *Connection) handleUpgradeResponse(rd *protocol.RequestData) {
	c.mu.Lock()
	key := c.wsKey
	c.mu.Unlock()

	if !rd.IsWebSocketUpgrade() {
		c.mu.Lock()
		c.sendError = true
		inFlight := c.sendInFlight
		c.mu.Unlock()
		if inFlight == 0 {
			c.onDisconnected(fmt.Errorf("conn: websocket upgrade refused: status %d", rd.StatusCode))
		}
		return
	}
	if err := protocol.VerifyUpgradeResponse(rd.Headers, key); err != nil {
		c.onProtocolError(err)
		return
	}
	if !protocol.AcceptMatches(rd.Headers, key) {
		c.opts.Logger.Debug("conn: Sec-WebSocket-Accept missing or mismatched, continuing anyway", "key", key)
	}

	rd.Done = true
	c.deliverData(rd)
	c.flushPendingSends()
	c.wsReadLoop()
}

func (c *Connection) onProtocolError(err error) {
	c.mu.Lock()
	c.sendError = true
	c.mu.Unlock()
	c.onDisconnected(api.NewError(api.ErrCodeProtocol, err.Error()))
}

func (c *Connection) onReadError(err error) {
	c.mu.Lock()
	c.sendError = true
	inFlight := c.sendInFlight
	c.mu.Unlock()
	if inFlight == 0 {
		c.onDisconnected(fmt.Errorf("conn: read: %w", err))
	}
}

// deliverData hands rd to the application. Per spec §4.4.12, a completed
// non-WebSocket response carrying Connection: close transitions the
// connection straight to CLOSED before the delegate runs, so a caller
// parking the connection for reuse (e.g. the client facade's keep-alive
// hook) observes it as no longer CONNECTED and leaves it closed.
func (c *Connection) deliverData(rd *protocol.RequestData) {
	c.opts.Dispatcher.Post(func() {
		if rd.Done && !c.boundIsWebSocket() && rd.IsConnectionClose() {
			c.closeNow()
		}
		if c.delegates.Data != nil {
			c.delegates.Data(rd)
		}
	})
}

// readIdentityBody implements spec §4.4.8.
func (c *Connection) readIdentityBody(rd *protocol.RequestData) {
	length, has := rd.ContentLength()
	if !has {
		content, err := c.readUntilEOF()
		if err != nil {
			c.onReadError(err)
			return
		}
		rd.Content = content
		rd.Done = true
		c.deliverData(rd)
		return
	}
	if length > 0 {
		content, err := c.transport.ReadExactly(int(length))
		if err != nil {
			c.onReadError(err)
			return
		}
		rd.Content = content
	}
	rd.Done = true
	c.deliverData(rd)
}

func (c *Connection) readUntilEOF() ([]byte, error) {
	var out []byte
	for {
		chunk, err := c.transport.ReadSome()
		if len(chunk) > 0 {
			out = append(out, chunk...)
		}
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
	}
}

// readChunkedBody implements spec §4.4.7.
func (c *Connection) readChunkedBody(rd *protocol.RequestData) {
	for {
		line, err := c.transport.ReadUntil([]byte("\r\n"))
		if err != nil {
			c.onReadError(err)
			return
		}
		sizeLine := bytes.TrimRight(line, "\r\n")
		if len(sizeLine) == 0 {
			continue // stray separator
		}
		if semi := bytes.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeLine = sizeLine[:semi]
		}
		size, err := parseHexSize(sizeLine)
		if err != nil {
			c.onProtocolError(err)
			return
		}

		if size == 0 {
			var trailer []byte
			for {
				line, err := c.transport.ReadUntil([]byte("\r\n"))
				if err != nil {
					c.onReadError(err)
					return
				}
				trailer = append(trailer, line...)
				if bytes.Equal(line, []byte("\r\n")) {
					break
				}
			}
			if extra, err := protocol.ReadHeadersOnly(bufio.NewReader(bytes.NewReader(trailer))); err == nil {
				for name, values := range extra {
					for _, v := range values {
						rd.Headers.Add(name, v)
					}
				}
			}
			rd.Done = true
			c.deliverData(rd)
			return
		}

		data, err := c.transport.ReadExactly(int(size))
		if err != nil {
			c.onReadError(err)
			return
		}
		if _, err := c.transport.ReadExactly(2); err != nil { // trailing CRLF after chunk data
			c.onReadError(err)
			return
		}

		rd.Content = append(rd.Content, data...)
		delivered := rd.Clone()
		delivered.Done = false
		c.deliverData(delivered)
	}
}

func parseHexSize(b []byte) (int64, error) {
	var n int64
	for _, ch := range b {
		var v int64
		switch {
		case ch >= '0' && ch <= '9':
			v = int64(ch - '0')
		case ch >= 'a' && ch <= 'f':
			v = int64(ch-'a') + 10
		case ch >= 'A' && ch <= 'F':
			v = int64(ch-'A') + 10
		default:
			return 0, fmt.Errorf("protocol: invalid chunk size byte %q", ch)
		}
		n = n*16 + v
	}
	return n, nil
}
