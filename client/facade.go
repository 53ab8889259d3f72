// Package client provides the user-facing handle: configure headers,
// body, and delegates, then Send/Close/Shutdown. It orchestrates pool
// acquisition/release and owns exactly one conn.Connection at a time.
package client

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/momentics/hioload-ws/conn"
	"github.com/momentics/hioload-ws/protocol"
	"github.com/momentics/hioload-ws/urlkey"
)

// Client is the application's handle to a single logical request or
// WebSocket session. Internally it may hand off to several successive
// conn.Connection instances (pool reuse, a fresh bind to a new origin),
// but never runs more than one at a time; a retry stays inside the same
// conn.Connection.
type Client struct {
	ctx *ClientContext

	mu          sync.Mutex
	url         urlkey.URL
	method      string
	headers     http.Header
	body        []byte
	isWebSocket bool

	delegates conn.Delegates
	current   *conn.Connection

	// lastContentLen is the length of rd.Content as of the previous Data
	// delivery for the in-flight response, so the wrapped Data hook can
	// count the bytes a chunked delivery actually added rather than its
	// cumulative buffer length. Reset at the start of every Send.
	lastContentLen int
}

// New creates a Client sharing ctx's pool, reactor, and dispatcher.
func New(ctx *ClientContext) *Client {
	return &Client{
		ctx:     ctx,
		method:  "GET",
		headers: make(http.Header),
	}
}

// SetURL parses and binds rawURL. Subsequent Send calls target this URL
// until SetURL is called again.
func (c *Client) SetURL(rawURL string) error {
	u, err := urlkey.Parse(rawURL)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.url = u
	c.isWebSocket = u.IsWebSocket()
	c.mu.Unlock()
	return nil
}

// SetRequestType sets the HTTP method for non-WebSocket requests.
func (c *Client) SetRequestType(method string) {
	c.mu.Lock()
	c.method = method
	c.mu.Unlock()
}

// SetHeader sets a single request header, replacing any prior value.
func (c *Client) SetHeader(name, value string) {
	c.mu.Lock()
	c.headers.Set(name, value)
	c.mu.Unlock()
}

// SetHeaders replaces the entire request header set.
func (c *Client) SetHeaders(h http.Header) {
	c.mu.Lock()
	c.headers = h.Clone()
	c.mu.Unlock()
}

// SetBody sets the request body for POST/PUT.
func (c *Client) SetBody(body []byte) {
	c.mu.Lock()
	c.body = body
	c.mu.Unlock()
}

// SetStateReceiver installs the socket-state-transition callback.
func (c *Client) SetStateReceiver(fn func(old, next conn.SocketState)) {
	c.mu.Lock()
	c.delegates.State = fn
	c.mu.Unlock()
}

// SetDataReceiver installs the HTTP response callback.
func (c *Client) SetDataReceiver(fn func(rd *protocol.RequestData)) {
	c.mu.Lock()
	c.delegates.Data = fn
	c.mu.Unlock()
}

// SetFrameReceiver installs the WebSocket frame callback.
func (c *Client) SetFrameReceiver(fn func(f *protocol.Frame)) {
	c.mu.Lock()
	c.delegates.Frame = fn
	c.mu.Unlock()
}

// SetErrorHandler installs the callback that receives the error behind
// each disconnect (transport or protocol failure). Usage errors are not
// passed to it; the Send* calls return them instead.
func (c *Client) SetErrorHandler(fn func(err error)) {
	c.mu.Lock()
	c.delegates.Error = fn
	c.mu.Unlock()
}

// ClearDelegates removes every installed callback.
func (c *Client) ClearDelegates() {
	c.mu.Lock()
	c.delegates = conn.Delegates{}
	c.mu.Unlock()
}

// Send acquires a pooled connection for the bound URL's origin when one
// is available and reusable, or creates a fresh one, then drives it
// through conn.Connection.Send.
func (c *Client) Send() error {
	c.mu.Lock()
	u, method, headers, body, isWS := c.url, c.method, c.headers, c.body, c.isWebSocket
	c.lastContentLen = 0
	delegates := c.wrapDelegates()
	cur := c.current
	c.mu.Unlock()

	if u.Host == "" {
		return fmt.Errorf("client: no URL bound, call SetURL first")
	}

	if cur == nil || !cur.Connected() || cur.Origin() != u.Origin() {
		if pooled, ok := c.ctx.Pool.Acquire(u.Origin()); ok {
			cur = pooled.(*conn.Connection)
		} else {
			cur = conn.New(conn.Options{
				Reactor:        c.ctx.Reactor,
				Dispatcher:     c.ctx.Dispatcher,
				KeyGen:         c.ctx.KeyGen,
				Logger:         c.ctx.Logger,
				UTF8:           c.ctx.UTF8,
				UserAgent:      c.ctx.UserAgent,
				ClientID:       c.ctx.ClientID,
				ConnectTimeout: c.ctx.connectTimeout,
				TLS:            c.ctx.tls,
				NewTransport:   c.ctx.NewTransport,
				OnBytesSent:    c.ctx.Counters.addSent,
			})
		}
		cur.SetDelegates(delegates)
		c.mu.Lock()
		c.current = cur
		c.mu.Unlock()
	}

	c.ctx.Counters.addRequest()
	return cur.Send(u, method, headers, body, isWS)
}

// wrapDelegates returns the Delegates a Connection should run: the
// application's own callbacks, plus a hook that parks a non-WebSocket
// connection back in the pool once its response is fully delivered and
// it remains CONNECTED (HTTP keep-alive reuse).
func (c *Client) wrapDelegates() conn.Delegates {
	app := c.delegates
	return conn.Delegates{
		State: app.State,
		Frame: app.Frame,
		Error: app.Error,
		Data: func(rd *protocol.RequestData) {
			if app.Data != nil {
				app.Data(rd)
			}
			c.mu.Lock()
			delta := len(rd.Content) - c.lastContentLen
			c.lastContentLen = len(rd.Content)
			c.mu.Unlock()
			if delta > 0 {
				c.ctx.Counters.addReceived(delta)
			}
			if rd.Done && !c.isWebSocketBound() {
				c.mu.Lock()
				cur := c.current
				c.mu.Unlock()
				if cur != nil && cur.Connected() {
					c.ctx.Pool.Release(cur)
				}
			}
		},
	}
}

func (c *Client) isWebSocketBound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isWebSocket
}

// Close closes the active connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	cur := c.current
	c.current = nil
	c.mu.Unlock()
	if cur == nil {
		return nil
	}
	return cur.Close()
}

// Shutdown closes the active connection and drains/tears down the
// shared ClientContext. Use this only when no other Client shares ctx.
func (c *Client) Shutdown() error {
	closeErr := c.Close()
	if err := c.ctx.Shutdown(); err != nil {
		return err
	}
	return closeErr
}

// SendText sends a WebSocket TEXT frame over the active connection.
func (c *Client) SendText(payload []byte) error {
	return c.withActive(func(cur *conn.Connection) error { return cur.SendText(payload) })
}

// SendBinary sends a WebSocket BINARY frame over the active connection.
func (c *Client) SendBinary(payload []byte) error {
	return c.withActive(func(cur *conn.Connection) error { return cur.SendBinary(payload) })
}

// SendPing sends a WebSocket PING frame over the active connection.
func (c *Client) SendPing(payload []byte) error {
	return c.withActive(func(cur *conn.Connection) error { return cur.SendPing(payload) })
}

// SendPong sends a WebSocket PONG frame over the active connection.
func (c *Client) SendPong(payload []byte) error {
	return c.withActive(func(cur *conn.Connection) error { return cur.SendPong(payload) })
}

// SendClose sends a WebSocket CLOSE frame over the active connection.
func (c *Client) SendClose(payload []byte) error {
	return c.withActive(func(cur *conn.Connection) error { return cur.SendClose(payload) })
}

func (c *Client) withActive(fn func(cur *conn.Connection) error) error {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return fmt.Errorf("client: no active connection")
	}
	return fn(cur)
}
