package conn

import (
	"github.com/momentics/hioload-ws/api"
	"github.com/momentics/hioload-ws/protocol"
)

// wsReadLoop implements spec §4.4.9: accumulate transport bytes, drain as
// many complete frames as the buffer holds, then block for more.
func (c *Connection) wsReadLoop() {
	for {
		chunk, err := c.transport.ReadSome()
		if err != nil {
			c.onReadError(err)
			return
		}

		c.mu.Lock()
		c.wsInBuffer = append(c.wsInBuffer, chunk...)
		buf := c.wsInBuffer
		c.mu.Unlock()

		for {
			frame, remainder, err := protocol.Parse(buf)
			if err != nil {
				c.onProtocolError(err)
				return
			}
			if frame == nil {
				break
			}
			buf = remainder
			frame.Conn = c
			c.dispatchFrame(frame)

			if frame.Op == protocol.OpClose {
				c.mu.Lock()
				c.wsInBuffer = nil
				c.pendingResponse = nil
				c.isWebSocket = false
				c.wsActive = false
				c.mu.Unlock()
				c.onClose()
				return
			}
		}

		c.mu.Lock()
		c.wsInBuffer = buf
		c.mu.Unlock()
	}
}

func (c *Connection) dispatchFrame(f *protocol.Frame) {
	c.opts.Dispatcher.Post(func() {
		if c.delegates.Frame != nil {
			c.delegates.Frame(f)
		}
	})
}

// onClose reports a peer-initiated WebSocket close, or any other
// clean-close condition that isn't a disconnect/retry case, to the
// application. Callers outside the dispatcher's own goroutine use this;
// callers already running on the dispatcher (e.g. deliverData) call
// closeNow directly so the transition lands in the same drain.
func (c *Connection) onClose() {
	c.opts.Dispatcher.Post(c.closeNow)
}

// closeNow transitions straight to CLOSED and notifies the State
// delegate. Must run on the dispatcher's goroutine.
func (c *Connection) closeNow() {
	c.mu.Lock()
	old := c.socketState
	c.socketState = StateClosed
	c.mu.Unlock()
	if c.delegates.State != nil {
		c.delegates.State(old, StateClosed)
	}
}

func (c *Connection) sendFrame(op protocol.Op, payload []byte) error {
	if !c.boundIsWebSocket() {
		c.opts.Logger.Debug("conn: dropped send on a non-websocket connection", "op", op)
		return api.NewError(api.ErrCodeUsage, "conn: send on a non-websocket connection")
	}
	c.mu.Lock()
	state := c.socketState
	c.mu.Unlock()
	if state != StateConnected && state != StateConnecting {
		c.opts.Logger.Debug("conn: dropped send while not connected", "op", op, "state", state)
		return api.NewError(api.ErrCodeUsage, "conn: send while not connected")
	}
	mask := c.opts.KeyGen.FrameMask()
	data, err := protocol.Encode(op, payload, &mask)
	if err != nil {
		return err
	}
	c.enqueue(data)
	return nil
}

// SendText sends a TEXT frame. payload must be valid UTF-8 when a
// UTF8Validator was configured; otherwise the send is rejected as usage
// error and never reaches the wire.
func (c *Connection) SendText(payload []byte) error {
	if c.opts.UTF8 != nil && !c.opts.UTF8.Valid(payload) {
		c.opts.Logger.Debug("conn: dropped text frame with invalid UTF-8")
		return api.NewError(api.ErrCodeUsage, "conn: text payload is not valid UTF-8")
	}
	return c.sendFrame(protocol.OpText, payload)
}

// SendBinary sends a BINARY frame.
func (c *Connection) SendBinary(payload []byte) error {
	return c.sendFrame(protocol.OpBinary, payload)
}

// SendPing sends a PING control frame.
func (c *Connection) SendPing(payload []byte) error {
	return c.sendFrame(protocol.OpPing, payload)
}

// SendPong sends a PONG control frame.
func (c *Connection) SendPong(payload []byte) error {
	return c.sendFrame(protocol.OpPong, payload)
}

// SendClose sends a CLOSE control frame and marks the connection as
// client-closing so the eventual disconnect reports CLOSED.
func (c *Connection) SendClose(payload []byte) error {
	if err := c.sendFrame(protocol.OpClose, payload); err != nil {
		return err
	}
	c.mu.Lock()
	old := c.socketState
	if c.socketState == StateConnected {
		c.socketState = StateClosing
	}
	c.mu.Unlock()
	c.postState(old, StateClosing)
	return nil
}
