package conn

// enqueue implements spec §4.4.10: before the WebSocket upgrade
// completes, frames queue in pendingSends; afterward they go straight to
// activeSends and the writer is kicked if it is idle. Once sendError is
// set, every further enqueue drops its buffer instead of queuing it — a
// send failure is reported exactly once via onDisconnected, never twice.
// A plain sync.Mutex (held only around these short queue mutations, never
// across a blocking write) stands in for the original's recursive lock —
// nothing here re-enters while already holding it.
func (c *Connection) enqueue(data []byte) {
	c.mu.Lock()
	if c.sendError {
		c.mu.Unlock()
		return
	}
	if !c.wsActive {
		c.pendingSends.Add(data)
		c.mu.Unlock()
		return
	}
	c.activeSends.Add(data)
	idle := c.sendInFlight == 0
	c.mu.Unlock()
	if idle {
		_ = c.opts.Reactor.Post(c.sendNext)
	}
}

// flushPendingSends moves every queued pre-handshake frame into
// activeSends and kicks off the writer, called once immediately after a
// successful WebSocket upgrade.
func (c *Connection) flushPendingSends() {
	c.mu.Lock()
	c.wsActive = true
	for c.pendingSends.Length() > 0 {
		c.activeSends.Add(c.pendingSends.Remove())
	}
	idle := c.sendInFlight == 0 && c.activeSends.Length() > 0
	c.mu.Unlock()
	if idle {
		_ = c.opts.Reactor.Post(c.sendNext)
	}
}

// sendNext writes the next queued frame. At most one write is ever in
// flight; sendNext re-posts itself for the next queued item rather than
// looping synchronously, keeping any single write from monopolizing a
// reactor worker.
func (c *Connection) sendNext() {
	c.mu.Lock()
	if c.sendInFlight > 0 || c.activeSends.Length() == 0 {
		c.mu.Unlock()
		return
	}
	data := c.activeSends.Remove().([]byte)
	c.sendInFlight++
	c.mu.Unlock()

	writeErr := c.transport.WriteAll(data)
	if writeErr == nil && c.opts.OnBytesSent != nil {
		c.opts.OnBytesSent(len(data))
	}

	c.mu.Lock()
	c.sendInFlight--
	if writeErr != nil {
		c.sendError = true
	}
	hasMore := c.activeSends.Length() > 0
	errored := c.sendError
	inFlight := c.sendInFlight
	c.mu.Unlock()

	if writeErr != nil {
		c.opts.Logger.Error("conn: frame write failed", "err", writeErr)
	}
	if errored && inFlight == 0 {
		c.onDisconnected(writeErr)
		return
	}
	if hasMore {
		_ = c.opts.Reactor.Post(c.sendNext)
	}
}
