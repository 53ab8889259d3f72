// File: pool/pool.go
// Author: momentics <momentics@gmail.com>
//
// Pool is the process-wide mapping from origin key to a FIFO of idle,
// CONNECTED connections, per spec §4.5. Acquire pops from the front,
// discarding and retrying past any connection that is no longer CONNECTED.
package pool

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-ws/urlkey"
)

// Conn is the narrow capability the pool needs from a connection: enough
// to bucket it by origin and tell whether it is still worth reusing.
type Conn interface {
	Origin() urlkey.OriginKey
	Connected() bool
	Close() error
}

// Pool buckets idle connections by origin key. The zero value is not
// usable; construct with New.
type Pool struct {
	mu      sync.Mutex
	buckets map[urlkey.OriginKey]*queue.Queue
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{buckets: make(map[urlkey.OriginKey]*queue.Queue)}
}

// Acquire pops the first still-CONNECTED idle connection parked under
// origin, discarding any stale ones found ahead of it. Returns ok=false
// if no live connection is available.
func (p *Pool) Acquire(origin urlkey.OriginKey) (Conn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.buckets[origin]
	if !ok {
		return nil, false
	}
	for q.Length() > 0 {
		c := q.Remove().(Conn)
		if c.Connected() {
			if q.Length() == 0 {
				delete(p.buckets, origin)
			}
			return c, true
		}
		_ = c.Close()
	}
	delete(p.buckets, origin)
	return nil, false
}

// Release parks c for reuse if it is still CONNECTED; otherwise it is a
// no-op (the caller is expected to have already closed a dead connection).
func (p *Pool) Release(c Conn) {
	if !c.Connected() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	origin := c.Origin()
	q, ok := p.buckets[origin]
	if !ok {
		q = queue.New()
		p.buckets[origin] = q
	}
	q.Add(c)
}

// Close closes every parked connection and empties the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var first error
	for origin, q := range p.buckets {
		for q.Length() > 0 {
			c := q.Remove().(Conn)
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
		delete(p.buckets, origin)
	}
	return first
}

// Idle reports how many connections are currently parked under origin,
// primarily for tests and diagnostics.
func (p *Pool) Idle(origin urlkey.OriginKey) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.buckets[origin]
	if !ok {
		return 0
	}
	return q.Length()
}
