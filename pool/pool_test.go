package pool

import (
	"testing"

	"github.com/momentics/hioload-ws/urlkey"
)

type fakeConn struct {
	origin    urlkey.OriginKey
	connected bool
	closed    bool
}

func (f *fakeConn) Origin() urlkey.OriginKey { return f.origin }
func (f *fakeConn) Connected() bool          { return f.connected }
func (f *fakeConn) Close() error             { f.closed = true; f.connected = false; return nil }

func TestAcquireEmptyOrigin(t *testing.T) {
	p := New()
	if _, ok := p.Acquire(urlkey.OriginKey("http.example.com.80")); ok {
		t.Fatal("expected no connection for unknown origin")
	}
}

func TestReleaseThenAcquire(t *testing.T) {
	p := New()
	origin := urlkey.OriginKey("http.example.com.80")
	c := &fakeConn{origin: origin, connected: true}
	p.Release(c)
	if got := p.Idle(origin); got != 1 {
		t.Fatalf("Idle = %d, want 1", got)
	}
	got, ok := p.Acquire(origin)
	if !ok || got != c {
		t.Fatalf("Acquire = %v, %v", got, ok)
	}
	if p.Idle(origin) != 0 {
		t.Fatal("expected pool drained after Acquire")
	}
}

func TestAcquireSkipsStaleConnections(t *testing.T) {
	p := New()
	origin := urlkey.OriginKey("ws.example.com.80")
	stale := &fakeConn{origin: origin, connected: true}
	live := &fakeConn{origin: origin, connected: true}

	p.Release(stale)
	p.Release(live)
	stale.connected = false // went stale after being parked

	got, ok := p.Acquire(origin)
	if !ok || got != live {
		t.Fatalf("Acquire = %v, %v, want live connection", got, ok)
	}
	if !stale.closed {
		t.Fatal("expected stale connection to be closed while being skipped")
	}
}

func TestReleaseDropsDisconnected(t *testing.T) {
	p := New()
	origin := urlkey.OriginKey("http.example.com.80")
	c := &fakeConn{origin: origin, connected: false}
	p.Release(c)
	if p.Idle(origin) != 0 {
		t.Fatal("expected disconnected connection not parked")
	}
}

func TestAcquireDeletesEmptiedBucket(t *testing.T) {
	p := New()
	origin := urlkey.OriginKey("http.example.com.80")
	c := &fakeConn{origin: origin, connected: true}
	p.Release(c)

	if _, ok := p.Acquire(origin); !ok {
		t.Fatal("expected Acquire to return the parked connection")
	}
	if _, ok := p.buckets[origin]; ok {
		t.Fatal("expected the emptied bucket to be removed from the map")
	}
}

func TestAcquireDeletesBucketAfterDiscardingOnlyStaleEntry(t *testing.T) {
	p := New()
	origin := urlkey.OriginKey("ws.example.com.80")
	stale := &fakeConn{origin: origin, connected: true}
	p.Release(stale)
	stale.connected = false

	if _, ok := p.Acquire(origin); ok {
		t.Fatal("expected no live connection")
	}
	if _, ok := p.buckets[origin]; ok {
		t.Fatal("expected the bucket to be removed once its only entry was discarded")
	}
}

func TestCloseDrainsAllBuckets(t *testing.T) {
	p := New()
	origin := urlkey.OriginKey("http.example.com.80")
	c := &fakeConn{origin: origin, connected: true}
	p.Release(c)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !c.closed {
		t.Fatal("expected parked connection to be closed")
	}
	if p.Idle(origin) != 0 {
		t.Fatal("expected pool empty after Close")
	}
}
