// File: client/context.go
//
// ClientContext bundles the external collaborators every Client shares:
// the pool, reactor, dispatcher, key generator, logger, and the global
// atomic byte/request counters the original source kept as process-wide
// statics.
package client

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/momentics/hioload-ws/api"
	"github.com/momentics/hioload-ws/control"
	"github.com/momentics/hioload-ws/logging"
	"github.com/momentics/hioload-ws/pool"
	"github.com/momentics/hioload-ws/protocol"
	"github.com/momentics/hioload-ws/transport"
)

// Counters tracks process-wide traffic totals, mirroring the original
// source's global atomic byte/request counters.
type Counters struct {
	BytesSent     int64
	BytesReceived int64
	RequestsSent  int64

	metrics *control.MetricsRegistry
}

func (c *Counters) addSent(n int) {
	atomic.AddInt64(&c.BytesSent, int64(n))
	c.publish()
}

func (c *Counters) addReceived(n int) {
	atomic.AddInt64(&c.BytesReceived, int64(n))
	c.publish()
}

func (c *Counters) addRequest() {
	atomic.AddInt64(&c.RequestsSent, 1)
	c.publish()
}

func (c *Counters) publish() {
	if c.metrics == nil {
		return
	}
	c.metrics.Set("bytes_sent", atomic.LoadInt64(&c.BytesSent))
	c.metrics.Set("bytes_received", atomic.LoadInt64(&c.BytesReceived))
	c.metrics.Set("requests_sent", atomic.LoadInt64(&c.RequestsSent))
}

// ClientContext is the shared environment every Client created from it
// draws its collaborators from: one Pool, one Reactor, one Dispatcher.
type ClientContext struct {
	Pool       *pool.Pool
	Reactor    api.Reactor
	Dispatcher api.Dispatcher
	KeyGen     api.KeyGenerator
	Logger     api.Logger
	UTF8       api.UTF8Validator
	UserAgent  string
	ClientID   string
	Counters   *Counters

	// Settings and Metrics expose the same tunables/totals above as a
	// key/value store and a named metrics snapshot, for callers and
	// tooling that want to observe a running client without reaching into
	// its fields directly. Settings is only seeded at construction;
	// changing it does not change the fields above.
	Settings *control.ConfigStore
	Metrics  *control.MetricsRegistry
	Debug    *control.DebugProbes

	// NewTransport overrides transport construction for every Connection
	// a Client built from this context creates. Tests set this to a
	// fake.Transport factory; production leaves it nil so conn.Connection
	// builds a real TCP/TLS transport from the bound URL.
	NewTransport func(secure bool) api.Transport

	connectTimeout time.Duration
	tls            transport.TLSConfig
}

// NewClientContext wires a default KeyGenerator (crypto/rand-backed) and
// mints a fresh ClientID via a random UUID when none is supplied. It uses
// DefaultConfig(); call NewClientContextWithConfig to override it.
func NewClientContext(reactor api.Reactor, dispatcher api.Dispatcher) *ClientContext {
	return NewClientContextWithConfig(DefaultConfig(), reactor, dispatcher)
}

// NewClientContextWithConfig builds a ClientContext from an explicit
// Config, seeding the settings store with its values. The store is
// created here, so no OnReload listener is registered when it is seeded.
func NewClientContextWithConfig(cfg Config, reactor api.Reactor, dispatcher api.Dispatcher) *ClientContext {
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	metrics := control.NewMetricsRegistry()
	counters := &Counters{metrics: metrics}
	counters.publish()

	settings := control.NewConfigStore()
	settings.SetConfig(map[string]any{
		"user_agent":           cfg.UserAgent,
		"client_id":            cfg.ClientID,
		"connect_timeout":      cfg.ConnectTimeout,
		"insecure_skip_verify": cfg.InsecureSkipVerify,
	})

	debug := control.NewDebugProbes()
	cc := &ClientContext{
		Pool:           pool.New(),
		Reactor:        reactor,
		Dispatcher:     dispatcher,
		KeyGen:         protocol.CryptoRand{},
		Logger:         logging.New(),
		UTF8:           protocol.StrictUTF8{},
		UserAgent:      cfg.UserAgent,
		ClientID:       cfg.ClientID,
		Counters:       counters,
		Settings:       settings,
		Metrics:        metrics,
		Debug:          debug,
		connectTimeout: cfg.ConnectTimeout,
		tls:            transport.TLSConfig{InsecureSkipVerify: cfg.InsecureSkipVerify},
	}
	debug.RegisterProbe("counters", func() any {
		return map[string]int64{
			"bytes_sent":     atomic.LoadInt64(&counters.BytesSent),
			"bytes_received": atomic.LoadInt64(&counters.BytesReceived),
			"requests_sent":  atomic.LoadInt64(&counters.RequestsSent),
		}
	})
	return cc
}

// Shutdown closes every pooled connection and stops the reactor and
// dispatcher. Callbacks still queued on the dispatcher are drained first
// so no in-flight delivery is lost.
func (cc *ClientContext) Shutdown() error {
	cc.Dispatcher.Drain()
	poolErr := cc.Pool.Close()
	cc.Dispatcher.Close()
	if err := cc.Reactor.Close(); err != nil && poolErr == nil {
		poolErr = err
	}
	return poolErr
}
