package fake

// Reactor runs every posted task synchronously on the caller's goroutine,
// so tests can drive the connection state machine deterministically
// without real concurrency.
type Reactor struct{}

// NewReactor returns a synchronous fake api.Reactor.
func NewReactor() *Reactor { return &Reactor{} }

func (r *Reactor) Post(task func()) error {
	task()
	return nil
}

func (r *Reactor) Close() error { return nil }

// Dispatcher runs every posted callback synchronously on the caller's
// goroutine, standing in for api.Dispatcher in tests.
type Dispatcher struct{}

// NewDispatcher returns a synchronous fake api.Dispatcher.
func NewDispatcher() *Dispatcher { return &Dispatcher{} }

func (d *Dispatcher) Post(fn func()) { fn() }
func (d *Dispatcher) Drain()         {}
func (d *Dispatcher) Close()         {}
