// File: reactor/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool dispatches posted tasks across worker goroutines, using lock-free
// local queues per worker and a global channel as fallback. It satisfies
// both api.Reactor (Post/Close) and api.Executor (Submit/NumWorkers/Resize)
// — the reactor's job (run DNS/connect/handshake/read/write completions off
// the caller's goroutine) and the executor's job (a general worker pool)
// are the same mechanism here, so one type serves both roles.
package reactor

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-ws/api"
	"github.com/momentics/hioload-ws/internal/concurrency"
)

// ErrExecutorClosed is returned by Post/Submit once Close has run. When
// the pool is open but the chosen worker's local queue and the global
// queue are both full, Post/Submit return api.ErrResourceExhausted.
var ErrExecutorClosed = errors.New("reactor: executor is closed")

// Pool is the fixed-worker-count task executor.
type Pool struct {
	globalQueue chan func()
	workers     []*worker
	closeCh     chan struct{}
	closed      int32
	numWorkers  int32
	mu          sync.Mutex

	totalTasks     int64
	completedTasks int64
}

// NewPool creates a Pool with numWorkers goroutines. If numWorkers <= 0 it
// defaults to runtime.NumCPU().
func NewPool(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	p := &Pool{
		globalQueue: make(chan func(), numWorkers*4),
		closeCh:     make(chan struct{}),
		numWorkers:  int32(numWorkers),
	}
	for i := 0; i < numWorkers; i++ {
		p.addWorker()
	}
	return p
}

func (p *Pool) addWorker() {
	w := &worker{
		id:         len(p.workers),
		pool:       p,
		localQueue: concurrency.NewLockFreeQueue[func()](1024),
		stopCh:     make(chan struct{}),
	}
	p.workers = append(p.workers, w)
	go w.run()
}

// Post schedules task for asynchronous execution. Implements api.Reactor.
func (p *Pool) Post(task func()) error {
	return p.Submit(task)
}

// Submit schedules task for asynchronous execution. Implements api.Executor.
func (p *Pool) Submit(task func()) error {
	if atomic.LoadInt32(&p.closed) == 1 {
		return ErrExecutorClosed
	}
	n := atomic.AddInt64(&p.totalTasks, 1)
	// Holding p.mu across Enqueue keeps each worker's single-producer
	// local queue fed by one producer at a time.
	p.mu.Lock()
	workers := p.workers
	idx := int(n % int64(len(workers)))
	queued := workers[idx].localQueue.Enqueue(task)
	p.mu.Unlock()
	if queued {
		return nil
	}
	select {
	case p.globalQueue <- task:
		return nil
	case <-p.closeCh:
		return ErrExecutorClosed
	default:
		return api.ErrResourceExhausted
	}
}

// NumWorkers returns the current number of active workers.
func (p *Pool) NumWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Resize grows the worker pool to newCount. Shrinking is not supported:
// a smaller newCount is a no-op, since stopping a worker mid-task would
// need task draining this pool has no use for.
func (p *Pool) Resize(newCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.workers) < newCount {
		p.addWorker()
	}
	atomic.StoreInt32(&p.numWorkers, int32(len(p.workers)))
}

// Close gracefully shuts down the pool and stops every worker.
func (p *Pool) Close() error {
	if atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		close(p.closeCh)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, w := range p.workers {
			close(w.stopCh)
		}
	}
	return nil
}

type worker struct {
	id         int
	pool       *Pool
	localQueue *concurrency.Queue[func()]
	stopCh     chan struct{}
	stopped    int32
}

func (w *worker) run() {
	defer atomic.StoreInt32(&w.stopped, 1)
	for {
		select {
		case <-w.stopCh:
			return
		default:
			if task, ok := w.localQueue.Dequeue(); ok {
				w.executeTask(task)
				continue
			}
			select {
			case task := <-w.pool.globalQueue:
				w.executeTask(task)
			case <-w.stopCh:
				return
			default:
				time.Sleep(time.Millisecond)
			}
		}
	}
}

func (w *worker) executeTask(task func()) {
	defer func() {
		recover()
		atomic.AddInt64(&w.pool.completedTasks, 1)
	}()
	task()
}
