package wkhtmltox

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// MaxPoolSize caps workers; conversions share one engine anyway.
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for the engine's own threads.
	cpuDivisor = 2
)

// WorkerPool manages a pool of Workers sharing one Runtime.
// Workers are created lazily on first acquire to avoid startup cost.
//
// The engine serializes native conversions per Runtime, so pooled workers
// overlap only in the work around the native call: building settings,
// copying output, running listeners.
type WorkerPool struct {
	size    int
	opts    []Option
	workers []*Worker
	out     map[*Worker]bool
	sem     chan *Worker
	mu      sync.Mutex
	created int
	closed  bool
}

// NewWorkerPool creates a pool with capacity for n Workers, each built
// with opts. Workers are created when acquired, not at pool creation.
func NewWorkerPool(n int, opts ...Option) *WorkerPool {
	if n < 1 {
		n = 1
	}

	return &WorkerPool{
		size:    n,
		opts:    opts,
		workers: make([]*Worker, 0, n),
		out:     make(map[*Worker]bool, n),
		sem:     make(chan *Worker, n),
	}
}

// Acquire gets a worker from the pool, creating one if needed.
// Blocks until a worker is released or ctx is done.
func (p *WorkerPool) Acquire(ctx context.Context) (*Worker, error) {
	// Try to get an existing worker (non-blocking)
	select {
	case w, ok := <-p.sem:
		if !ok {
			return nil, ErrDisposed
		}
		return p.checkOut(w), nil
	default:
	}

	// Check if we can create a new worker
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrDisposed
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		// Create new worker outside the lock
		w, err := NewWorker(p.opts...)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, err
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			_ = w.Close()
			return nil, ErrDisposed
		}
		p.workers = append(p.workers, w)
		p.out[w] = true
		p.mu.Unlock()

		return w, nil
	}
	p.mu.Unlock()

	// All workers created, wait for one to be released
	select {
	case w, ok := <-p.sem:
		if !ok {
			return nil, ErrDisposed
		}
		return p.checkOut(w), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *WorkerPool) checkOut(w *Worker) *Worker {
	p.mu.Lock()
	p.out[w] = true
	p.mu.Unlock()
	return w
}

// Release returns a worker to the pool. Releasing a worker that is not
// checked out from this pool, including a second Release, is ignored.
// Only checked-out workers are sent, so the channel always has room and
// the send under the lock never blocks.
func (p *WorkerPool) Release(w *Worker) {
	if w == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if !p.out[w] {
		if w.log != nil {
			w.log.Warn("worker release ignored, not checked out from this pool")
		}
		return
	}
	delete(p.out, w)
	p.sem <- w
}

// Close releases all workers. The shared Runtime stays initialized.
// Returns an aggregated error if multiple workers fail to close.
func (p *WorkerPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sem)
	workers := p.workers
	p.mu.Unlock()

	var errs []error
	for _, w := range workers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *WorkerPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	// Explicit value takes priority
	if workers > 0 {
		return workers
	}

	available := runtime.GOMAXPROCS(0)
	n := available / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
