package wkhtmltox

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

// Compile-time interface check.
var _ interface {
	Acquire(context.Context) (*Worker, error)
	Release(*Worker)
	Size() int
	Close() error
} = (*WorkerPool)(nil)

func TestResolvePoolSize(t *testing.T) {
	t.Parallel()

	gomaxprocs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{
			name:    "explicit takes priority",
			workers: 4,
			want:    4,
		},
		{
			name:    "explicit=1 for sequential",
			workers: 1,
			want:    1,
		},
		{
			name:    "zero uses auto calculation",
			workers: 0,
			want:    min(max(gomaxprocs/cpuDivisor, MinPoolSize), MaxPoolSize),
		},
		{
			name:    "explicit can exceed max",
			workers: 16,
			want:    16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ResolvePoolSize(tt.workers)
			if got != tt.want {
				t.Errorf("ResolvePoolSize(%d) = %d, want %d", tt.workers, got, tt.want)
			}
		})
	}
}

func TestWorkerPool_AcquireRelease(t *testing.T) {
	t.Parallel()

	rt, e := newTestRuntime(t)
	pool := NewWorkerPool(2, WithRuntime(rt))
	defer pool.Close()

	ctx := context.Background()
	w1, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	w2, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if w1 == w2 {
		t.Error("expected different worker instances")
	}

	pool.Release(w1)
	w3, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if w3 != w1 {
		t.Error("expected to get back released worker")
	}

	if got := e.InitCalls(); got != 1 {
		t.Errorf("Init called %d times for two workers, want 1", got)
	}

	pool.Release(w2)
	pool.Release(w3)
}

func TestWorkerPool_Acquire_WaitsForRelease(t *testing.T) {
	t.Parallel()

	rt, _ := newTestRuntime(t)
	pool := NewWorkerPool(1, WithRuntime(rt))
	defer pool.Close()

	w, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() on exhausted pool error = %v, want DeadlineExceeded", err)
	}

	pool.Release(w)
	got, err := pool.Acquire(context.Background())
	if err != nil || got != w {
		t.Errorf("Acquire() after Release = %p, %v; want %p", got, err, w)
	}
}

func TestWorkerPool_Size(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		size int
		want int
	}{
		{"size 1", 1, 1},
		{"size 4", 4, 4},
		{"size 0 becomes 1", 0, 1},
		{"negative becomes 1", -1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pool := NewWorkerPool(tt.size)
			defer pool.Close()

			if got := pool.Size(); got != tt.want {
				t.Errorf("Size() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWorkerPool_CreateFailure(t *testing.T) {
	t.Parallel()

	rt, e := newTestRuntime(t)
	e.InitFails = true
	pool := NewWorkerPool(1, WithRuntime(rt))
	defer pool.Close()

	if _, err := pool.Acquire(context.Background()); !errors.Is(err, ErrInitialization) {
		t.Fatalf("Acquire() error = %v, want ErrInitialization", err)
	}

	// The failed slot is free again.
	e.InitFails = false
	w, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() after recovery error = %v", err)
	}
	pool.Release(w)
}

func TestWorkerPool_ConcurrentConvert(t *testing.T) {
	t.Parallel()

	rt, e := newTestRuntime(t)
	pool := NewWorkerPool(4, WithRuntime(rt))

	var wg sync.WaitGroup
	iterations := 20
	errs := make(chan error, iterations)

	for range iterations {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := pool.Acquire(context.Background())
			if err != nil {
				errs <- err
				return
			}
			defer pool.Release(w)
			if err := w.Convert(context.Background(), testHTML, nil); err != nil {
				errs <- err
				return
			}
			if _, err := w.Output(); err != nil {
				errs <- err
			}
		}()
	}

	// Should complete without deadlock
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		t.Fatal("concurrent convert timed out - possible deadlock")
	}

	close(errs)
	for err := range errs {
		t.Errorf("worker error: %v", err)
	}

	if err := pool.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := e.LiveConverters(); got != 0 {
		t.Errorf("LiveConverters() = %d after Close", got)
	}
}

func TestWorkerPool_Release_NotCheckedOut(t *testing.T) {
	t.Parallel()

	rt, _ := newTestRuntime(t)
	log, logs := newObservedLogger(zapcore.WarnLevel)
	pool := NewWorkerPool(1, WithRuntime(rt), WithLogger(log))

	w, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	foreign, _ := newTestWorker(t, WithLogger(log))

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Release(w)
		pool.Release(w)
		pool.Release(foreign)

		got, err := pool.Acquire(context.Background())
		if err != nil || got != w {
			t.Errorf("Acquire() = %p, %v; want %p", got, err, w)
		}
		pool.Release(got)
		if err := pool.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		t.Fatal("pool blocked after releasing a worker twice")
	}

	if got := logs.FilterMessage("worker release ignored, not checked out from this pool").Len(); got != 2 {
		t.Errorf("ignored release warnings = %d, want 2", got)
	}
}

func TestWorkerPool_Close(t *testing.T) {
	t.Parallel()

	rt, _ := newTestRuntime(t)
	pool := NewWorkerPool(2, WithRuntime(rt))

	w, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := pool.Close(); err != nil {
		t.Fatal(err)
	}
	if err := pool.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	// Release after close should not panic
	pool.Release(w)

	if _, err := pool.Acquire(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Errorf("Acquire() after Close error = %v, want ErrDisposed", err)
	}
	if err := w.Convert(context.Background(), testHTML, nil); !errors.Is(err, ErrDisposed) {
		t.Errorf("pooled worker Convert after Close error = %v, want ErrDisposed", err)
	}
}
