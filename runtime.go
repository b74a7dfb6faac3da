package wkhtmltox

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/alnah/go-wkhtmltox/internal/hints"
	"github.com/alnah/go-wkhtmltox/internal/native"
)

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithUseGraphics asks the engine to initialize with graphics support,
// which needs a display server.
func WithUseGraphics(use bool) RuntimeOption {
	return func(r *Runtime) {
		r.useGraphics = use
	}
}

// WithRuntimeLogger sets the logger for the runtime and for every
// converter created from it.
func WithRuntimeLogger(l *zap.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRuntimeMetrics sets the collectors updated by the runtime.
func WithRuntimeMetrics(m *Metrics) RuntimeOption {
	return func(r *Runtime) {
		r.metrics = m
	}
}

// Runtime owns the process-wide engine state: one-time initialization,
// the final shutdown, and the lock that serializes native conversions.
//
// The engine keeps global state and cannot be restarted in the same
// process, so a Runtime that was shut down refuses to initialize again.
type Runtime struct {
	lib         native.Library
	useGraphics bool
	log         *zap.Logger
	metrics     *Metrics

	mu          sync.Mutex
	initialized bool
	shutdown    bool
	live        int

	// exec is a one-slot semaphore held during each native convert call.
	exec chan struct{}
}

// NewRuntime wraps lib. Nothing is called on lib until EnsureInitialized.
func NewRuntime(lib native.Library, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		lib:  lib,
		log:  zap.NewNop(),
		exec: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRuntime = sync.OnceValues(func() (*Runtime, error) {
	lib, err := native.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w%s", ErrInitialization, err, hints.ForEngineUnavailable())
	}
	return NewRuntime(lib), nil
})

// DefaultRuntime returns the process-wide Runtime over the linked engine.
// It fails with ErrEngineUnavailable when the binary was built without the
// wkhtmltox build tag.
func DefaultRuntime() (*Runtime, error) {
	return defaultRuntime()
}

// EnsureInitialized initializes the engine on first success. Later calls
// return nil without touching the engine. A failed attempt leaves the
// runtime uninitialized, so it may be retried.
func (r *Runtime) EnsureInitialized() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutdown {
		return fmt.Errorf("%w: runtime was shut down", ErrInitialization)
	}
	if r.initialized {
		return nil
	}

	ok := r.lib.Init(r.useGraphics)
	r.metrics.observeInit(ok)
	if !ok {
		r.log.Warn("engine initialization failed", zap.Bool("use_graphics", r.useGraphics))
		return fmt.Errorf("%w: engine init returned false%s", ErrInitialization, hints.ForInit(r.useGraphics))
	}

	r.initialized = true
	r.log.Info("engine initialized",
		zap.String("version", r.lib.Version()),
		zap.Bool("extended_qt", r.lib.ExtendedQt()),
		zap.Bool("use_graphics", r.useGraphics))
	return nil
}

// Initialized reports whether the engine is initialized.
func (r *Runtime) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// Version returns the engine version string.
func (r *Runtime) Version() string { return r.lib.Version() }

// ExtendedQt reports whether the engine was built against patched Qt.
func (r *Runtime) ExtendedQt() bool { return r.lib.ExtendedQt() }

// Shutdown releases the engine. It is skipped, with a warning, while
// converters are still alive, and is a no-op before initialization or
// after a previous shutdown. Failures are logged, never returned.
func (r *Runtime) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized || r.shutdown {
		return
	}
	if r.live > 0 {
		r.log.Warn("engine shutdown skipped, converters still alive", zap.Int("live", r.live))
		return
	}

	if !r.deinit() {
		r.log.Warn("engine deinit reported failure")
	}
	r.initialized = false
	r.shutdown = true
	r.log.Info("engine shut down")
}

func (r *Runtime) deinit() (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("engine deinit panicked", zap.Any("panic", p))
			ok = false
		}
	}()
	return r.lib.Deinit()
}

// NewGlobalSettings allocates a global settings store.
func (r *Runtime) NewGlobalSettings() (*SettingsStore, error) {
	if err := r.EnsureInitialized(); err != nil {
		return nil, err
	}
	return newSettingsStore(r.lib, GlobalScope)
}

// NewObjectSettings allocates an object settings store.
func (r *Runtime) NewObjectSettings() (*SettingsStore, error) {
	if err := r.EnsureInitialized(); err != nil {
		return nil, err
	}
	return newSettingsStore(r.lib, ObjectScope)
}

// NewConverter creates a converter that takes ownership of global. arg is
// attached to every event the converter emits.
func (r *Runtime) NewConverter(global *SettingsStore, arg any) (*Converter, error) {
	if err := r.EnsureInitialized(); err != nil {
		return nil, err
	}
	if global == nil {
		return nil, fmt.Errorf("%w: nil global settings", ErrResource)
	}
	return newConverter(r, global, arg, r.log, r.metrics)
}

func (r *Runtime) converterOpened() {
	r.mu.Lock()
	r.live++
	r.mu.Unlock()
}

func (r *Runtime) converterClosed() {
	r.mu.Lock()
	r.live--
	r.mu.Unlock()
}

// acquireExec waits for the conversion slot.
func (r *Runtime) acquireExec(ctx context.Context) error {
	select {
	case r.exec <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) releaseExec() { <-r.exec }
