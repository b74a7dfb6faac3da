package wkhtmltox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alnah/go-wkhtmltox/internal/native"
)

// State is the lifecycle state of a Converter.
type State int

const (
	StateCreated State = iota
	StateObjectAdded
	StateConverting
	StateCompleted
	StateFailed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateObjectAdded:
		return "object-added"
	case StateConverting:
		return "converting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Converter is one native conversion session. It owns the global settings
// it was created with and every object added to it, and destroys them
// together on Close.
//
// Convert runs exactly once. Events are delivered on the goroutine that
// calls Convert, while it runs; listeners may call any Converter method,
// including Close, which is then deferred until the native call returns.
type Converter struct {
	rt      *Runtime
	lib     native.Library
	log     *zap.Logger
	metrics *Metrics
	arg     any
	events  Events
	bridge  callbackBridge

	mu           sync.Mutex
	handle       native.Handle
	state        State
	objects      int
	closePending bool
}

func newConverter(rt *Runtime, global *SettingsStore, arg any, log *zap.Logger, metrics *Metrics) (*Converter, error) {
	c := &Converter{
		rt:      rt,
		lib:     rt.lib,
		log:     log,
		metrics: metrics,
		arg:     arg,
	}

	err := global.handOff(GlobalScope, func(h native.Handle) error {
		c.handle = rt.lib.CreateConverter(h)
		if c.handle.Null() {
			return fmt.Errorf("%w: converter", ErrAllocation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log = c.log.With(zap.Uintptr("converter", uintptr(c.handle)))
	c.events.log = c.log
	c.bridge = callbackBridge{
		conv:    c,
		handle:  c.handle,
		lib:     c.lib,
		events:  &c.events,
		log:     c.log,
		metrics: c.metrics,
	}
	c.bridge.reset()
	c.lib.SetCallbacks(c.handle, c.bridge.callbacks())

	rt.converterOpened()
	c.metrics.converterOpened()
	c.log.Debug("converter created")
	return c, nil
}

// Events returns the converter's event listeners.
func (c *Converter) Events() *Events { return &c.events }

// Arg returns the value attached to the converter's events.
func (c *Converter) Arg() any { return c.arg }

// State returns the current lifecycle state.
func (c *Converter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AddObject queues html for conversion with obj's settings. The converter
// takes ownership of obj.
func (c *Converter) AddObject(obj *SettingsStore, html string) error {
	if obj == nil {
		return fmt.Errorf("%w: nil object settings", ErrResource)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateCreated, StateObjectAdded:
	case StateDisposed:
		return ErrDisposed
	default:
		return fmt.Errorf("%w: add object while %s", ErrNotReady, c.state)
	}

	err := obj.handOff(ObjectScope, func(h native.Handle) error {
		c.lib.AddObject(c.handle, h, []byte(html))
		return nil
	})
	if err != nil {
		return err
	}
	c.objects++
	c.state = StateObjectAdded
	return nil
}

// Convert runs the engine. ctx is checked before the engine starts and
// while waiting for the runtime's conversion slot; the native call itself
// cannot be interrupted.
func (c *Converter) Convert(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateObjectAdded:
	case StateDisposed:
		c.mu.Unlock()
		return ErrDisposed
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: convert while %s", ErrNotReady, state)
	}
	c.state = StateConverting
	h := c.handle
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		c.abortStart()
		return fmt.Errorf("%w: %w", ErrConversion, err)
	}
	if err := c.rt.acquireExec(ctx); err != nil {
		c.abortStart()
		return fmt.Errorf("%w: %w", ErrConversion, err)
	}

	c.log.Debug("conversion started", zap.Int("objects", c.objects))
	c.bridge.reset()
	start := time.Now()
	ok := c.lib.Convert(h)
	elapsed := time.Since(start)
	httpCode := 0
	if !ok {
		httpCode = c.lib.HTTPErrorCode(h)
	}
	c.rt.releaseExec()

	c.metrics.observeConversion(ok, elapsed)
	c.mu.Lock()
	if ok {
		c.state = StateCompleted
	} else {
		c.state = StateFailed
	}
	pending := c.closePending
	c.mu.Unlock()

	c.log.Debug("conversion returned", zap.Bool("ok", ok), zap.Duration("elapsed", elapsed))
	if pending {
		_ = c.Close()
	}

	if !ok {
		if httpCode != 0 {
			return fmt.Errorf("%w: http error code %d", ErrConversion, httpCode)
		}
		return ErrConversion
	}
	return nil
}

// abortStart undoes the move to StateConverting when the engine never ran.
func (c *Converter) abortStart() {
	c.mu.Lock()
	c.state = StateObjectAdded
	pending := c.closePending
	c.mu.Unlock()
	if pending {
		_ = c.Close()
	}
}

// Output returns a copy of the converted document. Only a completed
// converter has output.
func (c *Converter) Output() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateCompleted:
	case StateDisposed:
		return nil, ErrDisposed
	default:
		return nil, fmt.Errorf("%w: output while %s", ErrNotReady, c.state)
	}

	view := c.lib.Output(c.handle)
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// CurrentPhase returns the engine's current phase, or 0 once disposed.
func (c *Converter) CurrentPhase() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisposed {
		return 0
	}
	return c.lib.CurrentPhase(c.handle)
}

// PhaseCount returns the number of phases, or 0 once disposed.
func (c *Converter) PhaseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisposed {
		return 0
	}
	return c.lib.PhaseCount(c.handle)
}

// PhaseDescription returns the engine's name for phase i.
func (c *Converter) PhaseDescription(i int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisposed {
		return ""
	}
	return c.lib.PhaseDescription(c.handle, i)
}

// ProgressString returns the engine's progress text for the current phase.
func (c *Converter) ProgressString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisposed {
		return ""
	}
	return c.lib.ProgressString(c.handle)
}

// HTTPErrorCode returns the HTTP status of a failed page load, or 0.
func (c *Converter) HTTPErrorCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisposed {
		return 0
	}
	return c.lib.HTTPErrorCode(c.handle)
}

// Close destroys the native converter and everything it owns. Called from
// a listener during Convert, it takes effect when Convert returns. Close
// is idempotent and always returns nil.
func (c *Converter) Close() error {
	c.mu.Lock()
	switch c.state {
	case StateDisposed:
		c.mu.Unlock()
		return nil
	case StateConverting:
		c.closePending = true
		c.mu.Unlock()
		c.log.Debug("converter close deferred until conversion returns")
		return nil
	}
	h := c.handle
	c.handle = 0
	c.state = StateDisposed
	c.mu.Unlock()

	c.lib.DestroyConverter(h)
	c.rt.converterClosed()
	c.metrics.converterClosed()
	c.log.Debug("converter destroyed")
	return nil
}
