package wkhtmltox

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zapcore"
)

// ---------------------------------------------------------------------------
// TestRuntime_EnsureInitialized - One-time initialization
// ---------------------------------------------------------------------------

func TestRuntime_EnsureInitialized(t *testing.T) {
	t.Parallel()

	rt, e := newTestRuntime(t)

	if rt.Initialized() {
		t.Fatal("Initialized() = true before EnsureInitialized")
	}
	if got := e.InitCalls(); got != 0 {
		t.Fatalf("NewRuntime called Init %d times", got)
	}

	for range 3 {
		if err := rt.EnsureInitialized(); err != nil {
			t.Fatalf("EnsureInitialized() error = %v", err)
		}
	}

	if !rt.Initialized() {
		t.Error("Initialized() = false after success")
	}
	if got := e.InitCalls(); got != 1 {
		t.Errorf("Init called %d times, want 1", got)
	}
}

func TestRuntime_EnsureInitialized_Concurrent(t *testing.T) {
	t.Parallel()

	rt, e := newTestRuntime(t)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rt.EnsureInitialized(); err != nil {
				t.Errorf("EnsureInitialized() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := e.InitCalls(); got != 1 {
		t.Errorf("Init called %d times, want 1", got)
	}
}

func TestRuntime_EnsureInitialized_FailureIsRetryable(t *testing.T) {
	t.Parallel()

	rt, e := newTestRuntime(t)
	e.InitFails = true

	err := rt.EnsureInitialized()
	if !errors.Is(err, ErrInitialization) {
		t.Fatalf("EnsureInitialized() error = %v, want ErrInitialization", err)
	}
	if rt.Initialized() {
		t.Fatal("Initialized() = true after failure")
	}

	e.InitFails = false
	if err := rt.EnsureInitialized(); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if got := e.InitCalls(); got != 2 {
		t.Errorf("Init called %d times, want 2", got)
	}
}

func TestRuntime_UseGraphics(t *testing.T) {
	t.Parallel()

	rt, e := newTestRuntime(t, WithUseGraphics(true))
	e.InitFails = true

	err := rt.EnsureInitialized()
	if err == nil {
		t.Fatal("expected error")
	}
	if !rt.useGraphics {
		t.Error("WithUseGraphics(true) not applied")
	}
}

// ---------------------------------------------------------------------------
// TestRuntime_Shutdown - Best-effort engine release
// ---------------------------------------------------------------------------

func TestRuntime_Shutdown(t *testing.T) {
	t.Parallel()

	log, logs := newObservedLogger(zapcore.InfoLevel)
	rt, e := newTestRuntime(t, WithRuntimeLogger(log))

	rt.Shutdown()
	if got := e.DeinitCalls(); got != 0 {
		t.Fatalf("Shutdown before init called Deinit %d times", got)
	}

	if err := rt.EnsureInitialized(); err != nil {
		t.Fatal(err)
	}
	rt.Shutdown()
	rt.Shutdown()

	if got := e.DeinitCalls(); got != 1 {
		t.Errorf("Deinit called %d times, want 1", got)
	}
	if rt.Initialized() {
		t.Error("Initialized() = true after Shutdown")
	}
	if logs.FilterMessage("engine shut down").Len() != 1 {
		t.Error("expected one shutdown log entry")
	}

	err := rt.EnsureInitialized()
	if !errors.Is(err, ErrInitialization) {
		t.Errorf("EnsureInitialized after Shutdown error = %v, want ErrInitialization", err)
	}
	if got := e.InitCalls(); got != 1 {
		t.Errorf("Init called %d times after shutdown, want 1", got)
	}
}

func TestRuntime_Shutdown_SkippedWithLiveConverters(t *testing.T) {
	t.Parallel()

	log, logs := newObservedLogger(zapcore.WarnLevel)
	rt, e := newTestRuntime(t, WithRuntimeLogger(log))

	conv := newTestConverter(t, rt, testHTML, nil)
	rt.Shutdown()

	if got := e.DeinitCalls(); got != 0 {
		t.Fatalf("Deinit called with a live converter")
	}
	if logs.FilterMessage("engine shutdown skipped, converters still alive").Len() != 1 {
		t.Error("expected a warning for the skipped shutdown")
	}

	_ = conv.Close()
	rt.Shutdown()
	if got := e.DeinitCalls(); got != 1 {
		t.Errorf("Deinit called %d times after converters closed, want 1", got)
	}
}

func TestRuntime_VersionAndQt(t *testing.T) {
	t.Parallel()

	rt, _ := newTestRuntime(t)

	if v := rt.Version(); !strings.HasPrefix(v, "0.12") {
		t.Errorf("Version() = %q", v)
	}
	if rt.ExtendedQt() {
		t.Error("ExtendedQt() = true for the simulated engine")
	}
}

func TestDefaultRuntime_WithoutBindings(t *testing.T) {
	t.Parallel()

	// Test binaries are built without the wkhtmltox tag.
	_, err := DefaultRuntime()
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("DefaultRuntime() error = %v, want ErrEngineUnavailable", err)
	}
	if !errors.Is(err, ErrInitialization) {
		t.Errorf("DefaultRuntime() error = %v, want ErrInitialization", err)
	}
	if !strings.Contains(err.Error(), "hint:") {
		t.Errorf("expected hint in %q", err)
	}

	if _, err := NewWorker(); !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("NewWorker() error = %v, want ErrEngineUnavailable", err)
	}
}

func TestRuntime_NewConverter_Errors(t *testing.T) {
	t.Parallel()

	rt, e := newTestRuntime(t)

	if _, err := rt.NewConverter(nil, nil); !errors.Is(err, ErrResource) {
		t.Errorf("NewConverter(nil) error = %v, want ErrResource", err)
	}

	obj, err := rt.NewObjectSettings()
	if err != nil {
		t.Fatal(err)
	}
	defer obj.Close()
	if _, err := rt.NewConverter(obj, nil); !errors.Is(err, ErrResource) {
		t.Errorf("NewConverter(object settings) error = %v, want ErrResource", err)
	}

	e.FailConverterAlloc = true
	global, err := rt.NewGlobalSettings()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rt.NewConverter(global, nil); !errors.Is(err, ErrAllocation) {
		t.Errorf("NewConverter() error = %v, want ErrAllocation", err)
	}
	// The engine did not take the settings, so the caller still owns them.
	if global.Handle().Null() {
		t.Error("global settings released after failed converter creation")
	}
	if err := global.Close(); err != nil {
		t.Fatal(err)
	}
	if g, _ := e.LiveSettings(); g != 0 {
		t.Errorf("leaked %d global settings", g)
	}
}
