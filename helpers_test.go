package wkhtmltox

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alnah/go-wkhtmltox/internal/nativetest"
)

const testHTML = "<html><body><h1>Report</h1><p>Body text</p></body></html>"

// newTestRuntime returns a runtime over a fresh simulated engine and fails
// the test if the engine saw any contract violation.
func newTestRuntime(t *testing.T, opts ...RuntimeOption) (*Runtime, *nativetest.Engine) {
	t.Helper()

	e := nativetest.New()
	t.Cleanup(func() {
		for _, v := range e.Violations() {
			t.Errorf("engine violation: %s", v)
		}
	})
	return NewRuntime(e, opts...), e
}

// newTestWorker returns a worker over a fresh simulated engine.
func newTestWorker(t *testing.T, opts ...Option) (*Worker, *nativetest.Engine) {
	t.Helper()

	rt, e := newTestRuntime(t)
	w, err := NewWorker(append([]Option{WithRuntime(rt)}, opts...)...)
	if err != nil {
		t.Fatalf("NewWorker() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, e
}

// newObservedLogger returns a logger recording entries at level and above.
func newObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// newTestConverter creates a converter with one object holding html.
func newTestConverter(t *testing.T, rt *Runtime, html string, arg any) *Converter {
	t.Helper()

	global, err := rt.NewGlobalSettings()
	if err != nil {
		t.Fatalf("NewGlobalSettings() error = %v", err)
	}
	conv, err := rt.NewConverter(global, arg)
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	t.Cleanup(func() { _ = conv.Close() })

	obj, err := rt.NewObjectSettings()
	if err != nil {
		t.Fatalf("NewObjectSettings() error = %v", err)
	}
	if err := conv.AddObject(obj, html); err != nil {
		t.Fatalf("AddObject() error = %v", err)
	}
	return conv
}
