// Package wkhtmltox converts HTML to PDF with the libwkhtmltox engine.
//
// # Quick Start
//
// Create a worker, convert, and close when done:
//
//	w, err := wkhtmltox.NewWorker()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	if err := w.Convert(ctx, "<h1>Hello</h1>", nil); err != nil {
//	    log.Fatal(err)
//	}
//	pdf, err := w.Output()
//
// The engine is linked with cgo behind the wkhtmltox build tag:
//
//	CGO_ENABLED=1 go build -tags wkhtmltox ./...
//
// Without the tag, DefaultRuntime and NewWorker fail with
// ErrEngineUnavailable. Tests and callers that bring their own engine pass
// a Runtime with WithRuntime.
//
// # Lifecycle
//
// A Runtime initializes the engine once per process and shuts it down at
// most once; the engine cannot be restarted afterwards. Settings live in
// SettingsStores: global settings describe the output document, object
// settings describe one page of input. A Converter takes ownership of the
// global settings it is created with and of every object added to it, and
// frees them all on Close.
//
// A Worker hides this: it keeps template global settings, gives each
// conversion a fresh copy of them, and applies a safe resource loading
// posture to every object. External links and local file access are
// blocked unless WithAllowExternalLinks or WithAllowLocalFileAccess say
// otherwise.
//
// # Events
//
// The engine reports errors, warnings, phase changes, progress and
// completion through callbacks. They arrive synchronously, on the
// goroutine that called Convert, as typed events:
//
//	w.Events().OnWarning(func(e wkhtmltox.MessageEvent) {
//	    log.Printf("warning: %s", e.Message)
//	})
//	w.Events().OnPhaseChanged(func(e wkhtmltox.PhaseEvent) {
//	    log.Printf("phase %d/%d: %s", e.Phase+1, e.PhaseCount, e.Description)
//	})
//
// Phases never go backwards within a conversion, and exactly one
// FinishedEvent is delivered per conversion. A panicking listener is
// logged and skipped.
//
// # Configuration
//
// Use functional options, or a YAML profile decoded with ParseProfile:
//
//	p, err := wkhtmltox.ParseProfile(data)
//	rt := wkhtmltox.NewRuntime(lib, p.RuntimeOptions()...)
//	w, err := wkhtmltox.NewWorker(
//	    wkhtmltox.WithRuntime(rt),
//	    wkhtmltox.WithProfile(p),
//	    wkhtmltox.WithGlobalSetting("margin.top", "10mm"),
//	)
//
// # Threads
//
// The engine is built on Qt and expects every call from the thread that
// initialized it. With the cgo build, drive a Runtime from one goroutine
// that has called runtime.LockOSThread. Native conversions on one Runtime
// are serialized. A Convert blocked in the engine cannot be interrupted:
// its context is only checked before the engine starts.
package wkhtmltox
