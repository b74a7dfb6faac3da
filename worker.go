package wkhtmltox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/alnah/go-wkhtmltox/internal/fileutil"
	"github.com/alnah/go-wkhtmltox/internal/hints"
	"github.com/alnah/go-wkhtmltox/internal/htmlscan"
)

// managedGlobalKeys are set by the worker and rejected from callers.
var managedGlobalKeys = map[string]string{
	"outputFormat": "pdf",
}

// Worker converts HTML strings to PDF, one conversion at a time. It keeps
// a template of global settings for its whole life and gives each
// conversion its own copy, because the engine frees the global settings
// of a converter together with the converter.
//
// Objects are converted with external links and local file access
// blocked unless the options allow them.
type Worker struct {
	cfg     workerConfig
	rt      *Runtime
	log     *zap.Logger
	metrics *Metrics
	events  Events
	global  *SettingsStore

	mu     sync.Mutex
	active *Converter
	busy   bool
	closed bool
}

// NewWorker initializes the runtime and prepares the template settings.
func NewWorker(opts ...Option) (*Worker, error) {
	w := &Worker{log: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}

	w.rt = w.cfg.runtime
	if w.rt == nil {
		rt, err := DefaultRuntime()
		if err != nil {
			return nil, err
		}
		w.rt = rt
	}
	if w.metrics == nil {
		w.metrics = w.rt.metrics
	}
	w.events.log = w.log

	if err := w.rt.EnsureInitialized(); err != nil {
		return nil, err
	}

	global, err := w.rt.NewGlobalSettings()
	if err != nil {
		return nil, err
	}
	for key, value := range managedGlobalKeys {
		if err := global.Set(key, value); err != nil {
			_ = global.Close()
			return nil, err
		}
	}
	for _, s := range w.cfg.global {
		if err := checkManaged(s.Key); err != nil {
			_ = global.Close()
			return nil, err
		}
		if err := global.Set(s.Key, s.Value); err != nil {
			_ = global.Close()
			return nil, err
		}
	}
	w.global = global

	w.log.Debug("worker ready",
		zap.Bool("allow_external_links", w.cfg.allowExternal),
		zap.Bool("allow_local_file_access", w.cfg.allowLocal),
		zap.Int("global_settings", len(w.cfg.global)),
		zap.Int("object_settings", len(w.cfg.object)))
	return w, nil
}

func checkManaged(key string) error {
	if _, ok := managedGlobalKeys[key]; ok {
		return fmt.Errorf("%w: %s is managed by the worker", ErrSetting, key)
	}
	return nil
}

// Events returns the worker's listeners. They receive the events of every
// converter the worker creates. The forwarding is subscribed when the
// converter is created, so worker listeners run before any listener added
// to the converter afterwards.
func (w *Worker) Events() *Events { return &w.events }

// Version returns the engine version string.
func (w *Worker) Version() string { return w.rt.Version() }

// ExtendedQt reports whether the engine was built against patched Qt.
func (w *Worker) ExtendedQt() bool { return w.rt.ExtendedQt() }

// Convert converts html, replacing the previous conversion. arg is
// attached to every event of this conversion. A concurrent Convert on the
// same worker returns ErrBusy.
//
// Native conversions are serialized per Runtime. A Convert issued from an
// event listener on another worker sharing this worker's Runtime waits for
// the running conversion, which cannot finish until the listener returns:
// it blocks until ctx is done. Give such calls a deadline, or use a
// separate Runtime.
func (w *Worker) Convert(ctx context.Context, html string, arg any) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrDisposed
	}
	if w.busy {
		w.mu.Unlock()
		return ErrBusy
	}
	w.busy = true
	prev := w.active
	w.active = nil
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
	}()

	if prev != nil {
		_ = prev.Close()
	}

	conv, err := w.NewConverter(arg)
	if err != nil {
		return err
	}
	obj, err := w.NewObjectSettings()
	if err != nil {
		_ = conv.Close()
		return err
	}
	if err := conv.AddObject(obj, html); err != nil {
		_ = obj.Close()
		_ = conv.Close()
		return err
	}
	w.logBlockedReferences(html)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		_ = conv.Close()
		return ErrDisposed
	}
	w.active = conv
	w.mu.Unlock()

	return conv.Convert(ctx)
}

// NewConverter creates a converter with a copy of the worker's global
// settings whose events are forwarded to the worker's listeners. The
// caller owns it; Convert does not track it.
func (w *Worker) NewConverter(arg any) (*Converter, error) {
	snapshot, err := w.templateSnapshot()
	if err != nil {
		return nil, err
	}
	conv, err := newConverter(w.rt, snapshot, arg, w.log, w.metrics)
	if err != nil {
		_ = snapshot.Close()
		return nil, err
	}

	ev := conv.Events()
	ev.OnError(w.events.emitError)
	ev.OnWarning(w.events.emitWarning)
	ev.OnPhaseChanged(w.events.emitPhase)
	ev.OnProgressChanged(w.events.emitProgress)
	ev.OnFinished(w.events.emitFinished)
	return conv, nil
}

func (w *Worker) templateSnapshot() (*SettingsStore, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return nil, ErrDisposed
	}
	return w.global.snapshot()
}

// NewObjectSettings creates object settings carrying the worker's resource
// loading posture and configured object settings.
func (w *Worker) NewObjectSettings() (*SettingsStore, error) {
	obj, err := w.rt.NewObjectSettings()
	if err != nil {
		return nil, err
	}

	settings := []Setting{
		{Key: "useExternalLinks", Value: strconv.FormatBool(w.cfg.allowExternal)},
		{Key: "load.blockLocalFileAccess", Value: strconv.FormatBool(!w.cfg.allowLocal)},
	}
	settings = append(settings, w.cfg.object...)
	for _, s := range settings {
		if err := obj.Set(s.Key, s.Value); err != nil {
			_ = obj.Close()
			return nil, err
		}
	}
	return obj, nil
}

// logBlockedReferences reports, at debug level, the resources the posture
// will keep the engine from loading.
func (w *Worker) logBlockedReferences(html string) {
	if !w.log.Core().Enabled(zap.DebugLevel) {
		return
	}
	refs, err := htmlscan.ScanString(html)
	if err != nil {
		return
	}
	var blocked []htmlscan.Reference
	if !w.cfg.allowExternal {
		blocked = append(blocked, htmlscan.Filter(refs, htmlscan.External)...)
	}
	if !w.cfg.allowLocal {
		blocked = append(blocked, htmlscan.Filter(refs, htmlscan.Local)...)
	}
	for _, ref := range blocked {
		w.log.Debug("resource will be blocked",
			zap.String("kind", ref.Kind.String()),
			zap.String("element", ref.Element),
			zap.String("url", ref.URL))
	}
}

// Converter returns the converter of the latest Convert, or nil.
func (w *Worker) Converter() *Converter {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Output returns a copy of the latest conversion's document.
func (w *Worker) Output() ([]byte, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}
	conv := w.Converter()
	if conv == nil {
		return nil, fmt.Errorf("%w: no conversion", ErrNotReady)
	}
	return conv.Output()
}

// WriteOutput writes the latest conversion's document to path atomically.
func (w *Worker) WriteOutput(path string) error {
	data, err := w.Output()
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing output: %w%s", err, hints.ForOutputPath())
	}
	return nil
}

// PaperSize returns the template's size.paperSize.
func (w *Worker) PaperSize() (string, error) {
	return w.GlobalSetting("size.paperSize", PaperSizeCapacity)
}

// SetPaperSize sets size.paperSize for later conversions.
func (w *Worker) SetPaperSize(size string) error {
	return w.SetGlobalSetting("size.paperSize", size)
}

// UseCompression returns the template's useCompression.
func (w *Worker) UseCompression() (bool, error) {
	if err := w.checkOpen(); err != nil {
		return false, err
	}
	return w.global.GetBool("useCompression")
}

// SetUseCompression sets useCompression for later conversions.
func (w *Worker) SetUseCompression(use bool) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	return w.global.SetBool("useCompression", use)
}

// GlobalSetting reads a template setting into a buffer of capacity bytes.
func (w *Worker) GlobalSetting(key string, capacity int) (string, error) {
	if err := w.checkOpen(); err != nil {
		return "", err
	}
	return w.global.Get(key, capacity)
}

// SetGlobalSetting changes a template setting for later conversions.
func (w *Worker) SetGlobalSetting(key, value string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if err := checkManaged(key); err != nil {
		return err
	}
	return w.global.Set(key, value)
}

func (w *Worker) checkOpen() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrDisposed
	}
	return nil
}

// Close disposes the latest converter and the template settings. The
// runtime stays initialized. Close is idempotent.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	active := w.active
	w.active = nil
	w.mu.Unlock()

	var errs []error
	if active != nil {
		errs = append(errs, active.Close())
	}
	errs = append(errs, w.global.Close())
	return errors.Join(errs...)
}
