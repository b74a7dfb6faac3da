package wkhtmltox

import (
	"go.uber.org/zap"
)

// Option configures a Worker.
type Option func(*Worker)

// workerConfig holds internal configuration for Worker.
type workerConfig struct {
	runtime       *Runtime
	allowExternal bool
	allowLocal    bool
	global        []Setting
	object        []Setting
}

// WithRuntime sets the runtime the worker converts on. Without it the
// worker uses DefaultRuntime.
func WithRuntime(rt *Runtime) Option {
	return func(w *Worker) {
		w.cfg.runtime = rt
	}
}

// WithLogger sets the worker's logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

// WithMetrics sets the collectors updated by the worker's conversions.
func WithMetrics(m *Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithAllowExternalLinks lets documents load network resources.
// Off by default.
func WithAllowExternalLinks(allow bool) Option {
	return func(w *Worker) {
		w.cfg.allowExternal = allow
	}
}

// WithAllowLocalFileAccess lets documents load local files.
// Off by default.
func WithAllowLocalFileAccess(allow bool) Option {
	return func(w *Worker) {
		w.cfg.allowLocal = allow
	}
}

// WithGlobalSetting sets a global engine setting for every conversion.
// Settings apply in the order given.
func WithGlobalSetting(key, value string) Option {
	return func(w *Worker) {
		w.cfg.global = append(w.cfg.global, Setting{Key: key, Value: value})
	}
}

// WithObjectSetting sets an object engine setting for every conversion,
// applied after the resource loading posture.
func WithObjectSetting(key, value string) Option {
	return func(w *Worker) {
		w.cfg.object = append(w.cfg.object, Setting{Key: key, Value: value})
	}
}

// WithProfile applies a profile's posture and settings. Later options
// override it.
func WithProfile(p *Profile) Option {
	return func(w *Worker) {
		if p == nil {
			return
		}
		w.cfg.allowExternal = p.AllowExternalLinks
		w.cfg.allowLocal = p.AllowLocalFileAccess
		w.cfg.global = append(w.cfg.global, p.Global...)
		w.cfg.object = append(w.cfg.object, p.Object...)
	}
}
