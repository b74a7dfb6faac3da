package native

import "sync"

// Registry maps converter handles to their registered callbacks.
//
// The engine's callbacks carry only the converter pointer, so the static
// trampolines look the owner up here. An entry keeps the Go closures
// reachable until Drop is called after the native converter is gone.
type Registry struct {
	mu      sync.RWMutex
	entries map[Handle]*Callbacks
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Handle]*Callbacks)}
}

// Set replaces the callbacks registered for conv.
func (r *Registry) Set(conv Handle, cb Callbacks) {
	if conv.Null() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[conv] = &cb
}

// Lookup returns the callbacks for conv, or nil.
func (r *Registry) Lookup(conv Handle) *Callbacks {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[conv]
}

// Drop forgets conv. A later converter that reuses the same address starts
// with no callbacks.
func (r *Registry) Drop(conv Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, conv)
}

// Len returns the number of live registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Dispatch helpers used by trampolines. A missing entry or member is a
// no-op: late callbacks for a dropped converter are ignored.

func (r *Registry) DispatchError(conv Handle, msg []byte) {
	if cb := r.Lookup(conv); cb != nil && cb.Error != nil {
		cb.Error(conv, msg)
	}
}

func (r *Registry) DispatchWarning(conv Handle, msg []byte) {
	if cb := r.Lookup(conv); cb != nil && cb.Warning != nil {
		cb.Warning(conv, msg)
	}
}

func (r *Registry) DispatchFinished(conv Handle, val int) {
	if cb := r.Lookup(conv); cb != nil && cb.Finished != nil {
		cb.Finished(conv, val)
	}
}

func (r *Registry) DispatchPhaseChanged(conv Handle) {
	if cb := r.Lookup(conv); cb != nil && cb.PhaseChanged != nil {
		cb.PhaseChanged(conv)
	}
}

func (r *Registry) DispatchProgressChanged(conv Handle, val int) {
	if cb := r.Lookup(conv); cb != nil && cb.ProgressChanged != nil {
		cb.ProgressChanged(conv, val)
	}
}
