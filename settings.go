package wkhtmltox

import (
	"bytes"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/alnah/go-wkhtmltox/internal/native"
)

// Read capacities, in bytes, including the engine's terminator byte.
const (
	PaperSizeCapacity = 101
	BoolCapacity      = 6
)

// Scope says which engine namespace a SettingsStore belongs to.
type Scope int

const (
	GlobalScope Scope = iota
	ObjectScope
)

func (s Scope) String() string {
	if s == GlobalScope {
		return "global"
	}
	return "object"
}

type setting struct {
	key, value string
}

// SettingsStore is a native settings handle in the global or object scope.
//
// The store owns its handle until it is handed to the engine: global
// settings to NewConverter, object settings to Converter.AddObject. After
// that the converter frees the handle and the store refuses further use.
type SettingsStore struct {
	lib   native.Library
	scope Scope

	mu      sync.Mutex
	handle  native.Handle
	owned   bool
	history []setting
}

func newSettingsStore(lib native.Library, scope Scope) (*SettingsStore, error) {
	var h native.Handle
	if scope == GlobalScope {
		h = lib.CreateGlobalSettings()
	} else {
		h = lib.CreateObjectSettings()
	}
	if h.Null() {
		return nil, fmt.Errorf("%w: %s settings", ErrAllocation, scope)
	}
	return &SettingsStore{lib: lib, scope: scope, handle: h, owned: true}, nil
}

// Scope returns the store's scope.
func (s *SettingsStore) Scope() Scope { return s.scope }

// Handle returns the native handle, or the null handle once released.
func (s *SettingsStore) Handle() native.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Set assigns value to key. The engine validates both.
func (s *SettingsStore) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrSetting)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.owned {
		return fmt.Errorf("%w: %s settings released", ErrDisposed, s.scope)
	}
	if !s.set(key, value) {
		return fmt.Errorf("%w: %s setting %s=%q", ErrSetting, s.scope, key, value)
	}
	s.history = append(s.history, setting{key: key, value: value})
	return nil
}

func (s *SettingsStore) set(key, value string) bool {
	if s.scope == GlobalScope {
		return s.lib.SetGlobalSetting(s.handle, key, value)
	}
	return s.lib.SetObjectSetting(s.handle, key, value)
}

// Get reads key into a buffer of capacity bytes. The engine reserves one
// byte for its terminator, so at most capacity-1 bytes come back; a rune
// cut by that limit is dropped.
func (s *SettingsStore) Get(key string, capacity int) (string, error) {
	if capacity < 1 {
		return "", fmt.Errorf("%w: capacity %d for %s", ErrSetting, capacity, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.owned {
		return "", fmt.Errorf("%w: %s settings released", ErrDisposed, s.scope)
	}

	buf := make([]byte, capacity)
	var ok bool
	if s.scope == GlobalScope {
		ok = s.lib.GetGlobalSetting(s.handle, key, buf)
	} else {
		ok = s.lib.GetObjectSetting(s.handle, key, buf)
	}
	if !ok {
		return "", fmt.Errorf("%w: unknown %s setting %s", ErrSetting, s.scope, key)
	}

	n := bytes.IndexByte(buf, 0)
	if n < 0 || n > capacity-1 {
		n = capacity - 1
	}
	return string(trimPartialRune(buf[:n])), nil
}

// trimPartialRune drops an incomplete UTF-8 sequence at the end of b.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}

// SetBool stores v as "true" or "false".
func (s *SettingsStore) SetBool(key string, v bool) error {
	return s.Set(key, fmt.Sprint(v))
}

// GetBool reads a boolean setting.
func (s *SettingsStore) GetBool(key string) (bool, error) {
	v, err := s.Get(key, BoolCapacity)
	if err != nil {
		return false, err
	}
	switch v {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrSetting, key, v)
}

// Close destroys the handle if the store still owns it. It is idempotent.
func (s *SettingsStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.owned {
		return nil
	}
	if s.scope == GlobalScope {
		s.lib.DestroyGlobalSettings(s.handle)
	} else {
		s.lib.DestroyObjectSettings(s.handle)
	}
	s.owned = false
	s.handle = 0
	return nil
}

// handOff passes the handle to give and, when give succeeds, records that
// the engine now owns it.
func (s *SettingsStore) handOff(scope Scope, give func(native.Handle) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scope != scope {
		return fmt.Errorf("%w: want %s settings, got %s", ErrResource, scope, s.scope)
	}
	if !s.owned {
		return fmt.Errorf("%w: %s settings already released", ErrDisposed, s.scope)
	}
	if err := give(s.handle); err != nil {
		return err
	}
	s.owned = false
	s.handle = 0
	return nil
}

// snapshot allocates a new handle of the same scope and replays every
// successful Set on it, in order.
func (s *SettingsStore) snapshot() (*SettingsStore, error) {
	s.mu.Lock()
	history := append([]setting(nil), s.history...)
	s.mu.Unlock()

	dup, err := newSettingsStore(s.lib, s.scope)
	if err != nil {
		return nil, err
	}
	for _, kv := range history {
		if err := dup.Set(kv.key, kv.value); err != nil {
			_ = dup.Close()
			return nil, err
		}
	}
	return dup, nil
}
