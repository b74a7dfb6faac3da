// Package native declares the foreign-call surface of the wkhtmltox engine.
//
// Everything that crosses the boundary goes through the Library interface.
// The cgo bindings live behind the "wkhtmltox" build tag; without it, Open
// reports ErrUnavailable so the rest of the module still builds and tests
// run against the simulated engine in internal/nativetest.
//
// Handles are opaque engine pointers. A zero Handle is the null handle.
// Booleans mirror the engine's int results: false means the call failed.
package native

import "errors"

// ErrUnavailable is returned by Open when the module was built without the
// native bindings.
var ErrUnavailable = errors.New("wkhtmltox native bindings not compiled in")

// Handle identifies engine-owned memory. It is never dereferenced in Go.
type Handle uintptr

// Null reports whether h is the null handle.
func (h Handle) Null() bool { return h == 0 }

// Callback shapes invoked by the engine while a conversion runs.
type (
	StringCallback func(conv Handle, msg []byte)
	IntCallback    func(conv Handle, val int)
	VoidCallback   func(conv Handle)
)

// Callbacks groups the five entry points registered for one converter.
// Nil members are not registered.
type Callbacks struct {
	Error           StringCallback
	Warning         StringCallback
	Finished        IntCallback
	PhaseChanged    VoidCallback
	ProgressChanged IntCallback
}

// Library is the engine's C API, one method per foreign call.
//
// Ownership rules follow the engine: CreateConverter takes ownership of the
// global settings it is given and AddObject takes ownership of the object
// settings. Settings that never reach the engine must be released with
// DestroyGlobalSettings or DestroyObjectSettings.
type Library interface {
	Init(useGraphics bool) bool
	Deinit() bool
	Version() string
	ExtendedQt() bool

	CreateGlobalSettings() Handle
	DestroyGlobalSettings(settings Handle)
	SetGlobalSetting(settings Handle, key, value string) bool
	// GetGlobalSetting writes at most len(buf)-1 bytes followed by a NUL.
	GetGlobalSetting(settings Handle, key string, buf []byte) bool

	CreateObjectSettings() Handle
	DestroyObjectSettings(settings Handle)
	SetObjectSetting(settings Handle, key, value string) bool
	GetObjectSetting(settings Handle, key string, buf []byte) bool

	CreateConverter(global Handle) Handle
	// DestroyConverter frees the converter and drops its callback
	// registration. No callback for conv fires after it returns.
	DestroyConverter(conv Handle)
	// SetCallbacks registers the converter's entry points. They stay
	// reachable until DestroyConverter returns.
	SetCallbacks(conv Handle, cb Callbacks)
	AddObject(conv, settings Handle, data []byte)
	Convert(conv Handle) bool
	CurrentPhase(conv Handle) int
	PhaseCount(conv Handle) int
	PhaseDescription(conv Handle, phase int) string
	ProgressString(conv Handle) string
	HTTPErrorCode(conv Handle) int
	// Output returns a view of engine-owned memory that stays valid until
	// the converter is destroyed. Callers copy it before keeping it.
	Output(conv Handle) []byte
}
