// Package nativetest provides an in-process engine that implements
// native.Library for tests.
//
// The engine follows libwkhtmltox's observable contract: the same settings
// ownership rules, the same phase sequence, NUL-terminated setting reads
// and callbacks fired synchronously from inside Convert. It renders a tiny
// PDF instead of laying out HTML. Misuse that would be undefined behavior
// in the real engine (touching a destroyed handle, reusing settings owned
// by a destroyed converter) is recorded in Violations.
package nativetest

import (
	"fmt"
	"slices"
	"sync"

	"github.com/alnah/go-wkhtmltox/internal/native"
)

// Phases mirrors the engine's phase list for a single-object conversion.
var Phases = []string{
	"Loading pages",
	"Counting pages",
	"Resolving links",
	"Loading headers and footers",
	"Printing pages",
	"Done",
}

// LoadFunc is consulted for every resource the engine is allowed to load.
// Returning an error makes the load fail.
type LoadFunc func(kind, url string) error

type settings struct {
	scope  string
	values map[string]string
	// owner is the converter that took ownership, 0 while caller-owned.
	owner native.Handle
}

type converter struct {
	global   native.Handle
	objects  []job
	phase    int
	progress int
	running  bool
	done     bool
	output   []byte
}

type job struct {
	settings native.Handle
	html     string
}

// Engine is a simulated libwkhtmltox. The zero value is not usable; call New.
type Engine struct {
	// Knobs, set before use.
	InitFails          bool
	FailGlobalAlloc    bool
	FailObjectAlloc    bool
	FailConverterAlloc bool
	FailConvert        bool
	HTTPCode           int
	// ReuseHandles hands out freed converter addresses again, like malloc.
	ReuseHandles bool
	// Load is called for each allowed resource load; nil means loads succeed.
	Load LoadFunc
	// ExtraWarnings are emitted during the loading phase of every conversion.
	ExtraWarnings []string
	// ExtraErrors are emitted as error callbacks without failing the run.
	ExtraErrors []string

	mu          sync.Mutex
	next        native.Handle
	freed       []native.Handle
	registry    *native.Registry
	globals     map[native.Handle]*settings
	objects     map[native.Handle]*settings
	converters  map[native.Handle]*converter
	destroyed   map[native.Handle]int
	calls       []string
	violations  []string
	initCalls   int
	deinitCall  int
	initialized bool
	loads       []string
}

var _ native.Library = (*Engine)(nil)

// New returns a ready engine.
func New() *Engine {
	return &Engine{
		next:       0x1000,
		registry:   native.NewRegistry(),
		globals:    make(map[native.Handle]*settings),
		objects:    make(map[native.Handle]*settings),
		converters: make(map[native.Handle]*converter),
		destroyed:  make(map[native.Handle]int),
	}
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// InitCalls returns how many times Init was called.
func (e *Engine) InitCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initCalls
}

// DeinitCalls returns how many times Deinit was called.
func (e *Engine) DeinitCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deinitCall
}

// DestroyCount returns how many times DestroyConverter was called for conv.
func (e *Engine) DestroyCount(conv native.Handle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed[conv]
}

// LiveConverters returns the number of converters not yet destroyed.
func (e *Engine) LiveConverters() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.converters)
}

// LiveSettings returns caller-owned global and object settings still allocated.
func (e *Engine) LiveSettings() (global, object int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.globals {
		if s.owner == 0 {
			global++
		}
	}
	for _, s := range e.objects {
		if s.owner == 0 {
			object++
		}
	}
	return global, object
}

// Registrations returns the number of live callback registrations.
func (e *Engine) Registrations() int { return e.registry.Len() }

// Calls returns the foreign calls made so far, in order.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

// CallCount returns how many times the named call was made.
func (e *Engine) CallCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c == name {
			n++
		}
	}
	return n
}

// Violations returns every contract breach observed.
func (e *Engine) Violations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.violations)
}

// Loads returns the resources the engine loaded, as "kind url".
func (e *Engine) Loads() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.loads)
}

// ObjectSetting returns a setting of the n-th object added to conv.
func (e *Engine) ObjectSetting(conv native.Handle, n int, key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.converters[conv]
	if !ok || n >= len(c.objects) {
		return "", false
	}
	s, ok := e.objects[c.objects[n].settings]
	if !ok {
		return "", false
	}
	v, ok := s.values[key]
	return v, ok
}

// ConverterGlobalSetting returns a global setting of the snapshot owned by conv.
func (e *Engine) ConverterGlobalSetting(conv native.Handle, key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.converters[conv]
	if !ok {
		return "", false
	}
	s, ok := e.globals[c.global]
	if !ok {
		return "", false
	}
	v, ok := s.values[key]
	return v, ok
}

// ---------------------------------------------------------------------------
// Internal helpers (callers hold e.mu)
// ---------------------------------------------------------------------------

func (e *Engine) record(call string) { e.calls = append(e.calls, call) }

func (e *Engine) violate(format string, args ...any) {
	e.violations = append(e.violations, fmt.Sprintf(format, args...))
}

func (e *Engine) alloc() native.Handle {
	e.next += 0x10
	return e.next
}

func (e *Engine) allocConverter() native.Handle {
	if e.ReuseHandles && len(e.freed) > 0 {
		h := e.freed[0]
		e.freed = e.freed[1:]
		return h
	}
	return e.alloc()
}

func (e *Engine) converter(conv native.Handle, call string) *converter {
	c, ok := e.converters[conv]
	if !ok {
		e.violate("%s on unknown or destroyed converter %#x", call, uintptr(conv))
	}
	return c
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (e *Engine) Init(useGraphics bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("Init")
	e.initCalls++
	if e.InitFails {
		return false
	}
	if e.initialized {
		e.violate("Init called again after successful initialization")
	}
	e.initialized = true
	return true
}

func (e *Engine) Deinit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("Deinit")
	e.deinitCall++
	if len(e.converters) > 0 {
		e.violate("Deinit with %d live converters", len(e.converters))
	}
	return true
}

func (e *Engine) Version() string { return "0.12.6 (simulated)" }

func (e *Engine) ExtendedQt() bool { return false }

// ---------------------------------------------------------------------------
// Converters
// ---------------------------------------------------------------------------

func (e *Engine) CreateConverter(global native.Handle) native.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("CreateConverter")
	if e.FailConverterAlloc {
		return 0
	}
	g, ok := e.globals[global]
	if !ok {
		e.violate("CreateConverter with unknown global settings %#x", uintptr(global))
		return 0
	}
	if g.owner != 0 {
		e.violate("global settings %#x already owned by converter %#x", uintptr(global), uintptr(g.owner))
	}
	h := e.allocConverter()
	g.owner = h
	e.converters[h] = &converter{global: global}
	return h
}

func (e *Engine) DestroyConverter(conv native.Handle) {
	e.mu.Lock()
	e.record("DestroyConverter")
	e.destroyed[conv]++
	c, ok := e.converters[conv]
	if !ok {
		e.violate("DestroyConverter on unknown or destroyed converter %#x", uintptr(conv))
		e.mu.Unlock()
		return
	}
	if c.running {
		e.violate("DestroyConverter while converting %#x", uintptr(conv))
	}
	// The converter frees everything it owns.
	delete(e.globals, c.global)
	for _, j := range c.objects {
		delete(e.objects, j.settings)
	}
	delete(e.converters, conv)
	if e.ReuseHandles {
		e.freed = append(e.freed, conv)
	}
	e.mu.Unlock()

	e.registry.Drop(conv)
}

func (e *Engine) SetCallbacks(conv native.Handle, cb native.Callbacks) {
	e.mu.Lock()
	e.record("SetCallbacks")
	c := e.converter(conv, "SetCallbacks")
	e.mu.Unlock()
	if c == nil {
		return
	}
	e.registry.Set(conv, cb)
}

func (e *Engine) AddObject(conv, obj native.Handle, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("AddObject")
	c := e.converter(conv, "AddObject")
	if c == nil {
		return
	}
	s, ok := e.objects[obj]
	if !ok {
		e.violate("AddObject with unknown object settings %#x", uintptr(obj))
		return
	}
	if s.owner != 0 {
		e.violate("object settings %#x added twice", uintptr(obj))
	}
	if c.running || c.done {
		e.violate("AddObject after conversion started on %#x", uintptr(conv))
	}
	s.owner = conv
	c.objects = append(c.objects, job{settings: obj, html: string(data)})
}

func (e *Engine) CurrentPhase(conv native.Handle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.converter(conv, "CurrentPhase")
	if c == nil {
		return 0
	}
	return c.phase
}

func (e *Engine) PhaseCount(conv native.Handle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.converter(conv, "PhaseCount") == nil {
		return 0
	}
	return len(Phases)
}

func (e *Engine) PhaseDescription(conv native.Handle, phase int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.converter(conv, "PhaseDescription") == nil {
		return ""
	}
	if phase < 0 || phase >= len(Phases) {
		return ""
	}
	return Phases[phase]
}

func (e *Engine) ProgressString(conv native.Handle) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.converter(conv, "ProgressString")
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%d%%", c.progress)
}

func (e *Engine) HTTPErrorCode(conv native.Handle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.converter(conv, "HTTPErrorCode") == nil {
		return 0
	}
	return e.HTTPCode
}

func (e *Engine) Output(conv native.Handle) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("Output")
	c := e.converter(conv, "Output")
	if c == nil || !c.done {
		return nil
	}
	return c.output
}

// ---------------------------------------------------------------------------
// Convert
// ---------------------------------------------------------------------------

// Convert runs the phase loop. Callbacks fire synchronously with e.mu
// released so they may call back into the engine.
func (e *Engine) Convert(conv native.Handle) bool {
	e.mu.Lock()
	e.record("Convert")
	c := e.converter(conv, "Convert")
	if c == nil {
		e.mu.Unlock()
		return false
	}
	if c.running || c.done {
		e.violate("Convert called twice on %#x", uintptr(conv))
		e.mu.Unlock()
		return false
	}
	c.running = true
	jobs := slices.Clone(c.objects)
	global := e.globals[c.global]
	e.mu.Unlock()

	ok := len(jobs) > 0 && !e.FailConvert
	if len(jobs) == 0 {
		e.registry.DispatchError(conv, []byte("No objects to convert"))
	}
	if e.FailConvert {
		e.registry.DispatchError(conv, []byte("Simulated conversion failure"))
	}

	var texts []string
	for i := range Phases {
		if !ok && i > 0 {
			break
		}
		e.setPhase(conv, c, i)
		e.registry.DispatchPhaseChanged(conv)

		if i == 0 && ok {
			for _, msg := range e.ExtraWarnings {
				e.registry.DispatchWarning(conv, []byte(msg))
			}
			for _, msg := range e.ExtraErrors {
				e.registry.DispatchError(conv, []byte(msg))
			}
			for _, j := range jobs {
				text, loaded := e.load(conv, j)
				if !loaded {
					ok = false
				}
				texts = append(texts, text)
			}
		}

		progress := e.setProgress(c, 100*(i+1)/len(Phases))
		e.registry.DispatchProgressChanged(conv, progress)
	}

	e.mu.Lock()
	c.running = false
	c.done = ok
	if ok {
		c.output = renderPDF(global, texts)
	}
	e.mu.Unlock()

	finished := 0
	if ok {
		finished = 1
	}
	e.registry.DispatchFinished(conv, finished)
	return ok
}

func (e *Engine) setPhase(conv native.Handle, c *converter, phase int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.converters[conv]; !ok {
		e.violate("converter %#x destroyed during Convert", uintptr(conv))
	}
	c.phase = phase
}

func (e *Engine) setProgress(c *converter, progress int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	c.progress = progress
	return progress
}

// load applies the object's security settings to every resource reference.
// It reports false when a failed load aborts the conversion.
func (e *Engine) load(conv native.Handle, j job) (string, bool) {
	e.mu.Lock()
	s := e.objects[j.settings]
	var values map[string]string
	if s != nil {
		values = s.values
	}
	e.mu.Unlock()

	doc := parseDocument(j.html)
	allowExternal := values["useExternalLinks"] == "true"
	blockLocal := values["load.blockLocalFileAccess"] == "true"
	abort := values["load.loadErrorHandling"] == "abort"

	for _, ref := range doc.loads {
		switch {
		case ref.external && !allowExternal:
			e.registry.DispatchWarning(conv, []byte("Blocked access to external resource "+ref.url))
			continue
		case !ref.external && blockLocal:
			e.registry.DispatchWarning(conv, []byte("Blocked access to file "+ref.url))
			continue
		}

		kind := "local"
		if ref.external {
			kind = "external"
		}
		e.mu.Lock()
		e.loads = append(e.loads, kind+" "+ref.url)
		e.mu.Unlock()

		if e.Load == nil {
			continue
		}
		if err := e.Load(kind, ref.url); err != nil {
			msg := fmt.Sprintf("Failed to load %s, with network status code 203 and http status code 0 - %v", ref.url, err)
			if abort {
				e.registry.DispatchError(conv, []byte(msg))
				return doc.text, false
			}
			e.registry.DispatchWarning(conv, []byte(msg))
		}
	}
	return doc.text, true
}
