//go:build wkhtmltox && cgo

package native

/*
#cgo LDFLAGS: -lwkhtmltox
#include <stdlib.h>
#include <wkhtmltox/pdf.h>

// Go trampolines, defined in wkhtmltox_export.go.
extern void wkGoError(wkhtmltopdf_converter *c, char *msg);
extern void wkGoWarning(wkhtmltopdf_converter *c, char *msg);
extern void wkGoFinished(wkhtmltopdf_converter *c, int val);
extern void wkGoPhaseChanged(wkhtmltopdf_converter *c);
extern void wkGoProgressChanged(wkhtmltopdf_converter *c, int val);

// The engine's callback types take const char *; cgo exports cannot, so
// these shims adapt the signatures.
static void wk_error_cb(wkhtmltopdf_converter *c, const char *msg) { wkGoError(c, (char *)msg); }
static void wk_warning_cb(wkhtmltopdf_converter *c, const char *msg) { wkGoWarning(c, (char *)msg); }
static void wk_finished_cb(wkhtmltopdf_converter *c, const int val) { wkGoFinished(c, val); }
static void wk_phase_cb(wkhtmltopdf_converter *c) { wkGoPhaseChanged(c); }
static void wk_progress_cb(wkhtmltopdf_converter *c, const int val) { wkGoProgressChanged(c, val); }

static void wk_register(wkhtmltopdf_converter *c) {
	wkhtmltopdf_set_error_callback(c, wk_error_cb);
	wkhtmltopdf_set_warning_callback(c, wk_warning_cb);
	wkhtmltopdf_set_finished_callback(c, wk_finished_cb);
	wkhtmltopdf_set_phase_changed_callback(c, wk_phase_cb);
	wkhtmltopdf_set_progress_changed_callback(c, wk_progress_cb);
}
*/
import "C"

import "unsafe"

// trampolines is shared by every converter in the process; the static C
// shims above are the only function pointers handed to the engine.
var trampolines = NewRegistry()

type cLibrary struct{}

// Open returns the cgo-backed Library.
func Open() (Library, error) {
	return cLibrary{}, nil
}

func cBool(v C.int) bool { return v != 0 }

func globalPtr(h Handle) *C.wkhtmltopdf_global_settings {
	return (*C.wkhtmltopdf_global_settings)(unsafe.Pointer(uintptr(h)))
}

func objectPtr(h Handle) *C.wkhtmltopdf_object_settings {
	return (*C.wkhtmltopdf_object_settings)(unsafe.Pointer(uintptr(h)))
}

func converterPtr(h Handle) *C.wkhtmltopdf_converter {
	return (*C.wkhtmltopdf_converter)(unsafe.Pointer(uintptr(h)))
}

func handleOf(p unsafe.Pointer) Handle { return Handle(uintptr(p)) }

// goString copies a NUL-terminated engine string. Returns "" for NULL.
func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

func (cLibrary) Init(useGraphics bool) bool {
	var g C.int
	if useGraphics {
		g = 1
	}
	return cBool(C.wkhtmltopdf_init(g))
}

func (cLibrary) Deinit() bool { return cBool(C.wkhtmltopdf_deinit()) }

func (cLibrary) Version() string { return goString(C.wkhtmltopdf_version()) }

func (cLibrary) ExtendedQt() bool { return cBool(C.wkhtmltopdf_extended_qt()) }

func (cLibrary) CreateGlobalSettings() Handle {
	return handleOf(unsafe.Pointer(C.wkhtmltopdf_create_global_settings()))
}

func (cLibrary) DestroyGlobalSettings(settings Handle) {
	if settings.Null() {
		return
	}
	C.wkhtmltopdf_destroy_global_settings(globalPtr(settings))
}

func (cLibrary) SetGlobalSetting(settings Handle, key, value string) bool {
	k, v := C.CString(key), C.CString(value)
	defer C.free(unsafe.Pointer(k))
	defer C.free(unsafe.Pointer(v))
	return cBool(C.wkhtmltopdf_set_global_setting(globalPtr(settings), k, v))
}

func (cLibrary) GetGlobalSetting(settings Handle, key string, buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	k := C.CString(key)
	defer C.free(unsafe.Pointer(k))
	return cBool(C.wkhtmltopdf_get_global_setting(globalPtr(settings), k,
		(*C.char)(unsafe.Pointer(&buf[0])), C.int(len(buf))))
}

func (cLibrary) CreateObjectSettings() Handle {
	return handleOf(unsafe.Pointer(C.wkhtmltopdf_create_object_settings()))
}

func (cLibrary) DestroyObjectSettings(settings Handle) {
	if settings.Null() {
		return
	}
	C.wkhtmltopdf_destroy_object_settings(objectPtr(settings))
}

func (cLibrary) SetObjectSetting(settings Handle, key, value string) bool {
	k, v := C.CString(key), C.CString(value)
	defer C.free(unsafe.Pointer(k))
	defer C.free(unsafe.Pointer(v))
	return cBool(C.wkhtmltopdf_set_object_setting(objectPtr(settings), k, v))
}

func (cLibrary) GetObjectSetting(settings Handle, key string, buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	k := C.CString(key)
	defer C.free(unsafe.Pointer(k))
	return cBool(C.wkhtmltopdf_get_object_setting(objectPtr(settings), k,
		(*C.char)(unsafe.Pointer(&buf[0])), C.int(len(buf))))
}

func (cLibrary) CreateConverter(global Handle) Handle {
	return handleOf(unsafe.Pointer(C.wkhtmltopdf_create_converter(globalPtr(global))))
}

func (cLibrary) DestroyConverter(conv Handle) {
	if conv.Null() {
		return
	}
	C.wkhtmltopdf_destroy_converter(converterPtr(conv))
	// Only now is it certain the engine will not call back for conv.
	trampolines.Drop(conv)
}

func (cLibrary) SetCallbacks(conv Handle, cb Callbacks) {
	if conv.Null() {
		return
	}
	trampolines.Set(conv, cb)
	C.wk_register(converterPtr(conv))
}

func (cLibrary) AddObject(conv, settings Handle, data []byte) {
	// The engine decodes data into its own string before returning.
	d := C.CString(string(data))
	defer C.free(unsafe.Pointer(d))
	C.wkhtmltopdf_add_object(converterPtr(conv), objectPtr(settings), d)
}

func (cLibrary) Convert(conv Handle) bool {
	return cBool(C.wkhtmltopdf_convert(converterPtr(conv)))
}

func (cLibrary) CurrentPhase(conv Handle) int {
	return int(C.wkhtmltopdf_current_phase(converterPtr(conv)))
}

func (cLibrary) PhaseCount(conv Handle) int {
	return int(C.wkhtmltopdf_phase_count(converterPtr(conv)))
}

func (cLibrary) PhaseDescription(conv Handle, phase int) string {
	return goString(C.wkhtmltopdf_phase_description(converterPtr(conv), C.int(phase)))
}

func (cLibrary) ProgressString(conv Handle) string {
	return goString(C.wkhtmltopdf_progress_string(converterPtr(conv)))
}

func (cLibrary) HTTPErrorCode(conv Handle) int {
	return int(C.wkhtmltopdf_http_error_code(converterPtr(conv)))
}

func (cLibrary) Output(conv Handle) []byte {
	var data *C.uchar
	n := C.wkhtmltopdf_get_output(converterPtr(conv), &data)
	if data == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(data)), int(n))
}
