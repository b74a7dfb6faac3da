//go:build wkhtmltox && cgo

package native

/*
#include <string.h>
#include <wkhtmltox/pdf.h>
*/
import "C"

import "unsafe"

// Engine strings are NUL-terminated UTF-8; the length comes from strlen and
// the bytes are copied before the engine can reuse its buffer.
func engineBytes(msg *C.char) []byte {
	if msg == nil {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(msg), C.int(C.strlen(msg)))
}

//export wkGoError
func wkGoError(c *C.wkhtmltopdf_converter, msg *C.char) {
	trampolines.DispatchError(handleOf(unsafe.Pointer(c)), engineBytes(msg))
}

//export wkGoWarning
func wkGoWarning(c *C.wkhtmltopdf_converter, msg *C.char) {
	trampolines.DispatchWarning(handleOf(unsafe.Pointer(c)), engineBytes(msg))
}

//export wkGoFinished
func wkGoFinished(c *C.wkhtmltopdf_converter, val C.int) {
	trampolines.DispatchFinished(handleOf(unsafe.Pointer(c)), int(val))
}

//export wkGoPhaseChanged
func wkGoPhaseChanged(c *C.wkhtmltopdf_converter) {
	trampolines.DispatchPhaseChanged(handleOf(unsafe.Pointer(c)))
}

//export wkGoProgressChanged
func wkGoProgressChanged(c *C.wkhtmltopdf_converter, val C.int) {
	trampolines.DispatchProgressChanged(handleOf(unsafe.Pointer(c)), int(val))
}
