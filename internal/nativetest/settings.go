package nativetest

import (
	"strings"

	"github.com/alnah/go-wkhtmltox/internal/native"
)

type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindPaperSize
	kindOrientation
	kindOutputFormat
	kindErrorHandling
)

// globalKeys is the subset of libwkhtmltox global settings the engine knows.
var globalKeys = map[string]keyKind{
	"size.paperSize": kindPaperSize,
	"size.width":     kindString,
	"size.height":    kindString,
	"orientation":    kindOrientation,
	"colorMode":      kindString,
	"resolution":     kindString,
	"dpi":            kindString,
	"pageOffset":     kindString,
	"copies":         kindString,
	"collate":        kindBool,
	"outline":        kindBool,
	"outlineDepth":   kindString,
	"dumpOutline":    kindString,
	"out":            kindString,
	"documentTitle":  kindString,
	"useCompression": kindBool,
	"margin.top":     kindString,
	"margin.bottom":  kindString,
	"margin.left":    kindString,
	"margin.right":   kindString,
	"imageDPI":       kindString,
	"imageQuality":   kindString,
	"load.cookieJar": kindString,
	"outputFormat":   kindOutputFormat,
	"viewportSize":   kindString,
}

var globalDefaults = map[string]string{
	"size.paperSize": "A4",
	"orientation":    "Portrait",
	"colorMode":      "Color",
	"collate":        "true",
	"outline":        "false",
	"useCompression": "true",
	"dpi":            "96",
	"imageQuality":   "94",
}

// objectKeys is the subset of libwkhtmltox object settings the engine knows.
// Prefixes ending in "." accept any sub-key.
var objectKeys = map[string]keyKind{
	"toc.useDottedLines":             kindBool,
	"toc.captionText":                kindString,
	"toc.forwardLinks":               kindBool,
	"toc.backLinks":                  kindBool,
	"page":                           kindString,
	"header.":                        kindString,
	"footer.":                        kindString,
	"useExternalLinks":               kindBool,
	"useLocalLinks":                  kindBool,
	"replacing":                      kindString,
	"produceForms":                   kindBool,
	"load.username":                  kindString,
	"load.password":                  kindString,
	"load.jsdelay":                   kindString,
	"load.zoomFactor":                kindString,
	"load.customHeaders":             kindString,
	"load.repeatCustomHeaders":       kindBool,
	"load.cookies":                   kindString,
	"load.post":                      kindString,
	"load.blockLocalFileAccess":      kindBool,
	"load.stopSlowScript":            kindBool,
	"load.debugJavascript":           kindBool,
	"load.loadErrorHandling":         kindErrorHandling,
	"load.proxy":                     kindString,
	"load.runScript":                 kindString,
	"web.background":                 kindBool,
	"web.loadImages":                 kindBool,
	"web.enableJavascript":           kindBool,
	"web.enableIntelligentShrinking": kindBool,
	"web.minimumFontSize":            kindString,
	"web.printMediaType":             kindBool,
	"web.defaultEncoding":            kindString,
	"web.userStyleSheet":             kindString,
	"web.enablePlugins":              kindBool,
	"includeInOutline":               kindBool,
	"pagesCount":                     kindBool,
	"tocXsl":                         kindString,
}

var objectDefaults = map[string]string{
	"useExternalLinks":          "true",
	"useLocalLinks":             "true",
	"load.blockLocalFileAccess": "false",
	"load.loadErrorHandling":    "abort",
	"web.loadImages":            "true",
	"web.enableJavascript":      "true",
	"web.background":            "true",
	"includeInOutline":          "true",
}

var paperSizes = []string{
	"A0", "A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "A9",
	"B0", "B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8", "B9", "B10",
	"C5E", "Comm10E", "DLE", "Executive", "Folio", "Ledger", "Legal", "Letter", "Tabloid",
}

func lookupKind(keys map[string]keyKind, key string) (keyKind, bool) {
	if k, ok := exactKind(keys, key); ok {
		return k, true
	}
	// Indexed list entries such as load.cookies[0].name.
	if i := strings.IndexByte(key, '['); i > 0 {
		if k, ok := exactKind(keys, key[:i]); ok {
			return k, true
		}
	}
	for prefix, k := range keys {
		if strings.HasSuffix(prefix, ".") && strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
			return k, true
		}
	}
	return 0, false
}

// exactKind matches a full key. Prefix entries never match on their own.
func exactKind(keys map[string]keyKind, key string) (keyKind, bool) {
	if strings.HasSuffix(key, ".") {
		return 0, false
	}
	k, ok := keys[key]
	return k, ok
}

// normalize validates value for kind and returns its canonical form.
func normalize(kind keyKind, value string) (string, bool) {
	switch kind {
	case kindBool:
		switch strings.ToLower(value) {
		case "true":
			return "true", true
		case "false":
			return "false", true
		}
		return "", false
	case kindPaperSize:
		for _, p := range paperSizes {
			if strings.EqualFold(p, value) {
				return p, true
			}
		}
		return "", false
	case kindOrientation:
		switch strings.ToLower(value) {
		case "portrait":
			return "Portrait", true
		case "landscape":
			return "Landscape", true
		}
		return "", false
	case kindOutputFormat:
		switch strings.ToLower(value) {
		case "pdf", "ps", "":
			return strings.ToLower(value), true
		}
		return "", false
	case kindErrorHandling:
		switch strings.ToLower(value) {
		case "abort", "skip", "ignore":
			return strings.ToLower(value), true
		}
		return "", false
	}
	return value, true
}

func newSettings(scope string, defaults map[string]string) *settings {
	values := make(map[string]string, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	return &settings{scope: scope, values: values}
}

// copyValue mirrors qstrncpy: at most len(buf)-1 bytes, then a terminator.
func copyValue(buf []byte, value string) {
	n := copy(buf[:len(buf)-1], value)
	buf[n] = 0
}

func (e *Engine) CreateGlobalSettings() native.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("CreateGlobalSettings")
	if e.FailGlobalAlloc {
		return 0
	}
	h := e.alloc()
	e.globals[h] = newSettings("global", globalDefaults)
	return h
}

func (e *Engine) DestroyGlobalSettings(h native.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("DestroyGlobalSettings")
	s, ok := e.globals[h]
	if !ok {
		e.violate("DestroyGlobalSettings on unknown settings %#x", uintptr(h))
		return
	}
	if s.owner != 0 {
		e.violate("DestroyGlobalSettings on settings owned by converter %#x", uintptr(s.owner))
	}
	delete(e.globals, h)
}

func (e *Engine) SetGlobalSetting(h native.Handle, key, value string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("SetGlobalSetting")
	return e.set(e.globals, globalKeys, h, key, value)
}

func (e *Engine) GetGlobalSetting(h native.Handle, key string, buf []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("GetGlobalSetting")
	return e.get(e.globals, globalKeys, h, key, buf)
}

func (e *Engine) CreateObjectSettings() native.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("CreateObjectSettings")
	if e.FailObjectAlloc {
		return 0
	}
	h := e.alloc()
	e.objects[h] = newSettings("object", objectDefaults)
	return h
}

func (e *Engine) DestroyObjectSettings(h native.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("DestroyObjectSettings")
	s, ok := e.objects[h]
	if !ok {
		e.violate("DestroyObjectSettings on unknown settings %#x", uintptr(h))
		return
	}
	if s.owner != 0 {
		e.violate("DestroyObjectSettings on settings owned by converter %#x", uintptr(s.owner))
	}
	delete(e.objects, h)
}

func (e *Engine) SetObjectSetting(h native.Handle, key, value string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("SetObjectSetting")
	return e.set(e.objects, objectKeys, h, key, value)
}

func (e *Engine) GetObjectSetting(h native.Handle, key string, buf []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("GetObjectSetting")
	return e.get(e.objects, objectKeys, h, key, buf)
}

func (e *Engine) set(store map[native.Handle]*settings, keys map[string]keyKind, h native.Handle, key, value string) bool {
	s, ok := store[h]
	if !ok {
		e.violate("set %q on unknown or freed settings %#x", key, uintptr(h))
		return false
	}
	kind, ok := lookupKind(keys, key)
	if !ok {
		return false
	}
	v, ok := normalize(kind, value)
	if !ok {
		return false
	}
	s.values[key] = v
	return true
}

func (e *Engine) get(store map[native.Handle]*settings, keys map[string]keyKind, h native.Handle, key string, buf []byte) bool {
	s, ok := store[h]
	if !ok {
		e.violate("get %q on unknown or freed settings %#x", key, uintptr(h))
		return false
	}
	if _, ok := lookupKind(keys, key); !ok || len(buf) == 0 {
		return false
	}
	copyValue(buf, s.values[key])
	return true
}
