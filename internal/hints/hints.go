// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-wkhtmltox/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForEngineUnavailable returns hints for a binary built without the engine.
func ForEngineUnavailable() string {
	hints := []string{"build with -tags wkhtmltox and CGO_ENABLED=1"}
	if os.Getenv("CGO_ENABLED") == "0" {
		hints = append(hints, "CGO_ENABLED=0 is set in this environment")
	}
	hints = append(hints, "install libwkhtmltox and its headers (wkhtmltox/pdf.h)")
	return formatHints(hints)
}

// ForInit returns hints for a failed engine initialization.
// Graphics mode needs a display; containers usually lack fonts.
func ForInit(useGraphics bool) string {
	var hints []string

	if useGraphics && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		hints = append(hints, "graphics mode needs a display: set DISPLAY, run under xvfb-run, or disable graphics")
	}
	if IsInContainer() {
		hints = append(hints, "install fontconfig and at least one font package in the container image")
	}

	return formatHints(hints)
}

// ForOutputPath returns hints for output file write errors.
func ForOutputPath() string {
	return format("check parent directory exists and is writable")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
