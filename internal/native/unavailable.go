//go:build !wkhtmltox || !cgo

package native

// Open reports ErrUnavailable: build with CGO_ENABLED=1 and -tags wkhtmltox
// to link against libwkhtmltox.
func Open() (Library, error) {
	return nil, ErrUnavailable
}
