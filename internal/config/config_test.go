package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	data := []byte(`
engine:
  useGraphics: false
security:
  allowExternalLinks: true
global:
  size:
    paperSize: Letter
  margin.top: 10mm
  dpi: 300
  useCompression: false
object:
  web.defaultEncoding: utf-8
  "load.cookies[0].name": session
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !cfg.Security.AllowExternalLinks {
		t.Error("Security.AllowExternalLinks = false, want true")
	}
	if cfg.Security.AllowLocalFileAccess {
		t.Error("Security.AllowLocalFileAccess = true, want false")
	}

	global, err := cfg.GlobalSettings()
	if err != nil {
		t.Fatalf("GlobalSettings() error = %v", err)
	}
	wantGlobal := []Setting{
		{Key: "dpi", Value: "300"},
		{Key: "margin.top", Value: "10mm"},
		{Key: "size.paperSize", Value: "Letter"},
		{Key: "useCompression", Value: "false"},
	}
	if !slices.Equal(global, wantGlobal) {
		t.Errorf("GlobalSettings() = %v, want %v", global, wantGlobal)
	}

	object, err := cfg.ObjectSettings()
	if err != nil {
		t.Fatalf("ObjectSettings() error = %v", err)
	}
	wantObject := []Setting{
		{Key: "load.cookies[0].name", Value: "session"},
		{Key: "web.defaultEncoding", Value: "utf-8"},
	}
	if !slices.Equal(object, wantObject) {
		t.Errorf("ObjectSettings() = %v, want %v", object, wantObject)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{
			name:    "empty document",
			data:    "",
			wantErr: ErrConfigParse,
		},
		{
			name:    "unknown section",
			data:    "render:\n  fast: true\n",
			wantErr: ErrConfigParse,
		},
		{
			name:    "reserved output format",
			data:    "global:\n  outputFormat: ps\n",
			wantErr: ErrReservedKey,
		},
		{
			name:    "reserved output path",
			data:    "global:\n  out: /tmp/x.pdf\n",
			wantErr: ErrReservedKey,
		},
		{
			name:    "invalid key",
			data:    "object:\n  \"web..loadImages\": true\n",
			wantErr: ErrInvalidKey,
		},
		{
			name:    "list value",
			data:    "object:\n  load.runScript:\n    - a\n    - b\n",
			wantErr: ErrInvalidValue,
		},
		{
			name:    "value too long",
			data:    "object:\n  header.center: " + strings.Repeat("x", MaxValueLength+1) + "\n",
			wantErr: ErrFieldTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_TooManySettings(t *testing.T) {
	t.Parallel()

	cfg := &Config{Object: map[string]any{}}
	for i := range MaxSettings + 1 {
		cfg.Object[fmt.Sprintf("header.k%d", i)] = "v"
	}

	if err := cfg.Validate(); !errors.Is(err, ErrTooManySetting) {
		t.Errorf("Validate() error = %v, want %v", err, ErrTooManySetting)
	}
}

func TestValidateFieldLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		value     string
		maxLength int
		wantErr   bool
	}{
		{name: "empty value is valid", value: "", maxLength: 10},
		{name: "value at limit is valid", value: "1234567890", maxLength: 10},
		{name: "value over limit", value: "12345678901", maxLength: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validateFieldLength("test", tt.value, tt.maxLength)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFieldLength() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrFieldTooLong) {
				t.Errorf("expected ErrFieldTooLong, got %v", err)
			}
		})
	}
}

func TestKeyPattern(t *testing.T) {
	t.Parallel()

	valid := []string{"outline", "size.paperSize", "load.cookies[0].name", "header.fontSize", "margin.top"}
	invalid := []string{"", ".outline", "outline.", "size..paperSize", "load.cookies[x]", "1page", "key with space"}

	for _, k := range valid {
		if !keyPattern.MatchString(k) {
			t.Errorf("key %q rejected", k)
		}
	}
	for _, k := range invalid {
		if keyPattern.MatchString(k) {
			t.Errorf("key %q accepted", k)
		}
	}
}
