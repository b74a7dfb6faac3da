package wkhtmltox

import (
	"fmt"

	"github.com/alnah/go-wkhtmltox/internal/config"
	"github.com/alnah/go-wkhtmltox/internal/yamlutil"
)

// Setting is one engine key/value pair.
type Setting struct {
	Key   string
	Value string
}

// Profile is a reusable set of engine settings, usually decoded from YAML:
//
//	engine:
//	  useGraphics: false
//	security:
//	  allowExternalLinks: false
//	  allowLocalFileAccess: false
//	global:
//	  size.paperSize: A4
//	  margin:
//	    top: 10mm
//	object:
//	  web.defaultEncoding: utf-8
//
// Nested maps are joined with dots. outputFormat and out are managed by
// the library and cannot appear in the global section.
type Profile struct {
	UseGraphics          bool
	AllowExternalLinks   bool
	AllowLocalFileAccess bool
	Global               []Setting
	Object               []Setting
}

// ParseProfile decodes and validates a YAML profile. The library never
// reads files: callers load data themselves.
func ParseProfile(data []byte) (*Profile, error) {
	cfg, err := config.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	global, err := cfg.GlobalSettings()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	object, err := cfg.ObjectSettings()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	return &Profile{
		UseGraphics:          cfg.Engine.UseGraphics,
		AllowExternalLinks:   cfg.Security.AllowExternalLinks,
		AllowLocalFileAccess: cfg.Security.AllowLocalFileAccess,
		Global:               fromConfig(global),
		Object:               fromConfig(object),
	}, nil
}

func fromConfig(in []config.Setting) []Setting {
	out := make([]Setting, len(in))
	for i, s := range in {
		out[i] = Setting{Key: s.Key, Value: s.Value}
	}
	return out
}

// Validate applies the same checks as ParseProfile to a Profile built in code.
func (p *Profile) Validate() error {
	if err := p.config().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	return nil
}

// RuntimeOptions returns the options a Runtime needs to honor the profile.
func (p *Profile) RuntimeOptions() []RuntimeOption {
	return []RuntimeOption{WithUseGraphics(p.UseGraphics)}
}

// YAML renders the profile in the format ParseProfile reads.
func (p *Profile) YAML() ([]byte, error) {
	return yamlutil.Encode(p.config())
}

func (p *Profile) config() *config.Config {
	cfg := &config.Config{
		Engine: config.EngineConfig{UseGraphics: p.UseGraphics},
		Security: config.SecurityConfig{
			AllowExternalLinks:   p.AllowExternalLinks,
			AllowLocalFileAccess: p.AllowLocalFileAccess,
		},
	}
	if len(p.Global) > 0 {
		cfg.Global = make(map[string]any, len(p.Global))
		for _, s := range p.Global {
			cfg.Global[s.Key] = s.Value
		}
	}
	if len(p.Object) > 0 {
		cfg.Object = make(map[string]any, len(p.Object))
		for _, s := range p.Object {
			cfg.Object[s.Key] = s.Value
		}
	}
	return cfg
}
