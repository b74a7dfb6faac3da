// Package config decodes settings profiles: YAML documents that name the
// engine settings a Worker applies. It never reads files; callers pass the
// document bytes.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"

	"github.com/alnah/go-wkhtmltox/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigParse    = errors.New("failed to parse profile")
	ErrFieldTooLong   = errors.New("field exceeds maximum length")
	ErrInvalidKey     = errors.New("invalid setting key")
	ErrInvalidValue   = errors.New("invalid setting value")
	ErrReservedKey    = errors.New("setting is managed by the library")
	ErrTooManySetting = errors.New("too many settings")
)

// Limits for multi-tenant safety.
const (
	MaxKeyLength   = 128
	MaxValueLength = 4096 // headers, cookies and scripts can be long
	MaxSettings    = 512
)

// ReservedGlobalKeys cannot be set from a profile.
var ReservedGlobalKeys = []string{"outputFormat", "out"}

// keyPattern matches dotted identifiers with optional list indices,
// e.g. "size.paperSize" or "load.cookies[0].name".
var keyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*(\[[0-9]+\])?(\.[A-Za-z][A-Za-z0-9]*(\[[0-9]+\])?)*$`)

// Config is a decoded settings profile.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Security SecurityConfig `yaml:"security"`
	Global   map[string]any `yaml:"global"` // nested maps join with "."
	Object   map[string]any `yaml:"object"`
}

// EngineConfig defines engine initialization options.
type EngineConfig struct {
	UseGraphics bool `yaml:"useGraphics"`
}

// SecurityConfig defines the resource loading posture for objects.
type SecurityConfig struct {
	AllowExternalLinks   bool `yaml:"allowExternalLinks"`
	AllowLocalFileAccess bool `yaml:"allowLocalFileAccess"`
}

// Setting is one engine key/value pair.
type Setting struct {
	Key   string
	Value string
}

// Parse decodes and validates a profile.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yamlutil.Decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks keys, values and limits. Called by Parse, but available
// to callers that build a Config in code.
func (c *Config) Validate() error {
	global, err := c.GlobalSettings()
	if err != nil {
		return err
	}
	object, err := c.ObjectSettings()
	if err != nil {
		return err
	}
	if n := len(global) + len(object); n > MaxSettings {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManySetting, n, MaxSettings)
	}

	for _, s := range global {
		if slices.Contains(ReservedGlobalKeys, s.Key) {
			return fmt.Errorf("%w: global.%s", ErrReservedKey, s.Key)
		}
		if err := validateSetting("global", s); err != nil {
			return err
		}
	}
	for _, s := range object {
		if err := validateSetting("object", s); err != nil {
			return err
		}
	}
	return nil
}

func validateSetting(scope string, s Setting) error {
	if err := validateFieldLength(scope+" key", s.Key, MaxKeyLength); err != nil {
		return err
	}
	if !keyPattern.MatchString(s.Key) {
		return fmt.Errorf("%w: %s.%s", ErrInvalidKey, scope, s.Key)
	}
	return validateFieldLength(scope+"."+s.Key, s.Value, MaxValueLength)
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// GlobalSettings returns the global section flattened and sorted by key.
func (c *Config) GlobalSettings() ([]Setting, error) {
	return flatten("global", c.Global)
}

// ObjectSettings returns the object section flattened and sorted by key.
func (c *Config) ObjectSettings() ([]Setting, error) {
	return flatten("object", c.Object)
}

func flatten(scope string, m map[string]any) ([]Setting, error) {
	var out []Setting
	if err := flattenInto(&out, scope, "", m); err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b Setting) int { return cmp.Compare(a.Key, b.Key) })
	return out, nil
}

func flattenInto(out *[]Setting, scope, prefix string, m map[string]any) error {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := m[k].(type) {
		case map[string]any:
			if err := flattenInto(out, scope, key, v); err != nil {
				return err
			}
		case map[any]any:
			nested := make(map[string]any, len(v))
			for nk, nv := range v {
				nested[fmt.Sprint(nk)] = nv
			}
			if err := flattenInto(out, scope, key, nested); err != nil {
				return err
			}
		default:
			s, ok := scalar(v)
			if !ok {
				return fmt.Errorf("%w: %s.%s has type %T", ErrInvalidValue, scope, key, v)
			}
			*out = append(*out, Setting{Key: key, Value: s})
		}
	}
	return nil
}

// scalar renders YAML scalars the way the engine expects them.
func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	return "", false
}
