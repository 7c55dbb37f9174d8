package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings are the flat key/value pairs of the settings file. Keys that no
// flag claims stay available for opaque lookups.
type Settings map[string]string

// Get returns the value stored under key.
func (s Settings) Get(key string) (string, bool) {
	v, ok := s[strings.ToLower(key)]
	return v, ok
}

// GetOr returns the value stored under key or def.
func (s Settings) GetOr(key, def string) string {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Keys returns the stored keys in sorted order.
func (s Settings) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultSettingsPath returns $XDG_CONFIG_HOME/bpulse/settings.yaml, falling
// back to ~/.config.
func DefaultSettingsPath(getenv func(string) string) string {
	if dir := getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "bpulse", "settings.yaml")
	}
	if home := getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", "bpulse", "settings.yaml")
	}
	return ""
}

// LoadSettings reads a YAML mapping of scalar values. Nested mappings are
// flattened with dotted keys.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read settings: %w", err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse settings %s: %w", path, err)
	}
	s := make(Settings, len(raw))
	flatten(s, "", raw)
	return s, nil
}

func flatten(dst Settings, prefix string, m map[string]interface{}) {
	for k, v := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(dst, key, val)
		case nil:
			dst[key] = ""
		case []interface{}:
			parts := make([]string, len(val))
			for i, item := range val {
				parts[i] = fmt.Sprint(item)
			}
			dst[key] = strings.Join(parts, ",")
		default:
			dst[key] = fmt.Sprint(val)
		}
	}
}

// loadOptional reads path and treats a missing file as empty settings.
func loadOptional(path string) (Settings, error) {
	if path == "" {
		return Settings{}, nil
	}
	s, err := LoadSettings(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Settings{}, nil
	}
	return s, err
}
