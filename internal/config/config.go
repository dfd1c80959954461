// Package config reads the alsaio TOML configuration with environment overrides.
//
// Values are looked up by section and key. ALSAIO_<SECTION>_<KEY> in the environment
// wins over the file, and the file wins over the default passed by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/gen2brain/alsaio/internal/logging"
)

const envPrefix = "ALSAIO_"

// File is a loaded configuration.
type File struct {
	path     string
	sections map[string]map[string]any
}

// Load reads the TOML file at path. A missing file or an empty path gives an empty configuration.
func Load(path string) (*File, error) {
	f := &File{path: path, sections: make(map[string]map[string]any)}
	if path == "" {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return f, f.parse(data)
}

// Parse returns the configuration in data.
func Parse(data []byte) (*File, error) {
	f := &File{sections: make(map[string]map[string]any)}

	return f, f.parse(data)
}

func (f *File) parse(data []byte) error {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	for name, value := range raw {
		if section, ok := value.(map[string]any); ok {
			f.sections[name] = section
		}
	}

	return nil
}

// Path returns the file the configuration was loaded from.
func (f *File) Path() string {
	return f.path
}

// GetString returns the value of key in section, or def when it is not set.
func (f *File) GetString(section, key, def string) string {
	if v, ok := lookupEnv(section, key); ok {
		return v
	}

	v, ok := f.sections[section][key]
	if !ok {
		return def
	}

	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// GetInt returns the integer value of key in section, or def when it is not set or not an integer.
func (f *File) GetInt(section, key string, def int) int {
	if v, ok := lookupEnv(section, key); ok {
		return atoi(v, def)
	}

	switch t := f.sections[section][key].(type) {
	case int64:
		return int(t)
	case string:
		return atoi(t, def)
	default:
		return def
	}
}

// Logging returns the [logging] section. Keys other than level and format set module levels.
func (f *File) Logging() logging.Config {
	cfg := logging.Config{
		Level:   f.GetString("logging", "level", "info"),
		Format:  f.GetString("logging", "format", "text"),
		Modules: make(map[string]string),
	}

	for key, value := range f.sections["logging"] {
		if key == "level" || key == "format" {
			continue
		}

		if s, ok := value.(string); ok {
			cfg.Modules[key] = s
		}
	}

	return cfg
}

// EnvKey returns the environment variable overriding key in section.
func EnvKey(section, key string) string {
	return envPrefix + strings.ToUpper(section) + "_" + strings.ToUpper(key)
}

func lookupEnv(section, key string) (string, bool) {
	v := os.Getenv(EnvKey(section, key))

	return v, v != ""
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}

	return n
}
