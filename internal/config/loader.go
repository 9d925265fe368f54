package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/billm/pezbus/pkg/types"
	"gopkg.in/yaml.v3"
)

// envRef matches ${NAME} and ${NAME:-fallback}
var envRef = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)(?::-([^}]*))?\}`)

// expandEnv substitutes environment references in s. Unset or empty
// variables take the fallback, which defaults to "".
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		return m[2]
	})
}

// LoadFromFile reads a YAML config file. Unknown keys are rejected, string
// fields are env-expanded and unset fields take their defaults.
func LoadFromFile(path string) (*Config, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case path == "":
		return nil, types.NewError(types.ErrCodeInvalidArgument, "configuration file path cannot be empty")
	case ext != ".yaml" && ext != ".yml":
		return nil, types.NewError(types.ErrCodeInvalidArgument,
			"configuration file must have .yaml or .yml extension, got: "+ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.WrapError(types.ErrCodeNotFound, "configuration file not found: "+path, err)
		}
		return nil, types.WrapError(types.ErrCodeInvalidArgument, "failed to read configuration file: "+path, err)
	}

	cfg, err := decode(data)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeInvalid, "invalid configuration in "+path, err)
	}

	expandConfig(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, types.WrapError(types.ErrCodeInvalid, "configuration validation failed for "+path, err)
	}
	return cfg, nil
}

// decode parses a single YAML document strictly
func decode(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, types.NewError(types.ErrCodeInvalid, "configuration is empty")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, types.NewError(types.ErrCodeInvalid, "configuration contains no YAML document")
		}
		return nil, err
	}
	return &cfg, nil
}

// expandConfig env-expands every string field
func expandConfig(cfg *Config) {
	cfg.Logging.Level = expandEnv(cfg.Logging.Level)
	cfg.Logging.Format = expandEnv(cfg.Logging.Format)
	cfg.Logging.Output = expandEnv(cfg.Logging.Output)

	for i, name := range cfg.Demo.Identities {
		cfg.Demo.Identities[i] = expandEnv(name)
	}
}
