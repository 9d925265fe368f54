package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/billm/pezbus/pkg/types"
)

// Config represents the complete configuration for the bus process
type Config struct {
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Bus     BusConfig     `json:"bus" yaml:"bus"`
	Demo    DemoConfig    `json:"demo" yaml:"demo"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
	Output string `json:"output" yaml:"output"` // stdout, stderr, file path
}

// BusConfig contains message bus configuration
type BusConfig struct {
	Capacity        int           `json:"capacity" yaml:"capacity"`
	MaxPayloadSize  int           `json:"max_payload_size" yaml:"max_payload_size"`
	RouterQueueSize int           `json:"router_queue_size" yaml:"router_queue_size"`
	InboxCapacity   int           `json:"inbox_capacity" yaml:"inbox_capacity"`
	SendTimeout     time.Duration `json:"send_timeout" yaml:"send_timeout"`
	Trace           bool          `json:"trace" yaml:"trace"`
}

// DemoConfig contains settings for the demo and run commands
type DemoConfig struct {
	Identities   []string      `json:"identities" yaml:"identities"`
	Interval     time.Duration `json:"interval" yaml:"interval"`
	Count        int           `json:"count" yaml:"count"`
	LockOSThread bool          `json:"lock_os_thread" yaml:"lock_os_thread"`
}

// applyDefaults fills zero-valued fields with defaults
func applyDefaults(cfg *Config) {
	defaultLogging := DefaultLoggingConfig()
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaultLogging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = defaultLogging.Output
	}

	defaultBus := DefaultBusConfig()
	if cfg.Bus.Capacity == 0 {
		cfg.Bus.Capacity = defaultBus.Capacity
	}
	if cfg.Bus.MaxPayloadSize == 0 {
		cfg.Bus.MaxPayloadSize = defaultBus.MaxPayloadSize
	}
	if cfg.Bus.RouterQueueSize == 0 {
		cfg.Bus.RouterQueueSize = defaultBus.RouterQueueSize
	}
	if cfg.Bus.InboxCapacity == 0 {
		cfg.Bus.InboxCapacity = defaultBus.InboxCapacity
	}
	if cfg.Bus.SendTimeout == 0 {
		cfg.Bus.SendTimeout = defaultBus.SendTimeout
	}

	defaultDemo := DefaultDemoConfig()
	if len(cfg.Demo.Identities) == 0 {
		cfg.Demo.Identities = defaultDemo.Identities
	}
	if cfg.Demo.Interval == 0 {
		cfg.Demo.Interval = defaultDemo.Interval
	}
	if cfg.Demo.Count == 0 {
		cfg.Demo.Count = defaultDemo.Count
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// This is used by both Load() and the config reloader.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv(EnvLogOutput); v != "" {
		cfg.Logging.Output = v
	}

	if v := os.Getenv(EnvCapacity); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return types.WrapError(types.ErrCodeInvalidArgument, "invalid "+EnvCapacity, err)
		}
		cfg.Bus.Capacity = n
	}
	if v := os.Getenv(EnvMaxPayload); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return types.WrapError(types.ErrCodeInvalidArgument, "invalid "+EnvMaxPayload, err)
		}
		cfg.Bus.MaxPayloadSize = n
	}
	if v := os.Getenv(EnvInboxCapacity); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return types.WrapError(types.ErrCodeInvalidArgument, "invalid "+EnvInboxCapacity, err)
		}
		cfg.Bus.InboxCapacity = n
	}
	if v := os.Getenv(EnvSendTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return types.WrapError(types.ErrCodeInvalidArgument, "invalid "+EnvSendTimeout, err)
		}
		cfg.Bus.SendTimeout = d
	}
	if v := os.Getenv(EnvTrace); v != "" {
		cfg.Bus.Trace = strings.ToLower(v) == "true" || v == "1"
	}

	return nil
}

// Load builds a Config from path (or the default config file when path is
// empty and the file exists), falling back to defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg *Config

	if path == "" {
		defaultPath, err := GetDefaultConfigPath()
		if err == nil {
			if _, err := os.Stat(defaultPath); err == nil {
				path = defaultPath
			} else if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to check config file: %w", err)
			}
		}
	}

	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cfg == nil {
		cfg = &Config{
			Logging: DefaultLoggingConfig(),
			Bus:     DefaultBusConfig(),
			Demo:    DefaultDemoConfig(),
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for validity
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level))
	}
	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid log format: %s (must be json or text)", c.Logging.Format))
	}

	if err := c.Bus.Validate(); err != nil {
		return err
	}

	if c.Demo.Interval < 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "demo interval cannot be negative")
	}
	if c.Demo.Count < 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "demo count cannot be negative")
	}
	for _, name := range c.Demo.Identities {
		if err := types.ValidateName(name); err != nil {
			return types.WrapError(types.ErrCodeInvalidArgument, "invalid demo identity", err)
		}
	}

	return nil
}

// Validate checks the bus configuration for validity
func (c BusConfig) Validate() error {
	if c.Capacity <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "bus capacity must be positive")
	}
	if c.MaxPayloadSize <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "max payload size must be positive")
	}
	if c.RouterQueueSize <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "router queue size must be positive")
	}
	if c.InboxCapacity <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "inbox capacity must be positive")
	}
	if c.SendTimeout <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "send timeout must be positive")
	}
	return nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Logging: %s, Bus: %s, Demo: %s}",
		c.Logging.String(), c.Bus.String(), c.Demo.String())
}

func (c LoggingConfig) String() string {
	return fmt.Sprintf("LoggingConfig{Level: %s, Format: %s, Output: %s}",
		c.Level, c.Format, c.Output)
}

func (c BusConfig) String() string {
	return fmt.Sprintf("BusConfig{Capacity: %d, MaxPayloadSize: %d, RouterQueueSize: %d, InboxCapacity: %d, SendTimeout: %s, Trace: %v}",
		c.Capacity, c.MaxPayloadSize, c.RouterQueueSize, c.InboxCapacity, c.SendTimeout, c.Trace)
}

func (c DemoConfig) String() string {
	return fmt.Sprintf("DemoConfig{Identities: %v, Interval: %s, Count: %d, LockOSThread: %v}",
		c.Identities, c.Interval, c.Count, c.LockOSThread)
}
