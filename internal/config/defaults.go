package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/billm/pezbus/pkg/types"
)

// testConfigPath is an override for the default config path used in testing
// If set, GetDefaultConfigPath will return this value instead of the standard path
var testConfigPath string

// SetTestConfigPath sets a custom config path for testing purposes
// This should only be called from tests
func SetTestConfigPath(path string) {
	testConfigPath = path
}

// GetDefaultConfigPath returns $XDG_CONFIG_HOME/pezbus/config.yaml or the
// platform equivalent
func GetDefaultConfigPath() (string, error) {
	if testConfigPath != "" {
		return testConfigPath, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "pezbus", "config.yaml"), nil
}

const (
	// Environment variable names
	EnvLogLevel      = "PEZBUS_LOG_LEVEL"
	EnvLogFormat     = "PEZBUS_LOG_FORMAT"
	EnvLogOutput     = "PEZBUS_LOG_OUTPUT"
	EnvCapacity      = "PEZBUS_CAPACITY"
	EnvMaxPayload    = "PEZBUS_MAX_PAYLOAD"
	EnvInboxCapacity = "PEZBUS_INBOX_CAPACITY"
	EnvSendTimeout   = "PEZBUS_SEND_TIMEOUT"
	EnvTrace         = "PEZBUS_TRACE"
)

const (
	// Default Logging settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// Default Bus settings
	DefaultRouterQueueSize = 1024
	DefaultInboxCapacity   = 256
	DefaultSendTimeout     = time.Second

	// Default Demo settings
	DefaultDemoInterval = time.Second
	DefaultDemoCount    = 5
)

// DefaultLoggingConfig returns the default logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  DefaultLogLevel,
		Format: DefaultLogFormat,
		Output: "stdout",
	}
}

// DefaultBusConfig returns the default bus configuration
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Capacity:        types.DefaultCapacity,
		MaxPayloadSize:  types.DefaultMaxPayloadSize,
		RouterQueueSize: DefaultRouterQueueSize,
		InboxCapacity:   DefaultInboxCapacity,
		SendTimeout:     DefaultSendTimeout,
		Trace:           false,
	}
}

// DefaultDemoConfig returns the default demo configuration
func DefaultDemoConfig() DemoConfig {
	return DemoConfig{
		Identities:   []string{"main", "foo"},
		Interval:     DefaultDemoInterval,
		Count:        DefaultDemoCount,
		LockOSThread: false,
	}
}
