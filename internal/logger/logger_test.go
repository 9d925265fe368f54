package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/billm/pezbus/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid json config to stdout",
			cfg:     config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			wantErr: false,
		},
		{
			name:    "valid text config to stderr",
			cfg:     config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     config.LoggingConfig{Level: "invalid", Format: "json", Output: "stdout"},
			wantErr: true,
		},
		{
			name:    "invalid log format",
			cfg:     config.LoggingConfig{Level: "info", Format: "invalid", Output: "stdout"},
			wantErr: true,
		},
		{
			name:    "empty output defaults to stdout",
			cfg:     config.LoggingConfig{Level: "info", Format: "json", Output: ""},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger without error")
			}
		})
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	l.With("component", "router").Warn("frame dropped", "target", "nobody")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "frame dropped" {
		t.Errorf("msg = %v, want %q", entry["msg"], "frame dropped")
	}
	if entry["component"] != "router" {
		t.Errorf("component = %v, want router", entry["component"])
	}
	if entry["target"] != "nobody" {
		t.Errorf("target = %v, want nobody", entry["target"])
	}
}

func TestLoggerSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}
	derived := l.With("component", "test")

	derived.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug output written at info level: %s", buf.String())
	}

	l.SetLevel(LevelDebug)
	if !derived.Enabled(LevelDebug) {
		t.Error("derived logger did not follow the parent's level")
	}
	derived.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug output after SetLevel, got %q", buf.String())
	}
}

func TestLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bus.log")
	l, err := New(config.LoggingConfig{Level: "info", Format: "text", Output: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("written to file")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	prev := Global()
	SetGlobal(l)
	defer SetGlobal(prev)

	Global().Info("global info")
	Global().With("k", "v").Debug("global debug")

	out := buf.String()
	if !strings.Contains(out, "global info") || !strings.Contains(out, "global debug") {
		t.Errorf("global logger output missing entries: %q", out)
	}
	if Global().Slog() == nil {
		t.Error("Slog() returned nil")
	}
}
