package config

import (
	"bytes"
	"context"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/billm/pezbus/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestReload(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "bus:\n  trace: false\n")

	initial, err := Load(path)
	require.NoError(t, err)
	require.False(t, initial.Bus.Trace)

	r := NewReloader(path, initial, quietLog())
	var seen *Config
	r.OnReload(func(ctx context.Context, cfg *Config) error {
		seen = cfg
		return nil
	})

	writeConfig(t, dir, "config.yaml", "bus:\n  trace: true\n")
	require.NoError(t, r.Reload(context.Background()))

	require.NotNil(t, seen)
	assert.True(t, seen.Bus.Trace)
	assert.Same(t, seen, r.Current())
	assert.Equal(t, uint64(1), r.Applied())
}

func TestReloadRejected(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), "config.yaml", "bus:\n  capacity: 3\n")

	initial, err := Load(path)
	require.NoError(t, err)

	r := NewReloader(path, initial, quietLog())
	var calls int
	r.OnReload(func(ctx context.Context, cfg *Config) error {
		return types.NewError(types.ErrCodeInternal, "rejected")
	})
	r.OnReload(func(ctx context.Context, cfg *Config) error {
		calls++
		return nil
	})

	err = r.Reload(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInternal))
	assert.Same(t, initial, r.Current())
	assert.Zero(t, r.Applied())
	assert.Zero(t, calls, "later callbacks must not run")
}

func TestReloadBadFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "bus:\n  capacity: 3\n")

	initial, err := Load(path)
	require.NoError(t, err)
	r := NewReloader(path, initial, nil)

	writeConfig(t, dir, "config.yaml", "bus:\n  capacity: -1\n")
	err = r.Reload(context.Background())
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalid), "got %v", err)
	assert.Same(t, initial, r.Current())
}

func TestReloadOnSIGHUP(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "bus:\n  trace: false\n")

	initial, err := Load(path)
	require.NoError(t, err)

	r := NewReloader(path, initial, quietLog())
	r.Start(context.Background())
	r.Start(context.Background())
	defer r.Stop()

	writeConfig(t, dir, "config.yaml", "bus:\n  trace: true\n")
	r.signals <- syscall.SIGHUP

	require.Eventually(t, func() bool {
		return r.Applied() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, r.Current().Bus.Trace)
	assert.Contains(t, r.String(), "running: true")
}

func TestReloaderStop(t *testing.T) {
	r := NewReloader("", nil, quietLog())
	r.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()
	r.Stop()
	r.Stop()
	assert.Contains(t, r.String(), "running: false")
}
