package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/billm/pezbus/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// recorder keeps the order in which hooks and the target ran
type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

func TestNewManager(t *testing.T) {
	m := New(nil, time.Second, nil)
	assert.Equal(t, StateRunning, m.State())
	assert.False(t, m.IsShuttingDown())
	assert.Contains(t, m.String(), "running")
}

func TestShutdownOrder(t *testing.T) {
	rec := &recorder{}
	m := New(closerFunc(func() error {
		rec.add("close")
		return nil
	}), time.Second, nil)

	m.AddPreHook(func(ctx context.Context) error {
		rec.add("pre")
		return nil
	})
	m.AddPostHook(func(ctx context.Context) error {
		rec.add("post")
		return nil
	})

	require.NoError(t, m.Shutdown(context.Background(), "test"))
	assert.Equal(t, []string{"pre", "close", "post"}, rec.get())
	assert.Equal(t, StateComplete, m.State())
	assert.Equal(t, "test", m.Reason())

	select {
	case <-m.Done():
	default:
		t.Fatal("Done not closed after shutdown")
	}
}

func TestShutdownTwice(t *testing.T) {
	m := New(nil, time.Second, nil)
	require.NoError(t, m.Shutdown(context.Background(), "first"))

	err := m.Shutdown(context.Background(), "second")
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalid))
	assert.Equal(t, "first", m.Reason())
}

func TestShutdownContinuesAfterFailures(t *testing.T) {
	rec := &recorder{}
	m := New(closerFunc(func() error {
		rec.add("close")
		return errors.New("close failed")
	}), time.Second, nil)

	m.AddPreHook(func(ctx context.Context) error {
		rec.add("pre")
		return errors.New("hook failed")
	})
	m.AddPostHook(func(ctx context.Context) error {
		rec.add("post")
		return nil
	})

	require.NoError(t, m.Shutdown(context.Background(), "test"))
	assert.Equal(t, []string{"pre", "close", "post"}, rec.get())
	assert.True(t, m.IsShuttingDown())
}

func TestWait(t *testing.T) {
	m := New(nil, time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.True(t, types.IsErrCode(m.Wait(ctx), types.ErrCodeCanceled))

	go func() { _ = m.Shutdown(context.Background(), "test") }()
	require.NoError(t, m.Wait(context.Background()))
}

func TestSignalTriggersShutdown(t *testing.T) {
	closed := make(chan struct{})
	m := New(closerFunc(func() error {
		close(closed)
		return nil
	}), time.Second, nil)

	m.Start()
	m.Start()
	defer m.Stop()

	// deliver directly rather than signalling the test process
	m.signalChan <- syscall.SIGTERM

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("target not closed after signal")
	}
	require.NoError(t, m.Wait(context.Background()))
	assert.Contains(t, m.Reason(), "signal received")
}
