// Package shutdown coordinates graceful process shutdown for the bus.
package shutdown

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/billm/pezbus/internal/logger"
	"github.com/billm/pezbus/pkg/types"
)

// State represents the current state of the shutdown process
type State string

const (
	// StateRunning indicates the process is running normally
	StateRunning State = "running"
	// StateInitiated indicates shutdown has been initiated
	StateInitiated State = "initiated"
	// StateStopping indicates the target is being closed
	StateStopping State = "stopping"
	// StateComplete indicates shutdown is complete
	StateComplete State = "complete"
)

// hookTimeout bounds a single hook
const hookTimeout = 5 * time.Second

// Hook is a function called during shutdown
type Hook func(ctx context.Context) error

// Manager closes a target on SIGINT/SIGTERM or on request, running hooks
// before and after.
type Manager struct {
	mu         sync.RWMutex
	target     io.Closer
	state      State
	timeout    time.Duration
	preHooks   []Hook
	postHooks  []Hook
	logger     *logger.Logger
	signalChan chan os.Signal
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	done       chan struct{}
	reason     string
	startedAt  time.Time
}

// New creates a shutdown manager that closes target
func New(target io.Closer, timeout time.Duration, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Global()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		target:     target,
		state:      StateRunning,
		timeout:    timeout,
		logger:     log.With("component", "shutdown_manager"),
		signalChan: make(chan os.Signal, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start begins listening for shutdown signals
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}

	signal.Notify(m.signalChan, syscall.SIGINT, syscall.SIGTERM)
	m.started = true
	m.logger.Info("Shutdown manager started", "timeout", m.timeout)

	go m.handleSignals()
}

// Stop stops signal handling without shutting down
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return
	}

	signal.Stop(m.signalChan)
	m.cancel()
	m.started = false

	m.logger.Debug("Shutdown manager stopped")
}

// Shutdown runs pre hooks, closes the target, then runs post hooks. Only
// the first call does any work.
func (m *Manager) Shutdown(ctx context.Context, reason string) error {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return types.NewError(types.ErrCodeInvalid, "shutdown already initiated")
	}
	m.state = StateInitiated
	m.reason = reason
	m.startedAt = time.Now()
	m.logger.Info("Shutdown initiated", "reason", reason)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.runHooks(ctx, "pre-shutdown", m.hooks(true)); err != nil {
		m.logger.Error("Pre-shutdown hooks failed", "error", err)
	}

	m.setState(StateStopping)
	if m.target != nil {
		if err := m.target.Close(); err != nil {
			// keep going, post hooks still run
			m.logger.Error("Close failed", "error", err)
		}
	}

	if err := m.runHooks(ctx, "post-shutdown", m.hooks(false)); err != nil {
		m.logger.Error("Post-shutdown hooks failed", "error", err)
	}

	m.setState(StateComplete)
	close(m.done)

	m.logger.Info("Shutdown complete", "reason", reason, "duration", time.Since(m.startedAt))
	return nil
}

// AddPreHook registers a hook run before the target is closed
func (m *Manager) AddPreHook(hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preHooks = append(m.preHooks, hook)
}

// AddPostHook registers a hook run after the target is closed
func (m *Manager) AddPostHook(hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postHooks = append(m.postHooks, hook)
}

// State returns the current shutdown state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsShuttingDown returns true once shutdown has been initiated
func (m *Manager) IsShuttingDown() bool {
	return m.State() != StateRunning
}

// Reason returns why shutdown was initiated
func (m *Manager) Reason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reason
}

// Done is closed when shutdown completes
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until shutdown completes or ctx is done
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return types.WrapError(types.ErrCodeCanceled, "wait for shutdown canceled", ctx.Err())
	}
}

// String returns a string representation of the shutdown manager
func (m *Manager) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("Manager{state: %s, timeout: %v, hooks: %d, started: %t}",
		m.state, m.timeout, len(m.preHooks)+len(m.postHooks), m.started)
}

func (m *Manager) handleSignals() {
	for {
		select {
		case sig := <-m.signalChan:
			m.logger.Info("Shutdown signal received", "signal", sig.String())
			go func() {
				if err := m.Shutdown(context.Background(), "signal received: "+sig.String()); err != nil {
					m.logger.Debug("Ignoring signal", "signal", sig.String(), "error", err)
				}
			}()
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) hooks(pre bool) []Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.postHooks
	if pre {
		src = m.preHooks
	}
	hooks := make([]Hook, len(src))
	copy(hooks, src)
	return hooks
}

func (m *Manager) runHooks(ctx context.Context, phase string, hooks []Hook) error {
	var firstErr error
	for i, hook := range hooks {
		hookCtx, cancel := context.WithTimeout(ctx, hookTimeout)
		err := hook(hookCtx)
		cancel()

		if err != nil {
			m.logger.Error("Shutdown hook failed", "phase", phase, "hook", i, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}

		if ctx.Err() != nil {
			return types.WrapError(types.ErrCodeCanceled, phase+" hooks canceled", ctx.Err())
		}
	}

	if firstErr != nil {
		return types.WrapError(types.ErrCodeInternal, phase+" hooks failed", firstErr)
	}
	return nil
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.logger.Debug("Shutdown state changed", "state", string(state))
}
