package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/billm/pezbus/pkg/types"
)

// reloadTimeout bounds a single signal-triggered reload
const reloadTimeout = 10 * time.Second

// ReloadCallback applies a freshly loaded config to a running process.
// Returning an error rejects the reload and keeps the previous config.
type ReloadCallback func(ctx context.Context, cfg *Config) error

// Reloader reloads the config file on SIGHUP and hands the result to the
// registered callbacks in order.
type Reloader struct {
	path string
	log  *slog.Logger

	mu        sync.Mutex
	current   *Config
	callbacks []ReloadCallback
	cancel    context.CancelFunc
	done      chan struct{}

	reloading atomic.Bool
	applied   atomic.Uint64
	signals   chan os.Signal
}

// NewReloader creates a reloader for path. A nil log uses slog.Default.
func NewReloader(path string, initial *Config, log *slog.Logger) *Reloader {
	if log == nil {
		log = slog.Default()
	}
	return &Reloader{
		path:    path,
		log:     log.With("component", "config_reloader"),
		current: initial,
		signals: make(chan os.Signal, 1),
	}
}

// OnReload registers cb to run on every reload
func (r *Reloader) OnReload(cb ReloadCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// Current returns the last config that every callback accepted
func (r *Reloader) Current() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Applied returns the number of reloads that were accepted
func (r *Reloader) Applied() uint64 {
	return r.applied.Load()
}

// Reload loads the config file again, env overrides included, and runs the
// callbacks. A reload that overlaps another one fails with UNAVAILABLE.
func (r *Reloader) Reload(ctx context.Context) error {
	if !r.reloading.CompareAndSwap(false, true) {
		return types.NewError(types.ErrCodeUnavailable, "reload already in progress")
	}
	defer r.reloading.Store(false)

	r.log.Info("Reloading configuration", "path", r.path)

	cfg, err := Load(r.path)
	if err != nil {
		return types.WrapError(types.ErrCodeInvalid, "failed to reload configuration", err)
	}

	r.mu.Lock()
	callbacks := append([]ReloadCallback(nil), r.callbacks...)
	r.mu.Unlock()

	for i, cb := range callbacks {
		if err := cb(ctx, cfg); err != nil {
			r.log.Warn("Reload rejected", "callback", i, "error", err)
			return fmt.Errorf("reload callback %d: %w", i, err)
		}
	}

	r.mu.Lock()
	r.current = cfg
	r.mu.Unlock()
	r.applied.Add(1)

	r.log.Info("Configuration reloaded", "config", cfg.String())
	return nil
}

// Start watches for SIGHUP until ctx is done or Stop is called. Starting a
// running reloader is a no-op.
func (r *Reloader) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	signal.Notify(r.signals, syscall.SIGHUP)

	go r.watch(ctx, r.done)
}

// Stop ends signal handling and waits for the watcher to exit
func (r *Reloader) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	signal.Stop(r.signals)
	cancel()
	<-done
}

func (r *Reloader) watch(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-r.signals:
			r.log.Info("Reload signal received", "signal", sig.String())

			reloadCtx, cancel := context.WithTimeout(ctx, reloadTimeout)
			if err := r.Reload(reloadCtx); err != nil {
				r.log.Error("Configuration reload failed", "error", err)
			}
			cancel()
		}
	}
}

// String returns a string representation of the reloader
func (r *Reloader) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("Reloader{path: %s, callbacks: %d, applied: %d, running: %v}",
		r.path, len(r.callbacks), r.applied.Load(), r.cancel != nil)
}
