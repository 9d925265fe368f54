package ipc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/billm/pezbus/internal/config"
	"github.com/billm/pezbus/internal/logger"
	"github.com/billm/pezbus/pkg/notify"
	"github.com/billm/pezbus/pkg/registry"
	"github.com/billm/pezbus/pkg/trace"
	"github.com/billm/pezbus/pkg/types"
)

// closeTimeout bounds how long Close waits for the router to drain
const closeTimeout = 5 * time.Second

// Bus ties the identity registry, the router and the endpoints together.
// All state is owned by the Bus value; there is no package-level instance.
type Bus struct {
	mu       sync.RWMutex
	cfg      config.BusConfig
	registry *registry.Registry
	router   *Router
	notifier notify.Provider
	tracer   *trace.Tracer
	logger   *logger.Logger
	closed   bool
}

// Option customizes a Bus
type Option func(*Bus)

// WithNotifier replaces the channel-backed readiness provider
func WithNotifier(p notify.Provider) Option {
	return func(b *Bus) {
		if p != nil {
			b.notifier = p
		}
	}
}

// WithTracer replaces the tracer built from the config's trace flag
func WithTracer(t *trace.Tracer) Option {
	return func(b *Bus) {
		if t != nil {
			b.tracer = t
		}
	}
}

// New creates a bus. The router is not running until Start is called;
// frames sent before that wait in the router queue.
func New(cfg config.BusConfig, log *logger.Logger, opts ...Option) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		var err error
		log, err = logger.NewDefault()
		if err != nil {
			return nil, types.WrapError(types.ErrCodeInternal, "failed to create default logger", err)
		}
	}

	reg, err := registry.New(cfg.Capacity, log)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeInternal, "failed to create registry", err)
	}

	b := &Bus{
		cfg:      cfg,
		registry: reg,
		notifier: notify.NewChanProvider(),
		logger:   log.With("component", "ipc_bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.tracer == nil {
		b.tracer = trace.New(cfg.Trace, log)
	}
	b.router = NewRouter(reg, cfg.RouterQueueSize, cfg.MaxPayloadSize, b.tracer, log)

	b.logger.Info("Bus initialized",
		"capacity", cfg.Capacity,
		"max_payload_size", cfg.MaxPayloadSize,
		"router_queue_size", cfg.RouterQueueSize,
		"inbox_capacity", cfg.InboxCapacity,
		"send_timeout", cfg.SendTimeout.String(),
		"trace", b.tracer.Enabled())

	return b, nil
}

// NewDefault creates a bus with default configuration
func NewDefault(log *logger.Logger) (*Bus, error) {
	return New(config.DefaultBusConfig(), log)
}

// Start launches the router
func (b *Bus) Start(ctx context.Context) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return types.NewError(types.ErrCodeUnavailable, "bus is closed")
	}

	if err := b.router.Start(ctx); err != nil {
		return err
	}
	b.logger.Info("Bus started")
	return nil
}

// Register claims name and returns the handle that proves ownership of it
func (b *Bus) Register(name string) (registry.Handle, error) {
	if err := b.checkOpen(); err != nil {
		return registry.Handle{}, err
	}
	return b.registry.Register(name)
}

// Open creates the endpoint for a registered identity. Each identity can be
// opened once.
func (b *Bus) Open(h registry.Handle) (*Endpoint, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	slot, err := b.registry.Resolve(h.Name)
	if err != nil {
		return nil, err
	}
	if !slot.Owns(h.Token) {
		return nil, types.NewError(types.ErrCodeNotOwner, "handle does not own identity: "+h.Name)
	}

	box := newInbox(b.cfg.InboxCapacity, b.notifier.Watch(h.Name))
	if err := slot.Bind(box); err != nil {
		return nil, err
	}

	b.logger.Debug("Endpoint opened", "name", h.Name, "slot", slot.Index())

	return &Endpoint{
		slot:        slot,
		inbox:       box,
		router:      b.router,
		maxPayload:  b.cfg.MaxPayloadSize,
		sendTimeout: b.cfg.SendTimeout,
		tracer:      b.tracer,
		logger:      b.logger.With("component", "ipc_endpoint", "name", h.Name),
	}, nil
}

// Attach registers name and opens its endpoint in one step
func (b *Bus) Attach(name string) (*Endpoint, types.Token, error) {
	h, err := b.Register(name)
	if err != nil {
		return nil, types.Token{}, err
	}
	ep, err := b.Open(h)
	if err != nil {
		return nil, types.Token{}, err
	}
	return ep, h.Token, nil
}

// Dump returns counters for every registered identity in registration order.
// Each counter is read atomically on its own. Router counters are bumped
// after the target inbox accepts a frame, so a receiver can observe the
// payload before RouterSent and RouterReceived reflect it.
func (b *Bus) Dump() []types.SlotStats {
	return b.registry.Dump()
}

// RouterStats returns the router's own counters
func (b *Bus) RouterStats() RouterStats {
	return b.router.Stats()
}

// SetTrace toggles payload tracing for the whole bus
func (b *Bus) SetTrace(enabled bool) {
	b.tracer.SetEnabled(enabled)
	b.logger.Info("Trace toggled", "enabled", enabled)
}

// Tracing reports whether payload tracing is on
func (b *Bus) Tracing() bool {
	return b.tracer.Enabled()
}

// Close stops the router. Queued frames are routed first, including frames
// sent before the bus was ever started.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return types.NewError(types.ErrCodeInvalid, "bus already closed")
	}
	b.closed = true
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := b.router.Stop(ctx); err != nil {
		return err
	}

	b.logger.Info("Bus closed", "identities", b.registry.Len())
	return nil
}

// String returns a string representation of the bus
func (b *Bus) String() string {
	return fmt.Sprintf("Bus{identities: %d/%d, router: %s}",
		b.registry.Len(), b.registry.Cap(), b.router.Stats())
}

func (b *Bus) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return types.NewError(types.ErrCodeUnavailable, "bus is closed")
	}
	return nil
}
