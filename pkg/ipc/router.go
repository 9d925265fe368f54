package ipc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/billm/pezbus/internal/logger"
	"github.com/billm/pezbus/pkg/registry"
	"github.com/billm/pezbus/pkg/trace"
	"github.com/billm/pezbus/pkg/types"
)

// RouterStats holds router counters
type RouterStats struct {
	Received      uint64 `json:"received"`
	Routed        uint64 `json:"routed"`
	UnknownTarget uint64 `json:"unknown_target"`
	DecodeErrors  uint64 `json:"decode_errors"`
	ForwardFailed uint64 `json:"forward_failed"`
}

// String returns a string representation of the stats
func (s RouterStats) String() string {
	return fmt.Sprintf("RouterStats{Received: %d, Routed: %d, UnknownTarget: %d, DecodeErrors: %d, ForwardFailed: %d}",
		s.Received, s.Routed, s.UnknownTarget, s.DecodeErrors, s.ForwardFailed)
}

// Router is the single goroutine that moves frames from senders to the
// inbox of their target. Frames from one sender are forwarded in the order
// they were handed off.
type Router struct {
	registry   *registry.Registry
	inbound    chan [][]byte
	maxPayload int
	tracer     *trace.Tracer
	logger     *logger.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// stopped is closed once the router stops accepting frames
	stopped   chan struct{}
	closeOnce sync.Once

	received      atomic.Uint64
	routed        atomic.Uint64
	unknownTarget atomic.Uint64
	decodeErrors  atomic.Uint64
	forwardFailed atomic.Uint64
}

// NewRouter creates a router resolving targets through reg. queueSize bounds
// the number of frames waiting to be routed.
func NewRouter(reg *registry.Registry, queueSize, maxPayload int, tracer *trace.Tracer, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Global()
	}
	if tracer == nil {
		tracer = trace.New(false, log)
	}
	return &Router{
		registry:   reg,
		inbound:    make(chan [][]byte, queueSize),
		maxPayload: maxPayload,
		tracer:     tracer,
		logger:     log.With("component", "ipc_router"),
		stopped:    make(chan struct{}),
	}
}

// Start launches the routing goroutine. The router runs until Stop is
// called or ctx is canceled.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.stopped:
		return types.NewError(types.ErrCodeUnavailable, "router is stopped")
	default:
	}
	if r.started {
		return types.NewError(types.ErrCodeInvalid, "router already started")
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.started = true

	r.wg.Add(1)
	go r.routeLoop(ctx)

	r.logger.Info("Router started", "queue_size", cap(r.inbound))
	return nil
}

// Stop halts the routing goroutine after draining frames already queued.
// A router that was never started routes its queue on the caller's
// goroutine. Later submissions fail with SEND_FAILED.
func (r *Router) Stop(ctx context.Context) error {
	r.markStopped()

	r.mu.Lock()
	cancel, started := r.cancel, r.started
	r.mu.Unlock()

	if !started {
		if n := len(r.inbound); n > 0 {
			r.logger.Info("Routing frames queued before start", "queued", n)
		}
		r.drain()
		r.logger.Info("Router stopped", "stats", r.Stats().String())
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Router stopped", "stats", r.Stats().String())
		return nil
	case <-ctx.Done():
		return types.WrapError(types.ErrCodeTimeout, "router did not stop in time", ctx.Err())
	}
}

// Submit hands a multipart frame to the router, waiting up to timeout for
// queue space.
func (r *Router) Submit(segments [][]byte, timeout time.Duration) error {
	select {
	case <-r.stopped:
		return types.NewError(types.ErrCodeSendFailed, "router is stopped")
	default:
	}

	select {
	case r.inbound <- segments:
		return nil
	default:
	}

	if timeout <= 0 {
		return types.NewError(types.ErrCodeSendFailed, "router queue full")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r.inbound <- segments:
		return nil
	case <-r.stopped:
		return types.NewError(types.ErrCodeSendFailed, "router is stopped")
	case <-timer.C:
		return types.NewError(types.ErrCodeSendFailed, "router queue full")
	}
}

// Stats returns a snapshot of the router counters
func (r *Router) Stats() RouterStats {
	return RouterStats{
		Received:      r.received.Load(),
		Routed:        r.routed.Load(),
		UnknownTarget: r.unknownTarget.Load(),
		DecodeErrors:  r.decodeErrors.Load(),
		ForwardFailed: r.forwardFailed.Load(),
	}
}

func (r *Router) markStopped() {
	r.closeOnce.Do(func() { close(r.stopped) })
}

func (r *Router) routeLoop(ctx context.Context) {
	defer r.wg.Done()
	defer r.markStopped()

	for {
		select {
		case segments := <-r.inbound:
			r.route(segments)
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

// drain routes every frame still queued
func (r *Router) drain() {
	for {
		select {
		case segments := <-r.inbound:
			r.route(segments)
		default:
			return
		}
	}
}

// route forwards one frame. Every failure drops the frame and the loop
// moves on.
func (r *Router) route(segments [][]byte) {
	r.received.Add(1)

	frame, err := DecodeFrame(segments, r.maxPayload)
	if err != nil {
		r.decodeErrors.Add(1)
		r.logger.Warn("Dropping malformed frame", "segments", len(segments), "error", err)
		return
	}

	r.tracer.Payload(trace.StepRoute, frame.Target, frame.Payload)

	if frame.Target == types.BroadcastName {
		r.unknownTarget.Add(1)
		r.logger.Warn("Dropping frame",
			"source", frame.Source,
			"target", frame.Target,
			"error", types.NewError(types.ErrCodeRoutingError, "broadcast delivery is not supported"))
		return
	}

	target, err := r.registry.Resolve(frame.Target)
	if err != nil {
		r.unknownTarget.Add(1)
		r.logger.Warn("Dropping frame",
			"source", frame.Source,
			"target", frame.Target,
			"error", types.WrapError(types.ErrCodeRoutingError, "unknown target", err))
		return
	}

	mailbox := target.Mailbox()
	if mailbox == nil {
		r.forwardFailed.Add(1)
		r.logger.Warn("Dropping frame",
			"source", frame.Source,
			"target", frame.Target,
			"error", types.NewError(types.ErrCodeRoutingError, "target has not been opened"))
		return
	}

	delivery := EncodeDelivery(types.Delivery{Target: frame.Target, Payload: frame.Payload})
	if err := mailbox.Deliver(delivery); err != nil {
		r.forwardFailed.Add(1)
		r.logger.Warn("Dropping frame",
			"source", frame.Source,
			"target", frame.Target,
			"size", len(frame.Payload),
			"error", types.WrapError(types.ErrCodeRoutingError, "forward failed", err))
		return
	}

	if source, err := r.registry.Resolve(frame.Source); err == nil {
		source.IncRouterReceived()
	}
	target.IncRouterSent()
	r.routed.Add(1)

	r.logger.Debug("Frame routed",
		"source", frame.Source,
		"target", frame.Target,
		"size", len(frame.Payload))
}
