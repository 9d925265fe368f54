package ipc

import (
	"context"
	"fmt"
	"time"

	"github.com/billm/pezbus/internal/logger"
	"github.com/billm/pezbus/pkg/registry"
	"github.com/billm/pezbus/pkg/trace"
	"github.com/billm/pezbus/pkg/types"
)

// Handler handles payloads delivered to an endpoint
type Handler interface {
	// HandleMessage processes one received payload
	HandleMessage(ctx context.Context, payload []byte) error
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, payload []byte) error

// HandleMessage implements Handler
func (f HandlerFunc) HandleMessage(ctx context.Context, payload []byte) error {
	return f(ctx, payload)
}

// Endpoint is the send/receive surface of one registered identity. Every
// operation takes the token issued at registration; calls presenting any
// other token fail with NOT_OWNER.
type Endpoint struct {
	slot        *registry.Slot
	inbox       *inbox
	router      *Router
	maxPayload  int
	sendTimeout time.Duration
	tracer      *trace.Tracer
	logger      *logger.Logger
}

// Name returns the identity this endpoint belongs to
func (e *Endpoint) Name() string {
	return e.slot.Name()
}

// Send hands payload to the router addressed to target. Success means the
// router accepted the frame, not that target received it. A nil payload is
// rejected; an empty non-nil one is a valid zero-length message.
func (e *Endpoint) Send(tok types.Token, target string, payload []byte) error {
	if err := e.checkOwner(tok, "send"); err != nil {
		return err
	}
	if target == "" {
		return types.NewError(types.ErrCodeInvalidArgument, "target cannot be empty")
	}
	if len(target) > types.MaxNameLen {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("target is %d bytes, limit %d", len(target), types.MaxNameLen))
	}
	if payload == nil {
		return types.NewError(types.ErrCodeInvalidArgument, "payload cannot be nil")
	}
	if len(payload) > e.maxPayload {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("payload is %d bytes, limit %d", len(payload), e.maxPayload))
	}

	frame := EncodeFrame(types.Frame{Source: e.Name(), Target: target, Payload: payload})
	if err := e.router.Submit(frame, e.sendTimeout); err != nil {
		e.logger.Warn("Send failed", "target", target, "size", len(payload), "error", err)
		return err
	}
	e.slot.IncLocalSent()

	e.tracer.Payload(trace.StepSend, e.Name(), payload)
	e.logger.Debug("Frame sent", "target", target, "size", len(payload))
	return nil
}

// Receive returns the next payload delivered to this endpoint. It waits up
// to timeout, or until ctx is done when timeout is zero. A zero-length
// payload is valid data.
func (e *Endpoint) Receive(ctx context.Context, tok types.Token, timeout time.Duration) ([]byte, error) {
	if err := e.checkOwner(tok, "receive"); err != nil {
		return nil, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	// Signals coalesce, so check the inbox before every wait
	for {
		if segments, ok := e.inbox.pop(); ok {
			return e.accept(segments)
		}

		select {
		case <-e.inbox.signal.Ready():
		case <-expired:
			return nil, types.NewError(types.ErrCodeTimeout,
				fmt.Sprintf("no message for %s within %s", e.Name(), timeout))
		case <-ctx.Done():
			return nil, types.WrapError(types.ErrCodeCanceled, "receive canceled", ctx.Err())
		}
	}
}

// TryReceive returns the next payload if one is already queued
func (e *Endpoint) TryReceive(tok types.Token) ([]byte, bool, error) {
	if err := e.checkOwner(tok, "receive"); err != nil {
		return nil, false, err
	}

	segments, ok := e.inbox.pop()
	if !ok {
		return nil, false, nil
	}
	payload, err := e.accept(segments)
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Ready fires when deliveries may be waiting. Notifications coalesce, so
// after it fires callers should drain with TryReceive until it reports
// nothing queued.
func (e *Endpoint) Ready() <-chan struct{} {
	return e.inbox.signal.Ready()
}

// Pending returns the number of deliveries queued for this endpoint
func (e *Endpoint) Pending() int {
	return e.inbox.len()
}

// Serve receives payloads and passes them to handler until ctx is done.
// Handler errors are logged and do not stop the loop.
func (e *Endpoint) Serve(ctx context.Context, tok types.Token, handler Handler) error {
	if err := e.checkOwner(tok, "serve"); err != nil {
		return err
	}
	if handler == nil {
		return types.NewError(types.ErrCodeInvalidArgument, "handler cannot be nil")
	}

	for {
		payload, err := e.Receive(ctx, tok, 0)
		if err != nil {
			if types.IsErrCode(err, types.ErrCodeCanceled) {
				return nil
			}
			return err
		}

		if err := handler.HandleMessage(ctx, payload); err != nil {
			e.logger.Error("Handler failed", "size", len(payload), "error", err)
		}
	}
}

// Stats returns a snapshot of this identity's counters. The router bumps
// RouterSent after the delivery is queued, so right after a Receive it may
// still trail LocalReceived until the router finishes that frame.
func (e *Endpoint) Stats() types.SlotStats {
	return e.slot.Stats()
}

func (e *Endpoint) accept(segments [][]byte) ([]byte, error) {
	delivery, err := DecodeDelivery(segments)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeInternal, "malformed delivery", err)
	}
	e.slot.IncLocalReceived()

	e.tracer.Payload(trace.StepReceive, e.Name(), delivery.Payload)
	if len(delivery.Payload) == 0 {
		e.logger.Debug("Received zero-length payload")
	}
	return delivery.Payload, nil
}

func (e *Endpoint) checkOwner(tok types.Token, op string) error {
	if !e.slot.Owns(tok) {
		return types.NewError(types.ErrCodeNotOwner,
			fmt.Sprintf("%s on %s by a caller that does not own it", op, e.Name()))
	}
	return nil
}
