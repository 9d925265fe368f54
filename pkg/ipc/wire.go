package ipc

import (
	"fmt"

	"github.com/billm/pezbus/pkg/types"
)

// Multipart layout of the two legs. Segment order is fixed.
const (
	frameSegments    = 3 // source, target, payload
	deliverySegments = 2 // target, payload
)

// EncodeFrame builds the message an endpoint hands to the router. Names are
// raw bytes without padding or terminator; the payload is copied so the
// caller may reuse its buffer.
func EncodeFrame(f types.Frame) [][]byte {
	payload := make([]byte, len(f.Payload))
	copy(payload, f.Payload)
	return [][]byte{[]byte(f.Source), []byte(f.Target), payload}
}

// DecodeFrame reads a three segment message back into a Frame. Any bad
// segment fails the whole frame.
func DecodeFrame(segments [][]byte, maxPayload int) (types.Frame, error) {
	if len(segments) != frameSegments {
		return types.Frame{}, types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("frame has %d segments, want %d", len(segments), frameSegments))
	}
	if err := checkNameSegment("source", segments[0]); err != nil {
		return types.Frame{}, err
	}
	if err := checkNameSegment("target", segments[1]); err != nil {
		return types.Frame{}, err
	}
	if len(segments[2]) > maxPayload {
		return types.Frame{}, types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("payload segment is %d bytes, limit %d", len(segments[2]), maxPayload))
	}

	return types.Frame{
		Source:  string(segments[0]),
		Target:  string(segments[1]),
		Payload: segments[2],
	}, nil
}

// EncodeDelivery builds the message the router forwards to a target
func EncodeDelivery(d types.Delivery) [][]byte {
	return [][]byte{[]byte(d.Target), d.Payload}
}

// DecodeDelivery reads a two segment message back into a Delivery
func DecodeDelivery(segments [][]byte) (types.Delivery, error) {
	if len(segments) != deliverySegments {
		return types.Delivery{}, types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("delivery has %d segments, want %d", len(segments), deliverySegments))
	}
	if err := checkNameSegment("target", segments[0]); err != nil {
		return types.Delivery{}, err
	}

	payload := segments[1]
	if payload == nil {
		payload = []byte{}
	}
	return types.Delivery{
		Target:  string(segments[0]),
		Payload: payload,
	}, nil
}

func checkNameSegment(which string, seg []byte) error {
	if len(seg) == 0 {
		return types.NewError(types.ErrCodeInvalidArgument, which+" segment is empty")
	}
	if len(seg) > types.MaxNameLen {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("%s segment is %d bytes, limit %d", which, len(seg), types.MaxNameLen))
	}
	return nil
}
