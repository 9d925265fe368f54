// Package heartbeat is a small application payload carried over the bus by
// the demo and run commands. The bus itself never looks inside it.
package heartbeat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/billm/pezbus/pkg/types"
)

// Heartbeat is a periodic liveness record sent from one identity to another
type Heartbeat struct {
	Source string          `json:"source"`
	Target string          `json:"target"`
	Seq    uint64          `json:"seq"`
	SentAt types.Timestamp `json:"sent_at"`
	Body   string          `json:"body,omitempty"`
}

// New creates a heartbeat stamped with the current time
func New(source, target string, seq uint64, body string) Heartbeat {
	return Heartbeat{
		Source: source,
		Target: target,
		Seq:    seq,
		SentAt: types.NewTimestamp(),
		Body:   body,
	}
}

// Validate checks that both ends are valid identity names
func (h Heartbeat) Validate() error {
	if err := types.ValidateName(h.Source); err != nil {
		return types.WrapError(types.ErrCodeInvalid, "invalid heartbeat source", err)
	}
	if h.Target == "" || len(h.Target) > types.MaxNameLen {
		return types.NewError(types.ErrCodeInvalid, "invalid heartbeat target: "+h.Target)
	}
	return nil
}

// Encode serializes the heartbeat into a bus payload
func (h Heartbeat) Encode() ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(h)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeInternal, "failed to serialize heartbeat", err)
	}
	return data, nil
}

// Decode parses a bus payload produced by Encode
func Decode(data []byte) (Heartbeat, error) {
	var h Heartbeat
	if err := json.Unmarshal(data, &h); err != nil {
		return Heartbeat{}, types.WrapError(types.ErrCodeInvalid, "failed to deserialize heartbeat", err)
	}
	if err := h.Validate(); err != nil {
		return Heartbeat{}, err
	}
	return h, nil
}

// Age returns how long ago the heartbeat was sent
func (h Heartbeat) Age(now time.Time) time.Duration {
	return now.Sub(h.SentAt.Time)
}

// String returns a string representation of the heartbeat
func (h Heartbeat) String() string {
	return fmt.Sprintf("Heartbeat{%s->%s seq: %d, body: %q}", h.Source, h.Target, h.Seq, h.Body)
}
