package types

import "fmt"

const (
	// MaxNameLen is the longest identity name accepted by the registry
	MaxNameLen = 32

	// DefaultMaxPayloadSize is the payload limit when none is configured
	DefaultMaxPayloadSize = 1024

	// DefaultCapacity is the default number of registry slots
	DefaultCapacity = 1024

	// BroadcastName is reserved for a future fan-out target. It cannot be
	// registered and frames addressed to it are dropped by the router.
	BroadcastName = "*"
)

// Frame is the unit carried from an endpoint to the router
type Frame struct {
	Source  string
	Target  string
	Payload []byte
}

// String returns a short representation of the frame
func (f Frame) String() string {
	return fmt.Sprintf("Frame{Source: %s, Target: %s, Size: %d}", f.Source, f.Target, len(f.Payload))
}

// Delivery is what the router forwards to a target endpoint. The source name
// is consumed for counter attribution and not carried onward.
type Delivery struct {
	Target  string
	Payload []byte
}

// SlotStats is a snapshot of one registry slot's counters
type SlotStats struct {
	Name           string `json:"name" yaml:"name"`
	LocalSent      uint64 `json:"local_sent" yaml:"local_sent"`
	LocalReceived  uint64 `json:"local_received" yaml:"local_received"`
	RouterSent     uint64 `json:"router_sent" yaml:"router_sent"`
	RouterReceived uint64 `json:"router_received" yaml:"router_received"`
}

// String returns a string representation of the stats
func (s SlotStats) String() string {
	return fmt.Sprintf("SlotStats{Name: %s, LocalSent: %d, LocalReceived: %d, RouterSent: %d, RouterReceived: %d}",
		s.Name, s.LocalSent, s.LocalReceived, s.RouterSent, s.RouterReceived)
}

// ValidateName checks that name can be used as an identity
func ValidateName(name string) error {
	if name == "" {
		return NewError(ErrCodeInvalidArgument, "name cannot be empty")
	}
	if len(name) > MaxNameLen {
		return NewError(ErrCodeInvalidArgument,
			fmt.Sprintf("name %q exceeds %d bytes", name, MaxNameLen))
	}
	if name == BroadcastName {
		return NewError(ErrCodeInvalidArgument, "name is reserved for broadcast")
	}
	return nil
}
