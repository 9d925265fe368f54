// Package registry implements the identity registry of the message bus.
//
// Every participant registers a unique name and receives a Handle carrying
// an ownership Token. Slots are allocated from a fixed-capacity pool and are
// never freed, so a name resolves to the same Slot for the life of the
// process. The router resolves targets only through Resolve.
package registry

import (
	"sync"

	"github.com/billm/pezbus/internal/logger"
	"github.com/billm/pezbus/pkg/types"
)

// Handle is returned by Register and identifies the registrant
type Handle struct {
	Name  string
	Token types.Token
}

// Registry maps identity names to slots
type Registry struct {
	mu       sync.RWMutex
	slots    map[string]*Slot
	order    []*Slot // registration order, append-only
	capacity int
	logger   *logger.Logger
}

// New creates a registry with room for capacity identities
func New(capacity int, log *logger.Logger) (*Registry, error) {
	if capacity <= 0 {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "registry capacity must be positive")
	}
	if log == nil {
		var err error
		log, err = logger.NewDefault()
		if err != nil {
			return nil, types.WrapError(types.ErrCodeInternal, "failed to create default logger", err)
		}
	}

	return &Registry{
		slots:    make(map[string]*Slot, capacity),
		order:    make([]*Slot, 0, capacity),
		capacity: capacity,
		logger:   log.With("component", "registry"),
	}, nil
}

// Register allocates a slot for name. Exactly one of any number of
// concurrent calls with the same name succeeds.
func (r *Registry) Register(name string) (Handle, error) {
	if err := types.ValidateName(name); err != nil {
		return Handle{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.slots[name]; exists {
		return Handle{}, types.NewError(types.ErrCodeDuplicateName, "identity already registered: "+name)
	}
	if len(r.order) >= r.capacity {
		return Handle{}, types.NewError(types.ErrCodeRegistryFull, "no free slot for identity: "+name)
	}

	slot := newSlot(name, len(r.order))
	r.slots[name] = slot
	r.order = append(r.order, slot)

	r.logger.Debug("Identity registered", "name", name, "slot", slot.index)

	return Handle{Name: name, Token: slot.owner}, nil
}

// Resolve looks up the slot registered under name
func (r *Registry) Resolve(name string) (*Slot, error) {
	r.mu.RLock()
	slot, exists := r.slots[name]
	r.mu.RUnlock()

	if !exists {
		return nil, types.NewError(types.ErrCodeNotFound, "identity not registered: "+name)
	}
	return slot, nil
}

// Dump returns a counter snapshot of every slot in registration order.
// Each counter is read atomically; the four counters of a slot are not
// read as one consistent unit.
func (r *Registry) Dump() []types.SlotStats {
	r.mu.RLock()
	slots := make([]*Slot, len(r.order))
	copy(slots, r.order)
	r.mu.RUnlock()

	stats := make([]types.SlotStats, len(slots))
	for i, slot := range slots {
		stats[i] = slot.Stats()
	}
	return stats
}

// Len returns the number of registered identities
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Cap returns the fixed capacity of the registry
func (r *Registry) Cap() int {
	return r.capacity
}
