package registry

import (
	"sync/atomic"

	"github.com/billm/pezbus/pkg/types"
)

// Mailbox accepts multipart deliveries routed to an identity
type Mailbox interface {
	Deliver(segments [][]byte) error
}

type mailboxRef struct {
	Mailbox
}

// Slot is the registry record for one identity. The owner token and name
// never change after registration. Local counters are written only by the
// owning endpoint, router counters only by the router.
type Slot struct {
	name  string
	index int
	owner types.Token

	// mailbox is the delivery target, set once when the identity is opened
	mailbox atomic.Pointer[mailboxRef]

	localSent      atomic.Uint64
	localReceived  atomic.Uint64
	routerSent     atomic.Uint64
	routerReceived atomic.Uint64
}

func newSlot(name string, index int) *Slot {
	return &Slot{
		name:  name,
		index: index,
		owner: types.NewToken(),
	}
}

// Name returns the identity name
func (s *Slot) Name() string {
	return s.name
}

// Index returns the slot's position in registration order
func (s *Slot) Index() int {
	return s.index
}

// Owns reports whether tok is the token issued when this slot was registered
func (s *Slot) Owns(tok types.Token) bool {
	return !tok.IsZero() && tok == s.owner
}

// Bind attaches the mailbox the router delivers to. It fails with
// ALREADY_BOUND if the slot has been bound before.
func (s *Slot) Bind(m Mailbox) error {
	if m == nil {
		return types.NewError(types.ErrCodeInvalidArgument, "mailbox cannot be nil")
	}
	if !s.mailbox.CompareAndSwap(nil, &mailboxRef{m}) {
		return types.NewError(types.ErrCodeAlreadyBound, "identity already opened: "+s.name)
	}
	return nil
}

// Mailbox returns the bound delivery target, or nil if not yet opened
func (s *Slot) Mailbox() Mailbox {
	ref := s.mailbox.Load()
	if ref == nil {
		return nil
	}
	return ref.Mailbox
}

// IncLocalSent records a send performed by the owning endpoint
func (s *Slot) IncLocalSent() { s.localSent.Add(1) }

// IncLocalReceived records a receive performed by the owning endpoint
func (s *Slot) IncLocalReceived() { s.localReceived.Add(1) }

// IncRouterSent records a frame the router forwarded to this identity
func (s *Slot) IncRouterSent() { s.routerSent.Add(1) }

// IncRouterReceived records a frame the router accepted from this identity
func (s *Slot) IncRouterReceived() { s.routerReceived.Add(1) }

// Stats returns a snapshot of the slot counters
func (s *Slot) Stats() types.SlotStats {
	return types.SlotStats{
		Name:           s.name,
		LocalSent:      s.localSent.Load(),
		LocalReceived:  s.localReceived.Load(),
		RouterSent:     s.routerSent.Load(),
		RouterReceived: s.routerReceived.Load(),
	}
}
