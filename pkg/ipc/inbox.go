package ipc

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/billm/pezbus/pkg/notify"
	"github.com/billm/pezbus/pkg/types"
)

// inbox is the router-to-target lane of one endpoint: a bounded FIFO of
// multipart deliveries. When full, new deliveries are refused and the
// router drops them, counting each in RouterStats.ForwardFailed.
type inbox struct {
	mu       sync.Mutex
	pending  *queue.Queue
	capacity int
	signal   notify.Signal
}

func newInbox(capacity int, signal notify.Signal) *inbox {
	return &inbox{
		pending:  queue.New(),
		capacity: capacity,
		signal:   signal,
	}
}

// Deliver implements registry.Mailbox
func (b *inbox) Deliver(segments [][]byte) error {
	b.mu.Lock()
	if b.pending.Length() >= b.capacity {
		b.mu.Unlock()
		return types.NewError(types.ErrCodeSendFailed, "inbox full")
	}
	b.pending.Add(segments)
	b.mu.Unlock()

	b.signal.Notify()
	return nil
}

// pop removes the oldest delivery, if any
func (b *inbox) pop() ([][]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending.Length() == 0 {
		return nil, false
	}
	return b.pending.Remove().([][]byte), true
}

func (b *inbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending.Length()
}
