// Package notify provides the readiness capability the bus depends on.
//
// An endpoint asks its Provider for a Signal when it is opened. The router
// calls Notify after queueing a delivery and the receiving goroutine selects
// on Ready from inside its own event loop. Providers may coalesce
// notifications: one pending readiness token stands for any number of
// queued deliveries, so receivers must drain until empty.
package notify

// Signal is a readiness notification for one named channel
type Signal interface {
	// Notify marks the channel readable. It never blocks.
	Notify()

	// Ready fires at least once after each Notify
	Ready() <-chan struct{}
}

// Provider hands out signals, one per watched name
type Provider interface {
	Watch(name string) Signal
}

// ChanProvider is the default Provider backed by buffered channels
type ChanProvider struct{}

// NewChanProvider creates a channel-backed provider
func NewChanProvider() *ChanProvider {
	return &ChanProvider{}
}

// Watch returns a new coalescing signal
func (p *ChanProvider) Watch(name string) Signal {
	return &chanSignal{ch: make(chan struct{}, 1)}
}

type chanSignal struct {
	ch chan struct{}
}

func (s *chanSignal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
		// a token is already pending
	}
}

func (s *chanSignal) Ready() <-chan struct{} {
	return s.ch
}
