// Package ipc implements the in-process message bus.
//
// The bus provides:
//
//   - A registry of unique identity names, each owned by the caller that registered it
//   - Endpoints that send to a named target and receive with a timeout
//   - A single router goroutine that forwards every frame to its target
//   - Per-identity counters and optional payload tracing
//
// Delivery is fire-and-forget: a successful Send means the router accepted
// the frame. Frames for unknown targets, or for targets whose inbox is full,
// are logged and dropped. Frames from one sender to one target arrive in
// the order they were sent.
//
// Example usage:
//
//	bus, err := ipc.New(cfg.Bus, log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := bus.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer bus.Close()
//
//	ep, tok, err := bus.Attach("foo")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := ep.Send(tok, "main", []byte{0x01, 0x02}); err != nil {
//	    log.Fatal(err)
//	}
package ipc
