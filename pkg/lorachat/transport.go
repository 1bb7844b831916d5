package lorachat

import (
	"context"
)

// Transport moves raw frames over the radio link.
//
// A transport starts uninitialized. Initialize makes it ready, Cleanup returns it to the
// uninitialized state. Send and Poll on an uninitialized transport fail with ErrNotInitialized.
type Transport interface {
	// Initialize brings the link up. It is the only place hardware failures surface.
	Initialize(ctx context.Context) error
	// Send transmits a frame. A nil error acknowledges the transmission.
	Send(ctx context.Context, frame []byte) error
	// Poll returns the next received frame without blocking, or nil when nothing arrived.
	Poll(ctx context.Context) ([]byte, error)
	// Ready reports whether the link is initialized.
	Ready() bool
	// Cleanup releases the link. It is safe to call more than once.
	Cleanup() error
}

// LinkStatus describes the state of a transport for status reports.
func LinkStatus(t Transport) string {
	if t != nil && t.Ready() {
		return "Connected"
	}
	return "Disconnected"
}
