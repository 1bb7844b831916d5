package lorachat

import (
	"sync"
)

// DefaultReceiveBufferSize is the number of received envelopes retained.
const DefaultReceiveBufferSize = 100

// ReceiveBuffer keeps the most recent envelopes in arrival order.
type ReceiveBuffer struct {
	mu       sync.Mutex
	capacity int
	items    []Envelope
}

// NewReceiveBuffer creates a buffer holding at most capacity envelopes.
func NewReceiveBuffer(capacity int) *ReceiveBuffer {
	if capacity <= 0 {
		capacity = DefaultReceiveBufferSize
	}
	return &ReceiveBuffer{capacity: capacity}
}

// Append inserts env at the tail, evicting the oldest entries above capacity.
func (b *ReceiveBuffer) Append(env Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, env)
	if excess := len(b.items) - b.capacity; excess > 0 {
		b.items = append(b.items[:0], b.items[excess:]...)
	}
}

// Restore appends previously persisted envelopes, oldest first.
func (b *ReceiveBuffer) Restore(envs []Envelope) {
	for _, env := range envs {
		b.Append(env)
	}
}

// Query returns envelopes tagged with channel in arrival order. An empty channel matches all.
func (b *ReceiveBuffer) Query(channel string) []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]Envelope, 0, len(b.items))
	for _, env := range b.items {
		if channel == "" || env.Channel == channel {
			result = append(result, env)
		}
	}
	return result
}

// Len returns the number of retained envelopes.
func (b *ReceiveBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Cap returns the retention limit.
func (b *ReceiveBuffer) Cap() int {
	return b.capacity
}
