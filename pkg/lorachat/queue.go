package lorachat

import (
	"slices"
	"sync"
)

// Outgoing is a formatted envelope waiting in the send queue.
type Outgoing struct {
	ID      uint64
	Channel string
	// Frame is the serialized envelope, transmitted unchanged on every attempt.
	Frame []byte
	// Attempts counts failed transmissions so far.
	Attempts int
}

// SendQueue is an unbounded FIFO of outbound frames.
type SendQueue struct {
	mu     sync.Mutex
	items  []Outgoing
	signal chan struct{}
}

// NewSendQueue creates an empty queue.
func NewSendQueue() *SendQueue {
	return &SendQueue{signal: make(chan struct{}, 1)}
}

// Enqueue appends item to the tail and wakes a waiting consumer.
func (q *SendQueue) Enqueue(item Outgoing) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Requeue appends item to the tail without waking the consumer, so a failed frame is
// retried on the next scheduled iteration rather than immediately.
func (q *SendQueue) Requeue(item Outgoing) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Dequeue pops the head without blocking. It returns false when the queue is empty.
func (q *SendQueue) Dequeue() (Outgoing, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Outgoing{}, false
	}
	item := q.items[0]
	q.items[0] = Outgoing{}
	q.items = q.items[1:]
	return item, true
}

// Len returns the queue depth.
func (q *SendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the queued items in transmission order.
func (q *SendQueue) Snapshot() []Outgoing {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

// Signal is written to after every enqueue. At most one wakeup is pending at a time.
func (q *SendQueue) Signal() <-chan struct{} {
	return q.signal
}
