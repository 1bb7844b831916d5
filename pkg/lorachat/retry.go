package lorachat

import "time"

// RetryPolicy decides what happens to a frame whose transmission failed.
// Failed frames are requeued at the tail of the send queue.
type RetryPolicy struct {
	// MaxAttempts caps transmissions per frame. Zero or less retries forever.
	MaxAttempts int
	// Backoff pauses the outbound loop after a failed transmission.
	Backoff time.Duration
}

// ShouldRetry reports whether a frame that has failed attempts times is requeued.
func (p RetryPolicy) ShouldRetry(attempts int) bool {
	return p.MaxAttempts <= 0 || attempts < p.MaxAttempts
}
