package lorachat

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOversizeMessage indicates that content or its wire form exceeds the configured limits.
	ErrOversizeMessage = errors.New("message too long")
	// ErrEncryptionFailed is returned when content cannot be sealed with the pre-shared key.
	ErrEncryptionFailed = errors.New("message encryption failed")
	// ErrDecryptionFailed is returned when ciphertext cannot be authenticated or decoded.
	ErrDecryptionFailed = errors.New("message decryption failed")
	// ErrMalformedEnvelope indicates a problem in structure of received envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrInvalidChannel is returned for channel names outside the allow-list.
	ErrInvalidChannel = errors.New("invalid channel")
)

// Link errors reported by Transport implementations.
var (
	ErrNotInitialized = errors.New("radio not initialized")
	ErrInitFailed     = errors.New("radio initialization failed")
	ErrLinkBusy       = errors.New("link busy")
	ErrNoAck          = errors.New("no acknowledgment")
)

// InvalidChannelError reports a rejected channel name together with the valid set.
type InvalidChannelError struct {
	Name  string
	Valid []string
}

func (e *InvalidChannelError) Error() string {
	return fmt.Sprintf("invalid channel %q, valid channels: %s", e.Name, strings.Join(e.Valid, ", "))
}

func (e *InvalidChannelError) Unwrap() error {
	return ErrInvalidChannel
}
