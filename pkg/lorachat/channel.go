package lorachat

import (
	"fmt"
	"slices"
	"sync"
)

// ChannelRegistry validates channel names against an allow-list and tracks the active channel.
type ChannelRegistry struct {
	mu             sync.RWMutex
	allowed        []string
	defaultChannel string
	active         string
}

// NewChannelRegistry creates a registry whose active channel starts at defaultChannel.
// An empty allow-list permits only the default channel.
func NewChannelRegistry(allowed []string, defaultChannel string) (*ChannelRegistry, error) {
	if defaultChannel == "" {
		return nil, fmt.Errorf("%w: default channel is empty", ErrInvalidChannel)
	}
	if len(allowed) == 0 {
		allowed = []string{defaultChannel}
	}
	if !slices.Contains(allowed, defaultChannel) {
		return nil, &InvalidChannelError{Name: defaultChannel, Valid: slices.Clone(allowed)}
	}
	return &ChannelRegistry{
		allowed:        slices.Clone(allowed),
		defaultChannel: defaultChannel,
		active:         defaultChannel,
	}, nil
}

// IsValid reports whether name is in the allow-list.
func (r *ChannelRegistry) IsValid(name string) bool {
	return slices.Contains(r.allowed, name)
}

// SetActive switches the active channel. Unknown names leave the state unchanged.
func (r *ChannelRegistry) SetActive(name string) error {
	if !r.IsValid(name) {
		return &InvalidChannelError{Name: name, Valid: r.Allowed()}
	}
	r.mu.Lock()
	r.active = name
	r.mu.Unlock()
	return nil
}

// Active returns the current channel.
func (r *ChannelRegistry) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Default returns the configured default channel.
func (r *ChannelRegistry) Default() string {
	return r.defaultChannel
}

// Allowed returns a copy of the allow-list.
func (r *ChannelRegistry) Allowed() []string {
	return slices.Clone(r.allowed)
}
