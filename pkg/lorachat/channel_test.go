package lorachat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelRegistrySetActive(t *testing.T) {
	channels := newTestChannels(t)
	assert.Equal(t, "general", channels.Active())

	require.NoError(t, channels.SetActive("ops"))
	assert.Equal(t, "ops", channels.Active())
	assert.Equal(t, "general", channels.Default())
}

func TestChannelRegistryRejectsUnknown(t *testing.T) {
	channels := newTestChannels(t)
	require.NoError(t, channels.SetActive("weather"))

	err := channels.SetActive("random")
	assert.ErrorIs(t, err, ErrInvalidChannel)
	assert.Equal(t, "weather", channels.Active())

	var channelErr *InvalidChannelError
	require.True(t, errors.As(err, &channelErr))
	assert.Contains(t, channelErr.Error(), "general, ops, weather")
}

func TestNewChannelRegistry(t *testing.T) {
	_, err := NewChannelRegistry([]string{"a", "b"}, "c")
	assert.ErrorIs(t, err, ErrInvalidChannel)

	_, err = NewChannelRegistry(nil, "")
	assert.ErrorIs(t, err, ErrInvalidChannel)

	channels, err := NewChannelRegistry(nil, "general")
	require.NoError(t, err)
	assert.Equal(t, []string{"general"}, channels.Allowed())
	assert.True(t, channels.IsValid("general"))
	assert.False(t, channels.IsValid(""))
}

func TestChannelRegistryAllowedIsCopy(t *testing.T) {
	channels := newTestChannels(t)
	allowed := channels.Allowed()
	allowed[0] = "hijacked"
	assert.True(t, channels.IsValid("general"))
	assert.False(t, channels.IsValid("hijacked"))
}
