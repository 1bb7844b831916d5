package lorachat

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultMaxMessageLength is the largest accepted chat text, in bytes, for one LoRa packet.
const DefaultMaxMessageLength = 252

// CodecConfig holds the parameters of a Codec.
type CodecConfig struct {
	// NodeID is stamped on every formatted envelope.
	NodeID string
	// MaxMessageLength bounds the raw content before encryption, in bytes of UTF-8 text.
	// Non-ASCII text therefore fits fewer characters than the limit.
	MaxMessageLength int
	// MaxFrameSize bounds the serialized envelope. Zero disables the check.
	MaxFrameSize int
	// Cipher encrypts outbound content and decrypts inbound content. Nil disables encryption.
	Cipher Cipher
	// Channels validates outbound channels and supplies the default for inbound ones.
	Channels *ChannelRegistry
	// Now overrides the clock used for timestamps.
	Now func() time.Time
}

// Codec converts chat text to wire frames and back.
//
// Formatting is strict: oversize content and unknown channels are rejected. Parsing is
// permissive about channels: a missing or unknown channel is replaced by the default one.
type Codec struct {
	cfg    CodecConfig
	lastID atomic.Uint64
}

// NewCodec creates a codec. A nil channel registry accepts only the "general" channel.
func NewCodec(cfg CodecConfig) *Codec {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = DefaultMaxMessageLength
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Channels == nil {
		cfg.Channels, _ = NewChannelRegistry(nil, "general")
	}
	return &Codec{cfg: cfg}
}

// NodeID returns the local sender identifier.
func (c *Codec) NodeID() string {
	return c.cfg.NodeID
}

// Encrypted reports whether outbound content is encrypted.
func (c *Codec) Encrypted() bool {
	return c.cfg.Cipher != nil
}

// Format builds the next outbound envelope for content on channel and serializes it.
// The returned envelope carries the plaintext content.
func (c *Codec) Format(content, channel string) (Envelope, []byte, error) {
	if len(content) > c.cfg.MaxMessageLength {
		return Envelope{}, nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrOversizeMessage, len(content), c.cfg.MaxMessageLength)
	}
	if !c.cfg.Channels.IsValid(channel) {
		return Envelope{}, nil, &InvalidChannelError{Name: channel, Valid: c.cfg.Channels.Allowed()}
	}

	env := Envelope{
		ID:        c.lastID.Add(1),
		Node:      c.cfg.NodeID,
		Content:   content,
		Timestamp: c.cfg.Now().Format(TimestampLayout),
		Type:      TypeMessage,
		Channel:   channel,
	}
	frame, err := c.Seal(env)
	if err != nil {
		return Envelope{}, nil, err
	}
	env.Encrypted = c.Encrypted()
	return env, frame, nil
}

// Seal serializes env as-is, encrypting its content when a cipher is configured.
func (c *Codec) Seal(env Envelope) ([]byte, error) {
	if c.cfg.Cipher != nil {
		sealed, err := c.cfg.Cipher.Seal([]byte(env.Content))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
		}
		env.Content = base64.StdEncoding.EncodeToString(sealed)
		env.Encrypted = true
	} else {
		env.Encrypted = false
	}

	frame, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshalling error: %w", err)
	}
	if c.cfg.MaxFrameSize > 0 && len(frame) > c.cfg.MaxFrameSize {
		return nil, fmt.Errorf("%w: frame is %d bytes, limit is %d", ErrOversizeMessage, len(frame), c.cfg.MaxFrameSize)
	}
	return frame, nil
}

// wireEnvelope tells a missing content field apart from an empty one.
type wireEnvelope struct {
	Envelope
	Content *string `json:"content"`
}

// Parse deserializes an inbound frame, decrypting content when the envelope declares it.
// A frame without a sender or a content field is malformed.
// On success Content always holds plaintext; Encrypted records how it travelled.
func (c *Codec) Parse(frame []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(frame, &wire); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if wire.Node == "" {
		return Envelope{}, fmt.Errorf("%w: missing node", ErrMalformedEnvelope)
	}
	if wire.Content == nil {
		return Envelope{}, fmt.Errorf("%w: missing content", ErrMalformedEnvelope)
	}
	env := wire.Envelope
	env.Content = *wire.Content

	if env.Type == "" {
		env.Type = TypeMessage
	}
	if !env.Type.Valid() {
		return Envelope{}, fmt.Errorf("%w: unknown type %q", ErrMalformedEnvelope, env.Type)
	}

	if env.Encrypted {
		plaintext, err := c.decrypt(env.Content)
		if err != nil {
			return Envelope{}, err
		}
		env.Content = plaintext
	}

	if !c.cfg.Channels.IsValid(env.Channel) {
		env.Channel = c.cfg.Channels.Default()
	}
	return env, nil
}

func (c *Codec) decrypt(content string) (string, error) {
	if c.cfg.Cipher == nil {
		return "", fmt.Errorf("%w: no pre-shared key configured", ErrDecryptionFailed)
	}
	sealed, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	plaintext, err := c.cfg.Cipher.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}
