package lorachat

import (
	"time"
)

// MessageType classifies an envelope.
type MessageType string

const (
	TypeMessage MessageType = "message"
	TypeStatus  MessageType = "status"
	TypeError   MessageType = "error"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case TypeMessage, TypeStatus, TypeError:
		return true
	}
	return false
}

// SystemNode is the sender name used for locally generated status and error envelopes.
const SystemNode = "System"

// TimestampLayout is the ISO-8601 layout stamped on envelopes.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Envelope is a single chat message unit as it travels over the link.
type Envelope struct {
	// ID increases monotonically within one node's send stream.
	ID uint64 `json:"id"`
	// Node identifies the sender.
	Node string `json:"node"`
	// Content is plaintext, or base64 ciphertext on the wire when Encrypted is set.
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
	Type      MessageType `json:"type"`
	Encrypted bool        `json:"encrypted,omitempty"`
	Channel   string      `json:"channel,omitempty"`
}

// Time parses the envelope timestamp. Zero time is returned for unparseable values.
func (e Envelope) Time() time.Time {
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, e.Timestamp, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// LocalEnvelope builds a status or error envelope for the local display. It never goes on the wire.
func LocalEnvelope(typ MessageType, channel, content string) Envelope {
	return Envelope{
		Node:      SystemNode,
		Content:   content,
		Timestamp: time.Now().Format(TimestampLayout),
		Type:      typ,
		Channel:   channel,
	}
}
