package mqtt

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

// ServiceEnvelope wraps a chat frame published to the broker.
//
//	message ServiceEnvelope {
//	  bytes  payload    = 1;
//	  string channel_id = 2;
//	  string gateway_id = 3;
//	}
type ServiceEnvelope struct {
	Payload   []byte
	ChannelID string
	GatewayID string
}

const (
	fieldPayload   = 1
	fieldChannelID = 2
	fieldGatewayID = 3
)

// Marshal encodes the envelope in protobuf wire format.
func (e *ServiceEnvelope) Marshal() []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldPayload, protowire.BytesType)
	buf = protowire.AppendBytes(buf, e.Payload)
	if e.ChannelID != "" {
		buf = protowire.AppendTag(buf, fieldChannelID, protowire.BytesType)
		buf = protowire.AppendString(buf, e.ChannelID)
	}
	if e.GatewayID != "" {
		buf = protowire.AppendTag(buf, fieldGatewayID, protowire.BytesType)
		buf = protowire.AppendString(buf, e.GatewayID)
	}
	return buf
}

// Unmarshal decodes an envelope, skipping unknown fields.
func (e *ServiceEnvelope) Unmarshal(buf []byte) error {
	*e = ServiceEnvelope{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return malformed(n)
		}
		buf = buf[n:]

		if typ != protowire.BytesType || num < fieldPayload || num > fieldGatewayID {
			n = protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return malformed(n)
			}
			buf = buf[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(buf)
		if n < 0 {
			return malformed(n)
		}
		buf = buf[n:]
		switch num {
		case fieldPayload:
			e.Payload = append([]byte(nil), v...)
		case fieldChannelID:
			e.ChannelID = string(v)
		case fieldGatewayID:
			e.GatewayID = string(v)
		}
	}
	return nil
}

func malformed(n int) error {
	return fmt.Errorf("%w: %w", lorachat.ErrMalformedEnvelope, protowire.ParseError(n))
}
