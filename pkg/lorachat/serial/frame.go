package serial

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

const (
	// MaxFrameSize is the largest payload accepted in one stream frame.
	MaxFrameSize = 1024

	frameStart1 = 0x94
	frameStart2 = 0xc3
)

// Field numbers of the modem messages.
//
//	ToRadio   { bytes packet = 1; RadioConfig radio = 2; }
//	FromRadio { bytes packet = 1; string log = 2; }
//	RadioConfig { float frequency_mhz = 1; string preset = 2; }
const (
	fieldPacket = 1
	fieldRadio  = 2
	fieldLog    = 2

	fieldFrequency = 1
	fieldPreset    = 2
)

var errFrameTooLong = errors.New("packet too long")

// readBytes reads the next frame payload. Bytes before a start marker are skipped, as are
// frames announcing a payload longer than MaxFrameSize.
func readBytes(r io.Reader) ([]byte, error) {
	var b [1]byte
	inMarker := false
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		switch {
		case b[0] == frameStart1:
			inMarker = true
			continue
		case !inMarker || b[0] != frameStart2:
			inMarker = false
			continue
		}
		inMarker = false

		var length [2]byte
		if _, err := io.ReadFull(r, length[:]); err != nil {
			return nil, err
		}
		size := int(binary.BigEndian.Uint16(length[:]))
		if size > MaxFrameSize {
			continue
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}

// writeBytes writes data as a single frame.
func writeBytes(w io.Writer, data []byte) error {
	if len(data) > MaxFrameSize {
		return errFrameTooLong
	}

	frame := make([]byte, 4, 4+len(data))
	frame[0], frame[1] = frameStart1, frameStart2
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(data)))
	frame = append(frame, data...)

	_, err := w.Write(frame)
	return err
}

func encodePacket(packet []byte) []byte {
	buf := protowire.AppendTag(nil, fieldPacket, protowire.BytesType)
	return protowire.AppendBytes(buf, packet)
}

func encodeRadioSettings(settings lorachat.RadioSettings) []byte {
	var radio []byte
	radio = protowire.AppendTag(radio, fieldFrequency, protowire.Fixed32Type)
	radio = protowire.AppendFixed32(radio, math.Float32bits(float32(settings.FrequencyMHz)))
	radio = protowire.AppendTag(radio, fieldPreset, protowire.BytesType)
	radio = protowire.AppendString(radio, settings.Preset.Name)

	buf := protowire.AppendTag(nil, fieldRadio, protowire.BytesType)
	return protowire.AppendBytes(buf, radio)
}

// fromRadio is a decoded modem message. Exactly one field is set.
type fromRadio struct {
	packet []byte
	log    string
}

func decodeFromRadio(buf []byte) (fromRadio, error) {
	var msg fromRadio
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return msg, fmt.Errorf("%w: %w", lorachat.ErrMalformedEnvelope, protowire.ParseError(n))
		}
		buf = buf[n:]

		switch {
		case num == fieldPacket && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return msg, fmt.Errorf("%w: %w", lorachat.ErrMalformedEnvelope, protowire.ParseError(n))
			}
			msg.packet = append([]byte(nil), v...)
			buf = buf[n:]
		case num == fieldLog && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return msg, fmt.Errorf("%w: %w", lorachat.ErrMalformedEnvelope, protowire.ParseError(n))
			}
			msg.log = v
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return msg, fmt.Errorf("%w: %w", lorachat.ErrMalformedEnvelope, protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}
	return msg, nil
}
