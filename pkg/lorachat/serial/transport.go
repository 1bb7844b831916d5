// Package serial drives a LoRa modem attached to a serial port.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"

	"github.com/exepirit/lorachat/internal/log"
	"github.com/exepirit/lorachat/pkg/lorachat"
)

const (
	DefaultBaudRate = 115200

	packetsBufferSize = 120
)

// OpenFunc opens the byte stream to the modem.
type OpenFunc func(port string, baudRate int) (io.ReadWriteCloser, error)

// OpenPort opens a system serial port.
func OpenPort(port string, baudRate int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return p, nil
}

var _ lorachat.Transport = &Transport{}

// Transport exchanges frames with the modem using 0x94 0xc3 length-prefixed framing.
// A background reader feeds received packets into a bounded queue that Poll drains;
// the oldest packet is dropped when the queue is full.
type Transport struct {
	PortName string
	BaudRate int
	Radio    lorachat.RadioSettings
	// Open defaults to OpenPort.
	Open   OpenFunc
	Logger log.Logger

	lock    sync.Mutex
	stream  io.ReadWriteCloser
	packets chan []byte
	ready   atomic.Bool
}

// NewTransport creates a transport for the given serial port with default settings
// (115200 baud, 915 MHz LongFast).
func NewTransport(port string) *Transport {
	return &Transport{
		PortName: port,
		BaudRate: DefaultBaudRate,
		Radio:    lorachat.DefaultRadioSettings(),
	}
}

func (t *Transport) logger() log.Logger {
	return log.OrNOOP(t.Logger)
}

// Initialize opens the port and pushes the radio settings to the modem.
func (t *Transport) Initialize(_ context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.ready.Load() {
		return nil
	}

	if err := t.Radio.Validate(); err != nil {
		return fmt.Errorf("%w: %w", lorachat.ErrInitFailed, err)
	}

	open := t.Open
	if open == nil {
		open = OpenPort
	}
	baudRate := t.BaudRate
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	stream, err := open(t.PortName, baudRate)
	if err != nil {
		return fmt.Errorf("%w: %w", lorachat.ErrInitFailed, err)
	}

	if err := writeBytes(stream, encodeRadioSettings(t.Radio)); err != nil {
		_ = stream.Close()
		return fmt.Errorf("%w: failed to configure radio: %w", lorachat.ErrInitFailed, err)
	}

	t.stream = stream
	t.packets = make(chan []byte, packetsBufferSize)
	t.ready.Store(true)
	go t.pullPackets(stream, t.packets)

	t.logger().Info("Radio initialized", "port", t.PortName,
		"frequency", t.Radio.FrequencyMHz, "preset", t.Radio.Preset.Name)
	return nil
}

// Send writes a frame to the modem.
func (t *Transport) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.ready.Load() {
		return lorachat.ErrNotInitialized
	}
	if err := writeBytes(t.stream, encodePacket(frame)); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

// Poll returns the next queued packet, or nil if none is waiting.
func (t *Transport) Poll(_ context.Context) ([]byte, error) {
	t.lock.Lock()
	packets := t.packets
	ready := t.ready.Load()
	t.lock.Unlock()
	if !ready {
		return nil, lorachat.ErrNotInitialized
	}
	select {
	case packet := <-packets:
		return packet, nil
	default:
		return nil, nil
	}
}

func (t *Transport) Ready() bool {
	return t.ready.Load()
}

// Cleanup closes the port. The reader goroutine exits when the stream closes.
func (t *Transport) Cleanup() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.ready.Swap(false) {
		return nil
	}
	return t.stream.Close()
}

// pullPackets continuously reads frames from the stream until it fails or is closed.
func (t *Transport) pullPackets(stream io.ReadWriteCloser, packets chan []byte) {
	for {
		buf, err := readBytes(stream)
		if err != nil {
			t.lock.Lock()
			current := t.stream == stream && t.ready.Load()
			if current {
				t.ready.Store(false)
				_ = stream.Close()
			}
			t.lock.Unlock()
			if current && !errors.Is(err, io.EOF) {
				t.logger().Error("Serial link lost", "error", err)
			}
			return
		}

		msg, err := decodeFromRadio(buf)
		switch {
		case err != nil:
			t.logger().Warn("Read packet from modem error", "error", err)
		case msg.log != "":
			t.logger().Debug("Modem log", "line", msg.log)
		case msg.packet != nil:
			if len(packets) == packetsBufferSize {
				select {
				case <-packets:
				default:
				}
			}
			packets <- msg.packet
		}
	}
}
