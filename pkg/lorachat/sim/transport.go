// Package sim provides an idealized radio link for running the chat without hardware.
//
// The simulated link always accepts outbound frames and occasionally manufactures an inbound
// message. Several simulated transports can share an Air, which carries each sent frame to
// every other member.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/exepirit/lorachat/internal/log"
	"github.com/exepirit/lorachat/pkg/lorachat"
)

const (
	DefaultArrivalProbability = 0.1
	DefaultMinInterval        = 10 * time.Second

	inboxSize = 64
	// sentLogSize bounds the frames kept for Sent.
	sentLogSize = 64
)

// Config controls synthetic traffic.
type Config struct {
	// ArrivalProbability is sampled on every poll once MinInterval has elapsed since the last
	// synthetic arrival. Zero disables synthetic traffic.
	ArrivalProbability float64
	MinInterval        time.Duration
	// Codec seals synthetic messages, encrypting them when it holds a key. Without a codec
	// synthetic messages are plain JSON.
	Codec *lorachat.Codec
	// Rand is the randomness source. It is used under the transport lock.
	Rand   *rand.Rand
	Now    func() time.Time
	Logger log.Logger
}

// DefaultConfig returns the arrival parameters of the reference simulator.
func DefaultConfig() Config {
	return Config{
		ArrivalProbability: DefaultArrivalProbability,
		MinInterval:        DefaultMinInterval,
	}
}

var _ lorachat.Transport = &Transport{}

// Transport is the Link Simulator.
type Transport struct {
	cfg Config

	mu          sync.Mutex
	ready       bool
	lastArrival time.Time
	failNext    int
	failErr     error
	sent        [][]byte
	inbox       [][]byte
	air         *Air
}

// New creates an uninitialized simulated transport.
func New(cfg Config) *Transport {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Logger = log.OrNOOP(cfg.Logger)
	return &Transport{cfg: cfg}
}

// Initialize always succeeds.
func (t *Transport) Initialize(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ready = true
	t.lastArrival = t.cfg.Now()
	t.cfg.Logger.Info("Starting in simulation mode")
	return nil
}

// Send records the frame and hands it to the shared air, if any.
func (t *Transport) Send(_ context.Context, frame []byte) error {
	t.mu.Lock()
	if !t.ready {
		t.mu.Unlock()
		return lorachat.ErrNotInitialized
	}
	if t.failNext > 0 {
		t.failNext--
		err := t.failErr
		t.mu.Unlock()
		return err
	}
	frame = slices.Clone(frame)
	if len(t.sent) == sentLogSize {
		t.sent = slices.Delete(t.sent, 0, 1)
	}
	t.sent = append(t.sent, frame)
	air := t.air
	t.mu.Unlock()

	t.cfg.Logger.Debug("Simulated sending", "size", len(frame))
	if air != nil {
		air.broadcast(t, frame)
	}
	return nil
}

// Poll returns a frame delivered over the air first, then possibly a synthetic message.
func (t *Transport) Poll(_ context.Context) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return nil, lorachat.ErrNotInitialized
	}

	if len(t.inbox) > 0 {
		frame := t.inbox[0]
		t.inbox[0] = nil
		t.inbox = t.inbox[1:]
		return frame, nil
	}

	if t.cfg.ArrivalProbability <= 0 {
		return nil, nil
	}
	now := t.cfg.Now()
	if now.Sub(t.lastArrival) < t.cfg.MinInterval || t.cfg.Rand.Float64() >= t.cfg.ArrivalProbability {
		return nil, nil
	}
	t.lastArrival = now
	return t.synthesize(now)
}

func (t *Transport) synthesize(now time.Time) ([]byte, error) {
	env := lorachat.Envelope{
		ID:        uint64(1000 + t.cfg.Rand.IntN(9000)),
		Node:      fmt.Sprintf("SIM_NODE_%d", 1+t.cfg.Rand.IntN(5)),
		Content:   fmt.Sprintf("Test message %d", 1+t.cfg.Rand.IntN(100)),
		Timestamp: now.Format(lorachat.TimestampLayout),
		Type:      lorachat.TypeMessage,
	}
	if t.cfg.Codec != nil {
		return t.cfg.Codec.Seal(env)
	}
	return json.Marshal(env)
}

// Ready reports whether Initialize has been called since the last Cleanup.
func (t *Transport) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

// Cleanup marks the link uninitialized and discards undelivered frames.
func (t *Transport) Cleanup() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ready = false
	t.inbox = nil
	return nil
}

// FailNext makes the next n sends fail with err, or lorachat.ErrLinkBusy when err is nil.
func (t *Transport) FailNext(n int, err error) {
	if err == nil {
		err = lorachat.ErrLinkBusy
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failNext = n
	t.failErr = err
}

// Sent returns the most recent accepted frames, up to 64.
func (t *Transport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.sent)
}

// Deliver queues an inbound frame as if it had been received over the air.
// The oldest undelivered frame is dropped when the inbox is full.
func (t *Transport) Deliver(frame []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}
	if len(t.inbox) == inboxSize {
		t.inbox = t.inbox[1:]
	}
	t.inbox = append(t.inbox, slices.Clone(frame))
}
