package sim

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Air is a shared broadcast medium between simulated transports.
// A frame sent by one member reaches every other initialized member unless it is lost.
type Air struct {
	// LossProbability is the chance that a single delivery is dropped.
	LossProbability float64

	mu      sync.Mutex
	rand    *rand.Rand
	members []*Transport
}

// NewAir creates a medium with the given per-delivery loss probability.
func NewAir(lossProbability float64) *Air {
	return &Air{
		LossProbability: lossProbability,
		rand:            rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xa1)),
	}
}

// Join attaches t to the medium.
func (a *Air) Join(t *Transport) {
	a.mu.Lock()
	a.members = append(a.members, t)
	a.mu.Unlock()

	t.mu.Lock()
	t.air = a
	t.mu.Unlock()
}

func (a *Air) broadcast(from *Transport, frame []byte) {
	a.mu.Lock()
	var receivers []*Transport
	for _, member := range a.members {
		if member == from {
			continue
		}
		if a.LossProbability > 0 && a.rand.Float64() < a.LossProbability {
			continue
		}
		receivers = append(receivers, member)
	}
	a.mu.Unlock()

	for _, member := range receivers {
		member.Deliver(frame)
	}
}
