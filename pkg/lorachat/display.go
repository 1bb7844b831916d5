package lorachat

import (
	"context"
	"sync"
)

// Display receives envelopes for presentation. Notify must return promptly.
type Display interface {
	Notify(env Envelope)
}

// DisplayFunc adapts a function to the Display interface.
type DisplayFunc func(env Envelope)

func (f DisplayFunc) Notify(env Envelope) {
	f(env)
}

// Store persists received envelopes. Failures are reported but never stop the pipeline.
type Store interface {
	Persist(ctx context.Context, env Envelope) error
	LoadRecent(ctx context.Context, n int) ([]Envelope, error)
}

// FanOut notifies every subscribed display of each envelope.
type FanOut struct {
	Displays []Display
}

func (f *FanOut) Subscribe(display Display) {
	f.Displays = append(f.Displays, display)
}

func (f *FanOut) Notify(env Envelope) {
	wg := sync.WaitGroup{}
	wg.Add(len(f.Displays))
	for _, display := range f.Displays {
		go func() {
			defer wg.Done()
			display.Notify(env)
		}()
	}
	wg.Wait()
}
