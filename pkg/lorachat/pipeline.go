package lorachat

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/exepirit/lorachat/internal/log"
)

// DefaultPollInterval is the pause between iterations of both pipeline loops.
const DefaultPollInterval = 100 * time.Millisecond

// Driver moves frames between the queues and a Transport.
//
// The inbound loop polls the transport, parses frames and appends them to the receive buffer.
// The outbound loop transmits the head of the send queue and requeues it at the tail on failure.
type Driver struct {
	Transport Transport
	Codec     *Codec
	Queue     *SendQueue
	Buffer    *ReceiveBuffer
	// Display is notified of every accepted inbound envelope. Optional.
	Display Display
	// Store persists accepted inbound envelopes on a best-effort basis. Optional.
	Store        Store
	Retry        RetryPolicy
	PollInterval time.Duration
	Logger       log.Logger

	sent            atomic.Uint64
	failed          atomic.Uint64
	requeued        atomic.Uint64
	dropped         atomic.Uint64
	received        atomic.Uint64
	rejected        atomic.Uint64
	persistFailures atomic.Uint64
}

// Stats are the pipeline counters.
type Stats struct {
	Sent            uint64
	Failed          uint64
	Requeued        uint64
	Dropped         uint64
	Received        uint64
	Rejected        uint64
	PersistFailures uint64
}

// Stats returns a snapshot of the counters.
func (d *Driver) Stats() Stats {
	return Stats{
		Sent:            d.sent.Load(),
		Failed:          d.failed.Load(),
		Requeued:        d.requeued.Load(),
		Dropped:         d.dropped.Load(),
		Received:        d.received.Load(),
		Rejected:        d.rejected.Load(),
		PersistFailures: d.persistFailures.Load(),
	}
}

// Run executes both loops until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.inboundLoop(ctx)
	})
	g.Go(func() error {
		return d.outboundLoop(ctx)
	})
	return g.Wait()
}

func (d *Driver) interval() time.Duration {
	if d.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return d.PollInterval
}

func (d *Driver) logger() log.Logger {
	return log.OrNOOP(d.Logger)
}

func (d *Driver) inboundLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.ReceiveOnce(ctx)
		}
	}
}

func (d *Driver) outboundLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-d.Queue.Signal():
		}

		if _, err := d.SendOnce(ctx); err != nil && d.Retry.Backoff > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(d.Retry.Backoff):
			}
		}
	}
}

// ReceiveOnce performs one inbound iteration. It reports whether an envelope was accepted.
// Frames that fail to parse are dropped: the link has no back-channel for retransmission.
func (d *Driver) ReceiveOnce(ctx context.Context) bool {
	frame, err := d.Transport.Poll(ctx)
	if err != nil {
		d.logger().Debug("Cannot poll link", "error", err)
		return false
	}
	if frame == nil {
		return false
	}

	env, err := d.Codec.Parse(frame)
	if err != nil {
		d.rejected.Add(1)
		d.logger().Debug("Dropping inbound frame", "error", err, "size", len(frame))
		return false
	}

	d.Buffer.Append(env)
	d.received.Add(1)
	d.logger().Debug("Received envelope", "node", env.Node, "id", env.ID, "channel", env.Channel)

	if d.Display != nil {
		d.Display.Notify(env)
	}
	if d.Store != nil {
		if err := d.Store.Persist(ctx, env); err != nil {
			d.persistFailures.Add(1)
			d.logger().Warn("Cannot persist envelope", "error", err, "node", env.Node, "id", env.ID)
		}
	}
	return true
}

// SendOnce transmits the head of the send queue. It reports whether a frame was dequeued
// and returns the transmission error, if any. Failed frames are requeued according to Retry.
func (d *Driver) SendOnce(ctx context.Context) (bool, error) {
	item, ok := d.Queue.Dequeue()
	if !ok {
		return false, nil
	}

	err := d.Transport.Send(ctx, item.Frame)
	if err == nil {
		d.sent.Add(1)
		d.logger().Debug("Sent envelope", "id", item.ID, "attempts", item.Attempts+1)
		return true, nil
	}

	d.failed.Add(1)
	item.Attempts++
	if d.Retry.ShouldRetry(item.Attempts) {
		d.Queue.Requeue(item)
		d.requeued.Add(1)
		d.logger().Debug("Requeued envelope", "id", item.ID, "attempts", item.Attempts, "error", err)
	} else {
		d.dropped.Add(1)
		d.logger().Warn("Dropping envelope after repeated failures", "id", item.ID, "attempts", item.Attempts, "error", err)
	}
	return true, err
}
