// Package chat assembles a chat node from the transport pipeline and handles user input.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/exepirit/lorachat/internal/log"
	"github.com/exepirit/lorachat/pkg/lorachat"
)

// Params are the collaborators of a Node.
type Params struct {
	Codec     *lorachat.Codec
	Channels  *lorachat.ChannelRegistry
	Transport lorachat.Transport
	// Store is optional.
	Store        lorachat.Store
	Retry        lorachat.RetryPolicy
	PollInterval time.Duration
	BufferSize   int
	Logger       log.Logger
}

// Node is a single chat participant: the pipeline lanes plus the foreground input path.
type Node struct {
	codec     *lorachat.Codec
	channels  *lorachat.ChannelRegistry
	transport lorachat.Transport
	store     lorachat.Store
	queue     *lorachat.SendQueue
	buffer    *lorachat.ReceiveBuffer
	driver    *lorachat.Driver
	display   *lorachat.FanOut
	logger    log.Logger

	restoreOnce sync.Once
	stopOnce    sync.Once
	stopped     chan struct{}
}

// New creates a node. Displays must be subscribed before Run.
func New(p Params) *Node {
	logger := log.OrNOOP(p.Logger)
	bufferSize := p.BufferSize
	if bufferSize <= 0 {
		bufferSize = lorachat.DefaultReceiveBufferSize
	}

	n := &Node{
		codec:     p.Codec,
		channels:  p.Channels,
		transport: p.Transport,
		store:     p.Store,
		queue:     lorachat.NewSendQueue(),
		buffer:    lorachat.NewReceiveBuffer(bufferSize),
		display:   &lorachat.FanOut{},
		logger:    logger,
		stopped:   make(chan struct{}),
	}
	n.driver = &lorachat.Driver{
		Transport:    p.Transport,
		Codec:        p.Codec,
		Queue:        n.queue,
		Buffer:       n.buffer,
		Display:      n.display,
		Store:        p.Store,
		Retry:        p.Retry,
		PollInterval: p.PollInterval,
		Logger:       logger,
	}
	return n
}

// Subscribe adds a display notified of received messages and local status output.
func (n *Node) Subscribe(display lorachat.Display) {
	n.display.Subscribe(display)
}

// NodeID returns the local sender identifier.
func (n *Node) NodeID() string {
	return n.codec.NodeID()
}

// Run brings the link up, restores history and runs the pipeline until ctx is cancelled
// or Stop is called. The link is released before Run returns.
func (n *Node) Run(ctx context.Context) error {
	if err := n.transport.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize radio: %w", err)
	}
	defer func() {
		if err := n.transport.Cleanup(); err != nil {
			n.logger.Warn("Cannot release radio", "error", err)
		}
	}()

	n.Restore(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-n.stopped:
			cancel()
		case <-ctx.Done():
		}
	}()

	n.logger.Info("Chat node started", "node", n.NodeID(), "channel", n.channels.Active())
	err := n.driver.Run(ctx)
	n.logger.Info("Chat node stopped", "node", n.NodeID())
	return err
}

// Restore seeds the receive buffer from the store. Only the first call has an effect;
// Run calls it as well.
func (n *Node) Restore(ctx context.Context) {
	n.restoreOnce.Do(func() {
		if n.store == nil {
			return
		}
		envs, err := n.store.LoadRecent(ctx, n.buffer.Cap())
		if err != nil {
			n.logger.Warn("Cannot load message history", "error", err)
			return
		}
		n.buffer.Restore(envs)
		n.logger.Debug("Restored message history", "count", len(envs))
	})
}

// Stop terminates all lanes. It is safe to call more than once.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		close(n.stopped)
	})
}

// Done is closed once Stop is called.
func (n *Node) Done() <-chan struct{} {
	return n.stopped
}

// QueueMessage formats text on the active channel and appends it to the send queue.
// The queue is left untouched when formatting fails.
func (n *Node) QueueMessage(text string) error {
	env, frame, err := n.codec.Format(text, n.channels.Active())
	if err != nil {
		return err
	}
	n.queue.Enqueue(lorachat.Outgoing{ID: env.ID, Channel: env.Channel, Frame: frame})
	n.logger.Debug("Queued message", "id", env.ID, "channel", env.Channel)
	n.display.Notify(env)
	return nil
}

// Submit handles one line of user input: a command, or chat text to be sent.
func (n *Node) Submit(line string) {
	if line == "" {
		return
	}
	if isCommand(line) {
		n.dispatch(line)
		return
	}
	if err := n.QueueMessage(line); err != nil {
		n.reportError(err)
	}
}

// Messages returns the buffered messages of channel, or of the active channel when channel is empty.
func (n *Node) Messages(channel string) []lorachat.Envelope {
	if channel == "" {
		channel = n.channels.Active()
	}
	return n.buffer.Query(channel)
}

// History returns every buffered message, oldest first.
func (n *Node) History() []lorachat.Envelope {
	return n.buffer.Query("")
}

// QueueDepth returns the number of frames waiting for transmission.
func (n *Node) QueueDepth() int {
	return n.queue.Len()
}

// ActiveChannel returns the channel messages are sent to.
func (n *Node) ActiveChannel() string {
	return n.channels.Active()
}

// Stats returns the pipeline counters.
func (n *Node) Stats() lorachat.Stats {
	return n.driver.Stats()
}

func (n *Node) notify(typ lorachat.MessageType, content string) {
	n.display.Notify(lorachat.LocalEnvelope(typ, n.channels.Active(), content))
}

func (n *Node) reportError(err error) {
	n.notify(lorachat.TypeError, "Error: "+err.Error())
}
