package lorachat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exepirit/lorachat/pkg/lorachat"
	"github.com/exepirit/lorachat/pkg/lorachat/sim"
)

type testNode struct {
	codec     *lorachat.Codec
	transport *sim.Transport
	driver    *lorachat.Driver
}

func newTestNode(t *testing.T, id string, air *sim.Air) *testNode {
	t.Helper()
	channels, err := lorachat.NewChannelRegistry([]string{"general", "ops"}, "general")
	require.NoError(t, err)
	psk, err := lorachat.NewPSK(lorachat.DeriveKey("scenario"))
	require.NoError(t, err)

	codec := lorachat.NewCodec(lorachat.CodecConfig{NodeID: id, Channels: channels, Cipher: psk})
	transport := sim.New(sim.Config{})
	air.Join(transport)
	require.NoError(t, transport.Initialize(context.Background()))

	return &testNode{
		codec:     codec,
		transport: transport,
		driver: &lorachat.Driver{
			Transport:    transport,
			Codec:        codec,
			Queue:        lorachat.NewSendQueue(),
			Buffer:       lorachat.NewReceiveBuffer(lorachat.DefaultReceiveBufferSize),
			PollInterval: 5 * time.Millisecond,
		},
	}
}

func (n *testNode) say(t *testing.T, text string) {
	t.Helper()
	env, frame, err := n.codec.Format(text, "general")
	require.NoError(t, err)
	n.driver.Queue.Enqueue(lorachat.Outgoing{ID: env.ID, Channel: env.Channel, Frame: frame})
}

func runNodes(t *testing.T, nodes ...*testNode) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, len(nodes))
	for _, n := range nodes {
		go func() {
			_ = n.driver.Run(ctx)
			done <- struct{}{}
		}()
	}
	t.Cleanup(func() {
		cancel()
		for range nodes {
			<-done
		}
	})
}

func TestHelloReachesPeer(t *testing.T) {
	air := sim.NewAir(0)
	a := newTestNode(t, "A", air)
	b := newTestNode(t, "B", air)
	runNodes(t, a, b)

	a.say(t, "hello")

	require.Eventually(t, func() bool {
		return len(b.driver.Buffer.Query("general")) == 1
	}, time.Second, 5*time.Millisecond)

	got := b.driver.Buffer.Query("general")[0]
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "A", got.Node)
	assert.Empty(t, a.driver.Buffer.Query(""), "a node does not hear itself")
}

func TestFailedSendIsRetriedWithoutDuplicates(t *testing.T) {
	air := sim.NewAir(0)
	a := newTestNode(t, "A", air)
	b := newTestNode(t, "B", air)
	a.transport.FailNext(1, nil)
	runNodes(t, a, b)

	a.say(t, "retry me")

	require.Eventually(t, func() bool {
		return a.driver.Queue.Len() == 0 && b.driver.Buffer.Len() == 1
	}, time.Second, 5*time.Millisecond)

	// give the loops a few more iterations to surface any duplicate
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, b.driver.Buffer.Len())
	assert.Len(t, a.transport.Sent(), 1)

	stats := a.driver.Stats()
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Requeued)
	assert.Equal(t, uint64(1), stats.Sent)
}

func TestOrderingPreservedOnHealthyLink(t *testing.T) {
	air := sim.NewAir(0)
	a := newTestNode(t, "A", air)
	b := newTestNode(t, "B", air)

	for _, text := range []string{"one", "two", "three"} {
		a.say(t, text)
	}
	runNodes(t, a, b)

	require.Eventually(t, func() bool {
		return b.driver.Buffer.Len() == 3
	}, time.Second, 5*time.Millisecond)

	var contents []string
	for _, env := range b.driver.Buffer.Query("") {
		contents = append(contents, env.Content)
	}
	assert.Equal(t, []string{"one", "two", "three"}, contents)
}
