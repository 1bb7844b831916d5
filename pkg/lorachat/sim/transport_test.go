package sim

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestTransportStateMachine(t *testing.T) {
	ctx := context.Background()
	tr := New(Config{})
	assert.False(t, tr.Ready())

	assert.ErrorIs(t, tr.Send(ctx, []byte("x")), lorachat.ErrNotInitialized)
	_, err := tr.Poll(ctx)
	assert.ErrorIs(t, err, lorachat.ErrNotInitialized)

	require.NoError(t, tr.Initialize(ctx))
	assert.True(t, tr.Ready())
	assert.NoError(t, tr.Send(ctx, []byte("x")))

	require.NoError(t, tr.Cleanup())
	require.NoError(t, tr.Cleanup())
	assert.False(t, tr.Ready())
	assert.ErrorIs(t, tr.Send(ctx, []byte("y")), lorachat.ErrNotInitialized)
	assert.Len(t, tr.Sent(), 1)
}

func TestTransportFailNext(t *testing.T) {
	ctx := context.Background()
	tr := New(Config{})
	require.NoError(t, tr.Initialize(ctx))

	tr.FailNext(2, lorachat.ErrNoAck)
	assert.ErrorIs(t, tr.Send(ctx, []byte("a")), lorachat.ErrNoAck)
	assert.ErrorIs(t, tr.Send(ctx, []byte("a")), lorachat.ErrNoAck)
	assert.NoError(t, tr.Send(ctx, []byte("a")))

	tr.FailNext(1, nil)
	assert.ErrorIs(t, tr.Send(ctx, []byte("b")), lorachat.ErrLinkBusy)
	assert.Len(t, tr.Sent(), 1)
}

func TestTransportSyntheticArrivalsAreGated(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	channels, err := lorachat.NewChannelRegistry(nil, "general")
	require.NoError(t, err)
	psk, err := lorachat.NewPSK(lorachat.DeriveKey("sim"))
	require.NoError(t, err)
	codec := lorachat.NewCodec(lorachat.CodecConfig{NodeID: "me", Channels: channels, Cipher: psk})

	tr := New(Config{
		ArrivalProbability: 1,
		MinInterval:        10 * time.Second,
		Codec:              codec,
		Rand:               rand.New(rand.NewPCG(1, 2)),
		Now:                clock.Now,
	})
	require.NoError(t, tr.Initialize(ctx))

	frame, err := tr.Poll(ctx)
	require.NoError(t, err)
	assert.Nil(t, frame, "no arrival before the minimum interval")

	clock.Advance(11 * time.Second)
	frame, err = tr.Poll(ctx)
	require.NoError(t, err)
	require.NotNil(t, frame)

	env, err := codec.Parse(frame)
	require.NoError(t, err)
	assert.True(t, env.Encrypted)
	assert.Regexp(t, `^Test message \d+$`, env.Content)
	assert.Regexp(t, `^SIM_NODE_[1-5]$`, env.Node)
	assert.GreaterOrEqual(t, env.ID, uint64(1000))
	assert.LessOrEqual(t, env.ID, uint64(9999))
	assert.Equal(t, "general", env.Channel)

	frame, err = tr.Poll(ctx)
	require.NoError(t, err)
	assert.Nil(t, frame, "at most one arrival per interval")
}

func TestTransportSyntheticArrivalsDisabled(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	tr := New(Config{Now: clock.Now})
	require.NoError(t, tr.Initialize(ctx))

	clock.Advance(time.Hour)
	frame, err := tr.Poll(ctx)
	require.NoError(t, err)
	assert.Nil(t, frame)
}

func TestTransportInboxDropsOldest(t *testing.T) {
	ctx := context.Background()
	tr := New(Config{})
	require.NoError(t, tr.Initialize(ctx))

	for i := range inboxSize + 3 {
		tr.Deliver([]byte{byte(i)})
	}
	frame, err := tr.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, frame)
}

func TestTransportSentLogKeepsRecent(t *testing.T) {
	ctx := context.Background()
	tr := New(Config{})
	require.NoError(t, tr.Initialize(ctx))

	for i := range sentLogSize + 10 {
		require.NoError(t, tr.Send(ctx, []byte{byte(i)}))
	}
	sent := tr.Sent()
	require.Len(t, sent, sentLogSize)
	assert.Equal(t, []byte{10}, sent[0])
	assert.Equal(t, []byte{byte(sentLogSize + 9)}, sent[len(sent)-1])
}

func TestAirBroadcast(t *testing.T) {
	ctx := context.Background()
	air := NewAir(0)
	a, b, c := New(Config{}), New(Config{}), New(Config{})
	for _, tr := range []*Transport{a, b, c} {
		air.Join(tr)
	}
	require.NoError(t, a.Initialize(ctx))
	require.NoError(t, b.Initialize(ctx))

	require.NoError(t, a.Send(ctx, []byte("ping")))

	frame, err := b.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), frame)

	frame, err = a.Poll(ctx)
	require.NoError(t, err)
	assert.Nil(t, frame, "sender does not receive its own frame")

	require.NoError(t, c.Initialize(ctx))
	frame, err = c.Poll(ctx)
	require.NoError(t, err)
	assert.Nil(t, frame, "uninitialized members miss traffic")
}

func TestAirTotalLoss(t *testing.T) {
	ctx := context.Background()
	air := NewAir(1)
	a, b := New(Config{}), New(Config{})
	air.Join(a)
	air.Join(b)
	require.NoError(t, a.Initialize(ctx))
	require.NoError(t, b.Initialize(ctx))

	require.NoError(t, a.Send(ctx, []byte("lost")), "the sender cannot observe loss")
	frame, err := b.Poll(ctx)
	require.NoError(t, err)
	assert.Nil(t, frame)
}
