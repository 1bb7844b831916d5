package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exepirit/lorachat/internal/bridge"
	"github.com/exepirit/lorachat/pkg/lorachat"
)

func TestTransportThroughRelay(t *testing.T) {
	relay := bridge.NewServer(bridge.Config{}, nil)
	server := httptest.NewServer(relay.Handler())
	defer server.Close()

	ctx := context.Background()
	a := &Transport{URL: server.URL, NodeID: "A"}
	b := &Transport{URL: server.URL, NodeID: "B"}

	assert.ErrorIs(t, a.Send(ctx, []byte("x")), lorachat.ErrNotInitialized)

	require.NoError(t, a.Initialize(ctx))
	require.NoError(t, b.Initialize(ctx))
	assert.True(t, a.Ready())

	require.NoError(t, a.Send(ctx, []byte(`{"id":1,"node":"A"}`)))

	frame, err := b.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":1,"node":"A"}`), frame)

	frame, err = b.Poll(ctx)
	require.NoError(t, err)
	assert.Nil(t, frame)

	frame, err = a.Poll(ctx)
	require.NoError(t, err)
	assert.Nil(t, frame)

	require.NoError(t, b.Cleanup())
	require.NoError(t, b.Cleanup())
	assert.False(t, b.Ready())
	assert.Equal(t, []string{"A"}, relay.Nodes())
}

func TestTransportDetectsRelayRestart(t *testing.T) {
	var relay atomic.Pointer[bridge.Server]
	relay.Store(bridge.NewServer(bridge.Config{}, nil))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		relay.Load().Handler().ServeHTTP(w, r)
	}))
	defer server.Close()

	ctx := context.Background()
	a := &Transport{URL: server.URL, NodeID: "A"}
	require.NoError(t, a.Initialize(ctx))

	// a fresh relay has no mailbox for A
	relay.Store(bridge.NewServer(bridge.Config{}, nil))

	_, err := a.Poll(ctx)
	assert.ErrorIs(t, err, lorachat.ErrNotInitialized)
	assert.False(t, a.Ready())
}

func TestTransportInitializeUnreachable(t *testing.T) {
	a := &Transport{URL: "http://127.0.0.1:1", NodeID: "A"}
	err := a.Initialize(context.Background())
	assert.ErrorIs(t, err, lorachat.ErrInitFailed)
}
