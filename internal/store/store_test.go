package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "messages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func envelope(id uint64, channel string) lorachat.Envelope {
	return lorachat.Envelope{
		ID:        id,
		Node:      "A",
		Content:   fmt.Sprintf("message %d", id),
		Timestamp: "2024-05-01T12:00:00.000000",
		Type:      lorachat.TypeMessage,
		Encrypted: id%2 == 0,
		Channel:   channel,
	}
}

func TestPersistAndLoadRecent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, s.Persist(ctx, envelope(i, "general")))
	}

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	recent, err := s.LoadRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []lorachat.Envelope{envelope(3, "general"), envelope(4, "general"), envelope(5, "general")}, recent)

	all, err := s.LoadRecent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, uint64(1), all[0].ID)
}

func TestLoadRecentEmpty(t *testing.T) {
	s := openTestStore(t)

	recent, err := s.LoadRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	recent, err = s.LoadRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, recent)
}

func TestReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "messages.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Persist(ctx, envelope(1, "ops")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	recent, err := s.LoadRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "ops", recent[0].Channel)
}

func TestPersistAfterCloseFails(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "messages.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Error(t, s.Persist(context.Background(), envelope(1, "general")))
}
