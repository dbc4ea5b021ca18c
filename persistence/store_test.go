package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-ai/agentchain/types"
)

func sampleEntries(sessionID string, n int) []types.HistoryEntry {
	entries := make([]types.HistoryEntry, 0, n)
	for i := 1; i <= n; i++ {
		entries = append(entries, types.HistoryEntry{
			ID:        "entry-" + string(rune('0'+i)),
			SessionID: sessionID,
			AgentID:   i,
			AgentName: "agent",
			Prompt:    "prompt",
			Response:  "response",
			Timestamp: time.Now(),
			Status:    types.HistoryCompleted,
		})
	}
	return entries
}

// exerciseStore runs the shared contract against any HistoryStore.
func exerciseStore(t *testing.T, store HistoryStore) {
	t.Helper()
	ctx := context.Background()

	err := store.Append(ctx, types.HistoryEntry{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	for _, entry := range sampleEntries("sess-a", 3) {
		require.NoError(t, store.Append(ctx, entry))
	}
	require.NoError(t, store.Append(ctx, sampleEntries("sess-b", 1)[0]))

	got, err := store.List(ctx, "sess-a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, entry := range got {
		assert.Equal(t, i+1, entry.AgentID, "commit order must be preserved")
		assert.Equal(t, "sess-a", entry.SessionID)
		assert.Equal(t, types.HistoryCompleted, entry.Status)
	}

	got, err = store.List(ctx, "sess-b")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = store.List(ctx, "sess-missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Ping(ctx))
}

func TestMemoryHistoryStore(t *testing.T) {
	store := NewMemoryHistoryStore()
	defer store.Close()
	exerciseStore(t, store)
}

func TestRedisHistoryStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisHistoryStore(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer store.Close()
	exerciseStore(t, store)
}

func TestRedisHistoryStore_ConnectFailure(t *testing.T) {
	_, err := NewRedisHistoryStore(RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}

func TestGormHistoryStore(t *testing.T) {
	store, err := NewGormHistoryStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	exerciseStore(t, store)
}

func TestGormHistoryStore_AppendOnlyReviewedCopies(t *testing.T) {
	store, err := NewGormHistoryStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	entry := sampleEntries("sess-r", 1)[0]
	require.NoError(t, store.Append(ctx, entry))

	entry.Status = types.HistoryReviewed
	entry.Response = "edited"
	require.NoError(t, store.Append(ctx, entry))

	got, err := store.List(ctx, "sess-r")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.HistoryCompleted, got[0].Status)
	assert.Equal(t, types.HistoryReviewed, got[1].Status)
	assert.Equal(t, "edited", got[1].Response)
}
