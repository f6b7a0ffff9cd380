package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-backend/internal/model"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := NewCache(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func presenceRow(userID, roomID, username string) *model.UserPresence {
	return &model.UserPresence{
		UserID:    userID,
		RoomID:    roomID,
		Username:  username,
		LastSeen:  time.Now(),
		IsFocused: true,
	}
}

func TestCacheSetAndGetRoom(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "room-1", presenceRow("u1", "room-1", "alice"))
	cache.Set(ctx, "room-1", presenceRow("u2", "room-1", "bob"))
	cache.Set(ctx, "room-2", presenceRow("u3", "room-2", "carol"))

	entries := cache.GetRoom(ctx, "room-1")
	require.Len(t, entries, 2)

	names := map[string]string{}
	for _, e := range entries {
		names[e.UserID] = e.Username
	}
	assert.Equal(t, "alice", names["u1"])
	assert.Equal(t, "bob", names["u2"])

	// 방 단위로 분리된다
	require.Len(t, cache.GetRoom(ctx, "room-2"), 1)
	assert.Nil(t, cache.GetRoom(ctx, "room-3"))
}

func TestCacheSetOverwritesSameUser(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	row := presenceRow("u1", "room-1", "alice")
	cache.Set(ctx, "room-1", row)

	row.IsTyping = true
	cache.Set(ctx, "room-1", row)

	entries := cache.GetRoom(ctx, "room-1")
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsTyping)
}

func TestCacheRemove(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "room-1", presenceRow("u1", "room-1", "alice"))
	cache.Set(ctx, "room-1", presenceRow("u2", "room-1", "bob"))

	cache.Remove(ctx, "room-1", "u1")

	entries := cache.GetRoom(ctx, "room-1")
	require.Len(t, entries, 1)
	assert.Equal(t, "u2", entries[0].UserID)
}

func TestCacheClear(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "room-1", presenceRow("u1", "room-1", "alice"))
	cache.Set(ctx, "room-1", presenceRow("u2", "room-1", "bob"))

	cache.Clear(ctx, "room-1")

	assert.Nil(t, cache.GetRoom(ctx, "room-1"))
}

func TestNilCacheIsNoOp(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	cache.Set(ctx, "room-1", presenceRow("u1", "room-1", "alice"))
	cache.Remove(ctx, "room-1", "u1")
	cache.Clear(ctx, "room-1")

	assert.Nil(t, cache.GetRoom(ctx, "room-1"))
	assert.NoError(t, cache.Close())
}
