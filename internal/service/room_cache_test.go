package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-backend/internal/model"
	"collab-backend/internal/presence"
	"collab-backend/internal/repository"
)

func newCacheBackedRoomService(t *testing.T) (*RoomService, *repository.Store, *presence.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := presence.NewCache(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	store := repository.NewMemoryStore()
	return NewRoomService(store, cache, 5), store, cache
}

func cachePresence(cache *presence.Cache, userID, roomID, username string) {
	cache.Set(context.Background(), roomID, &model.UserPresence{
		UserID:    userID,
		RoomID:    roomID,
		Username:  username,
		LastSeen:  time.Now(),
		IsFocused: true,
	})
}

func TestDeleteRoomClearsPresenceCache(t *testing.T) {
	svc, store, cache := newCacheBackedRoomService(t)
	owner := createTestUser(t, store, "alice")

	room, err := svc.CreateRoom(owner.ID, "Team Sync", nil, true)
	require.NoError(t, err)
	cachePresence(cache, owner.ID, room.ID, owner.Username)
	require.Len(t, cache.GetRoom(context.Background(), room.ID), 1)

	require.NoError(t, svc.DeleteRoom(room.ID, owner.ID))

	// 삭제된 방의 캐시 엔트리가 TTL을 기다리지 않고 사라진다
	assert.Nil(t, cache.GetRoom(context.Background(), room.ID))
}

func TestKickUserRemovesCachedPresence(t *testing.T) {
	svc, store, cache := newCacheBackedRoomService(t)
	owner := createTestUser(t, store, "alice")
	member := createTestUser(t, store, "bob")

	room, err := svc.CreateRoom(owner.ID, "Team Sync", nil, true)
	require.NoError(t, err)
	_, err = svc.JoinRoomByCode(room.Code, member.ID)
	require.NoError(t, err)

	cachePresence(cache, owner.ID, room.ID, owner.Username)
	cachePresence(cache, member.ID, room.ID, member.Username)

	_, err = svc.KickUser(room.ID, member.ID, owner.ID)
	require.NoError(t, err)

	entries := cache.GetRoom(context.Background(), room.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, owner.ID, entries[0].UserID)
}

func TestLeaveRoomRemovesCachedPresence(t *testing.T) {
	svc, store, cache := newCacheBackedRoomService(t)
	owner := createTestUser(t, store, "alice")
	member := createTestUser(t, store, "bob")

	room, err := svc.CreateRoom(owner.ID, "Team Sync", nil, true)
	require.NoError(t, err)
	_, err = svc.JoinRoomByCode(room.Code, member.ID)
	require.NoError(t, err)

	cachePresence(cache, member.ID, room.ID, member.Username)

	require.NoError(t, svc.LeaveRoom(room.ID, member.ID))

	assert.Nil(t, cache.GetRoom(context.Background(), room.ID))
}
