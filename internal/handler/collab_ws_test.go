package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-backend/internal/model"
	"collab-backend/internal/presence"
	"collab-backend/internal/repository"
	"collab-backend/internal/service"
)

type wsEnv struct {
	handler *CollabWSHandler
	store   *repository.Store
	rooms   *service.RoomService
	docs    *service.DocumentService
}

func newWSEnv(t *testing.T, debounce time.Duration) *wsEnv {
	t.Helper()
	return newWSEnvWithCache(t, debounce, nil)
}

func newWSEnvWithCache(t *testing.T, debounce time.Duration, cache *presence.Cache) *wsEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	rooms := service.NewRoomService(store, cache, 5)
	docs := service.NewDocumentService(store, rooms)
	canvas := service.NewCanvasService(store, rooms)
	h := NewCollabWSHandler(NewHub(), store, rooms, docs, canvas, cache, debounce, 64)
	return &wsEnv{handler: h, store: store, rooms: rooms, docs: docs}
}

func (e *wsEnv) createUser(t *testing.T, username string) *model.User {
	t.Helper()
	user := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashed",
	}
	require.NoError(t, e.store.Users.CreateUser(user))
	return user
}

// connect 인증 완료된 테스트 클라이언트 생성 (실제 소켓 없이)
func (e *wsEnv) connect(t *testing.T, user *model.User) *Client {
	t.Helper()
	c := e.handler.newClient(nil, user.ID, user.Username)
	e.dispatch(c, "authenticate", map[string]interface{}{
		"userId":   user.ID,
		"username": user.Username,
	})
	drainEvents(c)
	return c
}

func (e *wsEnv) dispatch(c *Client, eventType string, payload interface{}) {
	raw, _ := json.Marshal(payload)
	e.handler.dispatch(c, WSMessage{Type: eventType, Payload: raw})
}

func (e *wsEnv) joinRoom(t *testing.T, c *Client, roomID string) {
	t.Helper()
	e.dispatch(c, "join_room", map[string]interface{}{"roomId": roomID})
}

func drainEvents(c *Client) []Event {
	var events []Event
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventsOfType(events []Event, eventType string) []Event {
	var matched []Event
	for _, ev := range events {
		if ev.Type == eventType {
			matched = append(matched, ev)
		}
	}
	return matched
}

func waitForEvent(t *testing.T, c *Client, eventType string, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				t.Fatalf("send channel closed while waiting for %s", eventType)
			}
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func TestRoomEventsRequireAuthentication(t *testing.T) {
	env := newWSEnv(t, 50*time.Millisecond)
	user := env.createUser(t, "alice")

	c := env.handler.newClient(nil, user.ID, user.Username)
	env.dispatch(c, "join_room", map[string]interface{}{"roomId": "whatever"})

	events := drainEvents(c)
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Type)
}

func TestAuthenticateRejectsMismatchedClaim(t *testing.T) {
	env := newWSEnv(t, 50*time.Millisecond)
	user := env.createUser(t, "alice")

	c := env.handler.newClient(nil, user.ID, user.Username)
	env.dispatch(c, "authenticate", map[string]interface{}{
		"userId":   "someone-else",
		"username": "mallory",
	})

	events := drainEvents(c)
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Type)
	assert.False(t, c.isAuthenticated())
}

func TestJoinRoomFlow(t *testing.T) {
	env := newWSEnv(t, 50*time.Millisecond)
	owner := env.createUser(t, "alice")
	guest := env.createUser(t, "bob")

	room, err := env.rooms.CreateRoom(owner.ID, "Open Room", nil, true)
	require.NoError(t, err)

	a := env.connect(t, owner)
	env.joinRoom(t, a, room.ID)
	drainEvents(a)

	b := env.connect(t, guest)
	env.joinRoom(t, b, room.ID)

	// 참가자는 멤버 목록과 화이트보드 상태를 받는다
	bEvents := drainEvents(b)
	members := eventsOfType(bEvents, "room_members")
	require.Len(t, members, 1)
	payload := members[0].Payload.(map[string]interface{})
	presenceRows := payload["members"].([]model.UserPresence)
	assert.Len(t, presenceRows, 2)

	require.Len(t, eventsOfType(bEvents, "canvas_state_loaded"), 1)

	// 기존 접속자는 user_joined를 받는다
	aEvents := drainEvents(a)
	joined := eventsOfType(aEvents, "user_joined")
	require.Len(t, joined, 1)
	assert.Equal(t, guest.ID, joined[0].Payload.(memberPayload).UserID)
}

func TestJoinRoomDeniedForNonMember(t *testing.T) {
	env := newWSEnv(t, 50*time.Millisecond)
	owner := env.createUser(t, "alice")
	outsider := env.createUser(t, "bob")

	room, err := env.rooms.CreateRoom(owner.ID, "Private Room", nil, false)
	require.NoError(t, err)

	c := env.connect(t, outsider)
	env.joinRoom(t, c, room.ID)

	events := drainEvents(c)
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Type)
	assert.Equal(t, 0, env.handler.hub.RoomCount(room.ID))
}

func TestDocumentUpdateSuppressesDuplicates(t *testing.T) {
	env := newWSEnv(t, 30*time.Millisecond)
	owner := env.createUser(t, "alice")
	guest := env.createUser(t, "bob")

	room, err := env.rooms.CreateRoom(owner.ID, "Open Room", nil, true)
	require.NoError(t, err)
	doc, err := env.docs.CreateDocument(room.ID, owner.ID, "Notes")
	require.NoError(t, err)

	a := env.connect(t, owner)
	env.joinRoom(t, a, room.ID)
	b := env.connect(t, guest)
	env.joinRoom(t, b, room.ID)
	drainEvents(a)
	drainEvents(b)

	update := map[string]interface{}{
		"documentId": doc.ID,
		"content":    "Hello",
		"userId":     owner.ID,
		"roomId":     room.ID,
	}
	env.dispatch(a, "document_update", update)
	env.dispatch(a, "document_update", update)

	// 동일 내용 두 번 → 브로드캐스트는 최대 한 번
	time.Sleep(10 * time.Millisecond)
	live := eventsOfType(drainEvents(b), "document_update_realtime")
	require.Len(t, live, 1)
	assert.Equal(t, "Hello", live[0].Payload.(documentUpdatePayload).Content)

	// 디바운스 후 한 번만 저장된다
	waitForEvent(t, b, "document_update_persisted", 500*time.Millisecond)
	stored, err := env.docs.GetDocument(doc.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", stored.Content)
}

func TestDocumentDebounceLastWriteWins(t *testing.T) {
	env := newWSEnv(t, 60*time.Millisecond)
	owner := env.createUser(t, "alice")
	guest := env.createUser(t, "bob")

	room, err := env.rooms.CreateRoom(owner.ID, "Open Room", nil, true)
	require.NoError(t, err)
	doc, err := env.docs.CreateDocument(room.ID, owner.ID, "Notes")
	require.NoError(t, err)

	a := env.connect(t, owner)
	env.joinRoom(t, a, room.ID)
	b := env.connect(t, guest)
	env.joinRoom(t, b, room.ID)
	drainEvents(a)
	drainEvents(b)

	env.dispatch(a, "document_update", map[string]interface{}{
		"documentId": doc.ID,
		"content":    "Hello",
		"userId":     owner.ID,
		"roomId":     room.ID,
	})

	time.Sleep(20 * time.Millisecond)

	env.dispatch(b, "document_update", map[string]interface{}{
		"documentId": doc.ID,
		"content":    "Hello World",
		"userId":     guest.ID,
		"roomId":     room.ID,
	})

	// A는 저장 완료 전에 B의 실시간 편집을 받는다
	live := waitForEvent(t, a, "document_update_realtime", 200*time.Millisecond)
	assert.Equal(t, "Hello World", live.Payload.(documentUpdatePayload).Content)

	// 두 타이머가 모두 만료되면 마지막 쓰기가 남는다
	time.Sleep(200 * time.Millisecond)
	stored, err := env.docs.GetDocument(doc.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", stored.Content)
}

func TestDocumentUpdateUnknownDocumentBroadcastsOnly(t *testing.T) {
	env := newWSEnv(t, 30*time.Millisecond)
	owner := env.createUser(t, "alice")
	guest := env.createUser(t, "bob")

	room, err := env.rooms.CreateRoom(owner.ID, "Open Room", nil, true)
	require.NoError(t, err)

	a := env.connect(t, owner)
	env.joinRoom(t, a, room.ID)
	b := env.connect(t, guest)
	env.joinRoom(t, b, room.ID)
	drainEvents(a)
	drainEvents(b)

	env.dispatch(a, "document_update", map[string]interface{}{
		"documentId": "not-yet-created",
		"content":    "live only",
		"userId":     owner.ID,
		"roomId":     room.ID,
	})

	// 실시간 중계는 되지만 저장은 건너뛴다
	live := waitForEvent(t, b, "document_update_realtime", 200*time.Millisecond)
	assert.Equal(t, "live only", live.Payload.(documentUpdatePayload).Content)

	time.Sleep(100 * time.Millisecond)
	persisted := eventsOfType(drainEvents(b), "document_update_persisted")
	assert.Empty(t, persisted)
}

func TestDocumentUpdateIdentityMismatch(t *testing.T) {
	env := newWSEnv(t, 30*time.Millisecond)
	owner := env.createUser(t, "alice")
	guest := env.createUser(t, "bob")

	room, err := env.rooms.CreateRoom(owner.ID, "Open Room", nil, true)
	require.NoError(t, err)
	doc, err := env.docs.CreateDocument(room.ID, owner.ID, "Notes")
	require.NoError(t, err)

	a := env.connect(t, owner)
	env.joinRoom(t, a, room.ID)
	b := env.connect(t, guest)
	env.joinRoom(t, b, room.ID)
	drainEvents(a)
	drainEvents(b)

	env.dispatch(a, "document_update", map[string]interface{}{
		"documentId": doc.ID,
		"content":    "spoofed",
		"userId":     guest.ID, // 다른 사용자의 신원 주장
		"roomId":     room.ID,
	})

	aEvents := drainEvents(a)
	require.Len(t, eventsOfType(aEvents, "error"), 1)
	assert.Empty(t, eventsOfType(drainEvents(b), "document_update_realtime"))
}

func TestCanvasDrawPersistAndReplay(t *testing.T) {
	env := newWSEnv(t, 30*time.Millisecond)
	owner := env.createUser(t, "alice")
	guest := env.createUser(t, "bob")

	room, err := env.rooms.CreateRoom(owner.ID, "Open Room", nil, true)
	require.NoError(t, err)

	a := env.connect(t, owner)
	env.joinRoom(t, a, room.ID)
	drainEvents(a)

	draw := func(phase string, x, y float64) {
		env.dispatch(a, "canvas_draw", map[string]interface{}{
			"roomId":   room.ID,
			"userId":   owner.ID,
			"username": owner.Username,
			"drawData": map[string]interface{}{
				"type":      phase,
				"x":         x,
				"y":         y,
				"color":     "#000000",
				"brushSize": 2.0,
				"tool":      "pen",
			},
		})
	}
	draw("start", 0, 0)
	draw("draw", 10, 10)
	draw("draw", 20, 20)
	draw("end", 20, 20)

	// draw 단계만 저장된다
	strokes, err := env.store.Canvas.GetStrokesByRoom(room.ID)
	require.NoError(t, err)
	require.Len(t, strokes, 2)
	assert.Equal(t, 10.0, strokes[0].X)
	assert.Equal(t, 20.0, strokes[1].X)

	// 나중에 참여한 클라이언트는 같은 2개의 획을 순서대로 재생받는다
	b := env.connect(t, guest)
	env.joinRoom(t, b, room.ID)
	state := waitForEvent(t, b, "canvas_state_loaded", 200*time.Millisecond)
	payload := state.Payload.(map[string]interface{})
	replayed := payload["strokes"].([]model.CanvasStroke)
	require.Len(t, replayed, 2)
	assert.Equal(t, 10.0, replayed[0].X)
	assert.Equal(t, 20.0, replayed[1].X)
	assert.Equal(t, 2, payload["count"])
}

func TestCanvasClearBroadcastsToAll(t *testing.T) {
	env := newWSEnv(t, 30*time.Millisecond)
	owner := env.createUser(t, "alice")
	guest := env.createUser(t, "bob")

	room, err := env.rooms.CreateRoom(owner.ID, "Open Room", nil, true)
	require.NoError(t, err)

	a := env.connect(t, owner)
	env.joinRoom(t, a, room.ID)
	b := env.connect(t, guest)
	env.joinRoom(t, b, room.ID)
	drainEvents(a)
	drainEvents(b)

	env.dispatch(a, "canvas_draw", map[string]interface{}{
		"roomId": room.ID,
		"userId": owner.ID,
		"drawData": map[string]interface{}{
			"type": "draw", "x": 1.0, "y": 1.0, "color": "#fff", "brushSize": 1.0, "tool": "pen",
		},
	})
	env.dispatch(a, "canvas_clear", map[string]interface{}{
		"roomId": room.ID,
		"userId": owner.ID,
	})

	strokes, err := env.store.Canvas.GetStrokesByRoom(room.ID)
	require.NoError(t, err)
	assert.Empty(t, strokes)

	// clear는 보낸 사람을 포함한 전원에게 알린다
	require.Len(t, eventsOfType(drainEvents(a), "canvas_cleared"), 1)
	require.Len(t, eventsOfType(drainEvents(b), "canvas_cleared"), 1)
}

func TestRoomMembersServedFromPresenceCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := presence.NewCache(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	env := newWSEnvWithCache(t, 30*time.Millisecond, cache)
	owner := env.createUser(t, "alice")
	guest := env.createUser(t, "bob")

	room, err := env.rooms.CreateRoom(owner.ID, "Open Room", nil, true)
	require.NoError(t, err)

	// 캐시에만 존재하는 참가자 (DB presence 행 없음)
	cache.Set(context.Background(), room.ID, &model.UserPresence{
		UserID:    guest.ID,
		RoomID:    room.ID,
		Username:  guest.Username,
		LastSeen:  time.Now(),
		IsFocused: true,
	})

	a := env.connect(t, owner)
	env.joinRoom(t, a, room.ID)

	members := eventsOfType(drainEvents(a), "room_members")
	require.Len(t, members, 1)
	rows := members[0].Payload.(map[string]interface{})["members"].([]model.UserPresence)
	require.Len(t, rows, 2)

	seen := map[string]bool{}
	for _, row := range rows {
		seen[row.UserID] = true
	}
	assert.True(t, seen[owner.ID])
	assert.True(t, seen[guest.ID])

	// DB에는 참가자 본인의 행만 있으므로 두 명이 보인 것은 캐시를 읽었다는 뜻
	dbRows, err := env.store.Presence.GetPresenceByRoom(room.ID)
	require.NoError(t, err)
	require.Len(t, dbRows, 1)
	assert.Equal(t, owner.ID, dbRows[0].UserID)
}

func TestCanvasClearIdentityMismatch(t *testing.T) {
	env := newWSEnv(t, 30*time.Millisecond)
	owner := env.createUser(t, "alice")
	guest := env.createUser(t, "bob")

	room, err := env.rooms.CreateRoom(owner.ID, "Open Room", nil, true)
	require.NoError(t, err)

	a := env.connect(t, owner)
	env.joinRoom(t, a, room.ID)
	b := env.connect(t, guest)
	env.joinRoom(t, b, room.ID)
	drainEvents(a)
	drainEvents(b)

	env.dispatch(a, "canvas_draw", map[string]interface{}{
		"roomId": room.ID,
		"userId": owner.ID,
		"drawData": map[string]interface{}{
			"type": "draw", "x": 1.0, "y": 1.0, "color": "#fff", "brushSize": 1.0, "tool": "pen",
		},
	})
	drainEvents(a)
	drainEvents(b)

	env.dispatch(b, "canvas_clear", map[string]interface{}{
		"roomId": room.ID,
		"userId": owner.ID, // 다른 사용자의 신원 주장
	})

	bEvents := drainEvents(b)
	require.Len(t, eventsOfType(bEvents, "error"), 1)
	assert.Empty(t, eventsOfType(drainEvents(a), "canvas_cleared"))

	strokes, err := env.store.Canvas.GetStrokesByRoom(room.ID)
	require.NoError(t, err)
	assert.Len(t, strokes, 1)
}

func TestTypingIndicatorUpdatesPresence(t *testing.T) {
	env := newWSEnv(t, 30*time.Millisecond)
	owner := env.createUser(t, "alice")
	guest := env.createUser(t, "bob")

	room, err := env.rooms.CreateRoom(owner.ID, "Open Room", nil, true)
	require.NoError(t, err)

	a := env.connect(t, owner)
	env.joinRoom(t, a, room.ID)
	b := env.connect(t, guest)
	env.joinRoom(t, b, room.ID)
	drainEvents(a)
	drainEvents(b)

	env.dispatch(a, "typing_indicator", map[string]interface{}{
		"roomId":   room.ID,
		"userId":   owner.ID,
		"isTyping": true,
	})

	typing := eventsOfType(drainEvents(b), "typing_updated")
	require.Len(t, typing, 1)
	assert.True(t, typing[0].Payload.(typingPayload).IsTyping)

	rows, err := env.store.Presence.GetPresenceByRoom(room.ID)
	require.NoError(t, err)
	for _, row := range rows {
		if row.UserID == owner.ID {
			assert.True(t, row.IsTyping)
		}
	}
}

func TestDisconnectCleansUpPresence(t *testing.T) {
	env := newWSEnv(t, 30*time.Millisecond)
	owner := env.createUser(t, "alice")
	watcher := env.createUser(t, "bob")

	room1, err := env.rooms.CreateRoom(owner.ID, "Room One", nil, true)
	require.NoError(t, err)
	room2, err := env.rooms.CreateRoom(owner.ID, "Room Two", nil, true)
	require.NoError(t, err)

	a := env.connect(t, owner)
	env.joinRoom(t, a, room1.ID)
	env.joinRoom(t, a, room2.ID)

	b := env.connect(t, watcher)
	env.joinRoom(t, b, room1.ID)
	env.joinRoom(t, b, room2.ID)
	drainEvents(a)
	drainEvents(b)

	env.handler.handleDisconnect(a)

	// 참여했던 방마다 user_left가 한 번씩 나간다
	left := eventsOfType(drainEvents(b), "user_left")
	require.Len(t, left, 2)
	for _, ev := range left {
		assert.Equal(t, owner.ID, ev.Payload.(memberPayload).UserID)
	}

	// 해당 사용자의 presence 행이 모든 방에서 지워진다
	for _, roomID := range []string{room1.ID, room2.ID} {
		rows, err := env.store.Presence.GetPresenceByRoom(roomID)
		require.NoError(t, err)
		for _, row := range rows {
			assert.NotEqual(t, owner.ID, row.UserID)
		}
	}
}
