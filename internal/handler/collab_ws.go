package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"collab-backend/internal/model"
	"collab-backend/internal/presence"
	"collab-backend/internal/repository"
	"collab-backend/internal/service"
)

// CollabWSHandler 실시간 협업 WebSocket 핸들러.
// 연결 단위 디스패치 루프가 문서/화이트보드/presence 이벤트를 라우팅한다.
type CollabWSHandler struct {
	hub       *Hub
	store     *repository.Store
	rooms     *service.RoomService
	documents *service.DocumentService
	canvas    *service.CanvasService
	cache     *presence.Cache // nil이면 비활성
	debounce  time.Duration
	sendBuf   int
}

// NewCollabWSHandler CollabWSHandler 생성
func NewCollabWSHandler(
	hub *Hub,
	store *repository.Store,
	rooms *service.RoomService,
	documents *service.DocumentService,
	canvas *service.CanvasService,
	cache *presence.Cache,
	debounce time.Duration,
	sendBuf int,
) *CollabWSHandler {
	if sendBuf <= 0 {
		sendBuf = 256
	}
	return &CollabWSHandler{
		hub:       hub,
		store:     store,
		rooms:     rooms,
		documents: documents,
		canvas:    canvas,
		cache:     cache,
		debounce:  debounce,
		sendBuf:   sendBuf,
	}
}

// Client 연결 하나의 런타임 상태.
// 디바운스 타이머와 마지막 내용 맵은 연결에 귀속되고 전역으로 공유하지 않는다.
type Client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan Event

	mu            sync.Mutex
	closed        bool
	authenticated bool
	userID        string
	username      string
	avatar        *string
	joined        map[string]bool
	timers        map[string]*time.Timer // documentID -> 디바운스 타이머
	lastContent   map[string]string      // documentID -> 마지막으로 본 내용
}

// sendEvent 버퍼가 가득 차면 이벤트를 버린다 (느린 소비자가 전체를 막지 않게).
// 연결 종료 후 늦게 도착한 브로드캐스트는 조용히 무시한다.
func (c *Client) sendEvent(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- event:
	default:
		log.Printf("⚠️ [WS] send buffer full, dropping %s for client %s", event.Type, c.sessionID)
	}
}

func (c *Client) sendError(message string) {
	c.sendEvent(Event{Type: "error", Payload: errorPayload{Message: message}})
}

func (c *Client) isAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// WSMessage 클라이언트→서버 메시지 외피
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type authenticatePayload struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar,omitempty"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type documentUpdatePayload struct {
	DocumentID string `json:"documentId"`
	Content    string `json:"content"`
	UserID     string `json:"userId"`
	RoomID     string `json:"roomId"`
	Username   string `json:"username"`
	Timestamp  int64  `json:"timestamp"`
}

type drawData struct {
	Type      string  `json:"type"` // start, draw, end
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
	BrushSize float64 `json:"brushSize"`
	Tool      string  `json:"tool"`
}

type canvasDrawPayload struct {
	RoomID    string   `json:"roomId"`
	UserID    string   `json:"userId"`
	Username  string   `json:"username"`
	DrawData  drawData `json:"drawData"`
	Timestamp int64    `json:"timestamp"`
}

type canvasClearPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type cursorPayload struct {
	RoomID     string          `json:"roomId"`
	UserID     string          `json:"userId"`
	Username   string          `json:"username"`
	DocumentID string          `json:"documentId,omitempty"`
	Position   json.RawMessage `json:"position,omitempty"`
}

type typingPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type activityPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Activity string `json:"activity"`
}

type focusPayload struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	IsFocused bool   `json:"isFocused"`
}

type memberPayload struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar,omitempty"`
}

// HandleConnection WebSocket 연결 처리.
// 핸드셰이크에서 토큰이 검증된 뒤이므로 Locals에 신원이 들어 있다.
func (h *CollabWSHandler) HandleConnection(conn *websocket.Conn) {
	userID, ok1 := conn.Locals("userID").(string)
	username, ok2 := conn.Locals("username").(string)
	if !ok1 || !ok2 || userID == "" {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"invalid session"}}`))
		conn.Close()
		return
	}

	client := h.newClient(conn, userID, username)
	go client.writePump()

	log.Printf("ℹ️ [WS] client connected: session=%s user=%s", client.sessionID, userID)

	defer h.handleDisconnect(client)

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			continue
		}
		h.dispatch(client, msg)
	}
}

func (h *CollabWSHandler) newClient(conn *websocket.Conn, userID, username string) *Client {
	return &Client{
		sessionID:   uuid.NewString(),
		conn:        conn,
		send:        make(chan Event, h.sendBuf),
		userID:      userID,
		username:    username,
		joined:      make(map[string]bool),
		timers:      make(map[string]*time.Timer),
		lastContent: make(map[string]string),
	}
}

// writePump send 채널의 이벤트를 순서대로 연결에 쓴다.
func (c *Client) writePump() {
	for event := range c.send {
		if c.conn == nil {
			continue
		}
		if err := c.conn.WriteJSON(event); err != nil {
			log.Printf("⚠️ [WS] write failed for client %s: %v", c.sessionID, err)
			return
		}
	}
}

// dispatch 이벤트 타입별 라우팅
func (h *CollabWSHandler) dispatch(c *Client, msg WSMessage) {
	if msg.Type == "authenticate" {
		h.handleAuthenticate(c, msg.Payload)
		return
	}

	// 방 단위 이벤트는 명시적 authenticate 이후에만 허용
	if !c.isAuthenticated() {
		c.sendError("authentication required")
		return
	}

	switch msg.Type {
	case "join_room":
		h.handleJoinRoom(c, msg.Payload)
	case "leave_room":
		h.handleLeaveRoom(c, msg.Payload)
	case "document_update":
		h.handleDocumentUpdate(c, msg.Payload)
	case "canvas_draw":
		h.handleCanvasDraw(c, msg.Payload)
	case "canvas_clear":
		h.handleCanvasClear(c, msg.Payload)
	case "cursor_update":
		h.handleCursorUpdate(c, msg.Payload)
	case "typing_indicator":
		h.handleTypingIndicator(c, msg.Payload)
	case "user_activity":
		h.handleUserActivity(c, msg.Payload)
	case "user_focus_change":
		h.handleFocusChange(c, msg.Payload)
	default:
		c.sendError("unknown event type: " + msg.Type)
	}
}

// handleAuthenticate 연결 신원 바인딩.
// 핸드셰이크 토큰의 신원과 클레임이 일치해야 한다.
func (h *CollabWSHandler) handleAuthenticate(c *Client, raw json.RawMessage) {
	var p authenticatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError("invalid authenticate payload")
		return
	}
	if p.UserID != "" && p.UserID != c.userID {
		c.sendError("identity claim does not match session token")
		return
	}

	c.mu.Lock()
	c.authenticated = true
	if p.Avatar != nil {
		c.avatar = p.Avatar
	}
	c.mu.Unlock()

	c.sendEvent(Event{Type: "authenticated", Payload: memberPayload{
		UserID:   c.userID,
		Username: c.username,
		Avatar:   c.avatar,
	}})
}

// handleJoinRoom 방 구독: 인가 → presence 기록 → user_joined 브로드캐스트 →
// 참가자 목록과 화이트보드 전체 로그를 참가자에게 전송.
func (h *CollabWSHandler) handleJoinRoom(c *Client, raw json.RawMessage) {
	var p roomPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		c.sendError("invalid join_room payload")
		return
	}

	ok, err := h.rooms.CanAccessRoom(c.userID, p.RoomID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.sendError("room not found")
		} else {
			log.Printf("🚨 [WS] room access check failed: %v", err)
			c.sendError("failed to join room")
		}
		return
	}
	if !ok {
		c.sendError("not a member of this room")
		return
	}

	h.hub.Join(p.RoomID, c)
	c.mu.Lock()
	c.joined[p.RoomID] = true
	avatar := c.avatar
	c.mu.Unlock()

	now := time.Now()
	pres := &model.UserPresence{
		UserID:    c.userID,
		RoomID:    p.RoomID,
		Username:  c.username,
		Avatar:    avatar,
		LastSeen:  now,
		IsFocused: true,
	}
	if err := h.store.Presence.UpsertPresence(pres); err != nil {
		log.Printf("⚠️ [WS] presence upsert failed: %v", err)
	}
	h.cache.Set(context.Background(), p.RoomID, pres)

	h.hub.Broadcast(p.RoomID, Event{Type: "user_joined", Payload: memberPayload{
		UserID:   c.userID,
		Username: c.username,
		Avatar:   avatar,
	}}, c)

	c.sendEvent(Event{Type: "room_members", Payload: map[string]interface{}{
		"roomId":  p.RoomID,
		"members": h.roomMembers(p.RoomID),
	}})

	strokes, err := h.canvas.LoadState(p.RoomID)
	if err != nil {
		log.Printf("⚠️ [WS] failed to load canvas state: %v", err)
		strokes = []model.CanvasStroke{}
	}
	c.sendEvent(Event{Type: "canvas_state_loaded", Payload: map[string]interface{}{
		"roomId":  p.RoomID,
		"strokes": strokes,
		"count":   len(strokes),
	}})
}

// roomMembers 방 참가자 스냅샷. Redis 캐시를 먼저 조회하고,
// 미스면 DB presence 행으로 폴백한다.
func (h *CollabWSHandler) roomMembers(roomID string) []model.UserPresence {
	if entries := h.cache.GetRoom(context.Background(), roomID); len(entries) > 0 {
		members := make([]model.UserPresence, 0, len(entries))
		for _, e := range entries {
			members = append(members, model.UserPresence{
				UserID:       e.UserID,
				RoomID:       roomID,
				Username:     e.Username,
				Avatar:       e.Avatar,
				LastSeen:     time.Unix(e.LastSeen, 0),
				IsTyping:     e.IsTyping,
				IsFocused:    e.IsFocused,
				LastActivity: e.LastActivity,
			})
		}
		return members
	}

	members, err := h.store.Presence.GetPresenceByRoom(roomID)
	if err != nil {
		log.Printf("⚠️ [WS] failed to load room presence: %v", err)
		return []model.UserPresence{}
	}
	return members
}

// handleLeaveRoom 방 구독 해제와 presence 정리
func (h *CollabWSHandler) handleLeaveRoom(c *Client, raw json.RawMessage) {
	var p roomPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		c.sendError("invalid leave_room payload")
		return
	}

	c.mu.Lock()
	delete(c.joined, p.RoomID)
	c.mu.Unlock()

	h.hub.Leave(p.RoomID, c)
	if err := h.store.Presence.DeletePresence(c.userID, p.RoomID); err != nil {
		log.Printf("⚠️ [WS] presence delete failed: %v", err)
	}
	h.cache.Remove(context.Background(), p.RoomID, c.userID)

	h.hub.Broadcast(p.RoomID, Event{Type: "user_left", Payload: memberPayload{
		UserID:   c.userID,
		Username: c.username,
	}}, nil)
}

// handleDocumentUpdate 문서 편집: 중복 억제 → 즉시 실시간 브로드캐스트 →
// 디바운스된 영속화. 저장 경로가 느려도 실시간 경로는 기다리지 않는다.
func (h *CollabWSHandler) handleDocumentUpdate(c *Client, raw json.RawMessage) {
	var p documentUpdatePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.DocumentID == "" {
		c.sendError("invalid document_update payload")
		return
	}
	if p.UserID != "" && p.UserID != c.userID {
		c.sendError("identity claim does not match session")
		return
	}

	// 동일 내용 재전송 억제
	c.mu.Lock()
	if last, seen := c.lastContent[p.DocumentID]; seen && last == p.Content {
		c.mu.Unlock()
		return
	}
	c.lastContent[p.DocumentID] = p.Content
	c.mu.Unlock()

	persist := true
	ok, err := h.documents.CanEditDocument(c.userID, p.DocumentID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			// 문서가 아직 서버에 없으면 저장은 건너뛰고 실시간 중계만 한다
			persist = false
		} else {
			log.Printf("🚨 [WS] document authorization failed: %v", err)
			return
		}
	} else if !ok {
		c.sendError("no permission to edit this document")
		return
	}

	h.hub.Broadcast(p.RoomID, Event{Type: "document_update_realtime", Payload: documentUpdatePayload{
		DocumentID: p.DocumentID,
		Content:    p.Content,
		UserID:     c.userID,
		RoomID:     p.RoomID,
		Username:   c.username,
		Timestamp:  p.Timestamp,
	}}, c)

	if !persist {
		return
	}
	h.scheduleDocumentWrite(c, p)
}

// scheduleDocumentWrite (documentID, 연결) 단위 디바운스.
// 새 편집이 오면 기존 타이머를 취소하고 다시 건다.
func (h *CollabWSHandler) scheduleDocumentWrite(c *Client, p documentUpdatePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, ok := c.timers[p.DocumentID]; ok {
		timer.Stop()
	}

	documentID := p.DocumentID
	roomID := p.RoomID
	content := p.Content
	c.timers[p.DocumentID] = time.AfterFunc(h.debounce, func() {
		if err := h.documents.PersistContent(documentID, content); err != nil {
			log.Printf("⚠️ [WS] failed to persist document %s: %v", documentID, err)
			return
		}
		h.hub.Broadcast(roomID, Event{Type: "document_update_persisted", Payload: map[string]interface{}{
			"documentId": documentID,
			"content":    content,
			"userId":     c.userID,
			"username":   c.username,
		}}, nil)
	})
}

// handleCanvasDraw 획 이벤트: draw 단계만 저장, 모든 단계를 중계.
// 저장 실패는 로그만 남기고 삼킨다 (그리기 루프를 막지 않는다).
func (h *CollabWSHandler) handleCanvasDraw(c *Client, raw json.RawMessage) {
	var p canvasDrawPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		c.sendError("invalid canvas_draw payload")
		return
	}
	if p.UserID != "" && p.UserID != c.userID {
		c.sendError("identity claim does not match session")
		return
	}

	ok, err := h.rooms.CanAccessRoom(c.userID, p.RoomID)
	if err != nil || !ok {
		c.sendError("no permission to draw in this room")
		return
	}

	stroke := &model.CanvasStroke{
		RoomID:    p.RoomID,
		Phase:     p.DrawData.Type,
		X:         p.DrawData.X,
		Y:         p.DrawData.Y,
		Color:     p.DrawData.Color,
		BrushSize: p.DrawData.BrushSize,
		Tool:      p.DrawData.Tool,
		UserID:    c.userID,
		Username:  c.username,
		Timestamp: p.Timestamp,
	}
	if err := h.canvas.AddStroke(stroke); err != nil {
		log.Printf("⚠️ [WS] failed to persist stroke: %v", err)
	}

	p.UserID = c.userID
	p.Username = c.username
	h.hub.Broadcast(p.RoomID, Event{Type: "canvas_draw_update", Payload: p}, c)
}

// handleCanvasClear 획 로그 전체 삭제 + 전원에게 알림
func (h *CollabWSHandler) handleCanvasClear(c *Client, raw json.RawMessage) {
	var p canvasClearPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		c.sendError("invalid canvas_clear payload")
		return
	}
	if p.UserID != "" && p.UserID != c.userID {
		c.sendError("identity claim does not match session")
		return
	}

	if err := h.canvas.Clear(p.RoomID, c.userID); err != nil {
		if errors.Is(err, service.ErrForbidden) {
			c.sendError("no permission to clear this canvas")
		} else {
			log.Printf("🚨 [WS] canvas clear failed: %v", err)
			c.sendError("failed to clear canvas")
		}
		return
	}

	h.hub.Broadcast(p.RoomID, Event{Type: "canvas_cleared", Payload: map[string]interface{}{
		"roomId":   p.RoomID,
		"userId":   c.userID,
		"username": c.username,
	}}, nil)
}

// handleCursorUpdate 커서 위치는 저장하지 않고 중계만 한다.
func (h *CollabWSHandler) handleCursorUpdate(c *Client, raw json.RawMessage) {
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		return
	}
	if p.UserID != "" && p.UserID != c.userID {
		return
	}

	p.UserID = c.userID
	p.Username = c.username
	h.hub.Broadcast(p.RoomID, Event{Type: "cursor_update", Payload: p}, c)
}

// handleTypingIndicator 타이핑 상태 upsert + 중계. 실패는 비치명적이다.
func (h *CollabWSHandler) handleTypingIndicator(c *Client, raw json.RawMessage) {
	var p typingPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		return
	}
	if p.UserID != "" && p.UserID != c.userID {
		return
	}

	if err := h.store.Presence.SetTyping(c.userID, p.RoomID, p.IsTyping); err != nil {
		log.Printf("⚠️ [WS] typing update failed: %v", err)
	}

	p.UserID = c.userID
	p.Username = c.username
	h.hub.Broadcast(p.RoomID, Event{Type: "typing_updated", Payload: p}, c)
}

// handleUserActivity 활동 신호 upsert + 중계
func (h *CollabWSHandler) handleUserActivity(c *Client, raw json.RawMessage) {
	var p activityPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		return
	}
	if p.UserID != "" && p.UserID != c.userID {
		return
	}

	if err := h.store.Presence.SetActivity(c.userID, p.RoomID, p.Activity); err != nil {
		log.Printf("⚠️ [WS] activity update failed: %v", err)
	}

	p.UserID = c.userID
	h.hub.Broadcast(p.RoomID, Event{Type: "user_activity", Payload: p}, c)
}

// handleFocusChange 포커스 상태 upsert + 중계
func (h *CollabWSHandler) handleFocusChange(c *Client, raw json.RawMessage) {
	var p focusPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		return
	}
	if p.UserID != "" && p.UserID != c.userID {
		return
	}

	if err := h.store.Presence.SetFocus(c.userID, p.RoomID, p.IsFocused); err != nil {
		log.Printf("⚠️ [WS] focus update failed: %v", err)
	}

	p.UserID = c.userID
	h.hub.Broadcast(p.RoomID, Event{Type: "user_focus_change", Payload: p}, c)
}

// handleDisconnect 연결 종료 정리.
// 타이머를 멈추고, 참여했던 모든 방에 user_left를 알리고,
// 해당 사용자의 presence 행을 모든 방에서 지운다.
func (h *CollabWSHandler) handleDisconnect(c *Client) {
	c.mu.Lock()
	for _, timer := range c.timers {
		timer.Stop()
	}
	c.timers = make(map[string]*time.Timer)
	rooms := make([]string, 0, len(c.joined))
	for roomID := range c.joined {
		rooms = append(rooms, roomID)
	}
	c.joined = make(map[string]bool)
	c.mu.Unlock()

	for _, roomID := range rooms {
		h.hub.Leave(roomID, c)
		h.hub.Broadcast(roomID, Event{Type: "user_left", Payload: memberPayload{
			UserID:   c.userID,
			Username: c.username,
		}}, nil)
		h.cache.Remove(context.Background(), roomID, c.userID)
	}

	if c.userID != "" {
		if err := h.store.Presence.DeletePresenceByUser(c.userID); err != nil {
			log.Printf("⚠️ [WS] presence cleanup failed for user %s: %v", c.userID, err)
		}
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	close(c.send)
	if c.conn != nil {
		c.conn.Close()
	}
	log.Printf("ℹ️ [WS] client disconnected: session=%s user=%s", c.sessionID, c.userID)
}
