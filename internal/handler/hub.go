package handler

import (
	"log"
	"sync"
)

// Event 서버→클라이언트 WebSocket 이벤트
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Hub 방 단위 WebSocket 연결 관리
type Hub struct {
	rooms map[string]*wsRoom
	mu    sync.RWMutex
}

// wsRoom 한 방에 접속 중인 클라이언트 집합
type wsRoom struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex
}

// NewHub Hub 생성
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]*wsRoom),
	}
}

// Join 클라이언트를 방에 등록한다.
// 클라이언트 추가는 h.mu 아래에서 수행한다. 그렇지 않으면 방 조회와 추가
// 사이에 Leave의 빈 방 정리가 끼어들어 맵에서 떨어진 방에 갇힐 수 있다.
func (h *Hub) Join(roomID string, client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[roomID]
	if !ok {
		room = &wsRoom{clients: make(map[*Client]struct{})}
		h.rooms[roomID] = room
		log.Printf("ℹ️ [Hub] created room %s", roomID)
	}
	room.mu.Lock()
	room.clients[client] = struct{}{}
	count := len(room.clients)
	room.mu.Unlock()
	h.mu.Unlock()

	log.Printf("ℹ️ [Hub] client %s joined room %s (total: %d)", client.sessionID, roomID, count)
}

// Leave 클라이언트를 방에서 제거한다. 방이 비면 정리한다.
func (h *Hub) Leave(roomID string, client *Client) {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	room.mu.Lock()
	delete(room.clients, client)
	empty := len(room.clients) == 0
	room.mu.Unlock()

	if empty {
		h.mu.Lock()
		// 비어 있는지 다시 확인 (Leave/Join 경합)
		room.mu.RLock()
		stillEmpty := len(room.clients) == 0
		room.mu.RUnlock()
		if stillEmpty {
			delete(h.rooms, roomID)
			log.Printf("ℹ️ [Hub] removed empty room %s", roomID)
		}
		h.mu.Unlock()
	}
}

// Broadcast 방의 모든 클라이언트에게 이벤트를 보낸다. exclude는 제외.
func (h *Hub) Broadcast(roomID string, event Event, exclude *Client) {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	room.mu.RLock()
	clients := make([]*Client, 0, len(room.clients))
	for client := range room.clients {
		if client != exclude {
			clients = append(clients, client)
		}
	}
	room.mu.RUnlock()

	for _, client := range clients {
		client.sendEvent(event)
	}
}

// RoomCount 방의 현재 접속자 수
func (h *Hub) RoomCount(roomID string) int {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	return len(room.clients)
}
