package repository

import (
	"sort"
	"sync"
	"time"

	"collab-backend/internal/model"
)

// memoryStore 테스트용 인메모리 저장소. DB 없이 서비스 로직을 검증할 때 쓴다.
type memoryStore struct {
	mu sync.RWMutex

	users     map[string]model.User
	rooms     map[string]model.Room
	members   map[int64]model.RoomMember
	requests  map[string]model.RoomRequest
	documents map[string]model.Document
	strokes   []model.CanvasStroke
	presence  map[int64]model.UserPresence

	memberSeq   int64
	strokeSeq   int64
	presenceSeq int64
}

// NewMemoryStore 인메모리 Store 생성
func NewMemoryStore() *Store {
	s := &memoryStore{
		users:     make(map[string]model.User),
		rooms:     make(map[string]model.Room),
		members:   make(map[int64]model.RoomMember),
		requests:  make(map[string]model.RoomRequest),
		documents: make(map[string]model.Document),
		presence:  make(map[int64]model.UserPresence),
	}
	return &Store{
		Users:     s,
		Rooms:     s,
		Requests:  s,
		Documents: s,
		Canvas:    s,
		Presence:  s,
	}
}

// --- UserRepository ---

func (s *memoryStore) CreateUser(u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *memoryStore) GetUserByID(id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *memoryStore) GetUserByEmail(email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// --- RoomRepository ---

func (s *memoryStore) CreateRoomWithOwner(room *model.Room, owner *model.RoomMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rooms {
		if existing.Code == room.Code {
			return ErrDuplicate
		}
	}
	now := time.Now()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
		room.UpdatedAt = now
	}
	stored := *room
	stored.Owner = model.User{}
	stored.Members = nil
	stored.Documents = nil
	stored.Requests = nil
	s.rooms[room.ID] = stored

	s.memberSeq++
	owner.ID = s.memberSeq
	owner.RoomID = room.ID
	owner.CreatedAt = now
	s.members[owner.ID] = *owner
	return nil
}

func (s *memoryStore) GetRoomByID(id string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	assembled := s.assembleRoom(room)
	return &assembled, nil
}

func (s *memoryStore) GetRoomByCode(code string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, room := range s.rooms {
		if room.Code == code {
			assembled := s.assembleRoom(room)
			return &assembled, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryStore) GetRoomsForUser(userID string) ([]model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rooms []model.Room
	for _, member := range s.members {
		if member.UserID != userID {
			continue
		}
		if room, ok := s.rooms[member.RoomID]; ok {
			rooms = append(rooms, s.assembleRoom(room))
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})
	return rooms, nil
}

// assembleRoom 소유자/멤버/문서를 붙여 반환 (호출자가 락을 쥔다)
func (s *memoryStore) assembleRoom(room model.Room) model.Room {
	if owner, ok := s.users[room.OwnerID]; ok {
		room.Owner = owner
	}
	var members []model.RoomMember
	for _, m := range s.members {
		if m.RoomID == room.ID {
			if user, ok := s.users[m.UserID]; ok {
				m.User = user
			}
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	room.Members = members

	var docs []model.Document
	for _, d := range s.documents {
		if d.RoomID == room.ID {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UpdatedAt.After(docs[j].UpdatedAt) })
	room.Documents = docs
	return room
}

func (s *memoryStore) DeleteRoom(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return ErrNotFound
	}
	delete(s.rooms, id)
	for memberID, m := range s.members {
		if m.RoomID == id {
			delete(s.members, memberID)
		}
	}
	for reqID, r := range s.requests {
		if r.RoomID == id {
			delete(s.requests, reqID)
		}
	}
	for docID, d := range s.documents {
		if d.RoomID == id {
			delete(s.documents, docID)
		}
	}
	var kept []model.CanvasStroke
	for _, stroke := range s.strokes {
		if stroke.RoomID != id {
			kept = append(kept, stroke)
		}
	}
	s.strokes = kept
	for presenceID, p := range s.presence {
		if p.RoomID == id {
			delete(s.presence, presenceID)
		}
	}
	return nil
}

func (s *memoryStore) GetMembership(userID, roomID string) (*model.RoomMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.members {
		if m.UserID == userID && m.RoomID == roomID {
			member := m
			return &member, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryStore) CreateMembership(m *model.RoomMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createMembershipLocked(m)
}

func (s *memoryStore) createMembershipLocked(m *model.RoomMember) error {
	for _, existing := range s.members {
		if existing.UserID == m.UserID && existing.RoomID == m.RoomID {
			return ErrDuplicate
		}
	}
	s.memberSeq++
	m.ID = s.memberSeq
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	stored := *m
	stored.User = model.User{}
	stored.Room = model.Room{}
	s.members[m.ID] = stored
	return nil
}

func (s *memoryStore) DeleteMembership(userID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for memberID, m := range s.members {
		if m.UserID == userID && m.RoomID == roomID {
			delete(s.members, memberID)
			return nil
		}
	}
	return ErrNotFound
}

func (s *memoryStore) UpdateMembershipRole(userID, roomID string, role model.MemberRole) (*model.RoomMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for memberID, m := range s.members {
		if m.UserID == userID && m.RoomID == roomID {
			m.Role = role.String()
			s.members[memberID] = m
			member := m
			return &member, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryStore) ConsumeApprovedRequest(m *model.RoomMember, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.createMembershipLocked(m); err != nil {
		return err
	}
	delete(s.requests, requestID)
	return nil
}

// --- RequestRepository ---

func (s *memoryStore) CreateRequest(r *model.RoomRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.requests {
		if existing.UserID == r.UserID && existing.RoomID == r.RoomID {
			return ErrDuplicate
		}
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
		r.UpdatedAt = now
	}
	stored := *r
	stored.User = model.User{}
	stored.Room = model.Room{}
	s.requests[r.ID] = stored
	return nil
}

func (s *memoryStore) GetRequestByID(id string) (*model.RoomRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if room, exists := s.rooms[req.RoomID]; exists {
		req.Room = room
	}
	if user, exists := s.users[req.UserID]; exists {
		req.User = user
	}
	return &req, nil
}

func (s *memoryStore) GetRequestByUserAndRoom(userID, roomID string) (*model.RoomRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, req := range s.requests {
		if req.UserID == userID && req.RoomID == roomID {
			r := req
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryStore) GetRequestsByRoom(roomID string) ([]model.RoomRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reqs []model.RoomRequest
	for _, req := range s.requests {
		if req.RoomID == roomID {
			if user, ok := s.users[req.UserID]; ok {
				req.User = user
			}
			reqs = append(reqs, req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	return reqs, nil
}

func (s *memoryStore) GetRequestsByUser(userID string) ([]model.RoomRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reqs []model.RoomRequest
	for _, req := range s.requests {
		if req.UserID == userID {
			if room, ok := s.rooms[req.RoomID]; ok {
				req.Room = room
			}
			reqs = append(reqs, req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	return reqs, nil
}

func (s *memoryStore) UpdateRequest(r *model.RoomRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[r.ID]; !ok {
		return ErrNotFound
	}
	r.UpdatedAt = time.Now()
	stored := *r
	stored.User = model.User{}
	stored.Room = model.Room{}
	s.requests[r.ID] = stored
	return nil
}

func (s *memoryStore) DeleteRequest(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[id]; !ok {
		return ErrNotFound
	}
	delete(s.requests, id)
	return nil
}

// --- DocumentRepository ---

func (s *memoryStore) CreateDocument(d *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
		d.UpdatedAt = now
	}
	stored := *d
	stored.Room = model.Room{}
	stored.Creator = model.User{}
	s.documents[d.ID] = stored
	return nil
}

func (s *memoryStore) GetDocumentByID(id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	if room, exists := s.rooms[doc.RoomID]; exists {
		doc.Room = s.assembleRoom(room)
	}
	if creator, exists := s.users[doc.CreatedBy]; exists {
		doc.Creator = creator
	}
	return &doc, nil
}

func (s *memoryStore) GetDocumentsByRoom(roomID string) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []model.Document
	for _, d := range s.documents {
		if d.RoomID == roomID {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UpdatedAt.After(docs[j].UpdatedAt) })
	return docs, nil
}

func (s *memoryStore) UpdateDocumentContent(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return ErrNotFound
	}
	doc.Content = content
	doc.UpdatedAt = time.Now()
	s.documents[id] = doc
	return nil
}

func (s *memoryStore) UpdateDocumentTitle(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return ErrNotFound
	}
	doc.Title = title
	doc.UpdatedAt = time.Now()
	s.documents[id] = doc
	return nil
}

func (s *memoryStore) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return ErrNotFound
	}
	delete(s.documents, id)
	return nil
}

// --- CanvasRepository ---

func (s *memoryStore) AppendStroke(stroke *model.CanvasStroke) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.strokeSeq++
	stroke.ID = s.strokeSeq
	s.strokes = append(s.strokes, *stroke)
	return nil
}

func (s *memoryStore) GetStrokesByRoom(roomID string) ([]model.CanvasStroke, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var strokes []model.CanvasStroke
	for _, stroke := range s.strokes {
		if stroke.RoomID == roomID {
			strokes = append(strokes, stroke)
		}
	}
	return strokes, nil
}

func (s *memoryStore) ClearStrokes(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []model.CanvasStroke
	for _, stroke := range s.strokes {
		if stroke.RoomID != roomID {
			kept = append(kept, stroke)
		}
	}
	s.strokes = kept
	return nil
}

// --- PresenceRepository ---

func (s *memoryStore) UpsertPresence(p *model.UserPresence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for presenceID, existing := range s.presence {
		if existing.UserID == p.UserID && existing.RoomID == p.RoomID {
			p.ID = presenceID
			s.presence[presenceID] = *p
			return nil
		}
	}
	s.presenceSeq++
	p.ID = s.presenceSeq
	s.presence[p.ID] = *p
	return nil
}

func (s *memoryStore) GetPresenceByRoom(roomID string) ([]model.UserPresence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []model.UserPresence
	for _, p := range s.presence {
		if p.RoomID == roomID {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].LastSeen.After(list[j].LastSeen) })
	return list, nil
}

func (s *memoryStore) SetTyping(userID, roomID string, isTyping bool) error {
	return s.updatePresence(userID, roomID, func(p *model.UserPresence) {
		p.IsTyping = isTyping
	})
}

func (s *memoryStore) SetFocus(userID, roomID string, isFocused bool) error {
	return s.updatePresence(userID, roomID, func(p *model.UserPresence) {
		p.IsFocused = isFocused
	})
}

func (s *memoryStore) SetActivity(userID, roomID, activity string) error {
	return s.updatePresence(userID, roomID, func(p *model.UserPresence) {
		p.LastActivity = &activity
	})
}

func (s *memoryStore) updatePresence(userID, roomID string, apply func(*model.UserPresence)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for presenceID, p := range s.presence {
		if p.UserID == userID && p.RoomID == roomID {
			apply(&p)
			p.LastSeen = time.Now()
			s.presence[presenceID] = p
			return nil
		}
	}
	return ErrNotFound
}

func (s *memoryStore) DeletePresence(userID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for presenceID, p := range s.presence {
		if p.UserID == userID && p.RoomID == roomID {
			delete(s.presence, presenceID)
			return nil
		}
	}
	return nil
}

func (s *memoryStore) DeletePresenceByUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for presenceID, p := range s.presence {
		if p.UserID == userID {
			delete(s.presence, presenceID)
		}
	}
	return nil
}
