package repository

import (
	"errors"

	"collab-backend/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository 사용자 저장소
type UserRepository interface {
	CreateUser(u *model.User) error
	GetUserByID(id string) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
}

// RoomRepository 방/멤버십 저장소
type RoomRepository interface {
	// CreateRoomWithOwner 방과 OWNER 멤버십을 한 트랜잭션으로 생성한다.
	// 방 코드가 충돌하면 ErrDuplicate를 반환한다.
	CreateRoomWithOwner(room *model.Room, owner *model.RoomMember) error
	// GetRoomByID Owner, Members(+User), Documents 포함
	GetRoomByID(id string) (*model.Room, error)
	// GetRoomByCode Owner, Members 포함
	GetRoomByCode(code string) (*model.Room, error)
	GetRoomsForUser(userID string) ([]model.Room, error)
	// DeleteRoom 멤버십/문서/요청/획 로그/presence까지 함께 삭제한다.
	DeleteRoom(id string) error

	GetMembership(userID, roomID string) (*model.RoomMember, error)
	CreateMembership(m *model.RoomMember) error
	DeleteMembership(userID, roomID string) error
	UpdateMembershipRole(userID, roomID string, role model.MemberRole) (*model.RoomMember, error)
	// ConsumeApprovedRequest 멤버십 생성과 승인된 요청 삭제를 한 트랜잭션으로 처리한다.
	ConsumeApprovedRequest(m *model.RoomMember, requestID string) error
}

// RequestRepository 참여 요청 저장소
type RequestRepository interface {
	CreateRequest(r *model.RoomRequest) error
	GetRequestByID(id string) (*model.RoomRequest, error)
	GetRequestByUserAndRoom(userID, roomID string) (*model.RoomRequest, error)
	GetRequestsByRoom(roomID string) ([]model.RoomRequest, error)
	GetRequestsByUser(userID string) ([]model.RoomRequest, error)
	UpdateRequest(r *model.RoomRequest) error
	DeleteRequest(id string) error
}

// DocumentRepository 문서 저장소
type DocumentRepository interface {
	CreateDocument(d *model.Document) error
	// GetDocumentByID Room(+Members), Creator 포함
	GetDocumentByID(id string) (*model.Document, error)
	GetDocumentsByRoom(roomID string) ([]model.Document, error)
	UpdateDocumentContent(id, content string) error
	UpdateDocumentTitle(id, title string) error
	DeleteDocument(id string) error
}

// CanvasRepository 화이트보드 획 로그 저장소
type CanvasRepository interface {
	// AppendStroke 획 하나를 원자적으로 추가한다 (행 단위 INSERT).
	AppendStroke(s *model.CanvasStroke) error
	// GetStrokesByRoom 삽입 순서대로 반환한다.
	GetStrokesByRoom(roomID string) ([]model.CanvasStroke, error)
	ClearStrokes(roomID string) error
}

// PresenceRepository 접속 상태 저장소
type PresenceRepository interface {
	UpsertPresence(p *model.UserPresence) error
	// GetPresenceByRoom lastSeen 내림차순
	GetPresenceByRoom(roomID string) ([]model.UserPresence, error)
	SetTyping(userID, roomID string, isTyping bool) error
	SetFocus(userID, roomID string, isFocused bool) error
	SetActivity(userID, roomID, activity string) error
	DeletePresence(userID, roomID string) error
	DeletePresenceByUser(userID string) error
}

// Store 저장소 묶음
type Store struct {
	Users     UserRepository
	Rooms     RoomRepository
	Requests  RequestRepository
	Documents DocumentRepository
	Canvas    CanvasRepository
	Presence  PresenceRepository
}
