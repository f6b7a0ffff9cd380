package model

import (
	"time"
)

// User 사용자
type User struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Avatar       *string   `gorm:"type:text" json:"avatar,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Memberships []RoomMember  `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
	Requests    []RoomRequest `gorm:"foreignKey:UserID" json:"requests,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Room 협업 방
type Room struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	Code        string    `gorm:"type:varchar(6);uniqueIndex;not null" json:"code"`
	OwnerID     string    `gorm:"type:uuid;not null" json:"owner_id"`
	IsPublic    bool      `gorm:"default:false" json:"is_public"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Owner     User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members   []RoomMember  `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Documents []Document    `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
	Requests  []RoomRequest `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"requests,omitempty"`
}

func (Room) TableName() string {
	return "rooms"
}

// RoomMember 방 멤버십. (user_id, room_id) 쌍은 유일하다.
type RoomMember struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_member_user_room" json:"user_id"`
	RoomID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_member_user_room" json:"room_id"`
	Role      string    `gorm:"type:varchar(20);not null;default:'VIEWER'" json:"role"` // OWNER, EDITOR, VIEWER
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Room Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
}

func (RoomMember) TableName() string {
	return "room_members"
}

// RoomRequest 비공개 방 참여 요청
type RoomRequest struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_request_user_room" json:"user_id"`
	RoomID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_request_user_room" json:"room_id"`
	Message   *string   `gorm:"type:text" json:"message,omitempty"`
	Status    string    `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"` // PENDING, APPROVED, REJECTED
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Room Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
}

func (RoomRequest) TableName() string {
	return "room_requests"
}

// Document 방 안의 공유 문서
type Document struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID    string    `gorm:"type:uuid;not null;index" json:"room_id"`
	Title     string    `gorm:"type:varchar(200);not null" json:"title"`
	Content   string    `gorm:"type:text;not null;default:''" json:"content"`
	CreatedBy string    `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Room    Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	Creator User `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}

// UserPresence 방 안의 접속 상태. 입장/활동 시 upsert, 퇴장/연결 종료 시 삭제.
type UserPresence struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_presence_user_room" json:"user_id"`
	RoomID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_presence_user_room" json:"room_id"`
	Username     string    `gorm:"type:varchar(100);not null" json:"username"`
	Avatar       *string   `gorm:"type:text" json:"avatar,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
	IsTyping     bool      `gorm:"default:false" json:"is_typing"`
	IsFocused    bool      `gorm:"default:true" json:"is_focused"`
	LastActivity *string   `gorm:"type:varchar(100)" json:"last_activity,omitempty"`
}

func (UserPresence) TableName() string {
	return "user_presence"
}
