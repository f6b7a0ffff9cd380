package repository

import (
	"errors"

	"gorm.io/gorm"

	"collab-backend/internal/model"
)

// postgresStore gorm 기반 저장소 구현
type postgresStore struct {
	db *gorm.DB
}

// NewPostgresStore gorm DB 위에서 동작하는 Store 생성
func NewPostgresStore(db *gorm.DB) *Store {
	s := &postgresStore{db: db}
	return &Store{
		Users:     s,
		Rooms:     s,
		Requests:  s,
		Documents: s,
		Canvas:    s,
		Presence:  s,
	}
}

// translate gorm 에러를 저장소 에러로 변환
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// --- UserRepository ---

func (s *postgresStore) CreateUser(u *model.User) error {
	return translate(s.db.Create(u).Error)
}

func (s *postgresStore) GetUserByID(id string) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *postgresStore) GetUserByEmail(email string) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// --- RoomRepository ---

func (s *postgresStore) CreateRoomWithOwner(room *model.Room, owner *model.RoomMember) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		owner.RoomID = room.ID
		return tx.Create(owner).Error
	})
	return translate(err)
}

func (s *postgresStore) GetRoomByID(id string) (*model.Room, error) {
	var room model.Room
	err := s.db.
		Preload("Owner").
		Preload("Members").
		Preload("Members.User").
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Order("updated_at DESC")
		}).
		First(&room, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (s *postgresStore) GetRoomByCode(code string) (*model.Room, error) {
	var room model.Room
	err := s.db.
		Preload("Owner").
		Preload("Members").
		First(&room, "code = ?", code).Error
	if err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (s *postgresStore) GetRoomsForUser(userID string) ([]model.Room, error) {
	var rooms []model.Room
	err := s.db.
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Preload("Owner").
		Preload("Members").
		Order("rooms.updated_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, translate(err)
	}
	return rooms, nil
}

func (s *postgresStore) DeleteRoom(id string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&model.RoomMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&model.RoomRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&model.Document{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&model.CanvasStroke{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&model.UserPresence{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Room{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return translate(err)
}

func (s *postgresStore) GetMembership(userID, roomID string) (*model.RoomMember, error) {
	var member model.RoomMember
	err := s.db.First(&member, "user_id = ? AND room_id = ?", userID, roomID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

func (s *postgresStore) CreateMembership(m *model.RoomMember) error {
	return translate(s.db.Create(m).Error)
}

func (s *postgresStore) DeleteMembership(userID, roomID string) error {
	result := s.db.Where("user_id = ? AND room_id = ?", userID, roomID).Delete(&model.RoomMember{})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) UpdateMembershipRole(userID, roomID string, role model.MemberRole) (*model.RoomMember, error) {
	var member model.RoomMember
	if err := s.db.First(&member, "user_id = ? AND room_id = ?", userID, roomID).Error; err != nil {
		return nil, translate(err)
	}
	member.Role = role.String()
	if err := s.db.Save(&member).Error; err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

func (s *postgresStore) ConsumeApprovedRequest(m *model.RoomMember, requestID string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", requestID).Delete(&model.RoomRequest{}).Error
	})
	return translate(err)
}

// --- RequestRepository ---

func (s *postgresStore) CreateRequest(r *model.RoomRequest) error {
	return translate(s.db.Create(r).Error)
}

func (s *postgresStore) GetRequestByID(id string) (*model.RoomRequest, error) {
	var req model.RoomRequest
	err := s.db.Preload("Room").Preload("User").First(&req, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (s *postgresStore) GetRequestByUserAndRoom(userID, roomID string) (*model.RoomRequest, error) {
	var req model.RoomRequest
	err := s.db.First(&req, "user_id = ? AND room_id = ?", userID, roomID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (s *postgresStore) GetRequestsByRoom(roomID string) ([]model.RoomRequest, error) {
	var reqs []model.RoomRequest
	err := s.db.
		Preload("User").
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, translate(err)
	}
	return reqs, nil
}

func (s *postgresStore) GetRequestsByUser(userID string) ([]model.RoomRequest, error) {
	var reqs []model.RoomRequest
	err := s.db.
		Preload("Room").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, translate(err)
	}
	return reqs, nil
}

func (s *postgresStore) UpdateRequest(r *model.RoomRequest) error {
	return translate(s.db.Save(r).Error)
}

func (s *postgresStore) DeleteRequest(id string) error {
	result := s.db.Where("id = ?", id).Delete(&model.RoomRequest{})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- DocumentRepository ---

func (s *postgresStore) CreateDocument(d *model.Document) error {
	return translate(s.db.Create(d).Error)
}

func (s *postgresStore) GetDocumentByID(id string) (*model.Document, error) {
	var doc model.Document
	err := s.db.
		Preload("Room").
		Preload("Room.Members").
		Preload("Creator").
		First(&doc, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

func (s *postgresStore) GetDocumentsByRoom(roomID string) ([]model.Document, error) {
	var docs []model.Document
	err := s.db.
		Where("room_id = ?", roomID).
		Order("updated_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, translate(err)
	}
	return docs, nil
}

func (s *postgresStore) UpdateDocumentContent(id, content string) error {
	result := s.db.Model(&model.Document{}).Where("id = ?", id).Update("content", content)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) UpdateDocumentTitle(id, title string) error {
	result := s.db.Model(&model.Document{}).Where("id = ?", id).Update("title", title)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) DeleteDocument(id string) error {
	result := s.db.Where("id = ?", id).Delete(&model.Document{})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- CanvasRepository ---

func (s *postgresStore) AppendStroke(stroke *model.CanvasStroke) error {
	return translate(s.db.Create(stroke).Error)
}

func (s *postgresStore) GetStrokesByRoom(roomID string) ([]model.CanvasStroke, error) {
	var strokes []model.CanvasStroke
	err := s.db.
		Where("room_id = ?", roomID).
		Order("id ASC").
		Find(&strokes).Error
	if err != nil {
		return nil, translate(err)
	}
	return strokes, nil
}

func (s *postgresStore) ClearStrokes(roomID string) error {
	return translate(s.db.Where("room_id = ?", roomID).Delete(&model.CanvasStroke{}).Error)
}

// --- PresenceRepository ---

func (s *postgresStore) UpsertPresence(p *model.UserPresence) error {
	var existing model.UserPresence
	err := s.db.First(&existing, "user_id = ? AND room_id = ?", p.UserID, p.RoomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return translate(s.db.Create(p).Error)
	}
	if err != nil {
		return translate(err)
	}
	p.ID = existing.ID
	return translate(s.db.Save(p).Error)
}

func (s *postgresStore) GetPresenceByRoom(roomID string) ([]model.UserPresence, error) {
	var list []model.UserPresence
	err := s.db.
		Where("room_id = ?", roomID).
		Order("last_seen DESC").
		Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

func (s *postgresStore) SetTyping(userID, roomID string, isTyping bool) error {
	return s.updatePresence(userID, roomID, map[string]interface{}{"is_typing": isTyping})
}

func (s *postgresStore) SetFocus(userID, roomID string, isFocused bool) error {
	return s.updatePresence(userID, roomID, map[string]interface{}{"is_focused": isFocused})
}

func (s *postgresStore) SetActivity(userID, roomID, activity string) error {
	return s.updatePresence(userID, roomID, map[string]interface{}{"last_activity": activity})
}

func (s *postgresStore) updatePresence(userID, roomID string, updates map[string]interface{}) error {
	result := s.db.Model(&model.UserPresence{}).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Updates(updates)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) DeletePresence(userID, roomID string) error {
	return translate(s.db.Where("user_id = ? AND room_id = ?", userID, roomID).Delete(&model.UserPresence{}).Error)
}

func (s *postgresStore) DeletePresenceByUser(userID string) error {
	return translate(s.db.Where("user_id = ?", userID).Delete(&model.UserPresence{}).Error)
}
