package service

import (
	"context"
	"errors"
	"log"

	"collab-backend/internal/model"
	"collab-backend/internal/repository"
)

// 소유자 전용 관리 작업: 강퇴, 방 삭제, 역할 변경

// KickUser 소유자가 멤버를 강퇴한다. 멤버십과 presence를 함께 지운다.
func (s *RoomService) KickUser(roomID, targetUserID, requesterID string) (*model.Room, error) {
	room, err := s.store.Rooms.GetRoomByID(roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if room.OwnerID != requesterID {
		return nil, ErrForbidden
	}
	if targetUserID == room.OwnerID {
		return nil, ErrConflict
	}

	if err := s.store.Rooms.DeleteMembership(targetUserID, roomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.store.Presence.DeletePresence(targetUserID, roomID); err != nil {
		log.Printf("⚠️ [Room] failed to clear presence for kicked user %s: %v", targetUserID, err)
	}
	s.cache.Remove(context.Background(), roomID, targetUserID)

	return s.store.Rooms.GetRoomByID(roomID)
}

// DeleteRoom 소유자가 방을 삭제한다. 멤버십/문서/요청/획 로그/presence까지 함께 삭제된다.
func (s *RoomService) DeleteRoom(roomID, requesterID string) error {
	room, err := s.store.Rooms.GetRoomByID(roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if room.OwnerID != requesterID {
		return ErrForbidden
	}
	if err := s.store.Rooms.DeleteRoom(roomID); err != nil {
		return err
	}
	// 삭제된 방의 캐시 엔트리가 TTL 동안 남지 않게 즉시 비운다
	s.cache.Clear(context.Background(), roomID)
	return nil
}

// UpdateMemberRole 소유자가 멤버 역할을 변경한다.
// 소유자 본인의 역할은 OWNER에서 바꿀 수 없다.
func (s *RoomService) UpdateMemberRole(roomID, targetUserID string, newRole model.MemberRole, requesterID string) (*model.RoomMember, error) {
	if !newRole.Valid() {
		return nil, ErrConflict
	}

	room, err := s.store.Rooms.GetRoomByID(roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if room.OwnerID != requesterID {
		return nil, ErrForbidden
	}
	if targetUserID == room.OwnerID && newRole != model.RoleOwner {
		return nil, ErrConflict
	}

	member, err := s.store.Rooms.UpdateMembershipRole(targetUserID, roomID, newRole)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return member, nil
}
