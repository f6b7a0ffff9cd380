package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/google/uuid"

	"collab-backend/internal/model"
	"collab-backend/internal/presence"
	"collab-backend/internal/repository"
)

const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomService 방 생성/조회/참여/탈퇴와 소유자 관리 로직
type RoomService struct {
	store        *repository.Store
	cache        *presence.Cache // nil이면 비활성
	codeAttempts int
	// codeFn 방 코드 생성기. 테스트에서 결정적으로 바꿀 수 있다.
	codeFn func() string
}

// NewRoomService RoomService 생성
func NewRoomService(store *repository.Store, cache *presence.Cache, codeAttempts int) *RoomService {
	if codeAttempts <= 0 {
		codeAttempts = 5
	}
	return &RoomService{
		store:        store,
		cache:        cache,
		codeAttempts: codeAttempts,
		codeFn:       randomCode,
	}
}

// randomCode 6자리 영숫자 코드 생성 (혼동되는 문자 제외)
func randomCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = codeCharset[rand.Intn(len(codeCharset))]
	}
	return string(code)
}

// RoomView 방 조회 결과. 비공개 방의 비멤버에게는 ActionRequired가 켜지고
// 멤버/문서 목록이 비워진 채 반환된다.
type RoomView struct {
	Room           *model.Room
	ActionRequired bool
	UserRequest    *model.RoomRequest
}

// JoinResult 코드 참여 결과
type JoinResult struct {
	Room           *model.Room
	Joined         bool
	ActionRequired bool
}

// CreateRoom 방과 OWNER 멤버십을 생성한다.
// 코드 충돌은 DB unique 제약으로 감지하고 새 코드로 재시도한다.
func (s *RoomService) CreateRoom(ownerID, name string, description *string, isPublic bool) (*model.Room, error) {
	if _, err := s.store.Users.GetUserByID(ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var roomID string
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		room := &model.Room{
			ID:          uuid.NewString(),
			Name:        name,
			Description: description,
			Code:        s.codeFn(),
			OwnerID:     ownerID,
			IsPublic:    isPublic,
		}
		owner := &model.RoomMember{
			UserID: ownerID,
			Role:   model.RoleOwner.String(),
		}

		err := s.store.Rooms.CreateRoomWithOwner(room, owner)
		if err == nil {
			roomID = room.ID
			break
		}
		if errors.Is(err, repository.ErrDuplicate) {
			log.Printf("⚠️ [Room] code collision %s, retrying (%d/%d)", room.Code, attempt+1, s.codeAttempts)
			continue
		}
		return nil, err
	}
	if roomID == "" {
		return nil, fmt.Errorf("failed to generate unique room code after %d attempts", s.codeAttempts)
	}

	return s.store.Rooms.GetRoomByID(roomID)
}

// GetUserRooms 사용자가 멤버인 방 목록
func (s *RoomService) GetUserRooms(userID string) ([]model.Room, error) {
	return s.store.Rooms.GetRoomsForUser(userID)
}

// GetRoomByID 방 상세 조회. 비공개 방의 비멤버에게는 멤버/문서가 비워진
// 축약 뷰와 함께 본인의 참여 요청 상태를 돌려준다.
func (s *RoomService) GetRoomByID(roomID, userID string) (*RoomView, error) {
	room, err := s.store.Rooms.GetRoomByID(roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if room.IsPublic || room.OwnerID == userID || s.isMember(userID, roomID) {
		return &RoomView{Room: room}, nil
	}

	// 축약 뷰: 메타데이터와 코드는 남기되 멤버/문서는 감춘다
	room.Members = nil
	room.Documents = nil

	view := &RoomView{Room: room, ActionRequired: true}
	if req, err := s.store.Requests.GetRequestByUserAndRoom(userID, roomID); err == nil {
		view.UserRequest = req
	}
	return view, nil
}

// JoinRoomByCode 코드로 방에 참여한다.
// 공개 방이면 즉시 VIEWER 멤버십을 만들고, 비공개 방은 APPROVED 요청이
// 있을 때만 멤버십 생성과 요청 삭제를 한 트랜잭션으로 처리한다.
func (s *RoomService) JoinRoomByCode(code, userID string) (*JoinResult, error) {
	room, err := s.store.Rooms.GetRoomByCode(code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if s.isMember(userID, room.ID) {
		return nil, ErrConflict
	}

	member := &model.RoomMember{
		UserID: userID,
		RoomID: room.ID,
		Role:   model.RoleViewer.String(),
	}

	if room.IsPublic {
		if err := s.store.Rooms.CreateMembership(member); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, ErrConflict
			}
			return nil, err
		}
		refreshed, err := s.store.Rooms.GetRoomByID(room.ID)
		if err != nil {
			return nil, err
		}
		return &JoinResult{Room: refreshed, Joined: true}, nil
	}

	req, err := s.store.Requests.GetRequestByUserAndRoom(userID, room.ID)
	if err == nil && req.Status == model.RequestApproved.String() {
		// 승인 소비: 멤버십 생성 + 요청 삭제가 함께 성공하거나 함께 실패한다
		if err := s.store.Rooms.ConsumeApprovedRequest(member, req.ID); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, ErrConflict
			}
			return nil, err
		}
		refreshed, err := s.store.Rooms.GetRoomByID(room.ID)
		if err != nil {
			return nil, err
		}
		return &JoinResult{Room: refreshed, Joined: true}, nil
	}

	// 승인이 없으면 참여 요청 플로우로 안내
	room.Members = nil
	room.Documents = nil
	return &JoinResult{Room: room, ActionRequired: true}, nil
}

// LeaveRoom 방에서 나간다. 소유자는 나갈 수 없다 (방 삭제로만 정리).
func (s *RoomService) LeaveRoom(roomID, userID string) error {
	room, err := s.store.Rooms.GetRoomByID(roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if room.OwnerID == userID {
		return ErrConflict
	}

	if err := s.store.Rooms.DeleteMembership(userID, roomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	// presence 정리 실패는 치명적이지 않다
	if err := s.store.Presence.DeletePresence(userID, roomID); err != nil {
		log.Printf("⚠️ [Room] failed to clear presence for user %s in room %s: %v", userID, roomID, err)
	}
	s.cache.Remove(context.Background(), roomID, userID)
	return nil
}

// CanAccessRoom 실시간 이벤트 인가용: 멤버이거나 소유자이거나 공개 방이면 true
func (s *RoomService) CanAccessRoom(userID, roomID string) (bool, error) {
	room, err := s.store.Rooms.GetRoomByID(roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}
	if room.IsPublic || room.OwnerID == userID {
		return true, nil
	}
	return s.isMember(userID, roomID), nil
}

func (s *RoomService) isMember(userID, roomID string) bool {
	_, err := s.store.Rooms.GetMembership(userID, roomID)
	return err == nil
}
