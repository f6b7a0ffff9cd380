package service

import (
	"errors"

	"github.com/google/uuid"

	"collab-backend/internal/model"
	"collab-backend/internal/repository"
)

// RequestService 비공개 방 참여 요청 라이프사이클
type RequestService struct {
	store *repository.Store
}

// NewRequestService RequestService 생성
func NewRequestService(store *repository.Store) *RequestService {
	return &RequestService{store: store}
}

// CreateRequest 참여 요청 생성.
// 이미 멤버이거나 PENDING/APPROVED 요청이 있으면 Conflict,
// REJECTED 요청이 있으면 PENDING으로 되돌려 재제출한다.
func (s *RequestService) CreateRequest(roomID, userID string, message *string) (*model.RoomRequest, error) {
	room, err := s.store.Rooms.GetRoomByID(roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if room.OwnerID == userID {
		return nil, ErrConflict
	}
	if _, err := s.store.Rooms.GetMembership(userID, roomID); err == nil {
		return nil, ErrConflict
	}

	existing, err := s.store.Requests.GetRequestByUserAndRoom(userID, roomID)
	if err == nil {
		if existing.Status != model.RequestRejected.String() {
			return nil, ErrConflict
		}
		// 거절된 요청은 재제출로 PENDING 복귀
		existing.Status = model.RequestPending.String()
		existing.Message = message
		if err := s.store.Requests.UpdateRequest(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	req := &model.RoomRequest{
		ID:      uuid.NewString(),
		UserID:  userID,
		RoomID:  roomID,
		Message: message,
		Status:  model.RequestPending.String(),
	}
	if err := s.store.Requests.CreateRequest(req); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return req, nil
}

// GetRoomRequests 방의 요청 목록. 소유자만 볼 수 있다.
func (s *RequestService) GetRoomRequests(roomID, requesterID string) ([]model.RoomRequest, error) {
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
	return s.store.Requests.GetRequestsByRoom(roomID)
}

// GetUserRequests 본인이 제출한 요청 목록
func (s *RequestService) GetUserRequests(userID string) ([]model.RoomRequest, error) {
	return s.store.Requests.GetRequestsByUser(userID)
}

// ApproveRequest PENDING 요청을 승인한다. 멤버십은 여기서 만들지 않고
// 사용자가 코드로 참여할 때 승인을 소비하며 생성된다.
func (s *RequestService) ApproveRequest(requestID, requesterID string) (*model.RoomRequest, error) {
	return s.transition(requestID, requesterID, model.RequestApproved)
}

// RejectRequest PENDING 요청을 거절한다.
func (s *RequestService) RejectRequest(requestID, requesterID string) (*model.RoomRequest, error) {
	return s.transition(requestID, requesterID, model.RequestRejected)
}

func (s *RequestService) transition(requestID, requesterID string, status model.RequestStatus) (*model.RoomRequest, error) {
	req, err := s.store.Requests.GetRequestByID(requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if req.Room.OwnerID != requesterID {
		return nil, ErrForbidden
	}
	if req.Status != model.RequestPending.String() {
		return nil, ErrConflict
	}

	req.Status = status.String()
	updated := *req
	updated.User = model.User{}
	updated.Room = model.Room{}
	if err := s.store.Requests.UpdateRequest(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
