package service

import (
	"errors"

	"collab-backend/internal/model"
	"collab-backend/internal/repository"
)

// CanvasService 화이트보드 획 로그 관리
type CanvasService struct {
	store *repository.Store
	rooms *RoomService
}

// NewCanvasService CanvasService 생성
func NewCanvasService(store *repository.Store, rooms *RoomService) *CanvasService {
	return &CanvasService{store: store, rooms: rooms}
}

// AddStroke 획을 로그에 추가한다. draw 단계만 저장되고
// start/end는 전송 전용 마커라 그대로 무시한다.
func (s *CanvasService) AddStroke(stroke *model.CanvasStroke) error {
	if stroke.Phase != model.PhaseDraw.String() {
		return nil
	}
	return s.store.Canvas.AppendStroke(stroke)
}

// LoadState 방의 전체 획 로그를 삽입 순서대로 반환한다.
// join_room 시 화이트보드 재구성용으로 한 번 전송된다.
func (s *CanvasService) LoadState(roomID string) ([]model.CanvasStroke, error) {
	strokes, err := s.store.Canvas.GetStrokesByRoom(roomID)
	if err != nil {
		return nil, err
	}
	if strokes == nil {
		strokes = []model.CanvasStroke{}
	}
	return strokes, nil
}

// Clear 방의 획 로그를 비운다.
func (s *CanvasService) Clear(roomID, userID string) error {
	ok, err := s.rooms.CanAccessRoom(userID, roomID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return s.store.Canvas.ClearStrokes(roomID)
}
