package service

import (
	"errors"

	"github.com/google/uuid"

	"collab-backend/internal/model"
	"collab-backend/internal/repository"
)

// DocumentService 방 안의 공유 문서 CRUD와 실시간 편집 인가
type DocumentService struct {
	store *repository.Store
	rooms *RoomService
}

// NewDocumentService DocumentService 생성
func NewDocumentService(store *repository.Store, rooms *RoomService) *DocumentService {
	return &DocumentService{store: store, rooms: rooms}
}

// CreateDocument 방 멤버가 문서를 생성한다.
func (s *DocumentService) CreateDocument(roomID, userID, title string) (*model.Document, error) {
	ok, err := s.rooms.CanAccessRoom(userID, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	doc := &model.Document{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Title:     title,
		Content:   "",
		CreatedBy: userID,
	}
	if err := s.store.Documents.CreateDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument 문서 조회. 방 접근 권한이 있어야 한다.
func (s *DocumentService) GetDocument(documentID, userID string) (*model.Document, error) {
	doc, err := s.store.Documents.GetDocumentByID(documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	ok, err := s.rooms.CanAccessRoom(userID, doc.RoomID)
	if err != nil {
		return nil, err
	}
	if !ok && doc.CreatedBy != userID {
		return nil, ErrForbidden
	}
	return doc, nil
}

// GetRoomDocuments 방의 문서 목록
func (s *DocumentService) GetRoomDocuments(roomID, userID string) ([]model.Document, error) {
	ok, err := s.rooms.CanAccessRoom(userID, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return s.store.Documents.GetDocumentsByRoom(roomID)
}

// UpdateContent 문서 내용 갱신. 멤버/소유자/작성자만 가능하다.
func (s *DocumentService) UpdateContent(documentID, userID, content string) (*model.Document, error) {
	if err := s.authorizeEdit(documentID, userID); err != nil {
		return nil, err
	}
	if err := s.store.Documents.UpdateDocumentContent(documentID, content); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.store.Documents.GetDocumentByID(documentID)
}

// UpdateTitle 문서 제목 갱신
func (s *DocumentService) UpdateTitle(documentID, userID, title string) (*model.Document, error) {
	if err := s.authorizeEdit(documentID, userID); err != nil {
		return nil, err
	}
	if err := s.store.Documents.UpdateDocumentTitle(documentID, title); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.store.Documents.GetDocumentByID(documentID)
}

// DeleteDocument 작성자 또는 방 소유자만 삭제할 수 있다.
func (s *DocumentService) DeleteDocument(documentID, userID string) error {
	doc, err := s.store.Documents.GetDocumentByID(documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if doc.CreatedBy != userID && doc.Room.OwnerID != userID {
		return ErrForbidden
	}
	return s.store.Documents.DeleteDocument(documentID)
}

// CanEditDocument 실시간 편집 인가: 멤버/소유자/작성자 여부.
// 문서가 아직 없으면 ErrNotFound를 돌려 호출자가 브로드캐스트만 하도록 한다.
func (s *DocumentService) CanEditDocument(userID, documentID string) (bool, error) {
	doc, err := s.store.Documents.GetDocumentByID(documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}
	if doc.CreatedBy == userID {
		return true, nil
	}
	ok, err := s.rooms.CanAccessRoom(userID, doc.RoomID)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// PersistContent 디바운스 타이머 만료 시 호출되는 내용 기록.
// 인가는 이벤트 수신 시점에 이미 끝났다.
func (s *DocumentService) PersistContent(documentID, content string) error {
	if err := s.store.Documents.UpdateDocumentContent(documentID, content); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *DocumentService) authorizeEdit(documentID, userID string) error {
	ok, err := s.CanEditDocument(userID, documentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
