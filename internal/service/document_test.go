package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDocument(t *testing.T) {
	store := newTestStore(t)
	rooms := NewRoomService(store, nil, 5)
	docs := NewDocumentService(store, rooms)
	owner := createTestUser(t, store, "alice")
	outsider := createTestUser(t, store, "bob")

	room, err := rooms.CreateRoom(owner.ID, "Private", nil, false)
	require.NoError(t, err)

	doc, err := docs.CreateDocument(room.ID, owner.ID, "Notes")
	require.NoError(t, err)
	assert.Equal(t, "Notes", doc.Title)
	assert.Equal(t, "", doc.Content)
	assert.Equal(t, owner.ID, doc.CreatedBy)

	// 접근 권한이 없으면 Forbidden
	_, err = docs.CreateDocument(room.ID, outsider.ID, "Sneaky")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateDocumentContent(t *testing.T) {
	store := newTestStore(t)
	rooms := NewRoomService(store, nil, 5)
	docs := NewDocumentService(store, rooms)
	owner := createTestUser(t, store, "alice")
	member := createTestUser(t, store, "bob")
	outsider := createTestUser(t, store, "carol")

	room, err := rooms.CreateRoom(owner.ID, "Open", nil, true)
	require.NoError(t, err)
	_, err = rooms.JoinRoomByCode(room.Code, member.ID)
	require.NoError(t, err)

	doc, err := docs.CreateDocument(room.ID, owner.ID, "Notes")
	require.NoError(t, err)

	// 멤버는 내용 수정 가능
	updated, err := docs.UpdateContent(doc.ID, member.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Content)

	// 공개 방은 누구나 접근 가능이므로 outsider도 편집된다
	updated, err = docs.UpdateContent(doc.ID, outsider.ID, "world")
	require.NoError(t, err)
	assert.Equal(t, "world", updated.Content)
}

func TestCanEditDocument(t *testing.T) {
	store := newTestStore(t)
	rooms := NewRoomService(store, nil, 5)
	docs := NewDocumentService(store, rooms)
	owner := createTestUser(t, store, "alice")
	member := createTestUser(t, store, "bob")
	outsider := createTestUser(t, store, "carol")

	room, err := rooms.CreateRoom(owner.ID, "Private", nil, false)
	require.NoError(t, err)

	doc, err := docs.CreateDocument(room.ID, owner.ID, "Notes")
	require.NoError(t, err)

	// 승인 플로우를 거쳐 member를 멤버십으로 추가
	requests := NewRequestService(store)
	req, err := requests.CreateRequest(room.ID, member.ID, nil)
	require.NoError(t, err)
	_, err = requests.ApproveRequest(req.ID, owner.ID)
	require.NoError(t, err)
	_, err = rooms.JoinRoomByCode(room.Code, member.ID)
	require.NoError(t, err)

	ok, err := docs.CanEditDocument(owner.ID, doc.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = docs.CanEditDocument(member.ID, doc.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = docs.CanEditDocument(outsider.ID, doc.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// 존재하지 않는 문서는 NotFound
	_, err = docs.CanEditDocument(owner.ID, "missing-doc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteDocument(t *testing.T) {
	store := newTestStore(t)
	rooms := NewRoomService(store, nil, 5)
	docs := NewDocumentService(store, rooms)
	owner := createTestUser(t, store, "alice")
	member := createTestUser(t, store, "bob")

	room, err := rooms.CreateRoom(owner.ID, "Open", nil, true)
	require.NoError(t, err)
	_, err = rooms.JoinRoomByCode(room.Code, member.ID)
	require.NoError(t, err)

	doc, err := docs.CreateDocument(room.ID, member.ID, "Notes")
	require.NoError(t, err)

	other, err := docs.CreateDocument(room.ID, owner.ID, "Owner Notes")
	require.NoError(t, err)

	// 작성자도 소유자도 아니면 Forbidden
	outsider := createTestUser(t, store, "carol")
	assert.ErrorIs(t, docs.DeleteDocument(doc.ID, outsider.ID), ErrForbidden)

	// 작성자는 삭제 가능
	require.NoError(t, docs.DeleteDocument(doc.ID, member.ID))

	// 방 소유자는 남의 문서도 삭제 가능
	require.NoError(t, docs.DeleteDocument(other.ID, owner.ID))

	assert.ErrorIs(t, docs.DeleteDocument(doc.ID, member.ID), ErrNotFound)
}

func TestPersistContent(t *testing.T) {
	store := newTestStore(t)
	rooms := NewRoomService(store, nil, 5)
	docs := NewDocumentService(store, rooms)
	owner := createTestUser(t, store, "alice")

	room, err := rooms.CreateRoom(owner.ID, "Open", nil, true)
	require.NoError(t, err)
	doc, err := docs.CreateDocument(room.ID, owner.ID, "Notes")
	require.NoError(t, err)

	require.NoError(t, docs.PersistContent(doc.ID, "durable"))

	loaded, err := docs.GetDocument(doc.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable", loaded.Content)

	assert.ErrorIs(t, docs.PersistContent("missing", "x"), ErrNotFound)
}
