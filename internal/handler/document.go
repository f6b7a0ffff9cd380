package handler

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"collab-backend/internal/model"
	"collab-backend/internal/service"
)

// DocumentHandler 문서 REST API
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler DocumentHandler 생성
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// CreateDocument POST /api/rooms/:id/documents
func (h *DocumentHandler) CreateDocument(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	roomID := c.Params("id")

	var req struct {
		Title string `json:"title"`
	}
	if err := c.BodyParser(&req); err != nil || req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "document title is required",
		})
	}

	doc, err := h.documents.CreateDocument(roomID, userID, req.Title)
	if err != nil {
		return fail(c, err, "failed to create document")
	}

	log.Printf("✅ [Document] created %s in room %s", doc.ID, roomID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"document": doc})
}

// GetRoomDocuments GET /api/rooms/:id/documents
func (h *DocumentHandler) GetRoomDocuments(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	roomID := c.Params("id")

	docs, err := h.documents.GetRoomDocuments(roomID, userID)
	if err != nil {
		return fail(c, err, "failed to list documents")
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return c.JSON(fiber.Map{"documents": docs})
}

// GetDocument GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	documentID := c.Params("id")

	doc, err := h.documents.GetDocument(documentID, userID)
	if err != nil {
		return fail(c, err, "document not found")
	}
	return c.JSON(fiber.Map{"document": doc})
}

// UpdateDocument PATCH /api/documents/:id
// content/title 중 온 필드만 갱신한다.
func (h *DocumentHandler) UpdateDocument(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	documentID := c.Params("id")

	var req struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Title == nil && req.Content == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "nothing to update",
		})
	}

	var doc *model.Document
	var err error
	if req.Content != nil {
		doc, err = h.documents.UpdateContent(documentID, userID, *req.Content)
		if err != nil {
			return fail(c, err, "failed to update document")
		}
	}
	if req.Title != nil {
		doc, err = h.documents.UpdateTitle(documentID, userID, *req.Title)
		if err != nil {
			return fail(c, err, "failed to update document")
		}
	}
	return c.JSON(fiber.Map{"document": doc})
}

// DeleteDocument DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	documentID := c.Params("id")

	if err := h.documents.DeleteDocument(documentID, userID); err != nil {
		return fail(c, err, "failed to delete document")
	}
	return c.JSON(fiber.Map{"success": true})
}
