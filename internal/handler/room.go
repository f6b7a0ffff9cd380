package handler

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"collab-backend/internal/model"
	"collab-backend/internal/service"
)

// RoomHandler 방/멤버십/참여 요청 REST API
type RoomHandler struct {
	rooms    *service.RoomService
	requests *service.RequestService
}

// NewRoomHandler RoomHandler 생성
func NewRoomHandler(rooms *service.RoomService, requests *service.RequestService) *RoomHandler {
	return &RoomHandler{rooms: rooms, requests: requests}
}

type createRoomRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	IsPublic    bool    `json:"is_public"`
}

// CreateRoom POST /api/rooms
func (h *RoomHandler) CreateRoom(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	var req createRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "room name is required",
		})
	}

	room, err := h.rooms.CreateRoom(userID, req.Name, req.Description, req.IsPublic)
	if err != nil {
		log.Printf("🚨 [Room] failed to create room: %v", err)
		return fail(c, err, "failed to create room")
	}

	log.Printf("✅ [Room] created %s (%s) by %s", room.Name, room.Code, userID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"room": room})
}

// GetMyRooms GET /api/rooms
func (h *RoomHandler) GetMyRooms(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	rooms, err := h.rooms.GetUserRooms(userID)
	if err != nil {
		log.Printf("🚨 [Room] failed to list rooms: %v", err)
		return fail(c, err, "failed to list rooms")
	}
	if rooms == nil {
		rooms = []model.Room{}
	}
	return c.JSON(fiber.Map{"rooms": rooms})
}

// GetRoom GET /api/rooms/:id
// 비공개 방의 비멤버에게는 202와 축약 뷰를 돌려 참여 요청 플로우로 안내한다.
func (h *RoomHandler) GetRoom(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	roomID := c.Params("id")

	view, err := h.rooms.GetRoomByID(roomID, userID)
	if err != nil {
		return fail(c, err, "room not found")
	}

	if view.ActionRequired {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"room":            view.Room,
			"action_required": true,
			"user_request":    view.UserRequest,
		})
	}
	return c.JSON(fiber.Map{"room": view.Room})
}

// JoinByCode POST /api/rooms/join
func (h *RoomHandler) JoinByCode(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "room code is required",
		})
	}

	result, err := h.rooms.JoinRoomByCode(req.Code, userID)
	if err != nil {
		return fail(c, err, joinErrorMessage(err))
	}

	if result.ActionRequired {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"room":            result.Room,
			"action_required": true,
		})
	}

	log.Printf("✅ [Room] user %s joined room %s", userID, result.Room.ID)
	return c.JSON(fiber.Map{"room": result.Room, "joined": true})
}

func joinErrorMessage(err error) string {
	switch err {
	case service.ErrNotFound:
		return "no room matches that code"
	case service.ErrConflict:
		return "already a member of this room"
	default:
		return "failed to join room"
	}
}

// LeaveRoom POST /api/rooms/:id/leave
func (h *RoomHandler) LeaveRoom(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	roomID := c.Params("id")

	if err := h.rooms.LeaveRoom(roomID, userID); err != nil {
		if err == service.ErrConflict {
			return fail(c, err, "room owner cannot leave; delete the room instead")
		}
		return fail(c, err, "failed to leave room")
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeleteRoom DELETE /api/rooms/:id
func (h *RoomHandler) DeleteRoom(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	roomID := c.Params("id")

	if err := h.rooms.DeleteRoom(roomID, userID); err != nil {
		return fail(c, err, "failed to delete room")
	}

	log.Printf("✅ [Room] deleted room %s by %s", roomID, userID)
	return c.JSON(fiber.Map{"success": true})
}

// KickMember DELETE /api/rooms/:id/members/:userId
func (h *RoomHandler) KickMember(c *fiber.Ctx) error {
	requesterID := c.Locals("userID").(string)
	roomID := c.Params("id")
	targetID := c.Params("userId")

	room, err := h.rooms.KickUser(roomID, targetID, requesterID)
	if err != nil {
		return fail(c, err, kickErrorMessage(err))
	}
	return c.JSON(fiber.Map{"room": room})
}

func kickErrorMessage(err error) string {
	switch err {
	case service.ErrForbidden:
		return "only the room owner can kick members"
	case service.ErrConflict:
		return "owner cannot be kicked"
	case service.ErrNotFound:
		return "member not found"
	default:
		return "failed to kick member"
	}
}

// UpdateMemberRole PATCH /api/rooms/:id/members/:userId
func (h *RoomHandler) UpdateMemberRole(c *fiber.Ctx) error {
	requesterID := c.Locals("userID").(string)
	roomID := c.Params("id")
	targetID := c.Params("userId")

	var req struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	role := model.MemberRole(req.Role)
	if !role.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "role must be OWNER, EDITOR or VIEWER",
		})
	}

	member, err := h.rooms.UpdateMemberRole(roomID, targetID, role, requesterID)
	if err != nil {
		return fail(c, err, "failed to update member role")
	}
	return c.JSON(fiber.Map{"member": member})
}

// CreateRequest POST /api/rooms/:id/requests
func (h *RoomHandler) CreateRequest(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	roomID := c.Params("id")

	var body struct {
		Message *string `json:"message"`
	}
	if err := c.BodyParser(&body); err != nil {
		// 메시지는 선택이므로 본문이 없어도 계속 진행
		body.Message = nil
	}

	req, err := h.requests.CreateRequest(roomID, userID, body.Message)
	if err != nil {
		if err == service.ErrConflict {
			return fail(c, err, "request already exists or you are already a member")
		}
		return fail(c, err, "failed to create request")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"request": req})
}

// GetRoomRequests GET /api/rooms/:id/requests
func (h *RoomHandler) GetRoomRequests(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	roomID := c.Params("id")

	requests, err := h.requests.GetRoomRequests(roomID, userID)
	if err != nil {
		return fail(c, err, "failed to list requests")
	}
	if requests == nil {
		requests = []model.RoomRequest{}
	}
	return c.JSON(fiber.Map{"requests": requests})
}

// GetMyRequests GET /api/requests
func (h *RoomHandler) GetMyRequests(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	requests, err := h.requests.GetUserRequests(userID)
	if err != nil {
		return fail(c, err, "failed to list requests")
	}
	if requests == nil {
		requests = []model.RoomRequest{}
	}
	return c.JSON(fiber.Map{"requests": requests})
}

// ApproveRequest POST /api/requests/:id/approve
func (h *RoomHandler) ApproveRequest(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	requestID := c.Params("id")

	req, err := h.requests.ApproveRequest(requestID, userID)
	if err != nil {
		return fail(c, err, requestErrorMessage(err))
	}
	return c.JSON(fiber.Map{"request": req})
}

// RejectRequest POST /api/requests/:id/reject
func (h *RoomHandler) RejectRequest(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	requestID := c.Params("id")

	req, err := h.requests.RejectRequest(requestID, userID)
	if err != nil {
		return fail(c, err, requestErrorMessage(err))
	}
	return c.JSON(fiber.Map{"request": req})
}

func requestErrorMessage(err error) string {
	switch err {
	case service.ErrForbidden:
		return "only the room owner can manage requests"
	case service.ErrConflict:
		return "request is not pending"
	case service.ErrNotFound:
		return "request not found"
	default:
		return "failed to update request"
	}
}
