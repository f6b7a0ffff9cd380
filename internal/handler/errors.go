package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"collab-backend/internal/service"
)

// statusFromError 서비스 에러를 HTTP 상태 코드로 변환
func statusFromError(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// fail 에러 응답 공통 포맷
func fail(c *fiber.Ctx, err error, message string) error {
	status := statusFromError(err)
	if status == fiber.StatusInternalServerError {
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": message})
}
