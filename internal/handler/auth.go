package handler

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"collab-backend/internal/auth"
	"collab-backend/internal/config"
	"collab-backend/internal/model"
	"collab-backend/internal/repository"
)

// AuthHandler 회원가입/로그인/토큰 갱신
type AuthHandler struct {
	store *repository.Store
	jwt   *auth.JWTManager
	cfg   *config.Config
}

// NewAuthHandler AuthHandler 생성
func NewAuthHandler(store *repository.Store, jwtManager *auth.JWTManager, cfg *config.Config) *AuthHandler {
	return &AuthHandler{store: store, jwt: jwtManager, cfg: cfg}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register 회원가입
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username, email and password (8+ chars) are required",
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("🚨 [Auth] failed to hash password: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to process registration",
		})
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := h.store.Users.CreateUser(user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "username or email already in use",
			})
		}
		log.Printf("🚨 [Auth] failed to create user: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create user",
		})
	}

	log.Printf("✅ [Auth] user registered: %s", user.Username)
	return h.issueTokens(c, user, fiber.StatusCreated)
}

// Login 로그인
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	user, err := h.store.Users.GetUserByEmail(strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid email or password",
		})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid email or password",
		})
	}

	return h.issueTokens(c, user, fiber.StatusOK)
}

// Refresh 리프레시 토큰으로 액세스 토큰 재발급
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	refreshToken := c.Cookies("refresh_token")
	if refreshToken == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.BodyParser(&body); err == nil {
			refreshToken = body.RefreshToken
		}
	}
	if refreshToken == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "missing refresh token",
		})
	}

	userID, err := h.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid refresh token",
		})
	}

	user, err := h.store.Users.GetUserByID(userID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "user not found",
		})
	}

	return h.issueTokens(c, user, fiber.StatusOK)
}

// Logout 쿠키 만료
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	expired := time.Now().Add(-time.Hour)
	c.Cookie(&fiber.Cookie{Name: "access_token", Value: "", Expires: expired, HTTPOnly: true})
	c.Cookie(&fiber.Cookie{Name: "refresh_token", Value: "", Expires: expired, HTTPOnly: true})
	return c.JSON(fiber.Map{"success": true})
}

// Profile 내 정보 조회
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	user, err := h.store.Users.GetUserByID(userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	}
	return c.JSON(fiber.Map{"user": user})
}

func (h *AuthHandler) issueTokens(c *fiber.Ctx, user *model.User, status int) error {
	accessToken, err := h.jwt.GenerateAccessToken(user.ID, user.Email, user.Username)
	if err != nil {
		log.Printf("🚨 [Auth] failed to generate access token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate token",
		})
	}
	refreshToken, err := h.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		log.Printf("🚨 [Auth] failed to generate refresh token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate token",
		})
	}

	secure := h.cfg.Auth.SecureCookie
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Expires:  time.Now().Add(h.cfg.Auth.AccessTokenExpiry),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
	})
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Expires:  time.Now().Add(h.cfg.Auth.RefreshTokenExpiry),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
	})

	return c.Status(status).JSON(fiber.Map{
		"user":          user,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}
