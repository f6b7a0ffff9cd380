package server

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"collab-backend/internal/auth"
	"collab-backend/internal/config"
	"collab-backend/internal/handler"
	"collab-backend/internal/presence"
	"collab-backend/internal/repository"
	"collab-backend/internal/service"
)

// Server Fiber 서버 래퍼
type Server struct {
	app             *fiber.App
	cfg             *config.Config
	authHandler     *handler.AuthHandler
	roomHandler     *handler.RoomHandler
	documentHandler *handler.DocumentHandler
	wsHandler       *handler.CollabWSHandler
	jwtManager      *auth.JWTManager
	presenceCache   *presence.Cache
}

// New 새 서버 인스턴스 생성
func New(cfg *config.Config, db *gorm.DB) *Server {
	app := fiber.New(fiber.Config{
		AppName:        "Collab Backend",
		ServerHeader:   "Fiber",
		StrictRouting:  false,
		CaseSensitive:  true,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		Prefork:        false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize: 16384,
		BodyLimit:      10 * 1024 * 1024,
	})

	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	store := repository.NewPostgresStore(db)

	// Redis presence 캐시 (선택적)
	var presenceCache *presence.Cache
	if cfg.Redis.Enabled {
		var err error
		presenceCache, err = presence.NewCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("⚠️ Redis presence cache unavailable: %v (continuing without cache)", err)
			presenceCache = nil
		}
	} else {
		log.Println("ℹ️ Redis presence cache disabled")
	}

	roomService := service.NewRoomService(store, presenceCache, cfg.Collab.RoomCodeAttempts)
	requestService := service.NewRequestService(store)
	documentService := service.NewDocumentService(store, roomService)
	canvasService := service.NewCanvasService(store, roomService)

	hub := handler.NewHub()
	wsHandler := handler.NewCollabWSHandler(
		hub,
		store,
		roomService,
		documentService,
		canvasService,
		presenceCache,
		cfg.Collab.DocumentDebounce,
		cfg.WebSocket.SendBufferSize,
	)

	return &Server{
		app:             app,
		cfg:             cfg,
		authHandler:     handler.NewAuthHandler(store, jwtManager, cfg),
		roomHandler:     handler.NewRoomHandler(roomService, requestService),
		documentHandler: handler.NewDocumentHandler(documentService),
		wsHandler:       wsHandler,
		jwtManager:      jwtManager,
		presenceCache:   presenceCache,
	}
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	// Rate Limiter (인증 엔드포인트 - Brute Force 방지)
	authLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	authRequired := auth.AuthMiddleware(s.jwtManager)

	// Auth 라우트 그룹
	authGroup := s.app.Group("/auth")
	authGroup.Post("/register", authLimiter, s.authHandler.Register)
	authGroup.Post("/login", authLimiter, s.authHandler.Login)
	authGroup.Post("/refresh", authLimiter, s.authHandler.Refresh)
	authGroup.Post("/logout", authRequired, s.authHandler.Logout)
	authGroup.Get("/me", authRequired, s.authHandler.Profile)

	// Room 라우트 그룹 (인증 필요)
	roomGroup := s.app.Group("/api/rooms", authRequired)
	roomGroup.Post("/", s.roomHandler.CreateRoom)
	roomGroup.Get("/", s.roomHandler.GetMyRooms)
	roomGroup.Post("/join", s.roomHandler.JoinByCode)
	roomGroup.Get("/:id", s.roomHandler.GetRoom)
	roomGroup.Delete("/:id", s.roomHandler.DeleteRoom)
	roomGroup.Post("/:id/leave", s.roomHandler.LeaveRoom)
	roomGroup.Delete("/:id/members/:userId", s.roomHandler.KickMember)
	roomGroup.Patch("/:id/members/:userId", s.roomHandler.UpdateMemberRole)

	// Request 라우트 (방 하위 + 본인용)
	roomGroup.Post("/:id/requests", s.roomHandler.CreateRequest)
	roomGroup.Get("/:id/requests", s.roomHandler.GetRoomRequests)

	requestGroup := s.app.Group("/api/requests", authRequired)
	requestGroup.Get("/", s.roomHandler.GetMyRequests)
	requestGroup.Post("/:id/approve", s.roomHandler.ApproveRequest)
	requestGroup.Post("/:id/reject", s.roomHandler.RejectRequest)

	// Document 라우트
	roomGroup.Post("/:id/documents", s.documentHandler.CreateDocument)
	roomGroup.Get("/:id/documents", s.documentHandler.GetRoomDocuments)

	documentGroup := s.app.Group("/api/documents", authRequired)
	documentGroup.Get("/:id", s.documentHandler.GetDocument)
	documentGroup.Patch("/:id", s.documentHandler.UpdateDocument)
	documentGroup.Delete("/:id", s.documentHandler.DeleteDocument)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// 실시간 협업 WebSocket 엔드포인트.
	// 핸드셰이크에서 토큰(쿼리 파라미터 또는 쿠키)을 검증한 뒤 업그레이드한다.
	s.app.Get("/ws/collab", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Query("token")
		if token == "" {
			token = c.Cookies("access_token")
		}
		if token == "" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		claims, err := s.jwtManager.ValidateAccessToken(token)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)
		return c.Next()
	}, websocket.New(s.wsHandler.HandleConnection, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start 서버 시작 (graceful shutdown 포함)
func (s *Server) Start() error {
	// 종료 시그널 처리
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Println("ℹ️ Shutting down server...")
		if s.presenceCache != nil {
			s.presenceCache.Close()
		}
		if err := s.app.Shutdown(); err != nil {
			log.Printf("🚨 Server shutdown error: %v", err)
		}
	}()

	log.Printf("✅ Server listening on %s", s.cfg.Server.Port)
	return s.app.Listen(s.cfg.Server.Port)
}
