package websocket

import (
	"context"
	"os"
	"time"

	"doc-qa-be/internal/dto"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/pkg/serverutils"
	"doc-qa-be/internal/service"
	"doc-qa-be/pkg/rag/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const writeWait = 10 * time.Second

// StreamHandler upgrades a question into a websocket answer stream. The
// client opens one connection per turn, sends a single ask payload, and
// receives status, citation, token and done frames until the socket closes.
type StreamHandler struct {
	chatService service.IChatService
	logger      logger.ILogger
}

func NewStreamHandler(chatService service.IChatService, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		chatService: chatService,
		logger:      log,
	}
}

func (h *StreamHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/chat/v1/stream", h.ServeStream)
}

// ServeStream authenticates the handshake and hands the connection to the
// per-turn pump.
func (h *StreamHandler) ServeStream(c *fiber.Ctx) error {
	// Browsers cannot set headers on websocket requests, so accept the
	// token as a query param first and fall back to the Authorization header.
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		h.logger.Warn("StreamHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	userIdStr, ok := claims["user_id"].(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing user_id"})
	}
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID format in token"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.serveTurn(conn, userId)
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// serveTurn reads one ask payload, streams the answer, and closes. The
// client dropping the socket mid-answer cancels the pipeline.
func (h *StreamHandler) serveTurn(conn *websocket.Conn, userId uuid.UUID) {
	defer conn.Close()

	var req dto.AskRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.logger.Warn("StreamHandler", "Failed to read ask payload", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		h.writeEvent(conn, stream.Event{Type: stream.EventError, Error: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := h.chatService.AskStream(ctx, userId, &req)
	if err != nil {
		h.writeEvent(conn, stream.Event{Type: stream.EventError, Error: err.Error()})
		return
	}

	// The only inbound traffic after dispatch is a close; one blocked read
	// is enough to detect it and cancel the turn.
	go func() {
		if _, _, err := conn.ReadMessage(); err != nil {
			cancel()
		}
	}()

	for ev := range events {
		if err := h.writeEvent(conn, ev); err != nil {
			cancel()
			for range events {
			}
			return
		}
	}
}

func (h *StreamHandler) writeEvent(conn *websocket.Conn, ev stream.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
