package handler

import (
	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/internal/pkg/serverutils"
	internalWS "ai-notetaking-agent/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type AgentEventHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewAgentEventHandler(hub *internalWS.Hub, log logger.ILogger) *AgentEventHandler {
	return &AgentEventHandler{
		hub:    hub,
		logger: log,
	}
}

// ServeWs upgrades to the per-user agent event stream.
func (h *AgentEventHandler) ServeWs(c *fiber.Ctx) error {
	// Browsers cannot set headers on a websocket handshake, so the query param comes first.
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
	}

	userID, err := serverutils.ParseUserToken(tokenStr)
	if err != nil {
		h.logger.Warn("AgentEventHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("AgentEventHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
		internalWS.ServeWs(h.hub, conn, userID)
		h.logger.Info("AgentEventHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID})
	})(c)
}

func (h *AgentEventHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/agent/v1/ws", h.ServeWs)
}
