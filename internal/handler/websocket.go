package handler

import (
	"chat_backend/internal/ws"
	"chat_backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type WebSocketHandler struct {
	hub *ws.Hub
	log logger.Logger
}

func NewWebSocketHandler(hub *ws.Hub, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		log: log,
	}
}

// HandleChat GET /ws/chat. Токен читается из заголовка, подпротокола или ?token=
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
