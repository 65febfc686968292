package handler

import (
	"net/http"

	"chat_backend/internal/ws"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	hub *ws.Hub
}

func NewHealthHandler(hub *ws.Hub) *HealthHandler {
	return &HealthHandler{hub: hub}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "chat-backend",
		"connections": h.hub.Connections().Count(),
		"rooms":       len(h.hub.Rooms().All()),
	})
}
