package handler

import (
	"strconv"

	"chat_backend/internal/middleware"
	"chat_backend/internal/service"
	"chat_backend/internal/ws"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	User      *UserHandler
	Message   *MessageHandler
	GroupRoom *GroupRoomHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, hub *ws.Hub, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(hub),
		Auth:      NewAuthHandler(services.Auth, log),
		User:      NewUserHandler(services.Auth, log),
		Message:   NewMessageHandler(services.Message, services.Receipt, log),
		GroupRoom: NewGroupRoomHandler(services.GroupRoom, log),
		WebSocket: NewWebSocketHandler(hub, log),
	}
}

// currentUser возвращает пользователя, установленного AuthMiddleware
func currentUser(c *gin.Context) (int64, string, bool) {
	v, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return 0, "", false
	}
	userID, ok := v.(int64)
	if !ok {
		return 0, "", false
	}
	return userID, c.GetString(middleware.ContextUsername), true
}

func paramInt64(c *gin.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, apperrors.ErrBadRequest
	}
	return v, nil
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}
