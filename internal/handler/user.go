package handler

import (
	"net/http"

	"chat_backend/internal/service"
	"chat_backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	authService service.AuthService
	log         logger.Logger
}

func NewUserHandler(authService service.AuthService, log logger.Logger) *UserHandler {
	return &UserHandler{
		authService: authService,
		log:         log,
	}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user)
}
