package middleware

import (
	"context"
	"net/http"
	"strings"

	"chat_backend/internal/domain"
	"chat_backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// TokenValidator проверяет access token; реализуется service.AuthService
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*domain.Identity, error)
}

type AuthMiddleware struct {
	validator TokenValidator
	log       logger.Logger
}

func NewAuthMiddleware(validator TokenValidator, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		log:       log,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		identity, err := m.validator.ValidateToken(c.Request.Context(), parts[1])
		if err != nil || identity.UserID == nil {
			m.log.Debug("Rejected token", "error", err, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextUserID, *identity.UserID)
		c.Set(ContextUsername, identity.Username)
		c.Next()
	}
}
