package middleware

import (
	"chat_backend/pkg/errors"
	"chat_backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler превращает ошибку, добавленную через c.Error, в JSON-ответ.
// Текст внутренних ошибок клиенту не показывается.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		statusCode := errors.HTTPStatusFromError(err)

		message := err.Error()
		if errors.KindOf(err) == errors.KindInternal {
			log.Error("Request failed", "error", err, "method", c.Request.Method, "path", c.Request.URL.Path)
			message = errors.UserMessage(err)
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}
