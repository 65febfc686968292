package ws

import (
	"context"

	"chat_backend/internal/domain"
)

// Зависимости ядра от сервисного слоя. Реализуются пакетом service.

type MessageStore interface {
	Save(ctx context.Context, msg *domain.ChatMessage, userID *int64) (*domain.Message, error)
	Recent(ctx context.Context, roomID string) ([]*domain.Message, error)
}

type ReceiptTracker interface {
	BatchMarkRoomRead(ctx context.Context, roomID string, userID int64, username string) (int, error)
}

type RateLimiter interface {
	IsMessageAllowed(ctx context.Context, connID string) (bool, error)
	Release(ctx context.Context, connID string) error
}

type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (*domain.Identity, error)
}
