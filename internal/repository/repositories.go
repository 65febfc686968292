package repository

import (
	"chat_backend/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Repositories struct {
	User      UserRepository
	Message   MessageRepository
	Receipt   ReceiptRepository
	GroupRoom GroupRoomRepository
	Audit     AuditRepository
	RateLimit RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		User:      NewUserRepository(db, log),
		Message:   NewMessageRepository(db, log),
		Receipt:   NewReceiptRepository(db, log),
		GroupRoom: NewGroupRoomRepository(db, log),
		Audit:     NewAuditRepository(db, log),
		RateLimit: NewRateLimitRepository(redis, log),
	}
}
