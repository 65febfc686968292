package service

import (
	"chat_backend/internal/cache"
	"chat_backend/internal/config"
	"chat_backend/internal/repository"
	"chat_backend/pkg/logger"
)

type Services struct {
	Auth      AuthService
	Message   MessageService
	Receipt   ReceiptService
	GroupRoom GroupRoomService
	RateLimit RateLimitService
	Audit     AuditService
}

func NewServices(repos *repository.Repositories, c cache.Cache, cfg *config.Config, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)

	return &Services{
		Auth:      NewAuthService(repos.User, cfg.JWT, log),
		Message:   NewMessageService(repos.Message, cfg.Chat, log),
		Receipt:   NewReceiptService(repos.Receipt, log),
		GroupRoom: NewGroupRoomService(repos.GroupRoom, repos.User, repos.Message, c, audit, log),
		RateLimit: NewRateLimitService(repos.RateLimit, cfg.Chat, log),
		Audit:     audit,
	}
}
