package service

import (
	"context"
	"time"

	"chat_backend/internal/config"
	"chat_backend/internal/repository"
	"chat_backend/pkg/logger"
)

type RateLimitService interface {
	CheckLimit(ctx context.Context, key string, limit int, windowSeconds int) (bool, error)
	Increment(ctx context.Context, key string, windowSeconds int) (int64, error)
	// IsMessageAllowed учитывает сообщение соединения и сообщает, укладывается ли оно в лимит
	IsMessageAllowed(ctx context.Context, connID string) (bool, error)
	// Release освобождает состояние лимита закрытого соединения
	Release(ctx context.Context, connID string) error
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	chatCfg       config.ChatConfig
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, chatCfg config.ChatConfig, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		chatCfg:       chatCfg,
		log:           log,
	}
}

func (s *rateLimitService) CheckLimit(ctx context.Context, key string, limit int, windowSeconds int) (bool, error) {
	return s.rateLimitRepo.CheckLimit(ctx, key, limit, time.Duration(windowSeconds)*time.Second)
}

func (s *rateLimitService) Increment(ctx context.Context, key string, windowSeconds int) (int64, error) {
	return s.rateLimitRepo.Increment(ctx, key, time.Duration(windowSeconds)*time.Second)
}

func (s *rateLimitService) IsMessageAllowed(ctx context.Context, connID string) (bool, error) {
	count, err := s.rateLimitRepo.Increment(ctx, wsLimitKey(connID), s.chatCfg.RateLimitWindow)
	if err != nil {
		return false, err
	}
	return count <= int64(s.chatCfg.RateLimitMessages), nil
}

func (s *rateLimitService) Release(ctx context.Context, connID string) error {
	return s.rateLimitRepo.Reset(ctx, wsLimitKey(connID))
}

func wsLimitKey(connID string) string {
	return "ratelimit:ws:" + connID
}
