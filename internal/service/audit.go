package service

import (
	"context"
	"time"

	"chat_backend/internal/domain"
	"chat_backend/internal/repository"
	"chat_backend/pkg/logger"
)

type AuditService interface {
	LogEvent(ctx context.Context, actorUserID *int64, roomID string, eventType string, payload map[string]interface{}) error
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actorUserID *int64, roomID string, eventType string, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		EventTime:   time.Now(),
		ActorUserID: actorUserID,
		RoomID:      roomID,
		EventType:   eventType,
		Payload:     payload,
	}

	return s.auditRepo.CreateLog(ctx, auditLog)
}
