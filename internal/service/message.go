package service

import (
	"context"
	"strings"
	"time"

	"chat_backend/internal/config"
	"chat_backend/internal/domain"
	"chat_backend/internal/repository"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

type MessageService interface {
	// Save сохраняет сообщение и проставляет ему MessageID
	Save(ctx context.Context, msg *domain.ChatMessage, userID *int64) (*domain.Message, error)
	Recent(ctx context.Context, roomID string) ([]*domain.Message, error)
	// AllMessages возвращает страницу истории, новые сообщения первыми
	AllMessages(ctx context.Context, roomID string, page, size int) ([]*domain.Message, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type messageService struct {
	messageRepo repository.MessageRepository
	chatCfg     config.ChatConfig
	log         logger.Logger
	now         func() time.Time
}

func NewMessageService(messageRepo repository.MessageRepository, chatCfg config.ChatConfig, log logger.Logger) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		chatCfg:     chatCfg,
		log:         log,
		now:         time.Now,
	}
}

func (s *messageService) Save(ctx context.Context, msg *domain.ChatMessage, userID *int64) (*domain.Message, error) {
	if strings.TrimSpace(msg.RoomID) == "" {
		return nil, apperrors.ErrRoomIDRequired
	}

	now := s.now()
	message := &domain.Message{
		RoomID:       msg.RoomID,
		UserID:       userID,
		Sender:       msg.Sender,
		Content:      msg.Content,
		MessageType:  msg.Type,
		SecurityType: msg.SecurityType,
		Timestamp:    now,
	}
	if message.MessageType == "" {
		message.MessageType = domain.MessageTypeMessage
	}
	switch message.SecurityType {
	case domain.SecuritySecret, domain.SecurityVolatile:
	default:
		message.SecurityType = domain.SecurityNormal
	}
	if message.SecurityType == domain.SecurityVolatile {
		expiresAt := now.Add(s.chatCfg.VolatileTTL)
		message.ExpiresAt = &expiresAt
	}
	if msg.FileURL != "" {
		message.FileURL = &msg.FileURL
		message.FileName = &msg.FileName
		message.FileSize = &msg.FileSize
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	msg.MessageID = message.ID
	msg.SecurityType = message.SecurityType
	return message, nil
}

func (s *messageService) Recent(ctx context.Context, roomID string) ([]*domain.Message, error) {
	return s.messageRepo.Recent(ctx, roomID, s.chatCfg.HistoryLimit)
}

func (s *messageService) AllMessages(ctx context.Context, roomID string, page, size int) ([]*domain.Message, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = s.chatCfg.DefaultPageSize
	}
	if size > s.chatCfg.MaxPageSize {
		size = s.chatCfg.MaxPageSize
	}
	return s.messageRepo.Page(ctx, roomID, size, page*size)
}

func (s *messageService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.messageRepo.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("Expired messages purged", "count", n)
	}
	return n, nil
}
