package service

import (
	"context"

	"chat_backend/internal/domain"
	"chat_backend/internal/repository"
	"chat_backend/pkg/logger"
)

type ReceiptService interface {
	MarkRead(ctx context.Context, messageID, userID int64) (*domain.ReadReceipt, error)
	// BatchMarkRoomRead отмечает прочитанными все чужие сообщения комнаты и возвращает их число
	BatchMarkRoomRead(ctx context.Context, roomID string, userID int64, username string) (int, error)
	UnreadCount(ctx context.Context, roomID string, userID int64, username string) (int64, error)
	ReadCount(ctx context.Context, messageID int64) (int64, error)
	IsRead(ctx context.Context, messageID, userID int64) (bool, error)
}

type receiptService struct {
	receiptRepo repository.ReceiptRepository
	log         logger.Logger
}

func NewReceiptService(receiptRepo repository.ReceiptRepository, log logger.Logger) ReceiptService {
	return &receiptService{
		receiptRepo: receiptRepo,
		log:         log,
	}
}

func (s *receiptService) MarkRead(ctx context.Context, messageID, userID int64) (*domain.ReadReceipt, error) {
	return s.receiptRepo.Upsert(ctx, messageID, userID)
}

func (s *receiptService) BatchMarkRoomRead(ctx context.Context, roomID string, userID int64, username string) (int, error) {
	ids, err := s.receiptRepo.UnreadMessageIDs(ctx, roomID, userID, username)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.receiptRepo.CreateBatch(ctx, ids, userID); err != nil {
		return 0, err
	}

	s.log.Debug("Messages marked as read", "room_id", roomID, "user_id", userID, "count", len(ids))
	return len(ids), nil
}

func (s *receiptService) UnreadCount(ctx context.Context, roomID string, userID int64, username string) (int64, error) {
	return s.receiptRepo.CountUnread(ctx, roomID, userID, username)
}

func (s *receiptService) ReadCount(ctx context.Context, messageID int64) (int64, error) {
	return s.receiptRepo.CountReads(ctx, messageID)
}

func (s *receiptService) IsRead(ctx context.Context, messageID, userID int64) (bool, error) {
	return s.receiptRepo.Exists(ctx, messageID, userID)
}
