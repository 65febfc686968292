package repository

import (
	"context"
	"errors"

	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReceiptRepository interface {
	// Upsert создает отметку или возвращает существующую без изменений
	Upsert(ctx context.Context, messageID, userID int64) (*domain.ReadReceipt, error)
	UnreadMessageIDs(ctx context.Context, roomID string, userID int64, username string) ([]int64, error)
	CreateBatch(ctx context.Context, messageIDs []int64, userID int64) error
	CountUnread(ctx context.Context, roomID string, userID int64, username string) (int64, error)
	CountReads(ctx context.Context, messageID int64) (int64, error)
	Exists(ctx context.Context, messageID, userID int64) (bool, error)
}

type receiptRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewReceiptRepository(db *pgxpool.Pool, log logger.Logger) ReceiptRepository {
	return &receiptRepository{db: db, log: log}
}

func (r *receiptRepository) Upsert(ctx context.Context, messageID, userID int64) (*domain.ReadReceipt, error) {
	// DO UPDATE без изменения read_at нужен, чтобы RETURNING вернул существующую строку
	query := `
		INSERT INTO message_reads (message_id, user_id, read_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (message_id, user_id) DO UPDATE SET message_id = EXCLUDED.message_id
		RETURNING id, message_id, user_id, read_at
	`

	receipt := &domain.ReadReceipt{}
	err := r.db.QueryRow(ctx, query, messageID, userID).Scan(
		&receipt.ID, &receipt.MessageID, &receipt.UserID, &receipt.ReadAt,
	)
	if err != nil {
		// 23503 = foreign_key_violation: сообщения нет
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to upsert read receipt", "error", err, "message_id", messageID, "user_id", userID)
		return nil, err
	}
	return receipt, nil
}

func (r *receiptRepository) UnreadMessageIDs(ctx context.Context, roomID string, userID int64, username string) ([]int64, error) {
	query := `
		SELECT m.id
		FROM messages m
		WHERE m.room_id = $1 AND m.sender <> $3
		  AND NOT EXISTS (
			SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = $2
		  )
		ORDER BY m.id
	`

	rows, err := r.db.Query(ctx, query, roomID, userID, username)
	if err != nil {
		r.log.Error("Failed to get unread messages", "error", err, "room_id", roomID)
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *receiptRepository) CreateBatch(ctx context.Context, messageIDs []int64, userID int64) error {
	query := `
		INSERT INTO message_reads (message_id, user_id, read_at)
		SELECT id, $2, NOW() FROM unnest($1::bigint[]) AS id
		ON CONFLICT (message_id, user_id) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, messageIDs, userID); err != nil {
		r.log.Error("Failed to create read receipts", "error", err, "user_id", userID, "count", len(messageIDs))
		return err
	}
	return nil
}

func (r *receiptRepository) CountUnread(ctx context.Context, roomID string, userID int64, username string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		WHERE m.room_id = $1 AND m.sender <> $3
		  AND NOT EXISTS (
			SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = $2
		  )
	`

	var count int64
	if err := r.db.QueryRow(ctx, query, roomID, userID, username).Scan(&count); err != nil {
		r.log.Error("Failed to count unread messages", "error", err, "room_id", roomID)
		return 0, err
	}
	return count, nil
}

func (r *receiptRepository) CountReads(ctx context.Context, messageID int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM message_reads WHERE message_id = $1`, messageID).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count reads", "error", err, "message_id", messageID)
		return 0, err
	}
	return count, nil
}

func (r *receiptRepository) Exists(ctx context.Context, messageID, userID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM message_reads WHERE message_id = $1 AND user_id = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, messageID, userID).Scan(&exists); err != nil {
		r.log.Error("Failed to check read receipt", "error", err, "message_id", messageID)
		return false, err
	}
	return exists, nil
}
