package repository

import (
	"context"
	"errors"

	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id int64) (*domain.Message, error)
	// Recent возвращает последние limit сообщений комнаты в хронологическом порядке
	Recent(ctx context.Context, roomID string, limit int) ([]*domain.Message, error)
	Page(ctx context.Context, roomID string, limit, offset int) ([]*domain.Message, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

const messageColumns = `id, room_id, user_id, sender, content, message_type, security_type,
		       file_url, file_name, file_size, expires_at, timestamp`

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (room_id, user_id, sender, content, message_type, security_type,
		                      file_url, file_name, file_size, expires_at, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		message.RoomID, message.UserID, message.Sender, message.Content, message.MessageType,
		message.SecurityType, message.FileURL, message.FileName, message.FileSize,
		message.ExpiresAt, message.Timestamp,
	).Scan(&message.ID)

	if err != nil {
		r.log.Error("Failed to create message", "error", err, "room_id", message.RoomID)
		return err
	}

	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	message, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to get message", "error", err, "message_id", id)
		return nil, err
	}
	return message, nil
}

func (r *messageRepository) Recent(ctx context.Context, roomID string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT * FROM (
			SELECT ` + messageColumns + `
			FROM messages
			WHERE room_id = $1 AND (expires_at IS NULL OR expires_at > NOW())
			ORDER BY timestamp DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY timestamp ASC, id ASC
	`
	return r.list(ctx, query, roomID, limit)
}

func (r *messageRepository) Page(ctx context.Context, roomID string, limit, offset int) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = $1 AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY timestamp DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, roomID, limit, offset)
}

func (r *messageRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to get messages", "error", err)
		return nil, err
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

func (r *messageRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM messages WHERE expires_at IS NOT NULL AND expires_at <= NOW()`

	tag, err := r.db.Exec(ctx, query)
	if err != nil {
		r.log.Error("Failed to delete expired messages", "error", err)
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	m := &domain.Message{}
	err := row.Scan(
		&m.ID, &m.RoomID, &m.UserID, &m.Sender, &m.Content, &m.MessageType, &m.SecurityType,
		&m.FileURL, &m.FileName, &m.FileSize, &m.ExpiresAt, &m.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}
