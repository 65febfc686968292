package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GroupRoomRepository interface {
	// Create сохраняет комнату и членство владельца в одной транзакции
	Create(ctx context.Context, room *domain.GroupRoom, owner *domain.RoomMember) error
	GetByID(ctx context.Context, roomID string) (*domain.GroupRoom, error)
	Update(ctx context.Context, room *domain.GroupRoom) error
	// Deactivate отключает комнату и все членства, возвращает затронутых пользователей
	Deactivate(ctx context.Context, roomID string) ([]int64, error)
	Search(ctx context.Context, query string, limit int) ([]*domain.GroupRoom, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.GroupRoom, error)
	RecordLastMessage(ctx context.Context, roomID, preview, sender string, at time.Time) error

	GetMember(ctx context.Context, roomID string, userID int64) (*domain.RoomMember, error)
	ListMembers(ctx context.Context, roomID string) ([]*domain.RoomMember, error)
	// AddMember занимает место в комнате; ErrRoomFull при исчерпании лимита
	AddMember(ctx context.Context, member *domain.RoomMember) error
	DeactivateMember(ctx context.Context, roomID string, userID int64) error
	UpdateMember(ctx context.Context, member *domain.RoomMember) error
	IncrementUnread(ctx context.Context, roomID string, exceptUserID int64) error
	ResetUnread(ctx context.Context, roomID string, userID int64) error
}

type groupRoomRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewGroupRoomRepository(db *pgxpool.Pool, log logger.Logger) GroupRoomRepository {
	return &groupRoomRepository{db: db, log: log}
}

const memberColumns = `m.id, m.room_id, m.user_id, u.username, m.role, m.is_active, m.unread_count,
		       m.is_muted, m.muted_until, m.joined_at, m.last_read_at, m.left_at`

func (r *groupRoomRepository) Create(ctx context.Context, room *domain.GroupRoom, owner *domain.RoomMember) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO group_rooms (id, name, description, created_by, max_members, current_members, is_active)
			VALUES ($1, $2, $3, $4, $5, 1, TRUE)
			RETURNING current_members, created_at, updated_at
		`
		if err := tx.QueryRow(ctx, query,
			room.ID, room.Name, room.Description, room.CreatedBy, room.MaxMembers,
		).Scan(&room.CurrentMembers, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return err
		}

		memberQuery := `
			INSERT INTO room_members (room_id, user_id, role, is_active)
			VALUES ($1, $2, $3, TRUE)
			RETURNING id, joined_at
		`
		return tx.QueryRow(ctx, memberQuery, room.ID, owner.UserID, owner.Role).Scan(&owner.ID, &owner.JoinedAt)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrRoomAlreadyExists
		}
		r.log.Error("Failed to create group room", "error", err, "room_id", room.ID)
		return err
	}

	room.IsActive = true
	owner.IsActive = true
	return nil
}

func (r *groupRoomRepository) GetByID(ctx context.Context, roomID string) (*domain.GroupRoom, error) {
	query := `SELECT ` + groupRoomColumns + ` FROM group_rooms WHERE id = $1 AND is_active`

	room, err := scanGroupRoom(r.db.QueryRow(ctx, query, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to get group room", "error", err, "room_id", roomID)
		return nil, err
	}
	return room, nil
}

func (r *groupRoomRepository) Update(ctx context.Context, room *domain.GroupRoom) error {
	query := `
		UPDATE group_rooms
		SET name = $2, description = $3, max_members = $4, updated_at = NOW()
		WHERE id = $1 AND is_active
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query, room.ID, room.Name, room.Description, room.MaxMembers).Scan(&room.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to update group room", "error", err, "room_id", room.ID)
		return err
	}
	return nil
}

func (r *groupRoomRepository) Deactivate(ctx context.Context, roomID string) ([]int64, error) {
	var userIDs []int64
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE group_rooms SET is_active = FALSE, current_members = 0, updated_at = NOW()
			WHERE id = $1 AND is_active
		`, roomID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrRoomNotFound
		}

		rows, err := tx.Query(ctx, `
			UPDATE room_members SET is_active = FALSE, left_at = NOW()
			WHERE room_id = $1 AND is_active
			RETURNING user_id
		`, roomID)
		if err != nil {
			return err
		}
		userIDs, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		return err
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrRoomNotFound) {
			r.log.Error("Failed to deactivate group room", "error", err, "room_id", roomID)
		}
		return nil, err
	}
	return userIDs, nil
}

func (r *groupRoomRepository) Search(ctx context.Context, query string, limit int) ([]*domain.GroupRoom, error) {
	sql := `
		SELECT ` + groupRoomColumns + `
		FROM group_rooms
		WHERE is_active AND name ILIKE '%' || $1 || '%'
		ORDER BY current_members DESC, created_at DESC
		LIMIT $2
	`
	return r.listRooms(ctx, sql, query, limit)
}

func (r *groupRoomRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.GroupRoom, error) {
	sql := `
		SELECT ` + prefixed("g.", groupRoomColumnList) + `
		FROM group_rooms g
		JOIN room_members m ON m.room_id = g.id
		WHERE m.user_id = $1 AND m.is_active AND g.is_active
		ORDER BY COALESCE(g.last_message_at, g.created_at) DESC
	`
	return r.listRooms(ctx, sql, userID)
}

func (r *groupRoomRepository) listRooms(ctx context.Context, query string, args ...any) ([]*domain.GroupRoom, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list group rooms", "error", err)
		return nil, err
	}
	defer rows.Close()

	rooms := make([]*domain.GroupRoom, 0)
	for rows.Next() {
		room, err := scanGroupRoom(rows)
		if err != nil {
			r.log.Error("Failed to scan group room", "error", err)
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (r *groupRoomRepository) RecordLastMessage(ctx context.Context, roomID, preview, sender string, at time.Time) error {
	query := `
		UPDATE group_rooms
		SET last_message = $2, last_message_sender = $3, last_message_at = $4, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, roomID, preview, sender, at); err != nil {
		r.log.Error("Failed to record last message", "error", err, "room_id", roomID)
		return err
	}
	return nil
}

func (r *groupRoomRepository) GetMember(ctx context.Context, roomID string, userID int64) (*domain.RoomMember, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM room_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = $1 AND m.user_id = $2
	`

	member, err := scanMember(r.db.QueryRow(ctx, query, roomID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMemberNotFound
		}
		r.log.Error("Failed to get room member", "error", err, "room_id", roomID, "user_id", userID)
		return nil, err
	}
	return member, nil
}

func (r *groupRoomRepository) ListMembers(ctx context.Context, roomID string) ([]*domain.RoomMember, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM room_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = $1 AND m.is_active
		ORDER BY m.joined_at, m.id
	`

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to list room members", "error", err, "room_id", roomID)
		return nil, err
	}
	defer rows.Close()

	members := make([]*domain.RoomMember, 0)
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (r *groupRoomRepository) AddMember(ctx context.Context, member *domain.RoomMember) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE group_rooms SET current_members = current_members + 1, updated_at = NOW()
			WHERE id = $1 AND is_active AND current_members < max_members
		`, member.RoomID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrRoomFull
		}

		// Повторное вступление реактивирует прежнюю строку с обнуленным состоянием
		query := `
			INSERT INTO room_members (room_id, user_id, role, is_active, joined_at)
			VALUES ($1, $2, $3, TRUE, NOW())
			ON CONFLICT (room_id, user_id) DO UPDATE
			SET role = EXCLUDED.role, is_active = TRUE, unread_count = 0,
			    is_muted = FALSE, muted_until = NULL, joined_at = NOW(), left_at = NULL
			RETURNING id, joined_at
		`
		return tx.QueryRow(ctx, query, member.RoomID, member.UserID, member.Role).Scan(&member.ID, &member.JoinedAt)
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrRoomFull) {
			r.log.Error("Failed to add room member", "error", err, "room_id", member.RoomID, "user_id", member.UserID)
		}
		return err
	}

	member.IsActive = true
	return nil
}

func (r *groupRoomRepository) DeactivateMember(ctx context.Context, roomID string, userID int64) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE room_members SET is_active = FALSE, left_at = NOW()
			WHERE room_id = $1 AND user_id = $2 AND is_active
		`, roomID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrMemberNotFound
		}

		_, err = tx.Exec(ctx, `
			UPDATE group_rooms SET current_members = GREATEST(current_members - 1, 0), updated_at = NOW()
			WHERE id = $1
		`, roomID)
		return err
	})
	if err != nil && !errors.Is(err, apperrors.ErrMemberNotFound) {
		r.log.Error("Failed to deactivate room member", "error", err, "room_id", roomID, "user_id", userID)
	}
	return err
}

func (r *groupRoomRepository) UpdateMember(ctx context.Context, member *domain.RoomMember) error {
	query := `
		UPDATE room_members
		SET role = $3, is_muted = $4, muted_until = $5
		WHERE room_id = $1 AND user_id = $2
	`

	tag, err := r.db.Exec(ctx, query, member.RoomID, member.UserID, member.Role, member.IsMuted, member.MutedUntil)
	if err != nil {
		r.log.Error("Failed to update room member", "error", err, "room_id", member.RoomID, "user_id", member.UserID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMemberNotFound
	}
	return nil
}

func (r *groupRoomRepository) IncrementUnread(ctx context.Context, roomID string, exceptUserID int64) error {
	query := `
		UPDATE room_members SET unread_count = unread_count + 1
		WHERE room_id = $1 AND user_id <> $2 AND is_active
	`
	if _, err := r.db.Exec(ctx, query, roomID, exceptUserID); err != nil {
		r.log.Error("Failed to increment unread counters", "error", err, "room_id", roomID)
		return err
	}
	return nil
}

func (r *groupRoomRepository) ResetUnread(ctx context.Context, roomID string, userID int64) error {
	query := `
		UPDATE room_members SET unread_count = 0, last_read_at = NOW()
		WHERE room_id = $1 AND user_id = $2
	`
	if _, err := r.db.Exec(ctx, query, roomID, userID); err != nil {
		r.log.Error("Failed to reset unread counter", "error", err, "room_id", roomID, "user_id", userID)
		return err
	}
	return nil
}

var groupRoomColumnList = []string{
	"id", "name", "description", "created_by", "max_members", "current_members", "is_active",
	"last_message", "last_message_sender", "last_message_at", "created_at", "updated_at",
}

var groupRoomColumns = prefixed("", groupRoomColumnList)

func prefixed(prefix string, columns []string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}

func scanGroupRoom(row pgx.Row) (*domain.GroupRoom, error) {
	g := &domain.GroupRoom{}
	err := row.Scan(
		&g.ID, &g.Name, &g.Description, &g.CreatedBy, &g.MaxMembers, &g.CurrentMembers, &g.IsActive,
		&g.LastMessage, &g.LastMessageSender, &g.LastMessageAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func scanMember(row pgx.Row) (*domain.RoomMember, error) {
	m := &domain.RoomMember{}
	err := row.Scan(
		&m.ID, &m.RoomID, &m.UserID, &m.Username, &m.Role, &m.IsActive, &m.UnreadCount,
		&m.IsMuted, &m.MutedUntil, &m.JoinedAt, &m.LastReadAt, &m.LeftAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}
