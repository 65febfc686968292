package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      VARCHAR(50)  NOT NULL UNIQUE,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash TEXT         NOT NULL,
		is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
		last_login_at TIMESTAMPTZ,
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id            BIGSERIAL PRIMARY KEY,
		user_id       BIGINT,
		sender        VARCHAR(100) NOT NULL,
		content       TEXT         NOT NULL DEFAULT '',
		room_id       VARCHAR(100) NOT NULL,
		message_type  VARCHAR(20)  NOT NULL DEFAULT 'message',
		security_type VARCHAR(20)  NOT NULL DEFAULT 'NORMAL',
		file_url      TEXT,
		file_name     TEXT,
		file_size     BIGINT,
		expires_at    TIMESTAMPTZ,
		timestamp     TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_room_time ON messages (room_id, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS message_reads (
		id         BIGSERIAL PRIMARY KEY,
		message_id BIGINT      NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id    BIGINT      NOT NULL,
		read_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (message_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS group_rooms (
		id                  VARCHAR(64)  PRIMARY KEY,
		name                VARCHAR(100) NOT NULL,
		description         TEXT,
		created_by          BIGINT       NOT NULL,
		max_members         INT          NOT NULL DEFAULT 100,
		current_members     INT          NOT NULL DEFAULT 0,
		is_active           BOOLEAN      NOT NULL DEFAULT TRUE,
		last_message        TEXT,
		last_message_sender VARCHAR(100),
		last_message_at     TIMESTAMPTZ,
		created_at          TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS room_members (
		id           BIGSERIAL PRIMARY KEY,
		room_id      VARCHAR(64) NOT NULL REFERENCES group_rooms(id) ON DELETE CASCADE,
		user_id      BIGINT      NOT NULL,
		role         VARCHAR(10) NOT NULL DEFAULT 'MEMBER',
		is_active    BOOLEAN     NOT NULL DEFAULT TRUE,
		unread_count INT         NOT NULL DEFAULT 0,
		is_muted     BOOLEAN     NOT NULL DEFAULT FALSE,
		muted_until  TIMESTAMPTZ,
		joined_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_read_at TIMESTAMPTZ,
		left_at      TIMESTAMPTZ,
		UNIQUE (room_id, user_id)
	)`,
	`ALTER TABLE room_members ADD COLUMN IF NOT EXISTS left_at TIMESTAMPTZ`,
	`CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members (user_id) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id            BIGSERIAL PRIMARY KEY,
		event_time    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		actor_user_id BIGINT,
		room_id       VARCHAR(100) NOT NULL,
		event_type    VARCHAR(40)  NOT NULL,
		payload       JSONB        NOT NULL DEFAULT '{}'
	)`,
}

// Migrate создает таблицы, если их еще нет
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i, err)
		}
	}
	return nil
}
