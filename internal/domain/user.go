package domain

import (
	"time"
)

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Identity - личность, привязанная к соединению при рукопожатии.
// Для гостей UserID пуст, Username сгенерирован.
type Identity struct {
	UserID   *int64 `json:"userId,omitempty"`
	Username string `json:"username"`
	Guest    bool   `json:"guest"`
}

// GuestToken - значение токена, означающее гостевой вход
const GuestToken = "guest"
