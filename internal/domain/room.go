package domain

import (
	"time"
)

type RoomKind string

const (
	RoomKindGroup  RoomKind = "GROUP"
	RoomKindDirect RoomKind = "DIRECT"
)

// RoomSummary - элемент списка комнат, отправляемого клиентам
type RoomSummary struct {
	RoomID          string   `json:"roomId"`
	RoomName        string   `json:"roomName"`
	RoomType        RoomKind `json:"roomType"`
	UserCount       int      `json:"userCount"`
	Creator         string   `json:"creator"`
	Description     string   `json:"description"`
	IsDirectMessage bool     `json:"isDirectMessage"`
}

// Occupant - пользователь, находящийся в живой комнате через конкретное соединение
type Occupant struct {
	ConnID   string `json:"sessionId"`
	UserID   *int64 `json:"userId,omitempty"`
	Username string `json:"username"`
}

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

const DefaultMaxMembers = 100

// GroupRoom - постоянная групповая комната
type GroupRoom struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Description       *string    `json:"description,omitempty"`
	CreatedBy         int64      `json:"created_by"`
	MaxMembers        int        `json:"max_members"`
	CurrentMembers    int        `json:"current_members"`
	IsActive          bool       `json:"is_active"`
	LastMessage       *string    `json:"last_message,omitempty"`
	LastMessageSender *string    `json:"last_message_sender,omitempty"`
	LastMessageAt     *time.Time `json:"last_message_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// RoomMember - членство пользователя в групповой комнате
type RoomMember struct {
	ID          int64      `json:"id"`
	RoomID      string     `json:"room_id"`
	UserID      int64      `json:"user_id"`
	Username    string     `json:"username"`
	Role        MemberRole `json:"role"`
	IsActive    bool       `json:"is_active"`
	UnreadCount int        `json:"unread_count"`
	IsMuted     bool       `json:"is_muted"`
	MutedUntil  *time.Time `json:"muted_until,omitempty"`
	JoinedAt    time.Time  `json:"joined_at"`
	LastReadAt  *time.Time `json:"last_read_at,omitempty"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
}

// CanManage - может ли участник менять настройки комнаты и удалять участников
func (m *RoomMember) CanManage() bool {
	return m.Role == MemberRoleOwner || m.Role == MemberRoleAdmin
}

// MutedAt сообщает, действует ли ограничение на момент now.
// Бессрочный мьют задается IsMuted без MutedUntil.
func (m *RoomMember) MutedAt(now time.Time) bool {
	if !m.IsMuted {
		return false
	}
	return m.MutedUntil == nil || now.Before(*m.MutedUntil)
}
