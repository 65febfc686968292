package domain

import (
	"time"
)

type AuditLog struct {
	ID          int64                  `json:"id"`
	EventTime   time.Time              `json:"event_time"`
	ActorUserID *int64                 `json:"actor_user_id,omitempty"`
	RoomID      string                 `json:"room_id"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
}

const (
	EventTypeRoomCreated          = "ROOM_CREATED"
	EventTypeRoomUpdated          = "ROOM_UPDATED"
	EventTypeRoomDeleted          = "ROOM_DELETED"
	EventTypeMemberAdded          = "MEMBER_ADDED"
	EventTypeMemberRemoved        = "MEMBER_REMOVED"
	EventTypeMemberLeft           = "MEMBER_LEFT"
	EventTypeMemberMuted          = "MEMBER_MUTED"
	EventTypeMemberPromoted       = "MEMBER_PROMOTED"
	EventTypeOwnershipTransferred = "OWNERSHIP_TRANSFERRED"
	EventTypeRoomOwnerless        = "ROOM_OWNERLESS"
)
