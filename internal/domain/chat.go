package domain

import (
	"time"
)

// Типы сообщений протокола WebSocket
const (
	MessageTypeJoinRoom            = "joinRoom"
	MessageTypeCreateRoom          = "createRoom"
	MessageTypeCreateDirectMessage = "createDirectMessage"
	MessageTypeDeleteRoom          = "deleteRoom"
	MessageTypeMessage             = "message"
	MessageTypeFile                = "file"
	MessageTypeGetHistory          = "getHistory"
	MessageTypeMarkAsRead          = "markAsRead"

	MessageTypeSystem               = "system"
	MessageTypeError                = "error"
	MessageTypeSuccess              = "success"
	MessageTypeRoomList             = "roomlist"
	MessageTypeUserList             = "userlist"
	MessageTypeReadUpdate           = "readUpdate"
	MessageTypeRoomDeleted          = "roomDeleted"
	MessageTypeDirectMessageCreated = "directMessageCreated"
)

// SystemSender - имя отправителя серверных уведомлений
const SystemSender = "System"

// TimestampLayout - формат серверной метки времени (HH:mm:ss)
const TimestampLayout = "15:04:05"

type SecurityType string

const (
	SecurityNormal   SecurityType = "NORMAL"
	SecuritySecret   SecurityType = "SECRET"
	SecurityVolatile SecurityType = "VOLATILE"
)

// ChatMessage - сообщение, передаваемое по WebSocket
type ChatMessage struct {
	Type         string       `json:"type"`
	Sender       string       `json:"sender,omitempty"`
	Content      string       `json:"content,omitempty"`
	RoomID       string       `json:"roomId,omitempty"`
	RoomName     string       `json:"roomName,omitempty"`
	Description  string       `json:"description,omitempty"`
	Creator      string       `json:"creator,omitempty"`
	FriendID     *int64       `json:"friendId,omitempty"`
	FriendName   string       `json:"friendName,omitempty"`
	UserID       *int64       `json:"userId,omitempty"`
	MessageID    int64        `json:"messageId,omitempty"`
	FileURL      string       `json:"fileUrl,omitempty"`
	FileName     string       `json:"fileName,omitempty"`
	FileSize     int64        `json:"fileSize,omitempty"`
	SecurityType SecurityType `json:"securityType,omitempty"`
	Timestamp    string       `json:"timestamp"`
}

// Message - сохраненное сообщение комнаты
type Message struct {
	ID           int64        `json:"id"`
	RoomID       string       `json:"room_id"`
	UserID       *int64       `json:"user_id,omitempty"`
	Sender       string       `json:"sender"`
	Content      string       `json:"content"`
	MessageType  string       `json:"message_type"`
	SecurityType SecurityType `json:"security_type"`
	FileURL      *string      `json:"file_url,omitempty"`
	FileName     *string      `json:"file_name,omitempty"`
	FileSize     *int64       `json:"file_size,omitempty"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// ReadReceipt - отметка о прочтении сообщения пользователем
type ReadReceipt struct {
	ID        int64     `json:"id"`
	MessageID int64     `json:"message_id"`
	UserID    int64     `json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}

// ToWire переводит сохраненное сообщение в формат протокола
func (m *Message) ToWire() ChatMessage {
	out := ChatMessage{
		Type:         m.MessageType,
		Sender:       m.Sender,
		Content:      m.Content,
		RoomID:       m.RoomID,
		MessageID:    m.ID,
		SecurityType: m.SecurityType,
		Timestamp:    m.Timestamp.Format(TimestampLayout),
	}
	if m.FileURL != nil {
		out.FileURL = *m.FileURL
	}
	if m.FileName != nil {
		out.FileName = *m.FileName
	}
	if m.FileSize != nil {
		out.FileSize = *m.FileSize
	}
	return out
}
