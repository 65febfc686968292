package ws

import (
	"encoding/json"
	"time"

	"chat_backend/internal/domain"
	"chat_backend/pkg/logger"
)

// Sender доставляет исходящие сообщения. Доставка best-effort:
// закрытые и переполненные соединения пропускаются.
type Sender struct {
	conns *Connections
	rooms *RoomRegistry
	log   logger.Logger
	now   func() time.Time
}

func NewSender(conns *Connections, rooms *RoomRegistry, log logger.Logger) *Sender {
	return &Sender{
		conns: conns,
		rooms: rooms,
		log:   log,
		now:   time.Now,
	}
}

func (s *Sender) encode(msg domain.ChatMessage) ([]byte, bool) {
	if msg.Timestamp == "" {
		msg.Timestamp = s.now().Format(domain.TimestampLayout)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("Failed to encode message", "error", err, "type", msg.Type)
		return nil, false
	}
	return payload, true
}

func (s *Sender) deliver(conn Conn, payload []byte) {
	if err := conn.Send(payload); err != nil {
		s.log.Debug("Message dropped", "conn_id", conn.ID(), "error", err)
	}
}

func (s *Sender) SendTo(conn Conn, msg domain.ChatMessage) {
	if conn == nil {
		return
	}
	if payload, ok := s.encode(msg); ok {
		s.deliver(conn, payload)
	}
}

// BroadcastToRoom отправляет сообщение всем присутствующим комнаты
func (s *Sender) BroadcastToRoom(roomID string, msg domain.ChatMessage) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	payload, ok := s.encode(msg)
	if !ok {
		return
	}
	for _, o := range room.Occupants() {
		sess, ok := s.conns.FindByID(o.ConnID)
		if !ok {
			continue
		}
		s.deliver(sess.Conn, payload)
	}
}

func (s *Sender) roomList() (domain.ChatMessage, bool) {
	content, err := json.Marshal(s.rooms.Summaries())
	if err != nil {
		s.log.Error("Failed to encode room list", "error", err)
		return domain.ChatMessage{}, false
	}
	return domain.ChatMessage{
		Type:    domain.MessageTypeRoomList,
		Sender:  domain.SystemSender,
		Content: string(content),
	}, true
}

func (s *Sender) SendRoomList(conn Conn) {
	if msg, ok := s.roomList(); ok {
		s.SendTo(conn, msg)
	}
}

// BroadcastRoomListToAll рассылает снимок каталога после любого изменения набора комнат
func (s *Sender) BroadcastRoomListToAll() {
	msg, ok := s.roomList()
	if !ok {
		return
	}
	payload, ok := s.encode(msg)
	if !ok {
		return
	}
	for _, sess := range s.conns.All() {
		s.deliver(sess.Conn, payload)
	}
}

func (s *Sender) SendRoomUserList(roomID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	content, err := json.Marshal(room.Occupants())
	if err != nil {
		s.log.Error("Failed to encode user list", "error", err, "room_id", roomID)
		return
	}
	s.BroadcastToRoom(roomID, domain.ChatMessage{
		Type:    domain.MessageTypeUserList,
		Sender:  domain.SystemSender,
		Content: string(content),
		RoomID:  roomID,
	})
}

func (s *Sender) SendSystem(roomID, text string) {
	s.BroadcastToRoom(roomID, domain.ChatMessage{
		Type:    domain.MessageTypeSystem,
		Sender:  domain.SystemSender,
		Content: text,
		RoomID:  roomID,
	})
}

func (s *Sender) SendError(conn Conn, text string) {
	s.SendTo(conn, domain.ChatMessage{
		Type:    domain.MessageTypeError,
		Sender:  domain.SystemSender,
		Content: text,
	})
}

func (s *Sender) SendSuccess(conn Conn, text string) {
	s.SendTo(conn, domain.ChatMessage{
		Type:    domain.MessageTypeSuccess,
		Sender:  domain.SystemSender,
		Content: text,
	})
}

func (s *Sender) SendSuccessWith(conn Conn, msgType, text, roomID string) {
	s.SendTo(conn, domain.ChatMessage{
		Type:    msgType,
		Sender:  domain.SystemSender,
		Content: text,
		RoomID:  roomID,
	})
}
