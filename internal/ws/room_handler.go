package ws

import (
	"context"
	"fmt"
	"strings"

	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

// RoomHandler обрабатывает вход, выход, создание и удаление живых комнат
type RoomHandler struct {
	rooms  *RoomRegistry
	index  *RoomIndex
	conns  *Connections
	sender *Sender
	log    logger.Logger
}

func NewRoomHandler(rooms *RoomRegistry, index *RoomIndex, conns *Connections, sender *Sender, log logger.Logger) *RoomHandler {
	return &RoomHandler{
		rooms:  rooms,
		index:  index,
		conns:  conns,
		sender: sender,
		log:    log,
	}
}

func (h *RoomHandler) Join(_ context.Context, s *Session, msg *domain.ChatMessage) error {
	roomID := strings.TrimSpace(msg.RoomID)
	if roomID == "" {
		roomID = DefaultRoomID
	}
	if !h.rooms.Exists(roomID) {
		return apperrors.ErrRoomNotFound
	}
	return h.switchRoom(s, roomID)
}

func (h *RoomHandler) CreateRoom(_ context.Context, s *Session, msg *domain.ChatMessage) error {
	name := strings.TrimSpace(msg.RoomName)
	if name == "" {
		return apperrors.ErrRoomNameRequired
	}

	room, err := h.rooms.CreateUniqueGroupRoom(name, s.Identity.Username, msg.Description)
	if err != nil {
		return err
	}
	h.log.Info("Room created", "room_id", room.ID, "name", name, "creator", room.Creator)

	h.sender.BroadcastRoomListToAll()
	if err := h.switchRoom(s, room.ID); err != nil {
		return err
	}
	h.sender.SendSuccess(s.Conn, fmt.Sprintf("Room '%s' was created", name))
	return nil
}

func (h *RoomHandler) CreateDirectMessage(_ context.Context, s *Session, msg *domain.ChatMessage) error {
	userID := s.Identity.UserID
	if userID == nil {
		userID = msg.UserID
	}
	if userID == nil || msg.FriendID == nil {
		return apperrors.ErrUserIDRequired
	}

	roomID := DirectMessageRoomID(*userID, *msg.FriendID)
	name := fmt.Sprintf("DM: %s ↔ %s", s.Identity.Username, msg.FriendName)
	if _, created := h.rooms.GetOrCreateDirect(roomID, name); created {
		h.log.Info("Direct room created", "room_id", roomID)
	}

	h.sender.BroadcastRoomListToAll()
	if err := h.switchRoom(s, roomID); err != nil {
		return err
	}
	h.sender.SendSuccessWith(s.Conn, domain.MessageTypeDirectMessageCreated, "Direct chat opened", roomID)
	return nil
}

func (h *RoomHandler) DeleteRoom(_ context.Context, s *Session, msg *domain.ChatMessage) error {
	roomID := strings.TrimSpace(msg.RoomID)
	if roomID == "" {
		return apperrors.ErrRoomIDRequired
	}
	room, ok := h.rooms.Get(roomID)
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	if h.rooms.IsDefaultRoom(roomID) {
		return apperrors.ErrDefaultRoom
	}
	if room.Creator != s.Identity.Username {
		return apperrors.ErrNotRoomCreator
	}

	removed, ok := h.rooms.DeleteRoom(roomID)
	if !ok {
		return apperrors.ErrRoomNotFound
	}

	for _, o := range removed.Occupants() {
		sess, ok := h.conns.FindByID(o.ConnID)
		if !ok {
			continue
		}
		unlock := h.index.Lock(o.ConnID)
		if bound, ok := h.index.Get(o.ConnID); ok && bound == roomID {
			h.index.Delete(o.ConnID)
		}
		unlock()
		h.sender.SendSuccessWith(sess.Conn, domain.MessageTypeRoomDeleted, "The room was deleted. Back to the lobby.", roomID)
	}
	h.log.Info("Room deleted", "room_id", roomID, "by", s.Identity.Username)

	h.sender.BroadcastRoomListToAll()
	h.sender.SendSuccess(s.Conn, "Room deleted")
	return nil
}

// LeaveCurrentRoom выводит соединение из текущей комнаты, если оно в ней есть
func (h *RoomHandler) LeaveCurrentRoom(s *Session) {
	unlock := h.index.Lock(s.Conn.ID())
	defer unlock()
	h.leaveLocked(s)
}

// switchRoom: сначала выход, затем вход, под блокировкой соединения
func (h *RoomHandler) switchRoom(s *Session, roomID string) error {
	unlock := h.index.Lock(s.Conn.ID())
	defer unlock()

	h.leaveLocked(s)

	room, err := h.rooms.AddOccupant(roomID, s.occupant())
	if err != nil {
		return err
	}
	h.index.Set(s.Conn.ID(), roomID)

	h.sender.SendSystem(roomID, fmt.Sprintf("%s entered %s", s.Identity.Username, room.Name))
	h.sender.SendRoomUserList(roomID)
	return nil
}

func (h *RoomHandler) leaveLocked(s *Session) {
	connID := s.Conn.ID()
	roomID, ok := h.index.Get(connID)
	if !ok {
		return
	}
	h.index.Delete(connID)

	room, o, removed := h.rooms.RemoveOccupant(roomID, connID)
	if !removed {
		return
	}
	h.sender.SendSystem(roomID, fmt.Sprintf("%s left %s", o.Username, room.Name))
	h.sender.SendRoomUserList(roomID)
}
