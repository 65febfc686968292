package ws

import (
	"context"
	"fmt"
	"strings"

	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

// ContentHandler обрабатывает сообщения, историю и отметки о прочтении
type ContentHandler struct {
	index    *RoomIndex
	sender   *Sender
	store    MessageStore
	receipts ReceiptTracker
	log      logger.Logger
}

func NewContentHandler(index *RoomIndex, sender *Sender, store MessageStore, receipts ReceiptTracker, log logger.Logger) *ContentHandler {
	return &ContentHandler{
		index:    index,
		sender:   sender,
		store:    store,
		receipts: receipts,
		log:      log,
	}
}

func (h *ContentHandler) PostText(ctx context.Context, s *Session, msg *domain.ChatMessage) error {
	msg.Type = domain.MessageTypeMessage
	msg.SecurityType = domain.SecurityNormal
	return h.post(ctx, s, msg)
}

func (h *ContentHandler) PostFile(ctx context.Context, s *Session, msg *domain.ChatMessage) error {
	return h.post(ctx, s, msg)
}

func (h *ContentHandler) post(ctx context.Context, s *Session, msg *domain.ChatMessage) error {
	roomID, ok := h.index.Get(s.Conn.ID())
	if !ok {
		return apperrors.ErrNoActiveRoom
	}
	msg.RoomID = roomID
	msg.Sender = s.Identity.Username

	saved, err := h.store.Save(ctx, msg, s.Identity.UserID)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	msg.Timestamp = saved.Timestamp.Format(domain.TimestampLayout)
	h.sender.BroadcastToRoom(roomID, *msg)
	return nil
}

// History отправляет недавние сообщения только запросившему, по одному в кадре
func (h *ContentHandler) History(ctx context.Context, s *Session, msg *domain.ChatMessage) error {
	roomID := strings.TrimSpace(msg.RoomID)
	if roomID == "" {
		return apperrors.ErrRoomIDRequired
	}

	messages, err := h.store.Recent(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	for _, m := range messages {
		wire := m.ToWire()
		wire.RoomID = roomID
		h.sender.SendTo(s.Conn, wire)
	}

	// отметка о прочтении только по явному userId в запросе
	if msg.UserID == nil {
		return nil
	}
	if userID := readerID(s, msg); userID != nil {
		if _, err := h.receipts.BatchMarkRoomRead(ctx, roomID, *userID, s.Identity.Username); err != nil {
			h.log.Warn("Failed to mark history as read", "error", err, "room_id", roomID)
		}
	}
	return nil
}

func (h *ContentHandler) MarkAsRead(ctx context.Context, s *Session, msg *domain.ChatMessage) error {
	roomID := strings.TrimSpace(msg.RoomID)
	if roomID == "" {
		return apperrors.ErrRoomIDRequired
	}
	userID := readerID(s, msg)
	if userID == nil {
		return apperrors.ErrUserIDRequired
	}

	if _, err := h.receipts.BatchMarkRoomRead(ctx, roomID, *userID, s.Identity.Username); err != nil {
		return fmt.Errorf("mark room read: %w", err)
	}
	h.sender.BroadcastToRoom(roomID, domain.ChatMessage{
		Type:    domain.MessageTypeReadUpdate,
		Sender:  domain.SystemSender,
		Content: fmt.Sprintf("%s read the messages", s.Identity.Username),
		RoomID:  roomID,
	})
	return nil
}

// readerID: аутентифицированная личность важнее поля сообщения
func readerID(s *Session, msg *domain.ChatMessage) *int64 {
	if s.Identity.UserID != nil {
		return s.Identity.UserID
	}
	return msg.UserID
}
