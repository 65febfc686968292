package ws

import (
	"context"
	"encoding/json"

	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

type handlerFunc func(ctx context.Context, s *Session, msg *domain.ChatMessage) error

// Dispatcher разбирает входящий кадр и передает его обработчику по типу
type Dispatcher struct {
	limiter  RateLimiter
	sender   *Sender
	routes   map[string]handlerFunc
	fallback handlerFunc
	log      logger.Logger
}

func NewDispatcher(limiter RateLimiter, rooms *RoomHandler, content *ContentHandler, sender *Sender, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		limiter: limiter,
		sender:  sender,
		routes: map[string]handlerFunc{
			domain.MessageTypeJoinRoom:            rooms.Join,
			domain.MessageTypeCreateRoom:          rooms.CreateRoom,
			domain.MessageTypeCreateDirectMessage: rooms.CreateDirectMessage,
			domain.MessageTypeDeleteRoom:          rooms.DeleteRoom,
			domain.MessageTypeMessage:             content.PostText,
			domain.MessageTypeFile:                content.PostFile,
			domain.MessageTypeGetHistory:          content.History,
			domain.MessageTypeMarkAsRead:          content.MarkAsRead,
		},
		fallback: content.PostText,
		log:      log,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, raw []byte) {
	if !d.allowed(ctx, s) {
		d.sender.SendError(s.Conn, apperrors.UserMessage(apperrors.ErrRateLimited))
		return
	}

	var msg domain.ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.log.Warn("Malformed message dropped", "conn_id", s.Conn.ID(), "error", err)
		return
	}
	// время ставит только сервер
	msg.Timestamp = ""

	handle, ok := d.routes[msg.Type]
	if !ok {
		handle = d.fallback
	}
	if err := handle(ctx, s, &msg); err != nil {
		d.fail(s, msg.Type, err)
	}
}

// allowed пропускает сообщение, если хранилище лимитов недоступно
func (d *Dispatcher) allowed(ctx context.Context, s *Session) bool {
	ok, err := d.limiter.IsMessageAllowed(ctx, s.Conn.ID())
	if err != nil {
		d.log.Warn("Rate limiter unavailable", "conn_id", s.Conn.ID(), "error", err)
		return true
	}
	if !ok {
		d.log.Warn("Rate limit exceeded", "conn_id", s.Conn.ID())
	}
	return ok
}

func (d *Dispatcher) fail(s *Session, msgType string, err error) {
	if apperrors.KindOf(err) == apperrors.KindInternal {
		d.log.Error("Message handling failed", "conn_id", s.Conn.ID(), "type", msgType, "error", err)
	} else {
		d.log.Debug("Message rejected", "conn_id", s.Conn.ID(), "type", msgType, "error", err)
	}
	d.sender.SendError(s.Conn, apperrors.UserMessage(err))
}
