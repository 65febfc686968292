package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"chat_backend/internal/config"
	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const releaseTimeout = 5 * time.Second

// Hub связывает реестры, обработчики и транспорт
type Hub struct {
	conns      *Connections
	rooms      *RoomRegistry
	index      *RoomIndex
	sender     *Sender
	roomCtl    *RoomHandler
	dispatcher *Dispatcher
	limiter    RateLimiter
	auth       Authenticator
	upgrader   websocket.Upgrader
	cfg        config.ChatConfig
	log        logger.Logger

	wg sync.WaitGroup
}

func NewHub(store MessageStore, receipts ReceiptTracker, limiter RateLimiter, auth Authenticator, cfg config.ChatConfig, log logger.Logger) *Hub {
	cfg = withDefaults(cfg)

	index := NewRoomIndex()
	conns := NewConnections(index)
	rooms := NewRoomRegistry()
	sender := NewSender(conns, rooms, log)
	roomCtl := NewRoomHandler(rooms, index, conns, sender, log)
	content := NewContentHandler(index, sender, store, receipts, log)

	return &Hub{
		conns:      conns,
		rooms:      rooms,
		index:      index,
		sender:     sender,
		roomCtl:    roomCtl,
		dispatcher: NewDispatcher(limiter, roomCtl, content, sender, log),
		limiter:    limiter,
		auth:       auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{AccessTokenProtocol},
			CheckOrigin:     originChecker(cfg.AllowedOrigins, log),
		},
		cfg: cfg,
		log: log,
	}
}

func withDefaults(cfg config.ChatConfig) config.ChatConfig {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	return cfg
}

func (h *Hub) Rooms() *RoomRegistry { return h.rooms }

func (h *Hub) Connections() *Connections { return h.conns }

// Authenticate превращает токен рукопожатия в личность.
// Пустой токен и "guest" дают гостя без обращения к проверке.
func (h *Hub) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" || token == domain.GuestToken {
		return &domain.Identity{Username: "Guest-" + uuid.NewString()[:8], Guest: true}, nil
	}
	identity, err := h.auth.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// Connect регистрирует соединение и отправляет ему каталог комнат
func (h *Hub) Connect(conn Conn, identity domain.Identity) *Session {
	s := &Session{Conn: conn, Identity: identity}
	h.conns.Add(s)
	h.sender.SendRoomList(conn)
	h.log.Info("Client connected", "conn_id", conn.ID(), "username", identity.Username, "guest", identity.Guest)
	return s
}

// Disconnect выводит соединение из комнаты и освобождает его состояние
func (h *Hub) Disconnect(s *Session) {
	h.roomCtl.LeaveCurrentRoom(s)
	h.conns.Remove(s.Conn.ID())

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := h.limiter.Release(ctx, s.Conn.ID()); err != nil {
		h.log.Warn("Failed to release rate limit", "conn_id", s.Conn.ID(), "error", err)
	}
	h.log.Info("Client disconnected", "conn_id", s.Conn.ID(), "username", s.Identity.Username)
}

func (h *Hub) HandlePayload(ctx context.Context, s *Session, raw []byte) {
	h.dispatcher.Dispatch(ctx, s, raw)
}

// ServeWS выполняет рукопожатие и запускает обслуживание соединения.
// Неверный токен закрывает соединение с кодом 1008.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, authErr := h.Authenticate(r.Context(), ExtractToken(r))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	if authErr != nil {
		if apperrors.KindOf(authErr) != apperrors.KindAuth {
			h.log.Error("Handshake authentication failed", "error", authErr)
		}
		rejectPolicy(conn, "Invalid or expired token", h.cfg.WriteWait)
		return
	}

	client := NewClient(uuid.NewString(), conn, h.cfg, h.log)
	s := h.Connect(client, *identity)

	h.wg.Add(1)
	go client.writePump()
	go func() {
		defer h.wg.Done()
		client.readPump(func(raw []byte) {
			h.HandlePayload(client.Context(), s, raw)
		}, func() {
			h.Disconnect(s)
		})
	}()
}

// Shutdown закрывает все соединения и ждет завершения их обработки
func (h *Hub) Shutdown(ctx context.Context) error {
	for _, s := range h.conns.All() {
		s.Conn.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("hub shutdown timed out"), ctx.Err())
	}
}
