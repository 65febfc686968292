package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"chat_backend/internal/config"
	"chat_backend/pkg/logger"

	"github.com/gorilla/websocket"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn - живое соединение, в которое можно поставить кадр на отправку
type Conn interface {
	ID() string
	// Send не блокируется: кадр встает в очередь или возвращается ошибка
	Send(payload []byte) error
	Close()
	Context() context.Context
}

// Client - соединение gorilla/websocket с отдельными горутинами чтения и записи
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	cfg    config.ChatConfig
	log    logger.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

func NewClient(id string, conn *websocket.Conn, cfg config.ChatConfig, log logger.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, cfg.SendBufferSize),
		cfg:    cfg,
		log:    log.With("conn_id", id),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Context() context.Context { return c.ctx }

func (c *Client) Send(payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close закрывает очередь отправки; writePump допишет close-кадр и закроет сокет
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.cancel()
}

func (c *Client) readPump(handle func(raw []byte), onClose func()) {
	defer func() {
		onClose()
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.log.Warn("Failed to set read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		handle(raw)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Message exceeded maximum size", "limit", c.cfg.MaxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived),
		errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.log.Debug("Client disconnected", "reason", err)
	default:
		c.log.Warn("WebSocket read error", "error", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Failed to write ping", "error", err)
				return
			}
		}
	}
}

// rejectPolicy закрывает только что открытое соединение с кодом 1008
func rejectPolicy(conn *websocket.Conn, reason string, writeWait time.Duration) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}
