package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"chat_backend/internal/config"
	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	frames []domain.ChatMessage
	closed bool
}

func newFakeConn(id string) *fakeConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeConn{id: id, ctx: ctx, cancel: cancel}
}

func (c *fakeConn) ID() string               { return c.id }
func (c *fakeConn) Context() context.Context { return c.ctx }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	var msg domain.ChatMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	c.frames = append(c.frames, msg)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancel()
}

func (c *fakeConn) messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatMessage, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) ofType(msgType string) []domain.ChatMessage {
	var out []domain.ChatMessage
	for _, m := range c.messages() {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) last() domain.ChatMessage {
	msgs := c.messages()
	if len(msgs) == 0 {
		return domain.ChatMessage{}
	}
	return msgs[len(msgs)-1]
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type fakeStore struct {
	mu       sync.Mutex
	messages []*domain.Message
	limit    int
	err      error
}

func (s *fakeStore) Save(_ context.Context, msg *domain.ChatMessage, userID *int64) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	m := &domain.Message{
		ID:           int64(len(s.messages) + 1),
		RoomID:       msg.RoomID,
		UserID:       userID,
		Sender:       msg.Sender,
		Content:      msg.Content,
		MessageType:  msg.Type,
		SecurityType: msg.SecurityType,
		Timestamp:    time.Now(),
	}
	s.messages = append(s.messages, m)
	msg.MessageID = m.ID
	return m, nil
}

func (s *fakeStore) Recent(_ context.Context, roomID string) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if s.limit > 0 && len(out) > s.limit {
		out = out[len(out)-s.limit:]
	}
	return out, nil
}

func (s *fakeStore) saved() []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Message(nil), s.messages...)
}

type markCall struct {
	roomID   string
	userID   int64
	username string
}

type fakeReceipts struct {
	mu    sync.Mutex
	calls []markCall
}

func (r *fakeReceipts) BatchMarkRoomRead(_ context.Context, roomID string, userID int64, username string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, markCall{roomID, userID, username})
	return 1, nil
}

func (r *fakeReceipts) marks() []markCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]markCall(nil), r.calls...)
}

type fakeLimiter struct {
	mu       sync.Mutex
	limit    int
	counts   map[string]int
	released []string
	err      error
}

func newFakeLimiter(limit int) *fakeLimiter {
	return &fakeLimiter{limit: limit, counts: make(map[string]int)}
}

func (l *fakeLimiter) IsMessageAllowed(_ context.Context, connID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	l.counts[connID]++
	return l.counts[connID] <= l.limit, nil
}

func (l *fakeLimiter) Release(_ context.Context, connID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, connID)
	l.released = append(l.released, connID)
	return nil
}

type fakeAuth struct {
	users map[string]domain.Identity
}

func (a *fakeAuth) ValidateToken(_ context.Context, token string) (*domain.Identity, error) {
	identity, ok := a.users[token]
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}
	return &identity, nil
}

type testHub struct {
	*Hub
	store    *fakeStore
	receipts *fakeReceipts
	limiter  *fakeLimiter
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	store := &fakeStore{}
	receipts := &fakeReceipts{}
	limiter := newFakeLimiter(1000)
	auth := &fakeAuth{users: map[string]domain.Identity{
		"alice-token": {UserID: int64Ptr(1), Username: "alice"},
		"bob-token":   {UserID: int64Ptr(2), Username: "bob"},
	}}
	hub := NewHub(store, receipts, limiter, auth, config.ChatConfig{AllowedOrigins: []string{"*"}}, logger.Nop())
	return &testHub{Hub: hub, store: store, receipts: receipts, limiter: limiter}
}

func int64Ptr(v int64) *int64 { return &v }

// connect регистрирует фейковое соединение под именем username
func (h *testHub) connect(t *testing.T, id, username string, userID *int64) (*fakeConn, *Session) {
	t.Helper()
	conn := newFakeConn(id)
	s := h.Connect(conn, domain.Identity{UserID: userID, Username: username, Guest: userID == nil})
	require.NotNil(t, s)
	return conn, s
}

func (h *testHub) send(t *testing.T, s *Session, msg domain.ChatMessage) {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	h.HandlePayload(context.Background(), s, raw)
}
