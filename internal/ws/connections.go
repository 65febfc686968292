package ws

import (
	"sync"

	"chat_backend/internal/domain"
)

// Session - соединение вместе с личностью, установленной при рукопожатии
type Session struct {
	Conn     Conn
	Identity domain.Identity
}

func (s *Session) occupant() domain.Occupant {
	return domain.Occupant{
		ConnID:   s.Conn.ID(),
		UserID:   s.Identity.UserID,
		Username: s.Identity.Username,
	}
}

// Connections - реестр живых соединений
type Connections struct {
	sessions sync.Map
	index    *RoomIndex
}

func NewConnections(index *RoomIndex) *Connections {
	return &Connections{index: index}
}

func (c *Connections) Add(s *Session) {
	c.sessions.Store(s.Conn.ID(), s)
}

// Remove удаляет соединение вместе с его привязкой к комнате.
// Неизвестный id игнорируется.
func (c *Connections) Remove(connID string) {
	c.sessions.Delete(connID)
	if c.index != nil {
		unlock := c.index.Lock(connID)
		c.index.Delete(connID)
		unlock()
	}
}

func (c *Connections) FindByID(connID string) (*Session, bool) {
	v, ok := c.sessions.Load(connID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

func (c *Connections) All() []*Session {
	var out []*Session
	c.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*Session))
		return true
	})
	return out
}

func (c *Connections) Count() int {
	n := 0
	c.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
