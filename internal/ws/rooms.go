package ws

import (
	"fmt"
	"sync"

	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"

	"github.com/google/uuid"
)

const DefaultRoomID = "general"

var defaultRooms = []struct {
	id, name string
}{
	{"general", "General chat"},
	{"tech", "Tech talk"},
	{"casual", "Free talk"},
}

// Room - живая комната в памяти процесса
type Room struct {
	ID          string
	Name        string
	Kind        domain.RoomKind
	Creator     string
	Description string

	mu        sync.RWMutex
	occupants []domain.Occupant
}

func (r *Room) IsDirect() bool {
	return r.Kind == domain.RoomKindDirect
}

// Occupants возвращает копию списка присутствующих в порядке входа
func (r *Room) Occupants() []domain.Occupant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Occupant, len(r.occupants))
	copy(out, r.occupants)
	return out
}

func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.occupants)
}

func (r *Room) add(o domain.Occupant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.occupants {
		if r.occupants[i].ConnID == o.ConnID {
			r.occupants[i] = o
			return
		}
	}
	r.occupants = append(r.occupants, o)
}

func (r *Room) remove(connID string) (domain.Occupant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.occupants {
		if o.ConnID == connID {
			r.occupants = append(r.occupants[:i], r.occupants[i+1:]...)
			return o, true
		}
	}
	return domain.Occupant{}, false
}

func (r *Room) summary() domain.RoomSummary {
	return domain.RoomSummary{
		RoomID:          r.ID,
		RoomName:        r.Name,
		RoomType:        r.Kind,
		UserCount:       r.Count(),
		Creator:         r.Creator,
		Description:     r.Description,
		IsDirectMessage: r.IsDirect(),
	}
}

// RoomRegistry - каталог живых комнат
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	order []string
}

// NewRoomRegistry создает каталог с комнатами по умолчанию
func NewRoomRegistry() *RoomRegistry {
	reg := &RoomRegistry{rooms: make(map[string]*Room)}
	for _, d := range defaultRooms {
		reg.insert(&Room{ID: d.id, Name: d.name, Kind: domain.RoomKindGroup})
	}
	return reg
}

func (reg *RoomRegistry) insert(room *Room) {
	reg.rooms[room.ID] = room
	reg.order = append(reg.order, room.ID)
}

func (reg *RoomRegistry) Get(roomID string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[roomID]
	return room, ok
}

// All возвращает комнаты в порядке создания
func (reg *RoomRegistry) All() []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Room, 0, len(reg.order))
	for _, id := range reg.order {
		out = append(out, reg.rooms[id])
	}
	return out
}

func (reg *RoomRegistry) Exists(roomID string) bool {
	_, ok := reg.Get(roomID)
	return ok
}

// IsNameDuplicate сравнивает имена с учетом регистра
func (reg *RoomRegistry) IsNameDuplicate(name string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.nameTaken(name)
}

func (reg *RoomRegistry) nameTaken(name string) bool {
	for _, room := range reg.rooms {
		if room.Name == name {
			return true
		}
	}
	return false
}

func (reg *RoomRegistry) IsDefaultRoom(roomID string) bool {
	for _, d := range defaultRooms {
		if d.id == roomID {
			return true
		}
	}
	return false
}

func (reg *RoomRegistry) CreateRoom(room *Room) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[room.ID]; ok {
		return fmt.Errorf("%w: %s", apperrors.ErrRoomAlreadyExists, room.ID)
	}
	reg.insert(room)
	return nil
}

// CreateUniqueGroupRoom проверяет имя и вставляет комнату под одной блокировкой,
// чтобы два одновременных запроса не создали комнаты с одинаковым именем.
func (reg *RoomRegistry) CreateUniqueGroupRoom(name, creator, description string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.nameTaken(name) {
		return nil, apperrors.ErrRoomNameDuplicate
	}
	room := &Room{
		ID:          "group_" + uuid.NewString(),
		Name:        name,
		Kind:        domain.RoomKindGroup,
		Creator:     creator,
		Description: description,
	}
	reg.insert(room)
	return room, nil
}

// GetOrCreateDirect возвращает комнату личной переписки, создавая ее при отсутствии
func (reg *RoomRegistry) GetOrCreateDirect(roomID, name string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok := reg.rooms[roomID]; ok {
		return room, false
	}
	room := &Room{ID: roomID, Name: name, Kind: domain.RoomKindDirect}
	reg.insert(room)
	return room, true
}

// DeleteRoom удаляет комнату и возвращает ее; после этого в нее нельзя войти
func (reg *RoomRegistry) DeleteRoom(roomID string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[roomID]
	if !ok {
		return nil, false
	}
	delete(reg.rooms, roomID)
	for i, id := range reg.order {
		if id == roomID {
			reg.order = append(reg.order[:i], reg.order[i+1:]...)
			break
		}
	}
	return room, true
}

// AddOccupant добавляет присутствующего; удаление комнаты не может произойти посередине
func (reg *RoomRegistry) AddOccupant(roomID string, o domain.Occupant) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[roomID]
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	room.add(o)
	return room, nil
}

func (reg *RoomRegistry) RemoveOccupant(roomID, connID string) (*Room, domain.Occupant, bool) {
	room, ok := reg.Get(roomID)
	if !ok {
		return nil, domain.Occupant{}, false
	}
	o, removed := room.remove(connID)
	return room, o, removed
}

func (reg *RoomRegistry) Summaries() []domain.RoomSummary {
	rooms := reg.All()
	out := make([]domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.summary())
	}
	return out
}

// DirectMessageRoomID не зависит от порядка участников
func DirectMessageRoomID(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm_%d_%d", a, b)
}
