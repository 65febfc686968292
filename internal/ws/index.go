package ws

import (
	"hash/fnv"
	"sync"
)

const indexStripes = 64

// RoomIndex хранит привязку соединения к текущей комнате.
// Смена комнаты выполняется под блокировкой полосы соединения,
// поэтому несвязанные соединения не сериализуются друг с другом.
type RoomIndex struct {
	bindings sync.Map
	locks    [indexStripes]sync.Mutex
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{}
}

// Lock захватывает полосу соединения и возвращает функцию освобождения
func (ix *RoomIndex) Lock(connID string) func() {
	m := &ix.locks[stripe(connID)]
	m.Lock()
	return m.Unlock
}

func (ix *RoomIndex) Get(connID string) (string, bool) {
	v, ok := ix.bindings.Load(connID)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (ix *RoomIndex) Set(connID, roomID string) {
	ix.bindings.Store(connID, roomID)
}

func (ix *RoomIndex) Delete(connID string) {
	ix.bindings.Delete(connID)
}

func stripe(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % indexStripes
}
