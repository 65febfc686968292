package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]*domain.User
	next  int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*domain.User)}
}

func (r *fakeUserRepo) add(username string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.users[r.next] = &domain.User{ID: r.next, Username: username, IsActive: true}
	return r.next
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return apperrors.ErrUserAlreadyExists
		}
	}
	r.next++
	user.ID = r.next
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*domain.Message
}

func (r *fakeMessageRepo) Create(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = int64(len(r.messages) + 1)
	cp := *m
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id int64) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeMessageRepo) room(roomID string) []*domain.Message {
	var out []*domain.Message
	for _, m := range r.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out
}

func (r *fakeMessageRepo) Recent(_ context.Context, roomID string, limit int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.room(roomID)
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (r *fakeMessageRepo) Page(_ context.Context, roomID string, limit, offset int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.room(roomID)
	out := make([]*domain.Message, 0)
	for i := len(msgs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (r *fakeMessageRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.messages[:0]
	var n int64
	now := time.Now()
	for _, m := range r.messages {
		if m.ExpiresAt != nil && !m.ExpiresAt.After(now) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.messages = kept
	return n, nil
}

type receiptKey struct {
	messageID int64
	userID    int64
}

type fakeReceiptRepo struct {
	mu          sync.Mutex
	messages    *fakeMessageRepo
	receipts    map[receiptKey]*domain.ReadReceipt
	batchWrites int
}

func newFakeReceiptRepo(messages *fakeMessageRepo) *fakeReceiptRepo {
	return &fakeReceiptRepo{messages: messages, receipts: make(map[receiptKey]*domain.ReadReceipt)}
}

func (r *fakeReceiptRepo) Upsert(_ context.Context, messageID, userID int64) (*domain.ReadReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := receiptKey{messageID, userID}
	if existing, ok := r.receipts[key]; ok {
		return existing, nil
	}
	rc := &domain.ReadReceipt{ID: int64(len(r.receipts) + 1), MessageID: messageID, UserID: userID, ReadAt: time.Now()}
	r.receipts[key] = rc
	return rc, nil
}

func (r *fakeReceiptRepo) UnreadMessageIDs(ctx context.Context, roomID string, userID int64, username string) ([]int64, error) {
	msgs, _ := r.messages.Recent(ctx, roomID, 1<<30)
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, m := range msgs {
		if m.Sender == username {
			continue
		}
		if _, ok := r.receipts[receiptKey{m.ID, userID}]; !ok {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (r *fakeReceiptRepo) CreateBatch(_ context.Context, messageIDs []int64, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchWrites++
	for _, id := range messageIDs {
		key := receiptKey{id, userID}
		if _, ok := r.receipts[key]; !ok {
			r.receipts[key] = &domain.ReadReceipt{ID: int64(len(r.receipts) + 1), MessageID: id, UserID: userID, ReadAt: time.Now()}
		}
	}
	return nil
}

func (r *fakeReceiptRepo) CountUnread(ctx context.Context, roomID string, userID int64, username string) (int64, error) {
	ids, err := r.UnreadMessageIDs(ctx, roomID, userID, username)
	return int64(len(ids)), err
}

func (r *fakeReceiptRepo) CountReads(_ context.Context, messageID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.receipts {
		if k.messageID == messageID {
			n++
		}
	}
	return n, nil
}

func (r *fakeReceiptRepo) Exists(_ context.Context, messageID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.receipts[receiptKey{messageID, userID}]
	return ok, nil
}

type fakeGroupRoomRepo struct {
	mu      sync.Mutex
	users   *fakeUserRepo
	rooms   map[string]*domain.GroupRoom
	members map[string]map[int64]*domain.RoomMember
	seq     int64
}

func newFakeGroupRoomRepo(users *fakeUserRepo) *fakeGroupRoomRepo {
	return &fakeGroupRoomRepo{
		users:   users,
		rooms:   make(map[string]*domain.GroupRoom),
		members: make(map[string]map[int64]*domain.RoomMember),
	}
}

func (r *fakeGroupRoomRepo) username(id int64) string {
	u, err := r.users.GetByID(context.Background(), id)
	if err != nil {
		return ""
	}
	return u.Username
}

func (r *fakeGroupRoomRepo) Create(_ context.Context, room *domain.GroupRoom, owner *domain.RoomMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; ok {
		return apperrors.ErrRoomAlreadyExists
	}
	room.IsActive = true
	room.CurrentMembers = 1
	room.CreatedAt = time.Now()
	cp := *room
	r.rooms[room.ID] = &cp

	r.seq++
	owner.ID = r.seq
	owner.IsActive = true
	owner.JoinedAt = time.Now()
	owner.Username = r.username(owner.UserID)
	mcp := *owner
	r.members[room.ID] = map[int64]*domain.RoomMember{owner.UserID: &mcp}
	return nil
}

func (r *fakeGroupRoomRepo) GetByID(_ context.Context, roomID string) (*domain.GroupRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok || !room.IsActive {
		return nil, apperrors.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (r *fakeGroupRoomRepo) Update(_ context.Context, room *domain.GroupRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rooms[room.ID]
	if !ok || !existing.IsActive {
		return apperrors.ErrRoomNotFound
	}
	existing.Name = room.Name
	existing.Description = room.Description
	existing.MaxMembers = room.MaxMembers
	return nil
}

func (r *fakeGroupRoomRepo) Deactivate(_ context.Context, roomID string) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok || !room.IsActive {
		return nil, apperrors.ErrRoomNotFound
	}
	room.IsActive = false
	room.CurrentMembers = 0
	now := time.Now()
	var ids []int64
	for id, m := range r.members[roomID] {
		if m.IsActive {
			m.IsActive = false
			m.LeftAt = &now
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *fakeGroupRoomRepo) Search(_ context.Context, query string, limit int) ([]*domain.GroupRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.GroupRoom, 0)
	for _, room := range r.rooms {
		if room.IsActive && containsFold(room.Name, query) && len(out) < limit {
			cp := *room
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeGroupRoomRepo) ListByUser(_ context.Context, userID int64) ([]*domain.GroupRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.GroupRoom, 0)
	for roomID, members := range r.members {
		if m, ok := members[userID]; ok && m.IsActive && r.rooms[roomID].IsActive {
			cp := *r.rooms[roomID]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeGroupRoomRepo) RecordLastMessage(_ context.Context, roomID, preview, sender string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		room.LastMessage = &preview
		room.LastMessageSender = &sender
		room.LastMessageAt = &at
	}
	return nil
}

func (r *fakeGroupRoomRepo) GetMember(_ context.Context, roomID string, userID int64) (*domain.RoomMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[roomID][userID]
	if !ok {
		return nil, apperrors.ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeGroupRoomRepo) ListMembers(_ context.Context, roomID string) ([]*domain.RoomMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.RoomMember, 0)
	for _, m := range r.members[roomID] {
		if m.IsActive {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeGroupRoomRepo) AddMember(_ context.Context, member *domain.RoomMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[member.RoomID]
	if !ok || !room.IsActive || room.CurrentMembers >= room.MaxMembers {
		return apperrors.ErrRoomFull
	}
	room.CurrentMembers++
	r.seq++
	member.ID = r.seq
	member.IsActive = true
	member.JoinedAt = time.Now()
	member.LeftAt = nil
	member.Username = r.username(member.UserID)
	cp := *member
	r.members[member.RoomID][member.UserID] = &cp
	return nil
}

func (r *fakeGroupRoomRepo) DeactivateMember(_ context.Context, roomID string, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[roomID][userID]
	if !ok || !m.IsActive {
		return apperrors.ErrMemberNotFound
	}
	now := time.Now()
	m.IsActive = false
	m.LeftAt = &now
	if r.rooms[roomID].CurrentMembers > 0 {
		r.rooms[roomID].CurrentMembers--
	}
	return nil
}

func (r *fakeGroupRoomRepo) UpdateMember(_ context.Context, member *domain.RoomMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[member.RoomID][member.UserID]
	if !ok {
		return apperrors.ErrMemberNotFound
	}
	m.Role = member.Role
	m.IsMuted = member.IsMuted
	m.MutedUntil = member.MutedUntil
	return nil
}

func (r *fakeGroupRoomRepo) IncrementUnread(_ context.Context, roomID string, exceptUserID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.members[roomID] {
		if id != exceptUserID && m.IsActive {
			m.UnreadCount++
		}
	}
	return nil
}

func (r *fakeGroupRoomRepo) ResetUnread(_ context.Context, roomID string, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[roomID][userID]; ok {
		m.UnreadCount = 0
	}
	return nil
}

func (r *fakeGroupRoomRepo) member(roomID string, userID int64) domain.RoomMember {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.members[roomID][userID]
}

// fakeCache хранит JSON в памяти и запоминает удаленные ключи
type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *fakeCache) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func (c *fakeCache) resetDeleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = nil
}

func (c *fakeCache) deletedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *fakeAudit) LogEvent(_ context.Context, _ *int64, _ string, eventType string, _ map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, eventType)
	return nil
}

func (a *fakeAudit) has(eventType string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e == eventType {
			return true
		}
	}
	return false
}

type fakeRateLimitRepo struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRateLimitRepo() *fakeRateLimitRepo {
	return &fakeRateLimitRepo{counts: make(map[string]int64)}
}

func (r *fakeRateLimitRepo) CheckLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key] < int64(limit), nil
}

func (r *fakeRateLimitRepo) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
	return r.counts[key], nil
}

func (r *fakeRateLimitRepo) Reset(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.counts, key)
	return nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
