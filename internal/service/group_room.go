package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"chat_backend/internal/cache"
	"chat_backend/internal/domain"
	"chat_backend/internal/repository"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	lastMessagePreviewLen = 100
	roomMessagesLimit     = 100
	searchLimit           = 50
)

type GroupRoomService interface {
	CreateRoom(ctx context.Context, creatorID int64, name, description string, maxMembers int) (*domain.GroupRoom, error)
	UpdateRoom(ctx context.Context, roomID string, actorID int64, input UpdateRoomInput) (*domain.GroupRoom, error)
	DeleteRoom(ctx context.Context, roomID string, actorID int64) error
	AddMember(ctx context.Context, roomID string, inviterID, userID int64) (*domain.RoomMember, error)
	RemoveMember(ctx context.Context, roomID string, actorID, targetID int64) error
	LeaveRoom(ctx context.Context, roomID string, userID int64) error
	SendMessage(ctx context.Context, roomID string, userID int64, content string) (*domain.Message, error)
	GetRoomMessages(ctx context.Context, roomID string, userID int64) ([]*domain.Message, error)
	MarkAsRead(ctx context.Context, roomID string, userID int64) error
	GetUserRooms(ctx context.Context, userID int64) ([]*domain.GroupRoom, error)
	GetRoomMembers(ctx context.Context, roomID string, userID int64) ([]*domain.RoomMember, error)
	SearchRooms(ctx context.Context, query string) ([]*domain.GroupRoom, error)
	// MuteMember ставит или снимает мьют; until == nil означает бессрочно
	MuteMember(ctx context.Context, roomID string, actorID, targetID int64, muted bool, until *time.Time) error
	PromoteMember(ctx context.Context, roomID string, actorID, targetID int64) error
}

type UpdateRoomInput struct {
	Name        *string
	Description *string
	MaxMembers  *int
}

type groupRoomService struct {
	roomRepo    repository.GroupRoomRepository
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	cache       cache.Cache
	audit       AuditService
	log         logger.Logger
	sf          singleflight.Group
	now         func() time.Time
}

func NewGroupRoomService(
	roomRepo repository.GroupRoomRepository,
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	c cache.Cache,
	audit AuditService,
	log logger.Logger,
) GroupRoomService {
	return &groupRoomService{
		roomRepo:    roomRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		cache:       c,
		audit:       audit,
		log:         log,
		now:         time.Now,
	}
}

func (s *groupRoomService) CreateRoom(ctx context.Context, creatorID int64, name, description string, maxMembers int) (*domain.GroupRoom, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.ErrRoomNameRequired
	}
	if _, err := s.userRepo.GetByID(ctx, creatorID); err != nil {
		return nil, err
	}
	if maxMembers <= 0 {
		maxMembers = domain.DefaultMaxMembers
	}

	room := &domain.GroupRoom{
		ID:         "group_" + uuid.NewString(),
		Name:       name,
		CreatedBy:  creatorID,
		MaxMembers: maxMembers,
	}
	if description = strings.TrimSpace(description); description != "" {
		room.Description = &description
	}
	owner := &domain.RoomMember{
		RoomID: room.ID,
		UserID: creatorID,
		Role:   domain.MemberRoleOwner,
	}

	if err := s.roomRepo.Create(ctx, room, owner); err != nil {
		return nil, err
	}

	s.evict(ctx, cache.UserRoomsKey(creatorID))
	s.logAudit(ctx, creatorID, room.ID, domain.EventTypeRoomCreated, map[string]interface{}{"name": name})
	s.log.Info("Group room created", "room_id", room.ID, "creator_id", creatorID)
	return room, nil
}

func (s *groupRoomService) UpdateRoom(ctx context.Context, roomID string, actorID int64, input UpdateRoomInput) (*domain.GroupRoom, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	actor, err := s.activeMember(ctx, roomID, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage() {
		return nil, apperrors.ErrNoPermission
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.ErrRoomNameRequired
		}
		room.Name = name
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		room.Description = &description
	}
	if input.MaxMembers != nil {
		if *input.MaxMembers < room.CurrentMembers || *input.MaxMembers <= 0 {
			return nil, fmt.Errorf("%w: max members cannot be below current member count", apperrors.ErrBadRequest)
		}
		room.MaxMembers = *input.MaxMembers
	}

	if err := s.roomRepo.Update(ctx, room); err != nil {
		return nil, err
	}

	members, err := s.roomRepo.ListMembers(ctx, roomID)
	if err != nil {
		s.log.Warn("Failed to list members for cache eviction", "error", err, "room_id", roomID)
	}
	s.evict(ctx, userRoomKeys(members)...)
	s.logAudit(ctx, actorID, roomID, domain.EventTypeRoomUpdated, nil)
	return room, nil
}

func (s *groupRoomService) DeleteRoom(ctx context.Context, roomID string, actorID int64) error {
	if _, err := s.roomRepo.GetByID(ctx, roomID); err != nil {
		return err
	}
	actor, err := s.activeMember(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if actor.Role != domain.MemberRoleOwner {
		return apperrors.ErrOwnerOnly
	}

	affected, err := s.roomRepo.Deactivate(ctx, roomID)
	if err != nil {
		return err
	}

	keys := []string{cache.MembersKey(roomID), cache.MessagesKey(roomID)}
	for _, userID := range affected {
		keys = append(keys, cache.UserRoomsKey(userID))
	}
	s.evict(ctx, keys...)
	s.logAudit(ctx, actorID, roomID, domain.EventTypeRoomDeleted, map[string]interface{}{"members": len(affected)})
	s.log.Info("Group room deleted", "room_id", roomID, "actor_id", actorID)
	return nil
}

func (s *groupRoomService) AddMember(ctx context.Context, roomID string, inviterID, userID int64) (*domain.RoomMember, error) {
	if _, err := s.roomRepo.GetByID(ctx, roomID); err != nil {
		return nil, err
	}
	if _, err := s.activeMember(ctx, roomID, inviterID); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.roomRepo.GetMember(ctx, roomID, userID)
	if err != nil && !errors.Is(err, apperrors.ErrMemberNotFound) {
		return nil, err
	}
	if existing != nil && existing.IsActive {
		return nil, apperrors.ErrAlreadyMember
	}

	member := &domain.RoomMember{
		RoomID:   roomID,
		UserID:   userID,
		Username: user.Username,
		Role:     domain.MemberRoleMember,
	}
	if err := s.roomRepo.AddMember(ctx, member); err != nil {
		return nil, err
	}

	s.evict(ctx, cache.MembersKey(roomID), cache.UserRoomsKey(userID))
	s.logAudit(ctx, inviterID, roomID, domain.EventTypeMemberAdded, map[string]interface{}{"user_id": userID})
	return member, nil
}

func (s *groupRoomService) RemoveMember(ctx context.Context, roomID string, actorID, targetID int64) error {
	actor, err := s.activeMember(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	target, err := s.activeMember(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if target.Role == domain.MemberRoleOwner {
		return apperrors.ErrCannotRemoveOwner
	}
	if !actor.CanManage() {
		return apperrors.ErrNoPermission
	}

	if err := s.roomRepo.DeactivateMember(ctx, roomID, targetID); err != nil {
		return err
	}

	s.evict(ctx, cache.MembersKey(roomID), cache.UserRoomsKey(targetID))
	s.logAudit(ctx, actorID, roomID, domain.EventTypeMemberRemoved, map[string]interface{}{"user_id": targetID})
	return nil
}

func (s *groupRoomService) LeaveRoom(ctx context.Context, roomID string, userID int64) error {
	member, err := s.activeMember(ctx, roomID, userID)
	if err != nil {
		return err
	}

	if member.Role == domain.MemberRoleOwner {
		if err := s.handOverOwnership(ctx, roomID, userID); err != nil {
			return err
		}
	}

	if err := s.roomRepo.DeactivateMember(ctx, roomID, userID); err != nil {
		return err
	}

	s.evict(ctx, cache.MembersKey(roomID), cache.UserRoomsKey(userID))
	s.logAudit(ctx, userID, roomID, domain.EventTypeMemberLeft, nil)
	return nil
}

// handOverOwnership передает владение первому администратору.
// Без администраторов комната остается без владельца.
func (s *groupRoomService) handOverOwnership(ctx context.Context, roomID string, ownerID int64) error {
	members, err := s.roomRepo.ListMembers(ctx, roomID)
	if err != nil {
		return err
	}

	for _, m := range members {
		if m.UserID == ownerID || m.Role != domain.MemberRoleAdmin {
			continue
		}
		m.Role = domain.MemberRoleOwner
		if err := s.roomRepo.UpdateMember(ctx, m); err != nil {
			return err
		}
		s.logAudit(ctx, ownerID, roomID, domain.EventTypeOwnershipTransferred, map[string]interface{}{"new_owner_id": m.UserID})
		s.log.Info("Room ownership transferred", "room_id", roomID, "from", ownerID, "to", m.UserID)
		return nil
	}

	s.logAudit(ctx, ownerID, roomID, domain.EventTypeRoomOwnerless, nil)
	s.log.Warn("Owner left room without admins, room has no owner", "room_id", roomID, "owner_id", ownerID)
	return nil
}

func (s *groupRoomService) SendMessage(ctx context.Context, roomID string, userID int64, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content is required", apperrors.ErrBadRequest)
	}
	member, err := s.activeMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if member.MutedAt(now) {
		return nil, apperrors.ErrMuted
	}
	if member.IsMuted {
		// срок мьюта истек
		member.IsMuted = false
		member.MutedUntil = nil
		if err := s.roomRepo.UpdateMember(ctx, member); err != nil {
			return nil, err
		}
	}

	uid := userID
	message := &domain.Message{
		RoomID:       roomID,
		UserID:       &uid,
		Sender:       member.Username,
		Content:      content,
		MessageType:  domain.MessageTypeMessage,
		SecurityType: domain.SecurityNormal,
		Timestamp:    now,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	if err := s.roomRepo.RecordLastMessage(ctx, roomID, preview(content), member.Username, now); err != nil {
		s.log.Warn("Failed to record last message", "error", err, "room_id", roomID)
	}
	if err := s.roomRepo.IncrementUnread(ctx, roomID, userID); err != nil {
		s.log.Warn("Failed to increment unread counters", "error", err, "room_id", roomID)
	}

	members, err := s.roomMembers(ctx, roomID)
	if err != nil {
		s.log.Warn("Failed to list members for cache eviction", "error", err, "room_id", roomID)
	}
	keys := append([]string{cache.MessagesKey(roomID), cache.MembersKey(roomID)}, userRoomKeys(members)...)
	s.evict(ctx, keys...)
	return message, nil
}

func (s *groupRoomService) GetRoomMessages(ctx context.Context, roomID string, userID int64) ([]*domain.Message, error) {
	if _, err := s.activeMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	var messages []*domain.Message
	err := s.cached(ctx, cache.MessagesKey(roomID), &messages, func() (any, error) {
		return s.messageRepo.Recent(ctx, roomID, roomMessagesLimit)
	})
	return messages, err
}

func (s *groupRoomService) MarkAsRead(ctx context.Context, roomID string, userID int64) error {
	if _, err := s.activeMember(ctx, roomID, userID); err != nil {
		return err
	}
	if err := s.roomRepo.ResetUnread(ctx, roomID, userID); err != nil {
		return err
	}
	s.evict(ctx, cache.MembersKey(roomID), cache.UserRoomsKey(userID))
	return nil
}

func (s *groupRoomService) GetUserRooms(ctx context.Context, userID int64) ([]*domain.GroupRoom, error) {
	var rooms []*domain.GroupRoom
	err := s.cached(ctx, cache.UserRoomsKey(userID), &rooms, func() (any, error) {
		return s.roomRepo.ListByUser(ctx, userID)
	})
	return rooms, err
}

// GetRoomMembers доступен только активным участникам комнаты
func (s *groupRoomService) GetRoomMembers(ctx context.Context, roomID string, userID int64) ([]*domain.RoomMember, error) {
	if _, err := s.activeMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.roomMembers(ctx, roomID)
}

func (s *groupRoomService) roomMembers(ctx context.Context, roomID string) ([]*domain.RoomMember, error) {
	var members []*domain.RoomMember
	err := s.cached(ctx, cache.MembersKey(roomID), &members, func() (any, error) {
		return s.roomRepo.ListMembers(ctx, roomID)
	})
	return members, err
}

func (s *groupRoomService) SearchRooms(ctx context.Context, query string) ([]*domain.GroupRoom, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.GroupRoom{}, nil
	}
	return s.roomRepo.Search(ctx, query, searchLimit)
}

func (s *groupRoomService) MuteMember(ctx context.Context, roomID string, actorID, targetID int64, muted bool, until *time.Time) error {
	actor, err := s.activeMember(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if !actor.CanManage() {
		return apperrors.ErrNoPermission
	}
	target, err := s.activeMember(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if target.Role == domain.MemberRoleOwner {
		return apperrors.ErrNoPermission
	}

	target.IsMuted = muted
	target.MutedUntil = nil
	if muted {
		target.MutedUntil = until
	}
	if err := s.roomRepo.UpdateMember(ctx, target); err != nil {
		return err
	}

	s.evict(ctx, cache.MembersKey(roomID))
	s.logAudit(ctx, actorID, roomID, domain.EventTypeMemberMuted, map[string]interface{}{"user_id": targetID, "muted": muted})
	return nil
}

func (s *groupRoomService) PromoteMember(ctx context.Context, roomID string, actorID, targetID int64) error {
	actor, err := s.activeMember(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if actor.Role != domain.MemberRoleOwner {
		return apperrors.ErrOwnerOnly
	}
	target, err := s.activeMember(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if target.Role != domain.MemberRoleMember {
		return nil
	}

	target.Role = domain.MemberRoleAdmin
	if err := s.roomRepo.UpdateMember(ctx, target); err != nil {
		return err
	}

	s.evict(ctx, cache.MembersKey(roomID))
	s.logAudit(ctx, actorID, roomID, domain.EventTypeMemberPromoted, map[string]interface{}{"user_id": targetID})
	return nil
}

func (s *groupRoomService) activeMember(ctx context.Context, roomID string, userID int64) (*domain.RoomMember, error) {
	member, err := s.roomRepo.GetMember(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrMemberNotFound) {
			return nil, apperrors.ErrNotMember
		}
		return nil, err
	}
	if !member.IsActive {
		return nil, apperrors.ErrNotMember
	}
	return member, nil
}

// cached читает ключ из кэша, а при промахе загружает значение через singleflight
func (s *groupRoomService) cached(ctx context.Context, key string, dest any, load func() (any, error)) error {
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.log.Warn("Cache read failed", "error", err, "key", key)
	}
	if found {
		return nil
	}

	val, err, _ := s.sf.Do(key, load)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, key, val); err != nil {
		s.log.Warn("Cache write failed", "error", err, "key", key)
	}
	return assign(dest, val)
}

func assign(dest any, val any) error {
	switch d := dest.(type) {
	case *[]*domain.GroupRoom:
		*d = val.([]*domain.GroupRoom)
	case *[]*domain.RoomMember:
		*d = val.([]*domain.RoomMember)
	case *[]*domain.Message:
		*d = val.([]*domain.Message)
	default:
		return fmt.Errorf("unsupported cache destination %T", dest)
	}
	return nil
}

func (s *groupRoomService) evict(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Warn("Cache eviction failed", "error", err, "keys", keys)
	}
}

func (s *groupRoomService) logAudit(ctx context.Context, actorID int64, roomID, eventType string, payload map[string]interface{}) {
	if err := s.audit.LogEvent(ctx, &actorID, roomID, eventType, payload); err != nil {
		s.log.Warn("Failed to write audit log", "error", err, "event_type", eventType, "room_id", roomID)
	}
}

func userRoomKeys(members []*domain.RoomMember) []string {
	keys := make([]string, 0, len(members))
	for _, m := range members {
		keys = append(keys, cache.UserRoomsKey(m.UserID))
	}
	return keys
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= lastMessagePreviewLen {
		return content
	}
	runes := []rune(content)
	return string(runes[:lastMessagePreviewLen]) + "..."
}
