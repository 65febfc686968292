package service

import (
	"context"
	"testing"
	"time"

	"chat_backend/internal/cache"
	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type groupRoomFixture struct {
	svc      *groupRoomService
	users    *fakeUserRepo
	rooms    *fakeGroupRoomRepo
	messages *fakeMessageRepo
	cache    *fakeCache
	audit    *fakeAudit
}

func newGroupRoomFixture() *groupRoomFixture {
	users := newFakeUserRepo()
	rooms := newFakeGroupRoomRepo(users)
	messages := &fakeMessageRepo{}
	c := newFakeCache()
	audit := &fakeAudit{}
	svc := NewGroupRoomService(rooms, users, messages, c, audit, logger.Nop()).(*groupRoomService)
	return &groupRoomFixture{svc: svc, users: users, rooms: rooms, messages: messages, cache: c, audit: audit}
}

func TestCreateRoomMakesCreatorOwner(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice := f.users.add("alice")

	room, err := f.svc.CreateRoom(ctx, alice, "  Team  ", "", 0)
	require.NoError(t, err)

	assert.Equal(t, "Team", room.Name)
	assert.Equal(t, domain.DefaultMaxMembers, room.MaxMembers)
	assert.Contains(t, room.ID, "group_")
	owner := f.rooms.member(room.ID, alice)
	assert.Equal(t, domain.MemberRoleOwner, owner.Role)
	assert.True(t, f.audit.has(domain.EventTypeRoomCreated))
}

func TestCreateRoomValidation(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()

	_, err := f.svc.CreateRoom(ctx, 99, "Team", "", 10)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	alice := f.users.add("alice")
	_, err = f.svc.CreateRoom(ctx, alice, "   ", "", 10)
	assert.ErrorIs(t, err, apperrors.ErrRoomNameRequired)
}

func TestUpdateRoomRequiresOwnerOrAdmin(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice, bob := f.users.add("alice"), f.users.add("bob")

	room, err := f.svc.CreateRoom(ctx, alice, "Team", "", 10)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, room.ID, alice, bob)
	require.NoError(t, err)

	name := "Renamed"
	_, err = f.svc.UpdateRoom(ctx, room.ID, bob, UpdateRoomInput{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrNoPermission)

	require.NoError(t, f.svc.PromoteMember(ctx, room.ID, alice, bob))
	updated, err := f.svc.UpdateRoom(ctx, room.ID, bob, UpdateRoomInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
}

func TestAddMemberRules(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice, bob, carol, dave := f.users.add("alice"), f.users.add("bob"), f.users.add("carol"), f.users.add("dave")

	room, err := f.svc.CreateRoom(ctx, alice, "Small", "", 2)
	require.NoError(t, err)

	_, err = f.svc.AddMember(ctx, room.ID, carol, bob)
	assert.ErrorIs(t, err, apperrors.ErrNotMember, "inviter must be an active member")

	_, err = f.svc.AddMember(ctx, room.ID, alice, bob)
	require.NoError(t, err)

	_, err = f.svc.AddMember(ctx, room.ID, alice, bob)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyMember)

	_, err = f.svc.AddMember(ctx, room.ID, alice, carol)
	assert.ErrorIs(t, err, apperrors.ErrRoomFull)

	_, err = f.svc.AddMember(ctx, room.ID, alice, dave+100)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestRemoveMemberRules(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice, bob, carol := f.users.add("alice"), f.users.add("bob"), f.users.add("carol")

	room, err := f.svc.CreateRoom(ctx, alice, "Team", "", 10)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, room.ID, alice, bob)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, room.ID, alice, carol)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.RemoveMember(ctx, room.ID, bob, carol), apperrors.ErrNoPermission)
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, room.ID, bob, alice), apperrors.ErrCannotRemoveOwner)

	require.NoError(t, f.svc.RemoveMember(ctx, room.ID, alice, carol))
	removed := f.rooms.member(room.ID, carol)
	assert.False(t, removed.IsActive)
	assert.NotNil(t, removed.LeftAt)

	// повторное вступление сбрасывает время ухода
	_, err = f.svc.AddMember(ctx, room.ID, alice, carol)
	require.NoError(t, err)
	rejoined := f.rooms.member(room.ID, carol)
	assert.True(t, rejoined.IsActive)
	assert.Nil(t, rejoined.LeftAt)
}

func TestLeaveOwnerPromotesFirstAdmin(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice, bob, carol := f.users.add("alice"), f.users.add("bob"), f.users.add("carol")

	room, err := f.svc.CreateRoom(ctx, alice, "Team", "", 10)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, room.ID, alice, bob)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, room.ID, alice, carol)
	require.NoError(t, err)
	require.NoError(t, f.svc.PromoteMember(ctx, room.ID, alice, carol))

	require.NoError(t, f.svc.LeaveRoom(ctx, room.ID, alice))

	assert.Equal(t, domain.MemberRoleOwner, f.rooms.member(room.ID, carol).Role)
	assert.Equal(t, domain.MemberRoleMember, f.rooms.member(room.ID, bob).Role)
	assert.False(t, f.rooms.member(room.ID, alice).IsActive)
	assert.NotNil(t, f.rooms.member(room.ID, alice).LeftAt)
	assert.Nil(t, f.rooms.member(room.ID, carol).LeftAt)
	assert.True(t, f.audit.has(domain.EventTypeOwnershipTransferred))
}

func TestLeaveOwnerWithoutAdminLeavesRoomOwnerless(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice, bob := f.users.add("alice"), f.users.add("bob")

	room, err := f.svc.CreateRoom(ctx, alice, "Team", "", 10)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, room.ID, alice, bob)
	require.NoError(t, err)

	require.NoError(t, f.svc.LeaveRoom(ctx, room.ID, alice))

	assert.Equal(t, domain.MemberRoleMember, f.rooms.member(room.ID, bob).Role)
	assert.NotNil(t, f.rooms.member(room.ID, alice).LeftAt)
	assert.True(t, f.audit.has(domain.EventTypeRoomOwnerless))
}

func TestSendMessageMuteHandling(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice, bob := f.users.add("alice"), f.users.add("bob")

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	room, err := f.svc.CreateRoom(ctx, alice, "Team", "", 10)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, room.ID, alice, bob)
	require.NoError(t, err)

	until := now.Add(10 * time.Minute)
	require.NoError(t, f.svc.MuteMember(ctx, room.ID, alice, bob, true, &until))

	_, err = f.svc.SendMessage(ctx, room.ID, bob, "hello")
	assert.ErrorIs(t, err, apperrors.ErrMuted)
	assert.Empty(t, f.messages.room(room.ID))

	now = now.Add(11 * time.Minute)
	msg, err := f.svc.SendMessage(ctx, room.ID, bob, "hello again")
	require.NoError(t, err)
	assert.Equal(t, "bob", msg.Sender)

	member := f.rooms.member(room.ID, bob)
	assert.False(t, member.IsMuted, "expired mute is cleared")
	assert.Nil(t, member.MutedUntil)
}

func TestSendMessageIndefiniteMute(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice, bob := f.users.add("alice"), f.users.add("bob")

	room, err := f.svc.CreateRoom(ctx, alice, "Team", "", 10)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, room.ID, alice, bob)
	require.NoError(t, err)
	require.NoError(t, f.svc.MuteMember(ctx, room.ID, alice, bob, true, nil))

	_, err = f.svc.SendMessage(ctx, room.ID, bob, "hello")
	assert.ErrorIs(t, err, apperrors.ErrMuted)

	assert.ErrorIs(t, f.svc.MuteMember(ctx, room.ID, bob, alice, true, nil), apperrors.ErrNoPermission)
}

func TestSendMessageUpdatesPreviewAndUnread(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice, bob, carol := f.users.add("alice"), f.users.add("bob"), f.users.add("carol")

	room, err := f.svc.CreateRoom(ctx, alice, "Team", "", 10)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, room.ID, alice, bob)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, room.ID, alice, carol)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, room.ID, alice, "hi all")
	require.NoError(t, err)

	assert.Equal(t, 0, f.rooms.member(room.ID, alice).UnreadCount)
	assert.Equal(t, 1, f.rooms.member(room.ID, bob).UnreadCount)
	assert.Equal(t, 1, f.rooms.member(room.ID, carol).UnreadCount)

	stored, err := f.rooms.GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessage)
	assert.Equal(t, "hi all", *stored.LastMessage)
	assert.Equal(t, "alice", *stored.LastMessageSender)

	require.NoError(t, f.svc.MarkAsRead(ctx, room.ID, bob))
	assert.Equal(t, 0, f.rooms.member(room.ID, bob).UnreadCount)
}

func TestSendMessageRequiresMembership(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice, bob := f.users.add("alice"), f.users.add("bob")

	room, err := f.svc.CreateRoom(ctx, alice, "Team", "", 10)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, room.ID, bob, "hi")
	assert.ErrorIs(t, err, apperrors.ErrNotMember)
}

func TestDeleteRoomEvictsOnlyAffectedKeys(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice, bob, outsider := f.users.add("alice"), f.users.add("bob"), f.users.add("outsider")

	room, err := f.svc.CreateRoom(ctx, alice, "Team", "", 10)
	require.NoError(t, err)
	other, err := f.svc.CreateRoom(ctx, outsider, "Other", "", 10)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, room.ID, alice, bob)
	require.NoError(t, err)

	_, err = f.svc.GetRoomMembers(ctx, other.ID, outsider)
	require.NoError(t, err)
	_, err = f.svc.GetUserRooms(ctx, outsider)
	require.NoError(t, err)
	_, err = f.svc.GetUserRooms(ctx, bob)
	require.NoError(t, err)
	require.True(t, f.cache.has(cache.UserRoomsKey(bob)))

	assert.ErrorIs(t, f.svc.DeleteRoom(ctx, room.ID, bob), apperrors.ErrOwnerOnly)

	f.cache.resetDeleted()
	require.NoError(t, f.svc.DeleteRoom(ctx, room.ID, alice))

	assert.ElementsMatch(t, []string{
		cache.MembersKey(room.ID),
		cache.MessagesKey(room.ID),
		cache.UserRoomsKey(alice),
		cache.UserRoomsKey(bob),
	}, f.cache.deletedKeys())
	assert.True(t, f.cache.has(cache.MembersKey(other.ID)))
	assert.True(t, f.cache.has(cache.UserRoomsKey(outsider)))
	assert.False(t, f.cache.has(cache.UserRoomsKey(bob)))

	_, err = f.rooms.GetByID(ctx, room.ID)
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
	for _, id := range []int64{alice, bob} {
		m := f.rooms.member(room.ID, id)
		assert.False(t, m.IsActive)
		assert.NotNil(t, m.LeftAt, "user %d", id)
	}
	assert.Nil(t, f.rooms.member(other.ID, outsider).LeftAt)
}

func TestGetRoomMembersRequiresActiveMembership(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice, bob, outsider := f.users.add("alice"), f.users.add("bob"), f.users.add("outsider")

	room, err := f.svc.CreateRoom(ctx, alice, "Team", "", 10)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, room.ID, alice, bob)
	require.NoError(t, err)

	_, err = f.svc.GetRoomMembers(ctx, room.ID, outsider)
	assert.ErrorIs(t, err, apperrors.ErrNotMember)
	assert.False(t, f.cache.has(cache.MembersKey(room.ID)))

	members, err := f.svc.GetRoomMembers(ctx, room.ID, bob)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.NoError(t, f.svc.LeaveRoom(ctx, room.ID, bob))
	_, err = f.svc.GetRoomMembers(ctx, room.ID, bob)
	assert.ErrorIs(t, err, apperrors.ErrNotMember, "former members lose access")
}

func TestGetUserRoomsServedFromCache(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice := f.users.add("alice")

	_, err := f.svc.CreateRoom(ctx, alice, "Team", "", 10)
	require.NoError(t, err)

	rooms, err := f.svc.GetUserRooms(ctx, alice)
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	// запись в обход сервиса не видна, пока ключ не инвалидирован
	f.rooms.rooms[rooms[0].ID].Name = "Changed"
	cached, err := f.svc.GetUserRooms(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Team", cached[0].Name)
}

func TestSearchRooms(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice := f.users.add("alice")

	_, err := f.svc.CreateRoom(ctx, alice, "Golang fans", "", 10)
	require.NoError(t, err)
	_, err = f.svc.CreateRoom(ctx, alice, "Cooking", "", 10)
	require.NoError(t, err)

	found, err := f.svc.SearchRooms(ctx, "golang")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Golang fans", found[0].Name)

	empty, err := f.svc.SearchRooms(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetRoomMessagesChronological(t *testing.T) {
	f := newGroupRoomFixture()
	ctx := context.Background()
	alice := f.users.add("alice")

	room, err := f.svc.CreateRoom(ctx, alice, "Team", "", 10)
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three"} {
		_, err := f.svc.SendMessage(ctx, room.ID, alice, text)
		require.NoError(t, err)
	}

	msgs, err := f.svc.GetRoomMessages(ctx, room.ID, alice)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "three", msgs[2].Content)
}

func TestPreviewTruncatesRunes(t *testing.T) {
	long := ""
	for i := 0; i < 150; i++ {
		long += "가"
	}
	p := preview(long)
	assert.Equal(t, 103, len([]rune(p)))
	assert.Equal(t, "short", preview("short"))
}
