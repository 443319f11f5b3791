package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateRoom(t *testing.T) {
	ctx := context.Background()
	reg := NewRoomRegistry(nil)

	t.Run("name_required", func(t *testing.T) {
		_, err := reg.CreateRoom(ctx, "", "", "", false, 1)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("name_bounded", func(t *testing.T) {
		long := make([]byte, MaxRoomNameLength+1)
		for i := range long {
			long[i] = 'a'
		}
		_, err := reg.CreateRoom(ctx, string(long), "", "", false, 1)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("ids_increment", func(t *testing.T) {
		first, err := reg.CreateRoom(ctx, "first", "", "", false, 1)
		require.NoError(t, err)
		second, err := reg.CreateRoom(ctx, "second", "", "", true, 2)
		require.NoError(t, err)

		assert.Equal(t, first.ID()+1, second.ID())
		assert.True(t, first.IsOwner(1))
		assert.True(t, second.IsPrivate())
		assert.Equal(t, 2, reg.TotalRooms())
	})

	t.Run("persist_failure_leaves_no_trace", func(t *testing.T) {
		store := &failStore{saveErr: errors.New("disk full")}
		reg := NewRoomRegistry(store)

		_, err := reg.CreateRoom(ctx, "doomed", "", "", false, 1)
		require.Error(t, err)
		assert.Equal(t, 0, reg.TotalRooms())

		// The failed create does not burn an id.
		store.saveErr = nil
		room, err := reg.CreateRoom(ctx, "ok", "", "", false, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, room.ID())
	})
}

func TestRegistry_DeleteRoom(t *testing.T) {
	ctx := context.Background()
	reg := NewRoomRegistry(nil)
	room, err := reg.CreateRoom(ctx, "doomed", "", "", false, 1)
	require.NoError(t, err)
	require.NoError(t, room.AddMember(ctx, 2, System))
	require.NoError(t, room.AddAdmin(ctx, 2, By(1)))

	t.Run("not_found", func(t *testing.T) {
		err := reg.DeleteRoom(ctx, 99, 1)
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("admin_is_not_enough", func(t *testing.T) {
		err := reg.DeleteRoom(ctx, room.ID(), 2)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("owner_deletes", func(t *testing.T) {
		require.NoError(t, reg.DeleteRoom(ctx, room.ID(), 1))
		_, ok := reg.GetRoomByID(room.ID())
		assert.False(t, ok)
		assert.Equal(t, 0, reg.TotalRooms())
	})

	t.Run("room_ids_never_reused", func(t *testing.T) {
		next, err := reg.CreateRoom(ctx, "after", "", "", false, 1)
		require.NoError(t, err)
		assert.Greater(t, next.ID(), room.ID())
	})

	t.Run("persist_failure_restores_room", func(t *testing.T) {
		store := &failStore{}
		reg := NewRoomRegistry(store)
		room, err := reg.CreateRoom(ctx, "sticky", "", "", false, 1)
		require.NoError(t, err)

		store.deleteRoomErr = errors.New("disk full")
		require.Error(t, reg.DeleteRoom(ctx, room.ID(), 1))
		_, ok := reg.GetRoomByID(room.ID())
		assert.True(t, ok)
	})
}

func TestRegistry_GetRoomByLink(t *testing.T) {
	ctx := context.Background()
	reg := NewRoomRegistry(nil)
	public, err := reg.CreateRoom(ctx, "public", "", "", false, 1)
	require.NoError(t, err)
	_, err = reg.CreateRoom(ctx, "private", "", "", true, 1)
	require.NoError(t, err)

	t.Run("resolves_public_room", func(t *testing.T) {
		got, ok := reg.GetRoomByLink(public.InviteLink())
		require.True(t, ok)
		assert.Equal(t, public.ID(), got.ID())
	})

	t.Run("empty_link_never_matches", func(t *testing.T) {
		_, ok := reg.GetRoomByLink("")
		assert.False(t, ok)
	})

	t.Run("unknown_link", func(t *testing.T) {
		_, ok := reg.GetRoomByLink("chatapp://join/1/nosuchtokenxx")
		assert.False(t, ok)
	})

	t.Run("stale_link_after_going_private", func(t *testing.T) {
		link := public.InviteLink()
		require.NoError(t, public.SetPrivacy(ctx, true, By(1)))
		_, ok := reg.GetRoomByLink(link)
		assert.False(t, ok)
	})
}

func TestRegistry_AddMemberToRoom(t *testing.T) {
	ctx := context.Background()
	reg := NewRoomRegistry(nil)
	public, err := reg.CreateRoom(ctx, "public", "", "", false, 1)
	require.NoError(t, err)
	private, err := reg.CreateRoom(ctx, "private", "", "", true, 1)
	require.NoError(t, err)

	t.Run("room_not_found", func(t *testing.T) {
		err := reg.AddMemberToRoom(ctx, 99, 2, System)
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("anyone_joins_public", func(t *testing.T) {
		require.NoError(t, reg.AddMemberToRoom(ctx, public.ID(), 2, By(2)))
		assert.True(t, public.IsMember(2))
	})

	t.Run("private_requires_admin", func(t *testing.T) {
		err := reg.AddMemberToRoom(ctx, private.ID(), 3, By(2))
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.False(t, private.IsMember(3))
	})

	t.Run("private_admin_adds", func(t *testing.T) {
		require.NoError(t, reg.AddMemberToRoom(ctx, private.ID(), 3, By(1)))
		assert.True(t, private.IsMember(3))
	})

	t.Run("private_system_adds", func(t *testing.T) {
		require.NoError(t, reg.AddMemberToRoom(ctx, private.ID(), 4, System))
		assert.True(t, private.IsMember(4))
	})

	t.Run("duplicate_member", func(t *testing.T) {
		err := reg.AddMemberToRoom(ctx, public.ID(), 2, By(2))
		assert.ErrorIs(t, err, ErrUserAlreadyMember)
	})
}

func TestRegistry_AddMemberByLink(t *testing.T) {
	ctx := context.Background()
	reg := NewRoomRegistry(nil)
	room, err := reg.CreateRoom(ctx, "public", "", "", false, 1)
	require.NoError(t, err)

	t.Run("invalid_link", func(t *testing.T) {
		err := reg.AddMemberByLink(ctx, "chatapp://join/1/bogusbogusbo", 2)
		assert.ErrorIs(t, err, ErrInvalidInviteLink)
	})

	t.Run("joins_by_link", func(t *testing.T) {
		require.NoError(t, reg.AddMemberByLink(ctx, room.InviteLink(), 2))
		assert.True(t, room.IsMember(2))
	})

	t.Run("already_member", func(t *testing.T) {
		err := reg.AddMemberByLink(ctx, room.InviteLink(), 2)
		assert.ErrorIs(t, err, ErrUserAlreadyMember)
	})
}

func TestRegistry_RemoveMemberFromRoom(t *testing.T) {
	ctx := context.Background()
	reg := NewRoomRegistry(nil)
	room, err := reg.CreateRoom(ctx, "room", "", "", false, 1)
	require.NoError(t, err)
	require.NoError(t, room.AddMember(ctx, 2, System))
	require.NoError(t, room.AddMember(ctx, 3, System))

	t.Run("room_not_found", func(t *testing.T) {
		err := reg.RemoveMemberFromRoom(ctx, 99, 2, System)
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("removing_others_requires_admin", func(t *testing.T) {
		err := reg.RemoveMemberFromRoom(ctx, room.ID(), 3, By(2))
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("self_removal_is_always_allowed", func(t *testing.T) {
		require.NoError(t, reg.RemoveMemberFromRoom(ctx, room.ID(), 3, By(3)))
		assert.False(t, room.IsMember(3))
	})

	t.Run("owner_cannot_leave", func(t *testing.T) {
		err := reg.RemoveMemberFromRoom(ctx, room.ID(), 1, By(1))
		assert.ErrorIs(t, err, ErrCannotRemoveOwner)
	})

	t.Run("admin_removes_others", func(t *testing.T) {
		require.NoError(t, reg.RemoveMemberFromRoom(ctx, room.ID(), 2, By(1)))
		assert.False(t, room.IsMember(2))
	})
}

func TestRegistry_UserRooms(t *testing.T) {
	ctx := context.Background()
	reg := NewRoomRegistry(nil)
	a, err := reg.CreateRoom(ctx, "a", "", "", false, 1)
	require.NoError(t, err)
	b, err := reg.CreateRoom(ctx, "b", "", "", false, 2)
	require.NoError(t, err)
	_, err = reg.CreateRoom(ctx, "c", "", "", false, 3)
	require.NoError(t, err)
	require.NoError(t, b.AddMember(ctx, 1, System))

	assert.Equal(t, []int{a.ID(), b.ID()}, reg.UserRooms(1))
	assert.Equal(t, 2, reg.UserRoomCount(1))
	assert.Empty(t, reg.UserRooms(9))
	assert.Equal(t, []int{1, 2, 3}, reg.AllRoomIDs())
	assert.Equal(t, 3, reg.TotalRooms())
}

func TestRegistry_Load(t *testing.T) {
	ctx := context.Background()
	created := time.Now().Add(-time.Hour)
	store := &failStore{
		records: []RoomRecord{
			{
				ID:            4,
				Name:          "restored",
				Private:       false,
				InviteLink:    "chatapp://join/4/abcdefabcdef",
				CreatorID:     1,
				Members:       []int{1, 2},
				Admins:        []int{1},
				Pinned:        []int{2, 9},
				NextMessageID: 2, // stale on purpose, below the log's max id
				Messages: []MessageRecord{
					{ID: 1, SenderID: 1, Content: "hello", CreatedAt: created, ReadBy: []int{1, 2}},
					{ID: 2, SenderID: 2, Content: "hi", CreatedAt: created, ReadBy: []int{2}},
				},
			},
			{
				ID:         7,
				Name:       "hidden",
				Private:    true,
				InviteLink: "chatapp://join/7/leftoverlink",
				CreatorID:  3,
				Members:    []int{3},
				Admins:     nil, // stored state dropped the owner's admin bit
			},
		},
	}

	reg := NewRoomRegistry(store)
	require.NoError(t, reg.Load(ctx))
	assert.Equal(t, 2, reg.TotalRooms())

	room, ok := reg.GetRoomByID(4)
	require.True(t, ok)
	assert.Equal(t, "restored", room.Name())
	assert.Equal(t, []int{1, 2}, room.Members())
	assert.Equal(t, 2, room.TotalMessages())
	assert.Equal(t, []int{2}, room.PinnedMessages(), "dangling pins are dropped on load")
	assert.Equal(t, 1, room.UnreadCount(1))

	// The stale counter is bumped past the highest stored message id.
	msg, err := room.SendMessage(ctx, 1, "new", MessageOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, msg.ID)

	hidden, ok := reg.GetRoomByID(7)
	require.True(t, ok)
	assert.Empty(t, hidden.InviteLink(), "private rooms shed any stored link")
	assert.True(t, hidden.IsAdmin(3), "owner admin status is re-asserted")

	// New ids continue after the highest restored id.
	next, err := reg.CreateRoom(ctx, "next", "", "", false, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, next.ID())
}

func TestRegistry_LoadError(t *testing.T) {
	store := &failStore{loadErr: errors.New("connection refused")}
	reg := NewRoomRegistry(store)
	assert.Error(t, reg.Load(context.Background()))
}
