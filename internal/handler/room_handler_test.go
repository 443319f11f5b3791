package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-chat/internal/domain"
)

func TestRoomHandler_Create(t *testing.T) {
	router := testRouter(domain.NewRoomRegistry(nil))

	t.Run("success", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rooms", 1, CreateRoomRequest{Name: "general"})

		require.Equal(t, http.StatusCreated, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "general", body["name"])
		assert.Equal(t, float64(1), body["creator_id"])
		assert.Contains(t, body["invite_link"], "chatapp://join/")
	})

	t.Run("private_room_has_no_link", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rooms", 1, CreateRoomRequest{Name: "secret", Private: true})

		require.Equal(t, http.StatusCreated, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["private"])
		assert.NotContains(t, body, "invite_link")
	})

	t.Run("missing_name", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rooms", 1, CreateRoomRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request", decodeBody(t, rec)["kind"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rooms", 0, CreateRoomRequest{Name: "general"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRoomHandler_List(t *testing.T) {
	registry := domain.NewRoomRegistry(nil)
	router := testRouter(registry)
	_, err := registry.CreateRoom(context.Background(), "mine", "", "", false, 1)
	require.NoError(t, err)
	_, err = registry.CreateRoom(context.Background(), "theirs", "", "", false, 2)
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/rooms", 1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rooms := decodeBody(t, rec)["rooms"].([]any)
	require.Len(t, rooms, 1)
	assert.Equal(t, "mine", rooms[0].(map[string]any)["name"])
}

func TestRoomHandler_Get(t *testing.T) {
	registry := domain.NewRoomRegistry(nil)
	router := testRouter(registry)
	room, err := registry.CreateRoom(context.Background(), "general", "", "", false, 1)
	require.NoError(t, err)
	path := fmt.Sprintf("/rooms/%d", room.ID())

	t.Run("member", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, path, 1, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "general", decodeBody(t, rec)["name"])
	})

	t.Run("non_member", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, path, 9, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "not_member", decodeBody(t, rec)["kind"])
	})

	t.Run("unknown_room", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rooms/999", 1, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed_id", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rooms/abc", 1, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRoomHandler_Delete(t *testing.T) {
	registry := domain.NewRoomRegistry(nil)
	router := testRouter(registry)
	room, err := registry.CreateRoom(context.Background(), "doomed", "", "", false, 1)
	require.NoError(t, err)
	path := fmt.Sprintf("/rooms/%d", room.ID())

	t.Run("non_owner", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, path, 2, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("owner", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, path, 1, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, registry.TotalRooms())
	})
}

func TestRoomHandler_Membership(t *testing.T) {
	registry := domain.NewRoomRegistry(nil)
	router := testRouter(registry)
	room, err := registry.CreateRoom(context.Background(), "general", "", "", false, 1)
	require.NoError(t, err)
	members := fmt.Sprintf("/rooms/%d/members", room.ID())

	t.Run("add_member", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, members, 1, AddMemberRequest{UserID: 2})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, room.IsMember(2))
	})

	t.Run("duplicate_member", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, members, 1, AddMemberRequest{UserID: 2})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "user_already_member", decodeBody(t, rec)["kind"])
	})

	t.Run("remove_member", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, members+"/2", 1, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, room.IsMember(2))
	})

	t.Run("remove_owner_forbidden", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, members+"/1", 1, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "cannot_remove_owner", decodeBody(t, rec)["kind"])
	})
}

func TestRoomHandler_JoinByLink(t *testing.T) {
	registry := domain.NewRoomRegistry(nil)
	router := testRouter(registry)
	room, err := registry.CreateRoom(context.Background(), "open", "", "", false, 1)
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rooms/join", 2, JoinByLinkRequest{Link: room.InviteLink()})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, room.IsMember(2))
	})

	t.Run("invalid_link", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rooms/join", 3, JoinByLinkRequest{Link: "chatapp://join/1/bogusbogusbo"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "invalid_invite_link", decodeBody(t, rec)["kind"])
	})
}

func TestRoomHandler_Admins(t *testing.T) {
	registry := domain.NewRoomRegistry(nil)
	router := testRouter(registry)
	room, err := registry.CreateRoom(context.Background(), "general", "", "", false, 1)
	require.NoError(t, err)
	require.NoError(t, room.AddMember(context.Background(), 2, domain.System))
	admins := fmt.Sprintf("/rooms/%d/admins", room.ID())

	t.Run("non_admin_cannot_promote", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, admins, 2, AddMemberRequest{UserID: 2})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("promote", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, admins, 1, AddMemberRequest{UserID: 2})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, room.IsAdmin(2))
	})

	t.Run("demote", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, admins+"/2", 1, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, room.IsAdmin(2))
	})

	t.Run("owner_cannot_be_demoted", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, admins+"/1", 1, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRoomHandler_SetPrivacy(t *testing.T) {
	registry := domain.NewRoomRegistry(nil)
	router := testRouter(registry)
	room, err := registry.CreateRoom(context.Background(), "general", "", "", false, 1)
	require.NoError(t, err)
	path := fmt.Sprintf("/rooms/%d/privacy", room.ID())

	rec := doJSON(t, router, http.MethodPut, path, 1, SetPrivacyRequest{Private: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, room.IsPrivate())
	assert.Empty(t, decodeBody(t, rec)["invite_link"])

	rec = doJSON(t, router, http.MethodPut, path, 1, SetPrivacyRequest{Private: false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["invite_link"])
}

func TestRoomHandler_SetSettings(t *testing.T) {
	registry := domain.NewRoomRegistry(nil)
	router := testRouter(registry)
	room, err := registry.CreateRoom(context.Background(), "general", "", "", false, 1)
	require.NoError(t, err)
	path := fmt.Sprintf("/rooms/%d/settings", room.ID())

	rec := doJSON(t, router, http.MethodPut, path, 1, SetSettingsRequest{OnlyAdminsCanMessage: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, room.OnlyAdminsCanMessage())
}

func TestRoomHandler_EditInfo(t *testing.T) {
	registry := domain.NewRoomRegistry(nil)
	router := testRouter(registry)
	room, err := registry.CreateRoom(context.Background(), "general", "", "", false, 1)
	require.NoError(t, err)
	path := fmt.Sprintf("/rooms/%d/info", room.ID())

	t.Run("success", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, path, 1, EditInfoRequest{Name: "renamed", Bio: "about"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "renamed", room.Name())
		assert.Equal(t, "about", room.Bio())
	})

	t.Run("empty_name", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, path, 1, EditInfoRequest{Bio: "about"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
