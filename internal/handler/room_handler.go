package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"messenger-chat/internal/domain"
	"messenger-chat/internal/middleware"
	"messenger-chat/internal/observability"

	"github.com/go-chi/chi/v5"
)

// RoomHandler handles room and membership endpoints
type RoomHandler struct {
	registry *domain.RoomRegistry
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(registry *domain.RoomRegistry) *RoomHandler {
	return &RoomHandler{registry: registry}
}

// roomView is the JSON shape of a room.
type roomView struct {
	ID                   int    `json:"id"`
	Name                 string `json:"name"`
	Bio                  string `json:"bio"`
	Avatar               string `json:"avatar,omitempty"`
	Private              bool   `json:"private"`
	InviteLink           string `json:"invite_link,omitempty"`
	CreatorID            int    `json:"creator_id"`
	OnlyAdminsCanMessage bool   `json:"only_admins_can_message"`
	Members              []int  `json:"members"`
	Admins               []int  `json:"admins"`
	Pinned               []int  `json:"pinned"`
	TotalMessages        int    `json:"total_messages"`
}

func viewOf(room *domain.Room) roomView {
	return roomView{
		ID:                   room.ID(),
		Name:                 room.Name(),
		Bio:                  room.Bio(),
		Avatar:               room.Avatar(),
		Private:              room.IsPrivate(),
		InviteLink:           room.InviteLink(),
		CreatorID:            room.CreatorID(),
		OnlyAdminsCanMessage: room.OnlyAdminsCanMessage(),
		Members:              room.Members(),
		Admins:               room.Admins(),
		Pinned:               room.PinnedMessages(),
		TotalMessages:        room.TotalMessages(),
	}
}

// CreateRoomRequest represents room creation request
type CreateRoomRequest struct {
	Name    string `json:"name"`
	Bio     string `json:"bio"`
	Avatar  string `json:"avatar"`
	Private bool   `json:"private"`
}

// Create creates a new room with the caller as owner
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	room, err := h.registry.CreateRoom(r.Context(), req.Name, req.Bio, req.Avatar, req.Private, userID)
	observability.ObserveRoomOperation("create_room", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	observability.RoomsActive.Set(float64(h.registry.TotalRooms()))

	observability.FromContext(r.Context()).Info("room created",
		"room_id", room.ID(), "private", room.IsPrivate())
	respondJSON(w, http.StatusCreated, viewOf(room))
}

// List returns the rooms the caller belongs to
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	rooms := []roomView{}
	for _, id := range h.registry.UserRooms(userID) {
		if room, ok := h.registry.GetRoomByID(id); ok {
			rooms = append(rooms, viewOf(room))
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// Get returns one room. Members only.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, room, ok := h.roomFromRequest(w, r)
	if !ok {
		return
	}
	if !room.IsMember(userID) {
		respondError(w, r, domain.ErrNotMember)
		return
	}
	respondJSON(w, http.StatusOK, viewOf(room))
}

// Delete removes a room. Owner only.
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		unauthorized(w)
		return
	}
	roomID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid room id")
		return
	}

	err = h.registry.DeleteRoom(r.Context(), roomID, userID)
	observability.ObserveRoomOperation("delete_room", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	observability.RoomsActive.Set(float64(h.registry.TotalRooms()))
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// AddMemberRequest represents a membership change request
type AddMemberRequest struct {
	UserID int `json:"user_id"`
}

// AddMember adds a user to a room
func (h *RoomHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		unauthorized(w)
		return
	}
	roomID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid room id")
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	err = h.registry.AddMemberToRoom(r.Context(), roomID, req.UserID, domain.By(userID))
	observability.ObserveRoomOperation("add_member", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RemoveMember removes a user from a room
func (h *RoomHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		unauthorized(w)
		return
	}
	roomID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid room id")
		return
	}
	targetID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		badRequest(w, "invalid user id")
		return
	}

	err = h.registry.RemoveMemberFromRoom(r.Context(), roomID, targetID, domain.By(userID))
	observability.ObserveRoomOperation("remove_member", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// JoinByLinkRequest represents an invite-link join request
type JoinByLinkRequest struct {
	Link string `json:"link"`
}

// JoinByLink joins the caller to the public room behind an invite link
func (h *RoomHandler) JoinByLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	var req JoinByLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	err := h.registry.AddMemberByLink(r.Context(), req.Link, userID)
	observability.ObserveRoomOperation("join_by_link", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// AddAdmin grants admin to a member
func (h *RoomHandler) AddAdmin(w http.ResponseWriter, r *http.Request) {
	userID, room, ok := h.roomFromRequest(w, r)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	err := room.AddAdmin(r.Context(), req.UserID, domain.By(userID))
	observability.ObserveRoomOperation("add_admin", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RemoveAdmin revokes a member's admin status
func (h *RoomHandler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	userID, room, ok := h.roomFromRequest(w, r)
	if !ok {
		return
	}
	targetID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		badRequest(w, "invalid user id")
		return
	}

	err = room.RemoveAdmin(r.Context(), targetID, domain.By(userID))
	observability.ObserveRoomOperation("remove_admin", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SetPrivacyRequest represents a privacy change request
type SetPrivacyRequest struct {
	Private bool `json:"private"`
}

// SetPrivacy flips a room between private and public
func (h *RoomHandler) SetPrivacy(w http.ResponseWriter, r *http.Request) {
	userID, room, ok := h.roomFromRequest(w, r)
	if !ok {
		return
	}

	var req SetPrivacyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	err := room.SetPrivacy(r.Context(), req.Private, domain.By(userID))
	observability.ObserveRoomOperation("set_privacy", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"invite_link": room.InviteLink(),
	})
}

// SetSettingsRequest represents a messaging-settings change request
type SetSettingsRequest struct {
	OnlyAdminsCanMessage bool `json:"only_admins_can_message"`
}

// SetSettings toggles the admin-only messaging restriction
func (h *RoomHandler) SetSettings(w http.ResponseWriter, r *http.Request) {
	userID, room, ok := h.roomFromRequest(w, r)
	if !ok {
		return
	}

	var req SetSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	err := room.SetOnlyAdminsCanMessage(r.Context(), req.OnlyAdminsCanMessage, domain.By(userID))
	observability.ObserveRoomOperation("set_settings", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// EditInfoRequest represents a name/bio change request
type EditInfoRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

// EditInfo changes a room's name and bio
func (h *RoomHandler) EditInfo(w http.ResponseWriter, r *http.Request) {
	userID, room, ok := h.roomFromRequest(w, r)
	if !ok {
		return
	}

	var req EditInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	err := room.EditInfo(r.Context(), req.Name, req.Bio, domain.By(userID))
	observability.ObserveRoomOperation("edit_info", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// roomFromRequest resolves the authenticated user and the {id} room.
func (h *RoomHandler) roomFromRequest(w http.ResponseWriter, r *http.Request) (int, *domain.Room, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		unauthorized(w)
		return 0, nil, false
	}
	roomID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid room id")
		return 0, nil, false
	}
	room, ok := h.registry.GetRoomByID(roomID)
	if !ok {
		respondError(w, r, domain.ErrRoomNotFound)
		return 0, nil, false
	}
	return userID, room, true
}
