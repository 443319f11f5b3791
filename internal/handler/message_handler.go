package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"messenger-chat/internal/domain"
	"messenger-chat/internal/observability"

	"github.com/go-chi/chi/v5"
)

// MessageHandler handles message lifecycle endpoints
type MessageHandler struct {
	registry *domain.RoomRegistry
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(registry *domain.RoomRegistry) *MessageHandler {
	return &MessageHandler{registry: registry}
}

// messageView is the JSON shape of a message.
type messageView struct {
	ID         int       `json:"id"`
	SenderID   int       `json:"sender_id"`
	Content    string    `json:"content"`
	Attachment string    `json:"attachment,omitempty"`
	ReplyTo    *int      `json:"reply_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ReadBy     []int     `json:"read_by"`
}

func messageViewOf(msg *domain.Message) messageView {
	return messageView{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		Content:    msg.Content,
		Attachment: msg.Attachment,
		ReplyTo:    msg.ReplyTo,
		CreatedAt:  msg.CreatedAt,
		ReadBy:     msg.ReadBy(),
	}
}

func messageViewsOf(msgs []*domain.Message) []messageView {
	views := make([]messageView, len(msgs))
	for i, msg := range msgs {
		views[i] = messageViewOf(msg)
	}
	return views
}

// SendMessageRequest represents a send request
type SendMessageRequest struct {
	Content    string `json:"content"`
	Attachment string `json:"attachment"`
	ReplyTo    *int   `json:"reply_to"`
}

// Send appends a new message to the room's log
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, room, ok := h.roomFromRequest(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	msg, err := room.SendMessage(r.Context(), userID, req.Content, domain.MessageOptions{
		Attachment: req.Attachment,
		ReplyTo:    req.ReplyTo,
	})
	observability.ObserveRoomOperation("send_message", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	observability.MessagesSentTotal.Inc()

	respondJSON(w, http.StatusCreated, messageViewOf(msg))
}

// List returns the room's full log. Members only.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, room, ok := h.roomFromRequest(w, r)
	if !ok {
		return
	}
	if !room.IsMember(userID) {
		respondError(w, r, domain.ErrNotMember)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"messages": messageViewsOf(room.Messages()),
	})
}

// EditMessageRequest represents an edit request
type EditMessageRequest struct {
	Content string `json:"content"`
}

// Edit replaces a message's content within the edit window
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, room, messageID, ok := h.messageFromRequest(w, r)
	if !ok {
		return
	}

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	err := room.EditMessage(r.Context(), messageID, userID, req.Content)
	observability.ObserveRoomOperation("edit_message", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Delete hard-deletes a message
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, room, messageID, ok := h.messageFromRequest(w, r)
	if !ok {
		return
	}

	err := room.DeleteMessage(r.Context(), messageID, userID)
	observability.ObserveRoomOperation("delete_message", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// MarkRead adds the caller to a message's read set
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, room, messageID, ok := h.messageFromRequest(w, r)
	if !ok {
		return
	}

	err := room.MarkMessageAsRead(r.Context(), messageID, userID)
	observability.ObserveRoomOperation("mark_read", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Pin appends a message to the room's pinned list
func (h *MessageHandler) Pin(w http.ResponseWriter, r *http.Request) {
	userID, room, messageID, ok := h.messageFromRequest(w, r)
	if !ok {
		return
	}

	err := room.PinMessage(r.Context(), userID, messageID)
	observability.ObserveRoomOperation("pin_message", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ForwardRequest represents a forward request
type ForwardRequest struct {
	TargetRoomID int `json:"target_room_id"`
}

// Forward copies a message into another room via that room's send path
func (h *MessageHandler) Forward(w http.ResponseWriter, r *http.Request) {
	userID, room, messageID, ok := h.messageFromRequest(w, r)
	if !ok {
		return
	}

	var req ForwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	target, found := h.registry.GetRoomByID(req.TargetRoomID)
	if !found {
		respondError(w, r, domain.ErrRoomNotFound)
		return
	}

	msg, err := room.ForwardMessage(r.Context(), messageID, userID, target)
	observability.ObserveRoomOperation("forward_message", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, messageViewOf(msg))
}

// Search scans the room's log for a keyword. Members only.
func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, room, ok := h.roomFromRequest(w, r)
	if !ok {
		return
	}
	if !room.IsMember(userID) {
		respondError(w, r, domain.ErrNotMember)
		return
	}

	keyword := r.URL.Query().Get("q")
	respondJSON(w, http.StatusOK, map[string]any{
		"messages": messageViewsOf(room.SearchMessages(keyword)),
	})
}

// Unread returns the caller's unread messages and count
func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	userID, room, ok := h.roomFromRequest(w, r)
	if !ok {
		return
	}
	if !room.IsMember(userID) {
		respondError(w, r, domain.ErrNotMember)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    room.UnreadCount(userID),
		"messages": messageViewsOf(room.UnreadMessages(userID)),
	})
}

// Pins lists the room's pinned message ids. Members only.
func (h *MessageHandler) Pins(w http.ResponseWriter, r *http.Request) {
	userID, room, ok := h.roomFromRequest(w, r)
	if !ok {
		return
	}
	if !room.IsMember(userID) {
		respondError(w, r, domain.ErrNotMember)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"pinned": room.PinnedMessages()})
}

func (h *MessageHandler) roomFromRequest(w http.ResponseWriter, r *http.Request) (int, *domain.Room, bool) {
	userID, ok := middlewareUserID(w, r)
	if !ok {
		return 0, nil, false
	}
	roomID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid room id")
		return 0, nil, false
	}
	room, found := h.registry.GetRoomByID(roomID)
	if !found {
		respondError(w, r, domain.ErrRoomNotFound)
		return 0, nil, false
	}
	return userID, room, true
}

func (h *MessageHandler) messageFromRequest(w http.ResponseWriter, r *http.Request) (int, *domain.Room, int, bool) {
	userID, room, ok := h.roomFromRequest(w, r)
	if !ok {
		return 0, nil, 0, false
	}
	messageID, err := strconv.Atoi(chi.URLParam(r, "messageID"))
	if err != nil {
		badRequest(w, "invalid message id")
		return 0, nil, 0, false
	}
	return userID, room, messageID, true
}
