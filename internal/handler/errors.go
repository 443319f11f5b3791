package handler

import (
	"encoding/json"
	"net/http"

	"messenger-chat/internal/domain"
	"messenger-chat/internal/middleware"
	"messenger-chat/internal/observability"
)

// statusForKind maps the engine's error taxonomy onto HTTP statuses.
var statusForKind = map[domain.Kind]int{
	domain.KindPermissionDenied:        http.StatusForbidden,
	domain.KindNotMember:               http.StatusForbidden,
	domain.KindNotAdmin:                http.StatusForbidden,
	domain.KindNotOwner:                http.StatusForbidden,
	domain.KindCannotRemoveOwner:       http.StatusForbidden,
	domain.KindForwardNotMember:        http.StatusForbidden,
	domain.KindForwardPermissionDenied: http.StatusForbidden,
	domain.KindUserAlreadyMember:       http.StatusConflict,
	domain.KindMessageAlreadyPinned:    http.StatusConflict,
	domain.KindUserNotMember:           http.StatusNotFound,
	domain.KindRoomNotFound:            http.StatusNotFound,
	domain.KindMessageNotFound:         http.StatusNotFound,
	domain.KindForwardMessageNotFound:  http.StatusNotFound,
	domain.KindReplyMessageNotFound:    http.StatusNotFound,
	domain.KindInvalidInviteLink:       http.StatusNotFound,
	domain.KindMessageEmpty:            http.StatusBadRequest,
	domain.KindMessageTooLong:          http.StatusBadRequest,
	domain.KindInvalidRequest:          http.StatusBadRequest,
	domain.KindEditTimeout:             http.StatusUnprocessableEntity,
	domain.KindAttachmentTooLarge:      http.StatusRequestEntityTooLarge,
	domain.KindInvalidAttachmentType:   http.StatusUnsupportedMediaType,
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError translates an engine error into a JSON error response.
// Errors outside the taxonomy are infrastructure failures and become 500s.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	if kind, ok := domain.KindOf(err); ok {
		respondJSON(w, statusForKind[kind], map[string]string{
			"error": err.Error(),
			"kind":  string(kind),
		})
		return
	}
	observability.FromContext(r.Context()).Error("internal error",
		"path", r.URL.Path, "error", err.Error())
	respondJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func unauthorized(w http.ResponseWriter) {
	respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "user not authenticated"})
}

// middlewareUserID pulls the authenticated user id off the context, writing
// a 401 if it is missing.
func middlewareUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		unauthorized(w)
	}
	return userID, ok
}
