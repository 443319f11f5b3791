package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"messenger-chat/internal/domain"
	"messenger-chat/internal/middleware"
)

// testRouter mounts the room and message routes behind a middleware that
// reads the authenticated user from the X-Test-User header.
func testRouter(registry *domain.RoomRegistry) *chi.Mux {
	roomHandler := NewRoomHandler(registry)
	messageHandler := NewMessageHandler(registry)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if v := req.Header.Get("X-Test-User"); v != "" {
				if id, err := strconv.Atoi(v); err == nil {
					req = req.WithContext(middleware.WithUserID(req.Context(), id))
				}
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/rooms", roomHandler.List)
	r.Post("/rooms", roomHandler.Create)
	r.Post("/rooms/join", roomHandler.JoinByLink)
	r.Get("/rooms/{id}", roomHandler.Get)
	r.Delete("/rooms/{id}", roomHandler.Delete)
	r.Put("/rooms/{id}/info", roomHandler.EditInfo)
	r.Put("/rooms/{id}/privacy", roomHandler.SetPrivacy)
	r.Put("/rooms/{id}/settings", roomHandler.SetSettings)
	r.Post("/rooms/{id}/members", roomHandler.AddMember)
	r.Delete("/rooms/{id}/members/{userID}", roomHandler.RemoveMember)
	r.Post("/rooms/{id}/admins", roomHandler.AddAdmin)
	r.Delete("/rooms/{id}/admins/{userID}", roomHandler.RemoveAdmin)

	r.Get("/rooms/{id}/messages", messageHandler.List)
	r.Post("/rooms/{id}/messages", messageHandler.Send)
	r.Get("/rooms/{id}/messages/search", messageHandler.Search)
	r.Get("/rooms/{id}/messages/unread", messageHandler.Unread)
	r.Put("/rooms/{id}/messages/{messageID}", messageHandler.Edit)
	r.Delete("/rooms/{id}/messages/{messageID}", messageHandler.Delete)
	r.Post("/rooms/{id}/messages/{messageID}/read", messageHandler.MarkRead)
	r.Post("/rooms/{id}/messages/{messageID}/pin", messageHandler.Pin)
	r.Post("/rooms/{id}/messages/{messageID}/forward", messageHandler.Forward)
	r.Get("/rooms/{id}/pins", messageHandler.Pins)

	return r
}

// doJSON performs a request as userID (0 means unauthenticated) and returns
// the recorder.
func doJSON(t *testing.T, router http.Handler, method, path string, userID int, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.Itoa(userID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}
