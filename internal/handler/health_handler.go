package handler

import (
	"database/sql"
	"net/http"
	"time"

	"messenger-chat/internal/observability"
)

// Health reports process liveness
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness, checking the database and exporting pool gauges
func Ready(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"error":  "database unreachable",
				})
				return
			}
			stats := db.Stats()
			observability.DBConnectionsOpen.Set(float64(stats.OpenConnections))
			observability.DBConnectionsInUse.Set(float64(stats.InUse))
			observability.DBConnectionsIdle.Set(float64(stats.Idle))
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"status": "ready",
			"time":   time.Now().UTC(),
		})
	}
}
