// Package handlers implements the REST API endpoints.
package handlers

import (
	"net/http"
	"time"

	"github.com/kaiboard/backend/internal/meeting"
	"github.com/kaiboard/backend/internal/storage"
	"github.com/kaiboard/backend/internal/storage/models"
	"github.com/kaiboard/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck reports whether the database answers.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	UsersCount        int    `json:"users_count"`
	TeamsCount        int    `json:"teams_count"`
	ScheduledMeetings int    `json:"scheduled_meetings"`
	SchemaVersion     int    `json:"schema_version"`
	ConnectedClients  int    `json:"connected_clients"`
	NextSweepAt       string `json:"next_sweep_at,omitempty"`
	ServerTime        string `json:"server_time"`
}

// Status reports record counts and scheduler state. scheduler may be nil.
func Status(db *storage.DB, hub *websocket.Hub, scheduler *meeting.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var resp StatusResponse
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&resp.UsersCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM teams").Scan(&resp.TeamsCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM meetings WHERE status = ?", models.MeetingStatusScheduled).
			Scan(&resp.ScheduledMeetings)
		resp.SchemaVersion, _ = db.SchemaVersion(ctx)

		if hub != nil {
			resp.ConnectedClients = hub.ClientCount()
		}
		if scheduler != nil {
			if next := scheduler.NextRun(); !next.IsZero() {
				resp.NextSweepAt = next.UTC().Format(time.RFC3339)
			}
		}
		resp.ServerTime = time.Now().UTC().Format(time.RFC3339)

		writeJSON(w, http.StatusOK, resp)
	}
}
