// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kaiboard/backend/internal/api/handlers"
	"github.com/kaiboard/backend/internal/api/middleware"
	"github.com/kaiboard/backend/internal/calendar"
	"github.com/kaiboard/backend/internal/meeting"
	"github.com/kaiboard/backend/internal/storage"
	"github.com/kaiboard/backend/internal/websocket"
)

// Services are the dependencies the routes are built from. Hub,
// Broadcaster, Scheduler and Fetcher may be nil.
type Services struct {
	DB          *storage.DB
	Users       *storage.UserRepository
	Teams       *storage.TeamRepository
	Settings    *storage.SettingsRepository
	Meetings    *meeting.Service
	Scheduler   *meeting.Scheduler
	Hub         *websocket.Hub
	Broadcaster *websocket.EventBroadcaster

	// Fetcher enables importing from a feed URL.
	Fetcher *calendar.Fetcher

	// StaticDir is served at / when set.
	StaticDir string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(s Services) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)
	r.Use(middleware.Identity)

	api := r.PathPrefix("/api").Subrouter()
	auth := middleware.RequireUser

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(s.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(s.DB, s.Hub, s.Scheduler)).Methods("GET")

	if s.Hub != nil {
		api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub)).Methods("GET")
	}

	// Timezone endpoints
	api.HandleFunc("/timezones", handlers.ListTimezones()).Methods("GET")
	api.HandleFunc("/timezones/normalize", handlers.NormalizeTimezone()).Methods("GET")
	api.HandleFunc("/timezones/project", handlers.ProjectInstant()).Methods("GET")

	// User endpoints
	api.HandleFunc("/users", handlers.ListUsers(s.Users)).Methods("GET")
	api.HandleFunc("/users", handlers.CreateUser(s.Users)).Methods("POST")
	api.HandleFunc("/users/{id}", handlers.GetUser(s.Users)).Methods("GET")
	api.HandleFunc("/users/{id}", auth(handlers.UpdateUser(s.Users, s.Broadcaster))).Methods("PUT")
	api.HandleFunc("/users/{id}", auth(handlers.DeleteUser(s.Users))).Methods("DELETE")
	api.HandleFunc("/users/{id}/timezone", auth(handlers.UpdateUserTimezone(s.Users, s.Broadcaster))).Methods("PUT")
	api.HandleFunc("/users/{id}/zones", handlers.ListSavedZones(s.Users)).Methods("GET")
	api.HandleFunc("/users/{id}/zones", auth(handlers.AddSavedZone(s.Users))).Methods("POST")
	api.HandleFunc("/users/{id}/zones/{zoneID}", auth(handlers.DeleteSavedZone(s.Users))).Methods("DELETE")

	// Team endpoints
	api.HandleFunc("/teams", handlers.ListTeams(s.Teams)).Methods("GET")
	api.HandleFunc("/teams", auth(handlers.CreateTeam(s.Teams, s.Users))).Methods("POST")
	api.HandleFunc("/teams/{id}", handlers.GetTeam(s.Teams)).Methods("GET")
	api.HandleFunc("/teams/{id}", auth(handlers.UpdateTeam(s.Teams))).Methods("PUT")
	api.HandleFunc("/teams/{id}", auth(handlers.DeleteTeam(s.Teams))).Methods("DELETE")
	api.HandleFunc("/teams/{id}/members", handlers.ListMembers(s.Teams)).Methods("GET")
	api.HandleFunc("/teams/{id}/members/{userID}", auth(handlers.SetMember(s.Teams, s.Users))).Methods("PUT")
	api.HandleFunc("/teams/{id}/members/{userID}", auth(handlers.RemoveMember(s.Teams))).Methods("DELETE")

	// Meeting endpoints. Fixed paths go before {id}.
	api.HandleFunc("/meetings", handlers.ListMeetings(s.Meetings)).Methods("GET")
	api.HandleFunc("/meetings", auth(handlers.CreateMeeting(s.Meetings, s.Teams))).Methods("POST")
	api.HandleFunc("/meetings/preview", handlers.DraftPreview(s.Meetings)).Methods("POST")
	api.HandleFunc("/meetings/import", auth(handlers.ImportMeetings(s.Meetings, s.Teams, s.Fetcher))).Methods("POST")
	api.HandleFunc("/meetings/{id}.ics", handlers.ExportMeeting(s.Meetings)).Methods("GET")
	api.HandleFunc("/meetings/{id}", handlers.GetMeeting(s.Meetings)).Methods("GET")
	api.HandleFunc("/meetings/{id}/previews", handlers.GetMeeting(s.Meetings)).Methods("GET")
	api.HandleFunc("/meetings/{id}", auth(handlers.RescheduleMeeting(s.Meetings, s.Teams))).Methods("PUT")
	api.HandleFunc("/meetings/{id}", auth(handlers.DeleteMeeting(s.Meetings, s.Teams))).Methods("DELETE")

	// Settings endpoints
	api.HandleFunc("/settings", handlers.GetSettings(s.Settings)).Methods("GET")
	api.HandleFunc("/settings", auth(handlers.UpdateSettings(s.Settings))).Methods("PUT")

	if s.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
	}

	return r
}
