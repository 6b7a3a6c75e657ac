package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kaiboard/backend/internal/api/middleware"
	"github.com/kaiboard/backend/internal/storage"
	"github.com/kaiboard/backend/internal/storage/models"
	"github.com/kaiboard/backend/internal/tz"
	"github.com/kaiboard/backend/internal/websocket"
)

// UserRequest is the body for creating or editing a user. Timezone is
// optional; when present it must be a valid offset code or region.
type UserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
}

// TimezoneRequest is the body for changing a user's zone.
type TimezoneRequest struct {
	Timezone string `json:"timezone"`
}

// SavedZoneRequest is the body for saving an extra zone.
type SavedZoneRequest struct {
	CountryCode string `json:"country_code"`
	Timezone    string `json:"timezone"`
}

// requireSelf allows a request only when the acting user is id.
func requireSelf(w http.ResponseWriter, r *http.Request, id string) bool {
	if middleware.UserID(r.Context()) != id {
		middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Users can only change their own profile")
		return false
	}
	return true
}

// ListUsers returns all users.
func ListUsers(users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.List(r.Context())
		if err != nil {
			writeFailure(w, r, err, "Failed to query users")
			return
		}
		if list == nil {
			list = []models.User{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// CreateUser registers a user.
func CreateUser(users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UserRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Name is required")
			return
		}
		zone, err := parseZone(req.Timezone)
		if err != nil {
			writeFailure(w, r, err, "Invalid timezone")
			return
		}

		u := &models.User{Name: name, Email: strings.TrimSpace(req.Email), Timezone: zone}
		if err := users.Create(r.Context(), u); err != nil {
			writeFailure(w, r, err, "Failed to create user")
			return
		}

		writeJSON(w, http.StatusCreated, u)
	}
}

// GetUser returns a single user by ID.
func GetUser(users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeFailure(w, r, err, "Failed to query user")
			return
		}
		if u == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// UpdateUser edits the acting user's profile. Empty fields keep their
// current value.
func UpdateUser(users *storage.UserRepository, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if !requireSelf(w, r, id) {
			return
		}

		var req UserRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		u, err := users.GetByID(r.Context(), id)
		if err != nil {
			writeFailure(w, r, err, "Failed to query user")
			return
		}
		if u == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
			return
		}

		previous := u.Timezone
		if name := strings.TrimSpace(req.Name); name != "" {
			u.Name = name
		}
		if email := strings.TrimSpace(req.Email); email != "" {
			u.Email = email
		}
		if req.Timezone != "" {
			if u.Timezone, err = parseZone(req.Timezone); err != nil {
				writeFailure(w, r, err, "Invalid timezone")
				return
			}
		}

		if err := users.Update(r.Context(), u); err != nil {
			writeFailure(w, r, err, "Failed to update user")
			return
		}
		announceZoneChange(r, broadcaster, u.ID, previous, u.Timezone)

		writeJSON(w, http.StatusOK, u)
	}
}

// UpdateUserTimezone changes the acting user's zone. Stored meetings keep
// their instants; every preview computed afterwards uses the new zone.
func UpdateUserTimezone(users *storage.UserRepository, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if !requireSelf(w, r, id) {
			return
		}

		var req TimezoneRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		zone, err := parseZone(req.Timezone)
		if err != nil {
			writeFailure(w, r, err, "Invalid timezone")
			return
		}
		if zone.IsZero() {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Timezone is required")
			return
		}

		u, err := users.GetByID(r.Context(), id)
		if err != nil {
			writeFailure(w, r, err, "Failed to query user")
			return
		}
		if u == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
			return
		}

		if err := users.UpdateTimezone(r.Context(), id, zone); err != nil {
			writeFailure(w, r, err, "Failed to update timezone")
			return
		}
		announceZoneChange(r, broadcaster, id, u.Timezone, zone)

		u.Timezone = zone
		writeJSON(w, http.StatusOK, u)
	}
}

func announceZoneChange(r *http.Request, broadcaster *websocket.EventBroadcaster, userID string, previous, current tz.Identifier) {
	if previous == current {
		return
	}
	zerolog.Ctx(r.Context()).Info().
		Str("user_id", userID).
		Str("from", previous.String()).
		Str("to", current.String()).
		Msg("user timezone changed")
	if broadcaster != nil {
		broadcaster.TimezoneChanged(userID, previous, current)
	}
}

// DeleteUser removes the acting user.
func DeleteUser(users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if !requireSelf(w, r, id) {
			return
		}
		if err := users.Delete(r.Context(), id); err != nil {
			writeFailure(w, r, err, "Failed to delete user")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListSavedZones returns a user's saved zones.
func ListSavedZones(users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zones, err := users.ListZones(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeFailure(w, r, err, "Failed to query saved zones")
			return
		}
		if zones == nil {
			zones = []models.SavedZone{}
		}
		writeJSON(w, http.StatusOK, zones)
	}
}

// AddSavedZone saves an extra zone for the acting user.
func AddSavedZone(users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if !requireSelf(w, r, id) {
			return
		}

		var req SavedZoneRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		zone, err := parseZone(req.Timezone)
		if err != nil {
			writeFailure(w, r, err, "Invalid timezone")
			return
		}
		if zone.IsZero() {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Timezone is required")
			return
		}

		z := &models.SavedZone{
			UserID:      id,
			CountryCode: strings.ToUpper(strings.TrimSpace(req.CountryCode)),
			Timezone:    zone,
		}
		if err := users.AddZone(r.Context(), z); err != nil {
			writeFailure(w, r, err, "Failed to save zone")
			return
		}
		writeJSON(w, http.StatusCreated, z)
	}
}

// DeleteSavedZone removes one of the acting user's saved zones.
func DeleteSavedZone(users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		if !requireSelf(w, r, vars["id"]) {
			return
		}
		if err := users.DeleteZone(r.Context(), vars["id"], vars["zoneID"]); err != nil {
			writeFailure(w, r, err, "Failed to delete saved zone")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
