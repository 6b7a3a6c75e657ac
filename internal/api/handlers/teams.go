package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/kaiboard/backend/internal/api/middleware"
	"github.com/kaiboard/backend/internal/storage"
	"github.com/kaiboard/backend/internal/storage/models"
)

// TeamRequest is the body for creating or editing a team.
type TeamRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// MemberRequest is the body for adding a member or changing a role.
type MemberRequest struct {
	Role string `json:"role"`
}

// TeamResponse is a team with its members.
type TeamResponse struct {
	models.Team
	Members []models.TeamMember `json:"members"`
}

// teamRole returns the acting user's role in the team, writing a 404 when
// the team does not exist.
func teamRole(w http.ResponseWriter, r *http.Request, teams *storage.TeamRepository, teamID string) (string, bool) {
	t, err := teams.GetByID(r.Context(), teamID)
	if err != nil {
		writeFailure(w, r, err, "Failed to query team")
		return "", false
	}
	if t == nil {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Team not found")
		return "", false
	}

	role, err := teams.MemberRole(r.Context(), teamID, middleware.UserID(r.Context()))
	if err != nil {
		writeFailure(w, r, err, "Failed to query team membership")
		return "", false
	}
	return role, true
}

func canManage(role string) bool {
	return role == models.RoleOwner || role == models.RoleAdmin
}

// ListTeams returns all teams, or only the acting user's with ?mine=true.
func ListTeams(teams *storage.TeamRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := ""
		if r.URL.Query().Get("mine") == "true" {
			if userID = middleware.UserID(r.Context()); userID == "" {
				middleware.WriteError(w, http.StatusUnauthorized, middleware.ErrUnauthorized, "The "+middleware.UserIDHeader+" header is required")
				return
			}
		}

		list, err := teams.List(r.Context(), userID)
		if err != nil {
			writeFailure(w, r, err, "Failed to query teams")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// CreateTeam creates a team owned by the acting user.
func CreateTeam(teams *storage.TeamRepository, users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TeamRequest
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

		ownerID := middleware.UserID(r.Context())
		owner, err := users.GetByID(r.Context(), ownerID)
		if err != nil {
			writeFailure(w, r, err, "Failed to query user")
			return
		}
		if owner == nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Acting user does not exist")
			return
		}

		t := &models.Team{Name: name, Timezone: zone}
		if err := teams.Create(r.Context(), t, ownerID); err != nil {
			writeFailure(w, r, err, "Failed to create team")
			return
		}

		members, err := teams.ListMembers(r.Context(), t.ID)
		if err != nil {
			writeFailure(w, r, err, "Failed to query team members")
			return
		}
		writeJSON(w, http.StatusCreated, TeamResponse{Team: *t, Members: members})
	}
}

// GetTeam returns a team with its members.
func GetTeam(teams *storage.TeamRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		t, err := teams.GetByID(r.Context(), id)
		if err != nil {
			writeFailure(w, r, err, "Failed to query team")
			return
		}
		if t == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Team not found")
			return
		}

		members, err := teams.ListMembers(r.Context(), id)
		if err != nil {
			writeFailure(w, r, err, "Failed to query team members")
			return
		}
		writeJSON(w, http.StatusOK, TeamResponse{Team: *t, Members: members})
	}
}

// UpdateTeam renames a team or changes its default zone. Owners and
// admins only.
func UpdateTeam(teams *storage.TeamRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		role, ok := teamRole(w, r, teams, id)
		if !ok {
			return
		}
		if !canManage(role) {
			middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Only team owners and admins can edit the team")
			return
		}

		var req TeamRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		t, err := teams.GetByID(r.Context(), id)
		if err != nil || t == nil {
			writeFailure(w, r, storage.ErrNotFound, "Team not found")
			return
		}
		if name := strings.TrimSpace(req.Name); name != "" {
			t.Name = name
		}
		if req.Timezone != "" {
			if t.Timezone, err = parseZone(req.Timezone); err != nil {
				writeFailure(w, r, err, "Invalid timezone")
				return
			}
		}

		if err := teams.Update(r.Context(), t); err != nil {
			writeFailure(w, r, err, "Failed to update team")
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// DeleteTeam removes a team and its meetings. Owners only.
func DeleteTeam(teams *storage.TeamRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		role, ok := teamRole(w, r, teams, id)
		if !ok {
			return
		}
		if role != models.RoleOwner {
			middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Only the team owner can delete the team")
			return
		}

		if err := teams.Delete(r.Context(), id); err != nil {
			writeFailure(w, r, err, "Failed to delete team")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListMembers returns a team's members with their current zones.
func ListMembers(teams *storage.TeamRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		t, err := teams.GetByID(r.Context(), id)
		if err != nil {
			writeFailure(w, r, err, "Failed to query team")
			return
		}
		if t == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Team not found")
			return
		}

		members, err := teams.ListMembers(r.Context(), id)
		if err != nil {
			writeFailure(w, r, err, "Failed to query team members")
			return
		}
		writeJSON(w, http.StatusOK, members)
	}
}

// SetMember adds a user to a team or changes their role. Owners and
// admins only; only an owner can grant ownership.
func SetMember(teams *storage.TeamRepository, users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		role, ok := teamRole(w, r, teams, vars["id"])
		if !ok {
			return
		}
		if !canManage(role) {
			middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Only team owners and admins can manage members")
			return
		}

		var req MemberRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Role == "" {
			req.Role = models.RoleMember
		}
		if !models.ValidRole(req.Role) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Role must be owner, admin or member")
			return
		}
		if req.Role == models.RoleOwner && role != models.RoleOwner {
			middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Only an owner can grant ownership")
			return
		}

		u, err := users.GetByID(r.Context(), vars["userID"])
		if err != nil {
			writeFailure(w, r, err, "Failed to query user")
			return
		}
		if u == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
			return
		}

		if err := teams.SetMember(r.Context(), vars["id"], u.ID, req.Role); err != nil {
			writeFailure(w, r, err, "Failed to save team member")
			return
		}

		members, err := teams.ListMembers(r.Context(), vars["id"])
		if err != nil {
			writeFailure(w, r, err, "Failed to query team members")
			return
		}
		writeJSON(w, http.StatusOK, members)
	}
}

// RemoveMember takes a user out of a team. Members may leave on their
// own; removing someone else needs owner or admin rights, and admins
// cannot remove owners.
func RemoveMember(teams *storage.TeamRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		role, ok := teamRole(w, r, teams, vars["id"])
		if !ok {
			return
		}

		if vars["userID"] != middleware.UserID(r.Context()) {
			if !canManage(role) {
				middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Only team owners and admins can remove members")
				return
			}
			target, err := teams.MemberRole(r.Context(), vars["id"], vars["userID"])
			if err != nil {
				writeFailure(w, r, err, "Failed to query team membership")
				return
			}
			if target == models.RoleOwner && role != models.RoleOwner {
				middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Admins cannot remove an owner")
				return
			}
		}

		if err := teams.RemoveMember(r.Context(), vars["id"], vars["userID"]); err != nil {
			writeFailure(w, r, err, "Failed to remove team member")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
