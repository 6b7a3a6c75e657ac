package models

import (
	"time"

	"github.com/kaiboard/backend/internal/tz"
)

// Team groups users who schedule meetings together.
type Team struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Timezone  tz.Identifier `json:"timezone"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Team roles
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ValidRole reports whether role is one of the team roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// TeamMember is a user's membership in a team, with their profile fields
// joined in.
type TeamMember struct {
	TeamID   string        `json:"team_id"`
	UserID   string        `json:"user_id"`
	Name     string        `json:"name"`
	Timezone tz.Identifier `json:"timezone"`
	Role     string        `json:"role"`
	JoinedAt time.Time     `json:"joined_at"`
}
