// Package models defines the records persisted by the storage package.
package models

import (
	"time"

	"github.com/kaiboard/backend/internal/tz"
)

// User is a person who organizes or attends meetings. Timezone is the
// user's own zone preference and may be unset.
type User struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Timezone  tz.Identifier `json:"timezone"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SavedZone is an extra zone a user keeps handy for comparisons, with the
// country it was picked from.
type SavedZone struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	CountryCode string        `json:"country_code"`
	Timezone    tz.Identifier `json:"timezone"`
	CreatedAt   time.Time     `json:"created_at"`
}
