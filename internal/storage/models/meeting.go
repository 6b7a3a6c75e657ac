package models

import (
	"time"

	"github.com/kaiboard/backend/internal/tz"
)

// Meeting is a scheduled meeting. StartsAt and EndsAt keep the canonical
// instant exactly as composed in the organizer's zone.
type Meeting struct {
	ID            string        `json:"id"`
	TeamID        string        `json:"team_id,omitempty"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	OrganizerID   string        `json:"organizer_id,omitempty"`
	OrganizerZone tz.Identifier `json:"organizer_zone"`
	StartsAt      tz.Instant    `json:"starts_at"`
	EndsAt        tz.Instant    `json:"ends_at"`
	Status        string        `json:"status"`
	RemindedAt    *time.Time    `json:"reminded_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	Participants []MeetingParticipant `json:"participants"`
}

// Meeting statuses
const (
	MeetingStatusScheduled = "scheduled"
	MeetingStatusCompleted = "completed"
	MeetingStatusCancelled = "cancelled"
)

// MeetingParticipant is an attendee. Name and Timezone are read from the
// user's current profile, never copied onto the meeting.
type MeetingParticipant struct {
	UserID   string        `json:"user_id"`
	Name     string        `json:"name"`
	Timezone tz.Identifier `json:"timezone"`
	Position int           `json:"position"`
}

// PreviewParticipants converts attendees to preview inputs, keeping order.
func (m *Meeting) PreviewParticipants() []tz.Participant {
	out := make([]tz.Participant, 0, len(m.Participants))
	for _, p := range m.Participants {
		out = append(out, tz.Participant{ID: p.UserID, DisplayName: p.Name, Zone: p.Timezone})
	}
	return out
}

// ParticipantIDs returns attendee user IDs in order.
func (m *Meeting) ParticipantIDs() []string {
	ids := make([]string, 0, len(m.Participants))
	for _, p := range m.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}
