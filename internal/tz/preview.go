package tz

import (
	"fmt"
)

// UnknownZonePlaceholder is shown on preview rows whose zone did not resolve.
const UnknownZonePlaceholder = "unknown timezone"

// Participant is one attendee as seen by the preview builder. A zero Zone
// means the participant has no saved timezone.
type Participant struct {
	ID          string
	DisplayName string
	Zone        Identifier
}

// Preview is the per-participant view of a meeting instant. It is built
// fresh on every request and never persisted.
type Preview struct {
	ParticipantID string     `json:"participant_id"`
	DisplayName   string     `json:"display_name"`
	Zone          Identifier `json:"zone"`
	LocalDate     string     `json:"local_date"`
	LocalTime     string     `json:"local_time"`
	DayShift      DayShift   `json:"day_shift"`

	// Unresolved rows are projected in UTC and carry a warning.
	Unresolved bool   `json:"unresolved,omitempty"`
	Warning    string `json:"warning,omitempty"`
}

// BuildPreviews projects instant into every participant's zone and
// classifies each local date against the organizer's local date.
//
// Output order matches input order. Participants without a zone are shown
// in UTC. A participant whose zone cannot be resolved gets a UTC row
// marked Unresolved; the other rows are unaffected. An organizer zone that
// cannot be resolved is framed in UTC as well.
func BuildPreviews(instant Instant, organizerZone Identifier, participants []Participant) []Preview {
	previews := make([]Preview, 0, len(participants))
	if len(participants) == 0 {
		return previews
	}

	organizer, _ := ProjectOrUTC(instant, organizerZone)
	organizerDate, _ := ParseDate(organizer.Date)

	for _, p := range participants {
		zone := p.Zone
		if zone.IsZero() {
			zone = UTC
		}

		row := Preview{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Zone:          zone,
		}

		local, err := ProjectOrUTC(instant, zone)
		if err != nil {
			row.Unresolved = true
			row.Warning = fmt.Sprintf("%s %q, showing UTC", UnknownZonePlaceholder, zone.String())
		}
		row.LocalDate = local.Date
		row.LocalTime = local.Time

		participantDate, _ := ParseDate(local.Date)
		row.DayShift = classifyDates(organizerDate, participantDate)

		previews = append(previews, row)
	}

	return previews
}
