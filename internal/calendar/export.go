// Package calendar converts meetings to and from iCalendar data.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/kaiboard/backend/internal/storage/models"
	"github.com/kaiboard/backend/internal/tz"
)

const productID = "-//Kaiboard//Meetings//EN"

// Export builds a VCALENDAR holding one VEVENT for m. Times are written in
// UTC so every client renders them in its own zone; the description lists
// each attendee's local time as previewed.
func Export(m *models.Meeting, previews []tz.Preview, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, m.ID+"@kaiboard")
	event.Props.SetText(ical.PropSummary, m.Title)
	event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, m.StartsAt.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, m.EndsAt.UTC())

	status := "CONFIRMED"
	if m.Status == models.MeetingStatusCancelled {
		status = "CANCELLED"
	}
	event.Props.SetText(ical.PropStatus, status)

	if desc := describe(m, previews); desc != "" {
		event.Props.SetText(ical.PropDescription, desc)
	}

	cal.Children = append(cal.Children, event.Component)
	return cal
}

// Encode writes cal in iCalendar text form.
func Encode(w io.Writer, cal *ical.Calendar) error {
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

func describe(m *models.Meeting, previews []tz.Preview) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(m.Description))

	organizer, err := tz.ProjectOrUTC(m.StartsAt, m.OrganizerZone)
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	zone := m.OrganizerZone.String()
	if err != nil {
		zone = tz.UnknownZonePlaceholder + ", shown in UTC"
	}
	fmt.Fprintf(&b, "Organizer time: %s %s (%s)", organizer.Date, organizer.Time, zone)

	if len(previews) == 0 {
		return b.String()
	}

	b.WriteString("\n\nLocal times:")
	for _, p := range previews {
		name := p.DisplayName
		if name == "" {
			name = p.ParticipantID
		}
		label := p.Zone.String()
		if p.Unresolved {
			label = tz.UnknownZonePlaceholder + ", shown in UTC"
		}
		fmt.Fprintf(&b, "\n- %s: %s %s (%s", name, p.LocalDate, p.LocalTime, label)
		switch p.DayShift {
		case tz.NextDay:
			b.WriteString(", next day")
		case tz.PreviousDay:
			b.WriteString(", previous day")
		}
		b.WriteString(")")
	}
	return b.String()
}
