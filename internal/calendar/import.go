package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// Event is a VEVENT read from an uploaded calendar.
type Event struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool

	// Floating is set when DTSTART carries neither a TZID nor a UTC
	// marker. Start then holds the wall clock in UTC fields and the
	// caller decides which zone it belongs to.
	Floating bool

	// Err is set for a VEVENT that could not be read. Such events keep
	// their UID so callers can report them without failing the calendar.
	Err error
}

// Parse decodes every VEVENT in r. Only a malformed calendar stream is an
// error; a single unreadable event comes back with Err set.
func Parse(r io.Reader) ([]Event, error) {
	var events []Event

	dec := ical.NewDecoder(r)
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding calendar: %w", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			ev, err := parseEvent(comp)
			if err != nil {
				ev.Err = err
			}
			events = append(events, ev)
		}
	}

	return events, nil
}

func parseEvent(comp *ical.Component) (Event, error) {
	var ev Event

	if prop := comp.Props.Get(ical.PropUID); prop != nil {
		ev.UID = prop.Value
	}
	if text, err := comp.Props.Text(ical.PropSummary); err == nil {
		ev.Summary = text
	}
	if text, err := comp.Props.Text(ical.PropDescription); err == nil {
		ev.Description = text
	}

	start := comp.Props.Get(ical.PropDateTimeStart)
	if start == nil {
		return ev, fmt.Errorf("event %q has no DTSTART", ev.UID)
	}
	t, err := start.DateTime(time.UTC)
	if err != nil {
		return ev, fmt.Errorf("event %q start: %w", ev.UID, err)
	}
	ev.Start = t
	ev.AllDay = start.ValueType() == ical.ValueDate
	ev.Floating = !ev.AllDay &&
		start.Params.Get(ical.ParamTimezoneID) == "" &&
		!strings.HasSuffix(start.Value, "Z")

	if end := comp.Props.Get(ical.PropDateTimeEnd); end != nil {
		if t, err := end.DateTime(time.UTC); err == nil {
			ev.End = t
		}
	}

	return ev, nil
}
