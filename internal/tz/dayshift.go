package tz

import (
	"fmt"
)

// DayShift classifies a participant's local date against the organizer's.
type DayShift int

const (
	SameDay DayShift = iota
	NextDay
	PreviousDay
)

func (s DayShift) String() string {
	switch s {
	case NextDay:
		return "next"
	case PreviousDay:
		return "previous"
	default:
		return "same"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s DayShift) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *DayShift) UnmarshalText(text []byte) error {
	switch string(text) {
	case "same":
		*s = SameDay
	case "next":
		*s = NextDay
	case "previous":
		*s = PreviousDay
	default:
		return fmt.Errorf("unknown day shift %q", text)
	}
	return nil
}

// Classify compares two projected calendar dates. No timezone is involved:
// both inputs are already local dates.
func Classify(organizerDate, participantDate string) (DayShift, error) {
	org, err := ParseDate(organizerDate)
	if err != nil {
		return SameDay, fmt.Errorf("organizer date: %w", err)
	}
	part, err := ParseDate(participantDate)
	if err != nil {
		return SameDay, fmt.Errorf("participant date: %w", err)
	}
	return classifyDates(org, part), nil
}

func classifyDates(organizer, participant Date) DayShift {
	switch participant.Compare(organizer) {
	case 1:
		return NextDay
	case -1:
		return PreviousDay
	default:
		return SameDay
	}
}
