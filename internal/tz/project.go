package tz

import (
	"time"
)

// LocalTime is the wall-clock reading of an instant in some zone.
type LocalTime struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Project returns the calendar date and "HH:MM" (24-hour) at which the
// instant falls in zone.
//
// Offset codes are applied arithmetically to the UTC instant. Regions are
// resolved through the timezone database, so historical and DST offsets
// are honored. The zone is always explicit.
func Project(instant Instant, zone Identifier) (LocalTime, error) {
	switch zone.Kind() {
	case KindOffset:
		shifted := instant.UTC().Add(time.Duration(zone.OffsetHours()) * time.Hour)
		return localTimeOf(shifted), nil
	case KindRegion:
		loc, err := zone.Location()
		if err != nil {
			return LocalTime{}, err
		}
		return localTimeOf(instant.Time().In(loc)), nil
	default:
		return LocalTime{}, ErrEmptyTimezone
	}
}

// ProjectOrUTC projects into zone, falling back to UTC when the zone
// cannot be resolved. The resolution error is returned alongside the UTC
// reading so the caller can show a warning instead of failing a render.
func ProjectOrUTC(instant Instant, zone Identifier) (LocalTime, error) {
	lt, err := Project(instant, zone)
	if err == nil {
		return lt, nil
	}
	return localTimeOf(instant.UTC()), err
}

func localTimeOf(t time.Time) LocalTime {
	return LocalTime{
		Date: t.Format(dateLayout),
		Time: t.Format("15:04"),
	}
}
