package tz

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// InstantLayout is the canonical serialization. It always carries a
// numeric offset; UTC renders as "+00:00", never "Z".
const InstantLayout = "2006-01-02T15:04:05-07:00"

const dateLayout = "2006-01-02"

var (
	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
	datePattern  = regexp.MustCompile(`^(\d{1,4})-(\d{1,2})-(\d{1,2})$`)
)

// Date is a calendar date with no timezone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses "YYYY-MM-DD". Unpadded components ("2024-3-1") are
// accepted; dates that do not exist on the calendar are rejected.
func ParseDate(s string) (Date, error) {
	m := datePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])

	if y < 1 || mo < 1 || mo > 12 || d < 1 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	// time.Date normalizes overflow (Feb 30 -> Mar 1); a changed day means
	// the date does not exist.
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != mo {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Year: y, Month: time.Month(mo), Day: d}, nil
}

// String renders the date zero-padded as "YYYY-MM-DD".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Compare returns -1, 0 or +1 ordering d against other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(int(d.Month) - int(other.Month))
	default:
		return sign(d.Day - other.Day)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// Clock is a validated 24-hour time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock validates a "HH:MM" string. There is no default: invalid
// input is always an error.
func ParseClock(s string) (Clock, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return Clock{Hour: h, Minute: minute}, nil
}

// String renders the clock as "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Instant is an absolute point in time that remembers the offset it was
// composed with.
type Instant struct {
	t time.Time
}

// InstantOf wraps a time.Time.
func InstantOf(t time.Time) Instant {
	return Instant{t: t}
}

// ParseInstant parses a stored canonical instant. An explicit offset (or
// "Z") is required.
func ParseInstant(s string) (Instant, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return Instant{}, fmt.Errorf("%w: %q", ErrInvalidInstant, s)
	}
	// time.Parse may attach time.Local when its offset matches; pin the
	// parsed offset instead.
	_, offset := t.Zone()
	return Instant{t: t.In(time.FixedZone("", offset))}, nil
}

// Time returns the underlying time.
func (i Instant) Time() time.Time { return i.t }

// UTC returns the instant as a UTC time.
func (i Instant) UTC() time.Time { return i.t.UTC() }

// IsZero reports whether the instant is unset.
func (i Instant) IsZero() bool { return i.t.IsZero() }

// Equal reports whether both instants denote the same point in time.
func (i Instant) Equal(other Instant) bool { return i.t.Equal(other.t) }

// String returns the canonical serialization.
func (i Instant) String() string {
	return i.t.Format(InstantLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (i Instant) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Instant) UnmarshalText(text []byte) error {
	parsed, err := ParseInstant(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// ScheduleInput is the raw date, time and timezone collected by a form.
type ScheduleInput struct {
	Date string
	Time string
	Zone Identifier
}

// Compose combines a date, a "HH:MM" time and a timezone into a canonical
// instant.
//
// Offset codes are appended literally ("2024-03-01T23:00:00+09:00").
// Region identifiers are interpreted as wall-clock time in that region on
// that date, so the region's DST rule for the date applies.
func Compose(in ScheduleInput) (Instant, error) {
	clock, err := ParseClock(in.Time)
	if err != nil {
		return Instant{}, err
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return Instant{}, err
	}
	return ComposeParts(date, clock, in.Zone)
}

// ComposeParts is Compose over already-validated components.
func ComposeParts(date Date, clock Clock, zone Identifier) (Instant, error) {
	switch zone.Kind() {
	case KindOffset, KindRegion:
		// For offset codes loc is a fixed zone, so this is the literal
		// "{date}T{time}:00{offset}" with no DST involved.
		loc, err := zone.Location()
		if err != nil {
			return Instant{}, err
		}
		t := time.Date(date.Year, date.Month, date.Day, clock.Hour, clock.Minute, 0, 0, loc)
		return Instant{t: t}, nil
	default:
		return Instant{}, ErrEmptyTimezone
	}
}

// WallClock describes how a region wall-clock time maps onto instants.
type WallClock struct {
	// Nonexistent is set when the time falls in a spring-forward gap; the
	// composed instant is shifted by the gap length.
	Nonexistent bool `json:"nonexistent"`
	// Ambiguous is set when the time occurs twice during a fall-back.
	Ambiguous bool `json:"ambiguous"`
	// Resolved is the instant Compose produces for the input.
	Resolved Instant `json:"resolved"`
}

// CheckWallClock reports DST anomalies for a date and time in zone.
// Offset codes never have anomalies.
func CheckWallClock(date Date, clock Clock, zone Identifier) (WallClock, error) {
	inst, err := ComposeParts(date, clock, zone)
	if err != nil {
		return WallClock{}, err
	}
	out := WallClock{Resolved: inst}
	if zone.IsOffset() {
		return out, nil
	}

	t := inst.Time()
	if t.Hour() != clock.Hour || t.Minute() != clock.Minute || t.Day() != date.Day {
		out.Nonexistent = true
		return out, nil
	}

	// The wall clock repeats when reading it with the offset in force
	// some hours earlier or later lands on the same local time. Shifts
	// are not always a whole hour.
	const layout = "2006-01-02 15:04"
	wall := t.Format(layout)
	loc := t.Location()
	asUTC := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	_, current := t.Zone()
	for _, d := range []time.Duration{-6 * time.Hour, 6 * time.Hour} {
		_, other := t.Add(d).In(loc).Zone()
		if other == current {
			continue
		}
		alt := asUTC.Add(-time.Duration(other) * time.Second)
		if alt.In(loc).Format(layout) == wall {
			out.Ambiguous = true
			break
		}
	}
	return out, nil
}
