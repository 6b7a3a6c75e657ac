// Package tz normalizes timezone identifiers, composes canonical meeting
// instants and projects them into per-participant wall-clock previews.
//
// Two timezone representations coexist: legacy offset codes ("utc+8"),
// which are constant offsets from UTC, and region identifiers
// ("America/New_York"), which are resolved through the Go timezone
// database for every instant. Every function that formats or composes a
// time takes an explicit Identifier; the process's local zone is never
// consulted.
package tz

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxOffsetHours is the largest magnitude an offset code may carry.
const MaxOffsetHours = 14

// Kind tells which variant an Identifier holds.
type Kind int

const (
	// KindNone is the zero value: no timezone was supplied.
	KindNone Kind = iota
	// KindOffset is a legacy fixed-offset code such as "utc+8".
	KindOffset
	// KindRegion is a named region resolved through the timezone database.
	KindRegion
)

func (k Kind) String() string {
	switch k {
	case KindOffset:
		return "offset"
	case KindRegion:
		return "region"
	default:
		return "none"
	}
}

var offsetCodePattern = regexp.MustCompile(`(?i)^utc([+-])(\d{1,2})$`)

// Identifier is either an offset code or a region identifier.
// The zero value is an absent timezone.
type Identifier struct {
	kind     Kind
	negative bool
	hours    int
	region   string
}

// UTC is the region identifier used wherever a timezone is missing.
var UTC = Region("UTC")

// Offset builds an offset code. Hours outside [0,14] are clamped.
func Offset(negative bool, hours int) Identifier {
	if hours < 0 {
		hours = -hours
	}
	if hours > MaxOffsetHours {
		hours = MaxOffsetHours
	}
	return Identifier{kind: KindOffset, negative: negative, hours: hours}
}

// Region builds a region identifier without validating it.
func Region(name string) Identifier {
	return Identifier{kind: KindRegion, region: name}
}

// Normalize parses a timezone selection value.
//
// Input matching utc±N (case-insensitive, N at most 14) becomes an offset
// code. Other input that starts with "utc" is rejected with
// ErrMalformedOffsetCode, except the bare region "UTC". Anything else is
// returned as an unvalidated region identifier; resolution happens at
// projection time.
func Normalize(input string) (Identifier, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Identifier{}, ErrEmptyTimezone
	}
	if strings.EqualFold(s, "utc") {
		return UTC, nil
	}

	if m := offsetCodePattern.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[2])
		if hours > MaxOffsetHours {
			return Identifier{}, fmt.Errorf("%w: %q exceeds %d hours", ErrMalformedOffsetCode, input, MaxOffsetHours)
		}
		return Offset(m[1] == "-", hours), nil
	}

	if looksLikeOffsetCode(s) {
		return Identifier{}, fmt.Errorf("%w: %q", ErrMalformedOffsetCode, input)
	}

	return Region(s), nil
}

// NormalizeLenient applies the legacy preference-screen rules: offset
// codes above 14 hours are clamped and malformed offset codes fall back
// to utc+0. The second return value reports that a clamp or fallback
// happened; callers must log it, since it silently moves meetings.
// Empty input yields the UTC region and also reports a fallback.
func NormalizeLenient(input string) (Identifier, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return UTC, true
	}
	if m := offsetCodePattern.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[2])
		return Offset(m[1] == "-", hours), hours > MaxOffsetHours
	}

	id, err := Normalize(s)
	if err != nil {
		return Offset(false, 0), true
	}
	return id, false
}

func looksLikeOffsetCode(s string) bool {
	return len(s) > 3 && strings.EqualFold(s[:3], "utc")
}

// Kind returns the variant held by the identifier.
func (id Identifier) Kind() Kind { return id.kind }

// IsZero reports whether no timezone is set.
func (id Identifier) IsZero() bool { return id.kind == KindNone }

// IsOffset reports whether the identifier is a legacy offset code.
func (id Identifier) IsOffset() bool { return id.kind == KindOffset }

// OffsetHours returns the signed hour offset of an offset code, or 0.
func (id Identifier) OffsetHours() int {
	if id.kind != KindOffset {
		return 0
	}
	if id.negative {
		return -id.hours
	}
	return id.hours
}

// RegionName returns the region name, or "" for offset codes.
func (id Identifier) RegionName() string {
	if id.kind != KindRegion {
		return ""
	}
	return id.region
}

// String serializes the identifier in its stored form: "utc+8" for offset
// codes and the bare name for regions.
func (id Identifier) String() string {
	switch id.kind {
	case KindOffset:
		return "utc" + id.sign() + strconv.Itoa(id.hours)
	case KindRegion:
		return id.region
	default:
		return ""
	}
}

// FixedOffsetString renders an offset code as "+08:00". Regions and absent
// identifiers have no fixed offset and render as "".
func (id Identifier) FixedOffsetString() string {
	if id.kind != KindOffset {
		return ""
	}
	return fmt.Sprintf("%s%02d:00", id.sign(), id.hours)
}

func (id Identifier) sign() string {
	if id.negative {
		return "-"
	}
	return "+"
}

// Location resolves the identifier to a *time.Location. Offset codes map
// to a fixed zone. Regions go through time.LoadLocation; "Local" is
// refused so the host's zone can never be picked up implicitly.
func (id Identifier) Location() (*time.Location, error) {
	switch id.kind {
	case KindOffset:
		return time.FixedZone(strings.ToUpper(id.String()), id.OffsetHours()*3600), nil
	case KindRegion:
		if id.region == "" || strings.EqualFold(id.region, "local") {
			return nil, fmt.Errorf("%w: %q", ErrUnresolvableRegion, id.region)
		}
		loc, err := time.LoadLocation(id.region)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnresolvableRegion, id.region)
		}
		return loc, nil
	default:
		return nil, ErrEmptyTimezone
	}
}

// Validate checks that the identifier resolves.
func (id Identifier) Validate() error {
	_, err := id.Location()
	return err
}

// OffsetAt returns the effective "+HH:MM" offset of the zone at instant t.
func (id Identifier) OffsetAt(t time.Time) (string, error) {
	if id.kind == KindOffset {
		return id.FixedOffsetString(), nil
	}
	loc, err := id.Location()
	if err != nil {
		return "", err
	}
	return t.In(loc).Format("-07:00"), nil
}

// MarshalText implements encoding.TextMarshaler.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using the strict
// normalizer. Empty text yields the zero Identifier.
func (id *Identifier) UnmarshalText(text []byte) error {
	if strings.TrimSpace(string(text)) == "" {
		*id = Identifier{}
		return nil
	}
	parsed, err := Normalize(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalJSON encodes absent identifiers as null.
func (id Identifier) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(id.String())
}

// UnmarshalJSON accepts a string or null.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = Identifier{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timezone must be a string: %w", err)
	}
	return id.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer. Absent identifiers are stored as NULL.
func (id Identifier) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}
	return id.String(), nil
}

// Scan implements sql.Scanner. Stored values go through the lenient
// rules so legacy rows with out-of-range offset codes still load; NULL
// yields the absent identifier.
func (id *Identifier) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*id = Identifier{}
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into timezone", src)
	}
	*id, _ = NormalizeLenient(s)
	return nil
}
