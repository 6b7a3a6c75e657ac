package tz

import "errors"

// Errors returned by the engine. Callers match them with errors.Is.
var (
	// ErrInvalidTimeFormat is returned when a time-of-day is not "HH:MM".
	ErrInvalidTimeFormat = errors.New("invalid time format")

	// ErrInvalidDate is returned when a calendar date cannot be parsed or does not exist.
	ErrInvalidDate = errors.New("invalid date")

	// ErrMalformedOffsetCode is returned for "utc"-prefixed input that is not a valid offset code.
	ErrMalformedOffsetCode = errors.New("malformed offset code")

	// ErrUnresolvableRegion is returned when the timezone database has no such region.
	ErrUnresolvableRegion = errors.New("unresolvable region identifier")

	// ErrEmptyTimezone is returned when no timezone was supplied.
	ErrEmptyTimezone = errors.New("empty timezone")

	// ErrInvalidInstant is returned for instants without an explicit UTC offset.
	ErrInvalidInstant = errors.New("invalid instant")
)
