package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kaiboard/backend/internal/api/middleware"
	"github.com/kaiboard/backend/internal/meeting"
	"github.com/kaiboard/backend/internal/storage"
	"github.com/kaiboard/backend/internal/tz"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFailure(w, r, err, "Invalid request body")
		return false
	}
	return true
}

// writeFailure maps domain errors onto the error envelope. Anything it
// does not recognize is logged and reported as a 500 with fallback as the
// message.
func writeFailure(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, code := http.StatusBadRequest, ""

	switch {
	case errors.Is(err, tz.ErrInvalidTimeFormat):
		code = middleware.ErrInvalidTimeFormat
	case errors.Is(err, tz.ErrInvalidDate):
		code = middleware.ErrInvalidDate
	case errors.Is(err, tz.ErrInvalidInstant):
		code = middleware.ErrInvalidInstant
	case errors.Is(err, tz.ErrMalformedOffsetCode):
		code = middleware.ErrMalformedOffsetCode
	case errors.Is(err, tz.ErrUnresolvableRegion):
		code = middleware.ErrUnresolvableTimezone
	case errors.Is(err, tz.ErrEmptyTimezone),
		errors.Is(err, meeting.ErrInvalidRange),
		errors.Is(err, meeting.ErrMissingTitle),
		errors.Is(err, meeting.ErrUnknownParticipant):
		code = middleware.ErrValidation
	case errors.Is(err, meeting.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		status, code = http.StatusNotFound, middleware.ErrNotFound
	default:
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, fallback)
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(fallback)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, fallback)
		return
	}

	middleware.WriteError(w, status, code, err.Error())
}

// parseZone reads a timezone submitted by a client. Blank input means "no
// timezone"; anything else must normalize strictly and resolve.
func parseZone(input string) (tz.Identifier, error) {
	if strings.TrimSpace(input) == "" {
		return tz.Identifier{}, nil
	}
	zone, err := tz.Normalize(input)
	if err != nil {
		return tz.Identifier{}, err
	}
	if err := zone.Validate(); err != nil {
		return tz.Identifier{}, err
	}
	return zone, nil
}
