package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kaiboard/backend/internal/api/middleware"
	"github.com/kaiboard/backend/internal/tz"
)

// ListTimezones returns the grouped zone picker catalog. Offsets are
// evaluated at ?at= (a canonical instant) or now.
func ListTimezones() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at := time.Now()
		if raw := r.URL.Query().Get("at"); raw != "" {
			inst, err := tz.ParseInstant(raw)
			if err != nil {
				writeFailure(w, r, err, "Invalid instant")
				return
			}
			at = inst.UTC()
		}
		writeJSON(w, http.StatusOK, tz.Catalog(at))
	}
}

// NormalizeResponse describes how a timezone value is understood.
type NormalizeResponse struct {
	Input         string        `json:"input"`
	Normalized    tz.Identifier `json:"normalized"`
	Kind          string        `json:"kind"`
	FixedOffset   string        `json:"fixed_offset,omitempty"`
	CurrentOffset string        `json:"current_offset,omitempty"`
	Resolvable    bool          `json:"resolvable"`
	FellBack      bool          `json:"fell_back,omitempty"`
}

// NormalizeTimezone validates ?tz=. With ?lenient=true the legacy
// clamping and fallback rules apply and are reported in fell_back;
// otherwise malformed offset codes are rejected.
func NormalizeTimezone() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		input := q.Get("tz")

		var zone tz.Identifier
		var fellBack bool
		if q.Get("lenient") == "true" {
			zone, fellBack = tz.NormalizeLenient(input)
			if fellBack {
				zerolog.Ctx(r.Context()).Warn().
					Str("input", input).
					Str("using", zone.String()).
					Msg("timezone normalized with fallback")
			}
		} else {
			var err error
			if zone, err = tz.Normalize(input); err != nil {
				writeFailure(w, r, err, "Invalid timezone")
				return
			}
		}

		resp := NormalizeResponse{
			Input:       input,
			Normalized:  zone,
			Kind:        zone.Kind().String(),
			FixedOffset: zone.FixedOffsetString(),
			FellBack:    fellBack,
		}
		if offset, err := zone.OffsetAt(time.Now()); err == nil {
			resp.Resolvable = true
			resp.CurrentOffset = offset
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// Projection is one zone's reading of an instant.
type Projection struct {
	Zone       string `json:"zone"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Offset     string `json:"offset,omitempty"`
	Unresolved bool   `json:"unresolved,omitempty"`
	Warning    string `json:"warning,omitempty"`
}

// ProjectInstant projects ?instant= into every ?tz= given. A zone that
// fails to parse or resolve yields a UTC row with a warning instead of
// failing the request.
func ProjectInstant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		inst, err := tz.ParseInstant(q.Get("instant"))
		if err != nil {
			writeFailure(w, r, err, "Invalid instant")
			return
		}

		zones := q["tz"]
		if len(zones) == 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "At least one tz parameter is required")
			return
		}

		out := make([]Projection, 0, len(zones))
		for _, raw := range zones {
			out = append(out, project(inst, raw))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func project(inst tz.Instant, raw string) Projection {
	row := Projection{Zone: strings.TrimSpace(raw)}

	zone, err := tz.Normalize(raw)
	if err == nil {
		var local tz.LocalTime
		if local, err = tz.Project(inst, zone); err == nil {
			row.Date, row.Time = local.Date, local.Time
			row.Offset, _ = zone.OffsetAt(inst.UTC())
			return row
		}
	}

	local, _ := tz.Project(inst, tz.UTC)
	row.Date, row.Time = local.Date, local.Time
	row.Offset = "+00:00"
	row.Unresolved = true
	row.Warning = tz.UnknownZonePlaceholder + ", showing UTC: " + err.Error()
	return row
}
