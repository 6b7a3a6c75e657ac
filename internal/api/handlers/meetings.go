package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kaiboard/backend/internal/api/middleware"
	"github.com/kaiboard/backend/internal/calendar"
	"github.com/kaiboard/backend/internal/meeting"
	"github.com/kaiboard/backend/internal/storage"
	"github.com/kaiboard/backend/internal/storage/models"
	"github.com/kaiboard/backend/internal/tz"
)

const maxImportBytes = 1 << 20

// ListMeetings returns meetings filtered by ?team_id=, ?user_id= ("me"
// for the acting user), ?status=, ?from= and ?to=. The range bounds are
// canonical instants.
func ListMeetings(svc *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := storage.MeetingFilter{
			TeamID: q.Get("team_id"),
			UserID: q.Get("user_id"),
			Status: q.Get("status"),
		}
		if f.UserID == "me" {
			f.UserID = middleware.UserID(r.Context())
		}
		switch f.Status {
		case "", models.MeetingStatusScheduled, models.MeetingStatusCompleted, models.MeetingStatusCancelled:
		default:
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown status")
			return
		}

		for key, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
			raw := q.Get(key)
			if raw == "" {
				continue
			}
			inst, err := tz.ParseInstant(raw)
			if err != nil {
				writeFailure(w, r, err, "Invalid "+key)
				return
			}
			*dst = inst.UTC()
		}

		list, err := svc.List(r.Context(), f)
		if err != nil {
			writeFailure(w, r, err, "Failed to query meetings")
			return
		}
		if list == nil {
			list = []models.Meeting{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// CreateMeeting schedules a meeting organized by the acting user.
func CreateMeeting(svc *meeting.Service, teams *storage.TeamRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in meeting.CreateInput
		if !decodeJSON(w, r, &in) {
			return
		}
		in.OrganizerID = middleware.UserID(r.Context())

		if in.TeamID != "" && !requireMembership(w, r, teams, in.TeamID) {
			return
		}

		view, err := svc.Create(r.Context(), in)
		if err != nil {
			writeFailure(w, r, err, "Failed to create meeting")
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

// GetMeeting returns a meeting with its organizer card and previews
// computed from the attendees' current zones.
func GetMeeting(svc *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Previews(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeFailure(w, r, err, "Failed to load meeting")
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// RescheduleMeeting edits a meeting. The organizer or a team owner or
// admin may do so.
func RescheduleMeeting(svc *meeting.Service, teams *storage.TeamRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if !requireMeetingManager(w, r, svc, teams, id) {
			return
		}

		var in meeting.RescheduleInput
		if !decodeJSON(w, r, &in) {
			return
		}

		view, err := svc.Reschedule(r.Context(), id, in)
		if err != nil {
			writeFailure(w, r, err, "Failed to update meeting")
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// DeleteMeeting removes a meeting. Same rights as rescheduling.
func DeleteMeeting(svc *meeting.Service, teams *storage.TeamRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if !requireMeetingManager(w, r, svc, teams, id) {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			writeFailure(w, r, err, "Failed to delete meeting")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DraftPreview renders an unsaved meeting form. The organizer defaults to
// the acting user so their profile zone applies when none is submitted.
func DraftPreview(svc *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in meeting.DraftInput
		if !decodeJSON(w, r, &in) {
			return
		}
		if in.OrganizerID == "" {
			in.OrganizerID = middleware.UserID(r.Context())
		}

		view, err := svc.DraftPreview(r.Context(), in)
		if err != nil {
			writeFailure(w, r, err, "Failed to preview meeting")
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// ExportMeeting serves a meeting as an iCalendar file.
func ExportMeeting(svc *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Previews(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeFailure(w, r, err, "Failed to load meeting")
			return
		}

		var buf bytes.Buffer
		if err := calendar.Encode(&buf, calendar.Export(view.Meeting, view.Previews, time.Now())); err != nil {
			writeFailure(w, r, err, "Failed to encode calendar")
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+view.Meeting.ID+`.ics"`)
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

// ImportMeetings creates meetings from iCalendar data: the request body,
// or the feed at ?url= when fetcher is set. The acting user organizes
// them; ?team_id=, ?timezone= and a comma-separated ?participant_ids=
// frame the import, and ?from= / ?to= instants limit which events count.
func ImportMeetings(svc *meeting.Service, teams *storage.TeamRepository, fetcher *calendar.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		in := meeting.ImportInput{
			TeamID:      q.Get("team_id"),
			OrganizerID: middleware.UserID(r.Context()),
			Timezone:    q.Get("timezone"),
		}
		for _, id := range strings.Split(q.Get("participant_ids"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				in.ParticipantIDs = append(in.ParticipantIDs, id)
			}
		}

		var from, to time.Time
		for key, dst := range map[string]*time.Time{"from": &from, "to": &to} {
			if raw := q.Get(key); raw != "" {
				inst, err := tz.ParseInstant(raw)
				if err != nil {
					writeFailure(w, r, err, "Invalid "+key)
					return
				}
				*dst = inst.UTC()
			}
		}

		if in.TeamID != "" && !requireMembership(w, r, teams, in.TeamID) {
			return
		}

		var events []calendar.Event
		var err error
		if feedURL := q.Get("url"); feedURL != "" {
			if fetcher == nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Importing from a URL is disabled")
				return
			}
			events, err = fetcher.Fetch(r.Context(), feedURL)
			if errors.Is(err, calendar.ErrUnsupportedURL) || errors.Is(err, calendar.ErrPrivateHost) {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
				return
			}
			if err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Str("url", feedURL).Msg("calendar fetch failed")
				middleware.WriteError(w, http.StatusBadGateway, middleware.ErrBadRequest, "Could not load the calendar feed")
				return
			}
		} else {
			events, err = calendar.Parse(http.MaxBytesReader(w, r.Body, maxImportBytes))
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Body is not a valid iCalendar file")
				return
			}
		}
		events = calendar.FilterByRange(events, from, to)

		res, err := svc.Import(r.Context(), events, in)
		if err != nil {
			writeFailure(w, r, err, "Failed to import meetings")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// requireMembership allows a request only when the acting user belongs to
// the team.
func requireMembership(w http.ResponseWriter, r *http.Request, teams *storage.TeamRepository, teamID string) bool {
	role, ok := teamRole(w, r, teams, teamID)
	if !ok {
		return false
	}
	if role == "" {
		middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Only team members can schedule team meetings")
		return false
	}
	return true
}

// requireMeetingManager allows the meeting's organizer and the owners and
// admins of its team.
func requireMeetingManager(w http.ResponseWriter, r *http.Request, svc *meeting.Service, teams *storage.TeamRepository, id string) bool {
	m, err := svc.Get(r.Context(), id)
	if err != nil {
		writeFailure(w, r, err, "Failed to load meeting")
		return false
	}

	actor := middleware.UserID(r.Context())
	if m.OrganizerID != "" && m.OrganizerID == actor {
		return true
	}
	if m.TeamID != "" {
		role, err := teams.MemberRole(r.Context(), m.TeamID, actor)
		if err != nil {
			writeFailure(w, r, err, "Failed to query team membership")
			return false
		}
		if canManage(role) {
			return true
		}
	}

	middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Only the organizer or a team admin can change this meeting")
	return false
}
