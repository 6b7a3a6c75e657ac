// Package meeting schedules meetings and renders them for every attendee's
// own timezone.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kaiboard/backend/internal/storage"
	"github.com/kaiboard/backend/internal/storage/models"
	"github.com/kaiboard/backend/internal/tz"
)

// Notifier receives meeting lifecycle events.
type Notifier interface {
	MeetingCreated(m *models.Meeting, previews []tz.Preview)
	MeetingUpdated(m *models.Meeting, previews []tz.Preview)
	MeetingDeleted(m *models.Meeting)
	MeetingStartingSoon(m *models.Meeting, previews []tz.Preview, now time.Time)
	MeetingsCompleted(ids []string)
}

// Service coordinates composing, storing and previewing meetings.
type Service struct {
	meetings *storage.MeetingRepository
	users    *storage.UserRepository
	settings *storage.SettingsRepository
	notifier Notifier

	defaultDuration time.Duration
}

// NewService creates a meeting service. notifier may be nil.
func NewService(
	meetings *storage.MeetingRepository,
	users *storage.UserRepository,
	settings *storage.SettingsRepository,
	notifier Notifier,
	defaultDurationMin int,
) *Service {
	if defaultDurationMin <= 0 {
		defaultDurationMin = 30
	}
	return &Service{
		meetings:        meetings,
		users:           users,
		settings:        settings,
		notifier:        notifier,
		defaultDuration: time.Duration(defaultDurationMin) * time.Minute,
	}
}

// OrganizerCard is the meeting as the organizer sees it.
type OrganizerCard struct {
	Zone       tz.Identifier `json:"zone"`
	LocalDate  string        `json:"local_date"`
	LocalTime  string        `json:"local_time"`
	Offset     string        `json:"offset,omitempty"`
	Unresolved bool          `json:"unresolved,omitempty"`
	Warning    string        `json:"warning,omitempty"`
}

// View is a meeting (or draft) with its organizer card and attendee
// previews, computed from current profile zones.
type View struct {
	Meeting   *models.Meeting `json:"meeting,omitempty"`
	StartsAt  tz.Instant      `json:"starts_at"`
	Organizer OrganizerCard   `json:"organizer"`
	Previews  []tz.Preview    `json:"previews"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// CreateInput is the raw meeting form.
type CreateInput struct {
	TeamID      string `json:"team_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	OrganizerID string `json:"organizer_id"`

	Date     string `json:"date"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`

	// EndTime is an "HH:MM" on the same date. When empty, DurationMin
	// applies, then the configured default.
	EndTime     string `json:"end_time"`
	DurationMin int    `json:"duration_min"`

	ParticipantIDs []string `json:"participant_ids"`
}

// RescheduleInput changes an existing meeting. Empty strings and nil
// slices keep the current value; Date, Time and Timezone are required
// only when moving the meeting.
type RescheduleInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`

	Date     string `json:"date"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`

	EndTime     string `json:"end_time"`
	DurationMin int    `json:"duration_min"`

	ParticipantIDs []string `json:"participant_ids"`
}

// DraftInput is an unsaved meeting form, previewed as it is edited.
type DraftInput struct {
	OrganizerID    string   `json:"organizer_id"`
	Date           string   `json:"date"`
	Time           string   `json:"time"`
	Timezone       string   `json:"timezone"`
	ParticipantIDs []string `json:"participant_ids"`
}

// Create composes, validates and stores a new meeting.
func (s *Service) Create(ctx context.Context, in CreateInput) (*View, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrMissingTitle
	}

	zone, err := s.resolveZone(ctx, in.Timezone, in.OrganizerID)
	if err != nil {
		return nil, err
	}

	start, end, warnings, err := s.schedule(ctx, in.Date, in.Time, zone, in.EndTime, in.DurationMin, 0)
	if err != nil {
		return nil, err
	}

	participants, err := s.participants(ctx, in.ParticipantIDs)
	if err != nil {
		return nil, err
	}

	m := &models.Meeting{
		TeamID:        in.TeamID,
		Title:         title,
		Description:   in.Description,
		OrganizerID:   in.OrganizerID,
		OrganizerZone: zone,
		StartsAt:      start,
		EndsAt:        end,
		Status:        models.MeetingStatusScheduled,
		Participants:  participants,
	}
	if err := s.meetings.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("creating meeting: %w", err)
	}

	log.Info().
		Str("meeting_id", m.ID).
		Str("starts_at", m.StartsAt.String()).
		Str("zone", zone.String()).
		Int("participants", len(participants)).
		Msg("meeting created")

	view := buildView(m.StartsAt, zone, m.PreviewParticipants())
	view.Meeting = m
	view.Warnings = warnings

	if s.notifier != nil {
		s.notifier.MeetingCreated(m, view.Previews)
	}
	return view, nil
}

// Reschedule edits a meeting. Moving it clears any sent reminder.
func (s *Service) Reschedule(ctx context.Context, id string, in RescheduleInput) (*View, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if t := strings.TrimSpace(in.Title); t != "" {
		m.Title = t
	}
	if in.Description != nil {
		m.Description = *in.Description
	}

	var warnings []string
	moving := in.Date != "" || in.Time != "" || in.Timezone != "" || in.EndTime != "" || in.DurationMin > 0
	if moving {
		zone := m.OrganizerZone
		if in.Timezone != "" {
			if zone, err = normalizeForWrite(in.Timezone); err != nil {
				return nil, err
			}
		}

		// Unspecified parts default to the current schedule as the
		// organizer sees it.
		current, _ := tz.ProjectOrUTC(m.StartsAt, m.OrganizerZone)
		date, clock := in.Date, in.Time
		if date == "" {
			date = current.Date
		}
		if clock == "" {
			clock = current.Time
		}
		keep := m.EndsAt.UTC().Sub(m.StartsAt.UTC())

		start, end, w, err := s.schedule(ctx, date, clock, zone, in.EndTime, in.DurationMin, keep)
		if err != nil {
			return nil, err
		}
		if !start.Equal(m.StartsAt) {
			m.RemindedAt = nil
		}
		m.OrganizerZone = zone
		m.StartsAt, m.EndsAt = start, end
		warnings = w
	}

	if in.ParticipantIDs != nil {
		participants, err := s.participants(ctx, in.ParticipantIDs)
		if err != nil {
			return nil, err
		}
		m.Participants = participants
	}

	if err := s.meetings.Update(ctx, m); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating meeting: %w", err)
	}

	// Re-read so participant names and zones reflect the profiles.
	if m, err = s.Get(ctx, id); err != nil {
		return nil, err
	}

	view := buildView(m.StartsAt, m.OrganizerZone, m.PreviewParticipants())
	view.Meeting = m
	view.Warnings = warnings

	if s.notifier != nil {
		s.notifier.MeetingUpdated(m, view.Previews)
	}
	return view, nil
}

// Get returns a stored meeting.
func (s *Service) Get(ctx context.Context, id string) (*models.Meeting, error) {
	m, err := s.meetings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading meeting: %w", err)
	}
	if m == nil {
		return nil, ErrNotFound
	}
	return m, nil
}

// List returns meetings matching f.
func (s *Service) List(ctx context.Context, f storage.MeetingFilter) ([]models.Meeting, error) {
	return s.meetings.List(ctx, f)
}

// Delete removes a meeting.
func (s *Service) Delete(ctx context.Context, id string) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.meetings.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting meeting: %w", err)
	}
	if s.notifier != nil {
		s.notifier.MeetingDeleted(m)
	}
	return nil
}

// Previews renders a stored meeting for its organizer and attendees using
// their zones as saved right now.
func (s *Service) Previews(ctx context.Context, id string) (*View, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := buildView(m.StartsAt, m.OrganizerZone, m.PreviewParticipants())
	view.Meeting = m
	return view, nil
}

// DraftPreview renders an unsaved meeting form. Nothing is stored and
// nothing is cached; every call recomputes.
func (s *Service) DraftPreview(ctx context.Context, in DraftInput) (*View, error) {
	zone, err := s.resolveZone(ctx, in.Timezone, in.OrganizerID)
	if err != nil {
		return nil, err
	}

	start, warnings, err := composeChecked(in.Date, in.Time, zone)
	if err != nil {
		return nil, err
	}

	participants, err := s.participants(ctx, in.ParticipantIDs)
	if err != nil {
		return nil, err
	}
	draft := models.Meeting{Participants: participants}

	view := buildView(start, zone, draft.PreviewParticipants())
	view.Warnings = warnings
	return view, nil
}

// RemindDue sends one starting-soon event for each scheduled meeting that
// starts within lead of now. It returns how many were sent.
func (s *Service) RemindDue(ctx context.Context, now time.Time, lead time.Duration) (int, error) {
	due, err := s.meetings.ListDueForReminder(ctx, now, lead)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range due {
		m := &due[i]
		if err := s.meetings.MarkReminded(ctx, m.ID, now); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return sent, err
		}
		sent++

		log.Info().Str("meeting_id", m.ID).Str("starts_at", m.StartsAt.String()).Msg("meeting starting soon")
		if s.notifier != nil {
			s.notifier.MeetingStartingSoon(m, tz.BuildPreviews(m.StartsAt, m.OrganizerZone, m.PreviewParticipants()), now)
		}
	}

	return sent, nil
}

// CompleteEnded closes meetings that are over.
func (s *Service) CompleteEnded(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := s.meetings.CompleteEnded(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		log.Info().Int("count", len(ids)).Msg("meetings completed")
		if s.notifier != nil {
			s.notifier.MeetingsCompleted(ids)
		}
	}
	return ids, nil
}

// ReminderLead returns the reminder lead time from settings, or fallback.
func (s *Service) ReminderLead(ctx context.Context, fallback time.Duration) time.Duration {
	if n := s.intSetting(ctx, models.SettingReminderLeadMinutes); n > 0 {
		return time.Duration(n) * time.Minute
	}
	return fallback
}

// resolveZone picks the meeting zone: the submitted value, else the
// organizer's profile zone, else the default_timezone setting.
func (s *Service) resolveZone(ctx context.Context, input, organizerID string) (tz.Identifier, error) {
	if strings.TrimSpace(input) != "" {
		return normalizeForWrite(input)
	}

	if organizerID != "" {
		u, err := s.users.GetByID(ctx, organizerID)
		if err != nil {
			return tz.Identifier{}, fmt.Errorf("loading organizer: %w", err)
		}
		if u != nil && !u.Timezone.IsZero() {
			return u.Timezone, nil
		}
	}

	if s.settings != nil {
		if v, ok, err := s.settings.Get(ctx, models.SettingDefaultTimezone); err == nil && ok && v != "" {
			return normalizeForWrite(v)
		}
	}

	return tz.Identifier{}, tz.ErrEmptyTimezone
}

// normalizeForWrite is the strict path: malformed offset codes and
// unresolvable regions are rejected before anything is stored.
func normalizeForWrite(input string) (tz.Identifier, error) {
	zone, err := tz.Normalize(input)
	if err != nil {
		return tz.Identifier{}, err
	}
	if err := zone.Validate(); err != nil {
		return tz.Identifier{}, err
	}
	return zone, nil
}

// schedule composes start and end. The end comes from endClock on the
// same date, else durationMin, else keep (when non-zero), else the
// configured default.
func (s *Service) schedule(ctx context.Context, date, clock string, zone tz.Identifier, endClock string, durationMin int, keep time.Duration) (tz.Instant, tz.Instant, []string, error) {
	start, warnings, err := composeChecked(date, clock, zone)
	if err != nil {
		return tz.Instant{}, tz.Instant{}, nil, err
	}

	var end tz.Instant
	switch {
	case endClock != "":
		end, err = tz.Compose(tz.ScheduleInput{Date: date, Time: endClock, Zone: zone})
		if err != nil {
			return tz.Instant{}, tz.Instant{}, nil, err
		}
	case durationMin > 0:
		end = tz.InstantOf(start.Time().Add(time.Duration(durationMin) * time.Minute))
	case keep > 0:
		end = tz.InstantOf(start.Time().Add(keep))
	default:
		end = tz.InstantOf(start.Time().Add(s.durationDefault(ctx)))
	}

	if !end.UTC().After(start.UTC()) {
		return tz.Instant{}, tz.Instant{}, nil, ErrInvalidRange
	}
	return start, end, warnings, nil
}

func (s *Service) durationDefault(ctx context.Context) time.Duration {
	if n := s.intSetting(ctx, models.SettingDefaultDurationMin); n > 0 {
		return time.Duration(n) * time.Minute
	}
	return s.defaultDuration
}

func (s *Service) intSetting(ctx context.Context, key string) int {
	if s.settings == nil {
		return 0
	}
	v, ok, err := s.settings.Get(ctx, key)
	if err != nil || !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring non-numeric setting")
		return 0
	}
	return n
}

// composeChecked composes the instant and reports wall-clock anomalies
// (skipped or repeated local times) as warnings.
func composeChecked(date, clock string, zone tz.Identifier) (tz.Instant, []string, error) {
	start, err := tz.Compose(tz.ScheduleInput{Date: date, Time: clock, Zone: zone})
	if err != nil {
		return tz.Instant{}, nil, err
	}

	d, _ := tz.ParseDate(date)
	c, _ := tz.ParseClock(clock)
	wc, err := tz.CheckWallClock(d, c, zone)
	if err != nil {
		return start, nil, nil
	}

	var warnings []string
	if wc.Nonexistent {
		warnings = append(warnings, fmt.Sprintf("%s %s does not exist in %s; scheduled for %s",
			date, clock, zone, wc.Resolved))
	}
	if wc.Ambiguous {
		warnings = append(warnings, fmt.Sprintf("%s %s occurs twice in %s; using %s",
			date, clock, zone, start))
	}
	return start, warnings, nil
}

func (s *Service) participants(ctx context.Context, ids []string) ([]models.MeetingParticipant, error) {
	out := make([]models.MeetingParticipant, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading participant: %w", err)
		}
		if u == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
		}
		out = append(out, models.MeetingParticipant{
			UserID:   u.ID,
			Name:     u.Name,
			Timezone: u.Timezone,
			Position: len(out),
		})
	}
	return out, nil
}

func buildView(start tz.Instant, organizerZone tz.Identifier, participants []tz.Participant) *View {
	return &View{
		StartsAt:  start,
		Organizer: organizerCard(start, organizerZone),
		Previews:  tz.BuildPreviews(start, organizerZone, participants),
	}
}

func organizerCard(start tz.Instant, zone tz.Identifier) OrganizerCard {
	card := OrganizerCard{Zone: zone}

	local, err := tz.ProjectOrUTC(start, zone)
	card.LocalDate, card.LocalTime = local.Date, local.Time
	if err != nil {
		card.Unresolved = true
		card.Warning = fmt.Sprintf("%s %q, showing UTC", tz.UnknownZonePlaceholder, zone.String())
		card.Offset = "+00:00"
		return card
	}

	card.Offset, _ = zone.OffsetAt(start.UTC())
	return card
}
