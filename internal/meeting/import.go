package meeting

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/kaiboard/backend/internal/calendar"
	"github.com/kaiboard/backend/internal/tz"
)

// ImportInput says whose meetings uploaded events become and in which
// zone they are framed.
type ImportInput struct {
	TeamID         string
	OrganizerID    string
	Timezone       string
	ParticipantIDs []string
}

// ImportResult summarizes an import.
type ImportResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

// Import creates one meeting per timed event. Each event's start is
// projected into the import zone and composed from there, so the stored
// instant carries that zone's offset. Floating events keep their wall
// clock and are read as local to the import zone. All-day events,
// unreadable events and events that fail validation are skipped.
func (s *Service) Import(ctx context.Context, events []calendar.Event, in ImportInput) (*ImportResult, error) {
	zone, err := s.resolveZone(ctx, in.Timezone, in.OrganizerID)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Created: []string{}, Skipped: []string{}}
	for _, ev := range events {
		if ev.Err != nil {
			log.Warn().Err(ev.Err).Str("uid", ev.UID).Msg("skipping unreadable calendar event")
			res.Skipped = append(res.Skipped, ev.UID)
			continue
		}
		if ev.AllDay {
			res.Skipped = append(res.Skipped, ev.UID)
			continue
		}

		var local tz.LocalTime
		if ev.Floating {
			local = tz.LocalTime{Date: ev.Start.Format("2006-01-02"), Time: ev.Start.Format("15:04")}
		} else {
			local, err = tz.Project(tz.InstantOf(ev.Start), zone)
			if err != nil {
				return nil, err
			}
		}

		duration := 0
		if ev.End.After(ev.Start) {
			duration = int(ev.End.Sub(ev.Start).Minutes())
		}

		title := ev.Summary
		if title == "" {
			title = "Imported meeting"
		}

		view, err := s.Create(ctx, CreateInput{
			TeamID:         in.TeamID,
			Title:          title,
			Description:    ev.Description,
			OrganizerID:    in.OrganizerID,
			Date:           local.Date,
			Time:           local.Time,
			Timezone:       zone.String(),
			DurationMin:    duration,
			ParticipantIDs: in.ParticipantIDs,
		})
		if err != nil {
			if errors.Is(err, ErrUnknownParticipant) {
				return nil, err
			}
			log.Warn().Err(err).Str("uid", ev.UID).Msg("skipping calendar event")
			res.Skipped = append(res.Skipped, ev.UID)
			continue
		}
		res.Created = append(res.Created, view.Meeting.ID)
	}

	if len(res.Created) == 0 && len(events) > 0 {
		log.Info().Int("events", len(events)).Msg("calendar import created no meetings")
	}
	return res, nil
}
