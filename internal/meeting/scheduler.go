package meeting

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler periodically sends starting-soon reminders and closes meetings
// that have ended.
type Scheduler struct {
	cron     *cron.Cron
	service  *Service
	lead     time.Duration
	interval time.Duration
}

// NewScheduler creates a scheduler that sweeps every interval and reminds
// lead ahead of each meeting. The reminder_lead_minutes setting overrides
// lead at sweep time.
func NewScheduler(service *Service, lead, interval time.Duration) *Scheduler {
	if lead <= 0 {
		lead = 10 * time.Minute
	}
	if interval < time.Second {
		interval = time.Minute
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		service:  service,
		lead:     lead,
		interval: interval,
	}
}

// Start registers the sweep job and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
		s.Sweep(context.Background(), time.Now())
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Info().Dur("interval", s.interval).Dur("lead", s.lead).Msg("meeting scheduler started")
	return nil
}

// Stop waits for a running sweep to finish and stops the runner.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("meeting scheduler stopped")
}

// Sweep runs one reminder and completion pass as of now.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) {
	lead := s.service.ReminderLead(ctx, s.lead)

	if _, err := s.service.RemindDue(ctx, now, lead); err != nil {
		log.Error().Err(err).Msg("sending meeting reminders")
	}
	if _, err := s.service.CompleteEnded(ctx, now); err != nil {
		log.Error().Err(err).Msg("completing ended meetings")
	}
}

// NextRun returns when the sweep will next run, or the zero time before
// Start.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
