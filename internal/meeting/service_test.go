package meeting

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/kaiboard/backend/internal/calendar"
	"github.com/kaiboard/backend/internal/storage"
	"github.com/kaiboard/backend/internal/storage/models"
	"github.com/kaiboard/backend/internal/tz"
)

type recordedEvent struct {
	kind      string
	meetingID string
	previews  []tz.Preview
	ids       []string
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) add(e recordedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) MeetingCreated(m *models.Meeting, p []tz.Preview) {
	r.add(recordedEvent{kind: "created", meetingID: m.ID, previews: p})
}
func (r *recorder) MeetingUpdated(m *models.Meeting, p []tz.Preview) {
	r.add(recordedEvent{kind: "updated", meetingID: m.ID, previews: p})
}
func (r *recorder) MeetingDeleted(m *models.Meeting) {
	r.add(recordedEvent{kind: "deleted", meetingID: m.ID})
}
func (r *recorder) MeetingStartingSoon(m *models.Meeting, p []tz.Preview, _ time.Time) {
	r.add(recordedEvent{kind: "starting_soon", meetingID: m.ID, previews: p})
}
func (r *recorder) MeetingsCompleted(ids []string) {
	r.add(recordedEvent{kind: "completed", ids: ids})
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

type fixture struct {
	svc      *Service
	users    *storage.UserRepository
	settings *storage.SettingsRepository
	events   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "meetings.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	f := &fixture{
		users:    storage.NewUserRepository(db),
		settings: storage.NewSettingsRepository(db),
		events:   &recorder{},
	}
	f.svc = NewService(storage.NewMeetingRepository(db), f.users, f.settings, f.events, 30)
	return f
}

func (f *fixture) user(t *testing.T, name, zone string) *models.User {
	t.Helper()
	u := &models.User{Name: name}
	if zone != "" {
		id, err := tz.Normalize(zone)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", zone, err)
		}
		u.Timezone = id
	}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return u
}

func TestCreateAcrossDateLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	organizer := f.user(t, "Kenji", "utc+9")
	ana := f.user(t, "Ana", "utc-5")
	tevita := f.user(t, "Tevita", "utc+14")
	nobody := f.user(t, "No zone", "")

	view, err := f.svc.Create(ctx, CreateInput{
		Title:          "Planning",
		OrganizerID:    organizer.ID,
		Date:           "2024-03-01",
		Time:           "23:00",
		Timezone:       "utc+9",
		ParticipantIDs: []string{ana.ID, organizer.ID, tevita.ID, nobody.ID},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got := view.Meeting.StartsAt.String(); got != "2024-03-01T23:00:00+09:00" {
		t.Fatalf("start = %s", got)
	}
	if got := view.Meeting.EndsAt.String(); got != "2024-03-01T23:30:00+09:00" {
		t.Fatalf("end = %s", got)
	}
	if view.Organizer.LocalDate != "2024-03-01" || view.Organizer.LocalTime != "23:00" || view.Organizer.Offset != "+09:00" {
		t.Fatalf("organizer card = %+v", view.Organizer)
	}

	want := []struct {
		id, date, clock string
		shift           tz.DayShift
	}{
		{ana.ID, "2024-03-01", "09:00", tz.SameDay},
		{organizer.ID, "2024-03-01", "23:00", tz.SameDay},
		{tevita.ID, "2024-03-02", "04:00", tz.NextDay},
		{nobody.ID, "2024-03-01", "14:00", tz.SameDay},
	}
	if len(view.Previews) != len(want) {
		t.Fatalf("got %d previews", len(view.Previews))
	}
	for i, w := range want {
		p := view.Previews[i]
		if p.ParticipantID != w.id || p.LocalDate != w.date || p.LocalTime != w.clock || p.DayShift != w.shift {
			t.Errorf("preview %d = %+v", i, p)
		}
	}

	if kinds := f.events.kinds(); len(kinds) != 1 || kinds[0] != "created" {
		t.Fatalf("events = %v", kinds)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "Kenji", "")

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"bad time", CreateInput{Title: "x", Date: "2024-03-01", Time: "25:61", Timezone: "UTC"}, tz.ErrInvalidTimeFormat},
		{"bad date", CreateInput{Title: "x", Date: "2024-02-30", Time: "10:00", Timezone: "UTC"}, tz.ErrInvalidDate},
		{"offset too large", CreateInput{Title: "x", Date: "2024-03-01", Time: "10:00", Timezone: "utc+99"}, tz.ErrMalformedOffsetCode},
		{"unknown region", CreateInput{Title: "x", Date: "2024-03-01", Time: "10:00", Timezone: "Mars/Olympus"}, tz.ErrUnresolvableRegion},
		{"no zone anywhere", CreateInput{Title: "x", OrganizerID: u.ID, Date: "2024-03-01", Time: "10:00"}, tz.ErrEmptyTimezone},
		{"end before start", CreateInput{Title: "x", Date: "2024-03-01", Time: "10:00", EndTime: "09:00", Timezone: "UTC"}, ErrInvalidRange},
		{"missing title", CreateInput{Date: "2024-03-01", Time: "10:00", Timezone: "UTC"}, ErrMissingTitle},
		{"unknown participant", CreateInput{Title: "x", Date: "2024-03-01", Time: "10:00", Timezone: "UTC", ParticipantIDs: []string{"ghost"}}, ErrUnknownParticipant},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if kinds := f.events.kinds(); len(kinds) != 0 {
		t.Fatalf("rejected input produced events: %v", kinds)
	}
}

func TestCreateZoneFallbacks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	berlin := f.user(t, "Lena", "Europe/Berlin")
	view, err := f.svc.Create(ctx, CreateInput{Title: "x", OrganizerID: berlin.ID, Date: "2024-07-01", Time: "09:00"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if view.Meeting.StartsAt.String() != "2024-07-01T09:00:00+02:00" {
		t.Fatalf("organizer zone not used: %s", view.Meeting.StartsAt)
	}

	if err := f.settings.Set(ctx, models.SettingDefaultTimezone, "Asia/Kolkata"); err != nil {
		t.Fatal(err)
	}
	if err := f.settings.Set(ctx, models.SettingDefaultDurationMin, "45"); err != nil {
		t.Fatal(err)
	}
	view, err = f.svc.Create(ctx, CreateInput{Title: "x", Date: "2024-07-01", Time: "09:00"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if view.Meeting.StartsAt.String() != "2024-07-01T09:00:00+05:30" || view.Meeting.EndsAt.String() != "2024-07-01T09:45:00+05:30" {
		t.Fatalf("settings defaults not used: %s - %s", view.Meeting.StartsAt, view.Meeting.EndsAt)
	}
}

func TestCreateWarnsOnDSTGap(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.Create(context.Background(), CreateInput{
		Title: "x", Date: "2024-03-10", Time: "02:30", Timezone: "America/New_York",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(view.Warnings) != 1 {
		t.Fatalf("warnings = %v", view.Warnings)
	}
	// 02:30 is skipped; either side of the gap is acceptable.
	utc := view.Meeting.StartsAt.UTC()
	if !utc.Equal(time.Date(2024, 3, 10, 6, 30, 0, 0, time.UTC)) && !utc.Equal(time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC)) {
		t.Fatalf("start = %s", view.Meeting.StartsAt)
	}
}

func TestPreviewsFollowProfileChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.user(t, "Ana", "utc-5")
	view, err := f.svc.Create(ctx, CreateInput{
		Title: "x", Date: "2024-03-01", Time: "23:00", Timezone: "utc+9", ParticipantIDs: []string{ana.ID},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := f.users.UpdateTimezone(ctx, ana.ID, tz.Offset(false, 14)); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.Previews(ctx, view.Meeting.ID)
	if err != nil {
		t.Fatalf("Previews: %v", err)
	}
	p := got.Previews[0]
	if p.LocalDate != "2024-03-02" || p.LocalTime != "04:00" || p.DayShift != tz.NextDay {
		t.Fatalf("preview after zone change = %+v", p)
	}
	if got.Meeting.StartsAt.String() != "2024-03-01T23:00:00+09:00" {
		t.Fatalf("stored instant changed: %s", got.Meeting.StartsAt)
	}

	if _, err := f.svc.Previews(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Previews(missing) err = %v", err)
	}
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.user(t, "Ana", "America/New_York")
	view, err := f.svc.Create(ctx, CreateInput{
		Title: "Retro", Date: "2024-03-01", Time: "10:00", DurationMin: 60, Timezone: "UTC", ParticipantIDs: []string{ana.ID},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := view.Meeting.ID

	moved, err := f.svc.Reschedule(ctx, id, RescheduleInput{Time: "16:00", Timezone: "Europe/Paris"})
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if moved.Meeting.StartsAt.String() != "2024-03-01T16:00:00+01:00" {
		t.Fatalf("start = %s", moved.Meeting.StartsAt)
	}
	if d := moved.Meeting.EndsAt.UTC().Sub(moved.Meeting.StartsAt.UTC()); d != time.Hour {
		t.Fatalf("duration = %v, want kept 1h", d)
	}
	if moved.Previews[0].LocalTime != "10:00" {
		t.Fatalf("New York preview = %+v", moved.Previews[0])
	}

	renamed, err := f.svc.Reschedule(ctx, id, RescheduleInput{Title: "Retro v2", ParticipantIDs: []string{}})
	if err != nil {
		t.Fatalf("Reschedule rename: %v", err)
	}
	if renamed.Meeting.Title != "Retro v2" || len(renamed.Previews) != 0 || !renamed.Meeting.StartsAt.Equal(moved.Meeting.StartsAt) {
		t.Fatalf("rename = %+v", renamed.Meeting)
	}

	if _, err := f.svc.Reschedule(ctx, id, RescheduleInput{EndTime: "15:00"}); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("end before start err = %v", err)
	}
	if _, err := f.svc.Reschedule(ctx, "missing", RescheduleInput{Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}

	if err := f.svc.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.svc.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v", err)
	}

	want := []string{"created", "updated", "updated", "deleted"}
	got := f.events.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestDraftPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kolkata := f.user(t, "Priya", "Asia/Kolkata")

	view, err := f.svc.DraftPreview(ctx, DraftInput{
		Date: "2024-03-01", Time: "14:00", Timezone: "UTC", ParticipantIDs: []string{kolkata.ID},
	})
	if err != nil {
		t.Fatalf("DraftPreview: %v", err)
	}
	if view.Meeting != nil {
		t.Fatal("draft must not carry a stored meeting")
	}
	if view.Previews[0].LocalTime != "19:30" {
		t.Fatalf("preview = %+v", view.Previews[0])
	}
	if list, _ := f.svc.List(ctx, storage.MeetingFilter{}); len(list) != 0 {
		t.Fatalf("draft was stored: %+v", list)
	}

	if _, err := f.svc.DraftPreview(ctx, DraftInput{Date: "2024-03-01", Time: "7pm", Timezone: "UTC"}); !errors.Is(err, tz.ErrInvalidTimeFormat) {
		t.Fatalf("bad time err = %v", err)
	}
}

func TestSchedulerSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 55, 0, 0, time.UTC)

	soon, err := f.svc.Create(ctx, CreateInput{Title: "soon", Date: "2024-03-01", Time: "10:00", Timezone: "UTC"})
	if err != nil {
		t.Fatal(err)
	}
	past, err := f.svc.Create(ctx, CreateInput{Title: "past", Date: "2024-03-01", Time: "08:00", Timezone: "UTC"})
	if err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(f.svc, 10*time.Minute, time.Minute)
	s.Sweep(ctx, now)
	s.Sweep(ctx, now.Add(time.Minute))

	var reminders, completed int
	f.events.mu.Lock()
	for _, e := range f.events.events {
		switch e.kind {
		case "starting_soon":
			reminders++
			if e.meetingID != soon.Meeting.ID {
				t.Errorf("reminded %s", e.meetingID)
			}
		case "completed":
			completed++
			if len(e.ids) != 1 || e.ids[0] != past.Meeting.ID {
				t.Errorf("completed %v", e.ids)
			}
		}
	}
	f.events.mu.Unlock()

	if reminders != 1 || completed != 1 {
		t.Fatalf("reminders = %d, completed = %d", reminders, completed)
	}
}

func TestReminderLeadSetting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if got := f.svc.ReminderLead(ctx, 10*time.Minute); got != 10*time.Minute {
		t.Fatalf("default lead = %v", got)
	}
	if err := f.settings.Set(ctx, models.SettingReminderLeadMinutes, "3"); err != nil {
		t.Fatal(err)
	}
	if got := f.svc.ReminderLead(ctx, 10*time.Minute); got != 3*time.Minute {
		t.Fatalf("lead = %v", got)
	}
}

func TestImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	organizer := f.user(t, "Kenji", "Asia/Tokyo")

	events := []calendar.Event{
		{UID: "a", Summary: "Standup", Start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 4, 0, 15, 0, 0, time.UTC)},
		{UID: "b", Summary: "Offsite", Start: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), AllDay: true},
		{UID: "c", Start: time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)},
	}

	res, err := f.svc.Import(ctx, events, ImportInput{OrganizerID: organizer.ID})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Created) != 2 || len(res.Skipped) != 1 || res.Skipped[0] != "b" {
		t.Fatalf("result = %+v", res)
	}

	m, err := f.svc.Get(ctx, res.Created[0])
	if err != nil {
		t.Fatal(err)
	}
	if m.StartsAt.String() != "2024-03-04T09:00:00+09:00" || m.EndsAt.String() != "2024-03-04T09:15:00+09:00" {
		t.Fatalf("imported = %s - %s", m.StartsAt, m.EndsAt)
	}

	untitled, _ := f.svc.Get(ctx, res.Created[1])
	if untitled.Title != "Imported meeting" {
		t.Fatalf("title = %q", untitled.Title)
	}
}

func TestImportFloatingAndUnreadable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	organizer := f.user(t, "Mina", "utc+9")

	events := []calendar.Event{
		{UID: "floating", Summary: "Planning", Start: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC), Floating: true},
		{UID: "broken", Err: errors.New("no DTSTART")},
	}

	res, err := f.svc.Import(ctx, events, ImportInput{OrganizerID: organizer.ID})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Created) != 1 || len(res.Skipped) != 1 || res.Skipped[0] != "broken" {
		t.Fatalf("result = %+v", res)
	}

	m, err := f.svc.Get(ctx, res.Created[0])
	if err != nil {
		t.Fatal(err)
	}
	if m.StartsAt.String() != "2024-03-04T09:00:00+09:00" || m.EndsAt.String() != "2024-03-04T09:30:00+09:00" {
		t.Fatalf("floating import = %s - %s", m.StartsAt, m.EndsAt)
	}
}
