package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/kaiboard/backend/internal/storage/models"
	"github.com/kaiboard/backend/internal/tz"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	return db
}

func mustZone(t *testing.T, s string) tz.Identifier {
	t.Helper()
	id, err := tz.Normalize(s)
	if err != nil {
		t.Fatalf("Normalize(%q): %v", s, err)
	}
	return id
}

func mustInstant(t *testing.T, s string) tz.Instant {
	t.Helper()
	inst, err := tz.ParseInstant(s)
	if err != nil {
		t.Fatalf("ParseInstant(%q): %v", s, err)
	}
	return inst
}

func createUser(t *testing.T, repo *UserRepository, name, zone string) *models.User {
	t.Helper()
	u := &models.User{Name: name}
	if zone != "" {
		u.Timezone = mustZone(t, zone)
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return u
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := RunMigrations(db); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("recorded migrations = %d, want 1", n)
	}
	if v, err := db.SchemaVersion(context.Background()); err != nil || v != 1 {
		t.Fatalf("SchemaVersion = %d, %v", v, err)
	}
}

func TestRunMigrationsOrderAndRollback(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "steps.db"), Options{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	steps := fstest.MapFS{
		"migrations/010_rooms.sql": {Data: []byte("ALTER TABLE teams ADD COLUMN room TEXT;")},
		"migrations/002_teams.sql": {Data: []byte("CREATE TABLE teams (id TEXT PRIMARY KEY);")},
	}
	if err := runMigrations(db, steps); err != nil {
		t.Fatalf("runMigrations: %v", err)
	}
	if v, _ := db.SchemaVersion(context.Background()); v != 10 {
		t.Fatalf("SchemaVersion = %d, want 10", v)
	}

	steps["migrations/011_broken.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE notes (id TEXT); NOT SQL;")}
	if err := runMigrations(db, steps); err == nil {
		t.Fatal("expected broken migration to fail")
	}
	if v, _ := db.SchemaVersion(context.Background()); v != 10 {
		t.Fatalf("SchemaVersion after failure = %d, want 10", v)
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'notes'").Scan(&n); err != nil || n != 0 {
		t.Fatalf("failed migration left table behind: %d, %v", n, err)
	}
}

func TestLoadMigrationsRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"no prefix", fstest.MapFS{"migrations/initial.sql": {Data: []byte("SELECT 1;")}}},
		{"duplicate version", fstest.MapFS{
			"migrations/001_a.sql": {Data: []byte("SELECT 1;")},
			"migrations/1_b.sql":   {Data: []byte("SELECT 1;")},
		}},
		{"empty", fstest.MapFS{"migrations/001_empty.sql": {Data: []byte("  \n")}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadMigrations(tc.fsys); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDataSourceName(t *testing.T) {
	dsn := dataSourceName("/data/kaiboard.db", Options{BusyTimeout: 2 * time.Second})
	for _, want := range []string{"_foreign_keys=on", "_journal_mode=WAL", "_busy_timeout=2000"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %s", dsn, want)
		}
	}
	if !strings.HasPrefix(dsn, "/data/kaiboard.db?") {
		t.Errorf("dsn = %q", dsn)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	u := createUser(t, users, "Ana", "utc+1")

	boom := errors.New("boom")
	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM users WHERE id = ?", u.ID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction err = %v", err)
	}
	if _, err := users.GetByID(context.Background(), u.ID); err != nil {
		t.Fatalf("user gone after rollback: %v", err)
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	u := createUser(t, repo, "Kenji", "Asia/Tokyo")
	none := createUser(t, repo, "Ana", "")

	got, err := repo.GetByID(ctx, u.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", got, err)
	}
	if got.Timezone != tz.Region("Asia/Tokyo") {
		t.Fatalf("timezone = %v", got.Timezone)
	}

	got, _ = repo.GetByID(ctx, none.ID)
	if !got.Timezone.IsZero() {
		t.Fatalf("missing timezone should stay unset, got %v", got.Timezone)
	}

	if err := repo.UpdateTimezone(ctx, u.ID, tz.Offset(true, 5)); err != nil {
		t.Fatalf("UpdateTimezone: %v", err)
	}
	got, _ = repo.GetByID(ctx, u.ID)
	if got.Timezone.String() != "utc-5" {
		t.Fatalf("timezone after update = %v", got.Timezone)
	}

	users, err := repo.List(ctx)
	if err != nil || len(users) != 2 || users[0].Name != "Ana" {
		t.Fatalf("List = %+v, %v", users, err)
	}

	if missing, err := repo.GetByID(ctx, "nope"); missing != nil || err != nil {
		t.Fatalf("GetByID(missing) = %v, %v", missing, err)
	}
	if err := repo.UpdateTimezone(ctx, "nope", tz.UTC); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateTimezone(missing) err = %v", err)
	}
	if err := repo.Delete(ctx, none.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestLegacyZoneIsReadLeniently(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()

	tests := []struct {
		stored string
		want   string
	}{
		{"utc+99", "utc+14"},
		{"utc+eight", "utc+0"},
		{"UTC+8", "utc+8"},
		{"Europe/Paris", "Europe/Paris"},
	}
	for _, tc := range tests {
		t.Run(tc.stored, func(t *testing.T) {
			id := GenerateID()
			_, err := db.Exec(`INSERT INTO users (id, name, email, timezone, created_at, updated_at)
				VALUES (?, 'legacy', '', ?, ?, ?)`, id, tc.stored, now, now)
			if err != nil {
				t.Fatal(err)
			}
			u, err := repo.GetByID(ctx, id)
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if u.Timezone.String() != tc.want {
				t.Fatalf("timezone = %q, want %q", u.Timezone.String(), tc.want)
			}
		})
	}
}

func TestSavedZones(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))
	u := createUser(t, repo, "Kenji", "Asia/Tokyo")

	z := &models.SavedZone{UserID: u.ID, CountryCode: "NZ", Timezone: mustZone(t, "Pacific/Auckland")}
	if err := repo.AddZone(ctx, z); err != nil {
		t.Fatalf("AddZone: %v", err)
	}

	zones, err := repo.ListZones(ctx, u.ID)
	if err != nil || len(zones) != 1 || zones[0].Timezone.String() != "Pacific/Auckland" {
		t.Fatalf("ListZones = %+v, %v", zones, err)
	}

	if err := repo.DeleteZone(ctx, "someone-else", z.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteZone for wrong user err = %v", err)
	}
	if err := repo.DeleteZone(ctx, u.ID, z.ID); err != nil {
		t.Fatalf("DeleteZone: %v", err)
	}
}

func TestTeamRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	teams := NewTeamRepository(db)

	owner := createUser(t, users, "Owner", "UTC")
	member := createUser(t, users, "Member", "utc+9")

	team := &models.Team{Name: "Platform", Timezone: mustZone(t, "Europe/Berlin")}
	if err := teams.Create(ctx, team, owner.ID); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if role, _ := teams.MemberRole(ctx, team.ID, owner.ID); role != models.RoleOwner {
		t.Fatalf("owner role = %q", role)
	}
	if err := teams.SetMember(ctx, team.ID, member.ID, models.RoleMember); err != nil {
		t.Fatalf("SetMember: %v", err)
	}
	if err := teams.SetMember(ctx, team.ID, member.ID, models.RoleAdmin); err != nil {
		t.Fatalf("SetMember promote: %v", err)
	}
	if err := teams.SetMember(ctx, team.ID, member.ID, "boss"); err == nil {
		t.Fatal("expected invalid role error")
	}

	members, err := teams.ListMembers(ctx, team.ID)
	if err != nil || len(members) != 2 {
		t.Fatalf("ListMembers = %+v, %v", members, err)
	}

	mine, err := teams.List(ctx, member.ID)
	if err != nil || len(mine) != 1 || mine[0].Timezone.String() != "Europe/Berlin" {
		t.Fatalf("List(member) = %+v, %v", mine, err)
	}
	if other, _ := teams.List(ctx, "stranger"); len(other) != 0 {
		t.Fatalf("List(stranger) = %+v", other)
	}

	if err := teams.RemoveMember(ctx, team.ID, member.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if role, _ := teams.MemberRole(ctx, team.ID, member.ID); role != "" {
		t.Fatalf("role after removal = %q", role)
	}
	if err := teams.Delete(ctx, team.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestMeetingRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	meetings := NewMeetingRepository(db)

	organizer := createUser(t, users, "Kenji", "utc+9")
	ana := createUser(t, users, "Ana", "utc-5")
	tevita := createUser(t, users, "Tevita", "utc+14")

	m := &models.Meeting{
		Title:         "Sync",
		OrganizerID:   organizer.ID,
		OrganizerZone: mustZone(t, "utc+9"),
		StartsAt:      mustInstant(t, "2024-03-01T23:00:00+09:00"),
		EndsAt:        mustInstant(t, "2024-03-01T23:30:00+09:00"),
		Participants: []models.MeetingParticipant{
			{UserID: tevita.ID}, {UserID: ana.ID},
		},
	}
	if err := meetings.Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := meetings.GetByID(ctx, m.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", got, err)
	}
	if got.StartsAt.String() != "2024-03-01T23:00:00+09:00" {
		t.Fatalf("stored start = %s", got.StartsAt)
	}
	if got.Status != models.MeetingStatusScheduled {
		t.Fatalf("status = %s", got.Status)
	}
	if len(got.Participants) != 2 || got.Participants[0].UserID != tevita.ID || got.Participants[1].UserID != ana.ID {
		t.Fatalf("participants = %+v", got.Participants)
	}

	// Participant zones follow the user profile.
	if err := users.UpdateTimezone(ctx, ana.ID, mustZone(t, "America/New_York")); err != nil {
		t.Fatal(err)
	}
	got, _ = meetings.GetByID(ctx, m.ID)
	if got.Participants[1].Timezone.String() != "America/New_York" {
		t.Fatalf("participant zone = %v", got.Participants[1].Timezone)
	}

	list, err := meetings.List(ctx, MeetingFilter{UserID: ana.ID})
	if err != nil || len(list) != 1 {
		t.Fatalf("List(participant) = %+v, %v", list, err)
	}
	list, _ = meetings.List(ctx, MeetingFilter{From: time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)})
	if len(list) != 0 {
		t.Fatalf("List(from after start) = %+v", list)
	}

	got.Participants = got.Participants[1:]
	got.Title = "Sync (moved)"
	if err := meetings.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = meetings.GetByID(ctx, m.ID)
	if got.Title != "Sync (moved)" || len(got.Participants) != 1 || got.Participants[0].Position != 0 {
		t.Fatalf("after update = %+v", got)
	}

	if err := meetings.Delete(ctx, m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := meetings.Delete(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v", err)
	}
}

func TestMeetingRemindersAndCompletion(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	meetings := NewMeetingRepository(db)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	add := func(title string, start, end time.Time) *models.Meeting {
		m := &models.Meeting{
			Title:         title,
			OrganizerZone: tz.UTC,
			StartsAt:      tz.InstantOf(start),
			EndsAt:        tz.InstantOf(end),
		}
		if err := meetings.Create(ctx, m); err != nil {
			t.Fatalf("Create %s: %v", title, err)
		}
		return m
	}

	soon := add("soon", now.Add(5*time.Minute), now.Add(35*time.Minute))
	add("later", now.Add(2*time.Hour), now.Add(3*time.Hour))
	past := add("past", now.Add(-2*time.Hour), now.Add(-time.Hour))

	due, err := meetings.ListDueForReminder(ctx, now, 10*time.Minute)
	if err != nil || len(due) != 1 || due[0].ID != soon.ID {
		t.Fatalf("ListDueForReminder = %+v, %v", due, err)
	}

	if err := meetings.MarkReminded(ctx, soon.ID, now); err != nil {
		t.Fatalf("MarkReminded: %v", err)
	}
	if err := meetings.MarkReminded(ctx, soon.ID, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second MarkReminded err = %v", err)
	}
	due, _ = meetings.ListDueForReminder(ctx, now, 10*time.Minute)
	if len(due) != 0 {
		t.Fatalf("reminded meeting still due: %+v", due)
	}

	ids, err := meetings.CompleteEnded(ctx, now)
	if err != nil || len(ids) != 1 || ids[0] != past.ID {
		t.Fatalf("CompleteEnded = %v, %v", ids, err)
	}
	done, _ := meetings.GetByID(ctx, past.ID)
	if done.Status != models.MeetingStatusCompleted {
		t.Fatalf("status = %s", done.Status)
	}
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(newTestDB(t))

	if _, ok, err := repo.Get(ctx, models.SettingDefaultTimezone); ok || err != nil {
		t.Fatalf("Get(unset) = %v, %v", ok, err)
	}
	if err := repo.Set(ctx, models.SettingDefaultTimezone, "Asia/Tokyo"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Set(ctx, models.SettingDefaultTimezone, "Europe/Paris"); err != nil {
		t.Fatal(err)
	}
	all, err := repo.All(ctx)
	if err != nil || all[models.SettingDefaultTimezone] != "Europe/Paris" {
		t.Fatalf("All = %v, %v", all, err)
	}
}
