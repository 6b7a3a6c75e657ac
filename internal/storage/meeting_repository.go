package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kaiboard/backend/internal/storage/models"
	"github.com/kaiboard/backend/internal/tz"
)

// utcLayout is the fixed-width form of the *_utc columns; it sorts
// lexically in time order.
const utcLayout = "2006-01-02T15:04:05Z"

func utcColumn(t time.Time) string {
	return t.UTC().Format(utcLayout)
}

// MeetingRepository provides data access for meetings and attendees.
type MeetingRepository struct {
	BaseRepository
}

// NewMeetingRepository creates a new meeting repository.
func NewMeetingRepository(db *DB) *MeetingRepository {
	return &MeetingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// MeetingFilter narrows List. Zero fields do not filter.
type MeetingFilter struct {
	TeamID string
	UserID string // organizer or participant
	Status string
	From   time.Time // starts at or after
	To     time.Time // starts before
}

const meetingColumns = `m.id, COALESCE(m.team_id, ''), m.title, m.description, COALESCE(m.organizer_id, ''),
	m.organizer_zone, m.starts_at, m.ends_at, m.status, m.reminded_at, m.created_at, m.updated_at`

// Create inserts a meeting and its attendees.
func (r *MeetingRepository) Create(ctx context.Context, m *models.Meeting) error {
	m.ID = GenerateID()
	m.CreatedAt = r.Now()
	m.UpdatedAt = m.CreatedAt
	if m.Status == "" {
		m.Status = models.MeetingStatusScheduled
	}

	return r.Transaction(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO meetings (
				id, team_id, title, description, organizer_id, organizer_zone,
				starts_at, ends_at, starts_at_utc, ends_at_utc, status, reminded_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			m.ID, nullIfEmpty(m.TeamID), m.Title, m.Description, nullIfEmpty(m.OrganizerID), m.OrganizerZone,
			m.StartsAt.String(), m.EndsAt.String(), utcColumn(m.StartsAt.UTC()), utcColumn(m.EndsAt.UTC()),
			m.Status, m.RemindedAt, m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting meeting: %w", err)
		}

		return replaceParticipants(ctx, tx, m.ID, m.ParticipantIDs())
	})
}

// GetByID retrieves a meeting with its attendees, or nil if none exists.
func (r *MeetingRepository) GetByID(ctx context.Context, id string) (*models.Meeting, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings m WHERE m.id = ?`, id)

	m, err := scanMeeting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying meeting: %w", err)
	}

	if err := r.loadParticipants(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

// List retrieves meetings matching f ordered by start instant.
func (r *MeetingRepository) List(ctx context.Context, f MeetingFilter) ([]models.Meeting, error) {
	var where []string
	var args []any

	if f.TeamID != "" {
		where = append(where, "m.team_id = ?")
		args = append(args, f.TeamID)
	}
	if f.UserID != "" {
		where = append(where, `(m.organizer_id = ? OR EXISTS (
			SELECT 1 FROM meeting_participants p WHERE p.meeting_id = m.id AND p.user_id = ?))`)
		args = append(args, f.UserID, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "m.status = ?")
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		where = append(where, "m.starts_at_utc >= ?")
		args = append(args, utcColumn(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "m.starts_at_utc < ?")
		args = append(args, utcColumn(f.To))
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings m`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY m.starts_at_utc, m.id"

	return r.query(ctx, query, args...)
}

// ListDueForReminder returns scheduled meetings starting within
// (now, now+lead] that have not been reminded yet.
func (r *MeetingRepository) ListDueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]models.Meeting, error) {
	return r.query(ctx, `
		SELECT `+meetingColumns+` FROM meetings m
		WHERE m.status = ? AND m.reminded_at IS NULL
		  AND m.starts_at_utc > ? AND m.starts_at_utc <= ?
		ORDER BY m.starts_at_utc, m.id
	`, models.MeetingStatusScheduled, utcColumn(now), utcColumn(now.Add(lead)))
}

// Update saves a meeting's editable fields and replaces its attendees.
func (r *MeetingRepository) Update(ctx context.Context, m *models.Meeting) error {
	m.UpdatedAt = r.Now()

	return r.Transaction(func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE meetings SET
				title = ?, description = ?, organizer_zone = ?,
				starts_at = ?, ends_at = ?, starts_at_utc = ?, ends_at_utc = ?,
				status = ?, reminded_at = ?, updated_at = ?
			WHERE id = ?
		`,
			m.Title, m.Description, m.OrganizerZone,
			m.StartsAt.String(), m.EndsAt.String(), utcColumn(m.StartsAt.UTC()), utcColumn(m.EndsAt.UTC()),
			m.Status, m.RemindedAt, m.UpdatedAt, m.ID,
		)
		if err != nil {
			return fmt.Errorf("updating meeting: %w", err)
		}
		if err := expectAffected(result); err != nil {
			return err
		}

		return replaceParticipants(ctx, tx, m.ID, m.ParticipantIDs())
	})
}

// MarkReminded records that the starting-soon notice went out.
func (r *MeetingRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE meetings SET reminded_at = ? WHERE id = ? AND reminded_at IS NULL
	`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("marking meeting reminded: %w", err)
	}

	return expectAffected(result)
}

// CompleteEnded marks every scheduled meeting that ended at or before now
// as completed and returns their IDs.
func (r *MeetingRepository) CompleteEnded(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	cutoff := utcColumn(now)

	err := r.Transaction(func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM meetings WHERE status = ? AND ends_at_utc <= ? ORDER BY ends_at_utc, id
		`, models.MeetingStatusScheduled, cutoff)
		if err != nil {
			return fmt.Errorf("querying ended meetings: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scanning meeting ID: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE meetings SET status = ?, updated_at = ? WHERE status = ? AND ends_at_utc <= ?
		`, models.MeetingStatusCompleted, r.Now(), models.MeetingStatusScheduled, cutoff)
		if err != nil {
			return fmt.Errorf("completing meetings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// Delete removes a meeting.
func (r *MeetingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM meetings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting meeting: %w", err)
	}

	return expectAffected(result)
}

func (r *MeetingRepository) query(ctx context.Context, query string, args ...any) ([]models.Meeting, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying meetings: %w", err)
	}

	meetings := []models.Meeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning meeting: %w", err)
		}
		meetings = append(meetings, *m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range meetings {
		if err := r.loadParticipants(ctx, &meetings[i]); err != nil {
			return nil, err
		}
	}

	return meetings, nil
}

// loadParticipants joins attendees with their live user profile so a
// timezone change shows up on every meeting immediately.
func (r *MeetingRepository) loadParticipants(ctx context.Context, m *models.Meeting) error {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT p.user_id, u.name, u.timezone, p.position
		FROM meeting_participants p JOIN users u ON u.id = p.user_id
		WHERE p.meeting_id = ?
		ORDER BY p.position
	`, m.ID)
	if err != nil {
		return fmt.Errorf("querying participants: %w", err)
	}
	defer rows.Close()

	m.Participants = []models.MeetingParticipant{}
	for rows.Next() {
		var p models.MeetingParticipant
		var zone sql.NullString
		if err := rows.Scan(&p.UserID, &p.Name, &zone, &p.Position); err != nil {
			return fmt.Errorf("scanning participant: %w", err)
		}
		p.Timezone = zoneFromColumn(zone, "users", p.UserID)
		m.Participants = append(m.Participants, p)
	}

	return rows.Err()
}

func replaceParticipants(ctx context.Context, tx *sql.Tx, meetingID string, userIDs []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM meeting_participants WHERE meeting_id = ?", meetingID); err != nil {
		return fmt.Errorf("deleting participants: %w", err)
	}

	for i, userID := range userIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO meeting_participants (meeting_id, user_id, position) VALUES (?, ?, ?)
			ON CONFLICT(meeting_id, user_id) DO NOTHING
		`, meetingID, userID, i)
		if err != nil {
			return fmt.Errorf("inserting participant: %w", err)
		}
	}

	return nil
}

func scanMeeting(s rowScanner) (*models.Meeting, error) {
	m := &models.Meeting{}
	var zone sql.NullString
	var startsAt, endsAt string

	if err := s.Scan(
		&m.ID, &m.TeamID, &m.Title, &m.Description, &m.OrganizerID,
		&zone, &startsAt, &endsAt, &m.Status, &m.RemindedAt, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m.OrganizerZone = zoneFromColumn(zone, "meetings", m.ID)

	var err error
	if m.StartsAt, err = tz.ParseInstant(startsAt); err != nil {
		return nil, fmt.Errorf("meeting %s start: %w", m.ID, err)
	}
	if m.EndsAt, err = tz.ParseInstant(endsAt); err != nil {
		return nil, fmt.Errorf("meeting %s end: %w", m.ID, err)
	}

	return m, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
