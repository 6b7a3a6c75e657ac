package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kaiboard/backend/internal/storage/models"
)

// TeamRepository provides data access for teams and memberships.
type TeamRepository struct {
	BaseRepository
}

// NewTeamRepository creates a new team repository.
func NewTeamRepository(db *DB) *TeamRepository {
	return &TeamRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a team. When ownerID is set the user becomes its owner
// in the same transaction.
func (r *TeamRepository) Create(ctx context.Context, t *models.Team, ownerID string) error {
	t.ID = GenerateID()
	t.CreatedAt = r.Now()
	t.UpdatedAt = t.CreatedAt

	return r.Transaction(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO teams (id, name, timezone, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		`, t.ID, t.Name, t.Timezone, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting team: %w", err)
		}

		if ownerID == "" {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO team_members (team_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
		`, t.ID, ownerID, models.RoleOwner, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting team owner: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a team, or nil if none exists.
func (r *TeamRepository) GetByID(ctx context.Context, id string) (*models.Team, error) {
	t := &models.Team{}
	var zone sql.NullString

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, name, timezone, created_at, updated_at FROM teams WHERE id = ?
	`, id).Scan(&t.ID, &t.Name, &zone, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying team: %w", err)
	}
	t.Timezone = zoneFromColumn(zone, "teams", t.ID)

	return t, nil
}

// List retrieves teams ordered by name. A non-empty userID restricts the
// result to teams that user belongs to.
func (r *TeamRepository) List(ctx context.Context, userID string) ([]models.Team, error) {
	query := `SELECT id, name, timezone, created_at, updated_at FROM teams ORDER BY name, id`
	args := []any{}
	if userID != "" {
		query = `
			SELECT t.id, t.name, t.timezone, t.created_at, t.updated_at
			FROM teams t JOIN team_members m ON m.team_id = t.id
			WHERE m.user_id = ?
			ORDER BY t.name, t.id`
		args = append(args, userID)
	}

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	teams := []models.Team{}
	for rows.Next() {
		var t models.Team
		var zone sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &zone, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		t.Timezone = zoneFromColumn(zone, "teams", t.ID)
		teams = append(teams, t)
	}

	return teams, rows.Err()
}

// Update saves a team's name and timezone.
func (r *TeamRepository) Update(ctx context.Context, t *models.Team) error {
	t.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE teams SET name = ?, timezone = ?, updated_at = ? WHERE id = ?
	`, t.Name, t.Timezone, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("updating team: %w", err)
	}

	return expectAffected(result)
}

// Delete removes a team together with its memberships and meetings.
func (r *TeamRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM teams WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting team: %w", err)
	}

	return expectAffected(result)
}

// ListMembers returns the team's members with their current profile zone.
func (r *TeamRepository) ListMembers(ctx context.Context, teamID string) ([]models.TeamMember, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT m.team_id, m.user_id, u.name, u.timezone, m.role, m.joined_at
		FROM team_members m JOIN users u ON u.id = m.user_id
		WHERE m.team_id = ?
		ORDER BY m.joined_at, u.name
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying team members: %w", err)
	}
	defer rows.Close()

	members := []models.TeamMember{}
	for rows.Next() {
		var m models.TeamMember
		var zone sql.NullString
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Name, &zone, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scanning team member: %w", err)
		}
		m.Timezone = zoneFromColumn(zone, "users", m.UserID)
		members = append(members, m)
	}

	return members, rows.Err()
}

// MemberRole returns the user's role in the team, or "" when the user is
// not a member.
func (r *TeamRepository) MemberRole(ctx context.Context, teamID, userID string) (string, error) {
	var role string
	err := r.DB().QueryRowContext(ctx, `
		SELECT role FROM team_members WHERE team_id = ? AND user_id = ?
	`, teamID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying member role: %w", err)
	}
	return role, nil
}

// SetMember adds a user to the team or changes their role.
func (r *TeamRepository) SetMember(ctx context.Context, teamID, userID, role string) error {
	if !models.ValidRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(team_id, user_id) DO UPDATE SET role = excluded.role
	`, teamID, userID, role, r.Now())
	if err != nil {
		return fmt.Errorf("saving team member: %w", err)
	}

	return nil
}

// RemoveMember takes a user out of the team.
func (r *TeamRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	result, err := r.DB().ExecContext(ctx, `
		DELETE FROM team_members WHERE team_id = ? AND user_id = ?
	`, teamID, userID)
	if err != nil {
		return fmt.Errorf("removing team member: %w", err)
	}

	return expectAffected(result)
}
