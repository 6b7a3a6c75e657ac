package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kaiboard/backend/internal/storage/models"
	"github.com/kaiboard/backend/internal/tz"
)

// UserRepository provides data access for users and their saved zones.
type UserRepository struct {
	BaseRepository
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const userColumns = `id, name, email, timezone, created_at, updated_at`

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	u.ID = GenerateID()
	u.CreatedAt = r.Now()
	u.UpdatedAt = u.CreatedAt

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.Timezone, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a user, or nil if none exists.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return u, nil
}

// List retrieves all users ordered by name.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}

	return users, rows.Err()
}

// Update saves the user's profile fields, timezone included.
func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	u.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, timezone = ?, updated_at = ? WHERE id = ?
	`, u.Name, u.Email, u.Timezone, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	return expectAffected(result)
}

// UpdateTimezone changes only the user's timezone preference.
func (r *UserRepository) UpdateTimezone(ctx context.Context, id string, zone tz.Identifier) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE users SET timezone = ?, updated_at = ? WHERE id = ?
	`, zone, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating user timezone: %w", err)
	}

	return expectAffected(result)
}

// Delete removes a user. Memberships, saved zones and meeting attendance
// go with it.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	return expectAffected(result)
}

// ListZones returns a user's saved zones, oldest first.
func (r *UserRepository) ListZones(ctx context.Context, userID string) ([]models.SavedZone, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, user_id, country_code, timezone, created_at
		FROM saved_zones WHERE user_id = ?
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying saved zones: %w", err)
	}
	defer rows.Close()

	zones := []models.SavedZone{}
	for rows.Next() {
		var z models.SavedZone
		var zone sql.NullString
		if err := rows.Scan(&z.ID, &z.UserID, &z.CountryCode, &zone, &z.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning saved zone: %w", err)
		}
		z.Timezone = zoneFromColumn(zone, "saved_zones", z.ID)
		zones = append(zones, z)
	}

	return zones, rows.Err()
}

// AddZone saves an extra zone for a user.
func (r *UserRepository) AddZone(ctx context.Context, z *models.SavedZone) error {
	z.ID = GenerateID()
	z.CreatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO saved_zones (id, user_id, country_code, timezone, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, z.ID, z.UserID, z.CountryCode, z.Timezone, z.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting saved zone: %w", err)
	}

	return nil
}

// DeleteZone removes one of the user's saved zones.
func (r *UserRepository) DeleteZone(ctx context.Context, userID, zoneID string) error {
	result, err := r.DB().ExecContext(ctx, `
		DELETE FROM saved_zones WHERE id = ? AND user_id = ?
	`, zoneID, userID)
	if err != nil {
		return fmt.Errorf("deleting saved zone: %w", err)
	}

	return expectAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*models.User, error) {
	u := &models.User{}
	var zone sql.NullString
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &zone, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Timezone = zoneFromColumn(zone, "users", u.ID)
	return u, nil
}
