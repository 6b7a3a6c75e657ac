package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kaiboard/backend/internal/tz"
)

// ErrNotFound is returned by updates and deletes that matched no row.
var ErrNotFound = errors.New("record not found")

// BaseRepository holds what every repository shares.
type BaseRepository struct {
	db *DB
}

// NewBaseRepository wraps db.
func NewBaseRepository(db *DB) BaseRepository {
	return BaseRepository{db: db}
}

// DB returns the underlying connection.
func (r *BaseRepository) DB() *DB {
	return r.db
}

// Now returns the current time in UTC for row timestamps.
func (r *BaseRepository) Now() time.Time {
	return time.Now().UTC()
}

// Transaction runs fn in a transaction.
func (r *BaseRepository) Transaction(fn func(tx *sql.Tx) error) error {
	return r.db.Transaction(fn)
}

// GenerateID returns a new random primary key.
func GenerateID() string {
	return uuid.NewString()
}

// zoneFromColumn turns a stored timezone column back into an Identifier.
// NULL or blank means no timezone. Stored values predate strict
// validation, so they go through the lenient normalizer and any clamp or
// fallback is logged with the owning row.
func zoneFromColumn(raw sql.NullString, table, id string) tz.Identifier {
	if !raw.Valid || raw.String == "" {
		return tz.Identifier{}
	}
	zone, fellBack := tz.NormalizeLenient(raw.String)
	if fellBack {
		log.Warn().
			Str("table", table).
			Str("id", id).
			Str("stored", raw.String).
			Str("using", zone.String()).
			Msg("stored timezone is malformed, using fallback")
	}
	return zone
}

func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
