package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migration is one numbered schema step, e.g. 001_initial.sql.
type migration struct {
	version  int
	name     string
	sql      string
	checksum string
}

// schemaStep is a migration already recorded in schema_migrations.
type schemaStep struct {
	name     string
	checksum string
}

// RunMigrations brings the schema up to the newest embedded migration.
// Each pending step runs in its own transaction together with its
// schema_migrations row, so a failed step leaves no trace.
func RunMigrations(db *DB) error {
	return runMigrations(db, migrationsFS)
}

func runMigrations(db *DB, fsys fs.FS) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			checksum   TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	plan, err := loadMigrations(fsys)
	if err != nil {
		return err
	}
	applied, err := appliedSteps(db)
	if err != nil {
		return err
	}

	for _, m := range plan {
		if step, ok := applied[m.version]; ok {
			if step.checksum != m.checksum {
				log.Warn().
					Int("version", m.version).
					Str("name", m.name).
					Msg("applied migration was edited afterwards; not re-running it")
			}
			continue
		}

		err := db.Transaction(func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.sql); err != nil {
				return err
			}
			_, err := tx.Exec(
				"INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)",
				m.version, m.name, m.checksum,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %03d_%s: %w", m.version, m.name, err)
		}
		log.Info().Int("version", m.version).Str("name", m.name).Msg("migration applied")
	}
	return nil
}

// SchemaVersion returns the newest applied migration. It is 0 when the
// migrations table exists but is empty.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(v.Int64), nil
}

func appliedSteps(db *DB) (map[int]schemaStep, error) {
	rows, err := db.Query("SELECT version, name, checksum FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]schemaStep)
	for rows.Next() {
		var (
			version int
			step    schemaStep
		)
		if err := rows.Scan(&version, &step.name, &step.checksum); err != nil {
			return nil, err
		}
		applied[version] = step
	}
	return applied, rows.Err()
}

// loadMigrations reads migrations/NNN_name.sql from fsys in version order.
// Files without a numeric prefix and duplicate versions are errors.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string, len(files))
	plan := make([]migration, 0, len(files))
	for _, file := range files {
		base := strings.TrimSuffix(path.Base(file), ".sql")
		prefix, name, ok := strings.Cut(base, "_")
		version, convErr := strconv.Atoi(prefix)
		if !ok || convErr != nil || version <= 0 {
			return nil, fmt.Errorf("migration file %s must be named NNN_name.sql", file)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, file, version)
		}
		seen[version] = file

		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		if len(strings.TrimSpace(string(body))) == 0 {
			return nil, fmt.Errorf("migration %s is empty", file)
		}
		sum := sha256.Sum256(body)
		plan = append(plan, migration{
			version:  version,
			name:     name,
			sql:      string(body),
			checksum: hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(plan, func(i, j int) bool { return plan[i].version < plan[j].version })
	return plan, nil
}
