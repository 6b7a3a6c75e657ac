// Package storage persists users, teams, meetings and settings in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Options tunes how the SQLite file is opened.
type Options struct {
	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration
	// MaxOpenConns caps the pool. SQLite serializes writers anyway, so a
	// handful of connections is enough for concurrent readers.
	MaxOpenConns int
}

// DefaultOptions returns the settings the server runs with.
func DefaultOptions() Options {
	return Options{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 5,
	}
}

// DB is the meeting store's connection pool.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens the database at path with DefaultOptions.
func NewDB(path string) (*DB, error) {
	return Open(path, DefaultOptions())
}

// Open creates the parent directory if needed and opens the SQLite file at
// path. Foreign keys are always enforced; meeting participants rely on
// cascading deletes.
func Open(path string, opts Options) (*DB, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = DefaultOptions().MaxOpenConns
	}

	pool, err := sql.Open("sqlite3", dataSourceName(path, opts))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := pool.Ping(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database %s: %w", path, err)
	}

	pool.SetMaxOpenConns(opts.MaxOpenConns)
	pool.SetMaxIdleConns(max(1, opts.MaxOpenConns/2))

	log.Debug().
		Str("path", path).
		Int("max_open_conns", opts.MaxOpenConns).
		Dur("busy_timeout", opts.BusyTimeout).
		Msg("database opened")

	return &DB{DB: pool, path: path}, nil
}

// dataSourceName builds the go-sqlite3 DSN. WAL lets the reminder sweep
// read while handlers write.
func dataSourceName(path string, opts Options) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	if opts.BusyTimeout > 0 {
		q.Set("_busy_timeout", strconv.FormatInt(opts.BusyTimeout.Milliseconds(), 10))
	}
	return path + "?" + q.Encode()
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

// Transaction runs fn inside a transaction. The transaction is rolled back
// when fn returns an error or panics, and committed otherwise.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && err != nil {
			err = errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	done = true
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
