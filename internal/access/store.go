// Package access persists which users currently hold a time-limited
// grant. Expiry is computed against a rolling window, never stored.
package access

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO)
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id INTEGER PRIMARY KEY,
	access_time TEXT NOT NULL
);`

// Store implements the access-record store backed by SQLite.
type Store struct {
	db     *sql.DB
	window time.Duration
	now    func() time.Time
	log    *logrus.Entry
}

// Open opens (or creates) the SQLite DB at path and applies the schema.
// window is how long a grant stays valid.
func Open(path string, window time.Duration, log *logrus.Entry) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, pkgerrors.Wrap(err, "create db directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open sqlite")
	}
	// Single writer keeps per-user reads and grants linearizable.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
	_, _ = db.Exec("PRAGMA journal_mode = WAL;")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "apply schema")
	}

	return &Store{
		db:     db,
		window: window,
		now:    time.Now,
		log:    log,
	}, nil
}

// Close releases the underlying DB.
func (s *Store) Close() error { return s.db.Close() }

// Grant upserts the access record for userID with the current time.
// Repeated calls are idempotent; the newest grant wins.
func (s *Store) Grant(ctx context.Context, userID int64) error {
	const q = `REPLACE INTO users (user_id, access_time) VALUES (?, ?);`
	grantedAt := s.now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, q, userID, grantedAt); err != nil {
		return pkgerrors.Wrapf(err, "grant access for user %d", userID)
	}
	s.log.WithField("user_id", userID).Info("access granted")
	return nil
}

// IsValid reports whether userID holds an unexpired grant. Absent
// records and malformed timestamps are both invalid; the latter is
// logged (fail closed).
func (s *Store) IsValid(ctx context.Context, userID int64) bool {
	const q = `SELECT access_time FROM users WHERE user_id = ?;`

	var raw string
	err := s.db.QueryRowContext(ctx, q, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		s.log.WithField("user_id", userID).WithError(err).Error("access lookup failed")
		return false
	}

	grantedAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.log.WithField("user_id", userID).WithError(err).Error("malformed access time, treating as expired")
		return false
	}
	return s.now().UTC().Sub(grantedAt) < s.window
}
