// Package project persists the catalog as a SQLite project document. The
// document is written and read whole; a sidecar lock file keeps a second
// process from opening the same project for writing.
package project

import (
	"database/sql"
	"fmt"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/mediabin/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS assets (
	position   INTEGER PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	path       TEXT NOT NULL UNIQUE,
	title      TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '',
	media_type TEXT NOT NULL DEFAULT '',
	metadata   TEXT NOT NULL DEFAULT '{}',
	sequence   TEXT
);

CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
`

const (
	keyImportPath = "import_path"
	keySavedAt    = "saved_at"
)

// Store is an open project document.
type Store struct {
	path string
	conn *sql.DB
	lock *flock.Flock
}

// Open opens (or creates) the project at path and takes its lock. It fails
// with apperr.ErrProjectLocked when another process holds the project.
func Open(path string) (*Store, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("project: acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("project: %s: %w", path, apperr.ErrProjectLocked)
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("project: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("project: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("project: apply schema: %w", err)
	}
	return &Store{path: path, conn: conn, lock: lock}, nil
}

// Path returns the project file path.
func (s *Store) Path() string { return s.path }

// Close closes the database and releases the lock.
func (s *Store) Close() error {
	err := s.conn.Close()
	if uerr := s.lock.Unlock(); uerr != nil && err == nil {
		err = fmt.Errorf("project: release lock: %w", uerr)
	}
	return err
}
