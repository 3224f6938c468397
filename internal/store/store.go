// Package store persists engine snapshots and the directive log to
// SQLite, so learned state survives restarts.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned by LatestSnapshot on an empty store.
var ErrNoSnapshot = errors.New("no snapshot stored")

// DirectiveRecord is one row of the persisted directive log.
type DirectiveRecord struct {
	ID           string
	Target       string
	Summary      string
	AutoExecuted bool
	IssuedAt     time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// New opens (or creates) the SQLite database at the given path.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		data TEXT NOT NULL,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS directives (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		summary TEXT NOT NULL,
		auto_executed INTEGER NOT NULL DEFAULT 0,
		issued_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_directives_issued ON directives(issued_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// SaveSnapshot appends a serialized engine snapshot.
func (s *Store) SaveSnapshot(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("INSERT INTO snapshots (data) VALUES (?)", string(data)); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recently saved snapshot.
func (s *Store) LatestSnapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var data string
	err := s.db.QueryRow("SELECT data FROM snapshots ORDER BY id DESC LIMIT 1").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return []byte(data), nil
}

// RecordDirective appends one directive to the persisted log.
func (s *Store) RecordDirective(d DirectiveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO directives (id, target, summary, auto_executed, issued_at) VALUES (?, ?, ?, ?, ?)",
		d.ID, d.Target, d.Summary, boolToInt(d.AutoExecuted), d.IssuedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record directive: %w", err)
	}
	return nil
}

// RecentDirectives returns up to n directives, newest first.
func (s *Store) RecentDirectives(n int) ([]DirectiveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(
		"SELECT id, target, summary, auto_executed, issued_at FROM directives ORDER BY issued_at DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("failed to query directives: %w", err)
	}
	defer rows.Close()

	out := []DirectiveRecord{}
	for rows.Next() {
		var d DirectiveRecord
		var auto int
		if err := rows.Scan(&d.ID, &d.Target, &d.Summary, &auto, &d.IssuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan directive: %w", err)
		}
		d.AutoExecuted = auto != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
