package session

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps snapshots in a SQLite database so that sessions survive
// a server restart until they expire.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at cfg.SQLitePath and
// drops entries that expired while the server was down.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.SQLitePath == "" {
		return nil, fmt.Errorf("sqlite session store requires a path")
	}

	// Ensure directory exists
	dir := filepath.Dir(cfg.SQLitePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &SQLiteStore{db: db, ttl: cfg.TTL, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	n, err := s.PurgeExpired()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	if n > 0 {
		log.Printf("[Session] purged %d expired entries from %s", n, cfg.SQLitePath)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_session_entries_expires ON session_entries(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// expiry returns the expiry timestamp for an entry written now. A zero TTL
// never expires.
func (s *SQLiteStore) expiry() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return s.now().Add(s.ttl).Unix()
}

// Get retrieves a value that has not expired.
func (s *SQLiteStore) Get(key string) ([]byte, error) {
	row := s.db.QueryRow(`
		SELECT value FROM session_entries
		WHERE key = ? AND (expires_at = 0 OR expires_at > ?)
	`, key, s.now().Unix())

	var value []byte
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores a value, replacing any previous one and resetting its expiry.
func (s *SQLiteStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO session_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, s.expiry())
	return err
}

// Delete removes a value.
func (s *SQLiteStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM session_entries WHERE key = ?`, key)
	return err
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (s *SQLiteStore) PurgeExpired() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		DELETE FROM session_entries WHERE expires_at != 0 AND expires_at <= ?
	`, s.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
