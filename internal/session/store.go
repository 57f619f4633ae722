// Package session keeps the per-session snapshot of the last loaded dataset.
//
// Snapshots live in a Store keyed by session id. Stores are safe for
// concurrent use, but requests within one session are not coordinated: two
// overlapping loads race and the last writer wins.
package session

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by a Store when a key is absent or expired.
var ErrNotFound = errors.New("session key not found")

// Store is an opaque key-value store with expiry owned by the backend.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendLRU    = "lru"
	BackendSQLite = "sqlite"
)

// Config selects and sizes a Store.
type Config struct {
	Backend     string
	TTL         time.Duration
	MaxSizeMB   int
	Shards      int
	MaxSessions int
	SQLitePath  string
}

// Open creates the Store named by cfg.Backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewBigCacheStore(cfg)
	case BackendLRU:
		return NewLRUStore(cfg)
	case BackendSQLite:
		return NewSQLiteStore(cfg)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
