package session

import (
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUStore keeps the entries of at most MaxSessions sessions, evicting the
// least recently used session as a whole. Keys of the form
// "session:<sid>:..." belong to session <sid>; any other key is its own
// group. A session expires TTL after its last write.
type LRUStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, map[string][]byte]
}

// NewLRUStore creates a bounded in-memory store.
func NewLRUStore(cfg Config) (*LRUStore, error) {
	size := cfg.MaxSessions
	if size <= 0 {
		size = 128
	}
	return &LRUStore{cache: expirable.NewLRU[string, map[string][]byte](size, nil, cfg.TTL)}, nil
}

// groupOf returns the eviction group of key.
func groupOf(key string) string {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return key
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		return key[:len(keyPrefix)+i]
	}
	return key
}

// Get retrieves a value.
func (s *LRUStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.cache.Get(groupOf(key))
	if !ok {
		return nil, ErrNotFound
	}
	v, ok := entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Set stores a value, replacing any previous one.
func (s *LRUStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group := groupOf(key)
	entries, ok := s.cache.Get(group)
	if !ok {
		entries = make(map[string][]byte)
	}
	entries[key] = value
	s.cache.Add(group, entries)
	return nil
}

// Delete removes a value.
func (s *LRUStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group := groupOf(key)
	entries, ok := s.cache.Peek(group)
	if !ok {
		return nil
	}
	delete(entries, key)
	if len(entries) == 0 {
		s.cache.Remove(group)
	}
	return nil
}

// Len returns the number of stored sessions.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}

// Close drops every entry.
func (s *LRUStore) Close() error {
	s.cache.Purge()
	return nil
}
