package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/allegro/bigcache/v3"
)

// BigCacheStore keeps snapshots in process memory with a fixed lifetime.
type BigCacheStore struct {
	cache *bigcache.BigCache
}

// NewBigCacheStore creates an in-memory store. Entries expire TTL after
// they were written.
func NewBigCacheStore(cfg Config) (*BigCacheStore, error) {
	shards := cfg.Shards
	if shards <= 0 {
		shards = 8
	}

	c, err := bigcache.New(context.Background(), bigcache.Config{
		Shards:             shards,
		LifeWindow:         cfg.TTL,
		CleanWindow:        cfg.TTL / 2,
		MaxEntriesInWindow: 1024,
		MaxEntrySize:       64 * 1024, // initial sizing hint: one cell's bins
		HardMaxCacheSize:   cfg.MaxSizeMB,
		Verbose:            false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &BigCacheStore{cache: c}, nil
}

// Get retrieves a value.
func (s *BigCacheStore) Get(key string) ([]byte, error) {
	data, err := s.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

// Set stores a value, replacing any previous one.
func (s *BigCacheStore) Set(key string, value []byte) error {
	return s.cache.Set(key, value)
}

// Delete removes a value. Deleting an absent key is not an error.
func (s *BigCacheStore) Delete(key string) error {
	err := s.cache.Delete(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}

// Len returns the number of stored entries.
func (s *BigCacheStore) Len() int {
	return s.cache.Len()
}

// Close releases the cache.
func (s *BigCacheStore) Close() error {
	return s.cache.Close()
}
