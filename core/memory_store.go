package core

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process KeyValueStore with TTL support. It backs the
// gateway's device verification cache and serves as the scorer's dedupe
// fallback when Redis is down. Expired entries are reaped lazily on access
// and by a background sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]memoryItem
	done    chan struct{}
	closeMu sync.Once
}

type memoryItem struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates a store and starts its expiry sweep.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		items: make(map[string]memoryItem),
		done:  make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for k, it := range s.items {
				if !it.expiresAt.IsZero() && now.After(it.expiresAt) {
					delete(s.items, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Get returns the value at key, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	if !it.expiresAt.IsZero() && time.Now().After(it.expiresAt) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return "", ErrNotFound
	}
	return it.value, nil
}

// Set stores value at key. A non-positive ttl means no expiry.
func (s *MemoryStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	it := memoryItem{value: value}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = it
	s.mu.Unlock()
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Exists reports whether key holds an unexpired value.
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close stops the expiry sweep.
func (s *MemoryStore) Close() {
	s.closeMu.Do(func() { close(s.done) })
}
