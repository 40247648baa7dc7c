package session

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps state in process memory with expiry.
type MemoryStore struct {
	mu    sync.Mutex // serializes Take so get+delete is atomic
	cache *cache.Cache
}

// NewMemoryStore creates a store whose entries expire after ttl. Expired entries are
// purged every ttl/6, at least once a minute.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cleanup := ttl / 6
	if cleanup > time.Minute {
		cleanup = time.Minute
	}
	return &MemoryStore{cache: cache.New(ttl, cleanup)}
}

// Type returns "memory".
func (s *MemoryStore) Type() string { return "memory" }

// Save stores a copy of state under workflowID.
func (s *MemoryStore) Save(ctx context.Context, workflowID string, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(workflowID, append([]byte(nil), state...), cache.DefaultExpiration)
	return nil
}

// Take returns and removes the state for workflowID.
func (s *MemoryStore) Take(ctx context.Context, workflowID string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, found := s.cache.Get(workflowID)
	if !found {
		return nil, false, nil
	}
	s.cache.Delete(workflowID)
	return x.([]byte), true, nil
}

// Delete removes any state for workflowID.
func (s *MemoryStore) Delete(ctx context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(workflowID)
	return nil
}

// Len returns the number of unexpired entries.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}

// Close flushes all entries.
func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
