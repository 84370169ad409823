package publish

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps artifacts in process memory until they expire
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

type memoryItem struct {
	artifact Artifact
	expires  time.Time
}

// NewMemoryStore creates a store whose entries live for ttl (forever when ttl <= 0)
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Put stores a copy of a
func (s *MemoryStore) Put(_ context.Context, a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired()
	item := memoryItem{artifact: a}
	item.artifact.Data = append([]byte(nil), a.Data...)
	if s.ttl > 0 {
		item.expires = s.now().Add(s.ttl)
	}
	s.items[a.ID] = item
	return nil
}

// Get returns an artifact that has not expired
func (s *MemoryStore) Get(_ context.Context, id string) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || s.expired(item) {
		delete(s.items, id)
		return Artifact{}, ErrNotFound
	}
	return item.artifact, nil
}

// String names the backend
func (s *MemoryStore) String() string {
	return fmt.Sprintf("memory(ttl=%s)", s.ttl)
}

// Len returns the number of live artifacts
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	return len(s.items)
}

// Close drops every artifact
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]memoryItem)
	return nil
}

func (s *MemoryStore) expired(item memoryItem) bool {
	return !item.expires.IsZero() && !s.now().Before(item.expires)
}

func (s *MemoryStore) evictExpired() {
	for id, item := range s.items {
		if s.expired(item) {
			delete(s.items, id)
		}
	}
}
