package session

import (
	"context"
	"sync"
	"time"

	"healthbridge/internal/domain/entity"
	"healthbridge/internal/errors"
)

type memoryEntry struct {
	session   entity.Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Sessions do not survive a restart and
// are not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an empty store reading time from now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: now}
}

func (s *MemoryStore) Load(_ context.Context, id string) (*entity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, id)
		return nil, nil
	}

	sess := entry.session
	sess.ID = id

	return &sess, nil
}

func (s *MemoryStore) Save(_ context.Context, sess *entity.Session, ttl time.Duration) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session id is required")
	}
	if ttl <= 0 {
		return errors.Errorf("session ttl must be positive, got %s", ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[sess.ID] = memoryEntry{session: *sess, expiresAt: s.now().Add(ttl)}

	return nil
}

func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)

	return nil
}

// Prune drops expired sessions and returns how many were removed.
func (s *MemoryStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}

	return removed
}
