package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"wrls/internal/notices/models"
	"wrls/pkg/platform/sentinel"
)

type memoryEntry struct {
	session   models.Session
	expiresAt time.Time
}

// InMemoryStore is the development counterpart of RedisStore.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]memoryEntry
	ttl     time.Duration
	clock   func() time.Time
}

// NewInMemory constructs an empty in-memory session store.
func NewInMemory(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{
		entries: make(map[uuid.UUID]memoryEntry),
		ttl:     ttl,
		clock:   time.Now,
	}
}

func (s *InMemoryStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	if e, ok := s.entries[session.ID]; ok && now.Before(e.expiresAt) {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
	}
	s.entries[session.ID] = memoryEntry{session: *session, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || !s.clock().Before(e.expiresAt) {
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	session := e.session
	return &session, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}
