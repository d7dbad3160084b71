package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"wrls/internal/notices/models"
	"wrls/pkg/platform/sentinel"
)

type memoryTxKey struct{}

// memoryTx buffers writes until RunInTx commits them.
type memoryTx struct {
	events        []models.Event
	notifications []models.Notification
	outbox        []models.OutboxEntry
}

// MemoryEventStore is the in-memory counterpart of PostgresEventStore.
// Writes made inside RunInTx are applied only when fn succeeds.
type MemoryEventStore struct {
	txMu sync.Mutex

	mu            sync.RWMutex
	events        map[uuid.UUID]models.Event
	references    map[string]uuid.UUID
	notifications []models.Notification
	outbox        []models.OutboxEntry
}

// NewMemoryEventStore constructs an empty in-memory event store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		events:     make(map[uuid.UUID]models.Event),
		references: make(map[string]uuid.UUID),
	}
}

// RunInTx serialises transactions and commits buffered writes when fn
// returns nil.
func (s *MemoryEventStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{}
	if err := fn(context.WithValue(ctx, memoryTxKey{}, tx)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range tx.events {
		if _, taken := s.references[e.ReferenceCode]; taken {
			return fmt.Errorf("event reference %s: %w", e.ReferenceCode, sentinel.ErrConflict)
		}
	}
	for _, e := range tx.events {
		s.events[e.ID] = e
		s.references[e.ReferenceCode] = e.ID
	}
	s.notifications = append(s.notifications, tx.notifications...)
	s.outbox = append(s.outbox, tx.outbox...)
	return nil
}

func memoryTxFrom(ctx context.Context) (*memoryTx, bool) {
	tx, ok := ctx.Value(memoryTxKey{}).(*memoryTx)
	return tx, ok
}

// CreateEvent stores an event.
func (s *MemoryEventStore) CreateEvent(ctx context.Context, event *models.Event) error {
	e := *event
	e.Licences = slices.Clone(event.Licences)

	if tx, ok := memoryTxFrom(ctx); ok {
		tx.events = append(tx.events, e)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.references[e.ReferenceCode]; taken {
		return fmt.Errorf("event reference %s: %w", e.ReferenceCode, sentinel.ErrConflict)
	}
	s.events[e.ID] = e
	s.references[e.ReferenceCode] = e.ID
	return nil
}

// CreateNotifications stores notifications and their outbox entries.
func (s *MemoryEventStore) CreateNotifications(ctx context.Context, notifications []models.Notification) error {
	entries := make([]models.OutboxEntry, 0, len(notifications))
	for _, n := range notifications {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal notification payload: %w", err)
		}
		entries = append(entries, models.OutboxEntry{
			ID:          uuid.New(),
			AggregateID: n.ID,
			EventType:   models.OutboxEventNotificationCreated,
			Payload:     payload,
			CreatedAt:   n.CreatedAt,
		})
	}

	if tx, ok := memoryTxFrom(ctx); ok {
		tx.notifications = append(tx.notifications, notifications...)
		tx.outbox = append(tx.outbox, entries...)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, notifications...)
	s.outbox = append(s.outbox, entries...)
	return nil
}

// Event returns the event with id, or sentinel.ErrNotFound.
func (s *MemoryEventStore) Event(_ context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, sentinel.ErrNotFound)
	}
	return &e, nil
}

// NotificationsByEvent lists an event's notifications in insertion order.
func (s *MemoryEventStore) NotificationsByEvent(_ context.Context, eventID uuid.UUID) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.EventID == eventID {
			out = append(out, n)
		}
	}
	return out, nil
}

// ProcessOutbox hands up to limit unpublished entries to publish and marks
// the returned ids as published.
func (s *MemoryEventStore) ProcessOutbox(
	ctx context.Context,
	limit int,
	publish func(ctx context.Context, entries []models.OutboxEntry) ([]uuid.UUID, error),
) (int, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	var entries []models.OutboxEntry
	for _, e := range s.outbox {
		if e.PublishedAt == nil && len(entries) < limit {
			entries = append(entries, e)
		}
	}
	s.mu.RUnlock()

	if len(entries) == 0 {
		return 0, nil
	}

	ids, publishErr := publish(ctx, entries)
	if len(ids) > 0 {
		now := time.Now().UTC()
		s.mu.Lock()
		for i := range s.outbox {
			if slices.Contains(ids, s.outbox[i].ID) {
				s.outbox[i].PublishedAt = &now
			}
		}
		s.mu.Unlock()
	}
	return len(ids), publishErr
}

// Unpublished counts outbox entries not yet relayed.
func (s *MemoryEventStore) Unpublished() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.outbox {
		if e.PublishedAt == nil {
			n++
		}
	}
	return n
}
