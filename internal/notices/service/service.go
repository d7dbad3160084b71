// Package service runs the notice setup journey: create a session, review
// its recipients, download them and send the notice.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"wrls/internal/notices/metrics"
	"wrls/internal/notices/models"
	"wrls/internal/notices/recipients"
)

// Fetcher resolves the recipients of a session.
type Fetcher interface {
	Fetch(ctx context.Context, session *models.Session, shape recipients.Shape) ([]models.Recipient, error)
}

// SessionStore keeps setup sessions between requests.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventStore persists a sent notice. Calls made with the context passed to
// fn join its transaction.
type EventStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateEvent(ctx context.Context, event *models.Event) error
	CreateNotifications(ctx context.Context, notifications []models.Notification) error
	Event(ctx context.Context, id uuid.UUID) (*models.Event, error)
	NotificationsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Notification, error)
}

// Service implements the notice setup operations.
type Service struct {
	fetcher  Fetcher
	sessions SessionStore
	events   EventStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs the notice service.
func New(fetcher Fetcher, sessions SessionStore, events EventStore, opts ...Option) (*Service, error) {
	if fetcher == nil {
		return nil, errors.New("recipient fetcher is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if events == nil {
		return nil, errors.New("event store is required")
	}
	s := &Service{
		fetcher:  fetcher,
		sessions: sessions,
		events:   events,
		logger:   slog.Default(),
		tracer:   otel.Tracer("wrls/internal/notices/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}
