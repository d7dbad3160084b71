// Package outbox relays queued notifications from the outbox table to the
// delivery topic.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"wrls/internal/notices/metrics"
	"wrls/internal/notices/models"
	"wrls/pkg/platform/circuit"
)

const (
	defaultInterval  = 2 * time.Second
	defaultBatchSize = 100
	defaultCooldown  = 30 * time.Second
)

// Store claims unpublished entries and marks the ones publish returns.
type Store interface {
	ProcessOutbox(ctx context.Context, limit int, publish func(ctx context.Context, entries []models.OutboxEntry) ([]uuid.UUID, error)) (int, error)
}

// Publisher delivers entries and returns the ids it delivered.
type Publisher interface {
	Publish(ctx context.Context, entries []models.OutboxEntry) ([]uuid.UUID, error)
}

// Relay polls the outbox and hands batches to a Publisher.
type Relay struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batchSize int
	breaker   *circuit.Breaker
	cooldown  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithInterval sets the poll interval used when the outbox is drained.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize caps how many entries are claimed per poll.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithBreaker replaces the default publish circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Relay) {
		if b != nil {
			r.breaker = b
		}
	}
}

// WithCooldown sets the poll interval used while the breaker is open.
func WithCooldown(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.cooldown = d
		}
	}
}

// NewRelay constructs a relay.
func NewRelay(store Store, publisher Publisher, opts ...Option) (*Relay, error) {
	if store == nil {
		return nil, errors.New("outbox store is required")
	}
	if publisher == nil {
		return nil, errors.New("outbox publisher is required")
	}
	r := &Relay{
		store:     store,
		publisher: publisher,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		breaker:   circuit.New("outbox-publisher"),
		cooldown:  defaultCooldown,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run relays until ctx is cancelled. A full batch is followed immediately by
// another poll; otherwise the relay waits for the interval. Publish failures
// are logged and retried on the next poll, at the cooldown interval once the
// breaker has opened.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "outbox relay started", "interval", r.interval, "batch_size", r.batchSize)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")
			return nil
		case <-timer.C:
		}

		n, err := r.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
		}

		r.track(ctx, n, err)

		next := r.interval
		switch {
		case r.breaker.IsOpen():
			next = r.cooldown
		case err == nil && n == r.batchSize:
			next = 0
		}
		timer.Reset(next)
	}
}

// RelayOnce processes a single batch and returns how many entries were published.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	n, err := r.store.ProcessOutbox(ctx, r.batchSize, r.publisher.Publish)
	if r.metrics != nil {
		r.metrics.IncrementOutboxPublished(n)
		if err != nil {
			r.metrics.IncrementOutboxFailed()
		}
	}
	if n > 0 {
		r.logger.DebugContext(ctx, "outbox entries published", "count", n)
	}
	return n, err
}

// track feeds publish outcomes to the breaker. An empty poll says nothing
// about the publisher and is not recorded.
func (r *Relay) track(ctx context.Context, n int, err error) {
	if err != nil {
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.logger.WarnContext(ctx, "outbox publisher circuit opened",
				"breaker", r.breaker.Name(),
				"cooldown", r.cooldown,
			)
		}
		return
	}
	if n == 0 {
		return
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "outbox publisher circuit closed", "breaker", r.breaker.Name())
	}
}
