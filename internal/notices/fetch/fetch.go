// Package fetch holds the per-notice strategies that decide which return
// logs are due and hand them to the recipient pipeline.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"wrls/internal/notices/metrics"
	"wrls/internal/notices/models"
	"wrls/internal/notices/recipients"
	"wrls/pkg/requestcontext"
)

// Source reads due return logs and their licence contacts in one consistent read.
type Source interface {
	Snapshot(ctx context.Context, filter models.DueReturnLogFilter) (*models.Snapshot, error)
}

// Fetcher resolves recipients for a notice setup session.
type Fetcher struct {
	source  Source
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Fetcher)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(f *Fetcher) {
		f.tracer = tracer
	}
}

// New constructs a Fetcher.
func New(source Source, opts ...Option) (*Fetcher, error) {
	if source == nil {
		return nil, errors.New("recipient source is required")
	}
	f := &Fetcher{
		source: source,
		logger: slog.Default(),
		tracer: otel.Tracer("wrls/internal/notices/fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch resolves the recipients of session in the requested shape, each
// stamped with its notification due date.
func (f *Fetcher) Fetch(ctx context.Context, session *models.Session, shape recipients.Shape) ([]models.Recipient, error) {
	start := time.Now()

	s, err := strategyFor(session)
	if err != nil {
		return nil, err
	}

	ctx, span := f.tracer.Start(ctx, "notices.fetch", trace.WithAttributes(
		attribute.String("notice.type", string(session.NoticeType)),
		attribute.String("notice.journey", string(session.Journey)),
		attribute.String("notice.strategy", s.name()),
		attribute.String("notice.shape", shape.String()),
	))
	defer span.End()

	filter, err := s.filter(session)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	snapshot, err := f.source.Snapshot(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot read failed")
		return nil, err
	}

	resolved := recipients.Generate(session.NoticeType, snapshot, shape)
	resolved = s.finish(session, snapshot, shape, resolved, requestcontext.Now(ctx))

	span.SetAttributes(
		attribute.Int("notice.due_return_logs", len(snapshot.DueReturnLogs)),
		attribute.Int("notice.recipients", len(resolved)),
	)
	f.record(session.NoticeType, shape, resolved, time.Since(start))
	f.logger.DebugContext(ctx, "recipients resolved",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"notice_type", session.NoticeType,
		"strategy", s.name(),
		"shape", shape.String(),
		"due_return_logs", len(snapshot.DueReturnLogs),
		"recipient_count", len(resolved),
	)
	return resolved, nil
}

func (f *Fetcher) record(noticeType models.NoticeType, shape recipients.Shape, rs []models.Recipient, d time.Duration) {
	if f.metrics == nil {
		return
	}
	counts := map[models.MessageType]int{}
	for _, r := range rs {
		counts[r.MessageType]++
	}
	for mt, n := range counts {
		f.metrics.IncrementRecipients(string(noticeType), shape.String(), string(mt), n)
	}
	f.metrics.ObserveFetchLatency(string(noticeType), d)
}
