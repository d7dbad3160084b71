package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"wrls/internal/notices/models"
)

// KafkaPublisher produces each entry to a topic keyed by notification id,
// so all events for one notification land on the same partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher constructs a publisher for topic.
func NewKafkaPublisher(client *kgo.Client, topic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic}
}

// Publish produces entries synchronously and returns the ids that were
// acknowledged. Failures are joined into the returned error.
func (p *KafkaPublisher) Publish(ctx context.Context, entries []models.OutboxEntry) ([]uuid.UUID, error) {
	records := make([]*kgo.Record, len(entries))
	ids := make(map[*kgo.Record]uuid.UUID, len(entries))
	for i, e := range entries {
		rec := &kgo.Record{
			Topic: p.topic,
			Key:   []byte(e.AggregateID.String()),
			Value: e.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(e.EventType)},
				{Key: "outbox_id", Value: []byte(e.ID.String())},
			},
		}
		records[i] = rec
		ids[rec] = e.ID
	}

	var (
		published []uuid.UUID
		errs      []error
	)
	for _, res := range p.client.ProduceSync(ctx, records...) {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("produce %s: %w", ids[res.Record], res.Err))
			continue
		}
		published = append(published, ids[res.Record])
	}
	return published, errors.Join(errs...)
}

// LogPublisher writes entries to the log instead of a broker. It is wired
// when no brokers are configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, entries []models.OutboxEntry) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		p.logger.InfoContext(ctx, "notification queued",
			"outbox_id", e.ID,
			"notification_id", e.AggregateID,
			"event_type", e.EventType,
		)
		ids = append(ids, e.ID)
	}
	return ids, nil
}
