//go:build integration

package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"wrls/internal/notices/models"
	"wrls/internal/notices/outbox"
	"wrls/internal/platform/kafka"
	"wrls/pkg/testutil/containers"
)

type KafkaPublisherSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	client   *kgo.Client
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
	client, err := kafka.NewClient(kafka.Config{Brokers: []string{s.redpanda.Broker}, ClientID: "wrls-test"})
	s.Require().NoError(err)
	s.client = client
}

func (s *KafkaPublisherSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *KafkaPublisherSuite) TestPublishKeysByNotification() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "wrls.notifications." + uuid.NewString()
	s.Require().NoError(kafka.EnsureTopic(ctx, s.client, topic, 1, 1))
	s.Require().NoError(kafka.EnsureTopic(ctx, s.client, topic, 1, 1), "existing topic is not an error")

	entry := models.OutboxEntry{
		ID:          uuid.New(),
		AggregateID: uuid.New(),
		EventType:   models.OutboxEventNotificationCreated,
		Payload:     []byte(`{"message_ref":"pdf.return_form"}`),
	}

	ids, err := outbox.NewKafkaPublisher(s.client, topic).Publish(ctx, []models.OutboxEntry{entry})
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{entry.ID}, ids)

	consumer, err := kafka.NewClient(kafka.Config{Brokers: []string{s.redpanda.Broker}},
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal(entry.AggregateID.String(), string(records[0].Key))
	s.JSONEq(`{"message_ref":"pdf.return_form"}`, string(records[0].Value))
}
