package outbox

//go:generate mockgen -source=relay.go -destination=mocks/mocks.go -package=mocks Store,Publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"wrls/internal/notices/metrics"
	"wrls/internal/notices/models"
	"wrls/internal/notices/outbox/mocks"
	"wrls/internal/notices/store"
	"wrls/pkg/platform/circuit"
)

type RelaySuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	publisher *mocks.MockPublisher
	events    *store.MemoryEventStore
	relay     *Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.events = store.NewMemoryEventStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var err error
	s.relay, err = NewRelay(s.events, s.publisher,
		WithLogger(logger),
		WithMetrics(metrics.NewWithRegisterer(prometheus.NewRegistry())),
		WithBatchSize(2),
		WithInterval(10*time.Millisecond),
	)
	s.Require().NoError(err)
}

func (s *RelaySuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RelaySuite) queue(n int) {
	ns := make([]models.Notification, n)
	for i := range ns {
		ns[i] = models.Notification{ID: uuid.New(), EventID: uuid.New(), Status: models.NotificationStatusPending}
	}
	s.Require().NoError(s.events.CreateNotifications(context.Background(), ns))
}

func allIDs(entries []models.OutboxEntry) []uuid.UUID {
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func (s *RelaySuite) TestNewRelay() {
	s.Run("nil store returns error", func() {
		_, err := NewRelay(nil, s.publisher)
		s.Require().Error(err)
		s.Contains(err.Error(), "outbox store is required")
	})

	s.Run("nil publisher returns error", func() {
		_, err := NewRelay(s.events, nil)
		s.Require().Error(err)
		s.Contains(err.Error(), "outbox publisher is required")
	})
}

func (s *RelaySuite) TestRelayOnceHonoursBatchSize() {
	s.queue(3)

	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Len(2)).
		DoAndReturn(func(_ context.Context, entries []models.OutboxEntry) ([]uuid.UUID, error) {
			return allIDs(entries), nil
		})

	n, err := s.relay.RelayOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal(1, s.events.Unpublished())
}

func (s *RelaySuite) TestRelayOnceLeavesFailedEntries() {
	s.queue(1)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil, errors.New("broker down"))

	n, err := s.relay.RelayOnce(context.Background())
	s.Error(err)
	s.Zero(n)
	s.Equal(1, s.events.Unpublished())
}

func (s *RelaySuite) TestRelayOnceEmptyOutboxSkipsPublisher() {
	n, err := s.relay.RelayOnce(context.Background())
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RelaySuite) TestRunDrainsUntilCancelled() {
	s.queue(3)
	ctx, cancel := context.WithCancel(context.Background())

	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, entries []models.OutboxEntry) ([]uuid.UUID, error) {
			return allIDs(entries), nil
		}).Times(2)

	done := make(chan error, 1)
	go func() { done <- s.relay.Run(ctx) }()

	s.Eventually(func() bool { return s.events.Unpublished() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	s.NoError(<-done)
}

func (s *RelaySuite) TestRelayPropagatesStoreErrors() {
	mockStore := mocks.NewMockStore(s.ctrl)
	relay, err := NewRelay(mockStore, s.publisher)
	s.Require().NoError(err)

	boom := errors.New("connection reset")
	mockStore.EXPECT().ProcessOutbox(gomock.Any(), defaultBatchSize, gomock.Any()).Return(0, boom)

	_, err = relay.RelayOnce(context.Background())
	s.ErrorIs(err, boom)
}

func (s *RelaySuite) TestRunBacksOffWhileBreakerOpen() {
	s.queue(1)
	breaker := circuit.New("test", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(1))
	relay, err := NewRelay(s.events, s.publisher,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithInterval(5*time.Millisecond),
		WithCooldown(time.Hour),
		WithBreaker(breaker),
	)
	s.Require().NoError(err)

	calls := make(chan struct{}, 10)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []models.OutboxEntry) ([]uuid.UUID, error) {
			calls <- struct{}{}
			return nil, errors.New("broker down")
		}).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	<-calls
	s.Eventually(breaker.IsOpen, time.Second, 5*time.Millisecond)
	// With an hour of cooldown no second publish happens.
	time.Sleep(30 * time.Millisecond)
	cancel()
	s.NoError(<-done)
	s.Equal(1, s.events.Unpublished())
}

func (s *RelaySuite) TestTrackIgnoresEmptyPolls() {
	breaker := circuit.New("test", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(1))
	relay, err := NewRelay(s.events, s.publisher, WithBreaker(breaker))
	s.Require().NoError(err)

	relay.track(context.Background(), 0, errors.New("broker down"))
	s.True(breaker.IsOpen())

	relay.track(context.Background(), 0, nil)
	s.True(breaker.IsOpen(), "an empty poll does not count as a success")

	relay.track(context.Background(), 1, nil)
	s.False(breaker.IsOpen())
}
