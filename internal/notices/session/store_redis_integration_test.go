//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"wrls/internal/notices/models"
	"wrls/internal/notices/session"
	"wrls/pkg/platform/sentinel"
	"wrls/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = session.NewRedis(s.redis.Client, session.WithRedisTTL(time.Minute))
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func makeSession() *models.Session {
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &models.Session{
		ID:              uuid.New(),
		NoticeType:      models.NoticeTypeAlternateInvitations,
		Journey:         models.JourneyStandard,
		ReferenceCode:   "RINV-Z9Y8X7",
		FailedReturnIDs: []string{"r1", "r2"},
		DueDate:         &due,
		AdditionalRecipients: []models.AdditionalRecipient{
			{Contact: &models.Contact{Name: "Jane Doe", Postcode: "BS1 5AH"}},
		},
		CreatedBy: "staff@example.gov.uk",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	sess := makeSession()
	s.Require().NoError(s.store.Create(ctx, sess))

	got, err := s.store.Get(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.ReferenceCode, got.ReferenceCode)
	s.Equal(sess.FailedReturnIDs, got.FailedReturnIDs)
	s.True(sess.DueDate.Equal(*got.DueDate))
	s.Equal("Jane Doe", got.AdditionalRecipients[0].Contact.Name)

	ttl, err := s.redis.Client.TTL(ctx, "notices:session:"+sess.ID.String()).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisStoreSuite) TestCreateConflict() {
	ctx := context.Background()
	sess := makeSession()
	s.Require().NoError(s.store.Create(ctx, sess))
	s.ErrorIs(s.store.Create(ctx, sess), sentinel.ErrConflict)
}

func (s *RedisStoreSuite) TestMissingAndDeleted() {
	ctx := context.Background()
	_, err := s.store.Get(ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)

	sess := makeSession()
	s.Require().NoError(s.store.Create(ctx, sess))
	s.Require().NoError(s.store.Delete(ctx, sess.ID))
	_, err = s.store.Get(ctx, sess.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
