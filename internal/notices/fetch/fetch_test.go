package fetch

//go:generate mockgen -source=fetch.go -destination=mocks/mocks.go -package=mocks Source

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

	"wrls/internal/notices/fetch/mocks"
	"wrls/internal/notices/metrics"
	"wrls/internal/notices/models"
	"wrls/internal/notices/recipients"
	dErrors "wrls/pkg/domain-errors"
	"wrls/pkg/requestcontext"
)

type FetcherSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	source  *mocks.MockSource
	fetcher *Fetcher
	ctx     context.Context
	today   time.Time
}

func TestFetcherSuite(t *testing.T) {
	suite.Run(t, new(FetcherSuite))
}

func (s *FetcherSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.source = mocks.NewMockSource(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var err error
	s.fetcher, err = New(s.source,
		WithLogger(logger),
		WithMetrics(metrics.NewWithRegisterer(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
	s.today = time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.today)
}

func (s *FetcherSuite) TearDownTest() {
	s.ctrl.Finish()
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func snapshot(due *time.Time) *models.Snapshot {
	return &models.Snapshot{
		DueReturnLogs: []models.DueReturnLog{{
			ID:              "log-1",
			ReturnReference: "10001",
			LicenceRef:      "01/123",
			StartDate:       date(2024, 4, 1),
			EndDate:         date(2025, 3, 31),
			DueDate:         due,
			Status:          models.ReturnLogStatusDue,
		}},
		Licences: map[string]models.LicenceContacts{
			"01/123": {
				LicenceRef: "01/123",
				Contacts: []models.Contact{{
					Name:         "Acme Farms Ltd",
					AddressLine1: "1 Water Lane",
					Town:         "Bristol",
					Postcode:     "BS1 5AH",
					Type:         models.ContactKindOrganisation,
					Role:         models.ContactRoleLicenceHolder,
				}},
			},
		},
	}
}

func (s *FetcherSuite) TestNew() {
	s.Run("nil source returns error", func() {
		_, err := New(nil)
		s.Require().Error(err)
		s.Contains(err.Error(), "recipient source is required")
	})
}

func (s *FetcherSuite) TestStandardInvitations() {
	period := &models.ReturnsPeriod{Name: "allYear", StartDate: date(2024, 4, 1), EndDate: date(2025, 3, 31), DueDate: date(2025, 4, 28)}
	session := &models.Session{
		ID:                      uuid.New(),
		NoticeType:              models.NoticeTypeInvitations,
		Journey:                 models.JourneyStandard,
		DeterminedReturnsPeriod: period,
		ExcludedLicences:        []string{"02/999"},
	}

	s.Run("filters by period and unset due dates", func() {
		s.source.EXPECT().Snapshot(gomock.Any(), models.DueReturnLogFilter{
			ExcludedLicenceRefs: []string{"02/999"},
			Period:              period,
			DueDate:             models.DueDateNull,
		}).Return(snapshot(nil), nil)

		rs, err := s.fetcher.Fetch(s.ctx, session, recipients.ShapeSending)
		s.Require().NoError(err)
		s.Require().Len(rs, 1)
		s.Equal(models.ContactTypeLicenceHolder, rs[0].ContactType)
		s.Equal(date(2025, 5, 9), rs[0].NotificationDueDate, "letter fallback is today plus 29 days")
	})

	s.Run("missing period is a validation error", func() {
		_, err := s.fetcher.Fetch(s.ctx, &models.Session{
			NoticeType: models.NoticeTypeInvitations,
			Journey:    models.JourneyStandard,
		}, recipients.ShapeSending)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *FetcherSuite) TestStandardReminders() {
	period := &models.ReturnsPeriod{Name: "allYear", StartDate: date(2024, 4, 1), EndDate: date(2025, 3, 31)}
	session := &models.Session{
		NoticeType:              models.NoticeTypeReminders,
		Journey:                 models.JourneyStandard,
		DeterminedReturnsPeriod: period,
	}

	s.source.EXPECT().Snapshot(gomock.Any(), models.DueReturnLogFilter{
		Period:  period,
		DueDate: models.DueDateNotNull,
	}).Return(snapshot(ptr(date(2025, 4, 28))), nil)

	rs, err := s.fetcher.Fetch(s.ctx, session, recipients.ShapeSending)
	s.Require().NoError(err)
	s.Require().Len(rs, 1)
	s.Equal(date(2025, 4, 28), rs[0].NotificationDueDate)
}

func (s *FetcherSuite) TestAdHoc() {
	s.Run("requires a licence reference", func() {
		_, err := s.fetcher.Fetch(s.ctx, &models.Session{
			NoticeType: models.NoticeTypeInvitations,
			Journey:    models.JourneyAdHoc,
		}, recipients.ShapeSending)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("adds single use recipients", func() {
		session := &models.Session{
			NoticeType: models.NoticeTypeInvitations,
			Journey:    models.JourneyAdHoc,
			LicenceRef: "01/123",
			AdditionalRecipients: []models.AdditionalRecipient{
				{Email: "agent@example.com"},
			},
		}
		s.source.EXPECT().Snapshot(gomock.Any(), models.DueReturnLogFilter{
			LicenceRefs: []string{"01/123"},
		}).Return(snapshot(nil), nil)

		rs, err := s.fetcher.Fetch(s.ctx, session, recipients.ShapeSending)
		s.Require().NoError(err)
		s.Require().Len(rs, 2)

		var singleUse *models.Recipient
		for i := range rs {
			if rs[i].ContactType == models.ContactTypeSingleUse {
				singleUse = &rs[i]
			}
		}
		s.Require().NotNil(singleUse)
		s.Equal("agent@example.com", singleUse.Email)
		s.Equal(date(2025, 5, 8), singleUse.NotificationDueDate, "email fallback is today plus 28 days")
	})

	s.Run("reminders only read logs with a due date", func() {
		session := &models.Session{
			NoticeType: models.NoticeTypeReminders,
			Journey:    models.JourneyAdHoc,
			LicenceRef: "01/123",
		}
		s.source.EXPECT().Snapshot(gomock.Any(), models.DueReturnLogFilter{
			LicenceRefs: []string{"01/123"},
			DueDate:     models.DueDateNotNull,
		}).Return(snapshot(ptr(date(2025, 4, 28))), nil)

		_, err := s.fetcher.Fetch(s.ctx, session, recipients.ShapeSending)
		s.Require().NoError(err)
	})
}

func (s *FetcherSuite) TestPaperReturn() {
	s.Run("requires selected returns", func() {
		_, err := s.fetcher.Fetch(s.ctx, &models.Session{NoticeType: models.NoticeTypePaperReturn}, recipients.ShapeDownload)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("ignores email additional recipients", func() {
		session := &models.Session{
			NoticeType:        models.NoticeTypePaperReturn,
			Journey:           models.JourneyAdHoc,
			SelectedReturnIDs: []string{"log-1"},
			AdditionalRecipients: []models.AdditionalRecipient{
				{Email: "someone@example.com"},
			},
		}
		s.source.EXPECT().Snapshot(gomock.Any(), models.DueReturnLogFilter{
			ReturnLogIDs: []string{"log-1"},
		}).Return(snapshot(ptr(date(2025, 4, 28))), nil)

		rs, err := s.fetcher.Fetch(s.ctx, session, recipients.ShapeDownload)
		s.Require().NoError(err)
		s.Require().Len(rs, 1)
		s.Equal(models.MessageTypeLetter, rs[0].MessageType)
		s.Equal(date(2025, 4, 28), rs[0].NotificationDueDate)
	})
}

func (s *FetcherSuite) TestAlternateInvitations() {
	s.Run("requires a due date", func() {
		_, err := s.fetcher.Fetch(s.ctx, &models.Session{
			NoticeType:      models.NoticeTypeAlternateInvitations,
			FailedReturnIDs: []string{"log-1"},
		}, recipients.ShapeSending)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("stamps the session due date on every recipient", func() {
		session := &models.Session{
			NoticeType:      models.NoticeTypeAlternateInvitations,
			FailedReturnIDs: []string{"log-1"},
			DueDate:         ptr(date(2025, 6, 1)),
		}
		s.source.EXPECT().Snapshot(gomock.Any(), models.DueReturnLogFilter{
			ReturnLogIDs: []string{"log-1"},
		}).Return(snapshot(nil), nil)

		rs, err := s.fetcher.Fetch(s.ctx, session, recipients.ShapeSending)
		s.Require().NoError(err)
		s.Require().Len(rs, 1)
		s.Equal(date(2025, 6, 1), rs[0].NotificationDueDate)
	})
}

func (s *FetcherSuite) TestSourceErrorPropagates() {
	boom := errors.New("connection refused")
	s.source.EXPECT().Snapshot(gomock.Any(), gomock.Any()).Return(nil, boom)

	_, err := s.fetcher.Fetch(s.ctx, &models.Session{
		NoticeType:        models.NoticeTypePaperReturn,
		SelectedReturnIDs: []string{"log-1"},
	}, recipients.ShapeSending)
	s.ErrorIs(err, boom)
}

func (s *FetcherSuite) TestUnsupportedNoticeType() {
	_, err := s.fetcher.Fetch(s.ctx, &models.Session{NoticeType: "newsletter"}, recipients.ShapeSending)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
