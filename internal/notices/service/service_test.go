package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Fetcher,SessionStore,EventStore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"wrls/internal/notices/metrics"
	"wrls/internal/notices/models"
	"wrls/internal/notices/recipients"
	"wrls/internal/notices/service/mocks"
	dErrors "wrls/pkg/domain-errors"
	"wrls/pkg/platform/sentinel"
	"wrls/pkg/requestcontext"
	"wrls/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	fetcher  *mocks.MockFetcher
	sessions *mocks.MockSessionStore
	events   *mocks.MockEventStore
	service  *Service
	ctx      context.Context
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.fetcher = mocks.NewMockFetcher(s.ctrl)
	s.sessions = mocks.NewMockSessionStore(s.ctrl)
	s.events = mocks.NewMockEventStore(s.ctrl)

	var err error
	s.service, err = New(s.fetcher, s.sessions, s.events,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.NewWithRegisterer(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)

	s.now = time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithUserEmail(ctx, "officer@environment-agency.gov.uk")
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func letterRecipient() models.Recipient {
	return models.Recipient{
		ContactHashID: "hash-letter",
		ContactType:   models.ContactTypeLicenceHolder,
		MessageType:   models.MessageTypeLetter,
		Contact: &models.Contact{
			Name:         "Acme Farms Ltd",
			AddressLine1: "1 Water Lane",
			Town:         "Bristol",
			Postcode:     "BS1 5AH",
			Type:         models.ContactKindOrganisation,
		},
		LicenceRefs:         []string{"01/456", "01/123"},
		ReturnLogIDs:        []string{"log-1", "log-2"},
		PeriodStart:         date(2024, 4, 1),
		PeriodEnd:           date(2025, 3, 31),
		NotificationDueDate: date(2025, 4, 28),
	}
}

func emailRecipient() models.Recipient {
	return models.Recipient{
		ContactHashID:       "hash-email",
		ContactType:         models.ContactTypePrimaryUser,
		MessageType:         models.MessageTypeEmail,
		Email:               "user@example.com",
		LicenceRefs:         []string{"01/123"},
		ReturnLogIDs:        []string{"log-1"},
		PeriodStart:         date(2024, 4, 1),
		PeriodEnd:           date(2025, 3, 31),
		NotificationDueDate: date(2025, 4, 28),
	}
}

func (s *ServiceSuite) standardSession() *models.Session {
	return &models.Session{
		ID:            uuid.New(),
		NoticeType:    models.NoticeTypeInvitations,
		Journey:       models.JourneyStandard,
		ReferenceCode: "RINV-ABC123",
		ReturnsPeriod: "allYear",
		CreatedAt:     s.now,
	}
}

func (s *ServiceSuite) assertCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestNew() {
	_, err := New(nil, s.sessions, s.events)
	s.EqualError(err, "recipient fetcher is required")
	_, err = New(s.fetcher, nil, s.events)
	s.EqualError(err, "session store is required")
	_, err = New(s.fetcher, s.sessions, nil)
	s.EqualError(err, "event store is required")
}

func (s *ServiceSuite) TestCreateSession() {
	s.Run("standard invitations determine the returns period", func() {
		s.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		session, err := s.service.CreateSession(s.ctx, SetupCommand{
			NoticeType:       models.NoticeTypeInvitations,
			ReturnsPeriod:    "allYear",
			ExcludedLicences: []string{"01/999"},
		})
		s.Require().NoError(err)
		s.Equal(models.JourneyStandard, session.Journey)
		s.True(strings.HasPrefix(session.ReferenceCode, "RINV-"))
		s.Len(session.ReferenceCode, len("RINV-")+6)
		s.Equal("officer@environment-agency.gov.uk", session.CreatedBy)
		s.Require().NotNil(session.DeterminedReturnsPeriod)
		s.Equal(date(2024, 4, 1), session.DeterminedReturnsPeriod.StartDate)
		s.Equal(date(2025, 3, 31), session.DeterminedReturnsPeriod.EndDate)
		s.Equal(date(2025, 4, 28), session.DeterminedReturnsPeriod.DueDate)
	})

	s.Run("reminders use the reminder prefix", func() {
		s.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		session, err := s.service.CreateSession(s.ctx, SetupCommand{
			NoticeType: models.NoticeTypeReminders,
			Journey:    models.JourneyAdHoc,
			LicenceRef: " 01/123 ",
		})
		s.Require().NoError(err)
		s.True(strings.HasPrefix(session.ReferenceCode, "RREM-"))
		s.Equal("01/123", session.LicenceRef)
	})

	s.Run("ad-hoc accepts additional recipients", func() {
		s.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		session, err := s.service.CreateSession(s.ctx, SetupCommand{
			NoticeType: models.NoticeTypeInvitations,
			Journey:    models.JourneyAdHoc,
			LicenceRef: "01/123",
			AdditionalRecipients: []models.AdditionalRecipient{
				{Email: " extra@example.com "},
				{Contact: &models.Contact{Name: "Jane Doe", AddressLine1: "1 Road", Postcode: "BS1 5AH"}},
			},
		})
		s.Require().NoError(err)
		s.Equal("extra@example.com", session.AdditionalRecipients[0].Email)
	})

	s.Run("store failure is internal", func() {
		s.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

		_, err := s.service.CreateSession(s.ctx, SetupCommand{
			NoticeType:        models.NoticeTypePaperReturn,
			Journey:           models.JourneyAdHoc,
			LicenceRef:        "01/123",
			SelectedReturnIDs: []string{"log-1"},
		})
		s.assertCode(err, dErrors.CodeInternal)
	})
}

func (s *ServiceSuite) TestCreateSessionValidation() {
	due := date(2025, 5, 28)
	cases := []struct {
		name string
		cmd  SetupCommand
	}{
		{"unknown notice type", SetupCommand{NoticeType: "renewals"}},
		{"unknown journey", SetupCommand{NoticeType: models.NoticeTypeInvitations, Journey: "bulk"}},
		{"ad-hoc without licence", SetupCommand{NoticeType: models.NoticeTypeInvitations, Journey: models.JourneyAdHoc}},
		{"standard without period", SetupCommand{NoticeType: models.NoticeTypeReminders}},
		{"standard with unknown period", SetupCommand{NoticeType: models.NoticeTypeInvitations, ReturnsPeriod: "winter"}},
		{"paper return without selection", SetupCommand{NoticeType: models.NoticeTypePaperReturn}},
		{"alternate without failed returns", SetupCommand{NoticeType: models.NoticeTypeAlternateInvitations, DueDate: &due}},
		{"alternate without due date", SetupCommand{NoticeType: models.NoticeTypeAlternateInvitations, FailedReturnIDs: []string{"log-1"}}},
		{"additional recipients on standard journey", SetupCommand{
			NoticeType:           models.NoticeTypeInvitations,
			ReturnsPeriod:        "allYear",
			AdditionalRecipients: []models.AdditionalRecipient{{Email: "extra@example.com"}},
		}},
		{"additional recipients on alternate invitations", SetupCommand{
			NoticeType:           models.NoticeTypeAlternateInvitations,
			Journey:              models.JourneyAdHoc,
			FailedReturnIDs:      []string{"log-1"},
			DueDate:              &due,
			AdditionalRecipients: []models.AdditionalRecipient{{Contact: &models.Contact{Name: "Jane"}}},
		}},
		{"paper return email recipient", SetupCommand{
			NoticeType:           models.NoticeTypePaperReturn,
			Journey:              models.JourneyAdHoc,
			SelectedReturnIDs:    []string{"log-1"},
			AdditionalRecipients: []models.AdditionalRecipient{{Email: "extra@example.com"}},
		}},
		{"invalid email", SetupCommand{
			NoticeType:           models.NoticeTypeInvitations,
			Journey:              models.JourneyAdHoc,
			LicenceRef:           "01/123",
			AdditionalRecipients: []models.AdditionalRecipient{{Email: "not an email"}},
		}},
		{"email and contact", SetupCommand{
			NoticeType: models.NoticeTypeInvitations,
			Journey:    models.JourneyAdHoc,
			LicenceRef: "01/123",
			AdditionalRecipients: []models.AdditionalRecipient{{
				Email:   "extra@example.com",
				Contact: &models.Contact{Name: "Jane"},
			}},
		}},
		{"contact without name", SetupCommand{
			NoticeType:           models.NoticeTypeInvitations,
			Journey:              models.JourneyAdHoc,
			LicenceRef:           "01/123",
			AdditionalRecipients: []models.AdditionalRecipient{{Contact: &models.Contact{AddressLine1: "1 Road"}}},
		}},
		{"empty additional recipient", SetupCommand{
			NoticeType:           models.NoticeTypeInvitations,
			Journey:              models.JourneyAdHoc,
			LicenceRef:           "01/123",
			AdditionalRecipients: []models.AdditionalRecipient{{}},
		}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.CreateSession(s.ctx, tc.cmd)
			s.assertCode(err, dErrors.CodeValidation)
		})
	}
}

func (s *ServiceSuite) TestGetSession() {
	id := uuid.New()

	s.Run("missing session is not found", func() {
		s.sessions.EXPECT().Get(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.GetSession(s.ctx, id)
		s.assertCode(err, dErrors.CodeNotFound)
	})

	s.Run("store failure is internal", func() {
		s.sessions.EXPECT().Get(gomock.Any(), id).Return(nil, errors.New("boom"))
		_, err := s.service.GetSession(s.ctx, id)
		s.assertCode(err, dErrors.CodeInternal)
	})
}

func (s *ServiceSuite) TestCheck() {
	session := s.standardSession()

	s.Run("summarises the sending shape", func() {
		s.sessions.EXPECT().Get(gomock.Any(), session.ID).Return(session, nil)
		s.fetcher.EXPECT().Fetch(gomock.Any(), session, recipients.ShapeSending).
			Return([]models.Recipient{emailRecipient(), letterRecipient()}, nil)

		result, err := s.service.Check(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(2, result.RecipientCount)
		s.Require().Len(result.Recipients, 2)
		s.Equal([]string{"user@example.com"}, result.Recipients[0].Contact)
	})

	s.Run("domain errors from the fetcher pass through", func() {
		s.sessions.EXPECT().Get(gomock.Any(), session.ID).Return(session, nil)
		s.fetcher.EXPECT().Fetch(gomock.Any(), session, recipients.ShapeSending).
			Return(nil, dErrors.New(dErrors.CodeValidation, "licence_ref is required"))

		_, err := s.service.Check(s.ctx, session.ID)
		s.assertCode(err, dErrors.CodeValidation)
	})

	s.Run("other fetcher errors are internal", func() {
		s.sessions.EXPECT().Get(gomock.Any(), session.ID).Return(session, nil)
		s.fetcher.EXPECT().Fetch(gomock.Any(), session, recipients.ShapeSending).
			Return(nil, errors.New("connection reset"))

		_, err := s.service.Check(s.ctx, session.ID)
		s.assertCode(err, dErrors.CodeInternal)
	})
}

func (s *ServiceSuite) TestDownload() {
	session := s.standardSession()
	s.sessions.EXPECT().Get(gomock.Any(), session.ID).Return(session, nil)
	s.fetcher.EXPECT().Fetch(gomock.Any(), session, recipients.ShapeDownload).
		Return([]models.Recipient{emailRecipient()}, nil)

	download, err := s.service.Download(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal("invitations-RINV-ABC123.csv", download.Filename)

	lines := strings.Split(strings.TrimSpace(string(download.Body)), "\n")
	s.Len(lines, 2)
	s.True(strings.HasPrefix(lines[0], "Licence,Return reference"))
	s.Contains(lines[1], "user@example.com")
}

func (s *ServiceSuite) TestSend() {
	t := s.T()

	testutil.Given(t, "a standard invitation with two recipients", func(t *testing.T) {
		session := s.standardSession()

		testutil.When(t, "the notice is sent", func(t *testing.T) {
			var created *models.Event
			var notifications []models.Notification

			s.sessions.EXPECT().Get(gomock.Any(), session.ID).Return(session, nil)
			s.fetcher.EXPECT().Fetch(gomock.Any(), session, recipients.ShapeSending).
				Return([]models.Recipient{letterRecipient(), emailRecipient()}, nil)
			s.events.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
					return fn(ctx)
				})
			s.events.EXPECT().CreateEvent(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, e *models.Event) error {
					created = e
					return nil
				})
			s.events.EXPECT().CreateNotifications(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, ns []models.Notification) error {
					notifications = ns
					return nil
				})
			s.sessions.EXPECT().Delete(gomock.Any(), session.ID).Return(nil)

			result, err := s.service.Send(s.ctx, session.ID)

			testutil.Then(t, "one event and one notification per recipient are recorded", func(t *testing.T) {
				require.NoError(t, err)
				require.NotNil(t, created)
				assert.Equal(t, created.ID, result.EventID)
				assert.Equal(t, "RINV-ABC123", result.ReferenceCode)
				assert.Equal(t, 2, result.NotificationCount)
				assert.Equal(t, models.NoticeTypeInvitations, created.Subtype)
				assert.Equal(t, []string{"01/123", "01/456"}, created.Licences)
				assert.Equal(t, 2, created.RecipientCount)
				assert.Equal(t, "officer@environment-agency.gov.uk", created.Issuer)
				assert.Equal(t, models.EventStatusPending, created.Status)
				require.Len(t, notifications, 2)
				for _, n := range notifications {
					assert.Equal(t, created.ID, n.EventID)
				}
			})
		})
	})
}

func (s *ServiceSuite) TestSendPaperReturnUsesDownloadShape() {
	session := &models.Session{
		ID:                uuid.New(),
		NoticeType:        models.NoticeTypePaperReturn,
		Journey:           models.JourneyAdHoc,
		ReferenceCode:     "PRTF-XYZ789",
		SelectedReturnIDs: []string{"log-1"},
	}
	s.sessions.EXPECT().Get(gomock.Any(), session.ID).Return(session, nil)
	s.fetcher.EXPECT().Fetch(gomock.Any(), session, recipients.ShapeDownload).
		Return([]models.Recipient{letterRecipient()}, nil)
	s.events.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		})
	s.events.EXPECT().CreateEvent(gomock.Any(), gomock.Any()).Return(nil)
	s.events.EXPECT().CreateNotifications(gomock.Any(), gomock.Any()).Return(nil)
	s.sessions.EXPECT().Delete(gomock.Any(), session.ID).Return(errors.New("redis down"))

	result, err := s.service.Send(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(1, result.NotificationCount)
}

func (s *ServiceSuite) TestSendFailures() {
	session := s.standardSession()

	s.Run("no recipients", func() {
		s.sessions.EXPECT().Get(gomock.Any(), session.ID).Return(session, nil)
		s.fetcher.EXPECT().Fetch(gomock.Any(), session, recipients.ShapeSending).Return(nil, nil)

		_, err := s.service.Send(s.ctx, session.ID)
		s.assertCode(err, dErrors.CodeValidation)
	})

	s.Run("reference already used", func() {
		s.sessions.EXPECT().Get(gomock.Any(), session.ID).Return(session, nil)
		s.fetcher.EXPECT().Fetch(gomock.Any(), session, recipients.ShapeSending).
			Return([]models.Recipient{emailRecipient()}, nil)
		s.events.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
				return fn(ctx)
			})
		s.events.EXPECT().CreateEvent(gomock.Any(), gomock.Any()).
			Return(errors.Join(sentinel.ErrConflict, errors.New("duplicate reference code")))

		_, err := s.service.Send(s.ctx, session.ID)
		s.assertCode(err, dErrors.CodeConflict)
	})

	s.Run("transaction failure is internal and keeps the session", func() {
		s.sessions.EXPECT().Get(gomock.Any(), session.ID).Return(session, nil)
		s.fetcher.EXPECT().Fetch(gomock.Any(), session, recipients.ShapeSending).
			Return([]models.Recipient{emailRecipient()}, nil)
		s.events.EXPECT().RunInTx(gomock.Any(), gomock.Any()).Return(errors.New("tx aborted"))

		_, err := s.service.Send(s.ctx, session.ID)
		s.assertCode(err, dErrors.CodeInternal)
	})
}

func (s *ServiceSuite) TestGetEvent() {
	id := uuid.New()

	s.Run("returns the event with notifications", func() {
		event := &models.Event{ID: id, ReferenceCode: "RINV-ABC123"}
		s.events.EXPECT().Event(gomock.Any(), id).Return(event, nil)
		s.events.EXPECT().NotificationsByEvent(gomock.Any(), id).
			Return([]models.Notification{{ID: uuid.New(), EventID: id}}, nil)

		detail, err := s.service.GetEvent(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(event, detail.Event)
		s.Len(detail.Notifications, 1)
	})

	s.Run("missing event is not found", func() {
		s.events.EXPECT().Event(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.GetEvent(s.ctx, id)
		s.assertCode(err, dErrors.CodeNotFound)
	})
}
