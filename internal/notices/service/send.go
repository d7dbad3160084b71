package service

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"wrls/internal/notices/models"
	"wrls/internal/notices/presenter"
	"wrls/internal/notices/recipients"
	dErrors "wrls/pkg/domain-errors"
	"wrls/pkg/platform/sentinel"
	"wrls/pkg/requestcontext"
)

// SendResult identifies the event a send created.
type SendResult struct {
	EventID           uuid.UUID `json:"event_id"`
	ReferenceCode     string    `json:"reference_code"`
	NotificationCount int       `json:"notification_count"`
}

// EventDetail is a sent notice with its notifications.
type EventDetail struct {
	Event         *models.Event         `json:"event"`
	Notifications []models.Notification `json:"notifications"`
}

// sendShape is the shape notifications are built from. Paper forms are
// return specific, so paper returns send one notification per return log.
func sendShape(noticeType models.NoticeType) recipients.Shape {
	if noticeType == models.NoticeTypePaperReturn {
		return recipients.ShapeDownload
	}
	return recipients.ShapeSending
}

// Send resolves the session's recipients and records the event, its
// notifications and their outbox entries in one transaction. The session is
// removed once the notice is committed.
func (s *Service) Send(ctx context.Context, id uuid.UUID) (*SendResult, error) {
	ctx, span := s.tracer.Start(ctx, "notices.send", trace.WithAttributes(
		attribute.String("notice.session_id", id.String()),
	))
	defer span.End()

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("notice.type", string(session.NoticeType)))

	rs, err := s.fetch(ctx, session, sendShape(session.NoticeType))
	if err != nil {
		span.SetStatus(codes.Error, "recipient resolution failed")
		return nil, err
	}
	if len(rs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "no recipients to notify")
	}

	now := requestcontext.Now(ctx)
	event := &models.Event{
		ID:             uuid.New(),
		ReferenceCode:  session.ReferenceCode,
		Subtype:        session.NoticeType,
		Journey:        session.Journey,
		Licences:       eventLicences(rs),
		RecipientCount: len(rs),
		Issuer:         requestcontext.UserEmail(ctx),
		Status:         models.EventStatusPending,
		CreatedAt:      now,
	}
	notifications := presenter.Notifications(session, event.ID, rs, now)

	err = s.events.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.events.CreateEvent(ctx, event); err != nil {
			return err
		}
		return s.events.CreateNotifications(ctx, notifications)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "event persistence failed")
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "notice has already been sent")
		}
		s.logger.ErrorContext(ctx, "failed to record notice",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", session.ID,
			"reference_code", session.ReferenceCode,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record notice")
	}

	s.recordNotifications(session.NoticeType, notifications)

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to remove sent notice setup session",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", session.ID,
			"error", err,
		)
	}

	s.logger.InfoContext(ctx, "notice sent",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"event_id", event.ID,
		"reference_code", event.ReferenceCode,
		"notice_type", event.Subtype,
		"recipient_count", event.RecipientCount,
		"notification_count", len(notifications),
		"issuer", event.Issuer,
	)
	span.SetAttributes(attribute.Int("notice.notifications", len(notifications)))

	return &SendResult{
		EventID:           event.ID,
		ReferenceCode:     event.ReferenceCode,
		NotificationCount: len(notifications),
	}, nil
}

// GetEvent loads a sent notice and its notifications.
func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*EventDetail, error) {
	event, err := s.events.Event(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "notice not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load notice")
	}
	notifications, err := s.events.NotificationsByEvent(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load notifications")
	}
	return &EventDetail{Event: event, Notifications: notifications}, nil
}

func (s *Service) recordNotifications(noticeType models.NoticeType, notifications []models.Notification) {
	if s.metrics == nil {
		return
	}
	counts := map[models.MessageType]int{}
	for _, n := range notifications {
		counts[n.MessageType]++
	}
	for mt, n := range counts {
		s.metrics.IncrementNotifications(string(noticeType), string(mt), n)
	}
}

func eventLicences(rs []models.Recipient) []string {
	var licences []string
	for _, r := range rs {
		licences = append(licences, r.LicenceRefs...)
	}
	slices.Sort(licences)
	return slices.Compact(licences)
}
