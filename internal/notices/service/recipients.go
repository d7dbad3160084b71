package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"wrls/internal/notices/models"
	"wrls/internal/notices/presenter"
	"wrls/internal/notices/recipients"
	dErrors "wrls/pkg/domain-errors"
	"wrls/pkg/requestcontext"
)

// CheckResult is the recipient review shown before a notice is sent.
type CheckResult struct {
	Session        *models.Session            `json:"session"`
	RecipientCount int                        `json:"recipient_count"`
	Recipients     []presenter.CheckRecipient `json:"recipients"`
}

// Download is a rendered CSV of a session's recipients.
type Download struct {
	Filename string
	Body     []byte
}

// Check resolves the recipients a send would notify.
func (s *Service) Check(ctx context.Context, id uuid.UUID) (*CheckResult, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	rs, err := s.fetch(ctx, session, recipients.ShapeSending)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		Session:        session,
		RecipientCount: len(rs),
		Recipients:     presenter.Check(rs),
	}, nil
}

// Download renders one CSV row per recipient and return log.
func (s *Service) Download(ctx context.Context, id uuid.UUID) (*Download, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	rs, err := s.fetch(ctx, session, recipients.ShapeDownload)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := presenter.WriteDownload(&buf, session.NoticeType, rs); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render download")
	}

	s.logger.InfoContext(ctx, "notice recipients downloaded",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"notice_type", session.NoticeType,
		"row_count", len(rs),
	)
	return &Download{
		Filename: fmt.Sprintf("%s-%s.csv", session.NoticeType, session.ReferenceCode),
		Body:     buf.Bytes(),
	}, nil
}

func (s *Service) fetch(ctx context.Context, session *models.Session, shape recipients.Shape) ([]models.Recipient, error) {
	rs, err := s.fetcher.Fetch(ctx, session, shape)
	if err != nil {
		var de *dErrors.Error
		if errors.As(err, &de) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "failed to resolve recipients",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", session.ID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve recipients")
	}
	return rs, nil
}
