package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"wrls/internal/notices/models"
	"wrls/internal/notices/periods"
	dErrors "wrls/pkg/domain-errors"
	"wrls/pkg/platform/sentinel"
	"wrls/pkg/requestcontext"
)

const (
	referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceLength   = 6
)

// SetupCommand carries the validated fields of a new setup session.
type SetupCommand struct {
	NoticeType           models.NoticeType
	Journey              models.Journey
	LicenceRef           string
	ReturnsPeriod        string
	ExcludedLicences     []string
	SelectedReturnIDs    []string
	FailedReturnIDs      []string
	DueDate              *time.Time
	AdditionalRecipients []models.AdditionalRecipient
}

// CreateSession validates cmd against its notice type and stores a new
// session with a fresh reference code.
func (s *Service) CreateSession(ctx context.Context, cmd SetupCommand) (*models.Session, error) {
	if !cmd.NoticeType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported notice type: "+string(cmd.NoticeType))
	}
	if cmd.Journey == "" {
		cmd.Journey = models.JourneyStandard
	}
	if !cmd.Journey.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported journey: "+string(cmd.Journey))
	}

	reference, err := referenceCode(cmd.NoticeType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate reference code")
	}

	now := requestcontext.Now(ctx)
	session := &models.Session{
		ID:                   uuid.New(),
		NoticeType:           cmd.NoticeType,
		Journey:              cmd.Journey,
		ReferenceCode:        reference,
		LicenceRef:           strings.TrimSpace(cmd.LicenceRef),
		ExcludedLicences:     cmd.ExcludedLicences,
		SelectedReturnIDs:    cmd.SelectedReturnIDs,
		FailedReturnIDs:      cmd.FailedReturnIDs,
		DueDate:              cmd.DueDate,
		AdditionalRecipients: cmd.AdditionalRecipients,
		CreatedBy:            requestcontext.UserEmail(ctx),
		CreatedAt:            now,
	}

	if err := prepare(session, cmd, now); err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to store notice setup session",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store notice setup session")
	}

	s.logger.InfoContext(ctx, "notice setup started",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"notice_type", session.NoticeType,
		"journey", session.Journey,
		"reference_code", session.ReferenceCode,
		"created_by", session.CreatedBy,
	)
	return session, nil
}

// prepare applies the per-notice-type rules to a new session.
func prepare(session *models.Session, cmd SetupCommand, now time.Time) error {
	switch session.NoticeType {
	case models.NoticeTypeInvitations, models.NoticeTypeReminders:
		if session.Journey == models.JourneyAdHoc {
			if session.LicenceRef == "" {
				return dErrors.New(dErrors.CodeValidation, "licence_ref is required for an ad-hoc notice")
			}
			break
		}
		if cmd.ReturnsPeriod == "" {
			return dErrors.New(dErrors.CodeValidation, "returns_period is required for a standard notice")
		}
		period, err := periods.Determine(cmd.ReturnsPeriod, now)
		if err != nil {
			return err
		}
		session.ReturnsPeriod = cmd.ReturnsPeriod
		session.DeterminedReturnsPeriod = period

	case models.NoticeTypePaperReturn:
		if len(session.SelectedReturnIDs) == 0 {
			return dErrors.New(dErrors.CodeValidation, "selected_return_ids is required for a paper return")
		}
		for _, a := range session.AdditionalRecipients {
			if a.Contact == nil {
				return dErrors.New(dErrors.CodeValidation, "paper return additional recipients must be postal")
			}
		}

	case models.NoticeTypeAlternateInvitations:
		if len(session.AdditionalRecipients) > 0 {
			return dErrors.New(dErrors.CodeValidation, "additional recipients are not supported for alternate invitations")
		}
		if len(session.FailedReturnIDs) == 0 {
			return dErrors.New(dErrors.CodeValidation, "failed_return_ids is required for alternate invitations")
		}
		if session.DueDate == nil {
			return dErrors.New(dErrors.CodeValidation, "due_date is required for alternate invitations")
		}
	}

	if len(session.AdditionalRecipients) > 0 && session.Journey != models.JourneyAdHoc {
		return dErrors.New(dErrors.CodeValidation, "additional recipients are only allowed on the ad-hoc journey")
	}
	return validateAdditionalRecipients(session.AdditionalRecipients)
}

func validateAdditionalRecipients(additional []models.AdditionalRecipient) error {
	for i := range additional {
		a := &additional[i]
		a.Email = strings.TrimSpace(a.Email)
		switch {
		case a.Email != "" && a.Contact != nil:
			return dErrors.New(dErrors.CodeValidation, "additional recipient must have either an email or a contact")
		case a.Email != "":
			if _, err := mail.ParseAddress(a.Email); err != nil {
				return dErrors.New(dErrors.CodeValidation, "invalid additional recipient email: "+a.Email)
			}
		case a.Contact != nil:
			if strings.TrimSpace(a.Contact.Name) == "" {
				return dErrors.New(dErrors.CodeValidation, "additional recipient contact requires a name")
			}
		default:
			return dErrors.New(dErrors.CodeValidation, "additional recipient must have either an email or a contact")
		}
	}
	return nil
}

// GetSession loads a setup session.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "notice setup session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load notice setup session")
	}
	return session, nil
}

// referenceCode is the notice type prefix followed by six random uppercase
// alphanumerics, e.g. RINV-H1EZR6.
func referenceCode(noticeType models.NoticeType) (string, error) {
	code, err := randomReference(rand.Read)
	if err != nil {
		return "", err
	}
	return noticeType.ReferencePrefix() + "-" + code, nil
}

// randomReference draws referenceLength characters from referenceAlphabet.
// Bytes at or above the largest multiple of the alphabet size are rejected so
// every character is equally likely.
func randomReference(read func([]byte) (int, error)) (string, error) {
	limit := 256 - 256%len(referenceAlphabet)
	out := make([]byte, 0, referenceLength)
	buf := make([]byte, referenceLength*2)
	for len(out) < referenceLength {
		n, err := read(buf)
		if err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf[:n] {
			if int(b) >= limit {
				continue
			}
			out = append(out, referenceAlphabet[int(b)%len(referenceAlphabet)])
			if len(out) == referenceLength {
				break
			}
		}
	}
	return string(out), nil
}
