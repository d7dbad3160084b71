package handler

import (
	"time"

	"github.com/google/uuid"

	"wrls/internal/notices/models"
	"wrls/internal/notices/presenter"
	"wrls/internal/notices/service"
)

// SessionResponse is the HTTP representation of a setup session.
type SessionResponse struct {
	ID                       uuid.UUID       `json:"id"`
	NoticeType               string          `json:"notice_type"`
	Journey                  string          `json:"journey"`
	ReferenceCode            string          `json:"reference_code"`
	LicenceRef               string          `json:"licence_ref,omitempty"`
	ReturnsPeriod            *PeriodResponse `json:"returns_period,omitempty"`
	ExcludedLicences         []string        `json:"excluded_licences,omitempty"`
	SelectedReturnIDs        []string        `json:"selected_return_ids,omitempty"`
	FailedReturnIDs          []string        `json:"failed_return_ids,omitempty"`
	DueDate                  string          `json:"due_date,omitempty"`
	AdditionalRecipientCount int             `json:"additional_recipient_count"`
	CreatedBy                string          `json:"created_by,omitempty"`
	CreatedAt                time.Time       `json:"created_at"`
}

// PeriodResponse is a determined returns period with plain dates.
type PeriodResponse struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	DueDate   string `json:"due_date"`
}

// CheckResponse is the HTTP response for the check page.
type CheckResponse struct {
	SessionID      uuid.UUID                  `json:"session_id"`
	NoticeType     string                     `json:"notice_type"`
	ReferenceCode  string                     `json:"reference_code"`
	RecipientCount int                        `json:"recipient_count"`
	Recipients     []presenter.CheckRecipient `json:"recipients"`
}

// FromSession converts a session to its HTTP response.
func FromSession(s *models.Session) *SessionResponse {
	resp := &SessionResponse{
		ID:                       s.ID,
		NoticeType:               string(s.NoticeType),
		Journey:                  string(s.Journey),
		ReferenceCode:            s.ReferenceCode,
		LicenceRef:               s.LicenceRef,
		ExcludedLicences:         s.ExcludedLicences,
		SelectedReturnIDs:        s.SelectedReturnIDs,
		FailedReturnIDs:          s.FailedReturnIDs,
		AdditionalRecipientCount: len(s.AdditionalRecipients),
		CreatedBy:                s.CreatedBy,
		CreatedAt:                s.CreatedAt,
	}
	if p := s.DeterminedReturnsPeriod; p != nil {
		resp.ReturnsPeriod = &PeriodResponse{
			Name:      p.Name,
			StartDate: p.StartDate.Format(time.DateOnly),
			EndDate:   p.EndDate.Format(time.DateOnly),
			DueDate:   p.DueDate.Format(time.DateOnly),
		}
	}
	if s.DueDate != nil {
		resp.DueDate = s.DueDate.Format(time.DateOnly)
	}
	return resp
}

// FromCheckResult converts a check result to its HTTP response.
func FromCheckResult(result *service.CheckResult) *CheckResponse {
	return &CheckResponse{
		SessionID:      result.Session.ID,
		NoticeType:     string(result.Session.NoticeType),
		ReferenceCode:  result.Session.ReferenceCode,
		RecipientCount: result.RecipientCount,
		Recipients:     result.Recipients,
	}
}
