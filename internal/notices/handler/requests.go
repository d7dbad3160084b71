package handler

import (
	"strings"
	"time"

	"wrls/internal/notices/models"
	"wrls/internal/notices/service"
	dErrors "wrls/pkg/domain-errors"
	strutil "wrls/pkg/platform/strings"
)

const (
	maxListLength           = 1000
	maxAdditionalRecipients = 50
)

// CreateSessionRequest is the HTTP request body for POST /notices/setup.
type CreateSessionRequest struct {
	NoticeType           string                       `json:"notice_type"`
	Journey              string                       `json:"journey"`
	LicenceRef           string                       `json:"licence_ref"`
	ReturnsPeriod        string                       `json:"returns_period"`
	ExcludedLicences     []string                     `json:"excluded_licences"`
	SelectedReturnIDs    []string                     `json:"selected_return_ids"`
	FailedReturnIDs      []string                     `json:"failed_return_ids"`
	DueDate              string                       `json:"due_date"`
	AdditionalRecipients []AdditionalRecipientRequest `json:"additional_recipients"`

	// Parsed values (populated by Validate)
	parsedDueDate *time.Time
}

// AdditionalRecipientRequest is a single-use recipient. Contact uses the
// licence metadata field names (addressLine1, postcode, ...).
type AdditionalRecipientRequest struct {
	Email   string          `json:"email"`
	Contact *models.Contact `json:"contact"`
}

// Validate trims and bounds the request and parses due_date.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateSessionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	if len(r.ExcludedLicences) > maxListLength ||
		len(r.SelectedReturnIDs) > maxListLength ||
		len(r.FailedReturnIDs) > maxListLength {
		return dErrors.New(dErrors.CodeValidation, "too many entries in list")
	}
	if len(r.AdditionalRecipients) > maxAdditionalRecipients {
		return dErrors.New(dErrors.CodeValidation, "too many additional recipients")
	}

	r.NoticeType = strings.TrimSpace(r.NoticeType)
	if r.NoticeType == "" {
		return dErrors.New(dErrors.CodeValidation, "notice_type is required")
	}
	r.Journey = strings.TrimSpace(r.Journey)
	r.LicenceRef = strings.TrimSpace(r.LicenceRef)
	r.ReturnsPeriod = strings.TrimSpace(r.ReturnsPeriod)
	r.ExcludedLicences = strutil.DedupeAndTrim(r.ExcludedLicences)
	r.SelectedReturnIDs = strutil.DedupeAndTrim(r.SelectedReturnIDs)
	r.FailedReturnIDs = strutil.DedupeAndTrim(r.FailedReturnIDs)

	if d := strings.TrimSpace(r.DueDate); d != "" {
		parsed, err := time.Parse(time.DateOnly, d)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "due_date must be YYYY-MM-DD")
		}
		r.parsedDueDate = &parsed
	}
	return nil
}

// ToCommand converts the validated request to a service command.
func (r *CreateSessionRequest) ToCommand() service.SetupCommand {
	var additional []models.AdditionalRecipient
	for _, a := range r.AdditionalRecipients {
		additional = append(additional, models.AdditionalRecipient{Email: a.Email, Contact: a.Contact})
	}
	return service.SetupCommand{
		NoticeType:           models.NoticeType(r.NoticeType),
		Journey:              models.Journey(r.Journey),
		LicenceRef:           r.LicenceRef,
		ReturnsPeriod:        r.ReturnsPeriod,
		ExcludedLicences:     r.ExcludedLicences,
		SelectedReturnIDs:    r.SelectedReturnIDs,
		FailedReturnIDs:      r.FailedReturnIDs,
		DueDate:              r.parsedDueDate,
		AdditionalRecipients: additional,
	}
}
