package models

import (
	"time"

	"github.com/google/uuid"
)

// NoticeType identifies the regulatory purpose of a notice.
type NoticeType string

const (
	NoticeTypeInvitations          NoticeType = "invitations"
	NoticeTypeReminders            NoticeType = "reminders"
	NoticeTypePaperReturn          NoticeType = "paperReturn"
	NoticeTypeAlternateInvitations NoticeType = "alternateInvitations"
)

// IsValid checks the notice type is one the recipient engine supports.
func (n NoticeType) IsValid() bool {
	switch n {
	case NoticeTypeInvitations, NoticeTypeReminders, NoticeTypePaperReturn, NoticeTypeAlternateInvitations:
		return true
	}
	return false
}

// UsesEmailRoles reports whether primary users and returns agents are
// contacted. Only the invitation and reminder family sends email.
func (n NoticeType) UsesEmailRoles() bool {
	return n == NoticeTypeInvitations || n == NoticeTypeReminders
}

// UsesReturnsTo reports whether "returns to" contacts are extracted.
func (n NoticeType) UsesReturnsTo() bool {
	return n != NoticeTypeAlternateInvitations
}

// IsReminder reports whether the notice chases logs that already have a due date.
func (n NoticeType) IsReminder() bool {
	return n == NoticeTypeReminders
}

// Label is the human readable notice type used in downloads.
func (n NoticeType) Label() string {
	switch n {
	case NoticeTypeInvitations:
		return "Returns invitation"
	case NoticeTypeReminders:
		return "Returns reminder"
	case NoticeTypePaperReturn:
		return "Paper return"
	case NoticeTypeAlternateInvitations:
		return "Returns invitation"
	}
	return string(n)
}

// ReferencePrefix starts every notice reference code of this type.
func (n NoticeType) ReferencePrefix() string {
	switch n {
	case NoticeTypeReminders:
		return "RREM"
	case NoticeTypePaperReturn:
		return "PRTF"
	default:
		return "RINV"
	}
}

// Journey is how staff set up the notice.
type Journey string

const (
	JourneyStandard Journey = "standard"
	JourneyAdHoc    Journey = "adhoc"
)

// IsValid checks the journey is supported.
func (j Journey) IsValid() bool {
	return j == JourneyStandard || j == JourneyAdHoc
}

// ReturnsPeriod is a determined returns cycle window.
type ReturnsPeriod struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	DueDate   time.Time `json:"due_date"`
	Summer    bool      `json:"summer"`
	Quarterly bool      `json:"quarterly"`
}

// AdditionalRecipient is a single-use contact entered by staff during an
// ad-hoc setup. Exactly one of Email and Contact is set.
type AdditionalRecipient struct {
	Email   string   `json:"email,omitempty"`
	Contact *Contact `json:"contact,omitempty"`
}

// Session is the read-only parameter bag for one notice setup.
type Session struct {
	ID                      uuid.UUID             `json:"id"`
	NoticeType              NoticeType            `json:"notice_type"`
	Journey                 Journey               `json:"journey"`
	ReferenceCode           string                `json:"reference_code"`
	LicenceRef              string                `json:"licence_ref,omitempty"`
	ReturnsPeriod           string                `json:"returns_period,omitempty"`
	DeterminedReturnsPeriod *ReturnsPeriod        `json:"determined_returns_period,omitempty"`
	ExcludedLicences        []string              `json:"excluded_licences,omitempty"`
	SelectedReturnIDs       []string              `json:"selected_return_ids,omitempty"`
	FailedReturnIDs         []string              `json:"failed_return_ids,omitempty"`
	DueDate                 *time.Time            `json:"due_date,omitempty"`
	AdditionalRecipients    []AdditionalRecipient `json:"additional_recipients,omitempty"`
	CreatedBy               string                `json:"created_by,omitempty"`
	CreatedAt               time.Time             `json:"created_at"`
}

// NotificationStatusPending is the status of every newly created notification.
const NotificationStatusPending = "pending"

// Notification is the payload handed to the delivery provider.
type Notification struct {
	ID              uuid.UUID         `json:"id"`
	EventID         uuid.UUID         `json:"event_id"`
	Licences        []string          `json:"licences"`
	MessageRef      string            `json:"message_ref"`
	TemplateID      string            `json:"template_id"`
	MessageType     MessageType       `json:"message_type"`
	ContactType     ContactType       `json:"contact_type"`
	Personalisation map[string]string `json:"personalisation"`
	ReturnLogIDs    []string          `json:"return_log_ids"`
	Status          string            `json:"status"`
	// Recipient is the email address; empty for letters.
	Recipient string    `json:"recipient,omitempty"`
	DueDate   time.Time `json:"due_date"`
	CreatedAt time.Time `json:"created_at"`
}

// EventStatusPending is the status of an event whose notifications are queued.
const EventStatusPending = "pending"

// Event is one notice batch.
type Event struct {
	ID             uuid.UUID  `json:"id"`
	ReferenceCode  string     `json:"reference_code"`
	Subtype        NoticeType `json:"subtype"`
	Journey        Journey    `json:"journey"`
	Licences       []string   `json:"licences"`
	RecipientCount int        `json:"recipient_count"`
	Issuer         string     `json:"issuer"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}
