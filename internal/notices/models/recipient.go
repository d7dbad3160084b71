package models

import "time"

// ContactType is the role under which a recipient was resolved.
type ContactType string

const (
	ContactTypePrimaryUser   ContactType = "primary user"
	ContactTypeReturnsAgent  ContactType = "returns agent"
	ContactTypeLicenceHolder ContactType = "licence holder"
	ContactTypeReturnsTo     ContactType = "returns to"
	ContactTypeSingleUse     ContactType = "single use"
)

// Label is the capitalised form shown to staff and in downloads.
func (c ContactType) Label() string {
	switch c {
	case ContactTypePrimaryUser:
		return "Primary user"
	case ContactTypeReturnsAgent:
		return "Returns agent"
	case ContactTypeLicenceHolder:
		return "Licence holder"
	case ContactTypeReturnsTo:
		return "Returns to"
	case ContactTypeSingleUse:
		return "Single use"
	}
	return string(c)
}

// Priority orders contact types when several resolve to the same physical
// recipient. A lower value is preferred.
type Priority int

const (
	PriorityPrimaryUser   Priority = 1
	PriorityReturnsAgent  Priority = 2
	PriorityLicenceHolder Priority = 3
	PriorityReturnsTo     Priority = 4
	PrioritySingleUse     Priority = 5
	// PriorityNone marks a placeholder that never wins a comparison.
	PriorityNone Priority = 999
)

// Priority returns the fixed priority of the contact type.
func (c ContactType) Priority() Priority {
	switch c {
	case ContactTypePrimaryUser:
		return PriorityPrimaryUser
	case ContactTypeReturnsAgent:
		return PriorityReturnsAgent
	case ContactTypeLicenceHolder:
		return PriorityLicenceHolder
	case ContactTypeReturnsTo:
		return PriorityReturnsTo
	case ContactTypeSingleUse:
		return PrioritySingleUse
	}
	return PriorityNone
}

// Beats reports whether p is preferred over other.
func (p Priority) Beats(other Priority) bool {
	return p < other
}

// MessageType is the delivery channel.
type MessageType string

const (
	MessageTypeEmail  MessageType = "email"
	MessageTypeLetter MessageType = "letter"
)

// Label is the capitalised form shown to staff and in downloads.
func (m MessageType) Label() string {
	switch m {
	case MessageTypeEmail:
		return "Email"
	case MessageTypeLetter:
		return "Letter"
	}
	return string(m)
}

// DueDateStatus summarises the due dates of the return logs behind a
// sending-shape recipient.
type DueDateStatus string

const (
	DueDatesAllPopulated DueDateStatus = "all populated"
	DueDatesAllNull      DueDateStatus = "all nulls"
	DueDatesSomeNull     DueDateStatus = "some nulls"
)

// Recipient is the resolved unit of notification.
//
// Invariants:
//   - exactly one of Contact and Email is set, matching MessageType
//   - ContactHashID is derived from Contact (letter) or Email (email)
//
// Sending-shape recipients aggregate every licence and return log that
// resolved to the same ContactHashID. Download-shape recipients carry a
// single Return and one licence.
type Recipient struct {
	ContactHashID string      `json:"contact_hash_id"`
	ContactType   ContactType `json:"contact_type"`
	Contact       *Contact    `json:"contact,omitempty"`
	Email         string      `json:"email,omitempty"`
	MessageType   MessageType `json:"message_type"`
	Priority      Priority    `json:"priority"`
	LicenceRefs   []string    `json:"licence_refs"`
	ReturnLogIDs  []string    `json:"return_log_ids"`

	DueDateStatus DueDateStatus `json:"due_date_status,omitempty"`
	LatestDueDate *time.Time    `json:"latest_due_date,omitempty"`
	PeriodStart   time.Time     `json:"period_start"`
	PeriodEnd     time.Time     `json:"period_end"`

	// Return is set on download-shape rows only.
	Return *DueReturnLog `json:"return,omitempty"`

	// NotificationDueDate is stamped by the fetch orchestrators.
	NotificationDueDate time.Time `json:"notification_due_date"`
}

// IsEmail reports whether the recipient is contacted by email.
func (r Recipient) IsEmail() bool {
	return r.MessageType == MessageTypeEmail
}
