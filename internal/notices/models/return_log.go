package models

import (
	"slices"
	"time"
)

// ReturnLogStatusDue is the only status the recipient engine notifies about.
const ReturnLogStatusDue = "due"

// DueReturnLog is a return obligation selected as due for a notice. It is
// read-only input to the recipient engine.
type DueReturnLog struct {
	ID              string     `json:"id"`
	ReturnReference string     `json:"return_reference"`
	LicenceRef      string     `json:"licence_ref"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	Status          string     `json:"status"`
	Summer          bool       `json:"summer"`
	Quarterly       bool       `json:"quarterly"`
	SiteDescription string     `json:"site_description,omitempty"`
	Purpose         string     `json:"purpose,omitempty"`
}

// DueDateRule constrains a due log's due date.
type DueDateRule int

const (
	DueDateAny DueDateRule = iota
	DueDateNull
	DueDateNotNull
)

// DueReturnLogFilter decides which return logs count as due for a notice.
// Zero-value fields do not constrain.
type DueReturnLogFilter struct {
	LicenceRefs         []string
	ExcludedLicenceRefs []string
	ReturnLogIDs        []string
	Period              *ReturnsPeriod
	DueDate             DueDateRule
}

// Matches applies the filter to a single log. Stores that cannot push the
// filter down to storage use this directly.
func (f DueReturnLogFilter) Matches(log DueReturnLog) bool {
	if log.Status != ReturnLogStatusDue {
		return false
	}
	if len(f.LicenceRefs) > 0 && !slices.Contains(f.LicenceRefs, log.LicenceRef) {
		return false
	}
	if slices.Contains(f.ExcludedLicenceRefs, log.LicenceRef) {
		return false
	}
	if len(f.ReturnLogIDs) > 0 && !slices.Contains(f.ReturnLogIDs, log.ID) {
		return false
	}
	if p := f.Period; p != nil {
		if log.StartDate.Before(p.StartDate) || log.EndDate.After(p.EndDate) {
			return false
		}
		if log.Summer != p.Summer || log.Quarterly != p.Quarterly {
			return false
		}
	}
	switch f.DueDate {
	case DueDateNull:
		return log.DueDate == nil
	case DueDateNotNull:
		return log.DueDate != nil
	}
	return true
}

// LicenceContacts is the contact metadata held against one licence.
type LicenceContacts struct {
	LicenceRef string `json:"licence_ref"`
	// Contacts are the letter contacts from the licence document metadata.
	Contacts []Contact `json:"contacts"`
	// PrimaryUser is the email of the primary user, empty when unregistered.
	PrimaryUser string `json:"primary_user,omitempty"`
	// ReturnsAgents are the emails of users with the returns role.
	ReturnsAgents []string `json:"returns_agents,omitempty"`
}

// IsRegistered reports whether a primary user resolves for the licence.
func (l LicenceContacts) IsRegistered() bool {
	return l.PrimaryUser != ""
}

// Snapshot is the single consistent read the recipient engine works from.
type Snapshot struct {
	DueReturnLogs []DueReturnLog
	Licences      map[string]LicenceContacts
}
