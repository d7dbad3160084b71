// Package presenter turns resolved recipients into provider notifications,
// CSV download rows and the staff check view.
package presenter

import (
	"maps"
	"time"

	"github.com/google/uuid"

	"wrls/internal/notices/address"
	"wrls/internal/notices/models"
	"wrls/internal/notices/templates"
)

// longDate is the date layout used in notification text, e.g. 28 April 2025.
const longDate = "2 January 2006"

// Notifications builds one pending notification per recipient. Template
// selection panics on an unmapped combination, see templates.Lookup.
func Notifications(session *models.Session, eventID uuid.UUID, rs []models.Recipient, now time.Time) []models.Notification {
	out := make([]models.Notification, 0, len(rs))
	for _, r := range rs {
		out = append(out, Notification(session, eventID, r, now))
	}
	return out
}

// Notification builds the notification for a single recipient.
func Notification(session *models.Session, eventID uuid.UUID, r models.Recipient, now time.Time) models.Notification {
	tmpl := templates.Lookup(templates.Key{
		NoticeType:  session.NoticeType,
		Journey:     session.Journey,
		MessageType: r.MessageType,
		ContactType: r.ContactType,
	})

	n := models.Notification{
		ID:              uuid.New(),
		EventID:         eventID,
		Licences:        r.LicenceRefs,
		MessageRef:      tmpl.MessageRef,
		TemplateID:      tmpl.TemplateID,
		MessageType:     r.MessageType,
		ContactType:     r.ContactType,
		Personalisation: personalisation(r),
		ReturnLogIDs:    r.ReturnLogIDs,
		Status:          models.NotificationStatusPending,
		DueDate:         r.NotificationDueDate,
		CreatedAt:       now,
	}

	if r.IsEmail() {
		n.Recipient = r.Email
		return n
	}

	if r.Contact != nil {
		lines := address.Normalize(*r.Contact)
		maps.Copy(n.Personalisation, lines.Personalisation())
		if len(lines) > 0 {
			n.Personalisation["name"] = lines[0]
		}
	}
	return n
}

func personalisation(r models.Recipient) map[string]string {
	p := map[string]string{
		"periodStartDate": formatLongDate(r.PeriodStart),
		"periodEndDate":   formatLongDate(r.PeriodEnd),
		"returnDueDate":   formatLongDate(r.NotificationDueDate),
	}

	if log := r.Return; log != nil {
		p["licenceRef"] = log.LicenceRef
		p["returnReference"] = log.ReturnReference
		p["siteDescription"] = log.SiteDescription
		p["purpose"] = log.Purpose
	}
	return p
}

func formatLongDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(longDate)
}
