// Package duedate works out the date a notification asks recipients to
// submit their returns by.
package duedate

import (
	"time"

	"wrls/internal/notices/models"
)

const (
	// EmailLeadDays is how long an emailed recipient has when no due date is set.
	EmailLeadDays = 28
	// LetterLeadDays allows one extra day for printing and post.
	LetterLeadDays = 29
)

// Fallback is today plus the channel's lead time.
func Fallback(today time.Time, messageType models.MessageType) time.Time {
	days := EmailLeadDays
	if messageType == models.MessageTypeLetter {
		days = LetterLeadDays
	}
	return Today(today).AddDate(0, 0, days)
}

// ForSending resolves the due date of an aggregated recipient.
//
// When every log behind the recipient has a due date the latest is used.
// Reminders only chase logs that already have one, so for them the latest
// populated date wins even when some are missing. Anything else falls back
// to a fresh date rather than trusting partial data.
func ForSending(noticeType models.NoticeType, r models.Recipient, today time.Time) time.Time {
	if r.LatestDueDate != nil {
		if r.DueDateStatus == models.DueDatesAllPopulated || noticeType.IsReminder() {
			return *r.LatestDueDate
		}
	}
	return Fallback(today, r.MessageType)
}

// ForDownload resolves the due date of a single download row: its own log's
// due date when populated, otherwise the fallback.
func ForDownload(r models.Recipient, today time.Time) time.Time {
	if r.Return != nil && r.Return.DueDate != nil {
		return *r.Return.DueDate
	}
	return Fallback(today, r.MessageType)
}

// Today truncates t to a UTC calendar date.
func Today(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
