package fetch

import (
	"time"

	"wrls/internal/notices/duedate"
	"wrls/internal/notices/models"
	"wrls/internal/notices/recipients"
	dErrors "wrls/pkg/domain-errors"
)

// strategy decides which logs are due for one notice category and applies
// its post-processing to the pipeline output.
type strategy interface {
	name() string
	filter(session *models.Session) (models.DueReturnLogFilter, error)
	finish(session *models.Session, snapshot *models.Snapshot, shape recipients.Shape, rs []models.Recipient, now time.Time) []models.Recipient
}

func strategyFor(session *models.Session) (strategy, error) {
	if session == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "notice setup session is required")
	}

	switch session.NoticeType {
	case models.NoticeTypePaperReturn:
		return paperReturn{}, nil
	case models.NoticeTypeAlternateInvitations:
		return alternate{}, nil
	case models.NoticeTypeInvitations, models.NoticeTypeReminders:
		if session.Journey == models.JourneyAdHoc {
			return adHoc{}, nil
		}
		return standard{}, nil
	}
	return nil, dErrors.New(dErrors.CodeValidation, "unsupported notice type: "+string(session.NoticeType))
}

// adHoc covers invitations and reminders for a single licence.
type adHoc struct{}

func (adHoc) name() string { return "adhoc" }

func (adHoc) filter(session *models.Session) (models.DueReturnLogFilter, error) {
	if session.LicenceRef == "" {
		return models.DueReturnLogFilter{}, dErrors.New(dErrors.CodeValidation, "licence reference is required for an ad-hoc notice")
	}
	f := models.DueReturnLogFilter{LicenceRefs: []string{session.LicenceRef}}
	if session.NoticeType.IsReminder() {
		f.DueDate = models.DueDateNotNull
	}
	return f, nil
}

func (adHoc) finish(session *models.Session, snapshot *models.Snapshot, shape recipients.Shape, rs []models.Recipient, now time.Time) []models.Recipient {
	rs = recipients.AddSingleUse(rs, session.AdditionalRecipients, snapshot, shape)
	return stampComputedDueDates(session.NoticeType, shape, rs, now)
}

// standard covers invitations and reminders for a returns period.
type standard struct{}

func (standard) name() string { return "standard" }

func (standard) filter(session *models.Session) (models.DueReturnLogFilter, error) {
	if session.DeterminedReturnsPeriod == nil {
		return models.DueReturnLogFilter{}, dErrors.New(dErrors.CodeValidation, "returns period is required for a standard notice")
	}
	f := models.DueReturnLogFilter{
		ExcludedLicenceRefs: session.ExcludedLicences,
		Period:              session.DeterminedReturnsPeriod,
		DueDate:             models.DueDateNull,
	}
	if session.NoticeType.IsReminder() {
		f.DueDate = models.DueDateNotNull
	}
	return f, nil
}

func (standard) finish(session *models.Session, _ *models.Snapshot, shape recipients.Shape, rs []models.Recipient, now time.Time) []models.Recipient {
	return stampComputedDueDates(session.NoticeType, shape, rs, now)
}

// paperReturn covers the caller-selected return logs; letters only.
type paperReturn struct{}

func (paperReturn) name() string { return "paper_return" }

func (paperReturn) filter(session *models.Session) (models.DueReturnLogFilter, error) {
	if len(session.SelectedReturnIDs) == 0 {
		return models.DueReturnLogFilter{}, dErrors.New(dErrors.CodeValidation, "at least one return must be selected for a paper return")
	}
	return models.DueReturnLogFilter{ReturnLogIDs: session.SelectedReturnIDs}, nil
}

func (paperReturn) finish(session *models.Session, snapshot *models.Snapshot, shape recipients.Shape, rs []models.Recipient, now time.Time) []models.Recipient {
	postal := make([]models.AdditionalRecipient, 0, len(session.AdditionalRecipients))
	for _, a := range session.AdditionalRecipients {
		if a.Contact != nil {
			postal = append(postal, models.AdditionalRecipient{Contact: a.Contact})
		}
	}
	rs = recipients.AddSingleUse(rs, postal, snapshot, shape)
	return stampComputedDueDates(session.NoticeType, shape, rs, now)
}

// alternate re-sends invitations by letter for logs whose emails failed.
type alternate struct{}

func (alternate) name() string { return "alternate" }

func (alternate) filter(session *models.Session) (models.DueReturnLogFilter, error) {
	if len(session.FailedReturnIDs) == 0 {
		return models.DueReturnLogFilter{}, dErrors.New(dErrors.CodeValidation, "failed return ids are required for alternate invitations")
	}
	if session.DueDate == nil {
		return models.DueReturnLogFilter{}, dErrors.New(dErrors.CodeValidation, "due date is required for alternate invitations")
	}
	return models.DueReturnLogFilter{ReturnLogIDs: session.FailedReturnIDs}, nil
}

func (alternate) finish(session *models.Session, _ *models.Snapshot, _ recipients.Shape, rs []models.Recipient, _ time.Time) []models.Recipient {
	dueDate := duedate.Today(*session.DueDate)
	for i := range rs {
		rs[i].NotificationDueDate = dueDate
	}
	return rs
}

func stampComputedDueDates(noticeType models.NoticeType, shape recipients.Shape, rs []models.Recipient, now time.Time) []models.Recipient {
	for i := range rs {
		if shape == recipients.ShapeDownload {
			rs[i].NotificationDueDate = duedate.ForDownload(rs[i], now)
			continue
		}
		rs[i].NotificationDueDate = duedate.ForSending(noticeType, rs[i], now)
	}
	return rs
}
