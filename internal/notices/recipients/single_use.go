package recipients

import (
	"strings"

	"wrls/internal/notices/models"
)

// AddSingleUse appends staff-entered recipients to an already shaped result.
// They are linked to every due log in the snapshot and dropped when their
// content hash already resolved through a licence role.
func AddSingleUse(
	recipients []models.Recipient,
	additional []models.AdditionalRecipient,
	snapshot *models.Snapshot,
	shape Shape,
) []models.Recipient {
	if len(additional) == 0 || snapshot == nil || len(snapshot.DueReturnLogs) == 0 {
		return recipients
	}

	extra := Candidates{}
	for _, a := range additional {
		for _, log := range snapshot.DueReturnLogs {
			c, ok := singleUseCandidate(a, log)
			if !ok {
				continue
			}
			extra = append(extra, c)
		}
	}

	if shape == ShapeDownload {
		return mergeDownload(recipients, ShapeForDownload(extra))
	}
	return mergeSending(recipients, ShapeForSending(extra))
}

func singleUseCandidate(a models.AdditionalRecipient, log models.DueReturnLog) (candidate, bool) {
	if email := strings.TrimSpace(a.Email); email != "" {
		return emailCandidate(email, models.ContactTypeSingleUse, log), true
	}
	if a.Contact == nil {
		return candidate{}, false
	}
	contact := *a.Contact
	return candidate{
		hash:        ContactHash(contact),
		contactType: models.ContactTypeSingleUse,
		priority:    models.PrioritySingleUse,
		messageType: models.MessageTypeLetter,
		contact:     &contact,
		log:         log,
	}, true
}

func mergeSending(existing, extra []models.Recipient) []models.Recipient {
	seen := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		seen[r.ContactHashID] = struct{}{}
	}
	for _, r := range extra {
		if _, ok := seen[r.ContactHashID]; ok {
			continue
		}
		existing = append(existing, r)
	}
	SortForSending(existing)
	return existing
}

func mergeDownload(existing, extra []models.Recipient) []models.Recipient {
	seen := make(map[string]struct{}, len(existing))
	key := func(r models.Recipient) string {
		return firstOf(r.LicenceRefs) + "|" + returnReference(r) + "|" + r.ContactHashID
	}
	for _, r := range existing {
		seen[key(r)] = struct{}{}
	}
	for _, r := range extra {
		if _, ok := seen[key(r)]; ok {
			continue
		}
		existing = append(existing, r)
	}
	SortForDownload(existing)
	return existing
}
