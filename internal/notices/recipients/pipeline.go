// Package recipients resolves the deduplicated list of contacts to notify for
// a notice.
//
// The pipeline runs in typed stages over a single snapshot of due return logs
// and licence contacts:
//
//	extract (one rule per contact role) -> union -> shape
//
// Each role rule tags its candidates with a contact type, priority, channel
// and content hash. The sending shape keeps one recipient per content hash;
// the download shape keeps one row per licence, return reference and hash.
package recipients

import (
	"cmp"
	"slices"

	"wrls/internal/notices/models"
)

// Shape selects the output form of Generate.
type Shape int

const (
	// ShapeSending aggregates licences and return logs per recipient.
	ShapeSending Shape = iota
	// ShapeDownload keeps one row per licence, return reference and recipient.
	ShapeDownload
)

func (s Shape) String() string {
	if s == ShapeDownload {
		return "download"
	}
	return "sending"
}

// candidate is one contact resolved for one due return log.
type candidate struct {
	hash        string
	contactType models.ContactType
	priority    models.Priority
	messageType models.MessageType
	contact     *models.Contact
	email       string
	log         models.DueReturnLog
}

// Generate runs the full pipeline for a notice type.
func Generate(noticeType models.NoticeType, snapshot *models.Snapshot, shape Shape) []models.Recipient {
	if snapshot == nil {
		return []models.Recipient{}
	}

	candidates := Union(
		ExtractPrimaryUsers(noticeType, snapshot),
		ExtractReturnsAgents(noticeType, snapshot),
		ExtractLicenceHolders(noticeType, snapshot),
		ExtractReturnsTo(noticeType, snapshot),
	)

	if shape == ShapeDownload {
		return ShapeForDownload(candidates)
	}
	return ShapeForSending(candidates)
}

// Candidates is the output of an extraction rule.
type Candidates []candidate

// noRecipients is the deliberate empty result for a role the notice type
// does not use, so the union stays uniform.
func noRecipients() Candidates {
	return Candidates{}
}

// ExtractPrimaryUsers yields the registered primary user of each due log's
// licence. Email channel; invitation and reminder notices only.
func ExtractPrimaryUsers(noticeType models.NoticeType, snapshot *models.Snapshot) Candidates {
	if !noticeType.UsesEmailRoles() {
		return noRecipients()
	}

	out := Candidates{}
	for _, log := range snapshot.DueReturnLogs {
		licence, ok := snapshot.Licences[log.LicenceRef]
		if !ok || licence.PrimaryUser == "" {
			continue
		}
		out = append(out, emailCandidate(licence.PrimaryUser, models.ContactTypePrimaryUser, log))
	}
	return out
}

// ExtractReturnsAgents yields every returns agent of each due log's licence.
// Email channel; invitation and reminder notices only.
func ExtractReturnsAgents(noticeType models.NoticeType, snapshot *models.Snapshot) Candidates {
	if !noticeType.UsesEmailRoles() {
		return noRecipients()
	}

	out := Candidates{}
	for _, log := range snapshot.DueReturnLogs {
		licence, ok := snapshot.Licences[log.LicenceRef]
		if !ok {
			continue
		}
		for _, agent := range licence.ReturnsAgents {
			if agent == "" {
				continue
			}
			out = append(out, emailCandidate(agent, models.ContactTypeReturnsAgent, log))
		}
	}
	return out
}

// ExtractLicenceHolders yields the "Licence holder" letter contacts. When the
// notice type contacts primary users, registered licences are skipped in
// favour of email.
func ExtractLicenceHolders(noticeType models.NoticeType, snapshot *models.Snapshot) Candidates {
	return extractLetterContacts(noticeType, snapshot, models.ContactRoleLicenceHolder, models.ContactTypeLicenceHolder)
}

// ExtractReturnsTo yields the "Returns to" letter contacts. Alternate
// invitations never use them.
func ExtractReturnsTo(noticeType models.NoticeType, snapshot *models.Snapshot) Candidates {
	if !noticeType.UsesReturnsTo() {
		return noRecipients()
	}
	return extractLetterContacts(noticeType, snapshot, models.ContactRoleReturnsTo, models.ContactTypeReturnsTo)
}

func extractLetterContacts(
	noticeType models.NoticeType,
	snapshot *models.Snapshot,
	role models.ContactRole,
	contactType models.ContactType,
) Candidates {
	out := Candidates{}
	for _, log := range snapshot.DueReturnLogs {
		licence, ok := snapshot.Licences[log.LicenceRef]
		if !ok {
			continue
		}
		if noticeType.UsesEmailRoles() && licence.IsRegistered() {
			continue
		}
		for i := range licence.Contacts {
			if licence.Contacts[i].Role != role {
				continue
			}
			contact := licence.Contacts[i]
			out = append(out, candidate{
				hash:        ContactHash(contact),
				contactType: contactType,
				priority:    contactType.Priority(),
				messageType: models.MessageTypeLetter,
				contact:     &contact,
				log:         log,
			})
		}
	}
	return out
}

func emailCandidate(email string, contactType models.ContactType, log models.DueReturnLog) candidate {
	return candidate{
		hash:        EmailHash(email),
		contactType: contactType,
		priority:    contactType.Priority(),
		messageType: models.MessageTypeEmail,
		email:       email,
		log:         log,
	}
}

// Union combines the candidate sets of every role.
func Union(sets ...Candidates) Candidates {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	out := make(Candidates, 0, n)
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// better orders candidates: lowest priority first, then licence, return
// and log id so the winner of a tie is stable.
func better(a, b candidate) int {
	return cmp.Or(
		cmp.Compare(a.priority, b.priority),
		cmp.Compare(a.log.LicenceRef, b.log.LicenceRef),
		cmp.Compare(a.log.ReturnReference, b.log.ReturnReference),
		cmp.Compare(a.log.ID, b.log.ID),
	)
}

// ShapeForSending groups candidates by content hash. Each group becomes one
// recipient carrying the winning candidate's contact and every distinct
// licence and return log in the group.
func ShapeForSending(candidates Candidates) []models.Recipient {
	groups := make(map[string]Candidates)
	order := make([]string, 0)
	for _, c := range candidates {
		if _, ok := groups[c.hash]; !ok {
			order = append(order, c.hash)
		}
		groups[c.hash] = append(groups[c.hash], c)
	}

	out := make([]models.Recipient, 0, len(groups))
	for _, hash := range order {
		group := groups[hash]
		winner := slices.MinFunc(group, better)

		r := toRecipient(winner)
		r.LicenceRefs = distinctSorted(group, func(c candidate) string { return c.log.LicenceRef })
		r.ReturnLogIDs = distinctSorted(group, func(c candidate) string { return c.log.ID })
		summariseLogs(&r, group)
		out = append(out, r)
	}

	SortForSending(out)
	return out
}

// ShapeForDownload keeps the lowest priority candidate for each distinct
// licence, return reference and content hash.
func ShapeForDownload(candidates Candidates) []models.Recipient {
	type key struct {
		licenceRef      string
		returnReference string
		hash            string
	}

	best := make(map[key]candidate)
	for _, c := range candidates {
		k := key{c.log.LicenceRef, c.log.ReturnReference, c.hash}
		if current, ok := best[k]; !ok || better(c, current) < 0 {
			best[k] = c
		}
	}

	out := make([]models.Recipient, 0, len(best))
	for _, c := range best {
		r := toRecipient(c)
		log := c.log
		r.Return = &log
		r.LicenceRefs = []string{log.LicenceRef}
		r.ReturnLogIDs = []string{log.ID}
		summariseLogs(&r, Candidates{c})
		out = append(out, r)
	}

	SortForDownload(out)
	return out
}

// SortForSending orders recipients by first licence, priority then hash.
func SortForSending(rs []models.Recipient) {
	slices.SortFunc(rs, func(a, b models.Recipient) int {
		return cmp.Or(
			cmp.Compare(firstOf(a.LicenceRefs), firstOf(b.LicenceRefs)),
			cmp.Compare(a.Priority, b.Priority),
			cmp.Compare(a.ContactHashID, b.ContactHashID),
		)
	})
}

// SortForDownload orders rows by licence, return reference, priority then hash.
func SortForDownload(rs []models.Recipient) {
	slices.SortFunc(rs, func(a, b models.Recipient) int {
		return cmp.Or(
			cmp.Compare(firstOf(a.LicenceRefs), firstOf(b.LicenceRefs)),
			cmp.Compare(returnReference(a), returnReference(b)),
			cmp.Compare(a.Priority, b.Priority),
			cmp.Compare(a.ContactHashID, b.ContactHashID),
		)
	})
}

func toRecipient(c candidate) models.Recipient {
	r := models.Recipient{
		ContactHashID: c.hash,
		ContactType:   c.contactType,
		MessageType:   c.messageType,
		Priority:      c.priority,
	}
	if c.contact != nil {
		contact := *c.contact
		r.Contact = &contact
	} else {
		r.Email = c.email
	}
	return r
}

// summariseLogs records the due-date status, latest due date and period
// bounds of the distinct logs behind a recipient.
func summariseLogs(r *models.Recipient, group Candidates) {
	seen := make(map[string]struct{}, len(group))
	nulls, populated := 0, 0

	for _, c := range group {
		if _, ok := seen[c.log.ID]; ok {
			continue
		}
		seen[c.log.ID] = struct{}{}

		if r.PeriodStart.IsZero() || c.log.StartDate.Before(r.PeriodStart) {
			r.PeriodStart = c.log.StartDate
		}
		if c.log.EndDate.After(r.PeriodEnd) {
			r.PeriodEnd = c.log.EndDate
		}

		if c.log.DueDate == nil {
			nulls++
			continue
		}
		populated++
		if r.LatestDueDate == nil || c.log.DueDate.After(*r.LatestDueDate) {
			due := *c.log.DueDate
			r.LatestDueDate = &due
		}
	}

	switch {
	case nulls == 0:
		r.DueDateStatus = models.DueDatesAllPopulated
	case populated == 0:
		r.DueDateStatus = models.DueDatesAllNull
	default:
		r.DueDateStatus = models.DueDatesSomeNull
	}
}

func distinctSorted(group Candidates, field func(candidate) string) []string {
	seen := make(map[string]struct{}, len(group))
	out := make([]string, 0, len(group))
	for _, c := range group {
		v := field(c)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func returnReference(r models.Recipient) string {
	if r.Return == nil {
		return ""
	}
	return r.Return.ReturnReference
}
