// Package templates maps a resolved recipient onto the delivery template
// used to render its notification.
package templates

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"wrls/internal/notices/models"
)

// Key selects a template.
type Key struct {
	NoticeType  models.NoticeType
	Journey     models.Journey
	MessageType models.MessageType
	ContactType models.ContactType
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.NoticeType, k.Journey, k.MessageType, k.ContactType)
}

// Template is the provider template a notification is rendered with.
type Template struct {
	MessageRef string
	TemplateID string
}

const (
	refInvitationPrimaryUser   = "returns_invitation_primary_user_email"
	refInvitationReturnsAgent  = "returns_invitation_returns_agent_email"
	refInvitationLicenceHolder = "returns_invitation_licence_holder_letter"
	refInvitationReturnsTo     = "returns_invitation_returns_to_letter"
	refReminderPrimaryUser     = "returns_reminder_primary_user_email"
	refReminderReturnsAgent    = "returns_reminder_returns_agent_email"
	refReminderLicenceHolder   = "returns_reminder_licence_holder_letter"
	refReminderReturnsTo       = "returns_reminder_returns_to_letter"
	refPaperReturn             = "pdf.return_form"
	refAlternateInvitation     = "returns_invitation_alternate_licence_holder_letter"
)

// templateIDs holds the provider template id per message ref. Ids are
// deployment configuration and are installed once at startup by Configure.
var templateIDs atomic.Pointer[map[string]string]

// roleRefs lists the message ref used for each (message type, contact type)
// of a notice. Single use recipients share the template of the role they
// stand in for.
var roleRefs = map[models.NoticeType]map[models.MessageType]map[models.ContactType]string{
	models.NoticeTypeInvitations: {
		models.MessageTypeEmail: {
			models.ContactTypePrimaryUser:  refInvitationPrimaryUser,
			models.ContactTypeReturnsAgent: refInvitationReturnsAgent,
			models.ContactTypeSingleUse:    refInvitationPrimaryUser,
		},
		models.MessageTypeLetter: {
			models.ContactTypeLicenceHolder: refInvitationLicenceHolder,
			models.ContactTypeReturnsTo:     refInvitationReturnsTo,
			models.ContactTypeSingleUse:     refInvitationLicenceHolder,
		},
	},
	models.NoticeTypeReminders: {
		models.MessageTypeEmail: {
			models.ContactTypePrimaryUser:  refReminderPrimaryUser,
			models.ContactTypeReturnsAgent: refReminderReturnsAgent,
			models.ContactTypeSingleUse:    refReminderPrimaryUser,
		},
		models.MessageTypeLetter: {
			models.ContactTypeLicenceHolder: refReminderLicenceHolder,
			models.ContactTypeReturnsTo:     refReminderReturnsTo,
			models.ContactTypeSingleUse:     refReminderLicenceHolder,
		},
	},
	models.NoticeTypePaperReturn: {
		models.MessageTypeLetter: {
			models.ContactTypeLicenceHolder: refPaperReturn,
			models.ContactTypeReturnsTo:     refPaperReturn,
			models.ContactTypeSingleUse:     refPaperReturn,
		},
	},
	models.NoticeTypeAlternateInvitations: {
		models.MessageTypeLetter: {
			models.ContactTypeLicenceHolder: refAlternateInvitation,
		},
	},
}

var journeys = []models.Journey{models.JourneyStandard, models.JourneyAdHoc}

// table is built once and never mutated.
var table = build()

func build() map[Key]Template {
	t := make(map[Key]Template)
	for noticeType, channels := range roleRefs {
		for messageType, roles := range channels {
			for contactType, ref := range roles {
				for _, journey := range journeys {
					t[Key{noticeType, journey, messageType, contactType}] = Template{MessageRef: ref}
				}
			}
		}
	}
	return t
}

// Find returns the template for key and whether one is mapped.
func Find(key Key) (Template, bool) {
	t, ok := table[key]
	if ok {
		t.TemplateID = templateID(t.MessageRef)
	}
	return t, ok
}

// Lookup returns the template for key. An unmapped key is a configuration
// fault and panics. TemplateID is empty until Configure supplies one.
func Lookup(key Key) Template {
	t, ok := Find(key)
	if !ok {
		panic("templates: no template mapped for " + key.String())
	}
	return t
}

func templateID(ref string) string {
	if ids := templateIDs.Load(); ids != nil {
		return (*ids)[ref]
	}
	return ""
}

// Refs lists the distinct message refs of the table in sorted order.
func Refs() []string {
	seen := make(map[string]bool)
	var refs []string
	for _, t := range table {
		if !seen[t.MessageRef] {
			seen[t.MessageRef] = true
			refs = append(refs, t.MessageRef)
		}
	}
	slices.Sort(refs)
	return refs
}

// Configure installs the provider template ids, replacing any earlier set.
// Unknown message refs and ids that are not UUIDs are rejected.
func Configure(ids map[string]string) error {
	known := Refs()
	installed := make(map[string]string, len(ids))
	var problems []string
	for ref, id := range ids {
		if !slices.Contains(known, ref) {
			problems = append(problems, "unknown message ref "+ref)
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			problems = append(problems, "invalid template id for "+ref)
			continue
		}
		installed[ref] = id
	}
	if len(problems) > 0 {
		slices.Sort(problems)
		return fmt.Errorf("templates: %s", strings.Join(problems, ", "))
	}
	templateIDs.Store(&installed)
	return nil
}

// Unconfigured lists the message refs that have no template id.
func Unconfigured() []string {
	var missing []string
	for _, ref := range Refs() {
		if templateID(ref) == "" {
			missing = append(missing, ref)
		}
	}
	return missing
}

// Required lists every key the recipient pipeline can produce.
func Required() []Key {
	var keys []Key
	noticeTypes := []models.NoticeType{
		models.NoticeTypeInvitations,
		models.NoticeTypeReminders,
		models.NoticeTypePaperReturn,
		models.NoticeTypeAlternateInvitations,
	}
	for _, nt := range noticeTypes {
		for _, j := range journeys {
			add := func(mt models.MessageType, ct models.ContactType) {
				keys = append(keys, Key{nt, j, mt, ct})
			}
			add(models.MessageTypeLetter, models.ContactTypeLicenceHolder)
			if nt.UsesReturnsTo() {
				add(models.MessageTypeLetter, models.ContactTypeReturnsTo)
			}
			if nt.UsesEmailRoles() {
				add(models.MessageTypeEmail, models.ContactTypePrimaryUser)
				add(models.MessageTypeEmail, models.ContactTypeReturnsAgent)
				add(models.MessageTypeEmail, models.ContactTypeSingleUse)
			}
			if nt != models.NoticeTypeAlternateInvitations {
				add(models.MessageTypeLetter, models.ContactTypeSingleUse)
			}
		}
	}
	return keys
}

// Validate reports every required key missing from the table.
func Validate() error {
	var missing []string
	for _, k := range Required() {
		if _, ok := table[k]; !ok {
			missing = append(missing, k.String())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("templates not configured: %s", strings.Join(missing, ", "))
}

// MustValidate panics when Validate fails. Called at startup.
func MustValidate() {
	if err := Validate(); err != nil {
		panic(err)
	}
}
