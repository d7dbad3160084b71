package presenter

import (
	"wrls/internal/notices/address"
	"wrls/internal/notices/models"
)

// CheckRecipient is one row of the staff check view.
type CheckRecipient struct {
	Contact  []string `json:"contact"`
	Licences []string `json:"licences"`
	Method   string   `json:"method"`
}

// Check presents sending-shape recipients for review. Input order is kept.
func Check(rs []models.Recipient) []CheckRecipient {
	out := make([]CheckRecipient, 0, len(rs))
	for _, r := range rs {
		row := CheckRecipient{
			Licences: r.LicenceRefs,
			Method:   Method(r),
		}
		switch {
		case r.IsEmail():
			row.Contact = []string{r.Email}
		case r.Contact != nil:
			row.Contact = address.Normalize(*r.Contact)
		}
		out = append(out, row)
	}
	return out
}

// Method labels how and as whom a recipient is contacted, e.g.
// "Letter - Licence holder".
func Method(r models.Recipient) string {
	return r.MessageType.Label() + " - " + r.ContactType.Label()
}
