package models

import "strings"

// ContactKind distinguishes people from organisations in licence contact metadata.
type ContactKind string

const (
	ContactKindPerson       ContactKind = "Person"
	ContactKindOrganisation ContactKind = "Organisation"
)

// ContactRole is the role a contact plays in licence document metadata.
type ContactRole string

const (
	ContactRoleLicenceHolder ContactRole = "Licence holder"
	ContactRoleReturnsTo     ContactRole = "Returns to"
)

// Contact is a postal contact embedded in licence document metadata. It has
// no stable identifier; identity is derived from its content (see
// recipients.ContactHash). Empty strings mean "not populated".
type Contact struct {
	Salutation   string      `json:"salutation,omitempty"`
	Forename     string      `json:"forename,omitempty"`
	Initials     string      `json:"initials,omitempty"`
	Name         string      `json:"name,omitempty"`
	AddressLine1 string      `json:"addressLine1,omitempty"`
	AddressLine2 string      `json:"addressLine2,omitempty"`
	AddressLine3 string      `json:"addressLine3,omitempty"`
	AddressLine4 string      `json:"addressLine4,omitempty"`
	Town         string      `json:"town,omitempty"`
	County       string      `json:"county,omitempty"`
	Postcode     string      `json:"postcode,omitempty"`
	Country      string      `json:"country,omitempty"`
	Type         ContactKind `json:"type,omitempty"`
	Role         ContactRole `json:"role,omitempty"`
}

// DisplayName is the name a letter is addressed to. Organisations use their
// name alone; people are "salutation initials-or-forename name".
func (c Contact) DisplayName() string {
	if c.Type == ContactKindOrganisation {
		return strings.TrimSpace(c.Name)
	}

	given := strings.TrimSpace(c.Initials)
	if given == "" {
		given = strings.TrimSpace(c.Forename)
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{c.Salutation, given, c.Name} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// AddressFields returns the populated-or-not address components in their
// canonical order: lines 1-4, town, county, postcode, country.
func (c Contact) AddressFields() []string {
	return []string{
		c.AddressLine1,
		c.AddressLine2,
		c.AddressLine3,
		c.AddressLine4,
		c.Town,
		c.County,
		c.Postcode,
		c.Country,
	}
}
