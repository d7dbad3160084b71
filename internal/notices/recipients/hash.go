package recipients

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"wrls/internal/notices/models"
)

// ContactHash derives the identity of a letter contact from its content:
// md5 of the lowercased concatenation of name and address fields. Two
// contacts with the same text are the same recipient.
func ContactHash(c models.Contact) string {
	var b strings.Builder
	for _, field := range []string{
		c.Salutation,
		c.Forename,
		c.Initials,
		c.Name,
		c.AddressLine1,
		c.AddressLine2,
		c.AddressLine3,
		c.AddressLine4,
		c.Town,
		c.County,
		c.Postcode,
		c.Country,
	} {
		b.WriteString(field)
	}
	return digest(b.String())
}

// EmailHash derives the identity of an email recipient.
func EmailHash(email string) string {
	return digest(email)
}

// digest matches md5(LOWER(...)) so hashes can be compared with values
// computed in SQL.
func digest(s string) string {
	sum := md5.Sum([]byte(cases.Lower(language.Und).String(s)))
	return hex.EncodeToString(sum[:])
}
