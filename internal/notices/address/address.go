// Package address turns licence contacts into postal address lines that the
// delivery provider accepts.
//
// The provider requires between three and seven lines, the last of which is
// a valid UK postcode or a country outside the UK. Line one is always the
// recipient name, leaving six lines for the address itself.
package address

import (
	"fmt"
	"regexp"
	"strings"

	"wrls/internal/notices/models"
)

const (
	// MaxLines is the most lines a valid address produces.
	MaxLines = 7
	// maxParts is what is left once line one is taken by the name.
	maxParts = MaxLines - 1

	InvalidPostcodeMessage         = "INVALID ADDRESS - Needs a valid postcode or country outside the UK"
	InvalidSpecialCharacterMessage = "INVALID ADDRESS - A line starts with special character"
)

// specialCharacters may not start any address line.
const specialCharacters = `@()=[]”\/,<>`

var ukPostcodeRe = regexp.MustCompile(`^(GIR ?0AA|[A-Z]{1,2}[0-9][A-Z0-9]? ?[0-9][A-Z]{2})$`)

var ukCountries = map[string]struct{}{
	"england":          {},
	"scotland":         {},
	"wales":            {},
	"northern ireland": {},
	"united kingdom":   {},
	"great britain":    {},
	"uk":               {},
	"gb":               {},
}

var crownDependencies = map[string]struct{}{
	"guernsey":    {},
	"jersey":      {},
	"isle of man": {},
}

// Lines is an ordered sequence of address lines; Lines[0] is address_line_1.
type Lines []string

// Personalisation flattens the lines into the provider's address_line_N keys.
func (l Lines) Personalisation() map[string]string {
	out := make(map[string]string, len(l))
	for i, line := range l {
		out[Key(i+1)] = line
	}
	return out
}

// Key returns the provider field name for the nth (1-based) line.
func Key(n int) string {
	return fmt.Sprintf("address_line_%d", n)
}

// Normalize converts a contact into address lines. Unaddressable contacts
// are not an error: they produce an INVALID ADDRESS marker followed by every
// populated field so staff can correct the record.
func Normalize(contact models.Contact) Lines {
	name := contact.DisplayName()

	if startsWithSpecialCharacter(contact) {
		return invalid(name, InvalidSpecialCharacterMessage, contact)
	}

	international := IsInternational(contact.Country)
	if !international && !IsValidUKPostcode(contact.Postcode) {
		return invalid(name, InvalidPostcodeMessage, contact)
	}

	parts := addressParts(contact, name, international)
	parts = condense(parts)

	lines := make(Lines, 0, len(parts)+1)
	lines = append(lines, name)
	return append(lines, parts...)
}

// IsValidUKPostcode checks the UK postcode format, ignoring case and
// surrounding whitespace.
func IsValidUKPostcode(postcode string) bool {
	p := strings.ToUpper(strings.TrimSpace(postcode))
	if p == "" {
		return false
	}
	return ukPostcodeRe.MatchString(p)
}

// IsInternational reports whether country is populated and is neither a UK
// country nor a Crown Dependency.
func IsInternational(country string) bool {
	c := normalizeCountry(country)
	if c == "" {
		return false
	}
	if _, ok := ukCountries[c]; ok {
		return false
	}
	_, crown := crownDependencies[c]
	return !crown
}

// IsCrownDependency reports whether country is Guernsey, Jersey or the Isle of Man.
func IsCrownDependency(country string) bool {
	_, ok := crownDependencies[normalizeCountry(country)]
	return ok
}

func normalizeCountry(country string) string {
	return strings.ToLower(strings.Join(strings.Fields(country), " "))
}

func addressParts(c models.Contact, name string, international bool) []string {
	line1 := c.AddressLine1
	if sameText(line1, name) {
		line1 = ""
	}

	candidates := []string{line1, c.AddressLine2, c.AddressLine3, c.AddressLine4, c.Town, c.County}

	switch {
	case international:
		candidates = append(candidates, c.Postcode, c.Country)
	case IsCrownDependency(c.Country):
		candidates = append(candidates, c.Country, c.Postcode)
	default:
		candidates = append(candidates, c.Postcode)
	}

	return populated(candidates)
}

// condense merges middle parts pairwise, working back from the end, until
// the parts fit. The first and last parts are never touched.
func condense(parts []string) []string {
	if len(parts) <= maxParts {
		return parts
	}

	first, last := parts[0], parts[len(parts)-1]
	middle := append([]string(nil), parts[1:len(parts)-1]...)

	excess := len(parts) - maxParts
	for i := 0; i < excess; i++ {
		// the i parts already merged sit at the end of middle
		right := len(middle) - 1 - i
		left := right - 1
		if left < 0 {
			break
		}
		merged := middle[left] + ", " + middle[right]
		middle = append(middle[:left], append([]string{merged}, middle[right+1:]...)...)
	}

	out := make([]string, 0, maxParts)
	out = append(out, first)
	out = append(out, middle...)
	return append(out, last)
}

func invalid(name, message string, c models.Contact) Lines {
	lines := Lines{name, message}
	return append(lines, populated(c.AddressFields())...)
}

func startsWithSpecialCharacter(c models.Contact) bool {
	for _, field := range c.AddressFields() {
		f := strings.TrimSpace(field)
		if f != "" && strings.ContainsRune(specialCharacters, []rune(f)[0]) {
			return true
		}
	}
	return false
}

func populated(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func sameText(a, b string) bool {
	a = strings.Join(strings.Fields(a), " ")
	b = strings.Join(strings.Fields(b), " ")
	return a != "" && strings.EqualFold(a, b)
}
