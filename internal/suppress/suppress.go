// internal/suppress/suppress.go
package suppress

import (
	"strings"

	"github.com/vendaflow/automation-service/internal/model"
)

// NormalizeEmail lower-cases and trims an email address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips everything but digits, so "+55 (11) 99999-0000" and
// "5511999990000" compare equal.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsSuppressed reports whether any non-empty identity field of the contact
// (id, email, phone) matches the corresponding non-empty field of a
// blacklist entry. Comparison happens on normalized values; an empty
// blacklist never suppresses.
func IsSuppressed(contact *model.Contact, blacklist []model.BlacklistEntry) bool {
	if contact == nil {
		return false
	}

	email := NormalizeEmail(contact.Email)
	phone := NormalizePhone(contact.Phone)

	for _, entry := range blacklist {
		if contact.ID != "" && entry.ContactID != "" && contact.ID == entry.ContactID {
			return true
		}
		if email != "" && entry.Email != "" && email == NormalizeEmail(entry.Email) {
			return true
		}
		if phone != "" && entry.Phone != "" && phone == NormalizePhone(entry.Phone) {
			return true
		}
	}
	return false
}
