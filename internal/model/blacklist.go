// internal/model/blacklist.go
package model

import "time"

// BlacklistEntry suppresses dispatch for any contact whose id, email or
// phone matches the corresponding non-empty field. Email and phone are
// stored normalized (lower-cased email, digits-only phone).
type BlacklistEntry struct {
	ID        string    `db:"id" json:"id"`
	ContactID string    `db:"contact_id" json:"contact_id,omitempty"`
	Email     string    `db:"email" json:"email,omitempty"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Reason    string    `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
