// internal/model/deal.go
package model

// Deal is owned by the CRM; the automation core only reads the fields below.
type Deal struct {
	ID        string  `db:"id" json:"id"`
	StageID   string  `db:"stage_id" json:"stage_id"`
	ContactID *string `db:"contact_id" json:"contact_id,omitempty"`
	OwnerID   string  `db:"owner_id" json:"owner_id"`
}
