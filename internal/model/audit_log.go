// internal/model/audit_log.go
package model

import "time"

// AuditLogEntry records a single dispatch attempt. A retried item produces
// one entry per attempt; entries are never updated after insert.
type AuditLogEntry struct {
	ID              string          `db:"id" json:"id"`
	QueueItemID     string          `db:"queue_item_id" json:"queue_item_id"`
	FlowID          string          `db:"flow_id" json:"flow_id"`
	StepID          string          `db:"step_id" json:"step_id"`
	TemplateID      string          `db:"template_id" json:"template_id"`
	DealID          string          `db:"deal_id" json:"deal_id"`
	ContactID       string          `db:"contact_id" json:"contact_id"`
	Channel         Channel         `db:"channel" json:"channel"`
	Recipient       string          `db:"recipient" json:"recipient"`
	RenderedContent string          `db:"rendered_content" json:"rendered_content"`
	RenderedSubject string          `db:"rendered_subject" json:"rendered_subject,omitempty"`
	Status          QueueItemStatus `db:"status" json:"status"`
	ExternalID      string          `db:"external_id" json:"external_id,omitempty"`
	Error           string          `db:"error" json:"error,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
