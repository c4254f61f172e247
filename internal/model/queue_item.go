// internal/model/queue_item.go
package model

import "time"

type QueueItemStatus string

const (
	StatusPending QueueItemStatus = "pending"
	StatusSent    QueueItemStatus = "sent"
	StatusSkipped QueueItemStatus = "skipped"
	StatusFailed  QueueItemStatus = "failed"
)

// Terminal reports whether the status can never be left again.
// Only pending items are ever picked up by the processor.
func (s QueueItemStatus) Terminal() bool {
	return s == StatusSent || s == StatusSkipped || s == StatusFailed
}

type QueueItem struct {
	ID            string          `db:"id" json:"id"`
	DealID        string          `db:"deal_id" json:"deal_id"`
	ContactID     *string         `db:"contact_id" json:"contact_id,omitempty"`
	FlowID        string          `db:"flow_id" json:"flow_id"`
	StepID        string          `db:"step_id" json:"step_id"`
	Status        QueueItemStatus `db:"status" json:"status"`
	Attempts      int             `db:"attempts" json:"attempts"`
	LastError     string          `db:"last_error" json:"last_error,omitempty"`
	ScheduledAt   time.Time       `db:"scheduled_at" json:"scheduled_at"`
	NextAttemptAt time.Time       `db:"next_attempt_at" json:"next_attempt_at"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}
