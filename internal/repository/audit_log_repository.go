// internal/repository/audit_log_repository.go
package repository

import (
	"database/sql"
	"time"

	"github.com/vendaflow/automation-service/internal/model"
)

type AuditLogRepositoryInterface interface {
	Insert(entry *model.AuditLogEntry) error
	ListByItem(queueItemID string) ([]model.AuditLogEntry, error)
}

type AuditLogRepository struct {
	DB *sql.DB
}

// Insert appends one audit row. Rows are never updated or deleted.
func (r *AuditLogRepository) Insert(entry *model.AuditLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	query := `
        INSERT INTO automation_audit_log
        (id, queue_item_id, flow_id, step_id, template_id, deal_id, contact_id, channel,
         recipient, rendered_content, rendered_subject, status, external_id, error, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    `
	_, err := r.DB.Exec(
		query,
		entry.ID,
		entry.QueueItemID,
		entry.FlowID,
		entry.StepID,
		entry.TemplateID,
		entry.DealID,
		entry.ContactID,
		entry.Channel,
		entry.Recipient,
		entry.RenderedContent,
		entry.RenderedSubject,
		entry.Status,
		entry.ExternalID,
		entry.Error,
		entry.CreatedAt,
	)
	return err
}

func (r *AuditLogRepository) ListByItem(queueItemID string) ([]model.AuditLogEntry, error) {
	query := `
        SELECT id, queue_item_id, flow_id, step_id, template_id, deal_id, contact_id, channel,
               recipient, rendered_content, COALESCE(rendered_subject, ''), status,
               COALESCE(external_id, ''), COALESCE(error, ''), created_at
        FROM automation_audit_log
        WHERE queue_item_id = $1
        ORDER BY created_at ASC
    `
	rows, err := r.DB.Query(query, queueItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.AuditLogEntry{}
	for rows.Next() {
		var e model.AuditLogEntry
		err := rows.Scan(
			&e.ID, &e.QueueItemID, &e.FlowID, &e.StepID, &e.TemplateID, &e.DealID,
			&e.ContactID, &e.Channel, &e.Recipient, &e.RenderedContent,
			&e.RenderedSubject, &e.Status, &e.ExternalID, &e.Error, &e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
