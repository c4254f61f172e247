// internal/repository/flow_repository.go
package repository

import (
	"database/sql"

	"github.com/vendaflow/automation-service/internal/model"
)

// FlowRepositoryInterface covers the point lookups the processor needs.
// A lookup miss returns (nil, nil); errors mean the store itself failed.
type FlowRepositoryInterface interface {
	GetFlow(id string) (*model.Flow, error)
	GetStep(id string) (*model.Step, error)
	GetTemplate(id string) (*model.Template, error)
}

type FlowRepository struct {
	DB *sql.DB
}

func (r *FlowRepository) GetFlow(id string) (*model.Flow, error) {
	query := `SELECT id, name, stage_id, created_at FROM flows WHERE id = $1`
	var f model.Flow
	var stageID sql.NullString
	err := r.DB.QueryRow(query, id).Scan(&f.ID, &f.Name, &stageID, &f.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if stageID.Valid {
		f.StageID = &stageID.String
	}
	return &f, nil
}

func (r *FlowRepository) GetStep(id string) (*model.Step, error) {
	query := `SELECT id, flow_id, position, channel, template_id FROM flow_steps WHERE id = $1`
	var s model.Step
	err := r.DB.QueryRow(query, id).Scan(&s.ID, &s.FlowID, &s.Position, &s.Channel, &s.TemplateID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *FlowRepository) GetTemplate(id string) (*model.Template, error) {
	query := `
        SELECT id, name, content, COALESCE(subject, ''), COALESCE(provider_template_id, '')
        FROM templates WHERE id = $1
    `
	var t model.Template
	err := r.DB.QueryRow(query, id).Scan(&t.ID, &t.Name, &t.Content, &t.Subject, &t.ProviderTemplateID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
