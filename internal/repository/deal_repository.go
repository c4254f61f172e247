// internal/repository/deal_repository.go
package repository

import (
	"database/sql"

	"github.com/vendaflow/automation-service/internal/model"
)

type DealRepositoryInterface interface {
	GetByID(id string) (*model.Deal, error)
}

type DealRepository struct {
	DB *sql.DB
}

func (r *DealRepository) GetByID(id string) (*model.Deal, error) {
	query := `SELECT id, stage_id, contact_id, COALESCE(owner_id, '') FROM deals WHERE id = $1`
	var d model.Deal
	var contactID sql.NullString
	err := r.DB.QueryRow(query, id).Scan(&d.ID, &d.StageID, &contactID, &d.OwnerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if contactID.Valid {
		d.ContactID = &contactID.String
	}
	return &d, nil
}
