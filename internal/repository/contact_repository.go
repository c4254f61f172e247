// internal/repository/contact_repository.go
package repository

import (
	"database/sql"

	"github.com/vendaflow/automation-service/internal/model"
)

type ContactRepositoryInterface interface {
	GetByID(id string) (*model.Contact, error)
}

type ContactRepository struct {
	DB *sql.DB
}

func (r *ContactRepository) GetByID(id string) (*model.Contact, error) {
	query := `
        SELECT id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(phone, '')
        FROM contacts WHERE id = $1
    `
	var c model.Contact
	err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
