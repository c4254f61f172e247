// internal/repository/blacklist_repository.go
package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/vendaflow/automation-service/internal/errors"
	"github.com/vendaflow/automation-service/internal/model"
)

type BlacklistRepositoryInterface interface {
	ListAll() ([]model.BlacklistEntry, error)
	List(f *Filter) ([]model.BlacklistEntry, error)
	Create(entry *model.BlacklistEntry) error
	Delete(id string) error
}

type BlacklistRepository struct {
	DB *sql.DB
}

const blacklistColumns = `id, COALESCE(contact_id, ''), COALESCE(email, ''), COALESCE(phone, ''), COALESCE(reason, ''), created_at`

// ListAll returns the full suppression list. The processor loads it once per
// batch and checks contacts in memory.
func (r *BlacklistRepository) ListAll() ([]model.BlacklistEntry, error) {
	return r.List(nil)
}

func (r *BlacklistRepository) List(f *Filter) ([]model.BlacklistEntry, error) {
	where, args := f.SQL(1)
	query := `SELECT ` + blacklistColumns + ` FROM blacklist` + where + ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.BlacklistEntry{}
	for rows.Next() {
		var e model.BlacklistEntry
		if err := rows.Scan(&e.ID, &e.ContactID, &e.Email, &e.Phone, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *BlacklistRepository) Create(entry *model.BlacklistEntry) error {
	entry.CreatedAt = time.Now()
	query := `
        INSERT INTO blacklist (id, contact_id, email, phone, reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := r.DB.Exec(query, entry.ID, entry.ContactID, entry.Email, entry.Phone, entry.Reason, entry.CreatedAt)
	return err
}

func (r *BlacklistRepository) Delete(id string) error {
	res, err := r.DB.Exec(`DELETE FROM blacklist WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErrors.NewBlacklistEntryNotFound(id)
	}
	return nil
}
