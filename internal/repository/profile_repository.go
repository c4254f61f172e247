// internal/repository/profile_repository.go
package repository

import "database/sql"

// ProfileRepositoryInterface resolves a deal owner to a display name.
// Resolution is best effort: an unknown owner yields an empty string so the
// owner placeholder simply renders empty.
type ProfileRepositoryInterface interface {
	DisplayName(ownerID string) (string, error)
}

type ProfileRepository struct {
	DB *sql.DB
}

func (r *ProfileRepository) DisplayName(ownerID string) (string, error) {
	if ownerID == "" {
		return "", nil
	}
	var name string
	err := r.DB.QueryRow(`SELECT COALESCE(name, '') FROM users WHERE id = $1`, ownerID).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return name, nil
}
