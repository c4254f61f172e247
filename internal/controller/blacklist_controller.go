// internal/controller/blacklist_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appErrors "github.com/vendaflow/automation-service/internal/errors"
	"github.com/vendaflow/automation-service/internal/model"
	"github.com/vendaflow/automation-service/internal/repository"
	"github.com/vendaflow/automation-service/internal/suppress"
)

// BlacklistController manages the do-not-contact list. Entries are the only
// mechanism that suppresses queued automations for a contact.
type BlacklistController struct {
	Repo repository.BlacklistRepositoryInterface
}

// List returns blacklist entries. When identity query params are present,
// any single match is enough (OR semantics), mirroring how suppression
// checks contacts.
func (c *BlacklistController) List(w http.ResponseWriter, r *http.Request) {
	conds := []repository.Cond{}
	if contactID := r.URL.Query().Get("contact_id"); contactID != "" {
		conds = append(conds, repository.Eq("contact_id", contactID))
	}
	if email := r.URL.Query().Get("email"); email != "" {
		conds = append(conds, repository.Eq("email", suppress.NormalizeEmail(email)))
	}
	if phone := r.URL.Query().Get("phone"); phone != "" {
		conds = append(conds, repository.Eq("phone", suppress.NormalizePhone(phone)))
	}

	f := repository.NewFilter()
	if len(conds) > 0 {
		f.Add(repository.Or(conds...))
	}

	entries, err := c.Repo.List(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"entries": entries})
}

func (c *BlacklistController) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ContactID string `json:"contact_id"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	entry := &model.BlacklistEntry{
		ID:        uuid.NewString(),
		ContactID: body.ContactID,
		Email:     suppress.NormalizeEmail(body.Email),
		Phone:     suppress.NormalizePhone(body.Phone),
		Reason:    body.Reason,
	}
	if entry.ContactID == "" && entry.Email == "" && entry.Phone == "" {
		http.Error(w, "at least one of contact_id, email or phone is required", http.StatusBadRequest)
		return
	}

	if err := c.Repo.Create(entry); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

func (c *BlacklistController) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.Repo.Delete(id); err != nil {
		var notFound *appErrors.ErrBlacklistEntryNotFound
		if errors.As(err, &notFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
