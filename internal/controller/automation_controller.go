// internal/controller/automation_controller.go
package controller

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/vendaflow/automation-service/internal/errors"
	"github.com/vendaflow/automation-service/internal/rabbit"
	"github.com/vendaflow/automation-service/internal/repository"
)

// RunPublisher hands a run trigger to the worker.
type RunPublisher interface {
	PublishRunRequest(req rabbit.RunRequest) error
}

type AutomationController struct {
	Queue repository.QueueItemRepositoryInterface
	Audit repository.AuditLogRepositoryInterface
	Runs  RunPublisher

	DefaultBatchSize  int
	DefaultMaxRetries int
}

// TriggerRun enqueues an on-demand processor run. The worker executes it
// under the run lock, so triggering during a scheduled run is harmless.
func (c *AutomationController) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MaxBatchSize int `json:"max_batch_size"`
		MaxRetries   int `json:"max_retries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	req := rabbit.RunRequest{MaxBatchSize: body.MaxBatchSize, MaxRetries: body.MaxRetries}
	if req.MaxBatchSize <= 0 {
		req.MaxBatchSize = c.DefaultBatchSize
	}
	if req.MaxRetries <= 0 {
		req.MaxRetries = c.DefaultMaxRetries
	}

	if err := c.Runs.PublishRunRequest(req); err != nil {
		http.Error(w, "failed to enqueue run: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "queued",
		"max_batch_size": req.MaxBatchSize,
		"max_retries":    req.MaxRetries,
	})
}

// ListQueue returns a page of queue items, optionally scoped by status and
// flow. Scoping composes typed filter conds; values never reach the SQL text.
func (c *AutomationController) ListQueue(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	f := repository.NewFilter()
	if status := r.URL.Query().Get("status"); status != "" {
		f.Add(repository.Eq("status", status))
	}
	if flowID := r.URL.Query().Get("flow_id"); flowID != "" {
		f.Add(repository.Eq("flow_id", flowID))
	}

	items, total, err := c.Queue.List(f, (page-1)*pageSize, pageSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"items": items,
		"pagination": map[string]int{
			"page":        page,
			"page_size":   pageSize,
			"total_count": total,
			"total_pages": totalPages,
		},
	})
}

// ItemLog returns one queue item with its full audit trail, one entry per
// dispatch attempt.
func (c *AutomationController) ItemLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := c.Queue.GetByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if item == nil {
		http.Error(w, appErrors.NewItemNotFound(id).Error(), http.StatusNotFound)
		return
	}

	entries, err := c.Audit.ListByItem(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"item": item,
		"log":  entries,
	})
}
