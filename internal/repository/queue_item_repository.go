// internal/repository/queue_item_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/vendaflow/automation-service/internal/model"
)

// Advisory lock key guarding the fetch+process cycle. Two processors must
// never drain the same queue concurrently or items would double-send.
const runLockKey = 874219001

type QueueItemRepositoryInterface interface {
	FetchDue(limit int) ([]model.QueueItem, error)
	GetByID(id string) (*model.QueueItem, error)
	Create(item *model.QueueItem) error
	Update(item *model.QueueItem) error
	List(f *Filter, offset, limit int) ([]model.QueueItem, int, error)
	TryRunLock() (bool, error)
	ReleaseRunLock() error
}

type QueueItemRepository struct {
	DB *sql.DB

	mu       sync.Mutex
	lockConn *sql.Conn
}

const queueItemColumns = `id, deal_id, contact_id, flow_id, step_id, status, attempts, last_error, scheduled_at, next_attempt_at, created_at, updated_at`

// FetchDue returns up to limit pending items whose schedule (and retry
// backoff) has come due, oldest scheduled first so old work never starves.
func (r *QueueItemRepository) FetchDue(limit int) ([]model.QueueItem, error) {
	query := `
        SELECT ` + queueItemColumns + `
        FROM automation_queue
        WHERE status = $1 AND scheduled_at <= NOW() AND next_attempt_at <= NOW()
        ORDER BY scheduled_at ASC
        LIMIT $2
    `
	rows, err := r.DB.Query(query, model.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanQueueItems(rows)
}

func (r *QueueItemRepository) GetByID(id string) (*model.QueueItem, error) {
	query := `SELECT ` + queueItemColumns + ` FROM automation_queue WHERE id = $1`
	item, err := scanQueueItem(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

func (r *QueueItemRepository) Create(item *model.QueueItem) error {
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = model.StatusPending
	}
	if item.NextAttemptAt.IsZero() {
		item.NextAttemptAt = item.ScheduledAt
	}

	query := `
        INSERT INTO automation_queue
        (id, deal_id, contact_id, flow_id, step_id, status, attempts, last_error, scheduled_at, next_attempt_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	_, err := r.DB.Exec(
		query,
		item.ID,
		item.DealID,
		item.ContactID,
		item.FlowID,
		item.StepID,
		item.Status,
		item.Attempts,
		item.LastError,
		item.ScheduledAt,
		item.NextAttemptAt,
		item.CreatedAt,
		item.UpdatedAt,
	)
	return err
}

// Update persists status, attempts, last_error and next_attempt_at.
func (r *QueueItemRepository) Update(item *model.QueueItem) error {
	item.UpdatedAt = time.Now()
	query := `
        UPDATE automation_queue
        SET status=$1, attempts=$2, last_error=$3, next_attempt_at=$4, updated_at=$5
        WHERE id=$6
    `
	_, err := r.DB.Exec(query, item.Status, item.Attempts, item.LastError, item.NextAttemptAt, item.UpdatedAt, item.ID)
	return err
}

// List returns a page of queue items matching the filter plus the total count.
func (r *QueueItemRepository) List(f *Filter, offset, limit int) ([]model.QueueItem, int, error) {
	where, args := f.SQL(1)

	countQuery := `SELECT COUNT(*) FROM automation_queue` + where
	var total int
	if err := r.DB.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM automation_queue%s ORDER BY scheduled_at DESC LIMIT $%d OFFSET $%d`,
		queueItemColumns, where, len(args)+1, len(args)+2,
	)
	rows, err := r.DB.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := scanQueueItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// TryRunLock takes the run advisory lock on a dedicated connection that stays
// checked out of the pool until ReleaseRunLock. Session advisory locks are per
// backend: acquired through the pool, a second run could be served by the
// holder's idle connection and re-acquire the lock, and the unlock could land
// on a different session and silently release nothing.
func (r *QueueItemRepository) TryRunLock() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lockConn != nil {
		return false, nil
	}

	ctx := context.Background()
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return false, err
	}
	var locked bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, runLockKey).Scan(&locked); err != nil {
		conn.Close()
		return false, err
	}
	if !locked {
		conn.Close()
		return false, nil
	}
	r.lockConn = conn
	return true, nil
}

// ReleaseRunLock unlocks on the pinned connection and returns it to the pool.
func (r *QueueItemRepository) ReleaseRunLock() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lockConn == nil {
		return nil
	}
	conn := r.lockConn
	r.lockConn = nil
	defer conn.Close()

	var released bool
	if err := conn.QueryRowContext(context.Background(), `SELECT pg_advisory_unlock($1)`, runLockKey).Scan(&released); err != nil {
		return err
	}
	if !released {
		return fmt.Errorf("advisory lock %d was not held by this session", runLockKey)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(row rowScanner) (*model.QueueItem, error) {
	var item model.QueueItem
	var contactID sql.NullString
	err := row.Scan(
		&item.ID,
		&item.DealID,
		&contactID,
		&item.FlowID,
		&item.StepID,
		&item.Status,
		&item.Attempts,
		&item.LastError,
		&item.ScheduledAt,
		&item.NextAttemptAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if contactID.Valid {
		item.ContactID = &contactID.String
	}
	return &item, nil
}

func scanQueueItems(rows *sql.Rows) ([]model.QueueItem, error) {
	items := []model.QueueItem{}
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
