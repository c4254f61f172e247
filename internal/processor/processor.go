// internal/processor/processor.go
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vendaflow/automation-service/internal/bugsink"
	"github.com/vendaflow/automation-service/internal/dispatch"
	"github.com/vendaflow/automation-service/internal/guard"
	"github.com/vendaflow/automation-service/internal/metrics"
	"github.com/vendaflow/automation-service/internal/model"
	"github.com/vendaflow/automation-service/internal/render"
	"github.com/vendaflow/automation-service/internal/repository"
	"github.com/vendaflow/automation-service/internal/suppress"
)

// ErrRunInProgress is returned when another processor holds the run lock.
var ErrRunInProgress = errors.New("automation run already in progress")

// Skip reasons recorded on the queue item.
const (
	ReasonMissingStepOrTemplate = "missing step or template"
	ReasonDealNotFound          = "deal not found"
	ReasonStageMoved            = "deal moved to different stage"
	ReasonContactNotFound       = "contact not found"
	ReasonBlacklisted           = "contact blacklisted"
	ReasonNoPhone               = "no phone number"
	ReasonNoEmail               = "no email address"
)

// Config contains processor tuning knobs.
type Config struct {
	// DispatchTimeout bounds a single provider call. Default: 30 seconds.
	DispatchTimeout time.Duration

	// RetryBackoffBase is the delay before the second attempt; it doubles
	// per attempt. Default: 2 minutes.
	RetryBackoffBase time.Duration

	// RetryBackoffMax caps the backoff. Default: 1 hour.
	RetryBackoffMax time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		DispatchTimeout:  30 * time.Second,
		RetryBackoffBase: 2 * time.Minute,
		RetryBackoffMax:  time.Hour,
	}
}

// BatchResult summarizes one processor run for the scheduler and dashboard.
type BatchResult struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// Processor drains due automation queue items: for each item it checks stage
// consistency and suppression, renders the step's template and dispatches it
// through the channel's provider, writing one audit row per dispatch attempt.
type Processor struct {
	Queue     repository.QueueItemRepositoryInterface
	Flows     repository.FlowRepositoryInterface
	Deals     repository.DealRepositoryInterface
	Contacts  repository.ContactRepositoryInterface
	Blacklist repository.BlacklistRepositoryInterface
	Profiles  repository.ProfileRepositoryInterface
	Audit     repository.AuditLogRepositoryInterface

	Dispatchers map[model.Channel]dispatch.Dispatcher

	Config Config

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

func (p *Processor) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

func (p *Processor) dispatchTimeout() time.Duration {
	if p.Config.DispatchTimeout > 0 {
		return p.Config.DispatchTimeout
	}
	return DefaultConfig().DispatchTimeout
}

func (p *Processor) backoff(attempts int) time.Duration {
	base := p.Config.RetryBackoffBase
	if base <= 0 {
		base = DefaultConfig().RetryBackoffBase
	}
	max := p.Config.RetryBackoffMax
	if max <= 0 {
		max = DefaultConfig().RetryBackoffMax
	}

	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// RunOnce is the single entry point for the scheduler. The whole
// fetch+process cycle runs under an advisory lock so two invocations can
// never drain the same queue concurrently.
func (p *Processor) RunOnce(maxBatchSize, maxRetries int) (*BatchResult, error) {
	locked, err := p.Queue.TryRunLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := p.Queue.ReleaseRunLock(); err != nil {
			log.Error().Err(err).Str("component", "processor").Msg("failed to release run lock")
		}
	}()

	return p.ProcessDueBatch(maxBatchSize, maxRetries)
}

// ProcessDueBatch fetches up to maxBatchSize due pending items, oldest
// scheduled first, and processes them sequentially. A fetch failure aborts
// the whole run; a failure inside one item never does.
func (p *Processor) ProcessDueBatch(maxBatchSize, maxRetries int) (*BatchResult, error) {
	items, err := p.Queue.FetchDue(maxBatchSize)
	if err != nil {
		metrics.RecordRun(false)
		return nil, fmt.Errorf("fetch due items: %w", err)
	}

	blacklist, err := p.Blacklist.ListAll()
	if err != nil {
		metrics.RecordRun(false)
		return nil, fmt.Errorf("load blacklist: %w", err)
	}

	res := &BatchResult{Errors: []string{}}
	for i := range items {
		res.Processed++
		p.processItem(&items[i], blacklist, maxRetries, res)
	}

	metrics.RecordRun(true)
	log.Info().
		Str("component", "processor").
		Int("processed", res.Processed).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("batch finished")
	return res, nil
}

func (p *Processor) processItem(item *model.QueueItem, blacklist []model.BlacklistEntry, maxRetries int, res *BatchResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("queue item %s panicked: %v", item.ID, r)
			bugsink.CaptureError(err, map[string]string{"queue_item": item.ID})
			p.failItem(item, fmt.Sprintf("panic: %v", r), res)
		}
	}()

	step, err := p.Flows.GetStep(item.StepID)
	if err != nil {
		p.failItem(item, "load step: "+err.Error(), res)
		return
	}
	var tmpl *model.Template
	if step != nil {
		tmpl, err = p.Flows.GetTemplate(step.TemplateID)
		if err != nil {
			p.failItem(item, "load template: "+err.Error(), res)
			return
		}
	}
	if step == nil || tmpl == nil {
		p.skipItem(item, ReasonMissingStepOrTemplate, res)
		return
	}

	deal, err := p.Deals.GetByID(item.DealID)
	if err != nil {
		p.failItem(item, "load deal: "+err.Error(), res)
		return
	}
	if deal == nil {
		p.skipItem(item, ReasonDealNotFound, res)
		return
	}

	flow, err := p.Flows.GetFlow(item.FlowID)
	if err != nil {
		p.failItem(item, "load flow: "+err.Error(), res)
		return
	}
	if !guard.IsStageConsistent(flow, deal) {
		p.skipItem(item, ReasonStageMoved, res)
		return
	}

	contactID := ""
	if item.ContactID != nil {
		contactID = *item.ContactID
	}
	if contactID == "" && deal.ContactID != nil {
		contactID = *deal.ContactID
	}
	if contactID == "" {
		p.skipItem(item, ReasonContactNotFound, res)
		return
	}
	contact, err := p.Contacts.GetByID(contactID)
	if err != nil {
		p.failItem(item, "load contact: "+err.Error(), res)
		return
	}
	if contact == nil {
		p.skipItem(item, ReasonContactNotFound, res)
		return
	}

	if suppress.IsSuppressed(contact, blacklist) {
		p.skipItem(item, ReasonBlacklisted, res)
		return
	}

	disp, ok := p.Dispatchers[step.Channel]
	if !ok {
		p.skipItem(item, "unsupported channel: "+string(step.Channel), res)
		return
	}

	// A missing recipient is a property of the contact, not of the
	// provider; it would fail deterministically forever, so it skips
	// without consuming retry budget.
	recipient := disp.Recipient(contact)
	if recipient == "" {
		if step.Channel == model.ChannelChat {
			p.skipItem(item, ReasonNoPhone, res)
		} else {
			p.skipItem(item, ReasonNoEmail, res)
		}
		return
	}

	ownerName := ""
	if deal.OwnerID != "" {
		ownerName, err = p.Profiles.DisplayName(deal.OwnerID)
		if err != nil {
			log.Warn().Err(err).Str("component", "processor").Str("owner_id", deal.OwnerID).
				Msg("owner name unresolved")
			ownerName = ""
		}
	}

	now := p.now()
	vars := buildVariables(contact, ownerName, now)
	content := render.Render(tmpl.Content, vars)
	subject := render.Render(tmpl.Subject, vars)

	ctx, cancel := context.WithTimeout(context.Background(), p.dispatchTimeout())
	defer cancel()
	result := disp.Dispatch(ctx, dispatch.Request{
		Recipient:          recipient,
		Content:            content,
		Subject:            subject,
		ProviderTemplateID: tmpl.ProviderTemplateID,
		Variables:          vars,
	})
	metrics.RecordDispatch(string(step.Channel), result.Success)

	entryStatus := model.StatusSent
	if !result.Success {
		entryStatus = model.StatusFailed
	}
	entry := &model.AuditLogEntry{
		ID:              uuid.NewString(),
		QueueItemID:     item.ID,
		FlowID:          item.FlowID,
		StepID:          step.ID,
		TemplateID:      tmpl.ID,
		DealID:          deal.ID,
		ContactID:       contact.ID,
		Channel:         step.Channel,
		Recipient:       recipient,
		RenderedContent: content,
		RenderedSubject: subject,
		Status:          entryStatus,
		ExternalID:      result.ExternalID,
		Error:           result.Error,
		CreatedAt:       now,
	}
	if err := p.Audit.Insert(entry); err != nil {
		bugsink.CaptureError(fmt.Errorf("insert audit entry for item %s: %w", item.ID, err), nil)
		log.Error().Err(err).Str("component", "processor").Str("queue_item", item.ID).
			Msg("failed to write audit entry")
	}

	if result.Success {
		item.Status = model.StatusSent
		item.LastError = ""
		p.updateItem(item)
		res.Sent++
		metrics.RecordItemOutcome("sent")
		log.Info().Str("component", "processor").Str("queue_item", item.ID).
			Str("channel", string(step.Channel)).Str("external_id", result.ExternalID).
			Msg("message sent")
		return
	}

	item.Attempts++
	item.LastError = result.Error
	if item.Attempts >= maxRetries {
		item.Status = model.StatusFailed
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("item %s: %s", item.ID, result.Error))
		metrics.RecordItemOutcome("failed")
		log.Error().Str("component", "processor").Str("queue_item", item.ID).
			Int("attempts", item.Attempts).Str("error", result.Error).
			Msg("message failed permanently")
	} else {
		// Stays pending; the next run picks it up once the backoff expires.
		item.NextAttemptAt = now.Add(p.backoff(item.Attempts))
		log.Warn().Str("component", "processor").Str("queue_item", item.ID).
			Int("attempts", item.Attempts).Str("error", result.Error).
			Time("next_attempt_at", item.NextAttemptAt).
			Msg("dispatch failed, will retry")
	}
	p.updateItem(item)
}

func (p *Processor) skipItem(item *model.QueueItem, reason string, res *BatchResult) {
	item.Status = model.StatusSkipped
	item.LastError = reason
	p.updateItem(item)
	res.Skipped++
	metrics.RecordItemOutcome("skipped")
	log.Info().Str("component", "processor").Str("queue_item", item.ID).
		Str("reason", reason).Msg("item skipped")
}

func (p *Processor) failItem(item *model.QueueItem, msg string, res *BatchResult) {
	item.Status = model.StatusFailed
	item.LastError = msg
	p.updateItem(item)
	res.Failed++
	res.Errors = append(res.Errors, fmt.Sprintf("item %s: %s", item.ID, msg))
	metrics.RecordItemOutcome("failed")
	log.Error().Str("component", "processor").Str("queue_item", item.ID).
		Str("error", msg).Msg("item failed")
}

func (p *Processor) updateItem(item *model.QueueItem) {
	if err := p.Queue.Update(item); err != nil {
		bugsink.CaptureError(fmt.Errorf("update queue item %s: %w", item.ID, err), nil)
		log.Error().Err(err).Str("component", "processor").Str("queue_item", item.ID).
			Msg("failed to update queue item")
	}
}

func buildVariables(contact *model.Contact, ownerName string, now time.Time) map[string]string {
	date := now.Format("02/01/2006")
	return map[string]string{
		"nome":     contact.Name,
		"name":     contact.Name,
		"email":    contact.Email,
		"telefone": contact.Phone,
		"phone":    contact.Phone,
		"vendedor": ownerName,
		"owner":    ownerName,
		"data":     date,
		"date":     date,
	}
}
