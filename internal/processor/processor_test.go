package processor_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendaflow/automation-service/internal/dispatch"
	"github.com/vendaflow/automation-service/internal/model"
	"github.com/vendaflow/automation-service/internal/processor"
	"github.com/vendaflow/automation-service/internal/repository"
)

// --- In-memory fakes ---

type fakeQueueRepo struct {
	items    map[string]*model.QueueItem
	now      func() time.Time
	fetchErr error
	updates  int
	locked   bool
	lockBusy bool
}

func (f *fakeQueueRepo) FetchDue(limit int) ([]model.QueueItem, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	now := f.now()
	due := []model.QueueItem{}
	for _, item := range f.items {
		if item.Status == model.StatusPending && !item.ScheduledAt.After(now) && !item.NextAttemptAt.After(now) {
			due = append(due, *item)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakeQueueRepo) GetByID(id string) (*model.QueueItem, error) {
	return f.items[id], nil
}

func (f *fakeQueueRepo) Create(item *model.QueueItem) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeQueueRepo) Update(item *model.QueueItem) error {
	f.updates++
	stored := *item
	f.items[item.ID] = &stored
	return nil
}

func (f *fakeQueueRepo) List(_ *repository.Filter, _, _ int) ([]model.QueueItem, int, error) {
	return nil, 0, nil
}

func (f *fakeQueueRepo) TryRunLock() (bool, error) {
	if f.lockBusy {
		return false, nil
	}
	f.locked = true
	return true, nil
}

func (f *fakeQueueRepo) ReleaseRunLock() error {
	f.locked = false
	return nil
}

type fakeFlowRepo struct {
	flows     map[string]*model.Flow
	steps     map[string]*model.Step
	templates map[string]*model.Template
}

func (f *fakeFlowRepo) GetFlow(id string) (*model.Flow, error)         { return f.flows[id], nil }
func (f *fakeFlowRepo) GetStep(id string) (*model.Step, error)         { return f.steps[id], nil }
func (f *fakeFlowRepo) GetTemplate(id string) (*model.Template, error) { return f.templates[id], nil }

type fakeDealRepo struct {
	deals map[string]*model.Deal
}

func (f *fakeDealRepo) GetByID(id string) (*model.Deal, error) { return f.deals[id], nil }

type fakeContactRepo struct {
	contacts map[string]*model.Contact
}

func (f *fakeContactRepo) GetByID(id string) (*model.Contact, error) { return f.contacts[id], nil }

type fakeBlacklistRepo struct {
	entries []model.BlacklistEntry
	listErr error
}

func (f *fakeBlacklistRepo) ListAll() ([]model.BlacklistEntry, error) {
	return f.entries, f.listErr
}
func (f *fakeBlacklistRepo) List(_ *repository.Filter) ([]model.BlacklistEntry, error) {
	return f.entries, f.listErr
}
func (f *fakeBlacklistRepo) Create(_ *model.BlacklistEntry) error { return nil }
func (f *fakeBlacklistRepo) Delete(_ string) error                { return nil }

type fakeProfileRepo struct {
	names map[string]string
}

func (f *fakeProfileRepo) DisplayName(ownerID string) (string, error) {
	return f.names[ownerID], nil
}

type fakeAuditRepo struct {
	entries   []model.AuditLogEntry
	insertErr error
}

func (f *fakeAuditRepo) Insert(entry *model.AuditLogEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) ListByItem(itemID string) ([]model.AuditLogEntry, error) {
	out := []model.AuditLogEntry{}
	for _, e := range f.entries {
		if e.QueueItemID == itemID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeDispatcher struct {
	channel  model.Channel
	results  []dispatch.Result
	requests []dispatch.Request
	panicMsg string
}

func (f *fakeDispatcher) Channel() model.Channel { return f.channel }

func (f *fakeDispatcher) Recipient(contact *model.Contact) string {
	if contact == nil {
		return ""
	}
	if f.channel == model.ChannelChat {
		return contact.Phone
	}
	return contact.Email
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req dispatch.Request) dispatch.Result {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.requests = append(f.requests, req)
	if len(f.results) == 0 {
		return dispatch.Result{Success: true, ExternalID: "ext-1"}
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res
}

// --- Test environment ---

type testEnv struct {
	queue     *fakeQueueRepo
	flows     *fakeFlowRepo
	deals     *fakeDealRepo
	contacts  *fakeContactRepo
	blacklist *fakeBlacklistRepo
	profiles  *fakeProfileRepo
	audit     *fakeAuditRepo
	chat      *fakeDispatcher
	email     *fakeDispatcher
	now       time.Time
	proc      *processor.Processor
}

func strPtr(s string) *string { return &s }

func newTestEnv() *testEnv {
	env := &testEnv{
		now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
		flows: &fakeFlowRepo{
			flows: map[string]*model.Flow{
				"flow-1": {ID: "flow-1", Name: "Follow-up", StageID: strPtr("stage-1")},
			},
			steps: map[string]*model.Step{
				"step-1": {ID: "step-1", FlowID: "flow-1", Channel: model.ChannelChat, TemplateID: "tpl-1"},
				"step-2": {ID: "step-2", FlowID: "flow-1", Channel: model.ChannelEmail, TemplateID: "tpl-2"},
			},
			templates: map[string]*model.Template{
				"tpl-1": {ID: "tpl-1", Content: "Olá {{nome}}, sua reunião é {{data}}"},
				"tpl-2": {ID: "tpl-2", Content: "Olá {{nome}}", Subject: "Reunião com {{vendedor}}"},
			},
		},
		deals: &fakeDealRepo{deals: map[string]*model.Deal{
			"deal-1": {ID: "deal-1", StageID: "stage-1", ContactID: strPtr("contact-1"), OwnerID: "owner-1"},
		}},
		contacts: &fakeContactRepo{contacts: map[string]*model.Contact{
			"contact-1": {ID: "contact-1", Name: "Ana", Email: "ana@example.com", Phone: "5511999990000"},
		}},
		blacklist: &fakeBlacklistRepo{},
		profiles:  &fakeProfileRepo{names: map[string]string{"owner-1": "Rui"}},
		audit:     &fakeAuditRepo{},
		chat:      &fakeDispatcher{channel: model.ChannelChat},
		email:     &fakeDispatcher{channel: model.ChannelEmail},
	}
	env.queue = &fakeQueueRepo{
		items: map[string]*model.QueueItem{},
		now:   func() time.Time { return env.now },
	}
	env.proc = &processor.Processor{
		Queue:     env.queue,
		Flows:     env.flows,
		Deals:     env.deals,
		Contacts:  env.contacts,
		Blacklist: env.blacklist,
		Profiles:  env.profiles,
		Audit:     env.audit,
		Dispatchers: map[model.Channel]dispatch.Dispatcher{
			model.ChannelChat:  env.chat,
			model.ChannelEmail: env.email,
		},
		Clock: func() time.Time { return env.now },
	}
	return env
}

func (env *testEnv) addItem(id, stepID string) *model.QueueItem {
	item := &model.QueueItem{
		ID:            id,
		DealID:        "deal-1",
		FlowID:        "flow-1",
		StepID:        stepID,
		Status:        model.StatusPending,
		ScheduledAt:   env.now.Add(-time.Minute),
		NextAttemptAt: env.now.Add(-time.Minute),
	}
	env.queue.items[id] = item
	return item
}

// --- Scenarios ---

func TestRunOnceHappyPathChat(t *testing.T) {
	env := newTestEnv()
	env.addItem("item-1", "step-1")

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, res.Skipped)
	assert.Empty(t, res.Errors)

	item := env.queue.items["item-1"]
	assert.Equal(t, model.StatusSent, item.Status)
	assert.Empty(t, item.LastError)

	require.Len(t, env.audit.entries, 1)
	entry := env.audit.entries[0]
	assert.Equal(t, model.StatusSent, entry.Status)
	assert.Equal(t, "5511999990000", entry.Recipient)
	assert.Equal(t, "Olá Ana, sua reunião é 10/01/2026", entry.RenderedContent)
	assert.Equal(t, "ext-1", entry.ExternalID)
	assert.False(t, env.queue.locked, "run lock must be released")
}

func TestRunOnceRendersSubjectAndOwnerForEmail(t *testing.T) {
	env := newTestEnv()
	env.addItem("item-1", "step-2")

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	require.Len(t, env.email.requests, 1)
	req := env.email.requests[0]
	assert.Equal(t, "ana@example.com", req.Recipient)
	assert.Equal(t, "Olá Ana", req.Content)
	assert.Equal(t, "Reunião com Rui", req.Subject)
}

func TestRetriesUntilFailedWithOneAuditEntryPerAttempt(t *testing.T) {
	env := newTestEnv()
	env.addItem("item-1", "step-1")
	env.chat.results = []dispatch.Result{{Error: "provider timeout"}}

	for attempt := 1; attempt <= 3; attempt++ {
		res, err := env.proc.RunOnce(10, 3)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Processed)
		// Backoff pushes next_attempt_at forward; advance past it.
		env.now = env.now.Add(2 * time.Hour)
	}

	item := env.queue.items["item-1"]
	assert.Equal(t, model.StatusFailed, item.Status)
	assert.Equal(t, 3, item.Attempts)
	assert.Equal(t, "provider timeout", item.LastError)

	require.Len(t, env.audit.entries, 3)
	for _, e := range env.audit.entries {
		assert.Equal(t, model.StatusFailed, e.Status)
		assert.Equal(t, "provider timeout", e.Error)
	}

	// Terminal items are never picked up again.
	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Len(t, env.audit.entries, 3)
}

func TestTransientFailureStaysPendingWithBackoff(t *testing.T) {
	env := newTestEnv()
	env.addItem("item-1", "step-1")
	env.chat.results = []dispatch.Result{{Error: "connection reset"}}

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, res.Sent)

	item := env.queue.items["item-1"]
	assert.Equal(t, model.StatusPending, item.Status)
	assert.Equal(t, 1, item.Attempts)
	assert.True(t, item.NextAttemptAt.After(env.now))

	// Not due again until the backoff expires.
	res, err = env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
}

func TestBlacklistedContactSkipsBeforeDispatch(t *testing.T) {
	env := newTestEnv()
	env.addItem("item-1", "step-1")
	env.blacklist.entries = []model.BlacklistEntry{{Phone: "5511999990000"}}

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	item := env.queue.items["item-1"]
	assert.Equal(t, model.StatusSkipped, item.Status)
	assert.Equal(t, processor.ReasonBlacklisted, item.LastError)
	assert.Zero(t, item.Attempts)
	assert.Empty(t, env.chat.requests, "no dispatch for a blacklisted contact")
	assert.Empty(t, env.audit.entries, "no audit entry for a suppressed item")
}

func TestStageMismatchSkips(t *testing.T) {
	env := newTestEnv()
	env.addItem("item-1", "step-1")
	env.deals.deals["deal-1"].StageID = "stage-2"

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, processor.ReasonStageMoved, env.queue.items["item-1"].LastError)
	assert.Empty(t, env.chat.requests)
}

func TestMissingStepSkips(t *testing.T) {
	env := newTestEnv()
	env.addItem("item-1", "step-missing")

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, processor.ReasonMissingStepOrTemplate, env.queue.items["item-1"].LastError)
}

func TestMissingTemplateSkips(t *testing.T) {
	env := newTestEnv()
	env.flows.steps["step-3"] = &model.Step{ID: "step-3", FlowID: "flow-1", Channel: model.ChannelChat, TemplateID: "tpl-missing"}
	env.addItem("item-1", "step-3")

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, processor.ReasonMissingStepOrTemplate, env.queue.items["item-1"].LastError)
}

func TestDealNotFoundSkips(t *testing.T) {
	env := newTestEnv()
	item := env.addItem("item-1", "step-1")
	item.DealID = "deal-missing"

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, processor.ReasonDealNotFound, env.queue.items["item-1"].LastError)
}

func TestContactFallsBackToDealContact(t *testing.T) {
	env := newTestEnv()
	env.addItem("item-1", "step-1") // item has no contact reference

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
}

func TestContactNotFoundSkips(t *testing.T) {
	env := newTestEnv()
	item := env.addItem("item-1", "step-1")
	item.ContactID = strPtr("contact-missing")

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, processor.ReasonContactNotFound, env.queue.items["item-1"].LastError)
}

func TestMissingRecipientSkipsWithoutConsumingRetries(t *testing.T) {
	env := newTestEnv()
	env.contacts.contacts["contact-1"].Phone = ""
	env.addItem("item-1", "step-1")

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	item := env.queue.items["item-1"]
	assert.Equal(t, model.StatusSkipped, item.Status)
	assert.Equal(t, processor.ReasonNoPhone, item.LastError)
	assert.Zero(t, item.Attempts)
	assert.Empty(t, env.audit.entries)
}

func TestMissingEmailRecipientSkips(t *testing.T) {
	env := newTestEnv()
	env.contacts.contacts["contact-1"].Email = ""
	env.addItem("item-1", "step-2")

	_, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, processor.ReasonNoEmail, env.queue.items["item-1"].LastError)
}

func TestFetchFailureAbortsRunWithoutMutations(t *testing.T) {
	env := newTestEnv()
	env.addItem("item-1", "step-1")
	env.queue.fetchErr = errors.New("connection refused")

	res, err := env.proc.RunOnce(10, 3)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Zero(t, env.queue.updates, "no item mutated when the fetch fails")
	assert.Empty(t, env.audit.entries)
	assert.False(t, env.queue.locked, "run lock released on failure")
}

func TestBlacklistLoadFailureAbortsRun(t *testing.T) {
	env := newTestEnv()
	env.addItem("item-1", "step-1")
	env.blacklist.listErr = errors.New("connection refused")

	_, err := env.proc.RunOnce(10, 3)
	require.Error(t, err)
	assert.Zero(t, env.queue.updates)
}

func TestRunLockContention(t *testing.T) {
	env := newTestEnv()
	env.addItem("item-1", "step-1")
	env.queue.lockBusy = true

	_, err := env.proc.RunOnce(10, 3)
	assert.ErrorIs(t, err, processor.ErrRunInProgress)
	assert.Zero(t, env.queue.updates)
}

func TestPanicInOneItemDoesNotAbortBatch(t *testing.T) {
	env := newTestEnv()
	first := env.addItem("item-1", "step-1")
	second := env.addItem("item-2", "step-2")
	// Ensure ordering: item-1 is older and dispatched first.
	first.ScheduledAt = env.now.Add(-2 * time.Minute)
	second.ScheduledAt = env.now.Add(-time.Minute)
	env.chat.panicMsg = "nil map write"

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "panic: nil map write")

	assert.Equal(t, model.StatusFailed, env.queue.items["item-1"].Status)
	assert.Equal(t, model.StatusSent, env.queue.items["item-2"].Status)
}

func TestBatchRespectsMaxBatchSizeAndOrdering(t *testing.T) {
	env := newTestEnv()
	newest := env.addItem("item-new", "step-1")
	oldest := env.addItem("item-old", "step-1")
	newest.ScheduledAt = env.now.Add(-time.Minute)
	oldest.ScheduledAt = env.now.Add(-time.Hour)

	res, err := env.proc.RunOnce(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	// Oldest due work first.
	assert.Equal(t, model.StatusSent, env.queue.items["item-old"].Status)
	assert.Equal(t, model.StatusPending, env.queue.items["item-new"].Status)
}

func TestFutureItemsAreNotFetched(t *testing.T) {
	env := newTestEnv()
	item := env.addItem("item-1", "step-1")
	item.ScheduledAt = env.now.Add(time.Hour)
	item.NextAttemptAt = item.ScheduledAt

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
}

func TestUnsupportedChannelSkips(t *testing.T) {
	env := newTestEnv()
	env.flows.steps["step-sms"] = &model.Step{ID: "step-sms", FlowID: "flow-1", Channel: "sms", TemplateID: "tpl-1"}
	env.addItem("item-1", "step-sms")

	res, err := env.proc.RunOnce(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Contains(t, env.queue.items["item-1"].LastError, "unsupported channel")
}
