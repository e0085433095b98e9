package triage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leadtriage/internal/classify"
	"github.com/wolfman30/leadtriage/internal/events"
	"github.com/wolfman30/leadtriage/internal/extract"
	"github.com/wolfman30/leadtriage/internal/kvstore"
	"github.com/wolfman30/leadtriage/internal/leads"
	"github.com/wolfman30/leadtriage/internal/throttle"
	"github.com/wolfman30/leadtriage/internal/tracker"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

const (
	leadText   = "Name: Ramesh, Phone: 9876543210, Loan amount 150000, urgent"
	secondLead = "Sunita needs 3 lakh personal loan, call 9123456780"
)

type sent struct {
	kind, conv, text string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSender) Send(_ context.Context, kind, conv, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{kind, conv, text})
	return f.err
}

func (f *fakeSender) kinds(kind string) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, s := range f.sent {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type fakeNotifier struct {
	newLeads []leads.Lead
	statuses []leads.Lead
}

func (f *fakeNotifier) NotifyNewLead(_ context.Context, lead leads.Lead) error {
	f.newLeads = append(f.newLeads, lead)
	return nil
}

func (f *fakeNotifier) NotifyStatusChange(_ context.Context, lead leads.Lead) error {
	f.statuses = append(f.statuses, lead)
	return nil
}

type fakePublisher struct {
	events []events.LeadEventV1
}

func (f *fakePublisher) Publish(_ context.Context, evt events.LeadEventV1) error {
	f.events = append(f.events, evt)
	return nil
}

type countingClassifier struct {
	mu    sync.Mutex
	calls []string
}

func (c *countingClassifier) ClassifyWithFallback(_ context.Context, text string, quick classify.Result) classify.Result {
	c.mu.Lock()
	c.calls = append(c.calls, text)
	c.mu.Unlock()
	if !quick.IsLead || quick.Confidence >= 1 {
		return quick
	}
	quick.Source = classify.SourceRemote
	quick.Confidence = 0.95
	return quick
}

type harness struct {
	engine    *Engine
	store     *leads.Store
	sender    *fakeSender
	notifier  *fakeNotifier
	publisher *fakePublisher
}

func newHarness(t *testing.T, classifier Classifier) *harness {
	t.Helper()
	kv := kvstore.NewMemoryStore()
	logger := logging.Discard()
	store := leads.NewStore(kv, logger)
	h := &harness{
		store:     store,
		sender:    &fakeSender{},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}
	h.engine = New(Deps{
		Store:      store,
		Tracker:    tracker.New(store, tracker.NewClaims(time.Hour), logger),
		Throttle:   throttle.New(kv, throttle.Config{}, logger),
		Classifier: classifier,
		Sender:     h.sender,
		Notifier:   h.notifier,
		Publisher:  h.publisher,
		Processed:  events.NewMemoryProcessedStore(events.DefaultRetention),
	}, logger)
	require.NoError(t, h.engine.Load(context.Background()))
	return h
}

func event(id, conv, text string) Event {
	return Event{ID: id, ConversationID: conv, SenderName: "Anita", IsGroup: true, GroupName: "Sales Pune", Text: text, ReceivedAt: time.Now()}
}

func TestHandleBatch_NewLeadThenFollowUp(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.engine.HandleBatch(ctx, []Event{event("m1", "g1", leadText)}))

	all := h.store.All()
	require.Len(t, all, 1)
	lead := all[0]
	assert.Equal(t, leads.PriorityHigh, lead.PriorityCategory)
	assert.Equal(t, "group: Sales Pune", lead.SourceDescription)

	acks := h.sender.kinds("acknowledgement")
	require.Len(t, acks, 1)
	assert.Equal(t, "g1", acks[0].conv)
	assert.Contains(t, acks[0].text, lead.ID)
	require.Len(t, h.notifier.newLeads, 1)
	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, events.TypeLeadCreated, h.publisher.events[0].Type)
	assert.Equal(t, "9876543210", h.publisher.events[0].Identifiers["phone"])

	require.NoError(t, h.engine.HandleBatch(ctx, []Event{event("m2", "g2", "Update on 9876543210: loan approved")}))

	require.Len(t, h.store.All(), 1, "follow-up must not create a second lead")
	got, err := h.store.Get(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, leads.StatusClosed, got.Status)
	assert.Len(t, got.History, 2)
	assert.Len(t, h.sender.kinds("acknowledgement"), 1, "follow-ups are never acknowledged")
	require.Len(t, h.notifier.statuses, 1)
	assert.Equal(t, events.TypeLeadFollowUp, h.publisher.events[1].Type)
}

func TestHandleBatch_RedeliveredMessageSkipped(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	batch := []Event{event("m1", "g1", leadText)}

	require.NoError(t, h.engine.HandleBatch(ctx, batch))
	require.NoError(t, h.engine.HandleBatch(ctx, batch))

	all := h.store.All()
	require.Len(t, all, 1)
	assert.Len(t, all[0].History, 1)
	assert.Len(t, h.sender.sent, 1)
}

func TestHandleBatch_OverlappingBatchDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.batchMu.Lock()
	err := h.engine.HandleBatch(context.Background(), []Event{event("m1", "g1", leadText)})
	h.engine.batchMu.Unlock()

	assert.ErrorIs(t, err, ErrBatchDropped)
	assert.Empty(t, h.store.All())
	assert.Zero(t, h.engine.LeadStats().MessagesToday)
}

func TestHandleBatch_AcknowledgementCooldown(t *testing.T) {
	h := newHarness(t, nil)
	err := h.engine.HandleBatch(context.Background(), []Event{
		event("m1", "g1", leadText),
		event("m2", "g1", secondLead),
	})
	require.NoError(t, err)

	assert.Len(t, h.store.All(), 2)
	assert.Len(t, h.sender.kinds("acknowledgement"), 1)
	assert.Len(t, h.notifier.newLeads, 2)
}

func TestHandleBatch_SendFailureKeepsLead(t *testing.T) {
	h := newHarness(t, nil)
	h.sender.err = errors.New("transport down")

	err := h.engine.HandleBatch(context.Background(), []Event{
		event("m1", "g1", leadText),
		event("m2", "g1", secondLead),
	})
	require.NoError(t, err)

	assert.Len(t, h.store.All(), 2)
	assert.Len(t, h.sender.kinds("acknowledgement"), 2, "a failed send does not start the cooldown")
}

func TestHandleBatch_GreetingDailyCap(t *testing.T) {
	h := newHarness(t, nil)
	err := h.engine.HandleBatch(context.Background(), []Event{
		event("m1", "g1", "Good morning team"),
		event("m2", "g1", "good morning all"),
		event("m3", "g1", "Hello team"),
	})
	require.NoError(t, err)

	assert.Len(t, h.sender.kinds("greeting"), 2)
	assert.Empty(t, h.store.All())
	assert.Equal(t, 3, h.engine.LeadStats().MessagesToday)
}

func TestHandleBatch_ChatterIgnored(t *testing.T) {
	h := newHarness(t, nil)
	err := h.engine.HandleBatch(context.Background(), []Event{
		event("m1", "g1", "anyone up for lunch?"),
		event("m2", "g1", "   "),
	})
	require.NoError(t, err)

	assert.Empty(t, h.store.All())
	assert.Empty(t, h.sender.sent)
	assert.Empty(t, h.publisher.events)
}

func TestHandleBatch_RemoteClassifierConsulted(t *testing.T) {
	classifier := &countingClassifier{}
	h := newHarness(t, classifier)

	err := h.engine.HandleBatch(context.Background(), []Event{
		event("m1", "g1", leadText),
		event("m2", "g2", secondLead),
		event("m3", "g3", "see you tomorrow"),
	})
	require.NoError(t, err)

	assert.Len(t, classifier.calls, 3)
	assert.Len(t, h.store.All(), 2)
}

func TestUpdateLead_ReindexesAndNotifies(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.engine.HandleBatch(ctx, []Event{event("m1", "g1", leadText)}))
	lead := h.store.All()[0]

	status := leads.StatusInProgress
	opp := withOppID(lead, "99812")
	updated, err := h.engine.UpdateLead(ctx, lead.ID, leads.Patch{Status: &status, Identifiers: &opp})
	require.NoError(t, err)
	assert.Equal(t, leads.StatusInProgress, updated.Status)
	assert.Len(t, h.notifier.statuses, 1)

	require.NoError(t, h.engine.HandleBatch(ctx, []Event{event("m2", "g9", "opp id 99812 rejected by credit team")}))
	got, err := h.engine.GetLead(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, leads.StatusLost, got.Status)

	_, err = h.engine.UpdateLead(ctx, "missing", leads.Patch{Status: &status})
	assert.ErrorIs(t, err, leads.ErrLeadNotFound)
}

func TestLeadStatsAndList(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.engine.HandleBatch(context.Background(), []Event{
		event("m1", "g1", leadText),
		event("m2", "g2", secondLead),
	}))

	stats := h.engine.LeadStats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[leads.StatusNew])
	assert.Equal(t, 2, stats.MessagesToday)

	listed := h.engine.ListLeads(leads.Filter{ConversationID: "g2"})
	require.Len(t, listed, 1)
	assert.Equal(t, "9123456780", listed[0].Identifiers.Phone)
}

func TestRestoreRebuildsIndex(t *testing.T) {
	src := newHarness(t, nil)
	require.NoError(t, src.engine.HandleBatch(context.Background(), []Event{event("m1", "g1", leadText)}))

	h := newHarness(t, nil)
	require.NoError(t, h.engine.Restore(context.Background(), src.engine.Snapshot()))
	require.NoError(t, h.engine.HandleBatch(context.Background(), []Event{event("m2", "g1", "9876543210 docs pending")}))

	all := h.store.All()
	require.Len(t, all, 1)
	assert.Equal(t, leads.StatusInProgress, all[0].Status)
}

func TestNewPanicsWithoutCollaborators(t *testing.T) {
	assert.Panics(t, func() { New(Deps{}, nil) })
}

func withOppID(lead leads.Lead, opp string) extract.Identifiers {
	ids := lead.Identifiers
	ids.OppID = opp
	return ids
}

func TestHandleBatch_CourtesyNameGetsGreetingNotLead(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.engine.HandleBatch(context.Background(), []Event{event("m1", "g1", "Good morning Dr Mehta")}))

	assert.Empty(t, h.store.All())
	assert.Empty(t, h.sender.kinds("acknowledgement"))
	assert.Len(t, h.sender.kinds("greeting"), 1)
	assert.Empty(t, h.notifier.newLeads)
}

type unreadableKV struct {
	*kvstore.MemoryStore
}

func (unreadableKV) Load(context.Context, string, any) (bool, error) {
	return false, kvstore.ErrPersistence
}

func TestLoadFailsWhenPersistedStateUnreadable(t *testing.T) {
	kv := unreadableKV{kvstore.NewMemoryStore()}
	logger := logging.Discard()
	store := leads.NewStore(kv, logger)
	engine := New(Deps{
		Store:    store,
		Tracker:  tracker.New(store, nil, logger),
		Throttle: throttle.New(kv, throttle.Config{}, logger),
	}, logger)

	err := engine.Load(context.Background())
	assert.ErrorIs(t, err, ErrStartupLoad)
	assert.ErrorIs(t, err, kvstore.ErrPersistence)
	_, saved := kv.Raw(leads.StorageKey)
	assert.False(t, saved, "nothing is written over unreadable state")
}
