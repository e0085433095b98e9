// Package triage owns the per-batch data flow: dedup of redelivered events,
// quick and remote classification, lead tracking, and the side effects that
// follow a decision.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/leadtriage/internal/classify"
	"github.com/wolfman30/leadtriage/internal/events"
	"github.com/wolfman30/leadtriage/internal/leads"
	"github.com/wolfman30/leadtriage/internal/messaging"
	"github.com/wolfman30/leadtriage/internal/observability/metrics"
	"github.com/wolfman30/leadtriage/internal/throttle"
	"github.com/wolfman30/leadtriage/internal/tracker"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

// DefaultClassifyConcurrency bounds concurrent remote classification calls.
const DefaultClassifyConcurrency = 4

// ErrBatchDropped is returned when a batch arrives while another is still
// being processed. The batch is logged and discarded, never queued.
var ErrBatchDropped = errors.New("triage: batch dropped, previous batch still in progress")

// ErrStartupLoad is returned by Load when persisted state cannot be read.
var ErrStartupLoad = errors.New("triage: persisted state unreadable at startup")

// Event is one inbound chat message.
type Event = messaging.Inbound

// Classifier refines a quick verdict. It must never fail; errors fall back
// to the quick result.
type Classifier interface {
	ClassifyWithFallback(ctx context.Context, text string, quick classify.Result) classify.Result
}

// Sender delivers automated replies.
type Sender interface {
	Send(ctx context.Context, kind, conversationID, text string) error
}

// Notifier alerts operators about lead changes.
type Notifier interface {
	NotifyNewLead(ctx context.Context, lead leads.Lead) error
	NotifyStatusChange(ctx context.Context, lead leads.Lead) error
}

// Deps are the engine's collaborators. Store, Tracker and Throttle are
// required; the rest may be nil and are then skipped.
type Deps struct {
	Store      *leads.Store
	Tracker    *tracker.Tracker
	Throttle   *throttle.Throttle
	Classifier Classifier
	Sender     Sender
	Notifier   Notifier
	Publisher  events.Publisher
	Processed  events.ProcessedStore
}

// Engine processes message batches one at a time.
type Engine struct {
	batchMu sync.Mutex
	// stateMu serialises tracker mutation between batches and admin updates.
	stateMu sync.Mutex

	store      *leads.Store
	tracker    *tracker.Tracker
	throttle   *throttle.Throttle
	classifier Classifier
	sender     Sender
	notifier   Notifier
	publisher  events.Publisher
	processed  events.ProcessedStore

	concurrency int
	metrics     *metrics.TriageMetrics
	logger      *logging.Logger
	tracer      trace.Tracer
}

func New(deps Deps, logger *logging.Logger) *Engine {
	if deps.Store == nil {
		panic("triage: lead store required")
	}
	if deps.Tracker == nil {
		panic("triage: tracker required")
	}
	if deps.Throttle == nil {
		panic("triage: throttle required")
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:       deps.Store,
		tracker:     deps.Tracker,
		throttle:    deps.Throttle,
		classifier:  deps.Classifier,
		sender:      deps.Sender,
		notifier:    deps.Notifier,
		publisher:   deps.Publisher,
		processed:   deps.Processed,
		concurrency: DefaultClassifyConcurrency,
		logger:      logger.Component("triage"),
		tracer:      otel.Tracer("leadtriage.internal.triage"),
	}
}

func (e *Engine) WithMetrics(m *metrics.TriageMetrics) *Engine {
	e.metrics = m
	return e
}

func (e *Engine) WithConcurrency(n int) *Engine {
	if n > 0 {
		e.concurrency = n
	}
	return e
}

// Load restores persisted leads and throttle state and rebuilds the
// identifier index from the lead records. Unlike runtime saves, a failed load
// is returned: the first save after starting empty would replace the
// persisted record set.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.store.Load(ctx); err != nil {
		e.logger.Error("lead records unreadable; refusing to start with an empty store", "error", err)
		return fmt.Errorf("%w: %w", ErrStartupLoad, err)
	}
	if err := e.throttle.Load(ctx); err != nil {
		e.logger.Error("throttle state unreadable; refusing to start with empty counters", "error", err)
		return fmt.Errorf("%w: throttle state: %w", ErrStartupLoad, err)
	}
	e.stateMu.Lock()
	e.tracker.Rebuild(e.store.All())
	e.stateMu.Unlock()
	return nil
}

// Restore seeds an empty store from backup records and rebuilds the index.
func (e *Engine) Restore(ctx context.Context, records []leads.Lead) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if err := e.store.Restore(ctx, records); err != nil {
		return err
	}
	e.tracker.Rebuild(e.store.All())
	return nil
}

// HandleBatch processes batch to completion. Only one batch runs at a time;
// an overlapping call returns ErrBatchDropped without touching any state.
// Per-message failures are logged and do not stop the batch.
func (e *Engine) HandleBatch(ctx context.Context, batch []Event) error {
	if !e.batchMu.TryLock() {
		e.logger.Warn("batch dropped: previous batch still in progress", "size", len(batch))
		e.metrics.ObserveBatch("dropped")
		return ErrBatchDropped
	}
	defer e.batchMu.Unlock()

	batchID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "triage.handle_batch", trace.WithAttributes(
		attribute.String("batch.id", batchID),
		attribute.Int("batch.size", len(batch)),
	))
	defer span.End()

	pending := e.admit(ctx, batch)
	results := e.classifyAll(ctx, pending)

	failed := 0
	for i, evt := range pending {
		if err := e.process(ctx, evt, results[i]); err != nil {
			failed++
			span.RecordError(err)
			e.logger.Error("message processing failed", "batch_id", batchID, "message_id", evt.ID,
				"conversation_id", evt.ConversationID, "error", err)
		}
	}

	e.metrics.ObserveBatch("processed")
	e.logger.Debug("batch processed", "batch_id", batchID, "received", len(batch), "processed", len(pending), "failed", failed)
	return nil
}

// admit counts every inbound message and drops empty or already processed ones.
func (e *Engine) admit(ctx context.Context, batch []Event) []Event {
	out := make([]Event, 0, len(batch))
	for _, evt := range batch {
		e.throttle.RecordMessage(ctx)
		if strings.TrimSpace(evt.Text) == "" {
			e.metrics.ObserveMessage("empty")
			continue
		}
		if e.processed != nil && evt.ID != "" {
			fresh, err := e.processed.MarkProcessed(ctx, evt.ID)
			if err != nil {
				e.logger.Warn("processed marker unavailable, processing anyway", "message_id", evt.ID, "error", err)
			} else if !fresh {
				e.metrics.ObserveMessage("duplicate")
				e.logger.Debug("skipping redelivered message", "message_id", evt.ID)
				continue
			}
		}
		out = append(out, evt)
	}
	return out
}

// classifyAll runs the quick check for every message and the remote adapter
// concurrently across conversations. Messages of one conversation stay in
// arrival order within a single goroutine.
func (e *Engine) classifyAll(ctx context.Context, pending []Event) []classify.Result {
	results := make([]classify.Result, len(pending))
	byConversation := make(map[string][]int)
	var order []string
	for i, evt := range pending {
		results[i] = classify.QuickCheck(evt.Text)
		if _, seen := byConversation[evt.ConversationID]; !seen {
			order = append(order, evt.ConversationID)
		}
		byConversation[evt.ConversationID] = append(byConversation[evt.ConversationID], i)
	}
	if e.classifier == nil {
		return results
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, conv := range order {
		idxs := byConversation[conv]
		g.Go(func() error {
			for _, i := range idxs {
				results[i] = e.classifier.ClassifyWithFallback(ctx, pending[i].Text, results[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) process(ctx context.Context, evt Event, res classify.Result) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	decision := e.tracker.Evaluate(ctx, tracker.Message{
		ConversationID: evt.ConversationID,
		Text:           evt.Text,
		Result:         res,
	})
	e.metrics.ObserveMessage(string(decision.Outcome))

	switch decision.Outcome {
	case tracker.OutcomeNewLead:
		return e.createLead(ctx, evt, decision.Result)
	case tracker.OutcomeFollowUp:
		e.followUp(ctx, evt, decision)
	case tracker.OutcomeRelated:
		e.logger.Debug("related message ignored", "conversation_id", evt.ConversationID, "similarity", decision.Similarity)
	case tracker.OutcomeUnrelated:
		if messaging.IsGreeting(evt.Text) {
			e.greet(ctx, evt)
		}
	}
	return nil
}

func (e *Engine) createLead(ctx context.Context, evt Event, res classify.Result) error {
	lead, err := e.store.Create(ctx, leads.NewLead{
		ConversationID:    evt.ConversationID,
		SourceDescription: evt.SourceDescription(),
		SenderLabel:       evt.SenderLabel(),
		RawMessage:        evt.Text,
		Fields:            res.Fields,
	})
	if err != nil {
		return fmt.Errorf("triage: create lead: %w", err)
	}
	e.tracker.Register(lead)
	e.logger.Info("new lead detected", "lead_id", lead.ID, "conversation_id", evt.ConversationID,
		"priority", lead.PriorityCategory, "source", res.Source, "confidence", res.Confidence)

	if e.notifier != nil {
		if err := e.notifier.NotifyNewLead(ctx, lead); err != nil {
			e.logger.Warn("new lead notification failed", "lead_id", lead.ID, "error", err)
		}
	}
	e.publish(ctx, events.TypeLeadCreated, evt, lead, false)
	e.acknowledge(ctx, evt, lead)
	return nil
}

func (e *Engine) followUp(ctx context.Context, evt Event, decision tracker.Decision) {
	if decision.Lead == nil {
		return
	}
	lead := *decision.Lead
	e.logger.Info("follow-up on tracked lead", "lead_id", lead.ID, "conversation_id", evt.ConversationID,
		"status", lead.Status, "ambiguous", decision.Ambiguous)
	if e.notifier != nil {
		if err := e.notifier.NotifyStatusChange(ctx, lead); err != nil {
			e.logger.Warn("status notification failed", "lead_id", lead.ID, "error", err)
		}
	}
	e.publish(ctx, events.TypeLeadFollowUp, evt, lead, decision.Ambiguous)
}

// acknowledge replies once per lead: the claim is taken before sending so a
// concurrent handler never doubles the reply, and the cooldown gates the rest.
func (e *Engine) acknowledge(ctx context.Context, evt Event, lead leads.Lead) {
	if e.sender == nil {
		return
	}
	if !e.tracker.ClaimForReply(lead.ID, evt.ConversationID) {
		e.logger.Debug("lead already claimed, no acknowledgement", "lead_id", lead.ID)
		return
	}
	if !e.throttle.MayRespond(evt.ConversationID, throttle.KindAcknowledgement) {
		e.logger.Debug("acknowledgement throttled", "conversation_id", evt.ConversationID)
		return
	}
	text, err := messaging.AckMessage(messaging.AckData{
		SenderName: evt.SenderName,
		LeadID:     lead.ID,
		Name:       lead.Fields.Name,
		Priority:   string(lead.PriorityCategory),
	})
	if err != nil {
		e.logger.Error("render acknowledgement failed", "lead_id", lead.ID, "error", err)
		return
	}
	if err := e.sender.Send(ctx, string(throttle.KindAcknowledgement), evt.ConversationID, text); err != nil {
		e.logger.Warn("acknowledgement dropped", "lead_id", lead.ID, "error", err)
		return
	}
	e.throttle.RecordResponse(ctx, evt.ConversationID, throttle.KindAcknowledgement)
}

func (e *Engine) greet(ctx context.Context, evt Event) {
	if e.sender == nil || !e.throttle.MayRespond(evt.ConversationID, throttle.KindGreeting) {
		return
	}
	if err := e.sender.Send(ctx, string(throttle.KindGreeting), evt.ConversationID, messaging.GreetingReply()); err != nil {
		e.logger.Warn("greeting dropped", "conversation_id", evt.ConversationID, "error", err)
		return
	}
	e.throttle.RecordResponse(ctx, evt.ConversationID, throttle.KindGreeting)
}

func (e *Engine) publish(ctx context.Context, eventType string, evt Event, lead leads.Lead, ambiguous bool) {
	ids := make(map[string]string)
	for _, key := range lead.Identifiers.Keys() {
		if ns, value, ok := strings.Cut(key, ":"); ok {
			ids[ns] = value
		}
	}
	err := e.publisher.Publish(ctx, events.LeadEventV1{
		EventID:        uuid.NewString(),
		Type:           eventType,
		LeadID:         lead.ID,
		ConversationID: evt.ConversationID,
		SourceMessage:  evt.ID,
		Status:         string(lead.Status),
		Priority:       string(lead.PriorityCategory),
		Identifiers:    ids,
		Amount:         lead.Fields.Amount,
		Ambiguous:      ambiguous,
		OccurredAt:     time.Now().UTC(),
	})
	if err != nil {
		e.logger.Warn("lead event not published", "lead_id", lead.ID, "type", eventType, "error", err)
	}
}

// ListLeads returns leads matching f, newest first.
func (e *Engine) ListLeads(f leads.Filter) []leads.Lead {
	return e.store.List(f)
}

// LeadStats aggregates lead counts plus today's inbound message count.
func (e *Engine) LeadStats() leads.Stats {
	stats := e.store.Stats()
	stats.MessagesToday = e.throttle.MessagesToday()
	return stats
}

func (e *Engine) GetLead(id string) (leads.Lead, error) {
	return e.store.Get(id)
}

// UpdateLead applies an operator patch. It waits for any in-flight message
// so the identifier index never sees a half-applied batch.
func (e *Engine) UpdateLead(ctx context.Context, id string, patch leads.Patch) (leads.Lead, error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	before, err := e.store.Get(id)
	if err != nil {
		return leads.Lead{}, err
	}
	updated, err := e.store.Update(ctx, id, patch)
	if err != nil {
		return leads.Lead{}, err
	}
	if patch.Identifiers != nil {
		e.tracker.Reindex(updated)
	}
	if updated.Status != before.Status && e.notifier != nil {
		if err := e.notifier.NotifyStatusChange(ctx, updated); err != nil {
			e.logger.Warn("status notification failed", "lead_id", id, "error", err)
		}
	}
	return updated, nil
}

// Flush retries persistence when the lead store is degraded.
func (e *Engine) Flush(ctx context.Context) error {
	if !e.store.Degraded() {
		return nil
	}
	return e.store.Flush(ctx)
}

// Degraded reports whether lead persistence is currently failing.
func (e *Engine) Degraded() bool {
	return e.store.Degraded()
}

// Snapshot returns every lead for backups.
func (e *Engine) Snapshot() []leads.Lead {
	return e.store.All()
}

// PruneClaims drops expired handler claims.
func (e *Engine) PruneClaims() int {
	return e.tracker.Claims().Prune()
}

var _ leads.Service = (*Engine)(nil)
