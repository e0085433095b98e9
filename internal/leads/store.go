package leads

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/wolfman30/leadtriage/internal/extract"
	"github.com/wolfman30/leadtriage/internal/kvstore"
	"github.com/wolfman30/leadtriage/internal/observability/metrics"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

// StorageKey is the kv key holding the full lead record set.
const StorageKey = "leads"

// HistoryObserver receives every history entry after it is applied.
type HistoryObserver interface {
	RecordHistory(ctx context.Context, leadID string, entry HistoryEntry) error
}

// Store is the authoritative in-memory lead set, written through to the kv
// store on every mutation. A failed write marks the store degraded; the data
// stays in memory until Flush succeeds.
type Store struct {
	mu       sync.RWMutex
	kv       kvstore.Store
	logger   *logging.Logger
	metrics  *metrics.TriageMetrics
	observer HistoryObserver
	now      func() time.Time
	entropy  io.Reader

	leads    map[string]*Lead
	order    []string
	degraded bool
}

func NewStore(kv kvstore.Store, logger *logging.Logger) *Store {
	if kv == nil {
		panic("leads: kv store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		kv:      kv,
		logger:  logger.Component("leads"),
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
		leads:   make(map[string]*Lead),
	}
}

// WithMetrics attaches Prometheus observers.
func (s *Store) WithMetrics(m *metrics.TriageMetrics) *Store {
	s.metrics = m
	return s
}

// WithHistoryObserver mirrors history entries to an audit sink.
func (s *Store) WithHistoryObserver(o HistoryObserver) *Store {
	s.observer = o
	return s
}

// Load replaces the in-memory set with the persisted records.
func (s *Store) Load(ctx context.Context) error {
	var records []Lead
	if _, err := s.kv.Load(ctx, StorageKey, &records); err != nil {
		return fmt.Errorf("leads: load: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(records)
	return nil
}

// Restore seeds an empty store from a backup snapshot and persists it.
// It returns ErrNotEmpty when leads are already present.
func (s *Store) Restore(ctx context.Context, records []Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) > 0 {
		return ErrNotEmpty
	}
	s.replaceLocked(records)
	s.persistLocked(ctx)
	s.logger.Info("lead store restored", "leads", len(s.order))
	return nil
}

// Len returns the number of stored leads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) replaceLocked(records []Lead) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	s.leads = make(map[string]*Lead, len(records))
	s.order = s.order[:0]
	for i := range records {
		rec := records[i]
		if rec.ID == "" {
			continue
		}
		if _, dup := s.leads[rec.ID]; dup {
			continue
		}
		s.leads[rec.ID] = &rec
		s.order = append(s.order, rec.ID)
	}
}

// Create stores a new lead with status New and a single Created history entry.
func (s *Store) Create(ctx context.Context, in NewLead) (Lead, error) {
	if strings.TrimSpace(in.ConversationID) == "" {
		return Lead{}, ErrMissingConversation
	}

	s.mu.Lock()
	now := s.now().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
	priority := PriorityFor(in.Fields.Amount, in.Fields.Urgency)
	entry := HistoryEntry{
		ID:        uuid.NewString(),
		Action:    ActionCreated,
		Timestamp: now,
		Detail: map[string]string{
			"priority": string(priority),
			"source":   in.SourceDescription,
		},
	}
	lead := &Lead{
		ID:                id,
		ConversationID:    in.ConversationID,
		SourceDescription: in.SourceDescription,
		SenderLabel:       in.SenderLabel,
		RawMessage:        in.RawMessage,
		PriorityCategory:  priority,
		Status:            StatusNew,
		Identifiers:       in.Fields.Identifiers(),
		Fields:            in.Fields,
		CreatedAt:         now,
		UpdatedAt:         now,
		History:           []HistoryEntry{entry},
	}
	s.leads[id] = lead
	s.order = append(s.order, id)
	out := lead.clone()
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(ctx, id, entry)
	s.logger.Info("lead created", "lead_id", id, "conversation_id", in.ConversationID, "priority", priority)
	return out, nil
}

// Update merges patch into the lead and appends one history entry. An unknown
// id fails with ErrLeadNotFound and leaves the store untouched.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (Lead, error) {
	if patch.isEmpty() {
		return Lead{}, ErrEmptyPatch
	}
	if patch.Status != nil {
		status, err := ParseStatus(string(*patch.Status))
		if err != nil {
			return Lead{}, err
		}
		patch.Status = &status
	}

	s.mu.Lock()
	lead, ok := s.leads[id]
	if !ok {
		s.mu.Unlock()
		return Lead{}, ErrLeadNotFound
	}

	now := s.now().UTC()
	detail := map[string]string{}
	for k, v := range patch.Detail {
		detail[k] = v
	}
	if patch.Status != nil && *patch.Status != lead.Status {
		detail["status"] = string(lead.Status) + "->" + string(*patch.Status)
		lead.Status = *patch.Status
	}
	if patch.Assignee != nil && *patch.Assignee != lead.Assignee {
		detail["assignee"] = *patch.Assignee
		lead.Assignee = *patch.Assignee
	}
	if patch.Identifiers != nil {
		if merged, added := lead.Identifiers.Merge(*patch.Identifiers); added {
			detail["identifiers"] = strings.Join(newKeys(lead.Identifiers, merged), ",")
			lead.Identifiers = merged
		}
	}
	if patch.Note != "" {
		detail["note"] = patch.Note
	}

	action := patch.Action
	if action == "" {
		action = ActionUpdated
	}
	entry := HistoryEntry{ID: uuid.NewString(), Action: action, Timestamp: now, Detail: detail}
	lead.History = append(lead.History, entry)
	lead.UpdatedAt = now
	out := lead.clone()
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(ctx, id, entry)
	return out, nil
}

// Get returns a copy of the lead.
func (s *Store) Get(id string) (Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[id]
	if !ok {
		return Lead{}, ErrLeadNotFound
	}
	return lead.clone(), nil
}

// List returns matching leads, newest first.
func (s *Store) List(f Filter) []Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Lead, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		lead := s.leads[s.order[i]]
		if !f.matches(lead) {
			continue
		}
		out = append(out, lead.clone())
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// All returns every lead in creation order.
func (s *Store) All() []Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Lead, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.leads[id].clone())
	}
	return out
}

// Stats aggregates counts. ConversionRate is closed/total*100 and 0 for an empty store.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Stats{
		ByStatus:   map[Status]int{StatusNew: 0, StatusInProgress: 0, StatusClosed: 0, StatusLost: 0},
		ByPriority: map[Priority]int{PriorityHigh: 0, PriorityMedium: 0, PriorityLow: 0},
	}
	for _, lead := range s.leads {
		stats.Total++
		stats.ByStatus[lead.Status]++
		stats.ByPriority[lead.PriorityCategory]++
	}
	if stats.Total > 0 {
		stats.ConversionRate = float64(stats.ByStatus[StatusClosed]) / float64(stats.Total) * 100
	}
	return stats
}

// Flush re-saves the full set. Used by the maintenance loop to clear degraded mode.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Save(ctx, StorageKey, s.snapshotLocked()); err != nil {
		s.setDegradedLocked(true)
		return fmt.Errorf("leads: flush: %w", err)
	}
	if s.degraded {
		s.logger.Info("lead store reconciled")
	}
	s.setDegradedLocked(false)
	return nil
}

// Degraded reports whether the last save failed.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

func (s *Store) persistLocked(ctx context.Context) {
	if err := s.kv.Save(ctx, StorageKey, s.snapshotLocked()); err != nil {
		s.logger.Warn("lead store save failed, running degraded", "error", err)
		s.setDegradedLocked(true)
		return
	}
	s.setDegradedLocked(false)
}

func (s *Store) setDegradedLocked(v bool) {
	s.degraded = v
	s.metrics.SetStoreDegraded(v)
}

func (s *Store) snapshotLocked() []Lead {
	out := make([]Lead, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.leads[id])
	}
	return out
}

func (s *Store) notify(ctx context.Context, leadID string, entry HistoryEntry) {
	if s.observer == nil {
		return
	}
	if err := s.observer.RecordHistory(ctx, leadID, entry); err != nil {
		s.logger.Warn("history observer failed", "lead_id", leadID, "error", err)
	}
}

func newKeys(before, after extract.Identifiers) []string {
	seen := make(map[string]bool)
	for _, k := range before.Keys() {
		seen[k] = true
	}
	var out []string
	for _, k := range after.Keys() {
		if !seen[k] {
			out = append(out, k)
		}
	}
	return out
}
