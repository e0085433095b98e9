// Package throttle rate-limits automated replies per conversation.
package throttle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wolfman30/leadtriage/internal/kvstore"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

// Kind distinguishes the reply types that are throttled independently.
type Kind string

const (
	KindAcknowledgement Kind = "acknowledgement"
	KindGreeting        Kind = "greeting"
)

// Persistence keys.
const (
	KeyLastResponse   = "lastResponse"
	KeyLastGreeting   = "lastGreeting"
	KeyMessagesPerDay = "messagesPerDay"
)

const (
	DefaultAckCooldown      = 60 * time.Minute
	DefaultGreetingDailyCap = 2

	dayLayout       = "2006-01-02"
	messageDaysKept = 30
)

type Config struct {
	AckCooldown      time.Duration
	GreetingDailyCap int
	// Location defines the local calendar day for the greeting cap.
	Location *time.Location
}

type greetingDay struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Throttle tracks when each conversation last received an automated reply.
// State is written through to the kv store so cooldowns survive restarts.
type Throttle struct {
	mu     sync.Mutex
	store  kvstore.Store
	cfg    Config
	logger *logging.Logger
	now    func() time.Time

	lastResponse   map[string]time.Time
	lastGreeting   map[string]greetingDay
	messagesPerDay map[string]int
}

func New(store kvstore.Store, cfg Config, logger *logging.Logger) *Throttle {
	if store == nil {
		panic("throttle: store required")
	}
	if cfg.AckCooldown <= 0 {
		cfg.AckCooldown = DefaultAckCooldown
	}
	if cfg.GreetingDailyCap <= 0 {
		cfg.GreetingDailyCap = DefaultGreetingDailyCap
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Throttle{
		store:          store,
		cfg:            cfg,
		logger:         logger.Component("throttle"),
		now:            time.Now,
		lastResponse:   make(map[string]time.Time),
		lastGreeting:   make(map[string]greetingDay),
		messagesPerDay: make(map[string]int),
	}
}

// Load restores persisted state. Missing keys leave the defaults in place.
func (t *Throttle) Load(ctx context.Context) error {
	lastResponse := map[string]time.Time{}
	lastGreeting := map[string]greetingDay{}
	perDay := map[string]int{}

	if _, err := t.store.Load(ctx, KeyLastResponse, &lastResponse); err != nil {
		return err
	}
	if _, err := t.store.Load(ctx, KeyLastGreeting, &lastGreeting); err != nil {
		return err
	}
	if _, err := t.store.Load(ctx, KeyMessagesPerDay, &perDay); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastResponse = lastResponse
	t.lastGreeting = lastGreeting
	t.messagesPerDay = perDay
	return nil
}

// MayRespond reports whether a reply of kind may be sent to conversationID now.
func (t *Throttle) MayRespond(conversationID string, kind Kind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch kind {
	case KindAcknowledgement:
		last, ok := t.lastResponse[conversationID]
		if !ok {
			return true
		}
		return t.now().Sub(last) >= t.cfg.AckCooldown
	case KindGreeting:
		g, ok := t.lastGreeting[conversationID]
		if !ok || g.Day != t.today() {
			return true
		}
		return g.Count < t.cfg.GreetingDailyCap
	default:
		return false
	}
}

// RecordResponse notes that a reply of kind was sent. A persistence failure
// is logged and the in-memory state still applies.
func (t *Throttle) RecordResponse(ctx context.Context, conversationID string, kind Kind) {
	t.mu.Lock()
	var (
		key      string
		snapshot any
	)
	switch kind {
	case KindAcknowledgement:
		t.lastResponse[conversationID] = t.now()
		key, snapshot = KeyLastResponse, copyTimes(t.lastResponse)
	case KindGreeting:
		today := t.today()
		g := t.lastGreeting[conversationID]
		if g.Day != today {
			g = greetingDay{Day: today}
		}
		g.Count++
		t.lastGreeting[conversationID] = g
		key, snapshot = KeyLastGreeting, copyGreetings(t.lastGreeting)
	default:
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.persist(ctx, key, snapshot)
}

// RecordMessage counts an inbound message against the local day.
func (t *Throttle) RecordMessage(ctx context.Context) {
	t.mu.Lock()
	t.messagesPerDay[t.today()]++
	t.pruneDays()
	snapshot := make(map[string]int, len(t.messagesPerDay))
	for k, v := range t.messagesPerDay {
		snapshot[k] = v
	}
	t.mu.Unlock()

	t.persist(ctx, KeyMessagesPerDay, snapshot)
}

// MessagesToday returns the inbound message count for the local day.
func (t *Throttle) MessagesToday() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messagesPerDay[t.today()]
}

func (t *Throttle) persist(ctx context.Context, key string, value any) {
	if err := t.store.Save(ctx, key, value); err != nil {
		t.logger.Warn("throttle state not persisted, continuing in memory", "key", key, "error", err)
	}
}

func (t *Throttle) today() string {
	return t.now().In(t.cfg.Location).Format(dayLayout)
}

// pruneDays keeps only the most recent days of message counts. Caller holds mu.
func (t *Throttle) pruneDays() {
	if len(t.messagesPerDay) <= messageDaysKept {
		return
	}
	days := make([]string, 0, len(t.messagesPerDay))
	for d := range t.messagesPerDay {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days[:len(days)-messageDaysKept] {
		delete(t.messagesPerDay, d)
	}
}

func copyTimes(in map[string]time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyGreetings(in map[string]greetingDay) map[string]greetingDay {
	out := make(map[string]greetingDay, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
