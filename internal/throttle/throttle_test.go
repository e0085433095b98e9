package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leadtriage/internal/kvstore"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

type failingStore struct{}

func (failingStore) Load(context.Context, string, any) (bool, error) { return false, nil }
func (failingStore) Save(context.Context, string, any) error {
	return kvstore.ErrPersistence
}

func newTestThrottle(store kvstore.Store, now *time.Time) *Throttle {
	th := New(store, Config{Location: time.UTC}, logging.Discard())
	th.now = func() time.Time { return *now }
	return th
}

func TestAcknowledgementCooldown(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		since time.Duration
		want  bool
	}{
		{"30 minutes ago", 30 * time.Minute, false},
		{"61 minutes ago", 61 * time.Minute, true},
		{"exactly 60 minutes", 60 * time.Minute, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := now
			th := newTestThrottle(kvstore.NewMemoryStore(), &clock)
			assert.True(t, th.MayRespond("c1", KindAcknowledgement), "first send always allowed")

			th.RecordResponse(ctx, "c1", KindAcknowledgement)
			clock = now.Add(tt.since)
			assert.Equal(t, tt.want, th.MayRespond("c1", KindAcknowledgement))
			assert.True(t, th.MayRespond("c2", KindAcknowledgement))
		})
	}
}

func TestGreetingDailyCap(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	th := newTestThrottle(kvstore.NewMemoryStore(), &clock)

	require.True(t, th.MayRespond("g1", KindGreeting))
	th.RecordResponse(ctx, "g1", KindGreeting)
	require.True(t, th.MayRespond("g1", KindGreeting))
	th.RecordResponse(ctx, "g1", KindGreeting)
	assert.False(t, th.MayRespond("g1", KindGreeting))

	// greeting cap is independent of the acknowledgement cooldown
	assert.True(t, th.MayRespond("g1", KindAcknowledgement))

	clock = time.Date(2026, 5, 5, 0, 1, 0, 0, time.UTC)
	assert.True(t, th.MayRespond("g1", KindGreeting))
}

func TestGreetingDayUsesLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	clock := time.Date(2026, 5, 4, 17, 0, 0, 0, time.UTC) // 22:30 IST
	th := New(kvstore.NewMemoryStore(), Config{Location: ist}, logging.Discard())
	th.now = func() time.Time { return clock }

	th.RecordResponse(context.Background(), "g1", KindGreeting)
	th.RecordResponse(context.Background(), "g1", KindGreeting)
	require.False(t, th.MayRespond("g1", KindGreeting))

	clock = time.Date(2026, 5, 4, 19, 0, 0, 0, time.UTC) // 00:30 IST next day
	assert.True(t, th.MayRespond("g1", KindGreeting))
}

func TestStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	clock := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	th := newTestThrottle(store, &clock)
	th.RecordResponse(ctx, "c1", KindAcknowledgement)
	th.RecordMessage(ctx)
	th.RecordMessage(ctx)

	restarted := newTestThrottle(store, &clock)
	require.NoError(t, restarted.Load(ctx))
	clock = clock.Add(10 * time.Minute)
	assert.False(t, restarted.MayRespond("c1", KindAcknowledgement))
	assert.Equal(t, 2, restarted.MessagesToday())
}

func TestPersistenceFailureKeepsMemoryState(t *testing.T) {
	clock := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	th := newTestThrottle(failingStore{}, &clock)

	th.RecordResponse(context.Background(), "c1", KindAcknowledgement)
	assert.False(t, th.MayRespond("c1", KindAcknowledgement))
}

func TestLoadError(t *testing.T) {
	th := New(loadErrStore{}, Config{}, logging.Discard())
	assert.Error(t, th.Load(context.Background()))
}

type loadErrStore struct{ failingStore }

func (loadErrStore) Load(context.Context, string, any) (bool, error) {
	return false, errors.New("down")
}

func TestMessageDaysPruned(t *testing.T) {
	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	th := newTestThrottle(kvstore.NewMemoryStore(), &clock)
	for i := 0; i < messageDaysKept+5; i++ {
		th.RecordMessage(context.Background())
		clock = clock.Add(24 * time.Hour)
	}
	assert.Len(t, th.messagesPerDay, messageDaysKept)
}

func TestUnknownKindDenied(t *testing.T) {
	clock := time.Now()
	th := newTestThrottle(kvstore.NewMemoryStore(), &clock)
	assert.False(t, th.MayRespond("c1", Kind("other")))
}
