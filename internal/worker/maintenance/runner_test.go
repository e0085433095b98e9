package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wolfman30/leadtriage/internal/leads"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

type stubState struct {
	flushErr  error
	flushes   int
	pruned    int
	snapshots int
}

func (s *stubState) Flush(context.Context) error {
	s.flushes++
	return s.flushErr
}

func (s *stubState) PruneClaims() int {
	s.pruned++
	return 1
}

func (s *stubState) Snapshot() []leads.Lead {
	s.snapshots++
	return []leads.Lead{{ID: "01A"}}
}

type stubCache struct{ sweeps int }

func (c *stubCache) Sweep() int {
	c.sweeps++
	return 2
}

type stubMarkers struct {
	err    error
	prunes int
}

func (m *stubMarkers) Prune(context.Context) (int, error) {
	m.prunes++
	return 3, m.err
}

type stubBackup struct {
	enabled bool
	err     error
	taken   [][]leads.Lead
}

func (b *stubBackup) Enabled() bool { return b.enabled }

func (b *stubBackup) Snapshot(_ context.Context, records []leads.Lead) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.taken = append(b.taken, records)
	return "leads/snapshots/x.json", nil
}

func TestTick_RunsEveryStep(t *testing.T) {
	state := &stubState{flushErr: errors.New("kv down")}
	cache := &stubCache{}
	markers := &stubMarkers{err: errors.New("db down")}
	r := NewRunner(state, logging.Discard()).WithCache(cache).WithMarkers(markers)

	r.Tick(context.Background())

	if cache.sweeps != 1 || markers.prunes != 1 || state.pruned != 1 || state.flushes != 1 {
		t.Fatalf("expected every step once, got cache=%d markers=%d claims=%d flush=%d",
			cache.sweeps, markers.prunes, state.pruned, state.flushes)
	}
}

func TestTick_BackupInterval(t *testing.T) {
	state := &stubState{}
	backup := &stubBackup{enabled: true}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRunner(state, logging.Discard()).WithBackup(backup, time.Hour)
	r.now = func() time.Time { return now }

	r.Tick(context.Background())
	now = now.Add(30 * time.Minute)
	r.Tick(context.Background())
	if len(backup.taken) != 1 {
		t.Fatalf("expected one backup within the interval, got %d", len(backup.taken))
	}

	now = now.Add(31 * time.Minute)
	r.Tick(context.Background())
	if len(backup.taken) != 2 {
		t.Fatalf("expected second backup after the interval, got %d", len(backup.taken))
	}
}

func TestTick_FailedBackupRetriedNextTick(t *testing.T) {
	state := &stubState{}
	backup := &stubBackup{enabled: true, err: errors.New("access denied")}
	r := NewRunner(state, logging.Discard()).WithBackup(backup, time.Hour)

	r.Tick(context.Background())
	backup.err = nil
	r.Tick(context.Background())
	if len(backup.taken) != 1 {
		t.Fatalf("expected retry on next tick, got %d backups", len(backup.taken))
	}
}

func TestTick_DisabledBackupSkipped(t *testing.T) {
	state := &stubState{}
	r := NewRunner(state, logging.Discard()).WithBackup(&stubBackup{}, 0)
	r.Tick(context.Background())
	if state.snapshots != 0 {
		t.Fatalf("disabled backup should not snapshot, got %d", state.snapshots)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := NewRunner(&stubState{}, logging.Discard()).WithInterval(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
