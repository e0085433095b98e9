// Package maintenance runs the periodic housekeeping that sits beside batch
// processing: cache sweeps, processed-marker pruning, claim expiry, store
// reconciliation and S3 snapshots. None of it touches the identifier index.
package maintenance

import (
	"context"
	"time"

	"github.com/wolfman30/leadtriage/internal/leads"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

type cacheSweeper interface {
	Sweep() int
}

type markerPruner interface {
	Prune(ctx context.Context) (int, error)
}

type leadState interface {
	Flush(ctx context.Context) error
	PruneClaims() int
	Snapshot() []leads.Lead
}

type snapshotter interface {
	Enabled() bool
	Snapshot(ctx context.Context, records []leads.Lead) (string, error)
}

// Runner ticks every interval and snapshots leads every backupInterval.
type Runner struct {
	state   leadState
	cache   cacheSweeper
	markers markerPruner
	backup  snapshotter
	logger  *logging.Logger

	interval       time.Duration
	backupInterval time.Duration
	lastBackup     time.Time
	now            func() time.Time
}

func NewRunner(state leadState, logger *logging.Logger) *Runner {
	if state == nil {
		panic("maintenance: lead state required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		state:          state,
		logger:         logger.Component("maintenance"),
		interval:       time.Minute,
		backupInterval: 6 * time.Hour,
		now:            time.Now,
	}
}

func (r *Runner) WithCache(c cacheSweeper) *Runner {
	r.cache = c
	return r
}

func (r *Runner) WithMarkers(m markerPruner) *Runner {
	r.markers = m
	return r
}

func (r *Runner) WithBackup(b snapshotter, every time.Duration) *Runner {
	r.backup = b
	if every > 0 {
		r.backupInterval = every
	}
	return r
}

func (r *Runner) WithInterval(d time.Duration) *Runner {
	if d > 0 {
		r.interval = d
	}
	return r
}

func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one maintenance pass. Each step is independent; a failure is
// logged and the remaining steps still run.
func (r *Runner) Tick(ctx context.Context) {
	if r.cache != nil {
		if n := r.cache.Sweep(); n > 0 {
			r.logger.Debug("classification cache swept", "removed", n)
		}
	}
	if r.markers != nil {
		n, err := r.markers.Prune(ctx)
		if err != nil {
			r.logger.Warn("processed marker prune failed", "error", err)
		} else if n > 0 {
			r.logger.Debug("processed markers pruned", "removed", n)
		}
	}
	if n := r.state.PruneClaims(); n > 0 {
		r.logger.Debug("expired handler claims pruned", "removed", n)
	}
	if err := r.state.Flush(ctx); err != nil {
		r.logger.Warn("lead store still degraded", "error", err)
	}
	r.maybeBackup(ctx)
}

func (r *Runner) maybeBackup(ctx context.Context) {
	if r.backup == nil || !r.backup.Enabled() {
		return
	}
	now := r.now()
	if !r.lastBackup.IsZero() && now.Sub(r.lastBackup) < r.backupInterval {
		return
	}
	if _, err := r.backup.Snapshot(ctx, r.state.Snapshot()); err != nil {
		r.logger.Error("lead backup failed", "error", err)
		return
	}
	r.lastBackup = now
}
