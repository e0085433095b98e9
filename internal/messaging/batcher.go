package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/leadtriage/pkg/logging"
)

const (
	DefaultFlushInterval = 2 * time.Second
	DefaultMaxBatch      = 50
)

// BatchHandler processes one batch to completion.
type BatchHandler func(ctx context.Context, batch []Inbound) error

// Batcher groups inbound messages and hands them to a handler one batch at a
// time, on a fixed interval or as soon as MaxBatch messages are pending.
type Batcher struct {
	handler  BatchHandler
	interval time.Duration
	maxBatch int
	logger   *logging.Logger

	mu      sync.Mutex
	pending []Inbound
	closed  bool
	full    chan struct{}
}

func NewBatcher(handler BatchHandler, interval time.Duration, maxBatch int, logger *logging.Logger) *Batcher {
	if handler == nil {
		panic("messaging: batch handler required")
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Batcher{
		handler:  handler,
		interval: interval,
		maxBatch: maxBatch,
		logger:   logger.Component("batcher"),
		full:     make(chan struct{}, 1),
	}
}

// Add queues msg for the next batch.
func (b *Batcher) Add(msg Inbound) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBatcherClosed
	}
	b.pending = append(b.pending, msg)
	if len(b.pending) >= b.maxBatch {
		select {
		case b.full <- struct{}{}:
		default:
		}
	}
	return nil
}

// Pending returns the number of queued messages.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Run flushes until ctx is cancelled, then flushes whatever is left and
// rejects further Adds.
func (b *Batcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.closed = true
			b.mu.Unlock()
			b.Flush(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			b.Flush(ctx)
		case <-b.full:
			b.Flush(ctx)
		}
	}
}

// Flush hands every pending message to the handler as one batch.
func (b *Batcher) Flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if err := b.handler(ctx, batch); err != nil {
		b.logger.Warn("batch handler failed", "size", len(batch), "error", err)
	}
}
