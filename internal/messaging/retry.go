package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/leadtriage/internal/observability/metrics"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

const (
	DefaultSendRetries    = 2
	DefaultSendRetryDelay = 2 * time.Second
)

// RetryConfig bounds outbound retries.
type RetryConfig struct {
	MaxRetries int
	Delay      time.Duration
}

// RetrySender retries failed sends with a fixed delay, then gives up with
// ErrSendFailed. Delivery is best-effort.
type RetrySender struct {
	transport Transport
	cfg       RetryConfig
	logger    *logging.Logger
	metrics   *metrics.TriageMetrics
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewRetrySender(transport Transport, cfg RetryConfig, logger *logging.Logger) *RetrySender {
	if transport == nil {
		panic("messaging: transport required")
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultSendRetryDelay
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RetrySender{
		transport: transport,
		cfg:       cfg,
		logger:    logger.Component("messaging"),
		sleep:     sleepCtx,
	}
}

// WithMetrics attaches Prometheus observers.
func (s *RetrySender) WithMetrics(m *metrics.TriageMetrics) *RetrySender {
	s.metrics = m
	return s
}

// Send delivers text, labelling metrics and logs with kind ("ack", "greeting", "alert").
func (s *RetrySender) Send(ctx context.Context, kind, conversationID, text string) error {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.cfg.Delay); err != nil {
				lastErr = err
				break
			}
		}
		err := s.transport.SendText(ctx, conversationID, text)
		if err == nil {
			s.metrics.ObserveOutbound(kind, "sent")
			return nil
		}
		lastErr = err
		s.logger.Warn("outbound send failed", "kind", kind, "conversation_id", conversationID, "attempt", attempt+1, "error", err)
	}

	s.metrics.ObserveOutbound(kind, "dropped")
	s.logger.Error("outbound message dropped", "kind", kind, "conversation_id", conversationID, "error", lastErr)
	return fmt.Errorf("%w: %v", ErrSendFailed, lastErr)
}

// SendText satisfies Transport so a RetrySender can stand in for its transport.
func (s *RetrySender) SendText(ctx context.Context, conversationID, text string) error {
	return s.Send(ctx, "text", conversationID, text)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
