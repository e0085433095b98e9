package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/leadtriage/internal/observability/metrics"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

var classifyTracer = otel.Tracer("leadtriage.internal.classify")

// AdapterConfig bounds every remote classification call.
type AdapterConfig struct {
	Provider   string
	Model      string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	MaxTokens  int32
}

func (c AdapterConfig) withDefaults() AdapterConfig {
	if c.Provider == "" {
		c.Provider = "remote"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 512
	}
	return c
}

// Adapter calls a remote LLM backend, validates its reply and caches
// successful verdicts. A nil *Adapter behaves as an always-unavailable backend.
type Adapter struct {
	client  LLMClient
	cache   Cache
	cfg     AdapterConfig
	logger  *logging.Logger
	metrics *metrics.TriageMetrics
	system  string
}

func NewAdapter(client LLMClient, cache Cache, cfg AdapterConfig, logger *logging.Logger) *Adapter {
	if client == nil {
		panic("classify: llm client required")
	}
	if cache == nil {
		cache = NewMemoryCache(DefaultCacheTTL)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Adapter{
		client: client,
		cache:  cache,
		cfg:    cfg.withDefaults(),
		logger: logger.Component("classify"),
		system: instructions(),
	}
}

// WithMetrics attaches Prometheus observers.
func (a *Adapter) WithMetrics(m *metrics.TriageMetrics) *Adapter {
	if a != nil {
		a.metrics = m
	}
	return a
}

// Classify returns the remote verdict for text or an error wrapping
// ErrClassificationUnavailable.
func (a *Adapter) Classify(ctx context.Context, text string) (Result, error) {
	if a == nil {
		return Result{}, fmt.Errorf("%w: no remote backend configured", ErrClassificationUnavailable)
	}
	key := CacheKey(text)
	if key == "" {
		return Result{}, fmt.Errorf("%w: %v", ErrClassificationUnavailable, ErrEmptyText)
	}

	ctx, span := classifyTracer.Start(ctx, "classify.remote")
	defer span.End()
	span.SetAttributes(attribute.String("leadtriage.classifier.provider", a.cfg.Provider))

	if cached, ok, err := a.cache.Get(ctx, key); err != nil {
		a.logger.Warn("classification cache lookup failed", "error", err)
	} else if ok {
		a.metrics.ObserveCacheLookup(true)
		span.SetAttributes(attribute.Bool("leadtriage.classifier.cache_hit", true))
		cached.Source = SourceCache
		return cached, nil
	}
	a.metrics.ObserveCacheLookup(false)

	var lastErr error
	for attempt := 0; attempt <= a.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, a.cfg.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}

		res, err := a.attempt(ctx, text)
		if err == nil {
			if cacheErr := a.cache.Set(ctx, key, res); cacheErr != nil {
				a.logger.Warn("classification cache store failed", "error", cacheErr)
			}
			span.SetAttributes(attribute.Int("leadtriage.classifier.attempts", attempt+1))
			return res, nil
		}
		lastErr = err
		a.logger.Debug("remote classification attempt failed", "attempt", attempt+1, "error", err)
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "classification unavailable")
	if errors.Is(lastErr, ErrClassificationUnavailable) {
		return Result{}, lastErr
	}
	return Result{}, fmt.Errorf("%w: %v", ErrClassificationUnavailable, lastErr)
}

func (a *Adapter) attempt(ctx context.Context, text string) (Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := a.client.Complete(callCtx, Request{
		Model:     a.cfg.Model,
		System:    a.system,
		Text:      text,
		MaxTokens: a.cfg.MaxTokens,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		a.metrics.ObserveClassification(a.cfg.Provider, "error", elapsed)
		return Result{}, err
	}

	res, err := parseRemote(resp.Text)
	if err != nil {
		a.metrics.ObserveClassification(a.cfg.Provider, "invalid", elapsed)
		return Result{}, err
	}
	a.metrics.ObserveClassification(a.cfg.Provider, "ok", elapsed)
	return res, nil
}

// ClassifyWithFallback refines a quick verdict remotely. It never fails:
// messages the quick check rejects, or already scores at full confidence,
// are returned as-is, and any remote error yields the quick verdict.
func (a *Adapter) ClassifyWithFallback(ctx context.Context, text string, quick Result) Result {
	if a == nil || !quick.IsLead || quick.Confidence >= 1 {
		return quick
	}

	remote, err := a.Classify(ctx, text)
	if err != nil {
		a.logger.Warn("remote classification unavailable, using quick verdict", "error", err)
		return quick
	}

	// Extracted values win; the remote verdict only fills gaps.
	remote.Fields = quick.Fields.Merge(remote.Fields)
	remote.IsNewLead = remote.IsLead
	if remote.Reasoning == "" {
		remote.Reasoning = quick.Reasoning
	}
	return remote
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
