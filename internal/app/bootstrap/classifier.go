package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/leadtriage/internal/classify"
	appconfig "github.com/wolfman30/leadtriage/internal/config"
	"github.com/wolfman30/leadtriage/internal/observability/metrics"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

// BuildLLMClient constructs one remote backend. "none" and "" return nil.
func BuildLLMClient(ctx context.Context, provider string, cfg *appconfig.Config, awsCfg *aws.Config) (classify.LLMClient, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "none":
		return nil, nil
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, fmt.Errorf("bootstrap: bedrock classifier requires BEDROCK_MODEL_ID")
		}
		if awsCfg == nil {
			return nil, fmt.Errorf("bootstrap: bedrock classifier requires AWS config")
		}
		return classify.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID), nil
	case "gemini":
		return classify.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	case "openai":
		return classify.NewOpenAIClient(classify.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	default:
		return nil, fmt.Errorf("bootstrap: unknown classifier provider %q", provider)
	}
}

// BuildClassifier wires the remote adapter with an optional fallback backend.
// A nil adapter means only the quick check runs.
func BuildClassifier(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, cache classify.Cache, m *metrics.TriageMetrics, logger *logging.Logger) (*classify.Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	primary, err := BuildLLMClient(ctx, cfg.ClassifierProvider, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		logger.Info("remote classifier disabled; quick check only")
		return nil, nil
	}

	fallback, err := BuildLLMClient(ctx, cfg.ClassifierFallbackProvider, cfg, awsCfg)
	if err != nil {
		logger.Warn("fallback classifier unavailable", "provider", cfg.ClassifierFallbackProvider, "error", err)
		fallback = nil
	}

	adapter := classify.NewAdapter(
		classify.NewFallbackClient(primary, fallback, logger),
		cache,
		classify.AdapterConfig{
			Provider: cfg.ClassifierProvider,
			Timeout:  cfg.ClassifierTimeout,
			Retries:  cfg.ClassifierRetries,
		},
		logger,
	).WithMetrics(m)
	logger.Info("remote classifier enabled", "provider", cfg.ClassifierProvider, "fallback", cfg.ClassifierFallbackProvider)
	return adapter, nil
}
