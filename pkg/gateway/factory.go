package gateway

import (
	"fmt"

	"roadmapbp/internal/llmimpl/anthropic"
	"roadmapbp/internal/llmimpl/google"
	"roadmapbp/internal/llmimpl/ollama"
	"roadmapbp/internal/llmimpl/openai"
	"roadmapbp/pkg/config"
	"roadmapbp/pkg/llm"
	"roadmapbp/pkg/llm/middleware/limit"
	"roadmapbp/pkg/llm/middleware/logging"
	"roadmapbp/pkg/llm/middleware/metrics"
	"roadmapbp/pkg/llm/middleware/timeout"
	"roadmapbp/pkg/logx"
)

// Options carries the collaborators the middleware chain reports to.
type Options struct {
	Recorder metrics.Recorder // nil disables metrics
	Logger   *logx.Logger     // nil uses a "gateway" logger
}

// NewRawClient creates the provider client for model without middleware.
// The API key comes from the secrets file or the environment.
func NewRawClient(model string) (llm.LLMClient, error) {
	provider, err := config.GetModelProvider(model)
	if err != nil {
		return nil, fmt.Errorf("failed to determine provider for model %s: %w", model, err)
	}

	apiKey, err := config.GetAPIKey(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for provider %s: %w", provider, err)
	}

	switch provider {
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClient(apiKey, model), nil
	case config.ProviderOpenAI:
		return openai.NewClient(apiKey, model), nil
	case config.ProviderGoogle:
		return google.NewGeminiClient(apiKey, model), nil
	case config.ProviderOllama:
		return ollama.NewClient(apiKey, model), nil
	case config.ProviderMock:
		return NewDemoClient(model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// Wrap builds the middleware chain around raw:
// Logging -> Metrics -> Limit -> Timeout -> raw client.
// The limit is process-wide, so concurrent renders, drafts and HTTP requests
// together never exceed pipeline.render_concurrency in-flight calls.
func Wrap(raw llm.LLMClient, cfg *config.Config, opts Options) llm.LLMClient {
	logger := opts.Logger
	if logger == nil {
		logger = logx.NewLogger("gateway")
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.Nop()
	}

	return llm.Chain(raw,
		logging.Middleware(logger),
		metrics.Middleware(recorder, nil, logger),
		limit.Middleware(cfg.Pipeline.RenderConcurrency, recorder),
		timeout.Middleware(cfg.Model.Timeout.D()),
	)
}

// NewFromConfig creates the provider client for cfg.Model.Name and wraps it.
func NewFromConfig(cfg *config.Config, opts Options) (*Gateway, error) {
	raw, err := NewRawClient(cfg.Model.Name)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logx.NewLogger("gateway")
	}
	maxTokens := maxTokensFor(cfg.Model.Name, cfg.Model.MaxTokens, logger)
	return New(Wrap(raw, cfg, opts), maxTokens, cfg.Model.SamplingTemperature()), nil
}

// maxTokensFor caps configured at the model's output limit. Models missing
// from config.KnownModels are not capped.
func maxTokensFor(model string, configured int, logger *logx.Logger) int {
	info, known := config.GetModelInfo(model)
	if !known || info.MaxOutputTokens <= 0 || configured <= info.MaxOutputTokens {
		return configured
	}
	logger.Warn("model.max_tokens %d exceeds the %d output tokens %s allows; using %d",
		configured, info.MaxOutputTokens, model, info.MaxOutputTokens)
	return info.MaxOutputTokens
}
