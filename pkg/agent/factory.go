package agent

import (
	"fmt"
	"time"

	"pilot/pkg/agent/internal/llmimpl/anthropic"
	"pilot/pkg/agent/internal/llmimpl/google"
	"pilot/pkg/agent/internal/llmimpl/ollama"
	"pilot/pkg/agent/internal/llmimpl/openaiofficial"
	"pilot/pkg/agent/llm"
	llmmetrics "pilot/pkg/agent/middleware/metrics"
	"pilot/pkg/agent/middleware/retry"
	"pilot/pkg/agent/middleware/timeout"
	"pilot/pkg/config"
	"pilot/pkg/logx"
	"pilot/pkg/metrics"
)

// RequestTimeout bounds a single provider call, retries excluded.
const RequestTimeout = 5 * time.Minute

// NewLLMClient creates the raw provider client for the configured model and
// wraps it in the middleware chain.
func NewLLMClient(cfg *config.AgentConfig, recorder metrics.Recorder) (llm.LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent configuration is required")
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}

	provider, err := config.GetModelProvider(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to determine provider for model %s: %w", cfg.Model, err)
	}

	// For Ollama this is the host URL.
	apiKey, err := config.GetAPIKey(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for provider %s: %w", provider, err)
	}

	rawClient, err := newRawClient(provider, apiKey, cfg.Model)
	if err != nil {
		return nil, err
	}

	// Metrics -> Retry -> Timeout -> RawClient
	client := llm.Chain(rawClient,
		llmmetrics.Middleware(recorder, nil, logx.NewLogger("llm")),
		retry.Middleware(retry.NewPolicy(retry.DefaultConfig, nil)),
		timeout.Middleware(RequestTimeout),
	)
	return client, nil
}

func newRawClient(provider, apiKey, model string) (llm.LLMClient, error) {
	switch provider {
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClientWithModel(apiKey, model), nil
	case config.ProviderOpenAI:
		return openaiofficial.NewOfficialClientWithModel(apiKey, model), nil
	case config.ProviderGoogle:
		return google.NewGeminiClientWithModel(apiKey, model), nil
	case config.ProviderOllama:
		return ollama.NewOllamaClientWithModel(apiKey, trimOllamaPrefix(model)), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// trimOllamaPrefix strips the explicit "ollama:" routing prefix.
func trimOllamaPrefix(model string) string {
	const prefix = "ollama:"
	if len(model) > len(prefix) && model[:len(prefix)] == prefix {
		return model[len(prefix):]
	}
	return model
}
