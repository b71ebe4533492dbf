// Package metrics provides metrics middleware for LLM clients.
package metrics

import (
	"context"
	"time"

	"pilot/pkg/agent/llm"
	"pilot/pkg/logx"
	pmetrics "pilot/pkg/metrics"
	"pilot/pkg/utils"
)

// UsageExtractor is a function that extracts token usage from a request and response.
type UsageExtractor func(model string, req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor prefers provider-reported usage and falls back to
// counting with tiktoken.
func DefaultUsageExtractor(model string, req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		return resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}

	counter, err := utils.NewTokenCounter(model)
	if err != nil {
		counter = nil
	}
	for i := range req.Messages {
		promptTokens += counter.CountTokens(req.Messages[i].Content)
	}
	completionTokens = counter.CountTokens(resp.Content)
	for _, call := range resp.ToolCalls {
		completionTokens += counter.CountTokens(call.Arguments)
	}
	return promptTokens, completionTokens
}

// Middleware returns a middleware function that records metrics for LLM operations.
func Middleware(recorder pmetrics.Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				if err == nil {
					promptTokens, completionTokens = usageExtractor(model, req, resp)
				}
				recorder.ObserveLLMRequest(model, promptTokens, completionTokens, err == nil, duration)

				if logger != nil {
					status := "success"
					if err != nil {
						status = "error"
					}
					logger.Info("🎯 LLM Request: model=%s tokens=%d+%d=%d tools=%d status=%s duration=%dms",
						model, promptTokens, completionTokens, promptTokens+completionTokens,
						len(resp.ToolCalls), status, duration.Milliseconds())
				}

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}
