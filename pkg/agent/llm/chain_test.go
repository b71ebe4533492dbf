package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapClient(t *testing.T) {
	client := WrapClient(
		func(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
			return CompletionResponse{Content: "wrapped"}, nil
		},
		func() string { return "wrapped-model" },
	)

	resp, err := client.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "wrapped", resp.Content)
	assert.Equal(t, "wrapped-model", client.GetModelName())
}

func TestChainOrder(t *testing.T) {
	var order []string
	base := WrapClient(
		func(context.Context, CompletionRequest) (CompletionResponse, error) {
			order = append(order, "client")
			return CompletionResponse{}, nil
		},
		func() string { return "base" },
	)
	tag := func(name string) Middleware {
		return func(next LLMClient) LLMClient {
			return WrapClient(
				func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
					order = append(order, name)
					return next.Complete(ctx, req)
				},
				next.GetModelName,
			)
		}
	}

	client := Chain(base, tag("mw1"), tag("mw2"))
	_, err := client.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"mw1", "mw2", "client"}, order)
	assert.Equal(t, "base", client.GetModelName())
}

func TestLLMConfigValidate(t *testing.T) {
	cfg := LLMConfig{ModelName: "gpt-5", MaxTokens: 100, Temperature: 0.2}
	assert.NoError(t, cfg.Validate())

	cfg.MaxTokens = 0
	assert.Error(t, cfg.Validate())

	cfg = LLMConfig{MaxTokens: 1}
	assert.Error(t, cfg.Validate())
}
