package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/pkg/agent/llm"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{fmt.Errorf("operation failed: %w", context.Canceled), false},
		{context.DeadlineExceeded, true},
		{errors.New("POST /v1/messages: 529 Overloaded"), true},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("401 Unauthorized"), false},
		{errors.New("something odd"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldRetry(tt.err), "%v", tt.err)
	}
}

func TestCalculateDelay(t *testing.T) {
	p := NewPolicy(Config{MaxAttempts: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond, BackoffFactor: 2}, nil)

	assert.Zero(t, p.CalculateDelay(1))
	assert.Equal(t, 100*time.Millisecond, p.CalculateDelay(2))
	assert.Equal(t, 200*time.Millisecond, p.CalculateDelay(3))
	assert.Equal(t, 250*time.Millisecond, p.CalculateDelay(4), "capped at MaxDelay")
}

func TestMiddlewareRetriesTransientErrors(t *testing.T) {
	calls := 0
	base := llm.WrapClient(
		func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
			calls++
			if calls < 3 {
				return llm.CompletionResponse{}, errors.New("503 service unavailable")
			}
			return llm.CompletionResponse{Content: "done"}, nil
		},
		func() string { return "m" },
	)
	client := Middleware(NewPolicy(Config{MaxAttempts: 3, BackoffFactor: 1}, nil))(base)

	resp, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, 3, calls)
}

func TestMiddlewareStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("401 invalid x-api-key")
	base := llm.WrapClient(
		func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
			calls++
			return llm.CompletionResponse{}, permanent
		},
		func() string { return "m" },
	)
	client := Middleware(NewPolicy(Config{MaxAttempts: 3}, nil))(base)

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}
