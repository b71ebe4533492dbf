// Package llm defines the provider-neutral completion API used by agents.
package llm

import (
	"context"
	"fmt"

	"pilot/pkg/tools"
)

// CompletionRole represents the role of a message in a completion request.
type CompletionRole string

const (
	// RoleSystem carries instructions. Providers that lack a system role
	// receive it out of band.
	RoleSystem CompletionRole = "system"
	// RoleUser is human input and pipeline notes.
	RoleUser CompletionRole = "user"
	// RoleAssistant is model output.
	RoleAssistant CompletionRole = "assistant"
	// RoleTool is the result of a tool call.
	RoleTool CompletionRole = "tool"
)

const (
	// TemperatureDefault is the default temperature for requests.
	TemperatureDefault = 0.2
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON object
}

// CompletionMessage is one entry of the conversation sent to a provider.
type CompletionMessage struct {
	Role    CompletionRole
	Content string

	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []ToolCall

	// ToolCallID and ToolName identify the call a tool message answers.
	ToolCallID string
	ToolName   string
}

// CompletionRequest represents a request to the LLM.
type CompletionRequest struct {
	Messages    []CompletionMessage
	Tools       []tools.ToolDefinition
	MaxTokens   int
	Temperature float32
}

// Usage reports provider token accounting. Zero values mean unknown.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// CompletionResponse represents a response from the LLM.
type CompletionResponse struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
}

// LLMClient is implemented by every provider adapter.
type LLMClient interface { //nolint:revive // Keep name for backward compatibility
	// Complete sends a completion request to the LLM.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model this client talks to.
	GetModelName() string
}

// LLMConfig represents configuration for an LLM client.
type LLMConfig struct { //nolint:revive // Keep name for backward compatibility
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
}

// Validate checks the configuration.
func (c *LLMConfig) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	return nil
}
