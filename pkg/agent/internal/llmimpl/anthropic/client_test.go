package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/pkg/agent/llm"
	"pilot/pkg/tools"
)

func TestEnsureAlternationMergesToolResults(t *testing.T) {
	system, params, err := ensureAlternation([]llm.CompletionMessage{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "fix the bug"},
		{Role: llm.RoleAssistant, Content: "Applying a diff.", ToolCalls: []llm.ToolCall{{ID: "tu_1", Name: "apply_diff", Arguments: `{"diff":"x"}`}}},
		{Role: llm.RoleTool, Content: "User rejected the changes.", ToolCallID: "tu_1", ToolName: "apply_diff"},
		{Role: llm.RoleUser, Content: "note: only the first tool request was processed"},
	})
	require.NoError(t, err)
	assert.Equal(t, "be brief", system)
	require.Len(t, params, 3)
	assert.Equal(t, "user", string(params[0].Role))
	assert.Equal(t, "assistant", string(params[1].Role))
	assert.Equal(t, "user", string(params[2].Role))

	require.Len(t, params[1].Content, 2)
	require.NotNil(t, params[1].Content[1].OfToolUse)
	assert.Equal(t, "tu_1", params[1].Content[1].OfToolUse.ID)

	require.Len(t, params[2].Content, 2)
	require.NotNil(t, params[2].Content[0].OfToolResult, "tool_result must lead the user turn")
	assert.Equal(t, "tu_1", params[2].Content[0].OfToolResult.ToolUseID)
	assert.NotNil(t, params[2].Content[1].OfText)
}

func TestEnsureAlternationErrors(t *testing.T) {
	_, _, err := ensureAlternation(nil)
	assert.Error(t, err)

	_, _, err = ensureAlternation([]llm.CompletionMessage{{Role: llm.RoleSystem, Content: "s"}})
	assert.Error(t, err)

	_, _, err = ensureAlternation([]llm.CompletionMessage{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
	})
	assert.ErrorContains(t, err, "last message must be user")
}

func TestCompleteParsesTextAndToolUse(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
			"content": [
				{"type": "text", "text": "Here is the change."},
				{"type": "tool_use", "id": "tu_9", "name": "apply_diff", "input": {"diff": "--- a/x\n+++ b/x\n"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 42, "output_tokens": 7}
		}`)
	}))
	defer srv.Close()

	client := NewClaudeClientWithModel("test-key", "claude-sonnet-4-5", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	resp, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages:    []llm.CompletionMessage{{Role: llm.RoleSystem, Content: "sys"}, {Role: llm.RoleUser, Content: "go"}},
		MaxTokens:   1024,
		Temperature: llm.TemperatureDefault,
		Tools: []tools.ToolDefinition{{
			Name:        tools.ToolApplyDiff,
			Description: "apply a diff",
			InputSchema: tools.InputSchema{Type: "object", Properties: map[string]tools.Property{"diff": {Type: "string"}}, Required: []string{"diff"}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Here is the change.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "tu_9", resp.ToolCalls[0].ID)
	assert.Equal(t, "apply_diff", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"diff":"--- a/x\n+++ b/x\n"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, "tool_use", resp.StopReason)
	assert.Equal(t, llm.Usage{PromptTokens: 42, CompletionTokens: 7}, resp.Usage)

	assert.Equal(t, "claude-sonnet-4-5", body["model"])
	require.Len(t, body["tools"], 1)
	assert.NotEmpty(t, body["system"])
}

func TestCompleteEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_2","type":"message","role":"assistant","model":"m","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`)
	}))
	defer srv.Close()

	client := NewClaudeClientWithModel("k", "m", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	_, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages:  []llm.CompletionMessage{{Role: llm.RoleUser, Content: "go"}},
		MaxTokens: 16,
	})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
