package openaiofficial

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/pkg/agent/llm"
	"pilot/pkg/tools"
)

func TestNewOfficialClientWithModel(t *testing.T) {
	client := NewOfficialClientWithModel("test-api-key", "gpt-4.1")
	require.NotNil(t, client)
	assert.Equal(t, "gpt-4.1", client.GetModelName())
}

func TestFlattenMessages(t *testing.T) {
	text := flattenMessages([]llm.CompletionMessage{
		{Role: llm.RoleSystem, Content: "rules"},
		{Role: llm.RoleUser, Content: "list files"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Name: "list_files", Arguments: "{}"}}},
		{Role: llm.RoleTool, Content: "* main.go", ToolCallID: "c1", ToolName: "list_files"},
	})

	assert.Contains(t, text, "System: rules")
	assert.Contains(t, text, "User: list files")
	assert.Contains(t, text, "Assistant called tool list_files (id c1)")
	assert.Contains(t, text, "Tool list_files (id c1) returned:\n* main.go")
}

func TestCompleteParsesFunctionCalls(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "resp_1", "object": "response", "created_at": 1, "model": "gpt-4.1", "status": "completed",
			"output": [
				{"type": "message", "id": "msg_1", "role": "assistant", "status": "completed",
				 "content": [{"type": "output_text", "text": "Reading it now.", "annotations": []}]},
				{"type": "function_call", "id": "fc_1", "call_id": "call_1", "name": "read_file",
				 "arguments": "{\"path\":\"main.go\"}", "status": "completed"}
			],
			"usage": {"input_tokens": 20, "output_tokens": 4, "total_tokens": 24,
			          "input_tokens_details": {"cached_tokens": 0}, "output_tokens_details": {"reasoning_tokens": 0}}
		}`)
	}))
	defer srv.Close()

	client := NewOfficialClientWithModel("k", "gpt-4.1", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	resp, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages:  []llm.CompletionMessage{{Role: llm.RoleUser, Content: "show main.go"}},
		MaxTokens: 1_000_000,
		Tools: []tools.ToolDefinition{{
			Name:        tools.ToolReadFile,
			InputSchema: tools.InputSchema{Type: "object", Properties: map[string]tools.Property{"path": {Type: "string"}}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Reading it now.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, llm.ToolCall{ID: "call_1", Name: "read_file", Arguments: `{"path":"main.go"}`}, resp.ToolCalls[0])
	assert.Equal(t, llm.Usage{PromptTokens: 20, CompletionTokens: 4}, resp.Usage)

	assert.EqualValues(t, 32768, body["max_output_tokens"], "capped to model limit")
	assert.Len(t, body["tools"], 1)
}
