// Package ollama provides Ollama client implementation for LLM interface.
// Ollama is a local LLM runtime that allows running open-source models.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"pilot/pkg/agent/llm"
	"pilot/pkg/tools"
)

// toolCallFence matches tool calls the model writes as fenced JSON blocks.
var toolCallFence = regexp.MustCompile("(?s)```tool_call\\s*\\n(.*?)\\n?```")

// Client wraps the Ollama API client to implement llm.LLMClient interface.
type Client struct {
	client  *api.Client
	model   string
	hostURL string
}

// NewOllamaClientWithModel creates a new Ollama client with specific model.
// hostURL should be the Ollama server URL (e.g., "http://localhost:11434").
func NewOllamaClientWithModel(hostURL, model string) llm.LLMClient {
	parsedURL, err := url.Parse(hostURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		// Fall back to default if URL is invalid
		parsedURL, _ = url.Parse("http://localhost:11434")
	}

	return &Client{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		model:   model,
		hostURL: parsedURL.String(),
	}
}

// Complete implements the llm.LLMClient interface.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages, err := convertMessagesToOllama(in.Messages, in.Tools)
	if err != nil {
		return llm.CompletionResponse{}, fmt.Errorf("message conversion error: %w", err)
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	var response api.ChatResponse
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err, o.hostURL)
	}

	content, toolCalls := extractToolCalls(response.Message.Content)
	for i := range response.Message.ToolCalls {
		call := &response.Message.ToolCalls[i]
		args, marshalErr := json.Marshal(call.Function.Arguments)
		if marshalErr != nil {
			args = []byte("{}")
		}
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:        "call_" + uuid.NewString(),
			Name:      call.Function.Name,
			Arguments: string(args),
		})
	}

	return llm.CompletionResponse{
		Content:    content,
		ToolCalls:  toolCalls,
		StopReason: getStopReason(&response),
		Usage: llm.Usage{
			PromptTokens:     response.PromptEvalCount,
			CompletionTokens: response.EvalCount,
		},
	}, nil
}

// GetModelName returns the model name for this client.
func (o *Client) GetModelName() string {
	return o.model
}

// convertMessagesToOllama converts our message format to Ollama's Message format.
// Tool definitions are described in the system message and tool traffic is
// rendered as text, since local models vary in native tool support.
func convertMessagesToOllama(messages []llm.CompletionMessage, toolDefs []tools.ToolDefinition) ([]api.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("message list cannot be empty")
	}

	result := make([]api.Message, 0, len(messages)+1)
	if len(toolDefs) > 0 {
		result = append(result, api.Message{Role: "system", Content: toolInstructions(toolDefs)})
	}

	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case llm.RoleAssistant:
			var sb strings.Builder
			sb.WriteString(msg.Content)
			for j := range msg.ToolCalls {
				call := &msg.ToolCalls[j]
				fmt.Fprintf(&sb, "\n```tool_call\n{\"name\": %q, \"arguments\": %s}\n```", call.Name, orEmptyObject(call.Arguments))
			}
			result = append(result, api.Message{Role: "assistant", Content: strings.TrimSpace(sb.String())})
		case llm.RoleTool:
			result = append(result, api.Message{
				Role:    "user",
				Content: fmt.Sprintf("Result of tool %s:\n%s", msg.ToolName, msg.Content),
			})
		default:
			result = append(result, api.Message{Role: string(msg.Role), Content: msg.Content})
		}
	}
	return result, nil
}

func toolInstructions(toolDefs []tools.ToolDefinition) string {
	var sb strings.Builder
	sb.WriteString("You can call tools. To call one, reply with a fenced block exactly like:\n")
	sb.WriteString("```tool_call\n{\"name\": \"tool_name\", \"arguments\": {}}\n```\n")
	sb.WriteString("Call at most one tool per reply. Available tools:\n")
	for i := range toolDefs {
		def := &toolDefs[i]
		schema, _ := json.Marshal(def.InputSchema.ToSchemaMap())
		fmt.Fprintf(&sb, "- %s: %s\n  arguments schema: %s\n", def.Name, def.Description, schema)
	}
	return sb.String()
}

func orEmptyObject(args string) string {
	if strings.TrimSpace(args) == "" {
		return "{}"
	}
	return args
}

// extractToolCalls pulls fenced tool calls out of the response text and
// returns the remaining prose.
func extractToolCalls(content string) (string, []llm.ToolCall) {
	matches := toolCallFence.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return content, nil
	}

	var calls []llm.ToolCall
	for _, m := range matches {
		var payload struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &payload); err != nil || payload.Name == "" {
			continue
		}
		calls = append(calls, llm.ToolCall{
			ID:        "call_" + uuid.NewString(),
			Name:      payload.Name,
			Arguments: orEmptyObject(string(payload.Arguments)),
		})
	}
	return strings.TrimSpace(toolCallFence.ReplaceAllString(content, "")), calls
}

// getStopReason converts Ollama's done_reason to our stop reason format.
func getStopReason(resp *api.ChatResponse) string {
	if !resp.Done {
		return "incomplete"
	}

	switch resp.DoneReason {
	case "stop", "":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return resp.DoneReason
	}
}

// classifyError annotates common Ollama failures.
func classifyError(err error, host string) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return fmt.Errorf("Ollama server not reachable at %s: %w", host, err) //nolint:stylecheck // provider name
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return fmt.Errorf("Ollama model not found (try `ollama pull`): %w", err) //nolint:stylecheck // provider name
	default:
		return fmt.Errorf("Ollama API error: %w", err) //nolint:stylecheck // provider name
	}
}
