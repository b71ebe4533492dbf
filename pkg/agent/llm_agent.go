package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"pilot/pkg/agent/llm"
	"pilot/pkg/tools"
)

// DefaultSystemPrompt frames the agent's job in the terminal session.
const DefaultSystemPrompt = `You are a coding agent working in the user's project from a terminal.
Read files before changing them. Propose every edit as a unified diff through the apply_diff tool; the user reviews each diff before it is applied.
Only files in the working set may be modified; new files may be created freely.
Request at most one tool per reply.
When asked for a plan, start it with "Here's my plan:" and finish it with "End of plan".`

// LLMAgent adapts an llm.LLMClient to the Agent interface.
type LLMAgent struct {
	client       llm.LLMClient
	registry     *tools.Registry
	systemPrompt string
	maxTokens    int
	temperature  float32
}

// NewLLMAgent creates an agent that offers every tool in registry.
func NewLLMAgent(client llm.LLMClient, registry *tools.Registry, systemPrompt string, maxTokens int, temperature float32) *LLMAgent {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &LLMAgent{
		client:       client,
		registry:     registry,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		temperature:  temperature,
	}
}

// Model returns the model name.
func (a *LLMAgent) Model() string {
	return a.client.GetModelName()
}

// Act sends the conversation to the model.
func (a *LLMAgent) Act(ctx context.Context, history []Message) (Response, error) {
	req := llm.CompletionRequest{
		Messages:    a.buildMessages(history),
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	}
	if a.registry != nil {
		req.Tools = a.registry.Definitions()
	}

	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("agent %s failed: %w", a.Model(), err)
	}

	out := Response{Text: resp.Content, Usage: resp.Usage}
	for _, call := range resp.ToolCalls {
		id := call.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		out.ToolRequests = append(out.ToolRequests, tools.Request{ID: id, Name: call.Name, Arguments: call.Arguments})
	}
	return out, nil
}

func (a *LLMAgent) buildMessages(history []Message) []llm.CompletionMessage {
	system := a.systemPrompt
	if a.registry != nil {
		if docs := a.registry.Documentation(); docs != "" {
			system += "\n\n" + docs
		}
	}

	out := make([]llm.CompletionMessage, 0, len(history)+1)
	out = append(out, llm.CompletionMessage{Role: llm.RoleSystem, Content: system})
	for i := range history {
		msg := &history[i]
		switch msg.Role {
		case RoleAssistant:
			cm := llm.CompletionMessage{Role: llm.RoleAssistant, Content: msg.Content}
			for _, req := range msg.ToolRequests {
				cm.ToolCalls = append(cm.ToolCalls, llm.ToolCall{ID: req.ID, Name: req.Name, Arguments: req.Arguments})
			}
			out = append(out, cm)
		case RoleTool:
			out = append(out, llm.CompletionMessage{
				Role:       llm.RoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
				ToolName:   msg.ToolName,
			})
		case RoleNote:
			out = append(out, llm.CompletionMessage{Role: llm.RoleUser, Content: "[note] " + strings.TrimSpace(msg.Content)})
		default:
			out = append(out, llm.CompletionMessage{Role: llm.RoleUser, Content: msg.Content})
		}
	}
	return out
}
