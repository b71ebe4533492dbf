package agent

import (
	"context"
	"time"

	"pilot/pkg/agent/llm"
	"pilot/pkg/tools"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	// RoleNote is a pipeline message visible to the agent, such as an error
	// or a plan decision.
	RoleNote Role = "note"
)

// Message is one entry of the conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolRequests is set on assistant messages that asked for a tool.
	ToolRequests []tools.Request `json:"tool_requests,omitempty"`

	// ToolCallID and ToolName identify the request a tool message answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`

	At time.Time `json:"at"`
}

// Response is what the agent produced for one invocation.
type Response struct {
	Text         string
	ToolRequests []tools.Request
	Usage        llm.Usage
}

// HasToolRequest reports whether the response asks for at least one tool.
func (r Response) HasToolRequest() bool {
	return len(r.ToolRequests) > 0
}

// Agent turns the conversation so far into a response. Implementations may
// fail on transport or model errors.
type Agent interface {
	Act(ctx context.Context, history []Message) (Response, error)
	Model() string
}
