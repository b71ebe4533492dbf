// Package tools provides the named capabilities the agent can request and
// the executor that resolves and invokes them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is a named, string-in/string-out capability.
type Tool interface {
	// Name returns the tool identifier used in requests.
	Name() string
	// Definition returns the schema advertised to the model.
	Definition() ToolDefinition
	// PromptDocumentation returns a markdown description for system prompts.
	PromptDocumentation() string
	// Exec runs the tool. Failures the agent should see may be returned
	// either as an error or as error text in the result.
	Exec(ctx context.Context, args map[string]any) (*ExecResult, error)
}

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema is the JSON schema of a tool's arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property is one argument in an InputSchema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ExecResult is the text returned to the agent.
type ExecResult struct {
	Content string `json:"content"`
}

// Request is a tool invocation emitted by the agent. Arguments is opaque
// (normally a JSON object).
type Request struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ParseArguments decodes a JSON argument object. Blank input is an empty map.
func ParseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

// ToSchemaMap converts an InputSchema to the generic map form used by SDKs.
func (s InputSchema) ToSchemaMap() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = map[string]any{"type": p.Type, "description": p.Description}
	}
	m := map[string]any{
		"type":       s.Type,
		"properties": props,
	}
	if len(s.Required) > 0 {
		m["required"] = s.Required
	}
	return m
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s is required and must be a string", key)
	}
	return v, nil
}

// intArgOrDefault extracts an integer argument from the args map, returning defaultVal if missing or invalid.
// Handles float64 (from JSON unmarshal), int, and int64 value types.
func intArgOrDefault(args map[string]any, key string, defaultVal int) int {
	v, exists := args[key]
	if !exists {
		return defaultVal
	}
	var n int
	switch val := v.(type) {
	case float64:
		n = int(val)
	case int:
		n = val
	case int64:
		n = int(val)
	default:
		return defaultVal
	}
	if n < 1 {
		return defaultVal
	}
	return n
}
