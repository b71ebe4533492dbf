package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"pilot/pkg/diff"
)

// ApplyDiffTool applies a unified diff to the working tree. The lifecycle
// manager requires a human review before it runs.
type ApplyDiffTool struct {
	engine *diff.Engine
}

// NewApplyDiffTool creates the apply_diff tool.
func NewApplyDiffTool(engine *diff.Engine) *ApplyDiffTool {
	return &ApplyDiffTool{engine: engine}
}

// Name returns the tool name.
func (t *ApplyDiffTool) Name() string {
	return ToolApplyDiff
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *ApplyDiffTool) PromptDocumentation() string {
	return `- **apply_diff** - Apply a unified diff to project files
  - Parameters: diff (string, REQUIRED): unified diff with ---/+++ headers and @@ hunks
  - Files you modify must be in the working set; use --- /dev/null to create a file
  - The user reviews every diff and may reject or edit it`
}

// Definition returns the tool definition for LLM.
func (t *ApplyDiffTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolApplyDiff,
		Description: "Apply a unified diff to files in the working set. New files use '--- /dev/null'. The user reviews the diff before it is applied.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"diff": {
					Type:        "string",
					Description: "Unified diff text",
				},
			},
			Required: []string{"diff"},
		},
	}
}

// Exec applies the diff. A failed application is returned as an error.
func (t *ApplyDiffTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	text, err := stringArg(args, "diff")
	if err != nil {
		return nil, err
	}
	res, err := t.engine.Apply(ctx, text)
	if err != nil {
		return nil, err
	}
	return &ExecResult{Content: res.String()}, nil
}

// DiffFromArgs extracts the diff text from raw request arguments.
func DiffFromArgs(raw string) (string, error) {
	args, err := ParseArguments(raw)
	if err != nil {
		return "", err
	}
	return stringArg(args, "diff")
}

// ArgsWithDiff returns raw with its diff replaced by text. Other arguments
// are preserved.
func ArgsWithDiff(raw, text string) (string, error) {
	args, err := ParseArguments(raw)
	if err != nil {
		args = map[string]any{}
	}
	args["diff"] = text
	out, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode arguments: %w", err)
	}
	return string(out), nil
}
