package tools

import (
	"context"
	"strings"

	"pilot/pkg/validation"
)

// RunValidationTool runs the project's configured validation command.
type RunValidationTool struct {
	runner  *validation.Runner
	command func() string
}

// NewRunValidationTool creates the run_validation tool. command is read on
// every run so configuration changes take effect immediately.
func NewRunValidationTool(runner *validation.Runner, command func() string) *RunValidationTool {
	return &RunValidationTool{runner: runner, command: command}
}

// Name returns the tool name.
func (t *RunValidationTool) Name() string {
	return ToolRunValidation
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *RunValidationTool) PromptDocumentation() string {
	return `- **run_validation** - Run the project's validation command (build, tests or lint)
  - No parameters
  - Output includes the exit code and combined stdout/stderr`
}

// Definition returns the tool definition for LLM.
func (t *RunValidationTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolRunValidation,
		Description: "Run the project's configured validation command and report its exit code and output.",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
		},
	}
}

// Configured reports whether a validation command is set.
func (t *RunValidationTool) Configured() bool {
	return strings.TrimSpace(t.command()) != ""
}

// Command returns the configured command.
func (t *RunValidationTool) Command() string {
	return t.command()
}

// Validate runs the command and returns the normalized result.
func (t *RunValidationTool) Validate(ctx context.Context) validation.Result {
	return t.runner.Run(ctx, t.command())
}

// Exec runs the command.
func (t *RunValidationTool) Exec(ctx context.Context, _ map[string]any) (*ExecResult, error) {
	return &ExecResult{Content: t.Validate(ctx).Format()}, nil
}
