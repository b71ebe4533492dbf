package tools

import (
	"context"
	"fmt"
)

// SelfUpdateProposer commits a change to the program's own source and
// schedules it for validation on the next start.
type SelfUpdateProposer interface {
	Propose(ctx context.Context, filePath, commitMessage string) error
}

// CommitSelfUpdateTool commits an applied change to pilot's own source.
// The process restarts at the end of the turn.
type CommitSelfUpdateTool struct {
	proposer SelfUpdateProposer
}

// NewCommitSelfUpdateTool creates the commit_self_update tool.
func NewCommitSelfUpdateTool(proposer SelfUpdateProposer) *CommitSelfUpdateTool {
	return &CommitSelfUpdateTool{proposer: proposer}
}

// Name returns the tool name.
func (t *CommitSelfUpdateTool) Name() string {
	return ToolCommitSelfUpdate
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *CommitSelfUpdateTool) PromptDocumentation() string {
	return `- **commit_self_update** - Commit an already-applied change to this program's own source
  - Parameters: path (string, REQUIRED), message (string, REQUIRED)
  - The program restarts after the turn and validates the change; failures are rolled back`
}

// Definition returns the tool definition for LLM.
func (t *CommitSelfUpdateTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolCommitSelfUpdate,
		Description: "Commit an applied change to this program's own source. The program restarts after the turn, validates the change and rolls it back on failure.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path":    {Type: "string", Description: "File to commit, relative to the project root"},
				"message": {Type: "string", Description: "Commit message"},
			},
			Required: []string{"path", "message"},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *CommitSelfUpdateTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	message, err := stringArg(args, "message")
	if err != nil {
		return nil, err
	}
	if err := t.proposer.Propose(ctx, path, message); err != nil {
		return nil, fmt.Errorf("self-update not committed: %w", err)
	}
	return &ExecResult{Content: fmt.Sprintf("Committed %s. The program will restart after this turn and validate the update.", path)}, nil
}
