package tools

import (
	"context"
	"fmt"
	"strings"

	execpkg "pilot/pkg/exec"
	"pilot/pkg/workset"
)

// ListFilesTool lists project files so the agent can decide what to request.
type ListFilesTool struct {
	executor   execpkg.Executor
	workingSet *workset.Set
	maxResults int
}

// NewListFilesTool creates a new list_files tool.
func NewListFilesTool(executor execpkg.Executor, ws *workset.Set, maxResults int) *ListFilesTool {
	if maxResults <= 0 {
		maxResults = 1000 // Default: 1000 files
	}
	return &ListFilesTool{
		executor:   executor,
		workingSet: ws,
		maxResults: maxResults,
	}
}

// Name returns the tool name.
func (t *ListFilesTool) Name() string {
	return ToolListFiles
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *ListFilesTool) PromptDocumentation() string {
	return `- **list_files** - List project files matching a pattern
  - Parameters: pattern (string, optional glob pattern, default '*')
  - Files already in the working set are marked with *`
}

// Definition returns the tool definition for LLM.
func (t *ListFilesTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolListFiles,
		Description: "List project files matching a pattern. Files in the working set are marked with '*'.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"pattern": {
					Type:        "string",
					Description: "File pattern to match (shell glob, e.g., '*.go', 'pkg/*'). Defaults to '*' (all files).",
				},
			},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *ListFilesTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	pattern := "*"
	if p, ok := args["pattern"].(string); ok && p != "" {
		pattern = p
	}
	if strings.ContainsAny(pattern, "'\n") {
		return errorResult("pattern must not contain quotes or newlines")
	}

	// -path instead of -name so directory patterns work.
	cmd := execpkg.ShellCommand(fmt.Sprintf(
		"find . -type f -path './%s' -not -path './.git/*' -not -path './.pilot/*' 2>/dev/null | sort | head -n %d",
		pattern, t.maxResults,
	))
	result, err := t.executor.Run(ctx, cmd, &execpkg.Opts{WorkDir: t.workingSet.Root()})
	if err != nil {
		return errorResult(fmt.Sprintf("failed to list files: %v", err))
	}
	if result.ExitCode != 0 {
		return errorResult(fmt.Sprintf("failed to list files: %s", result.Stderr))
	}

	files := []string{}
	var sb strings.Builder
	for _, f := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
		clean := strings.TrimPrefix(f, "./")
		if clean == "" {
			continue
		}
		files = append(files, clean)
		if t.workingSet.Contains(clean) {
			sb.WriteString("* ")
		} else {
			sb.WriteString("  ")
		}
		sb.WriteString(clean)
		sb.WriteString("\n")
	}

	return jsonResult(map[string]any{
		"success":   true,
		"listing":   sb.String(),
		"count":     len(files),
		"pattern":   pattern,
		"truncated": len(files) >= t.maxResults,
	})
}
