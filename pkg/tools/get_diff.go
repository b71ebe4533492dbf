package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	execpkg "pilot/pkg/exec"
)

// GetDiffTool shows uncommitted changes in the project repository.
type GetDiffTool struct {
	executor     execpkg.Executor
	root         string
	maxDiffLines int
}

// NewGetDiffTool creates a new get_diff tool rooted at the project directory.
func NewGetDiffTool(executor execpkg.Executor, root string, maxDiffLines int) *GetDiffTool {
	if maxDiffLines <= 0 {
		maxDiffLines = 10000 // Default: 10000 lines
	}
	return &GetDiffTool{
		executor:     executor,
		root:         root,
		maxDiffLines: maxDiffLines,
	}
}

// Name returns the tool name.
func (t *GetDiffTool) Name() string {
	return ToolGetDiff
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *GetDiffTool) PromptDocumentation() string {
	return `- **get_diff** - Show uncommitted changes against HEAD
  - Parameters: path (string, optional specific file)
  - Use to review what has already been applied this session`
}

// Definition returns the tool definition for LLM.
func (t *GetDiffTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetDiff,
		Description: "Show uncommitted changes in the project against HEAD. Use this to review edits applied so far.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "Optional: specific file path to diff. If omitted, shows diff for all files.",
				},
			},
		},
	}
}

// diffCommand builds the shell line for the requested path.
func (t *GetDiffTool) diffCommand(path string) (string, error) {
	if path == "" {
		return fmt.Sprintf("git diff --no-color --no-ext-diff HEAD 2>&1 | head -n %d", t.maxDiffLines), nil
	}
	cleanPath := filepath.Clean(path)
	if filepath.IsAbs(cleanPath) || cleanPath == ".." || strings.HasPrefix(cleanPath, "../") {
		return "", fmt.Errorf("path must stay inside the project: %s", path)
	}
	if strings.ContainsAny(cleanPath, "'\n") {
		return "", fmt.Errorf("path must not contain quotes or newlines")
	}
	return fmt.Sprintf("git diff --no-color --no-ext-diff HEAD -- '%s' 2>&1 | head -n %d", cleanPath, t.maxDiffLines), nil
}

// Exec executes the tool with the given arguments.
func (t *GetDiffTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	path := ""
	if p, ok := args["path"].(string); ok {
		path = p
	}

	line, err := t.diffCommand(path)
	if err != nil {
		return errorResult(err.Error())
	}

	result, err := t.executor.Run(ctx, execpkg.ShellCommand(line), &execpkg.Opts{WorkDir: t.root})
	if err != nil {
		return errorResult(fmt.Sprintf("git diff failed: %v", err))
	}
	// The pipeline exits with head's status, so git failures show up in the output.
	if result.ExitCode != 0 || strings.Contains(result.Stdout, "not a git repository") {
		return errorResult(fmt.Sprintf("git diff failed: %s", strings.TrimSpace(result.Output())))
	}

	diffLines := 0
	if result.Stdout != "" {
		diffLines = len(strings.Split(strings.TrimRight(result.Stdout, "\n"), "\n"))
	}

	return jsonResult(map[string]any{
		"success":   true,
		"diff":      result.Stdout,
		"path":      path,
		"truncated": diffLines >= t.maxDiffLines,
		"lines":     diffLines,
	})
}
