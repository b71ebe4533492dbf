package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	execpkg "pilot/pkg/exec"
	"pilot/pkg/workset"
)

const (
	defaultReadLines   = 2000 // Default number of lines to read
	maxLineLength      = 2000 // Truncate lines longer than this
	defaultStartOffset = 1    // 1-based line numbering
)

// ReadFileTool reads files that are in the working set.
type ReadFileTool struct {
	executor     execpkg.Executor
	workingSet   *workset.Set
	maxSizeBytes int64 // Safety cap on total output bytes
}

// NewReadFileTool creates a new read_file tool.
func NewReadFileTool(executor execpkg.Executor, ws *workset.Set, maxSizeBytes int64) *ReadFileTool {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 1048576 // Default: 1MB
	}
	return &ReadFileTool{
		executor:     executor,
		workingSet:   ws,
		maxSizeBytes: maxSizeBytes,
	}
}

// Name returns the tool name.
func (t *ReadFileTool) Name() string {
	return ToolReadFile
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *ReadFileTool) PromptDocumentation() string {
	return `- **read_file** - Read a file from the working set
  - Parameters:
    - path (string, REQUIRED): path relative to the project root
    - offset (integer, optional): line number to start from (1-based, default: 1)
    - limit (integer, optional): number of lines to read (default: 2000)
  - Output uses numbered lines (cat -n format)
  - Lines longer than 2000 characters are truncated`
}

// Definition returns the tool definition for LLM.
func (t *ReadFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolReadFile,
		Description: "Read a file from the working set. Output uses numbered lines. For large files, use offset and limit to read specific sections.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "Path relative to the project root",
				},
				"offset": {
					Type:        "integer",
					Description: "Line number to start reading from (1-based). Defaults to 1.",
				},
				"limit": {
					Type:        "integer",
					Description: "Number of lines to read. Defaults to 2000.",
				},
			},
			Required: []string{"path"},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *ReadFileTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	offset := intArgOrDefault(args, "offset", defaultStartOffset)
	limit := intArgOrDefault(args, "limit", defaultReadLines)

	abs, rel, err := workset.Resolve(t.workingSet.Root(), path)
	if err != nil {
		return errorResult(err.Error())
	}
	if !t.workingSet.Contains(rel) {
		return errorResult(fmt.Sprintf("%s is not in the working set; call %s first", rel, ToolAddToWorkingSet))
	}

	// Print lines [offset, offset+limit-1] with their numbers, then the total
	// line count so truncation can be detected.
	endLine := offset + limit - 1
	awkScript := fmt.Sprintf(
		`awk 'NR>=%d && NR<=%d { printf "%%6d\t%%s\n", NR, substr($0, 1, %d) } END { printf "\n__TOTAL_LINES__%%d\n", NR }' '%s'`,
		offset, endLine, maxLineLength, strings.ReplaceAll(abs, "'", "'\"'\"'"),
	)
	result, err := t.executor.Run(ctx, execpkg.ShellCommand(awkScript), &execpkg.Opts{WorkDir: t.workingSet.Root()})
	if err != nil {
		return errorResult(fmt.Sprintf("file not readable: %s (error: %v)", rel, err))
	}
	if result.ExitCode != 0 {
		return errorResult(fmt.Sprintf("file not readable: %s (exit code: %d, output: %s)", rel, result.ExitCode, result.Output()))
	}

	output := result.Stdout
	totalLines := 0
	truncated := false
	if idx := strings.LastIndex(output, "\n__TOTAL_LINES__"); idx >= 0 {
		lineCountStr := strings.TrimSpace(output[idx+len("\n__TOTAL_LINES__"):])
		output = output[:idx]
		if _, scanErr := fmt.Sscanf(lineCountStr, "%d", &totalLines); scanErr == nil {
			truncated = totalLines > endLine
		}
	}
	if int64(len(output)) > t.maxSizeBytes {
		output = output[:t.maxSizeBytes]
		truncated = true
	}

	return jsonResult(map[string]any{
		"success":     true,
		"content":     output,
		"path":        rel,
		"truncated":   truncated,
		"offset":      offset,
		"limit":       limit,
		"total_lines": totalLines,
	})
}

// errorResult creates a JSON error response.
func errorResult(msg string) (*ExecResult, error) {
	return jsonResult(map[string]any{
		"success": false,
		"error":   msg,
	})
}

func jsonResult(m map[string]any) (*ExecResult, error) {
	content, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &ExecResult{Content: string(content)}, nil
}
