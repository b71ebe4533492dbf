package tools

import (
	"context"
	"fmt"

	"pilot/pkg/logx"
	"pilot/pkg/workset"
)

// AddToWorkingSetTool lets the agent bring existing files into the working set.
type AddToWorkingSetTool struct {
	workingSet *workset.Set
	logger     *logx.Logger
}

// NewAddToWorkingSetTool creates the add_to_working_set tool.
func NewAddToWorkingSetTool(ws *workset.Set) *AddToWorkingSetTool {
	return &AddToWorkingSetTool{workingSet: ws, logger: logx.NewLogger("tools")}
}

// Name returns the tool name.
func (t *AddToWorkingSetTool) Name() string {
	return ToolAddToWorkingSet
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *AddToWorkingSetTool) PromptDocumentation() string {
	return `- **add_to_working_set** - Add an existing project file to the working set
  - Parameters: path (string, REQUIRED)
  - Required before read_file or modifying the file with apply_diff`
}

// Definition returns the tool definition for LLM.
func (t *AddToWorkingSetTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolAddToWorkingSet,
		Description: "Add an existing project file to the working set so it can be read and modified.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {Type: "string", Description: "Path relative to the project root"},
			},
			Required: []string{"path"},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *AddToWorkingSetTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	rel, err := t.workingSet.Add(path)
	if err != nil {
		return errorResult(err.Error())
	}
	t.logger.Info("📎 Agent added %s to the working set", rel)
	return &ExecResult{Content: fmt.Sprintf("Added %s to the working set.", rel)}, nil
}
