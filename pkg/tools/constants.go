package tools

// Tool name constants - use these instead of magic strings to prevent typos.
const (
	// Privileged tools handled specially by the lifecycle manager.
	ToolApplyDiff     = "apply_diff"
	ToolRunValidation = "run_validation"

	// Generic tools.
	ToolReadFile         = "read_file"
	ToolListFiles        = "list_files"
	ToolAddToWorkingSet  = "add_to_working_set"
	ToolCommitSelfUpdate = "commit_self_update"
	ToolGetDiff          = "get_diff"
)
