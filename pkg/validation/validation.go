// Package validation runs the project's configured validation command and
// normalizes its outcome.
package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pilot/pkg/exec"
	"pilot/pkg/logx"
)

// ErrNoCommand is the Result.Error text reported when no command is configured.
const ErrNoCommand = "no command configured"

// Result is the normalized outcome of a validation run.
type Result struct {
	ExitCode int    `json:"exit_code"`
	Success  bool   `json:"success"`
	Output   string `json:"output"`
	Error    string `json:"error,omitempty"`
}

// Runner runs a single shell command line in a project directory.
type Runner struct {
	executor exec.Executor
	dir      string
	timeout  time.Duration
	logger   *logx.Logger
}

// NewRunner creates a Runner. A zero timeout disables the deadline.
func NewRunner(executor exec.Executor, dir string, timeout time.Duration) *Runner {
	return &Runner{
		executor: executor,
		dir:      dir,
		timeout:  timeout,
		logger:   logx.NewLogger("validation"),
	}
}

// Run executes command via sh -c with stdout and stderr merged. A blank
// command is not attempted and yields Success=false with ErrNoCommand.
func (r *Runner) Run(ctx context.Context, command string) Result {
	command = strings.TrimSpace(command)
	if command == "" {
		return Result{ExitCode: -1, Error: ErrNoCommand}
	}

	r.logger.Info("🧪 Running validation command: %s", command)
	res, err := r.executor.Run(ctx, exec.ShellCommand(command), &exec.Opts{
		WorkDir:     r.dir,
		Timeout:     r.timeout,
		MergeOutput: true,
	})
	if err != nil {
		r.logger.Warn("Validation command could not be run: %v", err)
		return Result{
			ExitCode: res.ExitCode,
			Output:   res.Output(),
			Error:    err.Error(),
		}
	}

	result := Result{
		ExitCode: res.ExitCode,
		Success:  res.ExitCode == 0,
		Output:   res.Output(),
	}
	if result.Success {
		r.logger.Info("✅ Validation passed in %s", res.Duration.Round(time.Millisecond))
	} else {
		r.logger.Warn("❌ Validation failed with exit code %d", res.ExitCode)
	}
	return result
}

// Format renders a result for inclusion in a tool result message.
func (r Result) Format() string {
	var b strings.Builder
	if r.Success {
		b.WriteString("Validation passed (exit code 0).")
	} else {
		fmt.Fprintf(&b, "Validation failed (exit code %d).", r.ExitCode)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "\nError: %s", r.Error)
	}
	if out := strings.TrimSpace(r.Output); out != "" {
		fmt.Fprintf(&b, "\nOutput:\n%s", out)
	}
	return b.String()
}
