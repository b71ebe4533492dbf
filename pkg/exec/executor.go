// Package exec provides the command execution abstraction used for validation,
// build and version-control commands.
package exec

import (
	"context"
	"time"
)

// ExecutorType represents the type of executor.
type ExecutorType string

const ExecutorTypeLocal ExecutorType = "local"

// Executor defines the interface for executing commands.
type Executor interface {
	// Run executes a command with the given options and returns the result.
	// A non-zero exit status is reported through Result.ExitCode, not as an error.
	Run(ctx context.Context, cmd []string, opts *Opts) (Result, error)

	// Name returns the executor type name for logging/debugging.
	Name() ExecutorType
}

// Opts contains options for command execution.
type Opts struct {
	// Env contains extra environment variables (KEY=VALUE format).
	Env []string

	// WorkDir is the working directory for the command.
	WorkDir string

	// Timeout is the maximum duration for command execution. Zero means none.
	Timeout time.Duration

	// MergeOutput sends stderr into the same buffer as stdout, preserving
	// interleaving. Result.Stderr is empty when set.
	MergeOutput bool
}

// Result contains the result of command execution.
type Result struct {
	Stdout       string
	Stderr       string
	ExecutorUsed string
	Duration     time.Duration
	ExitCode     int
}

// Output returns stdout and stderr joined for display.
func (r Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// DefaultExecOpts returns default execution options.
func DefaultExecOpts() Opts {
	return Opts{
		Timeout: 5 * time.Minute,
	}
}

// ShellCommand wraps a shell command line for Run.
func ShellCommand(line string) []string {
	return []string{"sh", "-c", line}
}
