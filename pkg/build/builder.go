package build

import (
	"context"
	"strings"
	"time"

	"pilot/pkg/config"
	"pilot/pkg/exec"
	"pilot/pkg/logx"
)

// DefaultTimeout bounds a compile or package step.
const DefaultTimeout = 10 * time.Minute

// Result is the outcome of a compile or package step.
type Result struct {
	Success bool
	Output  string
}

// Builder is the build collaborator of the rollback protocol.
type Builder interface {
	Compile(ctx context.Context) Result
	Package(ctx context.Context) Result
	RunCommand(ctx context.Context, argv []string) (exitCode int, output string)
}

// CommandBuilder runs build steps as shell commands in the project root.
// Configured commands win over the detected backend's defaults.
type CommandBuilder struct {
	executor       exec.Executor
	root           string
	compileCommand string
	packageCommand string
	timeout        time.Duration
	logger         *logx.Logger
}

// NewCommandBuilder resolves the compile and package commands for root.
func NewCommandBuilder(executor exec.Executor, root string, cfg *config.BuildConfig, registry *Registry) *CommandBuilder {
	b := &CommandBuilder{
		executor: executor,
		root:     root,
		timeout:  DefaultTimeout,
		logger:   logx.NewLogger("build"),
	}
	if cfg != nil {
		b.compileCommand = strings.TrimSpace(cfg.Compile)
		b.packageCommand = strings.TrimSpace(cfg.Package)
	}

	if registry != nil && (b.compileCommand == "" || b.packageCommand == "") {
		name := ""
		if cfg != nil {
			name = strings.TrimSpace(cfg.Backend)
		}
		if backend := b.resolveBackend(registry, root, name); backend != nil {
			if b.compileCommand == "" {
				b.compileCommand = backend.CompileCommand(root)
			}
			if b.packageCommand == "" {
				b.packageCommand = backend.PackageCommand(root)
			}
		}
	}
	return b
}

// resolveBackend returns the named backend, or the detected one when name is
// blank or unknown.
func (b *CommandBuilder) resolveBackend(registry *Registry, root, name string) Backend {
	if name != "" {
		backend, err := registry.GetByName(name)
		if err == nil {
			b.logger.Debug("Using configured %s backend", name)
			return backend
		}
		b.logger.Warn("⚠️  %v; falling back to detection", err)
	}
	backend, err := registry.Detect(root)
	if err != nil {
		return nil
	}
	b.logger.Debug("Detected %s backend for %s", backend.Name(), root)
	return backend
}

// Commands returns the resolved compile and package commands.
func (b *CommandBuilder) Commands() (compile, pkg string) {
	return b.compileCommand, b.packageCommand
}

// Compile runs the compile command. A blank command succeeds.
func (b *CommandBuilder) Compile(ctx context.Context) Result {
	return b.step(ctx, "compile", b.compileCommand)
}

// Package runs the package command. A blank command succeeds.
func (b *CommandBuilder) Package(ctx context.Context) Result {
	return b.step(ctx, "package", b.packageCommand)
}

func (b *CommandBuilder) step(ctx context.Context, name, command string) Result {
	if command == "" {
		b.logger.Info("⏭️  No %s command configured, skipping", name)
		return Result{Success: true, Output: "no " + name + " command configured; skipped"}
	}

	b.logger.Info("🔨 Running %s: %s", name, command)
	code, output := b.RunCommand(ctx, exec.ShellCommand(command))
	if code != 0 {
		b.logger.Warn("❌ %s failed with exit code %d", name, code)
		return Result{Success: false, Output: output}
	}
	b.logger.Info("✅ %s succeeded", name)
	return Result{Success: true, Output: output}
}

// RunCommand runs argv in the project root with merged output. Failures to
// start report exit code -1.
func (b *CommandBuilder) RunCommand(ctx context.Context, argv []string) (int, string) {
	res, err := b.executor.Run(ctx, argv, &exec.Opts{
		WorkDir:     b.root,
		Timeout:     b.timeout,
		MergeOutput: true,
	})
	output := res.Output()
	if err != nil {
		if output != "" {
			output += "\n"
		}
		output += err.Error()
		if res.ExitCode == 0 {
			return -1, output
		}
	}
	return res.ExitCode, output
}

// shellQuote wraps s in single quotes for sh -c.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
