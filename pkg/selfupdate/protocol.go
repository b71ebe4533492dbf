package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pilot/pkg/build"
	"pilot/pkg/logx"
	"pilot/pkg/metrics"
	"pilot/pkg/validation"
)

// DefaultMaxAttempts bounds rollback-rebuild-restart cycles for one update.
const DefaultMaxAttempts = 2

// Decision tells startup whether to continue into the interactive loop.
type Decision int

const (
	// Proceed continues normal startup. No sentinel is left behind.
	Proceed Decision = iota
	// Restart means the process was re-executed; startup must stop.
	Restart
)

func (d Decision) String() string {
	if d == Restart {
		return "restart"
	}
	return "proceed"
}

// Outcome labels how a protocol run ended.
type Outcome string

// Protocol outcomes, also used as the rollback metric label.
const (
	OutcomeNoSentinel         Outcome = "no_sentinel"
	OutcomeUnreadable         Outcome = "unreadable"
	OutcomeNoValidation       Outcome = "no_validation"
	OutcomeValidated          Outcome = "validated"
	OutcomeManualIntervention Outcome = "manual_intervention"
	OutcomeRevertFailed       Outcome = "revert_failed"
	OutcomeCompileFailed      Outcome = "compile_failed"
	OutcomePackageFailed      Outcome = "package_failed"
	OutcomeRewriteFailed      Outcome = "rewrite_failed"
	OutcomeRestarted          Outcome = "restarted"
	OutcomeRestartFailed      Outcome = "restart_failed"
)

// Step is one recorded stage of a protocol run.
type Step struct {
	Name    string
	Success bool
	Detail  string
}

// Report describes a protocol run.
type Report struct {
	Decision Decision
	Outcome  Outcome
	Sentinel *Sentinel
	Steps    []Step
}

func (r *Report) add(name string, success bool, detail string) {
	r.Steps = append(r.Steps, Step{Name: name, Success: success, Detail: strings.TrimSpace(detail)})
}

// String renders the report for the console.
func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "self-update check: %s (%s)", r.Outcome, r.Decision)
	if r.Sentinel != nil {
		fmt.Fprintf(&sb, "\n  update: %s %q attempt %d", r.Sentinel.FilePath, r.Sentinel.CommitMessage, r.Sentinel.Attempt)
	}
	for _, step := range r.Steps {
		mark := "ok"
		if !step.Success {
			mark = "FAILED"
		}
		fmt.Fprintf(&sb, "\n  %s: %s", step.Name, mark)
		if step.Detail != "" && !step.Success {
			fmt.Fprintf(&sb, "\n%s", indent(truncate(step.Detail, 2000), "    "))
		}
	}
	return sb.String()
}

// Validator runs the project's validation command.
type Validator interface {
	Run(ctx context.Context, command string) validation.Result
}

// Reverter restores a file to its state before its last commit.
type Reverter interface {
	RevertFile(ctx context.Context, path string) error
}

// Restarter re-executes the current process. On success it does not return.
type Restarter interface {
	Restart() error
}

// RestarterFunc adapts a function to Restarter.
type RestarterFunc func() error

// Restart implements Restarter.
func (f RestarterFunc) Restart() error { return f() }

// ProtocolDeps are the collaborators of a Protocol.
type ProtocolDeps struct {
	Store             *Store
	ValidationCommand string
	Validator         Validator
	Reverter          Reverter
	Builder           build.Builder
	Restarter         Restarter
	MaxAttempts       int
	Recorder          metrics.Recorder
	Now               func() time.Time
}

// Protocol validates a pending self-update at startup and rolls it back
// when validation fails.
type Protocol struct {
	deps   ProtocolDeps
	logger *logx.Logger
}

// ErrRestartFailed is returned when the rebuilt program could not be
// re-executed. The sentinel has already been advanced, so the caller must exit.
var ErrRestartFailed = errors.New("restart after rollback failed")

// NewProtocol creates a Protocol, filling defaults for optional deps.
func NewProtocol(deps ProtocolDeps) (*Protocol, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("sentinel store is required")
	}
	if deps.Validator == nil || deps.Reverter == nil || deps.Builder == nil || deps.Restarter == nil {
		return nil, fmt.Errorf("validator, reverter, builder and restarter are required")
	}
	if deps.MaxAttempts < 1 {
		deps.MaxAttempts = DefaultMaxAttempts
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Protocol{deps: deps, logger: logx.NewLogger("selfupdate")}, nil
}

// Run executes the protocol. Every path either deletes the sentinel and
// returns Proceed, or rewrites it with the next attempt and restarts.
// A non-nil error means the restart itself failed.
func (p *Protocol) Run(ctx context.Context) (*Report, error) {
	report := &Report{Decision: Proceed}
	err := p.run(ctx, report)
	p.deps.Recorder.IncRollback(string(report.Outcome))

	switch {
	case err != nil:
		p.logger.Error("💥 %s", report)
	case report.Outcome == OutcomeNoSentinel:
		p.logger.Debug("No pending self-update")
	case report.Outcome == OutcomeValidated || report.Outcome == OutcomeNoValidation:
		p.logger.Info("✅ %s", report)
	default:
		p.logger.Warn("⚠️  %s", report)
	}
	return report, err
}

func (p *Protocol) run(ctx context.Context, report *Report) error {
	sentinel, err := p.deps.Store.Load()
	if errors.Is(err, ErrNoSentinel) {
		report.Outcome = OutcomeNoSentinel
		return nil
	}
	if err != nil {
		report.add("read sentinel", false, err.Error())
		return p.finish(report, OutcomeUnreadable)
	}
	report.Sentinel = sentinel
	p.logger.Info("🔎 Pending self-update to %s (attempt %d of %d)", sentinel.FilePath, sentinel.Attempt, p.deps.MaxAttempts)

	command := strings.TrimSpace(p.deps.ValidationCommand)
	if command == "" {
		report.add("validate", true, "no validation command configured; update accepted")
		return p.finish(report, OutcomeNoValidation)
	}

	result := p.deps.Validator.Run(ctx, command)
	report.add("validate", result.Success, result.Format())
	if result.Success {
		return p.finish(report, OutcomeValidated)
	}

	if sentinel.Attempt >= p.deps.MaxAttempts {
		p.logger.Error("🛑 Self-update to %s still fails after %d attempts; manual intervention required", sentinel.FilePath, sentinel.Attempt)
		report.add("max attempts", false, fmt.Sprintf("attempt %d reached the limit of %d; manual intervention required", sentinel.Attempt, p.deps.MaxAttempts))
		return p.finish(report, OutcomeManualIntervention)
	}

	if err := p.deps.Reverter.RevertFile(ctx, sentinel.FilePath); err != nil {
		report.add("revert", false, err.Error())
		return p.finish(report, OutcomeRevertFailed)
	}
	report.add("revert", true, "")

	compiled := p.deps.Builder.Compile(ctx)
	if !compiled.Success {
		report.add("compile", false, "reverted but fails to build; manual intervention required\n"+compiled.Output)
		return p.finish(report, OutcomeCompileFailed)
	}
	report.add("compile", true, compiled.Output)

	packaged := p.deps.Builder.Package(ctx)
	if !packaged.Success {
		report.add("package", false, packaged.Output)
		return p.finish(report, OutcomePackageFailed)
	}
	report.add("package", true, packaged.Output)

	next := &Sentinel{
		FilePath:        sentinel.FilePath,
		CommitMessage:   sentinel.CommitMessage,
		TimestampMillis: p.deps.Now().UnixMilli(),
		Attempt:         sentinel.Attempt + 1,
	}
	if err := p.deps.Store.Save(next); err != nil {
		report.add("rewrite sentinel", false, err.Error())
		return p.finish(report, OutcomeRewriteFailed)
	}
	report.add("rewrite sentinel", true, fmt.Sprintf("attempt %d", next.Attempt))

	report.Decision = Restart
	report.Outcome = OutcomeRestarted
	p.logger.Info("🔄 Rolled back %s, restarting (attempt %d)", sentinel.FilePath, next.Attempt)
	if err := p.deps.Restarter.Restart(); err != nil {
		report.Outcome = OutcomeRestartFailed
		report.add("restart", false, err.Error())
		return fmt.Errorf("%w: %w", ErrRestartFailed, err)
	}
	return nil
}

// finish deletes the sentinel and records a Proceed outcome. A delete
// failure is recorded but does not change the decision.
func (p *Protocol) finish(report *Report, outcome Outcome) error {
	report.Outcome = outcome
	report.Decision = Proceed
	if err := p.deps.Store.Delete(); err != nil {
		report.add("delete sentinel", false, err.Error())
		p.logger.Error("Failed to delete sentinel %s: %v", p.deps.Store.Path(), err)
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
