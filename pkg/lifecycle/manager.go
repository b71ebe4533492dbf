// Package lifecycle wraps tool execution with the review and validation
// protocol: diffs are reviewed before they are applied, and a successful
// application may be followed by a confirmed validation run.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"pilot/pkg/diff"
	"pilot/pkg/interaction"
	"pilot/pkg/logx"
	"pilot/pkg/metrics"
	"pilot/pkg/tools"
	"pilot/pkg/turn"
)

// RejectedResult is the tool result when the user rejects a diff.
const RejectedResult = "User rejected the changes."

// FinishFunc ends the turn with a tool result and returns what comes next.
type FinishFunc func(ctx context.Context, result string) interaction.Step

// Manager applies the lifecycle rules to tool requests.
type Manager struct {
	executor *tools.Executor
	turn     *turn.StateMachine
	recorder metrics.Recorder
	logger   *logx.Logger

	// lastValidationChoice is shown as the default of the next validation
	// prompt. Nil until the user has answered once.
	lastValidationChoice *bool
}

// NewManager creates a lifecycle manager.
func NewManager(executor *tools.Executor, sm *turn.StateMachine, recorder metrics.Recorder) *Manager {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Manager{
		executor: executor,
		turn:     sm,
		recorder: recorder,
		logger:   logx.NewLogger("lifecycle"),
	}
}

// Handle processes one tool request. Diff application goes through review;
// everything else runs immediately and finishes the turn.
func (m *Manager) Handle(ctx context.Context, req tools.Request, finish FinishFunc) interaction.Step {
	tool, err := m.executor.Registry().Get(req.Name)
	if err != nil {
		m.logger.Warn("Agent requested unknown tool %q", req.Name)
		return finish(ctx, fmt.Sprintf("Error: %v", err))
	}

	switch t := tool.(type) {
	case *tools.ApplyDiffTool:
		return m.reviewDiff(ctx, req, finish)
	case *tools.RunValidationTool:
		m.logger.Info("🧪 Agent requested validation run")
		return finish(ctx, t.Validate(ctx).Format())
	default:
		return finish(ctx, m.Execute(ctx, req))
	}
}

// Execute runs req through the tool executor. Errors become text.
func (m *Manager) Execute(ctx context.Context, req tools.Request) string {
	start := time.Now()
	out, err := m.executor.Execute(ctx, req)
	m.recorder.ObserveToolExecution(req.Name, err == nil, time.Since(start))
	if err != nil {
		m.logger.Warn("Tool %s failed: %v", req.Name, err)
		return fmt.Sprintf("Error: %v", err)
	}
	return out
}

func (m *Manager) reviewDiff(ctx context.Context, req tools.Request, finish FinishFunc) interaction.Step {
	text, err := tools.DiffFromArgs(req.Arguments)
	if err != nil {
		return finish(ctx, fmt.Sprintf("Error: %v", err))
	}
	if err := m.turn.TransitionTo(turn.StateWaitingConfirmation, "diff review"); err != nil {
		return finish(ctx, fmt.Sprintf("Error: %v", err))
	}

	review := interaction.Request{
		Kind:  interaction.KindDiffReview,
		Title: "Review proposed changes:\n" + diff.Summary(text),
		Text:  text,
	}
	return interaction.Wait(review, func(ctx context.Context, reply interaction.Reply) interaction.Step {
		if err := m.turn.TransitionTo(turn.StateThinking, "diff reviewed"); err != nil {
			m.logger.Error("Failed to leave review state: %v", err)
		}
		if !reply.Approved {
			m.recorder.IncDecision(string(interaction.KindDiffReview), "reject")
			m.logger.Info("🚫 Diff rejected by user")
			return finish(ctx, RejectedResult)
		}

		if reply.Edited {
			m.recorder.IncDecision(string(interaction.KindDiffReview), "edit")
			args, err := tools.ArgsWithDiff(req.Arguments, reply.Text)
			if err != nil {
				return finish(ctx, fmt.Sprintf("Error: %v", err))
			}
			req.Arguments = args
			m.logger.Info("✏️  Applying user-edited diff")
		} else {
			m.recorder.IncDecision(string(interaction.KindDiffReview), "accept")
		}
		return m.applyDiff(ctx, req, finish)
	})
}

func (m *Manager) applyDiff(ctx context.Context, req tools.Request, finish FinishFunc) interaction.Step {
	start := time.Now()
	result, err := m.executor.Execute(ctx, req)
	m.recorder.ObserveToolExecution(req.Name, err == nil, time.Since(start))
	m.recorder.IncDiffApply(err == nil)
	if err != nil {
		m.logger.Warn("❌ Diff application failed: %v", err)
		return finish(ctx, fmt.Sprintf("Error applying diff: %v", err))
	}

	validator := m.validator()
	if validator == nil || !validator.Configured() {
		return finish(ctx, result)
	}
	return m.confirmValidation(ctx, validator, result, finish)
}

func (m *Manager) confirmValidation(ctx context.Context, validator *tools.RunValidationTool, result string, finish FinishFunc) interaction.Step {
	if err := m.turn.TransitionTo(turn.StateWaitingConfirmation, "validation prompt"); err != nil {
		return finish(ctx, result)
	}

	prompt := interaction.Request{
		Kind:        interaction.KindConfirm,
		Title:       "Run validation command?",
		Text:        validator.Command(),
		DefaultHint: m.validationHint(),
	}
	return interaction.Wait(prompt, func(ctx context.Context, reply interaction.Reply) interaction.Step {
		choice := reply.Approved
		m.lastValidationChoice = &choice
		if err := m.turn.TransitionTo(turn.StateThinking, "validation answered"); err != nil {
			m.logger.Error("Failed to leave confirmation state: %v", err)
		}

		if !reply.Approved {
			m.recorder.IncDecision("validation", "reject")
			return finish(ctx, result)
		}
		m.recorder.IncDecision("validation", "accept")
		vr := validator.Validate(ctx)
		return finish(ctx, result+"\n\n"+vr.Format())
	})
}

// validationHint renders the remembered answer. It is display-only.
func (m *Manager) validationHint() string {
	switch {
	case m.lastValidationChoice == nil:
		return ""
	case *m.lastValidationChoice:
		return "y"
	default:
		return "n"
	}
}

func (m *Manager) validator() *tools.RunValidationTool {
	tool, err := m.executor.Registry().Get(tools.ToolRunValidation)
	if err != nil {
		return nil
	}
	v, _ := tool.(*tools.RunValidationTool)
	return v
}
