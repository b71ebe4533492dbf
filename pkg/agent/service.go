package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pilot/pkg/interaction"
	"pilot/pkg/lifecycle"
	"pilot/pkg/logx"
	"pilot/pkg/metrics"
	"pilot/pkg/tools"
	"pilot/pkg/turn"
)

const (
	notePlanApproved       = "The user approved the plan. Carry it out."
	notePlanRejected       = "The user rejected the plan. Propose a new plan."
	toolNotRunPlanRejected = "Not executed: the plan was rejected."
)

// Dispatcher runs fn on the goroutine that owns session state.
type Dispatcher func(fn func())

// StepHandler receives suspended steps so the interactive surface can ask
// the human.
type StepHandler func(ctx context.Context, step interaction.Step)

// TurnEndHook runs on the owner goroutine after a turn returns to IDLE.
type TurnEndHook func(ctx context.Context)

// ServiceDeps are the collaborators of a Service. Agent, History, Turn,
// Lifecycle and Dispatch are required.
type ServiceDeps struct {
	Agent     Agent
	History   *History
	Turn      *turn.StateMachine
	Lifecycle *lifecycle.Manager
	Dispatch  Dispatcher
	OnStep    StepHandler
	OnTurnEnd TurnEndHook
	// OnMessage sees every message appended to history.
	OnMessage func(Message)
	Recorder  metrics.Recorder
}

// Service runs turns: it invokes the agent in the background and interprets
// each response as a plan, a tool request or a final answer.
type Service struct {
	agent     Agent
	history   *History
	turn      *turn.StateMachine
	lifecycle *lifecycle.Manager
	dispatch  Dispatcher
	onStep    StepHandler
	onTurnEnd TurnEndHook
	onMessage func(Message)
	recorder  metrics.Recorder
	logger    *logx.Logger
}

// NewService validates deps and creates a Service.
func NewService(deps ServiceDeps) (*Service, error) {
	switch {
	case deps.Agent == nil:
		return nil, errors.New("agent is required")
	case deps.History == nil:
		return nil, errors.New("history is required")
	case deps.Turn == nil:
		return nil, errors.New("turn state machine is required")
	case deps.Lifecycle == nil:
		return nil, errors.New("lifecycle manager is required")
	case deps.Dispatch == nil:
		return nil, errors.New("dispatcher is required")
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.Nop()
	}
	return &Service{
		agent:     deps.Agent,
		history:   deps.History,
		turn:      deps.Turn,
		lifecycle: deps.Lifecycle,
		dispatch:  deps.Dispatch,
		onStep:    deps.OnStep,
		onTurnEnd: deps.OnTurnEnd,
		onMessage: deps.OnMessage,
		recorder:  deps.Recorder,
		logger:    logx.NewLogger("agent"),
	}, nil
}

// History returns the conversation owned by the service.
func (s *Service) History() *History {
	return s.history
}

// Submit starts a turn for free-form user input. Input is only accepted in
// IDLE; otherwise turn.ErrBusy is returned and nothing changes.
func (s *Service) Submit(ctx context.Context, text string, expectPlan bool) error {
	if err := s.turn.CheckInput(); err != nil {
		return err //nolint:wrapcheck // ErrBusy is matched by callers
	}
	s.append(Message{Role: RoleUser, Content: text})
	return s.ProcessTurn(ctx, expectPlan)
}

// ProcessTurn moves to THINKING and invokes the agent on a background
// goroutine. The response is handed back through the dispatcher.
func (s *Service) ProcessTurn(ctx context.Context, expectPlan bool) error {
	reason := "agent invoked"
	if expectPlan {
		reason = "agent invoked for a plan"
	}
	if err := s.turn.TransitionTo(turn.StateThinking, reason); err != nil {
		return fmt.Errorf("cannot start turn: %w", err)
	}

	msgs := s.history.Messages()
	s.logger.Info("🤔 Invoking %s with %d messages (expectPlan=%t)", s.agent.Model(), len(msgs), expectPlan)

	go func() {
		resp, err := s.act(ctx, msgs)
		s.dispatch(func() {
			s.Drive(ctx, s.Complete(ctx, expectPlan, resp, err))
		})
	}()
	return nil
}

func (s *Service) act(ctx context.Context, msgs []Message) (resp Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panicked: %v", r)
		}
	}()
	return s.agent.Act(ctx, msgs)
}

// Drive follows a step: continuations re-invoke the agent and suspended
// steps go to the step handler. Idle steps need nothing.
func (s *Service) Drive(ctx context.Context, step interaction.Step) {
	switch {
	case step.Pending != nil:
		if s.onStep != nil {
			s.onStep(ctx, step)
		}
	case step.Continue:
		if err := s.ProcessTurn(ctx, step.ExpectPlan); err != nil {
			s.logger.Error("Failed to continue turn: %v", err)
			s.endTurn(ctx, "error")
		}
	}
}

// Complete interprets one agent response. It must run on the owner goroutine.
func (s *Service) Complete(ctx context.Context, expectPlan bool, resp Response, err error) interaction.Step {
	if err != nil {
		s.logger.Error("❌ Agent invocation failed: %v", err)
		s.append(Message{Role: RoleNote, Content: fmt.Sprintf("Error: %v", err)})
		s.endTurn(ctx, "error")
		return interaction.Idle()
	}

	var first *tools.Request
	if resp.HasToolRequest() {
		first = &resp.ToolRequests[0]
	}
	if resp.Text != "" || first != nil {
		msg := Message{Role: RoleAssistant, Content: resp.Text}
		if first != nil {
			msg.ToolRequests = []tools.Request{*first}
		}
		s.append(msg)
	}
	if len(resp.ToolRequests) > 1 {
		s.flagSkipped(resp.ToolRequests[1:])
	}

	if expectPlan {
		return s.awaitPlanApproval(resp, first)
	}
	if first != nil {
		return s.handleTool(ctx, *first)
	}

	s.endTurn(ctx, "completed")
	return interaction.Idle()
}

func (s *Service) awaitPlanApproval(resp Response, first *tools.Request) interaction.Step {
	if err := s.turn.TransitionTo(turn.StateWaitingPlanApproval, "plan proposed"); err != nil {
		s.logger.Error("Failed to enter plan approval: %v", err)
	}
	plan := ExtractPlan(resp.Text)
	s.logger.Info("📋 Plan proposed (%d chars), awaiting approval", len(plan))

	req := interaction.Request{
		Kind:  interaction.KindPlanApproval,
		Title: "Approve this plan?",
		Text:  plan,
	}
	return interaction.Wait(req, func(ctx context.Context, reply interaction.Reply) interaction.Step {
		return s.resolvePlan(ctx, reply, first)
	})
}

func (s *Service) resolvePlan(ctx context.Context, reply interaction.Reply, first *tools.Request) interaction.Step {
	if !reply.Approved {
		s.recorder.IncDecision("plan", "rejected")
		if err := s.turn.TransitionTo(turn.StateThinking, "plan rejected"); err != nil {
			s.logger.Error("Failed to leave plan approval: %v", err)
		}
		if first != nil {
			s.append(Message{Role: RoleTool, Content: toolNotRunPlanRejected, ToolCallID: first.ID, ToolName: first.Name})
		}
		note := notePlanRejected
		if feedback := strings.TrimSpace(reply.Text); feedback != "" {
			note += " Feedback: " + feedback
		}
		s.append(Message{Role: RoleNote, Content: note})
		return interaction.Next(true)
	}

	s.recorder.IncDecision("plan", "approved")
	if err := s.turn.TransitionTo(turn.StateThinking, "plan approved"); err != nil {
		s.logger.Error("Failed to leave plan approval: %v", err)
	}
	s.append(Message{Role: RoleNote, Content: notePlanApproved})
	if first != nil {
		return s.handleTool(ctx, *first)
	}
	return interaction.Next(false)
}

func (s *Service) handleTool(ctx context.Context, req tools.Request) interaction.Step {
	s.logger.Info("🔧 Agent requested tool %s (id %s)", req.Name, req.ID)
	return s.lifecycle.Handle(ctx, req, func(_ context.Context, result string) interaction.Step {
		s.append(Message{Role: RoleTool, Content: result, ToolCallID: req.ID, ToolName: req.Name})
		return interaction.Next(false)
	})
}

// flagSkipped records tool requests beyond the first, which are not run.
func (s *Service) flagSkipped(skipped []tools.Request) {
	names := make([]string, 0, len(skipped))
	for _, req := range skipped {
		names = append(names, fmt.Sprintf("%s (id %s)", req.Name, req.ID))
	}
	s.logger.Warn("⚠️ Agent requested %d extra tool(s), only the first is processed: %s", len(skipped), strings.Join(names, ", "))
	s.recorder.AddToolRequestsSkipped(len(skipped))
	s.append(Message{
		Role:    RoleNote,
		Content: "Only one tool request per reply is processed. Not executed: " + strings.Join(names, ", "),
	})
}

func (s *Service) endTurn(ctx context.Context, outcome string) {
	if err := s.turn.TransitionTo(turn.StateIdle, "turn "+outcome); err != nil {
		s.logger.Error("Failed to end turn: %v", err)
		s.turn.ForceIdle("turn " + outcome)
	}
	s.recorder.IncTurn(outcome)
	if s.onTurnEnd != nil {
		s.onTurnEnd(ctx)
	}
}

func (s *Service) append(msg Message) {
	s.history.Append(msg)
	if s.onMessage != nil {
		s.onMessage(msg)
	}
}
