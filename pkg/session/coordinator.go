// Package session owns the interactive session: a single event loop that
// applies agent completions, human replies and slash commands one at a time.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"pilot/pkg/agent"
	"pilot/pkg/console"
	"pilot/pkg/diff"
	"pilot/pkg/interaction"
	"pilot/pkg/lifecycle"
	"pilot/pkg/logx"
	"pilot/pkg/metrics"
	"pilot/pkg/persistence"
	"pilot/pkg/turn"
	"pilot/pkg/workset"
)

// UpdateWatcher reports whether a committed self-update awaits a restart.
type UpdateWatcher interface {
	Pending() bool
}

// Restarter re-executes the process. On success it does not return.
type Restarter interface {
	Restart() error
}

// Deps are the collaborators of a Coordinator. DB, Gatherer, Updates and
// Restarter are optional.
type Deps struct {
	SessionID  string
	Agent      agent.Agent
	History    *agent.History
	Turn       *turn.StateMachine
	Lifecycle  *lifecycle.Manager
	WorkingSet *workset.Set
	Engine     *diff.Engine
	Console    *console.Console
	Input      *console.LineReader
	DB         *sql.DB
	Recorder   metrics.Recorder
	Gatherer   prometheus.Gatherer
	Updates    UpdateWatcher
	Restarter  Restarter
}

// Coordinator is the single owner of session state.
type Coordinator struct {
	sessionID string
	service   *agent.Service
	history   *agent.History
	turn      *turn.StateMachine
	ws        *workset.Set
	engine    *diff.Engine
	console   *console.Console
	input     *console.LineReader
	db        *sql.DB
	gatherer  prometheus.Gatherer
	updates   UpdateWatcher
	restarter Restarter
	recorder  metrics.Recorder
	logger    *logx.Logger

	events      chan func()
	transitions chan turn.Transition
	done        chan struct{}
	pending     *interaction.Pending
	exiting     bool
}

// New wires the agent interaction service to the coordinator's loop.
func New(deps Deps) (*Coordinator, error) {
	if deps.Console == nil || deps.Input == nil {
		return nil, errors.New("console and input are required")
	}
	if deps.WorkingSet == nil || deps.Engine == nil {
		return nil, errors.New("working set and diff engine are required")
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.Nop()
	}

	c := &Coordinator{
		sessionID:   deps.SessionID,
		history:     deps.History,
		turn:        deps.Turn,
		ws:          deps.WorkingSet,
		engine:      deps.Engine,
		console:     deps.Console,
		input:       deps.Input,
		db:          deps.DB,
		gatherer:    deps.Gatherer,
		updates:     deps.Updates,
		restarter:   deps.Restarter,
		recorder:    deps.Recorder,
		logger:      logx.NewLogger("session"),
		events:      make(chan func(), 16),
		transitions: make(chan turn.Transition, 32),
		done:        make(chan struct{}),
	}

	svc, err := agent.NewService(agent.ServiceDeps{
		Agent:     deps.Agent,
		History:   deps.History,
		Turn:      deps.Turn,
		Lifecycle: deps.Lifecycle,
		Dispatch:  c.Dispatch,
		OnStep:    c.onStep,
		OnTurnEnd: c.onTurnEnd,
		OnMessage: c.onMessage,
		Recorder:  deps.Recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent service: %w", err)
	}
	c.service = svc
	c.turn.SetNotificationChannel(c.transitions)
	return c, nil
}

// Dispatch queues fn for the event loop. It is safe to call from any
// goroutine; after the loop stops, fn is dropped.
func (c *Coordinator) Dispatch(fn func()) {
	select {
	case c.events <- fn:
	case <-c.done:
	}
}

// Run processes events until /exit, end of input or ctx cancellation.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)

	c.console.Printf("Type a request, or /help for commands.")
	c.console.Prompt()
	c.input.Next()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Session interrupted: %v", ctx.Err())
			return nil
		case fn := <-c.events:
			fn()
		case tr := <-c.transitions:
			c.observeTransition(ctx, tr)
		case line, ok := <-c.input.Lines():
			if !ok {
				if err := c.input.Err(); err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				c.logger.Info("End of input, leaving session")
				return nil
			}
			c.handleLine(ctx, line)
			if c.exiting {
				return nil
			}
			c.input.Next()
		}
	}
}

// handleLine routes one line of input: an answer to the pending interaction,
// a slash command, or a new request for the agent.
func (c *Coordinator) handleLine(ctx context.Context, line string) {
	cmd, isCommand := console.ParseCommand(line)
	if isCommand && cmd.Name == console.CmdExit {
		c.exiting = true
		return
	}

	if c.pending != nil {
		if isCommand {
			c.console.Printf("Answer the pending question first.")
			c.console.Render(c.pending.Request)
			return
		}
		c.answer(ctx, line)
		return
	}

	if isCommand {
		c.runCommand(ctx, cmd)
		c.promptIfIdle()
		return
	}

	text := strings.TrimSpace(line)
	if text == "" {
		c.promptIfIdle()
		return
	}
	c.submit(ctx, text, false)
}

func (c *Coordinator) answer(ctx context.Context, line string) {
	reply, ok := c.console.ParseReply(ctx, c.pending.Request, line)
	if !ok {
		c.console.Render(c.pending.Request)
		return
	}
	p := c.pending
	c.pending = nil
	c.service.Drive(ctx, p.Resume(ctx, reply))
}

func (c *Coordinator) submit(ctx context.Context, text string, expectPlan bool) {
	err := c.service.Submit(ctx, text, expectPlan)
	switch {
	case errors.Is(err, turn.ErrBusy):
		c.console.Printf("⏳ The agent is busy; wait for the current turn to finish.")
	case err != nil:
		c.logger.Error("Failed to start turn: %v", err)
		c.console.Printf("❌ %v", err)
		c.promptIfIdle()
	default:
		c.console.Printf("🤔 Thinking...")
	}
}

func (c *Coordinator) onStep(_ context.Context, step interaction.Step) {
	c.pending = step.Pending
	c.console.Render(step.Pending.Request)
}

func (c *Coordinator) onMessage(msg agent.Message) {
	switch msg.Role {
	case agent.RoleAssistant:
		if text := strings.TrimSpace(msg.Content); text != "" {
			c.console.Printf("🤖 %s", text)
		}
	case agent.RoleNote:
		c.console.Printf("ℹ️  %s", msg.Content)
	case agent.RoleTool:
		c.console.Printf("🔧 %s:\n%s", msg.ToolName, truncate(msg.Content, 1500))
	}
}

// onTurnEnd persists the session and hands over to a pending self-update.
func (c *Coordinator) onTurnEnd(_ context.Context) {
	c.saveSnapshot()

	if c.updates != nil && c.restarter != nil && c.updates.Pending() {
		c.console.Printf("🔄 Self-update committed, restarting to validate it...")
		c.markSession(persistence.SessionStatusRestarted)
		if err := c.restarter.Restart(); err != nil {
			c.logger.Error("Restart failed: %v", err)
			c.console.Printf("❌ Restart failed: %v. The update will be validated on the next start.", err)
			c.markSession(persistence.SessionStatusActive)
		}
	}
	c.promptIfIdle()
}

func (c *Coordinator) observeTransition(ctx context.Context, tr turn.Transition) {
	c.recorder.IncStateTransition(tr.From.String(), tr.To.String())
	logx.Debug(ctx, "turn", "%s -> %s (%s)", tr.From, tr.To, tr.Reason)
}

func (c *Coordinator) promptIfIdle() {
	if c.pending == nil && c.turn.AcceptsInput() {
		c.console.Prompt()
	}
}

func truncate(s string, limit int) string {
	s = strings.TrimRight(s, "\n")
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}
