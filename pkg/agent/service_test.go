package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/pkg/diff"
	"pilot/pkg/interaction"
	"pilot/pkg/lifecycle"
	"pilot/pkg/metrics"
	"pilot/pkg/tools"
	"pilot/pkg/turn"
	"pilot/pkg/workset"
)

type scripted struct {
	resp  Response
	err   error
	panic bool
}

type scriptedAgent struct {
	mu      sync.Mutex
	script  []scripted
	calls   int
	history [][]Message
}

func (a *scriptedAgent) Model() string { return "scripted" }

func (a *scriptedAgent) Act(_ context.Context, history []Message) (Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, history)
	if a.calls >= len(a.script) {
		return Response{Text: "done"}, nil
	}
	next := a.script[a.calls]
	a.calls++
	if next.panic {
		panic("model exploded")
	}
	return next.resp, next.err
}

func (a *scriptedAgent) lastHistory() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history[len(a.history)-1]
}

type echoTool struct{}

func (echoTool) Name() string                     { return "echo" }
func (echoTool) PromptDocumentation() string      { return "" }
func (echoTool) Definition() tools.ToolDefinition { return tools.ToolDefinition{Name: "echo"} }
func (echoTool) Exec(_ context.Context, args map[string]any) (*tools.ExecResult, error) {
	return &tools.ExecResult{Content: "echo: " + args["text"].(string)}, nil
}

type noopVCS struct{}

func (noopVCS) RevertFile(context.Context, string) error     { return nil }
func (noopVCS) CheckoutFile(context.Context, string) error   { return nil }
func (noopVCS) Commit(context.Context, string, string) error { return nil }

type skipRecorder struct {
	metrics.NoopRecorder
	skipped int
	turns   []string
}

func (r *skipRecorder) AddToolRequestsSkipped(n int) { r.skipped += n }
func (r *skipRecorder) IncTurn(outcome string)       { r.turns = append(r.turns, outcome) }

type harness struct {
	root     string
	agent    *scriptedAgent
	sm       *turn.StateMachine
	svc      *Service
	queue    chan func()
	pending  *interaction.Pending
	turnEnds int
	recorder *skipRecorder
}

func newHarness(t *testing.T, script ...scripted) *harness {
	t.Helper()
	h := &harness{
		root:     t.TempDir(),
		agent:    &scriptedAgent{script: script},
		sm:       turn.NewStateMachine(),
		queue:    make(chan func(), 8),
		recorder: &skipRecorder{},
	}
	ws := workset.New(h.root)
	reg, err := tools.NewRegistry(tools.NewApplyDiffTool(diff.NewEngine(h.root, ws, noopVCS{})), echoTool{})
	require.NoError(t, err)

	h.svc, err = NewService(ServiceDeps{
		Agent:     h.agent,
		History:   NewHistory(50, 0, nil),
		Turn:      h.sm,
		Lifecycle: lifecycle.NewManager(tools.NewExecutor(reg), h.sm, nil),
		Dispatch:  func(fn func()) { h.queue <- fn },
		OnStep:    func(_ context.Context, step interaction.Step) { h.pending = step.Pending },
		OnTurnEnd: func(context.Context) { h.turnEnds++ },
		Recorder:  h.recorder,
	})
	require.NoError(t, err)
	return h
}

// pump runs the next completion posted by the agent goroutine.
func (h *harness) pump(t *testing.T) {
	t.Helper()
	select {
	case fn := <-h.queue:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for agent completion")
	}
}

func (h *harness) resume(t *testing.T, reply interaction.Reply) {
	t.Helper()
	require.NotNil(t, h.pending)
	p := h.pending
	h.pending = nil
	ctx := context.Background()
	h.svc.Drive(ctx, p.Resume(ctx, reply))
}

func (h *harness) roles() []Role {
	return rolesOf(h.svc.History().Messages())
}

func rolesOf(msgs []Message) []Role {
	out := make([]Role, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].Role
	}
	return out
}

func echoRequest(id, text string) tools.Request {
	args, _ := json.Marshal(map[string]string{"text": text})
	return tools.Request{ID: id, Name: "echo", Arguments: string(args)}
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceDeps{})
	assert.Error(t, err)
}

func TestFinalAnswerEndsTurn(t *testing.T) {
	h := newHarness(t, scripted{resp: Response{Text: "All good."}})
	ctx := context.Background()

	require.NoError(t, h.svc.Submit(ctx, "is it fine?", false))
	assert.Equal(t, turn.StateThinking, h.sm.Current())

	h.pump(t)
	assert.Equal(t, turn.StateIdle, h.sm.Current())
	assert.Equal(t, []Role{RoleUser, RoleAssistant}, h.roles())
	assert.Equal(t, 1, h.turnEnds)
	assert.Equal(t, []string{"completed"}, h.recorder.turns)
}

func TestInputRejectedWhileBusy(t *testing.T) {
	h := newHarness(t, scripted{resp: Response{Text: "ok"}})
	ctx := context.Background()

	require.NoError(t, h.svc.Submit(ctx, "first", false))
	err := h.svc.Submit(ctx, "second", false)
	assert.ErrorIs(t, err, turn.ErrBusy)
	assert.Equal(t, 1, h.svc.History().Len())
	assert.Equal(t, turn.StateThinking, h.sm.Current())

	h.pump(t)
	assert.True(t, h.sm.AcceptsInput())
}

func TestAgentErrorBecomesNote(t *testing.T) {
	tests := []struct {
		name string
		step scripted
		want string
	}{
		{"error", scripted{err: errors.New("transport closed")}, "transport closed"},
		{"panic", scripted{panic: true}, "agent panicked: model exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.step)
			require.NoError(t, h.svc.Submit(context.Background(), "go", false))
			h.pump(t)

			assert.Equal(t, turn.StateIdle, h.sm.Current())
			msgs := h.svc.History().Messages()
			last := msgs[len(msgs)-1]
			assert.Equal(t, RoleNote, last.Role)
			assert.Contains(t, last.Content, tt.want)
			assert.Equal(t, 1, h.turnEnds)
			assert.Equal(t, []string{"error"}, h.recorder.turns)
		})
	}
}

func TestToolResultContinuesTurn(t *testing.T) {
	h := newHarness(t,
		scripted{resp: Response{Text: "Echoing.", ToolRequests: []tools.Request{echoRequest("c1", "hi")}}},
		scripted{resp: Response{Text: "Echoed."}},
	)
	ctx := context.Background()

	require.NoError(t, h.svc.Submit(ctx, "echo hi", false))
	h.pump(t)
	assert.Equal(t, turn.StateThinking, h.sm.Current(), "tool result re-invokes the agent")
	assert.Zero(t, h.turnEnds)

	h.pump(t)
	assert.Equal(t, turn.StateIdle, h.sm.Current())
	assert.Equal(t, []Role{RoleUser, RoleAssistant, RoleTool, RoleAssistant}, h.roles())

	seen := h.agent.lastHistory()
	require.Len(t, seen, 3)
	assert.Equal(t, Message{Role: RoleTool, Content: "echo: hi", ToolCallID: "c1", ToolName: "echo", At: seen[2].At}, seen[2])
}

func TestOnlyFirstToolRequestRuns(t *testing.T) {
	h := newHarness(t,
		scripted{resp: Response{ToolRequests: []tools.Request{echoRequest("c1", "a"), echoRequest("c2", "b"), echoRequest("c3", "c")}}},
		scripted{resp: Response{Text: "fin"}},
	)
	ctx := context.Background()

	require.NoError(t, h.svc.Submit(ctx, "many", false))
	h.pump(t)
	h.pump(t)

	msgs := h.svc.History().Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, []tools.Request{echoRequest("c1", "a")}, msgs[1].ToolRequests)
	assert.Equal(t, RoleNote, msgs[2].Role)
	assert.Contains(t, msgs[2].Content, "echo (id c2), echo (id c3)")
	assert.Equal(t, "echo: a", msgs[3].Content)
	assert.Equal(t, 2, h.recorder.skipped)
}

func TestPlanApprovedWithoutToolRequest(t *testing.T) {
	h := newHarness(t,
		scripted{resp: Response{Text: "Here's my plan: rename foo to bar. End of plan."}},
		scripted{resp: Response{Text: "Renamed."}},
	)
	ctx := context.Background()

	require.NoError(t, h.svc.Submit(ctx, "rename foo", true))
	h.pump(t)

	assert.Equal(t, turn.StateWaitingPlanApproval, h.sm.Current())
	require.NotNil(t, h.pending)
	assert.Equal(t, interaction.KindPlanApproval, h.pending.Request.Kind)
	assert.Equal(t, "rename foo to bar.", h.pending.Request.Text)
	assert.ErrorIs(t, h.svc.Submit(ctx, "hurry", false), turn.ErrBusy)

	h.resume(t, interaction.Reply{Approved: true})
	assert.Equal(t, turn.StateThinking, h.sm.Current())
	msgs := h.svc.History().Messages()
	assert.Equal(t, notePlanApproved, msgs[len(msgs)-1].Content)

	h.pump(t)
	assert.Equal(t, turn.StateIdle, h.sm.Current())
	assert.Equal(t, 1, h.turnEnds)
}

func TestPlanApprovedDispatchesCarriedToolRequest(t *testing.T) {
	h := newHarness(t,
		scripted{resp: Response{Text: "My plan is:\n1. echo\n2. stop", ToolRequests: []tools.Request{echoRequest("c1", "planned")}}},
		scripted{resp: Response{Text: "stopped"}},
	)
	ctx := context.Background()

	require.NoError(t, h.svc.Submit(ctx, "plan it", true))
	h.pump(t)
	assert.Equal(t, "1. echo\n2. stop", h.pending.Request.Text)

	h.resume(t, interaction.Reply{Approved: true})
	msgs := h.svc.History().Messages()
	assert.Equal(t, RoleTool, msgs[len(msgs)-1].Role)
	assert.Equal(t, "echo: planned", msgs[len(msgs)-1].Content)

	h.pump(t)
	assert.Equal(t, turn.StateIdle, h.sm.Current())
}

func TestPlanRejectedReplans(t *testing.T) {
	h := newHarness(t,
		scripted{resp: Response{Text: "- delete everything\n- start over"}},
		scripted{resp: Response{Text: "- fix the one bug\n- add a test"}},
	)
	ctx := context.Background()

	require.NoError(t, h.svc.Submit(ctx, "fix bug", true))
	h.pump(t)
	h.resume(t, interaction.Reply{Approved: false, Text: "too drastic"})

	assert.Equal(t, turn.StateThinking, h.sm.Current())
	msgs := h.svc.History().Messages()
	assert.Equal(t, notePlanRejected+" Feedback: too drastic", msgs[len(msgs)-1].Content)

	h.pump(t)
	assert.Equal(t, turn.StateWaitingPlanApproval, h.sm.Current(), "re-plan asks for approval again")
	assert.Equal(t, "- fix the one bug\n- add a test", h.pending.Request.Text)
}

// requireToolRequestsAnswered fails when a tool request reaches the agent
// without a later tool result carrying its id.
func requireToolRequestsAnswered(t *testing.T, history []Message) {
	t.Helper()
	answered := map[string]bool{}
	for i := range history {
		if history[i].Role == RoleTool {
			answered[history[i].ToolCallID] = true
		}
	}
	for i := range history {
		for _, req := range history[i].ToolRequests {
			assert.True(t, answered[req.ID], "tool request %s has no tool result", req.ID)
		}
	}
}

func TestPlanRejectedAnswersCarriedToolRequest(t *testing.T) {
	h := newHarness(t,
		scripted{resp: Response{Text: "Plan:\n1. echo\n2. stop", ToolRequests: []tools.Request{echoRequest("call_1", "planned")}}},
		scripted{resp: Response{Text: "Plan:\n1. read first"}},
	)
	ctx := context.Background()

	require.NoError(t, h.svc.Submit(ctx, "plan it", true))
	h.pump(t)
	h.resume(t, interaction.Reply{Approved: false})
	h.pump(t)

	seen := h.agent.lastHistory()
	assert.Equal(t, []Role{RoleUser, RoleAssistant, RoleTool, RoleNote}, rolesOf(seen))
	assert.Equal(t, "call_1", seen[2].ToolCallID)
	assert.Equal(t, toolNotRunPlanRejected, seen[2].Content)
	requireToolRequestsAnswered(t, seen)
}

func TestDiffRequestGoesThroughReview(t *testing.T) {
	diffText := "--- /dev/null\n+++ b/hello.txt\n@@ -0,0 +1 @@\n+hello\n"
	args, err := json.Marshal(map[string]string{"diff": diffText})
	require.NoError(t, err)
	h := newHarness(t,
		scripted{resp: Response{ToolRequests: []tools.Request{{ID: "d1", Name: tools.ToolApplyDiff, Arguments: string(args)}}}},
		scripted{resp: Response{Text: "Created."}},
	)
	ctx := context.Background()

	require.NoError(t, h.svc.Submit(ctx, "create hello.txt", false))
	h.pump(t)
	assert.Equal(t, turn.StateWaitingConfirmation, h.sm.Current())
	require.NotNil(t, h.pending)
	assert.Equal(t, interaction.KindDiffReview, h.pending.Request.Kind)

	h.resume(t, interaction.Reply{Approved: true})
	data, err := os.ReadFile(filepath.Join(h.root, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
	assert.Equal(t, turn.StateThinking, h.sm.Current())

	h.pump(t)
	assert.Equal(t, turn.StateIdle, h.sm.Current())
	assert.Equal(t, []Role{RoleUser, RoleAssistant, RoleTool, RoleAssistant}, h.roles())
}
