package turn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialState(t *testing.T) {
	sm := NewStateMachine()
	assert.Equal(t, StateIdle, sm.Current())
	assert.True(t, sm.AcceptsInput())
	assert.NoError(t, sm.CheckInput())
}

func TestTransitionTable(t *testing.T) {
	all := []State{StateIdle, StateThinking, StateWaitingConfirmation, StateWaitingPlanApproval}
	allowed := map[[2]State]bool{
		{StateIdle, StateThinking}:                true,
		{StateThinking, StateWaitingPlanApproval}: true,
		{StateThinking, StateWaitingConfirmation}: true,
		{StateThinking, StateIdle}:                true,
		{StateWaitingPlanApproval, StateThinking}: true,
		{StateWaitingPlanApproval, StateIdle}:     true,
		{StateWaitingConfirmation, StateThinking}: true,
		{StateWaitingConfirmation, StateIdle}:     true,
	}

	sm := NewStateMachine()
	for _, from := range all {
		for _, to := range all {
			if from == to {
				continue
			}
			assert.Equal(t, allowed[[2]State{from, to}], sm.IsValidTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestInvalidTransitionLeavesStateUntouched(t *testing.T) {
	ch := make(chan Transition, 1)
	sm := NewStateMachine()
	sm.SetNotificationChannel(ch)

	err := sm.TransitionTo(StateWaitingConfirmation, "skip thinking")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, StateIdle, sm.Current())
	assert.Empty(t, ch)
}

func TestOnlyIdleAcceptsInput(t *testing.T) {
	sm := NewStateMachine()
	require.NoError(t, sm.TransitionTo(StateThinking, "user input"))

	for _, s := range []State{StateWaitingConfirmation, StateWaitingPlanApproval} {
		sm := NewStateMachine()
		require.NoError(t, sm.TransitionTo(StateThinking, ""))
		require.NoError(t, sm.TransitionTo(s, ""))

		assert.False(t, sm.AcceptsInput())
		err := sm.CheckInput()
		assert.True(t, errors.Is(err, ErrBusy))
		assert.Equal(t, s, sm.Current(), "busy check must not change state")
	}

	assert.False(t, sm.AcceptsInput())
	require.NoError(t, sm.TransitionTo(StateIdle, "final answer"))
	assert.True(t, sm.AcceptsInput())
}

func TestSameStateIsNoop(t *testing.T) {
	ch := make(chan Transition, 2)
	sm := NewStateMachine()
	sm.SetNotificationChannel(ch)
	require.NoError(t, sm.TransitionTo(StateThinking, ""))
	require.NoError(t, sm.TransitionTo(StateThinking, "tool result"))
	assert.Len(t, ch, 1)
}

func TestTransitionsNotified(t *testing.T) {
	ch := make(chan Transition, 1)
	sm := NewStateMachine()
	sm.SetNotificationChannel(ch)

	require.NoError(t, sm.TransitionTo(StateThinking, "user input"))
	// Channel is full now; the second send is dropped without blocking.
	require.NoError(t, sm.TransitionTo(StateWaitingPlanApproval, "plan"))

	got := <-ch
	assert.Equal(t, StateIdle, got.From)
	assert.Equal(t, StateThinking, got.To)
	assert.Equal(t, "user input", got.Reason)
	assert.Empty(t, ch)
	assert.Equal(t, StateWaitingPlanApproval, sm.Current())
}

func TestForceIdle(t *testing.T) {
	ch := make(chan Transition, 1)
	sm := NewStateMachine()
	require.NoError(t, sm.TransitionTo(StateThinking, ""))
	sm.SetNotificationChannel(ch)

	sm.ForceIdle("turn error")
	assert.Equal(t, StateIdle, sm.Current())
	got := <-ch
	assert.Equal(t, Transition{From: StateThinking, To: StateIdle, Reason: "turn error", Timestamp: got.Timestamp}, got)

	// Already idle: nothing to report.
	sm.ForceIdle("again")
	assert.Empty(t, ch)
}

func TestRestoreCollapsesToIdle(t *testing.T) {
	sm := NewStateMachine()
	sm.Restore(StateWaitingConfirmation)
	assert.Equal(t, StateIdle, sm.Current())
}

func TestParseState(t *testing.T) {
	assert.Equal(t, StateWaitingPlanApproval, ParseState("WAITING_PLAN_APPROVAL"))
	assert.Equal(t, StateIdle, ParseState("bogus"))
}
