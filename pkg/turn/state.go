// Package turn holds the single source of truth for what the session is doing.
package turn

import "errors"

// State is the turn state of a session.
type State string

const (
	StateIdle                State = "IDLE"
	StateThinking            State = "THINKING"
	StateWaitingConfirmation State = "WAITING_CONFIRMATION"
	StateWaitingPlanApproval State = "WAITING_PLAN_APPROVAL"
)

var (
	// ErrInvalidTransition is returned when a transition is not in the table.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrBusy is returned when free-form input arrives outside IDLE.
	ErrBusy = errors.New("agent is busy; wait for the current turn to finish")
)

func (s State) String() string {
	return string(s)
}

// TransitionTable lists the allowed target states for each state.
type TransitionTable map[State][]State

// ValidTransitions is the turn transition table.
//
//nolint:gochecknoglobals // static transition table
var ValidTransitions = TransitionTable{
	StateIdle: {StateThinking},
	StateThinking: {
		StateWaitingPlanApproval,
		StateWaitingConfirmation,
		StateIdle,
	},
	// Approve resumes thinking (or ends if nothing is left); reject re-plans.
	StateWaitingPlanApproval: {StateThinking, StateIdle},
	// Diff review and validation prompts both resolve here.
	StateWaitingConfirmation: {StateThinking, StateIdle},
}

// IsValid reports whether s is one of the four turn states.
func (s State) IsValid() bool {
	_, ok := ValidTransitions[s]
	return ok
}

// ParseState converts a stored state name back into a State, defaulting to IDLE.
func ParseState(name string) State {
	s := State(name)
	if !s.IsValid() {
		return StateIdle
	}
	return s
}
