package turn

import (
	"fmt"
	"sync"
	"time"

	"pilot/pkg/logx"
)

// Transition records a single state change.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// StateMachine owns the turn state. Only the session driver writes to it;
// other components read it.
type StateMachine struct {
	current  State
	table    TransitionTable
	notifyCh chan<- Transition
	logger   *logx.Logger
	mu       sync.Mutex
}

// NewStateMachine creates a machine in IDLE using the default table.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		table:   ValidTransitions,
		logger:  logx.NewLogger("turn"),
	}
}

// Current returns the current state.
func (sm *StateMachine) Current() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

// AcceptsInput reports whether free-form user input may start a turn.
func (sm *StateMachine) AcceptsInput() bool {
	return sm.Current() == StateIdle
}

// CheckInput returns ErrBusy unless the machine is IDLE. It never changes state.
func (sm *StateMachine) CheckInput() error {
	if s := sm.Current(); s != StateIdle {
		return fmt.Errorf("%w (state %s)", ErrBusy, s)
	}
	return nil
}

// IsValidTransition reports whether from → to is allowed.
func (sm *StateMachine) IsValidTransition(from, to State) bool {
	for _, allowed := range sm.table[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo moves to newState. Transitioning to the current state is a
// no-op. Disallowed transitions leave the state untouched.
func (sm *StateMachine) TransitionTo(newState State, reason string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	oldState := sm.current
	if oldState == newState {
		return nil
	}
	if !sm.IsValidTransition(oldState, newState) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, oldState, newState)
	}

	sm.current = newState
	sm.logger.Info("🔄 State machine transition: %s → %s", oldState, newState)
	sm.notifyLocked(oldState, newState, reason)
	return nil
}

// ForceIdle returns to IDLE without consulting the table. It is the escape
// hatch for a turn that cannot end through a regular transition.
func (sm *StateMachine) ForceIdle(reason string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	oldState := sm.current
	if oldState == StateIdle {
		return
	}
	sm.current = StateIdle
	sm.logger.Warn("⚠️  Forcing %s → %s: %s", oldState, StateIdle, reason)
	sm.notifyLocked(oldState, StateIdle, reason)
}

func (sm *StateMachine) notifyLocked(from, to State, reason string) {
	if reason != "" {
		sm.logger.DebugState("reason", to.String(), reason)
	}
	if sm.notifyCh == nil {
		return
	}
	transition := Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	select {
	case sm.notifyCh <- transition:
	default:
		sm.logger.Warn("State notification channel full, dropping notification for %s->%s", from, to)
	}
}

// Restore forces the state without validation. Used only when loading a
// session snapshot; states other than IDLE cannot be resumed, so anything
// else collapses to IDLE.
func (sm *StateMachine) Restore(s State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s != StateIdle {
		sm.logger.Warn("Snapshot was saved in %s; resuming in IDLE", s)
	}
	sm.current = StateIdle
}

// SetNotificationChannel sets a channel that receives every transition.
// Sends never block.
func (sm *StateMachine) SetNotificationChannel(ch chan<- Transition) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.notifyCh = ch
}
