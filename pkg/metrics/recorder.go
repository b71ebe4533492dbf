// Package metrics records pipeline activity as Prometheus metrics.
package metrics

import "time"

// Recorder receives pipeline events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// ObserveLLMRequest records a completed agent invocation.
	ObserveLLMRequest(model string, promptTokens, completionTokens int, success bool, duration time.Duration)

	// ObserveToolExecution records one tool run.
	ObserveToolExecution(tool string, success bool, duration time.Duration)

	// AddToolRequestsSkipped counts tool requests beyond the first in a response.
	AddToolRequestsSkipped(n int)

	// IncDecision counts a human answer to a prompt (kind: diff_review,
	// validation, plan; decision: accept, edit, reject).
	IncDecision(kind, decision string)

	// IncDiffApply counts diff applications by outcome.
	IncDiffApply(success bool)

	// IncTurn counts finished turns by outcome (final, error).
	IncTurn(outcome string)

	// IncRollback counts rollback protocol outcomes.
	IncRollback(outcome string)

	// IncStateTransition counts turn state changes.
	IncStateTransition(from, to string)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a recorder that discards everything.
func Nop() Recorder {
	return NoopRecorder{}
}

func (NoopRecorder) ObserveLLMRequest(string, int, int, bool, time.Duration) {}
func (NoopRecorder) ObserveToolExecution(string, bool, time.Duration)         {}
func (NoopRecorder) AddToolRequestsSkipped(int)                               {}
func (NoopRecorder) IncDecision(string, string)                               {}
func (NoopRecorder) IncDiffApply(bool)                                        {}
func (NoopRecorder) IncTurn(string)                                           {}
func (NoopRecorder) IncRollback(string)                                       {}
func (NoopRecorder) IncStateTransition(string, string)                        {}
