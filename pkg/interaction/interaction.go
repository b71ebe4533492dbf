// Package interaction models human decisions as explicit continuations.
//
// A turn step never blocks waiting for a person. Instead it returns a Step
// carrying a Pending value; the session driver renders the Request and, once
// the human answers, calls Pending.Resume with the Reply to obtain the next
// Step.
package interaction

import (
	"context"
	"sync"

	"pilot/pkg/logx"
)

// Kind identifies which prompt the interactive surface must show.
type Kind string

const (
	// KindConfirm is a yes/no question.
	KindConfirm Kind = "confirm"
	// KindDiffReview presents a diff to accept, reject or replace with edited text.
	KindDiffReview Kind = "diff_review"
	// KindPlanApproval asks the human to approve or reject a plan.
	KindPlanApproval Kind = "plan_approval"
)

// Request is what the interactive surface renders.
type Request struct {
	Kind  Kind
	Title string
	Text  string

	// DefaultHint is displayed next to the prompt (for example the last
	// answer). It is never applied automatically.
	DefaultHint string
}

// Reply is the human's answer to a Request.
type Reply struct {
	Approved bool
	// Edited is set by diff review when Text replaces the proposed diff.
	Edited bool
	Text   string
}

// ResumeFunc continues a suspended turn with the human's reply.
type ResumeFunc func(ctx context.Context, reply Reply) Step

// Pending is a suspended turn waiting for a Reply. It can be resumed once.
type Pending struct {
	Request Request

	resume  ResumeFunc
	resumed bool
	mu      sync.Mutex
}

// NewPending creates a pending interaction.
func NewPending(req Request, resume ResumeFunc) *Pending {
	return &Pending{Request: req, resume: resume}
}

// Resume continues the turn. A second call is ignored and yields Idle.
func (p *Pending) Resume(ctx context.Context, reply Reply) Step {
	p.mu.Lock()
	if p.resumed {
		p.mu.Unlock()
		logx.NewLogger("interaction").Warn("Ignoring second reply to %q", p.Request.Title)
		return Idle()
	}
	p.resumed = true
	p.mu.Unlock()

	logx.Debug(ctx, "interaction", "resume %s %q approved=%t edited=%t", p.Request.Kind, p.Request.Title, reply.Approved, reply.Edited)
	return p.resume(ctx, reply)
}

// Step is the outcome of running part of a turn.
//
// Exactly one of three shapes:
//   - Pending != nil: the turn is suspended on a human decision.
//   - Continue: the agent must be invoked again (ExpectPlan selects plan mode).
//   - neither: the turn is over.
type Step struct {
	Pending    *Pending
	Continue   bool
	ExpectPlan bool
}

// Idle ends the turn.
func Idle() Step {
	return Step{}
}

// Wait suspends the turn on req.
func Wait(req Request, resume ResumeFunc) Step {
	return Step{Pending: NewPending(req, resume)}
}

// Next asks for another agent invocation.
func Next(expectPlan bool) Step {
	return Step{Continue: true, ExpectPlan: expectPlan}
}

// IsIdle reports whether the turn is over.
func (s Step) IsIdle() bool {
	return s.Pending == nil && !s.Continue
}
