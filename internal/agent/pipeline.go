package agent

import (
	"context"
	"fmt"
	"log"
)

// Planner turns a snapshot into a directive. The production implementation
// calls the reasoning collaborator; it always returns a usable directive,
// recovering from malformed responses with the default one.
type Planner interface {
	Plan(ctx context.Context, snap *PageSnapshot) Directive
}

// OutcomeStore is the caller's persistent record of per-email outcomes. Each
// attempt writes to it exactly once, keyed by email id.
type OutcomeStore interface {
	RecordOutcome(emailID int64, link string, success bool, errMsg string) error
}

// Runner executes unsubscribe attempts: one email, one link, one exclusively
// owned browser session, one outcome. Stages run strictly in order and every
// entity is discarded when the attempt ends.
type Runner struct {
	Resolve    func(emailHTML string) string
	Planner    Planner
	NewBrowser BrowserFactory
	Store      OutcomeStore
	Navigator  *Navigator
	Verifier   *Verifier
	Logger     *log.Logger
}

// Run processes the batch sequentially, one attempt per email, in input
// order. A failed attempt never aborts the batch; the caller always gets a
// partial-success summary.
func (r *Runner) Run(ctx context.Context, emails []EmailInput) BatchSummary {
	summary := BatchSummary{Total: len(emails)}

	for _, email := range emails {
		report := r.Attempt(ctx, email)
		if report.Success {
			summary.Unsubscribed++
		}
		summary.Results = append(summary.Results, report)
	}

	return summary
}

// Attempt runs the full pipeline for one email and records the outcome.
func (r *Runner) Attempt(ctx context.Context, email EmailInput) AttemptReport {
	report := AttemptReport{EmailID: email.EmailID, MessageID: email.MessageID}

	link := r.Resolve(email.BodyHTML)
	if link == "" {
		// Resolver found nothing; no browser session is ever opened.
		report.Error = ErrLinkNotFound.Error()
		r.record(report)
		return report
	}
	report.Link = link
	r.logf("unsubscribe: email %d -> %s", email.EmailID, link)

	outcome, err := r.attemptLink(ctx, Target{SourceURL: link})
	if err != nil {
		report.Error = err.Error()
		r.record(report)
		return report
	}

	report.Success = outcome.Success
	r.record(report)
	return report
}

// attemptLink owns the browser session for stages 2-6. The session is
// released on every exit path.
func (r *Runner) attemptLink(ctx context.Context, target Target) (Outcome, error) {
	b, err := r.NewBrowser(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: browser launch: %v", ErrPageUnreachable, err)
	}
	defer b.Close()

	nav, err := r.Navigator.Open(ctx, b, target)
	if err != nil {
		return Outcome{}, err
	}

	snap, err := Survey(ctx, b)
	if err != nil {
		return Outcome{}, err
	}

	directive := r.Planner.Plan(ctx, snap)
	exec := NewExecutor(b).Execute(ctx, snap, directive)
	outcome := r.Verifier.Verify(ctx, b, nav, exec)

	r.logf("unsubscribe: %s action=%s attempted=%t success=%t",
		target.SourceURL, directive.Action, exec.Attempted, outcome.Success)
	return outcome, nil
}

func (r *Runner) record(report AttemptReport) {
	if r.Store == nil {
		return
	}
	if err := r.Store.RecordOutcome(report.EmailID, report.Link, report.Success, report.Error); err != nil {
		r.logf("warning: failed to record outcome for email %d: %v", report.EmailID, err)
	}
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}
