// Package planner asks the reasoning collaborator what interaction will opt
// the user out of a mailing list, and turns its untrusted free-form response
// into a validated, typed directive.
package planner

import (
	"context"
	"log"

	"github.com/mailsweep/mailsweep/internal/agent"
)

// Completer is the reasoning collaborator: a request/response completion
// interface whose response text is expected, but never trusted, to contain
// one JSON object.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Planner implements agent.Planner over a Completer.
type Planner struct {
	completer Completer
	logger    *log.Logger
}

func New(c Completer, logger *log.Logger) *Planner {
	return &Planner{completer: c, logger: logger}
}

// Plan builds a bounded description of the snapshot, submits it, and parses
// the response defensively. It always returns a usable directive: any
// transport or parse failure degrades to the hard-coded default.
func (p *Planner) Plan(ctx context.Context, snap *agent.PageSnapshot) agent.Directive {
	raw, err := p.completer.Complete(ctx, systemPrompt, BuildPrompt(snap))
	if err != nil {
		p.logf("planner: reasoning call failed, using default directive: %v", err)
		return agent.DefaultDirective()
	}

	d := ParseDirective(raw, len(snap.Forms) > 0)
	p.logf("planner: action=%s selector=%q button_text=%q", d.Action, d.Selector, d.ButtonText)
	return d
}

func (p *Planner) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
