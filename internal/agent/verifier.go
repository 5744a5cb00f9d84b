package agent

import (
	"context"
	"time"
)

const (
	defaultVerifySettle  = 3 * time.Second
	defaultVerifyRecheck = 2 * time.Second
)

// Verifier decides whether the attempt worked from page text and URL
// heuristics alone. There is no feedback contract with target sites, so
// false positives and negatives are accepted as best-effort.
type Verifier struct {
	Settle  time.Duration
	Recheck time.Duration

	Sleep func(time.Duration)
}

func NewVerifier() *Verifier {
	return &Verifier{
		Settle:  defaultVerifySettle,
		Recheck: defaultVerifyRecheck,
		Sleep:   time.Sleep,
	}
}

// Verify re-reads the page after a settle delay. Success is a success
// keyword in the text, or a URL carrying both unsubscribe and
// success/confirm signals. If an action was attempted and the URL moved, one
// delayed recheck runs before finalizing as failure. An unreadable page
// falls back optimistically to whether anything was attempted, since no
// further confirmation is obtainable.
func (v *Verifier) Verify(ctx context.Context, b Browser, nav NavigationState, exec ExecutionResult) Outcome {
	v.Sleep(v.Settle)

	text, textErr := b.PageText(ctx)
	currentURL, urlErr := b.URL(ctx)
	if textErr != nil || urlErr != nil {
		return Outcome{Success: exec.Attempted}
	}

	if containsSuccessKeyword(text) || urlSignalsSuccess(currentURL) {
		return Outcome{Success: true}
	}

	if exec.Attempted && currentURL != nav.CurrentURL {
		v.Sleep(v.Recheck)
		again, err := b.PageText(ctx)
		if err != nil {
			return Outcome{Success: exec.Attempted}
		}
		return Outcome{Success: containsSuccessKeyword(again)}
	}

	return Outcome{Success: false}
}
