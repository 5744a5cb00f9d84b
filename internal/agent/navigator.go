package agent

import (
	"context"
	"fmt"
	"time"
)

const (
	// maxRedirectFollows bounds how many URL changes the navigator chases
	// before proceeding with whatever page is current.
	maxRedirectFollows = 5

	defaultRedirectPoll   = 2 * time.Second
	defaultRedirectSettle = 1500 * time.Millisecond
	defaultReadinessWait  = 2 * time.Second
)

// Navigator opens the unsubscribe target in a browser session and waits for
// the page to settle. It owns NavigationState for the attempt.
type Navigator struct {
	RedirectPoll   time.Duration
	RedirectSettle time.Duration
	ReadinessWait  time.Duration

	// Sleep is swapped out in tests to avoid real waits.
	Sleep func(time.Duration)
}

// NewNavigator returns a navigator with production timings.
func NewNavigator() *Navigator {
	return &Navigator{
		RedirectPoll:   defaultRedirectPoll,
		RedirectSettle: defaultRedirectSettle,
		ReadinessWait:  defaultReadinessWait,
		Sleep:          time.Sleep,
	}
}

// Open navigates to the target, follows redirects up to the bound, and
// confirms the page's execution context is reachable. A navigation failure
// after the looser retry, or an unreachable context after its retry, is
// fatal for the attempt.
func (n *Navigator) Open(ctx context.Context, b Browser, target Target) (NavigationState, error) {
	state := NavigationState{CurrentURL: target.SourceURL}

	if err := b.Navigate(ctx, target.SourceURL, WaitNetworkIdle); err != nil {
		// Retry once with the looser condition; slow pages often never go
		// network-quiet but are perfectly usable once the DOM is parsed.
		if err := b.Navigate(ctx, target.SourceURL, WaitDOMReady); err != nil {
			return state, fmt.Errorf("%w: %v", ErrPageUnreachable, err)
		}
	}

	if cur, err := b.URL(ctx); err == nil && cur != "" {
		state.CurrentURL = cur
	}

	// Follow meta-refresh and JS redirects by watching the URL until it
	// stabilizes or the bound is hit.
	for state.RedirectCount < maxRedirectFollows {
		n.Sleep(n.RedirectPoll)

		cur, err := b.URL(ctx)
		if err != nil || cur == "" || cur == state.CurrentURL {
			break
		}

		state.CurrentURL = cur
		state.RedirectCount++
		n.Sleep(n.RedirectSettle)
	}

	if err := b.Ready(ctx); err != nil {
		n.Sleep(n.ReadinessWait)
		if err := b.Ready(ctx); err != nil {
			return state, fmt.Errorf("%w: page context not responding: %v", ErrPageUnreachable, err)
		}
	}

	state.PageReady = true
	return state, nil
}
