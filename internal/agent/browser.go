package agent

import "context"

// WaitMode selects how long navigation blocks before the page is considered
// loaded.
type WaitMode int

const (
	// WaitNetworkIdle waits for the document to be complete and the network
	// to go mostly quiet. Primary wait condition.
	WaitNetworkIdle WaitMode = iota
	// WaitDOMReady only waits for DOM content to be loaded. Used as the
	// looser retry when the primary condition times out.
	WaitDOMReady
)

// Capture is the raw, single-read projection of the live DOM handed back by
// the browser collaborator. The surveyor bounds and annotates it into a
// PageSnapshot.
type Capture struct {
	URL        string
	Title      string
	Text       string
	Forms      []FormDescriptor
	Clickables []ClickableDescriptor
}

// Browser is the contract with the headless rendering engine. One instance
// is exclusively owned by a single unsubscribe attempt and must be closed
// when the attempt ends, whatever the outcome.
//
// Interaction methods return an error when the element cannot be found or
// acted on; the executor treats any such error as "this tier did not
// succeed", never as fatal.
type Browser interface {
	// Navigate loads url and blocks per the wait mode.
	Navigate(ctx context.Context, url string, wait WaitMode) error
	// URL reports the current page URL.
	URL(ctx context.Context) (string, error)
	// Ready evaluates a trivial expression to confirm the page's execution
	// context is reachable.
	Ready(ctx context.Context) error
	// Capture reads the DOM once and returns its structured projection.
	Capture(ctx context.Context) (*Capture, error)
	// PageText returns the page's visible text.
	PageText(ctx context.Context) (string, error)

	// ClickSelector clicks the first visible element matching a CSS selector.
	ClickSelector(ctx context.Context, selector string) error
	// ClickByText clicks the first element among tags whose text (or value /
	// aria-label) contains text, case-insensitively. A nil tags slice means
	// the default clickable set (button, a, input[type=submit], [onclick]).
	ClickByText(ctx context.Context, text string, tags []string) error
	// FillText clears a text-like field, types value, and dispatches
	// change/blur so client-side validation observes the update.
	FillText(ctx context.Context, selector, value string) error
	// SetChecked clicks a checkbox/radio only if its checked state differs
	// from the desired one.
	SetChecked(ctx context.Context, selector string, checked bool) error
	// SelectOption sets a select element to the option with the given value.
	SelectOption(ctx context.Context, selector, value string) error
	// SubmitForm programmatically submits the form at the given index.
	SubmitForm(ctx context.Context, index int) error

	Close()
}

// BrowserFactory yields one isolated browser session per unsubscribe
// attempt. Sessions are never shared or pooled across attempts.
type BrowserFactory func(ctx context.Context) (Browser, error)
