// Package browser provides the headless Chrome implementation of the
// unsubscribe agent's browser collaborator.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/mailsweep/mailsweep/internal/agent"
)

// errNotInteractable is returned when an element cannot be found or acted
// on; the executor absorbs it as a failed cascade tier.
var errNotInteractable = errors.New("element not found or not interactable")

// Config holds browser automation settings.
type Config struct {
	Headless     bool
	Timeout      time.Duration
	UserAgent    string
	WindowWidth  int
	WindowHeight int
}

// DefaultConfig returns sensible defaults: headless, realistic user agent,
// fixed desktop viewport to reduce anti-bot friction.
func DefaultConfig() Config {
	return Config{
		Headless:     true,
		Timeout:      30 * time.Second,
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		WindowWidth:  1920,
		WindowHeight: 1080,
	}
}

// Session wraps one chromedp browser context. Each unsubscribe attempt owns
// exactly one Session and must Close it on every exit path.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	config      Config
}

// elementWait bounds every element interaction so a missing element fails
// fast instead of hanging.
const elementWait = 3 * time.Second

// Factory returns an agent.BrowserFactory producing one isolated session per
// attempt.
func Factory(cfg Config) agent.BrowserFactory {
	return func(ctx context.Context) (agent.Browser, error) {
		return NewSession(ctx, cfg)
	}
}

// NewSession launches a sandboxed browsing context.
func NewSession(parent context.Context, cfg Config) (*Session, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so launch failures surface
	// here rather than on the first navigation.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		config:      cfg,
	}, nil
}

// Close releases the browser process and its allocator.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// run executes chromedp actions under the session's browser context, bounded
// by the given timeout.
func (s *Session) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// Navigate loads the URL and waits per the requested mode. chromedp has no
// network-idle primitive, so the primary mode polls for a complete document
// plus a short quiet window; the looser mode only needs the DOM parsed.
func (s *Session) Navigate(ctx context.Context, url string, wait agent.WaitMode) error {
	if err := s.run(s.config.Timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}

	switch wait {
	case agent.WaitDOMReady:
		if err := s.pollReadyState(10*time.Second, "interactive", "complete"); err != nil {
			return err
		}
	default:
		if err := s.pollReadyState(s.config.Timeout, "complete"); err != nil {
			return err
		}
		// Quiet window for late XHR-driven rendering.
		time.Sleep(time.Second)
	}
	return nil
}

func (s *Session) pollReadyState(timeout time.Duration, accept ...string) error {
	deadline := time.Now().Add(timeout)
	for {
		var state string
		err := s.run(2*time.Second, chromedp.Evaluate(`document.readyState`, &state))
		if err == nil {
			for _, a := range accept {
				if state == a {
					return nil
				}
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("page did not reach %v within %s", accept, timeout)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// URL reports the current page location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var u string
	if err := s.run(5*time.Second, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

// Ready evaluates a trivial expression to confirm the execution context is
// reachable.
func (s *Session) Ready(ctx context.Context) error {
	var n int
	if err := s.run(5*time.Second, chromedp.Evaluate(`1+1`, &n)); err != nil {
		return err
	}
	if n != 2 {
		return errors.New("page context returned garbage")
	}
	return nil
}

// PageText returns the page's visible text.
func (s *Session) PageText(ctx context.Context) (string, error) {
	var text string
	err := s.run(10*time.Second, chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text))
	if err != nil {
		return "", err
	}
	return text, nil
}

type captureDTO struct {
	URL        string                      `json:"url"`
	Title      string                      `json:"title"`
	Text       string                      `json:"text"`
	Forms      []agent.FormDescriptor      `json:"forms"`
	Clickables []agent.ClickableDescriptor `json:"clickables"`
}

// Capture reads the DOM once and projects forms, clickables, and visible
// text in a single evaluation.
func (s *Session) Capture(ctx context.Context) (*agent.Capture, error) {
	var dto captureDTO
	if err := s.run(15*time.Second, chromedp.Evaluate(captureScript, &dto)); err != nil {
		return nil, err
	}
	return &agent.Capture{
		URL:        dto.URL,
		Title:      dto.Title,
		Text:       dto.Text,
		Forms:      dto.Forms,
		Clickables: dto.Clickables,
	}, nil
}

// ClickSelector clicks the first visible element matching the CSS selector.
func (s *Session) ClickSelector(ctx context.Context, selector string) error {
	var exists bool
	err := s.run(elementWait, chromedp.Evaluate(
		fmt.Sprintf(`(function() {
			var el = document.querySelector(%q);
			return el !== null && el.offsetParent !== null;
		})()`, selector),
		&exists,
	))
	if err != nil || !exists {
		return errNotInteractable
	}
	if err := s.run(elementWait, chromedp.Click(selector, chromedp.NodeVisible)); err != nil {
		return errNotInteractable
	}
	return nil
}

// ClickByText clicks the first element among tags whose text, value, or
// aria-label contains text, case-insensitively.
func (s *Session) ClickByText(ctx context.Context, text string, tags []string) error {
	js := clickByTextScript(text, tags)
	var clicked bool
	if err := s.run(elementWait, chromedp.Evaluate(js, &clicked)); err != nil || !clicked {
		return errNotInteractable
	}
	return nil
}

// FillText clears a text-like field, types the value, and dispatches
// change/blur so client-side validation observes the update.
func (s *Session) FillText(ctx context.Context, selector, value string) error {
	var exists bool
	err := s.run(elementWait, chromedp.Evaluate(
		fmt.Sprintf(`(function() {
			var el = document.querySelector(%q);
			return el !== null && el.offsetParent !== null;
		})()`, selector),
		&exists,
	))
	if err != nil || !exists {
		return errNotInteractable
	}

	err = s.run(elementWait,
		chromedp.Clear(selector),
		chromedp.SendKeys(selector, value),
		chromedp.Evaluate(fmt.Sprintf(`(function() {
			var el = document.querySelector(%q);
			if (!el) return false;
			el.dispatchEvent(new Event('change', { bubbles: true }));
			el.dispatchEvent(new Event('blur', { bubbles: true }));
			return true;
		})()`, selector), nil),
	)
	if err != nil {
		return errNotInteractable
	}
	return nil
}

// SetChecked toggles a checkbox/radio only when its live state differs from
// the desired one.
func (s *Session) SetChecked(ctx context.Context, selector string, checked bool) error {
	js := fmt.Sprintf(`(function() {
		var el = document.querySelector(%q);
		if (!el || (el.type !== 'checkbox' && el.type !== 'radio')) return false;
		if (el.checked !== %t) {
			el.click();
			el.dispatchEvent(new Event('change', { bubbles: true }));
		}
		return true;
	})()`, selector, checked)

	var ok bool
	if err := s.run(elementWait, chromedp.Evaluate(js, &ok)); err != nil || !ok {
		return errNotInteractable
	}
	return nil
}

// SelectOption sets a select element to the option with the given value.
func (s *Session) SelectOption(ctx context.Context, selector, value string) error {
	js := fmt.Sprintf(`(function() {
		var sel = document.querySelector(%q);
		if (!sel || !sel.options) return false;
		for (var i = 0; i < sel.options.length; i++) {
			if (sel.options[i].value === %q) {
				sel.value = sel.options[i].value;
				sel.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	})()`, selector, value)

	var ok bool
	if err := s.run(elementWait, chromedp.Evaluate(js, &ok)); err != nil || !ok {
		return errNotInteractable
	}
	return nil
}

// SubmitForm programmatically submits the form at the given index.
func (s *Session) SubmitForm(ctx context.Context, index int) error {
	js := fmt.Sprintf(`(function() {
		var f = document.forms[%d];
		if (!f) return false;
		if (f.requestSubmit) { f.requestSubmit(); } else { f.submit(); }
		return true;
	})()`, index)

	var ok bool
	if err := s.run(elementWait, chromedp.Evaluate(js, &ok)); err != nil || !ok {
		return errNotInteractable
	}
	return nil
}
