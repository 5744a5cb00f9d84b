package agent

import (
	"context"
	"strings"
	"testing"
	"time"
)

type plannerFunc func(ctx context.Context, snap *PageSnapshot) Directive

func (f plannerFunc) Plan(ctx context.Context, snap *PageSnapshot) Directive { return f(ctx, snap) }

type recordedOutcome struct {
	emailID int64
	link    string
	success bool
	errMsg  string
}

type memoryStore struct {
	outcomes []recordedOutcome
}

func (m *memoryStore) RecordOutcome(emailID int64, link string, success bool, errMsg string) error {
	m.outcomes = append(m.outcomes, recordedOutcome{emailID, link, success, errMsg})
	return nil
}

func testRunner(factory BrowserFactory, store OutcomeStore) *Runner {
	nav := NewNavigator()
	nav.Sleep = func(time.Duration) {}
	ver := NewVerifier()
	ver.Sleep = func(time.Duration) {}

	return &Runner{
		Resolve: func(html string) string {
			if strings.Contains(html, "https://") {
				start := strings.Index(html, "https://")
				end := strings.IndexAny(html[start:], `"' `)
				if end < 0 {
					return html[start:]
				}
				return html[start : start+end]
			}
			return ""
		},
		Planner: plannerFunc(func(ctx context.Context, snap *PageSnapshot) Directive {
			return DefaultDirective()
		}),
		NewBrowser: factory,
		Store:      store,
		Navigator:  nav,
		Verifier:   ver,
	}
}

func TestRunnerAttempt(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		b := &stubBrowser{
			urls: []string{"https://news.example.com/unsub?u=1"},
			capture: &Capture{
				URL:  "https://news.example.com/unsub?u=1",
				Text: "Click the button to unsubscribe",
				Clickables: []ClickableDescriptor{
					{Tag: "button", Text: "Unsubscribe"},
				},
			},
			clickTexts: map[string]bool{"unsubscribe": true},
			pageTexts:  []string{"You have been unsubscribed."},
		}
		store := &memoryStore{}
		runner := testRunner(func(ctx context.Context) (Browser, error) { return b, nil }, store)

		report := runner.Attempt(context.Background(),
			EmailInput{EmailID: 7, MessageID: "<m7@x>", BodyHTML: `<a href="https://news.example.com/unsub?u=1">unsubscribe</a>`})

		if !report.Success {
			t.Errorf("report = %+v, want success", report)
		}
		if !b.closed {
			t.Error("browser session not closed")
		}
		if len(store.outcomes) != 1 || !store.outcomes[0].success || store.outcomes[0].emailID != 7 {
			t.Errorf("outcomes = %+v", store.outcomes)
		}
	})

	t.Run("no link found opens no browser", func(t *testing.T) {
		sessions := 0
		store := &memoryStore{}
		runner := testRunner(func(ctx context.Context) (Browser, error) {
			sessions++
			return &stubBrowser{}, nil
		}, store)

		report := runner.Attempt(context.Background(),
			EmailInput{EmailID: 3, BodyHTML: "<p>plain newsletter, no links</p>"})

		if report.Success {
			t.Error("Success = true, want false")
		}
		if report.Error != ErrLinkNotFound.Error() {
			t.Errorf("Error = %q, want %q", report.Error, ErrLinkNotFound.Error())
		}
		if sessions != 0 {
			t.Errorf("browser sessions = %d, want 0", sessions)
		}
		if len(store.outcomes) != 1 || store.outcomes[0].success {
			t.Errorf("outcomes = %+v, want one failed record", store.outcomes)
		}
	})

	t.Run("unreachable page closes the session", func(t *testing.T) {
		b := &stubBrowser{navigateErrs: map[WaitMode]error{
			WaitNetworkIdle: errStubMiss,
			WaitDOMReady:    errStubMiss,
		}}
		store := &memoryStore{}
		runner := testRunner(func(ctx context.Context) (Browser, error) { return b, nil }, store)

		report := runner.Attempt(context.Background(),
			EmailInput{EmailID: 4, BodyHTML: `https://dead.example.com/unsubscribe`})

		if report.Success {
			t.Error("Success = true, want false")
		}
		if !strings.Contains(report.Error, ErrPageUnreachable.Error()) {
			t.Errorf("Error = %q, want unreachable", report.Error)
		}
		if !b.closed {
			t.Error("browser session not closed on failure")
		}
	})
}

func TestRunnerRun(t *testing.T) {
	// One email succeeds, one has no link; the batch still completes and
	// reports partial success.
	good := &stubBrowser{
		urls:       []string{"https://a.example.com/unsubscribe"},
		capture:    &Capture{Text: "unsubscribe below"},
		clickTexts: map[string]bool{"unsubscribe": true},
		pageTexts:  []string{"successfully removed"},
	}
	store := &memoryStore{}
	runner := testRunner(func(ctx context.Context) (Browser, error) { return good, nil }, store)

	summary := runner.Run(context.Background(), []EmailInput{
		{EmailID: 1, BodyHTML: `https://a.example.com/unsubscribe`},
		{EmailID: 2, BodyHTML: "no link here"},
	})

	if summary.Total != 2 {
		t.Errorf("Total = %d, want 2", summary.Total)
	}
	if summary.Unsubscribed != 1 {
		t.Errorf("Unsubscribed = %d, want 1", summary.Unsubscribed)
	}
	if len(summary.Results) != 2 {
		t.Fatalf("Results = %d entries, want 2", len(summary.Results))
	}
	if !summary.Results[0].Success || summary.Results[1].Success {
		t.Errorf("Results = %+v", summary.Results)
	}
	if len(store.outcomes) != 2 {
		t.Errorf("outcomes = %d records, want 2", len(store.outcomes))
	}
}
