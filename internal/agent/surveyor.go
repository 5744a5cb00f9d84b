package agent

import (
	"context"
	"fmt"
)

// visibleTextLimit bounds how much page text a snapshot carries, protecting
// the downstream reasoning call from unbounded payloads.
const visibleTextLimit = 2000

// Survey reads the live DOM exactly once and projects it into a bounded,
// read-only snapshot. It never mutates page state.
func Survey(ctx context.Context, b Browser) (*PageSnapshot, error) {
	raw, err := b.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotFailed, err)
	}

	text := raw.Text
	if runes := []rune(text); len(runes) > visibleTextLimit {
		text = string(runes[:visibleTextLimit])
	}

	snap := &PageSnapshot{
		URL:         raw.URL,
		Title:       raw.Title,
		VisibleText: text,
		Forms:       raw.Forms,
		Clickables:  raw.Clickables,
	}

	// Keyword flags are computed over the full capture, not the truncated
	// text, so a success banner below the fold still counts.
	snap.HasUnsubscribeKeyword = containsUnsubscribeKeyword(raw.Text)
	snap.HasSuccessKeyword = containsSuccessKeyword(raw.Text)

	return snap, nil
}
