package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var errStubMiss = errors.New("element not found")

// stubBrowser scripts browser behavior for pipeline stage tests. Interaction
// methods succeed when their argument is in the corresponding allow set, and
// every call is appended to calls for order assertions.
type stubBrowser struct {
	navigateErrs map[WaitMode]error

	urls   []string
	urlIdx int
	urlErr error

	readyErrs []error
	readyIdx  int

	capture    *Capture
	captureErr error

	pageTexts   []string
	textIdx     int
	pageTextErr error

	clickTexts      map[string]bool
	clickSelectors  map[string]bool
	fillSelectors   map[string]bool
	checkSelectors  map[string]bool
	selectSelectors map[string]bool
	submitOK        bool

	calls  []string
	closed bool
}

func (s *stubBrowser) Navigate(ctx context.Context, url string, wait WaitMode) error {
	s.calls = append(s.calls, fmt.Sprintf("navigate:%d", wait))
	return s.navigateErrs[wait]
}

func (s *stubBrowser) URL(ctx context.Context) (string, error) {
	if s.urlErr != nil {
		return "", s.urlErr
	}
	if len(s.urls) == 0 {
		return "", nil
	}
	u := s.urls[s.urlIdx]
	if s.urlIdx < len(s.urls)-1 {
		s.urlIdx++
	}
	return u, nil
}

func (s *stubBrowser) Ready(ctx context.Context) error {
	s.calls = append(s.calls, "ready")
	if s.readyIdx >= len(s.readyErrs) {
		return nil
	}
	err := s.readyErrs[s.readyIdx]
	s.readyIdx++
	return err
}

func (s *stubBrowser) Capture(ctx context.Context) (*Capture, error) {
	if s.captureErr != nil {
		return nil, s.captureErr
	}
	if s.capture == nil {
		return &Capture{}, nil
	}
	return s.capture, nil
}

func (s *stubBrowser) PageText(ctx context.Context) (string, error) {
	s.calls = append(s.calls, "pageText")
	if s.pageTextErr != nil {
		return "", s.pageTextErr
	}
	if len(s.pageTexts) == 0 {
		return "", nil
	}
	t := s.pageTexts[s.textIdx]
	if s.textIdx < len(s.pageTexts)-1 {
		s.textIdx++
	}
	return t, nil
}

func (s *stubBrowser) ClickSelector(ctx context.Context, selector string) error {
	s.calls = append(s.calls, "clickSelector:"+selector)
	if s.clickSelectors[selector] {
		return nil
	}
	return errStubMiss
}

func (s *stubBrowser) ClickByText(ctx context.Context, text string, tags []string) error {
	s.calls = append(s.calls, "clickByText:"+text+":"+strings.Join(tags, ","))
	if s.clickTexts[text] {
		return nil
	}
	return errStubMiss
}

func (s *stubBrowser) FillText(ctx context.Context, selector, value string) error {
	s.calls = append(s.calls, "fillText:"+selector)
	if s.fillSelectors[selector] {
		return nil
	}
	return errStubMiss
}

func (s *stubBrowser) SetChecked(ctx context.Context, selector string, checked bool) error {
	s.calls = append(s.calls, fmt.Sprintf("setChecked:%s:%t", selector, checked))
	if s.checkSelectors[selector] {
		return nil
	}
	return errStubMiss
}

func (s *stubBrowser) SelectOption(ctx context.Context, selector, value string) error {
	s.calls = append(s.calls, "selectOption:"+selector+":"+value)
	if s.selectSelectors[selector] {
		return nil
	}
	return errStubMiss
}

func (s *stubBrowser) SubmitForm(ctx context.Context, index int) error {
	s.calls = append(s.calls, fmt.Sprintf("submitForm:%d", index))
	if s.submitOK {
		return nil
	}
	return errStubMiss
}

func (s *stubBrowser) Close() { s.closed = true }
