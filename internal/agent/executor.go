package agent

import (
	"context"
	"fmt"
	"strings"
)

// Executor interprets a directive against the live page. Each action type
// expands into an ordered list of attempt closures; tiers run in sequence
// with early exit on first success, and any interaction failure is absorbed
// as "this tier did not succeed". Only total exhaustion of every tier,
// including the final fallback scan, yields Attempted=false.
type Executor struct {
	browser Browser
}

func NewExecutor(b Browser) *Executor {
	return &Executor{browser: b}
}

// tier is one fallback strategy. Returning true stops the cascade.
type tier func(ctx context.Context) bool

// Execute runs the cascade for the directive's action type, then the global
// final fallback if nothing reported success.
func (e *Executor) Execute(ctx context.Context, snap *PageSnapshot, d Directive) ExecutionResult {
	action := d.Action

	// A fill_form directive against a page without forms is a planner
	// hallucination; degrade to the click cascade.
	if action == ActionFillForm && len(snap.Forms) == 0 {
		action = ActionClickButton
	}

	var tiers []tier
	switch action {
	case ActionClickButton:
		tiers = e.clickButtonTiers(d)
	case ActionFillForm:
		tiers = []tier{func(ctx context.Context) bool {
			return e.fillFormAndSubmit(ctx, snap, d)
		}}
	case ActionToggleCheckbox:
		tiers = e.toggleCheckboxTiers(d)
	case ActionFollowLink:
		tiers = e.followLinkTiers()
	case ActionNone:
		// A no-op is only legitimate when the page already reads as done.
		if snap.HasSuccessKeyword {
			return ExecutionResult{Attempted: true, SucceededByPrimary: true}
		}
	}

	for _, t := range tiers {
		if t(ctx) {
			return ExecutionResult{Attempted: true, SucceededByPrimary: true}
		}
	}

	// Final fallback, regardless of directive: scan every clickable for
	// opt-out-ish text and click the first match.
	for _, kw := range fallbackClickKeywords {
		if e.browser.ClickByText(ctx, kw, nil) == nil {
			return ExecutionResult{Attempted: true}
		}
	}

	return ExecutionResult{}
}

func (e *Executor) clickButtonTiers(d Directive) []tier {
	var tiers []tier

	if d.Selector != "" {
		sel := d.Selector
		tiers = append(tiers, func(ctx context.Context) bool {
			return e.clickHint(ctx, sel)
		})
	}
	if d.ButtonText != "" {
		text := d.ButtonText
		tiers = append(tiers, func(ctx context.Context) bool {
			return e.browser.ClickByText(ctx, text, nil) == nil
		})
	}
	tiers = append(tiers, func(ctx context.Context) bool {
		return e.browser.ClickByText(ctx, "unsubscribe", nil) == nil
	})

	return tiers
}

func (e *Executor) toggleCheckboxTiers(d Directive) []tier {
	var tiers []tier

	if d.Selector != "" {
		sel := d.Selector
		tiers = append(tiers, func(ctx context.Context) bool {
			return e.browser.ClickSelector(ctx, sel) == nil
		})
	}
	tiers = append(tiers, func(ctx context.Context) bool {
		return e.browser.ClickSelector(ctx, "input[type='checkbox']") == nil
	})

	return tiers
}

func (e *Executor) followLinkTiers() []tier {
	return []tier{
		func(ctx context.Context) bool {
			return e.browser.ClickByText(ctx, "unsubscribe", []string{"a"}) == nil
		},
		func(ctx context.Context) bool {
			return e.browser.ClickByText(ctx, "confirm", []string{"a"}) == nil
		},
	}
}

// fillFormAndSubmit fills each directive field through a list of candidate
// selectors, then walks the submit cascade. It reports failure when fields
// were requested but none could be filled, leaving the final fallback to
// salvage the attempt.
func (e *Executor) fillFormAndSubmit(ctx context.Context, snap *PageSnapshot, d Directive) bool {
	filled := 0
	for _, field := range d.FormFields {
		if e.fillField(ctx, snap, field) {
			filled++
		}
	}
	if len(d.FormFields) > 0 && filled == 0 {
		return false
	}

	return e.submitFilledForm(ctx, snap, d)
}

func (e *Executor) fillField(ctx context.Context, snap *PageSnapshot, field DirectiveField) bool {
	desc := findFieldDescriptor(snap, field)

	for _, sel := range candidateSelectors(field, desc) {
		var err error
		switch fieldKind(desc) {
		case "select":
			value, ok := matchOption(desc.Options, field.Value)
			if !ok {
				continue
			}
			err = e.browser.SelectOption(ctx, sel, value)
		case "checkbox", "radio":
			err = e.browser.SetChecked(ctx, sel, wantsChecked(field.Value))
		default:
			err = e.browser.FillText(ctx, sel, field.Value)
		}
		if err == nil {
			return true
		}
	}
	return false
}

func (e *Executor) submitFilledForm(ctx context.Context, snap *PageSnapshot, d Directive) bool {
	if d.Selector != "" && e.clickHint(ctx, d.Selector) {
		return true
	}
	if d.ButtonText != "" && e.browser.ClickByText(ctx, d.ButtonText, nil) == nil {
		return true
	}
	if e.browser.ClickByText(ctx, "unsubscribe", nil) == nil {
		return true
	}
	if e.browser.ClickByText(ctx, "submit", nil) == nil {
		return true
	}
	// Last resort: programmatic submission of the first form.
	return e.browser.SubmitForm(ctx, snap.Forms[0].Index) == nil
}

// clickHint clicks a selector hint, translating jQuery-style
// `tag:contains('text')` pseudo-selectors (which the reasoning service
// produces now and then, and which no real engine accepts) into a text
// lookup.
func (e *Executor) clickHint(ctx context.Context, selector string) bool {
	if tag, text, ok := splitContainsSelector(selector); ok {
		var tags []string
		if tag != "" && tag != "*" {
			tags = []string{tag}
		}
		return e.browser.ClickByText(ctx, text, tags) == nil
	}
	return e.browser.ClickSelector(ctx, selector) == nil
}

// splitContainsSelector parses `button:contains('Submit')` into its tag and
// text parts.
func splitContainsSelector(selector string) (tag, text string, ok bool) {
	idx := strings.Index(selector, ":contains(")
	if idx < 0 {
		return "", "", false
	}
	tag = strings.TrimSpace(selector[:idx])
	rest := selector[idx+len(":contains("):]
	end := strings.LastIndex(rest, ")")
	if end < 0 {
		return "", "", false
	}
	text = strings.Trim(rest[:end], `'" `)
	if text == "" {
		return "", "", false
	}
	return tag, text, true
}

// findFieldDescriptor locates the snapshot field a directive field refers
// to, by name, id, or a #id selector hint.
func findFieldDescriptor(snap *PageSnapshot, field DirectiveField) *FieldDescriptor {
	id := ""
	if strings.HasPrefix(field.Selector, "#") {
		id = field.Selector[1:]
	}

	for fi := range snap.Forms {
		for di := range snap.Forms[fi].Fields {
			desc := &snap.Forms[fi].Fields[di]
			if field.Name != "" && (desc.Name == field.Name || desc.ID == field.Name) {
				return desc
			}
			if id != "" && desc.ID == id {
				return desc
			}
		}
	}
	return nil
}

// candidateSelectors derives the selectors to try for one directive field:
// the explicit hint first, then id/name attribute patterns across input,
// select, and textarea elements.
func candidateSelectors(field DirectiveField, desc *FieldDescriptor) []string {
	var out []string
	if field.Selector != "" {
		out = append(out, field.Selector)
	}

	names := []string{}
	if field.Name != "" {
		names = append(names, field.Name)
	}
	if desc != nil && desc.Name != "" && (field.Name == "" || desc.Name != field.Name) {
		names = append(names, desc.Name)
	}
	for _, name := range names {
		out = append(out,
			fmt.Sprintf("#%s", name),
			fmt.Sprintf("input[name=%q]", name),
			fmt.Sprintf("select[name=%q]", name),
			fmt.Sprintf("textarea[name=%q]", name),
		)
	}
	if desc != nil && desc.ID != "" {
		out = append(out, "#"+desc.ID)
	}

	return out
}

func fieldKind(desc *FieldDescriptor) string {
	if desc == nil {
		return "text"
	}
	switch desc.Type {
	case "select", "select-one", "select-multiple":
		return "select"
	case "checkbox":
		return "checkbox"
	case "radio":
		return "radio"
	}
	if len(desc.Options) > 0 {
		return "select"
	}
	return "text"
}

// matchOption resolves the directive's value against a select's options:
// exact value first, then case-insensitive value or text, then substring
// containment against option text.
func matchOption(options []OptionDescriptor, value string) (string, bool) {
	for _, opt := range options {
		if opt.Value == value {
			return opt.Value, true
		}
	}
	lower := strings.ToLower(value)
	for _, opt := range options {
		if strings.ToLower(opt.Value) == lower || strings.ToLower(opt.Text) == lower {
			return opt.Value, true
		}
	}
	for _, opt := range options {
		if strings.Contains(strings.ToLower(opt.Text), lower) {
			return opt.Value, true
		}
	}
	return "", false
}

// wantsChecked interprets the directive's value for a checkbox/radio field.
func wantsChecked(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "false", "no", "0", "off", "unchecked":
		return false
	}
	return true
}
