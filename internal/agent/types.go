// Package agent runs the autonomous unsubscribe pipeline: resolve a link,
// drive a browser session to the page, plan an interaction, execute it
// through a fallback cascade, and verify the outcome.
package agent

// Target is the unsubscribe link extracted from an email. Immutable once
// resolved.
type Target struct {
	SourceURL string
}

// NavigationState tracks where the browser session ended up after opening
// the target and following redirects.
type NavigationState struct {
	CurrentURL    string
	RedirectCount int
	PageReady     bool
}

// PageSnapshot is a point-in-time, bounded projection of the live DOM. It is
// never mutated; a fresh snapshot supersedes it.
type PageSnapshot struct {
	URL                   string
	Title                 string
	VisibleText           string
	Forms                 []FormDescriptor
	Clickables            []ClickableDescriptor
	HasUnsubscribeKeyword bool
	HasSuccessKeyword     bool
}

// FormDescriptor describes one form on the page.
type FormDescriptor struct {
	Index  int               `json:"index"`
	Action string            `json:"action"`
	Method string            `json:"method"`
	Fields []FieldDescriptor `json:"fields"`
}

// FieldDescriptor describes one input/select/textarea inside a form.
type FieldDescriptor struct {
	Type         string             `json:"type"`
	Name         string             `json:"name"`
	ID           string             `json:"id"`
	Placeholder  string             `json:"placeholder"`
	Label        string             `json:"label"`
	CurrentValue string             `json:"current_value"`
	Required     bool               `json:"required"`
	Checked      bool               `json:"checked"`
	Options      []OptionDescriptor `json:"options,omitempty"`
}

// OptionDescriptor describes one option of a select field.
type OptionDescriptor struct {
	Value    string `json:"value"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

// ClickableDescriptor describes a button, link, or submit input.
type ClickableDescriptor struct {
	Tag         string `json:"tag"`
	Text        string `json:"text"`
	ElementType string `json:"type"`
	ID          string `json:"id"`
	ClassName   string `json:"class"`
	Href        string `json:"href"`
}

// Action is the closed set of interactions the planner may request.
type Action string

const (
	ActionClickButton    Action = "click_button"
	ActionFillForm       Action = "fill_form"
	ActionToggleCheckbox Action = "toggle_checkbox"
	ActionFollowLink     Action = "follow_link"
	ActionNone           Action = "none"
)

// DirectiveField is one field the planner wants filled.
type DirectiveField struct {
	Selector string `json:"selector,omitempty"`
	Name     string `json:"field_name,omitempty"`
	Value    string `json:"value"`
}

// Directive is the validated, typed instruction derived from the reasoning
// collaborator's response. Immutable once accepted; its selector and text
// hints feed the executor cascades, they are never executed blindly.
type Directive struct {
	Action     Action           `json:"action"`
	Selector   string           `json:"selector,omitempty"`
	ButtonText string           `json:"button_text,omitempty"`
	FormFields []DirectiveField `json:"form_fields,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

// DefaultDirective is used whenever the reasoning response cannot be parsed:
// look for anything labeled "unsubscribe" and click it.
func DefaultDirective() Directive {
	return Directive{Action: ActionClickButton, ButtonText: "unsubscribe"}
}

// ExecutionResult records whether any interaction occurred, independent of
// final verified success.
type ExecutionResult struct {
	Attempted          bool
	SucceededByPrimary bool
}

// Outcome is the final, externally reported result of one attempt.
type Outcome struct {
	Success bool
}

// EmailInput is what the mail collaborator supplies for one attempt.
type EmailInput struct {
	EmailID   int64
	MessageID string
	BodyHTML  string
}

// AttemptReport is the per-email result reported back to the caller.
type AttemptReport struct {
	EmailID   int64  `json:"email_id"`
	MessageID string `json:"message_id"`
	Link      string `json:"link,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// BatchSummary aggregates a batch of attempts.
type BatchSummary struct {
	Unsubscribed int             `json:"unsubscribed"`
	Total        int             `json:"total"`
	Results      []AttemptReport `json:"results"`
}
