package planner

import (
	"reflect"
	"testing"

	"github.com/mailsweep/mailsweep/internal/agent"
)

func TestParseDirective(t *testing.T) {
	tests := []struct {
		name     string
		response string
		hasForms bool
		want     agent.Directive
	}{
		{
			name:     "clean json",
			response: `{"action": "click_button", "button_text": "Unsubscribe", "reason": "single button"}`,
			want:     agent.Directive{Action: agent.ActionClickButton, ButtonText: "Unsubscribe", Reason: "single button"},
		},
		{
			name:     "json buried in prose and fences",
			response: "Sure! Here's the JSON: ```json\n{\"action\": \"click_button\"}\n``` Hope that helps!",
			want:     agent.Directive{Action: agent.ActionClickButton},
		},
		{
			name:     "no json at all",
			response: "I cannot determine the right action for this page.",
			want:     agent.DefaultDirective(),
		},
		{
			name:     "empty response",
			response: "",
			want:     agent.DefaultDirective(),
		},
		{
			name:     "malformed json",
			response: `{"action": "click_button", "button_text": `,
			want:     agent.DefaultDirective(),
		},
		{
			name:     "unknown action coerces to click_button",
			response: `{"action": "solve_captcha", "selector": "#btn"}`,
			want:     agent.Directive{Action: agent.ActionClickButton, Selector: "#btn"},
		},
		{
			name:     "action is case and whitespace tolerant",
			response: `{"action": " Fill_Form ", "form_fields": [{"field_name": "email", "value": "x@y.com"}]}`,
			hasForms: true,
			want: agent.Directive{
				Action:     agent.ActionFillForm,
				FormFields: []agent.DirectiveField{{Name: "email", Value: "x@y.com"}},
			},
		},
		{
			name:     "form fields dropped when page has no forms",
			response: `{"action": "fill_form", "form_fields": [{"field_name": "email", "value": "x@y.com"}]}`,
			hasForms: false,
			want:     agent.Directive{Action: agent.ActionFillForm},
		},
		{
			name:     "form_data object shape",
			response: `{"action": "fill_form", "form_data": {"email": "x@y.com"}}`,
			hasForms: true,
			want: agent.Directive{
				Action:     agent.ActionFillForm,
				FormFields: []agent.DirectiveField{{Name: "email", Value: "x@y.com"}},
			},
		},
		{
			name:     "fields without selector or name are skipped",
			response: `{"action": "fill_form", "form_fields": [{"value": "orphan"}, {"field_name": "ok", "value": "v"}]}`,
			hasForms: true,
			want: agent.Directive{
				Action:     agent.ActionFillForm,
				FormFields: []agent.DirectiveField{{Name: "ok", Value: "v"}},
			},
		},
		{
			name:     "braces inside strings do not break extraction",
			response: `{"action": "click_button", "reason": "the text says {done} already"}`,
			want:     agent.Directive{Action: agent.ActionClickButton, Reason: "the text says {done} already"},
		},
		{
			name:     "none action passes through",
			response: `{"action": "none", "reason": "page already confirms"}`,
			want:     agent.Directive{Action: agent.ActionNone, Reason: "page already confirms"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDirective(tt.response, tt.hasForms)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseDirective() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"nested object", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
		{"prose around", `before {"a": 1} after`, `{"a": 1}`},
		{"brace in string", `{"a": "}"}`, `{"a": "}"}`},
		{"escaped quote in string", `{"a": "\"}\""}`, `{"a": "\"}\""}`},
		{"unbalanced", `{"a": 1`, ""},
		{"no object", "plain text", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSONObject(tt.in); got != tt.want {
				t.Errorf("extractJSONObject(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
