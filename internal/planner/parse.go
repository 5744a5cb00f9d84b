package planner

import (
	"encoding/json"
	"strings"

	"github.com/mailsweep/mailsweep/internal/agent"
)

// rawDirective tolerates the shapes reasoning services actually produce:
// form fields as a list or as a flat object, and assorted synonym keys.
type rawDirective struct {
	Action     string            `json:"action"`
	Selector   string            `json:"selector"`
	ButtonText string            `json:"button_text"`
	FormFields []rawField        `json:"form_fields"`
	FormData   map[string]string `json:"form_data"`
	Reason     string            `json:"reason"`
}

type rawField struct {
	Selector string `json:"selector"`
	Name     string `json:"field_name"`
	Value    string `json:"value"`
}

var knownActions = map[agent.Action]bool{
	agent.ActionClickButton:    true,
	agent.ActionFillForm:       true,
	agent.ActionToggleCheckbox: true,
	agent.ActionFollowLink:     true,
	agent.ActionNone:           true,
}

// ParseDirective extracts one JSON object from the response text and
// validates it into a directive. The response is untrusted: wrapping prose,
// markdown fences, and malformed JSON all degrade to the default directive;
// an unknown or missing action coerces to click_button; form fields are
// dropped unless the action is fill_form and the page actually had forms.
func ParseDirective(response string, hasForms bool) agent.Directive {
	obj := extractJSONObject(response)
	if obj == "" {
		return agent.DefaultDirective()
	}

	var raw rawDirective
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return agent.DefaultDirective()
	}

	d := agent.Directive{
		Action:     agent.Action(strings.ToLower(strings.TrimSpace(raw.Action))),
		Selector:   strings.TrimSpace(raw.Selector),
		ButtonText: strings.TrimSpace(raw.ButtonText),
		Reason:     raw.Reason,
	}
	if !knownActions[d.Action] {
		d.Action = agent.ActionClickButton
	}

	if d.Action == agent.ActionFillForm && hasForms {
		for _, f := range raw.FormFields {
			if f.Selector == "" && f.Name == "" {
				continue
			}
			d.FormFields = append(d.FormFields, agent.DirectiveField{
				Selector: f.Selector,
				Name:     f.Name,
				Value:    f.Value,
			})
		}
		for name, value := range raw.FormData {
			d.FormFields = append(d.FormFields, agent.DirectiveField{Name: name, Value: value})
		}
	}

	return d
}

// extractJSONObject returns the first balanced JSON object substring,
// skipping braces inside string literals. Markdown fences and surrounding
// prose fall away for free.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
