package planner

import (
	"encoding/json"
	"fmt"

	"github.com/mailsweep/mailsweep/internal/agent"
)

const systemPrompt = `You are an agent that unsubscribes users from email lists. ` +
	`You analyze a webpage and decide the single interaction that opts the user out. ` +
	`Respond with valid JSON only.`

// maxClickablesInPrompt bounds how many clickable elements the prompt
// carries; pages routinely expose hundreds of anchors.
const maxClickablesInPrompt = 40

// BuildPrompt renders the snapshot into the fixed instruction contract sent
// to the reasoning collaborator. Pure function: same snapshot, same prompt.
func BuildPrompt(snap *agent.PageSnapshot) string {
	clickables := snap.Clickables
	if len(clickables) > maxClickablesInPrompt {
		clickables = clickables[:maxClickablesInPrompt]
	}

	formsJSON, _ := json.MarshalIndent(snap.Forms, "", "  ")
	clickablesJSON, _ := json.MarshalIndent(clickables, "", "  ")

	formRule := `- "fill_form" is FORBIDDEN: this page has no forms`
	if len(snap.Forms) > 0 {
		formRule = `- Use "fill_form" only when a listed form must be filled before submitting`
	}

	return fmt.Sprintf(`Analyze this unsubscribe page and decide what to do.

URL: %s
Title: %s

Page text (truncated):
%s

Forms on the page:
%s

Clickable elements:
%s

Respond with ONLY a single JSON object, no other text, with these keys:
1. "action": one of ["click_button", "fill_form", "toggle_checkbox", "follow_link", "none"]
2. "selector": CSS selector for the element to interact with (null or omitted unless you can derive a reliable one from the data above)
3. "button_text": exact text of the button to click (preferred over "selector")
4. "form_fields": array of {"field_name", "value"} objects (only when action is "fill_form")
5. "reason": brief justification (optional)

Rules:
- Prefer "button_text" over "selector"; never invent selectors
%s
- Use "none" only when the page already shows a success/unsubscribed message
- Selectors must be plain CSS (id, class, or attribute selectors)`,
		snap.URL, snap.Title, snap.VisibleText, formsJSON, clickablesJSON, formRule)
}
