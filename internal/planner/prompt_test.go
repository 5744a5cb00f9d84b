package planner

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mailsweep/mailsweep/internal/agent"
)

func TestBuildPrompt(t *testing.T) {
	t.Run("forbids fill_form on formless pages", func(t *testing.T) {
		prompt := BuildPrompt(&agent.PageSnapshot{URL: "https://x.com"})
		if !strings.Contains(prompt, `"fill_form" is FORBIDDEN`) {
			t.Error("prompt does not forbid fill_form")
		}
	})

	t.Run("allows fill_form when forms exist", func(t *testing.T) {
		prompt := BuildPrompt(&agent.PageSnapshot{
			URL:   "https://x.com",
			Forms: []agent.FormDescriptor{{Index: 0}},
		})
		if strings.Contains(prompt, "FORBIDDEN") {
			t.Error("prompt forbids fill_form despite forms on the page")
		}
	})

	t.Run("bounds the clickable list", func(t *testing.T) {
		var clickables []agent.ClickableDescriptor
		for i := 0; i < 200; i++ {
			clickables = append(clickables, agent.ClickableDescriptor{
				Tag:  "a",
				Text: fmt.Sprintf("link-%d", i),
			})
		}

		prompt := BuildPrompt(&agent.PageSnapshot{Clickables: clickables})
		if strings.Contains(prompt, "link-40") {
			t.Error("prompt carries clickables past the bound")
		}
		if !strings.Contains(prompt, "link-39") {
			t.Error("prompt missing clickables inside the bound")
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		snap := &agent.PageSnapshot{
			URL:         "https://x.com/unsub",
			Title:       "Preferences",
			VisibleText: "manage your subscription",
			Forms: []agent.FormDescriptor{{
				Index:  0,
				Fields: []agent.FieldDescriptor{{Type: "email", Name: "email"}},
			}},
		}
		if BuildPrompt(snap) != BuildPrompt(snap) {
			t.Error("same snapshot produced different prompts")
		}
	})
}
