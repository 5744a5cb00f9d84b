package agent

import "strings"

// successKeywords are the textual signals that an unsubscribe went through.
// There is no feedback contract from target sites, so this stays a
// best-effort heuristic shared by the surveyor and the verifier.
var successKeywords = []string{
	"unsubscribed",
	"success",
	"removed",
	"opt-out",
	"opt out",
	"confirmed",
	"preferences updated",
}

// fallbackClickKeywords drive the executor's final fallback scan over all
// clickable elements, in precedence order.
var fallbackClickKeywords = []string{
	"unsubscribe",
	"opt out",
	"opt-out",
	"remove",
	"confirm",
	"proceed",
	"submit",
}

func containsSuccessKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range successKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func containsUnsubscribeKeyword(text string) bool {
	return strings.Contains(strings.ToLower(text), "unsubscribe")
}

// urlSignalsSuccess requires the URL to carry both an unsubscribe-related
// token and a success/confirm-related token before it counts as a success
// signal on its own.
func urlSignalsSuccess(pageURL string) bool {
	lower := strings.ToLower(pageURL)

	unsub := strings.Contains(lower, "unsubscribe") ||
		strings.Contains(lower, "opt-out") ||
		strings.Contains(lower, "optout")
	if !unsub {
		return false
	}

	return strings.Contains(lower, "success") ||
		strings.Contains(lower, "confirm") ||
		strings.Contains(lower, "complete") ||
		strings.Contains(lower, "done")
}
