// Package resolver extracts a candidate unsubscribe URL from raw email
// markup. It is pure text processing: deterministic, idempotent, and never
// touches the network or a browser.
package resolver

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// Anchor regexes used when the HTML is too broken for a DOM parse.
	hrefUnsubscribeRegex = regexp.MustCompile(`(?i)<a[^>]*href=["']([^"']*unsubscribe[^"']*)["'][^>]*>`)
	textUnsubscribeRegex = regexp.MustCompile(`(?i)<a[^>]*href=["']([^"']+)["'][^>]*>[\s\S]*?unsubscribe`)

	// List-Unsubscribe-style token: `list-unsubscribe:` or a bare
	// `unsubscribe:` followed by an angle-bracketed or bare URI.
	listUnsubscribeRegex = regexp.MustCompile(`(?i)(?:list-unsubscribe|unsubscribe)\s*:\s*<?([^\s>]+)>?`)

	// Any bare URL substring containing "unsubscribe".
	bareURLRegex = regexp.MustCompile(`(?i)https?://[^\s"'<>]*unsubscribe[^\s"'<>]*`)

	mailtoBodyRegex = regexp.MustCompile(`[?&]body=([^&]+)`)
)

// Resolve applies the extraction heuristics in precedence order and returns
// the first structurally valid http(s) URL, or "" when no pattern yields a
// usable one. Each heuristic contributes its first match only; an unusable
// candidate falls through to the next pattern.
func Resolve(emailHTML string) string {
	if emailHTML == "" {
		return ""
	}

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(emailHTML))

	heuristics := []func() string{
		// 1. Anchor whose href contains "unsubscribe".
		func() string {
			if docErr != nil {
				if m := hrefUnsubscribeRegex.FindStringSubmatch(emailHTML); m != nil {
					return m[1]
				}
				return ""
			}
			return firstAnchor(doc, func(href, text string) bool {
				return strings.Contains(strings.ToLower(href), "unsubscribe")
			})
		},
		// 2. Anchor whose visible text contains "unsubscribe"; take its href.
		func() string {
			if docErr != nil {
				if m := textUnsubscribeRegex.FindStringSubmatch(emailHTML); m != nil {
					return m[1]
				}
				return ""
			}
			return firstAnchor(doc, func(href, text string) bool {
				return strings.Contains(strings.ToLower(text), "unsubscribe")
			})
		},
		// 3. List-Unsubscribe-style token.
		func() string {
			if m := listUnsubscribeRegex.FindStringSubmatch(emailHTML); m != nil {
				return m[1]
			}
			return ""
		},
		// 4. Bare URL containing "unsubscribe".
		func() string {
			return bareURLRegex.FindString(emailHTML)
		},
	}

	for _, h := range heuristics {
		if u := usableURL(h()); u != "" {
			return u
		}
	}
	return ""
}

// firstAnchor returns the href of the first anchor, in document order, that
// the predicate accepts.
func firstAnchor(doc *goquery.Document, match func(href, text string) bool) string {
	found := ""
	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if href == "" {
			return true
		}
		if match(href, s.Text()) {
			found = href
			return false
		}
		return true
	})
	return found
}

// usableURL cleans a raw candidate and validates it down to an http(s) URL.
// mailto: candidates are salvaged only when their body= parameter carries an
// embedded URL; otherwise they are discarded.
func usableURL(candidate string) string {
	cleaned := strings.TrimSpace(strings.NewReplacer(`"`, "", `'`, "", "<", "", ">", "").Replace(candidate))
	if cleaned == "" {
		return ""
	}

	if strings.HasPrefix(strings.ToLower(cleaned), "mailto:") {
		m := mailtoBodyRegex.FindStringSubmatch(cleaned)
		if m == nil {
			return ""
		}
		decoded, err := url.QueryUnescape(m[1])
		if err != nil {
			return ""
		}
		cleaned = decoded
	}

	parsed, err := url.Parse(cleaned)
	if err != nil {
		return ""
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ""
	}
	return cleaned
}
