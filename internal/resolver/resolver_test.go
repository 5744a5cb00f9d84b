package resolver

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "href contains unsubscribe",
			html: `<html><body><a href="https://news.example.com/unsubscribe?u=42">click here</a></body></html>`,
			want: "https://news.example.com/unsubscribe?u=42",
		},
		{
			name: "anchor text contains unsubscribe",
			html: `<html><body><a href="https://news.example.com/prefs?u=42">Unsubscribe from this list</a></body></html>`,
			want: "https://news.example.com/prefs?u=42",
		},
		{
			name: "href heuristic beats text heuristic",
			html: `<a href="https://x.com/general">Unsubscribe</a>` +
				`<a href="https://x.com/unsubscribe">manage</a>`,
			want: "https://x.com/unsubscribe",
		},
		{
			name: "first match in document order",
			html: `<a href="https://x.com/unsubscribe/first">a</a>` +
				`<a href="https://x.com/unsubscribe/second">b</a>`,
			want: "https://x.com/unsubscribe/first",
		},
		{
			name: "list-unsubscribe style token",
			html: `List-Unsubscribe: <https://mailer.example.com/u/abc123>`,
			want: "https://mailer.example.com/u/abc123",
		},
		{
			name: "bare url in plain text",
			html: `To stop receiving these emails visit https://example.com/unsubscribe/xyz today.`,
			want: "https://example.com/unsubscribe/xyz",
		},
		{
			name: "mailto with embedded url in body",
			html: `<a href="mailto:stop@example.com?subject=remove&body=https%3A%2F%2Fexample.com%2Funsubscribe%2F99">unsubscribe</a>`,
			want: "https://example.com/unsubscribe/99",
		},
		{
			name: "mailto without body is never returned",
			html: `<a href="mailto:unsubscribe@example.com">unsubscribe</a>`,
			want: "",
		},
		{
			name: "mailto skipped in favor of later heuristic",
			html: `<a href="mailto:unsubscribe@example.com">stop</a>` +
				` or visit https://example.com/unsubscribe/fallback`,
			want: "https://example.com/unsubscribe/fallback",
		},
		{
			name: "relative url is unusable",
			html: `<a href="/unsubscribe">unsubscribe</a>`,
			want: "",
		},
		{
			name: "non-http scheme is unusable",
			html: `<a href="ftp://example.com/unsubscribe">unsubscribe</a>`,
			want: "",
		},
		{
			name: "no unsubscribe signal at all",
			html: `<html><body><a href="https://example.com/read-more">Read more</a></body></html>`,
			want: "",
		},
		{
			name: "empty input",
			html: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.html); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	html := `<a href="https://news.example.com/unsubscribe?u=42">unsubscribe</a>`
	first := Resolve(html)
	second := Resolve(html)
	if first != second || first == "" {
		t.Errorf("Resolve() = %q then %q, want identical non-empty", first, second)
	}
}
