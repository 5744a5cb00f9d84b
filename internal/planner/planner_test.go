package planner

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mailsweep/mailsweep/internal/agent"
)

type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

func TestPlan(t *testing.T) {
	snap := &agent.PageSnapshot{
		URL:   "https://example.com/unsub",
		Title: "Unsubscribe",
	}

	t.Run("returns the parsed directive", func(t *testing.T) {
		p := New(completerFunc(func(ctx context.Context, system, user string) (string, error) {
			return `{"action": "follow_link"}`, nil
		}), nil)

		got := p.Plan(context.Background(), snap)
		if got.Action != agent.ActionFollowLink {
			t.Errorf("Action = %q, want follow_link", got.Action)
		}
	})

	t.Run("transport failure degrades to default", func(t *testing.T) {
		p := New(completerFunc(func(ctx context.Context, system, user string) (string, error) {
			return "", errors.New("429 too many requests")
		}), nil)

		got := p.Plan(context.Background(), snap)
		if !reflect.DeepEqual(got, agent.DefaultDirective()) {
			t.Errorf("Plan() = %+v, want default directive", got)
		}
	})

	t.Run("prompt carries the snapshot", func(t *testing.T) {
		var captured string
		p := New(completerFunc(func(ctx context.Context, system, user string) (string, error) {
			captured = user
			return `{"action": "none"}`, nil
		}), nil)

		p.Plan(context.Background(), snap)
		if captured == "" {
			t.Fatal("completer never called")
		}
		if want := "https://example.com/unsub"; !strings.Contains(captured, want) {
			t.Errorf("prompt does not mention %q", want)
		}
	})
}
