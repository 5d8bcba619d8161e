package integrations

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestBuiltinActions(t *testing.T) {
	r := NewRegistry()
	r.now = func() time.Time {
		return time.Date(2025, 3, 14, 15, 4, 0, 0, time.UTC)
	}
	ctx := context.Background()

	msg, handled, err := r.Execute(ctx, "get_time", nil, "u")
	if err != nil || !handled {
		t.Fatalf("get_time: handled=%v err=%v", handled, err)
	}
	if !strings.Contains(msg, "3:04 PM") {
		t.Errorf("get_time message = %q", msg)
	}

	msg, handled, _ = r.Execute(ctx, "get_date", nil, "u")
	if !handled || !strings.Contains(msg, "March 14, 2025") {
		t.Errorf("get_date: handled=%v message=%q", handled, msg)
	}
}

func TestUnknownActionIsNoOp(t *testing.T) {
	r := NewRegistry()

	msg, handled, err := r.Execute(context.Background(), "launch_rocket", nil, "u")
	if handled || err != nil || msg != "" {
		t.Errorf("unknown action: msg=%q handled=%v err=%v, want silent no-op", msg, handled, err)
	}
}

func TestRegisterCustomHandler(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", func(_ context.Context, data map[string]any, _ string) (string, error) {
		return fmt.Sprintf("echo: %v", data["text"]), nil
	})

	msg, handled, err := r.Execute(context.Background(), "echo", map[string]any{"text": "hi"}, "u")
	if err != nil || !handled || msg != "echo: hi" {
		t.Errorf("custom handler: msg=%q handled=%v err=%v", msg, handled, err)
	}
}

func TestHandlerErrorWrapped(t *testing.T) {
	r := NewRegistry()
	r.Register("boom", func(context.Context, map[string]any, string) (string, error) {
		return "", fmt.Errorf("service down")
	})

	_, handled, err := r.Execute(context.Background(), "boom", nil, "u")
	if !handled || err == nil {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want action name in message", err)
	}
}

func TestActionsListed(t *testing.T) {
	r := NewRegistry()
	got := r.Actions()
	want := []string{"get_date", "get_time"}
	if len(got) != len(want) {
		t.Fatalf("Actions = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Actions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
