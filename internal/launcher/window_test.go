package launcher

import (
	"testing"

	"github.com/tmuxagentsd/daemon/internal/store"
)

func TestTaskWindowName(t *testing.T) {
	task := &store.Task{ID: "0123456789abcdef", Description: "Fix the login bug"}
	got := taskWindowName(task)
	want := "Fix -0123456789abcde"
	if got != want {
		t.Errorf("taskWindowName() = %q, want %q", got, want)
	}
}

func TestFirstNShorterThanN(t *testing.T) {
	if got := firstN("ab", 5); got != "ab" {
		t.Errorf("firstN(short) = %q, want ab", got)
	}
}

func TestShellQuoteEscapesSingleQuotes(t *testing.T) {
	got := shellQuote("/tmp/it's a path")
	want := `'/tmp/it'\''s a path'`
	if got != want {
		t.Errorf("shellQuote() = %q, want %q", got, want)
	}
}
