package monitor

import (
	"strings"
	"testing"

	"github.com/tmuxagentsd/daemon/internal/store"
	"github.com/tmuxagentsd/daemon/internal/tmux"
)

func TestProcessingSetPreventsDoubleStart(t *testing.T) {
	p := newProcessingSet()
	if !p.tryStart("a") {
		t.Fatal("expected first tryStart to succeed")
	}
	if p.tryStart("a") {
		t.Fatal("expected second tryStart to fail while still in flight")
	}
	p.finish("a")
	if !p.tryStart("a") {
		t.Fatal("expected tryStart to succeed again after finish")
	}
}

func TestLooksLikeApprovalPrompt(t *testing.T) {
	cases := []struct {
		capture string
		want    bool
	}{
		{"Do you want to proceed?", true},
		{"Overwrite file (y/n)", true},
		{"Shall I continue with the refactor", true},
		{"some ordinary output\nbuild succeeded", false},
		{"is this ok?", true},
	}
	for _, c := range cases {
		if got := looksLikeApprovalPrompt(c.capture); got != c.want {
			t.Errorf("looksLikeApprovalPrompt(%q) = %v, want %v", c.capture, got, c.want)
		}
	}
}

func TestSummarizePrefersResultAndErrorLines(t *testing.T) {
	capture := "running tests\nerror: missing dependency\nall tests passed\nbuild complete\nfatal: disk full"
	got := summarize(capture)
	if got == "" {
		t.Fatal("expected a non-empty summary")
	}
	if !containsAll(got, []string{"all tests passed", "build complete", "Issues:", "missing dependency", "disk full"}) {
		t.Errorf("summarize() = %q, missing expected lines", got)
	}
}

func TestSummarizeFallsBackToLastLines(t *testing.T) {
	capture := "line one\nline two\nline three"
	got := summarize(capture)
	want := "- line one\n- line two\n- line three"
	if got != want {
		t.Errorf("summarize() = %q, want %q", got, want)
	}
}

// TestSummarizeAutoCloseGracePeriod is the literal auto-close grace-period
// scenario: a 500-line capture of "Tests pass\nAll green\n$" bullets both
// real lines and drops the trailing shell prompt.
func TestSummarizeAutoCloseGracePeriod(t *testing.T) {
	got := summarize("Tests pass\nAll green\n$")
	want := "- Tests pass\n- All green"
	if got != want {
		t.Errorf("summarize() = %q, want %q", got, want)
	}
}

// TestAppendSectionCompletionSummary is the literal completion-signal
// scenario: a single newline separates the header from the first summary
// line, not a blank line.
func TestAppendSectionCompletionSummary(t *testing.T) {
	got := appendSection("", "**Completion Summary:**", "Built feature X\nAll tests pass")
	want := "**Completion Summary:**\nBuilt feature X\nAll tests pass"
	if got != want {
		t.Errorf("appendSection() = %q, want %q", got, want)
	}
}

func TestAppendSectionJoinsExistingBodyWithBlankLine(t *testing.T) {
	got := appendSection("earlier notes", "**Session Summary**", "- ok")
	want := "earlier notes\n\n**Session Summary**\n- ok"
	if got != want {
		t.Errorf("appendSection() = %q, want %q", got, want)
	}
}

func TestFindWindowForTaskMatchesByIDPrefix(t *testing.T) {
	task := &store.Task{ID: "0123456789abcdef"}
	session := &tmux.Session{Windows: []tmux.Window{
		{Index: 0, Name: "placeholder"},
		{Index: 1, Name: "fix-0123456789abcde"},
	}}
	w := findWindowForTask(session, task)
	if w == nil || w.Index != 1 {
		t.Fatalf("findWindowForTask() = %v, want window 1", w)
	}
}

func TestWindowByIndexMissing(t *testing.T) {
	session := &tmux.Session{Windows: []tmux.Window{{Index: 0}}}
	if windowByIndex(session, 5) != nil {
		t.Error("expected no window at missing index")
	}
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
