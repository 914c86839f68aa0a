package prompt

import (
	"strings"
	"testing"

	"github.com/tmuxagentsd/daemon/internal/store"
)

func TestBuildOmitsEmptySections(t *testing.T) {
	task := &store.Task{Description: "Fix the bug", Input: ""}
	out := Build(Context{Task: task})
	if !strings.Contains(out, "Fix the bug") {
		t.Errorf("expected task description in output: %q", out)
	}
	if strings.Contains(out, "## Persona") {
		t.Errorf("did not expect a persona section: %q", out)
	}
	if strings.Contains(out, "## Memory") {
		t.Errorf("did not expect a memory section: %q", out)
	}
}

func TestBuildIncludesLaneContext(t *testing.T) {
	task := &store.Task{Description: "Ship it"}
	lane := &store.Lane{ContextInstructions: "Always run tests before committing."}
	out := Build(Context{Task: task, Lane: lane})
	if !strings.Contains(out, "Always run tests before committing.") {
		t.Errorf("expected lane context instructions in output: %q", out)
	}
}

func TestBuildBundleEnumeratesSubtasks(t *testing.T) {
	parent := &store.Task{Description: "Ship the release"}
	subtasks := []*store.Task{
		{Description: "Update changelog"},
		{Description: "Tag the release"},
	}
	out := Build(Context{Task: parent, Subtasks: subtasks})
	if !strings.Contains(out, "## Task Bundle") {
		t.Errorf("expected a bundle header: %q", out)
	}
	if !strings.Contains(out, "1. Update changelog") || !strings.Contains(out, "2. Tag the release") {
		t.Errorf("expected both subtasks enumerated: %q", out)
	}
}

func TestBuildCompletionProtocolOnlyWhenAutoCloseAndSigID(t *testing.T) {
	task := &store.Task{Description: "Do it"}
	out := Build(Context{Task: task, Toggles: Toggles{AutoClose: true}, CompletionSigID: ""})
	if strings.Contains(out, "promise>") {
		t.Errorf("should not emit completion protocol without a sigId: %q", out)
	}

	out = Build(Context{Task: task, Toggles: Toggles{AutoClose: true}, CompletionSigID: "ab12cd34"})
	if !strings.Contains(out, "<promise>ab12cd34-DONE</promise>") {
		t.Errorf("expected the completion marker instruction: %q", out)
	}

	out = Build(Context{Task: task, Toggles: Toggles{AutoClose: false}, CompletionSigID: "ab12cd34"})
	if strings.Contains(out, "promise>") {
		t.Errorf("should not emit completion protocol when autoClose is false: %q", out)
	}
}

func TestHasCompletionMarker(t *testing.T) {
	capture := "some output\n<promise>deadbeef-DONE</promise>\nmore"
	if !HasCompletionMarker(capture, "deadbeef") {
		t.Error("expected marker to be found")
	}
	if HasCompletionMarker(capture, "other") {
		t.Error("expected marker for a different sigId not to match")
	}
}

func TestExtractSummarySkipsIDLine(t *testing.T) {
	capture := "<promise>deadbeef-DONE</promise>\n<promise-summary>deadbeef\nFixed the login bug.\nAdded a regression test.\n</promise-summary>"
	got := ExtractSummary(capture, "deadbeef")
	want := "Fixed the login bug.\nAdded a regression test."
	if got != want {
		t.Errorf("ExtractSummary = %q, want %q", got, want)
	}
}

func TestExtractSummaryAbsent(t *testing.T) {
	if got := ExtractSummary("no markers here", "deadbeef"); got != "" {
		t.Errorf("ExtractSummary(absent) = %q, want empty", got)
	}
}
