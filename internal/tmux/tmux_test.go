package tmux

import (
	"testing"
	"time"
)

func TestValidateSessionName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"lane-1", true},
		{"sidecar-ws-my_project.1", true},
		{"has space", false},
		{"semi;colon", false},
		{"", false},
		{"$(rm -rf /)", false},
		{"user@host", false},
		{"path/with/slash", false},
	}
	for _, c := range cases {
		if got := ValidateSessionName(c.name); got != c.want {
			t.Errorf("ValidateSessionName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestClassifyErrorKind(t *testing.T) {
	cases := []struct {
		stderr string
		want   ErrorKind
	}{
		{"can't find session: foo", ErrNotFound},
		{"session not found", ErrNotFound},
		{"no server running on /tmp/tmux-0/default", ErrNoServer},
		{"usage: new-session [-AdEPX]", ErrCommandFailed},
	}
	for _, c := range cases {
		err := classify("op", "target", "rt1", c.stderr, nil)
		if err.Kind != c.want {
			t.Errorf("classify(%q).Kind = %v, want %v", c.stderr, err.Kind, c.want)
		}
	}
}

func TestTreeFindAndHasSession(t *testing.T) {
	tr := &Tree{Sessions: []Session{{Name: "lane-1"}, {Name: "lane-2"}}}
	if !tr.HasSession("lane-1") {
		t.Error("expected lane-1 to be found")
	}
	if tr.HasSession("lane-3") {
		t.Error("lane-3 should not be found")
	}
	if s := tr.FindSession("lane-2"); s == nil || s.Name != "lane-2" {
		t.Errorf("FindSession(lane-2) = %+v", s)
	}
}

func TestTreeCacheExpiresAfterTTL(t *testing.T) {
	c := newTreeCache(20 * time.Millisecond)
	c.set("rt1", &Tree{RuntimeID: "rt1"})

	if _, ok := c.get("rt1"); !ok {
		t.Fatal("expected a fresh cache hit")
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.get("rt1"); ok {
		t.Fatal("expected the entry to have expired")
	}
}

func TestCaptureCacheRemoveSessionStripsPrefixedKeys(t *testing.T) {
	c := newCaptureCache(time.Second)
	c.set("rt1:lane-1", "hello")
	c.set("rt1:lane-2", "world")

	c.removeSession("rt1:lane-1")
	if _, ok := c.get("rt1:lane-1"); ok {
		t.Error("expected lane-1's entry to be removed")
	}
	if _, ok := c.get("rt1:lane-2"); !ok {
		t.Error("expected lane-2's entry to remain")
	}
}

func TestShellJoinQuotesSpecialCharacters(t *testing.T) {
	got := shellJoin([]string{"send-keys", "-t", "lane-1", "-l", "echo hello"})
	want := "send-keys -t lane-1 -l 'echo hello'"
	if got != want {
		t.Errorf("shellJoin = %q, want %q", got, want)
	}
}

func TestSplitLinesIgnoresTrailingNewline(t *testing.T) {
	got := splitLines("a\nb\nc\n")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("splitLines = %#v", got)
	}
	if got := splitLines(""); got != nil {
		t.Errorf("splitLines(empty) = %#v, want nil", got)
	}
}

func TestDriverUnknownRuntimeReturnsNotFoundError(t *testing.T) {
	d := New(nil)
	_, err := d.GetTree(nil, "missing", false) //nolint:staticcheck // nil context is fine, runtime lookup fails first
	if err == nil {
		t.Fatal("expected an error for an unregistered runtime")
	}
	if !IsNotFound(err) {
		t.Errorf("expected a not-found error, got %v", err)
	}
}
