package provider

import "testing"

func TestResolveProviderPriorityChain(t *testing.T) {
	got, err := ResolveProvider("cursor", "claude", Claude)
	if err != nil || got != Cursor {
		t.Errorf("ResolveProvider(explicit) = %v, %v, want cursor", got, err)
	}
	got, err = ResolveProvider("", "gemini", Claude)
	if err != nil || got != Gemini {
		t.Errorf("ResolveProvider(lane default) = %v, %v, want gemini", got, err)
	}
	got, err = ResolveProvider("", "", Claude)
	if err != nil || got != Claude {
		t.Errorf("ResolveProvider(system default) = %v, %v, want claude", got, err)
	}
}

func TestResolveProviderRejectsUnknown(t *testing.T) {
	if _, err := ResolveProvider("not-a-real-cli", "", Claude); err == nil {
		t.Fatal("expected an error for an unknown explicit provider")
	}
}

func TestResolveModelAliasChain(t *testing.T) {
	if got := ResolveModel("gpt-5.2", ""); got != "gpt-4.1" {
		t.Errorf("ResolveModel(gpt-5.2) = %q, want gpt-4.1", got)
	}
	if got := ResolveModel("", "gemini-3-pro-preview"); got != "gemini-2.5-pro" {
		t.Errorf("ResolveModel(lane alias) = %q, want gemini-2.5-pro", got)
	}
	if got := ResolveModel("opus", "sonnet"); got != "opus" {
		t.Errorf("ResolveModel(no alias, task wins) = %q, want opus", got)
	}
}

func TestResolveModelAliasesAreNotTransitive(t *testing.T) {
	for alias, current := range deprecatedModelAliases {
		if _, stillAliased := deprecatedModelAliases[current]; stillAliased {
			t.Errorf("alias %q maps to %q, which is itself aliased (should be single-hop)", alias, current)
		}
	}
}

func TestGetInteractiveLaunchCommandModelFlagStyles(t *testing.T) {
	cmd, err := GetInteractiveLaunchCommand(Claude, LaunchOptions{Model: "opus"})
	if err != nil || cmd != "claude --model opus" {
		t.Errorf("claude launch = %q, %v", cmd, err)
	}
	cmd, err = GetInteractiveLaunchCommand(OpenCode, LaunchOptions{Model: "gpt-4.1"})
	if err != nil || cmd != "opencode -m gpt-4.1" {
		t.Errorf("opencode launch = %q, %v", cmd, err)
	}
	cmd, err = GetInteractiveLaunchCommand(Amp, LaunchOptions{Model: "ignored"})
	if err != nil || cmd != "amp" {
		t.Errorf("amp launch should ignore model: %q, %v", cmd, err)
	}
}

func TestGetInteractiveLaunchCommandAutoPilotFlags(t *testing.T) {
	cmd, err := GetInteractiveLaunchCommand(Claude, LaunchOptions{AutoPilot: true})
	if err != nil || cmd != "claude --dangerously-skip-permissions" {
		t.Errorf("claude autopilot launch = %q, %v", cmd, err)
	}
}

func TestGetInteractiveLaunchCommandAiderYesIsUnconditional(t *testing.T) {
	cmd, err := GetInteractiveLaunchCommand(Aider, LaunchOptions{})
	if err != nil || cmd != "aider --yes" {
		t.Errorf("aider launch without autopilot = %q, %v, want \"aider --yes\"", cmd, err)
	}
	cmd, err = GetInteractiveLaunchCommand(Aider, LaunchOptions{AutoPilot: true})
	if err != nil || cmd != "aider --yes" {
		t.Errorf("aider launch with autopilot = %q, %v, want \"aider --yes\"", cmd, err)
	}
}

func TestGetInteractiveLaunchCommandKiroBaseArgs(t *testing.T) {
	cmd, err := GetInteractiveLaunchCommand(Kiro, LaunchOptions{})
	if err != nil || cmd != "kiro chat --no-interactive --trust-all-tools" {
		t.Errorf("kiro launch = %q, %v", cmd, err)
	}
}

func TestDetectStatusIdleOnEmptyCapture(t *testing.T) {
	if got := DetectStatus("   \n  \n"); got != StatusIdle {
		t.Errorf("DetectStatus(blank) = %v, want idle", got)
	}
}

func TestDetectStatusWaitingOnPromptMarker(t *testing.T) {
	if got := DetectStatus("some output\n❯ "); got != StatusWaiting {
		t.Errorf("DetectStatus(prompt marker) = %v, want waiting", got)
	}
	if got := DetectStatus("did you want to proceed?"); got != StatusWaiting {
		t.Errorf("DetectStatus(trailing ?) = %v, want waiting", got)
	}
}

func TestDetectStatusWorkingOnSpinnerGlyph(t *testing.T) {
	if got := DetectStatus("⠙ Thinking about the next step"); got != StatusWorking {
		t.Errorf("DetectStatus(spinner) = %v, want working", got)
	}
}

func TestDetectStatusWorkingOnKeyword(t *testing.T) {
	if got := DetectStatus("Analyzing repository structure..."); got != StatusWorking {
		t.Errorf("DetectStatus(keyword) = %v, want working", got)
	}
}

func TestDetectStatusWorkingOnLongTail(t *testing.T) {
	long := ""
	for i := 0; i < 600; i++ {
		long += "x"
	}
	if got := DetectStatus(long); got != StatusWorking {
		t.Errorf("DetectStatus(long tail) = %v, want working", got)
	}
}

func TestDetectStatusFallsBackToIdle(t *testing.T) {
	if got := DetectStatus("build succeeded"); got != StatusIdle {
		t.Errorf("DetectStatus(plain text) = %v, want idle", got)
	}
}

func TestFromOptionMapsAuthoritativeValues(t *testing.T) {
	cases := map[string]Status{"busy": StatusWorking, "user": StatusWaiting, "idle": StatusIdle}
	for value, want := range cases {
		got, ok := FromOption(value)
		if !ok || got != want {
			t.Errorf("FromOption(%q) = %v, %v, want %v", value, got, ok, want)
		}
	}
	if _, ok := FromOption("unknown"); ok {
		t.Error("FromOption(unknown) should report ok=false")
	}
}
