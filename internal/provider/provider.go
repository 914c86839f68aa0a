// Package provider encapsulates the CLI invocation idiosyncrasies of the
// closed set of AI coding-agent providers the daemon can launch, plus the
// heuristic status detection applied to captured pane output when a
// provider doesn't self-report its state via a multiplexer option.
//
// Grounded on internal/plugins/worktree/types.go (AgentType, AgentCommands,
// SkipPermissionsFlags, AgentDisplayNames) and internal/plugins/worktree/
// agent.go (buildAgentCommand / writeAgentLauncher), generalized from a
// six-entry TUI-facing agent picker into the spec's ten-provider registry
// with model flags, resume flags, and spawn-vs-paste launch shapes.
package provider

import "github.com/tmuxagentsd/daemon/internal/apperr"

// ID names one of the closed set of supported AI coding-agent providers.
type ID string

const (
	Claude   ID = "claude"
	Gemini   ID = "gemini"
	Codex    ID = "codex"
	OpenCode ID = "opencode"
	Cursor   ID = "cursor"
	Copilot  ID = "copilot"
	Aider    ID = "aider"
	Amp      ID = "amp"
	Cline    ID = "cline"
	Kiro     ID = "kiro"
)

// modelFlagStyle controls how a resolved model id is appended to a launch
// command.
type modelFlagStyle int

const (
	modelFlagLong  modelFlagStyle = iota // --model <id>
	modelFlagShort                       // -m <id>
	modelFlagNone                        // provider ignores a CLI model flag
)

// Config describes one provider's CLI invocation shape.
type Config struct {
	ID                      ID
	Command                 string   // binary name, resolved via PATH
	PipeCommand             string   // args placed before the other args for stdin-piped spawn mode, if different
	Args                    []string // base args always present
	ForkArgs                []string // args appended to resume/continue a prior session
	ResumeFlag              string   // flag name for --resume-style continuation, if any
	AutoPilotFlags          []string // appended when autoPilot is requested
	Env                     map[string]string
	DefaultWorkingDirectory string // "" means "caller's working directory"
	Shell                   bool   // true if Command must be run through a shell
	ModelFlag               modelFlagStyle
}

// Registry is the closed, fixed provider table. It is immutable after
// init — callers never register or mutate providers at runtime.
var Registry = map[ID]Config{
	Claude: {
		ID: Claude, Command: "claude", ModelFlag: modelFlagLong,
		ResumeFlag:     "--resume",
		AutoPilotFlags: []string{"--dangerously-skip-permissions"},
	},
	Gemini: {
		ID: Gemini, Command: "gemini", ModelFlag: modelFlagLong,
		AutoPilotFlags: []string{"--yolo"},
	},
	Codex: {
		ID: Codex, Command: "codex", ModelFlag: modelFlagLong,
		ResumeFlag:     "resume",
		AutoPilotFlags: []string{"--dangerously-bypass-approvals-and-sandbox"},
	},
	OpenCode: {
		ID: OpenCode, Command: "opencode", ModelFlag: modelFlagShort,
	},
	Cursor: {
		ID: Cursor, Command: "cursor-agent", ModelFlag: modelFlagLong,
		Args:           []string{"-p", "--output-format", "text"},
		AutoPilotFlags: []string{"-f"},
	},
	Copilot: {
		ID: Copilot, Command: "copilot", ModelFlag: modelFlagLong,
		Args: []string{"-p", "-s"},
	},
	Aider: {
		ID: Aider, Command: "aider", ModelFlag: modelFlagLong,
		Args: []string{"--yes"},
	},
	Amp: {
		ID: Amp, Command: "amp", ModelFlag: modelFlagNone,
	},
	Cline: {
		ID: Cline, Command: "cline", ModelFlag: modelFlagShort,
	},
	Kiro: {
		ID: Kiro, Command: "kiro", ModelFlag: modelFlagNone,
		Args: []string{"chat", "--no-interactive", "--trust-all-tools"},
	},
}

// Exists reports whether id is in the closed provider set.
func Exists(id ID) bool {
	_, ok := Registry[id]
	return ok
}

// Lookup returns the Config for id, or a Provider apperr if id is unknown.
func Lookup(id ID) (Config, error) {
	cfg, ok := Registry[id]
	if !ok {
		return Config{}, apperr.New(apperr.Provider, "unknown provider: "+string(id))
	}
	return cfg, nil
}

// ResolveProvider applies the explicit > lane-default > system-default
// priority chain and validates the result against the closed provider set.
func ResolveProvider(explicit, laneDefault string, systemDefault ID) (ID, error) {
	for _, candidate := range []string{explicit, laneDefault} {
		if candidate == "" {
			continue
		}
		id := ID(candidate)
		if !Exists(id) {
			return "", apperr.New(apperr.Validation, "unknown provider: "+candidate)
		}
		return id, nil
	}
	return systemDefault, nil
}

// deprecatedModelAliases maps retired model identifiers to their current
// replacement. Every value is itself a live (non-aliased) identifier, so
// resolution never needs to chase more than one hop.
var deprecatedModelAliases = map[string]string{
	"gpt-5.2":                 "gpt-4.1",
	"gpt-5.2-mini":            "gpt-4.1-mini",
	"gemini-3-pro-preview":    "gemini-2.5-pro",
	"gemini-3-flash-preview":  "gemini-2.5-flash",
	"claude-4-opus-preview":   "claude-opus-4",
	"claude-4-sonnet-preview": "claude-sonnet-4",
}

// ResolveModel applies the task-model > lane-model priority chain, then
// resolves any deprecated alias to its current identifier.
func ResolveModel(taskModel, laneModel string) string {
	model := taskModel
	if model == "" {
		model = laneModel
	}
	if model == "" {
		return ""
	}
	if current, ok := deprecatedModelAliases[model]; ok {
		return current
	}
	return model
}
