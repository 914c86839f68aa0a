// Package prompt assembles the multi-line prompt pasted into a provider
// CLI. It is a pure function package: no I/O, no clock, deterministic
// output for deterministic input, so it is exercised entirely by table
// tests rather than integration tests.
//
// Grounded on internal/plugins/worktree/agent.go's buildAgentCommand and
// writeAgentLauncher (ordered section assembly, heredoc-safe prompt body
// with an explicit completion marker convention), generalized from a
// single ad hoc "task context" string into the full ordered section list
// the spec's launcher needs.
package prompt

import (
	"fmt"
	"strings"

	"github.com/tmuxagentsd/daemon/internal/store"
)

// Toggles controls which optional instruction sections are appended.
type Toggles struct {
	AutoClose           bool
	ProgressReporting   bool
	AskForContext       bool
	AdditionalInstructions string
}

// Context carries every optional input the builder may fold into the
// prompt. Any zero-value field simply omits its section.
type Context struct {
	Task            *store.Task
	Lane            *store.Lane
	Subtasks        []*store.Task // when non-empty, a bundle prompt is produced
	Persona         *store.Persona
	GuildContext    string
	MemoryLoadPath  string
	MemorySavePath  string
	CompletionSigID string
	Toggles         Toggles
}

// Build assembles the final prompt string for ctx. Sections appear in a
// fixed order; an empty section is simply skipped, so the result never has
// more than one blank line between sections.
func Build(ctx Context) string {
	var sections []string

	if ctx.Lane != nil && ctx.Lane.ContextInstructions != "" {
		sections = append(sections, "## Lane Context\n\n"+ctx.Lane.ContextInstructions)
	}
	if s := personaSection(ctx.Persona); s != "" {
		sections = append(sections, s)
	}
	if ctx.GuildContext != "" {
		sections = append(sections, "## Team Knowledge\n\n"+ctx.GuildContext)
	}
	if ctx.MemoryLoadPath != "" {
		sections = append(sections, fmt.Sprintf("## Memory\n\nBefore starting, read and apply any relevant context from %s.", ctx.MemoryLoadPath))
	}
	sections = append(sections, taskSection(ctx))
	if ctx.Toggles.AdditionalInstructions != "" {
		sections = append(sections, "## Additional Instructions\n\n"+ctx.Toggles.AdditionalInstructions)
	}
	if ctx.Toggles.AskForContext {
		sections = append(sections, "If anything about this task is ambiguous or you need more context before starting, ask now before proceeding.")
	}
	if ctx.Toggles.ProgressReporting {
		sections = append(sections, "Report meaningful progress as you work, rather than only a final summary.")
	}
	if ctx.MemorySavePath != "" {
		sections = append(sections, fmt.Sprintf("## Memory\n\nWhen you finish, record anything future agents would benefit from knowing in %s.", ctx.MemorySavePath))
	}
	if ctx.Toggles.AutoClose && ctx.CompletionSigID != "" {
		sections = append(sections, completionProtocolSection(ctx.CompletionSigID))
	}

	return strings.Join(sections, "\n\n")
}

func personaSection(p *store.Persona) string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Persona\n\n")
	if p.Personality != "" {
		fmt.Fprintf(&b, "Personality: %s\n", p.Personality)
	}
	if p.CommunicationStyle != "" {
		fmt.Fprintf(&b, "Communication style: %s\n", p.CommunicationStyle)
	}
	if len(p.Expertise) > 0 {
		fmt.Fprintf(&b, "Expertise: %s\n", strings.Join(p.Expertise, ", "))
	}
	if p.SkillLevel != "" {
		fmt.Fprintf(&b, "Skill level: %s\n", p.SkillLevel)
	}
	if p.RiskTolerance != "" {
		fmt.Fprintf(&b, "Risk tolerance: %s\n", p.RiskTolerance)
	}
	return strings.TrimRight(b.String(), "\n")
}

func taskSection(ctx Context) string {
	if len(ctx.Subtasks) > 0 {
		return bundleTaskSection(ctx.Task, ctx.Subtasks)
	}
	return singleTaskSection(ctx.Task)
}

func singleTaskSection(t *store.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Task\n\n%s", t.Description)
	if t.Input != "" {
		fmt.Fprintf(&b, "\n\n%s", t.Input)
	}
	return b.String()
}

func bundleTaskSection(parent *store.Task, subtasks []*store.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Task Bundle\n\n%s", parent.Description)
	if parent.Input != "" {
		fmt.Fprintf(&b, "\n\n%s", parent.Input)
	}
	b.WriteString("\n\nComplete every subtask below:\n")
	for i, st := range subtasks {
		fmt.Fprintf(&b, "\n%d. %s", i+1, st.Description)
		if st.Input != "" {
			fmt.Fprintf(&b, " — %s", st.Input)
		}
	}
	return b.String()
}

// completionProtocolSection is the instruction template that requires the
// agent to emit the completion marker the auto-monitor scans for.
func completionProtocolSection(sigID string) string {
	return fmt.Sprintf(`## Completion Protocol

When you have fully completed this task, emit exactly the following on its own line:

<promise>%s-DONE</promise>

Optionally, immediately after it, include a brief human-readable summary of what you did:

<promise-summary>%s
(your summary here)
</promise-summary>`, sigID, sigID)
}
