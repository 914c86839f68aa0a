package monitor

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/tmuxagentsd/daemon/internal/launcher"
	"github.com/tmuxagentsd/daemon/internal/store"
	"github.com/tmuxagentsd/daemon/internal/tmux"
)

var (
	errorLinePattern  = regexp.MustCompile(`(?i)error|fail|exception|panic|abort|fatal|warn`)
	promptOnlyPattern = regexp.MustCompile(`^[$#%>]+$`)
)

// AutoClose tears down a task's window once it has sat in done long enough
// to be confident no one is still watching it, leaving behind a heuristic
// summary of the pane's tail rather than an LLM call.
type AutoClose struct {
	log      *slog.Logger
	store    *store.Store
	driver   *tmux.Driver
	interval time.Duration
	delay    time.Duration
	inflight *processingSet
}

func NewAutoClose(log *slog.Logger, st *store.Store, driver *tmux.Driver, interval, delay time.Duration) *AutoClose {
	if delay <= 0 {
		delay = 10 * time.Minute
	}
	return &AutoClose{log: logOrDiscard(log), store: st, driver: driver, interval: interval, delay: delay, inflight: newProcessingSet()}
}

func (m *AutoClose) Run(ctx context.Context) {
	runTicker(ctx, m.interval, m.tick)
}

func (m *AutoClose) tick(ctx context.Context) {
	cutoff := time.Now().Add(-m.delay).UnixMilli()
	for _, t := range m.store.ListTasks() {
		if t.KanbanColumn != store.ColumnDone || !t.HasBinding() || t.DoneAt == nil {
			continue
		}
		if *t.DoneAt > cutoff {
			continue
		}
		if !m.inflight.tryStart(t.ID) {
			continue
		}
		go func(task *store.Task) {
			defer m.inflight.finish(task.ID)
			m.processTask(ctx, task)
		}(t)
	}
}

func (m *AutoClose) processTask(ctx context.Context, t *store.Task) {
	capture, err := m.driver.CapturePaneContent(ctx, t.TmuxServerID, paneTarget(t), 500, false)
	if err != nil {
		m.log.Warn("auto-close capture failed", "taskId", t.ID, "error", err)
		return
	}

	t.Input = appendSection(t.Input, "**Session Summary**", summarize(capture))

	if err := m.driver.KillWindow(ctx, t.TmuxServerID, windowTarget(t)); err != nil {
		m.log.Warn("auto-close failed to kill window", "taskId", t.ID, "error", err)
	}
	if t.WorktreePath != "" {
		if err := launcher.RemoveWorktree(repoWorkdir(m.store, t), t.WorktreePath); err != nil {
			m.log.Warn("auto-close failed to remove worktree", "taskId", t.ID, "path", t.WorktreePath, "error", err)
		}
		t.WorktreePath = ""
	}
	t.ClearBinding()
	m.store.SaveTask(t)
}

// Summarize implements the no-LLM tail heuristic: every non-blank,
// non-prompt line bulleted (up to the last three), with up to the last two
// lines matching errorLinePattern pulled out under an Issues heading
// instead of the general bullets. Exported so the ai.summarize RPC method
// can run the identical heuristic on demand.
func Summarize(capture string) string {
	return summarize(capture)
}

func summarize(capture string) string {
	lines := strings.Split(strings.TrimRight(capture, "\n"), "\n")

	var general, issues []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || promptOnlyPattern.MatchString(trimmed) {
			continue
		}
		if errorLinePattern.MatchString(trimmed) {
			issues = append(issues, trimmed)
			continue
		}
		general = append(general, trimmed)
	}

	if len(general) == 0 && len(issues) == 0 {
		return ""
	}

	var b strings.Builder
	for _, l := range lastN(general, 3) {
		b.WriteString("- " + l + "\n")
	}
	if len(issues) > 0 {
		b.WriteString("\nIssues:\n")
		for _, l := range lastN(issues, 2) {
			b.WriteString("- " + l + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
