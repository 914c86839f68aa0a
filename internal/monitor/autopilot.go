package monitor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tmuxagentsd/daemon/internal/store"
	"github.com/tmuxagentsd/daemon/internal/tmux"
)

// approvalPrompts is the fixed set of phrases that, seen on a pane's tail,
// are taken as the agent waiting on a yes/no confirmation it is safe to
// auto-approve.
var approvalPrompts = []string{
	"do you want to proceed",
	"(y/n)",
	"press enter to",
	"shall i",
	"may i",
}

// AutoPilot answers approval prompts on behalf of tasks that opted into
// task.autoPilot, so a confirmation dialog never stalls an unattended run.
type AutoPilot struct {
	log      *slog.Logger
	store    *store.Store
	driver   *tmux.Driver
	interval time.Duration
	inflight *processingSet
}

func NewAutoPilot(log *slog.Logger, st *store.Store, driver *tmux.Driver, interval time.Duration) *AutoPilot {
	return &AutoPilot{log: logOrDiscard(log), store: st, driver: driver, interval: interval, inflight: newProcessingSet()}
}

func (m *AutoPilot) Run(ctx context.Context) {
	runTicker(ctx, m.interval, m.tick)
}

func (m *AutoPilot) tick(ctx context.Context) {
	for _, t := range m.store.ListTasks() {
		if !t.AutoPilot.Bool(false) || t.KanbanColumn != store.ColumnInProgress || !t.HasBinding() {
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

func (m *AutoPilot) processTask(ctx context.Context, t *store.Task) {
	capture, err := m.driver.CapturePaneContent(ctx, t.TmuxServerID, paneTarget(t), 30, false)
	if err != nil {
		m.log.Warn("auto-pilot capture failed", "taskId", t.ID, "error", err)
		return
	}
	if !looksLikeApprovalPrompt(capture) {
		return
	}
	if err := m.driver.SendKeys(ctx, t.TmuxServerID, paneTarget(t), "yes"); err != nil {
		m.log.Warn("auto-pilot failed to send approval", "taskId", t.ID, "error", err)
	}
}

func looksLikeApprovalPrompt(capture string) bool {
	lower := strings.ToLower(capture)
	for _, phrase := range approvalPrompts {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	lines := strings.Split(strings.TrimRight(capture, "\n"), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	return strings.HasSuffix(last, "?")
}
