package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/tmuxagentsd/daemon/internal/events"
	"github.com/tmuxagentsd/daemon/internal/idgen"
	"github.com/tmuxagentsd/daemon/internal/launcher"
	"github.com/tmuxagentsd/daemon/internal/prompt"
	"github.com/tmuxagentsd/daemon/internal/store"
	"github.com/tmuxagentsd/daemon/internal/tmux"
)

// AutoMonitor watches in-progress, auto-close-eligible tasks for the
// completion marker the prompt builder's completion protocol asks the
// agent to emit, then finalizes the task and wakes any dependents.
type AutoMonitor struct {
	log       *slog.Logger
	store     *store.Store
	driver    *tmux.Driver
	launcher  *launcher.Launcher
	bus       *events.Bus
	interval  time.Duration
	inflight  *processingSet
}

func NewAutoMonitor(log *slog.Logger, st *store.Store, driver *tmux.Driver, l *launcher.Launcher, bus *events.Bus, interval time.Duration) *AutoMonitor {
	return &AutoMonitor{log: logOrDiscard(log), store: st, driver: driver, launcher: l, bus: bus, interval: interval, inflight: newProcessingSet()}
}

func (m *AutoMonitor) Run(ctx context.Context) {
	runTicker(ctx, m.interval, m.tick)
}

func (m *AutoMonitor) tick(ctx context.Context) {
	for _, t := range m.store.ListTasks() {
		if t.KanbanColumn != store.ColumnInProgress || !t.HasBinding() {
			continue
		}
		if !m.store.ResolveToggle(t, store.ToggleAutoClose) {
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

func (m *AutoMonitor) processTask(ctx context.Context, t *store.Task) {
	sigID := idgen.Suffix8(t.ID)
	capture, err := m.driver.CapturePaneContent(ctx, t.TmuxServerID, paneTarget(t), 100, false)
	if err != nil {
		m.log.Warn("auto-monitor capture failed", "taskId", t.ID, "error", err)
		return
	}
	if !prompt.HasCompletionMarker(capture, sigID) {
		return
	}

	if summary := prompt.ExtractSummary(capture, sigID); summary != "" {
		t.Input = appendSection(t.Input, "**Completion Summary:**", summary)
	}

	if err := m.driver.KillWindow(ctx, t.TmuxServerID, windowTarget(t)); err != nil {
		m.log.Warn("auto-monitor failed to kill window", "taskId", t.ID, "error", err)
	}
	if t.WorktreePath != "" {
		if err := launcher.RemoveWorktree(repoWorkdir(m.store, t), t.WorktreePath); err != nil {
			m.log.Warn("auto-monitor failed to remove worktree", "taskId", t.ID, "path", t.WorktreePath, "error", err)
		}
	}

	t.ClearBinding()
	now := time.Now().UnixMilli()
	t.Status = store.StatusCompleted
	t.KanbanColumn = store.ColumnDone
	t.CompletedAt = &now
	t.DoneAt = &now
	t.WorktreePath = ""
	m.store.SaveTask(t)

	m.cascadeSubtaskCompletion(t)

	m.bus.Publish(events.TaskCompleted, t.ID)
	m.bus.Publish(events.DBChanged)

	m.wakeDependents(ctx, t.ID)
}

// cascadeSubtaskCompletion marks every descendant subtask completed too,
// since a bundle prompt asks the agent to finish the whole tree in one
// session.
func (m *AutoMonitor) cascadeSubtaskCompletion(parent *store.Task) {
	now := time.Now().UnixMilli()
	queue := append([]string{}, parent.SubtaskIDs...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		st, err := m.store.GetTask(id)
		if err != nil {
			continue
		}
		if st.Status != store.StatusCompleted {
			st.Status = store.StatusCompleted
			st.KanbanColumn = store.ColumnDone
			st.CompletedAt = &now
			st.DoneAt = &now
			st.ClearBinding()
			m.store.SaveTask(st)
		}
		queue = append(queue, st.SubtaskIDs...)
	}
}

// wakeDependents moves any backlog or todo task that depends on
// completedID into todo and starts it, provided every one of its
// dependencies is now complete and the task opts into autoStart.
func (m *AutoMonitor) wakeDependents(ctx context.Context, completedID string) {
	for _, t := range m.store.ListTasks() {
		if !containsString(t.DependsOn, completedID) {
			continue
		}
		if t.KanbanColumn != store.ColumnTodo && t.KanbanColumn != store.ColumnBacklog {
			continue
		}
		if t.SwimLaneID == "" || !m.store.ResolveToggle(t, store.ToggleAutoStart) {
			continue
		}
		if !m.allDependenciesCompleted(t) {
			continue
		}
		t.KanbanColumn = store.ColumnTodo
		m.store.SaveTask(t)
		if err := m.launcher.StartTask(ctx, t.ID); err != nil {
			m.log.Warn("auto-monitor failed to start dependent task", "taskId", t.ID, "error", err)
		}
	}
}

func (m *AutoMonitor) allDependenciesCompleted(t *store.Task) bool {
	for _, depID := range t.DependsOn {
		dep, err := m.store.GetTask(depID)
		if err != nil || dep.Status != store.StatusCompleted {
			return false
		}
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func appendSection(body, header, content string) string {
	if body != "" {
		body += "\n\n"
	}
	return body + header + "\n" + content
}
