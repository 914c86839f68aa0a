// Package launcher implements startTask: the ordered side-effect sequence
// that turns a queued task into a running agent session inside a
// multiplexer window.
//
// Grounded on internal/plugins/worktree/agent.go's StartAgentWithOptions
// (session existence check, new-session, send-keys to start the agent) and
// doCreateWorktree for the worktree provisioning step, generalized from a
// single local tmux target into the multi-runtime, store-backed sequence
// the daemon needs.
package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tmuxagentsd/daemon/internal/apperr"
	"github.com/tmuxagentsd/daemon/internal/events"
	"github.com/tmuxagentsd/daemon/internal/idgen"
	"github.com/tmuxagentsd/daemon/internal/prompt"
	"github.com/tmuxagentsd/daemon/internal/provider"
	"github.com/tmuxagentsd/daemon/internal/store"
	"github.com/tmuxagentsd/daemon/internal/tmux"
)

// Launcher owns the startTask operation.
type Launcher struct {
	log   *slog.Logger
	store *store.Store
	tmux  *tmux.Driver
	bus   *events.Bus

	mu       sync.Mutex
	inFlight map[string]bool
}

// New wires a Launcher.
func New(log *slog.Logger, st *store.Store, driver *tmux.Driver, bus *events.Bus) *Launcher {
	return &Launcher{
		log:      log,
		store:    st,
		tmux:     driver,
		bus:      bus,
		inFlight: make(map[string]bool),
	}
}

func (l *Launcher) beginLaunch(taskID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight[taskID] {
		return false
	}
	l.inFlight[taskID] = true
	return true
}

func (l *Launcher) endLaunch(taskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, taskID)
}

// StartTask runs the full launch sequence for taskID. At most one launch
// per task id runs at a time; a concurrent call returns a Conflict error.
func (l *Launcher) StartTask(ctx context.Context, taskID string) error {
	if !l.beginLaunch(taskID) {
		return apperr.Conflictf("task %q is already launching", taskID)
	}
	defer l.endLaunch(taskID)

	task, err := l.store.GetTask(taskID)
	if err != nil {
		return err
	}
	if task.SwimLaneID == "" {
		return apperr.Validationf("task %q has no lane", taskID)
	}
	lane, err := l.store.GetLane(task.SwimLaneID)
	if err != nil {
		return err
	}

	// 1. Resolve effective server and working directory.
	runtimeID := task.ServerOverride
	if runtimeID == "" {
		runtimeID = lane.ServerID
	}
	workdir := task.WorkingDirectoryOverride
	if workdir == "" {
		workdir = lane.WorkingDirectory
	}

	rb := &rollback{log: l.log, driver: l.tmux, runtimeID: runtimeID, workdir: workdir}
	defer func() {
		if err != nil {
			rb.run()
		}
	}()

	// 2. Ensure the lane session exists, with a placeholder window cleaned
	// up once the real task window is in place.
	sessionExisted, err := l.tmux.HasSession(ctx, runtimeID, lane.SessionName)
	if err != nil {
		return apperr.Wrap(apperr.Multiplexer, "check lane session", err)
	}
	if !sessionExisted {
		if err = l.tmux.NewSession(ctx, runtimeID, lane.SessionName, workdir); err != nil {
			return apperr.Wrap(apperr.Multiplexer, "create lane session", err)
		}
		lane.SessionActive = true
		l.store.SaveLane(lane)
	}

	// 3. Create the task window, named by convention.
	windowName := taskWindowName(task)
	winIndex, err := l.tmux.NewWindow(ctx, runtimeID, lane.SessionName, windowName, workdir)
	if err != nil {
		return apperr.Wrap(apperr.Multiplexer, "create task window", err)
	}
	target := fmt.Sprintf("%s:%d", lane.SessionName, winIndex)
	rb.window = target

	if !sessionExisted {
		// new-session always starts with a window at index 0; if the task
		// window didn't land there, the placeholder is still around.
		placeholder := fmt.Sprintf("%s:0", lane.SessionName)
		if placeholder != target {
			if err := l.tmux.KillWindow(ctx, runtimeID, placeholder); err != nil {
				l.log.Warn("failed to clean up placeholder window", "window", placeholder, "error", err)
			}
		}
	}

	// 4. Worktree provisioning.
	useWorktree := l.store.ResolveToggle(task, store.ToggleUseWorktree)
	if useWorktree && workdir != "" {
		wtPath, wtErr := provisionWorktree(workdir, task.ID)
		if wtErr != nil {
			l.log.Warn("worktree provisioning failed, falling back to working directory", "taskId", task.ID, "error", wtErr)
		} else {
			task.WorktreePath = wtPath
			rb.worktree = wtPath
			if err = l.tmux.SendKeys(ctx, runtimeID, target, "cd "+shellQuote(wtPath)); err != nil {
				return apperr.Wrap(apperr.Multiplexer, "cd into worktree", err)
			}
		}
	}
	if task.WorktreePath == "" && workdir != "" {
		if err = l.tmux.SendKeys(ctx, runtimeID, target, "cd "+shellQuote(workdir)); err != nil {
			return apperr.Wrap(apperr.Multiplexer, "cd into working directory", err)
		}
	}

	// 5. Build the prompt.
	autoClose := l.store.ResolveToggle(task, store.ToggleAutoClose)
	useMemory := l.store.ResolveToggle(task, store.ToggleUseMemory)
	subtasks := l.resolveSubtasks(task)
	var sigID string
	if autoClose {
		sigID = idgen.Suffix8(task.ID)
	}
	pctx := prompt.Context{
		Task:            task,
		Lane:            lane,
		Subtasks:        subtasks,
		CompletionSigID: sigID,
		Toggles: prompt.Toggles{
			AutoClose:         autoClose,
			ProgressReporting: lane.DefaultToggles["progressReporting"],
			AskForContext:     lane.DefaultToggles["askForContext"],
		},
	}
	if useMemory && lane.MemoryPath != "" {
		pctx.MemoryLoadPath = lane.MemoryPath
		pctx.MemorySavePath = lane.MemoryPath
	}
	promptText := prompt.Build(pctx)

	// 6. Resolve provider and model, honoring effective autoPilot.
	providerID, err := provider.ResolveProvider(task.AIProvider, lane.AIProvider, provider.Claude)
	if err != nil {
		return apperr.Wrap(apperr.Provider, "resolve provider", err)
	}
	model := provider.ResolveModel(task.AIModel, lane.AIModel)
	autoPilot := l.store.ResolveToggle(task, store.ToggleAutoPilot)
	launchCmd, err := provider.GetInteractiveLaunchCommand(providerID, provider.LaunchOptions{Model: model, AutoPilot: autoPilot})
	if err != nil {
		return apperr.Wrap(apperr.Provider, "build launch command", err)
	}

	// 7. Launch sequence: the sleeps let the provider's own startup and
	// bracketed-paste handling settle before the next input arrives.
	if err = l.tmux.SendKeys(ctx, runtimeID, target, launchCmd); err != nil {
		return apperr.Wrap(apperr.Multiplexer, "send launch command", err)
	}
	time.Sleep(3 * time.Second)
	if err = l.tmux.PasteText(ctx, runtimeID, target, promptText, false); err != nil {
		return apperr.Wrap(apperr.Multiplexer, "paste prompt", err)
	}
	time.Sleep(500 * time.Millisecond)
	if err = l.tmux.SendRawKeys(ctx, runtimeID, target, "Enter"); err != nil {
		return apperr.Wrap(apperr.Multiplexer, "submit prompt", err)
	}

	// 8. Bind the task (and mirror onto subtasks for a bundle launch).
	now := time.Now().UnixMilli()
	bind := func(t *store.Task) {
		t.TmuxServerID = runtimeID
		t.TmuxSessionName = lane.SessionName
		t.TmuxWindowIndex = winIndex
		t.TmuxPaneIndex = 0
		t.KanbanColumn = store.ColumnInProgress
		t.Status = store.StatusInProgress
		t.StartedAt = &now
	}
	bind(task)
	l.store.SaveTask(task)
	for _, st := range subtasks {
		bind(st)
		l.store.SaveTask(st)
	}

	// 9. Persist and notify.
	l.bus.Publish(events.TaskStarted, task.ID)
	l.bus.Publish(events.DBChanged)
	return nil
}

func (l *Launcher) resolveSubtasks(task *store.Task) []*store.Task {
	if len(task.SubtaskIDs) == 0 {
		return nil
	}
	out := make([]*store.Task, 0, len(task.SubtaskIDs))
	for _, id := range task.SubtaskIDs {
		if st, err := l.store.GetTask(id); err == nil {
			out = append(out, st)
		}
	}
	return out
}

// shellQuote wraps path in single quotes, escaping any embedded single
// quote, so a `cd` keystroke survives a path with spaces or shell
// metacharacters.
func shellQuote(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}
