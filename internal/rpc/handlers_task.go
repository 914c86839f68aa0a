package rpc

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/tmuxagentsd/daemon/internal/apperr"
	"github.com/tmuxagentsd/daemon/internal/events"
	"github.com/tmuxagentsd/daemon/internal/idgen"
	"github.com/tmuxagentsd/daemon/internal/store"
)

func registerTaskHandlers(r *Router, d *Deps) {
	r.Register("task.list", func(ctx context.Context, params json.RawMessage) (any, error) {
		return d.Store.ListTasks(), nil
	})

	r.Register("task.get", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return d.Store.GetTask(p.ID)
	})

	r.Register("task.submit", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Description              string             `json:"description"`
			Input                    string              `json:"input"`
			Lane                     string              `json:"lane"`
			Column                   store.KanbanColumn `json:"column"`
			Priority                 int                `json:"priority"`
			TargetRole               string              `json:"targetRole"`
			ParentTaskID             string              `json:"parentTaskId"`
			DependsOn                []string            `json:"dependsOn"`
			AIProvider               string              `json:"aiProvider"`
			AIModel                  string              `json:"aiModel"`
			ServerOverride           string              `json:"serverOverride"`
			WorkingDirectoryOverride string              `json:"workingDirectoryOverride"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if p.Lane == "" {
			return nil, apperr.Validationf("lane is required")
		}
		if _, err := d.Store.GetLane(p.Lane); err != nil {
			return nil, err
		}

		col := p.Column
		if col == "" {
			col = store.ColumnBacklog
		}
		status := store.StatusPending
		if col == store.ColumnInProgress {
			status = store.StatusInProgress
		}

		t := &store.Task{
			ID:                       idgen.New("task"),
			Description:              p.Description,
			Input:                    p.Input,
			Status:                   status,
			KanbanColumn:             col,
			Priority:                 p.Priority,
			CreatedAt:                nowMillis(),
			TargetRole:               p.TargetRole,
			SwimLaneID:               p.Lane,
			ParentTaskID:             p.ParentTaskID,
			DependsOn:                p.DependsOn,
			AIProvider:               p.AIProvider,
			AIModel:                  p.AIModel,
			ServerOverride:           p.ServerOverride,
			WorkingDirectoryOverride: p.WorkingDirectoryOverride,
		}
		d.Store.SaveTask(t)
		if p.ParentTaskID != "" {
			if err := d.Store.AddSubtask(p.ParentTaskID, t.ID); err != nil {
				d.Log.Warn("task.submit failed to register subtask edge", "parentId", p.ParentTaskID, "taskId", t.ID, "error", err)
			}
		}

		if col == store.ColumnInProgress {
			if err := kanbanStartTask(ctx, d, t.ID); err != nil {
				return nil, err
			}
			return d.Store.GetTask(t.ID)
		}
		d.Bus.Publish(events.DBChanged)
		return t, nil
	})

	r.Register("task.move", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID     string              `json:"id"`
			Column store.KanbanColumn `json:"column"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return moveTask(ctx, d, p.ID, p.Column)
	})

	r.Register("task.cancel", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		wasQueued, err := d.Orch.CancelTask(p.ID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"wasQueued": wasQueued}, nil
	})

	r.Register("task.delete", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := d.Store.DeleteTask(p.ID); err != nil {
			return nil, err
		}
		d.Bus.Publish(events.DBChanged)
		return map[string]any{"deleted": true}, nil
	})

	r.Register("task.update", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID     string         `json:"id"`
			Fields map[string]any `json:"fields"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := checkFields(p.Fields, taskUpdateFields); err != nil {
			return nil, err
		}
		t, err := d.Store.GetTask(p.ID)
		if err != nil {
			return nil, err
		}
		if err := applyTaskFields(t, p.Fields); err != nil {
			return nil, err
		}
		d.Store.SaveTask(t)
		d.Bus.Publish(events.TaskUpdated, t.ID)
		return t, nil
	})

	r.Register("task.save", func(ctx context.Context, params json.RawMessage) (any, error) {
		var t store.Task
		if err := decodeParams(params, &t); err != nil {
			return nil, err
		}
		if t.ID == "" {
			return nil, apperr.Validationf("id is required")
		}
		d.Store.SaveTask(&t)
		d.Bus.Publish(events.TaskUpdated, t.ID)
		return &t, nil
	})

	r.Register("task.getOutput", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID    string `json:"id"`
			Lines int    `json:"lines"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t, err := d.Store.GetTask(p.ID)
		if err != nil {
			return nil, err
		}
		if !t.HasBinding() {
			return map[string]any{"output": ""}, nil
		}
		lines := p.Lines
		if lines <= 0 {
			lines = 200
		}
		target := tmuxPaneTarget(t)
		capture, err := d.Tmux.CapturePaneContent(ctx, t.TmuxServerID, target, lines, false)
		if err != nil {
			return nil, apperr.Wrap(apperr.Multiplexer, "capture pane", err)
		}
		return map[string]any{"output": capture}, nil
	})
}

// moveTask implements task.move's column-change dispatch rule: starting a
// task always goes through kanbanStartTask, tearing a bound task down out
// of an active column goes through kanbanStopTask, and every other move is
// a direct column write.
func moveTask(ctx context.Context, d *Deps, taskID string, target store.KanbanColumn) (*store.Task, error) {
	if target == "" {
		return nil, apperr.Validationf("column is required")
	}

	if target == store.ColumnInProgress {
		if err := kanbanStartTask(ctx, d, taskID); err != nil {
			return nil, err
		}
		return d.Store.GetTask(taskID)
	}

	t, err := d.Store.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	if target != store.ColumnInReview && t.HasBinding() {
		if err := kanbanStopTask(ctx, d, t, target); err != nil {
			return nil, err
		}
		d.Bus.Publish(events.TaskMoved, t.ID)
		return t, nil
	}

	t.KanbanColumn = target
	d.Store.SaveTask(t)
	d.Bus.Publish(events.TaskMoved, t.ID)
	return t, nil
}

// kanbanStartTask is the one code path task.submit, task.move, and
// kanban.startTask all funnel through for starting a task, per the
// router's "never re-implement state transitions" rule.
func kanbanStartTask(ctx context.Context, d *Deps, taskID string) error {
	return d.Launch.StartTask(ctx, taskID)
}

// kanbanStopTask tears a running task down: kills its window, clears its
// binding, and lands it on targetColumn. Its worktree, if any, is left on
// disk.
func kanbanStopTask(ctx context.Context, d *Deps, t *store.Task, target store.KanbanColumn) error {
	if t.HasBinding() {
		if err := d.Tmux.KillWindow(ctx, t.TmuxServerID, tmuxWindowTarget(t)); err != nil {
			d.Log.Warn("kanban.stopTask failed to kill window", "taskId", t.ID, "error", err)
		}
	}
	if t.WorktreePath != "" {
		d.Log.Debug("kanban.stopTask leaving worktree for manual cleanup", "taskId", t.ID, "path", t.WorktreePath)
	}
	t.ClearBinding()
	t.KanbanColumn = target
	switch target {
	case store.ColumnDone:
		t.Status = store.StatusCompleted
		now := nowMillis()
		if t.CompletedAt == nil {
			t.CompletedAt = &now
		}
		if t.DoneAt == nil {
			t.DoneAt = &now
		}
	default:
		t.Status = store.StatusPending
	}
	d.Store.SaveTask(t)
	return nil
}

func applyTaskFields(t *store.Task, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "re-encode fields", err)
	}
	var patch struct {
		Description              *string   `json:"description"`
		Input                    *string   `json:"input"`
		Priority                 *int      `json:"priority"`
		TargetRole               *string   `json:"targetRole"`
		Tags                     *[]string `json:"tags"`
		AutoStart                *bool     `json:"autoStart"`
		AutoPilot                *bool     `json:"autoPilot"`
		AutoClose                *bool     `json:"autoClose"`
		UseWorktree              *bool     `json:"useWorktree"`
		UseMemory                *bool     `json:"useMemory"`
		AIProvider               *string   `json:"aiProvider"`
		AIModel                  *string   `json:"aiModel"`
		ServerOverride           *string   `json:"serverOverride"`
		WorkingDirectoryOverride *string   `json:"workingDirectoryOverride"`
	}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return apperr.Wrap(apperr.Validation, "invalid fields", err)
	}

	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Input != nil {
		t.Input = *patch.Input
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.TargetRole != nil {
		t.TargetRole = *patch.TargetRole
	}
	if patch.Tags != nil {
		t.Tags = *patch.Tags
	}
	if patch.AutoStart != nil {
		t.AutoStart = triOf(*patch.AutoStart)
	}
	if patch.AutoPilot != nil {
		t.AutoPilot = triOf(*patch.AutoPilot)
	}
	if patch.AutoClose != nil {
		t.AutoClose = triOf(*patch.AutoClose)
	}
	if patch.UseWorktree != nil {
		t.UseWorktree = triOf(*patch.UseWorktree)
	}
	if patch.UseMemory != nil {
		t.UseMemory = triOf(*patch.UseMemory)
	}
	if patch.AIProvider != nil {
		t.AIProvider = *patch.AIProvider
	}
	if patch.AIModel != nil {
		t.AIModel = *patch.AIModel
	}
	if patch.ServerOverride != nil {
		t.ServerOverride = *patch.ServerOverride
	}
	if patch.WorkingDirectoryOverride != nil {
		t.WorkingDirectoryOverride = *patch.WorkingDirectoryOverride
	}
	return nil
}

func triOf(b bool) store.Tri {
	if b {
		return store.TriTrue
	}
	return store.TriFalse
}

func tmuxPaneTarget(t *store.Task) string {
	return fmtTarget(t.TmuxSessionName, t.TmuxWindowIndex, t.TmuxPaneIndex)
}

func tmuxWindowTarget(t *store.Task) string {
	return fmtTarget(t.TmuxSessionName, t.TmuxWindowIndex, -1)
}

func fmtTarget(session string, window, pane int) string {
	if pane < 0 {
		return session + ":" + strconv.Itoa(window)
	}
	return session + ":" + strconv.Itoa(window) + "." + strconv.Itoa(pane)
}
