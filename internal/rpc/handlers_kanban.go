package rpc

import (
	"context"
	"encoding/json"

	"github.com/tmuxagentsd/daemon/internal/apperr"
	"github.com/tmuxagentsd/daemon/internal/events"
	"github.com/tmuxagentsd/daemon/internal/idgen"
	"github.com/tmuxagentsd/daemon/internal/launcher"
	"github.com/tmuxagentsd/daemon/internal/store"
)

func registerKanbanHandlers(r *Router, d *Deps) {
	r.Register("kanban.listLanes", func(ctx context.Context, params json.RawMessage) (any, error) {
		return d.Store.ListLanes(), nil
	})

	r.Register("kanban.createLane", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Name                string         `json:"name"`
			ServerID            string         `json:"serverId"`
			WorkingDirectory    string         `json:"workingDirectory"`
			SessionName         string         `json:"sessionName"`
			AIProvider          string         `json:"aiProvider"`
			AIModel             string         `json:"aiModel"`
			ContextInstructions string         `json:"contextInstructions"`
			DefaultToggles      store.Toggles `json:"defaultToggles"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if p.SessionName == "" {
			return nil, apperr.Validationf("sessionName is required")
		}
		l := &store.Lane{
			ID:                  idgen.New("lane"),
			Name:                p.Name,
			ServerID:            p.ServerID,
			WorkingDirectory:    p.WorkingDirectory,
			SessionName:         p.SessionName,
			CreatedAt:           nowMillis(),
			AIProvider:          p.AIProvider,
			AIModel:             p.AIModel,
			ContextInstructions: p.ContextInstructions,
			DefaultToggles:      p.DefaultToggles,
		}
		d.Store.SaveLane(l)
		d.Bus.Publish(events.DBChanged)
		return l, nil
	})

	r.Register("kanban.editLane", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID     string         `json:"id"`
			Fields map[string]any `json:"fields"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := checkFields(p.Fields, laneEditFields); err != nil {
			return nil, err
		}
		l, err := d.Store.GetLane(p.ID)
		if err != nil {
			return nil, err
		}
		if err := applyLaneFields(l, p.Fields); err != nil {
			return nil, err
		}
		d.Store.SaveLane(l)
		d.Bus.Publish(events.DBChanged)
		return l, nil
	})

	r.Register("kanban.deleteLane", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := d.Store.DeleteLane(p.ID); err != nil {
			return nil, err
		}
		d.Bus.Publish(events.DBChanged)
		return map[string]any{"deleted": true}, nil
	})

	r.Register("kanban.saveLane", func(ctx context.Context, params json.RawMessage) (any, error) {
		var l store.Lane
		if err := decodeParams(params, &l); err != nil {
			return nil, err
		}
		if l.ID == "" {
			return nil, apperr.Validationf("id is required")
		}
		d.Store.SaveLane(&l)
		d.Bus.Publish(events.DBChanged)
		return &l, nil
	})

	r.Register("kanban.getBoard", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			LaneID string `json:"laneId"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		board := map[store.KanbanColumn][]*store.Task{}
		for _, t := range d.Store.ListTasks() {
			if p.LaneID != "" && t.SwimLaneID != p.LaneID {
				continue
			}
			board[t.KanbanColumn] = append(board[t.KanbanColumn], t)
		}
		return board, nil
	})

	r.Register("kanban.startTask", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := kanbanStartTask(ctx, d, p.ID); err != nil {
			return nil, err
		}
		return d.Store.GetTask(p.ID)
	})

	r.Register("kanban.stopTask", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t, err := d.Store.GetTask(p.ID)
		if err != nil {
			return nil, err
		}
		if err := kanbanStopTask(ctx, d, t, store.ColumnTodo); err != nil {
			return nil, err
		}
		d.Bus.Publish(events.TaskMoved, t.ID)
		return t, nil
	})

	r.Register("kanban.restartTask", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t, err := d.Store.GetTask(p.ID)
		if err != nil {
			return nil, err
		}
		if t.HasBinding() {
			if err := kanbanStopTask(ctx, d, t, store.ColumnTodo); err != nil {
				return nil, err
			}
		}
		if err := kanbanStartTask(ctx, d, p.ID); err != nil {
			return nil, err
		}
		return d.Store.GetTask(p.ID)
	})

	r.Register("kanban.startBundle", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		// StartTask already mirrors the binding onto every subtask, so a
		// bundle launch is the same call as a single-task start.
		if err := kanbanStartTask(ctx, d, p.ID); err != nil {
			return nil, err
		}
		return d.Store.GetTask(p.ID)
	})

	r.Register("kanban.closeTaskWindow", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t, err := d.Store.GetTask(p.ID)
		if err != nil {
			return nil, err
		}
		if t.HasBinding() {
			if err := d.Tmux.KillWindow(ctx, t.TmuxServerID, tmuxWindowTarget(t)); err != nil {
				return nil, apperr.Wrap(apperr.Multiplexer, "kill window", err)
			}
			t.ClearBinding()
			d.Store.SaveTask(t)
			d.Bus.Publish(events.TaskUpdated, t.ID)
		}
		return t, nil
	})

	r.Register("kanban.cleanupWorktree", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t, err := d.Store.GetTask(p.ID)
		if err != nil {
			return nil, err
		}
		if t.WorktreePath == "" {
			return map[string]any{"cleaned": false}, nil
		}
		workdir := t.WorkingDirectoryOverride
		if workdir == "" {
			if lane, err := d.Store.GetLane(t.SwimLaneID); err == nil {
				workdir = lane.WorkingDirectory
			}
		}
		if err := launcher.RemoveWorktree(workdir, t.WorktreePath); err != nil {
			return nil, apperr.Wrap(apperr.Multiplexer, "remove worktree", err)
		}
		t.WorktreePath = ""
		d.Store.SaveTask(t)
		d.Bus.Publish(events.TaskUpdated, t.ID)
		return map[string]any{"cleaned": true}, nil
	})
}

func applyLaneFields(l *store.Lane, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "re-encode fields", err)
	}
	var patch struct {
		Name                *string        `json:"name"`
		ServerID            *string        `json:"serverId"`
		WorkingDirectory    *string        `json:"workingDirectory"`
		SessionName         *string        `json:"sessionName"`
		AIProvider          *string        `json:"aiProvider"`
		AIModel             *string        `json:"aiModel"`
		ContextInstructions *string        `json:"contextInstructions"`
		DefaultToggles      *store.Toggles `json:"defaultToggles"`
		MemoryFileID        *string        `json:"memoryFileId"`
		MemoryPath          *string        `json:"memoryPath"`
	}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return apperr.Wrap(apperr.Validation, "invalid fields", err)
	}

	if patch.Name != nil {
		l.Name = *patch.Name
	}
	if patch.ServerID != nil {
		l.ServerID = *patch.ServerID
	}
	if patch.WorkingDirectory != nil {
		l.WorkingDirectory = *patch.WorkingDirectory
	}
	if patch.SessionName != nil {
		l.SessionName = *patch.SessionName
	}
	if patch.AIProvider != nil {
		l.AIProvider = *patch.AIProvider
	}
	if patch.AIModel != nil {
		l.AIModel = *patch.AIModel
	}
	if patch.ContextInstructions != nil {
		l.ContextInstructions = *patch.ContextInstructions
	}
	if patch.DefaultToggles != nil {
		l.DefaultToggles = *patch.DefaultToggles
	}
	if patch.MemoryFileID != nil {
		l.MemoryFileID = *patch.MemoryFileID
	}
	if patch.MemoryPath != nil {
		l.MemoryPath = *patch.MemoryPath
	}
	return nil
}
