package rpc

import (
	"context"
	"encoding/json"

	"github.com/tmuxagentsd/daemon/internal/apperr"
	"github.com/tmuxagentsd/daemon/internal/idgen"
	"github.com/tmuxagentsd/daemon/internal/monitor"
	"github.com/tmuxagentsd/daemon/internal/provider"
	"github.com/tmuxagentsd/daemon/internal/store"
)

func registerMiscHandlers(r *Router, d *Deps) {
	registerTeamHandlers(r, d)
	registerPipelineHandlers(r, d)
	registerRoleHandlers(r, d)
	registerBackendHandlers(r, d)
	registerAIHandlers(r, d)

	r.Register("tmux.getTree", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			RuntimeID string `json:"runtimeId"`
			Force     bool   `json:"force"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		tree, err := d.Tmux.GetTree(ctx, p.RuntimeID, p.Force)
		if err != nil {
			return nil, apperr.Wrap(apperr.Multiplexer, "get tree", err)
		}
		return tree, nil
	})

	r.Register("fanout.run", unimplemented("fanout.run"))
}

func registerTeamHandlers(r *Router, d *Deps) {
	r.Register("team.list", func(ctx context.Context, params json.RawMessage) (any, error) {
		return d.Store.ListTeams(), nil
	})
	r.Register("team.create", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Name string `json:"name"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t := &store.Team{ID: idgen.New("team"), Name: p.Name}
		if err := d.Store.SaveTeam(t); err != nil {
			return nil, err
		}
		return t, nil
	})
	r.Register("team.delete", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t, err := d.Store.GetTeam(p.ID)
		if err != nil {
			return nil, err
		}
		t.Members = nil
		if err := d.Store.SaveTeam(t); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": true}, nil
	})
	r.Register("team.addAgent", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			TeamID  string `json:"teamId"`
			AgentID string `json:"agentId"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t, err := d.Store.GetTeam(p.TeamID)
		if err != nil {
			return nil, err
		}
		a, err := d.Store.GetAgent(p.AgentID)
		if err != nil {
			return nil, err
		}
		t.Members = appendUnique(t.Members, p.AgentID)
		a.TeamID = p.TeamID
		d.Store.SaveAgent(a)
		if err := d.Store.SaveTeam(t); err != nil {
			return nil, err
		}
		return t, nil
	})
	r.Register("team.removeAgent", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			TeamID  string `json:"teamId"`
			AgentID string `json:"agentId"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t, err := d.Store.GetTeam(p.TeamID)
		if err != nil {
			return nil, err
		}
		t.Members = removeString(t.Members, p.AgentID)
		if a, err := d.Store.GetAgent(p.AgentID); err == nil && a.TeamID == p.TeamID {
			a.TeamID = ""
			d.Store.SaveAgent(a)
		}
		if err := d.Store.SaveTeam(t); err != nil {
			return nil, err
		}
		return t, nil
	})
	// quickCode/quickResearch are convenience presets over task.submit in
	// the source UI; here they resolve to the same submit path with a
	// fixed targetRole so both entry points share one code path.
	r.Register("team.quickCode", quickSubmit(d, "coder"))
	r.Register("team.quickResearch", quickSubmit(d, "researcher"))
}

func quickSubmit(d *Deps, role string) HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Description string `json:"description"`
			Lane        string `json:"lane"`
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
		t := &store.Task{
			ID:           idgen.New("task"),
			Description:  p.Description,
			Status:       store.StatusInProgress,
			KanbanColumn: store.ColumnInProgress,
			CreatedAt:    nowMillis(),
			TargetRole:   role,
			SwimLaneID:   p.Lane,
		}
		d.Store.SaveTask(t)
		if err := d.Launch.StartTask(ctx, t.ID); err != nil {
			return nil, err
		}
		return d.Store.GetTask(t.ID)
	}
}

func registerPipelineHandlers(r *Router, d *Deps) {
	r.Register("pipeline.list", func(ctx context.Context, params json.RawMessage) (any, error) {
		return d.Store.ListPipelines(), nil
	})
	r.Register("pipeline.create", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Name string `json:"name"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		pl := &store.Pipeline{ID: idgen.New("pipeline"), Name: p.Name}
		if err := d.Store.SavePipeline(pl); err != nil {
			return nil, err
		}
		return pl, nil
	})
	// run/pause/resume/cancel are bookkeeping only: the DAG execution
	// engine itself is out of scope, so these just record a PipelineRun's
	// status transition for callers polling getStatus/getActive.
	r.Register("pipeline.run", pipelineTransition(d, "running"))
	r.Register("pipeline.pause", pipelineTransition(d, "paused"))
	r.Register("pipeline.resume", pipelineTransition(d, "running"))
	r.Register("pipeline.cancel", pipelineTransition(d, "cancelled"))
	r.Register("pipeline.getStatus", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			PipelineID string `json:"pipelineId"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return d.Store.ListPipelineRuns(p.PipelineID), nil
	})
	r.Register("pipeline.getActive", func(ctx context.Context, params json.RawMessage) (any, error) {
		var active []*store.PipelineRun
		for _, pl := range d.Store.ListPipelines() {
			for _, run := range d.Store.ListPipelineRuns(pl.ID) {
				if run.Status == "running" {
					active = append(active, run)
				}
			}
		}
		return active, nil
	})
}

func pipelineTransition(d *Deps, status string) HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			PipelineID string `json:"pipelineId"`
			RunID      string `json:"runId"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		run := &store.PipelineRun{ID: p.RunID, PipelineID: p.PipelineID, Status: status, StartedAt: nowMillis()}
		if run.ID == "" {
			run.ID = idgen.New("run")
		}
		if err := d.Store.SavePipelineRun(run); err != nil {
			return nil, err
		}
		return run, nil
	}
}

func registerRoleHandlers(r *Router, d *Deps) {
	r.Register("role.list", func(ctx context.Context, params json.RawMessage) (any, error) {
		return d.Store.ListRoles(), nil
	})
	r.Register("role.create", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Name string `json:"name"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		role := &store.Role{ID: idgen.New("role"), Name: p.Name}
		if err := d.Store.SaveRole(role); err != nil {
			return nil, err
		}
		return role, nil
	})
	r.Register("role.update", func(ctx context.Context, params json.RawMessage) (any, error) {
		var role store.Role
		if err := decodeParams(params, &role); err != nil {
			return nil, err
		}
		if role.ID == "" {
			return nil, apperr.Validationf("id is required")
		}
		if err := d.Store.SaveRole(&role); err != nil {
			return nil, err
		}
		return &role, nil
	})
	r.Register("role.delete", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := d.Store.DeleteRole(p.ID); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": true}, nil
	})
}

func registerBackendHandlers(r *Router, d *Deps) {
	r.Register("backend.list", func(ctx context.Context, params json.RawMessage) (any, error) {
		return d.Store.ListBackendMappings(), nil
	})
	r.Register("backend.add", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Backend string `json:"backend"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		b := &store.BackendMapping{ID: idgen.New("backend"), Backend: p.Backend, Status: "configured"}
		if err := d.Store.SaveBackendMapping(b); err != nil {
			return nil, err
		}
		return b, nil
	})
	r.Register("backend.remove", backendSetEnabled(d, false, "removed"))
	r.Register("backend.enable", backendSetEnabled(d, true, "enabled"))
	r.Register("backend.disable", backendSetEnabled(d, false, "disabled"))
	r.Register("backend.sync", backendSetStatus(d, "synced"))
	r.Register("backend.status", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		for _, b := range d.Store.ListBackendMappings() {
			if b.ID == p.ID {
				return b, nil
			}
		}
		return nil, apperr.NotFoundf("backend %q not found", p.ID)
	})
	r.Register("backend.retryErrors", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			BackendID string `json:"backendId"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return d.Store.ListSyncErrors(p.BackendID), nil
	})
}

func backendSetEnabled(d *Deps, enabled bool, status string) HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		for _, b := range d.Store.ListBackendMappings() {
			if b.ID == p.ID {
				b.Enabled = enabled
				b.Status = status
				if err := d.Store.SaveBackendMapping(b); err != nil {
					return nil, err
				}
				return b, nil
			}
		}
		return nil, apperr.NotFoundf("backend %q not found", p.ID)
	}
}

func backendSetStatus(d *Deps, status string) HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		for _, b := range d.Store.ListBackendMappings() {
			if b.ID == p.ID {
				b.Status = status
				if err := d.Store.SaveBackendMapping(b); err != nil {
					return nil, err
				}
				return b, nil
			}
		}
		return nil, apperr.NotFoundf("backend %q not found", p.ID)
	}
}

func registerAIHandlers(r *Router, d *Deps) {
	r.Register("ai.resolveConfig", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			TaskID string `json:"taskId"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t, err := d.Store.GetTask(p.TaskID)
		if err != nil {
			return nil, err
		}
		lane, err := d.Store.GetLane(t.SwimLaneID)
		if err != nil {
			return nil, err
		}
		providerID, err := provider.ResolveProvider(t.AIProvider, lane.AIProvider, provider.Claude)
		if err != nil {
			return nil, apperr.Wrap(apperr.Provider, "resolve provider", err)
		}
		model := provider.ResolveModel(t.AIModel, lane.AIModel)
		autoPilot := d.Store.ResolveToggle(t, store.ToggleAutoPilot)
		launchCmd, err := provider.GetInteractiveLaunchCommand(providerID, provider.LaunchOptions{Model: model, AutoPilot: autoPilot})
		if err != nil {
			return nil, apperr.Wrap(apperr.Provider, "build launch command", err)
		}
		return map[string]any{"provider": providerID, "model": model, "launchCommand": launchCmd}, nil
	})

	r.Register("ai.getSpawnConfig", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			TaskID    string `json:"taskId"`
			AutoPilot bool   `json:"autoPilot"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t, err := d.Store.GetTask(p.TaskID)
		if err != nil {
			return nil, err
		}
		lane, err := d.Store.GetLane(t.SwimLaneID)
		if err != nil {
			return nil, err
		}
		providerID, err := provider.ResolveProvider(t.AIProvider, lane.AIProvider, provider.Claude)
		if err != nil {
			return nil, apperr.Wrap(apperr.Provider, "resolve provider", err)
		}
		model := provider.ResolveModel(t.AIModel, lane.AIModel)
		cfg, err := provider.GetSpawnConfig(providerID, provider.LaunchOptions{Model: model, AutoPilot: p.AutoPilot})
		if err != nil {
			return nil, apperr.Wrap(apperr.Provider, "build spawn config", err)
		}
		return cfg, nil
	})

	r.Register("ai.summarize", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Text string `json:"text"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return map[string]any{"summary": monitor.Summarize(p.Text)}, nil
	})
}

func appendUnique(s []string, v string) []string {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, existing := range s {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
