package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmuxagentsd/daemon/internal/apperr"
	"github.com/tmuxagentsd/daemon/internal/provider"
	"github.com/tmuxagentsd/daemon/internal/tmux"
)

func registerAgentHandlers(r *Router, d *Deps) {
	r.Register("agent.list", func(ctx context.Context, params json.RawMessage) (any, error) {
		return d.Store.ListAgents(), nil
	})

	r.Register("agent.get", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return d.Store.GetAgent(p.ID)
	})

	r.Register("agent.spawn", unimplemented("agent.spawn"))
	r.Register("agent.sendPrompt", unimplemented("agent.sendPrompt"))

	r.Register("agent.kill", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		a, err := d.Store.GetAgent(p.ID)
		if err != nil {
			return nil, err
		}
		if a.ServerID != "" && a.SessionName != "" {
			target := fmt.Sprintf("%s:%d", a.SessionName, a.WindowIndex)
			if err := d.Tmux.KillWindow(ctx, a.ServerID, target); err != nil {
				d.Log.Warn("agent.kill failed to kill window", "agentId", a.ID, "error", err)
			}
		}
		if err := d.Orch.RemoveAgent(p.ID); err != nil {
			return nil, err
		}
		return map[string]any{"killed": true}, nil
	})

	r.Register("agent.getOutput", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID    string `json:"id"`
			Lines int    `json:"lines"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		a, err := d.Store.GetAgent(p.ID)
		if err != nil {
			return nil, err
		}
		lines := p.Lines
		if lines <= 0 {
			lines = 200
		}
		target := fmt.Sprintf("%s:%d.%d", a.SessionName, a.WindowIndex, a.PaneIndex)
		capture, err := d.Tmux.CapturePaneContent(ctx, a.ServerID, target, lines, false)
		if err != nil {
			return nil, apperr.Wrap(apperr.Multiplexer, "capture pane", err)
		}
		return map[string]any{"output": capture}, nil
	})

	r.Register("agent.getStatus", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		a, err := d.Store.GetAgent(p.ID)
		if err != nil {
			return nil, err
		}
		target := fmt.Sprintf("%s:%d.%d", a.SessionName, a.WindowIndex, a.PaneIndex)
		if opts, err := d.Tmux.GetMultiplePaneOptions(ctx, a.ServerID, target, []string{"@cc_state"}); err == nil {
			if status, ok := provider.FromOption(opts["@cc_state"]); ok {
				return map[string]any{"status": status, "agentState": a.State}, nil
			}
		}
		capture, err := d.Tmux.CapturePaneContent(ctx, a.ServerID, target, 30, false)
		if err != nil {
			return map[string]any{"status": provider.StatusIdle, "agentState": a.State}, nil
		}
		return map[string]any{"status": provider.DetectStatus(capture), "agentState": a.State}, nil
	})

	r.Register("agent.getAttachCommand", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		a, err := d.Store.GetAgent(p.ID)
		if err != nil {
			return nil, err
		}
		if !tmux.ValidateSessionName(a.SessionName) {
			return nil, apperr.Validationf("unsafe session name %q", a.SessionName)
		}
		return map[string]any{"command": fmt.Sprintf("tmux attach-session -t %s", a.SessionName)}, nil
	})
}

func unimplemented(method string) HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, apperr.New(apperr.Unimplemented, method+" is not implemented")
	}
}
