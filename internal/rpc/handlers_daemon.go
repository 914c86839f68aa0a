package rpc

import (
	"context"
	"encoding/json"

	"github.com/tmuxagentsd/daemon/internal/apperr"
)

func registerDaemonHandlers(r *Router, d *Deps) {
	r.Register("daemon.health", func(ctx context.Context, params json.RawMessage) (any, error) {
		return d.Health.Check(ctx), nil
	})

	r.Register("daemon.config", func(ctx context.Context, params json.RawMessage) (any, error) {
		return d.Config, nil
	})

	r.Register("daemon.reload", func(ctx context.Context, params json.RawMessage) (any, error) {
		if d.Reload == nil {
			return nil, apperr.New(apperr.Unimplemented, "daemon.reload is not wired")
		}
		cfg, err := d.Reload()
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, "reload config", err)
		}
		d.Config = cfg
		return cfg, nil
	})

	r.Register("daemon.stats", func(ctx context.Context, params json.RawMessage) (any, error) {
		agents := d.Store.ListAgents()
		idle, working := 0, 0
		for _, a := range agents {
			switch a.State {
			case "idle":
				idle++
			case "working":
				working++
			}
		}
		return map[string]any{
			"uptimeMs":   nowMillis() - d.StartAt.UnixMilli(),
			"taskCount":  len(d.Store.ListTasks()),
			"agentCount": len(agents),
			"idleAgents": idle,
			"working":    working,
			"queueLen":   d.Orch.QueueLen(),
		}, nil
	})

	r.Register("daemon.shutdown", func(ctx context.Context, params json.RawMessage) (any, error) {
		if d.Shutdown != nil {
			go d.Shutdown()
		}
		return map[string]any{"shuttingDown": true}, nil
	})
}
