package rpc

import (
	"context"
	"encoding/json"

	"github.com/tmuxagentsd/daemon/internal/apperr"
	"github.com/tmuxagentsd/daemon/internal/config"
	"github.com/tmuxagentsd/daemon/internal/health"
	"github.com/tmuxagentsd/daemon/internal/tmux"
)

func registerRuntimeHandlers(r *Router, d *Deps) {
	r.Register("runtime.list", func(ctx context.Context, params json.RawMessage) (any, error) {
		return d.Config.Runtimes, nil
	})

	r.Register("runtime.add", func(ctx context.Context, params json.RawMessage) (any, error) {
		var rt config.RuntimeConfig
		if err := decodeParams(params, &rt); err != nil {
			return nil, err
		}
		for _, existing := range d.Config.Runtimes {
			if existing.ID == rt.ID {
				return nil, apperr.Conflictf("runtime %q already exists", rt.ID)
			}
		}
		d.Config.Runtimes = append(d.Config.Runtimes, rt)
		registerRuntimeWithDriver(d, rt)
		return rt, nil
	})

	r.Register("runtime.remove", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		kept := d.Config.Runtimes[:0]
		found := false
		for _, rt := range d.Config.Runtimes {
			if rt.ID == p.ID {
				found = true
				continue
			}
			kept = append(kept, rt)
		}
		if !found {
			return nil, apperr.NotFoundf("runtime %q not found", p.ID)
		}
		d.Config.Runtimes = kept
		d.Tmux.UnregisterRuntime(p.ID)
		return map[string]any{"removed": true}, nil
	})

	r.Register("runtime.register", func(ctx context.Context, params json.RawMessage) (any, error) {
		var rt config.RuntimeConfig
		if err := decodeParams(params, &rt); err != nil {
			return nil, err
		}
		registerRuntimeWithDriver(d, rt)
		return rt, nil
	})

	r.Register("runtime.ping", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		for _, rt := range d.Config.Runtimes {
			if rt.ID == p.ID {
				return health.CheckRuntime(ctx, rt), nil
			}
		}
		return nil, apperr.NotFoundf("runtime %q not found", p.ID)
	})
}

// runtimeTypeToTmux maps the config file's runtime type vocabulary to the
// tmux driver's own RuntimeType constants (the driver spells the
// kubernetes case "kubectl", matching the binary it shells out to).
func runtimeTypeToTmux(t string) tmux.RuntimeType {
	switch t {
	case "k8s":
		return tmux.RuntimeK8s
	case "docker":
		return tmux.RuntimeDocker
	case "ssh":
		return tmux.RuntimeSSH
	default:
		return tmux.RuntimeLocal
	}
}

func registerRuntimeWithDriver(d *Deps, rt config.RuntimeConfig) {
	d.Tmux.RegisterRuntime(tmux.Runtime{
		ID:      rt.ID,
		Type:    runtimeTypeToTmux(rt.Type),
		Host:    rt.Host,
		Port:    rt.Port,
		User:    rt.User,
		Context: rt.Context,
	})
}
