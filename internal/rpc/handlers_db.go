package rpc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tmuxagentsd/daemon/internal/apperr"
	"github.com/tmuxagentsd/daemon/internal/events"
	"github.com/tmuxagentsd/daemon/internal/store"
)

// dbMethod is one entry in the closed set of store methods db.call is
// allowed to invoke. It unmarshals its own positional args.
type dbMethod func(d *Deps, args []json.RawMessage) (any, error)

// dbWhitelist names every store method reachable through db.call. This is
// intentionally a small, explicit set rather than a reflective call-any-
// exported-method proxy: the whitelist IS the authorization boundary.
var dbWhitelist = map[string]dbMethod{
	"listTasks": func(d *Deps, args []json.RawMessage) (any, error) {
		return d.Store.ListTasks(), nil
	},
	"getTask": func(d *Deps, args []json.RawMessage) (any, error) {
		id, err := dbArgString(args, 0)
		if err != nil {
			return nil, err
		}
		return d.Store.GetTask(id)
	},
	"saveTask": func(d *Deps, args []json.RawMessage) (any, error) {
		var t store.Task
		if err := dbArgDecode(args, 0, &t); err != nil {
			return nil, err
		}
		d.Store.SaveTask(&t)
		return &t, nil
	},
	"deleteTask": func(d *Deps, args []json.RawMessage) (any, error) {
		id, err := dbArgString(args, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.Store.DeleteTask(id)
	},
	"listLanes": func(d *Deps, args []json.RawMessage) (any, error) {
		return d.Store.ListLanes(), nil
	},
	"getLane": func(d *Deps, args []json.RawMessage) (any, error) {
		id, err := dbArgString(args, 0)
		if err != nil {
			return nil, err
		}
		return d.Store.GetLane(id)
	},
	"saveLane": func(d *Deps, args []json.RawMessage) (any, error) {
		var l store.Lane
		if err := dbArgDecode(args, 0, &l); err != nil {
			return nil, err
		}
		d.Store.SaveLane(&l)
		return &l, nil
	},
	"deleteLane": func(d *Deps, args []json.RawMessage) (any, error) {
		id, err := dbArgString(args, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.Store.DeleteLane(id)
	},
	"listAgents": func(d *Deps, args []json.RawMessage) (any, error) {
		return d.Store.ListAgents(), nil
	},
	"getAgent": func(d *Deps, args []json.RawMessage) (any, error) {
		id, err := dbArgString(args, 0)
		if err != nil {
			return nil, err
		}
		return d.Store.GetAgent(id)
	},
	"saveAgent": func(d *Deps, args []json.RawMessage) (any, error) {
		var a store.Agent
		if err := dbArgDecode(args, 0, &a); err != nil {
			return nil, err
		}
		d.Store.SaveAgent(&a)
		return &a, nil
	},
	"deleteAgent": func(d *Deps, args []json.RawMessage) (any, error) {
		id, err := dbArgString(args, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.Store.DeleteAgent(id)
	},
	"addComment": func(d *Deps, args []json.RawMessage) (any, error) {
		taskID, err := dbArgString(args, 0)
		if err != nil {
			return nil, err
		}
		body, err := dbArgString(args, 1)
		if err != nil {
			return nil, err
		}
		return d.Store.AddComment(taskID, body)
	},
	"addTag": func(d *Deps, args []json.RawMessage) (any, error) {
		taskID, err := dbArgString(args, 0)
		if err != nil {
			return nil, err
		}
		tag, err := dbArgString(args, 1)
		if err != nil {
			return nil, err
		}
		return nil, d.Store.AddTag(taskID, tag)
	},
	"markAgentState": func(d *Deps, args []json.RawMessage) (any, error) {
		id, err := dbArgString(args, 0)
		if err != nil {
			return nil, err
		}
		state, err := dbArgString(args, 1)
		if err != nil {
			return nil, err
		}
		a, err := d.Store.GetAgent(id)
		if err != nil {
			return nil, err
		}
		a.State = store.AgentState(state)
		d.Store.SaveAgent(a)
		return a, nil
	},
	"clearTag": func(d *Deps, args []json.RawMessage) (any, error) {
		taskID, err := dbArgString(args, 0)
		if err != nil {
			return nil, err
		}
		tag, err := dbArgString(args, 1)
		if err != nil {
			return nil, err
		}
		return nil, d.Store.RemoveTag(taskID, tag)
	},
	"listRoles": func(d *Deps, args []json.RawMessage) (any, error) {
		return d.Store.ListRoles(), nil
	},
	"saveRole": func(d *Deps, args []json.RawMessage) (any, error) {
		var role store.Role
		if err := dbArgDecode(args, 0, &role); err != nil {
			return nil, err
		}
		return &role, d.Store.SaveRole(&role)
	},
	"deleteRole": func(d *Deps, args []json.RawMessage) (any, error) {
		id, err := dbArgString(args, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.Store.DeleteRole(id)
	},
}

func registerDBHandlers(r *Router, d *Deps) {
	r.Register("db.call", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Method string            `json:"method"`
			Args   []json.RawMessage `json:"args"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		fn, ok := dbWhitelist[p.Method]
		if !ok {
			return nil, apperr.Validationf("db method %q is not callable", p.Method)
		}
		result, err := fn(d, p.Args)
		if err != nil {
			return nil, err
		}
		if hasWritePrefix(p.Method) {
			d.Bus.Publish(events.DBChanged, p.Method)
		}
		return result, nil
	})

	r.Register("db.snapshot", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]any{
			"lanes":           d.Store.ListLanes(),
			"tasks":           d.Store.ListTasks(),
			"agents":          d.Store.ListAgents(),
			"roles":           d.Store.ListRoles(),
			"teams":           d.Store.ListTeams(),
			"pipelines":       d.Store.ListPipelines(),
			"backendMappings": d.Store.ListBackendMappings(),
		}, nil
	})
}

var dbWritePrefixes = []string{"save", "delete", "add", "mark", "log", "clear", "update"}

func hasWritePrefix(method string) bool {
	for _, prefix := range dbWritePrefixes {
		if strings.HasPrefix(method, prefix) {
			return true
		}
	}
	return false
}

func dbArgString(args []json.RawMessage, i int) (string, error) {
	if i >= len(args) {
		return "", apperr.Validationf("missing argument %d", i)
	}
	var s string
	if err := json.Unmarshal(args[i], &s); err != nil {
		return "", apperr.Wrap(apperr.Validation, "invalid argument", err)
	}
	return s, nil
}

func dbArgDecode(args []json.RawMessage, i int, dst any) error {
	if i >= len(args) {
		return apperr.Validationf("missing argument %d", i)
	}
	if err := json.Unmarshal(args[i], dst); err != nil {
		return apperr.Wrap(apperr.Validation, "invalid argument", err)
	}
	return nil
}
