// Package reconciler runs the daemon's startup-only reconciliation pass:
// every agent the store remembers as live gets checked against the real
// multiplexer state before the orchestrator starts scheduling against it.
//
// Grounded on other_examples/aee053c1_ztbrown-gastown__internal-daemon-lifecycle.go's
// startup reconciliation of recorded vs. live state (load recorded
// entities, probe actual liveness, reconcile the mismatch once before the
// main loop begins).
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/tmuxagentsd/daemon/internal/orchestrator"
	"github.com/tmuxagentsd/daemon/internal/store"
	"github.com/tmuxagentsd/daemon/internal/tmux"
)

// deadAgentMessage is the fixed error message assigned to an agent whose
// session no longer exists at startup.
const deadAgentMessage = "session not found during startup reconciliation"

// Reconciler performs the one-shot startup pass.
type Reconciler struct {
	log    *slog.Logger
	store  *store.Store
	driver *tmux.Driver
	orch   *orchestrator.Orchestrator
}

func New(log *slog.Logger, st *store.Store, driver *tmux.Driver, orch *orchestrator.Orchestrator) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{log: log, store: st, driver: driver, orch: orch}
}

// Run loads every non-terminated, non-error agent and probes its session.
// Live agents are re-registered with the orchestrator; dead ones are
// marked in error. It never returns an error: a probe failure is treated
// the same as "dead" so a single unreachable runtime can't abort startup.
func (r *Reconciler) Run(ctx context.Context) {
	for _, a := range r.store.ListAgents() {
		if a.State == store.AgentTerminated || a.State == store.AgentError {
			continue
		}

		alive, err := r.driver.ProbeSession(ctx, a.ServerID, a.SessionName)
		if err != nil {
			r.log.Warn("reconciler: probe failed, treating agent as dead", "agentId", a.ID, "error", err)
			alive = false
		}

		if !alive {
			a.State = store.AgentError
			a.ErrorMessage = deadAgentMessage
			r.store.SaveAgent(a)
			r.log.Info("reconciler: agent session is gone", "agentId", a.ID, "sessionName", a.SessionName)
			continue
		}

		a.LastActivityAt = time.Now().UnixMilli()
		r.store.SaveAgent(a)
		r.orch.RegisterAgent(a)
		r.log.Info("reconciler: re-registered live agent", "agentId", a.ID, "sessionName", a.SessionName)
	}
}
