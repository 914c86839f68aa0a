// Package orchestrator holds the daemon's in-memory view of live agents and
// the priority-ordered task queue. It never owns authoritative state — the
// store does — but mirrors just enough of it to answer scheduling queries
// (idle agents, queue order) without a store round trip on every tick.
//
// Grounded on the mutex-guarded, logger-injected service shape of
// kdlbs-kandev/apps/backend/internal/orchestrator/service.go, generalized
// down from its full workflow-DAG engine to the single priority queue plus
// agent index this daemon's scheduling actually needs.
package orchestrator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tmuxagentsd/daemon/internal/apperr"
	"github.com/tmuxagentsd/daemon/internal/events"
	"github.com/tmuxagentsd/daemon/internal/store"
)

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	log   *slog.Logger
	store *store.Store
	bus   *events.Bus

	mu     sync.RWMutex
	agents map[string]*store.Agent
	queue  *taskQueue
}

// New wires an Orchestrator against the given store and event bus. log may
// not be nil; bus may be nil (the Bus type tolerates a nil receiver).
func New(log *slog.Logger, st *store.Store, bus *events.Bus) *Orchestrator {
	return &Orchestrator{
		log:    log,
		store:  st,
		bus:    bus,
		agents: make(map[string]*store.Agent),
		queue:  newTaskQueue(),
	}
}

// RegisterAgent adds a to the in-memory index, replacing any prior entry
// with the same id.
func (o *Orchestrator) RegisterAgent(a *store.Agent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.agents[a.ID] = a
	o.log.Debug("agent registered", "agentId", a.ID, "role", a.Role, "state", a.State)
}

// RemoveAgent marks the agent terminated rather than deleting its index
// entry, so a late status query still resolves to a coherent state.
func (o *Orchestrator) RemoveAgent(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.agents[id]
	if !ok {
		return apperr.NotFoundf("agent %q is not registered", id)
	}
	a.State = store.AgentTerminated
	o.store.SaveAgent(a)
	o.bus.Publish(events.TaskUpdated, "agent", id)
	return nil
}

// SubmitTask inserts t's id into the priority queue. Lower Priority values
// run first; tasks of equal priority run in submission order.
func (o *Orchestrator) SubmitTask(t *store.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue.push(t.ID, t.Priority)
}

// CancelTask removes taskID from the queue (if queued) and marks the task
// cancelled in the store. It is not an error to cancel a task that was
// never queued — only queue membership is reported back.
func (o *Orchestrator) CancelTask(taskID string) (wasQueued bool, err error) {
	o.mu.Lock()
	wasQueued = o.queue.remove(taskID)
	o.mu.Unlock()

	t, err := o.store.GetTask(taskID)
	if err != nil {
		return wasQueued, err
	}
	t.Status = store.StatusCancelled
	o.store.SaveTask(t)
	o.bus.Publish(events.TaskUpdated, taskID)
	return wasQueued, nil
}

// NextTask pops the highest-priority queued task id, or ok=false if the
// queue is empty. The caller (the launcher) is responsible for resolving
// the id against the store and invoking startTask.
func (o *Orchestrator) NextTask() (taskID string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.pop()
}

// QueueLen reports the number of tasks currently queued.
func (o *Orchestrator) QueueLen() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.queue.len()
}

// UpdateAgentState transitions the agent's state. A transition into idle
// while the agent has a currentTaskId marks that task completed and clears
// the agent's current-task binding, per the orchestrator's job of keeping
// task/agent lifecycle in sync without waiting on a monitor tick.
func (o *Orchestrator) UpdateAgentState(id string, newState store.AgentState, errorMessage string) error {
	o.mu.Lock()
	a, ok := o.agents[id]
	if !ok {
		o.mu.Unlock()
		return apperr.NotFoundf("agent %q is not registered", id)
	}

	prevState := a.State
	a.State = newState
	a.ErrorMessage = errorMessage
	a.LastActivityAt = time.Now().UnixMilli()

	var completedTaskID string
	if newState == store.AgentIdle && prevState != store.AgentIdle && a.CurrentTaskID != "" {
		completedTaskID = a.CurrentTaskID
		a.CurrentTaskID = ""
	}
	o.store.SaveAgent(a)
	o.mu.Unlock()

	o.bus.Publish(events.TaskUpdated, "agent", id)

	if completedTaskID == "" {
		return nil
	}
	t, err := o.store.GetTask(completedTaskID)
	if err != nil {
		o.log.Warn("agent idle transition referenced a missing task", "agentId", id, "taskId", completedTaskID, "error", err)
		return nil
	}
	now := time.Now().UnixMilli()
	t.Status = store.StatusCompleted
	t.CompletedAt = &now
	o.store.SaveTask(t)
	o.bus.Publish(events.TaskCompleted, completedTaskID)
	return nil
}

// GetIdleAgents returns every idle agent, optionally filtered by role
// (an empty role matches every role).
func (o *Orchestrator) GetIdleAgents(role string) []*store.Agent {
	return o.filterAgents(func(a *store.Agent) bool {
		return a.State == store.AgentIdle && (role == "" || a.Role == role)
	})
}

// GetAgentsByRole returns every registered agent with the given role.
func (o *Orchestrator) GetAgentsByRole(role string) []*store.Agent {
	return o.filterAgents(func(a *store.Agent) bool { return a.Role == role })
}

// GetAgentsByTeam returns every registered agent belonging to teamID.
func (o *Orchestrator) GetAgentsByTeam(teamID string) []*store.Agent {
	return o.filterAgents(func(a *store.Agent) bool { return a.TeamID == teamID })
}

func (o *Orchestrator) filterAgents(keep func(*store.Agent) bool) []*store.Agent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []*store.Agent
	for _, a := range o.agents {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}
