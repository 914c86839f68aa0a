package orchestrator

import (
	"log/slog"
	"io"
	"testing"

	"github.com/tmuxagentsd/daemon/internal/events"
	"github.com/tmuxagentsd/daemon/internal/store"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(t.TempDir()+"/test.db", log)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(log, st, events.New()), st
}

func TestQueuePriorityOrdering(t *testing.T) {
	q := newTaskQueue()
	q.push("low-priority-later", 5)
	q.push("high-priority", 1)
	q.push("low-priority-first", 5)

	first, ok := q.pop()
	if !ok || first != "high-priority" {
		t.Fatalf("pop() = %q, %v, want high-priority", first, ok)
	}
	second, _ := q.pop()
	if second != "low-priority-later" {
		t.Errorf("pop() = %q, want low-priority-later (insertion-order tie-break)", second)
	}
	third, _ := q.pop()
	if third != "low-priority-first" {
		t.Errorf("pop() = %q, want low-priority-first", third)
	}
	if _, ok := q.pop(); ok {
		t.Error("expected queue to be empty")
	}
}

func TestQueueRemoveFromMiddle(t *testing.T) {
	q := newTaskQueue()
	q.push("a", 1)
	q.push("b", 1)
	q.push("c", 1)

	if !q.remove("b") {
		t.Fatal("expected remove(b) to report present")
	}
	if q.remove("b") {
		t.Error("expected second remove(b) to report absent")
	}
	got, _ := q.pop()
	if got != "a" {
		t.Errorf("pop() = %q, want a", got)
	}
	got, _ = q.pop()
	if got != "c" {
		t.Errorf("pop() = %q, want c", got)
	}
}

func TestSubmitAndNextTask(t *testing.T) {
	o, st := newTestOrchestrator(t)
	t1 := &store.Task{ID: "t1", Description: "first", Priority: 10}
	t2 := &store.Task{ID: "t2", Description: "second", Priority: 1}
	st.SaveTask(t1)
	st.SaveTask(t2)
	o.SubmitTask(t1)
	o.SubmitTask(t2)

	id, ok := o.NextTask()
	if !ok || id != "t2" {
		t.Fatalf("NextTask() = %q, %v, want t2", id, ok)
	}
	if o.QueueLen() != 1 {
		t.Errorf("QueueLen() = %d, want 1", o.QueueLen())
	}
}

func TestCancelTaskRemovesFromQueueAndMarksCancelled(t *testing.T) {
	o, st := newTestOrchestrator(t)
	task := &store.Task{ID: "t1", Description: "cancel me", Status: store.StatusPending}
	st.SaveTask(task)
	o.SubmitTask(task)

	wasQueued, err := o.CancelTask("t1")
	if err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if !wasQueued {
		t.Error("expected wasQueued = true")
	}
	got, _ := st.GetTask("t1")
	if got.Status != store.StatusCancelled {
		t.Errorf("task status = %q, want cancelled", got.Status)
	}
	if o.QueueLen() != 0 {
		t.Errorf("QueueLen() = %d, want 0", o.QueueLen())
	}
}

func TestUpdateAgentStateIdleTransitionCompletesTask(t *testing.T) {
	o, st := newTestOrchestrator(t)
	task := &store.Task{ID: "task-1", Description: "in flight", Status: store.StatusInProgress}
	st.SaveTask(task)
	agent := &store.Agent{ID: "agent-1", State: store.AgentWorking, CurrentTaskID: "task-1"}
	st.SaveAgent(agent)
	o.RegisterAgent(agent)

	if err := o.UpdateAgentState("agent-1", store.AgentIdle, ""); err != nil {
		t.Fatalf("UpdateAgentState: %v", err)
	}

	gotTask, _ := st.GetTask("task-1")
	if gotTask.Status != store.StatusCompleted {
		t.Errorf("task status = %q, want completed", gotTask.Status)
	}
	if gotTask.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	gotAgent, _ := st.GetAgent("agent-1")
	if gotAgent.CurrentTaskID != "" {
		t.Errorf("agent CurrentTaskID = %q, want empty", gotAgent.CurrentTaskID)
	}
}

func TestUpdateAgentStateNonIdleTransitionLeavesTaskAlone(t *testing.T) {
	o, st := newTestOrchestrator(t)
	task := &store.Task{ID: "task-1", Status: store.StatusInProgress}
	st.SaveTask(task)
	agent := &store.Agent{ID: "agent-1", State: store.AgentSpawning, CurrentTaskID: "task-1"}
	st.SaveAgent(agent)
	o.RegisterAgent(agent)

	if err := o.UpdateAgentState("agent-1", store.AgentWorking, ""); err != nil {
		t.Fatalf("UpdateAgentState: %v", err)
	}
	gotTask, _ := st.GetTask("task-1")
	if gotTask.Status != store.StatusInProgress {
		t.Errorf("task status = %q, want unchanged in_progress", gotTask.Status)
	}
}

func TestUpdateAgentStateUnknownAgent(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if err := o.UpdateAgentState("ghost", store.AgentIdle, ""); err == nil {
		t.Fatal("expected an error for an unregistered agent")
	}
}

func TestGetIdleAgentsFiltersByRole(t *testing.T) {
	o, st := newTestOrchestrator(t)
	a1 := &store.Agent{ID: "a1", State: store.AgentIdle, Role: "reviewer"}
	a2 := &store.Agent{ID: "a2", State: store.AgentIdle, Role: "builder"}
	a3 := &store.Agent{ID: "a3", State: store.AgentWorking, Role: "reviewer"}
	for _, a := range []*store.Agent{a1, a2, a3} {
		st.SaveAgent(a)
		o.RegisterAgent(a)
	}

	reviewers := o.GetIdleAgents("reviewer")
	if len(reviewers) != 1 || reviewers[0].ID != "a1" {
		t.Errorf("GetIdleAgents(reviewer) = %v, want [a1]", reviewers)
	}
	all := o.GetIdleAgents("")
	if len(all) != 2 {
		t.Errorf("GetIdleAgents(\"\") len = %d, want 2", len(all))
	}
}

func TestGetAgentsByTeam(t *testing.T) {
	o, st := newTestOrchestrator(t)
	a1 := &store.Agent{ID: "a1", TeamID: "guild-1"}
	a2 := &store.Agent{ID: "a2", TeamID: "guild-2"}
	st.SaveAgent(a1)
	st.SaveAgent(a2)
	o.RegisterAgent(a1)
	o.RegisterAgent(a2)

	got := o.GetAgentsByTeam("guild-1")
	if len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("GetAgentsByTeam(guild-1) = %v, want [a1]", got)
	}
}

func TestRemoveAgentMarksTerminated(t *testing.T) {
	o, st := newTestOrchestrator(t)
	a := &store.Agent{ID: "a1", State: store.AgentIdle}
	st.SaveAgent(a)
	o.RegisterAgent(a)

	if err := o.RemoveAgent("a1"); err != nil {
		t.Fatalf("RemoveAgent: %v", err)
	}
	got, _ := st.GetAgent("a1")
	if got.State != store.AgentTerminated {
		t.Errorf("agent state = %q, want terminated", got.State)
	}
}
