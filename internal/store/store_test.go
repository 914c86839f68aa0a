package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetTaskRoundTrips(t *testing.T) {
	s := openTestStore(t)
	task := &Task{ID: "t1", Description: "do the thing", Status: StatusPending, KanbanColumn: ColumnBacklog, Priority: 3, CreatedAt: now()}
	s.SaveTask(task)

	got, err := s.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Description != "do the thing" || got.Priority != 3 {
		t.Errorf("GetTask round-trip mismatch: %+v", got)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetTask("missing"); err == nil {
		t.Fatal("expected a not-found error")
	}
}

func TestDeleteTaskCascadesChildren(t *testing.T) {
	s := openTestStore(t)
	s.SaveTask(&Task{ID: "parent", CreatedAt: now()})
	s.SaveTask(&Task{ID: "child", CreatedAt: now()})
	if err := s.AddSubtask("parent", "child"); err != nil {
		t.Fatalf("AddSubtask: %v", err)
	}
	if _, err := s.AddComment("parent", "a note"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	if err := s.DeleteTask("parent"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := s.GetTask("parent"); err == nil {
		t.Fatal("parent should be gone")
	}
	child, err := s.GetTask("child")
	if err != nil {
		t.Fatalf("GetTask(child): %v", err)
	}
	if child.ParentTaskID != "" {
		t.Errorf("child.ParentTaskID = %q, want empty after parent deletion", child.ParentTaskID)
	}
}

func TestAddSubtaskRejectsCycle(t *testing.T) {
	s := openTestStore(t)
	s.SaveTask(&Task{ID: "a", CreatedAt: now()})
	s.SaveTask(&Task{ID: "b", CreatedAt: now()})
	if err := s.AddSubtask("a", "b"); err != nil {
		t.Fatalf("AddSubtask(a,b): %v", err)
	}
	if err := s.AddSubtask("b", "a"); err == nil {
		t.Fatal("expected cycle rejection linking a under b")
	}
}

func TestAddDependencyRejectsCycle(t *testing.T) {
	s := openTestStore(t)
	s.SaveTask(&Task{ID: "a", CreatedAt: now()})
	s.SaveTask(&Task{ID: "b", CreatedAt: now()})
	if err := s.AddDependency("a", "b"); err != nil {
		t.Fatalf("AddDependency(a,b): %v", err)
	}
	if err := s.AddDependency("b", "a"); err == nil {
		t.Fatal("expected cycle rejection for b depending on a")
	}
}

func TestHasBindingRequiresServerAndSession(t *testing.T) {
	task := &Task{}
	if task.HasBinding() {
		t.Fatal("empty task should not report a binding")
	}
	task.TmuxServerID = "local"
	if task.HasBinding() {
		t.Fatal("server id alone should not count as bound")
	}
	task.TmuxSessionName = "lane-1"
	if !task.HasBinding() {
		t.Fatal("server id + session name should count as bound")
	}
}

func TestResolveToggleFallsBackToLaneDefault(t *testing.T) {
	s := openTestStore(t)
	s.SaveLane(&Lane{ID: "lane1", Name: "Lane One", CreatedAt: now(), DefaultToggles: Toggles{ToggleAutoPilot: true}})
	task := &Task{ID: "t1", SwimLaneID: "lane1", CreatedAt: now()}
	s.SaveTask(task)

	got, _ := s.GetTask("t1")
	if !s.ResolveToggle(got, ToggleAutoPilot) {
		t.Error("expected lane default autoPilot=true to apply")
	}
	if s.ResolveToggle(got, ToggleAutoClose) {
		t.Error("expected autoClose to default to false with no lane default and no override")
	}

	got.AutoPilot = TriFalse
	if s.ResolveToggle(got, ToggleAutoPilot) {
		t.Error("explicit task override should win over lane default")
	}
}

func TestRecordStatusChangeAppendsHistory(t *testing.T) {
	s := openTestStore(t)
	s.SaveTask(&Task{ID: "t1", Status: StatusPending, KanbanColumn: ColumnBacklog, CreatedAt: now()})

	if err := s.RecordStatusChange("t1", StatusPending, StatusInProgress, ColumnBacklog, ColumnInProgress); err != nil {
		t.Fatalf("RecordStatusChange: %v", err)
	}
	got, _ := s.GetTask("t1")
	if got.Status != StatusInProgress || got.KanbanColumn != ColumnInProgress {
		t.Errorf("status/column not updated: %+v", got)
	}
	if len(got.StatusHistory) != 1 || got.StatusHistory[0].ToStatus != StatusInProgress {
		t.Errorf("expected one history entry ending in in_progress, got %+v", got.StatusHistory)
	}
}

func TestClosePersistsBeforeReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.db")

	s1, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s1.SaveLane(&Lane{ID: "lane1", Name: "Lane One", CreatedAt: now()})
	s1.SaveTask(&Task{ID: "t1", Description: "persisted", CreatedAt: now()})
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	lane, err := s2.GetLane("lane1")
	if err != nil || lane.Name != "Lane One" {
		t.Errorf("lane not persisted across reopen: %v, %+v", err, lane)
	}
	task, err := s2.GetTask("t1")
	if err != nil || task.Description != "persisted" {
		t.Errorf("task not persisted across reopen: %v, %+v", err, task)
	}
}

func TestDebouncedFlushCoalescesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debounce.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	for i := 0; i < 20; i++ {
		s.SaveTask(&Task{ID: "t1", Priority: i, CreatedAt: now()})
	}

	var rowCount int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE id = 't1'`)
	_ = row.Scan(&rowCount)
	if rowCount != 0 {
		t.Errorf("expected the debounce window to still be open, got %d rows already on disk", rowCount)
	}

	time.Sleep(flushDelay + 200*time.Millisecond)
	row = s.db.QueryRow(`SELECT priority FROM tasks WHERE id = 't1'`)
	var priority int
	if err := row.Scan(&priority); err != nil {
		t.Fatalf("expected the debounced flush to have written the row: %v", err)
	}
	if priority != 19 {
		t.Errorf("priority = %d, want 19 (the last write before the debounce fired)", priority)
	}
}
