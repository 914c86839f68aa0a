package store

import (
	"database/sql"

	"github.com/tmuxagentsd/daemon/internal/apperr"
	"github.com/tmuxagentsd/daemon/internal/idgen"
)

// SaveTask inserts or updates a task's core fields in the in-memory image.
// Comments, status history, tags, subtask edges, and dependency edges are
// mutated through their own methods so each keeps its own invariants.
func (s *Store) SaveTask(t *Task) {
	cp := cloneTask(t)
	s.mu.Lock()
	s.tasks[t.ID] = cp
	s.mu.Unlock()
	s.markTaskDirty(t.ID)
}

// GetTask returns a fully-populated copy of the task with id: its core
// fields plus comments, status history, tags, subtask ids, and dependency
// ids are all already resident on the in-memory record, so a single lookup
// satisfies the "populate every transitive collection" contract.
func (s *Store) GetTask(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, apperr.NotFoundf("task %q not found", id)
	}
	return cloneTask(t), nil
}

// ListTasks returns a copy of every task.
func (s *Store) ListTasks() []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, cloneTask(t))
	}
	return out
}

// DeleteTask removes a task and cascades: its comments and status history
// disappear, it is unlinked from its parent's subtask list, any children
// become root tasks (ParentTaskID cleared, not deleted), and it is removed
// from every other task's DependsOn list.
func (s *Store) DeleteTask(id string) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return apperr.NotFoundf("task %q not found", id)
	}
	parentID := t.ParentTaskID
	delete(s.tasks, id)

	if parentID != "" {
		if parent, ok := s.tasks[parentID]; ok {
			parent.SubtaskIDs = removeString(parent.SubtaskIDs, id)
		}
	}
	for _, other := range s.tasks {
		if other.ParentTaskID == id {
			other.ParentTaskID = ""
		}
		other.DependsOn = removeString(other.DependsOn, id)
	}
	s.mu.Unlock()

	s.markTaskDeleted(id)
	return nil
}

// AddComment appends a comment to a task and returns the stored copy.
func (s *Store) AddComment(taskID, body string) (*Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, apperr.NotFoundf("task %q not found", taskID)
	}
	c := Comment{ID: idgen.New("comment"), TaskID: taskID, Body: body, CreatedAt: now()}
	t.Comments = append(t.Comments, c)
	s.markTaskDirty(taskID)
	cp := c
	return &cp, nil
}

// RecordStatusChange updates a task's status/column and appends a history
// entry in one call, so the two never drift apart.
func (s *Store) RecordStatusChange(taskID string, fromStatus, toStatus TaskStatus, fromCol, toCol KanbanColumn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return apperr.NotFoundf("task %q not found", taskID)
	}
	t.Status = toStatus
	t.KanbanColumn = toCol
	t.StatusHistory = append(t.StatusHistory, StatusHistoryEntry{
		TaskID: taskID, FromStatus: fromStatus, ToStatus: toStatus,
		FromColumn: fromCol, ToColumn: toCol, ChangedAt: now(),
	})
	s.markTaskDirty(taskID)
	return nil
}

// AddTag adds tag to a task if not already present.
func (s *Store) AddTag(taskID, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return apperr.NotFoundf("task %q not found", taskID)
	}
	for _, existing := range t.Tags {
		if existing == tag {
			return nil
		}
	}
	t.Tags = append(t.Tags, tag)
	s.markTaskDirty(taskID)
	return nil
}

// RemoveTag removes tag from a task if present.
func (s *Store) RemoveTag(taskID, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return apperr.NotFoundf("task %q not found", taskID)
	}
	t.Tags = removeString(t.Tags, tag)
	s.markTaskDirty(taskID)
	return nil
}

// AddSubtask links child under parent, rejecting a link that would create a
// cycle or give child a second parent (tasks form a forest, not a DAG).
func (s *Store) AddSubtask(parentID, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok := s.tasks[parentID]
	if !ok {
		return apperr.NotFoundf("task %q not found", parentID)
	}
	child, ok := s.tasks[childID]
	if !ok {
		return apperr.NotFoundf("task %q not found", childID)
	}
	if child.ParentTaskID != "" {
		return apperr.Validationf("task %q already has a parent", childID)
	}
	if s.isAncestor(childID, parentID) {
		return apperr.Validationf("linking %q under %q would create a cycle", childID, parentID)
	}
	child.ParentTaskID = parentID
	parent.SubtaskIDs = append(parent.SubtaskIDs, childID)
	s.markTaskDirty(parentID)
	s.markTaskDirty(childID)
	return nil
}

// isAncestor reports whether candidate is an ancestor of id, walking up
// ParentTaskID links. Caller must hold s.mu.
func (s *Store) isAncestor(candidate, id string) bool {
	for cur := id; cur != ""; {
		t, ok := s.tasks[cur]
		if !ok {
			return false
		}
		if t.ParentTaskID == candidate {
			return true
		}
		cur = t.ParentTaskID
	}
	return false
}

// AddDependency records that taskID depends on dependsOnID, rejecting a
// link that would create a dependency cycle.
func (s *Store) AddDependency(taskID, dependsOnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return apperr.NotFoundf("task %q not found", taskID)
	}
	if _, ok := s.tasks[dependsOnID]; !ok {
		return apperr.NotFoundf("task %q not found", dependsOnID)
	}
	if s.dependsTransitively(dependsOnID, taskID) {
		return apperr.Validationf("%q depending on %q would create a dependency cycle", taskID, dependsOnID)
	}
	for _, existing := range t.DependsOn {
		if existing == dependsOnID {
			return nil
		}
	}
	t.DependsOn = append(t.DependsOn, dependsOnID)
	s.markTaskDirty(taskID)
	return nil
}

// dependsTransitively reports whether from (transitively) depends on to.
// Caller must hold s.mu.
func (s *Store) dependsTransitively(from, to string) bool {
	seen := map[string]bool{}
	var walk func(id string) bool
	walk = func(id string) bool {
		if id == to {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		t, ok := s.tasks[id]
		if !ok {
			return false
		}
		for _, dep := range t.DependsOn {
			if walk(dep) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

// ResolveToggle resolves a task's effective toggle value: an explicit task
// override wins, otherwise the task's lane's default, otherwise false.
func (s *Store) ResolveToggle(t *Task, key ToggleKey) bool {
	if ov := t.ToggleOverride(key); ov != TriUnset {
		return ov.Bool(false)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if lane, ok := s.lanes[t.SwimLaneID]; ok {
		if v, ok := lane.DefaultToggles[key]; ok {
			return v
		}
	}
	return false
}

func removeString(in []string, target string) []string {
	out := in[:0:0]
	for _, v := range in {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

func cloneTask(t *Task) *Task {
	cp := *t
	cp.SubtaskIDs = cloneStrings(t.SubtaskIDs)
	cp.DependsOn = cloneStrings(t.DependsOn)
	cp.Tags = cloneStrings(t.Tags)
	if t.Comments != nil {
		cp.Comments = make([]Comment, len(t.Comments))
		copy(cp.Comments, t.Comments)
	}
	if t.StatusHistory != nil {
		cp.StatusHistory = make([]StatusHistoryEntry, len(t.StatusHistory))
		copy(cp.StatusHistory, t.StatusHistory)
	}
	if t.StartedAt != nil {
		v := *t.StartedAt
		cp.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		cp.CompletedAt = &v
	}
	if t.DoneAt != nil {
		v := *t.DoneAt
		cp.DoneAt = &v
	}
	cp.TmuxBindingIsSet = t.HasBinding()
	return &cp
}

func writeTaskTx(tx *sql.Tx, t *Task) error {
	_, err := tx.Exec(`INSERT INTO tasks
		(id, description, input, status, kanban_column, priority, created_at, started_at, completed_at, done_at,
		 error_message, output, target_role, assigned_agent_id, swim_lane_id, parent_task_id,
		 auto_start, auto_pilot, auto_close, use_worktree, use_memory,
		 ai_provider, ai_model, server_override, working_directory_override,
		 tmux_server_id, tmux_session_name, tmux_window_index, tmux_pane_index, worktree_path)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			description=excluded.description, input=excluded.input, status=excluded.status,
			kanban_column=excluded.kanban_column, priority=excluded.priority,
			started_at=excluded.started_at, completed_at=excluded.completed_at, done_at=excluded.done_at,
			error_message=excluded.error_message, output=excluded.output, target_role=excluded.target_role,
			assigned_agent_id=excluded.assigned_agent_id, swim_lane_id=excluded.swim_lane_id,
			parent_task_id=excluded.parent_task_id,
			auto_start=excluded.auto_start, auto_pilot=excluded.auto_pilot, auto_close=excluded.auto_close,
			use_worktree=excluded.use_worktree, use_memory=excluded.use_memory,
			ai_provider=excluded.ai_provider, ai_model=excluded.ai_model,
			server_override=excluded.server_override, working_directory_override=excluded.working_directory_override,
			tmux_server_id=excluded.tmux_server_id, tmux_session_name=excluded.tmux_session_name,
			tmux_window_index=excluded.tmux_window_index, tmux_pane_index=excluded.tmux_pane_index,
			worktree_path=excluded.worktree_path`,
		t.ID, t.Description, t.Input, string(t.Status), string(t.KanbanColumn), t.Priority, t.CreatedAt,
		nullableInt64(t.StartedAt), nullableInt64(t.CompletedAt), nullableInt64(t.DoneAt),
		t.ErrorMessage, t.Output, t.TargetRole, t.AssignedAgentID, t.SwimLaneID, t.ParentTaskID,
		int(t.AutoStart), int(t.AutoPilot), int(t.AutoClose), int(t.UseWorktree), int(t.UseMemory),
		t.AIProvider, t.AIModel, t.ServerOverride, t.WorkingDirectoryOverride,
		t.TmuxServerID, t.TmuxSessionName, t.TmuxWindowIndex, t.TmuxPaneIndex, t.WorktreePath)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM task_comments WHERE task_id = ?`, t.ID); err != nil {
		return err
	}
	for _, c := range t.Comments {
		if _, err := tx.Exec(`INSERT INTO task_comments (id, task_id, body, created_at) VALUES (?,?,?,?)`,
			c.ID, c.TaskID, c.Body, c.CreatedAt); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM task_status_history WHERE task_id = ?`, t.ID); err != nil {
		return err
	}
	for _, h := range t.StatusHistory {
		if _, err := tx.Exec(`INSERT INTO task_status_history
			(task_id, from_status, to_status, from_column, to_column, changed_at) VALUES (?,?,?,?,?,?)`,
			h.TaskID, string(h.FromStatus), string(h.ToStatus), string(h.FromColumn), string(h.ToColumn), h.ChangedAt); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM task_tags WHERE task_id = ?`, t.ID); err != nil {
		return err
	}
	for _, tag := range t.Tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO task_tags (task_id, tag) VALUES (?,?)`, t.ID, tag); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM subtask_relations WHERE parent_task_id = ?`, t.ID); err != nil {
		return err
	}
	for i, child := range t.SubtaskIDs {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO subtask_relations (parent_task_id, child_task_id, position) VALUES (?,?,?)`,
			t.ID, child, i); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM task_dependencies WHERE task_id = ?`, t.ID); err != nil {
		return err
	}
	for _, dep := range t.DependsOn {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO task_dependencies (task_id, depends_on_task_id) VALUES (?,?)`,
			t.ID, dep); err != nil {
			return err
		}
	}

	return nil
}

func cascadeDeleteTaskTx(tx *sql.Tx, id string) error {
	stmts := []string{
		`DELETE FROM tasks WHERE id = ?`,
		`DELETE FROM task_comments WHERE task_id = ?`,
		`DELETE FROM task_status_history WHERE task_id = ?`,
		`DELETE FROM task_tags WHERE task_id = ?`,
		`DELETE FROM subtask_relations WHERE parent_task_id = ? OR child_task_id = ?`,
		`DELETE FROM task_dependencies WHERE task_id = ? OR depends_on_task_id = ?`,
	}
	for _, stmt := range stmts {
		var err error
		if countPlaceholders(stmt) == 2 {
			_, err = tx.Exec(stmt, id, id)
		} else {
			_, err = tx.Exec(stmt, id)
		}
		if err != nil {
			return err
		}
	}
	_, err := tx.Exec(`UPDATE tasks SET parent_task_id = '' WHERE parent_task_id = ?`, id)
	return err
}

func countPlaceholders(stmt string) int {
	n := 0
	for _, c := range stmt {
		if c == '?' {
			n++
		}
	}
	return n
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func (s *Store) loadTasks() error {
	rows, err := s.db.Query(`SELECT id, description, input, status, kanban_column, priority, created_at,
		started_at, completed_at, done_at, error_message, output, target_role, assigned_agent_id, swim_lane_id,
		parent_task_id, auto_start, auto_pilot, auto_close, use_worktree, use_memory,
		ai_provider, ai_model, server_override, working_directory_override,
		tmux_server_id, tmux_session_name, tmux_window_index, tmux_pane_index, worktree_path FROM tasks`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var t Task
		var startedAt, completedAt, doneAt sql.NullInt64
		var autoStart, autoPilot, autoClose, useWorktree, useMemory int
		if err := rows.Scan(&t.ID, &t.Description, &t.Input, &t.Status, &t.KanbanColumn, &t.Priority, &t.CreatedAt,
			&startedAt, &completedAt, &doneAt, &t.ErrorMessage, &t.Output, &t.TargetRole, &t.AssignedAgentID, &t.SwimLaneID,
			&t.ParentTaskID, &autoStart, &autoPilot, &autoClose, &useWorktree, &useMemory,
			&t.AIProvider, &t.AIModel, &t.ServerOverride, &t.WorkingDirectoryOverride,
			&t.TmuxServerID, &t.TmuxSessionName, &t.TmuxWindowIndex, &t.TmuxPaneIndex, &t.WorktreePath); err != nil {
			rows.Close()
			return err
		}
		if startedAt.Valid {
			t.StartedAt = &startedAt.Int64
		}
		if completedAt.Valid {
			t.CompletedAt = &completedAt.Int64
		}
		if doneAt.Valid {
			t.DoneAt = &doneAt.Int64
		}
		t.AutoStart, t.AutoPilot, t.AutoClose = Tri(autoStart), Tri(autoPilot), Tri(autoClose)
		t.UseWorktree, t.UseMemory = Tri(useWorktree), Tri(useMemory)
		cp := t
		s.tasks[t.ID] = &cp
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if err := s.loadTaskComments(); err != nil {
		return err
	}
	if err := s.loadTaskHistory(); err != nil {
		return err
	}
	if err := s.loadTaskTags(); err != nil {
		return err
	}
	if err := s.loadSubtaskRelations(); err != nil {
		return err
	}
	return s.loadTaskDependencies()
}

func (s *Store) loadTaskComments() error {
	rows, err := s.db.Query(`SELECT id, task_id, body, created_at FROM task_comments ORDER BY created_at`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Body, &c.CreatedAt); err != nil {
			return err
		}
		if t, ok := s.tasks[c.TaskID]; ok {
			t.Comments = append(t.Comments, c)
		}
	}
	return rows.Err()
}

func (s *Store) loadTaskHistory() error {
	rows, err := s.db.Query(`SELECT task_id, from_status, to_status, from_column, to_column, changed_at
		FROM task_status_history ORDER BY changed_at`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var h StatusHistoryEntry
		if err := rows.Scan(&h.TaskID, &h.FromStatus, &h.ToStatus, &h.FromColumn, &h.ToColumn, &h.ChangedAt); err != nil {
			return err
		}
		if t, ok := s.tasks[h.TaskID]; ok {
			t.StatusHistory = append(t.StatusHistory, h)
		}
	}
	return rows.Err()
}

func (s *Store) loadTaskTags() error {
	rows, err := s.db.Query(`SELECT task_id, tag FROM task_tags`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var taskID, tag string
		if err := rows.Scan(&taskID, &tag); err != nil {
			return err
		}
		if t, ok := s.tasks[taskID]; ok {
			t.Tags = append(t.Tags, tag)
		}
	}
	return rows.Err()
}

func (s *Store) loadSubtaskRelations() error {
	rows, err := s.db.Query(`SELECT parent_task_id, child_task_id FROM subtask_relations ORDER BY position`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var parentID, childID string
		if err := rows.Scan(&parentID, &childID); err != nil {
			return err
		}
		if p, ok := s.tasks[parentID]; ok {
			p.SubtaskIDs = append(p.SubtaskIDs, childID)
		}
	}
	return rows.Err()
}

func (s *Store) loadTaskDependencies() error {
	rows, err := s.db.Query(`SELECT task_id, depends_on_task_id FROM task_dependencies`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var taskID, dep string
		if err := rows.Scan(&taskID, &dep); err != nil {
			return err
		}
		if t, ok := s.tasks[taskID]; ok {
			t.DependsOn = append(t.DependsOn, dep)
		}
	}
	return rows.Err()
}
