package store

import (
	"database/sql"
	"encoding/json"

	"github.com/tmuxagentsd/daemon/internal/apperr"
)

// SaveLane inserts or updates a lane in the in-memory image and schedules a
// debounced flush to disk.
func (s *Store) SaveLane(l *Lane) {
	cp := *l
	s.mu.Lock()
	s.lanes[l.ID] = &cp
	s.mu.Unlock()
	s.markLaneDirty(l.ID)
}

// GetLane returns a copy of the lane with id, or a NotFound error.
func (s *Store) GetLane(id string) (*Lane, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lanes[id]
	if !ok {
		return nil, apperr.NotFoundf("lane %q not found", id)
	}
	cp := *l
	return &cp, nil
}

// ListLanes returns a copy of every lane.
func (s *Store) ListLanes() []*Lane {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Lane, 0, len(s.lanes))
	for _, l := range s.lanes {
		cp := *l
		out = append(out, &cp)
	}
	return out
}

// DeleteLane removes a lane. Tasks bound to it are left in place with a
// dangling SwimLaneID: lane deletion does not cascade to tasks, mirroring
// the teacher's soft unlink idiom rather than a destructive cascade.
func (s *Store) DeleteLane(id string) error {
	s.mu.Lock()
	if _, ok := s.lanes[id]; !ok {
		s.mu.Unlock()
		return apperr.NotFoundf("lane %q not found", id)
	}
	delete(s.lanes, id)
	s.mu.Unlock()

	s.flushMu.Lock()
	delete(s.dirtyLanes, id)
	s.flushMu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM lanes WHERE id = ?`, id); err != nil {
		s.log.Error("store: delete lane failed", "id", id, "error", err)
	}
	return nil
}

func writeLaneTx(tx *sql.Tx, l *Lane) error {
	toggles, err := json.Marshal(l.DefaultToggles)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO lanes
		(id, name, server_id, working_directory, session_name, created_at, session_active,
		 ai_provider, ai_model, context_instructions, default_toggles, memory_file_id, memory_path)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, server_id=excluded.server_id, working_directory=excluded.working_directory,
			session_name=excluded.session_name, session_active=excluded.session_active,
			ai_provider=excluded.ai_provider, ai_model=excluded.ai_model,
			context_instructions=excluded.context_instructions, default_toggles=excluded.default_toggles,
			memory_file_id=excluded.memory_file_id, memory_path=excluded.memory_path`,
		l.ID, l.Name, l.ServerID, l.WorkingDirectory, l.SessionName, l.CreatedAt, boolToInt(l.SessionActive),
		l.AIProvider, l.AIModel, l.ContextInstructions, string(toggles), l.MemoryFileID, l.MemoryPath)
	return err
}

func (s *Store) loadLanes() error {
	rows, err := s.db.Query(`SELECT id, name, server_id, working_directory, session_name, created_at,
		session_active, ai_provider, ai_model, context_instructions, default_toggles, memory_file_id, memory_path
		FROM lanes`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l Lane
		var active int
		var toggles string
		if err := rows.Scan(&l.ID, &l.Name, &l.ServerID, &l.WorkingDirectory, &l.SessionName, &l.CreatedAt,
			&active, &l.AIProvider, &l.AIModel, &l.ContextInstructions, &toggles, &l.MemoryFileID, &l.MemoryPath); err != nil {
			return err
		}
		l.SessionActive = active != 0
		if toggles != "" {
			_ = json.Unmarshal([]byte(toggles), &l.DefaultToggles)
		}
		cp := l
		s.lanes[l.ID] = &cp
	}
	return rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
