package store

import "github.com/tmuxagentsd/daemon/internal/apperr"

// Roles, backend mappings, sync errors, teams, pipelines, and pipeline runs
// are peripheral bookkeeping (spec §1 treats team/guild/org management and
// the pipeline DAG engine itself as out of scope) so, unlike lanes/tasks/
// agents, they write straight through to disk instead of going through the
// debounced flush: there is no hot path that touches them at the rates that
// motivate batching writes.

func (s *Store) SaveRole(r *Role) error {
	s.mu.Lock()
	cp := *r
	s.roles[r.ID] = &cp
	s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO roles (id, name) VALUES (?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name`, r.ID, r.Name)
	return err
}

func (s *Store) ListRoles() []*Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Role, 0, len(s.roles))
	for _, r := range s.roles {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

func (s *Store) DeleteRole(id string) error {
	s.mu.Lock()
	delete(s.roles, id)
	s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM roles WHERE id = ?`, id)
	return err
}

func (s *Store) SaveBackendMapping(b *BackendMapping) error {
	s.mu.Lock()
	cp := *b
	s.backends[b.ID] = &cp
	s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO backend_mappings (id, backend, enabled, status) VALUES (?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET backend=excluded.backend, enabled=excluded.enabled, status=excluded.status`,
		b.ID, b.Backend, boolToInt(b.Enabled), b.Status)
	return err
}

func (s *Store) ListBackendMappings() []*BackendMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*BackendMapping, 0, len(s.backends))
	for _, b := range s.backends {
		cp := *b
		out = append(out, &cp)
	}
	return out
}

func (s *Store) RecordSyncError(e *SyncError) error {
	s.mu.Lock()
	cp := *e
	s.syncErrors[e.ID] = &cp
	s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO sync_errors (id, backend_id, message, occurred_at) VALUES (?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET message=excluded.message, occurred_at=excluded.occurred_at`,
		e.ID, e.BackendID, e.Message, e.OccurredAt)
	return err
}

func (s *Store) ListSyncErrors(backendID string) []*SyncError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*SyncError
	for _, e := range s.syncErrors {
		if backendID == "" || e.BackendID == backendID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

func (s *Store) SaveTeam(t *Team) error {
	s.mu.Lock()
	cp := *t
	cp.Members = cloneStrings(t.Members)
	s.teams[t.ID] = &cp
	s.mu.Unlock()

	if _, err := s.db.Exec(`INSERT INTO teams (id, name) VALUES (?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name`, t.ID, t.Name); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM team_members WHERE team_id = ?`, t.ID); err != nil {
		return err
	}
	for _, m := range t.Members {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO team_members (team_id, agent_id) VALUES (?,?)`, t.ID, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetTeam(id string) (*Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return nil, apperr.NotFoundf("team %q not found", id)
	}
	cp := *t
	cp.Members = cloneStrings(t.Members)
	return &cp, nil
}

func (s *Store) ListTeams() []*Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Team, 0, len(s.teams))
	for _, t := range s.teams {
		cp := *t
		cp.Members = cloneStrings(t.Members)
		out = append(out, &cp)
	}
	return out
}

func (s *Store) SavePipeline(p *Pipeline) error {
	s.mu.Lock()
	cp := *p
	s.pipelines[p.ID] = &cp
	s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO pipelines (id, name) VALUES (?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name`, p.ID, p.Name)
	return err
}

func (s *Store) ListPipelines() []*Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

func (s *Store) SavePipelineRun(r *PipelineRun) error {
	s.mu.Lock()
	cp := *r
	s.pipelineRuns[r.ID] = &cp
	s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO pipeline_runs (id, pipeline_id, status, started_at) VALUES (?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status`, r.ID, r.PipelineID, r.Status, r.StartedAt)
	return err
}

func (s *Store) ListPipelineRuns(pipelineID string) []*PipelineRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*PipelineRun
	for _, r := range s.pipelineRuns {
		if pipelineID == "" || r.PipelineID == pipelineID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

func (s *Store) loadRoles() error {
	rows, err := s.db.Query(`SELECT id, name FROM roles`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return err
		}
		cp := r
		s.roles[r.ID] = &cp
	}
	return rows.Err()
}

func (s *Store) loadBackendMappings() error {
	rows, err := s.db.Query(`SELECT id, backend, enabled, status FROM backend_mappings`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var b BackendMapping
		var enabled int
		if err := rows.Scan(&b.ID, &b.Backend, &enabled, &b.Status); err != nil {
			return err
		}
		b.Enabled = enabled != 0
		cp := b
		s.backends[b.ID] = &cp
	}
	return rows.Err()
}

func (s *Store) loadSyncErrors() error {
	rows, err := s.db.Query(`SELECT id, backend_id, message, occurred_at FROM sync_errors`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e SyncError
		if err := rows.Scan(&e.ID, &e.BackendID, &e.Message, &e.OccurredAt); err != nil {
			return err
		}
		cp := e
		s.syncErrors[e.ID] = &cp
	}
	return rows.Err()
}

func (s *Store) loadTeams() error {
	rows, err := s.db.Query(`SELECT id, name FROM teams`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return err
		}
		cp := t
		s.teams[t.ID] = &cp
	}
	if err := rows.Err(); err != nil {
		return err
	}

	memberRows, err := s.db.Query(`SELECT team_id, agent_id FROM team_members`)
	if err != nil {
		return err
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var teamID, agentID string
		if err := memberRows.Scan(&teamID, &agentID); err != nil {
			return err
		}
		if t, ok := s.teams[teamID]; ok {
			t.Members = append(t.Members, agentID)
		}
	}
	return memberRows.Err()
}

func (s *Store) loadPipelines() error {
	rows, err := s.db.Query(`SELECT id, name FROM pipelines`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p Pipeline
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return err
		}
		cp := p
		s.pipelines[p.ID] = &cp
	}
	return rows.Err()
}

func (s *Store) loadPipelineRuns() error {
	rows, err := s.db.Query(`SELECT id, pipeline_id, status, started_at FROM pipeline_runs`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r PipelineRun
		if err := rows.Scan(&r.ID, &r.PipelineID, &r.Status, &r.StartedAt); err != nil {
			return err
		}
		cp := r
		s.pipelineRuns[r.ID] = &cp
	}
	return rows.Err()
}
