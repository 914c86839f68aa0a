package store

import (
	"database/sql"
	"encoding/json"

	"github.com/tmuxagentsd/daemon/internal/apperr"
)

// SaveAgent inserts or updates an agent in the in-memory image.
func (s *Store) SaveAgent(a *Agent) {
	cp := *a
	if a.Persona != nil {
		p := *a.Persona
		p.Expertise = cloneStrings(a.Persona.Expertise)
		cp.Persona = &p
	}
	s.mu.Lock()
	s.agents[a.ID] = &cp
	s.mu.Unlock()
	s.markAgentDirty(a.ID)
}

// GetAgent returns a copy of the agent with id.
func (s *Store) GetAgent(id string) (*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, apperr.NotFoundf("agent %q not found", id)
	}
	return cloneAgent(a), nil
}

// ListAgents returns a copy of every agent.
func (s *Store) ListAgents() []*Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, cloneAgent(a))
	}
	return out
}

// DeleteAgent removes an agent and clears AssignedAgentID on any task that
// referenced it, leaving the task itself untouched.
func (s *Store) DeleteAgent(id string) error {
	s.mu.Lock()
	if _, ok := s.agents[id]; !ok {
		s.mu.Unlock()
		return apperr.NotFoundf("agent %q not found", id)
	}
	delete(s.agents, id)
	for _, t := range s.tasks {
		if t.AssignedAgentID == id {
			t.AssignedAgentID = ""
			s.flushMu.Lock()
			s.dirtyTasks[t.ID] = true
			s.flushMu.Unlock()
		}
	}
	s.mu.Unlock()

	s.flushMu.Lock()
	delete(s.dirtyAgents, id)
	s.flushMu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM agents WHERE id = ?`, id); err != nil {
		s.log.Error("store: delete agent failed", "id", id, "error", err)
	}
	s.scheduleFlush()
	return nil
}

func cloneAgent(a *Agent) *Agent {
	cp := *a
	if a.Persona != nil {
		p := *a.Persona
		p.Expertise = cloneStrings(a.Persona.Expertise)
		cp.Persona = &p
	}
	return &cp
}

func writeAgentTx(tx *sql.Tx, a *Agent) error {
	var persona []byte
	if a.Persona != nil {
		b, err := json.Marshal(a.Persona)
		if err != nil {
			return err
		}
		persona = b
	}
	_, err := tx.Exec(`INSERT INTO agents
		(id, template_id, name, role, ai_provider, state, server_id, session_name, window_index, pane_index,
		 team_id, current_task_id, created_at, last_activity_at, error_message, persona)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			template_id=excluded.template_id, name=excluded.name, role=excluded.role,
			ai_provider=excluded.ai_provider, state=excluded.state, server_id=excluded.server_id,
			session_name=excluded.session_name, window_index=excluded.window_index, pane_index=excluded.pane_index,
			team_id=excluded.team_id, current_task_id=excluded.current_task_id,
			last_activity_at=excluded.last_activity_at, error_message=excluded.error_message, persona=excluded.persona`,
		a.ID, a.TemplateID, a.Name, a.Role, a.AIProvider, string(a.State), a.ServerID, a.SessionName,
		a.WindowIndex, a.PaneIndex, a.TeamID, a.CurrentTaskID, a.CreatedAt, a.LastActivityAt, a.ErrorMessage, string(persona))
	return err
}

func (s *Store) loadAgents() error {
	rows, err := s.db.Query(`SELECT id, template_id, name, role, ai_provider, state, server_id, session_name,
		window_index, pane_index, team_id, current_task_id, created_at, last_activity_at, error_message, persona
		FROM agents`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a Agent
		var persona string
		if err := rows.Scan(&a.ID, &a.TemplateID, &a.Name, &a.Role, &a.AIProvider, &a.State, &a.ServerID, &a.SessionName,
			&a.WindowIndex, &a.PaneIndex, &a.TeamID, &a.CurrentTaskID, &a.CreatedAt, &a.LastActivityAt, &a.ErrorMessage, &persona); err != nil {
			return err
		}
		if persona != "" {
			var p Persona
			if err := json.Unmarshal([]byte(persona), &p); err == nil {
				a.Persona = &p
			}
		}
		cp := a
		s.agents[a.ID] = &cp
	}
	return rows.Err()
}
