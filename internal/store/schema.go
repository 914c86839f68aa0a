package store

import "fmt"

// schemaStatements creates every table if absent. Run once at Open(), the
// way notes/store.go's initSchema ships one idempotent CREATE TABLE IF NOT
// EXISTS block per entity.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS lanes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		server_id TEXT,
		working_directory TEXT,
		session_name TEXT,
		created_at INTEGER,
		session_active INTEGER DEFAULT 0,
		ai_provider TEXT,
		ai_model TEXT,
		context_instructions TEXT,
		default_toggles TEXT,
		memory_file_id TEXT,
		memory_path TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		description TEXT,
		input TEXT,
		status TEXT,
		kanban_column TEXT,
		priority INTEGER,
		created_at INTEGER,
		started_at INTEGER,
		completed_at INTEGER,
		done_at INTEGER,
		error_message TEXT,
		output TEXT,
		target_role TEXT,
		assigned_agent_id TEXT,
		swim_lane_id TEXT,
		parent_task_id TEXT,
		auto_start INTEGER DEFAULT 0,
		auto_pilot INTEGER DEFAULT 0,
		auto_close INTEGER DEFAULT 0,
		use_worktree INTEGER DEFAULT 0,
		use_memory INTEGER DEFAULT 0,
		ai_provider TEXT,
		ai_model TEXT,
		server_override TEXT,
		working_directory_override TEXT,
		tmux_server_id TEXT,
		tmux_session_name TEXT,
		tmux_window_index INTEGER,
		tmux_pane_index INTEGER,
		worktree_path TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_lane ON tasks(swim_lane_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id)`,
	`CREATE TABLE IF NOT EXISTS task_status_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		from_status TEXT,
		to_status TEXT,
		from_column TEXT,
		to_column TEXT,
		changed_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_status_history_task ON task_status_history(task_id)`,
	`CREATE TABLE IF NOT EXISTS task_comments (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		body TEXT,
		created_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_task ON task_comments(task_id)`,
	`CREATE TABLE IF NOT EXISTS task_tags (
		task_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (task_id, tag)
	)`,
	`CREATE TABLE IF NOT EXISTS subtask_relations (
		parent_task_id TEXT NOT NULL,
		child_task_id TEXT NOT NULL,
		position INTEGER,
		PRIMARY KEY (parent_task_id, child_task_id)
	)`,
	`CREATE TABLE IF NOT EXISTS task_dependencies (
		task_id TEXT NOT NULL,
		depends_on_task_id TEXT NOT NULL,
		PRIMARY KEY (task_id, depends_on_task_id)
	)`,
	`CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		template_id TEXT,
		name TEXT,
		role TEXT,
		ai_provider TEXT,
		state TEXT,
		server_id TEXT,
		session_name TEXT,
		window_index INTEGER,
		pane_index INTEGER,
		team_id TEXT,
		current_task_id TEXT,
		created_at INTEGER,
		last_activity_at INTEGER,
		error_message TEXT,
		persona TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS roles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS backend_mappings (
		id TEXT PRIMARY KEY,
		backend TEXT,
		enabled INTEGER DEFAULT 0,
		status TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sync_errors (
		id TEXT PRIMARY KEY,
		backend_id TEXT,
		message TEXT,
		occurred_at INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		name TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS team_members (
		team_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		PRIMARY KEY (team_id, agent_id)
	)`,
	`CREATE TABLE IF NOT EXISTS pipelines (
		id TEXT PRIMARY KEY,
		name TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		pipeline_id TEXT,
		status TEXT,
		started_at INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at INTEGER
	)`,
}

// columnAddition is one column a later revision of the schema added to an
// existing table. ensureColumns applies these tolerantly: an on-disk
// database created by an older build gets the new columns added in place,
// while schemaStatements' CREATE TABLE IF NOT EXISTS already gives a fresh
// database the full column set and so is a no-op here.
type columnAddition struct {
	table, column, ddlType string
}

// columnAdditions lists every column added to a table after its original
// CREATE TABLE IF NOT EXISTS, in the order later code may assume they
// exist. Add a new entry here (never rewrite an existing one) whenever a
// future change needs another column on an already-shipped table; every
// column currently in schemaStatements shipped in its table's original
// CREATE TABLE, so this list is empty until the next such change.
var columnAdditions = []columnAddition{}

// ensureColumns adds any column in columnAdditions missing from its table,
// via PRAGMA table_info so the check and the ALTER TABLE are both safe to
// run against a database that already has the column (idempotent, no
// schema_migrations bookkeeping needed for an additive, order-independent
// set of ALTER TABLE ADD COLUMN statements).
func (s *Store) ensureColumns() error {
	existing := map[string]map[string]bool{}
	for _, add := range columnAdditions {
		if existing[add.table] != nil {
			continue
		}
		cols, err := s.tableColumns(add.table)
		if err != nil {
			return err
		}
		existing[add.table] = cols
	}

	for _, add := range columnAdditions {
		if existing[add.table][add.column] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", add.table, add.column, add.ddlType)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", add.table, add.column, err)
		}
		existing[add.table][add.column] = true
	}
	return nil
}

func (s *Store) tableColumns(table string) (map[string]bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// migrations perform one-shot, idempotent data fixups after schemaStatements
// run, mirroring spec §4.1's "legacy auto-close summary block relocation".
// Each migration checks schema_migrations before acting so a partial prior
// run (crash mid-migration) is safely retried.
func (s *Store) runMigrations() error {
	applied := map[string]bool{}
	rows, err := s.db.Query(`SELECT name FROM schema_migrations`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		applied[name] = true
	}
	rows.Close()

	for _, m := range []struct {
		name string
		fn   func() error
	}{
		{"relocate_autoclose_summary_2024", s.migrateRelocateAutoCloseSummary},
	} {
		if applied[m.name] {
			continue
		}
		if err := m.fn(); err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO schema_migrations (name, applied_at) VALUES (?, ?)`, m.name, now()); err != nil {
			return err
		}
	}
	return nil
}

// migrateRelocateAutoCloseSummary moves any "**Auto-Close Summary**" block
// that was historically written into description back into input, and
// relabels it as "**Session Summary**" to match the current auto-close
// header (spec §4.7 auto-close writes its summary under that header).
func (s *Store) migrateRelocateAutoCloseSummary() error {
	const legacyHeader = "**Auto-Close Summary**"
	const currentHeader = "**Session Summary**"

	rows, err := s.db.Query(`SELECT id, description, input FROM tasks WHERE description LIKE ?`, "%"+legacyHeader+"%")
	if err != nil {
		return err
	}
	type fix struct{ id, desc, input string }
	var fixes []fix
	for rows.Next() {
		var f fix
		if err := rows.Scan(&f.id, &f.desc, &f.input); err != nil {
			rows.Close()
			return err
		}
		fixes = append(fixes, f)
	}
	rows.Close()

	for _, f := range fixes {
		idx := indexOf(f.desc, legacyHeader)
		if idx < 0 {
			continue
		}
		desc := f.desc[:idx]
		block := currentHeader + f.desc[idx+len(legacyHeader):]
		newInput := f.input
		if newInput != "" {
			newInput += "\n\n"
		}
		newInput += block
		if _, err := s.db.Exec(`UPDATE tasks SET description = ?, input = ? WHERE id = ?`, trimRight(desc), newInput, f.id); err != nil {
			return err
		}
	}
	return nil
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func trimRight(s string) string {
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\n' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
