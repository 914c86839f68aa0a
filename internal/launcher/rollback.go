package launcher

import (
	"context"
	"log/slog"

	"github.com/tmuxagentsd/daemon/internal/tmux"
)

// rollback is a best-effort compensating finalizer for a failed launch
// sequence. It never returns an error: cleanup must not mask the original
// failure, it only gets logged.
type rollback struct {
	log       *slog.Logger
	driver    *tmux.Driver
	runtimeID string
	window    string // "session:index", empty if none created yet
	worktree  string
	workdir   string
}

func (r *rollback) run() {
	if r.window != "" {
		if err := r.driver.KillWindow(context.Background(), r.runtimeID, r.window); err != nil {
			r.log.Warn("rollback: failed to kill window", "window", r.window, "error", err)
		}
	}
	if r.worktree != "" {
		if err := removeWorktree(r.workdir, r.worktree); err != nil {
			r.log.Warn("rollback: failed to remove worktree", "path", r.worktree, "error", err)
		}
	}
}
