package launcher

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tmuxagentsd/daemon/internal/apperr"
	"github.com/tmuxagentsd/daemon/internal/idgen"
)

// provisionWorktree creates a git worktree for task under
// {parent-of-workdir}/.worktrees/task-{last-8-of-id}, removing any prior
// worktree/branch of the same name first so a retried launch doesn't
// collide with leftovers from an earlier attempt.
//
// Grounded on internal/plugins/worktree/worktree.go's doCreateWorktree
// (same `git worktree add -b` shape), adapted to a fixed, id-derived
// worktree location instead of a user-typed name.
func provisionWorktree(workdir, taskID string) (path string, err error) {
	branch := "task-" + idgen.Suffix8(taskID)
	parent := filepath.Dir(workdir)
	path = filepath.Join(parent, ".worktrees", branch)

	if _, statErr := os.Stat(path); statErr == nil {
		runGit(workdir, "worktree", "remove", "--force", path)
	}
	runGit(workdir, "branch", "-D", branch)

	if err := os.MkdirAll(filepath.Join(parent, ".worktrees"), 0o755); err != nil {
		return "", apperr.Wrap(apperr.Multiplexer, "create .worktrees directory", err)
	}

	if out, err := runGit(workdir, "worktree", "add", "-b", branch, path, "HEAD"); err != nil {
		return "", apperr.Wrap(apperr.Multiplexer, fmt.Sprintf("git worktree add: %s", strings.TrimSpace(out)), err)
	}
	return path, nil
}

// removeWorktree is the launcher's rollback counterpart to provisionWorktree.
func removeWorktree(workdir, path string) error {
	if _, err := runGit(workdir, "worktree", "remove", "--force", path); err != nil {
		return err
	}
	return nil
}

// RemoveWorktree exposes removeWorktree for callers outside this package
// (the auto-close and auto-monitor tickers clean up a task's worktree the
// same way a failed launch would).
func RemoveWorktree(workdir, path string) error {
	return removeWorktree(workdir, path)
}

func runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}
