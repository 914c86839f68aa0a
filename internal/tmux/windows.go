package tmux

import (
	"context"
	"fmt"
)

// NewWindow creates a new window in session, started in workdir, and
// returns its index.
func (d *Driver) NewWindow(ctx context.Context, runtimeID, sessionName, windowName, workdir string) (int, error) {
	out, err := d.exec(ctx, runtimeID, "new-window", "-t", sessionName, "-n", windowName, "-c", workdir, "-P", "-F", "#{window_index}")
	d.treeCache.invalidate(runtimeID)
	if err != nil {
		return 0, err
	}
	var idx int
	if _, scanErr := fmt.Sscanf(out, "%d", &idx); scanErr != nil {
		return 0, &Error{Kind: ErrCommandFailed, Op: "new-window", RuntimeID: runtimeID, Target: sessionName, Err: scanErr}
	}
	return idx, nil
}

// RenameWindow renames the window at target ("session:index").
func (d *Driver) RenameWindow(ctx context.Context, runtimeID, target, name string) error {
	_, err := d.exec(ctx, runtimeID, "rename-window", "-t", target, name)
	d.treeCache.invalidate(runtimeID)
	return err
}

// KillWindow kills the window at target.
func (d *Driver) KillWindow(ctx context.Context, runtimeID, target string) error {
	_, err := d.exec(ctx, runtimeID, "kill-window", "-t", target)
	d.treeCache.invalidate(runtimeID)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// SelectWindow makes target the session's active window.
func (d *Driver) SelectWindow(ctx context.Context, runtimeID, target string) error {
	_, err := d.exec(ctx, runtimeID, "select-window", "-t", target)
	return err
}
