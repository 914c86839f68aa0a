package tmux

import "context"

// HasSession reports whether name exists on runtimeID, via the cached tree
// when fresh, falling back to a direct has-session probe when the caller
// needs a ground-truth answer (the reconciler's crash-recovery check).
func (d *Driver) HasSession(ctx context.Context, runtimeID, name string) (bool, error) {
	t, err := d.GetTree(ctx, runtimeID, false)
	if err != nil {
		return false, err
	}
	return t.HasSession(name), nil
}

// ProbeSession issues a direct `tmux has-session`, bypassing the tree
// cache entirely. Used where a stale cache could misreport a session that
// just died (or just started) as the opposite.
func (d *Driver) ProbeSession(ctx context.Context, runtimeID, name string) (bool, error) {
	_, err := d.exec(ctx, runtimeID, "has-session", "-t", name)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// NewSession creates a detached session named name with its first window
// started in workdir.
func (d *Driver) NewSession(ctx context.Context, runtimeID, name, workdir string) error {
	_, err := d.exec(ctx, runtimeID, "new-session", "-d", "-s", name, "-c", workdir)
	d.treeCache.invalidate(runtimeID)
	return err
}

// DeleteSession kills a session. A not-found error is swallowed: deleting
// an already-dead session is the common path during cleanup.
func (d *Driver) DeleteSession(ctx context.Context, runtimeID, name string) error {
	_, err := d.exec(ctx, runtimeID, "kill-session", "-t", name)
	d.treeCache.invalidate(runtimeID)
	d.capture.removeSession(runtimeID + ":" + name)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// RenameSession renames an existing session.
func (d *Driver) RenameSession(ctx context.Context, runtimeID, oldName, newName string) error {
	_, err := d.exec(ctx, runtimeID, "rename-session", "-t", oldName, newName)
	d.treeCache.invalidate(runtimeID)
	return err
}

// ListSessions is a thin convenience wrapper over GetTree for callers that
// only need session identity, not the full window/pane tree.
func (d *Driver) ListSessions(ctx context.Context, runtimeID string) ([]Session, error) {
	t, err := d.GetTree(ctx, runtimeID, false)
	if err != nil {
		return nil, err
	}
	return t.Sessions, nil
}
