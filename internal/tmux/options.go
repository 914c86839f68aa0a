package tmux

import (
	"context"
	"strings"
	"time"
)

// GetMultiplePaneOptions batch-reads a set of pane-scoped user options
// (tmux's "@name" custom option mechanism) for every pane in one
// show-options call per target, retrying once after a short backoff on a
// transient (non-not-found) failure. Agents mark their own pane with
// options like "@cc_state" so the daemon can read status without shelling
// out once per key.
func (d *Driver) GetMultiplePaneOptions(ctx context.Context, runtimeID, target string, keys []string) (map[string]string, error) {
	out, err := d.exec(ctx, runtimeID, "show-options", "-p", "-t", target)
	if err != nil && !IsNotFound(err) {
		time.Sleep(50 * time.Millisecond)
		out, err = d.exec(ctx, runtimeID, "show-options", "-p", "-t", target)
	}
	if err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}

	result := make(map[string]string, len(keys))
	for _, line := range splitLines(out) {
		name, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		if !want[name] {
			continue
		}
		result[name] = strings.Trim(value, `"`)
	}
	return result, nil
}

// SetPaneOption sets a single pane-scoped user option.
func (d *Driver) SetPaneOption(ctx context.Context, runtimeID, target, key, value string) error {
	_, err := d.exec(ctx, runtimeID, "set-option", "-p", "-t", target, key, value)
	return err
}
