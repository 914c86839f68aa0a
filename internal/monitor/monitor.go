// Package monitor implements the daemon's four independent periodic
// monitors: completion detection, approval auto-pilot, auto-close
// summarization, and session/task rebind reconciliation. Each runs on its
// own timer and is guarded against overlapping itself on a slow tick.
//
// Grounded on the fixed-interval timer/select loop in
// other_examples/8eba31cc_steveyegge-gastown__internal-daemon-daemon.go
// (time.Timer reset inside a select over ctx.Done), and on
// internal/plugins/workspace/agent.go's paneCache/captureCoordinator for
// the idea of a per-entity in-flight guard around a shared expensive read.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tmuxagentsd/daemon/internal/store"
)

// processingSet tracks entity ids currently being handled by one monitor,
// so a slow tick never double-processes the same id from the next tick.
type processingSet struct {
	mu sync.Mutex
	m  map[string]bool
}

func newProcessingSet() *processingSet {
	return &processingSet{m: make(map[string]bool)}
}

func (p *processingSet) tryStart(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m[id] {
		return false
	}
	p.m[id] = true
	return true
}

func (p *processingSet) finish(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, id)
}

// runTicker calls tick once immediately and then on every interval until
// ctx is canceled. Each invocation of tick runs in its own goroutine so a
// slow tick never delays the timer loop itself; the per-monitor
// processingSet is what keeps overlapping ticks from colliding on the same
// entity.
func runTicker(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	if interval <= 0 {
		interval = time.Second
	}
	go tick(ctx)
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			go tick(ctx)
			timer.Reset(interval)
		}
	}
}

// paneTarget builds the "session:window.pane" address tmux capture/send
// commands address, from a task's binding fields.
func paneTarget(t *store.Task) string {
	return fmt.Sprintf("%s:%d.%d", t.TmuxSessionName, t.TmuxWindowIndex, t.TmuxPaneIndex)
}

// windowTarget builds the "session:window" address kill-window needs (a
// pane address isn't valid there).
func windowTarget(t *store.Task) string {
	return fmt.Sprintf("%s:%d", t.TmuxSessionName, t.TmuxWindowIndex)
}

func logOrDiscard(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}

// repoWorkdir resolves the main working directory a task's worktree was
// provisioned from, so `git worktree remove` runs with the repo (not the
// worktree itself) as its -C directory.
func repoWorkdir(st *store.Store, t *store.Task) string {
	if t.WorkingDirectoryOverride != "" {
		return t.WorkingDirectoryOverride
	}
	if lane, err := st.GetLane(t.SwimLaneID); err == nil {
		return lane.WorkingDirectory
	}
	return ""
}
