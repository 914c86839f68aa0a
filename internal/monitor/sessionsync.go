package monitor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tmuxagentsd/daemon/internal/events"
	"github.com/tmuxagentsd/daemon/internal/store"
	"github.com/tmuxagentsd/daemon/internal/tmux"
)

// SessionSync keeps each lane's sessionActive flag and its tasks' tmux
// bindings honest against the real multiplexer tree: sessions that died
// out from under the daemon fail their bound tasks, and tasks whose window
// reappears under a new index get re-bound by name.
type SessionSync struct {
	log      *slog.Logger
	store    *store.Store
	driver   *tmux.Driver
	bus      *events.Bus
	interval time.Duration
	inflight *processingSet
}

func NewSessionSync(log *slog.Logger, st *store.Store, driver *tmux.Driver, bus *events.Bus, interval time.Duration) *SessionSync {
	return &SessionSync{log: logOrDiscard(log), store: st, driver: driver, bus: bus, interval: interval, inflight: newProcessingSet()}
}

func (m *SessionSync) Run(ctx context.Context) {
	runTicker(ctx, m.interval, m.tick)
}

func (m *SessionSync) tick(ctx context.Context) {
	for _, lane := range m.store.ListLanes() {
		if !m.inflight.tryStart(lane.ID) {
			continue
		}
		go func(l *store.Lane) {
			defer m.inflight.finish(l.ID)
			m.syncLane(ctx, l)
		}(lane)
	}
}

func (m *SessionSync) syncLane(ctx context.Context, lane *store.Lane) {
	tree, err := m.driver.GetTree(ctx, lane.ServerID, true)
	if err != nil {
		m.log.Warn("session-sync failed to read tree", "laneId", lane.ID, "error", err)
		return
	}
	session := tree.FindSession(lane.SessionName)

	if session == nil {
		if lane.SessionActive {
			lane.SessionActive = false
			m.store.SaveLane(lane)
		}
		for _, t := range m.tasksBoundToLane(lane) {
			t.Status = store.StatusFailed
			t.ErrorMessage = "Tmux session no longer exists"
			t.ClearBinding()
			m.store.SaveTask(t)
			m.bus.Publish(events.TaskUpdated, t.ID)
		}
		return
	}

	if !session.Attached {
		return
	}

	for _, t := range m.laneTasksInFlight(lane) {
		if t.HasBinding() {
			// Already bound: check the window is still there; if not, try
			// to re-find it by name before giving up on it.
			if windowByIndex(session, t.TmuxWindowIndex) != nil {
				continue
			}
		}
		if w := findWindowForTask(session, t); w != nil {
			t.TmuxServerID = lane.ServerID
			t.TmuxSessionName = lane.SessionName
			t.TmuxWindowIndex = w.Index
			t.TmuxPaneIndex = 0
			m.store.SaveTask(t)
			m.bus.Publish(events.TaskUpdated, t.ID)
		}
	}
}

func (m *SessionSync) tasksBoundToLane(lane *store.Lane) []*store.Task {
	var out []*store.Task
	for _, t := range m.store.ListTasks() {
		if t.TmuxSessionName != lane.SessionName {
			continue
		}
		if t.KanbanColumn == store.ColumnInProgress || t.KanbanColumn == store.ColumnInReview {
			out = append(out, t)
		}
	}
	return out
}

func (m *SessionSync) laneTasksInFlight(lane *store.Lane) []*store.Task {
	var out []*store.Task
	for _, t := range m.store.ListTasks() {
		if t.SwimLaneID != lane.ID {
			continue
		}
		if t.KanbanColumn == store.ColumnInProgress || t.KanbanColumn == store.ColumnInReview {
			out = append(out, t)
		}
	}
	return out
}

func windowByIndex(s *tmux.Session, index int) *tmux.Window {
	for i := range s.Windows {
		if s.Windows[i].Index == index {
			return &s.Windows[i]
		}
	}
	return nil
}

// findWindowForTask searches s's windows for one whose name contains the
// first 15 characters of t's id, the convention the launcher names task
// windows under.
func findWindowForTask(s *tmux.Session, t *store.Task) *tmux.Window {
	needle := firstN(t.ID, 15)
	for i := range s.Windows {
		if strings.Contains(s.Windows[i].Name, needle) {
			return &s.Windows[i]
		}
	}
	return nil
}

func firstN(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
