package tmux

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Pane is one tmux pane.
type Pane struct {
	SessionName    string
	WindowIndex    int
	Index          int
	ID             string
	Active         bool
	CurrentCommand string
	CurrentPath    string
	PID            int
}

// Window is one tmux window, with its panes already attached.
type Window struct {
	SessionName string
	Index       int
	Name        string
	Active      bool
	Panes       []Pane
}

// Session is one tmux session, with its windows (and their panes) already
// attached — a GetTree caller never needs a follow-up call to walk down.
type Session struct {
	Name      string
	CreatedAt int64
	Attached  bool
	Windows   []Window
}

// Tree is the full session/window/pane inventory of one runtime at a point
// in time.
type Tree struct {
	RuntimeID string
	FetchedAt time.Time
	Sessions  []Session
}

// FindSession returns the session named name, or nil.
func (t *Tree) FindSession(name string) *Session {
	for i := range t.Sessions {
		if t.Sessions[i].Name == name {
			return &t.Sessions[i]
		}
	}
	return nil
}

// HasSession reports whether name exists in the tree.
func (t *Tree) HasSession(name string) bool {
	return t.FindSession(name) != nil
}

type treeCacheEntry struct {
	tree    *Tree
	fetched time.Time
}

// treeCache holds one cached Tree per runtime, refreshed at most once per
// TTL, mirroring the 2-second tree cache the monitors share so four
// independent tickers don't each re-list every session on every wake-up.
type treeCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]treeCacheEntry
}

func newTreeCache(ttl time.Duration) *treeCache {
	return &treeCache{ttl: ttl, entries: make(map[string]treeCacheEntry)}
}

func (c *treeCache) get(runtimeID string) (*Tree, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[runtimeID]
	if !ok || time.Since(e.fetched) >= c.ttl {
		return nil, false
	}
	return e.tree, true
}

func (c *treeCache) set(runtimeID string, t *Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[runtimeID] = treeCacheEntry{tree: t, fetched: time.Now()}
}

func (c *treeCache) invalidate(runtimeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, runtimeID)
}

// GetTree returns the session/window/pane tree for runtimeID, served from
// the 2-second cache unless force is set. Three list-* tmux invocations run
// concurrently and are stitched together by name rather than issuing one
// list-panes-per-window round trip.
func (d *Driver) GetTree(ctx context.Context, runtimeID string, force bool) (*Tree, error) {
	if !force {
		if t, ok := d.treeCache.get(runtimeID); ok {
			return t, nil
		}
	}

	var sessOut, winOut, paneOut string
	var sessErr, winErr, paneErr error
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		sessOut, sessErr = d.exec(ctx, runtimeID, "list-sessions", "-F", "#{session_name}\t#{session_created}\t#{session_attached}")
	}()
	go func() {
		defer wg.Done()
		winOut, winErr = d.exec(ctx, runtimeID, "list-windows", "-a", "-F", "#{session_name}\t#{window_index}\t#{window_name}\t#{window_active}")
	}()
	go func() {
		defer wg.Done()
		paneOut, paneErr = d.exec(ctx, runtimeID, "list-panes", "-a", "-F", "#{session_name}\t#{window_index}\t#{pane_index}\t#{pane_id}\t#{pane_active}\t#{pane_current_command}\t#{pane_current_path}\t#{pane_pid}")
	}()
	wg.Wait()

	if sessErr != nil {
		if IsNoServer(sessErr) {
			empty := &Tree{RuntimeID: runtimeID, FetchedAt: time.Now()}
			d.treeCache.set(runtimeID, empty)
			return empty, nil
		}
		return nil, sessErr
	}
	if winErr != nil {
		return nil, winErr
	}
	if paneErr != nil {
		return nil, paneErr
	}

	sessions := map[string]*Session{}
	var order []string
	for _, line := range splitLines(sessOut) {
		f := strings.Split(line, "\t")
		if len(f) < 3 {
			continue
		}
		created, _ := strconv.ParseInt(f[1], 10, 64)
		sessions[f[0]] = &Session{Name: f[0], CreatedAt: created, Attached: f[2] == "1"}
		order = append(order, f[0])
	}

	windows := map[string]map[int]*Window{}
	for _, line := range splitLines(winOut) {
		f := strings.Split(line, "\t")
		if len(f) < 4 {
			continue
		}
		s, ok := sessions[f[0]]
		if !ok {
			continue
		}
		idx, _ := strconv.Atoi(f[1])
		w := Window{SessionName: f[0], Index: idx, Name: f[2], Active: f[3] == "1"}
		s.Windows = append(s.Windows, w)
		if windows[f[0]] == nil {
			windows[f[0]] = map[int]*Window{}
		}
		windows[f[0]][idx] = &s.Windows[len(s.Windows)-1]
	}

	for _, line := range splitLines(paneOut) {
		f := strings.Split(line, "\t")
		if len(f) < 8 {
			continue
		}
		wIdx, _ := strconv.Atoi(f[1])
		pIdx, _ := strconv.Atoi(f[2])
		byWindow, ok := windows[f[0]]
		if !ok {
			continue
		}
		w, ok := byWindow[wIdx]
		if !ok {
			continue
		}
		pid, _ := strconv.Atoi(f[7])
		w.Panes = append(w.Panes, Pane{
			SessionName: f[0], WindowIndex: wIdx, Index: pIdx, ID: f[3],
			Active: f[4] == "1", CurrentCommand: f[5],
			CurrentPath: f[6], PID: pid,
		})
	}

	tree := &Tree{RuntimeID: runtimeID, FetchedAt: time.Now()}
	for _, name := range order {
		tree.Sessions = append(tree.Sessions, *sessions[name])
	}
	d.treeCache.set(runtimeID, tree)
	return tree, nil
}

// InvalidateTree forces the next GetTree call for runtimeID to re-list,
// called after any mutating operation (new-session, kill-window, ...) so a
// caller that reads right back doesn't see a stale cache entry.
func (d *Driver) InvalidateTree(runtimeID string) {
	d.treeCache.invalidate(runtimeID)
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
