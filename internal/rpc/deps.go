package rpc

import (
	"log/slog"
	"time"

	"github.com/tmuxagentsd/daemon/internal/config"
	"github.com/tmuxagentsd/daemon/internal/events"
	"github.com/tmuxagentsd/daemon/internal/health"
	"github.com/tmuxagentsd/daemon/internal/launcher"
	"github.com/tmuxagentsd/daemon/internal/orchestrator"
	"github.com/tmuxagentsd/daemon/internal/store"
	"github.com/tmuxagentsd/daemon/internal/tmux"
)

// Deps bundles every component a handler may need to reach. Handlers close
// over one shared *Deps (so a reload that swaps Config is seen by all of
// them) rather than a package-level singleton, so the router stays testable.
type Deps struct {
	Log     *slog.Logger
	Store   *store.Store
	Orch    *orchestrator.Orchestrator
	Launch  *launcher.Launcher
	Tmux    *tmux.Driver
	Bus     *events.Bus
	Health  *health.Checker
	Config  *config.Config
	StartAt time.Time

	// Shutdown, when set, is invoked by daemon.shutdown to begin graceful
	// teardown. Wired by the supervisor/cmd entrypoint, not by rpc itself.
	Shutdown func()

	// Reload, when set, re-reads config.toml from disk, applies it to the
	// running monitors in place, and returns the new config. Backs
	// daemon.reload; the same function also backs SIGHUP in
	// cmd/tmuxagentsd, and the config-file watcher shares its apply step,
	// so all three reload paths apply a new config the same way.
	Reload func() (*config.Config, error)
}

// RegisterAll binds every namespace's handlers onto r, mirroring the
// teacher's RegisterHandlers(dispatcher) pattern generalized from one
// orchestrator namespace to the daemon's full method surface.
func RegisterAll(r *Router, d *Deps) {
	registerTaskHandlers(r, d)
	registerKanbanHandlers(r, d)
	registerAgentHandlers(r, d)
	registerRuntimeHandlers(r, d)
	registerDaemonHandlers(r, d)
	registerMiscHandlers(r, d)
	registerDBHandlers(r, d)
}
