package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tmuxagentsd/daemon/internal/api"
	"github.com/tmuxagentsd/daemon/internal/config"
	"github.com/tmuxagentsd/daemon/internal/events"
	"github.com/tmuxagentsd/daemon/internal/health"
	"github.com/tmuxagentsd/daemon/internal/launcher"
	"github.com/tmuxagentsd/daemon/internal/monitor"
	"github.com/tmuxagentsd/daemon/internal/orchestrator"
	"github.com/tmuxagentsd/daemon/internal/reconciler"
	"github.com/tmuxagentsd/daemon/internal/rpc"
	"github.com/tmuxagentsd/daemon/internal/store"
	"github.com/tmuxagentsd/daemon/internal/tmux"
)

// daemon holds every long-lived component wired together for a single
// worker process lifetime. It mirrors the teacher's top-level Model in
// spirit: one struct owning the pieces main would otherwise juggle as
// loose locals.
type daemon struct {
	log    *slog.Logger
	dir    string
	store  *store.Store
	bus    *events.Bus
	driver *tmux.Driver
	orch   *orchestrator.Orchestrator
	launch *launcher.Launcher
	health *health.Checker
	server *api.Server
	deps   *rpc.Deps
	watch  *fsnotify.Watcher

	mu            sync.Mutex
	cfg           *config.Config
	runCtx        context.Context
	monitorCancel context.CancelFunc
	autoClose     *monitor.AutoClose
	autoMonitor   *monitor.AutoMonitor
	autoPilot     *monitor.AutoPilot
	sessionSync   *monitor.SessionSync

	cancel context.CancelFunc
}

func newDaemon(log *slog.Logger, cfg *config.Config, dir string) (*daemon, error) {
	st, err := store.Open(cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	bus := events.New()
	driver := tmux.New(log)
	for _, rc := range cfg.Runtimes {
		rtType := tmux.RuntimeType(rc.Type)
		if rc.Type == "k8s" {
			rtType = tmux.RuntimeK8s
		}
		driver.RegisterRuntime(tmux.Runtime{
			ID:      rc.ID,
			Type:    rtType,
			Host:    rc.Host,
			Port:    rc.Port,
			User:    rc.User,
			Context: rc.Context,
		})
	}

	orch := orchestrator.New(log, st, bus)
	launch := launcher.New(log, st, driver, bus)
	checker := health.New(st, cfg.Runtimes)

	d := &daemon{
		log:    log,
		dir:    dir,
		cfg:    cfg,
		store:  st,
		bus:    bus,
		driver: driver,
		orch:   orch,
		launch: launch,
		health: checker,
	}

	router := rpc.NewRouter(log)
	deps := &rpc.Deps{
		Log:     log,
		Store:   st,
		Orch:    orch,
		Launch:  launch,
		Tmux:    driver,
		Bus:     bus,
		Health:  checker,
		Config:  cfg,
		StartAt: time.Now(),
	}
	deps.Shutdown = d.requestShutdown
	deps.Reload = d.Reload
	d.deps = deps

	corsOrigin := "*"
	if len(cfg.CorsOrigins) > 0 {
		corsOrigin = cfg.CorsOrigins[0]
	}

	socketPath := cfg.UnixSocket
	if !filepath.IsAbs(socketPath) {
		socketPath = filepath.Join(dir, socketPath)
	}
	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	wsAddr := fmt.Sprintf(":%d", cfg.WSPort)

	server := api.New(log, router, bus, checker, socketPath, httpAddr, wsAddr, corsOrigin)
	rpc.RegisterAll(router, deps)
	d.server = server

	if w, err := config.WatchAndReload(dir, d.onConfigFileChanged); err != nil {
		log.Warn("config file watch disabled", "error", err)
	} else {
		d.watch = w
	}

	return d, nil
}

// onConfigFileChanged is the fsnotify callback backing live config.toml
// edits; daemon.reload and SIGHUP both funnel through the same applyReload
// path so all three triggers behave identically.
func (d *daemon) onConfigFileChanged(cfg *config.Config, err error) {
	if err != nil {
		d.log.Error("config reload failed", "error", err)
		return
	}
	d.applyReload(cfg)
}

// requestShutdown is wired as rpc.Deps.Shutdown so a daemon.shutdown RPC
// call can tear the worker down from inside a handler goroutine.
func (d *daemon) requestShutdown() {
	d.log.Info("shutdown requested via rpc")
	if d.cancel != nil {
		d.cancel()
	}
}

// Reload re-reads config.toml from disk and applies it in place, without
// tearing down the store, tmux driver, or API listeners. It's the shared
// implementation behind the daemon.reload RPC method and SIGHUP.
func (d *daemon) Reload() (*config.Config, error) {
	cfg, err := config.Load(d.dir)
	if err != nil {
		return nil, err
	}
	d.applyReload(cfg)
	return cfg, nil
}

// applyReload swaps in cfg and restarts the four monitors against the new
// intervals/flags. The store, tmux driver, orchestrator, launcher, and API
// listeners are untouched, so clients stay connected across a reload.
func (d *daemon) applyReload(cfg *config.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cfg = cfg
	d.deps.Config = cfg

	if d.monitorCancel != nil {
		d.monitorCancel()
		d.monitorCancel = nil
	}

	if cfg.EnableAutoMonitor && d.runCtx != nil {
		d.startMonitorsLocked()
	}

	d.log.Info("config reloaded",
		"enableAutoMonitor", cfg.EnableAutoMonitor,
		"autoMonitorInterval", cfg.AutoMonitorInterval.Duration())
}

// startMonitorsLocked (re)builds and starts the four monitors against the
// current d.cfg. Callers must hold d.mu and have a non-nil d.runCtx.
func (d *daemon) startMonitorsLocked() {
	ctx, cancel := context.WithCancel(d.runCtx)
	d.monitorCancel = cancel

	cfg := d.cfg
	interval := cfg.AutoMonitorInterval.Duration()
	d.autoClose = monitor.NewAutoClose(d.log, d.store, d.driver, cfg.AutoCloseInterval.Duration(), cfg.AutoCloseDelay.Duration())
	d.autoMonitor = monitor.NewAutoMonitor(d.log, d.store, d.driver, d.launch, d.bus, interval)
	d.autoPilot = monitor.NewAutoPilot(d.log, d.store, d.driver, cfg.AutoPilotInterval.Duration())
	d.sessionSync = monitor.NewSessionSync(d.log, d.store, d.driver, d.bus, cfg.SessionSyncInterval.Duration())

	go d.autoClose.Run(ctx)
	go d.autoMonitor.Run(ctx)
	go d.autoPilot.Run(ctx)
	go d.sessionSync.Run(ctx)
}

func (d *daemon) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	defer cancel()

	if d.cfg.ReconcileOnStart {
		reconciler.New(d.log, d.store, d.driver, d.orch).Run(ctx)
	}

	d.mu.Lock()
	d.runCtx = ctx
	if d.cfg.EnableAutoMonitor {
		d.startMonitorsLocked()
	}
	d.mu.Unlock()

	if err := d.server.Start(ctx); err != nil {
		return fmt.Errorf("start api server: %w", err)
	}

	<-ctx.Done()
	d.log.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.server.Shutdown(shutCtx)
}

func (d *daemon) Close() {
	if d.watch != nil {
		d.watch.Close()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.log.Error("close store", "error", err)
		}
	}
}
