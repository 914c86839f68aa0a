package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tmuxagentsd/daemon/internal/config"
	"github.com/tmuxagentsd/daemon/internal/supervisor"
)

var (
	configDir      = flag.String("config-dir", "", "daemon home directory (default $HOME/.tmux-agents)")
	foregroundFlag = flag.Bool("foreground", false, "run attached to the terminal, skipping daemonization")
	debugFlag      = flag.Bool("debug", false, "enable debug logging")
	versionFlag    = flag.Bool("version", false, "print version and exit")
)

// Version is set at build time via ldflags.
var Version = ""

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("tmuxagentsd version %s\n", effectiveVersion())
		os.Exit(0)
	}

	if *foregroundFlag {
		os.Setenv(supervisor.ForegroundEnvVar, "1")
	}

	dir, err := resolveConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve config dir: %v\n", err)
		os.Exit(1)
	}

	if os.Getenv(supervisor.WorkerEnvVar) == "1" {
		runWorker(dir)
		return
	}

	if err := supervisor.Daemonize(); err != nil {
		fmt.Fprintf(os.Stderr, "daemonize: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogFile, *debugFlag)
	sup := supervisor.New(log, supervisor.Config{
		LockPath:      filepath.Join(dir, "daemon.lock"),
		PidPath:       cfg.PidFile,
		MaxRestarts:   cfg.MaxRestarts,
		RestartWindow: cfg.RestartWindow.Duration(),
		BackoffDelay:  cfg.BackoffDelay.Duration(),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sup.Run(ctx); err != nil {
		log.Error("supervisor exited with error", "error", err)
		os.Exit(1)
	}
}

// runWorker is the child entry point, re-executed by the supervisor with
// DAEMON_WORKER=1. SIGINT/SIGTERM cancel the daemon's context and begin
// shutdown; SIGHUP is handled separately and triggers a config reload in
// place, per the "reload without a restart" contract the supervisor's
// SIGHUP forwarding is supposed to honor.
func runWorker(dir string) {
	cfg, err := config.Load(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogFile, *debugFlag)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := newDaemon(log, cfg, dir)
	if err != nil {
		log.Error("failed to initialize daemon", "error", err)
		os.Exit(1)
	}
	defer d.Close()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if _, err := d.Reload(); err != nil {
					log.Error("config reload failed", "error", err)
				}
			}
		}
	}()

	if err := d.Run(ctx); err != nil {
		log.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
}

func resolveConfigDir() (string, error) {
	if *configDir != "" {
		abs, err := filepath.Abs(*configDir)
		return abs, err
	}
	return config.DefaultDir()
}

func newLogger(logFile string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	var w = os.Stderr
	if logFile != "" {
		if f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			w = f
		}
	}
	log := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return log
}

func effectiveVersion() string {
	if Version != "" {
		return Version
	}
	return "devel"
}
