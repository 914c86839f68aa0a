package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

func fieldErr(field string, value any) error {
	return fmt.Errorf("invalid config value for %s: %v", field, value)
}

// DefaultDir returns $HOME/.tmux-agents, the default home for the socket,
// pidfile, log, database, and config file.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tmux-agents"), nil
}

// Load reads config.toml from dir (creating dir if absent; a missing file
// leaves the built-in defaults in place and no file is written), validates
// it, and ensures DataDir exists. Unknown keys are
// ignored by viper by construction (it only populates mapped fields).
func Load(dir string) (*Config, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)

	cfg := Default()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file yet: keep defaults.
	} else if err := v.Unmarshal(cfg, viper.DecodeHook(durationHook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	resolvePaths(cfg, dir)

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return cfg, nil
}

// resolvePaths makes relative path-like keys absolute under dir, the way
// the teacher's loader expands "~" in ClaudeDataDir/project paths.
func resolvePaths(cfg *Config, dir string) {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	cfg.UnixSocket = join(cfg.UnixSocket)
	cfg.LogFile = join(cfg.LogFile)
	cfg.PidFile = join(cfg.PidFile)
	cfg.DataDir = join(cfg.DataDir)
	cfg.DBPath = join(cfg.DBPath)
}

// WatchAndReload watches config.toml for changes and invokes onChange with
// the freshly loaded config whenever it's written or created. daemon.reload
// and SIGHUP do not go through it; they call Load directly. An error
// reloading the file is passed to onChange (with a nil config) rather than
// ending the watch loop; the watcher's own errors are discarded.
func WatchAndReload(dir string, onChange func(*Config, error)) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != "config.toml" {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(dir)
				onChange(cfg, err)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return w, nil
}
