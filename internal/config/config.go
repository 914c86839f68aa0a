// Package config loads and validates the daemon's restricted TOML
// configuration file.
package config

import "time"

// Config is the root daemon configuration, per spec §6.
type Config struct {
	UnixSocket          string          `mapstructure:"unixSocket"`
	HTTPPort            int             `mapstructure:"httpPort"`
	WSPort              int             `mapstructure:"wsPort"`
	LogLevel            string          `mapstructure:"logLevel"`
	LogFile             string          `mapstructure:"logFile"`
	PidFile             string          `mapstructure:"pidFile"`
	DataDir             string          `mapstructure:"dataDir"`
	DBPath              string          `mapstructure:"dbPath"`
	EnableAutoMonitor   bool            `mapstructure:"enableAutoMonitor"`
	AutoMonitorInterval Duration        `mapstructure:"autoMonitorInterval"`
	ReconcileOnStart    bool            `mapstructure:"reconcileOnStart"`
	MaxRestarts         int             `mapstructure:"maxRestarts"`
	RestartWindow       Duration        `mapstructure:"restartWindow"`
	BackoffDelay        Duration        `mapstructure:"backoffDelay"`
	EnableCors          bool            `mapstructure:"enableCors"`
	CorsOrigins         []string        `mapstructure:"corsOrigins"`
	MaxRequestSize      int64           `mapstructure:"maxRequestSize"`
	RequestTimeout      Duration        `mapstructure:"requestTimeout"`
	Runtimes            []RuntimeConfig `mapstructure:"runtimes"`

	// Derived, non-declarative monitor intervals. Not part of the restricted
	// key set in spec §6 but needed to schedule the four independent
	// monitors; each has its own built-in value in Default, and the monitors
	// run every second when one is set to zero or less.
	AutoPilotInterval   Duration `mapstructure:"autoPilotInterval"`
	AutoCloseInterval   Duration `mapstructure:"autoCloseInterval"`
	AutoCloseDelay      Duration `mapstructure:"autoCloseDelay"`
	SessionSyncInterval Duration `mapstructure:"sessionSyncInterval"`
}

// RuntimeConfig describes one configured runtime target.
type RuntimeConfig struct {
	ID         string `mapstructure:"id"`
	Type       string `mapstructure:"type"` // local-tmux, docker, k8s, ssh
	Host       string `mapstructure:"host,omitempty"`
	Port       int    `mapstructure:"port,omitempty"`
	User       string `mapstructure:"user,omitempty"`
	ConfigFile string `mapstructure:"configFile,omitempty"`
	Context    string `mapstructure:"context,omitempty"`
}

// Duration wraps time.Duration so viper/mapstructure can decode "10m"-style
// strings from TOML directly into typed fields.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validRuntimeTypes = map[string]bool{"local-tmux": true, "docker": true, "k8s": true, "ssh": true}

// Default returns the built-in defaults, applied before any config file is
// merged on top (the teacher's own Default()+merge pattern).
func Default() *Config {
	return &Config{
		UnixSocket:          "daemon.sock",
		HTTPPort:            3456,
		WSPort:              3457,
		LogLevel:            "info",
		LogFile:             "daemon.log",
		PidFile:             "daemon.pid",
		DataDir:             ".",
		DBPath:              "data.db",
		EnableAutoMonitor:   true,
		AutoMonitorInterval: Duration(5 * time.Second),
		AutoPilotInterval:   Duration(5 * time.Second),
		AutoCloseInterval:   Duration(30 * time.Second),
		AutoCloseDelay:      Duration(10 * time.Minute),
		SessionSyncInterval: Duration(10 * time.Second),
		ReconcileOnStart:    true,
		MaxRestarts:         5,
		RestartWindow:       Duration(30 * time.Second),
		BackoffDelay:        Duration(60 * time.Second),
		EnableCors:          true,
		CorsOrigins:         []string{"*"},
		MaxRequestSize:      1 << 20,
		RequestTimeout:      Duration(30 * time.Second),
	}
}

// Validate checks the declarative key set. It returns every problem found
// rather than stopping at the first, so the supervisor can print a complete
// diagnosis before refusing to start.
func (c *Config) Validate() []error {
	var errs []error
	if c.LogLevel != "" && !validLogLevels[c.LogLevel] {
		errs = append(errs, fieldErr("logLevel", c.LogLevel))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fieldErr("httpPort", c.HTTPPort))
	}
	if c.WSPort <= 0 || c.WSPort > 65535 {
		errs = append(errs, fieldErr("wsPort", c.WSPort))
	}
	if c.MaxRestarts < 0 {
		errs = append(errs, fieldErr("maxRestarts", c.MaxRestarts))
	}
	seen := map[string]bool{}
	for _, rt := range c.Runtimes {
		if rt.ID == "" {
			errs = append(errs, fieldErr("runtimes[].id", rt.ID))
			continue
		}
		if seen[rt.ID] {
			errs = append(errs, fieldErr("runtimes[].id (duplicate)", rt.ID))
		}
		seen[rt.ID] = true
		if !validRuntimeTypes[rt.Type] {
			errs = append(errs, fieldErr("runtimes[].type", rt.Type))
		}
	}
	return errs
}
