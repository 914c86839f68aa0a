package provider

import (
	"fmt"
	"sort"
	"strings"
)

// LaunchOptions parameterizes a single launch.
type LaunchOptions struct {
	Model     string
	AutoPilot bool
	Resume    bool // continue the provider's most recent session in this directory
}

// GetInteractiveLaunchCommand returns a single shell string safe to paste
// into a multiplexer pane via sendKeys, e.g. "claude --model opus
// --dangerously-skip-permissions".
func GetInteractiveLaunchCommand(id ID, opts LaunchOptions) (string, error) {
	cfg, err := Lookup(id)
	if err != nil {
		return "", err
	}
	args := buildArgs(cfg, opts)
	parts := append([]string{cfg.Command}, args...)
	return strings.Join(parts, " "), nil
}

// SpawnConfig is the (binary, argv, env) triple used to exec a provider
// directly with stdin/stdout piped, as an alternative to pasting into an
// interactive pane.
type SpawnConfig struct {
	Binary string
	Argv   []string
	Env    []string
}

// GetSpawnConfig returns the spawn shape for id, honoring its
// PipeCommand/Env overrides for the non-interactive invocation path.
func GetSpawnConfig(id ID, opts LaunchOptions) (SpawnConfig, error) {
	cfg, err := Lookup(id)
	if err != nil {
		return SpawnConfig{}, err
	}
	args := buildArgs(cfg, opts)
	if cfg.PipeCommand != "" {
		args = append(strings.Fields(cfg.PipeCommand), args...)
	}

	env := make([]string, 0, len(cfg.Env))
	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, cfg.Env[k]))
	}

	return SpawnConfig{Binary: cfg.Command, Argv: args, Env: env}, nil
}

func buildArgs(cfg Config, opts LaunchOptions) []string {
	args := append([]string{}, cfg.Args...)

	if opts.Model != "" && cfg.ModelFlag != modelFlagNone {
		flag := "--model"
		if cfg.ModelFlag == modelFlagShort {
			flag = "-m"
		}
		args = append(args, flag, opts.Model)
	}

	if opts.Resume {
		if cfg.ResumeFlag != "" {
			args = append(args, cfg.ResumeFlag)
		}
		args = append(args, cfg.ForkArgs...)
	}

	if opts.AutoPilot {
		args = append(args, cfg.AutoPilotFlags...)
	}

	return args
}
