// Package health aggregates component health into the report the daemon
// serves at GET /health: the store's query latency and, for each
// configured runtime, a reachability probe specific to its transport.
//
// Grounded on codeready-toolchain-tarsy's pkg/database/health.go (a timed
// PingContext turned into a status) and pkg/api/handler_health.go (worst-
// status-wins aggregation into healthy/degraded/unhealthy with a matching
// HTTP status code), generalized from one fixed check list into a
// dynamic one keyed off the configured runtimes.
package health

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/tmuxagentsd/daemon/internal/config"
	"github.com/tmuxagentsd/daemon/internal/store"
)

// Status is one component's or the overall report's health state.
type Status string

const (
	Healthy   Status = "healthy"
	Degraded  Status = "degraded"
	Unhealthy Status = "unhealthy"
)

// Component is one checked dependency.
type Component struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latencyMs,omitempty"`
}

// Report is the full health payload served at GET /health.
type Report struct {
	Overall    Status      `json:"overall"`
	Timestamp  int64       `json:"timestamp"`
	Uptime     int64       `json:"uptime"`
	Components []Component `json:"components"`
}

// Checker produces Reports against a store and a fixed set of configured
// runtimes.
type Checker struct {
	store     *store.Store
	runtimes  []config.RuntimeConfig
	startedAt time.Time
}

func New(st *store.Store, runtimes []config.RuntimeConfig) *Checker {
	return &Checker{store: st, runtimes: runtimes, startedAt: time.Now()}
}

// Check runs every component probe and folds the results into one Report.
// No single slow or failing probe blocks the others: each runs with its
// own bounded context derived from ctx.
func (c *Checker) Check(ctx context.Context) Report {
	components := []Component{c.checkStore(ctx)}
	for _, rt := range c.runtimes {
		components = append(components, c.checkRuntime(ctx, rt))
	}

	rep := Report{
		Overall:    overallOf(components),
		Timestamp:  time.Now().UnixMilli(),
		Uptime:     int64(time.Since(c.startedAt) / time.Millisecond),
		Components: components,
	}
	return rep
}

// overallOf implements "any unhealthy component makes overall unhealthy;
// any degraded with no unhealthy makes overall degraded."
func overallOf(components []Component) Status {
	overall := Healthy
	for _, comp := range components {
		switch comp.Status {
		case Unhealthy:
			return Unhealthy
		case Degraded:
			overall = Degraded
		}
	}
	return overall
}

func (c *Checker) checkStore(ctx context.Context) Component {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := c.store.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return Component{Name: "store", Status: Unhealthy, Message: err.Error(), LatencyMs: latency.Milliseconds()}
	}
	return Component{Name: "store", Status: Healthy, LatencyMs: latency.Milliseconds()}
}

func (c *Checker) checkRuntime(ctx context.Context, rt config.RuntimeConfig) Component {
	return CheckRuntime(ctx, rt)
}

// CheckRuntime dispatches to the probe matching rt.Type, mirroring the
// same type switch the tmux driver uses to dispatch commands. Exported so
// the runtime.ping RPC method can run the identical probe on demand
// outside of a full health report.
func CheckRuntime(ctx context.Context, rt config.RuntimeConfig) Component {
	name := fmt.Sprintf("runtime:%s", rt.ID)
	switch rt.Type {
	case "local-tmux":
		return checkLocalTmux(name)
	case "docker":
		return checkDocker(ctx, name, rt)
	case "k8s":
		return checkKubectl(ctx, name, rt)
	case "ssh":
		return checkSSH(ctx, name, rt)
	default:
		return Component{Name: name, Status: Unhealthy, Message: fmt.Sprintf("unknown runtime type %q", rt.Type)}
	}
}

func checkLocalTmux(name string) Component {
	if _, err := exec.LookPath("tmux"); err != nil {
		return Component{Name: name, Status: Unhealthy, Message: "tmux binary not found on PATH"}
	}
	return Component{Name: name, Status: Healthy}
}

func checkDocker(ctx context.Context, name string, rt config.RuntimeConfig) Component {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	cmd := exec.CommandContext(ctx, "docker", "info", "--format", "{{.ServerVersion}}")
	if err := cmd.Run(); err != nil {
		return Component{Name: name, Status: Unhealthy, Message: "docker daemon unreachable: " + err.Error(), LatencyMs: time.Since(start).Milliseconds()}
	}
	return Component{Name: name, Status: Healthy, LatencyMs: time.Since(start).Milliseconds()}
}

func checkKubectl(ctx context.Context, name string, rt config.RuntimeConfig) Component {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	args := []string{"cluster-info", "--request-timeout=5s"}
	if rt.Context != "" {
		args = append([]string{"--context", rt.Context}, args...)
	}
	start := time.Now()
	cmd := exec.CommandContext(ctx, "kubectl", args...)
	if err := cmd.Run(); err != nil {
		return Component{Name: name, Status: Unhealthy, Message: "kubectl context unreachable: " + err.Error(), LatencyMs: time.Since(start).Milliseconds()}
	}
	return Component{Name: name, Status: Healthy, LatencyMs: time.Since(start).Milliseconds()}
}

// checkSSH probes with a 5s TCP connect timeout nested inside a 10s
// overall context, per the spec's literal timeout pair.
func checkSSH(ctx context.Context, name string, rt config.RuntimeConfig) Component {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	port := rt.Port
	if port == 0 {
		port = 22
	}
	target := rt.Host
	if rt.User != "" {
		target = rt.User + "@" + rt.Host
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, "ssh",
		"-p", fmt.Sprintf("%d", port),
		"-o", "ConnectTimeout=5",
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=accept-new",
		target, "true")
	if err := cmd.Run(); err != nil {
		return Component{Name: name, Status: Unhealthy, Message: "ssh unreachable: " + err.Error(), LatencyMs: time.Since(start).Milliseconds()}
	}
	return Component{Name: name, Status: Healthy, LatencyMs: time.Since(start).Milliseconds()}
}
