package tmux

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"sync"
	"time"
)

// RuntimeType names a kind of tmux-reachable host.
type RuntimeType string

const (
	RuntimeLocal  RuntimeType = "local-tmux"
	RuntimeSSH    RuntimeType = "ssh"
	RuntimeDocker RuntimeType = "docker"
	RuntimeK8s    RuntimeType = "kubectl"
)

// Runtime describes one tmux-reachable target. Every command the Driver
// issues for a task or agent is scoped to exactly one Runtime by ID.
type Runtime struct {
	ID     string
	Type   RuntimeType
	Host   string // ssh target / k8s pod / docker container, per Type
	Port   int    // ssh port, defaults to 22
	User   string // ssh user
	Context string // kubectl context, for RuntimeK8s
}

// Driver issues tmux commands against one or more Runtimes and caches the
// expensive read paths (session/window/pane tree, pane capture) the way
// shell.go and agent.go cache them for a single local server.
type Driver struct {
	log *slog.Logger

	mu       sync.RWMutex
	runtimes map[string]Runtime

	treeCache *treeCache
	capture   *captureCache
}

// New creates a Driver with no runtimes registered; call RegisterRuntime
// for each one the configuration names.
func New(log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	d := &Driver{
		log:      log,
		runtimes: make(map[string]Runtime),
	}
	d.treeCache = newTreeCache(2 * time.Second)
	d.capture = newCaptureCache(300 * time.Millisecond)
	return d
}

// RegisterRuntime adds or replaces a runtime definition.
func (d *Driver) RegisterRuntime(r Runtime) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runtimes[r.ID] = r
}

// UnregisterRuntime removes a runtime definition. Commands already
// in-flight against it are unaffected; future commands against the id
// fail with ErrNotFound.
func (d *Driver) UnregisterRuntime(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.runtimes, id)
}

// ListRuntimes returns every currently registered runtime.
func (d *Driver) ListRuntimes() []Runtime {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Runtime, 0, len(d.runtimes))
	for _, rt := range d.runtimes {
		out = append(out, rt)
	}
	return out
}

func (d *Driver) runtime(id string) (Runtime, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.runtimes[id]
	if !ok {
		return Runtime{}, &Error{Kind: ErrNotFound, Op: "resolve-runtime", RuntimeID: id, Err: fmt.Errorf("unknown runtime %q", id)}
	}
	return r, nil
}

// sessionNamePattern matches the characters tmux session names tolerate
// without quoting headaches across both direct exec.Command argv and the
// remote login-shell wrapping. Anything else is rejected rather than
// escaped, since a session name reaching this far already passed the
// RPC layer's own whitelist.
var sessionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-:.]+$`)

// ValidateSessionName reports whether name is safe to interpolate into a
// shell command line for a remote runtime.
func ValidateSessionName(name string) bool {
	return name != "" && sessionNamePattern.MatchString(name)
}

// exec runs a tmux subcommand against runtimeID's host and returns stdout.
// Local runtimes invoke the tmux binary directly; remote runtimes wrap the
// tmux invocation in a login shell (`ssh ... bash -lc '...'`) so the
// remote user's PATH and tmux server socket resolve the same way an
// interactive login would, matching the spec's "login shell mandatory"
// remote-runtime contract.
func (d *Driver) exec(ctx context.Context, runtimeID string, args ...string) (string, error) {
	rt, err := d.runtime(runtimeID)
	if err != nil {
		return "", err
	}

	var cmd *exec.Cmd
	switch rt.Type {
	case "", RuntimeLocal:
		cmd = exec.CommandContext(ctx, "tmux", args...)
	case RuntimeSSH:
		for _, a := range args {
			if !ValidateSessionName(a) && !isFlagToken(a) {
				return "", &Error{Kind: ErrCommandFailed, Op: "exec", RuntimeID: runtimeID,
					Err: fmt.Errorf("argument %q is not safe to ship over a remote login shell", a)}
			}
		}
		port := rt.Port
		if port == 0 {
			port = 22
		}
		target := rt.Host
		if rt.User != "" {
			target = rt.User + "@" + rt.Host
		}
		remoteCmd := "tmux " + shellJoin(args)
		cmd = exec.CommandContext(ctx, "ssh", "-p", fmt.Sprintf("%d", port), target, "bash", "-lc", remoteCmd)
	case RuntimeDocker:
		dockerArgs := append([]string{"exec", rt.Host, "tmux"}, args...)
		cmd = exec.CommandContext(ctx, "docker", dockerArgs...)
	case RuntimeK8s:
		kubectlArgs := []string{"exec", rt.Host, "--"}
		if rt.Context != "" {
			kubectlArgs = append([]string{"--context", rt.Context}, kubectlArgs...)
		}
		kubectlArgs = append(kubectlArgs, "tmux")
		kubectlArgs = append(kubectlArgs, args...)
		cmd = exec.CommandContext(ctx, "kubectl", kubectlArgs...)
	default:
		return "", &Error{Kind: ErrCommandFailed, Op: "exec", RuntimeID: runtimeID, Err: fmt.Errorf("unsupported runtime type %q", rt.Type)}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", &Error{Kind: ErrTimeout, Op: args[0], RuntimeID: runtimeID, Stderr: stderr.String(), Err: ctx.Err()}
	}
	if err != nil {
		return "", classify(args[0], "", runtimeID, stderr.String(), err)
	}
	return stdout.String(), nil
}

func isFlagToken(a string) bool {
	return len(a) > 0 && a[0] == '-'
}

func shellJoin(args []string) string {
	var b bytes.Buffer
	for i, a := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		if a == "" || containsSpecial(a) {
			b.WriteByte('\'')
			b.WriteString(a)
			b.WriteByte('\'')
		} else {
			b.WriteString(a)
		}
	}
	return b.String()
}

func containsSpecial(s string) bool {
	for _, c := range s {
		switch c {
		case ' ', '\t', '\n', '$', '`', '"', '\\':
			return true
		}
	}
	return false
}
