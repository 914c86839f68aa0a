// Package tmux drives one or more tmux servers — local or reached over a
// remote login shell — as the daemon's sole terminal multiplexer backend.
//
// Grounded on internal/plugins/workspace/shell.go and agent.go (raw
// os/exec invocations of the tmux binary, session/pane lifecycle, pane
// capture caching) and internal/plugins/worktree/shell.go (the worktree
// session naming and attach idiom), generalized from a single always-local
// tmux server into a driver addressing N named runtimes, some local and
// some remote.
package tmux

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a multiplexer failure so callers (monitors,
// launcher, RPC handlers) can react without string-matching error text
// themselves.
type ErrorKind string

const (
	// ErrNotFound means the target session/window/pane does not exist.
	ErrNotFound ErrorKind = "not_found"
	// ErrNoServer means the tmux server itself is not running on that host.
	ErrNoServer ErrorKind = "no_server"
	// ErrTimeout means the command (commonly over a remote shell) did not
	// complete within its deadline.
	ErrTimeout ErrorKind = "timeout"
	// ErrCommandFailed is the catch-all for any other non-zero exit.
	ErrCommandFailed ErrorKind = "command_failed"
)

// Error wraps a failed multiplexer operation with enough context for a
// caller to decide whether to retry, mark a binding dead, or surface it.
type Error struct {
	Kind    ErrorKind
	Op      string // e.g. "capture-pane", "new-session"
	Target  string // session/window/pane id involved, if any
	RuntimeID string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tmux %s", e.Op)
	if e.RuntimeID != "" {
		fmt.Fprintf(&b, " on %s", e.RuntimeID)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, " (%s)", e.Target)
	}
	fmt.Fprintf(&b, ": %s", e.Kind)
	if e.Stderr != "" {
		fmt.Fprintf(&b, ": %s", strings.TrimSpace(e.Stderr))
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// classify inspects tmux's stderr text to pick an ErrorKind. tmux does not
// expose structured error codes, so this is the same substring sniffing
// shell.go's pollShellSessionByName does to distinguish a dead session from
// a transient capture failure.
func classify(op, target, runtimeID string, stderr string, err error) *Error {
	lower := strings.ToLower(stderr)
	kind := ErrCommandFailed
	switch {
	case strings.Contains(lower, "can't find"), strings.Contains(lower, "no such session"),
		strings.Contains(lower, "session not found"), strings.Contains(lower, "no such"):
		kind = ErrNotFound
	case strings.Contains(lower, "no server running"), strings.Contains(lower, "error connecting"):
		kind = ErrNoServer
	}
	return &Error{Kind: kind, Op: op, Target: target, RuntimeID: runtimeID, Stderr: stderr, Err: err}
}

// IsNotFound reports whether err is a multiplexer Error of kind ErrNotFound.
func IsNotFound(err error) bool {
	var e *Error
	return errorsAs(err, &e) && e.Kind == ErrNotFound
}

// IsNoServer reports whether err is a multiplexer Error of kind ErrNoServer.
func IsNoServer(err error) bool {
	var e *Error
	return errorsAs(err, &e) && e.Kind == ErrNoServer
}

func errorsAs(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
