// Package rpc dispatches the daemon's flat JSON-RPC 2.0 method namespace
// (agent.*, task.*, kanban.*, runtime.*, daemon.*, db.*, and the rest of
// the surface) to typed handlers shared by every transport in
// internal/api.
//
// Grounded on kdlbs-kandev/apps/backend/internal/orchestrator/wshandlers/
// handlers.go's RegisterFunc dispatcher (a Handlers struct registering
// named handlers against a generic dispatch table) and on
// 8cc77864_steveyegge-beads__internal-rpc-server_core.go.go's envelope
// shape and health/uptime fields.
package rpc

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/tmuxagentsd/daemon/internal/apperr"
)

// Request is one JSON-RPC 2.0 call. Id is nil for a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is the JSON-RPC 2.0 reply envelope. Exactly one of Result/Error
// is set.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      any         `json:"id,omitempty"`
	Result  any         `json:"result,omitempty"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ErrorObject is the JSON-RPC 2.0 error shape.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes per the wire protocol.
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeParseError     = -32700
	CodeApplication    = -32000
)

// HandlerFunc handles one method's params and returns a JSON-marshalable
// result or an error.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Router dispatches method names registered via Register.
type Router struct {
	log      *slog.Logger
	handlers map[string]HandlerFunc
}

func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{log: log, handlers: make(map[string]HandlerFunc)}
}

// Register binds method to fn, replacing any prior registration.
func (r *Router) Register(method string, fn HandlerFunc) {
	r.handlers[method] = fn
}

// Dispatch resolves req.Method and runs it, always returning a complete
// Response (never an error) so every transport can serialize the result
// the same way. A nil Request.ID Response is a notification reply and
// transports should not write it back to the client.
func (r *Router) Dispatch(ctx context.Context, req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	fn, ok := r.handlers[req.Method]
	if !ok {
		resp.Error = &ErrorObject{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}
		return resp
	}

	result, err := fn(ctx, req.Params)
	if err != nil {
		r.log.Warn("rpc handler error", "method", req.Method, "error", err)
		resp.Error = &ErrorObject{Code: CodeApplication, Message: err.Error()}
		return resp
	}
	resp.Result = result
	if result == nil {
		resp.Result = json.RawMessage("null")
	}
	return resp
}

// IsNotification reports whether req carries no id and therefore expects
// no response on the wire.
func (req Request) IsNotification() bool {
	return req.ID == nil
}

// decodeParams unmarshals params into dst, translating a failure into a
// Validation apperr so it surfaces through the normal -32000 path with a
// useful message instead of a generic JSON error.
func decodeParams(params json.RawMessage, dst any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return apperr.Wrap(apperr.Validation, "invalid params", err)
	}
	return nil
}
