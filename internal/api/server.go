// Package api exposes the daemon's three transports over the same
// internal/rpc.Router: a newline-delimited unix-socket listener, an HTTP
// POST /rpc endpoint, an SSE GET /events stream, a GET /health probe, and
// an optional WebSocket passthrough of the same event stream.
//
// Grounded on 8cc77864_steveyegge-beads__internal-rpc-server_core.go.go's
// Server (unix listener alongside an HTTP wrapper, SSE subscriber fan-out)
// and on kdlbs-kandev/backend/internal/orchestrator/api/middleware.go's
// gin middleware style (CORS, recovery, request logging).
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tmuxagentsd/daemon/internal/events"
	"github.com/tmuxagentsd/daemon/internal/health"
	"github.com/tmuxagentsd/daemon/internal/rpc"
)

// Server wraps the unix socket, HTTP, and (optional) WebSocket listeners
// around a shared rpc.Router and events.Bus.
type Server struct {
	log        *slog.Logger
	router     *rpc.Router
	bus        *events.Bus
	health     *health.Checker
	socketPath string
	httpAddr   string
	wsAddr     string
	corsOrigin string

	mu         sync.Mutex
	unixLn     net.Listener
	httpServer *http.Server
	wsServer   *http.Server
	wg         sync.WaitGroup
}

// New builds a Server. socketPath may be empty to skip the unix listener;
// wsAddr may be empty to skip the WebSocket passthrough.
func New(log *slog.Logger, router *rpc.Router, bus *events.Bus, checker *health.Checker, socketPath, httpAddr, wsAddr string, corsOrigin string) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:        log,
		router:     router,
		bus:        bus,
		health:     checker,
		socketPath: socketPath,
		httpAddr:   httpAddr,
		wsAddr:     wsAddr,
		corsOrigin: corsOrigin,
	}
}

// Start brings up every configured listener. It returns once all of them
// are accepting connections; each listener serves on its own goroutine
// until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if s.socketPath != "" {
		if err := s.startUnixSocket(); err != nil {
			return fmt.Errorf("unix socket: %w", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(s.recovery(), s.requestLog(), s.cors())
	router.POST("/rpc", s.handleRPCPost)
	router.GET("/events", s.handleSSE)
	router.GET("/health", s.handleHealth)

	s.httpServer = &http.Server{Addr: s.httpAddr, Handler: router}
	httpLn, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info("http listening", "addr", s.httpAddr)
		if err := s.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server failed", "error", err)
		}
	}()

	if s.wsAddr != "" {
		wsMux := http.NewServeMux()
		wsMux.HandleFunc("/events", s.handleWS)
		s.wsServer = &http.Server{Addr: s.wsAddr, Handler: wsMux}
		wsLn, err := net.Listen("tcp", s.wsAddr)
		if err != nil {
			return fmt.Errorf("websocket: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.log.Info("websocket listening", "addr", s.wsAddr)
			if err := s.wsServer.Serve(wsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("websocket server failed", "error", err)
			}
		}()
	}

	return nil
}

// Shutdown stops accepting new connections on every transport, unlinks the
// unix socket, and waits for the listener goroutines to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.unixLn != nil {
		s.unixLn.Close()
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		s.httpServer.Shutdown(ctx)
	}
	if s.wsServer != nil {
		s.wsServer.Shutdown(ctx)
	}
	s.wg.Wait()

	if s.socketPath != "" {
		os.Remove(s.socketPath)
	}
	return nil
}

func (s *Server) startUnixSocket() error {
	os.Remove(s.socketPath)
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.unixLn = ln
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info("unix socket listening", "path", s.socketPath)
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.log.Warn("unix accept failed", "error", err)
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handleUnixConn(conn)
			}()
		}
	}()
	return nil
}

// handleUnixConn implements the newline-delimited framing: one JSON-RPC
// request per line, one JSON-RPC response per line, stateless across
// lines. A line that fails to parse gets a -32700 response without
// closing the connection, matching how a malformed HTTP POST body only
// fails that one request.
func (s *Server) handleUnixConn(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			resp := s.dispatchLine(conn.RemoteAddr().String(), line)
			if resp != nil {
				out, _ := json.Marshal(resp)
				out = append(out, '\n')
				if _, werr := conn.Write(out); werr != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) dispatchLine(_ string, line []byte) *rpc.Response {
	var req rpc.Request
	if err := json.Unmarshal(line, &req); err != nil {
		return &rpc.Response{JSONRPC: "2.0", Error: &rpc.ErrorObject{Code: rpc.CodeParseError, Message: "parse error: " + err.Error()}}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	resp := s.router.Dispatch(ctx, req)
	if req.IsNotification() {
		return nil
	}
	return &resp
}

func (s *Server) handleRPCPost(c *gin.Context) {
	var req rpc.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, rpc.Response{
			JSONRPC: "2.0",
			Error:   &rpc.ErrorObject{Code: rpc.CodeParseError, Message: "parse error: " + err.Error()},
		})
		return
	}
	resp := s.router.Dispatch(c.Request.Context(), req)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.health.Check(c.Request.Context())
	status := http.StatusOK
	if report.Overall != health.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
