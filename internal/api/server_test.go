package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tmuxagentsd/daemon/internal/events"
	"github.com/tmuxagentsd/daemon/internal/health"
	"github.com/tmuxagentsd/daemon/internal/rpc"
	"github.com/tmuxagentsd/daemon/internal/store"
)

func testServer(t *testing.T) (*Server, *rpc.Router) {
	t.Helper()
	router := rpc.NewRouter(nil)
	router.Register("echo.ping", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]any{"pong": true}, nil
	})
	st, err := store.Open(t.TempDir()+"/test.db", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	checker := health.New(st, nil)
	bus := events.New()
	return New(nil, router, bus, checker, "", "", "", "*"), router
}

func TestDispatchLineValidRequest(t *testing.T) {
	s, _ := testServer(t)
	line := []byte(`{"jsonrpc":"2.0","id":1,"method":"echo.ping"}` + "\n")
	resp := s.dispatchLine("test", line)
	if resp == nil {
		t.Fatal("expected a response for a request with an id")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
}

func TestDispatchLineNotification(t *testing.T) {
	s, _ := testServer(t)
	line := []byte(`{"jsonrpc":"2.0","method":"echo.ping"}` + "\n")
	resp := s.dispatchLine("test", line)
	if resp != nil {
		t.Fatalf("expected no response for a notification, got %+v", resp)
	}
}

func TestDispatchLineParseError(t *testing.T) {
	s, _ := testServer(t)
	resp := s.dispatchLine("test", []byte("not json\n"))
	if resp == nil || resp.Error == nil {
		t.Fatal("expected a parse error response")
	}
	if resp.Error.Code != rpc.CodeParseError {
		t.Fatalf("expected code %d, got %d", rpc.CodeParseError, resp.Error.Code)
	}
}

func TestHandleHealthReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := rpc.NewRouter(nil)
	st, err := store.Open(t.TempDir()+"/test.db", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	st.Close() // force the store's next Ping to fail

	checker := health.New(st, nil)
	s := New(nil, router, events.New(), checker, "", "", "", "*")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	s.handleHealth(c)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
