package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// handleSSE subscribes to the event bus for the lifetime of the
// connection and writes each event as a server-sent-event frame. The
// subscription is released on client disconnect per §4.10.
func (s *Server) handleSSE(c *gin.Context) {
	ch, cancel := s.bus.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(map[string]any{"type": evt.Name, "data": evt.Args})
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

var wsUpgrader = websocket.Upgrader{
	// The event stream carries no credentials and is read-only from the
	// client's perspective, so any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS mirrors handleSSE on the reserved WebSocket port: the same
// event-bus subscription, framed as individual WS text messages instead
// of SSE "data:" lines.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.bus.Subscribe()
	defer cancel()

	// Drain client frames so the read side doesn't back up; the stream is
	// one-directional, so anything the client sends is discarded.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for evt := range ch {
		payload, err := json.Marshal(map[string]any{"type": evt.Name, "data": evt.Args})
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
