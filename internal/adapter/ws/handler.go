// Package ws implements the WebSocket adapter that pushes session updates to viewers.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/TraceScope/internal/port/broadcast"
)

const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub manages all active WebSocket connections and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*conn]struct{}
	origins []string
	latest  []byte // newest session update, replayed to new viewers

	latestGen uint64
}

// NewHub creates a hub. origins restricts the accepted Origin hosts; an empty
// list or "*" accepts any origin.
func NewHub(origins ...string) *Hub {
	h := &Hub{conns: make(map[*conn]struct{})}
	for _, o := range origins {
		if o != "" && o != "*" {
			h.origins = append(h.origins, o)
		}
	}
	return h
}

// HandleWS upgrades the request to a WebSocket and registers the connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.origins}
	if len(h.origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{ws: ws, cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	latest := h.latest
	h.mu.Unlock()

	slog.Info("websocket connected", "remote", r.RemoteAddr)

	// A late viewer starts from the current generation. A concurrent
	// broadcast may overtake the replay; viewers keep the highest generation.
	if latest != nil {
		if err := c.writeRaw(ctx, latest); err != nil {
			slog.Debug("websocket replay failed", "error", err)
			h.remove(c)
			_ = ws.CloseNow()
			return
		}
	}

	// Viewers never send; reading only detects disconnects and consumes pings.
	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	if msg.Type == broadcast.EventSessionUpdated {
		h.keepLatest(msg.Payload, data)
	}
	targets := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.writeRaw(ctx, data); err != nil {
			slog.Debug("websocket write failed", "error", err)
			h.remove(c)
		}
	}
}

// keepLatest stores data for replay unless a newer generation is already
// stored. Caller holds h.mu.
func (h *Hub) keepLatest(payload json.RawMessage, data []byte) {
	var p struct {
		Generation uint64 `json:"generation"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		slog.Debug("websocket update without generation", "error", err)
		return
	}
	if h.latest != nil && p.Generation < h.latestGen {
		return
	}
	h.latest = data
	h.latestGen = p.Generation
}

func (c *conn) writeRaw(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected")
	}
}
