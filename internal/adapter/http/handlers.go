package http

import (
	"net/http"

	"github.com/Strob0t/TraceScope/internal/port/messagequeue"
	"github.com/Strob0t/TraceScope/internal/service"
)

// DefaultMaxUploadBytes bounds trace uploads when no limit is configured.
const DefaultMaxUploadBytes = 64 << 20

// maxSettingsBytes bounds filter settings and override bodies.
const maxSettingsBytes = 1 << 20

// connectionCounter reports live viewer connections.
type connectionCounter interface {
	ConnectionCount() int
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Session *service.SessionService
	// Queue is the optional broker publisher, reported by the health check.
	Queue messagequeue.Publisher
	// Viewers is the optional WebSocket hub, reported by the health check.
	Viewers        connectionCounter
	MaxUploadBytes int64
	Version        string
}

func (h *Handlers) uploadLimit() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

type healthStatus struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	TraceLoaded bool   `json:"trace_loaded"`
	Generation  uint64 `json:"generation"`
	NATS        string `json:"nats"`
	Viewers     int    `json:"viewers"`
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	info := h.Session.Info()
	status := healthStatus{
		Status:      "ok",
		Version:     h.Version,
		TraceLoaded: info.Loaded,
		Generation:  info.Generation,
		NATS:        "disabled",
	}
	if h.Queue != nil {
		status.NATS = "connected"
		if !h.Queue.IsConnected() {
			status.NATS = "disconnected"
			status.Status = "degraded"
		}
	}
	if h.Viewers != nil {
		status.Viewers = h.Viewers.ConnectionCount()
	}
	writeJSON(w, http.StatusOK, status)
}
