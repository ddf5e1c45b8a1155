package http

import (
	"net/http"
	"path"
	"strings"

	"github.com/Strob0t/TraceScope/internal/domain/timeline"
	"github.com/Strob0t/TraceScope/internal/domain/trace"
)

// GetSession handles GET /api/v1/session
func (h *Handlers) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Info())
}

// LoadTrace handles PUT /api/v1/session/trace
//
// The body is the trace file itself. The optional "source" query parameter
// names it in logs and session info.
func (h *Handlers) LoadTrace(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r, h.uploadLimit())
	if !ok {
		return
	}
	source := path.Base(strings.TrimSpace(r.URL.Query().Get("source")))
	if source == "." || source == "/" {
		source = "upload"
	}
	if _, err := h.Session.Load(r.Context(), data, source); err != nil {
		writeDomainError(w, err, "trace not loaded")
		return
	}
	writeJSON(w, http.StatusOK, h.Session.Info())
}

type videoRequest struct {
	DurationMs float64 `json:"durationMs"`
}

// SetVideo handles PUT /api/v1/session/video
func (h *Handlers) SetVideo(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[videoRequest](w, r, maxSettingsBytes)
	if !ok {
		return
	}
	if _, err := h.Session.SetVideo(r.Context(), req.DurationMs); err != nil {
		writeDomainError(w, err, "video not set")
		return
	}
	writeJSON(w, http.StatusOK, h.Session.Info())
}

type eventsResponse struct {
	Generation    uint64         `json:"generation"`
	Events        []trace.Event  `json:"events"`
	Ignored       int            `json:"ignored"`
	IgnoredCounts map[string]int `json:"ignoredCounts"`
}

// ListEvents handles GET /api/v1/session/events
func (h *Handlers) ListEvents(w http.ResponseWriter, _ *http.Request) {
	snap, err := h.Session.Snapshot()
	if err != nil {
		writeDomainError(w, err, "no events")
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Generation:    snap.Generation,
		Events:        snap.Events,
		Ignored:       snap.Ignored,
		IgnoredCounts: snap.IgnoredCounts,
	})
}

// GetTimeline handles GET /api/v1/session/timeline
func (h *Handlers) GetTimeline(w http.ResponseWriter, r *http.Request) {
	data, err := h.Session.ExportTimeline(r.Context())
	if err != nil {
		writeDomainError(w, err, "no timeline")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type nearResponse struct {
	PlaybackMs float64           `json:"playbackMs"`
	WindowMs   float64           `json:"windowMs"`
	Markers    []timeline.Marker `json:"markers"`
}

// MarkersNear handles GET /api/v1/session/timeline/near?t=<ms>&window=<ms>
//
// t is the video playback offset in milliseconds.
func (h *Handlers) MarkersNear(w http.ResponseWriter, r *http.Request) {
	playback, ok := queryFloat(w, r, "t", 0)
	if !ok {
		return
	}
	window, ok := queryFloat(w, r, "window", 500)
	if !ok {
		return
	}
	if window < 0 {
		writeError(w, http.StatusBadRequest, "window must be >= 0")
		return
	}
	snap, err := h.Session.Snapshot()
	if err != nil {
		writeDomainError(w, err, "no timeline")
		return
	}
	markers := snap.Timeline.MarkersNear(playback, window)
	if markers == nil {
		markers = []timeline.Marker{}
	}
	writeJSON(w, http.StatusOK, nearResponse{PlaybackMs: playback, WindowMs: window, Markers: markers})
}

type markerResponse struct {
	Marker      timeline.Marker `json:"marker"`
	SeekSeconds float64         `json:"seekSeconds"`
}

// GetMarker handles GET /api/v1/session/timeline/markers/{id}
//
// The response carries the video offset a viewer seeks to when the marker is selected.
func (h *Handlers) GetMarker(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Session.Snapshot()
	if err != nil {
		writeDomainError(w, err, "no timeline")
		return
	}
	m, found := snap.Timeline.Find(urlParam(r, "id"))
	if !found {
		writeError(w, http.StatusNotFound, "marker not found")
		return
	}
	writeJSON(w, http.StatusOK, markerResponse{
		Marker:      m,
		SeekSeconds: timeline.SeekSeconds(m.Timestamp, snap.Timeline.Origin),
	})
}

type diagramResponse struct {
	Generation uint64         `json:"generation"`
	Script     string         `json:"script"`
	TraceMap   map[int]string `json:"traceMap"`
}

// GetDiagram handles GET /api/v1/session/diagram
func (h *Handlers) GetDiagram(w http.ResponseWriter, _ *http.Request) {
	snap, err := h.Session.Snapshot()
	if err != nil {
		writeDomainError(w, err, "no diagram")
		return
	}
	writeJSON(w, http.StatusOK, diagramResponse{
		Generation: snap.Generation,
		Script:     snap.Diagram,
		TraceMap:   snap.TraceMap,
	})
}

// DownloadDiagram handles GET /api/v1/session/diagram.mmd
func (h *Handlers) DownloadDiagram(w http.ResponseWriter, _ *http.Request) {
	script, err := h.Session.ExportDiagram()
	if err != nil {
		writeDomainError(w, err, "no diagram")
		return
	}
	writeAttachment(w, "text/vnd.mermaid; charset=utf-8", "sequence.mmd", []byte(script))
}

// GetInsights handles GET /api/v1/session/insights
func (h *Handlers) GetInsights(w http.ResponseWriter, _ *http.Request) {
	snap, err := h.Session.Snapshot()
	if err != nil {
		writeDomainError(w, err, "no insights")
		return
	}
	writeJSON(w, http.StatusOK, snap.Insights)
}

// ExportTrace handles GET /api/v1/session/export
func (h *Handlers) ExportTrace(w http.ResponseWriter, r *http.Request) {
	data, err := h.Session.ExportTrace(r.Context())
	if err != nil {
		writeDomainError(w, err, "nothing to export")
		return
	}
	writeAttachment(w, "application/json", "trace.filtered.json", data)
}
