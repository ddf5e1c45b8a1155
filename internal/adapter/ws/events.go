package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// SessionUpdatedEvent is broadcast after every committed recomputation.
type SessionUpdatedEvent struct {
	SessionID  string `json:"session_id"`
	Generation uint64 `json:"generation"`
	Events     int    `json:"events"`
	Requests   int    `json:"requests"`
	Ignored    int    `json:"ignored"`
	Overrides  int    `json:"overrides"`
}

// SessionLoadFailedEvent is broadcast when a new trace could not be loaded;
// the previous session stays active.
type SessionLoadFailedEvent struct {
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
