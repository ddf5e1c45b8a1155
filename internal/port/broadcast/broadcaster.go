// Package broadcast defines the port for pushing session changes to
// connected viewers.
package broadcast

import "context"

// Event types sent to viewers.
const (
	EventSessionUpdated    = "session.updated"
	EventSessionLoadFailed = "session.load_failed"
)

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
