// Package messagequeue defines the port for publishing session events to a
// message broker.
package messagequeue

import "context"

// Event names appended to the configured subject prefix.
const (
	EventUpdated    = "updated"
	EventLoadFailed = "load_failed"
)

// Publisher sends messages to a broker.
type Publisher interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// IsConnected reports whether the broker connection is up.
	IsConnected() bool

	// Close flushes pending messages and closes the connection.
	Close() error
}

// Subject joins a subject prefix and an event name.
func Subject(prefix, event string) string {
	return prefix + "." + event
}
