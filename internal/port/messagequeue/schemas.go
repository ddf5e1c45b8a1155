package messagequeue

import "time"

// SessionEventPayload is the schema of every session event.
type SessionEventPayload struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Generation uint64    `json:"generation"`
	Type       string    `json:"type"`
	Events     int       `json:"events"`
	Requests   int       `json:"requests"`
	Ignored    int       `json:"ignored"`
	Overrides  int       `json:"overrides"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}
