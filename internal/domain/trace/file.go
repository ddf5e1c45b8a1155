package trace

import (
	"encoding/json"
	"fmt"

	"github.com/Strob0t/TraceScope/internal/domain"
)

// File is a loaded trace: the event log plus the anchor that ties it to the video.
type File struct {
	// VideoStartedAt anchors video-relative time to wall-clock epoch milliseconds.
	VideoStartedAt *float64
	VideoAvailable *bool
	Events         []Event
	Extra          map[string]json.RawMessage
}

// Parse decodes a trace file. The top level must be an object with an events
// array; unknown event kinds and unknown fields are preserved.
func Parse(data []byte) (*File, error) {
	f, err := decodeFields(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedTrace, err)
	}

	rawEvents, ok := f["events"]
	if !ok || isNull(rawEvents) {
		return nil, fmt.Errorf("%w: missing events array", domain.ErrMalformedTrace)
	}
	var events []Event
	if err := json.Unmarshal(rawEvents, &events); err != nil {
		return nil, fmt.Errorf("%w: events: %w", domain.ErrMalformedTrace, err)
	}
	delete(f, "events")

	file := &File{Events: events}
	if file.Events == nil {
		file.Events = []Event{}
	}
	var anchor float64
	if f.take("videoStartedAt", &anchor) {
		file.VideoStartedAt = &anchor
	}
	var available bool
	if f.take("videoAvailable", &available) {
		file.VideoAvailable = &available
	}
	file.Extra = f.rest()
	return file, nil
}

// Marshal encodes the file in the same shape Parse accepts.
func (f *File) Marshal() ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}

// MarshalJSON encodes the file with its preserved extra fields.
func (f File) MarshalJSON() ([]byte, error) {
	out := newFieldWriter(f.Extra)
	if f.VideoStartedAt != nil {
		out.value("videoStartedAt", *f.VideoStartedAt)
	}
	if f.VideoAvailable != nil {
		out.value("videoAvailable", *f.VideoAvailable)
	}
	events := f.Events
	if events == nil {
		events = []Event{}
	}
	out.value("events", events)
	if out.err != nil {
		return nil, out.err
	}
	return json.Marshal(out.m)
}

// WithEvents returns a copy of f carrying a different event list.
func (f *File) WithEvents(events []Event) *File {
	cp := *f
	cp.Events = events
	return &cp
}
