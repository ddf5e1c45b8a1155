package timeline

import (
	"math"
	"sort"

	"github.com/Strob0t/TraceScope/internal/domain/trace"
)

// Color tags attached to markers.
const (
	ColorClick           = "click"
	ColorNavigation      = "navigation"
	ColorSPANavigation   = "spa-navigation"
	ColorRequestOK       = "request-ok"
	ColorRequestRedirect = "request-redirect"
	ColorRequestError    = "request-error"
	ColorRequestPending  = "request-pending"
	ColorRequestEmbedded = "request-embedded"
)

// Marker is the projection of one event onto the time axis.
type Marker struct {
	ID              string     `json:"id"`
	Kind            trace.Kind `json:"kind"`
	Position        float64    `json:"position"`
	Timestamp       float64    `json:"timestamp"`
	Label           string     `json:"label"`
	Color           string     `json:"color"`
	From            string     `json:"from"`
	To              string     `json:"to"`
	RelatedRequests []string   `json:"relatedRequests,omitempty"`
	TriggeredBy     string     `json:"triggeredBy,omitempty"`
}

// Timeline is the marker projection of one filtered event list.
type Timeline struct {
	InteractionMarkers []Marker `json:"interactionMarkers"`
	RequestMarkers     []Marker `json:"requestMarkers"`
	TimeRangeMs        float64  `json:"timeRangeMs"`
	StartTs            float64  `json:"startTs"`
	EndTs              float64  `json:"endTs"`
	// Origin is the wall-clock time of video offset zero: the video anchor,
	// else the earliest event timestamp.
	Origin float64 `json:"origin"`
}

// Compute correlates events and places a marker for every timestamped
// interaction and request. videoAnchorMs may be nil; videoDurationMs is 0 when
// unknown. Events without a timestamp are still attributed but get no marker.
func Compute(events []trace.Event, videoAnchorMs *float64, videoDurationMs float64) Timeline {
	start, end, origin := axis(events, videoAnchorMs, videoDurationMs)
	tl := Timeline{
		InteractionMarkers: []Marker{},
		RequestMarkers:     []Marker{},
		TimeRangeMs:        end - start,
		StartTs:            start,
		EndTs:              end,
		Origin:             origin,
	}

	corr := Correlate(events)
	for i, ev := range events {
		ts, ok := ev.Timestamp()
		if !ok || !(ev.IsInteraction() || ev.IsRequest()) {
			continue
		}
		m := Marker{
			ID:        ev.TraceID(),
			Kind:      ev.Kind,
			Position:  position(ts, start, tl.TimeRangeMs),
			Timestamp: ts,
			Label:     trace.DisplayLabel(ev),
			Color:     colorOf(ev),
		}
		if ev.IsInteraction() {
			m.From, m.To = Participants(ev, "")
			m.RelatedRequests = make([]string, 0, len(corr.Related[i]))
			for _, j := range corr.Related[i] {
				m.RelatedRequests = append(m.RelatedRequests, events[j].TraceID())
			}
			tl.InteractionMarkers = append(tl.InteractionMarkers, m)
			continue
		}
		trigger := corr.Trigger(events, i)
		m.From, m.To = Participants(ev, CurrentHost(trigger))
		if trigger != nil {
			m.TriggeredBy = trigger.TraceID()
		}
		tl.RequestMarkers = append(tl.RequestMarkers, m)
	}
	return tl
}

// axis derives the time range. The end is at least one millisecond after the
// start so positions never divide by zero.
func axis(events []trace.Event, anchor *float64, durationMs float64) (start, end, origin float64) {
	earliest, latest := math.Inf(1), math.Inf(-1)
	for _, ev := range events {
		if ts, ok := ev.Timestamp(); ok {
			earliest = math.Min(earliest, ts)
			latest = math.Max(latest, ts)
		}
	}
	hasTS := !math.IsInf(earliest, 1)

	switch {
	case anchor != nil && hasTS:
		start, origin = math.Min(*anchor, earliest), *anchor
	case anchor != nil:
		start, origin = *anchor, *anchor
	case hasTS:
		start, origin = earliest, earliest
	}

	end = start + 1
	if hasTS {
		end = math.Max(end, latest)
	}
	if anchor != nil || durationMs > 0 {
		end = math.Max(end, origin+durationMs)
	}
	return start, end, origin
}

func position(ts, start, rangeMs float64) float64 {
	p := (ts - start) / rangeMs * 100
	return math.Max(0, math.Min(100, p))
}

func colorOf(ev trace.Event) string {
	switch ev.Kind {
	case trace.KindClick:
		return ColorClick
	case trace.KindNavigation:
		return ColorNavigation
	case trace.KindSPANavigation:
		return ColorSPANavigation
	}
	if trace.IsDataURL(ev.URL) {
		return ColorRequestEmbedded
	}
	if ev.Request == nil || ev.Request.Status == nil {
		return ColorRequestPending
	}
	switch s := *ev.Request.Status; {
	case s == 0 || s >= 400:
		return ColorRequestError
	case s >= 300:
		return ColorRequestRedirect
	default:
		return ColorRequestOK
	}
}

// SeekSeconds converts a marker timestamp to a video offset in seconds.
// Timestamps before the origin seek to the start.
func SeekSeconds(ts, origin float64) float64 {
	return math.Max(0, (ts-origin)/1000)
}

// Find returns the marker with the given id.
func (tl Timeline) Find(id string) (Marker, bool) {
	for _, list := range [][]Marker{tl.InteractionMarkers, tl.RequestMarkers} {
		for _, m := range list {
			if m.ID == id {
				return m, true
			}
		}
	}
	return Marker{}, false
}

// MarkersNear returns the markers within windowMs of the video playback
// position, ordered by timestamp with interactions before requests on ties.
func (tl Timeline) MarkersNear(playbackMs, windowMs float64) []Marker {
	at := tl.Origin + playbackMs
	out := []Marker{}
	for _, list := range [][]Marker{tl.InteractionMarkers, tl.RequestMarkers} {
		for _, m := range list {
			if math.Abs(m.Timestamp-at) <= windowMs {
				out = append(out, m)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
