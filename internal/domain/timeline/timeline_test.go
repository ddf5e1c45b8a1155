package timeline

import (
	"testing"

	"github.com/Strob0t/TraceScope/internal/domain/trace"
)

func ptr[T any](v T) *T { return &v }

func clickAt(id string, ts float64, host string) trace.Event {
	return trace.Event{Kind: trace.KindClick, InternalID: id, TS: ts, HasTS: true, Host: host, Click: &trace.Click{}}
}

func requestAt(id string, ts float64, url string, status *int) trace.Event {
	return trace.Event{
		Kind: trace.KindRequest, InternalID: id, TS: ts, HasTS: true, URL: url,
		Request: &trace.Request{Method: "GET", Status: status},
	}
}

// exampleTrace is a click, two API requests and a second click.
func exampleTrace() []trace.Event {
	return []trace.Event{
		clickAt("ev-0", 1000, "app.com"),
		requestAt("ev-1", 1050, "https://api.app.com/a", ptr(200)),
		requestAt("ev-2", 1200, "https://api.app.com/b", ptr(200)),
		clickAt("ev-3", 2000, "app.com"),
	}
}

func TestComputeExample(t *testing.T) {
	tl := Compute(exampleTrace(), ptr(1000.0), 0)

	if tl.TimeRangeMs != 1000 || tl.StartTs != 1000 || tl.EndTs != 2000 {
		t.Fatalf("axis = %v..%v (%v)", tl.StartTs, tl.EndTs, tl.TimeRangeMs)
	}
	if len(tl.InteractionMarkers) != 2 || len(tl.RequestMarkers) != 2 {
		t.Fatalf("markers: %d interactions, %d requests", len(tl.InteractionMarkers), len(tl.RequestMarkers))
	}
	for _, m := range tl.RequestMarkers {
		if m.TriggeredBy != "ev-0" {
			t.Errorf("%s triggered by %q, want ev-0", m.ID, m.TriggeredBy)
		}
		if m.From != "app.com" || m.To != "api.app.com" {
			t.Errorf("%s participants %s -> %s", m.ID, m.From, m.To)
		}
		if m.Color != ColorRequestOK {
			t.Errorf("%s color %s", m.ID, m.Color)
		}
	}
	first, second := tl.InteractionMarkers[0], tl.InteractionMarkers[1]
	if len(first.RelatedRequests) != 2 || first.RelatedRequests[0] != "ev-1" || first.RelatedRequests[1] != "ev-2" {
		t.Errorf("first click related = %v", first.RelatedRequests)
	}
	if second.RelatedRequests == nil || len(second.RelatedRequests) != 0 {
		t.Errorf("second click related = %#v, want empty", second.RelatedRequests)
	}
	if first.Position != 0 || second.Position != 100 {
		t.Errorf("positions = %v, %v", first.Position, second.Position)
	}
	if got := tl.RequestMarkers[0].Position; got != 5 {
		t.Errorf("request position = %v, want 5", got)
	}
	if first.From != trace.UserParticipant || first.To != "app.com" {
		t.Errorf("click participants %s -> %s", first.From, first.To)
	}
}

func TestCorrelateWindow(t *testing.T) {
	events := []trace.Event{
		requestAt("r0", 1, "https://a.com/0", nil),
		clickAt("c1", 2, "a.com"),
		requestAt("r2", 3, "https://a.com/2", nil),
		{Kind: "scroll", InternalID: "x3"},
		requestAt("r4", 4, "https://a.com/4", nil),
		{Kind: trace.KindNavigation, InternalID: "n5", Navigation: &trace.Navigation{}},
		requestAt("r6", 6, "https://a.com/6", nil),
	}
	c := Correlate(events)

	wantTrigger := []int{-1, -1, 1, -1, 1, -1, 5}
	for i, want := range wantTrigger {
		if c.TriggeredBy[i] != want {
			t.Errorf("TriggeredBy[%d] = %d, want %d", i, c.TriggeredBy[i], want)
		}
	}
	if got := c.Related[1]; len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("Related[1] = %v", got)
	}
	if got := c.Related[5]; len(got) != 1 || got[0] != 6 {
		t.Errorf("Related[5] = %v", got)
	}
	if c.Related[0] != nil || c.Related[3] != nil {
		t.Error("expected nil related for non-interactions")
	}
	if c.Trigger(events, 0) != nil {
		t.Error("expected no trigger before first interaction")
	}
	if tr := c.Trigger(events, 6); tr == nil || tr.InternalID != "n5" {
		t.Errorf("Trigger(6) = %v", tr)
	}
}

func TestCurrentHost(t *testing.T) {
	tests := []struct {
		name    string
		trigger *trace.Event
		want    string
	}{
		{"none", nil, trace.DefaultHost},
		{"click own host", &trace.Event{Kind: trace.KindClick, Host: "www.app.com", Click: &trace.Click{}}, "app.com"},
		{"click cross host", &trace.Event{Kind: trace.KindClick, Host: "app.com", Click: &trace.Click{TargetHost: "shop.com"}}, "shop.com"},
		{"navigation", &trace.Event{Kind: trace.KindNavigation, Host: "a.com", Navigation: &trace.Navigation{TargetHost: "b.com"}}, "b.com"},
		{"spa", &trace.Event{Kind: trace.KindSPANavigation, Host: "app.com", SPANavigation: &trace.SPANavigation{}}, "app.com"},
		{"not an interaction", &trace.Event{Kind: trace.KindRequest, Host: "api.com"}, trace.DefaultHost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CurrentHost(tt.trigger); got != tt.want {
				t.Errorf("CurrentHost = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParticipants(t *testing.T) {
	tests := []struct {
		name     string
		ev       trace.Event
		current  string
		from, to string
	}{
		{"click", trace.Event{Kind: trace.KindClick, Host: "a.com", Click: &trace.Click{}}, "", "User", "a.com"},
		{"cross-host click", trace.Event{Kind: trace.KindClick, Host: "a.com", Click: &trace.Click{TargetHost: "b.com"}}, "", "User", "a.com → b.com"},
		{"navigation", trace.Event{Kind: trace.KindNavigation, Host: "a.com", Navigation: &trace.Navigation{TransitionType: "typed"}}, "", "User", "a.com (typed)"},
		{"spa changed host", trace.Event{Kind: trace.KindSPANavigation, Host: "b.com", SPANavigation: &trace.SPANavigation{PreviousHost: "a.com", NavigationType: "pushState"}}, "", "User", "a.com → b.com (pushState)"},
		{"spa same host", trace.Event{Kind: trace.KindSPANavigation, Host: "a.com", SPANavigation: &trace.SPANavigation{PreviousHost: "www.a.com", NavigationType: "popstate"}}, "", "User", "a.com (popstate)"},
		{"request", trace.Event{Kind: trace.KindRequest, URL: "https://api.a.com/x"}, "a.com", "a.com", "api.a.com"},
		{"request without context", trace.Event{Kind: trace.KindRequest, URL: "https://api.a.com/x"}, "", trace.DefaultHost, "api.a.com"},
		{"unknown", trace.Event{Kind: "scroll"}, "a.com", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := Participants(tt.ev, tt.current)
			if from != tt.from || to != tt.to {
				t.Errorf("Participants = %q -> %q, want %q -> %q", from, to, tt.from, tt.to)
			}
		})
	}
}

func TestComputeAxis(t *testing.T) {
	tests := []struct {
		name       string
		events     []trace.Event
		anchor     *float64
		duration   float64
		start, end float64
	}{
		{"no events no anchor", nil, nil, 0, 0, 1},
		{"anchor only", nil, ptr(500.0), 0, 500, 501},
		{"anchor and duration", nil, ptr(500.0), 3000, 500, 3500},
		{"anchor after first event", exampleTrace(), ptr(1500.0), 0, 1000, 2000},
		{"video longer than trace", exampleTrace(), ptr(1000.0), 5000, 1000, 6000},
		{"no anchor uses earliest as origin", exampleTrace(), nil, 4000, 1000, 5000},
		{"single event", []trace.Event{clickAt("c", 42, "a.com")}, nil, 0, 42, 43},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := Compute(tt.events, tt.anchor, tt.duration)
			if tl.StartTs != tt.start || tl.EndTs != tt.end || tl.TimeRangeMs != tt.end-tt.start {
				t.Errorf("axis = %v..%v range %v, want %v..%v", tl.StartTs, tl.EndTs, tl.TimeRangeMs, tt.start, tt.end)
			}
		})
	}
}

func TestComputeMarkersWithoutTimestamp(t *testing.T) {
	events := []trace.Event{
		{Kind: trace.KindClick, InternalID: "c", Host: "a.com", Click: &trace.Click{}},
		requestAt("r", 100, "https://api.a.com/", ptr(200)),
	}
	tl := Compute(events, nil, 0)
	if len(tl.InteractionMarkers) != 0 {
		t.Fatalf("expected no marker for untimestamped click")
	}
	if len(tl.RequestMarkers) != 1 || tl.RequestMarkers[0].TriggeredBy != "c" {
		t.Errorf("expected request attributed to untimestamped click: %+v", tl.RequestMarkers)
	}
	if tl.RequestMarkers[0].From != "a.com" {
		t.Errorf("from = %q", tl.RequestMarkers[0].From)
	}
}

func TestPositionClamps(t *testing.T) {
	if got := position(50, 100, 1000); got != 0 {
		t.Errorf("position before start = %v", got)
	}
	if got := position(5000, 100, 1000); got != 100 {
		t.Errorf("position after end = %v", got)
	}
}

func TestColors(t *testing.T) {
	tests := []struct {
		ev   trace.Event
		want string
	}{
		{requestAt("a", 1, "https://a.com", ptr(204)), ColorRequestOK},
		{requestAt("b", 1, "https://a.com", ptr(302)), ColorRequestRedirect},
		{requestAt("c", 1, "https://a.com", ptr(500)), ColorRequestError},
		{requestAt("d", 1, "https://a.com", ptr(0)), ColorRequestError},
		{requestAt("e", 1, "https://a.com", nil), ColorRequestPending},
		{requestAt("f", 1, "data:image/png;base64,AAA", nil), ColorRequestEmbedded},
		{trace.Event{Kind: trace.KindSPANavigation}, ColorSPANavigation},
	}
	for _, tt := range tests {
		if got := colorOf(tt.ev); got != tt.want {
			t.Errorf("colorOf(%s) = %s, want %s", tt.ev.InternalID, got, tt.want)
		}
	}
}

func TestPlaybackLookups(t *testing.T) {
	tl := Compute(exampleTrace(), ptr(1000.0), 0)

	if got := SeekSeconds(1200, tl.Origin); got != 0.2 {
		t.Errorf("SeekSeconds = %v", got)
	}
	if got := SeekSeconds(900, tl.Origin); got != 0 {
		t.Errorf("SeekSeconds before origin = %v", got)
	}

	near := tl.MarkersNear(100, 100)
	want := []string{"ev-0", "ev-1", "ev-2"}
	if len(near) != len(want) {
		t.Fatalf("MarkersNear returned %d markers: %+v", len(near), near)
	}
	for i, id := range want {
		if near[i].ID != id {
			t.Errorf("near[%d] = %s, want %s", i, near[i].ID, id)
		}
	}
	if got := tl.MarkersNear(600, 50); len(got) != 0 {
		t.Errorf("expected no markers, got %+v", got)
	}

	if m, ok := tl.Find("ev-3"); !ok || m.Kind != trace.KindClick {
		t.Errorf("Find(ev-3) = %+v, %v", m, ok)
	}
	if _, ok := tl.Find("missing"); ok {
		t.Error("expected missing marker")
	}
}
