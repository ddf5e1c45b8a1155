package trace

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/TraceScope/internal/domain"
)

const sampleTrace = `{
  "videoStartedAt": 1000,
  "videoAvailable": true,
  "recorder": {"version": "2.1"},
  "events": [
    {"kind": "click", "id": 7, "ts": 1000, "host": "www.app.com", "selector": "#save", "text": "Save", "targetHost": "pay.app.com"},
    {"kind": "request", "id": "r-1", "ts": 1050, "method": "GET", "url": "https://api.app.com/a", "status": 200, "statusText": "OK",
     "duration": 12.5, "timings": {"dns": 1, "wait": 10}, "responseBody": {"mimeType": "application/json", "text": "{}", "size": 2}, "initiator": "fetch"},
    {"kind": "scroll", "ts": 1100, "y": 400},
    {"kind": "navigation", "ts": 1200, "host": "app.com", "url": "https://app.com/home", "transitionType": "typed"},
    {"kind": "spa-navigation", "ts": 1300, "host": "app.com", "path": "/cart", "navigationType": "pushState", "previousHost": "app.com"}
  ]
}`

func TestParseKnownKinds(t *testing.T) {
	f, err := Parse([]byte(sampleTrace))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.VideoStartedAt == nil || *f.VideoStartedAt != 1000 {
		t.Fatalf("expected videoStartedAt 1000, got %v", f.VideoStartedAt)
	}
	if len(f.Events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(f.Events))
	}

	click := f.Events[0]
	if click.Kind != KindClick || click.Click == nil {
		t.Fatalf("expected click payload, got %+v", click)
	}
	if click.ID != "7" {
		t.Errorf("expected numeric id decoded as \"7\", got %q", click.ID)
	}
	if click.Click.TargetHost != "pay.app.com" || click.Click.Text != "Save" {
		t.Errorf("unexpected click fields: %+v", click.Click)
	}

	req := f.Events[1]
	if req.Request == nil || req.Request.Status == nil || *req.Request.Status != 200 {
		t.Fatalf("expected request status 200, got %+v", req.Request)
	}
	if req.Request.Timings["wait"] != 10 {
		t.Errorf("expected wait timing 10, got %v", req.Request.Timings)
	}
	if _, ok := req.Extra["initiator"]; !ok {
		t.Error("expected unknown request field to be preserved in Extra")
	}
	if _, ok := req.Request.ResponseBody.Extra["size"]; !ok {
		t.Error("expected unknown body field to be preserved")
	}

	scroll := f.Events[2]
	if scroll.Kind.Known() {
		t.Error("scroll should be an unknown kind")
	}
	if scroll.Click != nil || scroll.Request != nil {
		t.Error("unknown kind must not carry a payload")
	}
	if _, ok := scroll.Extra["y"]; !ok {
		t.Error("expected unknown kind fields to be preserved")
	}
}

func TestRoundTripPreservesFields(t *testing.T) {
	f, err := Parse([]byte(sampleTrace))
	if err != nil {
		t.Fatal(err)
	}
	data, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatal(err)
	}
	if _, ok := generic["recorder"]; !ok {
		t.Error("expected top-level extra field to survive")
	}
	events := generic["events"].([]any)
	first := events[0].(map[string]any)
	if id, ok := first["id"].(float64); !ok || id != 7 {
		t.Errorf("expected numeric id 7 to stay numeric, got %#v", first["id"])
	}

	again, err := Parse(data)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(again.Events) != len(f.Events) {
		t.Fatalf("event count changed: %d vs %d", len(again.Events), len(f.Events))
	}
	for i := range f.Events {
		a, _ := json.Marshal(f.Events[i])
		b, _ := json.Marshal(again.Events[i])
		if string(a) != string(b) {
			t.Errorf("event %d changed across round trip:\n%s\n%s", i, a, b)
		}
	}
}

func TestLenientFieldTypes(t *testing.T) {
	f, err := Parse([]byte(`{"events":[{"kind":"request","status":"200","label":42,"url":"https://x.com/a"}]}`))
	if err != nil {
		t.Fatalf("wrong-typed fields must not fail the trace: %v", err)
	}
	ev := f.Events[0]
	if ev.Request.Status != nil {
		t.Error("string status should not decode as a number")
	}
	if string(ev.Extra["status"]) != `"200"` {
		t.Errorf("expected wrong-typed status preserved, got %s", ev.Extra["status"])
	}
	if ev.Label != "" {
		t.Errorf("expected empty label, got %q", ev.Label)
	}
}

func TestTypeKeyFallback(t *testing.T) {
	f, err := Parse([]byte(`{"events":[{"type":"click","host":"a.com"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if f.Events[0].Kind != KindClick {
		t.Fatalf("expected click from type key, got %q", f.Events[0].Kind)
	}
	out, _ := json.Marshal(f.Events[0])
	if !strings.Contains(string(out), `"type":"click"`) {
		t.Errorf("expected kind written back under type key, got %s", out)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", `{"events": [`},
		{"top-level array", `[]`},
		{"missing events", `{"videoStartedAt": 1}`},
		{"events not array", `{"events": {}}`},
		{"event not object", `{"events": [1, 2]}`},
		{"null events", `{"events": null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if !errors.Is(err, domain.ErrMalformedTrace) {
				t.Fatalf("expected ErrMalformedTrace, got %v", err)
			}
		})
	}
}

func TestParseEmptyEvents(t *testing.T) {
	f, err := Parse([]byte(`{"events": []}`))
	if err != nil {
		t.Fatal(err)
	}
	if f.Events == nil || len(f.Events) != 0 {
		t.Fatalf("expected empty non-nil events, got %#v", f.Events)
	}
	if f.VideoStartedAt != nil {
		t.Error("expected no video anchor")
	}
}
