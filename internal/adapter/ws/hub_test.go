package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/TraceScope/internal/port/broadcast"
)

var _ broadcast.Broadcaster = (*Hub)(nil)

func TestNewHubIgnoresWildcardOrigin(t *testing.T) {
	hub := NewHub("*", "")
	if len(hub.origins) != 0 {
		t.Fatalf("expected no origin restriction, got %v", hub.origins)
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub()
	hub.BroadcastEvent(context.Background(), broadcast.EventSessionUpdated, SessionUpdatedEvent{SessionID: "s1"})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub()
	// A channel cannot be marshaled to JSON; the hub logs and drops it.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.remove(&conn{cancel: cancel})
	if hub.ConnectionCount() != 0 {
		t.Fatal("expected 0 connections")
	}
}

func TestHubDeliversSessionUpdate(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.CloseNow()

	for hub.ConnectionCount() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("connection never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	hub.BroadcastEvent(ctx, broadcast.EventSessionUpdated, SessionUpdatedEvent{SessionID: "s1", Generation: 3, Events: 4})

	_, data, err := client.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != broadcast.EventSessionUpdated {
		t.Errorf("expected type %s, got %s", broadcast.EventSessionUpdated, msg.Type)
	}
	var ev SessionUpdatedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Generation != 3 || ev.Events != 4 {
		t.Errorf("unexpected payload %+v", ev)
	}
}

func TestHubReplaysLatestUpdateToNewViewer(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.BroadcastEvent(ctx, broadcast.EventSessionUpdated, SessionUpdatedEvent{SessionID: "s1", Generation: 1})
	hub.BroadcastEvent(ctx, broadcast.EventSessionUpdated, SessionUpdatedEvent{SessionID: "s1", Generation: 2})
	hub.BroadcastEvent(ctx, broadcast.EventSessionLoadFailed, SessionLoadFailedEvent{SessionID: "s1", Error: "bad json"})

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	client, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.CloseNow()

	_, data, err := client.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != broadcast.EventSessionUpdated {
		t.Fatalf("expected replayed session update, got %s", msg.Type)
	}
	var ev SessionUpdatedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Generation != 2 {
		t.Errorf("expected latest generation 2, got %d", ev.Generation)
	}
}

func TestHubKeepsNewestGenerationForReplay(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.BroadcastEvent(ctx, broadcast.EventSessionUpdated, SessionUpdatedEvent{SessionID: "s1", Generation: 5, Events: 5})
	hub.BroadcastEvent(ctx, broadcast.EventSessionUpdated, SessionUpdatedEvent{SessionID: "s1", Generation: 4, Events: 4})

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	client, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.CloseNow()

	_, data, err := client.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	var ev SessionUpdatedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Generation != 5 || ev.Events != 5 {
		t.Errorf("stale update replaced the replay: got generation %d", ev.Generation)
	}
}
