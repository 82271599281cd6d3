package httpapi

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"luminad/internal/worker"
)

func TestHubBroadcastsEvents(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	srv := httptest.NewServer(NewMux(okService(), testCheckpoint(), hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Let the server register the subscriber before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(time.Millisecond)
	}

	hub.Publish(worker.Event{
		Name:      "progress",
		RequestID: "req-1",
		Fields:    map[string]any{"step": 3, "total": 30},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Event != "progress" || msg.RequestID != "req-1" {
		t.Fatalf("message = %+v", msg)
	}
	if step, ok := msg.Fields["step"].(float64); !ok || step != 3 {
		t.Fatalf("fields = %v", msg.Fields)
	}
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewMux(okService(), testCheckpoint(), hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	// After the close is observed, publishing must prune the subscriber.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.Publish(worker.Event{Name: "request_done"})
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("closed subscriber never pruned")
		}
		time.Sleep(time.Millisecond)
	}
}
