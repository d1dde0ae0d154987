package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ZaguanLabs/lingoflow"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSocket_WriteEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := Upgrade(w, r)
		if err != nil {
			return
		}
		defer s.Close()
		_ = s.WriteEvent(lingoflow.InitEvent(3))
		_ = s.WriteEvent(lingoflow.ProgressEvent("a", "b", 1, 3))
	}))
	defer srv.Close()

	conn := dial(t, srv)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first lingoflow.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if first.Type != lingoflow.EventInit || first.TotalKeys != 3 {
		t.Errorf("Expected init with 3 keys, got %+v", first)
	}

	var second lingoflow.Event
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if second.Key != "a" || second.Completed != 1 {
		t.Errorf("Unexpected progress event %+v", second)
	}
}

func TestSocket_CancelMessage(t *testing.T) {
	cancelled := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := Upgrade(w, r)
		if err != nil {
			return
		}
		defer s.Close()

		ctx, cancel := context.WithCancel(context.Background())
		s.WatchCancel(ctx, cancel)
		<-ctx.Done()
		close(cancelled)
	}))
	defer srv.Close()

	conn := dial(t, srv)

	// Pings are answered and do not cancel
	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected pong, got %v", err)
	}
	var pong map[string]string
	if err := json.Unmarshal(data, &pong); err != nil || pong["type"] != "pong" {
		t.Errorf("Expected pong frame, got %s", data)
	}

	if err := conn.WriteJSON(map[string]string{"type": "Cancel"}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected cancel message to cancel the job context")
	}
}

func TestSocket_DisconnectCancels(t *testing.T) {
	cancelled := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := Upgrade(w, r)
		if err != nil {
			return
		}
		defer s.Close()

		ctx, cancel := context.WithCancel(context.Background())
		s.WatchCancel(ctx, cancel)
		<-ctx.Done()
		close(cancelled)
	}))
	defer srv.Close()

	conn := dial(t, srv)
	conn.Close()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a dropped connection to cancel the job context")
	}
}
