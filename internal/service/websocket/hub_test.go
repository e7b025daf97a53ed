package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crowdcounter/internal/logger"

	"github.com/gorilla/websocket"
)

func setupHub(t *testing.T) (*HubService, *httptest.Server, func()) {
	hub := NewHubService(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
	}))

	return hub, server, func() {
		server.Close()
		cancel()
	}
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return conn
}

func waitForClients(hub *HubService, n int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.GetClientCount() == n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// ========================================
// Hub tests
// ========================================

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub, server, cleanup := setupHub(t)
	defer cleanup()

	first := dial(t, server)
	defer first.Close()
	second := dial(t, server)
	defer second.Close()

	if !waitForClients(hub, 2) {
		t.Fatalf("Expected 2 clients, got %d", hub.GetClientCount())
	}

	if !hub.Broadcast([]byte(`{"type":"cycle","total":17}`)) {
		t.Fatal("Expected broadcast to be queued")
	}

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage failed: %v", err)
		}
		if string(msg) != `{"type":"cycle","total":17}` {
			t.Errorf("Unexpected message %s", msg)
		}
	}
}

func TestHub_Unregister(t *testing.T) {
	hub, server, cleanup := setupHub(t)
	defer cleanup()

	conn := dial(t, server)
	defer conn.Close()
	if !waitForClients(hub, 1) {
		t.Fatal("Expected client to register")
	}

	hub.mutex.RLock()
	var registered *websocket.Conn
	for c := range hub.clients {
		registered = c
	}
	hub.mutex.RUnlock()

	hub.Unregister(registered)
	if !waitForClients(hub, 0) {
		t.Errorf("Expected no clients, got %d", hub.GetClientCount())
	}
}

func TestHub_BroadcastDropsWhenFull(t *testing.T) {
	hub := NewHubService(logger.Discard())

	for i := 0; i < broadcastBuffer; i++ {
		if !hub.Broadcast([]byte("x")) {
			t.Fatalf("Expected message %d to be queued", i)
		}
	}
	if hub.Broadcast([]byte("overflow")) {
		t.Error("Expected message to be dropped when the queue is full")
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHubService(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conn, err := upgrader.Upgrade(w, r, nil); err == nil {
			hub.Register(conn)
		}
	}))
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()
	if !waitForClients(hub, 1) {
		t.Fatal("Expected client to register")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Run to return after cancel")
	}

	if hub.GetClientCount() != 0 {
		t.Errorf("Expected clients closed, got %d", hub.GetClientCount())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the connection to be closed")
	}

	// A stopped hub must not block registration.
	late := dial(t, server)
	late.Close()
}
