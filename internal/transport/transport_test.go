package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/ledgerlink/internal/backoff"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.Backoff = backoff.Policy{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}
	return cfg
}

// waitEvent reads events until one of the wanted kind arrives.
func waitEvent(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event channel closed while waiting for %v", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v event", kind)
		}
	}
}

func TestClient_OpenedThenFrames(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ledgerClosed"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	c := New(testConfig(wsURL(server)), nil)
	c.Start(context.Background())
	defer c.Close(0, "")

	waitEvent(t, c.Events(), Opened)
	ev := waitEvent(t, c.Events(), Frame)
	if string(ev.Data) != `{"type":"ledgerClosed"}` {
		t.Errorf("frame = %q", ev.Data)
	}
	if !c.IsConnected() {
		t.Error("IsConnected = false after Opened")
	}
}

func TestClient_SendReachesServer(t *testing.T) {
	received := make(chan []byte, 1)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- msg
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	c := New(testConfig(wsURL(server)), nil)
	c.Start(context.Background())
	defer c.Close(0, "")

	waitEvent(t, c.Events(), Opened)

	want := []byte(`{"id":1,"command":"ping"}`)
	if err := c.Send(want); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(want) {
			t.Errorf("server received %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message")
	}
}

func TestClient_SendBeforeConnect(t *testing.T) {
	c := New(testConfig("ws://127.0.0.1:0"), nil)
	if err := c.Send([]byte("x")); err != ErrNotConnected {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
}

func TestClient_RedialsAfterDrop(t *testing.T) {
	var mu sync.Mutex
	dials := 0

	server := mockWSServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()

		if n == 1 {
			// Drop the first connection immediately.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	c := New(testConfig(wsURL(server)), nil)
	c.Start(context.Background())
	defer c.Close(0, "")

	waitEvent(t, c.Events(), Opened)
	waitEvent(t, c.Events(), Closed)
	waitEvent(t, c.Events(), Opened)

	mu.Lock()
	defer mu.Unlock()
	if dials < 2 {
		t.Errorf("dials = %d, want >= 2", dials)
	}
}

func TestClient_CloseEmitsTerminalClosed(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	c := New(testConfig(wsURL(server)), nil)
	c.Start(context.Background())

	waitEvent(t, c.Events(), Opened)

	if err := c.Close(websocket.CloseNormalClosure, "done"); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	waitEvent(t, c.Events(), Closed)

	// Channel drains and closes; no reconnect happens.
	for ev := range c.Events() {
		if ev.Kind == Opened {
			t.Error("reconnected after Close")
		}
	}

	if c.IsConnected() {
		t.Error("IsConnected = true after Close")
	}

	// Idempotent.
	if err := c.Close(0, ""); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestClient_RetriesInitialDial(t *testing.T) {
	// Grab a port with no listener, then start the server on it after the
	// first dial attempts fail.
	placeholder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := wsURL(placeholder)
	placeholder.Close()

	c := New(testConfig(url), nil)
	c.Start(context.Background())
	defer c.Close(0, "")

	// No Opened while nothing is listening.
	select {
	case ev := <-c.Events():
		if ev.Kind == Opened {
			t.Fatal("Opened with no server listening")
		}
	case <-time.After(50 * time.Millisecond):
	}
}
