package connections

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestManager(t *testing.T) {
	t.Run("basic add and remove connection", func(t *testing.T) {
		manager := NewManager(DefaultTimeouts)

		conn := &websocket.Conn{}

		manager.AddConnection(conn)
		if !manager.HasConnection(conn) {
			t.Error("Connection not found after adding")
		}
		if manager.GetConnectionCount() != 1 {
			t.Errorf("Connection count = %d, want 1", manager.GetConnectionCount())
		}

		manager.RemoveConnection(conn)
		if manager.HasConnection(conn) {
			t.Error("Connection still exists after removal")
		}
		if manager.GetConnectionCount() != 0 {
			t.Errorf("Connection count = %d, want 0", manager.GetConnectionCount())
		}
	})

	t.Run("concurrent connection operations", func(t *testing.T) {
		manager := NewManager(DefaultTimeouts)
		concurrentOps := 100
		var wg sync.WaitGroup
		wg.Add(concurrentOps)

		connections := make([]*websocket.Conn, concurrentOps)
		for i := 0; i < concurrentOps; i++ {
			connections[i] = &websocket.Conn{}
		}

		for i := 0; i < concurrentOps; i++ {
			go func(conn *websocket.Conn) {
				defer wg.Done()
				manager.AddConnection(conn)
			}(connections[i])
		}
		wg.Wait()

		if manager.GetConnectionCount() != concurrentOps {
			t.Errorf("Connection count = %d, want %d", manager.GetConnectionCount(), concurrentOps)
		}

		for _, conn := range connections {
			manager.RemoveConnection(conn)
		}
		if manager.GetConnectionCount() != 0 {
			t.Errorf("Connection count = %d after cleanup, want 0", manager.GetConnectionCount())
		}
	})

	t.Run("timeout configuration", func(t *testing.T) {
		customTimeouts := TimeoutConfig{
			PongWait:   1 * time.Minute,
			PingPeriod: 54 * time.Second,
			WriteWait:  20 * time.Second,
		}

		manager := NewManager(customTimeouts)
		if manager.GetTimeouts() != customTimeouts {
			t.Error("Timeout configuration not set correctly")
		}
	})
}

func TestBroadcast(t *testing.T) {
	manager := NewManager(DefaultTimeouts)
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade: %v", err)
			return
		}
		manager.AddConnection(conn)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	// Wait for the server handler to register the connection
	deadline := time.Now().Add(2 * time.Second)
	for manager.GetConnectionCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Connection never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	sent := Event{Type: "assistant_sync", ItemID: "item-1", Status: "created"}
	manager.Broadcast(sent)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received Event
	if err := client.ReadJSON(&received); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if received != sent {
		t.Errorf("Received %+v, want %+v", received, sent)
	}
}
