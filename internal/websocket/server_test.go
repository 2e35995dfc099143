package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/airlinked/commtime/pkg/logger"
)

func newTestServer(t *testing.T, statusRate float64, statusBurst int) (*Server, *websocket.Conn) {
	t.Helper()
	s := NewServer(statusRate, statusBurst, logger.NewNop())
	go s.Run()

	httpSrv := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(httpSrv.Close)

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	// Registration goes through the hub loop
	deadline := time.Now().Add(time.Second)
	for s.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.ClientCount() != 1 {
		t.Fatal("client never registered")
	}
	return s, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	return &msg
}

func TestBroadcastReachesClient(t *testing.T) {
	s, conn := newTestServer(t, 100, 100)

	s.Broadcast(&Message{
		Type: MessageTypePhaseChange,
		Data: map[string]any{"from": "pre_departure", "to": "in_flight"},
	})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypePhaseChange {
		t.Errorf("expected phase_change, got %s", msg.Type)
	}
	if msg.Data["to"] != "in_flight" {
		t.Errorf("unexpected payload: %v", msg.Data)
	}
}

func TestStatusUpdatesAreRateLimited(t *testing.T) {
	// Burst of 2, then the limiter drops status updates
	s, conn := newTestServer(t, 0.001, 2)

	for i := 0; i < 10; i++ {
		s.Broadcast(&Message{
			Type: MessageTypeStatusUpdate,
			Data: map[string]any{"seq": float64(i)},
		})
	}
	// Event messages bypass the limiter entirely
	s.Broadcast(&Message{
		Type: MessageTypeAdvisory,
		Data: map[string]any{"marker": true},
	})

	var statusCount int
	for {
		msg := readMessage(t, conn)
		if msg.Type == MessageTypeAdvisory {
			break
		}
		if msg.Type == MessageTypeStatusUpdate {
			statusCount++
		}
	}
	if statusCount != 2 {
		t.Errorf("expected exactly the burst of 2 status updates, got %d", statusCount)
	}
}

func TestClientCountDropsOnDisconnect(t *testing.T) {
	s, conn := newTestServer(t, 10, 10)

	conn.Close()
	deadline := time.Now().Add(time.Second)
	for s.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.ClientCount() != 0 {
		t.Error("expected client to unregister on disconnect")
	}
}
