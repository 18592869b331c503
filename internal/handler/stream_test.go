package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hitoshi/jobdash/internal/model"
)

// mockStreamGauge はStreamGaugeのモック実装。
type mockStreamGauge struct {
	mu     sync.Mutex
	values []int
}

func (m *mockStreamGauge) SetStreamClients(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = append(m.values, n)
}

func (m *mockStreamGauge) last() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.values) == 0 {
		return -1
	}
	return m.values[len(m.values)-1]
}

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial stream: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusSwitchingProtocols)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) snapshotMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	var msg snapshotMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStreamHub_SendsLatestThenUpdates(t *testing.T) {
	gauge := &mockStreamGauge{}
	hub := NewStreamHub("", gauge, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	hub.Broadcast([]*model.CompositeRecord{
		{UUID: "r1", Summary: model.Summary{JDURL: "https://a.example/1"}},
	})

	conn := dialStream(t, srv)

	// 接続直後に保持している最新の一覧が届く
	first := readSnapshot(t, conn)
	if first.Type != "snapshot" || len(first.Records) != 1 || first.Records[0].Label != "https://a.example/1" {
		t.Fatalf("first snapshot = %+v", first)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}
	if gauge.last() != 1 {
		t.Errorf("gauge = %d, want 1", gauge.last())
	}

	hub.Broadcast([]*model.CompositeRecord{
		{UUID: "r2"},
		{UUID: "r1"},
	})
	second := readSnapshot(t, conn)
	if len(second.Records) != 2 || second.Records[0].UUID != "r2" || second.Records[1].UUID != "r1" {
		t.Fatalf("second snapshot = %+v", second)
	}
}

func TestStreamHub_UnregistersOnClientClose(t *testing.T) {
	gauge := &mockStreamGauge{}
	hub := NewStreamHub("", gauge, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	hub.Broadcast([]*model.CompositeRecord{})
	conn := dialStream(t, srv)
	readSnapshot(t, conn)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitFor(t, func() bool { return hub.ClientCount() == 0 })
	waitFor(t, func() bool { return gauge.last() == 0 })
}

func TestStreamHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewStreamHub("", nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	hub.Broadcast([]*model.CompositeRecord{})
	conn := dialStream(t, srv)
	readSnapshot(t, conn)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("ReadMessage() error = %v, want close 1001", err)
	}
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestStreamHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewStreamHub("http://localhost:3000", nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("foreign origin should be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %v, want 403", resp)
	}
}

func TestCheckStreamOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed string
		want    bool
	}{
		{"Originなし", "", "http://localhost:3000", true},
		{"許可されたOrigin", "http://localhost:3000", "http://localhost:3000", true},
		{"同一ホスト", "http://api.example", "http://localhost:3000", true},
		{"別ホスト", "http://evil.example", "http://localhost:3000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://api.example/api/jds/stream", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := checkStreamOrigin(req, tt.allowed); got != tt.want {
				t.Errorf("checkStreamOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
