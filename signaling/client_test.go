/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

// testServer accepts websocket connections and records what it receives.
type testServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	userIDs  []string
	received []Message
	arrived  chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	s := &testServer{arrived: make(chan struct{}, 16)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.userIDs = append(s.userIDs, r.URL.Query().Get("userId"))
		s.mu.Unlock()
		s.arrived <- struct{}{}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg Message
			if err := json.Unmarshal(data, &msg); err == nil {
				s.mu.Lock()
				s.received = append(s.received, msg)
				s.mu.Unlock()
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *testServer) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case <-s.arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for connection")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[len(s.conns)-1]
}

func (s *testServer) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.received))
	copy(out, s.received)
	return out
}

func testConfig(url string) *ClientConfig {
	cfg := DefaultClientConfig()
	cfg.URL = url
	cfg.UserID = "alice"
	cfg.BackoffInitial = 10 * time.Millisecond
	cfg.BackoffMax = 50 * time.Millisecond
	cfg.MaxRetries = 3
	return cfg
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	if cfg.PingInterval != 30*time.Second {
		t.Errorf("Expected PingInterval 30s, got %v", cfg.PingInterval)
	}
	if cfg.PongTimeout != 10*time.Second {
		t.Errorf("Expected PongTimeout 10s, got %v", cfg.PongTimeout)
	}
	if cfg.BackoffMax != 32*time.Second {
		t.Errorf("Expected BackoffMax 32s, got %v", cfg.BackoffMax)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("Expected MaxRetries 5, got %d", cfg.MaxRetries)
	}
}

func TestClientSendReceive(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(testConfig(server.wsURL()), zaptest.NewLogger(t))
	defer client.Close()

	if err := client.Send(context.Background(), Message{CallID: "c", Type: TypeHangup}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected before Connect, got %v", err)
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	serverConn := server.waitConn(t)
	if !client.Connected() {
		t.Error("Expected client connected")
	}

	server.mu.Lock()
	userID := server.userIDs[0]
	server.mu.Unlock()
	if userID != "alice" {
		t.Errorf("Expected userId alice, got %q", userID)
	}

	if err := client.Send(context.Background(), Message{CallID: "c1", Type: TypeOffer, SDP: "v=0", ToUserID: "bob"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(server.messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	got := server.messages()
	if len(got) != 1 || got[0].CallID != "c1" || got[0].FromUserID != "alice" {
		t.Fatalf("Unexpected server messages: %+v", got)
	}

	for _, id := range []string{"a", "b", "c"} {
		data, _ := json.Marshal(Message{CallID: id, Type: TypeHangup})
		if err := serverConn.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatalf("server write failed: %v", err)
		}
	}
	// Malformed frames are skipped.
	_ = serverConn.WriteMessage(websocket.TextMessage, []byte("{not json"))

	for _, want := range []string{"a", "b", "c"} {
		select {
		case msg := <-client.Messages():
			if msg.CallID != want {
				t.Fatalf("Expected %s, got %s", want, msg.CallID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for %s", want)
		}
	}
}

func TestClientReconnects(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(testConfig(server.wsURL()), zaptest.NewLogger(t))
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	first := server.waitConn(t)
	_ = first.Close()

	second := server.waitConn(t)
	if second == first {
		t.Fatal("Expected a new connection after the first one dropped")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !client.Connected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !client.Connected() {
		t.Fatal("Expected client to reconnect")
	}
}

func TestClientConnectFailure(t *testing.T) {
	server := newTestServer(t)
	url := server.wsURL()
	server.Close()

	cfg := testConfig(url)
	cfg.MaxRetries = 1
	client := NewClient(cfg, zaptest.NewLogger(t))
	defer client.Close()

	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("Expected Connect to fail against a closed server")
	}
	if client.Connected() {
		t.Error("Expected client not connected")
	}
}

func TestClientClose(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(testConfig(server.wsURL()), zaptest.NewLogger(t))

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	server.waitConn(t)

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if err := client.Send(context.Background(), Message{CallID: "c", Type: TypeHangup}); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Expected ErrChannelClosed after Close, got %v", err)
	}
	if err := client.Connect(context.Background()); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Expected ErrChannelClosed on Connect after Close, got %v", err)
	}

	// No reconnect after a deliberate close.
	select {
	case <-server.arrived:
		t.Error("Unexpected reconnect after Close")
	case <-time.After(200 * time.Millisecond):
	}
}
