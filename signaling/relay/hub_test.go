/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/tejzpr/p2pcall-go-sdk/signaling"
)

func startRelay(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil, zaptest.NewLogger(t))
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Shutdown()
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func connectUser(t *testing.T, hub *Hub, url, userID string) *signaling.Client {
	t.Helper()
	cfg := signaling.DefaultClientConfig()
	cfg.URL = url
	cfg.UserID = userID
	cfg.MaxRetries = 1
	cfg.BackoffInitial = 10 * time.Millisecond
	c := signaling.NewClient(cfg, zaptest.NewLogger(t))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect %s failed: %v", userID, err)
	}
	t.Cleanup(func() { _ = c.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for !hub.Online(userID) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !hub.Online(userID) {
		t.Fatalf("%s never registered with the hub", userID)
	}
	return c
}

func expect(t *testing.T, c *signaling.Client, typ signaling.MessageType) signaling.Message {
	t.Helper()
	select {
	case msg := <-c.Messages():
		if msg.Type != typ {
			t.Fatalf("Expected %s, got %+v", typ, msg)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %s", typ)
	}
	return signaling.Message{}
}

func expectNothing(t *testing.T, c *signaling.Client) {
	t.Helper()
	select {
	case msg := <-c.Messages():
		t.Fatalf("Unexpected message %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func send(t *testing.T, c *signaling.Client, msg signaling.Message) {
	t.Helper()
	if err := c.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
}

func TestRelayCallFlow(t *testing.T) {
	hub, url := startRelay(t)
	alice := connectUser(t, hub, url, "alice")
	bob := connectUser(t, hub, url, "bob")

	send(t, alice, signaling.Message{CallID: "call-1", Type: signaling.TypeOffer, SDP: "v=0", ToUserID: "bob"})

	ack := expect(t, alice, signaling.TypeAck)
	if ack.CallID != "call-1" {
		t.Errorf("Expected ack for call-1, got %s", ack.CallID)
	}
	offer := expect(t, bob, signaling.TypeOffer)
	if offer.FromUserID != "alice" || offer.SDP != "v=0" {
		t.Errorf("Unexpected forwarded offer: %+v", offer)
	}

	send(t, bob, signaling.Message{CallID: "call-1", Type: signaling.TypeAnswer, SDP: "v=0 answer"})
	answer := expect(t, alice, signaling.TypeAnswer)
	if answer.FromUserID != "bob" || answer.ToUserID != "alice" {
		t.Errorf("Unexpected forwarded answer: %+v", answer)
	}

	send(t, alice, signaling.Message{CallID: "call-1", Type: signaling.TypeICECandidate,
		ICECandidate: &signaling.ICECandidate{Candidate: "c1"}})
	cand := expect(t, bob, signaling.TypeICECandidate)
	if cand.ICECandidate.Candidate != "c1" {
		t.Errorf("Expected candidate c1, got %s", cand.ICECandidate.Candidate)
	}

	// Messages for unknown calls are dropped.
	send(t, alice, signaling.Message{CallID: "other", Type: signaling.TypeHangup})
	expectNothing(t, bob)

	send(t, bob, signaling.Message{CallID: "call-1", Type: signaling.TypeHangup})
	expect(t, alice, signaling.TypeHangup)
	if hub.Calls().Len() != 0 {
		t.Errorf("Expected call removed after hangup, got %d", hub.Calls().Len())
	}
}

func TestRelayBusy(t *testing.T) {
	t.Run("callee offline", func(t *testing.T) {
		hub, url := startRelay(t)
		alice := connectUser(t, hub, url, "alice")

		send(t, alice, signaling.Message{CallID: "call-1", Type: signaling.TypeOffer, SDP: "v=0", ToUserID: "bob"})
		msg := expect(t, alice, signaling.TypeHangup)
		if msg.Reason != signaling.ReasonBusy || msg.CallID != "call-1" {
			t.Errorf("Expected busy hangup for call-1, got %+v", msg)
		}
	})

	t.Run("callee in a call", func(t *testing.T) {
		hub, url := startRelay(t)
		alice := connectUser(t, hub, url, "alice")
		bob := connectUser(t, hub, url, "bob")
		carol := connectUser(t, hub, url, "carol")

		send(t, alice, signaling.Message{CallID: "call-1", Type: signaling.TypeOffer, SDP: "v=0", ToUserID: "bob"})
		expect(t, alice, signaling.TypeAck)
		expect(t, bob, signaling.TypeOffer)

		send(t, carol, signaling.Message{CallID: "call-2", Type: signaling.TypeOffer, SDP: "v=0", ToUserID: "bob"})
		msg := expect(t, carol, signaling.TypeHangup)
		if msg.Reason != signaling.ReasonBusy {
			t.Errorf("Expected busy, got %q", msg.Reason)
		}
		expectNothing(t, bob)
	})
}

func TestRelayDisconnectEndsCall(t *testing.T) {
	hub, url := startRelay(t)
	alice := connectUser(t, hub, url, "alice")
	bob := connectUser(t, hub, url, "bob")

	send(t, alice, signaling.Message{CallID: "call-1", Type: signaling.TypeOffer, SDP: "v=0", ToUserID: "bob"})
	expect(t, alice, signaling.TypeAck)
	expect(t, bob, signaling.TypeOffer)

	_ = bob.Close()

	msg := expect(t, alice, signaling.TypeHangup)
	if msg.Reason != signaling.ReasonNetworkFailure {
		t.Errorf("Expected network_failure, got %q", msg.Reason)
	}
	if _, ok := hub.Calls().Get("call-1"); ok {
		t.Error("Expected call removed after disconnect")
	}
}

func TestRelayRejectsMissingUser(t *testing.T) {
	hub := NewHub(nil, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}
