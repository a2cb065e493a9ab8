/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap/zaptest"

	"github.com/tejzpr/p2pcall-go-sdk/calling"
	"github.com/tejzpr/p2pcall-go-sdk/media"
	"github.com/tejzpr/p2pcall-go-sdk/media/mediatest"
	"github.com/tejzpr/p2pcall-go-sdk/peer/peertest"
	"github.com/tejzpr/p2pcall-go-sdk/signaling"
	"github.com/tejzpr/p2pcall-go-sdk/timeout"
)

const waitTimeout = 2 * time.Second

func sdpFor(video bool) string {
	s := "v=0\r\no=- 7 1 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n" +
		"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\nc=IN IP4 0.0.0.0\r\na=mid:0\r\n"
	if video {
		s += "m=video 9 UDP/TLS/RTP/SAVPF 96\r\nc=IN IP4 0.0.0.0\r\na=mid:1\r\n"
	}
	return s
}

type recorded struct {
	key  calling.EventKey
	data interface{}
}

// recorder collects every controller event in order.
type recorder struct {
	ch chan recorded
}

func record(c *calling.Controller) *recorder {
	r := &recorder{ch: make(chan recorded, 256)}
	for _, key := range []calling.EventKey{
		calling.EventIncomingCall,
		calling.EventStateChanged,
		calling.EventRemoteStream,
		calling.EventEnded,
		calling.EventMediaError,
	} {
		key := key
		c.On(key, func(data interface{}) { r.ch <- recorded{key: key, data: data} })
	}
	return r
}

// waitFor skips events until one with key satisfies match.
func (r *recorder) waitFor(t *testing.T, key calling.EventKey, match func(interface{}) bool) interface{} {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-r.ch:
			if ev.key == key && (match == nil || match(ev.data)) {
				return ev.data
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for %s event", key)
			return nil
		}
	}
}

func (r *recorder) waitState(t *testing.T, state calling.State) calling.StateChange {
	t.Helper()
	return r.waitFor(t, calling.EventStateChanged, func(d interface{}) bool {
		return d.(calling.StateChange).To == state
	}).(calling.StateChange)
}

func (r *recorder) waitEnded(t *testing.T) calling.Session {
	t.Helper()
	return r.waitFor(t, calling.EventEnded, nil).(calling.Session)
}

// expectQuiet fails if any event arrives within a short window.
func (r *recorder) expectQuiet(t *testing.T) {
	t.Helper()
	select {
	case ev := <-r.ch:
		t.Fatalf("Unexpected %s event: %+v", ev.key, ev.data)
	case <-time.After(100 * time.Millisecond):
	}
}

func expectMsg(t *testing.T, end *signaling.PipeEnd, typ signaling.MessageType) signaling.Message {
	t.Helper()
	select {
	case msg := <-end.Messages():
		if msg.Type != typ {
			t.Fatalf("Expected %s message, got %+v", typ, msg)
		}
		return msg
	case <-time.After(waitTimeout):
		t.Fatalf("Timed out waiting for %s message", typ)
	}
	return signaling.Message{}
}

func expectNoMsg(t *testing.T, end *signaling.PipeEnd) {
	t.Helper()
	select {
	case msg := <-end.Messages():
		t.Fatalf("Unexpected message %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func send(t *testing.T, end *signaling.PipeEnd, msg signaling.Message) {
	t.Helper()
	if err := end.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
}

// party is one controller with fake devices and connections.
type party struct {
	ctrl      *calling.Controller
	source    *mediatest.Source
	network   *peertest.Network
	scheduler *timeout.Scheduler
	events    *recorder
}

func newParty(t *testing.T, userID string, end signaling.Channel, clk *clock.Mock) *party {
	t.Helper()
	logger := zaptest.NewLogger(t)
	p := &party{
		source:    mediatest.NewSource(),
		network:   peertest.NewNetwork(),
		scheduler: timeout.New(clk, logger),
	}

	ctrl, err := calling.New(calling.Config{LocalUserID: userID}, calling.Dependencies{
		Signaling: end,
		Media:     media.NewController(p.source, nil, logger),
		Peers:     p.network.Factory(nil, logger),
		Scheduler: p.scheduler,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	p.ctrl = ctrl
	p.events = record(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = ctrl.Run(ctx) }()
	t.Cleanup(func() {
		_ = ctrl.Close(context.Background())
		cancel()
		<-ctrl.Done()
	})
	return p
}

// harness is a controller for alice with the test playing bob.
type harness struct {
	*party
	clock  *clock.Mock
	remote *signaling.PipeEnd
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	local, remote := signaling.NewPipe("alice", "bob")
	clk := clock.NewMock()
	return &harness{
		party:  newParty(t, "alice", local, clk),
		clock:  clk,
		remote: remote,
	}
}

// outgoing places a call and returns its id and the offer bob received.
func (h *harness) outgoing(t *testing.T, mediaType media.Type) (string, signaling.Message) {
	t.Helper()
	callID, err := h.ctrl.Initiate(context.Background(), "bob", mediaType)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	offer := expectMsg(t, h.remote, signaling.TypeOffer)
	h.events.waitState(t, calling.StateOutgoingRinging)
	return callID, offer
}

// active drives an outgoing call to Active.
func (h *harness) active(t *testing.T, mediaType media.Type) (string, *peertest.Conn) {
	t.Helper()
	callID, _ := h.outgoing(t, mediaType)
	send(t, h.remote, signaling.Message{CallID: callID, Type: signaling.TypeAnswer, SDP: sdpFor(mediaType == media.TypeVideo)})
	h.events.waitState(t, calling.StateNegotiating)

	conn := h.network.Last()
	conn.EmitState(webrtc.PeerConnectionStateConnected)
	h.events.waitState(t, calling.StateActive)
	return callID, conn
}

// incoming delivers an offer from bob and waits for it to ring.
func (h *harness) incoming(t *testing.T, callID string, video bool) calling.Session {
	t.Helper()
	send(t, h.remote, signaling.Message{CallID: callID, Type: signaling.TypeOffer, SDP: sdpFor(video)})
	return h.events.waitFor(t, calling.EventIncomingCall, nil).(calling.Session)
}
