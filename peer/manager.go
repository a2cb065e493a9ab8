/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package peer wraps one WebRTC peer connection per call. It attaches local
// tracks, produces offers and answers, buffers remote ICE candidates until
// the remote description is known, and reports connection events on a
// channel.
package peer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/tejzpr/p2pcall-go-sdk/callsdk"
)

// ErrClosed is returned by operations on a closed Manager.
var ErrClosed = errors.New("peer connection closed")

// EventKind identifies a Manager event.
type EventKind int

const (
	// EventICECandidate carries a locally gathered candidate to trickle to the remote side.
	EventICECandidate EventKind = iota + 1
	// EventConnectionState carries a connection state change.
	EventConnectionState
	// EventRemoteTrack carries a newly received remote track.
	EventRemoteTrack
)

func (k EventKind) String() string {
	switch k {
	case EventICECandidate:
		return "ice_candidate"
	case EventConnectionState:
		return "connection_state"
	case EventRemoteTrack:
		return "remote_track"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is something the peer connection reported.
type Event struct {
	CallID    string
	Kind      EventKind
	Candidate webrtc.ICECandidateInit
	State     webrtc.PeerConnectionState
	Track     RemoteTrack
}

// Config holds the configuration for peer connections
type Config struct {
	// ICEServers is the ordered list of STUN servers every connection uses.
	ICEServers []webrtc.ICEServer
	// EventBuffer is the capacity of each Manager's event channel. Default: 128.
	EventBuffer int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
		EventBuffer: 128,
	}
}

// Factory creates one Manager per call.
type Factory struct {
	newConn ConnFunc
	config  *Config
	logger  *zap.Logger
}

// NewFactory creates a Factory backed by pion.
func NewFactory(config *Config, logger *zap.Logger) (*Factory, error) {
	api, err := newPionAPI()
	if err != nil {
		return nil, err
	}
	return NewFactoryWithConn(pionConnFunc(api), config, logger), nil
}

// NewFactoryWithConn creates a Factory that builds connections with newConn.
func NewFactoryWithConn(newConn ConnFunc, config *Config, logger *zap.Logger) *Factory {
	if config == nil {
		config = DefaultConfig()
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 128
	}
	return &Factory{
		newConn: newConn,
		config:  config,
		logger:  callsdk.OrNop(logger).Named("peer"),
	}
}

// CreateOptions are per-call settings for Factory.Create.
type CreateOptions struct {
	// Candidates is a buffer that already holds candidates received for this
	// call. The Manager takes ownership of it. Nil means a fresh buffer.
	Candidates *CandidateBuffer
	// ICEServers are appended to the configured STUN servers, typically
	// TURN servers with credentials provisioned for this call.
	ICEServers []webrtc.ICEServer
}

// Create opens a peer connection for callID and attaches every track as a sender.
func (f *Factory) Create(callID string, tracks []webrtc.TrackLocal, opts CreateOptions) (*Manager, error) {
	servers := make([]webrtc.ICEServer, 0, len(f.config.ICEServers)+len(opts.ICEServers))
	servers = append(servers, f.config.ICEServers...)
	servers = append(servers, opts.ICEServers...)

	conn, err := f.newConn(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, err
	}

	candidates := opts.Candidates
	if candidates == nil {
		candidates = NewCandidateBuffer()
	}

	m := &Manager{
		callID:     callID,
		conn:       conn,
		logger:     f.logger.With(zap.String("call_id", callID)),
		candidates: candidates,
		senders:    make(map[webrtc.RTPCodecType]Sender),
		events:     make(chan Event, f.config.EventBuffer),
		done:       make(chan struct{}),
	}

	conn.OnICECandidate(func(c webrtc.ICECandidateInit) {
		m.emit(Event{Kind: EventICECandidate, Candidate: c})
	})
	conn.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		m.logger.Debug("connection state changed", zap.String("state", s.String()))
		m.emit(Event{Kind: EventConnectionState, State: s})
	})
	conn.OnTrack(func(t RemoteTrack) {
		m.logger.Debug("remote track",
			zap.String("track_id", t.ID),
			zap.String("kind", t.Kind.String()))
		m.emit(Event{Kind: EventRemoteTrack, Track: t})
	})

	for _, track := range tracks {
		sender, err := conn.AddTrack(track)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to add %s track: %w", track.Kind(), err)
		}
		m.senders[track.Kind()] = sender
	}

	return m, nil
}

// Manager owns the peer connection for one call.
type Manager struct {
	callID string
	conn   Conn
	logger *zap.Logger

	mu         sync.Mutex
	candidates *CandidateBuffer
	remoteSet  bool
	closed     bool
	senders    map[webrtc.RTPCodecType]Sender

	events chan Event
	done   chan struct{}
}

// CallID returns the call this connection belongs to.
func (m *Manager) CallID() string { return m.callID }

// Events returns the channel connection events are delivered on. Events
// queue until read, so a consumer that starts late still sees them in order.
func (m *Manager) Events() <-chan Event { return m.events }

func (m *Manager) emit(ev Event) {
	ev.CallID = m.callID
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// CreateOffer creates an offer and sets it as the local description.
// Candidates are trickled separately through Events.
func (m *Manager) CreateOffer() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", callsdk.NewNegotiationFailure("createOffer", m.callID, ErrClosed)
	}

	offer, err := m.conn.CreateOffer()
	if err != nil {
		return "", callsdk.NewNegotiationFailure("createOffer", m.callID, err)
	}
	if err := m.conn.SetLocalDescription(offer); err != nil {
		return "", callsdk.NewNegotiationFailure("setLocalDescription", m.callID, err)
	}
	return offer.SDP, nil
}

// CreateAnswer applies the remote offer, draining buffered candidates, and
// returns an answer set as the local description.
func (m *Manager) CreateAnswer(remoteSDP string) (string, error) {
	if err := m.SetRemoteDescription(webrtc.SDPTypeOffer, remoteSDP); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", callsdk.NewNegotiationFailure("createAnswer", m.callID, ErrClosed)
	}

	answer, err := m.conn.CreateAnswer()
	if err != nil {
		return "", callsdk.NewNegotiationFailure("createAnswer", m.callID, err)
	}
	if err := m.conn.SetLocalDescription(answer); err != nil {
		return "", callsdk.NewNegotiationFailure("setLocalDescription", m.callID, err)
	}
	return answer.SDP, nil
}

// SetRemoteDescription applies the remote offer or answer and then applies
// every buffered candidate in arrival order. A candidate that fails is
// logged and skipped. An answer arriving when the connection is already
// stable is treated as a duplicate and ignored.
func (m *Manager) SetRemoteDescription(sdpType webrtc.SDPType, sdp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return callsdk.NewNegotiationFailure("setRemoteDescription", m.callID, ErrClosed)
	}

	if sdpType == webrtc.SDPTypeAnswer && m.remoteSet &&
		m.conn.SignalingState() == webrtc.SignalingStateStable {
		m.logger.Debug("ignoring duplicate answer")
		return nil
	}

	err := m.conn.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: sdp})
	if err != nil {
		return callsdk.NewNegotiationFailure("setRemoteDescription", m.callID, err)
	}
	m.remoteSet = true

	pending := m.candidates.Drain()
	for _, c := range pending {
		m.applyLocked(c)
	}
	if len(pending) > 0 {
		m.logger.Debug("applied buffered candidates", zap.Int("count", len(pending)))
	}
	return nil
}

// AddICECandidate applies c when the remote description is set and buffers
// it otherwise. A failure is logged and returned as an ICECandidateError;
// it never affects the connection.
func (m *Manager) AddICECandidate(c webrtc.ICECandidateInit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return callsdk.NewICECandidateError(m.callID, ErrClosed)
	}
	if !m.remoteSet {
		m.candidates.Push(c)
		return nil
	}
	return m.applyLocked(c)
}

func (m *Manager) applyLocked(c webrtc.ICECandidateInit) error {
	if err := m.conn.AddICECandidate(c); err != nil {
		m.logger.Warn("ignoring remote candidate",
			zap.String("candidate", c.Candidate),
			zap.Error(err))
		return callsdk.NewICECandidateError(m.callID, err)
	}
	return nil
}

// RemoteDescriptionSet reports whether a remote description has been applied.
func (m *Manager) RemoteDescriptionSet() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remoteSet
}

// BufferedCandidates returns how many candidates are waiting for the remote description.
func (m *Manager) BufferedCandidates() int {
	return m.candidates.Len()
}

// ReplaceVideoTrack swaps the track on the existing video sender. No new
// offer is created.
func (m *Manager) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	sender, ok := m.senders[webrtc.RTPCodecTypeVideo]
	if !ok {
		return fmt.Errorf("call %s has no video sender", m.callID)
	}
	if err := sender.ReplaceTrack(track); err != nil {
		return fmt.Errorf("failed to replace video track: %w", err)
	}
	return nil
}

// Close closes the connection and discards buffered candidates. Only the
// first call has any effect.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)
	m.candidates.Clear()
	m.mu.Unlock()

	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("failed to close peer connection: %w", err)
	}
	m.logger.Debug("peer connection closed")
	return nil
}

// Closed reports whether Close has been called.
func (m *Manager) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
