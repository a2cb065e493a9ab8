/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package peertest provides a scriptable peer.Conn for tests.
package peertest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/tejzpr/p2pcall-go-sdk/peer"
)

// ErrRejected is returned by AddICECandidate for candidates marked with Reject.
var ErrRejected = errors.New("candidate rejected")

// Sender records ReplaceTrack calls.
type Sender struct {
	mu       sync.Mutex
	track    webrtc.TrackLocal
	replaced int
}

// ReplaceTrack implements peer.Sender.
func (s *Sender) ReplaceTrack(track webrtc.TrackLocal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = track
	s.replaced++
	return nil
}

// Track returns the track currently attached.
func (s *Sender) Track() webrtc.TrackLocal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

// Replaced returns how many times ReplaceTrack was called.
func (s *Sender) Replaced() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaced
}

// Conn is a fake peer.Conn. Descriptions it produces are minimal but valid
// SDP describing the attached tracks.
type Conn struct {
	mu sync.Mutex

	config  webrtc.Configuration
	senders map[webrtc.RTPCodecType]*Sender
	kinds   []webrtc.RTPCodecType
	state   webrtc.SignalingState
	local   *webrtc.SessionDescription
	remote  *webrtc.SessionDescription
	applied []webrtc.ICECandidateInit
	reject  map[string]bool
	offers  int
	answers int
	closes  int

	failOffer  error
	failAnswer error
	failRemote error

	onICE   func(webrtc.ICECandidateInit)
	onTrack func(peer.RemoteTrack)
	onState func(webrtc.PeerConnectionState)
}

// NewConn creates a fake connection.
func NewConn(cfg webrtc.Configuration) *Conn {
	return &Conn{
		config:  cfg,
		senders: make(map[webrtc.RTPCodecType]*Sender),
		state:   webrtc.SignalingStateStable,
		reject:  make(map[string]bool),
	}
}

func (c *Conn) AddTrack(track webrtc.TrackLocal) (peer.Sender, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &Sender{track: track}
	c.senders[track.Kind()] = s
	c.kinds = append(c.kinds, track.Kind())
	return s, nil
}

func (c *Conn) describe(t webrtc.SDPType) webrtc.SessionDescription {
	var b strings.Builder
	b.WriteString("v=0\r\n")
	fmt.Fprintf(&b, "o=- %d 1 IN IP4 127.0.0.1\r\n", c.offers+c.answers)
	b.WriteString("s=-\r\nt=0 0\r\n")
	for i, k := range c.kinds {
		switch k {
		case webrtc.RTPCodecTypeAudio:
			b.WriteString("m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n")
		case webrtc.RTPCodecTypeVideo:
			b.WriteString("m=video 9 UDP/TLS/RTP/SAVPF 96\r\n")
		default:
			continue
		}
		b.WriteString("c=IN IP4 0.0.0.0\r\n")
		fmt.Fprintf(&b, "a=mid:%d\r\n", i)
	}
	return webrtc.SessionDescription{Type: t, SDP: b.String()}
}

func (c *Conn) CreateOffer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOffer != nil {
		return webrtc.SessionDescription{}, c.failOffer
	}
	c.offers++
	return c.describe(webrtc.SDPTypeOffer), nil
}

func (c *Conn) CreateAnswer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAnswer != nil {
		return webrtc.SessionDescription{}, c.failAnswer
	}
	if c.remote == nil || c.remote.Type != webrtc.SDPTypeOffer {
		return webrtc.SessionDescription{}, errors.New("no remote offer")
	}
	c.answers++
	return c.describe(webrtc.SDPTypeAnswer), nil
}

func (c *Conn) SetLocalDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local = &desc
	if desc.Type == webrtc.SDPTypeOffer {
		c.state = webrtc.SignalingStateHaveLocalOffer
	} else {
		c.state = webrtc.SignalingStateStable
	}
	return nil
}

func (c *Conn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failRemote != nil {
		return c.failRemote
	}
	if desc.SDP == "" {
		return errors.New("empty session description")
	}
	c.remote = &desc
	if desc.Type == webrtc.SDPTypeOffer {
		c.state = webrtc.SignalingStateHaveRemoteOffer
	} else {
		c.state = webrtc.SignalingStateStable
	}
	return nil
}

func (c *Conn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return errors.New("remote description not set")
	}
	if c.reject[candidate.Candidate] {
		return ErrRejected
	}
	c.applied = append(c.applied, candidate)
	return nil
}

func (c *Conn) SignalingState() webrtc.SignalingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onICE = fn
}

func (c *Conn) OnTrack(fn func(peer.RemoteTrack)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = fn
}

func (c *Conn) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

// --- Scripting ---

// FailOffer makes CreateOffer return err.
func (c *Conn) FailOffer(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failOffer = err
}

// FailAnswer makes CreateAnswer return err.
func (c *Conn) FailAnswer(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAnswer = err
}

// FailRemote makes SetRemoteDescription return err.
func (c *Conn) FailRemote(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failRemote = err
}

// Reject makes AddICECandidate fail for the given candidate string.
func (c *Conn) Reject(candidate string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reject[candidate] = true
}

// EmitState reports a connection state change.
func (c *Conn) EmitState(s webrtc.PeerConnectionState) {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// EmitCandidate reports a locally gathered candidate.
func (c *Conn) EmitCandidate(candidate string) {
	c.mu.Lock()
	fn := c.onICE
	c.mu.Unlock()
	if fn != nil {
		mid := "0"
		idx := uint16(0)
		fn(webrtc.ICECandidateInit{Candidate: candidate, SDPMid: &mid, SDPMLineIndex: &idx})
	}
}

// EmitTrack reports a remote track.
func (c *Conn) EmitTrack(t peer.RemoteTrack) {
	c.mu.Lock()
	fn := c.onTrack
	c.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

// --- Inspection ---

// Config returns the configuration the connection was created with.
func (c *Conn) Config() webrtc.Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// Applied returns the remote candidates applied so far, in order.
func (c *Conn) Applied() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.applied))
	for i, a := range c.applied {
		out[i] = a.Candidate
	}
	return out
}

// Offers returns how many offers were created.
func (c *Conn) Offers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offers
}

// Answers returns how many answers were created.
func (c *Conn) Answers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers
}

// Closes returns how many times Close was called.
func (c *Conn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Sender returns the sender for the given kind, or nil.
func (c *Conn) Sender(kind webrtc.RTPCodecType) *Sender {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.senders[kind]
}

// Remote returns the applied remote description, or nil.
func (c *Conn) Remote() *webrtc.SessionDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

// Network creates fake connections and remembers them in creation order.
type Network struct {
	mu    sync.Mutex
	conns []*Conn
	setup func(*Conn)
}

// NewNetwork creates an empty Network.
func NewNetwork() *Network {
	return &Network{}
}

// OnCreate runs fn on every connection right after it is created, before
// the Manager uses it.
func (n *Network) OnCreate(fn func(*Conn)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.setup = fn
}

// NewConn implements peer.ConnFunc.
func (n *Network) NewConn(cfg webrtc.Configuration) (peer.Conn, error) {
	c := NewConn(cfg)
	n.mu.Lock()
	n.conns = append(n.conns, c)
	setup := n.setup
	n.mu.Unlock()
	if setup != nil {
		setup(c)
	}
	return c, nil
}

// Conns returns every connection created so far.
func (n *Network) Conns() []*Conn {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Conn, len(n.conns))
	copy(out, n.conns)
	return out
}

// Last returns the most recently created connection, or nil.
func (n *Network) Last() *Conn {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.conns) == 0 {
		return nil
	}
	return n.conns[len(n.conns)-1]
}

// Factory returns a peer.Factory whose connections come from this Network.
func (n *Network) Factory(config *peer.Config, logger *zap.Logger) *peer.Factory {
	return peer.NewFactoryWithConn(n.NewConn, config, logger)
}
