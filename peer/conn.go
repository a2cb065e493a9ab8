/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package peer

import (
	"errors"
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack describes a track received from the remote participant.
type RemoteTrack struct {
	ID       string
	StreamID string
	Kind     webrtc.RTPCodecType
	// Remote is the pion track to read RTP from. It is nil for test doubles.
	Remote *webrtc.TrackRemote
}

// ErrNoRemote is returned by Drain on a RemoteTrack without a pion track.
var ErrNoRemote = errors.New("remote track has no reader")

// Drain reads RTP from the remote track and hands each packet to fn until
// the track ends. It returns the number of packets read.
func (t RemoteTrack) Drain(fn func(*rtp.Packet)) (int, error) {
	if t.Remote == nil {
		return 0, ErrNoRemote
	}
	n := 0
	for {
		pkt, _, err := t.Remote.ReadRTP()
		if err != nil {
			return n, err
		}
		n++
		if fn != nil {
			fn(pkt)
		}
	}
}

// Sender is the sending side of one attached local track.
type Sender interface {
	ReplaceTrack(track webrtc.TrackLocal) error
}

// Conn is the peer connection surface the Manager drives. The pion
// implementation is returned by Factory; tests substitute their own.
type Conn interface {
	AddTrack(track webrtc.TrackLocal) (Sender, error)
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(c webrtc.ICECandidateInit) error
	SignalingState() webrtc.SignalingState
	OnICECandidate(fn func(c webrtc.ICECandidateInit))
	OnTrack(fn func(t RemoteTrack))
	OnConnectionStateChange(fn func(s webrtc.PeerConnectionState))
	Close() error
}

// ConnFunc creates a Conn for one call.
type ConnFunc func(cfg webrtc.Configuration) (Conn, error)

// newPionAPI builds the pion API shared by every connection: default
// codecs (Opus, VP8 and friends) plus the default interceptors for RTCP
// reports, NACK and TWCC.
func newPionAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("failed to register default interceptors: %w", err)
	}

	settings := webrtc.SettingEngine{}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithSettingEngine(settings),
		webrtc.WithInterceptorRegistry(i),
	), nil
}

func pionConnFunc(api *webrtc.API) ConnFunc {
	return func(cfg webrtc.Configuration) (Conn, error) {
		pc, err := api.NewPeerConnection(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create peer connection: %w", err)
		}
		return &pionConn{pc: pc}, nil
	}
}

// pionConn adapts *webrtc.PeerConnection to Conn.
type pionConn struct {
	pc *webrtc.PeerConnection
}

func (c *pionConn) AddTrack(track webrtc.TrackLocal) (Sender, error) {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return nil, err
	}

	// Read RTCP so the interceptors keep running.
	go func() {
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, rtcpErr := sender.Read(rtcpBuf); rtcpErr != nil {
				return
			}
		}
	}()

	return sender, nil
}

func (c *pionConn) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *pionConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *pionConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *pionConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionConn) SignalingState() webrtc.SignalingState {
	return c.pc.SignalingState()
}

func (c *pionConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		// nil marks the end of gathering
		if candidate == nil {
			return
		}
		fn(candidate.ToJSON())
	})
}

func (c *pionConn) OnTrack(fn func(RemoteTrack)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(RemoteTrack{
			ID:       track.ID(),
			StreamID: track.StreamID(),
			Kind:     track.Kind(),
			Remote:   track,
		})
	})
}

func (c *pionConn) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}
