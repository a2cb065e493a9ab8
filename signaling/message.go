/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package signaling defines the messages two call participants exchange
// through a signaling backend, the Channel the call controller talks to,
// and two Channel implementations: an in-memory pipe and a websocket client.
package signaling

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// MessageType is the kind of a signaling message.
type MessageType string

const (
	TypeOffer        MessageType = "offer"
	TypeAnswer       MessageType = "answer"
	TypeICECandidate MessageType = "iceCandidate"
	TypeHangup       MessageType = "hangup"
	// TypeAck is sent by the backend to confirm an offer was registered.
	TypeAck MessageType = "ack"
)

// Hangup reasons carried in Message.Reason.
const (
	ReasonBusy              = "busy"
	ReasonDeclined          = "declined"
	ReasonTimeout           = "timeout"
	ReasonLocalHangup       = "local_hangup"
	ReasonNetworkFailure    = "network_failure"
	ReasonNegotiationError  = "negotiation_error"
	ReasonMediaAccessDenied = "media_access_denied"
)

// ICECandidate is the wire form of a trickled ICE candidate.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// CandidateFromInit converts a pion candidate to its wire form.
func CandidateFromInit(c webrtc.ICECandidateInit) *ICECandidate {
	return &ICECandidate{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
}

// Init converts the candidate to the form pion accepts.
func (c *ICECandidate) Init() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
}

// Message is a single signaling message.
type Message struct {
	CallID       string        `json:"callId"`
	Type         MessageType   `json:"type"`
	SDP          string        `json:"sdp,omitempty"`
	ICECandidate *ICECandidate `json:"iceCandidate,omitempty"`
	FromUserID   string        `json:"fromUserId,omitempty"`
	ToUserID     string        `json:"toUserId,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// ErrInvalidMessage is wrapped by every Validate failure.
var ErrInvalidMessage = errors.New("invalid signaling message")

// Validate checks that m carries the fields its type requires.
func (m Message) Validate() error {
	if m.CallID == "" {
		return fmt.Errorf("%w: missing callId", ErrInvalidMessage)
	}
	switch m.Type {
	case TypeOffer, TypeAnswer:
		if m.SDP == "" {
			return fmt.Errorf("%w: %s without sdp", ErrInvalidMessage, m.Type)
		}
	case TypeICECandidate:
		if m.ICECandidate == nil {
			return fmt.Errorf("%w: iceCandidate without candidate", ErrInvalidMessage)
		}
	case TypeHangup, TypeAck:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}
	return nil
}
