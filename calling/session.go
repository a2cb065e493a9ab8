/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import (
	"time"

	"github.com/tejzpr/p2pcall-go-sdk/media"
	"github.com/tejzpr/p2pcall-go-sdk/peer"
	"github.com/tejzpr/p2pcall-go-sdk/signaling"
	"github.com/tejzpr/p2pcall-go-sdk/timeout"
)

// ---- Call State Enums ----

// State is the lifecycle state of a call session
type State string

const (
	StateIdle            State = "idle"
	StateOutgoingRinging State = "outgoing_ringing"
	StateIncomingRinging State = "incoming_ringing"
	StateNegotiating     State = "negotiating"
	StateActive          State = "active"
	StateEnded           State = "ended"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s == StateEnded }

// Direction indicates who placed the call
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// EndReason records why a session ended
type EndReason string

const (
	EndReasonDeclined          EndReason = "declined"
	EndReasonTimeout           EndReason = "timeout"
	EndReasonLocalHangup       EndReason = "local_hangup"
	EndReasonRemoteHangup      EndReason = "remote_hangup"
	EndReasonNetworkFailure    EndReason = "network_failure"
	EndReasonNegotiationError  EndReason = "negotiation_error"
	EndReasonBusy              EndReason = "busy"
	EndReasonMediaAccessDenied EndReason = "media_access_denied"
)

// wireReason maps an end reason to the hangup reason sent to the remote side.
func (r EndReason) wireReason() string {
	switch r {
	case EndReasonDeclined:
		return signaling.ReasonDeclined
	case EndReasonTimeout:
		return signaling.ReasonTimeout
	case EndReasonNetworkFailure:
		return signaling.ReasonNetworkFailure
	case EndReasonNegotiationError:
		return signaling.ReasonNegotiationError
	case EndReasonMediaAccessDenied:
		return signaling.ReasonMediaAccessDenied
	case EndReasonBusy:
		return signaling.ReasonBusy
	default:
		return signaling.ReasonLocalHangup
	}
}

// Session is a snapshot of one call. ConnectedAt and EndedAt are zero
// until the call connects or ends.
type Session struct {
	CallID       string
	LocalUserID  string
	RemoteUserID string
	Direction    Direction
	MediaType    media.Type
	State        State
	CreatedAt    time.Time
	ConnectedAt  time.Time
	EndedAt      time.Time
	EndReason    EndReason
	// Registered is set once the backend acknowledged an outgoing call.
	Registered bool
}

// callSession is the controller's private record for the current call. It
// is only touched from the event loop and is discarded when the call ends.
type callSession struct {
	Session

	stream      *media.Stream
	peer        *peer.Manager
	candidates  *peer.CandidateBuffer
	remoteOffer string

	autoDecline *timeout.Handle
	ringTimer   *timeout.Handle
	negotiation *timeout.Handle

	cleaned bool
}

func newCallSession(callID, local, remote string, dir Direction, mediaType media.Type, now time.Time) *callSession {
	return &callSession{
		Session: Session{
			CallID:       callID,
			LocalUserID:  local,
			RemoteUserID: remote,
			Direction:    dir,
			MediaType:    mediaType,
			State:        StateIdle,
			CreatedAt:    now,
		},
		candidates: peer.NewCandidateBuffer(),
	}
}

func (s *callSession) snapshot() Session { return s.Session }

func (s *callSession) handles() []*timeout.Handle {
	return []*timeout.Handle{s.autoDecline, s.ringTimer, s.negotiation}
}
