/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package callsdk

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a call error.
type ErrorKind string

const (
	KindMediaAccessDenied  ErrorKind = "media_access_denied"
	KindSignalingTimeout   ErrorKind = "signaling_timeout"
	KindNegotiationFailure ErrorKind = "negotiation_failure"
	KindICECandidate       ErrorKind = "ice_candidate_error"
	KindConnectionFailure  ErrorKind = "connection_failure"
	KindInvalidState       ErrorKind = "invalid_state"
	KindBusy               ErrorKind = "busy"
)

// CallError is the base error type for every failure the SDK reports.
// All specific error sub-types embed this struct, so consumers can use
// errors.As(err, &callErr) to read the common fields regardless of the
// specific error type.
type CallError struct {
	// Kind is the machine-readable category.
	Kind ErrorKind

	// Op names the operation that failed (e.g. "createOffer", "acquire").
	Op string

	// CallID is the call the error belongs to, if one was known.
	CallID string

	// Message is a short human-readable description.
	Message string

	// Err is an optional wrapped error for errors.Unwrap support.
	Err error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " in " + e.Op
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.CallID != "" {
		msg += " (callId: " + e.CallID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped error, if any.
func (e *CallError) Unwrap() error {
	return e.Err
}

// --- Specific error sub-types ---

// MediaAccessDeniedError is returned when camera or microphone capture is
// refused or no device is available.
type MediaAccessDeniedError struct {
	*CallError
}

// Unwrap returns the underlying CallError for errors.As traversal.
func (e *MediaAccessDeniedError) Unwrap() error { return e.CallError }

// SignalingTimeoutError reports that the remote side never answered
// within the ring window.
type SignalingTimeoutError struct {
	*CallError
}

// Unwrap returns the underlying CallError for errors.As traversal.
func (e *SignalingTimeoutError) Unwrap() error { return e.CallError }

// NegotiationFailureError is returned when creating an offer or answer, or
// applying a remote description, fails.
type NegotiationFailureError struct {
	*CallError
}

// Unwrap returns the underlying CallError for errors.As traversal.
func (e *NegotiationFailureError) Unwrap() error { return e.CallError }

// ICECandidateError is returned when a remote candidate cannot be applied.
// It is never fatal to a call.
type ICECandidateError struct {
	*CallError
}

// Unwrap returns the underlying CallError for errors.As traversal.
func (e *ICECandidateError) Unwrap() error { return e.CallError }

// ConnectionFailureError reports that the peer connection failed or
// disconnected.
type ConnectionFailureError struct {
	*CallError
}

// Unwrap returns the underlying CallError for errors.As traversal.
func (e *ConnectionFailureError) Unwrap() error { return e.CallError }

// InvalidStateError is returned when an operation is not valid for the
// current call state, including while another operation is still pending.
type InvalidStateError struct {
	*CallError
	State string
}

// Unwrap returns the underlying CallError for errors.As traversal.
func (e *InvalidStateError) Unwrap() error { return e.CallError }

// BusyError is returned when a call cannot start because another one
// already occupies the participant.
type BusyError struct {
	*CallError
}

// Unwrap returns the underlying CallError for errors.As traversal.
func (e *BusyError) Unwrap() error { return e.CallError }

// --- Constructors ---

func newBase(kind ErrorKind, op, callID string, err error) *CallError {
	return &CallError{Kind: kind, Op: op, CallID: callID, Err: err}
}

// NewMediaAccessDenied wraps a capture failure.
func NewMediaAccessDenied(op string, err error) error {
	return &MediaAccessDeniedError{CallError: newBase(KindMediaAccessDenied, op, "", err)}
}

// NewSignalingTimeout reports an unanswered call.
func NewSignalingTimeout(callID string) error {
	base := newBase(KindSignalingTimeout, "ring", callID, nil)
	base.Message = "remote party did not answer"
	return &SignalingTimeoutError{CallError: base}
}

// NewNegotiationFailure wraps an SDP negotiation failure.
func NewNegotiationFailure(op, callID string, err error) error {
	return &NegotiationFailureError{CallError: newBase(KindNegotiationFailure, op, callID, err)}
}

// NewICECandidateError wraps a candidate application failure.
func NewICECandidateError(callID string, err error) error {
	return &ICECandidateError{CallError: newBase(KindICECandidate, "addIceCandidate", callID, err)}
}

// NewConnectionFailure reports a failed or lost peer connection.
func NewConnectionFailure(callID, state string) error {
	base := newBase(KindConnectionFailure, "connect", callID, nil)
	base.Message = "connection state " + state
	return &ConnectionFailureError{CallError: base}
}

// NewInvalidState reports an operation attempted in the wrong state.
func NewInvalidState(op, state string) error {
	base := newBase(KindInvalidState, op, "", nil)
	base.Message = fmt.Sprintf("not allowed in state %s", state)
	return &InvalidStateError{CallError: base, State: state}
}

// NewBusy reports that a call was refused because one is already in progress.
func NewBusy(callID string) error {
	base := newBase(KindBusy, "offer", callID, nil)
	base.Message = "participant already in a call"
	return &BusyError{CallError: base}
}

// --- Convenience functions ---

// IsMediaAccessDenied reports whether err is a media access error.
func IsMediaAccessDenied(err error) bool {
	var e *MediaAccessDeniedError
	return errors.As(err, &e)
}

// IsSignalingTimeout reports whether err is a signaling timeout.
func IsSignalingTimeout(err error) bool {
	var e *SignalingTimeoutError
	return errors.As(err, &e)
}

// IsNegotiationFailure reports whether err is a negotiation failure.
func IsNegotiationFailure(err error) bool {
	var e *NegotiationFailureError
	return errors.As(err, &e)
}

// IsICECandidateError reports whether err is a candidate application error.
func IsICECandidateError(err error) bool {
	var e *ICECandidateError
	return errors.As(err, &e)
}

// IsConnectionFailure reports whether err is a connection failure.
func IsConnectionFailure(err error) bool {
	var e *ConnectionFailureError
	return errors.As(err, &e)
}

// IsInvalidState reports whether err is an invalid-for-state error.
func IsInvalidState(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}

// IsBusy reports whether err is a busy rejection.
func IsBusy(err error) bool {
	var e *BusyError
	return errors.As(err, &e)
}
