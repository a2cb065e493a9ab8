/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package callsdk

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCallError_ErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *CallError
		contains []string
	}{
		{
			name:     "With call ID",
			err:      &CallError{Kind: KindNegotiationFailure, Op: "createOffer", CallID: "call-1"},
			contains: []string{"negotiation_failure", "createOffer", "call-1"},
		},
		{
			name:     "With wrapped error",
			err:      &CallError{Kind: KindMediaAccessDenied, Op: "acquire", Err: errors.New("permission refused")},
			contains: []string{"media_access_denied", "permission refused"},
		},
		{
			name:     "With message",
			err:      &CallError{Kind: KindInvalidState, Op: "accept", Message: "not allowed in state idle"},
			contains: []string{"invalid_state", "accept", "idle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, expected to contain %q", msg, want)
				}
			}
		})
	}
}

func TestConstructors_Classify(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		is   func(error) bool
		kind ErrorKind
	}{
		{"MediaAccessDenied", NewMediaAccessDenied("acquire", cause), IsMediaAccessDenied, KindMediaAccessDenied},
		{"SignalingTimeout", NewSignalingTimeout("c1"), IsSignalingTimeout, KindSignalingTimeout},
		{"NegotiationFailure", NewNegotiationFailure("createAnswer", "c1", cause), IsNegotiationFailure, KindNegotiationFailure},
		{"ICECandidateError", NewICECandidateError("c1", cause), IsICECandidateError, KindICECandidate},
		{"ConnectionFailure", NewConnectionFailure("c1", "failed"), IsConnectionFailure, KindConnectionFailure},
		{"InvalidState", NewInvalidState("accept", "idle"), IsInvalidState, KindInvalidState},
		{"Busy", NewBusy("c1"), IsBusy, KindBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.is(tt.err) {
				t.Errorf("expected helper to match %T", tt.err)
			}

			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !tt.is(wrapped) {
				t.Error("expected helper to match through fmt.Errorf wrapping")
			}

			var base *CallError
			if !errors.As(tt.err, &base) {
				t.Fatal("expected errors.As to reach *CallError")
			}
			if base.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", base.Kind, tt.kind)
			}
		})
	}
}

func TestHelpers_DoNotCrossMatch(t *testing.T) {
	err := NewICECandidateError("c1", errors.New("late candidate"))
	if IsNegotiationFailure(err) {
		t.Error("ICE candidate error must not be a negotiation failure")
	}
	if IsConnectionFailure(err) {
		t.Error("ICE candidate error must not be a connection failure")
	}
	if IsMediaAccessDenied(errors.New("plain")) {
		t.Error("plain error must not match")
	}
}

func TestUnwrap_ReachesCause(t *testing.T) {
	cause := errors.New("device busy")
	err := NewMediaAccessDenied("acquire", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestInvalidState_CarriesState(t *testing.T) {
	err := NewInvalidState("accept", "active")
	var e *InvalidStateError
	if !errors.As(err, &e) {
		t.Fatal("expected InvalidStateError")
	}
	if e.State != "active" {
		t.Errorf("State = %q, want active", e.State)
	}
}
