/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package relay

import (
	"errors"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	call, err := r.Register("c1", "alice", "bob")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if other, ok := call.Other("alice"); !ok || other != "bob" {
		t.Errorf("Expected bob as the other party, got %q", other)
	}
	if _, ok := call.Other("carol"); ok {
		t.Error("Expected carol not to be a participant")
	}

	if _, err := r.Register("c1", "carol", "dave"); !errors.Is(err, ErrDuplicateCall) {
		t.Errorf("Expected ErrDuplicateCall, got %v", err)
	}
	if _, err := r.Register("c2", "carol", "bob"); !errors.Is(err, ErrUserBusy) {
		t.Errorf("Expected ErrUserBusy for busy callee, got %v", err)
	}
	if _, err := r.Register("c3", "alice", "carol"); !errors.Is(err, ErrUserBusy) {
		t.Errorf("Expected ErrUserBusy for busy caller, got %v", err)
	}

	if got, ok := r.ForUser("bob"); !ok || got.ID != "c1" {
		t.Errorf("Expected bob in c1, got %+v", got)
	}

	if _, ok := r.End("c1"); !ok {
		t.Fatal("Expected End to find c1")
	}
	if _, ok := r.End("c1"); ok {
		t.Error("Expected second End to report false")
	}
	if r.Len() != 0 {
		t.Errorf("Expected no calls, got %d", r.Len())
	}
	if _, err := r.Register("c2", "carol", "bob"); err != nil {
		t.Errorf("Expected bob free after End, got %v", err)
	}
}
