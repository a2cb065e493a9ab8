/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package relay

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrDuplicateCall is returned when a call id is already registered.
	ErrDuplicateCall = errors.New("call already registered")
	// ErrUserBusy is returned when a participant already has a call.
	ErrUserBusy = errors.New("user already in a call")
)

// Call is a registered call between two users.
type Call struct {
	ID        string
	Caller    string
	Callee    string
	CreatedAt time.Time
}

// Other returns the participant that is not userID.
func (c Call) Other(userID string) (string, bool) {
	switch userID {
	case c.Caller:
		return c.Callee, true
	case c.Callee:
		return c.Caller, true
	}
	return "", false
}

// Registry tracks active calls by id and by participant. A user is in at
// most one call.
type Registry struct {
	mu     sync.Mutex
	calls  map[string]Call
	byUser map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		calls:  make(map[string]Call),
		byUser: make(map[string]string),
	}
}

// Register records a new call.
func (r *Registry) Register(callID, caller, callee string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.calls[callID]; ok {
		return Call{}, ErrDuplicateCall
	}
	if _, ok := r.byUser[caller]; ok {
		return Call{}, ErrUserBusy
	}
	if _, ok := r.byUser[callee]; ok {
		return Call{}, ErrUserBusy
	}

	call := Call{ID: callID, Caller: caller, Callee: callee, CreatedAt: time.Now()}
	r.calls[callID] = call
	r.byUser[caller] = callID
	r.byUser[callee] = callID
	return call, nil
}

// Get returns the call with the given id.
func (r *Registry) Get(callID string) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[callID]
	return call, ok
}

// ForUser returns the call userID takes part in.
func (r *Registry) ForUser(userID string) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	callID, ok := r.byUser[userID]
	if !ok {
		return Call{}, false
	}
	return r.calls[callID], true
}

// End removes the call and returns it.
func (r *Registry) End(callID string) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[callID]
	if !ok {
		return Call{}, false
	}
	delete(r.calls, callID)
	delete(r.byUser, call.Caller)
	delete(r.byUser, call.Callee)
	return call, true
}

// Len returns the number of active calls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
