/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package timeout owns every timer that drives a call transition: the
// auto-decline of unanswered incoming calls, the outgoing ring deadline and
// the negotiation deadline.
package timeout

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/tejzpr/p2pcall-go-sdk/callsdk"
)

// DefaultAutoDecline is how long an incoming call rings before it is
// declined on the callee's behalf.
const DefaultAutoDecline = 30 * time.Second

// Kind identifies what a timer is guarding.
type Kind string

const (
	KindAutoDecline Kind = "auto_decline"
	KindRing        Kind = "ring"
	KindNegotiation Kind = "negotiation"
)

const (
	statePending int32 = iota
	stateFired
	stateCancelled
)

// Handle is a cancellable reference to one scheduled timer. A handle either
// fires or is cancelled, never both.
type Handle struct {
	callID string
	kind   Kind
	timer  *clock.Timer
	state  atomic.Int32
}

// CallID returns the call the timer belongs to.
func (h *Handle) CallID() string { return h.callID }

// Kind returns what the timer guards.
func (h *Handle) Kind() Kind { return h.kind }

// Fired reports whether the timer expired and its callback ran.
func (h *Handle) Fired() bool { return h.state.Load() == stateFired }

// Cancelled reports whether the timer was cancelled before expiring.
func (h *Handle) Cancelled() bool { return h.state.Load() == stateCancelled }

// Scheduler creates and cancels call timers.
type Scheduler struct {
	clock  clock.Clock
	logger *zap.Logger

	mu      sync.Mutex
	pending map[*Handle]struct{}
}

// New creates a Scheduler on the given clock. A nil clock means wall time.
func New(clk clock.Clock, logger *zap.Logger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		clock:   clk,
		logger:  callsdk.OrNop(logger).Named("timeout"),
		pending: make(map[*Handle]struct{}),
	}
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// ScheduleAutoDecline arms the auto-decline timer for an incoming call.
func (s *Scheduler) ScheduleAutoDecline(callID string, d time.Duration, onExpire func(callID string)) *Handle {
	return s.Schedule(callID, KindAutoDecline, d, onExpire)
}

// Schedule arms a timer of the given kind. onExpire runs on the clock's
// goroutine, so it should only hand the expiry off to its owner.
func (s *Scheduler) Schedule(callID string, kind Kind, d time.Duration, onExpire func(callID string)) *Handle {
	h := &Handle{callID: callID, kind: kind}

	s.mu.Lock()
	s.pending[h] = struct{}{}
	s.mu.Unlock()

	h.timer = s.clock.AfterFunc(d, func() {
		if !h.state.CompareAndSwap(statePending, stateFired) {
			return
		}
		s.forget(h)
		s.logger.Debug("timer fired",
			zap.String("call_id", callID),
			zap.String("kind", string(kind)))
		if onExpire != nil {
			onExpire(callID)
		}
	})

	s.logger.Debug("timer scheduled",
		zap.String("call_id", callID),
		zap.String("kind", string(kind)),
		zap.Duration("after", d))
	return h
}

// Cancel stops the timer behind h. It returns false, and does nothing, when
// the handle is nil, already fired or already cancelled.
func (s *Scheduler) Cancel(h *Handle) bool {
	if h == nil {
		return false
	}
	if !h.state.CompareAndSwap(statePending, stateCancelled) {
		return false
	}
	h.timer.Stop()
	s.forget(h)
	s.logger.Debug("timer cancelled",
		zap.String("call_id", h.callID),
		zap.String("kind", string(h.kind)))
	return true
}

// CancelCall cancels every pending timer for callID and returns how many
// were cancelled.
func (s *Scheduler) CancelCall(callID string) int {
	s.mu.Lock()
	var handles []*Handle
	for h := range s.pending {
		if h.callID == callID {
			handles = append(handles, h)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, h := range handles {
		if s.Cancel(h) {
			n++
		}
	}
	return n
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) forget(h *Handle) {
	s.mu.Lock()
	delete(s.pending, h)
	s.mu.Unlock()
}
