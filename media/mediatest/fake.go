/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package mediatest provides an in-memory media.Source for tests.
package mediatest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/tejzpr/p2pcall-go-sdk/media"
)

// ErrDenied is what a denied Source returns from Open.
var ErrDenied = errors.New("permission denied")

// Track is a fake capture track. It counts how many times the underlying
// device was released so tests can assert tracks stop exactly once.
type Track struct {
	id     string
	kind   media.Kind
	facing media.Facing
	local  *webrtc.TrackLocalStaticRTP

	enabled   atomic.Bool
	stopOnce  sync.Once
	stopped   atomic.Bool
	stopCalls atomic.Int32
	released  atomic.Int32
}

// NewTrack creates a fake track of the given kind.
func NewTrack(id string, kind media.Kind, facing media.Facing) (*Track, error) {
	capability := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	if kind == media.KindVideo {
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	local, err := webrtc.NewTrackLocalStaticRTP(capability, string(kind), "mediatest-"+id)
	if err != nil {
		return nil, err
	}
	t := &Track{id: id, kind: kind, facing: facing, local: local}
	t.enabled.Store(true)
	return t, nil
}

func (t *Track) ID() string { return t.id }
func (t *Track) Kind() media.Kind { return t.kind }
func (t *Track) Facing() media.Facing { return t.facing }
func (t *Track) Enabled() bool { return t.enabled.Load() }
func (t *Track) SetEnabled(enabled bool) { t.enabled.Store(enabled) }
func (t *Track) Stopped() bool { return t.stopped.Load() }
func (t *Track) Local() webrtc.TrackLocal { return t.local }
func (t *Track) StopCalls() int { return int(t.stopCalls.Load()) }
func (t *Track) ReleaseCount() int { return int(t.released.Load()) }

// Stop releases the fake device once.
func (t *Track) Stop() {
	t.stopCalls.Add(1)
	t.stopOnce.Do(func() {
		t.released.Add(1)
		t.stopped.Store(true)
	})
}

// Source is a fake media.Source. The zero value is not usable; use NewSource.
type Source struct {
	mu          sync.Mutex
	deny        map[media.Kind]bool
	denyFacing  map[media.Facing]bool
	opened      []*Track
	seq         int
	openStarted chan struct{}
	gate        chan struct{}
}

// NewSource creates a Source that grants every request.
func NewSource() *Source {
	return &Source{
		deny:       make(map[media.Kind]bool),
		denyFacing: make(map[media.Facing]bool),
	}
}

// Deny makes Open fail for the given kind.
func (s *Source) Deny(kind media.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deny[kind] = true
}

// DenyFacing makes Open fail for cameras with the given facing.
func (s *Source) DenyFacing(facing media.Facing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denyFacing[facing] = true
}

// Hold makes every following Open block until Resume is called. The
// returned channel receives once per blocked Open.
func (s *Source) Hold() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	s.openStarted = make(chan struct{}, 8)
	return s.openStarted
}

// Resume releases Opens blocked by Hold.
func (s *Source) Resume() {
	s.mu.Lock()
	gate := s.gate
	s.gate = nil
	s.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

// Open implements media.Source.
func (s *Source) Open(ctx context.Context, kind media.Kind, c media.Constraints) (media.Track, error) {
	s.mu.Lock()
	gate, started := s.gate, s.openStarted
	s.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deny[kind] || (kind == media.KindVideo && s.denyFacing[c.Facing]) {
		return nil, ErrDenied
	}

	s.seq++
	facing := media.Facing("")
	if kind == media.KindVideo {
		facing = c.Facing
	}
	t, err := NewTrack(fmt.Sprintf("%s-%d", kind, s.seq), kind, facing)
	if err != nil {
		return nil, err
	}
	s.opened = append(s.opened, t)
	return t, nil
}

// Opened returns every track opened so far, in order.
func (s *Source) Opened() []*Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Track, len(s.opened))
	copy(out, s.opened)
	return out
}

// AllStopped reports whether every opened track has been released exactly once.
func (s *Source) AllStopped() bool {
	for _, t := range s.Opened() {
		if t.ReleaseCount() != 1 {
			return false
		}
	}
	return true
}
