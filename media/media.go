/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package media owns local capture: it opens camera and microphone tracks
// through a Source, hands them out grouped as a Stream, and is the only
// package that stops them.
package media

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Type is the kind of call being placed.
type Type string

const (
	TypeAudio Type = "audio"
	TypeVideo Type = "video"
)

// Valid reports whether t is a known call media type.
func (t Type) Valid() bool {
	return t == TypeAudio || t == TypeVideo
}

// Kind is the kind of a single track.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Facing is the direction a camera points.
type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// Opposite returns the other facing mode.
func (f Facing) Opposite() Facing {
	if f == FacingEnvironment {
		return FacingUser
	}
	return FacingEnvironment
}

// Constraints describe the capture a Source should open.
type Constraints struct {
	Facing    Facing
	Width     int
	Height    int
	FrameRate float64
}

// Track is one local capture track.
type Track interface {
	ID() string
	Kind() Kind
	// Facing is empty for audio tracks.
	Facing() Facing
	Enabled() bool
	// SetEnabled mutes or unmutes the track without releasing the device.
	SetEnabled(enabled bool)
	// Stop releases the device. Calling it again has no effect.
	Stop()
	Stopped() bool
	// Local is what gets attached to a peer connection as a sender.
	Local() webrtc.TrackLocal
}

// Source opens capture tracks. Implementations return an error when the
// device is missing or access is refused.
type Source interface {
	Open(ctx context.Context, kind Kind, c Constraints) (Track, error)
}

// Stream groups the tracks captured for one call.
type Stream struct {
	id        string
	mediaType Type

	mu       sync.Mutex
	audio    Track
	video    Track
	released bool
}

// ID returns the stream identifier.
func (s *Stream) ID() string { return s.id }

// MediaType returns the call type the stream was acquired for.
func (s *Stream) MediaType() Type { return s.mediaType }

// AudioTrack returns the microphone track.
func (s *Stream) AudioTrack() Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio
}

// VideoTrack returns the camera track, or nil for audio calls.
func (s *Stream) VideoTrack() Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video
}

// Tracks returns every track in the stream, audio first.
func (s *Stream) Tracks() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks := make([]Track, 0, 2)
	if s.audio != nil {
		tracks = append(tracks, s.audio)
	}
	if s.video != nil {
		tracks = append(tracks, s.video)
	}
	return tracks
}

// TrackLocals returns the sender side of every track.
func (s *Stream) TrackLocals() []webrtc.TrackLocal {
	tracks := s.Tracks()
	locals := make([]webrtc.TrackLocal, 0, len(tracks))
	for _, t := range tracks {
		locals = append(locals, t.Local())
	}
	return locals
}

// Released reports whether the stream has been released.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
