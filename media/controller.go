/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tejzpr/p2pcall-go-sdk/callsdk"
)

// ErrNoVideoTrack is returned when a camera operation targets an audio-only stream.
var ErrNoVideoTrack = errors.New("stream has no video track")

// Config holds capture settings
type Config struct {
	Width         int
	Height        int
	FrameRate     float64
	InitialFacing Facing
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Width:         640,
		Height:        480,
		FrameRate:     30,
		InitialFacing: FacingUser,
	}
}

// Controller acquires and releases local capture streams.
type Controller struct {
	source Source
	config *Config
	logger *zap.Logger
}

// NewController creates a Controller over the given Source.
func NewController(source Source, config *Config, logger *zap.Logger) *Controller {
	if config == nil {
		config = DefaultConfig()
	}
	if config.InitialFacing == "" {
		config.InitialFacing = FacingUser
	}
	return &Controller{
		source: source,
		config: config,
		logger: callsdk.OrNop(logger).Named("media"),
	}
}

func (c *Controller) constraints(facing Facing) Constraints {
	return Constraints{
		Facing:    facing,
		Width:     c.config.Width,
		Height:    c.config.Height,
		FrameRate: c.config.FrameRate,
	}
}

// Acquire opens the microphone and, for video calls, the camera. Any
// failure stops what was already opened and returns a MediaAccessDenied
// error.
func (c *Controller) Acquire(ctx context.Context, mediaType Type) (*Stream, error) {
	if !mediaType.Valid() {
		return nil, fmt.Errorf("unknown media type %q", mediaType)
	}

	audio, err := c.source.Open(ctx, KindAudio, c.constraints(""))
	if err != nil {
		c.logger.Warn("microphone unavailable", zap.Error(err))
		return nil, callsdk.NewMediaAccessDenied("acquire", err)
	}

	stream := &Stream{
		id:        uuid.NewString(),
		mediaType: mediaType,
		audio:     audio,
	}

	if mediaType == TypeVideo {
		video, err := c.source.Open(ctx, KindVideo, c.constraints(c.config.InitialFacing))
		if err != nil {
			audio.Stop()
			c.logger.Warn("camera unavailable", zap.Error(err))
			return nil, callsdk.NewMediaAccessDenied("acquire", err)
		}
		stream.video = video
	}

	c.logger.Debug("stream acquired",
		zap.String("stream_id", stream.id),
		zap.String("media_type", string(mediaType)))
	return stream, nil
}

// Release stops every track in the stream. Releasing a stream twice, or a
// nil stream, does nothing.
func (c *Controller) Release(stream *Stream) {
	if stream == nil {
		return
	}

	stream.mu.Lock()
	if stream.released {
		stream.mu.Unlock()
		return
	}
	stream.released = true
	tracks := []Track{stream.audio, stream.video}
	stream.mu.Unlock()

	for _, t := range tracks {
		if t != nil {
			t.Stop()
		}
	}
	c.logger.Debug("stream released", zap.String("stream_id", stream.id))
}

// SwitchFacing stops the current camera and opens the one facing the other
// way. The new track replaces the old one in the stream and is returned so
// the caller can install it on the existing sender. If the replacement
// cannot be opened the old track stays stopped and a MediaAccessDenied
// error is returned.
func (c *Controller) SwitchFacing(ctx context.Context, stream *Stream) (Track, error) {
	if stream == nil {
		return nil, ErrNoVideoTrack
	}

	stream.mu.Lock()
	old := stream.video
	released := stream.released
	stream.mu.Unlock()

	if old == nil {
		return nil, ErrNoVideoTrack
	}
	if released {
		return nil, fmt.Errorf("stream %s already released", stream.id)
	}

	facing := old.Facing()
	if facing == "" {
		facing = c.config.InitialFacing
	}
	next := facing.Opposite()
	enabled := old.Enabled()
	old.Stop()

	track, err := c.source.Open(ctx, KindVideo, c.constraints(next))
	if err != nil {
		c.logger.Warn("camera switch failed",
			zap.String("stream_id", stream.id),
			zap.String("facing", string(next)),
			zap.Error(err))
		return nil, callsdk.NewMediaAccessDenied("switchFacing", err)
	}
	track.SetEnabled(enabled)

	stream.mu.Lock()
	if stream.released {
		stream.mu.Unlock()
		track.Stop()
		return nil, fmt.Errorf("stream %s released during camera switch", stream.id)
	}
	stream.video = track
	stream.mu.Unlock()

	c.logger.Debug("camera switched",
		zap.String("stream_id", stream.id),
		zap.String("facing", string(next)))
	return track, nil
}

// SetAudioEnabled mutes or unmutes the microphone.
func (c *Controller) SetAudioEnabled(stream *Stream, enabled bool) {
	if stream == nil {
		return
	}
	if t := stream.AudioTrack(); t != nil {
		t.SetEnabled(enabled)
	}
}

// SetVideoEnabled turns the camera picture on or off without closing the device.
func (c *Controller) SetVideoEnabled(stream *Stream, enabled bool) error {
	if stream == nil {
		return ErrNoVideoTrack
	}
	t := stream.VideoTrack()
	if t == nil {
		return ErrNoVideoTrack
	}
	t.SetEnabled(enabled)
	return nil
}
