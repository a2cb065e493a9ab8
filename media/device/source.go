/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package device implements media.Source on top of the platform camera and
// microphone drivers. Captured frames are encoded to VP8 and Opus and
// written as RTP into static local tracks that a peer connection can send.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	// Register the platform capture drivers.
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"

	"github.com/tejzpr/p2pcall-go-sdk/callsdk"
	"github.com/tejzpr/p2pcall-go-sdk/media"
)

const rtpMTU = 1200

// ErrNoDevice is returned when no capture device matches the request.
var ErrNoDevice = errors.New("no matching capture device")

// Config holds encoder settings
type Config struct {
	VideoBitRate     int
	KeyFrameInterval int
	AudioBitRate     int
}

// DefaultConfig returns a Config tuned for interactive calls
func DefaultConfig() *Config {
	return &Config{
		VideoBitRate:     500_000,
		KeyFrameInterval: 30,
		AudioBitRate:     32_000,
	}
}

// Source opens real capture devices.
type Source struct {
	codecSelector *mediadevices.CodecSelector
	logger        *zap.Logger
}

// NewSource builds the VP8/Opus codec selector and returns a Source.
func NewSource(config *Config, logger *zap.Logger) (*Source, error) {
	if config == nil {
		config = DefaultConfig()
	}

	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("failed to create VP8 params: %w", err)
	}
	vpxParams.BitRate = config.VideoBitRate
	vpxParams.KeyFrameInterval = config.KeyFrameInterval
	vpxParams.RateControlEndUsage = vpx.RateControlVBR
	vpxParams.Deadline = 200 * time.Millisecond

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("failed to create Opus params: %w", err)
	}
	opusParams.BitRate = config.AudioBitRate
	opusParams.Latency = opus.Latency20ms

	return &Source{
		codecSelector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
		logger: callsdk.OrNop(logger).Named("device"),
	}, nil
}

// Devices lists capture devices of the given kind.
func Devices(kind media.Kind) []media.DeviceInfo {
	want := mediadevices.AudioInput
	if kind == media.KindVideo {
		want = mediadevices.VideoInput
	}

	var out []media.DeviceInfo
	for _, d := range mediadevices.EnumerateDevices() {
		if d.Kind == want {
			out = append(out, media.DeviceInfo{ID: d.DeviceID, Label: d.Label})
		}
	}
	return out
}

// Open implements media.Source.
func (s *Source) Open(ctx context.Context, kind media.Kind, c media.Constraints) (media.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		constraints mediadevices.MediaStreamConstraints
		capability  webrtc.RTPCodecCapability
	)
	constraints.Codec = s.codecSelector

	switch kind {
	case media.KindVideo:
		dev, ok := media.SelectByFacing(Devices(media.KindVideo), c.Facing)
		if !ok {
			return nil, fmt.Errorf("%w: camera facing %s", ErrNoDevice, c.Facing)
		}
		constraints.Video = func(mc *mediadevices.MediaTrackConstraints) {
			mc.DeviceID = prop.String(dev.ID)
			if c.Width > 0 {
				mc.Width = prop.Int(c.Width)
			}
			if c.Height > 0 {
				mc.Height = prop.Int(c.Height)
			}
			if c.FrameRate > 0 {
				mc.FrameRate = prop.Float(c.FrameRate)
			}
		}
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	case media.KindAudio:
		mics := Devices(media.KindAudio)
		if len(mics) == 0 {
			return nil, fmt.Errorf("%w: microphone", ErrNoDevice)
		}
		constraints.Audio = func(mc *mediadevices.MediaTrackConstraints) {
			mc.DeviceID = prop.String(mics[0].ID)
		}
		capability = webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		}
	default:
		return nil, fmt.Errorf("unknown track kind %q", kind)
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, fmt.Errorf("failed to get user media: %w", err)
	}

	var tracks []mediadevices.Track
	if kind == media.KindVideo {
		tracks = stream.GetVideoTracks()
	} else {
		tracks = stream.GetAudioTracks()
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: driver returned no %s track", ErrNoDevice, kind)
	}
	src := tracks[0]

	local, err := webrtc.NewTrackLocalStaticRTP(capability, string(kind), "p2pcall")
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create local %s track: %w", kind, err)
	}

	reader, err := src.NewRTPReader(capability.MimeType, rand.Uint32(), rtpMTU)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create %s RTP reader: %w", kind, err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	t := &track{
		id:     src.ID(),
		kind:   kind,
		src:    src,
		local:  local,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: s.logger.With(zap.String("track_id", src.ID()), zap.String("kind", string(kind))),
	}
	if kind == media.KindVideo {
		t.facing = c.Facing
	}
	t.enabled.Store(true)
	go t.pump(pumpCtx, reader)

	s.logger.Info("capture opened",
		zap.String("kind", string(kind)),
		zap.String("facing", string(t.facing)),
		zap.String("track_id", t.id))
	return t, nil
}

// track pumps encoded RTP from a capture track into a static local track.
// While disabled, packets are read and dropped so the device stays open.
type track struct {
	id     string
	kind   media.Kind
	facing media.Facing
	src    mediadevices.Track
	local  *webrtc.TrackLocalStaticRTP
	logger *zap.Logger

	enabled  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

func (t *track) ID() string { return t.id }
func (t *track) Kind() media.Kind { return t.kind }
func (t *track) Facing() media.Facing { return t.facing }
func (t *track) Enabled() bool { return t.enabled.Load() }
func (t *track) SetEnabled(enabled bool) { t.enabled.Store(enabled) }
func (t *track) Stopped() bool { return t.stopped.Load() }
func (t *track) Local() webrtc.TrackLocal { return t.local }

func (t *track) Stop() {
	t.stopOnce.Do(func() {
		t.stopped.Store(true)
		t.cancel()
		if err := t.src.Close(); err != nil {
			t.logger.Warn("failed to close capture track", zap.Error(err))
		}
		select {
		case <-t.done:
			t.logger.Debug("capture stopped")
		case <-time.After(2 * time.Second):
			t.logger.Warn("rtp pump did not exit after close")
		}
	})
}

func (t *track) pump(ctx context.Context, reader mediadevices.RTPReadCloser) {
	defer close(t.done)
	defer reader.Close()

	for {
		if ctx.Err() != nil {
			return
		}

		packets, release, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			t.logger.Debug("rtp read failed", zap.Error(err))
			continue
		}

		if t.enabled.Load() {
			for _, p := range packets {
				if err := t.local.WriteRTP(p); err != nil && !errors.Is(err, io.ErrClosedPipe) {
					t.logger.Debug("rtp write failed", zap.Error(err))
				}
			}
		}
		if release != nil {
			release()
		}
	}
}
