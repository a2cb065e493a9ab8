/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package calling coordinates a 1:1 audio/video call: it runs the call
// state machine, drives the peer connection through offer/answer and
// trickle ICE, and owns the local media for the lifetime of each call.
//
// All session state is owned by one event loop goroutine started with
// Controller.Run. Public methods submit work to that loop and wait for the
// result.
package calling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/tejzpr/p2pcall-go-sdk/callsdk"
	"github.com/tejzpr/p2pcall-go-sdk/media"
	"github.com/tejzpr/p2pcall-go-sdk/peer"
	"github.com/tejzpr/p2pcall-go-sdk/signaling"
	"github.com/tejzpr/p2pcall-go-sdk/timeout"
)

// ErrClosed is returned by every operation once the controller has stopped.
var ErrClosed = errors.New("call controller closed")

const sendTimeout = 5 * time.Second

// Config holds the configuration for a Controller
type Config struct {
	// LocalUserID identifies this participant on the signaling channel.
	LocalUserID string
	// RingTimeout is how long an incoming call rings before it is declined. Default: 30s.
	RingTimeout time.Duration
	// OutgoingRingTimeout is how long an outgoing call waits for an answer. Default: 45s.
	OutgoingRingTimeout time.Duration
	// NegotiationTimeout bounds the time from answer to connected. Default: 20s.
	NegotiationTimeout time.Duration
	// ICEServers are added to every peer connection, typically TURN servers.
	ICEServers []webrtc.ICEServer
}

// DefaultConfig returns a Config with the default timeouts
func DefaultConfig() Config {
	return Config{
		RingTimeout:         timeout.DefaultAutoDecline,
		OutgoingRingTimeout: 45 * time.Second,
		NegotiationTimeout:  20 * time.Second,
	}
}

// Dependencies are the collaborators a Controller drives.
type Dependencies struct {
	Signaling signaling.Channel
	Media     *media.Controller
	Peers     *peer.Factory
	Scheduler *timeout.Scheduler
	Logger    *zap.Logger
}

type timerEvent struct {
	callID string
	kind   timeout.Kind
}

// Controller is the call session controller for one local participant.
type Controller struct {
	config    Config
	signaling signaling.Channel
	media     *media.Controller
	peers     *peer.Factory
	scheduler *timeout.Scheduler
	logger    *zap.Logger
	emitter   *EventEmitter

	commands chan func()
	timers   chan timerEvent
	stop     chan struct{}
	stopped  chan struct{}

	running   atomic.Bool
	closeOnce sync.Once

	// Owned by the event loop.
	current *callSession
	pending bool
}

// New creates a Controller. Run must be called before any other method
// can complete.
func New(cfg Config, deps Dependencies) (*Controller, error) {
	if cfg.LocalUserID == "" {
		return nil, errors.New("local user id is required")
	}
	if deps.Signaling == nil || deps.Media == nil || deps.Peers == nil {
		return nil, errors.New("signaling, media and peers are required")
	}
	defaults := DefaultConfig()
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = defaults.RingTimeout
	}
	if cfg.OutgoingRingTimeout <= 0 {
		cfg.OutgoingRingTimeout = defaults.OutgoingRingTimeout
	}
	if cfg.NegotiationTimeout <= 0 {
		cfg.NegotiationTimeout = defaults.NegotiationTimeout
	}

	logger := callsdk.OrNop(deps.Logger).Named("calling").With(zap.String("user_id", cfg.LocalUserID))
	scheduler := deps.Scheduler
	if scheduler == nil {
		scheduler = timeout.New(nil, logger)
	}

	return &Controller{
		config:    cfg,
		signaling: deps.Signaling,
		media:     deps.Media,
		peers:     deps.Peers,
		scheduler: scheduler,
		logger:    logger,
		emitter:   NewEventEmitter(),
		commands:  make(chan func()),
		timers:    make(chan timerEvent, 8),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}, nil
}

// ---- Events ----

// On registers a handler for a controller event. Handlers run in order on
// a dispatcher goroutine and may call back into the Controller.
func (c *Controller) On(event EventKey, handler EventHandler) {
	c.emitter.On(event, handler)
}

// OnIncomingCall registers a handler for new incoming calls.
func (c *Controller) OnIncomingCall(fn func(Session)) {
	c.On(EventIncomingCall, func(data interface{}) { fn(data.(Session)) })
}

// OnStateChanged registers a handler for state transitions.
func (c *Controller) OnStateChanged(fn func(StateChange)) {
	c.On(EventStateChanged, func(data interface{}) { fn(data.(StateChange)) })
}

// OnRemoteStream registers a handler for remote tracks.
func (c *Controller) OnRemoteStream(fn func(RemoteStream)) {
	c.On(EventRemoteStream, func(data interface{}) { fn(data.(RemoteStream)) })
}

// OnEnded registers a handler for ended calls.
func (c *Controller) OnEnded(fn func(Session)) {
	c.On(EventEnded, func(data interface{}) { fn(data.(Session)) })
}

// OnMediaError registers a handler for non-fatal media failures.
func (c *Controller) OnMediaError(fn func(MediaError)) {
	c.On(EventMediaError, func(data interface{}) { fn(data.(MediaError)) })
}

// ---- Event loop ----

// Run processes commands, signaling messages, peer events and timers until
// ctx is cancelled or Close is called. An active call is hung up when ctx
// is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("controller already running")
	}
	defer close(c.stopped)
	defer c.emitter.Close()

	c.logger.Debug("event loop started")
	messages := c.signaling.Messages()

	for {
		var peerEvents <-chan peer.Event
		if s := c.current; s != nil && s.peer != nil {
			peerEvents = s.peer.Events()
		}

		select {
		case <-ctx.Done():
			if s := c.current; s != nil {
				c.hangupAndEnd(s, EndReasonLocalHangup)
			}
			return ctx.Err()
		case <-c.stop:
			return nil
		case fn := <-c.commands:
			fn()
		case msg, ok := <-messages:
			if !ok {
				c.logger.Warn("signaling channel closed")
				messages = nil
				continue
			}
			c.onSignal(msg)
		case ev := <-peerEvents:
			c.onPeerEvent(ev)
		case t := <-c.timers:
			c.onTimer(t)
		}
	}
}

// do runs fn on the event loop and returns its result.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	select {
	case c.commands <- func() { result <- fn() }:
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-c.stopped:
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	}
}

// Close hangs up the current call and stops the event loop. It is safe to
// call more than once.
func (c *Controller) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		if c.running.Load() {
			err = c.do(ctx, func() error {
				if s := c.current; s != nil {
					c.hangupAndEnd(s, EndReasonLocalHangup)
				}
				return nil
			})
			if errors.Is(err, ErrClosed) {
				err = nil
			}
		}
		close(c.stop)
		if !c.running.Load() {
			c.emitter.Close()
		}
	})
	return err
}

// Done is closed once the event loop has exited.
func (c *Controller) Done() <-chan struct{} { return c.stopped }

// ---- Public operations ----

// Session returns a snapshot of the current call, if any.
func (c *Controller) Session() (Session, bool) {
	var snap Session
	var ok bool
	err := c.do(context.Background(), func() error {
		if c.current != nil {
			snap, ok = c.current.snapshot(), true
		}
		return nil
	})
	if err != nil {
		return Session{}, false
	}
	return snap, ok
}

// Initiate places a call to remoteUserID. Local media is acquired first;
// if that fails a MediaAccessDenied error is returned and no session is
// created. Once media is held the call id is returned; a failure to build
// or send the offer ends that call with EventEnded instead of an error.
func (c *Controller) Initiate(ctx context.Context, remoteUserID string, mediaType media.Type) (string, error) {
	if remoteUserID == "" {
		return "", errors.New("remote user id is required")
	}
	if remoteUserID == c.config.LocalUserID {
		return "", errors.New("cannot call yourself")
	}
	if !mediaType.Valid() {
		return "", fmt.Errorf("unknown media type %q", mediaType)
	}

	err := c.do(ctx, func() error {
		if c.pending || c.current != nil {
			return callsdk.NewInvalidState("initiate", string(c.stateLocked()))
		}
		c.pending = true
		return nil
	})
	if err != nil {
		return "", err
	}

	stream, acqErr := c.media.Acquire(ctx, mediaType)

	callID := uuid.New().String()
	err = c.do(context.Background(), func() error {
		return c.finishInitiate(callID, remoteUserID, mediaType, stream, acqErr)
	})
	if errors.Is(err, ErrClosed) {
		c.media.Release(stream)
	}
	if err != nil {
		return "", err
	}
	return callID, nil
}

func (c *Controller) finishInitiate(callID, remote string, mediaType media.Type, stream *media.Stream, acqErr error) error {
	c.pending = false
	if acqErr != nil {
		return acqErr
	}

	logger := c.logger.With(zap.String("call_id", callID))
	s := newCallSession(callID, c.config.LocalUserID, remote, DirectionOutgoing, mediaType, c.scheduler.Now())
	s.stream = stream

	// From here on the call exists; failures end it rather than erroring.
	c.current = s

	mgr, err := c.peers.Create(callID, stream.TrackLocals(), peer.CreateOptions{
		Candidates: s.candidates,
		ICEServers: c.config.ICEServers,
	})
	if err != nil {
		logger.Warn("failed to create peer connection", zap.Error(err))
		c.end(s, EndReasonNegotiationError)
		return nil
	}
	s.peer = mgr

	offer, err := mgr.CreateOffer()
	if err != nil {
		logger.Warn("failed to create offer", zap.Error(err))
		c.end(s, EndReasonNegotiationError)
		return nil
	}

	if err := c.send(signaling.Message{
		CallID:   callID,
		Type:     signaling.TypeOffer,
		SDP:      offer,
		ToUserID: remote,
	}); err != nil {
		logger.Warn("failed to send offer", zap.Error(err))
		c.end(s, EndReasonNetworkFailure)
		return nil
	}

	c.transition(s, StateOutgoingRinging)
	s.ringTimer = c.scheduler.Schedule(callID, timeout.KindRing, c.config.OutgoingRingTimeout, c.timerFunc(timeout.KindRing))
	logger.Info("outgoing call",
		zap.String("remote_user_id", remote),
		zap.String("media_type", string(mediaType)))
	return nil
}

// Accept answers the ringing incoming call. A MediaAccessDenied error means
// the call was ended with a hangup to the caller.
func (c *Controller) Accept(ctx context.Context) error {
	var callID string
	var mediaType media.Type

	err := c.do(ctx, func() error {
		s := c.current
		if c.pending || s == nil || s.State != StateIncomingRinging {
			return callsdk.NewInvalidState("accept", string(c.stateLocked()))
		}
		if s.autoDecline != nil && !c.scheduler.Cancel(s.autoDecline) {
			// Already fired; its event is on the way.
			c.hangupAndEnd(s, EndReasonTimeout)
			return callsdk.NewInvalidState("accept", string(StateEnded))
		}
		c.pending = true
		callID, mediaType = s.CallID, s.MediaType
		return nil
	})
	if err != nil {
		return err
	}

	stream, acqErr := c.media.Acquire(ctx, mediaType)

	err = c.do(context.Background(), func() error {
		return c.finishAccept(callID, stream, acqErr)
	})
	if errors.Is(err, ErrClosed) {
		c.media.Release(stream)
	}
	return err
}

func (c *Controller) finishAccept(callID string, stream *media.Stream, acqErr error) error {
	c.pending = false

	s := c.current
	if s == nil || s.CallID != callID || s.State != StateIncomingRinging {
		// The call ended while media was being acquired.
		c.media.Release(stream)
		if acqErr != nil {
			return acqErr
		}
		return callsdk.NewInvalidState("accept", string(StateEnded))
	}

	if acqErr != nil {
		c.hangupAndEnd(s, EndReasonMediaAccessDenied)
		return acqErr
	}
	s.stream = stream

	mgr, err := c.peers.Create(callID, stream.TrackLocals(), peer.CreateOptions{
		Candidates: s.candidates,
		ICEServers: c.config.ICEServers,
	})
	if err != nil {
		c.fail(s, callsdk.NewNegotiationFailure("createPeerConnection", callID, err))
		return nil
	}
	s.peer = mgr

	answer, err := mgr.CreateAnswer(s.remoteOffer)
	if err != nil {
		c.fail(s, err)
		return nil
	}
	s.remoteOffer = ""

	s.negotiation = c.scheduler.Schedule(callID, timeout.KindNegotiation, c.config.NegotiationTimeout, c.timerFunc(timeout.KindNegotiation))
	c.transition(s, StateNegotiating)
	if err := c.send(signaling.Message{
		CallID:   callID,
		Type:     signaling.TypeAnswer,
		SDP:      answer,
		ToUserID: s.RemoteUserID,
	}); err != nil {
		c.logger.Warn("failed to send answer", zap.String("call_id", callID), zap.Error(err))
		c.end(s, EndReasonNetworkFailure)
	}
	return nil
}

// Decline rejects a ringing call, incoming or outgoing.
func (c *Controller) Decline() error {
	return c.do(context.Background(), func() error {
		s := c.current
		if s == nil || (s.State != StateIncomingRinging && s.State != StateOutgoingRinging) {
			return callsdk.NewInvalidState("decline", string(c.stateLocked()))
		}
		c.hangupAndEnd(s, EndReasonDeclined)
		return nil
	})
}

// Hangup ends a call that is negotiating or active. Hanging up a call
// that is still ringing out cancels it.
func (c *Controller) Hangup() error {
	return c.do(context.Background(), func() error {
		s := c.current
		if s == nil {
			return callsdk.NewInvalidState("hangup", string(StateIdle))
		}
		switch s.State {
		case StateNegotiating, StateActive, StateOutgoingRinging:
			c.hangupAndEnd(s, EndReasonLocalHangup)
			return nil
		default:
			return callsdk.NewInvalidState("hangup", string(s.State))
		}
	})
}

// ToggleMute flips the microphone and reports whether it is now muted.
func (c *Controller) ToggleMute() (bool, error) {
	var muted bool
	err := c.do(context.Background(), func() error {
		s, err := c.activeSession("toggleMute")
		if err != nil {
			return err
		}
		audio := s.stream.AudioTrack()
		if audio == nil {
			return callsdk.NewInvalidState("toggleMute", string(s.State))
		}
		enabled := !audio.Enabled()
		c.media.SetAudioEnabled(s.stream, enabled)
		muted = !enabled
		return nil
	})
	return muted, err
}

// ToggleVideo flips the camera picture and reports whether it is now enabled.
func (c *Controller) ToggleVideo() (bool, error) {
	var enabled bool
	err := c.do(context.Background(), func() error {
		s, err := c.activeSession("toggleVideo")
		if err != nil {
			return err
		}
		if c.pending {
			return callsdk.NewInvalidState("toggleVideo", string(s.State))
		}
		video := s.stream.VideoTrack()
		if video == nil {
			return media.ErrNoVideoTrack
		}
		enabled = !video.Enabled()
		return c.media.SetVideoEnabled(s.stream, enabled)
	})
	return enabled, err
}

// SwitchCamera swaps the camera for the one facing the other way. The new
// track replaces the old one on the existing video sender, so no
// renegotiation happens. A failure is also reported as EventMediaError and
// the call stays active.
func (c *Controller) SwitchCamera(ctx context.Context) error {
	var callID string
	var stream *media.Stream

	err := c.do(ctx, func() error {
		s, err := c.activeSession("switchCamera")
		if err != nil {
			return err
		}
		if c.pending {
			return callsdk.NewInvalidState("switchCamera", string(s.State))
		}
		if s.MediaType != media.TypeVideo {
			return media.ErrNoVideoTrack
		}
		c.pending = true
		callID, stream = s.CallID, s.stream
		return nil
	})
	if err != nil {
		return err
	}

	track, switchErr := c.media.SwitchFacing(ctx, stream)

	return c.do(context.Background(), func() error {
		c.pending = false
		if switchErr != nil {
			c.emitter.Emit(EventMediaError, MediaError{CallID: callID, Err: switchErr})
			return switchErr
		}

		s := c.current
		if s == nil || s.CallID != callID || s.peer == nil {
			track.Stop()
			return callsdk.NewInvalidState("switchCamera", string(StateEnded))
		}
		if err := s.peer.ReplaceVideoTrack(track.Local()); err != nil {
			c.logger.Warn("failed to install new camera track", zap.String("call_id", callID), zap.Error(err))
			c.emitter.Emit(EventMediaError, MediaError{CallID: callID, Err: err})
			return err
		}
		c.logger.Info("camera switched",
			zap.String("call_id", callID),
			zap.String("facing", string(track.Facing())))
		return nil
	})
}

// HandleSignal processes a signaling message that arrived outside the
// configured Channel.
func (c *Controller) HandleSignal(ctx context.Context, msg signaling.Message) error {
	return c.do(ctx, func() error {
		c.onSignal(msg)
		return nil
	})
}

// ---- Loop internals ----

func (c *Controller) stateLocked() State {
	if c.current == nil {
		return StateIdle
	}
	return c.current.State
}

func (c *Controller) activeSession(op string) (*callSession, error) {
	s := c.current
	if s == nil || s.State != StateActive {
		return nil, callsdk.NewInvalidState(op, string(c.stateLocked()))
	}
	return s, nil
}

func (c *Controller) send(msg signaling.Message) error {
	msg.FromUserID = c.config.LocalUserID
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return c.signaling.Send(ctx, msg)
}

func (c *Controller) sendHangup(s *callSession, reason EndReason) {
	err := c.send(signaling.Message{
		CallID:   s.CallID,
		Type:     signaling.TypeHangup,
		ToUserID: s.RemoteUserID,
		Reason:   reason.wireReason(),
	})
	if err != nil {
		c.logger.Warn("failed to send hangup", zap.String("call_id", s.CallID), zap.Error(err))
	}
}

func (c *Controller) hangupAndEnd(s *callSession, reason EndReason) {
	c.sendHangup(s, reason)
	c.end(s, reason)
}

// fail ends s after a negotiation error.
func (c *Controller) fail(s *callSession, err error) {
	c.logger.Warn("negotiation failed", zap.String("call_id", s.CallID), zap.Error(err))
	c.hangupAndEnd(s, EndReasonNegotiationError)
}

func (c *Controller) transition(s *callSession, to State) {
	from := s.State
	s.State = to
	c.logger.Info("call state changed",
		zap.String("call_id", s.CallID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	c.emitter.Emit(EventStateChanged, StateChange{From: from, To: to, Session: s.snapshot()})
}

// end moves s to Ended and releases everything it holds. Every step runs
// even if an earlier one fails. Ending a session twice does nothing.
func (c *Controller) end(s *callSession, reason EndReason) {
	if s.cleaned {
		return
	}
	s.cleaned = true

	for _, h := range s.handles() {
		c.scheduler.Cancel(h)
	}
	if s.peer != nil {
		if err := s.peer.Close(); err != nil {
			c.logger.Warn("failed to close peer connection", zap.String("call_id", s.CallID), zap.Error(err))
		}
	}
	c.media.Release(s.stream)
	s.candidates.Clear()
	s.remoteOffer = ""

	if c.current == s {
		c.current = nil
	}

	s.EndedAt = c.scheduler.Now()
	s.EndReason = reason
	c.transition(s, StateEnded)
	c.emitter.Emit(EventEnded, s.snapshot())
	c.logger.Info("call ended",
		zap.String("call_id", s.CallID),
		zap.String("reason", string(reason)))
}

func (c *Controller) timerFunc(kind timeout.Kind) func(string) {
	return func(callID string) {
		select {
		case c.timers <- timerEvent{callID: callID, kind: kind}:
		case <-c.stopped:
		}
	}
}

func (c *Controller) onTimer(t timerEvent) {
	s := c.current
	if s == nil || s.CallID != t.callID {
		return
	}

	switch t.kind {
	case timeout.KindAutoDecline:
		if s.State == StateIncomingRinging && s.autoDecline != nil && s.autoDecline.Fired() {
			c.logger.Info("incoming call not answered", zap.String("call_id", s.CallID))
			c.hangupAndEnd(s, EndReasonTimeout)
		}
	case timeout.KindRing:
		if s.State == StateOutgoingRinging && s.ringTimer != nil && s.ringTimer.Fired() {
			c.logger.Info("outgoing call not answered",
				zap.String("call_id", s.CallID),
				zap.Error(callsdk.NewSignalingTimeout(s.CallID)))
			c.hangupAndEnd(s, EndReasonTimeout)
		}
	case timeout.KindNegotiation:
		if s.State == StateNegotiating && s.negotiation != nil && s.negotiation.Fired() {
			c.logger.Warn("connection not established in time",
				zap.String("call_id", s.CallID),
				zap.Error(callsdk.NewConnectionFailure(s.CallID, "negotiation timeout")))
			c.hangupAndEnd(s, EndReasonNetworkFailure)
		}
	}
}

func (c *Controller) onSignal(msg signaling.Message) {
	logger := c.logger.With(
		zap.String("call_id", msg.CallID),
		zap.String("type", string(msg.Type)),
		zap.String("from", msg.FromUserID))

	if err := msg.Validate(); err != nil {
		logger.Warn("dropping signaling message", zap.Error(err))
		return
	}
	if msg.ToUserID != "" && msg.ToUserID != c.config.LocalUserID {
		logger.Warn("dropping message addressed to another user", zap.String("to", msg.ToUserID))
		return
	}

	if msg.Type == signaling.TypeOffer {
		c.onOffer(msg, logger)
		return
	}

	s := c.current
	if s == nil || s.CallID != msg.CallID {
		logger.Debug("dropping message for stale call")
		return
	}

	switch msg.Type {
	case signaling.TypeAck:
		s.Registered = true
	case signaling.TypeAnswer:
		c.onAnswer(s, msg, logger)
	case signaling.TypeICECandidate:
		cand := msg.ICECandidate.Init()
		if s.peer == nil {
			s.candidates.Push(cand)
			return
		}
		// A candidate that cannot be applied never ends the call.
		if err := s.peer.AddICECandidate(cand); err != nil {
			if callsdk.IsICECandidateError(err) {
				logger.Debug("remote candidate not applied", zap.Error(err))
			} else {
				logger.Warn("unexpected candidate failure", zap.Error(err))
			}
		}
	case signaling.TypeHangup:
		reason := EndReasonRemoteHangup
		if s.State == StateOutgoingRinging {
			reason = EndReasonDeclined
			if msg.Reason == signaling.ReasonBusy {
				reason = EndReasonBusy
			}
		}
		c.end(s, reason)
	}
}

func (c *Controller) onOffer(msg signaling.Message, logger *zap.Logger) {
	if c.current != nil && c.current.CallID == msg.CallID {
		logger.Debug("dropping repeated offer")
		return
	}
	if c.current != nil || c.pending {
		logger.Info("rejecting call while busy")
		err := c.send(signaling.Message{
			CallID:   msg.CallID,
			Type:     signaling.TypeHangup,
			ToUserID: msg.FromUserID,
			Reason:   signaling.ReasonBusy,
		})
		if err != nil {
			logger.Warn("failed to send busy", zap.Error(err))
		}
		return
	}

	info, err := peer.DescribeOffer(msg.SDP)
	if err != nil {
		logger.Warn("rejecting unreadable offer", zap.Error(err))
		_ = c.send(signaling.Message{
			CallID:   msg.CallID,
			Type:     signaling.TypeHangup,
			ToUserID: msg.FromUserID,
			Reason:   signaling.ReasonNegotiationError,
		})
		return
	}
	mediaType := media.TypeAudio
	if info.Video {
		mediaType = media.TypeVideo
	}

	s := newCallSession(msg.CallID, c.config.LocalUserID, msg.FromUserID, DirectionIncoming, mediaType, c.scheduler.Now())
	s.remoteOffer = msg.SDP
	s.Registered = true
	c.current = s
	c.transition(s, StateIncomingRinging)
	s.autoDecline = c.scheduler.ScheduleAutoDecline(s.CallID, c.config.RingTimeout, c.timerFunc(timeout.KindAutoDecline))
	c.emitter.Emit(EventIncomingCall, s.snapshot())
	logger.Info("incoming call", zap.String("media_type", string(mediaType)))
}

func (c *Controller) onAnswer(s *callSession, msg signaling.Message, logger *zap.Logger) {
	switch s.State {
	case StateOutgoingRinging:
		c.scheduler.Cancel(s.ringTimer)
		s.Registered = true
		s.negotiation = c.scheduler.Schedule(s.CallID, timeout.KindNegotiation, c.config.NegotiationTimeout, c.timerFunc(timeout.KindNegotiation))
		c.transition(s, StateNegotiating)
		if err := s.peer.SetRemoteDescription(webrtc.SDPTypeAnswer, msg.SDP); err != nil {
			c.fail(s, err)
		}
	case StateNegotiating:
		logger.Debug("ignoring duplicate answer")
	default:
		logger.Debug("dropping answer", zap.String("state", string(s.State)))
	}
}

func (c *Controller) onPeerEvent(ev peer.Event) {
	s := c.current
	if s == nil || s.CallID != ev.CallID {
		return
	}

	switch ev.Kind {
	case peer.EventICECandidate:
		err := c.send(signaling.Message{
			CallID:       s.CallID,
			Type:         signaling.TypeICECandidate,
			ICECandidate: signaling.CandidateFromInit(ev.Candidate),
			ToUserID:     s.RemoteUserID,
		})
		if err != nil {
			c.logger.Warn("failed to send candidate", zap.String("call_id", s.CallID), zap.Error(err))
		}

	case peer.EventConnectionState:
		switch ev.State {
		case webrtc.PeerConnectionStateConnected:
			if s.State == StateNegotiating {
				c.scheduler.Cancel(s.negotiation)
				s.ConnectedAt = c.scheduler.Now()
				c.transition(s, StateActive)
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
			if s.State == StateNegotiating || s.State == StateActive {
				c.logger.Warn("connection lost",
					zap.String("call_id", s.CallID),
					zap.Error(callsdk.NewConnectionFailure(s.CallID, ev.State.String())))
				c.hangupAndEnd(s, EndReasonNetworkFailure)
			}
		}

	case peer.EventRemoteTrack:
		c.emitter.Emit(EventRemoteStream, RemoteStream{CallID: s.CallID, Track: ev.Track})
	}
}
