/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Command callctl is a terminal client for 1:1 calls. It captures the local
// camera and microphone, signals through a relay, and reads commands from
// stdin.
//
// Usage:
//
//	CALL_USER_ID=alice go run ./cmd/callctl -config config/local.yaml
//
// Commands: call <user> [audio|video], accept, decline, hangup, mute,
// video, switch, status, quit.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pion/rtp"
	"go.uber.org/zap"

	"github.com/tejzpr/p2pcall-go-sdk/calling"
	"github.com/tejzpr/p2pcall-go-sdk/callsdk"
	"github.com/tejzpr/p2pcall-go-sdk/config"
	"github.com/tejzpr/p2pcall-go-sdk/media"
	"github.com/tejzpr/p2pcall-go-sdk/media/device"
	"github.com/tejzpr/p2pcall-go-sdk/peer"
	"github.com/tejzpr/p2pcall-go-sdk/signaling"
	"github.com/tejzpr/p2pcall-go-sdk/timeout"
)

func main() {
	cfg := config.MustLoad()
	if cfg.Signaling.UserID == "" {
		fmt.Println("signaling.user_id (or CALL_USER_ID) is required")
		os.Exit(1)
	}

	logger, err := callsdk.NewLogger(cfg.LoggerConfig())
	if err != nil {
		fmt.Printf("ERROR creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctrl, closeAll, err := setup(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer closeAll()

	go func() {
		if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("call controller stopped", zap.Error(err))
		}
	}()

	fmt.Printf("Signed in as %s. Type 'help' for commands.\n", cfg.Signaling.UserID)
	lines := make(chan string)
	go readLines(lines)

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleCommand(ctx, ctrl, line); quit {
				return
			}
		}
	}
}

// setup wires devices, signaling and the controller together.
func setup(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*calling.Controller, func(), error) {
	source, err := device.NewSource(nil, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open capture devices: %w", err)
	}

	client := signaling.NewClient(cfg.ClientConfig(), logger)
	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to reach signaling relay: %w", err)
	}

	peers, err := peer.NewFactory(cfg.PeerConfig(), logger)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	ctrl, err := calling.New(cfg.CallConfig(), calling.Dependencies{
		Signaling: client,
		Media:     media.NewController(source, cfg.MediaConfig(), logger),
		Peers:     peers,
		Scheduler: timeout.New(nil, logger),
		Logger:    logger,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	ctrl.OnIncomingCall(func(s calling.Session) {
		fmt.Printf("\nIncoming %s call from %s. Type 'accept' or 'decline'.\n> ", s.MediaType, s.RemoteUserID)
	})
	ctrl.OnStateChanged(func(sc calling.StateChange) {
		fmt.Printf("\n[%s] %s -> %s\n> ", short(sc.Session.CallID), sc.From, sc.To)
	})
	ctrl.OnEnded(func(s calling.Session) {
		dur := ""
		if !s.ConnectedAt.IsZero() {
			dur = fmt.Sprintf(" after %s", s.EndedAt.Sub(s.ConnectedAt).Round(time.Second))
		}
		fmt.Printf("\nCall with %s ended: %s%s\n> ", s.RemoteUserID, s.EndReason, dur)
	})
	ctrl.OnMediaError(func(me calling.MediaError) {
		fmt.Printf("\nMedia error: %v\n> ", me.Err)
	})
	ctrl.OnRemoteStream(func(rs calling.RemoteStream) {
		go drain(rs, logger)
	})

	closeAll := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ctrl.Close(closeCtx)
		_ = client.Close()
	}
	return ctrl, closeAll, nil
}

// drain reads a remote track until it ends. Playback is left to the
// platform; callctl only reports what it received.
func drain(rs calling.RemoteStream, logger *zap.Logger) {
	var bytes int
	n, err := rs.Track.Drain(func(p *rtp.Packet) { bytes += len(p.Payload) })
	logger.Info("remote track finished",
		zap.String("call_id", rs.CallID),
		zap.String("track_id", rs.Track.ID),
		zap.String("kind", rs.Track.Kind.String()),
		zap.Int("packets", n),
		zap.Int("payload_bytes", bytes),
		zap.Error(err))
}

func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func handleCommand(ctx context.Context, ctrl *calling.Controller, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch fields[0] {
	case "call":
		if len(fields) < 2 {
			fmt.Println("usage: call <user> [audio|video]")
			return false
		}
		mediaType := media.TypeVideo
		if len(fields) > 2 {
			mediaType = media.Type(fields[2])
		}
		var callID string
		callID, err = ctrl.Initiate(ctx, fields[1], mediaType)
		if err == nil {
			fmt.Printf("Calling %s (%s)...\n", fields[1], short(callID))
		}
	case "accept":
		err = ctrl.Accept(ctx)
	case "decline":
		err = ctrl.Decline()
	case "hangup":
		err = ctrl.Hangup()
	case "mute":
		var muted bool
		if muted, err = ctrl.ToggleMute(); err == nil {
			fmt.Printf("Microphone muted: %v\n", muted)
		}
	case "video":
		var enabled bool
		if enabled, err = ctrl.ToggleVideo(); err == nil {
			fmt.Printf("Camera on: %v\n", enabled)
		}
	case "switch":
		err = ctrl.SwitchCamera(ctx)
	case "status":
		if s, ok := ctrl.Session(); ok {
			fmt.Printf("%s call with %s: %s\n", s.Direction, s.RemoteUserID, s.State)
		} else {
			fmt.Println("No call")
		}
	case "quit", "exit":
		return true
	case "help":
		fmt.Println("call <user> [audio|video] | accept | decline | hangup | mute | video | switch | status | quit")
	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}

	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
	}
	return false
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
