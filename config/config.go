/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package config loads deployment configuration for the call client and
// the signaling relay from a YAML file with environment overrides.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"

	"github.com/tejzpr/p2pcall-go-sdk/calling"
	"github.com/tejzpr/p2pcall-go-sdk/callsdk"
	"github.com/tejzpr/p2pcall-go-sdk/media"
	"github.com/tejzpr/p2pcall-go-sdk/peer"
	"github.com/tejzpr/p2pcall-go-sdk/signaling"
	"github.com/tejzpr/p2pcall-go-sdk/signaling/relay"
)

type Config struct {
	Env       string          `yaml:"env" env:"CALL_ENV" env-default:"local"`
	Log       LogConfig       `yaml:"log"`
	WebRTC    WebRTCConfig    `yaml:"webrtc"`
	Call      CallConfig      `yaml:"call"`
	Signaling SignalingConfig `yaml:"signaling"`
	Media     MediaConfig     `yaml:"media"`
	Relay     RelayConfig     `yaml:"relay"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"CALL_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"CALL_LOG_FORMAT" env-default:"console"`
}

type WebRTCConfig struct {
	STUNServers    []string `yaml:"stun_servers" env:"CALL_STUN_SERVERS" env-separator:","`
	TURNServers    []string `yaml:"turn_servers" env:"CALL_TURN_SERVERS" env-separator:","`
	TURNUsername   string   `yaml:"turn_username" env:"CALL_TURN_USERNAME"`
	TURNCredential string   `yaml:"turn_credential" env:"CALL_TURN_CREDENTIAL"`
}

type CallConfig struct {
	RingTimeout         time.Duration `yaml:"ring_timeout" env:"CALL_RING_TIMEOUT" env-default:"30s"`
	OutgoingRingTimeout time.Duration `yaml:"outgoing_ring_timeout" env:"CALL_OUTGOING_RING_TIMEOUT" env-default:"45s"`
	NegotiationTimeout  time.Duration `yaml:"negotiation_timeout" env:"CALL_NEGOTIATION_TIMEOUT" env-default:"20s"`
}

type SignalingConfig struct {
	URL    string `yaml:"url" env:"CALL_SIGNALING_URL" env-default:"ws://localhost:8080/ws"`
	UserID string `yaml:"user_id" env:"CALL_USER_ID"`
}

type MediaConfig struct {
	Width         int     `yaml:"width" env:"CALL_VIDEO_WIDTH" env-default:"640"`
	Height        int     `yaml:"height" env:"CALL_VIDEO_HEIGHT" env-default:"480"`
	FrameRate     float64 `yaml:"frame_rate" env:"CALL_VIDEO_FRAME_RATE" env-default:"30"`
	InitialFacing string  `yaml:"initial_facing" env:"CALL_VIDEO_FACING" env-default:"user"`
}

type RelayConfig struct {
	Address        string        `yaml:"address" env:"CALL_RELAY_ADDRESS" env-default:":8080"`
	Path           string        `yaml:"path" env:"CALL_RELAY_PATH" env-default:"/ws"`
	PingPeriod     time.Duration `yaml:"ping_period" env:"CALL_RELAY_PING_PERIOD" env-default:"50s"`
	PongWait       time.Duration `yaml:"pong_wait" env:"CALL_RELAY_PONG_WAIT" env-default:"60s"`
	MaxMessageSize int64         `yaml:"max_message_size" env:"CALL_RELAY_MAX_MESSAGE_SIZE" env-default:"65536"`
}

// Load reads the YAML file at path, then applies environment overrides. An
// empty path reads the environment only. A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read config from environment: %w", err)
		}
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad loads the file named by the -config flag or CONFIG_PATH and
// panics on failure.
func MustLoad() *Config {
	cfg, err := Load(fetchConfigPath())
	if err != nil {
		panic(err)
	}
	return cfg
}

func fetchConfigPath() string {
	var res string

	if flag.Lookup("config") == nil {
		flag.StringVar(&res, "config", "", "path to config file")
	}
	if !flag.Parsed() {
		flag.Parse()
	}
	if f := flag.Lookup("config"); f != nil {
		res = f.Value.String()
	}

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	return res
}

func (c *Config) setDefaults() {
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.Media.InitialFacing == "" {
		c.Media.InitialFacing = string(media.FacingUser)
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Call.RingTimeout <= 0 || c.Call.OutgoingRingTimeout <= 0 || c.Call.NegotiationTimeout <= 0 {
		errs = append(errs, errors.New("call timeouts must be positive"))
	}
	switch media.Facing(c.Media.InitialFacing) {
	case media.FacingUser, media.FacingEnvironment:
	default:
		errs = append(errs, fmt.Errorf("unknown camera facing %q", c.Media.InitialFacing))
	}
	if c.Relay.PingPeriod <= 0 || c.Relay.PingPeriod >= c.Relay.PongWait {
		errs = append(errs, errors.New("relay ping_period must be positive and less than pong_wait"))
	}
	if len(c.WebRTC.TURNServers) > 0 && c.WebRTC.TURNUsername == "" {
		errs = append(errs, errors.New("turn_username is required with turn_servers"))
	}
	return errors.Join(errs...)
}

// LoggerConfig converts the log section for callsdk.NewLogger.
func (c *Config) LoggerConfig() *callsdk.LogConfig {
	return &callsdk.LogConfig{Level: c.Log.Level, Format: c.Log.Format}
}

// PeerConfig lists the STUN servers in configured order.
func (c *Config) PeerConfig() *peer.Config {
	cfg := peer.DefaultConfig()
	cfg.ICEServers = make([]webrtc.ICEServer, 0, len(c.WebRTC.STUNServers))
	for _, url := range c.WebRTC.STUNServers {
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{URLs: []string{url}})
	}
	return cfg
}

// CallConfig builds the controller configuration. TURN servers, if any,
// are passed per call so they follow the STUN list.
func (c *Config) CallConfig() calling.Config {
	cfg := calling.Config{
		LocalUserID:         c.Signaling.UserID,
		RingTimeout:         c.Call.RingTimeout,
		OutgoingRingTimeout: c.Call.OutgoingRingTimeout,
		NegotiationTimeout:  c.Call.NegotiationTimeout,
	}
	if len(c.WebRTC.TURNServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{
			URLs:       c.WebRTC.TURNServers,
			Username:   c.WebRTC.TURNUsername,
			Credential: c.WebRTC.TURNCredential,
		}}
	}
	return cfg
}

// ClientConfig builds the websocket signaling client configuration.
func (c *Config) ClientConfig() *signaling.ClientConfig {
	cfg := signaling.DefaultClientConfig()
	cfg.URL = c.Signaling.URL
	cfg.UserID = c.Signaling.UserID
	return cfg
}

// MediaConfig builds the capture configuration.
func (c *Config) MediaConfig() *media.Config {
	return &media.Config{
		Width:         c.Media.Width,
		Height:        c.Media.Height,
		FrameRate:     c.Media.FrameRate,
		InitialFacing: media.Facing(c.Media.InitialFacing),
	}
}

// RelayConfig builds the relay hub configuration.
func (c *Config) RelayConfig() *relay.Config {
	cfg := relay.DefaultConfig()
	cfg.PingPeriod = c.Relay.PingPeriod
	cfg.PongWait = c.Relay.PongWait
	if c.Relay.MaxMessageSize > 0 {
		cfg.MaxMessageSize = c.Relay.MaxMessageSize
	}
	return cfg
}
