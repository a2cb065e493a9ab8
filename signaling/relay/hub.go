/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package relay is a signaling backend. Users connect over a websocket at
// /ws?userId=<id>; the relay registers calls when it sees an offer and
// forwards answers, candidates and hangups between the two participants.
// It never handles media.
package relay

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tejzpr/p2pcall-go-sdk/callsdk"
	"github.com/tejzpr/p2pcall-go-sdk/signaling"
)

// Config holds the configuration for the relay
type Config struct {
	WriteWait      time.Duration // Maximum time to write one message
	PongWait       time.Duration // Time allowed to read the next pong
	PingPeriod     time.Duration // Interval between pings, must be less than PongWait
	MaxMessageSize int64         // Largest accepted message in bytes
	SendBuffer     int           // Outbound queue per connection
}

// DefaultConfig returns the default relay configuration
func DefaultConfig() *Config {
	return &Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     50 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
	}
}

// Hub tracks connected users and routes messages between them.
type Hub struct {
	config   *Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
	calls    *Registry

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates a Hub.
func NewHub(config *Config, logger *zap.Logger) *Hub {
	if config == nil {
		config = DefaultConfig()
	}
	return &Hub{
		config: config,
		logger: callsdk.OrNop(logger).Named("relay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		calls:   NewRegistry(),
		clients: make(map[string]*client),
	}
}

// Calls returns the call registry.
func (h *Hub) Calls() *Registry { return h.calls }

// Online reports whether userID has an open connection.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// ServeHTTP upgrades the request to a websocket and serves it until the
// connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	id := uuid.New().String()
	c := &client{
		hub:    h,
		conn:   conn,
		id:     id,
		userID: userID,
		logger: h.logger.With(zap.String("user_id", userID), zap.String("conn_id", id)),
		send:   make(chan []byte, h.config.SendBuffer),
		done:   make(chan struct{}),
	}
	h.register(c)

	go c.writePump()
	c.readPump()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	old := h.clients[c.userID]
	h.clients[c.userID] = c
	h.mu.Unlock()

	if old != nil {
		c.logger.Info("replacing existing connection", zap.String("old_conn_id", old.id))
		old.close()
	}
	c.logger.Info("client connected")
}

// unregister removes c and ends its call. A connection that was already
// replaced leaves the user's call alone.
func (h *Hub) unregister(c *client) {
	c.close()

	h.mu.Lock()
	current, ok := h.clients[c.userID]
	if !ok || current != c {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.userID)
	h.mu.Unlock()

	c.logger.Info("client disconnected")

	call, ok := h.calls.ForUser(c.userID)
	if !ok {
		return
	}
	h.calls.End(call.ID)
	other, _ := call.Other(c.userID)
	h.deliver(other, signaling.Message{
		CallID:     call.ID,
		Type:       signaling.TypeHangup,
		FromUserID: c.userID,
		ToUserID:   other,
		Reason:     signaling.ReasonNetworkFailure,
	})
}

func (h *Hub) lookup(userID string) (*client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[userID]
	return c, ok
}

// deliver queues msg for userID. It reports false when the user is offline.
func (h *Hub) deliver(userID string, msg signaling.Message) bool {
	c, ok := h.lookup(userID)
	if !ok {
		return false
	}
	c.enqueue(msg)
	return true
}

// route handles one message from c. The sender id is always the
// connection's user, whatever the message claims.
func (h *Hub) route(c *client, msg signaling.Message) {
	msg.FromUserID = c.userID
	logger := c.logger.With(zap.String("call_id", msg.CallID), zap.String("type", string(msg.Type)))

	if err := msg.Validate(); err != nil {
		logger.Warn("dropping message", zap.Error(err))
		return
	}

	switch msg.Type {
	case signaling.TypeOffer:
		h.routeOffer(c, msg, logger)
	case signaling.TypeAnswer, signaling.TypeICECandidate, signaling.TypeHangup:
		call, ok := h.calls.Get(msg.CallID)
		if !ok {
			logger.Debug("dropping message for unknown call")
			return
		}
		other, ok := call.Other(c.userID)
		if !ok {
			logger.Warn("dropping message from non-participant")
			return
		}
		if msg.Type == signaling.TypeHangup {
			h.calls.End(call.ID)
		}
		msg.ToUserID = other
		h.deliver(other, msg)
	default:
		logger.Debug("ignoring message")
	}
}

func (h *Hub) routeOffer(c *client, msg signaling.Message, logger *zap.Logger) {
	busy := func() {
		c.enqueue(signaling.Message{
			CallID:     msg.CallID,
			Type:       signaling.TypeHangup,
			FromUserID: msg.ToUserID,
			ToUserID:   c.userID,
			Reason:     signaling.ReasonBusy,
		})
	}

	if msg.ToUserID == "" || msg.ToUserID == c.userID {
		logger.Warn("dropping offer without a valid callee")
		return
	}
	if !h.Online(msg.ToUserID) {
		logger.Info("callee offline", zap.String("callee", msg.ToUserID))
		busy()
		return
	}

	if _, err := h.calls.Register(msg.CallID, c.userID, msg.ToUserID); err != nil {
		if errors.Is(err, ErrDuplicateCall) {
			logger.Warn("dropping offer for an existing call")
			return
		}
		logger.Info("rejecting offer", zap.Error(err))
		busy()
		return
	}

	c.enqueue(signaling.Message{
		CallID:     msg.CallID,
		Type:       signaling.TypeAck,
		FromUserID: msg.ToUserID,
		ToUserID:   c.userID,
	})
	h.deliver(msg.ToUserID, msg)
	logger.Info("call registered", zap.String("callee", msg.ToUserID))
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}
