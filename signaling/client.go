/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tejzpr/p2pcall-go-sdk/callsdk"
)

// ErrNotConnected is returned by Send while no websocket is open.
var ErrNotConnected = errors.New("signaling client not connected")

// ClientConfig holds the configuration for the websocket signaling client
type ClientConfig struct {
	URL              string        // Relay endpoint, e.g. ws://localhost:8080/ws
	UserID           string        // Sent as the userId query parameter
	HandshakeTimeout time.Duration // Websocket handshake timeout
	PingInterval     time.Duration // Interval between ping messages
	PongTimeout      time.Duration // Timeout for receiving a pong response
	WriteTimeout     time.Duration // Deadline for a single write
	BackoffInitial   time.Duration // Initial time before the first retry
	BackoffMax       time.Duration // Maximum time between connection attempts
	MaxRetries       uint64        // Retries per connection attempt, 0 means unlimited
	InboxSize        int           // Capacity of the Messages channel
}

// DefaultClientConfig returns the default configuration for the client
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PongTimeout:      10 * time.Second,
		WriteTimeout:     10 * time.Second,
		BackoffInitial:   1 * time.Second,
		BackoffMax:       32 * time.Second,
		MaxRetries:       5,
		InboxSize:        256,
	}
}

// Client is a Channel backed by a websocket connection to a signaling relay.
// It reconnects on its own after the connection drops.
type Client struct {
	config *ClientConfig
	logger *zap.Logger
	dialer websocket.Dialer
	inbox  chan Message

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	writeMu   sync.Mutex
}

// NewClient creates a client. Connect must be called before Send.
func NewClient(config *ClientConfig, logger *zap.Logger) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.InboxSize <= 0 {
		config.InboxSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config: config,
		logger: callsdk.OrNop(logger).Named("signaling").With(zap.String("user_id", config.UserID)),
		dialer: websocket.Dialer{HandshakeTimeout: config.HandshakeTimeout},
		inbox:  make(chan Message, config.InboxSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect opens the websocket, retrying with exponential backoff.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.connectWithBackoff(ctx)
}

// Connected reports whether a websocket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Messages returns inbound messages in arrival order.
func (c *Client) Messages() <-chan Message { return c.inbox }

// Send writes msg to the relay.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if msg.FromUserID == "" {
		msg.FromUserID = c.config.UserID
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}

	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s message: %w", msg.Type, err)
	}
	return nil
}

// Close closes the websocket and stops reconnecting. It is safe to call
// more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancel()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed"))
		c.writeMu.Unlock()
		return conn.Close()
	}
	return nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.BackoffInitial
	b.MaxInterval = c.config.BackoffMax
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = b
	if c.config.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(b, c.config.MaxRetries)
	}
	return backoff.WithContext(policy, ctx)
}

// connectWithBackoff attempts to connect with exponential backoff
func (c *Client) connectWithBackoff(ctx context.Context) error {
	attempts := 0
	operation := func() error {
		attempts++
		if err := c.ctx.Err(); err != nil {
			return backoff.Permanent(ErrChannelClosed)
		}
		err := c.attemptConnection(ctx)
		if err != nil {
			c.logger.Warn("connection attempt failed",
				zap.Int("attempt", attempts),
				zap.Error(err))
		}
		return err
	}

	if err := backoff.Retry(operation, c.newBackOff(ctx)); err != nil {
		return fmt.Errorf("failed to connect after %d attempts: %w", attempts, err)
	}
	return nil
}

// attemptConnection makes a single connection attempt
func (c *Client) attemptConnection(ctx context.Context) error {
	wsURL, err := c.prepareURL()
	if err != nil {
		return backoff.Permanent(err)
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Time{})
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return backoff.Permanent(ErrChannelClosed)
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("connected", zap.String("url", wsURL))

	done := make(chan struct{})
	go c.listen(conn, done)
	go c.startPingPong(conn, done)
	return nil
}

// prepareURL adds the userId query parameter
func (c *Client) prepareURL() (string, error) {
	if c.config.URL == "" {
		return "", errors.New("signaling URL is not configured")
	}
	parsed, err := url.Parse(c.config.URL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	query := parsed.Query()
	query.Set("userId", c.config.UserID)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// listen reads messages from conn until it fails
func (c *Client) listen(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleConnectionError(conn, err)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping malformed message", zap.Error(err))
			continue
		}

		select {
		case c.inbox <- msg:
		case <-c.ctx.Done():
			return
		}
	}
}

// handleConnectionError triggers a reconnect unless the client was closed
// or conn was already replaced.
func (c *Client) handleConnectionError(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	_ = conn.Close()
	c.logger.Warn("connection lost, reconnecting", zap.Error(err))
	go c.reconnect()
}

func (c *Client) reconnect() {
	if err := c.connectWithBackoff(c.ctx); err != nil && c.ctx.Err() == nil {
		c.logger.Error("giving up reconnecting", zap.Error(err))
	}
}

// startPingPong keeps the connection alive
func (c *Client) startPingPong(conn *websocket.Conn, done chan struct{}) {
	if c.config.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.ping(conn); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-done:
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) ping(conn *websocket.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(c.config.PongTimeout)); err != nil {
		return err
	}
	deadline := time.Now().Add(c.config.WriteTimeout)
	return conn.WriteControl(websocket.PingMessage, []byte(fmt.Sprintf("%d", time.Now().UnixMilli())), deadline)
}
