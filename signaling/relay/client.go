/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tejzpr/p2pcall-go-sdk/signaling"
)

// client is one websocket connection. readPump and writePump each own one
// direction of the connection.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	id     string
	userID string
	logger *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// readPump reads messages until the connection fails, then unregisters.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	cfg := c.hub.config
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("unexpected close", zap.Error(err))
			}
			return
		}

		var msg signaling.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("invalid message", zap.Error(err))
			continue
		}
		c.hub.route(c, msg)
	}
}

// writePump writes queued messages and pings the peer.
func (c *client) writePump() {
	cfg := c.hub.config
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// enqueue queues msg for writing. A client whose buffer is full is
// disconnected.
func (c *client) enqueue(msg signaling.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping connection")
		c.close()
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
