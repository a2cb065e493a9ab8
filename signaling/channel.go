/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package signaling

import (
	"context"
	"errors"
	"sync"
)

// Channel carries signaling messages to and from the backend. Messages
// delivers inbound messages in arrival order.
type Channel interface {
	Send(ctx context.Context, msg Message) error
	Messages() <-chan Message
}

// ErrChannelClosed is returned by Send after the channel is closed.
var ErrChannelClosed = errors.New("signaling channel closed")

// pipeBuffer bounds how many messages an end holds before Send blocks.
const pipeBuffer = 256

// PipeEnd is one side of an in-memory Channel pair.
type PipeEnd struct {
	userID string
	inbox  chan Message
	peer   *PipeEnd
	done   chan struct{}
	once   *sync.Once
}

// NewPipe connects two users directly. A message sent on one end is
// delivered on the other end's Messages, stamped with the sender's id.
func NewPipe(userA, userB string) (*PipeEnd, *PipeEnd) {
	done := make(chan struct{})
	once := &sync.Once{}
	a := &PipeEnd{userID: userA, inbox: make(chan Message, pipeBuffer), done: done, once: once}
	b := &PipeEnd{userID: userB, inbox: make(chan Message, pipeBuffer), done: done, once: once}
	a.peer, b.peer = b, a
	return a, b
}

// UserID returns the user this end belongs to.
func (p *PipeEnd) UserID() string { return p.userID }

// Send delivers msg to the other end.
func (p *PipeEnd) Send(ctx context.Context, msg Message) error {
	if msg.FromUserID == "" {
		msg.FromUserID = p.userID
	}
	if msg.ToUserID == "" {
		msg.ToUserID = p.peer.userID
	}
	select {
	case <-p.done:
		return ErrChannelClosed
	default:
	}
	select {
	case p.peer.inbox <- msg:
		return nil
	case <-p.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns messages sent by the other end.
func (p *PipeEnd) Messages() <-chan Message { return p.inbox }

// Close shuts down both ends. Messages already queued stay readable.
func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
