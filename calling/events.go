/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import (
	"sync"

	"github.com/tejzpr/p2pcall-go-sdk/peer"
)

// EventKey identifies the type of controller event
type EventKey string

const (
	// EventIncomingCall carries the new Session.
	EventIncomingCall EventKey = "incoming_call"
	// EventStateChanged carries a StateChange.
	EventStateChanged EventKey = "state_changed"
	// EventRemoteStream carries a RemoteStream.
	EventRemoteStream EventKey = "remote_stream"
	// EventEnded carries the final Session.
	EventEnded EventKey = "ended"
	// EventMediaError carries a MediaError. The call continues.
	EventMediaError EventKey = "media_error"
)

// StateChange is the payload of EventStateChanged.
type StateChange struct {
	From    State
	To      State
	Session Session
}

// RemoteStream is the payload of EventRemoteStream.
type RemoteStream struct {
	CallID string
	Track  peer.RemoteTrack
}

// MediaError is the payload of EventMediaError.
type MediaError struct {
	CallID string
	Err    error
}

// ---- Event Emitter ----

// EventHandler is a callback function for events
type EventHandler func(data interface{})

type queuedEvent struct {
	key  EventKey
	data interface{}
}

// EventEmitter provides a simple event pub/sub system. Emit never blocks:
// events are queued and handlers run one at a time, in emission order, on
// a dispatcher goroutine.
type EventEmitter struct {
	mu       sync.RWMutex
	handlers map[EventKey][]EventHandler

	qmu     sync.Mutex
	queue   []queuedEvent
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewEventEmitter creates a new EventEmitter and starts its dispatcher
func NewEventEmitter() *EventEmitter {
	e := &EventEmitter{
		handlers: make(map[EventKey][]EventHandler),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go e.dispatch()
	return e
}

// On registers an event handler for a specific event type
func (e *EventEmitter) On(event EventKey, handler EventHandler) {
	if handler == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], handler)
}

// Off removes all handlers for a specific event type
func (e *EventEmitter) Off(event EventKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, event)
}

// Emit queues an event for the registered handlers
func (e *EventEmitter) Emit(event EventKey, data interface{}) {
	select {
	case <-e.done:
		return
	default:
	}

	e.qmu.Lock()
	e.queue = append(e.queue, queuedEvent{key: event, data: data})
	e.qmu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting events. Events already queued are still
// delivered; Stopped is closed once the last handler has returned.
func (e *EventEmitter) Close() {
	e.once.Do(func() { close(e.done) })
}

// Stopped is closed when the dispatcher has exited.
func (e *EventEmitter) Stopped() <-chan struct{} { return e.stopped }

func (e *EventEmitter) dispatch() {
	defer close(e.stopped)
	for {
		select {
		case <-e.wake:
			e.drain()
		case <-e.done:
			e.drain()
			return
		}
	}
}

func (e *EventEmitter) drain() {
	for {
		e.qmu.Lock()
		batch := e.queue
		e.queue = nil
		e.qmu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, ev := range batch {
			e.mu.RLock()
			handlers := make([]EventHandler, len(e.handlers[ev.key]))
			copy(handlers, e.handlers[ev.key])
			e.mu.RUnlock()

			for _, handler := range handlers {
				handler(ev.data)
			}
		}
	}
}
