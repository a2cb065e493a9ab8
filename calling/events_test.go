/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/tejzpr/p2pcall-go-sdk/calling"
)

func TestEventEmitterOrder(t *testing.T) {
	e := calling.NewEventEmitter()
	got := make(chan int, 100)
	e.On(calling.EventStateChanged, func(data interface{}) { got <- data.(int) })

	for i := 0; i < 50; i++ {
		e.Emit(calling.EventStateChanged, i)
	}
	e.Close()

	select {
	case <-e.Stopped():
	case <-time.After(waitTimeout):
		t.Fatal("Timed out waiting for dispatcher to stop")
	}
	close(got)

	var seen []int
	for v := range got {
		seen = append(seen, v)
	}
	if len(seen) != 50 {
		t.Fatalf("Expected 50 events, got %d", len(seen))
	}
	for i, v := range seen {
		if v != i {
			t.Fatalf("Expected event %d at position %d, got %d", i, i, v)
		}
	}
}

func TestEventEmitterHandlers(t *testing.T) {
	e := calling.NewEventEmitter()
	defer e.Close()

	var order []string
	done := make(chan struct{})
	e.On(calling.EventEnded, func(interface{}) { order = append(order, "first") })
	e.On(calling.EventEnded, func(interface{}) { order = append(order, "second") })
	e.On(calling.EventEnded, func(interface{}) { close(done) })
	e.On(calling.EventEnded, nil)

	e.Emit(calling.EventEnded, nil)
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("Timed out waiting for handlers")
	}
	if !reflect.DeepEqual(order, []string{"first", "second"}) {
		t.Errorf("Expected handlers in registration order, got %v", order)
	}
}

func TestEventEmitterOffAndClose(t *testing.T) {
	e := calling.NewEventEmitter()
	calls := make(chan struct{}, 4)
	e.On(calling.EventMediaError, func(interface{}) { calls <- struct{}{} })
	e.Off(calling.EventMediaError)
	e.Emit(calling.EventMediaError, nil)

	e.Close()
	e.Close()
	<-e.Stopped()
	e.Emit(calling.EventMediaError, nil)

	if len(calls) != 0 {
		t.Errorf("Expected no handler calls, got %d", len(calls))
	}
}

func TestEventEmitterReentrantClose(t *testing.T) {
	e := calling.NewEventEmitter()
	e.On(calling.EventEnded, func(interface{}) { e.Close() })
	e.Emit(calling.EventEnded, nil)

	select {
	case <-e.Stopped():
	case <-time.After(waitTimeout):
		t.Fatal("Expected Close from a handler not to deadlock")
	}
}
