/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package peer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestCandidateBuffer(t *testing.T) {
	t.Run("drain preserves order", func(t *testing.T) {
		b := NewCandidateBuffer()
		for i := 0; i < 5; i++ {
			b.Push(webrtc.ICECandidateInit{Candidate: fmt.Sprintf("c%d", i)})
		}
		if b.Len() != 5 {
			t.Fatalf("Expected 5 buffered candidates, got %d", b.Len())
		}
		got := b.Drain()
		for i, c := range got {
			if want := fmt.Sprintf("c%d", i); c.Candidate != want {
				t.Errorf("Position %d: expected %s, got %s", i, want, c.Candidate)
			}
		}
		if b.Len() != 0 {
			t.Errorf("Expected empty buffer after drain, got %d", b.Len())
		}
		if again := b.Drain(); len(again) != 0 {
			t.Errorf("Expected second drain to be empty, got %d", len(again))
		}
	})

	t.Run("clear", func(t *testing.T) {
		b := NewCandidateBuffer()
		b.Push(webrtc.ICECandidateInit{Candidate: "a"})
		b.Clear()
		if b.Len() != 0 {
			t.Errorf("Expected empty buffer after clear, got %d", b.Len())
		}
	})

	t.Run("concurrent push", func(t *testing.T) {
		b := NewCandidateBuffer()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.Push(webrtc.ICECandidateInit{Candidate: "x"})
			}()
		}
		wg.Wait()
		if b.Len() != 50 {
			t.Errorf("Expected 50 candidates, got %d", b.Len())
		}
	})
}
