/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package peer

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// CandidateBuffer holds remote ICE candidates that arrive before the remote
// description is known. Candidates come out in the order they went in.
type CandidateBuffer struct {
	mu    sync.Mutex
	items []webrtc.ICECandidateInit
}

// NewCandidateBuffer creates an empty buffer.
func NewCandidateBuffer() *CandidateBuffer {
	return &CandidateBuffer{}
}

// Push appends a candidate.
func (b *CandidateBuffer) Push(c webrtc.ICECandidateInit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, c)
}

// Drain removes and returns every buffered candidate in arrival order.
func (b *CandidateBuffer) Drain() []webrtc.ICECandidateInit {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

// Len returns the number of buffered candidates.
func (b *CandidateBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Clear discards every buffered candidate.
func (b *CandidateBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
}
