package jitter

import (
	"container/heap"
	"time"
)

// BufferedEvent is spec.md §3's BufferedEvent: the JitterBuffer exclusively
// owns these until the playout engine dispatches them.
type BufferedEvent struct {
	PlayoutTime time.Time
	Sequence    uint8
	KeyDown     bool
	DurationMs  uint16
	Callsign    string
}

// eventHeap is a container/heap.Interface min-heap keyed by PlayoutTime.
type eventHeap []BufferedEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	return h[i].PlayoutTime.Before(h[j].PlayoutTime)
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(BufferedEvent))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*eventHeap)(nil)
