// Package jitter implements the JitterBuffer of spec.md §4.5, the central
// algorithm of the system: a min-heap playout scheduler with two
// scheduling disciplines (relative/duration-based, absolute/timestamp-
// based), word-space detection, late-drop, and adaptive jitter stats.
//
// The min-heap-by-deadline shape is the same structure
// rustyguts-bken/client's internal/jitter buffer uses for per-sender voice
// frame ordering, generalized here from a fixed-depth priming ring to a
// playout-time-keyed heap because spec.md's two disciplines compute very
// different deadlines per event rather than a fixed frame cadence.
package jitter

import (
	"container/heap"
	"sync"
	"time"

	"github.com/cwlink/cwlink/internal/event"
)

// Discipline selects how an arriving event's playout_time is computed.
type Discipline int

const (
	// Relative chains each event off the previous one's computed end time
	// (spec.md §4.5(a)); used with the untimestamped wire formats.
	Relative Discipline = iota
	// Absolute anchors each event to sender_offset + timestamp_ms
	// (spec.md §4.5(b)); used with the timestamped wire formats.
	Absolute
)

const (
	defaultWordSpaceThreshold = 200 * time.Millisecond
	defaultLateEpsilon        = time.Millisecond
	statsWindow               = 64
)

// Config configures a Buffer at construction.
type Config struct {
	Discipline         Discipline
	BufferDuration     time.Duration // "buffer_ms"
	LateThreshold      time.Duration // 0 uses max(500ms, buffer_ms+100ms)
	WordSpaceThreshold time.Duration // 0 uses 200ms; relative discipline only
}

// Buffer is the jitter buffer and playout scheduler. Ingestion (Push) is
// safe for concurrent use with itself and with the read-side methods
// (PopReady/Len/NextWake/Stats); it guards the heap with a mutex per
// spec.md §5 ("ingestion adds to the heap under a mutex").
type Buffer struct {
	mu sync.Mutex

	discipline    Discipline
	bufferDur     time.Duration
	lateThreshold time.Duration
	wordSpaceGap  time.Duration

	heap eventHeap

	// relative discipline state
	lastEventEnd time.Time
	lastArrival  time.Time

	// absolute discipline state
	senderEpoch    time.Time
	hasSenderEpoch bool

	// adaptive stats
	latencies      [statsWindow]time.Duration
	latencyCount   int
	latencyIdx     int
	timelineShifts uint64
	lateDrops      uint64
}

// New builds a Buffer per cfg.
func New(cfg Config) *Buffer {
	late := cfg.LateThreshold
	if late <= 0 {
		late = cfg.BufferDuration + 100*time.Millisecond
		if late < 500*time.Millisecond {
			late = 500 * time.Millisecond
		}
	}
	wordSpace := cfg.WordSpaceThreshold
	if wordSpace <= 0 {
		wordSpace = defaultWordSpaceThreshold
	}
	return &Buffer{
		discipline:    cfg.Discipline,
		bufferDur:     cfg.BufferDuration,
		lateThreshold: late,
		wordSpaceGap:  wordSpace,
	}
}

// Push computes a playout time for e, arriving at now, and enqueues it
// unless the late-drop rule vetoes it. It returns false when the event was
// dropped (late).
func (b *Buffer) Push(now time.Time, e event.Event) bool {
	return b.PushFor(now, "", e)
}

// PushFor is Push but stamps the BufferedEvent with a sender callsign
// (relay/multi-sender scenarios).
func (b *Buffer) PushFor(now time.Time, callsign string, e event.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	var playoutTime time.Time
	switch b.discipline {
	case Absolute:
		playoutTime = b.scheduleAbsolute(now, e)
	default:
		playoutTime = b.scheduleRelative(now, e)
	}

	if now.Sub(playoutTime) > b.lateThreshold {
		b.lateDrops++
		return false
	}

	b.recordLatency(playoutTime.Sub(now))

	heap.Push(&b.heap, BufferedEvent{
		PlayoutTime: playoutTime,
		Sequence:    e.Sequence,
		KeyDown:     e.KeyDown,
		DurationMs:  e.DurationMs,
		Callsign:    callsign,
	})
	return true
}

// scheduleRelative implements spec.md §4.5(a), including required
// word-space detection and the legacy late-arrival shift-forward.
func (b *Buffer) scheduleRelative(now time.Time, e event.Event) time.Time {
	if !b.lastArrival.IsZero() && now.Sub(b.lastArrival) > b.wordSpaceGap {
		b.lastEventEnd = time.Time{}
		b.dropStaleLocked(now)
		b.timelineShifts++
	}
	b.lastArrival = now

	var playoutTime time.Time
	if b.lastEventEnd.IsZero() {
		playoutTime = now.Add(b.bufferDur)
	} else {
		playoutTime = b.lastEventEnd
	}

	if playoutTime.Before(now) {
		playoutTime = now.Add(defaultLateEpsilon)
		b.timelineShifts++
	}

	b.lastEventEnd = playoutTime.Add(time.Duration(e.DurationMs) * time.Millisecond)
	return playoutTime
}

// scheduleAbsolute implements spec.md §4.5(b).
func (b *Buffer) scheduleAbsolute(now time.Time, e event.Event) time.Time {
	tsDur := time.Duration(e.TimestampMs) * time.Millisecond
	if !b.hasSenderEpoch {
		b.senderEpoch = now.Add(-tsDur)
		b.hasSenderEpoch = true
	}
	return b.senderEpoch.Add(tsDur).Add(b.bufferDur)
}

// dropStaleLocked removes every queued event whose PlayoutTime has already
// passed, called with b.mu held.
func (b *Buffer) dropStaleLocked(now time.Time) {
	kept := b.heap[:0]
	for _, be := range b.heap {
		if be.PlayoutTime.Before(now) {
			continue
		}
		kept = append(kept, be)
	}
	b.heap = kept
	heap.Init(&b.heap)
}

func (b *Buffer) recordLatency(d time.Duration) {
	b.latencies[b.latencyIdx] = d
	b.latencyIdx = (b.latencyIdx + 1) % statsWindow
	if b.latencyCount < statsWindow {
		b.latencyCount++
	}
}

// Len reports the number of queued (not yet dispatched) events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.heap)
}

// NextWake reports the earliest pending PlayoutTime, or the zero time if
// the buffer is empty.
func (b *Buffer) NextWake() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.heap) == 0 {
		return time.Time{}
	}
	return b.heap[0].PlayoutTime
}

// PopReady pops and returns the head event if its PlayoutTime has arrived
// (<= now); otherwise it returns false without mutating the heap.
func (b *Buffer) PopReady(now time.Time) (BufferedEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.heap) == 0 || b.heap[0].PlayoutTime.After(now) {
		return BufferedEvent{}, false
	}
	return heap.Pop(&b.heap).(BufferedEvent), true
}

// ResetEpoch clears the scheduling epoch (sender_offset / last_event_end /
// word-space tracking) without touching queued events, per spec.md §4.7:
// EOT "leaves the buffer alone" even though it resets the timeline that
// governs events arriving after it.
func (b *Buffer) ResetEpoch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastEventEnd = time.Time{}
	b.lastArrival = time.Time{}
	b.hasSenderEpoch = false
	b.senderEpoch = time.Time{}
}

// Clear empties the queue and resets the epoch, for stream-transport
// reconnect (spec.md §4.7 "Reconnect semantics").
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.heap = nil
	b.lastEventEnd = time.Time{}
	b.lastArrival = time.Time{}
	b.hasSenderEpoch = false
	b.senderEpoch = time.Time{}
}

// Stats is a point-in-time snapshot of the adaptive jitter metrics spec.md
// §4.5 asks for.
type Stats struct {
	Min            time.Duration
	Max            time.Duration
	Avg            time.Duration
	Jitter         time.Duration
	TimelineShifts uint64
	LateDrops      uint64
}

func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{TimelineShifts: b.timelineShifts, LateDrops: b.lateDrops}
	if b.latencyCount == 0 {
		return s
	}
	s.Min = b.latencies[0]
	s.Max = b.latencies[0]
	var sum time.Duration
	for i := 0; i < b.latencyCount; i++ {
		v := b.latencies[i]
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += v
	}
	s.Avg = sum / time.Duration(b.latencyCount)
	s.Jitter = s.Max - s.Min
	return s
}

// Recommendation is an advisory suggestion for resizing BufferDuration,
// per spec.md §4.5's adaptive-sizing paragraph.
type Recommendation int

const (
	RecommendHold Recommendation = iota
	RecommendIncrease
	RecommendDecrease
)

// Recommend compares the current jitter stats against the configured
// buffer duration and suggests a direction, using shiftThreshold as the
// timeline-shift count above which the buffer is considered too tight.
func (b *Buffer) Recommend(shiftThreshold uint64) Recommendation {
	stats := b.Stats()
	switch {
	case stats.Jitter > b.bufferDur || stats.TimelineShifts > shiftThreshold:
		return RecommendIncrease
	case stats.Jitter < b.bufferDur/4 && stats.TimelineShifts == 0:
		return RecommendDecrease
	default:
		return RecommendHold
	}
}

// Resize updates the buffer duration used for future scheduling decisions
// only; already-queued events keep their computed PlayoutTime (spec.md
// §4.5: "Runtime buffer resize affects only future scheduling decisions").
func (b *Buffer) Resize(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bufferDur = d
}
