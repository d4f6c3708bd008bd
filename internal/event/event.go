// Package event defines the wire-level keying Event and transmission
// bookkeeping shared by the codec, jitter buffer, and session controller.
package event

// EOTKeyState is the distinguished key_state byte value marking an
// end-of-transmission marker (spec.md §3).
const EOTKeyState = 0xFF

// Event is a single keying transition: the state the key is moving TO,
// how long the previous state lasted, and (timestamped variant only) an
// absolute send-side timestamp.
type Event struct {
	Sequence   uint8  // 8-bit wrapping counter, unique within a transmission
	KeyDown    bool   // state the key is transitioning TO
	IsEOT      bool   // true for the distinguished EOT marker
	DurationMs uint16 // how long the previous state lasted

	// TimestampMs is only meaningful when the stream is in timestamped
	// mode: milliseconds since this transmission's first event, on the
	// sender's clock.
	TimestampMs  uint32
	HasTimestamp bool
}

// NewDown builds a regular (non-EOT) transition to the DOWN state.
func NewDown(seq uint8, durationMs uint16) Event {
	return Event{Sequence: seq, KeyDown: true, DurationMs: durationMs}
}

// NewUp builds a regular (non-EOT) transition to the UP state.
func NewUp(seq uint8, durationMs uint16) Event {
	return Event{Sequence: seq, KeyDown: false, DurationMs: durationMs}
}

// NewEOT builds the end-of-transmission marker: key_state=0xFF, duration 0.
func NewEOT(seq uint8) Event {
	return Event{Sequence: seq, IsEOT: true}
}

// WithTimestamp returns a copy of e carrying the given send-side timestamp.
func (e Event) WithTimestamp(ms uint32) Event {
	e.TimestampMs = ms
	e.HasTimestamp = true
	return e
}

// Epoch tracks the sender-side clock origin for one transmission: value 0
// at the first event, reset whenever a new transmission begins (after EOT
// or after the spec's 2s silence timeout).
type Epoch struct {
	startedAt int64 // unix nanos of the first event; 0 == not yet started
}

// Start begins a new transmission epoch at nowNanos, returning 0 (the first
// event's timestamp).
func (e *Epoch) Start(nowNanos int64) uint32 {
	e.startedAt = nowNanos
	return 0
}

// Started reports whether the epoch has a first event yet.
func (e *Epoch) Started() bool { return e.startedAt != 0 }

// ElapsedMs returns milliseconds since Start, given the current clock.
func (e *Epoch) ElapsedMs(nowNanos int64) uint32 {
	if e.startedAt == 0 {
		return 0
	}
	d := nowNanos - e.startedAt
	if d < 0 {
		return 0
	}
	return uint32(d / int64(1e6))
}

// Reset clears the epoch so the next event starts a fresh transmission.
func (e *Epoch) Reset() { e.startedAt = 0 }
