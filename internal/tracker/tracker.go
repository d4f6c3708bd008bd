// Package tracker implements the SequenceTracker of spec.md §4.2: loss,
// duplicate, and reorder detection over an 8-bit wrapping sequence.
//
// The modular head/diff arithmetic follows the same technique as
// onthegit-livekit's pkg/sfu/sequencer.go getSlot (diff := offSn - s.headSN,
// sign bit of the 16-bit diff tells old-vs-new), reduced here from a
// retransmission buffer to a stateless classifier: spec.md's tracker only
// classifies arrivals, it never retains packets for NACK replay.
package tracker

import "fmt"

// Outcome classifies one arriving event against the sequence seen so far.
type Outcome int

const (
	Fresh Outcome = iota
	Lost
	Duplicate
	Reordered
)

func (o Outcome) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case Lost:
		return "lost"
	case Duplicate:
		return "duplicate"
	case Reordered:
		return "reordered"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the per-event classification, with the loss count populated
// when Outcome is Lost.
type Result struct {
	Outcome Outcome
	Lost    int // 1..128, only meaningful when Outcome == Lost
}

// Tracker holds the cumulative per-session counters spec.md §4.2 asks for.
// Not safe for concurrent use without external synchronization — it is
// driven from the single receive-path goroutine, same as the rest of the
// session pipeline (spec.md §5).
type Tracker struct {
	lastSeq  uint8
	hasLast  bool
	lost     uint64
	dupes    uint64
	reorders uint64
	fresh    uint64
}

// Observe classifies seq against the tracker's state and updates counters.
func (t *Tracker) Observe(seq uint8) Result {
	if !t.hasLast {
		t.hasLast = true
		t.lastSeq = seq
		t.fresh++
		return Result{Outcome: Fresh}
	}

	gap := int(seq-t.lastSeq-1) & 0xFF // (seq - last_seq - 1) mod 256

	if seq == t.lastSeq {
		t.dupes++
		return Result{Outcome: Duplicate}
	}

	if gap > 128 {
		// Old packet arriving late; a very large "gap" forward is
		// actually a small step backward modulo 256.
		t.reorders++
		return Result{Outcome: Reordered}
	}

	t.lastSeq = seq
	if gap == 0 {
		t.fresh++
		return Result{Outcome: Fresh}
	}
	t.lost += uint64(gap)
	return Result{Outcome: Lost, Lost: gap}
}

// Reset clears the "last sequence seen" state (e.g. on EOT or a fresh
// transmission epoch) without losing the cumulative counters.
func (t *Tracker) Reset() {
	t.hasLast = false
}

// Stats is a point-in-time snapshot of the cumulative counters.
type Stats struct {
	Fresh     uint64
	Lost      uint64
	Duplicate uint64
	Reordered uint64
}

func (t *Tracker) Stats() Stats {
	return Stats{
		Fresh:     t.fresh,
		Lost:      t.lost,
		Duplicate: t.dupes,
		Reordered: t.reorders,
	}
}
