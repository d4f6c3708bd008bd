// Package keyer implements the IambicKeyer of spec.md §4.4: a three-state
// (IDLE/DIT/DAH) machine over two paddle latches, with Mode-A and Mode-B
// squeeze memory.
//
// Per spec.md §9's design note on the source's async keyer loop ("express
// the keyer as a synchronous state machine that returns the next scheduled
// wake-time, driven by a single scheduler loop"), Keyer has no goroutine
// and no internal sleep of its own. A caller ticks it — at a rate finer
// than one element's duration, so Mode-B's "opposite paddle pressed at any
// point during the element" memory can actually be observed — and it
// returns the next instant it needs to be ticked again.
package keyer

import (
	"time"

	"github.com/cwlink/cwlink/internal/cw"
)

// State is the keyer's coarse position in spec.md §4.4's transition table.
type State int

const (
	StateIdle State = iota
	StateDit
	StateDah
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDit:
		return "dit"
	case StateDah:
		return "dah"
	default:
		return "unknown"
	}
}

type phase int

const (
	phaseKeying phase = iota
	phaseSpacing
)

// Keyer is the paddle-driven iambic state machine. Zero value is not
// usable; construct with New.
type Keyer struct {
	mode cw.Mode
	swap bool
	emit func(down bool, dur time.Duration)

	ditDur   time.Duration
	dahDur   time.Duration
	spaceDur time.Duration

	state    State
	phase    phase
	deadline time.Time
	memory   bool // Mode-B: opposite paddle seen during the current element
}

// New builds a Keyer at the given wpm/mode. emit is called synchronously
// from Tick whenever the state machine produces a (key_down, duration)
// pair; it must not block.
func New(wpm int, mode cw.Mode, swapPaddles bool, emit func(down bool, dur time.Duration)) *Keyer {
	return &Keyer{
		mode:     mode,
		swap:     swapPaddles,
		emit:     emit,
		ditDur:   cw.DitDuration(wpm),
		dahDur:   cw.DahDuration(wpm),
		spaceDur: cw.ElementSpaceDuration(wpm),
		state:    StateIdle,
	}
}

// State reports the keyer's current coarse state.
func (k *Keyer) State() State { return k.state }

// Tick advances the state machine given the latest paddle sample at time
// now. It returns the next instant the caller should tick again; the zero
// time.Time means "no pending deadline" (the keyer is idle and waiting on
// a paddle edge — the caller may still tick it on its normal polling
// cadence, nothing breaks, but there is nothing to wait for in the
// meantime).
func (k *Keyer) Tick(now time.Time, ditPressed, dahPressed bool) time.Time {
	if k.swap {
		ditPressed, dahPressed = dahPressed, ditPressed
	}

	if k.state == StateIdle {
		switch {
		case ditPressed:
			k.startElement(now, StateDit)
			return k.deadline
		case dahPressed:
			k.startElement(now, StateDah)
			return k.deadline
		default:
			return time.Time{}
		}
	}

	samePressed, oppositePressed := k.paddlesForState(ditPressed, dahPressed)

	if k.mode == cw.ModeIambicB {
		k.memory = k.memory || oppositePressed
	}

	if now.Before(k.deadline) {
		return k.deadline
	}

	if k.phase == phaseKeying {
		k.emit(false, k.spaceDur)
		k.phase = phaseSpacing
		k.deadline = k.deadline.Add(k.spaceDur)
		return k.deadline
	}

	// Element (key + space) complete: decide what comes next.
	alternate := false
	switch k.mode {
	case cw.ModeIambicB:
		alternate = k.memory
	default: // Mode A and straight-paddle fallback
		alternate = oppositePressed
	}

	next := StateIdle
	switch {
	case alternate:
		next = opposite(k.state)
	case samePressed:
		next = k.state
	}

	if next == StateIdle {
		k.state = StateIdle
		k.phase = phaseKeying
		k.memory = false
		return time.Time{}
	}
	k.startElement(k.deadline, next)
	return k.deadline
}

func (k *Keyer) startElement(now time.Time, next State) {
	k.state = next
	k.phase = phaseKeying
	k.memory = false
	dur := k.ditDur
	if next == StateDah {
		dur = k.dahDur
	}
	k.emit(true, dur)
	k.deadline = now.Add(dur)
}

func (k *Keyer) paddlesForState(ditPressed, dahPressed bool) (same, other bool) {
	if k.state == StateDit {
		return ditPressed, dahPressed
	}
	return dahPressed, ditPressed
}

func opposite(s State) State {
	if s == StateDit {
		return StateDah
	}
	return StateDit
}
