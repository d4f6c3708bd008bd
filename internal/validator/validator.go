// Package validator implements the StateValidator of spec.md §4.3: it
// enforces the DOWN/UP alternation invariant on the receive path without
// ever halting playout — a garbled stream is surfaced via a counter and
// rate-limited log line, not silenced or dropped.
//
// The throttled-logging approach follows golang.org/x/time/rate, the same
// package snapetech-plexTuner reaches for to cap noisy log output; here it
// caps "state alternation violated" lines instead of tuner retune spam.
package validator

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Validator tracks expected key-down polarity and counts violations. Not
// safe for concurrent use; it sits on the single receive-path pipeline
// alongside the tracker (spec.md §5).
type Validator struct {
	hasExpected  bool
	expectedDown bool
	stateErrors  uint64
	limiter      *rate.Limiter
	log          *slog.Logger
}

// New builds a Validator that logs at most one violation line per interval
// (default: one per second) to avoid flooding the log on a badly garbled
// stream.
func New(log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		log:     log,
	}
}

// Observe checks keyDown against the expected alternation, updates the
// expectation, and reports whether this event violated it. The event is
// always considered forwardable by the caller — validation never vetoes
// delivery.
func (v *Validator) Observe(keyDown bool) (violated bool) {
	if v.hasExpected && keyDown == v.expectedDown {
		v.stateErrors++
		if v.limiter.Allow() {
			v.log.Warn("cw state alternation violated",
				"key_down", keyDown,
				"total_state_errors", v.stateErrors,
			)
		}
		violated = true
	}
	v.hasExpected = true
	v.expectedDown = !keyDown
	return violated
}

// Reset clears the expected-polarity state, per spec.md §4.3: EOT and
// long-gap timeline resets both start a fresh transmission that may begin
// with either polarity.
func (v *Validator) Reset() {
	v.hasExpected = false
}

// StateErrors reports the cumulative violation count.
func (v *Validator) StateErrors() uint64 {
	return v.stateErrors
}
