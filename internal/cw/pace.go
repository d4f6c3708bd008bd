package cw

import "time"

// TimedElement is one real-time keying step: the key is Down (or not) for
// Dur. A caller turns a stream of TimedElements into wire Events by pairing
// each transition with the duration the *previous* state held.
type TimedElement struct {
	Down bool
	Dur  time.Duration
}

// BuildElements converts a sequence of already-resolved dot/dash strings
// (one per character; an empty string marks a word boundary) into DOWN/UP
// TimedElement pairs at the given WPM.
//
// The char -> dot/dash lookup itself is an external concern (spec treats
// text-to-Morse lookup as outside the core); this only paces a sequence the
// caller has already resolved.
func BuildElements(chars []string, wpm int) []TimedElement {
	dit := DitDuration(wpm)
	dah := DahDuration(wpm)
	elementSpace := ElementSpaceDuration(wpm)
	letterSpace := LetterSpaceDuration(wpm)
	wordSpace := WordSpaceDuration(wpm)

	var out []TimedElement
	for i, word := range chars {
		if word == "" {
			// Explicit word boundary: stretch (or insert) the pending gap to
			// a full word-space rather than leaving it at letter-space.
			if len(out) > 0 && !out[len(out)-1].Down {
				out[len(out)-1].Dur = wordSpace
			} else {
				out = append(out, TimedElement{Down: false, Dur: wordSpace})
			}
			continue
		}
		for ei, sym := range word {
			dur := dit
			if sym == '-' {
				dur = dah
			}
			out = append(out, TimedElement{Down: true, Dur: dur})
			if ei != len(word)-1 {
				out = append(out, TimedElement{Down: false, Dur: elementSpace})
			}
		}
		// Letter-space after the character, unless it's the very last thing
		// emitted (nothing follows to separate from).
		if i != len(chars)-1 {
			out = append(out, TimedElement{Down: false, Dur: letterSpace})
		}
	}
	return out
}

// PaceElements drives emit(e) for each element, sleeping for e.Dur between
// calls so the caller's downstream (wire encode, local sidetone) sees the
// operator's natural timing rather than a burst. sleep is injectable so
// tests can run the schedule without real wall-clock delay.
func PaceElements(elements []TimedElement, emit func(TimedElement), sleep func(time.Duration)) {
	if sleep == nil {
		sleep = time.Sleep
	}
	for _, e := range elements {
		emit(e)
		sleep(e.Dur)
	}
}
