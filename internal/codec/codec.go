// Package codec implements the WireCodec of spec.md §4.1: encoding and
// decoding of keying Events for both the datagram (UDP) and stream (TCP)
// framings, with optional per-event absolute timestamps.
//
// The stream decoder buffers partial frames the way the teacher's
// bridge/pcm assemblers accumulate bytes until a full unit is available
// (bridge/pcm/assembler.go, bridge/pcm/pcm16_helpers.go), generalized here
// from fixed-size PCM frames to length-prefixed variable-size event frames.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cwlink/cwlink/internal/event"
)

// DurationWidth selects how a TCP stream frame encodes duration_ms, and
// (for the datagram framing) whether the codec uses the 3-byte baseline or
// the 4-byte extended form. spec.md leaves this as an implementer's
// decision that both peers must agree on; this type makes the choice
// explicit and symmetric between encode and decode.
type DurationWidth int

const (
	// DurationAuto picks u8 when duration_ms < 256, else u16, in both
	// framings: a datagram grows from 3 to 4 bytes and DecodeDatagram tells
	// the two apart by the datagram's length.
	DurationAuto DurationWidth = iota
	DurationU8
	DurationU16
)

// Key state byte values (datagram framing, byte 1; stream framing's state
// byte uses the same values).
const (
	keyStateUp   = 0x00
	keyStateDown = 0x01
	keyStateEOT  = event.EOTKeyState
)

// Errors returned by Decode/StreamDecoder, matching spec.md §7's codec row.
var (
	ErrShortFrame        = errors.New("codec: short frame")
	ErrBadLength         = errors.New("codec: bad length prefix")
	ErrTruncatedDuration = errors.New("codec: truncated duration field")
)

// EncodeDatagram encodes e into the 3-byte (or 4-byte, if forced extended)
// UDP-style frame of spec.md §4.1.
func EncodeDatagram(e event.Event, width DurationWidth) []byte {
	state := keyStateForEvent(e)
	extended := width == DurationU16 || (width != DurationU8 && e.DurationMs >= 256)
	if !extended {
		return []byte{e.Sequence, state, byte(e.DurationMs)}
	}
	buf := make([]byte, 4)
	buf[0] = e.Sequence
	buf[1] = state
	binary.BigEndian.PutUint16(buf[2:4], e.DurationMs)
	return buf
}

// DecodeDatagram decodes a single UDP-style frame. Frames are exactly 3 or
// 4 bytes; callers that don't know which width a peer uses should try 3
// first when ambiguity is possible, but in practice both ends agree on one
// width for the whole deployment (spec.md's Open Question resolution).
func DecodeDatagram(buf []byte) (event.Event, int, error) {
	switch len(buf) {
	case 3:
		return event.Event{
			Sequence:   buf[0],
			KeyDown:    buf[1] == keyStateDown,
			IsEOT:      buf[1] == keyStateEOT,
			DurationMs: uint16(buf[2]),
		}, 3, nil
	case 4:
		return event.Event{
			Sequence:   buf[0],
			KeyDown:    buf[1] == keyStateDown,
			IsEOT:      buf[1] == keyStateEOT,
			DurationMs: binary.BigEndian.Uint16(buf[2:4]),
		}, 4, nil
	default:
		return event.Event{}, 0, ErrShortFrame
	}
}

func keyStateForEvent(e event.Event) byte {
	if e.IsEOT {
		return keyStateEOT
	}
	if e.KeyDown {
		return keyStateDown
	}
	return keyStateUp
}

// EncodeStream encodes e into the length-prefixed TCP-style frame of
// spec.md §4.1: u16 length, sequence, key_state, duration (u8 or u16),
// optional u32 timestamp.
func EncodeStream(e event.Event, width DurationWidth) []byte {
	state := keyStateForEvent(e)
	extended := width == DurationU16 || (width != DurationU8 && e.DurationMs >= 256)

	body := make([]byte, 0, 9)
	body = append(body, e.Sequence, state)
	if extended {
		var d [2]byte
		binary.BigEndian.PutUint16(d[:], e.DurationMs)
		body = append(body, d[:]...)
	} else {
		body = append(body, byte(e.DurationMs))
	}
	if e.HasTimestamp {
		var ts [4]byte
		binary.BigEndian.PutUint32(ts[:], e.TimestampMs)
		body = append(body, ts[:]...)
	}

	frame := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(frame[0:2], uint16(len(body)))
	copy(frame[2:], body)
	return frame
}

// decodeStreamBody decodes exactly one already-length-delimited body (not
// including the length prefix). bodyLen together with the state byte's
// implied width tells us whether a timestamp is present.
func decodeStreamBody(body []byte) (event.Event, error) {
	if len(body) < 3 {
		return event.Event{}, ErrShortFrame
	}
	seq := body[0]
	state := body[1]

	// Try u8 duration first (body[2]); validate against the declared
	// length to decide if this was actually a u16-duration frame.
	rest := body[2:]
	switch len(rest) {
	case 1: // u8 duration, no timestamp
		return event.Event{
			Sequence:   seq,
			KeyDown:    state == keyStateDown,
			IsEOT:      state == keyStateEOT,
			DurationMs: uint16(rest[0]),
		}, nil
	case 2: // u16 duration, no timestamp
		return event.Event{
			Sequence:   seq,
			KeyDown:    state == keyStateDown,
			IsEOT:      state == keyStateEOT,
			DurationMs: binary.BigEndian.Uint16(rest[:2]),
		}, nil
	case 5: // u8 duration + u32 timestamp
		return event.Event{
			Sequence:     seq,
			KeyDown:      state == keyStateDown,
			IsEOT:        state == keyStateEOT,
			DurationMs:   uint16(rest[0]),
			TimestampMs:  binary.BigEndian.Uint32(rest[1:5]),
			HasTimestamp: true,
		}, nil
	case 6: // u16 duration + u32 timestamp
		return event.Event{
			Sequence:     seq,
			KeyDown:      state == keyStateDown,
			IsEOT:        state == keyStateEOT,
			DurationMs:   binary.BigEndian.Uint16(rest[:2]),
			TimestampMs:  binary.BigEndian.Uint32(rest[2:6]),
			HasTimestamp: true,
		}, nil
	default:
		return event.Event{}, fmt.Errorf("%w: body length %d", ErrTruncatedDuration, len(body))
	}
}

// StreamDecoder buffers partial TCP-style frames across multiple Read
// calls, surfacing only complete events. It is NOT safe for concurrent
// use; one goroutine per connection owns it, matching the session
// controller's single-reader-per-transport model (spec.md §5).
type StreamDecoder struct {
	buf []byte
}

// Push appends newly-read bytes and returns every complete event they
// yield, in order. Bytes left over (a partial frame) are retained for the
// next call.
func (d *StreamDecoder) Push(data []byte) ([]event.Event, error) {
	d.buf = append(d.buf, data...)

	var out []event.Event
	for {
		if len(d.buf) < 2 {
			return out, nil
		}
		length := int(binary.BigEndian.Uint16(d.buf[0:2]))
		if length < 3 {
			return out, ErrBadLength
		}
		if len(d.buf) < 2+length {
			return out, nil // wait for the rest of this frame
		}
		body := d.buf[2 : 2+length]
		e, err := decodeStreamBody(body)
		if err != nil {
			// Drop the bad frame and keep going (spec.md §7: drop, log,
			// continue — codec errors are never fatal to the session).
			d.buf = d.buf[2+length:]
			return out, err
		}
		out = append(out, e)
		d.buf = d.buf[2+length:]
	}
}

// Pending reports how many unconsumed bytes are buffered (a partial frame).
func (d *StreamDecoder) Pending() int { return len(d.buf) }
