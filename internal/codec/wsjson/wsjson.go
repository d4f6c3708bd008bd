// Package wsjson implements the §6.4 WebSocket-JSON wire variant: a JSON
// event envelope plus the relay-control message set, for browser/relay
// interop. Encoding uses stdlib encoding/json — no third-party JSON
// library in the retrieval pack is a better fit for a handful of small,
// stable structs than the standard one.
package wsjson

import (
	"encoding/json"
	"fmt"

	"github.com/cwlink/cwlink/internal/event"
)

// MessageType values, spec.md §6.4.
const (
	TypeCWEvent      = "cw_event"
	TypeJoin         = "join"
	TypeLeave        = "leave"
	TypeJoined       = "joined"
	TypePeerJoined   = "peer_joined"
	TypePeerLeft     = "peer_left"
	TypeKeepalive    = "keepalive"
	TypeKeepaliveAck = "keepalive_ack"
)

// Envelope is the common header every message carries; callers inspect
// Type then unmarshal the full payload into the matching struct below.
type Envelope struct {
	Type string `json:"type"`
}

// CWEvent is the JSON rendering of a keying event (spec.md §6.4).
type CWEvent struct {
	Type        string `json:"type"`
	Callsign    string `json:"callsign"`
	KeyDown     bool   `json:"key_down"`
	DurationMs  int    `json:"duration_ms"`
	TimestampMs int    `json:"timestamp_ms,omitempty"`
	Sequence    int    `json:"sequence"`
}

// Join is sent by a peer to enter a relay room.
type Join struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	Callsign string `json:"callsign"`
}

// Leave is sent by a peer to leave its current room.
type Leave struct {
	Type string `json:"type"`
}

// Joined is the relay's reply to Join, listing the room's current peers.
type Joined struct {
	Type  string   `json:"type"`
	PeerID string  `json:"peerId"`
	Peers []string `json:"peers"`
}

// PeerJoined/PeerLeft notify existing room members of membership changes.
type PeerJoined struct {
	Type     string `json:"type"`
	PeerID   string `json:"peerId"`
	Callsign string `json:"callsign"`
}

type PeerLeft struct {
	Type     string `json:"type"`
	PeerID   string `json:"peerId"`
	Callsign string `json:"callsign"`
}

type Keepalive struct {
	Type string `json:"type"`
}

type KeepaliveAck struct {
	Type string `json:"type"`
}

// EncodeEvent renders e as a cw_event JSON message.
func EncodeEvent(callsign string, e event.Event) ([]byte, error) {
	msg := CWEvent{
		Type:       TypeCWEvent,
		Callsign:   callsign,
		KeyDown:    e.KeyDown,
		DurationMs: int(e.DurationMs),
		Sequence:   int(e.Sequence),
	}
	if e.IsEOT {
		msg.KeyDown = false
		msg.Sequence = int(e.Sequence)
	}
	if e.HasTimestamp {
		msg.TimestampMs = int(e.TimestampMs)
	}
	return json.Marshal(msg)
}

// DecodeEvent parses a cw_event JSON message back into an Event plus its
// callsign. EOT is not representable in this JSON shape (spec.md §6.4 lists
// no eot message type); callers that need EOT semantics over WebSocket
// should use a dedicated message type layered on top, which is a decision
// for the driver, not the core wire codec.
func DecodeEvent(data []byte) (callsign string, e event.Event, err error) {
	var msg CWEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", event.Event{}, fmt.Errorf("wsjson: decode cw_event: %w", err)
	}
	if msg.Type != TypeCWEvent {
		return "", event.Event{}, fmt.Errorf("wsjson: expected type %q, got %q", TypeCWEvent, msg.Type)
	}
	e = event.Event{
		Sequence:   uint8(msg.Sequence),
		KeyDown:    msg.KeyDown,
		DurationMs: uint16(msg.DurationMs),
	}
	if msg.TimestampMs != 0 {
		e.TimestampMs = uint32(msg.TimestampMs)
		e.HasTimestamp = true
	}
	return msg.Callsign, e, nil
}

// PeekType reads only the "type" discriminator without validating the rest
// of the payload, so a relay can route a message without knowing its full
// schema.
func PeekType(data []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("wsjson: peek type: %w", err)
	}
	return env.Type, nil
}
