// Package relay implements the minimal WebSocket relay of spec.md §6.4: a
// thin pass-through broadcast of cw_event and keepalive messages to every
// other peer in a room. It performs no audio processing and does not
// interpret event content; spec.md treats full room-management UX as an
// external collaborator, so this stays intentionally small.
package relay

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cwlink/cwlink/internal/codec/wsjson"
)

// Peer is one connected room member.
type Peer struct {
	ID       string
	Callsign string
	Send     func(data []byte) error
}

// Room holds the peers in one relay room, keyed by peer ID.
type Room struct {
	mu    sync.Mutex
	peers map[string]*Peer
}

func newRoom() *Room {
	return &Room{peers: map[string]*Peer{}}
}

// Relay is the process-wide room registry.
type Relay struct {
	mu    sync.Mutex
	rooms map[string]*Room
	log   *slog.Logger
}

// New builds an empty Relay.
func New(log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{rooms: map[string]*Room{}, log: log}
}

// Join adds a peer to roomID, returns its peer ID and the callsigns
// already present, and notifies existing members.
func (r *Relay) Join(roomID, callsign string, send func([]byte) error) (peerID string, existing []string) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		room = newRoom()
		r.rooms[roomID] = room
	}
	r.mu.Unlock()

	peerID = uuid.NewString()

	room.mu.Lock()
	for _, p := range room.peers {
		existing = append(existing, p.Callsign)
	}
	room.peers[peerID] = &Peer{ID: peerID, Callsign: callsign, Send: send}
	room.mu.Unlock()

	room.broadcastExcept(peerID, mustEncode(r.log, wsjson.PeerJoined{
		Type:     wsjson.TypePeerJoined,
		PeerID:   peerID,
		Callsign: callsign,
	}))
	return peerID, existing
}

// Leave removes a peer from a room and notifies the rest.
func (r *Relay) Leave(roomID, peerID string) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return
	}

	room.mu.Lock()
	p, ok := room.peers[peerID]
	if ok {
		delete(room.peers, peerID)
	}
	empty := len(room.peers) == 0
	room.mu.Unlock()
	if !ok {
		return
	}

	room.broadcastExcept(peerID, mustEncode(r.log, wsjson.PeerLeft{
		Type:     wsjson.TypePeerLeft,
		PeerID:   peerID,
		Callsign: p.Callsign,
	}))

	if empty {
		r.mu.Lock()
		delete(r.rooms, roomID)
		r.mu.Unlock()
	}
}

// Broadcast forwards raw message bytes (already-validated cw_event or
// keepalive JSON) to every other peer in roomID. The relay does not parse
// or modify the payload — pass-through only, per spec.md §6.4.
func (r *Relay) Broadcast(roomID, fromPeerID string, data []byte) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return
	}
	room.broadcastExcept(fromPeerID, data)
}

func (room *Room) broadcastExcept(exceptPeerID string, data []byte) {
	room.mu.Lock()
	defer room.mu.Unlock()
	for id, p := range room.peers {
		if id == exceptPeerID {
			continue
		}
		_ = p.Send(data)
	}
}

func mustEncode(log *slog.Logger, v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn("relay: failed to encode control message", "error", err)
		return nil
	}
	return b
}
