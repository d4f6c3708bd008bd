// Command cwlink-relay is the thin WebSocket fan-out of spec.md §6.4: it
// upgrades incoming HTTP connections, reads join/leave/cw_event/keepalive
// JSON messages, and forwards cw_event/keepalive payloads verbatim to every
// other peer in the sender's room. It does not decode or interpret keying
// content — that is the receiver's job, not the relay's.
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/gobwas/ws"

	"github.com/cwlink/cwlink/internal/codec/wsjson"
	"github.com/cwlink/cwlink/internal/relay"
	"github.com/cwlink/cwlink/internal/transport"
)

func main() {
	addr := flag.String("listen", ":8355", "HTTP listen address for WebSocket upgrades")
	debug := flag.Bool("debug", false, "verbose connection logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	r := relay.New(log)

	http.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(req, w)
		if err != nil {
			log.Warn("relay: upgrade failed", "error", err)
			return
		}
		go serveConn(transport.NewWebSocketServer(conn), r, log)
	})

	log.Info("relay listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Error("relay stopped", "error", err)
		os.Exit(1)
	}
}

// serveConn owns one peer's WebSocket lifetime: it waits for a join
// message, registers the peer with the relay, and forwards every
// subsequent cw_event/keepalive frame, tearing the peer down on
// disconnect. One goroutine per connection, matching the session
// controller's single-reader-per-transport model.
func serveConn(tr transport.Transport, r *relay.Relay, log *slog.Logger) {
	defer tr.Close()

	var roomID, peerID string
	defer func() {
		if roomID != "" && peerID != "" {
			r.Leave(roomID, peerID)
		}
	}()

	for {
		data, err := tr.ReadChunk()
		if err != nil {
			return
		}

		typ, err := wsjson.PeekType(data)
		if err != nil {
			log.Warn("relay: unparseable message", "error", err)
			continue
		}

		switch typ {
		case wsjson.TypeJoin:
			var join wsjson.Join
			if err := json.Unmarshal(data, &join); err != nil {
				log.Warn("relay: bad join", "error", err)
				continue
			}
			roomID = join.RoomID
			var existing []string
			peerID, existing = r.Join(roomID, join.Callsign, tr.WriteFrame)
			reply, err := json.Marshal(wsjson.Joined{Type: wsjson.TypeJoined, PeerID: peerID, Peers: existing})
			if err != nil {
				log.Warn("relay: failed to encode joined reply", "error", err)
				continue
			}
			if err := tr.WriteFrame(reply); err != nil {
				log.Warn("relay: failed to send joined reply", "error", err)
			}
			log.Debug("relay: peer joined", "room", roomID, "peer", peerID, "callsign", join.Callsign)

		case wsjson.TypeLeave:
			if roomID != "" && peerID != "" {
				r.Leave(roomID, peerID)
				roomID, peerID = "", ""
			}

		case wsjson.TypeCWEvent, wsjson.TypeKeepalive:
			if roomID == "" || peerID == "" {
				log.Debug("relay: dropping message from unjoined peer", "type", typ)
				continue
			}
			r.Broadcast(roomID, peerID, data)

		default:
			log.Debug("relay: ignoring message type", "type", typ)
		}
	}
}
