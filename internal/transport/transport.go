// Package transport hides the three wire transports spec.md §6 names
// (UDP datagram, TCP stream, WebSocket-JSON) behind one small interface,
// the same way the teacher's bridge/endpoints package hides SIP/Telegram
// media plumbing behind SipEndpoint/TgEndpoint so MediaBridge never deals
// with RTP or Telegram's calling API directly.
package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// ErrClosed is returned by ReadChunk/WriteFrame after Close.
var ErrClosed = errors.New("transport: closed")

// Transport is the uniform surface the SessionController drives. One
// instance is owned by one session; only the session's single reader and
// single writer goroutine touch it, per spec.md §5's shared-resource
// policy.
type Transport interface {
	// WriteFrame writes one already-encoded frame (a UDP datagram, a
	// length-prefixed TCP frame, or a WebSocket text message) atomically.
	WriteFrame(b []byte) error
	// ReadChunk blocks for the next unit of data: one full datagram for
	// UDP, one full message for WebSocket, or whatever bytes are
	// currently available for TCP (the caller's codec.StreamDecoder
	// reassembles TCP's length-prefixed frames from these chunks).
	ReadChunk() ([]byte, error)
	// Close releases the underlying connection.
	Close() error
}

// --- UDP ---------------------------------------------------------------

type udpTransport struct {
	conn   net.PacketConn
	remote net.Addr
	buf    []byte
}

// DialUDP opens a UDP socket for sending to (and receiving from) remoteAddr.
func DialUDP(remoteAddr string) (Transport, error) {
	raddr, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, err
	}
	return &udpTransport{conn: conn, remote: raddr, buf: make([]byte, 2048)}, nil
}

// ListenUDP opens a UDP socket bound to localAddr for receiving (e.g. a
// receiver or relay listening on spec.md §6's recommended port 7355).
func ListenUDP(localAddr string) (Transport, error) {
	laddr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &udpTransport{conn: conn, buf: make([]byte, 2048)}, nil
}

func (u *udpTransport) WriteFrame(b []byte) error {
	if u.remote == nil {
		return errors.New("transport: udp writer has no remote address (receive-only socket)")
	}
	_, err := u.conn.WriteTo(b, u.remote)
	return err
}

func (u *udpTransport) ReadChunk() ([]byte, error) {
	n, addr, err := u.conn.ReadFrom(u.buf)
	if err != nil {
		return nil, err
	}
	if u.remote == nil {
		// First inbound packet on a listen-only socket pins the peer for replies.
		u.remote = addr
	}
	out := make([]byte, n)
	copy(out, u.buf[:n])
	return out, nil
}

func (u *udpTransport) Close() error { return u.conn.Close() }

// --- TCP -----------------------------------------------------------------

type tcpTransport struct {
	conn net.Conn
	buf  []byte
}

// DialTCP connects to addr for the stream framing (spec.md §6, port 7356).
func DialTCP(addr string, timeout time.Duration) (Transport, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return &tcpTransport{conn: conn, buf: make([]byte, 4096)}, nil
}

// NewTCP wraps an already-accepted connection (server/relay side).
func NewTCP(conn net.Conn) Transport {
	return &tcpTransport{conn: conn, buf: make([]byte, 4096)}
}

func (c *tcpTransport) WriteFrame(b []byte) error {
	_, err := c.conn.Write(b)
	return err
}

func (c *tcpTransport) ReadChunk() ([]byte, error) {
	n, err := c.conn.Read(c.buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.buf[:n])
	return out, nil
}

func (c *tcpTransport) Close() error { return c.conn.Close() }

// --- WebSocket -----------------------------------------------------------

type wsTransport struct {
	conn   net.Conn
	server bool // controls frame masking direction
}

// DialWebSocket opens a client-side WebSocket connection to url (spec.md
// §6.4's JSON variant).
func DialWebSocket(url string) (Transport, error) {
	conn, _, _, err := ws.Dial(context.Background(), url)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn, server: false}, nil
}

// NewWebSocketServer wraps a connection already upgraded to WebSocket by
// ws.Upgrade (relay accept path).
func NewWebSocketServer(conn net.Conn) Transport {
	return &wsTransport{conn: conn, server: true}
}

func (w *wsTransport) WriteFrame(b []byte) error {
	if w.server {
		return wsutil.WriteServerText(w.conn, b)
	}
	return wsutil.WriteClientText(w.conn, b)
}

func (w *wsTransport) ReadChunk() ([]byte, error) {
	if w.server {
		data, err := wsutil.ReadClientText(w.conn)
		return data, err
	}
	data, err := wsutil.ReadServerText(w.conn)
	return data, err
}

func (w *wsTransport) Close() error { return w.conn.Close() }
