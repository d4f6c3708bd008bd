package transport

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/stretchr/testify/require"
)

func TestUDPRoundTrip(t *testing.T) {
	server, err := ListenUDP("127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	addr := server.(*udpTransport).conn.LocalAddr().String()

	client, err := DialUDP(addr)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteFrame([]byte{1, 2, 3}))

	done := make(chan []byte, 1)
	go func() {
		b, err := server.ReadChunk()
		require.NoError(t, err)
		done <- b
	}()

	select {
	case got := <-done:
		require.Equal(t, []byte{1, 2, 3}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestTCPRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan Transport, 1)
	go func() {
		conn, acceptErr := ln.Accept()
		require.NoError(t, acceptErr)
		accepted <- NewTCP(conn)
	}()

	client, err := DialTCP(ln.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	defer client.Close()

	var server Transport
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	defer server.Close()

	require.NoError(t, client.WriteFrame([]byte{4, 5, 6}))

	done := make(chan []byte, 1)
	go func() {
		b, readErr := server.ReadChunk()
		require.NoError(t, readErr)
		done <- b
	}()

	select {
	case got := <-done:
		require.Equal(t, []byte{4, 5, 6}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream chunk")
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	accepted := make(chan Transport, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, upErr := ws.UpgradeHTTP(r, w)
		require.NoError(t, upErr)
		accepted <- NewWebSocketServer(conn)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := DialWebSocket(wsURL)
	require.NoError(t, err)
	defer client.Close()

	var server Transport
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for websocket accept")
	}
	defer server.Close()

	require.NoError(t, client.WriteFrame([]byte("hello")))

	done := make(chan []byte, 1)
	go func() {
		b, readErr := server.ReadChunk()
		require.NoError(t, readErr)
		done <- b
	}()

	select {
	case got := <-done:
		require.Equal(t, []byte("hello"), got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for websocket message")
	}
}
