package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinNotifiesExistingPeers(t *testing.T) {
	r := New(nil)

	var aReceived [][]byte
	idA, existingA := r.Join("room1", "W1AW", func(b []byte) error {
		aReceived = append(aReceived, b)
		return nil
	})
	require.Empty(t, existingA)
	require.NotEmpty(t, idA)

	_, existingB := r.Join("room1", "K2ABC", func(b []byte) error { return nil })
	require.Equal(t, []string{"W1AW"}, existingB)

	require.Len(t, aReceived, 1) // notified of B joining
}

func TestBroadcastExcludesSender(t *testing.T) {
	r := New(nil)
	var aGot, bGot [][]byte
	idA, _ := r.Join("room1", "A", func(b []byte) error { aGot = append(aGot, b); return nil })
	_, _ = r.Join("room1", "B", func(b []byte) error { bGot = append(bGot, b); return nil })

	aGot = nil
	bGot = nil
	r.Broadcast("room1", idA, []byte(`{"type":"cw_event"}`))

	require.Empty(t, aGot)
	require.Len(t, bGot, 1)
}

func TestLeaveNotifiesRemainingPeers(t *testing.T) {
	r := New(nil)
	idA, _ := r.Join("room1", "A", func(b []byte) error { return nil })
	var bGot [][]byte
	_, _ = r.Join("room1", "B", func(b []byte) error { bGot = append(bGot, b); return nil })
	bGot = nil

	r.Leave("room1", idA)
	require.Len(t, bGot, 1)
}
