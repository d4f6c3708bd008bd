package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cwlink/cwlink/internal/codec"
	"github.com/cwlink/cwlink/internal/event"
	"github.com/cwlink/cwlink/internal/jitter"
	"github.com/cwlink/cwlink/internal/playout"
)

// fakeTransport is an in-memory Transport for exercising Controller
// without a real socket.
type fakeTransport struct {
	mu     sync.Mutex
	chunks chan []byte
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{chunks: make(chan []byte, 64)}
}

func (f *fakeTransport) WriteFrame(b []byte) error { return nil }

func (f *fakeTransport) ReadChunk() ([]byte, error) {
	b, ok := <-f.chunks
	if !ok {
		return nil, io.EOF
	}
	return b, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.chunks)
	}
	return nil
}

func (f *fakeTransport) deliver(b []byte) {
	f.chunks <- b
}

// Scenario A (spec.md §8, simplified to datagram framing): a single
// element followed by EOT dispatches exactly one down/up pair.
func TestControllerDispatchesSingleElementThenEOT(t *testing.T) {
	tr := newFakeTransport()
	var mu sync.Mutex
	var got []bool

	ctrl := New(context.Background(), tr, Config{
		Framing:     FramingDatagram,
		DurationWid: codec.DurationU8,
		Callsign:    "X",
		JitterConfig: jitter.Config{
			Discipline:     jitter.Relative,
			BufferDuration: 50 * time.Millisecond,
		},
	}, playout.Sink{
		OnKey: func(callsign string, keyDown bool) {
			mu.Lock()
			got = append(got, keyDown)
			mu.Unlock()
		},
	})
	ctrl.Start()
	defer ctrl.Stop()

	tr.deliver(codec.EncodeDatagram(event.NewDown(0, 0), codec.DurationU8))
	tr.deliver(codec.EncodeDatagram(event.NewUp(1, 48), codec.DurationU8))
	tr.deliver(codec.EncodeDatagram(event.NewEOT(2), codec.DurationU8))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []bool{true, false}, got)
}

// Property 10 (spec.md §8): 3s of silence forces the key to the safe (UP)
// state even with no EOT received.
func TestWatchdogForcesKeyUpAfterSilence(t *testing.T) {
	tr := newFakeTransport()
	var mu sync.Mutex
	var got []bool

	ctrl := New(context.Background(), tr, Config{
		Framing:     FramingDatagram,
		DurationWid: codec.DurationU8,
		Callsign:    "X",
		JitterConfig: jitter.Config{
			Discipline:     jitter.Relative,
			BufferDuration: 10 * time.Millisecond,
		},
	}, playout.Sink{
		OnKey: func(callsign string, keyDown bool) {
			mu.Lock()
			got = append(got, keyDown)
			mu.Unlock()
		},
	})
	ctrl.Start()
	defer ctrl.Stop()

	tr.deliver(codec.EncodeDatagram(event.NewDown(0, 0), codec.DurationU8))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 1 && !got[len(got)-1]
	}, 5*time.Second, 50*time.Millisecond, "watchdog should force key up after 3s of silence")
}

// Scenario E (spec.md §8): a 20-element stream with one sequence number
// dropped in transit reports exactly one lost event and still plays every
// event it did receive.
func TestScenarioEPacketLossCountedAndRestPlayed(t *testing.T) {
	tr := newFakeTransport()
	var mu sync.Mutex
	var got []bool

	ctrl := New(context.Background(), tr, Config{
		Framing:     FramingDatagram,
		DurationWid: codec.DurationU8,
		Callsign:    "X",
		JitterConfig: jitter.Config{
			Discipline:     jitter.Relative,
			BufferDuration: 20 * time.Millisecond,
		},
	}, playout.Sink{
		OnKey: func(callsign string, keyDown bool) {
			mu.Lock()
			got = append(got, keyDown)
			mu.Unlock()
		},
	})
	ctrl.Start()
	defer ctrl.Stop()

	const total = 20
	const droppedSeq = 10
	var sent int
	for seq := 0; seq < total; seq++ {
		if seq == droppedSeq {
			continue // simulates this packet never arriving on the wire
		}
		down := seq%2 == 0
		if down {
			tr.deliver(codec.EncodeDatagram(event.NewDown(uint8(seq), 48), codec.DurationU8))
		} else {
			tr.deliver(codec.EncodeDatagram(event.NewUp(uint8(seq), 48), codec.DurationU8))
		}
		sent++
	}
	tr.deliver(codec.EncodeDatagram(event.NewEOT(total), codec.DurationU8))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == sent
	}, 2*time.Second, 5*time.Millisecond)

	stats := ctrl.tracker.Stats()
	require.EqualValues(t, 1, stats.Lost)
}

// SessionID should be stable across Reconnect (it correlates logs/metrics
// across a reconnect, not per-transport).
func TestSessionIDStableAcrossReconnect(t *testing.T) {
	tr := newFakeTransport()
	ctrl := New(context.Background(), tr, Config{
		Framing:     FramingDatagram,
		DurationWid: codec.DurationU8,
		Callsign:    "X",
		JitterConfig: jitter.Config{
			Discipline:     jitter.Relative,
			BufferDuration: 10 * time.Millisecond,
		},
	}, playout.Sink{})
	ctrl.Start()
	defer ctrl.Stop()

	id := ctrl.SessionID()
	require.NotEmpty(t, id)

	tr2 := newFakeTransport()
	ctrl.Reconnect(tr2)
	require.Equal(t, id, ctrl.SessionID())
}

func TestStatsReportsSessionIDAndCollaboratorCounters(t *testing.T) {
	tr := newFakeTransport()
	ctrl := New(context.Background(), tr, Config{
		Framing:     FramingDatagram,
		DurationWid: codec.DurationU8,
		Callsign:    "X",
		JitterConfig: jitter.Config{
			Discipline:     jitter.Relative,
			BufferDuration: 5 * time.Second,
		},
	}, playout.Sink{})
	ctrl.Start()
	defer ctrl.Stop()

	tr.deliver(codec.EncodeDatagram(event.NewDown(0, 0), codec.DurationU8))
	require.Eventually(t, func() bool { return ctrl.Stats().QueueLen == 1 }, time.Second, 5*time.Millisecond)

	stats := ctrl.Stats()
	require.Equal(t, ctrl.SessionID(), stats.SessionID)
	require.EqualValues(t, 1, stats.Tracker.Fresh)
}

func TestReconnectClearsBufferAndState(t *testing.T) {
	tr := newFakeTransport()
	ctrl := New(context.Background(), tr, Config{
		Framing:     FramingDatagram,
		DurationWid: codec.DurationU8,
		Callsign:    "X",
		JitterConfig: jitter.Config{
			Discipline:     jitter.Relative,
			BufferDuration: 5 * time.Second, // long enough that the event stays queued
		},
	}, playout.Sink{})
	ctrl.Start()
	defer ctrl.Stop()

	tr.deliver(codec.EncodeDatagram(event.NewDown(0, 0), codec.DurationU8))
	require.Eventually(t, func() bool { return ctrl.buffer.Len() == 1 }, time.Second, 5*time.Millisecond)

	tr2 := newFakeTransport()
	ctrl.Reconnect(tr2)
	require.Equal(t, 0, ctrl.buffer.Len())
}
