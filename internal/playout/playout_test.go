package playout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cwlink/cwlink/internal/event"
	"github.com/cwlink/cwlink/internal/jitter"
)

// Property 9 (spec.md §8): five elements, buffer 100ms. All five elements
// must play. The EOT that follows them never reaches the buffer (the session
// controller consumes it), so it is not pushed here.
func TestAllQueuedElementsPlayBeforeIdle(t *testing.T) {
	buf := jitter.New(jitter.Config{Discipline: jitter.Relative, BufferDuration: 100 * time.Millisecond})

	var mu sync.Mutex
	var dispatched []bool

	eng := New(context.Background(), buf, Sink{
		OnKey: func(callsign string, keyDown bool) {
			mu.Lock()
			dispatched = append(dispatched, keyDown)
			mu.Unlock()
		},
	}, nil)
	eng.Start()
	defer eng.Stop()

	now := time.Now()
	events := []event.Event{
		event.NewDown(0, 48),
		event.NewUp(1, 48),
		event.NewDown(2, 48),
		event.NewUp(3, 48),
		event.NewDown(4, 48),
	}
	for _, e := range events {
		buf.Push(now, e)
		now = now.Add(time.Duration(e.DurationMs) * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dispatched) == len(events)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStopDrainsPendingEvents(t *testing.T) {
	buf := jitter.New(jitter.Config{Discipline: jitter.Relative, BufferDuration: 10 * time.Millisecond})

	var mu sync.Mutex
	count := 0

	eng := New(context.Background(), buf, Sink{
		OnKey: func(callsign string, keyDown bool) {
			mu.Lock()
			count++
			mu.Unlock()
		},
	}, nil)
	eng.SetDrainTimeout(500 * time.Millisecond)
	eng.Start()

	now := time.Now()
	for i := 0; i < 3; i++ {
		buf.Push(now, event.NewDown(uint8(i), 10))
		now = now.Add(10 * time.Millisecond)
	}

	eng.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, count)
}
