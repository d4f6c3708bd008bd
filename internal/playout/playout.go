// Package playout implements the PlayoutEngine of spec.md §4.6: a single
// cooperative worker that dispatches scheduled BufferedEvents to a sink at
// the right wall-clock instant.
//
// The ticker-plus-context.Context-cancellation-plus-sync.WaitGroup shape
// follows the teacher's bridge.MediaBridge.writeTG/Start/Stop goroutine
// (bridge/media_bridge.go): a time.Ticker drives the dispatch loop, a
// cancelled context ends it, and Stop waits on a WaitGroup for the worker
// to actually exit. Here the fixed audio-frame cadence becomes a small
// fixed polling tick, because unlike a PCM frame clock the jitter buffer's
// next deadline is data-dependent, not periodic.
package playout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cwlink/cwlink/internal/jitter"
)

const (
	defaultTick         = 5 * time.Millisecond
	defaultDrainTimeout = 2 * time.Second
)

// Sink is the engine's two-capability output interface (spec.md §9,
// "pass as a struct of function pointers; do not hard-wire audio to the
// buffer"). Either field may be nil.
type Sink struct {
	OnKey         func(callsign string, keyDown bool)
	OnDecodedChar func(callsign string, char rune)
}

// Engine is the playout worker. Construct with New, then Start/Stop once.
type Engine struct {
	buf  *jitter.Buffer
	sink Sink
	log  *slog.Logger

	tick         time.Duration
	drainTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Engine over buf, dispatching to sink. parent governs the
// worker's lifetime alongside explicit Stop calls.
func New(parent context.Context, buf *jitter.Buffer, sink Sink, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Engine{
		buf:          buf,
		sink:         sink,
		log:          log,
		tick:         defaultTick,
		drainTimeout: defaultDrainTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetDrainTimeout overrides the default 2s shutdown drain window.
func (e *Engine) SetDrainTimeout(d time.Duration) { e.drainTimeout = d }

// Start launches the dispatch worker.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.run()
}

// Stop requests the worker to drain remaining queued events and exit. It
// blocks until the worker has actually returned.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) run() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			e.drain()
			return
		case now := <-ticker.C:
			e.dispatchReady(now)
		}
	}
}

func (e *Engine) dispatchReady(now time.Time) {
	for {
		be, ok := e.buf.PopReady(now)
		if !ok {
			return
		}
		e.dispatch(be)
	}
}

func (e *Engine) dispatch(be jitter.BufferedEvent) {
	if e.sink.OnKey != nil {
		e.sink.OnKey(be.Callsign, be.KeyDown)
	}
}

// drain dispatches every event still queued, waiting on their PlayoutTime
// as it goes, until the buffer is empty or drainTimeout elapses (spec.md
// §5: "session shutdown requests the playout worker to drain and exit
// within a configurable timeout").
func (e *Engine) drain() {
	deadline := time.Now().Add(e.drainTimeout)
	for e.buf.Len() > 0 && time.Now().Before(deadline) {
		now := time.Now()
		wake := e.buf.NextWake()
		if wake.After(now) {
			sleep := wake.Sub(now)
			if remaining := time.Until(deadline); sleep > remaining {
				sleep = remaining
			}
			if sleep > 0 {
				time.Sleep(sleep)
			}
			continue
		}
		e.dispatchReady(time.Now())
	}
}
