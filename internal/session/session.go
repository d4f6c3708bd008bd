// Package session implements the SessionController of spec.md §4.7: it
// owns one transport connection and drives the codec, tracker, validator,
// jitter buffer, and playout engine as one unit, handling EOT, watchdog,
// and reconnect.
//
// Struct shape (holding its collaborators by value/pointer, a slog logger,
// atomic counters, a small mutex for the bits mutated from more than one
// goroutine) follows the teacher's bridge.Service.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cwlink/cwlink/internal/codec"
	"github.com/cwlink/cwlink/internal/event"
	"github.com/cwlink/cwlink/internal/jitter"
	"github.com/cwlink/cwlink/internal/metrics"
	"github.com/cwlink/cwlink/internal/playout"
	"github.com/cwlink/cwlink/internal/tracker"
	"github.com/cwlink/cwlink/internal/transport"
	"github.com/cwlink/cwlink/internal/validator"
)

// Framing selects which wire framing the controller's receive loop speaks.
type Framing int

const (
	FramingDatagram Framing = iota
	FramingStream
)

const watchdogTimeout = 3 * time.Second

// Config configures a Controller.
type Config struct {
	Framing      Framing
	DurationWid  codec.DurationWidth
	Callsign     string
	JitterConfig jitter.Config
	Log          *slog.Logger
	Metrics      *metrics.Session // optional
}

// Controller is spec.md §4.7's SessionController: transport + codec +
// tracker + validator + buffer + playout, as one owned unit.
type Controller struct {
	cfg       Config
	sessionID string
	transport transport.Transport
	tracker   tracker.Tracker
	validator *validator.Validator
	buffer    *jitter.Buffer
	engine    *playout.Engine
	sink      playout.Sink
	streamDec codec.StreamDecoder
	log       *slog.Logger

	mu            sync.Mutex
	lastPacketAt  time.Time
	hasLastPacket bool

	stateErrors atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Controller over an already-connected transport. sink is
// wired straight through to the playout engine.
func New(parent context.Context, t transport.Transport, cfg Config, sink playout.Sink) *Controller {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	sessionID := uuid.NewString()
	log := cfg.Log.With("session_id", sessionID)
	ctx, cancel := context.WithCancel(parent)
	buf := jitter.New(cfg.JitterConfig)
	c := &Controller{
		cfg:       cfg,
		sessionID: sessionID,
		transport: t,
		validator: validator.New(log),
		buffer:    buf,
		sink:      sink,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
	c.engine = playout.New(ctx, buf, sink, log)
	return c
}

// SessionID returns the controller's log/metric correlation ID: a
// google/uuid string generated once in New and stable across Reconnect
// calls. It is never a spec-level identifier and is never persisted.
func (c *Controller) SessionID() string { return c.sessionID }

// Start launches the receive loop and the playout engine. It does not
// block.
func (c *Controller) Start() {
	c.engine.Start()
	c.wg.Add(1)
	go c.recvLoop()
	c.wg.Add(1)
	go c.watchdogLoop()
}

// Stop requests shutdown and waits for both loops and the playout engine
// to finish draining.
func (c *Controller) Stop() {
	c.cancel()
	_ = c.transport.Close()
	c.wg.Wait()
	c.engine.Stop()
}

func (c *Controller) recvLoop() {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		tr := c.transport
		c.mu.Unlock()
		chunk, err := tr.ReadChunk()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
			c.mu.Lock()
			replaced := c.transport != tr
			c.mu.Unlock()
			if replaced {
				continue // Reconnect closed tr and installed a fresh transport
			}
			c.log.Warn("session: transport read failed", "error", err)
			return
		}
		c.markPacketArrived()

		switch c.cfg.Framing {
		case FramingStream:
			events, decErr := c.streamDec.Push(chunk)
			if decErr != nil {
				c.log.Warn("session: stream decode error", "error", decErr)
			}
			for _, e := range events {
				c.handleEvent(e)
			}
		default:
			e, _, decErr := codec.DecodeDatagram(chunk)
			if decErr != nil {
				c.log.Warn("session: datagram decode error", "error", decErr)
				continue
			}
			c.handleEvent(e)
		}
	}
}

func (c *Controller) handleEvent(e event.Event) {
	now := time.Now()

	if e.IsEOT {
		// spec.md §4.7: EOT resets the validator's alternation expectation
		// and the buffer's scheduling epoch, but leaves queued events
		// alone — it is a signal, not a timeline reset.
		c.validator.Reset()
		c.buffer.ResetEpoch()
		c.tracker.Reset()
		return
	}

	result := c.tracker.Observe(e.Sequence)
	if c.cfg.Metrics != nil {
		switch result.Outcome {
		case tracker.Fresh:
			c.cfg.Metrics.EventsFresh.Inc()
		case tracker.Lost:
			c.cfg.Metrics.EventsLost.Add(float64(result.Lost))
		case tracker.Duplicate:
			c.cfg.Metrics.EventsDuplicate.Inc()
		case tracker.Reordered:
			c.cfg.Metrics.EventsReordered.Inc()
		}
	}
	switch result.Outcome {
	case tracker.Duplicate, tracker.Reordered:
		return // spec.md §7: drop silently, count (already counted above)
	}

	if c.validator.Observe(e.KeyDown) {
		c.stateErrors.Add(1)
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.StateErrors.Inc()
		}
	}

	c.buffer.PushFor(now, c.cfg.Callsign, e)
	c.publishStats()
}

func (c *Controller) publishStats() {
	if c.cfg.Metrics == nil {
		return
	}
	stats := c.buffer.Stats()
	c.cfg.Metrics.JitterMs.Set(float64(stats.Jitter.Milliseconds()))
	c.cfg.Metrics.MinLatency.Set(float64(stats.Min.Milliseconds()))
	c.cfg.Metrics.MaxLatency.Set(float64(stats.Max.Milliseconds()))
	c.cfg.Metrics.AvgLatency.Set(float64(stats.Avg.Milliseconds()))
	c.cfg.Metrics.QueueDepth.Set(float64(c.buffer.Len()))
	c.cfg.Metrics.TimelineShifts.Set(float64(stats.TimelineShifts))
	c.cfg.Metrics.LateDrops.Set(float64(stats.LateDrops))
}

func (c *Controller) markPacketArrived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPacketAt = time.Now()
	c.hasLastPacket = true
}

// watchdogLoop implements spec.md §5's watchdog: if no packet arrives for
// 3s on an active receiver, the key is forced to the safe (UP) state.
func (c *Controller) watchdogLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	tripped := false
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			idle := c.hasLastPacket && time.Since(c.lastPacketAt) >= watchdogTimeout
			c.mu.Unlock()
			if idle && !tripped {
				tripped = true
				c.log.Warn("session: watchdog tripped, forcing key up")
				if c.sink.OnKey != nil {
					c.sink.OnKey(c.cfg.Callsign, false)
				}
			} else if !idle {
				tripped = false
			}
		}
	}
}

// Reconnect implements spec.md §4.7's stream-transport reconnect
// semantics: fresh transport, cleared buffer, reset validator/epoch.
func (c *Controller) Reconnect(t transport.Transport) {
	c.mu.Lock()
	old := c.transport
	c.transport = t
	c.hasLastPacket = false
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	c.buffer.Clear()
	c.validator.Reset()
	c.tracker.Reset()
	c.streamDec = codec.StreamDecoder{}
}

// StateErrors reports the cumulative validator violation count.
func (c *Controller) StateErrors() uint64 { return c.stateErrors.Load() }

// Stats is a typed, queryable snapshot of one session's cumulative and
// point-in-time counters — the generalization of the teacher's ad hoc
// "sip->tg stats" log line (bridge/media_bridge.go) into a struct a
// driver can read directly instead of scraping logs or Prometheus.
type Stats struct {
	SessionID   string
	Tracker     tracker.Stats
	Jitter      jitter.Stats
	QueueLen    int
	StateErrors uint64
}

// Stats returns a point-in-time snapshot of this controller's collaborators.
func (c *Controller) Stats() Stats {
	return Stats{
		SessionID:   c.sessionID,
		Tracker:     c.tracker.Stats(),
		Jitter:      c.buffer.Stats(),
		QueueLen:    c.buffer.Len(),
		StateErrors: c.stateErrors.Load(),
	}
}

// ErrNotConnected is returned by send-path helpers when no transport is set.
var ErrNotConnected = errors.New("session: no transport connected")

// Send encodes e per the configured framing and writes it to the
// transport (send-path helper for a driver's local sidetone + network TX).
func (c *Controller) Send(e event.Event) error {
	if c.transport == nil {
		return ErrNotConnected
	}
	var frame []byte
	if c.cfg.Framing == FramingStream {
		frame = codec.EncodeStream(e, c.cfg.DurationWid)
	} else {
		frame = codec.EncodeDatagram(e, c.cfg.DurationWid)
	}
	return c.transport.WriteFrame(frame)
}
