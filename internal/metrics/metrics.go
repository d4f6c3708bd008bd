// Package metrics exports the session's cumulative counters and adaptive
// jitter gauges as Prometheus collectors.
//
// github.com/prometheus/client_golang is a real dependency of
// snapetech-plexTuner's go.mod, declared for exactly this kind of service
// counter/gauge surface; this package generalizes the teacher's ad hoc
// "sip->tg stats" structured-log block (bridge/media_bridge.go) into typed
// metrics instead of hand-rolled counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Session is the set of collectors one SessionController registers.
type Session struct {
	EventsFresh     prometheus.Counter
	EventsLost      prometheus.Counter
	EventsDuplicate prometheus.Counter
	EventsReordered prometheus.Counter
	StateErrors     prometheus.Counter
	LateDrops       prometheus.Gauge
	TimelineShifts  prometheus.Gauge

	JitterMs   prometheus.Gauge
	MinLatency prometheus.Gauge
	MaxLatency prometheus.Gauge
	AvgLatency prometheus.Gauge
	QueueDepth prometheus.Gauge
}

// NewSession builds collectors labeled by callsign, for a registry the
// caller owns (typically prometheus.NewRegistry() per process, or the
// default registry for a single-session driver binary).
func NewSession(reg prometheus.Registerer, callsign string) *Session {
	labels := prometheus.Labels{"callsign": callsign}

	s := &Session{
		EventsFresh: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "cwlink",
			Subsystem:   "tracker",
			Name:        "events_fresh_total",
			Help:        "Events classified as fresh arrivals.",
			ConstLabels: labels,
		}),
		EventsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "cwlink",
			Subsystem:   "tracker",
			Name:        "events_lost_total",
			Help:        "Cumulative count of events inferred lost from sequence gaps.",
			ConstLabels: labels,
		}),
		EventsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "cwlink",
			Subsystem:   "tracker",
			Name:        "events_duplicate_total",
			Help:        "Events classified as duplicates.",
			ConstLabels: labels,
		}),
		EventsReordered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "cwlink",
			Subsystem:   "tracker",
			Name:        "events_reordered_total",
			Help:        "Events classified as very-old / reordered arrivals.",
			ConstLabels: labels,
		}),
		StateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "cwlink",
			Subsystem:   "validator",
			Name:        "state_errors_total",
			Help:        "DOWN/UP alternation violations.",
			ConstLabels: labels,
		}),
		LateDrops: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cwlink",
			Subsystem:   "jitter",
			Name:        "late_drops_total",
			Help:        "Cumulative events dropped for arriving past the late threshold.",
			ConstLabels: labels,
		}),
		TimelineShifts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cwlink",
			Subsystem:   "jitter",
			Name:        "timeline_shifts_total",
			Help:        "Cumulative word-space resets / late-arrival timeline shifts.",
			ConstLabels: labels,
		}),
		JitterMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cwlink",
			Subsystem:   "jitter",
			Name:        "jitter_ms",
			Help:        "max(latency) - min(latency) over the current stats window.",
			ConstLabels: labels,
		}),
		MinLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cwlink",
			Subsystem:   "jitter",
			Name:        "min_latency_ms",
			Help:        "Minimum observed playout latency in the current window.",
			ConstLabels: labels,
		}),
		MaxLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cwlink",
			Subsystem:   "jitter",
			Name:        "max_latency_ms",
			Help:        "Maximum observed playout latency in the current window.",
			ConstLabels: labels,
		}),
		AvgLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cwlink",
			Subsystem:   "jitter",
			Name:        "avg_latency_ms",
			Help:        "Average observed playout latency in the current window.",
			ConstLabels: labels,
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cwlink",
			Subsystem:   "jitter",
			Name:        "queue_depth",
			Help:        "Events currently queued awaiting playout.",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			s.EventsFresh, s.EventsLost, s.EventsDuplicate, s.EventsReordered,
			s.StateErrors, s.LateDrops, s.TimelineShifts,
			s.JitterMs, s.MinLatency, s.MaxLatency, s.AvgLatency, s.QueueDepth,
		)
	}
	return s
}
