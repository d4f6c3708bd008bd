// Command cwlink-receiver is a reference driver for the receive path:
// it owns a transport listener, wires up a session.Controller per
// connection, and prints key transitions to the configured sink. Sidetone
// audio synthesis and hardware keying are explicitly external concerns
// (spec.md §1's non-goals); this binary's sink is a stand-in a real
// deployment would replace.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwlink/cwlink/internal/codec"
	"github.com/cwlink/cwlink/internal/jitter"
	"github.com/cwlink/cwlink/internal/metrics"
	"github.com/cwlink/cwlink/internal/playout"
	"github.com/cwlink/cwlink/internal/session"
	"github.com/cwlink/cwlink/internal/transport"
)

func main() {
	jitterBufferMs := flag.Int("jitter-buffer", 0, "jitter buffer depth in ms, 0 uses the config file default")
	debug := flag.Bool("debug", false, "verbose event logging")
	noAudio := flag.Bool("no-audio", false, "disable sidetone sink (this driver has no sidetone to begin with)")
	flag.Parse()

	configPath := "receiver.yaml"
	if flag.NArg() > 0 {
		configPath = flag.Arg(0)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Error("config error", "error", err)
		os.Exit(1)
	}
	if *jitterBufferMs > 0 {
		cfg.JitterMs = time.Duration(*jitterBufferMs) * time.Millisecond
	}
	cfg.Debug = cfg.Debug || *debug

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	reg := prometheus.NewRegistry()
	sessionMetrics := metrics.NewSession(reg, cfg.Callsign)

	go serveMetrics(cfg.MetricsAddr, reg, log)

	sink := playout.Sink{
		OnKey: func(callsign string, keyDown bool) {
			if *noAudio && !cfg.Debug {
				return
			}
			log.Info("key", "callsign", callsign, "down", keyDown)
		},
	}

	discipline := jitter.Relative
	if cfg.Timestamped {
		discipline = jitter.Absolute
	}
	sessCfg := session.Config{
		DurationWid: codec.DurationAuto,
		Callsign:    cfg.Callsign,
		JitterConfig: jitter.Config{
			Discipline:         discipline,
			BufferDuration:     cfg.JitterMs,
			LateThreshold:      cfg.LateMs,
			WordSpaceThreshold: cfg.WordSpaceGap,
		},
		Log:     log,
		Metrics: sessionMetrics,
	}

	switch cfg.Listen {
	case "udp":
		sessCfg.Framing = session.FramingDatagram
		runUDP(ctx, cfg, sessCfg, sink, log)
	case "tcp":
		sessCfg.Framing = session.FramingStream
		runTCP(ctx, cfg, sessCfg, sink, log)
	}

	log.Info("shutdown complete")
}

func runUDP(ctx context.Context, cfg config, sessCfg session.Config, sink playout.Sink, log *slog.Logger) {
	tr, err := transport.ListenUDP(cfg.BindAddr)
	if err != nil {
		log.Error("udp listen failed", "error", err)
		os.Exit(1)
	}
	ctrl := session.New(ctx, tr, sessCfg, sink)
	ctrl.Start()
	<-ctx.Done()
	ctrl.Stop()
}

func runTCP(ctx context.Context, cfg config, sessCfg session.Config, sink playout.Sink, log *slog.Logger) {
	ln, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		log.Error("tcp listen failed", "error", err)
		os.Exit(1)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.Warn("tcp accept failed", "error", err)
			return
		}
		log.Info("tcp: peer connected", "remote", conn.RemoteAddr())
		ctrl := session.New(ctx, transport.NewTCP(conn), sessCfg, sink)
		ctrl.Start()
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics server stopped", "error", err)
	}
}
