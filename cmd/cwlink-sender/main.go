// Command cwlink-sender is a reference driver for the send path: it paces
// an already-resolved dot/dash string through cw.BuildElements/PaceElements
// and writes the resulting events straight to a transport. Paddle/GPIO
// input and audio sidetone synthesis are external concerns (spec.md §1);
// this binary only exercises the text-to-CW path.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cwlink/cwlink/internal/codec"
	"github.com/cwlink/cwlink/internal/cw"
	"github.com/cwlink/cwlink/internal/event"
	"github.com/cwlink/cwlink/internal/transport"
)

func main() {
	debug := flag.Bool("debug", false, "verbose event logging")
	noAudio := flag.Bool("no-audio", false, "suppress local tx echo logging (this driver has no sidetone to begin with)")
	modeFlag := flag.String("mode", "straight", "keyer discipline, for CLI-surface parity; paddle input is not wired in this driver")
	flag.Parse()
	if _, ok := cw.ParseMode(*modeFlag); !ok {
		fmt.Fprintf(os.Stderr, "unknown --mode %q\n", *modeFlag)
		os.Exit(2)
	}

	if flag.NArg() < 3 {
		fmt.Fprintln(os.Stderr, "usage: cwlink-sender [--debug] [--no-audio] <host:port> <wpm> <text>")
		os.Exit(2)
	}
	host := flag.Arg(0)
	var wpm int
	if _, err := fmt.Sscanf(flag.Arg(1), "%d", &wpm); err != nil || wpm < 5 || wpm > 60 {
		fmt.Fprintln(os.Stderr, "wpm must be an integer between 5 and 60")
		os.Exit(2)
	}
	text := flag.Arg(2)

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	tr, err := transport.DialUDP(host)
	if err != nil {
		log.Error("dial failed", "error", err)
		os.Exit(1)
	}
	defer tr.Close()

	elements := cw.BuildElements(resolveText(text), wpm)

	var seq uint8
	send := func(e event.Event) {
		if werr := tr.WriteFrame(codec.EncodeDatagram(e, codec.DurationAuto)); werr != nil {
			log.Warn("send failed", "error", werr)
		}
	}

	cw.PaceElements(elements, func(el cw.TimedElement) {
		e := event.Event{Sequence: seq, KeyDown: el.Down, DurationMs: uint16(el.Dur.Milliseconds())}
		seq++
		send(e)
		if *debug && !*noAudio {
			log.Debug("tx", "down", el.Down, "dur_ms", el.Dur.Milliseconds())
		}
	}, time.Sleep)

	send(event.NewEOT(seq))
	log.Info("transmission complete", "elements", len(elements))
}
