// Command cubectl drives a cube from a host over the serial link: it streams
// test patterns or frame files and writes control variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/coreman2200/cubeware/internal/layout"
	"github.com/coreman2200/cubeware/internal/link"
	"github.com/coreman2200/cubeware/internal/pattern"
	"github.com/coreman2200/cubeware/internal/protocol"
	"github.com/coreman2200/cubeware/internal/voxel"
)

const usage = `usage: cubectl [flags] <command> [command flags]

commands:
  ports                     list serial ports
  frame -pattern KIND       stream a test pattern (voxel_sweep, plane_z, edges, fill)
  frame -file PATH          send a raw frame file
  set [-exposure N] [-idle on|off] [-timeout N]
`

func main() {
	var (
		port = flag.String("port", "", "serial device, e.g. /dev/ttyUSB0")
		baud = flag.Int("baud", link.DefaultBaud, "baud rate")
		side = flag.Int("side", layout.DefaultSide, "cube side")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if args[0] == "ports" {
		ports, err := serial.GetPortsList()
		if err != nil {
			log.Fatal().Err(err).Msg("list ports")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cube, err := layout.New(*side)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid side")
	}
	if *port == "" {
		log.Fatal().Msg("-port is required")
	}
	p, err := link.DefaultPortFactory(*port, link.Mode(*baud))
	if err != nil {
		log.Fatal().Err(err).Str("port", *port).Msg("open")
	}
	defer p.Close()

	switch args[0] {
	case "frame":
		err = runFrame(ctx, p, cube, args[1:])
	case "set":
		err = runSet(p, args[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", args[0]).Msg("failed")
	}
}

func runFrame(ctx context.Context, w io.Writer, cube layout.Cube, args []string) error {
	fs := flag.NewFlagSet("frame", flag.ContinueOnError)
	kind := fs.String("pattern", "", "pattern kind")
	file := fs.String("file", "", "raw frame file")
	interval := fs.Duration("interval", 100*time.Millisecond, "delay between frames")
	loop := fs.Bool("loop", false, "repeat the pattern until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *file != "":
		frame, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		return sendFrame(w, frame, cube.BufferSize())
	case *kind != "":
		k, err := parseKind(*kind)
		if err != nil {
			return err
		}
		for {
			n, err := streamPattern(ctx, w, cube, k, *interval)
			if err != nil {
				return err
			}
			log.Info().Str("pattern", string(k)).Int("frames", n).Msg("pattern sent")
			if !*loop || ctx.Err() != nil {
				return nil
			}
		}
	default:
		return fmt.Errorf("frame needs -pattern or -file")
	}
}

func parseKind(s string) (pattern.Kind, error) {
	for _, k := range pattern.Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	names := make([]string, 0, len(pattern.Kinds()))
	for _, k := range pattern.Kinds() {
		names = append(names, string(k))
	}
	return pattern.None, fmt.Errorf("unknown pattern %q (want one of %s)", s, strings.Join(names, ", "))
}

// streamPattern sends every frame of kind, waiting interval between frames.
// It returns the number of frames sent.
func streamPattern(ctx context.Context, w io.Writer, cube layout.Cube, kind pattern.Kind, interval time.Duration) (int, error) {
	buf := voxel.NewBuffer(cube)
	r := pattern.NewRunner(pattern.Plan{Kind: kind})
	n := 0
	for r.Step(buf) {
		if err := sendFrame(w, buf.Bytes(), cube.BufferSize()); err != nil {
			return n, err
		}
		n++
		if interval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return n, nil
		case <-time.After(interval):
		}
	}
	return n, nil
}

func sendFrame(w io.Writer, frame []byte, capacity int) error {
	msg, err := protocol.EncodeLoadFrame(frame, capacity)
	if err != nil {
		return err
	}
	_, err = w.Write(msg)
	return err
}

func runSet(w io.Writer, args []string) error {
	settings, err := parseSettings(args)
	if err != nil {
		return err
	}
	msg, err := protocol.EncodeSetControl(settings...)
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	for _, s := range settings {
		log.Info().Str("control", s.Selector.String()).Uint16("value", s.Value).Msg("sent")
	}
	return nil
}

func parseSettings(args []string) ([]protocol.Setting, error) {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	exposure := fs.Int("exposure", -1, "exposure duration in units (0-65535)")
	idle := fs.String("idle", "", "auto idle: on | off")
	timeout := fs.Int("timeout", -1, "auto idle timeout in sweeps (0-65535)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var out []protocol.Setting
	if *exposure >= 0 {
		if *exposure > 0xFFFF {
			return nil, fmt.Errorf("exposure %d out of range", *exposure)
		}
		out = append(out, protocol.Setting{Selector: protocol.SelExposure, Value: uint16(*exposure)})
	}
	switch *idle {
	case "":
	case "on":
		out = append(out, protocol.Setting{Selector: protocol.SelIdleEnable, Value: 1})
	case "off":
		out = append(out, protocol.Setting{Selector: protocol.SelIdleEnable, Value: 0})
	default:
		return nil, fmt.Errorf("idle must be on or off, got %q", *idle)
	}
	if *timeout >= 0 {
		if *timeout > 0xFFFF {
			return nil, fmt.Errorf("timeout %d out of range", *timeout)
		}
		out = append(out, protocol.Setting{Selector: protocol.SelIdleTimeout, Value: uint16(*timeout)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("set needs at least one of -exposure, -idle, -timeout")
	}
	return out, nil
}
