package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/coreman2200/cubeware/internal/config"
	"github.com/coreman2200/cubeware/internal/device"
	diag "github.com/coreman2200/cubeware/internal/diagnostics"
	"github.com/coreman2200/cubeware/internal/layout"
	"github.com/coreman2200/cubeware/internal/led"
	"github.com/coreman2200/cubeware/internal/link"
	"github.com/coreman2200/cubeware/internal/monitor"
)

func main() {
	// ---- Flags (config.yaml is the base, flags override when set) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		driver     = flag.String("driver", "", "driver: i2c | sim")
		serialPath = flag.String("serial", "", "serial device for the host link")
		addr       = flag.String("addr", "", "monitor HTTP listen address (empty disables)")
		level      = flag.String("log-level", "", "log level: debug | info | warn | error")
		simOnly    = flag.Bool("sim-only", false, "force simulation (no hardware output)")
	)
	flag.Parse()

	// ---- Logging (console until the config names a file) ----
	zerolog.TimeFieldFormat = time.RFC3339
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	log.Logger = log.Output(console)

	// ---- Config ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults")
		cfg = config.Default()
	}
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *simOnly {
		cfg.Driver = "sim"
	}
	if *serialPath != "" {
		cfg.Serial.Path = *serialPath
	}
	if *addr != "" {
		cfg.Monitor.Addr = *addr
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{Filename: cfg.LogFile, MaxSize: 1, MaxBackups: 2}
		defer file.Close()
		log.Logger = log.Output(zerolog.MultiLevelWriter(console, file)).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level; using info")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	cube, _ := layout.New(cfg.Side)

	// ---- Hardware ----
	sink, rows, closeHW, err := openHardware(cfg, cube)
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.Driver).Msg("hardware init failed; falling back to SIM")
		cfg.Driver = "sim"
		sink, rows, closeHW, _ = openHardware(cfg, cube)
	}
	defer closeHW()

	// ---- Host link ----
	var (
		rx <-chan byte
		tx io.Writer
	)
	if cfg.Serial.Path != "" {
		l, err := link.Open(link.DefaultPortFactory, cfg.Serial.Path, cfg.Serial.Baud, cfg.Serial.Queue)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Serial.Path).Msg("serial open failed")
		}
		defer l.Close()
		rx, tx = l.Bytes(), l
		log.Info().Str("path", cfg.Serial.Path).Int("baud", cfg.Serial.Baud).Msg("host link open")
	} else {
		log.Info().Msg("no serial path; running without host link")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Monitor ----
	var (
		publish func(device.Snapshot)
		srv     *http.Server
	)
	diagnostics := diag.Sink(diag.Discard)
	if cfg.Monitor.Addr != "" {
		state := monitor.NewState(cube, cfg.Driver)
		publish, diagnostics = state.Publish, state.PushDiag
		srv = &http.Server{
			Addr:         cfg.Monitor.Addr,
			Handler:      state.Handler(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go state.Run(ctx)
		go func() {
			log.Info().Str("addr", cfg.Monitor.Addr).Str("driver", cfg.Driver).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("http server crashed")
			}
		}()
	}

	// ---- Device ----
	settings := device.Settings{
		Exposure:    *cfg.Controls.Exposure,
		IdleEnabled: *cfg.Controls.IdleEnabled,
		IdleTimeout: *cfg.Controls.IdleTimeout,
	}
	dev, err := device.New(device.Options{
		Cube:          cube,
		Sink:          sink,
		Rows:          rows,
		Hold:          device.NewClockHold(nil, cfg.Timing.Unit(), device.DefaultSpinBelow),
		RX:            rx,
		TX:            tx,
		Announce:      cfg.Serial.Announce,
		Settings:      &settings,
		IdleOnSilence: cfg.Idle.Trigger == config.TriggerSilence,
		BlankUnits:    uint16(cfg.Timing.BlankUnits),
		StartupDelay:  cfg.Timing.StartupDelay(),
		Diagnostics:   diagnostics,
		Publish:       publish,
		PublishEvery:  cfg.Monitor.FrameInterval(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("device init failed")
	}

	if err := dev.Boot(ctx); err != nil {
		log.Info().Err(err).Msg("bring-up interrupted")
	} else if err := dev.Run(ctx); err != nil {
		log.Error().Err(err).Msg("refresh loop stopped")
	}

	// ---- Graceful shutdown ----
	log.Info().Msg("shutting down")
	if srv != nil {
		_ = srv.Close()
	}
}

func openHardware(cfg *config.Config, cube layout.Cube) (led.Sink, led.RowSelect, func(), error) {
	if cfg.Driver != "i2c" {
		sim := led.NewSim(false)
		sim.Log = true
		return sim, sim, func() {}, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, nil, nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2C.Bus)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open i2c bus %q: %w", cfg.I2C.Bus, err)
	}
	if err := bus.SetSpeed(physic.Frequency(cfg.I2C.FreqKHz) * physic.KiloHertz); err != nil {
		log.Warn().Err(err).Int("freq_khz", cfg.I2C.FreqKHz).Msg("i2c bus speed not set")
	}
	chips, err := led.NewTLC59116(bus, uint16(cfg.I2C.BaseAddr), cube.Chips())
	if err != nil {
		bus.Close()
		return nil, nil, nil, err
	}
	rows, err := led.OpenGPIORows(cfg.Rows.Pins)
	if err != nil {
		bus.Close()
		return nil, nil, nil, err
	}
	closeHW := func() {
		_ = rows.Close()
		_ = chips.Close()
		_ = bus.Close()
	}
	log.Info().
		Str("bus", bus.String()).
		Int("chips", cube.Chips()).
		Strs("rows", cfg.Rows.Pins).
		Msg("hardware ready")
	return chips, rows, closeHW, nil
}
