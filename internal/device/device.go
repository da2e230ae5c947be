// Package device is the cube controller: it owns the command session, the
// framebuffer pair and the control variables, and runs the refresh loop that
// multiplexes the cube layer by layer.
package device

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	diag "github.com/coreman2200/cubeware/internal/diagnostics"
	"github.com/coreman2200/cubeware/internal/layout"
	"github.com/coreman2200/cubeware/internal/led"
	"github.com/coreman2200/cubeware/internal/protocol"
	"github.com/coreman2200/cubeware/internal/voxel"
)

// maxDrain bounds how many queued bytes are processed between two layers.
const maxDrain = 1024

// Hardware failures repeat every layer while a chip is down; report at most
// one per interval.
const hwReportInterval = 5 * time.Second

// Options wires a Device to its collaborators.
type Options struct {
	Cube layout.Cube
	Sink led.Sink
	Rows led.RowSelect

	// Hold defaults to a ClockHold of DefaultUnit on Clock.
	Hold  Holder
	Clock clockwork.Clock

	// RX is the ordered receive queue; nil runs without a host.
	RX <-chan byte
	// TX receives the greeting when Announce is set.
	TX       io.Writer
	Announce bool

	// Settings defaults to DefaultSettings when nil.
	Settings *Settings
	// IdleOnSilence negates the traffic condition of the idle trigger.
	IdleOnSilence bool
	BlankUnits    uint16
	StartupDelay  time.Duration

	Diagnostics diag.Sink
	// Publish receives a copy of the active frame at most every PublishEvery.
	Publish      func(Snapshot)
	PublishEvery time.Duration
}

// Stats are counters kept by the refresh goroutine.
type Stats struct {
	Sweeps         uint64         `json:"sweeps"`
	FramesLoaded   uint64         `json:"frames_loaded"`
	ControlWrites  uint64         `json:"control_writes"`
	IdleTriggers   uint64         `json:"idle_triggers"`
	HardwareErrors uint64         `json:"hardware_errors"`
	Protocol       protocol.Stats `json:"protocol"`
}

// Snapshot is what the device publishes for observers.
type Snapshot struct {
	Time     time.Time     `json:"t"`
	Side     int           `json:"side"`
	Frame    []byte        `json:"frame"`
	Handle   int           `json:"handle"`
	Controls ControlValues `json:"controls"`
	Stats    Stats         `json:"stats"`
}

// Device is the single owned device state. Everything except Controls is
// touched only by the goroutine running Boot and Run.
type Device struct {
	cube    layout.Cube
	frames  *voxel.Pair
	session *protocol.Session
	ctl     *Controls

	sink  led.Sink
	rows  led.RowSelect
	hold  Holder
	clock clockwork.Clock

	rx       <-chan byte
	tx       io.Writer
	announce bool
	// draining is off until bring-up finishes, like interrupts on the MCU.
	draining bool

	idleOnSilence bool
	blank         uint16
	startupDelay  time.Duration

	diag         diag.Sink
	publish      func(Snapshot)
	publishEvery time.Duration
	lastPublish  time.Time
	hwReports    *rate.Limiter

	stats Stats
}

func New(opts Options) (*Device, error) {
	if opts.Sink == nil || opts.Rows == nil {
		return nil, errors.New("device: sink and row select are required")
	}
	if opts.Cube.Side == 0 {
		opts.Cube = layout.Cube{Side: layout.DefaultSide}
	}
	if _, err := layout.New(opts.Cube.Side); err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Hold == nil {
		opts.Hold = NewClockHold(opts.Clock, DefaultUnit, DefaultSpinBelow)
	}
	settings := DefaultSettings()
	if opts.Settings != nil {
		settings = *opts.Settings
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = diag.Discard
	}

	d := &Device{
		cube:          opts.Cube,
		frames:        voxel.NewPair(opts.Cube),
		ctl:           newControls(settings),
		sink:          opts.Sink,
		rows:          opts.Rows,
		hold:          opts.Hold,
		clock:         opts.Clock,
		rx:            opts.RX,
		tx:            opts.TX,
		announce:      opts.Announce,
		idleOnSilence: opts.IdleOnSilence,
		blank:         opts.BlankUnits,
		startupDelay:  opts.StartupDelay,
		diag:          opts.Diagnostics,
		publish:       opts.Publish,
		publishEvery:  opts.PublishEvery,
		hwReports:     rate.NewLimiter(rate.Every(hwReportInterval), 1),
	}
	d.session = protocol.NewSession(func() []byte { return d.frames.Back().Bytes() })
	return d, nil
}

func (d *Device) Cube() layout.Cube { return d.cube }
func (d *Device) Frames() *voxel.Pair { return d.frames }
func (d *Device) Controls() *Controls { return d.ctl }
func (d *Device) Session() *protocol.Session { return d.session }

// Stats must be read from the refresh goroutine, or after Run returns.
func (d *Device) Stats() Stats {
	s := d.stats
	s.Protocol = d.session.Stats()
	return s
}

// Set writes one voxel of the back buffer.
func (d *Device) Set(x, y, z int, v bool) error { return d.frames.Back().Set(x, y, z, v) }
func (d *Device) On(x, y, z int) error { return d.Set(x, y, z, true) }
func (d *Device) Off(x, y, z int) error { return d.Set(x, y, z, false) }

// SwapBuffers hands the back buffer to the refresh driver and takes the
// previous active buffer back.
func (d *Device) SwapBuffers() { d.frames.Swap() }

// ProcessByte is the receive path: it marks traffic, advances the command
// session and dispatches completed commands.
func (d *Device) ProcessByte(b byte) {
	d.ctl.markTraffic()
	cmd, ok, err := d.session.ProcessByte(b)
	if err != nil {
		d.protocolAnomaly(err, b)
	}
	if ok {
		d.dispatch(cmd)
	}
}

func (d *Device) dispatch(cmd protocol.Command) {
	switch cmd.Op {
	case protocol.OpLoadFrame:
		d.SwapBuffers()
		d.stats.FramesLoaded++
		log.Debug().Int("bytes", len(cmd.Frame)).Bool("truncated", cmd.Truncated).Msg("frame loaded")
	case protocol.OpSetControl:
		for _, s := range protocol.DecodeSettings(cmd.Args) {
			if err := d.ctl.Apply(s); err != nil {
				d.protocolAnomaly(err, byte(s.Selector))
				continue
			}
			d.stats.ControlWrites++
			log.Info().Str("control", s.Selector.String()).Uint16("value", s.Value).Msg("control set")
			d.diag(diag.Diagnostic{
				Severity: diag.Info, Code: diag.ControlSet, Summary: "Control variable set",
				Evidence: map[string]any{"control": s.Selector.String(), "value": s.Value},
			})
		}
	}
}

func (d *Device) protocolAnomaly(err error, b byte) {
	log.Debug().Err(err).Uint8("byte", b).Msg("protocol anomaly ignored")
	code := ""
	switch {
	case errors.Is(err, protocol.ErrFrameOverflow):
		code = diag.ProtoFrameOverflow
	case errors.Is(err, protocol.ErrArgOverflow):
		code = diag.ProtoArgOverflow
	case errors.Is(err, protocol.ErrUnknownOpcode):
		code = diag.ProtoUnknownOpcode
	case errors.Is(err, protocol.ErrUnknownSelector):
		code = diag.ProtoUnknownSelector
	default:
		return
	}
	d.diag(diag.Diagnostic{
		Severity: diag.Warn, Code: code, Summary: "Protocol input ignored", Detail: err.Error(),
		Evidence: map[string]any{"byte": b},
	})
}

func (d *Device) hardwareError(op string, err error) {
	d.stats.HardwareErrors++
	n := d.stats.HardwareErrors
	if d.hwReports.AllowN(d.clock.Now(), 1) {
		log.Warn().Err(err).Str("op", op).Uint64("count", n).Msg("hardware write failed")
		d.diag(diag.Diagnostic{
			Severity: diag.Err, Code: diag.HardwareWrite, Summary: "Hardware write failed", Detail: err.Error(),
			LikelyCauses:   []string{"driver chip not responding on the bus", "row select pin unavailable"},
			SuggestedFixes: []string{"check I2C wiring and chip addresses", "check rows.pins in config"},
			Evidence:       map[string]any{"op": op, "count": n},
		})
	}
}

func (d *Device) maybePublish() {
	if d.publish == nil {
		return
	}
	now := d.clock.Now()
	if !d.lastPublish.IsZero() && now.Sub(d.lastPublish) < d.publishEvery {
		return
	}
	d.lastPublish = now
	d.publish(Snapshot{
		Time:     now,
		Side:     d.cube.Side,
		Frame:    append([]byte(nil), d.frames.Active().Bytes()...),
		Handle:   d.frames.ActiveHandle(),
		Controls: d.ctl.Values(),
		Stats:    d.Stats(),
	})
}
