package device

import (
	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/cubeware/internal/diagnostics"
	"github.com/coreman2200/cubeware/internal/pattern"
)

// tickIdle advances the idle counter by one sweep and runs the idle pattern
// once the timeout has passed.
func (d *Device) tickIdle() {
	n := d.ctl.counter.Add(1)
	if n <= uint32(d.ctl.IdleTimeout()) || !d.ctl.IdleEnabled() {
		return
	}
	wantTraffic := !d.idleOnSilence
	if d.ctl.Traffic() != wantTraffic {
		return
	}

	d.stats.IdleTriggers++
	log.Info().Uint32("sweeps", n).Bool("traffic", d.ctl.Traffic()).Msg("idle timeout, running idle pattern")
	d.diag(diag.Diagnostic{
		Severity: diag.Info, Code: diag.IdleTriggered, Summary: "Idle pattern started",
		Evidence: map[string]any{"sweeps": n, "timeout": d.ctl.IdleTimeout()},
	})
	d.IdlePattern()
	d.ctl.counter.Store(0)
	d.ctl.traffic.Store(false)
}

// IdlePattern draws the growing wireframe into the active buffer, two sweeps
// per step. It stops early and returns false when a host frame is swapped in
// while it runs.
func (d *Device) IdlePattern() bool {
	start := d.frames.Swaps()
	for i := 0; i < d.cube.Side; i++ {
		if d.frames.Swaps() != start {
			log.Debug().Int("step", i).Msg("idle pattern interrupted by frame")
			return false
		}
		buf := d.frames.Active()
		if i == 0 {
			buf.Clear()
		}
		for _, p := range pattern.Edges(d.cube, i) {
			_ = buf.On(p.X, p.Y, p.Z)
		}
		d.Refresh()
		d.Refresh()
		d.maybePublish()
	}
	return d.frames.Swaps() == start
}
