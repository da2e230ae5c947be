package device

import (
	"context"
)

// Refresh performs one full sweep of the cube: every layer is written to the
// drivers, selected, held for the exposure and released. Queued bytes are
// processed between layers, so a frame swap takes effect at the next layer.
func (d *Device) Refresh() {
	chips := d.cube.Chips()
	for z := 0; z < d.cube.Side; z++ {
		buf := d.frames.Active()
		for c := 0; c < chips; c++ {
			if err := d.sink.WriteChannelGroup(c, buf.Group(z, c)); err != nil {
				d.hardwareError("write", err)
			}
		}
		if err := d.rows.Select(z); err != nil {
			d.hardwareError("select", err)
		}
		if err := d.sink.EnableOutputs(); err != nil {
			d.hardwareError("enable", err)
		}
		d.hold.Hold(d.ctl.Exposure())
		if err := d.rows.Release(); err != nil {
			d.hardwareError("release", err)
		}
		if d.blank > 0 {
			d.hold.Hold(d.blank)
		}
		d.drain()
	}
	d.stats.Sweeps++
}

// drain processes queued receive bytes in arrival order.
func (d *Device) drain() {
	if !d.draining || d.rx == nil {
		return
	}
	for i := 0; i < maxDrain; i++ {
		select {
		case b, ok := <-d.rx:
			if !ok {
				d.rx = nil
				return
			}
			d.ProcessByte(b)
		default:
			return
		}
	}
}

// Step is one iteration of the main loop: a sweep, then the idle check.
func (d *Device) Step() {
	d.Refresh()
	d.tickIdle()
	d.maybePublish()
}

// Run refreshes until ctx is cancelled. All rows are released on return.
func (d *Device) Run(ctx context.Context) error {
	d.draining = true
	defer func() {
		if err := d.rows.Release(); err != nil {
			d.hardwareError("release", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		d.Step()
	}
}
