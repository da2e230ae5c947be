package device

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultUnit is the length of one exposure unit.
const DefaultUnit = 100 * time.Nanosecond

// DefaultSpinBelow is the longest hold served by spinning instead of sleeping.
const DefaultSpinBelow = 500 * time.Microsecond

// Holder blocks for a number of calibrated timing units.
type Holder interface {
	Hold(units uint16)
}

// ClockHold converts units to time on a clock. Short holds spin on
// clock.Now for accuracy; longer ones sleep.
type ClockHold struct {
	clock     clockwork.Clock
	unit      time.Duration
	spinBelow time.Duration
}

// NewClockHold returns a hold of unit per count. spinBelow of 0 always sleeps,
// which is what a fake clock needs.
func NewClockHold(clock clockwork.Clock, unit, spinBelow time.Duration) *ClockHold {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if unit <= 0 {
		unit = DefaultUnit
	}
	return &ClockHold{clock: clock, unit: unit, spinBelow: spinBelow}
}

// Duration is how long Hold(units) blocks.
func (h *ClockHold) Duration(units uint16) time.Duration {
	return time.Duration(units) * h.unit
}

func (h *ClockHold) Hold(units uint16) {
	d := h.Duration(units)
	if d <= 0 {
		return
	}
	if d < h.spinBelow {
		start := h.clock.Now()
		for h.clock.Since(start) < d {
		}
		return
	}
	h.clock.Sleep(d)
}
