package device

import (
	"fmt"
	"sync/atomic"

	"github.com/coreman2200/cubeware/internal/protocol"
)

// Defaults for the control variables.
const (
	DefaultExposure    uint16 = 1000
	DefaultIdleTimeout uint16 = 4000
)

// Settings is the startup value of every host-writable control variable.
type Settings struct {
	Exposure    uint16
	IdleEnabled bool
	IdleTimeout uint16
}

// DefaultSettings matches the values the device powers up with.
func DefaultSettings() Settings {
	return Settings{Exposure: DefaultExposure, IdleEnabled: true, IdleTimeout: DefaultIdleTimeout}
}

// ControlValues is a point-in-time copy of Controls.
type ControlValues struct {
	Exposure    uint16 `json:"exposure"`
	IdleEnabled bool   `json:"idle_enabled"`
	IdleTimeout uint16 `json:"idle_timeout"`
	Traffic     bool   `json:"traffic"`
	IdleCounter uint32 `json:"idle_counter"`
}

// Controls holds the process-wide control variables. Only the refresh
// goroutine writes them; atomics let the monitor read them at any time.
type Controls struct {
	exposure    atomic.Uint32
	idleEnabled atomic.Bool
	idleTimeout atomic.Uint32
	traffic     atomic.Bool
	counter     atomic.Uint32
}

func newControls(s Settings) *Controls {
	c := &Controls{}
	c.exposure.Store(uint32(s.Exposure))
	c.idleEnabled.Store(s.IdleEnabled)
	c.idleTimeout.Store(uint32(s.IdleTimeout))
	return c
}

func (c *Controls) Exposure() uint16 { return uint16(c.exposure.Load()) }
func (c *Controls) IdleEnabled() bool { return c.idleEnabled.Load() }
func (c *Controls) IdleTimeout() uint16 { return uint16(c.idleTimeout.Load()) }
func (c *Controls) Traffic() bool { return c.traffic.Load() }
func (c *Controls) IdleCounter() uint32 { return c.counter.Load() }

// Apply writes one Set Control setting. Unknown selectors change nothing.
func (c *Controls) Apply(s protocol.Setting) error {
	switch s.Selector {
	case protocol.SelExposure:
		c.exposure.Store(uint32(s.Value))
	case protocol.SelIdleEnable:
		c.idleEnabled.Store(s.Value != 0)
	case protocol.SelIdleTimeout:
		c.idleTimeout.Store(uint32(s.Value))
	default:
		return fmt.Errorf("%w: %d", protocol.ErrUnknownSelector, byte(s.Selector))
	}
	return nil
}

func (c *Controls) Values() ControlValues {
	return ControlValues{
		Exposure:    c.Exposure(),
		IdleEnabled: c.IdleEnabled(),
		IdleTimeout: c.IdleTimeout(),
		Traffic:     c.Traffic(),
		IdleCounter: c.IdleCounter(),
	}
}

// markTraffic records host activity: flag set, idle counter zeroed.
func (c *Controls) markTraffic() {
	c.traffic.Store(true)
	c.counter.Store(0)
}
