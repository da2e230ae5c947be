package device

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/cubeware/internal/diagnostics"
	"github.com/coreman2200/cubeware/internal/protocol"
)

const (
	greetingCount = 3
	greetingGap   = 200 * time.Millisecond
	greetingTail  = 100 * time.Millisecond
)

// Boot runs bring-up: startup delay, driver reset and configuration, one pass
// of the idle pattern as a self-test, then enables byte draining. The bus and
// serial port are opened by the caller.
func (d *Device) Boot(ctx context.Context) error {
	d.draining = false
	if err := d.wait(ctx, d.startupDelay); err != nil {
		return err
	}
	if err := d.sink.ResetAll(); err != nil {
		d.hardwareError("reset", err)
	}
	d.IdlePattern()
	d.draining = true

	if d.announce && d.tx != nil {
		if err := d.greet(ctx); err != nil {
			return err
		}
	}

	log.Info().
		Int("side", d.cube.Side).
		Uint16("exposure", d.ctl.Exposure()).
		Bool("idle", d.ctl.IdleEnabled()).
		Uint16("idle_timeout", d.ctl.IdleTimeout()).
		Msg("bring-up complete")
	d.diag(diag.Diagnostic{
		Severity: diag.Info, Code: diag.BootDone, Summary: "Bring-up complete",
		Evidence: map[string]any{"side": d.cube.Side},
	})
	return nil
}

// greet sends the liveness greeting. It is not an acknowledgement.
func (d *Device) greet(ctx context.Context) error {
	for i := 0; i < greetingCount; i++ {
		if err := d.wait(ctx, greetingGap); err != nil {
			return err
		}
		if _, err := d.tx.Write([]byte{protocol.Greeting}); err != nil {
			log.Warn().Err(err).Msg("greeting not sent")
			return nil
		}
	}
	return d.wait(ctx, greetingTail)
}

func (d *Device) wait(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.clock.After(dur):
		return nil
	}
}
