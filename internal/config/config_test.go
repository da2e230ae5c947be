package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, uint16(1000), *c.Controls.Exposure)
	assert.Equal(t, uint16(4000), *c.Controls.IdleTimeout)
	assert.True(t, *c.Controls.IdleEnabled)
	assert.Equal(t, 100*time.Nanosecond, c.Timing.Unit())
	assert.Equal(t, time.Second, c.Timing.StartupDelay())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
driver: i2c
controls:
  idle_enabled: false
  exposure: 1500
idle:
  trigger: silence
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.Equal(t, "i2c", c.Driver)
	assert.Equal(t, uint16(1500), *c.Controls.Exposure)
	assert.False(t, *c.Controls.IdleEnabled)
	assert.Equal(t, uint16(4000), *c.Controls.IdleTimeout)
	assert.Equal(t, TriggerSilence, c.Idle.Trigger)
	assert.Equal(t, 8, c.Side)
	assert.Len(t, c.Rows.Pins, 8)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := Default()
	c.Serial.Path = "/dev/ttyUSB0"
	c.Monitor.Addr = ":8080"
	require.NoError(t, Save(path, c))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"side":    func(c *Config) { c.Side = 6 },
		"driver":  func(c *Config) { c.Driver = "spi" },
		"rows":    func(c *Config) { c.Driver = "i2c"; c.Rows.Pins = c.Rows.Pins[:3] },
		"trigger": func(c *Config) { c.Idle.Trigger = "never" },
		"timing":  func(c *Config) { c.Timing.BlankUnits = -1 },
		"blank":   func(c *Config) { c.Timing.BlankUnits = 70000 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadKeepsExplicitZeroControls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
controls:
  exposure: 0
  idle_timeout: 0
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, c.Controls.Exposure)
	require.NotNil(t, c.Controls.IdleTimeout)
	assert.Zero(t, *c.Controls.Exposure)
	assert.Zero(t, *c.Controls.IdleTimeout)
	assert.True(t, *c.Controls.IdleEnabled)
}

func TestValidateAcceptsMaxBlank(t *testing.T) {
	c := Default()
	c.Timing.BlankUnits = 65535
	assert.NoError(t, c.Validate())
}
