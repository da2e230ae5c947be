package led

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestTLC59116ResetAndConfigure(t *testing.T) {
	rec := &i2ctest.Record{}
	d, err := NewTLC59116(rec, 0, 2)
	require.NoError(t, err)
	require.NoError(t, d.ResetAll())

	require.Len(t, rec.Ops, 3)
	assert.Equal(t, uint16(SoftResetAddr), rec.Ops[0].Addr)
	assert.Equal(t, []byte{0xA5, 0x5A}, rec.Ops[0].W)

	for i, op := range rec.Ops[1:] {
		assert.Equal(t, uint16(DefaultBaseAddr+i), op.Addr)
		require.Len(t, op.W, 20)
		assert.Equal(t, []byte{0x80, 0x01, 0x00}, op.W[:3])
	}
}

func TestTLC59116WriteChannelGroup(t *testing.T) {
	rec := &i2ctest.Record{}
	d, err := NewTLC59116(rec, 0x61, 4)
	require.NoError(t, err)

	require.NoError(t, d.WriteChannelGroup(3, [4]byte{0x01, 0x04, 0x10, 0x40}))
	require.Len(t, rec.Ops, 1)
	assert.Equal(t, uint16(0x64), rec.Ops[0].Addr)
	assert.Equal(t, []byte{0x94, 0x01, 0x04, 0x10, 0x40}, rec.Ops[0].W)

	assert.Error(t, d.WriteChannelGroup(4, [4]byte{}))
	assert.Error(t, d.WriteChannelGroup(-1, [4]byte{}))
}

func TestTLC59116EnableUsesAllCall(t *testing.T) {
	rec := &i2ctest.Record{}
	d, err := NewTLC59116(rec, 0, 4)
	require.NoError(t, err)
	require.NoError(t, d.EnableOutputs())
	require.Len(t, rec.Ops, 1)
	assert.Equal(t, uint16(AllCallAddr), rec.Ops[0].Addr)
	assert.Equal(t, []byte{0x00, 0x01}, rec.Ops[0].W)
}

func TestTLC59116CloseBlanksOutputs(t *testing.T) {
	rec := &i2ctest.Record{}
	d, err := NewTLC59116(rec, 0, 4)
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.Len(t, rec.Ops, 4)
	for _, op := range rec.Ops {
		assert.Equal(t, []byte{0x94, 0, 0, 0, 0}, op.W)
	}
}

func TestNewTLC59116Validates(t *testing.T) {
	_, err := NewTLC59116(nil, 0, 4)
	assert.Error(t, err)
	_, err = NewTLC59116(&i2ctest.Record{}, 0, 0)
	assert.Error(t, err)
}

func testPins(n int) ([]*gpiotest.Pin, []gpio.PinOut) {
	pins := make([]*gpiotest.Pin, n)
	outs := make([]gpio.PinOut, n)
	for i := range pins {
		pins[i] = &gpiotest.Pin{N: "ROW", Num: i, L: gpio.High}
		outs[i] = pins[i]
	}
	return pins, outs
}

func TestGPIORowsSelectsExactlyOne(t *testing.T) {
	pins, outs := testPins(8)
	r, err := NewGPIORows(outs)
	require.NoError(t, err)
	for _, p := range pins {
		assert.Equal(t, gpio.Low, p.L, "lines start released")
	}

	for layer := 0; layer < 8; layer++ {
		require.NoError(t, r.Select(layer))
		for i, p := range pins {
			assert.Equal(t, i == layer, p.L == gpio.High, "layer %d pin %d", layer, i)
		}
	}
	require.NoError(t, r.Release())
	for _, p := range pins {
		assert.Equal(t, gpio.Low, p.L)
	}
	assert.Error(t, r.Select(8))
}

func TestSimRecords(t *testing.T) {
	s := NewSim(true)
	require.NoError(t, s.ResetAll())
	require.NoError(t, s.WriteChannelGroup(1, [4]byte{0x55}))
	require.NoError(t, s.Select(0))
	require.NoError(t, s.EnableOutputs())
	require.NoError(t, s.Release())

	ev := s.Events()
	require.Len(t, ev, 5)
	assert.Equal(t, EvReset, ev[0].Kind)
	assert.Equal(t, Event{Kind: EvWrite, Chip: 1, Group: [4]byte{0x55}}, ev[1])
	assert.Equal(t, 1, s.Sweeps())

	s.Forget()
	assert.Empty(t, s.Events())
	assert.Zero(t, s.Sweeps())
}
