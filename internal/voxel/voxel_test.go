package voxel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/coreman2200/cubeware/internal/layout"
)

var cube8 = layout.Cube{Side: layout.DefaultSide}

func TestSetThenGetIsolated(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewBuffer(cube8)
		seed := rapid.SliceOfN(rapid.Byte(), cube8.BufferSize(), cube8.BufferSize()).Draw(t, "seed")
		// keep reserved bits clear so the comparison below is on state bits only
		for i := range seed {
			seed[i] &= 0x55
		}
		copy(b.Bytes(), seed)

		x := rapid.IntRange(0, 7).Draw(t, "x")
		y := rapid.IntRange(0, 7).Draw(t, "y")
		z := rapid.IntRange(0, 7).Draw(t, "z")
		v := rapid.Bool().Draw(t, "v")

		before := append([]byte(nil), b.Bytes()...)
		if err := b.Set(x, y, z, v); err != nil {
			t.Fatalf("set: %v", err)
		}
		got, err := b.Get(x, y, z)
		if err != nil || got != v {
			t.Fatalf("get(%d,%d,%d) = %v, %v; want %v", x, y, z, got, err, v)
		}

		for zz := 0; zz < 8; zz++ {
			for yy := 0; yy < 8; yy++ {
				for xx := 0; xx < 8; xx++ {
					if xx == x && yy == y && zz == z {
						continue
					}
					i, off, _ := cube8.Index(xx, yy, zz)
					if (b.Bytes()[i]>>off)&3 != (before[i]>>off)&3 {
						t.Fatalf("(%d,%d,%d) changed by set of (%d,%d,%d)", xx, yy, zz, x, y, z)
					}
				}
			}
		}
	})
}

func TestSetClearsReservedBit(t *testing.T) {
	b := NewBuffer(cube8)
	b.Bytes()[0] = 0xFF
	require.NoError(t, b.On(1, 0, 0))
	assert.Equal(t, byte(0xF7), b.Bytes()[0])
	require.NoError(t, b.Off(0, 0, 0))
	assert.Equal(t, byte(0xF4), b.Bytes()[0])
}

func TestOutOfRangeLeavesBufferAlone(t *testing.T) {
	b := NewBuffer(cube8)
	for _, p := range [][3]int{{8, 0, 0}, {0, 8, 0}, {0, 0, 8}, {-1, 0, 0}} {
		err := b.On(p[0], p[1], p[2])
		assert.ErrorIs(t, err, ErrOutOfRange)
		_, err = b.Get(p[0], p[1], p[2])
		assert.ErrorIs(t, err, ErrOutOfRange)
	}
	assert.Equal(t, make([]byte, 128), b.Bytes())
}

func TestGroupAndLayer(t *testing.T) {
	b := NewBuffer(cube8)
	for i := range b.Bytes() {
		b.Bytes()[i] = byte(i)
	}
	assert.Equal(t, [4]byte{40, 41, 42, 43}, b.Group(2, 2))
	assert.Len(t, b.Layer(7), 16)
	assert.Equal(t, byte(112), b.Layer(7)[0])
}

func TestLitAndClear(t *testing.T) {
	b := NewBuffer(cube8)
	require.NoError(t, b.On(0, 0, 0))
	require.NoError(t, b.On(7, 7, 7))
	require.NoError(t, b.On(7, 7, 7))
	assert.Equal(t, 2, b.Lit())
	b.Clear()
	assert.Equal(t, 0, b.Lit())
}

func TestSwapIsItsOwnInverse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := NewPair(cube8)
		n := rapid.IntRange(0, 50).Draw(t, "swaps")
		for i := 0; i < n; i++ {
			p.Swap()
		}
		a, bk := p.Active(), p.Back()
		p.Swap()
		p.Swap()
		if p.Active() != a || p.Back() != bk {
			t.Fatalf("double swap changed assignment")
		}
		if p.Active() == p.Back() {
			t.Fatalf("active and back alias")
		}
	})
}

func TestSwapDoesNotCopy(t *testing.T) {
	p := NewPair(cube8)
	back := p.Back()
	copy(back.Bytes(), bytes.Repeat([]byte{0x55}, 128))
	p.Swap()
	assert.Same(t, back, p.Active())
	assert.Equal(t, 1, p.ActiveHandle())
	assert.Equal(t, uint64(1), p.Swaps())
	assert.Equal(t, make([]byte, 128), p.Back().Bytes())
}
