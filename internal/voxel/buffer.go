// Package voxel holds the packed 1-bit voxel framebuffers and the
// active/back pair the refresh loop and the protocol hand between them.
package voxel

import (
	"fmt"

	"github.com/coreman2200/cubeware/internal/layout"
)

// ErrOutOfRange is returned for coordinates outside the cube.
var ErrOutOfRange = layout.ErrOutOfRange

const slotMask = 0x03

// Buffer is one packed framebuffer: 2 bits per voxel, low bit used.
type Buffer struct {
	cube layout.Cube
	data []byte
}

// NewBuffer allocates a zeroed buffer for cube.
func NewBuffer(cube layout.Cube) *Buffer {
	return &Buffer{cube: cube, data: make([]byte, cube.BufferSize())}
}

func (b *Buffer) Cube() layout.Cube { return b.cube }

// Bytes exposes the packed storage. Callers that hold a buffer by ownership
// (the protocol for the back buffer, the refresh loop for the active one) may
// write to it directly.
func (b *Buffer) Bytes() []byte { return b.data }

// Set writes v at x,y,z, leaving every other slot untouched. The reserved bit
// of the slot is cleared.
func (b *Buffer) Set(x, y, z int, v bool) error {
	i, off, err := b.cube.Index(x, y, z)
	if err != nil {
		return fmt.Errorf("voxel set: %w", err)
	}
	var bit byte
	if v {
		bit = 1
	}
	b.data[i] = b.data[i]&^(slotMask<<off) | bit<<off
	return nil
}

func (b *Buffer) On(x, y, z int) error { return b.Set(x, y, z, true) }
func (b *Buffer) Off(x, y, z int) error { return b.Set(x, y, z, false) }

// Get reports whether x,y,z is lit.
func (b *Buffer) Get(x, y, z int) (bool, error) {
	i, off, err := b.cube.Index(x, y, z)
	if err != nil {
		return false, fmt.Errorf("voxel get: %w", err)
	}
	return (b.data[i]>>off)&1 == 1, nil
}

// Clear turns every voxel off.
func (b *Buffer) Clear() {
	clear(b.data)
}

// Layer returns the packed bytes of layer z.
func (b *Buffer) Layer(z int) []byte {
	lo, hi := b.cube.Layer(z)
	return b.data[lo:hi]
}

// Group returns the 4 bytes chip receives for layer z.
func (b *Buffer) Group(z, chip int) [layout.GroupSize]byte {
	var g [layout.GroupSize]byte
	lo, hi := b.cube.Group(z, chip)
	copy(g[:], b.data[lo:hi])
	return g
}

// Lit counts lit voxels.
func (b *Buffer) Lit() int {
	n := 0
	for _, v := range b.data {
		for off := uint(0); off < 8; off += layout.BitsPerVoxel {
			n += int(v>>off) & 1
		}
	}
	return n
}
