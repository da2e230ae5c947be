package voxel

import (
	"sync/atomic"

	"github.com/coreman2200/cubeware/internal/layout"
)

// Pair is the active/back framebuffer pair. The handle of the active buffer
// is an index into bufs; Swap flips it atomically and never copies data.
type Pair struct {
	bufs   [2]*Buffer
	active atomic.Uint32
	swaps  atomic.Uint64
}

// NewPair allocates both buffers zeroed, buffer 0 active.
func NewPair(cube layout.Cube) *Pair {
	return &Pair{bufs: [2]*Buffer{NewBuffer(cube), NewBuffer(cube)}}
}

// Active is the buffer the refresh driver reads.
func (p *Pair) Active() *Buffer { return p.bufs[p.active.Load()] }

// Back is the buffer incoming frame data is written to.
func (p *Pair) Back() *Buffer { return p.bufs[p.active.Load()^1] }

// ActiveHandle returns the index of the active buffer (0 or 1).
func (p *Pair) ActiveHandle() int { return int(p.active.Load()) }

// Swap exchanges active and back. Swapping twice restores the original
// assignment.
func (p *Pair) Swap() {
	for {
		old := p.active.Load()
		if p.active.CompareAndSwap(old, old^1) {
			p.swaps.Add(1)
			return
		}
	}
}

// Swaps returns how many times the pair has been swapped.
func (p *Pair) Swaps() uint64 { return p.swaps.Load() }
