// Package pattern generates the fixed, deterministic frames the cube shows
// without host input, and the sweep frames the host tool sends for checks.
package pattern

import (
	"github.com/coreman2200/cubeware/internal/layout"
	"github.com/coreman2200/cubeware/internal/voxel"
)

// Coord is a voxel position.
type Coord struct{ X, Y, Z int }

// EdgesPerStep is how many voxels the idle pattern lights per index.
const EdgesPerStep = 12

// Edges returns the twelve edge voxels touching index i: the four vertical
// edges at height i, and the edges of the bottom and top faces advancing
// through row i and column i.
func Edges(c layout.Cube, i int) [EdgesPerStep]Coord {
	m := c.Side - 1
	return [EdgesPerStep]Coord{
		{0, 0, i}, {m, 0, i}, {0, m, i}, {m, m, i},
		{0, i, 0}, {m, i, 0}, {0, i, m}, {m, i, m},
		{i, 0, 0}, {i, m, 0}, {i, 0, m}, {i, m, m},
	}
}

// Kind selects a Runner sequence.
type Kind string

const (
	None       Kind = ""
	VoxelSweep Kind = "voxel_sweep"
	PlaneZ     Kind = "plane_z"
	EdgeGrow   Kind = "edges"
	Fill       Kind = "fill"
)

// Kinds lists the runnable sequences.
func Kinds() []Kind { return []Kind{VoxelSweep, PlaneZ, EdgeGrow, Fill} }

type Plan struct{ Kind Kind }

// Runner steps through a sequence one frame at a time.
type Runner struct {
	plan Plan
	step int
}

func NewRunner(plan Plan) *Runner { return &Runner{plan: plan} }
func (r *Runner) Kind() Kind { return r.plan.Kind }

// Step draws the next frame into buf and returns false when the sequence is
// complete. VoxelSweep and PlaneZ clear buf each step; EdgeGrow accumulates.
func (r *Runner) Step(buf *voxel.Buffer) bool {
	c := buf.Cube()
	switch r.plan.Kind {
	case VoxelSweep:
		if r.step >= c.Count() {
			return false
		}
		buf.Clear()
		x, y, z := r.step%c.Side, (r.step/c.Side)%c.Side, r.step/(c.Side*c.Side)
		_ = buf.On(x, y, z)
	case PlaneZ:
		if r.step >= c.Side {
			return false
		}
		buf.Clear()
		for y := 0; y < c.Side; y++ {
			for x := 0; x < c.Side; x++ {
				_ = buf.On(x, y, r.step)
			}
		}
	case EdgeGrow:
		if r.step >= c.Side {
			return false
		}
		if r.step == 0 {
			buf.Clear()
		}
		for _, p := range Edges(c, r.step) {
			_ = buf.On(p.X, p.Y, p.Z)
		}
	case Fill:
		if r.step >= 1 {
			return false
		}
		b := buf.Bytes()
		for i := range b {
			b[i] = 0x55
		}
	default:
		return false
	}
	r.step++
	return true
}
