package layout

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRange  = errors.New("coordinate out of range")
	ErrInvalidSide = errors.New("cube side must be a multiple of 4 between 4 and 16")
)

const (
	// DefaultSide is the reference 8x8x8 cube.
	DefaultSide = 8

	// Each voxel occupies a 2-bit slot: bit 0 is the on/off state, bit 1 is reserved.
	BitsPerVoxel  = 2
	VoxelsPerByte = 8 / BitsPerVoxel

	// GroupSize is the number of bytes one driver chip takes per layer (16 channels).
	GroupSize = 4
)

// Cube describes the geometry of a cube with Side voxels per edge.
type Cube struct {
	Side int
}

// New validates side and returns the cube geometry.
func New(side int) (Cube, error) {
	if side < 4 || side > 16 || side%VoxelsPerByte != 0 {
		return Cube{}, fmt.Errorf("%w: got %d", ErrInvalidSide, side)
	}
	return Cube{Side: side}, nil
}

// Count returns the number of voxels.
func (c Cube) Count() int { return c.Side * c.Side * c.Side }

// BufferSize is the packed framebuffer size in bytes (S³/4).
func (c Cube) BufferSize() int { return c.Count() / VoxelsPerByte }

// LayerSize is the number of packed bytes in one horizontal layer.
func (c Cube) LayerSize() int { return c.Side * c.Side / VoxelsPerByte }

// RowSize is the number of packed bytes in one row along X.
func (c Cube) RowSize() int { return c.Side / VoxelsPerByte }

// Chips is the number of driver chips serving one layer.
func (c Cube) Chips() int { return c.LayerSize() / GroupSize }

// Contains reports whether x,y,z lie inside the cube.
func (c Cube) Contains(x, y, z int) bool {
	return x >= 0 && x < c.Side && y >= 0 && y < c.Side && z >= 0 && z < c.Side
}

// Index maps x,y,z to the byte index and bit offset of its slot.
// For the 8-cube this is index = 16*z + 2*y + (x>3), offset = (x%4)*2.
func (c Cube) Index(x, y, z int) (index int, offset uint, err error) {
	if !c.Contains(x, y, z) {
		return 0, 0, fmt.Errorf("%w: (%d,%d,%d) side %d", ErrOutOfRange, x, y, z, c.Side)
	}
	index = z*c.LayerSize() + y*c.RowSize() + x/VoxelsPerByte
	offset = uint(x%VoxelsPerByte) * BitsPerVoxel
	return index, offset, nil
}

// Layer returns the byte range [lo, hi) holding layer z.
func (c Cube) Layer(z int) (lo, hi int) {
	lo = z * c.LayerSize()
	return lo, lo + c.LayerSize()
}

// Group returns the byte range [lo, hi) that chip receives for layer z.
func (c Cube) Group(z, chip int) (lo, hi int) {
	base, _ := c.Layer(z)
	lo = base + chip*GroupSize
	return lo, lo + GroupSize
}
