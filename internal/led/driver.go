package led

// Sink abstracts the LED driver chips on the shared bus.
type Sink interface {
	// ResetAll resets every chip and loads its operating configuration.
	ResetAll() error
	// EnableOutputs turns the chip outputs on.
	EnableOutputs() error
	// WriteChannelGroup pushes 4 packed bytes (16 channels, 2 bits each) to chip.
	WriteChannelGroup(chip int, group [4]byte) error
	// Close releases resources.
	Close() error
}

// RowSelect drives the per-layer row control lines.
type RowSelect interface {
	// Select asserts the line of layer and deasserts all others.
	Select(layer int) error
	// Release deasserts every line.
	Release() error
	Close() error
}
