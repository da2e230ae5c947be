package led

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// TLC59116 register map and addresses.
const (
	regMode1   = 0x00
	regMode2   = 0x01
	regPWM0    = 0x02
	regGrpPWM  = 0x12
	regLEDOut0 = 0x14

	autoIncrementAll = 0x80

	// mode1AllCall keeps the oscillator running and answers the all-call address.
	mode1AllCall = 0x01

	// DefaultBaseAddr is the address of chip 0 with A0..A3 tied low.
	DefaultBaseAddr = 0x60
	AllCallAddr     = 0x68
	SoftResetAddr   = 0x6B
)

var softResetSeq = []byte{0xA5, 0x5A}

// TLC59116 drives a set of TLC59116 16-channel constant-current drivers on
// one I2C bus. Chip n answers at base+n. LEDOUT registers take the packed
// 2-bit voxel slots verbatim: 00 off, 01 fully on.
type TLC59116 struct {
	bus   i2c.Bus
	base  uint16
	chips int
}

func NewTLC59116(bus i2c.Bus, base uint16, chips int) (*TLC59116, error) {
	if bus == nil {
		return nil, fmt.Errorf("tlc59116: nil bus")
	}
	if chips <= 0 || chips > 8 {
		return nil, fmt.Errorf("tlc59116: invalid chip count %d", chips)
	}
	if base == 0 {
		base = DefaultBaseAddr
	}
	return &TLC59116{bus: bus, base: base, chips: chips}, nil
}

func (t *TLC59116) ResetAll() error {
	if err := t.bus.Tx(SoftResetAddr, softResetSeq, nil); err != nil {
		return fmt.Errorf("tlc59116 soft reset: %w", err)
	}
	for c := 0; c < t.chips; c++ {
		if err := t.configure(c); err != nil {
			return err
		}
	}
	return nil
}

func (t *TLC59116) configure(chip int) error {
	d := i2c.Dev{Bus: t.bus, Addr: t.base + uint16(chip)}
	// MODE1, MODE2, PWM0..15, GRPPWM in one auto-increment burst from regMode1.
	w := make([]byte, 0, 20)
	w = append(w, autoIncrementAll|regMode1, mode1AllCall, 0x00)
	for i := 0; i < 16; i++ {
		w = append(w, 0xFF)
	}
	w = append(w, 0xFF) // GRPPWM
	if err := d.Tx(w, nil); err != nil {
		return fmt.Errorf("tlc59116 chip %d configure: %w", chip, err)
	}
	return nil
}

func (t *TLC59116) EnableOutputs() error {
	if err := t.bus.Tx(AllCallAddr, []byte{regMode1, mode1AllCall}, nil); err != nil {
		return fmt.Errorf("tlc59116 enable: %w", err)
	}
	return nil
}

func (t *TLC59116) WriteChannelGroup(chip int, group [4]byte) error {
	if chip < 0 || chip >= t.chips {
		return fmt.Errorf("tlc59116: chip %d out of range", chip)
	}
	w := [5]byte{autoIncrementAll | regLEDOut0, group[0], group[1], group[2], group[3]}
	if err := t.bus.Tx(t.base+uint16(chip), w[:], nil); err != nil {
		return fmt.Errorf("tlc59116 chip %d write: %w", chip, err)
	}
	return nil
}

// Close turns every output off. The bus is owned by the caller.
func (t *TLC59116) Close() error {
	var off [4]byte
	for c := 0; c < t.chips; c++ {
		if err := t.WriteChannelGroup(c, off); err != nil {
			return err
		}
	}
	return nil
}
