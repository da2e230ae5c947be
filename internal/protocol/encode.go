package protocol

import (
	"encoding/binary"
	"fmt"
)

// EncodeLoadFrame builds opcode, frame bytes and terminator for the host side.
func EncodeLoadFrame(frame []byte, capacity int) ([]byte, error) {
	if len(frame) > capacity {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLong, len(frame), capacity)
	}
	if err := checkReserved(frame); err != nil {
		return nil, fmt.Errorf("load frame: %w", err)
	}
	out := make([]byte, 0, len(frame)+2)
	out = append(out, byte(OpLoadFrame))
	out = append(out, frame...)
	return append(out, EndOfCommand), nil
}

// EncodeSetControl builds a Set Control command carrying every setting.
func EncodeSetControl(settings ...Setting) ([]byte, error) {
	if len(settings)*SettingSize > ArgCapacity {
		return nil, fmt.Errorf("set control: %w", ErrArgOverflow)
	}
	out := make([]byte, 0, len(settings)*SettingSize+2)
	out = append(out, byte(OpSetControl))
	for _, s := range settings {
		out = append(out, byte(s.Selector))
		out = binary.LittleEndian.AppendUint16(out, s.Value)
	}
	if err := checkReserved(out[1:]); err != nil {
		return nil, fmt.Errorf("set control: %w", err)
	}
	return append(out, EndOfCommand), nil
}

func checkReserved(b []byte) error {
	for i, v := range b {
		if v == EndOfCommand {
			return fmt.Errorf("%w at offset %d", ErrReservedByte, i)
		}
	}
	return nil
}
