package protocol

import "errors"

// None of these are reported to the host; the session records them and the
// caller may log them.
var (
	ErrFrameOverflow   = errors.New("frame payload exceeds buffer capacity")
	ErrArgOverflow     = errors.New("control payload exceeds argument capacity")
	ErrUnknownOpcode   = errors.New("unrecognized opcode")
	ErrUnknownSelector = errors.New("unrecognized control selector")
	ErrReservedByte    = errors.New("payload contains the end-of-command byte")
	ErrFrameTooLong    = errors.New("frame longer than capacity")
)
