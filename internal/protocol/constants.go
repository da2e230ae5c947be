package protocol

// Opcode identifies a host command.
type Opcode byte

const (
	OpNone       Opcode = 0x00
	OpLoadFrame  Opcode = 0x01
	OpSetControl Opcode = 0x02
)

// EndOfCommand terminates the command in progress and triggers dispatch.
// It is never a valid voxel byte: 0xFF would set every reserved bit.
const EndOfCommand byte = 0xFF

// Selector names a control variable in a Set Control triple.
type Selector byte

const (
	SelExposure    Selector = 0
	SelIdleEnable  Selector = 1
	SelIdleTimeout Selector = 2
)

const (
	// DefaultFrameCapacity is BUFFERSIZE for the 8-cube.
	DefaultFrameCapacity = 128
	ArgCapacity          = 64

	// A Set Control argument is selector, value low byte, value high byte.
	SettingSize = 3
)

// Greeting is the byte the device announces itself with after bring-up.
const Greeting byte = 'A'

func (o Opcode) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpLoadFrame:
		return "load-frame"
	case OpSetControl:
		return "set-control"
	default:
		return "unknown"
	}
}

func (s Selector) String() string {
	switch s {
	case SelExposure:
		return "exposure"
	case SelIdleEnable:
		return "idle-enable"
	case SelIdleTimeout:
		return "idle-timeout"
	default:
		return "unknown"
	}
}
