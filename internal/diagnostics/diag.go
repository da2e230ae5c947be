package diagnostics

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Codes reported by the device.
const (
	ProtoFrameOverflow   = "PROTO.FRAME_OVERFLOW"
	ProtoArgOverflow     = "PROTO.ARG_OVERFLOW"
	ProtoUnknownOpcode   = "PROTO.UNKNOWN_OPCODE"
	ProtoUnknownSelector = "PROTO.UNKNOWN_SELECTOR"
	ControlSet           = "CONTROL.SET"
	IdleTriggered        = "IDLE.TRIGGERED"
	HardwareWrite        = "HW.WRITE_FAILED"
	BootDone             = "BOOT.DONE"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// Sink receives diagnostics. Implementations must not block.
type Sink func(Diagnostic)

// Discard drops every diagnostic.
func Discard(Diagnostic) {}
