package protocol

import "fmt"

// State is the collection state of a Session.
type State int

const (
	Idle State = iota
	CollectingFrame
	CollectingArgs
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CollectingFrame:
		return "collecting-frame"
	case CollectingArgs:
		return "collecting-args"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Command is a completed command handed to dispatch.
type Command struct {
	Op Opcode
	// Frame is the part of the back buffer written by this command.
	Frame []byte
	// Args is a copy of the collected argument bytes.
	Args []byte
	// Truncated is set when payload bytes were dropped at capacity.
	Truncated bool
}

// Stats counts what the session has seen since start.
type Stats struct {
	Bytes          uint64
	Commands       uint64
	FrameOverflows uint64
	ArgOverflows   uint64
	UnknownOpcodes uint64
}

// Session is the byte-level command state machine. It is driven one byte at
// a time, in arrival order, by a single goroutine.
type Session struct {
	cmd   Opcode
	state State

	// back returns the storage incoming frame bytes land in.
	back  func() []byte
	frame []byte
	fn    int

	args [ArgCapacity]byte
	an   int

	truncated bool
	stats     Stats
}

// NewSession returns an idle session writing frames into the slice back
// returns at the start of each Load Frame.
func NewSession(back func() []byte) *Session {
	return &Session{back: back}
}

func (s *Session) State() State { return s.state }
func (s *Session) Current() Opcode { return s.cmd }
func (s *Session) Stats() Stats { return s.stats }

// Overflowed reports whether the command in progress has dropped bytes.
func (s *Session) Overflowed() bool { return s.truncated }

// Reset drops the command in progress.
func (s *Session) Reset() {
	s.cmd = OpNone
	s.state = Idle
	s.frame = nil
	s.fn, s.an = 0, 0
	s.truncated = false
}

// ProcessByte feeds one byte. When b completes a command, the command is
// returned with ok set. err reports a non-fatal anomaly (unknown opcode, first
// dropped byte of an overflowing payload); the session has already recovered.
func (s *Session) ProcessByte(b byte) (cmd Command, ok bool, err error) {
	s.stats.Bytes++

	if b == EndOfCommand {
		if s.cmd == OpNone {
			return Command{}, false, nil
		}
		cmd = s.command()
		s.stats.Commands++
		s.Reset()
		return cmd, true, nil
	}

	switch s.state {
	case Idle:
		return Command{}, false, s.begin(Opcode(b))
	case CollectingFrame:
		if s.fn < len(s.frame) {
			s.frame[s.fn] = b
			s.fn++
			return Command{}, false, nil
		}
		return Command{}, false, s.overflow(&s.stats.FrameOverflows, ErrFrameOverflow)
	case CollectingArgs:
		if s.an < len(s.args) {
			s.args[s.an] = b
			s.an++
			return Command{}, false, nil
		}
		return Command{}, false, s.overflow(&s.stats.ArgOverflows, ErrArgOverflow)
	default:
		s.Reset()
		return Command{}, false, nil
	}
}

func (s *Session) begin(op Opcode) error {
	s.Reset()
	switch op {
	case OpLoadFrame:
		s.cmd, s.state = op, CollectingFrame
		s.frame = s.back()
	case OpSetControl:
		s.cmd, s.state = op, CollectingArgs
	default:
		s.stats.UnknownOpcodes++
		return fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, byte(op))
	}
	return nil
}

func (s *Session) overflow(counter *uint64, cause error) error {
	if s.truncated {
		return nil
	}
	s.truncated = true
	*counter++
	return cause
}

func (s *Session) command() Command {
	c := Command{Op: s.cmd, Truncated: s.truncated}
	switch s.cmd {
	case OpLoadFrame:
		c.Frame = s.frame[:s.fn]
	case OpSetControl:
		c.Args = append([]byte(nil), s.args[:s.an]...)
	}
	return c
}
