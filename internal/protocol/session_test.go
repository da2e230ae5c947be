package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type feedResult struct {
	cmds []Command
	errs []error
}

func feed(s *Session, in []byte) feedResult {
	var r feedResult
	for _, b := range in {
		cmd, ok, err := s.ProcessByte(b)
		if ok {
			r.cmds = append(r.cmds, cmd)
		}
		if err != nil {
			r.errs = append(r.errs, err)
		}
	}
	return r
}

func frameOf(n int, v byte) []byte { return bytes.Repeat([]byte{v}, n) }

func TestTerminatorWithoutCommandIsIgnored(t *testing.T) {
	s := NewSession(func() []byte { return make([]byte, 128) })
	r := feed(s, []byte{EndOfCommand, EndOfCommand})
	assert.Empty(t, r.cmds)
	assert.Empty(t, r.errs)
	assert.Equal(t, Idle, s.State())
}

func TestLoadFrameCollectsIntoBackStorage(t *testing.T) {
	back := make([]byte, DefaultFrameCapacity)
	s := NewSession(func() []byte { return back })

	payload := make([]byte, DefaultFrameCapacity)
	for i := range payload {
		payload[i] = byte(i) & 0x55
	}
	_, _, err := s.ProcessByte(byte(OpLoadFrame))
	require.NoError(t, err)
	assert.Equal(t, CollectingFrame, s.State())

	r := feed(s, append(payload, EndOfCommand))
	require.Len(t, r.cmds, 1)
	assert.Empty(t, r.errs)
	assert.Equal(t, OpLoadFrame, r.cmds[0].Op)
	assert.False(t, r.cmds[0].Truncated)
	assert.Equal(t, payload, back)
	assert.Equal(t, payload, r.cmds[0].Frame)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, OpNone, s.Current())
}

func TestShortFrameOnlyTouchesPrefix(t *testing.T) {
	back := frameOf(DefaultFrameCapacity, 0x11)
	s := NewSession(func() []byte { return back })
	r := feed(s, []byte{byte(OpLoadFrame), 1, 4, EndOfCommand})
	require.Len(t, r.cmds, 1)
	assert.Equal(t, []byte{1, 4}, r.cmds[0].Frame)
	assert.Equal(t, byte(0x11), back[2])
}

func TestFrameOverflowIsTruncatedOnce(t *testing.T) {
	back := make([]byte, DefaultFrameCapacity)
	s := NewSession(func() []byte { return back })

	in := append([]byte{byte(OpLoadFrame)}, frameOf(DefaultFrameCapacity, 0x01)...)
	in = append(in, frameOf(40, 0x04)...)
	r := feed(s, in)
	require.Len(t, r.errs, 1)
	assert.ErrorIs(t, r.errs[0], ErrFrameOverflow)
	assert.True(t, s.Overflowed())

	r = feed(s, []byte{EndOfCommand})
	require.Len(t, r.cmds, 1)
	assert.True(t, r.cmds[0].Truncated)
	assert.Equal(t, frameOf(DefaultFrameCapacity, 0x01), back)
	assert.Equal(t, uint64(1), s.Stats().FrameOverflows)
	assert.False(t, s.Overflowed())
}

func TestArgOverflowIsTruncated(t *testing.T) {
	s := NewSession(func() []byte { return nil })
	in := append([]byte{byte(OpSetControl)}, frameOf(ArgCapacity+5, 0x02)...)
	r := feed(s, append(in, EndOfCommand))
	require.Len(t, r.cmds, 1)
	assert.Len(t, r.cmds[0].Args, ArgCapacity)
	assert.True(t, r.cmds[0].Truncated)
	require.Len(t, r.errs, 1)
	assert.ErrorIs(t, r.errs[0], ErrArgOverflow)
}

func TestUnknownOpcodeStaysIdle(t *testing.T) {
	s := NewSession(func() []byte { return nil })
	r := feed(s, []byte{0x7E, EndOfCommand})
	assert.Empty(t, r.cmds)
	require.Len(t, r.errs, 1)
	assert.ErrorIs(t, r.errs[0], ErrUnknownOpcode)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, uint64(1), s.Stats().UnknownOpcodes)

	// the next byte is read as an opcode again
	feed(s, []byte{byte(OpSetControl)})
	assert.Equal(t, CollectingArgs, s.State())
}

func TestNewOpcodeResetsCursors(t *testing.T) {
	back := make([]byte, DefaultFrameCapacity)
	s := NewSession(func() []byte { return back })
	feed(s, []byte{byte(OpSetControl), 9, 9, EndOfCommand})
	r := feed(s, []byte{byte(OpSetControl), 0, 0x10, 0x00, EndOfCommand})
	require.Len(t, r.cmds, 1)
	assert.Equal(t, []byte{0, 0x10, 0x00}, r.cmds[0].Args)
}

// Overflowing a frame never leaks bytes into the argument scratch.
func TestFrameOverflowDoesNotReachArgs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		back := make([]byte, DefaultFrameCapacity)
		s := NewSession(func() []byte { return back })
		extra := rapid.IntRange(1, 500).Draw(t, "extra")
		payload := rapid.SliceOfN(rapid.ByteRange(0, 0xFE), DefaultFrameCapacity+extra, DefaultFrameCapacity+extra).Draw(t, "payload")

		feed(s, append([]byte{byte(OpLoadFrame)}, payload...))
		feed(s, []byte{EndOfCommand})
		r := feed(s, []byte{byte(OpSetControl), EndOfCommand})
		if len(r.cmds) != 1 || len(r.cmds[0].Args) != 0 {
			t.Fatalf("args polluted: %+v", r.cmds)
		}
		if !bytes.Equal(back, payload[:DefaultFrameCapacity]) {
			t.Fatalf("frame prefix not preserved")
		}
	})
}

func TestDecodeSettingsLittleEndian(t *testing.T) {
	got := DecodeSettings([]byte{2, 0xD2, 0x04, 0, 0xE8, 0x03, 1})
	assert.Equal(t, []Setting{
		{Selector: SelIdleTimeout, Value: 1234},
		{Selector: SelExposure, Value: 1000},
	}, got)
	assert.Empty(t, DecodeSettings([]byte{2, 0x01}))
}

func TestEncodeRoundTripThroughSession(t *testing.T) {
	back := make([]byte, DefaultFrameCapacity)
	s := NewSession(func() []byte { return back })

	frame := frameOf(DefaultFrameCapacity, 0x41)
	lf, err := EncodeLoadFrame(frame, DefaultFrameCapacity)
	require.NoError(t, err)
	sc, err := EncodeSetControl(Setting{SelIdleTimeout, 1234}, Setting{SelIdleEnable, 0})
	require.NoError(t, err)

	r := feed(s, append(lf, sc...))
	require.Len(t, r.cmds, 2)
	assert.Equal(t, frame, back)
	assert.Equal(t, []Setting{{SelIdleTimeout, 1234}, {SelIdleEnable, 0}}, DecodeSettings(r.cmds[1].Args))
}

func TestEncodeRejectsReservedBytes(t *testing.T) {
	_, err := EncodeLoadFrame([]byte{0, EndOfCommand}, DefaultFrameCapacity)
	assert.ErrorIs(t, err, ErrReservedByte)
	_, err = EncodeLoadFrame(make([]byte, DefaultFrameCapacity+1), DefaultFrameCapacity)
	assert.ErrorIs(t, err, ErrFrameTooLong)
	_, err = EncodeSetControl(Setting{SelExposure, 255})
	assert.ErrorIs(t, err, ErrReservedByte)
	_, err = EncodeSetControl(make([]Setting, 22)...)
	assert.ErrorIs(t, err, ErrArgOverflow)
}
