package protocol

import "encoding/binary"

// Setting is one decoded Set Control triple.
type Setting struct {
	Selector Selector
	Value    uint16
}

// DecodeSettings splits Set Control arguments into settings. Values are
// little-endian. A trailing partial triple is ignored.
func DecodeSettings(args []byte) []Setting {
	out := make([]Setting, 0, len(args)/SettingSize)
	for i := 0; i+SettingSize <= len(args); i += SettingSize {
		out = append(out, Setting{
			Selector: Selector(args[i]),
			Value:    binary.LittleEndian.Uint16(args[i+1 : i+3]),
		})
	}
	return out
}
