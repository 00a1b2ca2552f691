package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Status nibbles of channel-voice messages
const (
	NoteOff         uint8 = 0x80
	NoteOn          uint8 = 0x90
	PolyAftertouch  uint8 = 0xA0
	CC              uint8 = 0xB0
	ProgramChange   uint8 = 0xC0
	ChanAftertouch  uint8 = 0xD0
	PitchBend       uint8 = 0xE0
	statusTypeMask  uint8 = 0xF0
	statusChanMask  uint8 = 0x0F
	maxDataByte     uint8 = 0x7F
	numPitches            = 128
	DefaultVelocity uint8 = 100
)

// Event is a timestamped raw message bound for a named port.
// An empty Port means the engine's default output.
type Event struct {
	Time float64
	Msg  []byte
	Port string
}

func (e Event) String() string {
	return fmt.Sprintf("%.3f %s % X", e.Time, e.Port, e.Msg)
}

// Status returns the message type without the channel
func Status(msg []byte) uint8 {
	if len(msg) == 0 {
		return 0
	}
	return msg[0] & statusTypeMask
}

// Channel returns the low nibble of the status byte
func Channel(msg []byte) uint8 {
	if len(msg) == 0 {
		return 0
	}
	return msg[0] & statusChanMask
}

// IsNoteOff reports a Note-Off or a zero-velocity Note-On
func IsNoteOff(msg []byte) bool {
	switch Status(msg) {
	case NoteOff:
		return len(msg) >= 2
	case NoteOn:
		return len(msg) >= 3 && msg[2] == 0
	}
	return false
}

// IsNoteOn reports a Note-On with non-zero velocity
func IsNoteOn(msg []byte) bool {
	return Status(msg) == NoteOn && len(msg) >= 3 && msg[2] > 0
}

func data(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > int(maxDataByte):
		return maxDataByte
	}
	return uint8(v)
}

func channel(ch int) uint8 {
	switch {
	case ch < 0:
		return 0
	case ch > 15:
		return 15
	}
	return uint8(ch)
}

// NoteOnMsg builds a Note-On. Out-of-range values are clamped.
func NoteOnMsg(ch, key, vel int) []byte {
	return []byte(gomidi.NoteOn(channel(ch), data(key), data(vel)))
}

// NoteOffMsg builds a Note-Off with zero release velocity
func NoteOffMsg(ch, key int) []byte {
	return []byte(gomidi.NoteOff(channel(ch), data(key)))
}

// ControlChangeMsg builds a CC message
func ControlChangeMsg(ch, controller, value int) []byte {
	return []byte(gomidi.ControlChange(channel(ch), data(controller), data(value)))
}

// ProgramChangeMsg builds a 2-byte program change
func ProgramChangeMsg(ch, program int) []byte {
	return []byte(gomidi.ProgramChange(channel(ch), data(program)))
}

// AftertouchMsg builds a 2-byte channel aftertouch
func AftertouchMsg(ch, pressure int) []byte {
	return []byte(gomidi.AfterTouch(channel(ch), data(pressure)))
}

// PolyAftertouchMsg builds a polyphonic key pressure message
func PolyAftertouchMsg(ch, key, pressure int) []byte {
	return []byte(gomidi.PolyAfterTouch(channel(ch), data(key), data(pressure)))
}

// PitchBendMsg builds a pitch bend carrying only the MSB; the LSB is zero.
func PitchBendMsg(ch int, msb int) []byte {
	return []byte{PitchBend | channel(ch), 0, data(msb)}
}

// Describe renders a message for logs and the monitor
func Describe(msg []byte) string {
	m := gomidi.Message(msg)
	var ch, key, vel uint8
	switch {
	case m.GetNoteStart(&ch, &key, &vel):
		return fmt.Sprintf("note-on ch=%d key=%d vel=%d", ch, key, vel)
	case m.GetNoteEnd(&ch, &key):
		return fmt.Sprintf("note-off ch=%d key=%d", ch, key)
	}
	return m.String()
}
