package sequencer

import (
	"go-phrase/config"
	"go-phrase/midi"
)

const (
	metronomeBeat   = 0.5 // a quarter note at 120 bpm
	metronomeLength = 0.05
)

// metronome schedules click pairs on the engine clock
type metronome struct {
	next  float64
	count int
}

func (m *metronome) reset(at float64) {
	m.next = at
	m.count = 0
}

// tick returns the clicks due up to now. The first beat of every
// MetronomeDiv beats uses the downbeat note.
func (m *metronome) tick(now float64, o config.Options) []midi.Event {
	div := o.MetronomeDiv
	if div < 1 {
		div = 1
	}
	var out []midi.Event
	for m.next <= now+1e-9 {
		note := o.MetronomeNotes[1]
		if m.count%div == 0 {
			note = o.MetronomeNotes[0]
		}
		ch := int(o.MetronomeChannel)
		out = append(out,
			midi.Event{Time: m.next, Msg: midi.NoteOnMsg(ch, int(note), int(midi.DefaultVelocity))},
			midi.Event{Time: m.next + metronomeLength, Msg: midi.NoteOffMsg(ch, int(note))},
		)
		m.count++
		m.next += metronomeBeat
	}
	return out
}
