package music

import (
	"sort"

	"go-phrase/midi"
)

// Events renders the sequence on a MIDI channel. Each note plays with its
// own probability; poly aftertouch and modulation lanes are included.
// Events are ordered by time with Note-Offs first at equal times.
func (s *Sequence) Events(channel int) []midi.Event {
	var out []midi.Event
	for _, n := range s.Notes {
		if n.Dur <= 0 || n.Vel <= 0 || !Chance(n.Prob) {
			continue
		}
		out = append(out, midi.Event{Time: n.At, Msg: midi.NoteOnMsg(channel, n.Pitch, n.Vel)})
		for _, at := range n.Aftertouch {
			if at.Time > n.Dur {
				break
			}
			out = append(out, midi.Event{
				Time: n.At + at.Time,
				Msg:  midi.PolyAftertouchMsg(channel, n.Pitch, int(at.Value*127+0.5)),
			})
		}
		out = append(out, midi.Event{Time: n.At + n.Dur, Msg: midi.NoteOffMsg(channel, n.Pitch)})
	}
	if s.Mods != nil {
		out = append(out, s.Mods.Messages(channel)...)
	}
	SortEvents(out)
	return out
}

// SortEvents orders events by time, Note-Offs first at equal times
func SortEvents(ev []midi.Event) {
	sort.SliceStable(ev, func(i, j int) bool {
		if ev[i].Time != ev[j].Time {
			return ev[i].Time < ev[j].Time
		}
		return midi.IsNoteOff(ev[i].Msg) && !midi.IsNoteOff(ev[j].Msg)
	})
}
