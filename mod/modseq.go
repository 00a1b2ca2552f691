package mod

import (
	"math"
	"sort"

	"go-phrase/midi"
)

// Special controller ids beyond the CC range
const (
	ControllerAftertouch = 128
	ControllerPitchBend  = 129
)

// Lane is one curve bound to a controller over a window of the sequence
type Lane struct {
	Mod        *Mod
	Controller int
	Start      float64
	Dur        float64
	FnStart    float64
	FnEnd      float64
	Samples    []Sample
}

// ModSeq holds the controller lanes of a sequence
type ModSeq struct {
	Duration float64
	Lanes    []Lane
}

// NewModSeq creates an empty ModSeq
func NewModSeq(duration float64) *ModSeq {
	return &ModSeq{Duration: duration}
}

// Add samples m over [start, start+dur] and binds it to controller
func (s *ModSeq) Add(m *Mod, controller int, start, dur, fnStart, fnEnd float64) *ModSeq {
	s.Lanes = append(s.Lanes, Lane{
		Mod:        m,
		Controller: controller,
		Start:      start,
		Dur:        dur,
		FnStart:    fnStart,
		FnEnd:      fnEnd,
		Samples:    m.Sample(start, dur, fnStart, fnEnd),
	})
	if end := start + dur; end > s.Duration {
		s.Duration = end
	}
	return s
}

// Copy returns a deep copy; curves are shared
func (s *ModSeq) Copy() *ModSeq {
	if s == nil {
		return nil
	}
	out := &ModSeq{Duration: s.Duration, Lanes: make([]Lane, len(s.Lanes))}
	for i, l := range s.Lanes {
		l.Samples = append([]Sample(nil), l.Samples...)
		out.Lanes[i] = l
	}
	return out
}

// Stretch scales every time by factor
func (s *ModSeq) Stretch(factor float64) *ModSeq {
	s.Duration *= factor
	for i := range s.Lanes {
		l := &s.Lanes[i]
		l.Start *= factor
		l.Dur *= factor
		for j := range l.Samples {
			l.Samples[j].Time *= factor
		}
	}
	return s
}

// Shift moves every sample by offset
func (s *ModSeq) Shift(offset float64) *ModSeq {
	for i := range s.Lanes {
		l := &s.Lanes[i]
		l.Start += offset
		for j := range l.Samples {
			l.Samples[j].Time += offset
		}
	}
	return s
}

// Merge overlays other's lanes; the duration is the longer of the two
func (s *ModSeq) Merge(other *ModSeq) *ModSeq {
	if other == nil {
		return s
	}
	c := other.Copy()
	s.Lanes = append(s.Lanes, c.Lanes...)
	if c.Duration > s.Duration {
		s.Duration = c.Duration
	}
	return s
}

// Controllers returns the controller ids in use, ascending
func (s *ModSeq) Controllers() []int {
	seen := map[int]bool{}
	var ids []int
	for _, l := range s.Lanes {
		if !seen[l.Controller] {
			seen[l.Controller] = true
			ids = append(ids, l.Controller)
		}
	}
	sort.Ints(ids)
	return ids
}

// Message converts a single sample to raw bytes for controller on channel.
// Returns nil for unknown controllers.
func Message(channel, controller int, v float64) []byte {
	switch {
	case controller >= 0 && controller <= 127:
		return midi.ControlChangeMsg(channel, controller, seven(v))
	case controller == ControllerAftertouch:
		return midi.AftertouchMsg(channel, seven(v))
	case controller == ControllerPitchBend:
		return midi.PitchBendMsg(channel, bendMSB(v))
	}
	return nil
}

// Messages renders every lane as timestamped events, ordered by time
func (s *ModSeq) Messages(channel int) []midi.Event {
	var out []midi.Event
	for _, l := range s.Lanes {
		for _, smp := range l.Samples {
			if msg := Message(channel, l.Controller, smp.Value); msg != nil {
				out = append(out, midi.Event{Time: smp.Time, Msg: msg})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func seven(v float64) int {
	return int(math.Round(unit(v) * 127))
}

func bendMSB(v float64) int {
	b := int(unit(v) * 16384)
	if b > 16383 {
		b = 16383
	}
	return b >> 7
}
