package music

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go-phrase/mod"
	"go-phrase/theory"
)

const eps = 1e-9

// Timed is a note at an onset
type Timed struct {
	At float64
	Note
}

// TimedRest is a rest at an onset
type TimedRest struct {
	At float64
	Rest
}

// Sequence is a timeline of notes. Notes stay sorted by (onset, pitch) and
// Dur covers every note end, except after an unwrapped, ungrown Shift.
type Sequence struct {
	Notes    []Timed
	Rests    []TimedRest
	Dur      float64
	Head     float64
	Mods     *mod.ModSeq
	Symbolic string
}

// NewSequence returns an empty sequence
func NewSequence() *Sequence {
	return &Sequence{}
}

func (s *Sequence) Duration() float64 { return s.Dur }

// ToSequence returns a copy
func (s *Sequence) ToSequence() *Sequence { return s.Copy() }

// Len returns the number of notes
func (s *Sequence) Len() int { return len(s.Notes) }

// Pitches returns note pitches in onset order
func (s *Sequence) Pitches() []int {
	out := make([]int, len(s.Notes))
	for i, n := range s.Notes {
		out[i] = n.Pitch
	}
	return out
}

// Onsets returns note onsets in order
func (s *Sequence) Onsets() []float64 {
	out := make([]float64, len(s.Notes))
	for i, n := range s.Notes {
		out[i] = n.At
	}
	return out
}

// End returns the latest note end, or 0 for an empty sequence
func (s *Sequence) End() float64 {
	end := 0.0
	for _, n := range s.Notes {
		if e := n.At + n.Dur; e > end {
			end = e
		}
	}
	return end
}

// Copy returns a deep copy
func (s *Sequence) Copy() *Sequence {
	out := &Sequence{
		Notes:    make([]Timed, len(s.Notes)),
		Rests:    append([]TimedRest(nil), s.Rests...),
		Dur:      s.Dur,
		Head:     s.Head,
		Mods:     s.Mods.Copy(),
		Symbolic: s.Symbolic,
	}
	for i, n := range s.Notes {
		out.Notes[i] = Timed{At: n.At, Note: n.Note.Copy()}
	}
	return out
}

func (s *Sequence) sort() {
	sort.SliceStable(s.Notes, func(i, j int) bool {
		a, b := s.Notes[i], s.Notes[j]
		if math.Abs(a.At-b.At) > eps {
			return a.At < b.At
		}
		return a.Pitch < b.Pitch
	})
}

// fit grows Dur to cover the head and every note end
func (s *Sequence) fit() {
	if s.Head > s.Dur {
		s.Dur = s.Head
	}
	if end := s.End(); end > s.Dur {
		s.Dur = end
	}
}

func (s *Sequence) addNote(at float64, n Note) {
	s.Notes = append(s.Notes, Timed{At: at, Note: n})
}

// Add appends v at the head and advances the head by v's duration
func (s *Sequence) Add(v Value) *Sequence {
	s.AddAt(s.Head, v)
	s.Head += v.Duration()
	s.fit()
	return s
}

// AddAt places v at onset t without moving the head
func (s *Sequence) AddAt(t float64, v Value) *Sequence {
	switch x := v.(type) {
	case Note:
		s.addNote(t, x.Copy())
	case *Note:
		s.addNote(t, x.Copy())
	case Rest:
		s.Rests = append(s.Rests, TimedRest{At: t, Rest: x})
	case *Rest:
		s.Rests = append(s.Rests, TimedRest{At: t, Rest: *x})
	case *Chord:
		for _, n := range x.notes {
			s.addNote(t, n.Copy())
		}
	case *Sequence:
		for _, n := range x.Notes {
			s.addNote(t+n.At, n.Note.Copy())
		}
		for _, r := range x.Rests {
			s.Rests = append(s.Rests, TimedRest{At: t + r.At, Rest: r.Rest})
		}
		if x.Mods != nil {
			m := x.Mods.Copy().Shift(t)
			if s.Mods == nil {
				s.Mods = mod.NewModSeq(0)
			}
			s.Mods.Merge(m)
		}
		if end := t + x.Dur; end > s.Dur {
			s.Dur = end
		}
	}
	s.sort()
	s.fit()
	return s
}

// Equal compares notes and duration within float tolerance
func (s *Sequence) Equal(o *Sequence) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.Notes) != len(o.Notes) || !near(s.Dur, o.Dur) {
		return false
	}
	for i, a := range s.Notes {
		b := o.Notes[i]
		if !near(a.At, b.At) || a.Pitch != b.Pitch || !near(a.Dur, b.Dur) ||
			a.Vel != b.Vel || !near(a.Prob, b.Prob) {
			return false
		}
	}
	return true
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6
}

// WithModulation attaches a controller curve spanning the whole sequence
func (s *Sequence) WithModulation(m *mod.Mod, controller int) *Sequence {
	if s.Mods == nil {
		s.Mods = mod.NewModSeq(s.Dur)
	}
	s.Mods.Add(m, controller, 0, s.Dur, 0, 1)
	return s
}

func (s *Sequence) String() string {
	if s.Symbolic != "" {
		return s.Symbolic
	}
	var b strings.Builder
	for i, n := range s.Notes {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.3g:%s", n.At, theory.PitchName(n.Pitch))
	}
	return fmt.Sprintf("[%s] dur=%.3g", b.String(), s.Dur)
}
