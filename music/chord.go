package music

import (
	"sort"
	"strings"

	"go-phrase/config"
	"go-phrase/theory"
)

// ArpOrder is the note order of an arpeggio
type ArpOrder int

const (
	ArpUp ArpOrder = iota
	ArpDown
	ArpUpDown
	ArpDownUp
	ArpShuffle
)

var arpOrderNames = map[string]ArpOrder{
	"up": ArpUp, "down": ArpDown, "updown": ArpUpDown, "downup": ArpDownUp, "shuffle": ArpShuffle,
}

// ParseArpOrder reads an order name such as "updown"; unknown names are ArpUp
func ParseArpOrder(name string) (ArpOrder, bool) {
	o, ok := arpOrderNames[strings.ToLower(strings.ReplaceAll(name, "-", ""))]
	return o, ok
}

// Chord is a set of notes sharing an outer duration.
// No two notes share a pitch.
type Chord struct {
	notes []Note // sorted by pitch
	index map[int]int
	Dur   float64
}

// NewChord builds a chord; duplicate pitches keep the longest note
func NewChord(dur float64, notes ...Note) *Chord {
	c := &Chord{Dur: dur, index: make(map[int]int)}
	for _, n := range notes {
		c.Add(n)
	}
	return c
}

// ChordFromPitches builds a chord of equal-length notes
func ChordFromPitches(pitches []int, dur float64) *Chord {
	c := NewChord(dur)
	for _, p := range pitches {
		c.Add(NewNote(p, dur))
	}
	return c
}

// ChordFromString parses a chord token such as "Cm7" or "V"
func ChordFromString(token string, dur float64) (*Chord, error) {
	o := config.Current()
	if dur <= 0 {
		dur = o.NoteDur
	}
	tok, err := theory.ParseToken(strings.TrimSpace(token), PitchContext())
	if err != nil {
		return nil, err
	}
	return ChordFromPitches(tok.Pitches, dur), nil
}

// PitchContext resolves pitch tokens against the current configuration
func PitchContext() theory.PitchContext {
	o := config.Current()
	ctx := theory.PitchContext{DefaultOctave: o.DefaultOctave}
	if o.Scale != nil {
		if sc, err := theory.ScaleByName(o.Scale.Name, o.Scale.Tonic); err == nil {
			ctx.Scale = sc
		}
	}
	return ctx
}

// Add inserts n, keeping the longer note on a pitch collision
func (c *Chord) Add(n Note) *Chord {
	if c.index == nil {
		c.reindex()
	}
	if i, ok := c.index[n.Pitch]; ok {
		if n.Dur > c.notes[i].Dur {
			c.notes[i] = n.Copy()
		}
		return c
	}
	c.notes = append(c.notes, n.Copy())
	sort.SliceStable(c.notes, func(i, j int) bool { return c.notes[i].Pitch < c.notes[j].Pitch })
	c.reindex()
	return c
}

func (c *Chord) reindex() {
	c.index = make(map[int]int, len(c.notes))
	for i, n := range c.notes {
		c.index[n.Pitch] = i
	}
}

// Len returns the number of distinct pitches
func (c *Chord) Len() int { return len(c.notes) }

// Notes returns a copy of the notes, ascending by pitch
func (c *Chord) Notes() []Note {
	out := make([]Note, len(c.notes))
	for i, n := range c.notes {
		out[i] = n.Copy()
	}
	return out
}

// Pitches returns the pitches, ascending
func (c *Chord) Pitches() []int {
	out := make([]int, len(c.notes))
	for i, n := range c.notes {
		out[i] = n.Pitch
	}
	return out
}

func (c *Chord) Duration() float64 { return c.Dur }

// ToSequence places every note at onset 0. The head sits at the outer
// duration.
func (c *Chord) ToSequence() *Sequence {
	return NewSequence().Add(c)
}

// Copy returns a deep copy
func (c *Chord) Copy() *Chord {
	return NewChord(c.Dur, c.notes...)
}

// Gate scales note durations, leaving the outer duration alone
func (c *Chord) Gate(f float64) *Chord {
	for i, n := range c.notes {
		c.notes[i] = n.Stretched(f)
	}
	return c
}

// Gated is the copying form of Gate
func (c *Chord) Gated(f float64) *Chord { return c.Copy().Gate(f) }

// Stretch scales note and outer durations
func (c *Chord) Stretch(f float64) *Chord {
	c.Gate(f)
	c.Dur *= f
	return c
}

// Stretched is the copying form of Stretch
func (c *Chord) Stretched(f float64) *Chord { return c.Copy().Stretch(f) }

// Transpose shifts every pitch; pitches merged by clamping are de-duplicated
func (c *Chord) Transpose(semitones int) *Chord {
	old := c.notes
	c.notes = nil
	c.index = make(map[int]int)
	for _, n := range old {
		c.Add(n.Transposed(semitones))
	}
	return c
}

// Transposed is the copying form of Transpose
func (c *Chord) Transposed(semitones int) *Chord { return c.Copy().Transpose(semitones) }

// Arpeggio spreads the chord in time, one step per outer duration,
// replicated over octaves.
func (c *Chord) Arpeggio(order ArpOrder, octaves int) *Sequence {
	if octaves < 1 {
		octaves = 1
	}
	var ladder []Note
	for o := 0; o < octaves; o++ {
		for _, n := range c.notes {
			ladder = append(ladder, n.Transposed(12*o))
		}
	}

	var picked []Note
	switch order {
	case ArpDown:
		picked = reversedNotes(ladder)
	case ArpUpDown:
		picked = append(picked, ladder...)
		if len(ladder) > 2 {
			down := reversedNotes(ladder)
			picked = append(picked, down[1:len(down)-1]...)
		}
	case ArpDownUp:
		down := reversedNotes(ladder)
		picked = append(picked, down...)
		if len(ladder) > 2 {
			picked = append(picked, ladder[1:len(ladder)-1]...)
		}
	case ArpShuffle:
		for _, i := range randPerm(len(ladder)) {
			picked = append(picked, ladder[i])
		}
	default:
		picked = ladder
	}

	s := NewSequence()
	for _, n := range picked {
		s.addNote(s.Head, n.Copy())
		s.Head += c.Dur
	}
	s.fit()
	return s
}

func reversedNotes(ns []Note) []Note {
	out := make([]Note, len(ns))
	for i, n := range ns {
		out[len(ns)-1-i] = n
	}
	return out
}
