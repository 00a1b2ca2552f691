// Package music is the value model: notes, rests, chords and sequences,
// with their transformations.
package music

import (
	"fmt"

	"go-phrase/config"
	"go-phrase/mod"
	"go-phrase/theory"
)

// Value is anything that can be placed in a Sequence
type Value interface {
	Duration() float64
	ToSequence() *Sequence
}

// Note is a pitched event. Durations are in sequence seconds.
type Note struct {
	Pitch int
	Dur   float64
	Vel   int
	Prob  float64

	// Poly aftertouch, pre-sampled; times are offsets from the note onset
	Aftertouch []mod.Sample
}

// NewNote creates a note with default velocity and probability
func NewNote(pitch int, dur float64) Note {
	return Note{Pitch: theory.ClampPitch(pitch), Dur: dur, Vel: 100, Prob: 1}
}

// NoteFromString parses a pitch token; dur 0 means the configured note length
func NoteFromString(token string, dur float64) (Note, error) {
	o := config.Current()
	p, err := theory.ParsePitch(token, o.DefaultOctave)
	if err != nil {
		return Note{}, err
	}
	if dur <= 0 {
		dur = o.NoteDur
	}
	return NewNote(p, dur), nil
}

func (n Note) Duration() float64 { return n.Dur }

func (n Note) ToSequence() *Sequence {
	return NewSequence().Add(n)
}

func (n Note) String() string {
	return fmt.Sprintf("%s:%.3g", theory.PitchName(n.Pitch), n.Dur)
}

// Copy returns n with its own aftertouch slice
func (n Note) Copy() Note {
	if n.Aftertouch != nil {
		n.Aftertouch = append([]mod.Sample(nil), n.Aftertouch...)
	}
	return n
}

// WithVel returns n with velocity v (clamped)
func (n Note) WithVel(v int) Note {
	n.Vel = theory.ClampVelocity(v)
	return n
}

// WithProb returns n with play probability p (clamped to [0,1])
func (n Note) WithProb(p float64) Note {
	n.Prob = theory.Clamp(p, 0, 1)
	return n
}

// WithAftertouch samples m over the note's length
func (n Note) WithAftertouch(m *mod.Mod) Note {
	n.Aftertouch = m.Sample(0, n.Dur, 0, 1)
	return n
}

// Stretched scales the duration and aftertouch times
func (n Note) Stretched(f float64) Note {
	n = n.Copy()
	n.Dur *= f
	for i := range n.Aftertouch {
		n.Aftertouch[i].Time *= f
	}
	return n
}

// Transposed adds semitones, clamped to the MIDI range
func (n Note) Transposed(semitones int) Note {
	n.Pitch = theory.ClampPitch(n.Pitch + semitones)
	return n
}

// Rest is silence of a given length
type Rest struct {
	Dur float64
}

func (r Rest) Duration() float64 { return r.Dur }

func (r Rest) ToSequence() *Sequence {
	return NewSequence().Add(r)
}

// Add merges two rests
func (r Rest) Add(o Rest) Rest {
	return Rest{Dur: r.Dur + o.Dur}
}

func (r Rest) String() string {
	return fmt.Sprintf("rest:%.3g", r.Dur)
}
