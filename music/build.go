package music

import (
	"strings"

	"go-phrase/config"
	"go-phrase/errs"
	"go-phrase/theory"
)

func noteDur(dur float64) float64 {
	if dur > 0 {
		return dur
	}
	return config.Current().NoteDur
}

// FromPitches lays pitches end to end; dur 0 means the configured note length
func FromPitches(pitches []int, dur float64) *Sequence {
	dur = noteDur(dur)
	s := NewSequence()
	for _, p := range pitches {
		s.Add(NewNote(p, dur))
	}
	return s
}

// FromString lays whitespace separated pitch or chord tokens end to end.
// "." and "-" are rests.
func FromString(text string, dur float64) (*Sequence, error) {
	dur = noteDur(dur)
	ctx := PitchContext()
	s := NewSequence()
	for _, tok := range strings.Fields(text) {
		if tok == "." || tok == "-" {
			s.Add(Rest{Dur: dur})
			continue
		}
		t, err := theory.ParseToken(tok, ctx)
		if err != nil {
			return nil, err
		}
		if t.Chord {
			s.Add(ChordFromPitches(t.Pitches, dur))
		} else {
			s.Add(NewNote(t.Pitches[0], dur))
		}
	}
	return s, nil
}

// FromNotes lays notes end to end
func FromNotes(notes ...Note) *Sequence {
	s := NewSequence()
	for _, n := range notes {
		s.Add(n)
	}
	return s
}

// FromPairs places notes at explicit onsets. The duration is at least dur.
func FromPairs(pairs []Timed, dur float64) *Sequence {
	s := NewSequence()
	for _, p := range pairs {
		s.addNote(p.At, p.Note.Copy())
	}
	s.Dur = dur
	s.sort()
	s.fit()
	s.Head = s.Dur
	return s
}

// Build dispatches on the shape of each argument and appends the results:
// ints are pitches, strings pitch tokens, []int pitch lists and values are
// added as they are.
func Build(args ...any) (*Sequence, error) {
	s := NewSequence()
	for _, a := range args {
		if err := build(s, a); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func build(s *Sequence, a any) error {
	switch x := a.(type) {
	case int:
		s.Add(NewNote(x, noteDur(0)))
	case []int:
		s.Add(FromPitches(x, 0))
	case string:
		sub, err := FromString(x, 0)
		if err != nil {
			return err
		}
		s.Add(sub)
	case []Note:
		s.Add(FromNotes(x...))
	case Value:
		s.Add(x)
	case []any:
		for _, y := range x {
			if err := build(s, y); err != nil {
				return err
			}
		}
	default:
		return errs.New(errs.InvalidPitch, "cannot build a sequence from %T", a)
	}
	return nil
}

// Pattern turns a step string into a rhythm: 'x' is a note, 'X' an accented
// note, '-' and '.' are rests. Other characters are ignored.
func Pattern(text string, pitch int) *Sequence {
	dur := noteDur(0)
	s := NewSequence()
	step := 0
	for _, c := range text {
		at := float64(step) * dur
		switch c {
		case 'x':
			s.addNote(at, NewNote(pitch, dur))
		case 'X':
			s.addNote(at, NewNote(pitch, dur).WithVel(127))
		case '-', '.':
			s.Rests = append(s.Rests, TimedRest{At: at, Rest: Rest{Dur: dur}})
		default:
			continue
		}
		step++
	}
	s.Dur = float64(step) * dur
	s.Head = s.Dur
	s.sort()
	return s
}

// Euclid spreads n hits as evenly as possible over grid steps, rotated
// right by rotate steps.
func Euclid(pitch, n, grid, rotate int) *Sequence {
	if grid <= 0 {
		return NewSequence()
	}
	n = theory.Clamp(n, 0, grid)
	var b strings.Builder
	for i := 0; i < grid; i++ {
		j := ((i-rotate)%grid + grid) % grid
		if (j*n)%grid < n {
			b.WriteByte('x')
		} else {
			b.WriteByte('-')
		}
	}
	return Pattern(b.String(), pitch)
}
