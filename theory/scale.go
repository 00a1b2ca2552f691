package theory

import (
	"sort"
	"sync"

	"go-phrase/errs"
)

// Scale is a set of intervals anchored on a tonic pitch.
// Intervals are sorted and distinct; values above 11 are allowed for scales
// spanning more than one octave and match by pitch class.
type Scale struct {
	Name      string
	Intervals []int
	Tonic     int

	once  sync.Once
	notes []int
}

// NewScale builds a scale from raw intervals
func NewScale(intervals []int, tonic int) (*Scale, error) {
	if len(intervals) == 0 {
		return nil, errs.New(errs.EmptyScale, "scale has no intervals")
	}
	iv := append([]int(nil), intervals...)
	sort.Ints(iv)
	out := iv[:0]
	for i, v := range iv {
		if v < 0 {
			return nil, errs.New(errs.EmptyScale, "negative interval %d", v)
		}
		if i > 0 && v == iv[i-1] {
			continue
		}
		out = append(out, v)
	}
	return &Scale{Intervals: out, Tonic: ClampPitch(tonic)}, nil
}

// ScaleByName looks a scale up in the table
func ScaleByName(name string, tonic int) (*Scale, error) {
	iv, ok := scales[name]
	if !ok {
		return nil, errs.New(errs.EmptyScale, "unknown scale %q", name)
	}
	s, err := NewScale(iv, tonic)
	if err != nil {
		return nil, err
	}
	s.Name = name
	return s, nil
}

// MustScale is ScaleByName for tables known at compile time
func MustScale(name string, tonic int) *Scale {
	s, err := ScaleByName(name, tonic)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Scale) classes() [12]bool {
	var set [12]bool
	for _, iv := range s.Intervals {
		set[iv%12] = true
	}
	return set
}

// Notes returns every in-range pitch belonging to the scale, ascending
func (s *Scale) Notes() []int {
	s.once.Do(func() {
		set := s.classes()
		for p := 0; p <= 127; p++ {
			if set[mod12(p-s.Tonic)] {
				s.notes = append(s.notes, p)
			}
		}
	})
	return s.notes
}

// Contains reports whether p is in the scale
func (s *Scale) Contains(p int) bool {
	set := s.classes()
	return set[mod12(p-s.Tonic)]
}

// Closest returns the nearest in-scale pitch to p, preferring the lower one on ties
func (s *Scale) Closest(p int) int {
	p = ClampPitch(p)
	set := s.classes()
	for d := 0; d <= 12; d++ {
		if lo := p - d; lo >= 0 && set[mod12(lo-s.Tonic)] {
			return lo
		}
		if hi := p + d; hi <= 127 && set[mod12(hi-s.Tonic)] {
			return hi
		}
	}
	return p
}

// Degree returns the n-th degree above the tonic, oct octaves up.
// Negative degrees count down from the tonic.
func (s *Scale) Degree(n, oct int) int {
	l := len(s.Intervals)
	idx := ((n % l) + l) % l
	octs := floorDiv(n, l) + oct
	return ClampPitch(s.Tonic + s.Intervals[idx] + 12*octs)
}

// DegreeFrom moves n scale steps from p, clamped to the range of Notes
func (s *Scale) DegreeFrom(p, n int) int {
	notes := s.Notes()
	if len(notes) == 0 {
		return ClampPitch(p)
	}
	// index of the nearest note at or below p
	idx := sort.SearchInts(notes, p+1) - 1
	if idx < 0 {
		idx = 0
	}
	return notes[clampInt(idx+n, 0, len(notes)-1)]
}

// Triad returns the pitches of the triad built on degree d
func (s *Scale) Triad(d int) []int {
	return []int{s.Degree(d, 0), s.Degree(d+2, 0), s.Degree(d+4, 0)}
}

// Seventh returns the pitches of the seventh chord built on degree d
func (s *Scale) Seventh(d int) []int {
	return append(s.Triad(d), s.Degree(d+6, 0))
}

// Transposed returns the same scale on a new tonic
func (s *Scale) Transposed(tonic int) *Scale {
	return &Scale{Name: s.Name, Intervals: s.Intervals, Tonic: ClampPitch(tonic)}
}

func mod12(v int) int {
	return ((v % 12) + 12) % 12
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
