package music

import (
	"math"
	"sort"

	"go-phrase/theory"
)

// RhythmMode picks how many notes MapRhythm produces
type RhythmMode int

const (
	RhythmCrop RhythmMode = iota // min(melody, rhythm)
	RhythmWrap                   // max(melody, rhythm)
	RhythmLCM                    // melody * rhythm
)

// Stretch scales onsets, durations, the head and the total duration
func (s *Sequence) Stretch(f float64) *Sequence {
	if f <= 0 {
		return s
	}
	for i := range s.Notes {
		s.Notes[i].At *= f
		s.Notes[i].Note = s.Notes[i].Note.Stretched(f)
	}
	for i := range s.Rests {
		s.Rests[i].At *= f
		s.Rests[i].Dur *= f
	}
	s.Head *= f
	s.Dur *= f
	if s.Mods != nil {
		s.Mods.Stretch(f)
	}
	return s
}

func (s *Sequence) Stretched(f float64) *Sequence { return s.Copy().Stretch(f) }

// Transpose adds semitones to every pitch, clamped
func (s *Sequence) Transpose(semitones int) *Sequence {
	for i := range s.Notes {
		s.Notes[i].Note = s.Notes[i].Note.Transposed(semitones)
	}
	s.sort()
	return s
}

func (s *Sequence) Transposed(semitones int) *Sequence { return s.Copy().Transpose(semitones) }

// Gate scales note durations. The total duration only grows if a note
// would overhang it.
func (s *Sequence) Gate(f float64) *Sequence {
	if f <= 0 {
		return s
	}
	for i := range s.Notes {
		s.Notes[i].Note = s.Notes[i].Note.Stretched(f)
	}
	s.fit()
	return s
}

func (s *Sequence) Gated(f float64) *Sequence { return s.Copy().Gate(f) }

// Shift moves every onset by offset. With wrap, onsets re-enter modulo the
// duration; with grow, a positive shift extends the duration.
func (s *Sequence) Shift(offset float64, wrap, grow bool) *Sequence {
	if grow && offset > 0 {
		s.Dur += offset
	}
	move := func(t float64) float64 {
		t += offset
		if wrap && s.Dur > 0 {
			t = math.Mod(t, s.Dur)
			if t < 0 {
				t += s.Dur
			}
			if s.Dur-t < eps {
				t = 0
			}
		}
		return t
	}
	for i := range s.Notes {
		s.Notes[i].At = move(s.Notes[i].At)
	}
	for i := range s.Rests {
		s.Rests[i].At = move(s.Rests[i].At)
	}
	if s.Mods != nil && !wrap {
		s.Mods.Shift(offset)
	}
	s.sort()
	return s
}

func (s *Sequence) Shifted(offset float64, wrap, grow bool) *Sequence {
	return s.Copy().Shift(offset, wrap, grow)
}

// Reverse mirrors every note inside the duration
func (s *Sequence) Reverse() *Sequence {
	for i, n := range s.Notes {
		s.Notes[i].At = s.Dur - n.At - n.Dur
	}
	for i, r := range s.Rests {
		s.Rests[i].At = s.Dur - r.At - r.Dur
	}
	if s.Mods != nil {
		for li := range s.Mods.Lanes {
			smp := s.Mods.Lanes[li].Samples
			for j := range smp {
				smp[j].Time = s.Dur - smp[j].Time
			}
			sort.SliceStable(smp, func(a, b int) bool { return smp[a].Time < smp[b].Time })
		}
	}
	s.sort()
	return s
}

func (s *Sequence) Reversed() *Sequence { return s.Copy().Reverse() }

// Merge overlays other at onset 0
func (s *Sequence) Merge(other *Sequence) *Sequence {
	if other == nil {
		return s
	}
	head := s.Head
	s.AddAt(0, other)
	s.Head = math.Max(head, other.Head)
	s.fit()
	return s
}

func (s *Sequence) Merged(other *Sequence) *Sequence { return s.Copy().Merge(other) }

// interval is a half-open [from, to)
type interval struct{ from, to float64 }

// activeIntervals coalesces the spans where o has sounding notes
func activeIntervals(o *Sequence) []interval {
	spans := make([]interval, 0, len(o.Notes))
	for _, n := range o.Notes {
		if n.Dur > eps {
			spans = append(spans, interval{n.At, n.At + n.Dur})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].from < spans[j].from })

	var out []interval
	for _, sp := range spans {
		if len(out) > 0 && sp.from <= out[len(out)-1].to+eps {
			if sp.to > out[len(out)-1].to {
				out[len(out)-1].to = sp.to
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

// Mask keeps the parts of notes that fall where other is sounding
func (s *Sequence) Mask(other *Sequence) *Sequence {
	ivs := activeIntervals(other)
	var kept []Timed
	for _, n := range s.Notes {
		for _, iv := range ivs {
			from := math.Max(n.At, iv.from)
			to := math.Min(n.At+n.Dur, iv.to)
			if to-from > eps {
				kept = append(kept, crop(n, from, to))
			}
		}
	}
	s.Notes = kept
	s.sort()
	return s
}

func (s *Sequence) Masked(other *Sequence) *Sequence { return s.Copy().Mask(other) }

// MaskNot keeps the parts of notes that fall where other is silent
func (s *Sequence) MaskNot(other *Sequence) *Sequence {
	ivs := activeIntervals(other)
	var kept []Timed
	for _, n := range s.Notes {
		from := n.At
		end := n.At + n.Dur
		for _, iv := range ivs {
			if iv.to <= from || iv.from >= end {
				continue
			}
			if iv.from-from > eps {
				kept = append(kept, crop(n, from, iv.from))
			}
			from = math.Max(from, iv.to)
		}
		if end-from > eps {
			kept = append(kept, crop(n, from, end))
		}
	}
	s.Notes = kept
	s.sort()
	return s
}

func (s *Sequence) MaskedNot(other *Sequence) *Sequence { return s.Copy().MaskNot(other) }

func crop(n Timed, from, to float64) Timed {
	out := Timed{At: from, Note: n.Note.Copy()}
	out.Dur = to - from
	return out
}

// Stutter replaces each note, with probability prob, by n equal parts
func (s *Sequence) Stutter(n int, prob float64) *Sequence {
	if n < 2 {
		return s
	}
	var out []Timed
	for _, t := range s.Notes {
		if !Chance(prob) {
			out = append(out, t)
			continue
		}
		d := t.Dur / float64(n)
		for k := 0; k < n; k++ {
			part := Timed{At: t.At + float64(k)*d, Note: t.Note.Copy()}
			part.Dur = d
			out = append(out, part)
		}
	}
	s.Notes = out
	s.sort()
	return s
}

func (s *Sequence) Stuttered(n int, prob float64) *Sequence { return s.Copy().Stutter(n, prob) }

// Chop splits every note into n equal parts and keeps each part with
// probability prob
func (s *Sequence) Chop(n int, prob float64) *Sequence {
	if n < 1 {
		n = 1
	}
	var out []Timed
	for _, t := range s.Notes {
		d := t.Dur / float64(n)
		for k := 0; k < n; k++ {
			if !Chance(prob) {
				continue
			}
			part := Timed{At: t.At + float64(k)*d, Note: t.Note.Copy()}
			part.Dur = d
			out = append(out, part)
		}
	}
	s.Notes = out
	s.sort()
	return s
}

// Decimate drops each note with probability prob
func (s *Sequence) Decimate(prob float64) *Sequence {
	kept := s.Notes[:0]
	for _, t := range s.Notes {
		if !Chance(prob) {
			kept = append(kept, t)
		}
	}
	s.Notes = kept
	return s
}

func (s *Sequence) Decimated(prob float64) *Sequence { return s.Copy().Decimate(prob) }

// Humanize jitters onsets by up to ±tfactor, lengthens durations by up to
// tfactor (relative) and offsets velocities by a gaussian of stddev veldev.
func (s *Sequence) Humanize(tfactor, veldev float64) *Sequence {
	for i := range s.Notes {
		n := &s.Notes[i]
		n.At += (randFloat()*2 - 1) * tfactor
		if n.At < 0 {
			n.At = 0
		}
		n.Dur *= 1 + randFloat()*tfactor
		n.Vel = theory.ClampVelocity(n.Vel + int(math.Round(randNorm()*veldev)))
	}
	s.sort()
	s.fit()
	return s
}

func (s *Sequence) Humanized(tfactor, veldev float64) *Sequence {
	return s.Copy().Humanize(tfactor, veldev)
}

// Crop drops notes outside [0, Dur) and truncates the ones straddling it
func (s *Sequence) Crop() *Sequence {
	kept := s.Notes[:0]
	for _, n := range s.Notes {
		end := n.At + n.Dur
		if end <= eps || n.At >= s.Dur-eps {
			continue
		}
		from := math.Max(n.At, 0)
		to := math.Min(end, s.Dur)
		kept = append(kept, crop(n, from, to))
	}
	s.Notes = kept
	s.sort()
	return s
}

func (s *Sequence) Cropped() *Sequence { return s.Copy().Crop() }

// StripHead moves the earliest note to onset 0, shortening the duration
func (s *Sequence) StripHead() *Sequence {
	if len(s.Notes) == 0 {
		return s
	}
	off := s.Notes[0].At
	for i := range s.Notes {
		s.Notes[i].At -= off
	}
	for i := range s.Rests {
		s.Rests[i].At -= off
	}
	if s.Mods != nil {
		s.Mods.Shift(-off)
	}
	s.Dur -= off
	s.Head = theory.Clamp(s.Head-off, 0, math.Max(s.Dur, 0))
	s.fit()
	return s
}

// StripTail shrinks the duration to the end of the last note
func (s *Sequence) StripTail() *Sequence {
	s.Dur = s.End()
	if s.Head > s.Dur {
		s.Head = s.Dur
	}
	return s
}

// Strip is StripHead then StripTail
func (s *Sequence) Strip() *Sequence {
	return s.StripHead().StripTail()
}

func (s *Sequence) Stripped() *Sequence { return s.Copy().Strip() }

// MapRhythm pairs the i-th melody pitch with the i-th rhythm slot.
// The rhythm repeats every rhythm.Dur when it runs out of notes.
func (s *Sequence) MapRhythm(rhythm *Sequence, mode RhythmMode) *Sequence {
	m, r := len(s.Notes), len(rhythm.Notes)
	out := NewSequence()
	out.Symbolic = s.Symbolic
	if m == 0 || r == 0 {
		out.Dur = rhythm.Dur
		out.Head = out.Dur
		*s = *out
		return s
	}

	var count int
	switch mode {
	case RhythmWrap:
		count = max(m, r)
	case RhythmLCM:
		count = m * r
	default:
		count = min(m, r)
	}

	for i := 0; i < count; i++ {
		slot := rhythm.Notes[i%r]
		cycle := float64(i / r)
		n := slot.Note.Copy()
		n.Pitch = s.Notes[i%m].Pitch
		out.addNote(slot.At+cycle*rhythm.Dur, n)
	}
	cycles := (count + r - 1) / r
	out.Dur = float64(cycles) * rhythm.Dur
	out.Head = out.Dur
	out.sort()
	out.fit()
	*s = *out
	return s
}

func (s *Sequence) MappedRhythm(rhythm *Sequence, mode RhythmMode) *Sequence {
	return s.Copy().MapRhythm(rhythm, mode)
}

// Echo adds n delayed copies of each note, copy i at i*offset with velocity
// scaled by att^i. The duration grows to fit.
func (s *Sequence) Echo(offset float64, n int, att float64) *Sequence {
	orig := append([]Timed(nil), s.Notes...)
	for i := 1; i <= n; i++ {
		scale := math.Pow(att, float64(i))
		for _, t := range orig {
			c := Timed{At: t.At + float64(i)*offset, Note: t.Note.Copy()}
			c.Vel = theory.ClampVelocity(int(math.Round(float64(t.Vel) * scale)))
			s.Notes = append(s.Notes, c)
		}
	}
	s.sort()
	s.fit()
	return s
}

func (s *Sequence) Echoed(offset float64, n int, att float64) *Sequence {
	return s.Copy().Echo(offset, n, att)
}

// Shuffle permutes pitches across the existing note slots
func (s *Sequence) Shuffle() *Sequence {
	pitches := s.Pitches()
	for i, j := range randPerm(len(pitches)) {
		s.Notes[i].Pitch = pitches[j]
	}
	s.sort()
	return s
}

func (s *Sequence) Shuffled() *Sequence { return s.Copy().Shuffle() }

// Filter keeps the notes for which keep returns true
func (s *Sequence) Filter(keep func(Timed) bool) *Sequence {
	kept := s.Notes[:0]
	for _, n := range s.Notes {
		if keep(n) {
			kept = append(kept, n)
		}
	}
	s.Notes = kept
	return s
}

func (s *Sequence) Filtered(keep func(Timed) bool) *Sequence { return s.Copy().Filter(keep) }

// Snap moves every pitch to the closest note of sc
func (s *Sequence) Snap(sc *theory.Scale) *Sequence {
	for i := range s.Notes {
		s.Notes[i].Pitch = sc.Closest(s.Notes[i].Pitch)
	}
	s.sort()
	return s
}

func (s *Sequence) Snapped(sc *theory.Scale) *Sequence { return s.Copy().Snap(sc) }
