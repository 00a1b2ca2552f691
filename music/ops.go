package music

import "go-phrase/config"

// The functions below are the operator algebra of the value model:
//
//	a + b     Append
//	v * int   Repeat
//	v * f     Stretched
//	v / f     Divided
//	a & b     Merged
//	s >> x    Shifted / ShiftedSteps (negative for <<)
//	v ^ n     Transposed
//	v % f     Gated
//	-s        Reversed

// Append concatenates values. Rests alone stay a Rest; anything else
// becomes a Sequence.
func Append(vs ...Value) Value {
	allRests := len(vs) > 0
	total := Rest{}
	for _, v := range vs {
		r, ok := asRest(v)
		if !ok {
			allRests = false
			break
		}
		total = total.Add(r)
	}
	if allRests {
		return total
	}
	s := NewSequence()
	for _, v := range vs {
		s.Add(v)
	}
	return s
}

func asRest(v Value) (Rest, bool) {
	switch r := v.(type) {
	case Rest:
		return r, true
	case *Rest:
		return *r, true
	}
	return Rest{}, false
}

// Repeat concatenates n copies of v
func Repeat(v Value, n int) *Sequence {
	s := NewSequence()
	for i := 0; i < n; i++ {
		s.Add(v)
	}
	return s
}

// Stretched scales every duration of v by f
func Stretched(v Value, f float64) Value {
	switch x := v.(type) {
	case Note:
		return x.Stretched(f)
	case Rest:
		return Rest{Dur: x.Dur * f}
	case *Chord:
		return x.Stretched(f)
	case *Sequence:
		return x.Stretched(f)
	}
	return v.ToSequence().Stretch(f)
}

// Divided divides every duration of v by d; zero leaves v unchanged
func Divided(v Value, d float64) Value {
	if d == 0 {
		return v
	}
	return Stretched(v, 1/d)
}

// Gated scales inner note durations, keeping outer durations. On a Note it
// is a stretch; on a Rest it does nothing.
func Gated(v Value, f float64) Value {
	switch x := v.(type) {
	case Note:
		return x.Stretched(f)
	case Rest:
		return x
	case *Chord:
		return x.Gated(f)
	case *Sequence:
		return x.Gated(f)
	}
	return v.ToSequence().Gate(f)
}

// Transposed shifts every pitch of v
func Transposed(v Value, semitones int) Value {
	switch x := v.(type) {
	case Note:
		return x.Transposed(semitones)
	case Rest:
		return x
	case *Chord:
		return x.Transposed(semitones)
	case *Sequence:
		return x.Transposed(semitones)
	}
	return v.ToSequence().Transpose(semitones)
}

// Merged overlays b onto a at onset 0
func Merged(a, b Value) *Sequence {
	return a.ToSequence().Merge(b.ToSequence())
}

// Shifted moves v right by offset seconds (left when negative)
func Shifted(v Value, offset float64) *Sequence {
	return v.ToSequence().Shift(offset, false, false)
}

// ShiftedSteps shifts by a whole number of configured note lengths
func ShiftedSteps(v Value, steps int) *Sequence {
	return Shifted(v, float64(steps)*config.Current().NoteDur)
}

// Reversed mirrors v in time
func Reversed(v Value) *Sequence {
	return v.ToSequence().Reverse()
}
