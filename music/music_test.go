package music

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-phrase/config"
	"go-phrase/midi"
	"go-phrase/mod"
)

func sample(t *testing.T) *Sequence {
	t.Helper()
	config.Reset()
	s, err := FromString("do re mi . fa sol", 0)
	require.NoError(t, err)
	s.Add(ChordFromPitches([]int{60, 64, 67}, 0.25))
	return s
}

func assertWellFormed(t *testing.T, s *Sequence) {
	t.Helper()
	for i, n := range s.Notes {
		assert.GreaterOrEqual(t, n.Pitch, 0)
		assert.LessOrEqual(t, n.Pitch, 127)
		assert.GreaterOrEqual(t, n.Vel, 0)
		assert.LessOrEqual(t, n.Vel, 127)
		if i > 0 {
			assert.LessOrEqual(t, s.Notes[i-1].At, n.At+eps)
		}
		assert.LessOrEqual(t, n.At+n.Dur, s.Dur+1e-6)
	}
}

func TestFromStringScenario(t *testing.T) {
	config.Reset()
	s, err := FromString("do re mi fa", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{48, 50, 52, 53}, s.Pitches())
	assert.InDelta(t, 0.5, s.Dur, 1e-9)
	assert.Equal(t, s.Head, s.Dur)
	for _, n := range s.Notes {
		assert.Equal(t, 1.0/8, n.Dur)
	}
}

func TestBuilderHead(t *testing.T) {
	config.Reset()
	s := NewSequence()
	s.Add(NewNote(60, 0.25)).Add(Rest{Dur: 0.5}).Add(ChordFromPitches([]int{60, 64}, 0.25))
	assert.Equal(t, 1.0, s.Head)
	assert.Equal(t, 1.0, s.Dur)
	assert.Equal(t, []float64{0, 0.75, 0.75}, s.Onsets())
	require.Len(t, s.Rests, 1)
	assert.Equal(t, 0.25, s.Rests[0].At)
}

func TestChordDedup(t *testing.T) {
	c := NewChord(0.5, NewNote(60, 0.25), NewNote(64, 0.25), NewNote(60, 1), NewNote(60, 0.5))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1.0, c.Notes()[0].Dur)

	c.Transpose(100)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []int{127}, c.Pitches())
}

func TestChordGateStretch(t *testing.T) {
	c := ChordFromPitches([]int{50, 57}, 0.125)
	g := c.Gated(4)
	assert.Equal(t, 0.125, g.Dur)
	for _, n := range g.Notes() {
		assert.Equal(t, 0.5, n.Dur)
	}
	st := c.Stretched(2)
	assert.Equal(t, 0.25, st.Dur)
	assert.Equal(t, 0.25, st.Notes()[0].Dur)
	assert.Equal(t, 0.125, c.Notes()[0].Dur)
}

func TestArpeggio(t *testing.T) {
	c := ChordFromPitches([]int{60, 64, 67}, 0.25)
	up := c.Arpeggio(ArpUp, 2)
	assert.Equal(t, []int{60, 64, 67, 72, 76, 79}, up.Pitches())
	assert.Equal(t, 1.5, up.Dur)

	assert.Equal(t, []int{67, 64, 60}, c.Arpeggio(ArpDown, 1).Pitches())
	assert.Equal(t, []int{60, 64, 67, 64}, c.Arpeggio(ArpUpDown, 1).Pitches())
	assert.Equal(t, []int{67, 64, 60, 64}, c.Arpeggio(ArpDownUp, 1).Pitches())
	assert.ElementsMatch(t, []int{60, 64, 67}, c.Arpeggio(ArpShuffle, 1).Pitches())
}

func TestPairedFormsMatch(t *testing.T) {
	Seed(1)
	s := sample(t)
	other := Pattern("x-x-", 60)
	cases := map[string]struct {
		mut  func(*Sequence) *Sequence
		copy func(*Sequence) *Sequence
	}{
		"stretch":   {func(s *Sequence) *Sequence { return s.Stretch(1.5) }, func(s *Sequence) *Sequence { return s.Stretched(1.5) }},
		"transpose": {func(s *Sequence) *Sequence { return s.Transpose(7) }, func(s *Sequence) *Sequence { return s.Transposed(7) }},
		"shift":     {func(s *Sequence) *Sequence { return s.Shift(0.3, true, false) }, func(s *Sequence) *Sequence { return s.Shifted(0.3, true, false) }},
		"reverse":   {func(s *Sequence) *Sequence { return s.Reverse() }, func(s *Sequence) *Sequence { return s.Reversed() }},
		"merge":     {func(s *Sequence) *Sequence { return s.Merge(other) }, func(s *Sequence) *Sequence { return s.Merged(other) }},
		"mask":      {func(s *Sequence) *Sequence { return s.Mask(other) }, func(s *Sequence) *Sequence { return s.Masked(other) }},
		"masknot":   {func(s *Sequence) *Sequence { return s.MaskNot(other) }, func(s *Sequence) *Sequence { return s.MaskedNot(other) }},
		"crop":      {func(s *Sequence) *Sequence { return s.Crop() }, func(s *Sequence) *Sequence { return s.Cropped() }},
		"strip":     {func(s *Sequence) *Sequence { return s.Strip() }, func(s *Sequence) *Sequence { return s.Stripped() }},
		"echo":      {func(s *Sequence) *Sequence { return s.Echo(0.1, 2, 0.5) }, func(s *Sequence) *Sequence { return s.Echoed(0.1, 2, 0.5) }},
		"gate":      {func(s *Sequence) *Sequence { return s.Gate(0.5) }, func(s *Sequence) *Sequence { return s.Gated(0.5) }},
	}
	for name, c := range cases {
		orig := s.Copy()
		a := c.copy(s)
		assert.True(t, s.Equal(orig), "%s mutated its receiver", name)
		b := c.mut(s.Copy())
		assert.True(t, a.Equal(b), name)
		if name != "shift" {
			assertWellFormed(t, a)
		}
	}
}

func TestShiftRoundTrip(t *testing.T) {
	s := sample(t)
	back := s.Shifted(0.3, false, false).Shift(-0.3, false, false)
	assert.True(t, s.Equal(back))

	grown := s.Shifted(0.25, false, true)
	assert.InDelta(t, s.Dur+0.25, grown.Dur, 1e-9)
	assertWellFormed(t, grown)
}

func TestShiftWrap(t *testing.T) {
	config.Reset()
	s := FromPitches([]int{60, 62, 64, 65}, 0.25)
	w := s.Shifted(0.5, true, false)
	assert.Equal(t, []int{64, 65, 60, 62}, w.Pitches())
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, w.Onsets())

	w = s.Shifted(-0.25, true, false)
	assert.Equal(t, []int{62, 64, 65, 60}, w.Pitches())
}

func TestStretchRoundTrip(t *testing.T) {
	s := sample(t)
	assert.True(t, s.Equal(s.Stretched(3).Stretch(1.0/3)))
}

func TestReverseTwice(t *testing.T) {
	s := sample(t)
	r := s.Reversed()
	assertWellFormed(t, r)
	assert.True(t, s.Equal(r.Reverse()))
}

func TestCopyIsDeep(t *testing.T) {
	s := sample(t)
	s.Notes[0].Note = s.Notes[0].Note.WithAftertouch(mod.Scalar(0.5))
	c := s.Copy()
	c.Notes[0].Pitch = 1
	c.Notes[0].Aftertouch[0].Value = 0.9
	c.Rests[0].Dur = 9
	assert.Equal(t, 48, s.Notes[0].Pitch)
	assert.Equal(t, 0.5, s.Notes[0].Aftertouch[0].Value)
	assert.Equal(t, 0.125, s.Rests[0].Dur)
}

func TestMaskScenario(t *testing.T) {
	config.Reset()
	s := Pattern("xxxx----xxxx----", 60)
	n, err := NoteFromString("+do", 0)
	require.NoError(t, err)
	o := Repeat(n, 16)
	m := o.Masked(s)
	assert.Equal(t, 8, m.Len())
	assert.Equal(t, 16, o.Len())
	for _, p := range m.Pitches() {
		assert.Equal(t, 60, p)
	}

	not := o.MaskedNot(s)
	assert.Equal(t, 8, not.Len())
	assert.InDelta(t, 0.5, not.Notes[0].At, 1e-9)
}

func TestMaskCropsStraddlingNotes(t *testing.T) {
	long := FromPairs([]Timed{{At: 0, Note: NewNote(60, 1)}}, 1)
	mask := FromPairs([]Timed{{At: 0.25, Note: NewNote(1, 0.25)}, {At: 0.4, Note: NewNote(1, 0.2)}}, 1)
	m := long.Masked(mask)
	require.Equal(t, 1, m.Len())
	assert.InDelta(t, 0.25, m.Notes[0].At, 1e-9)
	assert.InDelta(t, 0.35, m.Notes[0].Dur, 1e-9)

	n := long.MaskedNot(mask)
	require.Equal(t, 2, n.Len())
	assert.InDelta(t, 0.25, n.Notes[0].Dur, 1e-9)
	assert.InDelta(t, 0.6, n.Notes[1].At, 1e-9)
	assert.InDelta(t, 0.4, n.Notes[1].Dur, 1e-9)
}

func TestEuclidScenario(t *testing.T) {
	config.Reset()
	e := Euclid(36, 4, 16, 0)
	require.Equal(t, 4, e.Len())
	assert.Equal(t, []float64{0, 0.5, 1, 1.5}, e.Onsets())
	assert.Equal(t, 2.0, e.Dur)

	r := Euclid(36, 4, 16, 1)
	assert.Equal(t, 0.125, r.Notes[0].At)
	assert.Equal(t, 5, Euclid(36, 5, 8, 0).Len())
}

func TestStutterDecimate(t *testing.T) {
	config.Reset()
	s := FromPitches([]int{60, 62}, 0.5)
	st := s.Stuttered(4, 1)
	assert.Equal(t, 8, st.Len())
	assert.Equal(t, 0.125, st.Notes[1].At)
	assert.Equal(t, 2, s.Stuttered(4, 0).Len())

	assert.Equal(t, 0, s.Decimated(1).Len())
	assert.Equal(t, 2, s.Decimated(0).Len())
}

func TestChopKeepsPartsIndependently(t *testing.T) {
	config.Reset()
	s := FromPitches([]int{60}, 0.5)
	assert.Equal(t, 4, s.Copy().Chop(4, 1).Len())
	assert.Equal(t, 0, s.Copy().Chop(4, 0).Len())
	assert.Equal(t, 0.5, s.Copy().Chop(4, 0).Dur)

	Seed(11)
	counts := map[int]int{}
	for i := 0; i < 200; i++ {
		c := s.Copy().Chop(4, 0.5)
		for _, n := range c.Notes {
			assert.Equal(t, 0.125, n.Dur)
		}
		counts[c.Len()]++
	}
	assert.Positive(t, counts[2]+counts[3])
}

func TestHumanizeKeepsShape(t *testing.T) {
	Seed(42)
	s := sample(t)
	h := s.Humanized(0.05, 30)
	assert.Equal(t, s.Len(), h.Len())
	assertWellFormed(t, h)
}

func TestCrop(t *testing.T) {
	s := FromPairs([]Timed{
		{At: -0.25, Note: NewNote(60, 0.5)},
		{At: -1, Note: NewNote(61, 0.5)},
		{At: 0.75, Note: NewNote(62, 0.5)},
		{At: 1, Note: NewNote(63, 0.5)},
	}, 1)
	s.Dur = 1
	c := s.Cropped()
	assert.Equal(t, []int{60, 62}, c.Pitches())
	assert.Equal(t, 0.25, c.Notes[0].Dur)
	assert.Equal(t, 0.25, c.Notes[1].Dur)
}

func TestStrip(t *testing.T) {
	s := FromPairs([]Timed{{At: 0.5, Note: NewNote(60, 0.25)}, {At: 1, Note: NewNote(62, 0.25)}}, 2)
	st := s.Stripped()
	assert.Equal(t, []float64{0, 0.5}, st.Onsets())
	assert.Equal(t, 0.75, st.Dur)
	assert.LessOrEqual(t, st.Head, st.Dur)

	tail := s.Copy().StripTail()
	assert.Equal(t, 1.25, tail.Dur)
}

func TestMapRhythm(t *testing.T) {
	config.Reset()
	melody := FromPitches([]int{60, 62, 64}, 0.25)
	rhythm := Pattern("x-xx", 1)

	crop := melody.MappedRhythm(rhythm, RhythmCrop)
	assert.Equal(t, []int{60, 62, 64}, crop.Pitches())
	assert.Equal(t, []float64{0, 0.25, 0.375}, crop.Onsets())
	assert.Equal(t, 0.5, crop.Dur)

	wrap := FromPitches([]int{60, 62, 64, 65}, 0.25).MappedRhythm(rhythm, RhythmWrap)
	assert.Equal(t, 4, wrap.Len())
	assert.Equal(t, 0.5, wrap.Notes[3].At)
	assert.Equal(t, 1.0, wrap.Dur)

	lcm := melody.MappedRhythm(rhythm, RhythmLCM)
	assert.Equal(t, 9, lcm.Len())
	assert.Equal(t, 1.5, lcm.Dur)
	assertWellFormed(t, lcm)
}

func TestEcho(t *testing.T) {
	s := FromNotes(NewNote(60, 0.25).WithVel(100))
	e := s.Echoed(0.25, 2, 0.5)
	require.Equal(t, 3, e.Len())
	assert.Equal(t, []float64{0, 0.25, 0.5}, e.Onsets())
	assert.Equal(t, 50, e.Notes[1].Vel)
	assert.Equal(t, 25, e.Notes[2].Vel)
	assert.Equal(t, 0.75, e.Dur)
}

func TestShuffleKeepsPitches(t *testing.T) {
	Seed(3)
	s := sample(t)
	sh := s.Shuffled()
	assert.ElementsMatch(t, s.Pitches(), sh.Pitches())
	assertWellFormed(t, sh)
}

func TestOperators(t *testing.T) {
	config.Reset()
	a := NewNote(60, 0.125)
	b := NewNote(62, 0.125)

	seq, ok := Append(a, Rest{Dur: 0.125}, b).(*Sequence)
	require.True(t, ok)
	assert.Equal(t, 0.375, seq.Dur)

	r, ok := Append(Rest{Dur: 1}, Rest{Dur: 2}).(Rest)
	require.True(t, ok)
	assert.Equal(t, 3.0, r.Dur)

	assert.Equal(t, 4, Repeat(a, 4).Len())
	assert.Equal(t, 0.25, Stretched(a, 2).Duration())
	assert.Equal(t, 0.0625, Divided(a, 2).Duration())
	assert.Equal(t, 67, Transposed(a, 7).(Note).Pitch)

	m := Merged(FromPitches([]int{60, 62}, 0.25), FromPitches([]int{70}, 1))
	assert.Equal(t, 1.0, m.Dur)
	assert.Equal(t, []int{60, 70, 62}, m.Pitches())

	sh := ShiftedSteps(FromPitches([]int{60}, 0.125), 2)
	assert.Equal(t, 0.25, sh.Notes[0].At)

	rev := Reversed(FromPitches([]int{60, 62}, 0.25))
	assert.Equal(t, []int{62, 60}, rev.Pitches())

	g := Gated(ChordFromPitches([]int{60}, 0.125), 4).(*Chord)
	assert.Equal(t, 0.125, g.Dur)
}

func TestBuild(t *testing.T) {
	config.Reset()
	s, err := Build(60, "re mi", []int{1, 2}, NewNote(70, 0.5), []any{Rest{Dur: 0.25}, 72})
	require.NoError(t, err)
	assert.Equal(t, []int{60, 50, 52, 1, 2, 70, 72}, s.Pitches())

	_, err = Build(3.5)
	assert.Error(t, err)
	_, err = Build("zz")
	assert.Error(t, err)
}

func TestFromStringChordsAndRests(t *testing.T) {
	config.Reset()
	s, err := FromString("C - Am", 0.25)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Len())
	assert.Equal(t, 0.75, s.Dur)
	assert.Len(t, s.Rests, 1)
}

func TestJSONRoundTrip(t *testing.T) {
	config.Reset()
	s := FromNotes(NewNote(60, 0.25), NewNote(62, 0.125).WithProb(0.5).WithVel(90))
	s.Add(Rest{Dur: 0.125})
	s.Symbolic = "do re"

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"notes":[[0,60,2,100],[0.25,62,1,90,0.5]]`)
	assert.Contains(t, string(data), `"symbolic":"do re"`)

	var back Sequence
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, s.Equal(&back))
	assert.Empty(t, back.Symbolic)
	assert.Equal(t, back.Dur, back.Head)
}

func TestEvents(t *testing.T) {
	s := FromNotes(NewNote(60, 0.25), NewNote(62, 0.25))
	s.Notes[0].Note = s.Notes[0].Note.WithAftertouch(mod.Scalar(1))
	s.WithModulation(mod.Scalar(0.5), 74)

	ev := s.Events(2)
	require.Len(t, ev, 6)
	assert.True(t, midi.IsNoteOn(ev[0].Msg))
	// at 0.25 the first note ends before the second starts
	assert.Equal(t, 0.25, ev[3].Time)
	assert.True(t, midi.IsNoteOff(ev[3].Msg))
	assert.True(t, midi.IsNoteOn(ev[4].Msg))

	var poly, cc int
	for _, e := range ev {
		switch midi.Status(e.Msg) {
		case midi.PolyAftertouch:
			poly++
		case midi.CC:
			cc++
			assert.Equal(t, []byte{0xB2, 74, 64}, e.Msg)
		}
	}
	assert.Equal(t, 1, poly)
	assert.Equal(t, 1, cc)

	s.Notes[1].Prob = 0
	assert.Len(t, s.Events(0), 4)
}
