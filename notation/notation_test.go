package notation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-phrase/errs"
	"go-phrase/music"
)

func parser() *Parser {
	return New(Options{NoteDur: 1.0 / 8, DefaultOctave: 4, Rand: rand.New(rand.NewSource(1))})
}

func seq(t *testing.T, v music.Value) *music.Sequence {
	t.Helper()
	require.NotNil(t, v)
	return v.ToSequence()
}

func TestAppendScenario(t *testing.T) {
	v, rw, err := parser().Parse("do re mi fa")
	require.NoError(t, err)
	s, ok := v.(*music.Sequence)
	require.True(t, ok)
	assert.Equal(t, []int{48, 50, 52, 53}, s.Pitches())
	assert.InDelta(t, 0.5, s.Dur, 1e-9)
	assert.Equal(t, s.Head, s.Dur)
	for _, n := range s.Notes {
		assert.Equal(t, 1.0/8, n.Dur)
	}
	assert.Equal(t, "do re mi fa", rw)
}

func TestSyncScenario(t *testing.T) {
	v, _, err := parser().Parse("[do mi sol]")
	require.NoError(t, err)
	s := seq(t, v)
	assert.ElementsMatch(t, []int{48, 52, 55}, s.Pitches())
	for _, n := range s.Notes {
		assert.Equal(t, 0.0, n.At)
	}
	assert.Equal(t, 1.0/8, s.Dur)
}

func TestSequentialScenario(t *testing.T) {
	p := parser()
	text := "<a b c>"
	var got []int
	for i := 0; i < 4; i++ {
		v, rw, err := p.Parse(text)
		require.NoError(t, err)
		n, ok := v.(music.Note)
		require.True(t, ok)
		got = append(got, n.Pitch)
		text = rw
	}
	assert.Equal(t, []int{45, 47, 48, 45}, got)
	assert.Equal(t, "<a b c>#1", text)
}

func TestModifierScenario(t *testing.T) {
	v, rw, err := parser().Parse("[do sol]^2%4")
	require.NoError(t, err)
	ch, ok := v.(*music.Chord)
	require.True(t, ok)
	assert.Equal(t, []int{50, 57}, ch.Pitches())
	assert.Equal(t, 0.125, ch.Dur)
	for _, n := range ch.Notes() {
		assert.Equal(t, 0.5, n.Dur)
	}
	assert.Equal(t, "[do sol]^2%4", rw)
}

func TestWhitespaceStability(t *testing.T) {
	a, rwa, err := parser().Parse("do re [mi sol] (fa la)")
	require.NoError(t, err)
	b, rwb, err := parser().Parse("   do  re\t[mi   sol]  (fa la)  ")
	require.NoError(t, err)
	assert.True(t, seq(t, a).Equal(seq(t, b)))
	assert.Equal(t, rwa, rwb)
}

func TestRewrittenRoundTrip(t *testing.T) {
	p := parser()
	v1, rw1, err := p.Parse("(do <re mi>) [fa sol]")
	require.NoError(t, err)
	assert.Equal(t, "(do <re mi>#1) [fa sol]", rw1)

	v2, rw2, err := p.Parse(rw1)
	require.NoError(t, err)
	assert.Equal(t, "(do <re mi>#0) [fa sol]", rw2)

	s1, s2 := seq(t, v1), seq(t, v2)
	assert.Equal(t, []int{48, 50, 53, 55}, s1.Pitches())
	assert.Equal(t, []int{48, 52, 53, 55}, s2.Pitches())
	assert.Equal(t, s1.Onsets(), s2.Onsets())
}

func TestNestedSequential(t *testing.T) {
	p := parser()
	text := "<do <re mi>>"
	var got []int
	for i := 0; i < 4; i++ {
		v, rw, err := p.Parse(text)
		require.NoError(t, err)
		got = append(got, v.(music.Note).Pitch)
		text = rw
	}
	assert.Equal(t, []int{48, 50, 48, 52}, got)
}

func TestTuplet(t *testing.T) {
	v, rw, err := parser().Parse("do_re_mi fa")
	require.NoError(t, err)
	s := seq(t, v)
	require.Equal(t, 4, s.Len())
	assert.InDelta(t, 1.0/24, s.Notes[0].Dur, 1e-9)
	assert.InDelta(t, 1.0/24, s.Notes[1].At, 1e-9)
	assert.InDelta(t, 0.125, s.Notes[3].At, 1e-9)
	assert.InDelta(t, 0.25, s.Dur, 1e-9)
	assert.Equal(t, "do_re_mi fa", rw)
}

func TestSplitElements(t *testing.T) {
	got, err := SplitElements("[a b][c d]  e_[f g] <h i>#2*2")
	require.NoError(t, err)
	assert.Equal(t, []string{"[a b]", "[c d]", "e_[f g]", "<h i>#2*2"}, got)

	_, err = SplitElements("[a (b]")
	assert.True(t, errs.Is(err, errs.InvalidGroup))
}

func TestGroupErrors(t *testing.T) {
	for _, in := range []string{"[do mi", "do]", "[]", "< >", "(do [re)]"} {
		_, _, err := parser().Parse(in)
		require.Error(t, err, in)
		assert.True(t, errs.Is(err, errs.InvalidGroup), in)
		assert.NotContains(t, err.Error(), "<ftag>", in)
	}
	_, _, err := parser().Parse("do zz")
	assert.True(t, errs.Is(err, errs.InvalidPitch))
	assert.Contains(t, err.Error(), "zz")
}

func TestWeighted(t *testing.T) {
	p := parser()
	for i := 0; i < 10; i++ {
		v, rw, err := p.Parse("{do:0 re:1}")
		require.NoError(t, err)
		assert.Equal(t, 50, v.(music.Note).Pitch)
		assert.Equal(t, "{do:0 re:1}", rw)
	}

	seen := map[int]bool{}
	for i := 0; i < 50; i++ {
		v, _, err := p.Parse("{do re}")
		require.NoError(t, err)
		seen[v.(music.Note).Pitch] = true
	}
	assert.Len(t, seen, 2)
}

func TestModifiers(t *testing.T) {
	p := parser()

	v, _, err := p.Parse("dox3")
	require.NoError(t, err)
	assert.Equal(t, 3, seq(t, v).Len())

	v, _, _ = p.Parse("do*2")
	assert.Equal(t, 0.25, v.Duration())

	v, _, _ = p.Parse("do*1/2")
	assert.Equal(t, 0.0625, v.Duration())

	v, _, _ = p.Parse("(do re)%0.5")
	assert.Equal(t, 0.25, v.Duration())
	assert.Equal(t, 0.0625, seq(t, v).Notes[0].Dur)

	v, _, _ = p.Parse("do^-12")
	assert.Equal(t, 36, v.(music.Note).Pitch)

	v, _, _ = p.Parse("C/")
	assert.Equal(t, []int{48, 52, 55}, seq(t, v).Pitches())

	v, _, _ = p.Parse("C\\2")
	assert.Equal(t, []int{67, 64, 60, 55, 52, 48}, seq(t, v).Pitches())

	v, _, _ = p.Parse("do/")
	assert.Equal(t, 48, v.(music.Note).Pitch)

	v, _, _ = p.Parse("do?0")
	assert.Equal(t, music.Rest{}, v)

	v, _, _ = p.Parse("do?1")
	assert.Equal(t, 48, v.(music.Note).Pitch)

	v, _, _ = p.Parse("dos4")
	s := seq(t, v)
	assert.Equal(t, 4, s.Len())
	assert.InDelta(t, 1.0/32, s.Notes[0].Dur, 1e-9)

	v, _, _ = p.Parse("dos4,0")
	assert.Equal(t, 0, seq(t, v).Len())

	v, _, _ = p.Parse("(do re mi fa)r")
	assert.ElementsMatch(t, []int{48, 50, 52, 53}, seq(t, v).Pitches())

	v, _, err = p.Parse("do!x2")
	require.NoError(t, err)
	assert.Equal(t, 2, seq(t, v).Len())
}

func TestRests(t *testing.T) {
	v, _, err := parser().Parse("do . - re")
	require.NoError(t, err)
	s := seq(t, v)
	assert.Equal(t, []float64{0, 0.375}, s.Onsets())
	assert.Len(t, s.Rests, 2)

	v, _, err = parser().Parse("-do")
	require.NoError(t, err)
	assert.Equal(t, 36, v.(music.Note).Pitch)

	v, _, err = parser().Parse(".x4")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v.Duration())
}

func TestSyncWithSequences(t *testing.T) {
	v, _, err := parser().Parse("[(do re) mi]")
	require.NoError(t, err)
	s, ok := v.(*music.Sequence)
	require.True(t, ok)
	assert.Equal(t, []int{48, 52, 50}, s.Pitches())
	assert.Equal(t, 0.25, s.Dur)
}

func TestParseSequenceKeepsSource(t *testing.T) {
	s, rw, err := parser().ParseSequence(" <do re>  mi ")
	require.NoError(t, err)
	assert.Equal(t, "<do re> mi", s.Symbolic)
	assert.Equal(t, "<do re>#1 mi", rw)
	assert.Equal(t, 2, s.Len())
}

func TestEmpty(t *testing.T) {
	v, rw, err := parser().Parse("   ")
	require.NoError(t, err)
	assert.Equal(t, 0, seq(t, v).Len())
	assert.Empty(t, rw)
}

func TestStutterPartsSurviveIndependently(t *testing.T) {
	music.Seed(5)
	p := parser()
	counts := map[int]int{}
	for i := 0; i < 200; i++ {
		v, _, err := p.Parse("dos4,0.5")
		require.NoError(t, err)
		counts[seq(t, v).Len()]++
	}
	assert.Positive(t, counts[2]+counts[3])
}
