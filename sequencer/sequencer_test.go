package sequencer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-phrase/config"
	"go-phrase/errs"
	"go-phrase/generator"
	"go-phrase/midi"
	"go-phrase/music"
)

type fakeSink struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
}

func (s *fakeSink) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, append([]byte(nil), msg...))
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) noteOns(ch uint8) []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint8
	for _, m := range s.msgs {
		if midi.IsNoteOn(m) && midi.Channel(m) == ch {
			out = append(out, m[1])
		}
	}
	return out
}

type fakeOpener struct {
	out  *fakeSink
	recv func([]byte)
}

func (o *fakeOpener) OutNames() ([]string, error) { return []string{"Synth"}, nil }
func (o *fakeOpener) InNames() ([]string, error)  { return []string{"Keys"}, nil }
func (o *fakeOpener) OpenOut(string) (midi.Sink, error) {
	return o.out, nil
}
func (o *fakeOpener) OpenIn(_ string, recv func([]byte)) (func(), error) {
	o.recv = recv
	return func() {}, nil
}

// noOutputs has inputs only and counts output scans
type noOutputs struct {
	mu    sync.Mutex
	scans int
}

func (o *noOutputs) OutNames() ([]string, error) {
	o.mu.Lock()
	o.scans++
	o.mu.Unlock()
	return nil, nil
}
func (o *noOutputs) InNames() ([]string, error)         { return nil, nil }
func (o *noOutputs) OpenOut(string) (midi.Sink, error) { return nil, errs.New(errs.PortNotFound, "none") }
func (o *noOutputs) OpenIn(string, func([]byte)) (func(), error) {
	return nil, errs.New(errs.PortNotFound, "none")
}

func newEngine(t *testing.T) (*Engine, *fakeSink, *fakeOpener) {
	t.Helper()
	config.Reset()
	t.Cleanup(config.Reset)
	sink := &fakeSink{}
	op := &fakeOpener{out: sink}
	return NewEngine(midi.NewRegistry(op)), sink, op
}

func seq(pitches ...int) *music.Sequence {
	return music.FromPitches(pitches, 0.125)
}

func noteOnPitches(evs []midi.Event) []int {
	var out []int
	for _, e := range evs {
		if midi.IsNoteOn(e.Msg) {
			out = append(out, int(e.Msg[1]))
		}
	}
	return out
}

func TestTrackPlaysOnceThenIdles(t *testing.T) {
	tr := NewTrack("a", 0)
	require.NoError(t, tr.Enqueue(seq(60, 62)))
	tr.Start()

	evs, err := tr.Update(0)
	require.NoError(t, err)
	assert.Equal(t, []int{60, 62}, noteOnPitches(evs))
	assert.Len(t, evs, 4)
	assert.True(t, tr.Playing())

	evs, err = tr.Update(0.1)
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.True(t, tr.Playing())

	evs, _ = tr.Update(0.15)
	assert.Empty(t, evs)
	assert.False(t, tr.Playing())
}

func TestTrackOvershootShiftsEvents(t *testing.T) {
	tr := NewTrack("a", 0)
	require.NoError(t, tr.Enqueue(seq(60), seq(62)))
	tr.Start()
	tr.Update(0)

	evs, _ := tr.Update(0.135)
	require.NotEmpty(t, evs)
	assert.InDelta(t, -0.01, evs[0].Time, 1e-9)
	assert.Equal(t, []int{62}, noteOnPitches(evs))
}

func TestTrackEmptyQueueStops(t *testing.T) {
	tr := NewTrack("a", 0)
	tr.Start()
	evs, err := tr.Update(0.01)
	require.NoError(t, err)
	assert.Nil(t, evs)
	assert.False(t, tr.Playing())
}

func TestTrackLoopAll(t *testing.T) {
	tr := NewTrack("a", 0)
	require.NoError(t, tr.Enqueue(seq(60), seq(62)))
	tr.SetLoop(true, LoopAll)
	tr.Start()

	var got []int
	got = append(got, mustPitches(t, tr, 0)...)
	for i := 0; i < 3; i++ {
		got = append(got, mustPitches(t, tr, 0.125)...)
	}
	assert.Equal(t, []int{60, 62, 60, 62}, got)
	assert.True(t, tr.Playing())
}

func TestTrackLoopLast(t *testing.T) {
	tr := NewTrack("a", 0)
	require.NoError(t, tr.Enqueue(seq(60), seq(62)))
	tr.SetLoop(true, LoopLast)
	tr.Start()

	var got []int
	got = append(got, mustPitches(t, tr, 0)...)
	for i := 0; i < 3; i++ {
		got = append(got, mustPitches(t, tr, 0.125)...)
	}
	assert.Equal(t, []int{60, 62, 62, 62}, got)
}

func mustPitches(t *testing.T, tr *Track, dt float64) []int {
	t.Helper()
	evs, err := tr.Update(dt)
	require.NoError(t, err)
	return noteOnPitches(evs)
}

func TestTrackMutedAdvances(t *testing.T) {
	tr := NewTrack("a", 0)
	require.NoError(t, tr.Enqueue(seq(60), seq(62)))
	tr.SetMuted(true)
	tr.Start()
	evs, _ := tr.Update(0)
	assert.Empty(t, evs)
	assert.Equal(t, 1, tr.Index())
	assert.Equal(t, []int{60}, tr.Last().Pitches())
}

func TestTrackTextItemsAdvance(t *testing.T) {
	config.Reset()
	tr := NewTrack("a", 0)
	require.NoError(t, tr.Enqueue("<do re> mi"))
	tr.SetLoop(true, LoopAll)
	tr.Start()

	assert.Equal(t, []int{48, 52}, mustPitches(t, tr, 0))
	assert.Equal(t, "<do re>#1 mi", tr.Items()[0].Text)
	assert.Equal(t, []int{50, 52}, mustPitches(t, tr, 0.25))
	assert.Equal(t, "<do re>#0 mi", tr.Items()[0].Text)
}

func TestTrackTextFollowsConfig(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)
	tr := NewTrack("a", 0)
	require.NoError(t, tr.Enqueue("do"))
	tr.SetLoop(true, LoopAll)
	tr.Start()

	assert.Equal(t, []int{48}, mustPitches(t, tr, 0))
	config.Update(func(o *config.Options) {
		o.NoteDur = 0.25
		o.DefaultOctave = 5
	})
	assert.Equal(t, []int{60}, mustPitches(t, tr, 0.125))
	assert.Equal(t, 0.25, tr.Last().Notes[0].Dur)
}

func TestTrackParseErrorIsReturned(t *testing.T) {
	tr := NewTrack("a", 0)
	require.NoError(t, tr.Enqueue("[do"))
	tr.Start()
	_, err := tr.Update(0)
	assert.True(t, errs.Is(err, errs.InvalidGroup))
}

func TestTrackGenerators(t *testing.T) {
	tr := NewTrack("a", 0)
	require.NoError(t, tr.Enqueue(generator.Once(generator.Slice(seq(60))), seq(64)))
	tr.SetLoop(true, LoopAll)
	tr.Start()

	assert.Equal(t, []int{60}, mustPitches(t, tr, 0))
	assert.Equal(t, []int{64}, mustPitches(t, tr, 0.125))
	// exhausted without a factory: skipped
	assert.Equal(t, []int{64}, mustPitches(t, tr, 0.125))

	built := 0
	tr2 := NewTrack("b", 0)
	require.NoError(t, tr2.Enqueue(func() generator.Generator {
		built++
		return generator.Slice(seq(60 + built))
	}))
	tr2.SetLoop(true, LoopAll)
	tr2.Start()
	assert.Equal(t, []int{61}, mustPitches(t, tr2, 0))
	assert.Equal(t, []int{62}, mustPitches(t, tr2, 0.125))
}

func TestTrackTransformPile(t *testing.T) {
	tr := NewTrack("a", 0)
	require.NoError(t, tr.Enqueue(seq(60)))
	tr.SetLoop(true, LoopAll)
	tr.Push(func(s *music.Sequence) (*music.Sequence, error) {
		return s.Transpose(12), nil
	})
	tr.Push(func(s *music.Sequence) (*music.Sequence, error) {
		return nil, errs.New(errs.TransformType, "not for sequences")
	})
	tr.Push(TypeChecked(func(s *music.Sequence) *music.Sequence {
		return s.Transpose(1)
	}))
	tr.SetTranspose(-2)
	tr.Start()

	assert.Equal(t, []int{71}, mustPitches(t, tr, 0))
	tr.Pop()
	assert.Equal(t, 2, tr.Transforms())
	assert.Equal(t, []int{70}, mustPitches(t, tr, 0.125))
}

func TestTrackProgramChange(t *testing.T) {
	tr := NewTrack("a", 3)
	require.NoError(t, tr.Enqueue(seq(60)))
	tr.SetInstrument(12)
	tr.Start()
	evs, _ := tr.Update(0)
	require.NotEmpty(t, evs)
	assert.Equal(t, midi.ProgramChange, midi.Status(evs[0].Msg))
	assert.Equal(t, uint8(3), midi.Channel(evs[0].Msg))
	assert.Less(t, evs[0].Time, 0.0)

	tr.SetProgramChange(false)
	tr.Rewind()
	evs, _ = tr.Update(0)
	assert.NotEqual(t, midi.ProgramChange, midi.Status(evs[0].Msg))
}

func TestAnonymousTrackName(t *testing.T) {
	tr := NewTrack("", 0)
	assert.Regexp(t, `^track-[0-9a-f]{8}$`, tr.Name)
}

func TestSyncChildStartsWithParent(t *testing.T) {
	g := NewTrackGroup()
	parent, child := NewTrack("p", 0), NewTrack("c", 1)
	require.NoError(t, parent.Enqueue(seq(60)))
	require.NoError(t, child.Enqueue(seq(72)))
	require.NoError(t, g.Sync(child, parent))

	parent.Start()
	for _, tr := range g.Priority() {
		tr.Update(0.01)
	}
	assert.True(t, child.Playing())
	assert.Equal(t, []int{72}, child.Last().Pitches())
}

func TestGroupPriority(t *testing.T) {
	g := NewTrackGroup()
	a, b, c, d := NewTrack("a", 0), NewTrack("b", 0), NewTrack("c", 0), NewTrack("d", 0)
	g.Add(a)
	g.Add(b)
	g.Add(c)
	require.NoError(t, g.Sync(c, a))
	require.NoError(t, g.Sync(d, a))

	names := func() []string {
		var out []string
		for _, tr := range g.Priority() {
			out = append(out, tr.Name)
		}
		return out
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, names())

	err := g.Sync(a, d)
	assert.True(t, errs.Is(err, errs.SyncCycle))

	g.Remove("a")
	assert.Equal(t, []string{"d", "c", "b"}, names())
	assert.Nil(t, c.Parent())

	var sorted []string
	for _, tr := range g.Sorted() {
		sorted = append(sorted, tr.Name)
	}
	assert.Equal(t, []string{"b", "c", "d"}, sorted)
}

func TestGroupAddAdoptsChildren(t *testing.T) {
	other := NewTrackGroup()
	p, c := NewTrack("p", 0), NewTrack("c", 0)
	require.NoError(t, other.Sync(c, p))

	g := NewTrackGroup()
	g.Add(p)
	assert.Equal(t, 2, g.Len())

	p.Start()
	c.Start()
	assert.False(t, g.AllStopped())
	g.StopAll()
	assert.True(t, g.AllStopped())
}

func TestGroupStartRoots(t *testing.T) {
	g := NewTrackGroup()
	p, c, empty := NewTrack("p", 0), NewTrack("c", 0), NewTrack("e", 0)
	require.NoError(t, p.Enqueue(seq(60)))
	require.NoError(t, c.Enqueue(seq(62)))
	g.Add(empty)
	require.NoError(t, g.Sync(c, p))

	g.StartRoots()
	assert.True(t, p.Playing())
	assert.False(t, c.Playing())
	assert.False(t, empty.Playing())

	_, err := p.Update(0.01)
	require.NoError(t, err)
	assert.True(t, c.Playing())
}

func TestEngineMetronome(t *testing.T) {
	e, sink, _ := newEngine(t)
	config.Update(func(o *config.Options) { o.Metronome = true })

	require.NoError(t, e.Play(nil, DefaultPlayOptions()))
	for i := 0; i < 199; i++ {
		e.step(0.01)
	}
	e.Stop()
	e.step(0.01)

	ons := sink.noteOns(9)
	assert.Equal(t, []uint8{76, 77, 77, 77}, ons)
	assert.False(t, e.Playing())
}

func TestEngineTempoScaling(t *testing.T) {
	e, _, _ := newEngine(t)
	e.SetBPM(240)
	require.NoError(t, e.Play(nil, DefaultPlayOptions()))
	e.step(0.5)
	assert.InDelta(t, 1.0, e.Time(), 1e-9)
	assert.Equal(t, 240.0, config.Current().BPM)
}

func TestEnginePlayStopPanic(t *testing.T) {
	e, sink, _ := newEngine(t)
	opts := DefaultPlayOptions()
	opts.Channel = 2
	require.NoError(t, e.Play(seq(60, 62), opts))
	assert.True(t, e.Playing())

	e.step(0.01)
	assert.Equal(t, []uint8{60}, sink.noteOns(2))

	e.Stop()
	e.step(0.01)
	assert.False(t, e.Playing())
	assert.False(t, e.DefaultTrack().Playing())

	// the held note is still sounding until its off or a panic
	assert.Equal(t, 1, e.Panic())
	assert.Equal(t, 0, e.Panic())
}

func TestEngineStopKeepsNoteOffs(t *testing.T) {
	e, sink, _ := newEngine(t)
	require.NoError(t, e.Play(seq(60), DefaultPlayOptions()))
	e.step(0.01)
	e.Stop()
	for i := 0; i < 20; i++ {
		e.step(0.01)
	}
	sink.mu.Lock()
	last := sink.msgs[len(sink.msgs)-1]
	sink.mu.Unlock()
	assert.True(t, midi.IsNoteOff(last))
	assert.Equal(t, 0, e.Panic())
}

func TestEngineIsolatesPanickingTrack(t *testing.T) {
	e, sink, _ := newEngine(t)
	bad := NewTrack("bad", 0)
	require.NoError(t, bad.Enqueue(seq(60)))
	bad.Push(func(*music.Sequence) (*music.Sequence, error) { panic("boom") })

	good := NewTrack("good", 1)
	require.NoError(t, good.Enqueue(seq(64)))

	require.NoError(t, e.Play(bad, DefaultPlayOptions()))
	require.NoError(t, e.Play(good, DefaultPlayOptions()))
	e.step(0.01)

	assert.False(t, bad.Playing())
	assert.True(t, e.Playing())
	assert.Equal(t, []uint8{64}, sink.noteOns(1))
}

func TestEngineRecordsInput(t *testing.T) {
	e, _, op := newEngine(t)
	in := e.Registry().In("keys")
	require.NotNil(t, in)
	require.NotNil(t, op.recv)

	require.NoError(t, e.Play(nil, DefaultPlayOptions()))
	e.step(0.01)
	op.recv([]byte{0x90, 60, 100})
	e.step(0.01)

	got := e.Inputs()
	require.Len(t, got, 1)
	assert.InDelta(t, 0.01, got[0].Time, 1e-9)
}

func TestEngineMissingPortIsNotRescanned(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)
	op := &noOutputs{}
	e := NewEngine(midi.NewRegistry(op))
	opts := DefaultPlayOptions()
	opts.Loop = true
	require.NoError(t, e.Play(seq(60, 62, 64, 65), opts))
	for i := 0; i < 100; i++ {
		e.step(0.01)
	}
	assert.True(t, e.Playing())
	op.mu.Lock()
	defer op.mu.Unlock()
	assert.Positive(t, op.scans)
	assert.LessOrEqual(t, op.scans, 2)
}

func TestEngineStartTwice(t *testing.T) {
	e, sink, _ := newEngine(t)
	e.Start(context.Background())
	e.Start(context.Background())
	require.NoError(t, e.Play(seq(60), DefaultPlayOptions()))
	require.NoError(t, e.Shutdown())
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.True(t, sink.closed || len(sink.msgs) == 0)
}
