package midi

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-phrase/errs"
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
	s.closed = true
	return nil
}

type fakeOpener struct {
	outs   []string
	ins    []string
	opened map[string]int
	sinks  map[string]*fakeSink
	recv   map[string]func([]byte)
	scans  int
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		outs:   []string{"IAC Driver Bus 1", "Synth Out"},
		ins:    []string{"Keyboard In"},
		opened: map[string]int{},
		sinks:  map[string]*fakeSink{},
		recv:   map[string]func([]byte){},
	}
}

func (f *fakeOpener) OutNames() ([]string, error) {
	f.scans++
	return f.outs, nil
}
func (f *fakeOpener) InNames() ([]string, error)  { return f.ins, nil }
func (f *fakeOpener) OpenOut(name string) (Sink, error) {
	f.opened[name]++
	s := &fakeSink{}
	f.sinks[name] = s
	return s, nil
}
func (f *fakeOpener) OpenIn(name string, recv func([]byte)) (func(), error) {
	f.recv[name] = recv
	return func() {}, nil
}

func TestQueueNoteOffFirst(t *testing.T) {
	var q Queue
	q.Push(Event{Time: 1, Msg: NoteOnMsg(0, 60, 100)})
	q.Push(Event{Time: 1, Msg: NoteOffMsg(0, 60)})
	q.Push(Event{Time: 0.5, Msg: NoteOnMsg(0, 62, 100)})
	q.Push(Event{Time: 1, Msg: NoteOnMsg(0, 60, 0)})

	e, _ := q.Pop()
	assert.Equal(t, 0.5, e.Time)
	e, _ = q.Pop()
	assert.True(t, IsNoteOff(e.Msg))
	e, _ = q.Pop()
	assert.True(t, IsNoteOff(e.Msg))
	e, _ = q.Pop()
	assert.True(t, IsNoteOn(e.Msg))
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueuePopBefore(t *testing.T) {
	var q Queue
	for _, ts := range []float64{0.3, 0.1, 0.2, 0.5} {
		q.Push(Event{Time: ts, Msg: NoteOnMsg(0, 60, 1)})
	}
	got := q.PopBefore(0.3)
	require.Len(t, got, 2)
	assert.Equal(t, 0.1, got[0].Time)
	assert.Equal(t, 0.2, got[1].Time)
	assert.Equal(t, 2, q.Len())
}

func TestOutPortPushAndProcess(t *testing.T) {
	sink := &fakeSink{}
	p := NewOutPort("test", sink)

	p.Push(0, NoteOnMsg(0, 60, 100))
	require.Len(t, sink.msgs, 1)
	assert.True(t, p.Active(0, 60))

	p.Push(0.25, NoteOffMsg(0, 60))
	assert.Equal(t, 1, p.Pending())

	assert.Equal(t, 0, p.Process(0.1))
	assert.Equal(t, 1, p.Process(0.2))
	assert.False(t, p.Active(0, 60))
	assert.Len(t, sink.msgs, 2)
}

func TestOutPortTranspose(t *testing.T) {
	sink := &fakeSink{}
	p := NewOutPort("test", sink)
	p.SetTranspose(12)
	p.Send(NoteOnMsg(2, 60, 90))
	p.Send(ControlChangeMsg(2, 60, 5))
	p.SetTranspose(100)
	p.Send(NoteOnMsg(2, 60, 90))

	assert.Equal(t, []byte{0x92, 72, 90}, sink.msgs[0])
	assert.Equal(t, []byte{0xB2, 60, 5}, sink.msgs[1])
	assert.Equal(t, []byte{0x92, 127, 90}, sink.msgs[2])
	assert.True(t, p.Active(2, 72))
}

func TestOutPortTransposeChangeReleasesSentKey(t *testing.T) {
	sink := &fakeSink{}
	p := NewOutPort("test", sink)
	p.SetTranspose(5)
	p.Send(NoteOnMsg(1, 60, 90))
	p.SetTranspose(-3)
	p.Send(PolyAftertouchMsg(1, 60, 20))
	p.Send(NoteOffMsg(1, 60))

	assert.Equal(t, byte(65), sink.msgs[1][1])
	assert.Equal(t, byte(65), sink.msgs[2][1])
	assert.False(t, p.Active(1, 65))
	assert.Equal(t, 0, p.ActiveCount())

	p.Send(NoteOnMsg(1, 60, 90))
	assert.True(t, p.Active(1, 57))
	assert.Equal(t, 1, p.AllNotesOff())
	p.Send(NoteOffMsg(1, 60))
	assert.Equal(t, byte(57), sink.msgs[len(sink.msgs)-1][1])
}

func TestOutPortAllNotesOff(t *testing.T) {
	sink := &fakeSink{}
	p := NewOutPort("test", sink)
	p.Send(NoteOnMsg(0, 60, 100))
	p.Send(NoteOnMsg(9, 60, 100))
	p.Send(NoteOnMsg(3, 40, 100))
	p.Send(NoteOffMsg(3, 40))
	assert.Equal(t, 2, p.ActiveCount())

	sink.msgs = nil
	assert.Equal(t, 2, p.AllNotesOff())
	assert.Equal(t, 0, p.ActiveCount())
	require.Len(t, sink.msgs, 2)
	for _, m := range sink.msgs {
		assert.Equal(t, NoteOff, Status(m))
		assert.Equal(t, uint8(60), m[1])
	}
}

func TestOutPortClearKeepsNoteOffs(t *testing.T) {
	sink := &fakeSink{}
	p := NewOutPort("test", sink)
	p.Push(1, NoteOnMsg(0, 60, 100))
	p.Push(2, NoteOffMsg(0, 60))
	p.Clear()
	assert.Equal(t, 1, p.Pending())
}

func TestOutPortCloseFlushes(t *testing.T) {
	sink := &fakeSink{}
	p := NewOutPort("test", sink)
	p.Send(NoteOnMsg(0, 64, 100))
	p.Push(5, NoteOffMsg(0, 64))
	p.Push(5, NoteOnMsg(0, 65, 100))
	require.NoError(t, p.Close())
	assert.True(t, sink.closed)
	assert.Equal(t, 0, p.ActiveCount())
	assert.Equal(t, 0, p.Pending())
}

func TestResolve(t *testing.T) {
	names := []string{"IAC Driver Bus 1", "Synth Out"}
	n, ok := Resolve(names, "synth")
	require.True(t, ok)
	assert.Equal(t, "Synth Out", n)

	n, ok = Resolve(names, "")
	require.True(t, ok)
	assert.Equal(t, "IAC Driver Bus 1", n)

	_, ok = Resolve(names, "nope")
	assert.False(t, ok)
}

func TestRegistryCachesPorts(t *testing.T) {
	op := newFakeOpener()
	r := NewRegistry(op)

	a := r.Out("synth")
	b := r.Out("Synth Out")
	require.NotNil(t, a)
	assert.Same(t, a, b)
	assert.Equal(t, 1, op.opened["Synth Out"])

	assert.Nil(t, r.Out("missing"))

	r.SetDefaultOut("iac")
	d := r.Out("")
	require.NotNil(t, d)
	assert.Equal(t, "IAC Driver Bus 1", d.Name())
	assert.Len(t, r.Outs(), 2)

	require.NoError(t, r.Close())
	assert.True(t, op.sinks["Synth Out"].closed)
}

func TestRegistryRemembersMisses(t *testing.T) {
	op := newFakeOpener()
	r := NewRegistry(op)
	now := time.Unix(100, 0)
	r.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		assert.Nil(t, r.Out("drum machine"))
	}
	assert.Equal(t, 1, op.scans)

	now = now.Add(RetryInterval)
	assert.Nil(t, r.Out("drum machine"))
	assert.Equal(t, 2, op.scans)

	op.outs = append(op.outs, "Drum Machine")
	assert.Nil(t, r.Out("drum machine"))
	assert.Equal(t, 2, op.scans)
	r.Rescan()
	p := r.Out("drum machine")
	require.NotNil(t, p)
	assert.Equal(t, "Drum Machine", p.Name())
	assert.Equal(t, 3, op.scans)
}

func TestRegistryErrorsArePortNotFound(t *testing.T) {
	r := NewRegistry(newFakeOpener())
	_, err := r.openOut("missing")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.PortNotFound))
}

func TestInPortDrainRecordsAndForwards(t *testing.T) {
	op := newFakeOpener()
	r := NewRegistry(op)
	in := r.In("key")
	require.NotNil(t, in)
	out := r.Out("synth")
	in.SetForward(out)

	op.recv["Keyboard In"](NoteOnMsg(0, 60, 80))
	op.recv["Keyboard In"](NoteOffMsg(0, 60))

	got := in.Drain(1.5)
	require.Len(t, got, 2)
	assert.Equal(t, 1.5, got[0].Time)
	assert.Len(t, in.Recorded(), 2)
	assert.Len(t, op.sinks["Synth Out"].msgs, 2)

	assert.Nil(t, in.Drain(2))
	in.ClearRecorded()
	assert.Empty(t, in.Recorded())
}

func TestMessageBuilders(t *testing.T) {
	assert.Equal(t, []byte{0xC1, 5}, ProgramChangeMsg(1, 5))
	assert.Equal(t, []byte{0xD0, 127}, AftertouchMsg(0, 300))
	assert.Equal(t, []byte{0xE0, 0, 64}, PitchBendMsg(0, 64))
	assert.Equal(t, []byte{0xAF, 60, 10}, PolyAftertouchMsg(20, 60, 10))
	assert.True(t, IsNoteOff(NoteOffMsg(0, 1)))
	assert.False(t, IsNoteOn(NoteOnMsg(0, 1, 0)))
}

func drainEvents(w *Watcher) []PortEvent {
	var evs []PortEvent
	for {
		select {
		case ev := <-w.Events():
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func TestWatcherReportsChanges(t *testing.T) {
	op := newFakeOpener()
	w := NewWatcher(op)

	w.scan()
	evs := drainEvents(w)
	require.Len(t, evs, 3)
	assert.Equal(t, PortEvent{Type: PortAdded, Name: "IAC Driver Bus 1"}, evs[0])
	assert.Equal(t, PortEvent{Type: PortAdded, Input: true, Name: "Keyboard In"}, evs[2])

	w.scan()
	assert.Empty(t, drainEvents(w))

	op.outs = []string{"Synth Out", "Drum Machine"}
	w.scan()
	evs = drainEvents(w)
	assert.Equal(t, []PortEvent{
		{Type: PortAdded, Name: "Drum Machine"},
		{Type: PortRemoved, Name: "IAC Driver Bus 1"},
	}, evs)
	assert.Equal(t, []string{"Drum Machine", "Synth Out"}, w.Outputs())
	assert.Equal(t, []string{"Keyboard In"}, w.Inputs())
	assert.Equal(t, "removed", PortRemoved.String())
}
