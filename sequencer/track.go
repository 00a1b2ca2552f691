package sequencer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"go-phrase/errs"
	"go-phrase/generator"
	"go-phrase/midi"
	"go-phrase/music"
	"go-phrase/notation"
)

// LoopType selects what a looping track replays at the end of its queue
type LoopType int

const (
	LoopAll  LoopType = iota // restart from the first item
	LoopLast                 // keep replaying the last item
)

func (l LoopType) String() string {
	if l == LoopLast {
		return "last"
	}
	return "all"
}

// ParseLoopType reads "all" or "last"; anything else is LoopAll
func ParseLoopType(s string) LoopType {
	if s == "last" {
		return LoopLast
	}
	return LoopAll
}

// Transform rewrites a sequence before it is played. Returning an error
// tagged errs.TransformType skips the transform for that sequence.
type Transform func(*music.Sequence) (*music.Sequence, error)

// Item is one queued entry: a sequence, pattern text or a generator
type Item struct {
	Seq  *music.Sequence
	Text string
	Gen  *generator.Handle
}

// ItemOf wraps a value as a queue item. Strings are parsed lazily.
func ItemOf(v any) (Item, error) {
	switch x := v.(type) {
	case Item:
		return x, nil
	case string:
		return Item{Text: x}, nil
	case *generator.Handle:
		return Item{Gen: x}, nil
	case generator.Factory:
		return Item{Gen: generator.NewHandle(x)}, nil
	case func() generator.Generator:
		return Item{Gen: generator.NewHandle(x)}, nil
	case generator.Generator:
		return Item{Gen: generator.Once(x)}, nil
	case *music.Sequence:
		return Item{Seq: x}, nil
	case music.Value:
		return Item{Seq: x.ToSequence()}, nil
	}
	return Item{}, errs.New(errs.TransformType, "cannot queue %T", v)
}

func (it Item) String() string {
	switch {
	case it.Gen != nil:
		return "<generator>"
	case it.Seq != nil:
		if it.Seq.Symbolic != "" {
			return it.Seq.Symbolic
		}
		return fmt.Sprintf("<%d notes>", it.Seq.Len())
	}
	return it.Text
}

// maxFiresPerUpdate bounds how many items one update may emit, so queues
// of zero-length sequences cannot spin the engine.
const maxFiresPerUpdate = 16

// Track plays a queue of items on one channel
type Track struct {
	Name string

	mu            sync.Mutex
	items         []Item
	index         int
	timer         float64
	pile          []Transform
	loop          bool
	loopType      LoopType
	channel       int
	instrument    int // -1 for none
	programChange bool
	transpose     int
	port          string
	playing       bool
	muted         bool
	last          *music.Sequence

	parent   *Track
	children []*Track

	parser *notation.Parser
}

// NewTrack creates an idle track. An empty name gets a generated one.
func NewTrack(name string, channel int) *Track {
	if name == "" {
		name = "track-" + uuid.NewString()[:8]
	}
	return &Track{
		Name:          name,
		channel:       clampChannel(channel),
		instrument:    -1,
		programChange: true,
	}
}

func clampChannel(ch int) int {
	if ch < 0 {
		return 0
	}
	if ch > 15 {
		return 15
	}
	return ch
}

// SetParser sets the parser used for text items (nil uses the current config)
func (t *Track) SetParser(p *notation.Parser) {
	t.mu.Lock()
	t.parser = p
	t.mu.Unlock()
}

// Enqueue appends items. Strings, sequences, values and generators are accepted.
func (t *Track) Enqueue(vs ...any) error {
	items := make([]Item, 0, len(vs))
	for _, v := range vs {
		it, err := ItemOf(v)
		if err != nil {
			return err
		}
		items = append(items, it)
	}
	t.mu.Lock()
	t.items = append(t.items, items...)
	t.mu.Unlock()
	return nil
}

// Clear empties the queue and rewinds
func (t *Track) Clear() {
	t.mu.Lock()
	t.items = nil
	t.index = 0
	t.timer = 0
	t.last = nil
	t.mu.Unlock()
}

// Items returns the queue; text items show their rewritten form
func (t *Track) Items() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Item(nil), t.items...)
}

// Index returns the next item to play
func (t *Track) Index() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index
}

// Last returns the most recently played sequence, nil before the first one
func (t *Track) Last() *music.Sequence {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Push adds a transform to the pile; transforms run in push order
func (t *Track) Push(tf Transform) {
	t.mu.Lock()
	t.pile = append(t.pile, tf)
	t.mu.Unlock()
}

// Pop removes the most recent transform
func (t *Track) Pop() {
	t.mu.Lock()
	if n := len(t.pile); n > 0 {
		t.pile = t.pile[:n-1]
	}
	t.mu.Unlock()
}

// Transforms returns the pile size
func (t *Track) Transforms() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pile)
}

func (t *Track) SetLoop(loop bool, lt LoopType) {
	t.mu.Lock()
	t.loop, t.loopType = loop, lt
	t.mu.Unlock()
}

func (t *Track) Loop() (bool, LoopType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loop, t.loopType
}

func (t *Track) SetChannel(ch int) {
	t.mu.Lock()
	t.channel = clampChannel(ch)
	t.mu.Unlock()
}

func (t *Track) Channel() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channel
}

// SetInstrument sets the program sent before each sequence; -1 disables
func (t *Track) SetInstrument(program int) {
	if program > 127 {
		program = 127
	}
	if program < -1 {
		program = -1
	}
	t.mu.Lock()
	t.instrument = program
	t.mu.Unlock()
}

func (t *Track) Instrument() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.instrument
}

// SetProgramChange enables or disables program changes for this track
func (t *Track) SetProgramChange(on bool) {
	t.mu.Lock()
	t.programChange = on
	t.mu.Unlock()
}

func (t *Track) SetTranspose(n int) {
	t.mu.Lock()
	t.transpose = n
	t.mu.Unlock()
}

func (t *Track) Transpose() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transpose
}

// SetPort routes the track to a named output; empty means the default
func (t *Track) SetPort(name string) {
	t.mu.Lock()
	t.port = name
	t.mu.Unlock()
}

func (t *Track) Port() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port
}

// SetMuted silences the track without stopping it
func (t *Track) SetMuted(m bool) {
	t.mu.Lock()
	t.muted = m
	t.mu.Unlock()
}

func (t *Track) Muted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

// Start makes the track play from its current index on the next update
func (t *Track) Start() {
	t.mu.Lock()
	t.playing = true
	t.timer = 0
	t.mu.Unlock()
}

// startIfIdle starts a sync child. timer is chosen so the child's update
// later in the same tick lands on the parent's onset.
func (t *Track) startIfIdle(timer float64) {
	t.mu.Lock()
	if !t.playing {
		t.playing = true
		t.timer = timer
	}
	t.mu.Unlock()
}

// Stop makes the track idle
func (t *Track) Stop() {
	t.mu.Lock()
	t.playing = false
	t.mu.Unlock()
}

// Rewind goes back to the first item
func (t *Track) Rewind() {
	t.mu.Lock()
	t.index = 0
	t.timer = 0
	t.mu.Unlock()
}

func (t *Track) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// Parent returns the sync parent, if any
func (t *Track) Parent() *Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.parent
}

// Children returns the sync children in insertion order
func (t *Track) Children() []*Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Track(nil), t.children...)
}

// Update advances the track by dt. When the countdown runs out the next
// item is rendered to events whose times are relative to now; a negative
// countdown carries the overshoot into the timestamps.
func (t *Track) Update(dt float64) ([]midi.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.playing {
		return nil, nil
	}
	if len(t.items) == 0 {
		t.playing = false
		return nil, nil
	}
	t.timer -= dt
	if t.timer > 0 {
		return nil, nil
	}

	for _, c := range t.children {
		c.startIfIdle(t.timer + dt)
	}

	var out []midi.Event
	for fires := 0; t.playing && t.timer <= 0 && fires < maxFiresPerUpdate; fires++ {
		if t.index >= len(t.items) && !t.wrap() {
			t.playing = false
			break
		}

		s, err := t.take()
		if err != nil {
			if errs.Is(err, errs.GeneratorExhausted) {
				t.index++
				continue
			}
			return out, err
		}

		if s, err = t.applyPile(s); err != nil {
			return out, err
		}
		if t.transpose != 0 {
			s.Transpose(t.transpose)
		}
		t.last = s

		if !t.muted {
			out = append(out, t.render(s)...)
		}
		t.timer += s.Dur
		t.index++
	}
	return out, nil
}

// wrap applies the loop policy at the end of the queue
func (t *Track) wrap() bool {
	if !t.loop {
		return false
	}
	switch t.loopType {
	case LoopLast:
		t.index = len(t.items) - 1
	default:
		t.index = 0
	}
	return true
}

// take produces the sequence for the current item
func (t *Track) take() (*music.Sequence, error) {
	it := &t.items[t.index]
	switch {
	case it.Gen != nil:
		return it.Gen.Pull()
	case it.Seq != nil:
		return it.Seq.Copy(), nil
	}
	p := t.parser
	if p == nil {
		// follow config changes made while the track plays
		p = notation.New(notation.DefaultOptions())
	}
	s, rw, err := p.ParseSequence(it.Text)
	if err != nil {
		return nil, err
	}
	it.Text = rw
	return s, nil
}

func (t *Track) applyPile(s *music.Sequence) (*music.Sequence, error) {
	for _, tf := range t.pile {
		out, err := tf(s.Copy())
		if errs.Is(err, errs.TransformType) || (err == nil && out == nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s = out
	}
	return s, nil
}

func (t *Track) render(s *music.Sequence) []midi.Event {
	evs := s.Events(t.channel)
	out := make([]midi.Event, 0, len(evs)+1)
	if t.instrument >= 0 && t.programChange {
		out = append(out, midi.Event{
			Time: t.timer - programLead,
			Msg:  midi.ProgramChangeMsg(t.channel, t.instrument),
			Port: t.port,
		})
	}
	for _, e := range evs {
		e.Time += t.timer
		e.Port = t.port
		out = append(out, e)
	}
	return out
}

// programLead places program changes just ahead of the notes they affect
const programLead = 1e-4

// TypeChecked wraps a transform defined on a value type, reporting
// TransformType when the sequence cannot be converted.
func TypeChecked(fn func(*music.Sequence) *music.Sequence) Transform {
	return func(s *music.Sequence) (out *music.Sequence, err error) {
		defer func() {
			if r := recover(); r != nil {
				out, err = nil, errs.New(errs.TransformType, "transform failed: %v", r)
			}
		}()
		return fn(s), nil
	}
}
