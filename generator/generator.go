// Package generator provides lazy streams of sequences that feed tracks.
package generator

import (
	"math/rand"
	"sync"
	"time"

	"go-phrase/debug"
	"go-phrase/errs"
	"go-phrase/music"
	"go-phrase/notation"
	"go-phrase/theory"
)

// Generator yields sequences until it reports false. Next is called from the
// engine loop and must not block.
type Generator interface {
	Next() (*music.Sequence, bool)
}

// Factory recreates a generator from scratch
type Factory func() Generator

// Handle is a generator as held by a track
type Handle struct {
	Gen     Generator
	Factory Factory
}

// NewHandle builds a handle whose generator can be recreated by f
func NewHandle(f Factory) *Handle {
	return &Handle{Gen: f(), Factory: f}
}

// Once wraps g in a handle that is skipped after exhaustion
func Once(g Generator) *Handle {
	return &Handle{Gen: g}
}

// Pull returns the next sequence. An exhausted generator is rebuilt from the
// factory and pulled once more; a second exhaustion, or one without a
// factory, is a GeneratorExhausted error.
func (h *Handle) Pull() (*music.Sequence, error) {
	if h.Gen == nil && h.Factory != nil {
		h.Gen = h.Factory()
	}
	if h.Gen != nil {
		if s, ok := h.Gen.Next(); ok {
			return s, nil
		}
	}
	if h.Factory == nil {
		return nil, errs.New(errs.GeneratorExhausted, "generator exhausted")
	}
	h.Gen = h.Factory()
	if s, ok := h.Gen.Next(); ok {
		return s, nil
	}
	return nil, errs.New(errs.GeneratorExhausted, "generator exhausted after rebuild")
}

type funcGen func() (*music.Sequence, bool)

func (f funcGen) Next() (*music.Sequence, bool) { return f() }

// Func adapts a function to a Generator
func Func(fn func() (*music.Sequence, bool)) Generator {
	return funcGen(fn)
}

type sliceGen struct {
	seqs  []*music.Sequence
	i     int
	cycle bool
}

func (g *sliceGen) Next() (*music.Sequence, bool) {
	if len(g.seqs) == 0 {
		return nil, false
	}
	if g.i >= len(g.seqs) {
		if !g.cycle {
			return nil, false
		}
		g.i = 0
	}
	s := g.seqs[g.i].Copy()
	g.i++
	return s, true
}

// Slice yields a copy of each sequence once
func Slice(seqs ...*music.Sequence) Generator {
	return &sliceGen{seqs: seqs}
}

// Cycle yields copies of seqs forever
func Cycle(seqs ...*music.Sequence) Generator {
	return &sliceGen{seqs: seqs, cycle: true}
}

// Take stops g after n sequences
func Take(g Generator, n int) Generator {
	return Func(func() (*music.Sequence, bool) {
		if n <= 0 {
			return nil, false
		}
		n--
		return g.Next()
	})
}

// Map applies fn to every sequence of g
func Map(g Generator, fn func(*music.Sequence) *music.Sequence) Generator {
	return Func(func() (*music.Sequence, bool) {
		s, ok := g.Next()
		if !ok {
			return nil, false
		}
		return fn(s), true
	})
}

// NotationGen re-parses its text on every step, keeping the rewritten form
// so sequential groups advance.
type NotationGen struct {
	mu     sync.Mutex
	text   string
	parser *notation.Parser
}

// Notation builds a generator over pattern text; a nil parser uses the
// current configuration
func Notation(text string, p *notation.Parser) *NotationGen {
	if p == nil {
		p = notation.New(notation.DefaultOptions())
	}
	return &NotationGen{text: text, parser: p}
}

// Text returns the current (rewritten) pattern text
func (g *NotationGen) Text() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.text
}

func (g *NotationGen) Next() (*music.Sequence, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, rw, err := g.parser.ParseSequence(g.text)
	if err != nil {
		debug.Log("generator", "notation %q: %v", g.text, err)
		return nil, false
	}
	g.text = rw
	return s, true
}

// RandomWalk yields phrases of length notes that wander over the scale by
// at most maxStep degrees per note, continuing from where the last phrase
// ended.
type RandomWalk struct {
	Scale   *theory.Scale
	Length  int
	MaxStep int
	NoteDur float64

	pitch int
	rng   *rand.Rand
}

// NewRandomWalk starts a walk on the scale note closest to start
func NewRandomWalk(sc *theory.Scale, start, length, maxStep int, noteDur float64, seed int64) *RandomWalk {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if maxStep < 1 {
		maxStep = 1
	}
	return &RandomWalk{
		Scale:   sc,
		Length:  length,
		MaxStep: maxStep,
		NoteDur: noteDur,
		pitch:   sc.Closest(start),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (w *RandomWalk) Next() (*music.Sequence, bool) {
	if w.Length <= 0 {
		return nil, false
	}
	s := music.NewSequence()
	for i := 0; i < w.Length; i++ {
		s.Add(music.NewNote(w.pitch, w.NoteDur))
		step := w.rng.Intn(2*w.MaxStep+1) - w.MaxStep
		w.pitch = w.Scale.DegreeFrom(w.pitch, step)
	}
	return s, true
}

// Progression arpeggiates the triads on a list of scale degrees, one chord
// per step, cycling through the list.
type Progression struct {
	Scale   *theory.Scale
	Degrees []int
	Order   music.ArpOrder
	Seventh bool
	NoteDur float64

	i int
}

func (p *Progression) Next() (*music.Sequence, bool) {
	if len(p.Degrees) == 0 {
		return nil, false
	}
	d := p.Degrees[p.i%len(p.Degrees)]
	p.i++
	pitches := p.Scale.Triad(d)
	if p.Seventh {
		pitches = p.Scale.Seventh(d)
	}
	return music.ChordFromPitches(pitches, p.NoteDur).Arpeggio(p.Order, 1), true
}
