// Package notation parses the mini-notation pattern language.
//
// Elements are separated by whitespace. Groups:
//
//	(a b c)    append
//	[a b c]    sync: children start together
//	<a b c>    sequential: one child per parse, index kept as <a b c>#i
//	{a:2 b}    weighted choice
//	a_b_c      tuplet: the parts share one unit
//
// Any element may be followed by modifiers: *k %k ^n xn ?p / \ sn,p r
package notation

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"go-phrase/config"
	"go-phrase/debug"
	"go-phrase/errs"
	"go-phrase/music"
	"go-phrase/theory"
)

// Options configure a Parser
type Options struct {
	NoteDur       float64
	DefaultOctave int
	Scale         *theory.Scale
	Rand          *rand.Rand
}

// DefaultOptions reads the process-wide configuration
func DefaultOptions() Options {
	o := config.Current()
	opts := Options{
		NoteDur:       o.NoteDur,
		DefaultOctave: o.DefaultOctave,
		Rand:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if o.Scale != nil {
		if sc, err := theory.ScaleByName(o.Scale.Name, o.Scale.Tonic); err == nil {
			opts.Scale = sc
		}
	}
	return opts
}

// Parser turns pattern text into values. Safe for concurrent use.
type Parser struct {
	opts Options
	mu   sync.Mutex
}

// New creates a parser
func New(opts Options) *Parser {
	if opts.NoteDur <= 0 {
		opts.NoteDur = config.DefaultOptions().NoteDur
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Parser{opts: opts}
}

// Parse parses text with the current configuration
func Parse(text string) (music.Value, string, error) {
	return New(DefaultOptions()).Parse(text)
}

// ParseSequence parses text with the current configuration into a Sequence
func ParseSequence(text string) (*music.Sequence, string, error) {
	return New(DefaultOptions()).ParseSequence(text)
}

// Parse returns the value of text and the rewritten text. Storing the
// rewritten text and parsing it next time advances sequential groups.
func (p *Parser) Parse(text string) (music.Value, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elems, err := SplitElements(text)
	if err != nil {
		return nil, "", err
	}
	switch len(elems) {
	case 0:
		return music.NewSequence(), "", nil
	case 1:
		return p.element(elems[0])
	}

	// several root elements are an implicit append group
	s := music.NewSequence()
	rewritten := make([]string, len(elems))
	for i, e := range elems {
		v, rw, err := p.element(e)
		if err != nil {
			return nil, "", err
		}
		s.Add(v)
		rewritten[i] = rw
	}
	return s, strings.Join(rewritten, " "), nil
}

// ParseSequence is Parse with the value converted to a Sequence that
// remembers its source text
func (p *Parser) ParseSequence(text string) (*music.Sequence, string, error) {
	v, rw, err := p.Parse(text)
	if err != nil {
		return nil, "", err
	}
	s, ok := v.(*music.Sequence)
	if !ok {
		s = v.ToSequence()
	}
	s.Symbolic = strings.Join(strings.Fields(text), " ")
	return s, rw, nil
}

func (p *Parser) element(e string) (music.Value, string, error) {
	if parts := splitTop(e, '_'); len(parts) > 1 {
		return p.tuplet(parts)
	}
	if isOpen(e[0]) {
		return p.group(e)
	}
	return p.atom(e)
}

func (p *Parser) tuplet(parts []string) (music.Value, string, error) {
	s := music.NewSequence()
	rewritten := make([]string, len(parts))
	n := float64(len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, "", errs.New(errs.InvalidGroup, "empty tuplet part in %q", strings.Join(parts, "_"))
		}
		v, rw, err := p.element(part)
		if err != nil {
			return nil, "", err
		}
		s.Add(music.Stretched(v, 1/n))
		rewritten[i] = rw
	}
	return s, strings.Join(rewritten, "_"), nil
}

func (p *Parser) atom(e string) (music.Value, string, error) {
	if e[0] == '.' {
		v, err := p.modifiers(music.Rest{Dur: p.opts.NoteDur}, e[1:])
		return v, e, err
	}

	ctx := theory.PitchContext{DefaultOctave: p.opts.DefaultOctave, Scale: p.opts.Scale}
	tok, err := theory.ScanToken(e, ctx)
	if err != nil {
		if e[0] == '-' {
			v, err := p.modifiers(music.Rest{Dur: p.opts.NoteDur}, e[1:])
			return v, e, err
		}
		return nil, "", err
	}

	var v music.Value
	if tok.Chord {
		v = music.ChordFromPitches(tok.Pitches, p.opts.NoteDur)
	} else {
		v = music.NewNote(tok.Pitches[0], p.opts.NoteDur)
	}
	v, err = p.modifiers(v, e[tok.Len:])
	return v, e, err
}

func (p *Parser) group(e string) (music.Value, string, error) {
	end, err := matching(e)
	if err != nil {
		return nil, "", err
	}
	open := e[0]
	body := e[1:end]
	rest := e[end+1:]

	children, err := SplitElements(body)
	if err != nil {
		return nil, "", err
	}
	if len(children) == 0 {
		return nil, "", errs.New(errs.InvalidGroup, "empty group %q", e[:end+1])
	}

	var (
		v  music.Value
		rw string
	)
	switch open {
	case '(':
		v, rw, err = p.appendGroup(children)
	case '[':
		v, rw, err = p.syncGroup(children)
	case '<':
		var idx int
		idx, rest = sequenceIndex(rest)
		v, rw, err = p.sequentialGroup(children, idx)
	case '{':
		v, rw, err = p.weightedGroup(children)
	}
	if err != nil {
		return nil, "", err
	}
	v, err = p.modifiers(v, rest)
	return v, rw + rest, err
}

func (p *Parser) appendGroup(children []string) (music.Value, string, error) {
	s := music.NewSequence()
	rewritten := make([]string, len(children))
	for i, c := range children {
		v, rw, err := p.element(c)
		if err != nil {
			return nil, "", err
		}
		s.Add(v)
		rewritten[i] = rw
	}
	return s, "(" + strings.Join(rewritten, " ") + ")", nil
}

// syncGroup overlays its children. Notes and chords collapse into one
// chord; anything else merges into a sequence.
func (p *Parser) syncGroup(children []string) (music.Value, string, error) {
	values := make([]music.Value, len(children))
	rewritten := make([]string, len(children))
	chordable := true
	outer := 0.0
	for i, c := range children {
		v, rw, err := p.element(c)
		if err != nil {
			return nil, "", err
		}
		values[i] = v
		rewritten[i] = rw
		switch v.(type) {
		case music.Note, *music.Chord:
		default:
			chordable = false
		}
		if d := v.Duration(); d > outer {
			outer = d
		}
	}
	rw := "[" + strings.Join(rewritten, " ") + "]"

	if chordable {
		ch := music.NewChord(outer)
		for _, v := range values {
			switch x := v.(type) {
			case music.Note:
				ch.Add(x)
			case *music.Chord:
				for _, n := range x.Notes() {
					ch.Add(n)
				}
			}
		}
		return ch, rw, nil
	}

	s := music.NewSequence()
	for _, v := range values {
		s.Merge(v.ToSequence())
	}
	s.Head = outer
	return s, rw, nil
}

// sequenceIndex reads a "#i" prefix off rest
func sequenceIndex(rest string) (int, string) {
	if !strings.HasPrefix(rest, "#") {
		return 0, rest
	}
	j := 1
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	idx, err := strconv.Atoi(rest[1:j])
	if err != nil {
		return 0, rest[j:]
	}
	return idx, rest[j:]
}

func (p *Parser) sequentialGroup(children []string, idx int) (music.Value, string, error) {
	i := idx % len(children)
	v, rw, err := p.element(children[i])
	if err != nil {
		return nil, "", err
	}
	rewritten := append([]string(nil), children...)
	rewritten[i] = rw
	next := (i + 1) % len(children)
	return v, "<" + strings.Join(rewritten, " ") + ">#" + strconv.Itoa(next), nil
}

// splitWeight separates a trailing ":w" from a weighted child
func splitWeight(c string) (string, string, float64) {
	parts := splitTop(c, ':')
	if len(parts) < 2 {
		return c, "", 1
	}
	last := parts[len(parts)-1]
	body := strings.Join(parts[:len(parts)-1], ":")
	w, err := strconv.ParseFloat(last, 64)
	if err != nil {
		debug.Log("notation", "bad weight %q in %q", last, c)
		return body, ":" + last, 1
	}
	if w < 0 {
		w = 0
	}
	return body, ":" + last, w
}

func (p *Parser) weightedGroup(children []string) (music.Value, string, error) {
	bodies := make([]string, len(children))
	suffixes := make([]string, len(children))
	weights := make([]float64, len(children))
	total := 0.0
	for i, c := range children {
		bodies[i], suffixes[i], weights[i] = splitWeight(c)
		total += weights[i]
	}

	pick := 0
	if total <= 0 {
		pick = p.opts.Rand.Intn(len(children))
	} else {
		r := p.opts.Rand.Float64() * total
		for i, w := range weights {
			if r < w {
				pick = i
				break
			}
			r -= w
			pick = i
		}
	}

	if bodies[pick] == "" {
		return nil, "", errs.New(errs.InvalidGroup, "empty weighted choice %q", children[pick])
	}
	v, rw, err := p.element(bodies[pick])
	if err != nil {
		return nil, "", err
	}
	rewritten := append([]string(nil), children...)
	rewritten[pick] = rw + suffixes[pick]
	return v, "{" + strings.Join(rewritten, " ") + "}", nil
}
