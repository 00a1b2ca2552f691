// Package song loads YAML song documents and applies them to an engine.
//
//	bpm: 96
//	metronome: false
//	tracks:
//	  - name: bass
//	    channel: 1
//	    instrument: 33
//	    loop: true
//	    patterns: ["-do . sol .", "<fa la>"]
//	  - name: drums
//	    channel: 9
//	    sync: bass
//	    kit: rd8
//	    drums: {kick: "x...x...", snare: "....x..."}
//	  - name: lead
//	    generator: {kind: walk, scale: dorian, tonic: 62, length: 8}
package song

import (
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"go-phrase/config"
	"go-phrase/errs"
	"go-phrase/generator"
	"go-phrase/music"
	"go-phrase/notation"
	"go-phrase/sequencer"
	"go-phrase/theory"
)

// Song is a set of tracks plus global settings
type Song struct {
	BPM       float64 `yaml:"bpm,omitempty"`
	Metronome *bool   `yaml:"metronome,omitempty"`
	NoteDur   float64 `yaml:"note_dur,omitempty"`
	Scale     string  `yaml:"scale,omitempty"`
	Tonic     int     `yaml:"tonic,omitempty"`
	Tracks    []Track `yaml:"tracks"`
}

// Track describes one sequencer track
type Track struct {
	Name       string            `yaml:"name"`
	Channel    int               `yaml:"channel"`
	Instrument *int              `yaml:"instrument,omitempty"`
	Port       string            `yaml:"port,omitempty"`
	Transpose  int               `yaml:"transpose,omitempty"`
	Loop       bool              `yaml:"loop"`
	LoopType   string            `yaml:"loop_type,omitempty"`
	Sync       string            `yaml:"sync,omitempty"`
	Muted      bool              `yaml:"muted,omitempty"`
	Patterns   []string          `yaml:"patterns,omitempty"`
	Kit        string            `yaml:"kit,omitempty"`
	Drums      map[string]string `yaml:"drums,omitempty"`
	Generator  *Generator        `yaml:"generator,omitempty"`
}

// Generator describes a generator item
type Generator struct {
	Kind     string   `yaml:"kind"` // walk, progression or notation
	Scale    string   `yaml:"scale,omitempty"`
	Tonic    int      `yaml:"tonic,omitempty"`
	Start    int      `yaml:"start,omitempty"`
	Length   int      `yaml:"length,omitempty"`
	MaxStep  int      `yaml:"max_step,omitempty"`
	Degrees  []int    `yaml:"degrees,omitempty"`
	Order    string   `yaml:"order,omitempty"`
	Seventh  bool     `yaml:"seventh,omitempty"`
	Seed     int64    `yaml:"seed,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty"`
	Patterns []string `yaml:"patterns,omitempty"`
	Take     int      `yaml:"take,omitempty"`
}

// Load reads a song file
func Load(path string) (*Song, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.InvalidSong, "read "+path)
	}
	return Parse(data)
}

// Parse decodes and validates a song document
func Parse(data []byte) (*Song, error) {
	var s Song
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, errs.Wrap(err, errs.InvalidSong, "decode song")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Marshal encodes the song as YAML
func (s *Song) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Validate checks names, sync references and that every track has material
func (s *Song) Validate() error {
	if s.BPM < 0 {
		return errs.New(errs.InvalidSong, "negative bpm %g", s.BPM)
	}
	if s.Scale != "" {
		if _, err := theory.ScaleByName(s.Scale, s.Tonic); err != nil {
			return errs.Wrap(err, errs.InvalidSong, "song scale")
		}
	}
	names := make(map[string]bool, len(s.Tracks))
	for i := range s.Tracks {
		t := &s.Tracks[i]
		if t.Name == "" {
			return errs.New(errs.InvalidSong, "track %d has no name", i)
		}
		if names[t.Name] {
			return errs.New(errs.InvalidSong, "duplicate track %q", t.Name)
		}
		names[t.Name] = true
		if t.Channel < 0 || t.Channel > 15 {
			return errs.New(errs.InvalidSong, "track %q: channel %d out of range", t.Name, t.Channel)
		}
		if t.LoopType != "" && t.LoopType != "all" && t.LoopType != "last" {
			return errs.New(errs.InvalidSong, "track %q: loop_type %q", t.Name, t.LoopType)
		}
		if len(t.Patterns) == 0 && len(t.Drums) == 0 && t.Generator == nil {
			return errs.New(errs.InvalidSong, "track %q has nothing to play", t.Name)
		}
		if g := t.Generator; g != nil {
			switch g.Kind {
			case "walk", "progression", "notation":
			default:
				return errs.New(errs.InvalidSong, "track %q: unknown generator %q", t.Name, g.Kind)
			}
		}
	}
	for _, t := range s.Tracks {
		if t.Sync == "" {
			continue
		}
		if !names[t.Sync] {
			return errs.New(errs.InvalidSong, "track %q syncs to unknown track %q", t.Name, t.Sync)
		}
		if t.Sync == t.Name {
			return errs.New(errs.InvalidSong, "track %q syncs to itself", t.Name)
		}
	}
	return nil
}

// Configure installs the song's global settings
func (s *Song) Configure() {
	config.Update(func(o *config.Options) {
		if s.BPM > 0 {
			o.BPM = s.BPM
		}
		if s.Metronome != nil {
			o.Metronome = *s.Metronome
		}
		if s.NoteDur > 0 {
			o.NoteDur = s.NoteDur
		}
		if s.Scale != "" {
			o.Scale = &config.ScaleConfig{Name: s.Scale, Tonic: s.Tonic}
		}
	})
}

// Build creates the song's tracks with their sync relations, parents
// before children. The song's settings must already be configured.
func (s *Song) Build(g *sequencer.TrackGroup) ([]*sequencer.Track, error) {
	tracks := make([]*sequencer.Track, len(s.Tracks))
	byName := make(map[string]*sequencer.Track, len(s.Tracks))
	for i, spec := range s.Tracks {
		t, err := spec.build()
		if err != nil {
			return nil, err
		}
		tracks[i] = t
		byName[spec.Name] = t
	}
	for i, spec := range s.Tracks {
		if spec.Sync == "" {
			g.Add(tracks[i])
			continue
		}
		if err := g.Sync(tracks[i], byName[spec.Sync]); err != nil {
			return nil, errs.Wrap(err, errs.InvalidSong, "sync "+spec.Name)
		}
	}
	return tracks, nil
}

// Apply configures the engine and starts every track without a sync
// parent; synced tracks start with their parent.
func (s *Song) Apply(e *sequencer.Engine) ([]*sequencer.Track, error) {
	s.Configure()
	if s.BPM > 0 {
		e.SetBPM(s.BPM)
	}
	tracks, err := s.Build(e.Group())
	if err != nil {
		return nil, err
	}
	for i, t := range tracks {
		if s.Tracks[i].Sync != "" {
			continue
		}
		if err := e.Play(t, sequencer.DefaultPlayOptions()); err != nil {
			return nil, err
		}
	}
	return tracks, nil
}

func (spec Track) build() (*sequencer.Track, error) {
	t := sequencer.NewTrack(spec.Name, spec.Channel)
	if spec.Instrument != nil {
		t.SetInstrument(*spec.Instrument)
	}
	t.SetPort(spec.Port)
	t.SetTranspose(spec.Transpose)
	t.SetLoop(spec.Loop, sequencer.ParseLoopType(spec.LoopType))
	t.SetMuted(spec.Muted)

	for _, p := range spec.Patterns {
		if _, _, err := notation.Parse(p); err != nil {
			return nil, errs.Wrap(err, errs.InvalidSong, "track "+spec.Name)
		}
		if err := t.Enqueue(p); err != nil {
			return nil, err
		}
	}
	if len(spec.Drums) > 0 {
		d, err := GetKit(spec.Kit).Drums(spec.Drums)
		if err != nil {
			return nil, err
		}
		if err := t.Enqueue(d); err != nil {
			return nil, err
		}
	}
	if spec.Generator != nil {
		f, err := spec.Generator.factory()
		if err != nil {
			return nil, errs.Wrap(err, errs.InvalidSong, "track "+spec.Name)
		}
		if err := t.Enqueue(generator.NewHandle(f)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (g Generator) scale() (*theory.Scale, error) {
	name := g.Scale
	if name == "" {
		name = "major"
	}
	tonic := g.Tonic
	if tonic == 0 {
		tonic = 60
	}
	return theory.ScaleByName(name, tonic)
}

// factory turns the description into a generator factory
func (g Generator) factory() (generator.Factory, error) {
	o := config.Current()
	var f generator.Factory
	switch g.Kind {
	case "walk":
		sc, err := g.scale()
		if err != nil {
			return nil, err
		}
		start, length, step := g.Start, g.Length, g.MaxStep
		if start == 0 {
			start = sc.Tonic
		}
		if length <= 0 {
			length = 8
		}
		f = func() generator.Generator {
			return generator.NewRandomWalk(sc, start, length, step, o.NoteDur, g.Seed)
		}
	case "progression":
		sc, err := g.scale()
		if err != nil {
			return nil, err
		}
		order, ok := music.ParseArpOrder(g.Order)
		if !ok && g.Order != "" {
			return nil, errs.New(errs.InvalidSong, "unknown arpeggio order %q", g.Order)
		}
		degrees := g.Degrees
		if len(degrees) == 0 {
			degrees = []int{0, 3, 4, 0}
		}
		f = func() generator.Generator {
			return &generator.Progression{Scale: sc, Degrees: degrees, Order: order, Seventh: g.Seventh, NoteDur: o.NoteDur}
		}
	case "notation":
		texts := g.Patterns
		if g.Pattern != "" {
			texts = append([]string{g.Pattern}, texts...)
		}
		if len(texts) == 0 {
			return nil, errs.New(errs.InvalidSong, "notation generator without a pattern")
		}
		text := strings.Join(texts, " ")
		if _, _, err := notation.Parse(text); err != nil {
			return nil, err
		}
		f = func() generator.Generator {
			return generator.Notation(text, nil)
		}
	default:
		return nil, errs.New(errs.InvalidSong, "unknown generator %q", g.Kind)
	}
	if g.Take > 0 {
		inner := f
		f = func() generator.Generator { return generator.Take(inner(), g.Take) }
	}
	return f, nil
}
