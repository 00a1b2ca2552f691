package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// ScaleConfig names the current scale used for snapping and roman numerals.
type ScaleConfig struct {
	Name  string `json:"name"`
	Tonic int    `json:"tonic"`
}

// Options are the process-wide settings read by the parser, the value model
// and the engine.
type Options struct {
	BPM           float64      `json:"bpm"`
	NoteDur       float64      `json:"noteDur"`
	DefaultOctave int          `json:"defaultOctave"`
	Scale         *ScaleConfig `json:"scale,omitempty"`

	DefaultOutput string `json:"defaultOutput,omitempty"`
	DefaultInput  string `json:"defaultInput,omitempty"`
	ForwardOutput string `json:"forwardOutput,omitempty"`

	Metronome        bool     `json:"metronome"`
	MetronomeDiv     int      `json:"metronomeDiv"`
	MetronomeNotes   [2]uint8 `json:"metronomeNotes"`
	MetronomeChannel uint8    `json:"metronomeChannel"`

	DisplayRange [2]int `json:"displayRange"`
	Verbose      bool   `json:"verbose,omitempty"`
	Palette      string `json:"palette,omitempty"`
}

// DefaultOptions returns the built-in defaults
func DefaultOptions() Options {
	return Options{
		BPM:              120,
		NoteDur:          1.0 / 8,
		DefaultOctave:    4,
		MetronomeDiv:     4,
		MetronomeNotes:   [2]uint8{76, 77},
		MetronomeChannel: 9,
		DisplayRange:     [2]int{36, 84},
	}
}

var (
	current = DefaultOptions()
	mu      sync.RWMutex
)

// Current returns a snapshot of the process-wide options
func Current() Options {
	mu.RLock()
	defer mu.RUnlock()
	o := current
	if o.Scale != nil {
		sc := *o.Scale
		o.Scale = &sc
	}
	return o
}

// Update mutates the process-wide options under the lock
func Update(fn func(o *Options)) {
	mu.Lock()
	defer mu.Unlock()
	fn(&current)
	current.normalize()
}

// Reset restores the defaults
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = DefaultOptions()
}

func (o *Options) normalize() {
	d := DefaultOptions()
	if o.BPM <= 0 {
		o.BPM = d.BPM
	}
	if o.NoteDur <= 0 {
		o.NoteDur = d.NoteDur
	}
	if o.DefaultOctave < 0 {
		o.DefaultOctave = 0
	}
	if o.DefaultOctave > 10 {
		o.DefaultOctave = 10
	}
	if o.MetronomeDiv <= 0 {
		o.MetronomeDiv = d.MetronomeDiv
	}
	if o.MetronomeChannel > 15 {
		o.MetronomeChannel = 15
	}
	if o.DisplayRange[1] <= o.DisplayRange[0] {
		o.DisplayRange = d.DisplayRange
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-phrase"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from path (or the default path when empty), or
// returns defaults if not found
func Load(path string) (Options, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return DefaultOptions(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultOptions(), nil
		}
		return Options{}, err
	}

	// Start from defaults so missing keys keep their default value
	o := DefaultOptions()
	if err := json.Unmarshal(data, &o); err != nil {
		return Options{}, err
	}
	o.normalize()
	return o, nil
}

// Apply installs o as the process-wide options
func Apply(o Options) {
	Update(func(cur *Options) { *cur = o })
}

// Save writes the options to path (or the default path when empty)
func (o Options) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
