package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"go-phrase/debug"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

// Symbols used by the piano roll
type Symbols struct {
	Empty    rune // · no note
	Beat     rune // : empty cell on a beat
	Onset    rune // ● note starts
	Hold     rune // ─ note sounding
	Playhead rune // │ current position
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Empty:    '·',
			Beat:     ':',
			Onset:    '●',
			Hold:     '─',
			Playhead: '│',
		},
	}
}

// Load builds a theme from a .gpl file, falling back to the built-in
// palette when path is empty or unreadable
func Load(path string) *Theme {
	if path == "" {
		return New(nil)
	}
	p, err := LoadGPL(path)
	if err != nil {
		debug.Log("theme", "%v", err)
		return New(nil)
	}
	return New(p)
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

func (t *Theme) BG() lipgloss.Color      { return t.Color(RoleBG) }
func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	c := t.Palette.Lookup(norm)
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}

// Velocity colors a note by its velocity
func (t *Theme) Velocity(vel int) lipgloss.Color {
	return t.Color(RoleFG + (RoleSuccess-RoleFG)*float64(vel)/127)
}
