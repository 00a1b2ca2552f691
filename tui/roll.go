package tui

import (
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-phrase/music"
	"go-phrase/theme"
	"go-phrase/theory"
)

// maxCols caps the roll width
const maxCols = 96

// cell is one grid position of the piano roll
type cell struct {
	sym rune
	vel int // 0 for no note
}

// grid lays s out on rows of pitches within [lo, hi], highest first, one
// column per step seconds
func grid(s *music.Sequence, lo, hi int, step float64, sym theme.Symbols) ([]int, [][]cell) {
	if s == nil || step <= 0 {
		return nil, nil
	}
	cols := int(math.Ceil(s.Dur/step - 1e-9))
	if cols > maxCols {
		cols = maxCols
	}
	beat := int(math.Round(0.5 / step))
	if beat < 1 {
		beat = 1
	}

	rowOf := map[int]int{}
	var pitches []int
	for _, n := range s.Notes {
		if n.Pitch < lo || n.Pitch > hi {
			continue
		}
		if _, ok := rowOf[n.Pitch]; !ok {
			rowOf[n.Pitch] = 0
			pitches = append(pitches, n.Pitch)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(pitches)))
	for i, p := range pitches {
		rowOf[p] = i
	}

	rows := make([][]cell, len(pitches))
	for i := range rows {
		rows[i] = make([]cell, cols)
		for c := range rows[i] {
			rows[i][c].sym = sym.Empty
			if c%beat == 0 {
				rows[i][c].sym = sym.Beat
			}
		}
	}
	for _, n := range s.Notes {
		row, ok := rowOf[n.Pitch]
		if !ok || n.Pitch < lo || n.Pitch > hi {
			continue
		}
		start := int(math.Round(n.At / step))
		end := int(math.Round((n.At + n.Dur) / step))
		for c := start; c < end && c < cols; c++ {
			if c < 0 {
				continue
			}
			r := sym.Hold
			if c == start {
				r = sym.Onset
			}
			// an onset wins over a held note
			if rows[row][c].vel > 0 && c != start {
				continue
			}
			rows[row][c] = cell{sym: r, vel: n.Vel}
		}
	}
	return pitches, rows
}

// Roll renders s as a colored piano roll
func Roll(s *music.Sequence, lo, hi int, step float64, th *theme.Theme) string {
	pitches, rows := grid(s, lo, hi, step, th.Symbols)
	if len(rows) == 0 {
		return lipgloss.NewStyle().Foreground(th.Muted()).Render("  (silent)")
	}
	label := lipgloss.NewStyle().Foreground(th.Muted()).Width(5)
	dim := lipgloss.NewStyle().Foreground(th.Muted())

	var b strings.Builder
	for i, row := range rows {
		b.WriteString(label.Render(theory.PitchName(pitches[i])))
		for _, c := range row {
			if c.vel == 0 {
				b.WriteString(dim.Render(string(c.sym)))
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(th.Velocity(c.vel)).Render(string(c.sym)))
		}
		if i < len(rows)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
