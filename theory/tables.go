package theory

import "sort"

// Scale definitions - intervals from tonic (semitones)
var scales = map[string][]int{
	"chromatic":        {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	"major":            {0, 2, 4, 5, 7, 9, 11},
	"minor":            {0, 2, 3, 5, 7, 8, 10},
	"harmonic_minor":   {0, 2, 3, 5, 7, 8, 11},
	"melodic_minor":    {0, 2, 3, 5, 7, 9, 11},
	"whole_tone":       {0, 2, 4, 6, 8, 10},
	"pentatonic":       {0, 2, 4, 7, 9},
	"pentatonic_minor": {0, 3, 5, 7, 10},
	"japanese":         {0, 1, 5, 7, 8},
	"hirajoshi":        {0, 2, 3, 7, 8},

	// Church modes
	"ionian":     {0, 2, 4, 5, 7, 9, 11},
	"dorian":     {0, 2, 3, 5, 7, 9, 10},
	"phrygian":   {0, 1, 3, 5, 7, 8, 10},
	"lydian":     {0, 2, 4, 6, 7, 9, 11},
	"mixolydian": {0, 2, 4, 5, 7, 9, 10},
	"aeolian":    {0, 2, 3, 5, 7, 8, 10},
	"locrian":    {0, 1, 3, 5, 6, 8, 10},

	// Exotic
	"blues":             {0, 3, 5, 6, 7, 10},
	"major_blues":       {0, 2, 3, 4, 7, 9},
	"bebop_dominant":    {0, 2, 4, 5, 7, 9, 10, 11},
	"bebop_major":       {0, 2, 4, 5, 7, 8, 9, 11},
	"diminished":        {0, 2, 3, 5, 6, 8, 9, 11},
	"diminished_half":   {0, 1, 3, 4, 6, 7, 9, 10},
	"augmented":         {0, 3, 4, 7, 8, 11},
	"hungarian_minor":   {0, 2, 3, 6, 7, 8, 11},
	"hungarian_major":   {0, 3, 4, 6, 7, 9, 10},
	"double_harmonic":   {0, 1, 4, 5, 7, 8, 11},
	"phrygian_dominant": {0, 1, 4, 5, 7, 8, 10},
	"neapolitan_major":  {0, 1, 3, 5, 7, 9, 11},
	"neapolitan_minor":  {0, 1, 3, 5, 7, 8, 11},
	"enigmatic":         {0, 1, 4, 6, 8, 10, 11},
	"persian":           {0, 1, 4, 5, 6, 8, 11},
	"arabian":           {0, 2, 4, 5, 6, 8, 10},
	"egyptian":          {0, 2, 5, 7, 10},
	"in_sen":            {0, 1, 5, 7, 10},
	"yo":                {0, 2, 5, 7, 9},
	"iwato":             {0, 1, 5, 6, 10},
	"kumoi":             {0, 2, 3, 7, 9},
	"pelog":             {0, 1, 3, 7, 8},
	"prometheus":        {0, 2, 4, 6, 9, 10},
	"scriabin":          {0, 1, 4, 7, 9},
	"gypsy":             {0, 2, 3, 6, 7, 8, 10},
	"spanish":           {0, 1, 3, 4, 5, 6, 8, 10},
	"flamenco":          {0, 1, 4, 5, 7, 8, 11},
	"lydian_dominant":   {0, 2, 4, 6, 7, 9, 10},
	"lydian_augmented":  {0, 2, 4, 6, 8, 9, 11},
	"super_locrian":     {0, 1, 3, 4, 6, 8, 10},
	"balinese":          {0, 1, 3, 7, 8},
	"chinese":           {0, 4, 6, 7, 11},
	"mongolian":         {0, 2, 4, 7, 9},
	"hindu":             {0, 2, 4, 5, 7, 8, 10},
	"bhairav":           {0, 1, 4, 5, 7, 8, 11},
	"marva":             {0, 1, 4, 6, 7, 9, 11},
	"todi":              {0, 1, 3, 6, 7, 8, 11},
	"purvi":             {0, 1, 4, 6, 7, 8, 11},
	"tritone":           {0, 1, 4, 6, 7, 10},
	"ritusen":           {0, 2, 5, 7, 9},
	"man_gong":          {0, 3, 5, 8, 10},
	"ichikosucho":       {0, 2, 4, 5, 6, 7, 9, 11},
	"pentatonic_spread": {0, 2, 4, 7, 9, 14, 16},
}

// ScaleNames returns all known scale names, sorted
func ScaleNames() []string {
	names := make([]string, 0, len(scales))
	for name := range scales {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chromatic offsets of note names from C. The octave runs a..g, so a and b
// sit below c.
var noteOffsets = map[string]int{
	"c": 0, "d": 2, "e": 4, "f": 5, "g": 7, "a": -3, "b": -1,
	"do": 0, "re": 2, "ré": 2, "mi": 4, "fa": 5, "sol": 7, "la": -3, "si": -1, "ti": -1,
}

// Names tried in order: longest first so "sol" wins over "s..." and "do" over "d".
var noteNames = []string{"sol", "ré", "do", "re", "mi", "fa", "la", "si", "ti", "c", "d", "e", "f", "g", "a", "b"}

// Roman numeral scale degrees, longest first
var romanDegrees = []struct {
	name   string
	degree int
}{
	{"vii", 6}, {"iii", 2}, {"vi", 5}, {"iv", 3}, {"ii", 1}, {"v", 4}, {"i", 0},
}

// Chord type suffixes, longest first. The empty suffix is a major triad.
var chordTypes = []struct {
	suffix    string
	intervals []int
	seventh   int // interval added by a 7 extension
}{
	{"sus2", []int{0, 2, 7}, 10},
	{"sus4", []int{0, 5, 7}, 10},
	{"dim", []int{0, 3, 6}, 9},
	{"aug", []int{0, 4, 8}, 10},
	{"°", []int{0, 3, 6}, 9},
	{"+", []int{0, 4, 8}, 10},
	{"M", []int{0, 4, 7}, 11},
	{"m", []int{0, 3, 7}, 10},
	{"", []int{0, 4, 7}, 10},
}

// Extensions, longest first
var chordExtensions = []string{"13", "11", "9", "7", "6"}

// extend adds the extension intervals to a triad
func extend(triad []int, seventh int, ext string) []int {
	out := append([]int(nil), triad...)
	switch ext {
	case "6":
		out = append(out, 9)
	case "7":
		out = append(out, seventh)
	case "9":
		out = append(out, seventh, 14)
	case "11":
		out = append(out, seventh, 14, 17)
	case "13":
		out = append(out, seventh, 14, 17, 21)
	}
	return out
}

// ChordIntervals returns the interval list for a chord suffix such as "m7".
func ChordIntervals(suffix string) ([]int, bool) {
	for _, ct := range chordTypes {
		if len(suffix) < len(ct.suffix) || suffix[:len(ct.suffix)] != ct.suffix {
			continue
		}
		rest := suffix[len(ct.suffix):]
		if rest == "" {
			return append([]int(nil), ct.intervals...), true
		}
		for _, ext := range chordExtensions {
			if rest == ext {
				return extend(ct.intervals, ct.seventh, ext), true
			}
		}
	}
	return nil, false
}
