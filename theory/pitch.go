package theory

import (
	"strconv"
	"strings"

	"go-phrase/errs"
)

// Token is a parsed pitch token. Notes carry one pitch, chords several.
type Token struct {
	Pitches []int
	Chord   bool
	Len     int // bytes of the input consumed
}

// PitchContext carries the defaults a token is resolved against.
type PitchContext struct {
	DefaultOctave int
	Scale         *Scale // roman numerals; nil means C major at the default octave
}

var chordRoots = []string{"Sol", "Ré", "Do", "Re", "Mi", "Fa", "La", "Si", "Ti", "C", "D", "E", "F", "G", "A", "B"}

var romanUpper = []struct {
	name   string
	degree int
}{
	{"VII", 6}, {"III", 2}, {"VI", 5}, {"IV", 3}, {"II", 1}, {"V", 4}, {"I", 0},
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func matchName(s string) (string, bool) {
	for _, n := range noteNames {
		if strings.HasPrefix(s, n) {
			return n, true
		}
	}
	return "", false
}

func matchRoot(s string) (string, bool) {
	for _, n := range chordRoots {
		if strings.HasPrefix(s, n) {
			return n, true
		}
	}
	return "", false
}

func matchRoman(s string) (string, int, bool) {
	for _, r := range romanDegrees {
		if strings.HasPrefix(s, r.name) {
			return r.name, r.degree, true
		}
	}
	return "", 0, false
}

func matchRomanUpper(s string) (string, int, bool) {
	for _, r := range romanUpper {
		if strings.HasPrefix(s, r.name) {
			return r.name, r.degree, true
		}
	}
	return "", 0, false
}

// StartsPitch reports whether s begins with a note name, chord root or roman numeral.
func StartsPitch(s string) bool {
	if _, ok := matchName(s); ok {
		return true
	}
	if _, ok := matchRoot(s); ok {
		return true
	}
	if _, _, ok := matchRoman(s); ok {
		return true
	}
	_, _, ok := matchRomanUpper(s)
	return ok
}

// ScanToken parses the pitch token at the start of s and reports how much
// of s it consumed. Anything after the token is left to the caller.
func ScanToken(s string, ctx PitchContext) (Token, error) {
	if s == "" {
		return Token{}, errs.New(errs.InvalidPitch, "empty pitch token")
	}

	i := 0
	sign := 0
	switch s[0] {
	case '+':
		sign = 1
		i++
	case '-':
		sign = -1
		i++
	}
	j := i
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	ndig := j - i

	// Raw MIDI number
	if sign == 0 && ndig > 0 && !StartsPitch(s[j:]) {
		n, err := strconv.Atoi(s[:j])
		if err != nil {
			n = 127
		}
		return Token{Pitches: []int{ClampPitch(n)}, Len: j}, nil
	}
	if ndig > 1 {
		return Token{}, errs.New(errs.InvalidPitch, "invalid octave prefix in %q", s)
	}

	octave := ctx.DefaultOctave
	switch {
	case sign != 0:
		off := 1
		if ndig == 1 {
			off = int(s[i] - '0')
		}
		octave = Clamp(ctx.DefaultOctave+sign*off, 0, 10)
	case ndig == 1:
		octave = int(s[i] - '0')
	}
	i = j
	rest := s[i:]

	if name, ok := matchName(rest); ok {
		i += len(name)
		acc, n := scanAccidentals(s[i:])
		i += n
		p := ClampPitch(12*octave + noteOffsets[name] + acc)
		return Token{Pitches: []int{p}, Len: i}, nil
	}

	if name, degree, ok := matchRoman(rest); ok {
		i += len(name)
		seventh := i < len(s) && s[i] == '7'
		if seventh {
			i++
		}
		return romanToken(degree, octave, seventh, seventh, ctx, i), nil
	}

	if root, ok := matchRoot(rest); ok {
		i += len(root)
		acc, n := scanAccidentals(s[i:])
		i += n
		base := 12*octave + noteOffsets[strings.ToLower(root)] + acc
		intervals, n := scanChordSuffix(s[i:])
		i += n
		pitches := make([]int, len(intervals))
		for k, iv := range intervals {
			pitches[k] = ClampPitch(base + iv)
		}
		return Token{Pitches: pitches, Chord: true, Len: i}, nil
	}

	if name, degree, ok := matchRomanUpper(rest); ok {
		i += len(name)
		seventh := i < len(s) && s[i] == '7'
		if seventh {
			i++
		}
		return romanToken(degree, octave, true, seventh, ctx, i), nil
	}

	return Token{}, errs.New(errs.InvalidPitch, "unknown pitch %q", s)
}

func scanAccidentals(s string) (int, int) {
	acc, n := 0, 0
	for n < len(s) {
		switch s[n] {
		case '#':
			acc++
		case 'b':
			acc--
		default:
			return acc, n
		}
		n++
	}
	return acc, n
}

func scanChordSuffix(s string) ([]int, int) {
	for _, ct := range chordTypes {
		if !strings.HasPrefix(s, ct.suffix) {
			continue
		}
		n := len(ct.suffix)
		for _, ext := range chordExtensions {
			if strings.HasPrefix(s[n:], ext) {
				return extend(ct.intervals, ct.seventh, ext), n + len(ext)
			}
		}
		return append([]int(nil), ct.intervals...), n
	}
	return []int{0, 4, 7}, 0
}

func romanToken(degree, octave int, chord, seventh bool, ctx PitchContext, n int) Token {
	sc := ctx.Scale
	if sc == nil {
		sc = MustScale("major", 12*ctx.DefaultOctave)
	}
	shift := octave - ctx.DefaultOctave
	tok := Token{Chord: chord, Len: n}
	switch {
	case seventh:
		tok.Pitches = sc.Seventh(degree)
	case chord:
		tok.Pitches = sc.Triad(degree)
	default:
		tok.Pitches = []int{sc.Degree(degree, 0)}
	}
	for k := range tok.Pitches {
		tok.Pitches[k] = ClampPitch(tok.Pitches[k] + 12*shift)
	}
	return tok
}

// ParseToken parses s as a whole pitch or chord token
func ParseToken(s string, ctx PitchContext) (Token, error) {
	tok, err := ScanToken(s, ctx)
	if err != nil {
		return Token{}, err
	}
	if tok.Len != len(s) {
		return Token{}, errs.New(errs.InvalidPitch, "unexpected %q after pitch in %q", s[tok.Len:], s)
	}
	return tok, nil
}

// ParsePitch parses a single pitch token such as "c#", "+2la" or "60"
func ParsePitch(s string, defaultOctave int) (int, error) {
	tok, err := ParseToken(strings.TrimSpace(s), PitchContext{DefaultOctave: defaultOctave})
	if err != nil {
		return 0, err
	}
	if tok.Chord {
		return 0, errs.New(errs.InvalidPitch, "%q is a chord, not a pitch", s)
	}
	return tok.Pitches[0], nil
}

var pitchClassNames = []string{"c", "c#", "d", "d#", "e", "f", "f#", "g", "g#", "a", "a#", "b"}

// PitchName renders a pitch as name plus octave, e.g. 60 -> "c5"
func PitchName(p int) string {
	p = ClampPitch(p)
	return pitchClassNames[p%12] + strconv.Itoa(p/12)
}
