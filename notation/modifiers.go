package notation

import (
	"strconv"
	"strings"

	"go-phrase/debug"
	"go-phrase/errs"
	"go-phrase/music"
)

// number reads an int, a float or a p/q fraction at the start of s
func number(s string) (float64, int, bool) {
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	if i == 0 {
		return 0, 0, false
	}
	v, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, 0, false
	}
	if i+1 < len(s) && s[i] == '/' && s[i+1] >= '0' && s[i+1] <= '9' {
		j := i + 1
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		q, _ := strconv.ParseFloat(s[i+1:j], 64)
		if q != 0 {
			return v / q, j, true
		}
		return v, j, true
	}
	return v, i, true
}

// integer reads an optionally signed int at the start of s
func integer(s string) (int, int, bool) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == i {
		return 0, 0, false
	}
	n, err := strconv.Atoi(s[:j])
	if err != nil {
		return 0, 0, false
	}
	return n, j, true
}

// modifiers applies the chain in mods to v, left to right. Unknown
// characters are skipped.
func (p *Parser) modifiers(v music.Value, mods string) (music.Value, error) {
	for i := 0; i < len(mods); {
		c := mods[i]
		i++
		arg := mods[i:]
		switch c {
		case '*':
			if k, n, ok := number(arg); ok {
				v = music.Stretched(v, k)
				i += n
			}
		case '%':
			if k, n, ok := number(arg); ok {
				v = music.Gated(v, k)
				i += n
			}
		case '^':
			if k, n, ok := integer(arg); ok {
				v = music.Transposed(v, k)
				i += n
			}
		case 'x':
			if k, n, ok := integer(arg); ok {
				v = music.Repeat(v, k)
				i += n
			}
		case '?':
			prob := 0.5
			if k, n, ok := number(arg); ok {
				prob = k
				i += n
			}
			if p.opts.Rand.Float64() >= prob {
				v = music.Rest{}
			}
		case '/', '\\':
			octaves := 1
			if k, n, ok := integer(arg); ok && !strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "+") {
				octaves = k
				i += n
			}
			if ch, ok := v.(*music.Chord); ok {
				order := music.ArpUp
				if c == '\\' {
					order = music.ArpDown
				}
				v = ch.Arpeggio(order, octaves)
			}
		case 's':
			k, n, ok := integer(arg)
			if !ok {
				debug.Log("notation", "stutter without count in %q", mods)
				continue
			}
			i += n
			prob := 1.0
			if strings.HasPrefix(mods[i:], ",") {
				if q, m, ok := number(mods[i+1:]); ok {
					prob = q
					i += 1 + m
				}
			}
			v = v.ToSequence().Chop(k, prob)
		case 'r':
			switch x := v.(type) {
			case *music.Sequence:
				v = x.Shuffled()
			case *music.Chord:
				v = x.Arpeggio(music.ArpShuffle, 1)
			}
		default:
			debug.Log("notation", "skipping: %v", errs.New(errs.InvalidModifier, "unknown modifier %q in %q", c, mods))
		}
	}
	return v, nil
}
