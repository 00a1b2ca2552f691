// Package mod evaluates modulation curves and turns them into controller
// messages.
package mod

import (
	"math"
	"sort"

	"go-phrase/theory"
)

// Kind tags the curve evaluator
type Kind int

const (
	KindScalar Kind = iota
	KindLambda
	KindCoords1D
	KindCoords2D
)

// DefaultCycle is the sampling interval in sequence seconds
const DefaultCycle = 1.0 / 64

const eps = 1e-9

// Sample is a (time, value) pair with value in [0,1]
type Sample struct {
	Time  float64
	Value float64
}

// Point is a coordinate of a 2-D curve: position in function space and value
type Point struct {
	X float64
	V float64
}

// Mod is a controller curve
type Mod struct {
	Kind        Kind
	Value       float64
	Fn          func(pos float64) float64
	Points      []Point
	Interpolate bool
	Cycle       float64
}

// Scalar is a constant value
func Scalar(v float64) *Mod {
	return &Mod{Kind: KindScalar, Value: v}
}

// Lambda samples fn every cycle seconds
func Lambda(fn func(pos float64) float64, cycle float64) *Mod {
	return &Mod{Kind: KindLambda, Fn: fn, Cycle: cycle}
}

// Coords1D spreads values evenly over [0,1] and interpolates between them
func Coords1D(values []float64, cycle float64) *Mod {
	pts := make([]Point, len(values))
	for i, v := range values {
		x := 0.0
		if len(values) > 1 {
			x = float64(i) / float64(len(values)-1)
		}
		pts[i] = Point{X: x, V: v}
	}
	return &Mod{Kind: KindCoords1D, Points: pts, Interpolate: true, Cycle: cycle}
}

// Coords2D is a curve through explicit points. Without interpolation each
// point is emitted as a step.
func Coords2D(points []Point, interpolate bool, cycle float64) *Mod {
	pts := append([]Point(nil), points...)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
	return &Mod{Kind: KindCoords2D, Points: pts, Interpolate: interpolate, Cycle: cycle}
}

func (m *Mod) cycle() float64 {
	if m.Cycle > 0 {
		return m.Cycle
	}
	return DefaultCycle
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return theory.Clamp(v, 0, 1)
}

// Sample materialises the curve over [absStart, absStart+absDur], mapping
// that window onto [fnStart, fnEnd] of the curve's own domain.
func (m *Mod) Sample(absStart, absDur, fnStart, fnEnd float64) []Sample {
	switch m.Kind {
	case KindScalar:
		return []Sample{{Time: absStart, Value: unit(m.Value)}}
	case KindLambda:
		if m.Fn == nil {
			return nil
		}
		return m.grid(absStart, absDur, fnStart, fnEnd, func(pos float64) (float64, bool) {
			return m.Fn(pos), true
		})
	case KindCoords1D, KindCoords2D:
		if len(m.Points) == 0 {
			return nil
		}
		if !m.Interpolate {
			return m.steps(absStart, absDur, fnStart, fnEnd)
		}
		return m.grid(absStart, absDur, fnStart, fnEnd, m.interpolate)
	}
	return nil
}

// grid samples at a fixed cycle; eval returning false ends the curve after
// that sample.
func (m *Mod) grid(absStart, absDur, fnStart, fnEnd float64, eval func(pos float64) (float64, bool)) []Sample {
	if absDur <= 0 {
		v, _ := eval(fnStart)
		return []Sample{{Time: absStart, Value: unit(v)}}
	}
	cycle := m.cycle()
	n := int(math.Floor(absDur/cycle + eps))
	step := (fnEnd - fnStart) / (absDur / cycle)
	out := make([]Sample, 0, n+1)
	for k := 0; k <= n; k++ {
		v, more := eval(fnStart + float64(k)*step)
		out = append(out, Sample{Time: absStart + float64(k)*cycle, Value: unit(v)})
		if !more {
			break
		}
	}
	return out
}

// interpolate returns the value at pos; false once pos is past the last point
func (m *Mod) interpolate(pos float64) (float64, bool) {
	pts := m.Points
	if pos <= pts[0].X {
		return pts[0].V, true
	}
	last := pts[len(pts)-1]
	if pos > last.X+eps {
		return last.V, false
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].X >= pos })
	if i >= len(pts) {
		return last.V, true
	}
	a, b := pts[i-1], pts[i]
	if b.X-a.X <= eps {
		return b.V, true
	}
	f := (pos - a.X) / (b.X - a.X)
	return a.V + f*(b.V-a.V), true
}

func (m *Mod) steps(absStart, absDur, fnStart, fnEnd float64) []Sample {
	var out []Sample
	span := fnEnd - fnStart
	for _, p := range m.Points {
		if p.X < fnStart-eps || p.X > fnEnd+eps {
			continue
		}
		t := absStart
		if span > eps {
			t += (p.X - fnStart) / span * absDur
		}
		out = append(out, Sample{Time: t, Value: unit(p.V)})
	}
	return out
}
