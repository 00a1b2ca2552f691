package theory

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampPitch limits a pitch to the MIDI range
func ClampPitch(p int) int { return Clamp(p, 0, 127) }

// ClampVelocity limits a velocity to the MIDI range
func ClampVelocity(v int) int { return Clamp(v, 0, 127) }

// ClampChannel limits a channel to 0..15
func ClampChannel(ch int) int { return Clamp(ch, 0, 15) }

func clampInt(v, lo, hi int) int { return Clamp(v, lo, hi) }
