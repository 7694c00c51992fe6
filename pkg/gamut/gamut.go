// Package gamut decides whether colors are displayable and clamps
// chroma back inside the safe sRGB gamut.
package gamut

import (
	"github.com/ramplab/server/pkg/colorspace"
)

// clampIterations halves the search interval twelve times, which pins
// the returned scale to a 1/4096 grid (~0.05% precision).
const clampIterations = 12

// safetyFraction scales the channel spread into the margin each channel
// must keep from 0 and 1.
const safetyFraction = 0.05

// InGamut reports whether every channel lies in [0, 1].
func InGamut(c colorspace.RGB) bool {
	return c.R >= 0 && c.R <= 1 &&
		c.G >= 0 && c.G <= 1 &&
		c.B >= 0 && c.B <= 1
}

// Safe is stricter than InGamut: every channel must keep a margin of
// 0.05*(max-min) from both 0 and 1. Colors that hug the gamut edge are
// numerically unstable under interpolation and display rounding.
func Safe(c colorspace.RGB) bool {
	max := c.R
	if c.G > max {
		max = c.G
	}
	if c.B > max {
		max = c.B
	}
	min := c.R
	if c.G < min {
		min = c.G
	}
	if c.B < min {
		min = c.B
	}
	margin := safetyFraction * (max - min)
	return min >= margin && max <= 1.0-margin
}

// ClampChroma finds the largest scale in [0, 1] such that
// Lab(targetL, scale*dirA, scale*dirB) evaluates to a safe RGB color,
// and returns that scale together with the color. Candidates are
// evaluated through the profile-connection-space path, the same one
// ramp reconstruction uses.
//
// The search assumes safety is monotonic in the scale: any scale below
// the returned one is also safe. That holds empirically for the sRGB
// gamut at the chroma magnitudes full-saturation hues produce, but it
// is an assumption, not a proven property of arbitrary gamuts.
//
// A returned scale of 0 with an unsafe color means even the achromatic
// axis is unsafe at targetL; callers treat that as a fatal construction
// error.
func ClampChroma(targetL, dirA, dirB float64) (float64, colorspace.RGB) {
	lo, hi := 0.0, 1.0
	for i := 0; i < clampIterations; i++ {
		mid := (lo + hi) / 2.0
		rgb := colorspace.LabPCSToRGB(colorspace.Lab{L: targetL, A: mid * dirA, B: mid * dirB})
		if Safe(rgb) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, colorspace.LabPCSToRGB(colorspace.Lab{L: targetL, A: lo * dirA, B: lo * dirB})
}
