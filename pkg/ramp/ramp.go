// Package ramp builds dense perceptual color ramps from generating
// rules and reduces them to small control-point tables.
package ramp

import (
	"errors"
	"fmt"
	"math"

	"github.com/ramplab/server/pkg/colorspace"
	"github.com/ramplab/server/pkg/gamut"
)

// ErrGamutExhausted reports that even zero chroma was unsafe at the
// requested luminance. Valid luminance targets strictly inside (0, 100)
// cannot trigger it; hitting it means the construction is misconfigured.
var ErrGamutExhausted = errors.New("no safe chroma scale at target luminance")

// Sample is one scalar-to-color entry of a ramp.
type Sample struct {
	Scalar float64
	Color  colorspace.RGB
}

// Bytes returns the sample color quantized to 8-bit channels. Channels
// are clipped to [0, 1] first and rounded half-up.
func (s Sample) Bytes() (r, g, b uint8) {
	c := colorspace.Clamp01(s.Color)
	return uint8(math.Floor(c.R*255.0 + 0.5)),
		uint8(math.Floor(c.G*255.0 + 0.5)),
		uint8(math.Floor(c.B*255.0 + 0.5))
}

// Ramp is an ordered sequence of samples with strictly increasing
// scalars. Generated ramps cover exactly [0, 1] at their endpoints.
type Ramp []Sample

// Validate checks the ordering invariant: at least two samples, finite
// values, strictly increasing scalars. Ties and descents are
// construction errors, not recoverable conditions.
func (r Ramp) Validate() error {
	if len(r) < 2 {
		return fmt.Errorf("ramp needs at least 2 samples, got %d", len(r))
	}
	for i, s := range r {
		if !isFinite(s.Scalar) || !isFinite(s.Color.R) || !isFinite(s.Color.G) || !isFinite(s.Color.B) {
			return fmt.Errorf("non-finite value at row %d", i)
		}
		if i == 0 {
			continue
		}
		prev := r[i-1].Scalar
		if s.Scalar == prev {
			return fmt.Errorf("duplicate scalar %g at row %d", s.Scalar, i)
		}
		if s.Scalar < prev {
			return fmt.Errorf("samples not sorted by scalar at row %d (%g after %g)", i, s.Scalar, prev)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Rule is a generating function mapping a scalar to a color. Rules are
// pure: the same input always yields the same color.
type Rule interface {
	At(x float64) (colorspace.RGB, error)
}

// Build samples a rule at resolution uniformly spaced scalars over
// [0, 1] and returns the resulting ramp. Resolution must be at least 2.
func Build(rule Rule, resolution int) (Ramp, error) {
	if resolution < 2 {
		return nil, fmt.Errorf("resolution %d too small: need at least 2 samples", resolution)
	}
	out := make(Ramp, resolution)
	for i := range out {
		x := float64(i) / float64(resolution-1)
		c, err := rule.At(x)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate sample %d at scalar %g: %w", i, x, err)
		}
		out[i] = Sample{Scalar: x, Color: c}
	}
	return out, nil
}

// SweepRule generates a ramp by rotating hue from StartHue to EndHue
// (degrees, the sweep may decrease) while forcing luminance to rise
// linearly with the scalar. Each hue is seeded at full saturation and
// value, its Lab chroma direction is extracted, and the chroma is
// clamped back to the safe gamut at L = 100*scalar.
type SweepRule struct {
	StartHue float64
	EndHue   float64
}

// NewSweep returns a hue-sweep rule.
func NewSweep(startHue, endHue float64) *SweepRule {
	return &SweepRule{StartHue: startHue, EndHue: endHue}
}

// At evaluates the sweep at scalar s. Scalars at or below 0 are pure
// black and at or above 1 pure white.
func (r *SweepRule) At(s float64) (colorspace.RGB, error) {
	if s <= 0 {
		return colorspace.RGB{}, nil
	}
	if s >= 1 {
		return colorspace.RGB{R: 1, G: 1, B: 1}, nil
	}

	hue := r.StartHue + (r.EndHue-r.StartHue)*s
	seed := colorspace.HSVToRGB(colorspace.HSV{H: hue, S: 1, V: 1})
	lab := colorspace.RGBToLab(seed)

	targetL := 100.0 * s
	scale, rgb := gamut.ClampChroma(targetL, lab.A, lab.B)
	if scale == 0 && !gamut.Safe(rgb) {
		return colorspace.RGB{}, fmt.Errorf("hue %g at L=%g: %w", hue, targetL, ErrGamutExhausted)
	}
	return rgb, nil
}

// TableRule generates a ramp by piecewise-linear interpolation of an
// input control table. Interpolation happens in Lab, not RGB, so the
// perceived brightness between control points stays smooth.
type TableRule struct {
	entries Ramp
	labs    []colorspace.Lab
}

// NewTable validates the input table (strictly increasing scalars, at
// least two rows) and precomputes the Lab coordinates of its entries.
// The table is copied; later mutation of the argument has no effect.
func NewTable(entries Ramp) (*TableRule, error) {
	if err := entries.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input table: %w", err)
	}
	own := make(Ramp, len(entries))
	copy(own, entries)

	labs := make([]colorspace.Lab, len(own))
	for i, s := range own {
		labs[i] = colorspace.RGBToLab(s.Color)
	}
	return &TableRule{entries: own, labs: labs}, nil
}

// Entries returns a copy of the rule's input table.
func (r *TableRule) Entries() Ramp {
	out := make(Ramp, len(r.entries))
	copy(out, r.entries)
	return out
}

// At evaluates the table at scalar x. Scalars below 0 fall back to pure
// black and scalars beyond the last entry to pure white. Inside the
// table the bracketing interval is found by linear scan (first interval
// whose high scalar is >= x), the entry Lab coordinates are linearly
// interpolated, and the result is converted back to RGB and clipped to
// the displayable range. For partial-span tables x can land below the
// first entry, which extrapolates (t < 0) and clips at the gamut edge.
func (r *TableRule) At(x float64) (colorspace.RGB, error) {
	if x < 0 {
		return colorspace.RGB{}, nil
	}
	if x > r.entries[len(r.entries)-1].Scalar {
		return colorspace.RGB{R: 1, G: 1, B: 1}, nil
	}

	hi := 1
	for hi < len(r.entries)-1 && r.entries[hi].Scalar < x {
		hi++
	}
	lo := hi - 1

	loS := r.entries[lo].Scalar
	hiS := r.entries[hi].Scalar
	t := (x - loS) / (hiS - loS)

	la, lb := r.labs[lo], r.labs[hi]
	lab := colorspace.Lab{
		L: la.L + (lb.L-la.L)*t,
		A: la.A + (lb.A-la.A)*t,
		B: la.B + (lb.B-la.B)*t,
	}
	return colorspace.Clamp01(colorspace.LabPCSToRGB(lab)), nil
}
