package ramp

import (
	"fmt"
	"math"

	"github.com/ramplab/server/pkg/colorspace"
)

// Reduction is a control-point table together with the worst-case error
// a downstream consumer pays for interpolating it in straight RGB
// instead of Lab, in 8-bit channel units.
type Reduction struct {
	Points   Ramp
	MaxError float64
}

// Reduce derives a control-point table by sampling the generating rule
// at targetCount uniformly spaced scalars. Sampling the rule rather
// than an already-built dense ramp keeps every control point exact.
// The reference use case requests powers of two from 8 to 1024, but any
// count of at least 2 is valid.
func Reduce(rule Rule, targetCount int) (Ramp, error) {
	points, err := Build(rule, targetCount)
	if err != nil {
		return nil, fmt.Errorf("failed to reduce to %d points: %w", targetCount, err)
	}
	return points, nil
}

// Subsample is the dense-ramp variant of Reduce for callers that only
// hold a ramp, not its rule. Control points are read at targetCount
// uniform scalars; when the grids nest the values are exact, otherwise
// they come from a linear lookup between the bracketing samples.
func Subsample(dense Ramp, targetCount int) (Ramp, error) {
	if targetCount < 2 {
		return nil, fmt.Errorf("target count %d too small: need at least 2 points", targetCount)
	}
	if err := dense.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dense ramp: %w", err)
	}
	out := make(Ramp, targetCount)
	for i := range out {
		x := float64(i) / float64(targetCount-1)
		out[i] = Sample{Scalar: x, Color: lookup(dense, x)}
	}
	return out, nil
}

// EstimateError measures the fidelity lost by interpolating the control
// points in straight RGB space. For every gap between consecutive
// control points the RGB midpoint average is compared per channel with
// the reference ramp's color at that midpoint scalar; the maximum
// absolute difference is returned in 8-bit units. Samples are quantized
// to bytes before comparison, so the midpoint average of two integers
// can end in .5 and so can the result.
func EstimateError(controls, reference Ramp) (float64, error) {
	if len(controls) < 2 {
		return 0, fmt.Errorf("need at least 2 control points, got %d", len(controls))
	}
	if err := reference.Validate(); err != nil {
		return 0, fmt.Errorf("invalid reference ramp: %w", err)
	}

	worst := 0.0
	for i := 0; i < len(controls)-1; i++ {
		mid := (controls[i].Scalar + controls[i+1].Scalar) / 2.0

		r1, g1, b1 := controls[i].Bytes()
		r2, g2, b2 := controls[i+1].Bytes()
		rr, rg, rb := Sample{Color: lookup(reference, mid)}.Bytes()

		for _, d := range []float64{
			math.Abs((float64(r1)+float64(r2))/2.0 - float64(rr)),
			math.Abs((float64(g1)+float64(g2))/2.0 - float64(rg)),
			math.Abs((float64(b1)+float64(b2))/2.0 - float64(rb)),
		} {
			if d > worst {
				worst = d
			}
		}
	}
	return worst, nil
}

// ReduceWithError reduces the rule to targetCount control points and
// estimates their RGB interpolation error against a reference built
// from the same rule at 2*targetCount-1 samples, whose grid contains
// every midpoint exactly.
func ReduceWithError(rule Rule, targetCount int) (Reduction, error) {
	points, err := Reduce(rule, targetCount)
	if err != nil {
		return Reduction{}, err
	}
	reference, err := Build(rule, 2*targetCount-1)
	if err != nil {
		return Reduction{}, fmt.Errorf("failed to build error reference: %w", err)
	}
	maxErr, err := EstimateError(points, reference)
	if err != nil {
		return Reduction{}, err
	}
	return Reduction{Points: points, MaxError: maxErr}, nil
}

// lookup evaluates a ramp at an arbitrary scalar. Exact sample hits are
// returned as-is; scalars between samples interpolate the neighboring
// colors linearly in RGB; scalars outside the ramp's span clamp to the
// end samples.
func lookup(r Ramp, x float64) colorspace.RGB {
	if x <= r[0].Scalar {
		return r[0].Color
	}
	if x >= r[len(r)-1].Scalar {
		return r[len(r)-1].Color
	}

	hi := 1
	for hi < len(r)-1 && r[hi].Scalar < x {
		hi++
	}
	lo := hi - 1

	if math.Abs(r[lo].Scalar-x) < 1e-9 {
		return r[lo].Color
	}
	if math.Abs(r[hi].Scalar-x) < 1e-9 {
		return r[hi].Color
	}

	t := (x - r[lo].Scalar) / (r[hi].Scalar - r[lo].Scalar)
	a, b := r[lo].Color, r[hi].Color
	return colorspace.RGB{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
	}
}
