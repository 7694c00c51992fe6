package ramp

import (
	"math"
	"testing"

	"github.com/ramplab/server/pkg/colorspace"
)

// squareRule is a gray ramp with value s^2, a convenient curve whose
// straight-RGB midpoint error is exactly computable by hand.
type squareRule struct{}

func (squareRule) At(x float64) (colorspace.RGB, error) {
	v := x * x
	return colorspace.RGB{R: v, G: v, B: v}, nil
}

func TestReduceCountAndEndpoints(t *testing.T) {
	t.Parallel()

	points, err := Reduce(NewSweep(300, 0), 8)
	if err != nil {
		t.Fatalf("reduce failed: %v", err)
	}
	if len(points) != 8 {
		t.Fatalf("expected 8 control points, got %d", len(points))
	}
	if points[0].Color != (colorspace.RGB{}) {
		t.Errorf("first control point %+v, want exact black", points[0].Color)
	}
	if points[7].Color != (colorspace.RGB{R: 1, G: 1, B: 1}) {
		t.Errorf("last control point %+v, want exact white", points[7].Color)
	}
	if _, err := Reduce(NewSweep(300, 0), 1); err == nil {
		t.Fatalf("expected error for target count 1")
	}
}

func TestReduceWithErrorSweep(t *testing.T) {
	t.Parallel()

	red, err := ReduceWithError(NewSweep(300, 0), 8)
	if err != nil {
		t.Fatalf("reduce failed: %v", err)
	}

	// Against the 15-point reference the worst straight-RGB midpoint
	// error of the 8-point table is exactly 60 byte units.
	if red.MaxError != 60.0 {
		t.Errorf("max error = %v, want 60.0", red.MaxError)
	}
	if len(red.Points) != 8 {
		t.Errorf("expected 8 points, got %d", len(red.Points))
	}
}

func TestEstimateErrorSquareRamp(t *testing.T) {
	t.Parallel()

	controls, err := Build(squareRule{}, 5)
	if err != nil {
		t.Fatalf("controls build failed: %v", err)
	}
	reference, err := Build(squareRule{}, 9)
	if err != nil {
		t.Fatalf("reference build failed: %v", err)
	}

	// Control bytes are 0,16,64,143,255; the reference odd samples are
	// 4,36,100,195. Midpoint averages give errors 4, 4, 3.5, 4.
	got, err := EstimateError(controls, reference)
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if got != 4.0 {
		t.Errorf("max error = %v, want 4.0", got)
	}
}

func TestEstimateErrorHalfIntegers(t *testing.T) {
	t.Parallel()

	// Byte quantization happens before the midpoint average, so the
	// average of two integers can end in .5 and the estimate can too.
	controls := Ramp{
		{Scalar: 0, Color: colorspace.RGB{}},
		{Scalar: 1, Color: colorspace.RGB{R: 17.0 / 255.0, G: 17.0 / 255.0, B: 17.0 / 255.0}},
	}
	reference := Ramp{
		{Scalar: 0, Color: colorspace.RGB{}},
		{Scalar: 0.5, Color: colorspace.RGB{R: 33.0 / 255.0, G: 33.0 / 255.0, B: 33.0 / 255.0}},
		{Scalar: 1, Color: colorspace.RGB{R: 17.0 / 255.0, G: 17.0 / 255.0, B: 17.0 / 255.0}},
	}
	got, err := EstimateError(controls, reference)
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if got != 24.5 {
		t.Errorf("max error = %v, want 24.5", got)
	}
}

func TestEstimateErrorValidation(t *testing.T) {
	t.Parallel()

	ok := Ramp{
		{Scalar: 0, Color: colorspace.RGB{}},
		{Scalar: 1, Color: colorspace.RGB{R: 1, G: 1, B: 1}},
	}
	if _, err := EstimateError(Ramp{{Scalar: 0}}, ok); err == nil {
		t.Errorf("expected error for a single control point")
	}
	if _, err := EstimateError(ok, Ramp{{Scalar: 0}}); err == nil {
		t.Errorf("expected error for an invalid reference")
	}
}

func TestSubsampleNestedGrid(t *testing.T) {
	t.Parallel()

	rule := NewSweep(300, 0)
	dense, err := Build(rule, 21)
	if err != nil {
		t.Fatalf("dense build failed: %v", err)
	}
	direct, err := Build(rule, 11)
	if err != nil {
		t.Fatalf("direct build failed: %v", err)
	}

	sub, err := Subsample(dense, 11)
	if err != nil {
		t.Fatalf("subsample failed: %v", err)
	}

	// 21-point and 11-point grids nest, so subsampling hits dense
	// samples exactly and reproduces the direct build.
	for i := range direct {
		if sub[i].Color != direct[i].Color {
			t.Errorf("sample %d: subsampled %+v, direct %+v", i, sub[i].Color, direct[i].Color)
		}
	}
}

func TestSubsampleNonNestedGrid(t *testing.T) {
	t.Parallel()

	dense, err := Build(NewSweep(300, 0), 11)
	if err != nil {
		t.Fatalf("dense build failed: %v", err)
	}
	sub, err := Subsample(dense, 8)
	if err != nil {
		t.Fatalf("subsample failed: %v", err)
	}
	if err := sub.Validate(); err != nil {
		t.Fatalf("subsampled ramp invalid: %v", err)
	}
	if sub[0].Scalar != 0 || sub[7].Scalar != 1 {
		t.Errorf("scalar span [%g, %g], want [0, 1]", sub[0].Scalar, sub[7].Scalar)
	}

	// 1/7 falls between dense samples 0.1 and 0.2; the lookup result
	// stays inside the channel-wise envelope of its bracket.
	lo, hi := dense[1].Color, dense[2].Color
	got := sub[1].Color
	for _, c := range []struct {
		name    string
		v, a, b float64
	}{
		{"R", got.R, lo.R, hi.R},
		{"G", got.G, lo.G, hi.G},
		{"B", got.B, lo.B, hi.B},
	} {
		min, max := math.Min(c.a, c.b), math.Max(c.a, c.b)
		if c.v < min-1e-12 || c.v > max+1e-12 {
			t.Errorf("channel %s = %g outside bracket [%g, %g]", c.name, c.v, min, max)
		}
	}

	if _, err := Subsample(dense, 1); err == nil {
		t.Errorf("expected error for target count 1")
	}
}
