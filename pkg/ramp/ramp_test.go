package ramp

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/ramplab/server/pkg/colorspace"
)

func assertBytes(t *testing.T, s Sample, wantR, wantG, wantB uint8) {
	t.Helper()
	r, g, b := s.Bytes()
	if r != wantR || g != wantG || b != wantB {
		t.Errorf("scalar %g: bytes (%d,%d,%d), want (%d,%d,%d)", s.Scalar, r, g, b, wantR, wantG, wantB)
	}
}

// The published control-point table for the 300-to-0 hue sweep. Eleven
// uniformly spaced scalars must reproduce these byte triples exactly.
func TestSweepPublishedTriples(t *testing.T) {
	t.Parallel()

	want := [11][3]uint8{
		{0, 0, 0},
		{46, 4, 76},
		{63, 7, 145},
		{8, 66, 165},
		{5, 106, 106},
		{7, 137, 69},
		{8, 168, 26},
		{84, 194, 9},
		{196, 206, 10},
		{252, 220, 197},
		{255, 255, 255},
	}

	built, err := Build(NewSweep(300, 0), 11)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(built) != 11 {
		t.Fatalf("expected 11 samples, got %d", len(built))
	}
	for i, s := range built {
		assertBytes(t, s, want[i][0], want[i][1], want[i][2])
	}
}

func TestSweepBoundaryExactness(t *testing.T) {
	t.Parallel()

	rule := NewSweep(300, 0)
	black, err := rule.At(0)
	if err != nil {
		t.Fatalf("At(0): %v", err)
	}
	if black != (colorspace.RGB{}) {
		t.Errorf("At(0) = %+v, want exact black", black)
	}

	white, err := rule.At(1)
	if err != nil {
		t.Fatalf("At(1): %v", err)
	}
	if white != (colorspace.RGB{R: 1, G: 1, B: 1}) {
		t.Errorf("At(1) = %+v, want exact white", white)
	}

	// Outside [0,1] clamps rather than faulting.
	below, _ := rule.At(-0.5)
	above, _ := rule.At(1.5)
	if below != (colorspace.RGB{}) || above != (colorspace.RGB{R: 1, G: 1, B: 1}) {
		t.Errorf("out-of-range scalars should clamp to black/white")
	}
}

func TestSweepMonotonicLuminance(t *testing.T) {
	t.Parallel()

	built, err := Build(NewSweep(300, 0), 101)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	prev := -1.0
	for i, s := range built {
		l := colorspace.RGBToLab(s.Color).L
		if l < prev-1e-9 {
			t.Fatalf("luminance decreased at sample %d: %g after %g", i, l, prev)
		}
		// The profile-connection-space evaluation shifts L a little
		// from the 100*s target; the shift stays small.
		if d := math.Abs(l - 100.0*s.Scalar); d > 3.0 {
			t.Errorf("sample %d: L=%g drifted %g from target %g", i, l, d, 100.0*s.Scalar)
		}
		prev = l
	}
}

func TestSweepScalarDomain(t *testing.T) {
	t.Parallel()

	built, err := Build(NewSweep(120, 480), 64)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := built.Validate(); err != nil {
		t.Fatalf("generated ramp invalid: %v", err)
	}
	if built[0].Scalar != 0.0 || built[len(built)-1].Scalar != 1.0 {
		t.Errorf("scalar span [%g, %g], want [0, 1]", built[0].Scalar, built[len(built)-1].Scalar)
	}
}

func TestBuildResolutionConsistency(t *testing.T) {
	t.Parallel()

	rule := NewSweep(300, 0)
	coarse, err := Build(rule, 11)
	if err != nil {
		t.Fatalf("coarse build failed: %v", err)
	}
	fine, err := Build(rule, 21)
	if err != nil {
		t.Fatalf("fine build failed: %v", err)
	}

	// The 21-point grid contains the 11-point grid, so every other
	// fine sample is a coarse sample.
	for i, s := range coarse {
		f := fine[2*i]
		if math.Abs(f.Scalar-s.Scalar) > 1e-12 {
			t.Fatalf("grid mismatch at %d: %g vs %g", i, f.Scalar, s.Scalar)
		}
		if math.Abs(f.Color.R-s.Color.R) > 1e-12 ||
			math.Abs(f.Color.G-s.Color.G) > 1e-12 ||
			math.Abs(f.Color.B-s.Color.B) > 1e-12 {
			t.Errorf("sample %d differs between resolutions: %+v vs %+v", i, f.Color, s.Color)
		}
	}
}

func TestBuildRejectsTinyResolution(t *testing.T) {
	t.Parallel()

	if _, err := Build(NewSweep(300, 0), 1); err == nil {
		t.Fatalf("expected error for resolution 1")
	}
}

type failingRule struct{}

func (failingRule) At(x float64) (colorspace.RGB, error) {
	return colorspace.RGB{}, fmt.Errorf("synthetic: %w", ErrGamutExhausted)
}

func TestBuildPropagatesRuleError(t *testing.T) {
	t.Parallel()

	_, err := Build(failingRule{}, 8)
	if err == nil {
		t.Fatalf("expected error from failing rule")
	}
	if !errors.Is(err, ErrGamutExhausted) {
		t.Errorf("error chain lost the sentinel: %v", err)
	}
}

func TestNewTableValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		entries Ramp
	}{
		{"empty", Ramp{}},
		{"single row", Ramp{{Scalar: 0}}},
		{"unsorted", Ramp{{Scalar: 0}, {Scalar: 0.7}, {Scalar: 0.3}, {Scalar: 1}}},
		{"duplicate scalar", Ramp{{Scalar: 0}, {Scalar: 0.5}, {Scalar: 0.5}, {Scalar: 1}}},
		{"nan scalar", Ramp{{Scalar: 0}, {Scalar: math.NaN()}, {Scalar: 1}}},
		{"inf channel", Ramp{{Scalar: 0}, {Scalar: 1, Color: colorspace.RGB{R: math.Inf(1)}}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewTable(tc.entries); err == nil {
				t.Fatalf("expected construction error")
			}
		})
	}
}

func TestTableBlackRedWhite(t *testing.T) {
	t.Parallel()

	rule, err := NewTable(Ramp{
		{Scalar: 0.0, Color: colorspace.RGB{}},
		{Scalar: 0.5, Color: colorspace.RGB{R: 1}},
		{Scalar: 1.0, Color: colorspace.RGB{R: 1, G: 1, B: 1}},
	})
	if err != nil {
		t.Fatalf("table construction failed: %v", err)
	}

	built, err := Build(rule, 5)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	want := [5][3]uint8{
		{0, 0, 0},
		{120, 27, 13},
		{250, 0, 7},
		{255, 158, 129},
		{255, 255, 255},
	}
	for i, s := range built {
		assertBytes(t, s, want[i][0], want[i][1], want[i][2])
	}

	// A black-terminated table is exactly black at 0, not just to byte
	// precision.
	if built[0].Color != (colorspace.RGB{}) {
		t.Errorf("table ramp at 0 = %+v, want exact black", built[0].Color)
	}
}

func TestTablePartialSpanFallbacks(t *testing.T) {
	t.Parallel()

	rule, err := NewTable(Ramp{
		{Scalar: 0.25, Color: colorspace.RGB{B: 1}},
		{Scalar: 0.75, Color: colorspace.RGB{R: 1, G: 1}},
	})
	if err != nil {
		t.Fatalf("table construction failed: %v", err)
	}

	// Negative scalars are pure black.
	c, _ := rule.At(-0.1)
	if c != (colorspace.RGB{}) {
		t.Errorf("At(-0.1) = %+v, want exact black", c)
	}

	// Scalars beyond the last entry are pure white.
	c, _ = rule.At(0.8)
	if c != (colorspace.RGB{R: 1, G: 1, B: 1}) {
		t.Errorf("At(0.8) = %+v, want exact white", c)
	}

	// The first entry itself, evaluated through the reconstruction
	// path.
	c, _ = rule.At(0.25)
	assertBytes(t, Sample{Scalar: 0.25, Color: c}, 91, 0, 255)

	// Below the first entry but above zero extrapolates (t < 0) and
	// clips at the gamut edge.
	c, _ = rule.At(0.0)
	assertBytes(t, Sample{Scalar: 0, Color: c}, 0, 0, 255)
}

func TestTableEntriesDetached(t *testing.T) {
	t.Parallel()

	in := Ramp{
		{Scalar: 0, Color: colorspace.RGB{}},
		{Scalar: 1, Color: colorspace.RGB{R: 1, G: 1, B: 1}},
	}
	rule, err := NewTable(in)
	if err != nil {
		t.Fatalf("table construction failed: %v", err)
	}

	in[0].Color = colorspace.RGB{R: 0.5}
	if got := rule.Entries()[0].Color; got != (colorspace.RGB{}) {
		t.Errorf("rule shares storage with caller: %+v", got)
	}
}

func TestSampleBytes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      colorspace.RGB
		r, g, b uint8
	}{
		{colorspace.RGB{R: -0.1, G: 0.5, B: 1.2}, 0, 128, 255},
		{colorspace.RGB{R: 0.498, G: 0.499, B: 0.5}, 127, 127, 128},
		{colorspace.RGB{R: 1, G: 1, B: 1}, 255, 255, 255},
	}
	for _, tc := range cases {
		assertBytes(t, Sample{Color: tc.in}, tc.r, tc.g, tc.b)
	}
}
