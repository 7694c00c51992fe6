package render

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/ramplab/server/pkg/colormap"
	"github.com/ramplab/server/pkg/ramp"
)

func testColormap(t *testing.T) colormap.LinearColormap {
	t.Helper()
	built, err := ramp.Build(ramp.NewSweep(300, 0), 11)
	if err != nil {
		t.Fatalf("ramp build failed: %v", err)
	}
	return colormap.FromRamp(built)
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	return img
}

func TestRenderSwatch(t *testing.T) {
	t.Parallel()

	r := NewSwatchRenderer(Config{SwatchWidth: 256, SwatchHeight: 32})
	data, err := r.RenderSwatch(testColormap(t), 256, 32)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	img := decodePNG(t, data)
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 32 {
		t.Fatalf("unexpected dimensions: %v", img.Bounds())
	}

	// Left edge is the ramp start (black), right edge the ramp end
	// (white).
	lr, lg, lb, _ := img.At(0, 16).RGBA()
	if lr>>8 != 0 || lg>>8 != 0 || lb>>8 != 0 {
		t.Errorf("left edge not black: (%d,%d,%d)", lr>>8, lg>>8, lb>>8)
	}
	rr, rg, rb, _ := img.At(255, 16).RGBA()
	if rr>>8 != 255 || rg>>8 != 255 || rb>>8 != 255 {
		t.Errorf("right edge not white: (%d,%d,%d)", rr>>8, rg>>8, rb>>8)
	}
}

func TestRenderSwatchCustomSize(t *testing.T) {
	t.Parallel()

	// A size different from the pooled default takes the fresh-context
	// path.
	r := NewSwatchRenderer(Config{SwatchWidth: 256, SwatchHeight: 32})
	data, err := r.RenderSwatch(testColormap(t), 64, 8)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	img := decodePNG(t, data)
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 8 {
		t.Fatalf("unexpected dimensions: %v", img.Bounds())
	}
}

func TestRenderSwatchReuse(t *testing.T) {
	t.Parallel()

	// Pooled contexts must not leak pixels between renders.
	r := NewSwatchRenderer(Config{SwatchWidth: 128, SwatchHeight: 16})
	cm := testColormap(t)

	first, err := r.RenderSwatch(cm, 128, 16)
	if err != nil {
		t.Fatalf("first render failed: %v", err)
	}
	second, err := r.RenderSwatch(cm, 128, 16)
	if err != nil {
		t.Fatalf("second render failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("repeated renders differ")
	}
}

func TestRenderComparison(t *testing.T) {
	t.Parallel()

	rule := ramp.NewSweep(300, 0)
	dense, err := ramp.Build(rule, 256)
	if err != nil {
		t.Fatalf("dense build failed: %v", err)
	}
	reduced, err := ramp.Reduce(rule, 8)
	if err != nil {
		t.Fatalf("reduce failed: %v", err)
	}

	r := NewSwatchRenderer(Config{SwatchWidth: 256, SwatchHeight: 64})
	data, err := r.RenderComparison(colormap.FromRamp(dense), colormap.FromRamp(reduced), 256, 64)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	img := decodePNG(t, data)
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 64 {
		t.Fatalf("unexpected dimensions: %v", img.Bounds())
	}

	// Both halves start black and end white.
	for _, y := range []int{8, 56} {
		lr, lg, lb, _ := img.At(0, y).RGBA()
		if lr>>8 != 0 || lg>>8 != 0 || lb>>8 != 0 {
			t.Errorf("row %d left edge not black", y)
		}
		rr, rg, rb, _ := img.At(255, y).RGBA()
		if rr>>8 != 255 || rg>>8 != 255 || rb>>8 != 255 {
			t.Errorf("row %d right edge not white", y)
		}
	}
}
