// Package colormap provides render-side color lookup for built ramps
// and a few curated reference tables.
package colormap

import (
	"image/color"

	"github.com/ramplab/server/pkg/colorspace"
	"github.com/ramplab/server/pkg/ramp"
)

// Colormap maps normalized values [0, 1] to colors.
type Colormap interface {
	At(t float64) color.Color
	AtIndex(i int) color.Color
}

// LinearColormap interpolates linearly between uniformly spaced byte
// colors. It is the cheap lookup used for rasterization; perceptual
// interpolation happens earlier, when the ramp is built.
type LinearColormap struct {
	colors []color.RGBA
}

// New returns a colormap over the given colors. The slice must not be
// empty.
func New(colors []color.RGBA) LinearColormap {
	return LinearColormap{colors: colors}
}

// FromRamp quantizes a built ramp to bytes for rasterization.
func FromRamp(r ramp.Ramp) LinearColormap {
	colors := make([]color.RGBA, len(r))
	for i, s := range r {
		cr, cg, cb := s.Bytes()
		colors[i] = color.RGBA{R: cr, G: cg, B: cb, A: 255}
	}
	return LinearColormap{colors: colors}
}

// Table exposes the colormap as an input table for perceptual
// resampling: scalars are uniform over [0, 1] and channels are scaled
// back to floats.
func (c LinearColormap) Table() ramp.Ramp {
	out := make(ramp.Ramp, len(c.colors))
	for i, col := range c.colors {
		out[i] = ramp.Sample{
			Scalar: float64(i) / float64(len(c.colors)-1),
			Color: colorspace.RGB{
				R: float64(col.R) / 255.0,
				G: float64(col.G) / 255.0,
				B: float64(col.B) / 255.0,
			},
		}
	}
	return out
}

// At returns the color at position t (0-1).
func (c LinearColormap) At(t float64) color.Color {
	if t <= 0 {
		return c.colors[0]
	}
	if t >= 1 {
		return c.colors[len(c.colors)-1]
	}

	idx := t * float64(len(c.colors)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(c.colors) {
		upper = len(c.colors) - 1
	}

	frac := idx - float64(lower)
	return interpolate(c.colors[lower], c.colors[upper], frac)
}

// AtIndex returns color at index i (wraps around).
func (c LinearColormap) AtIndex(i int) color.Color {
	return c.colors[i%len(c.colors)]
}

func interpolate(c1, c2 color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c1.R) + t*(float64(c2.R)-float64(c1.R))),
		G: uint8(float64(c1.G) + t*(float64(c2.G)-float64(c1.G))),
		B: uint8(float64(c1.B) + t*(float64(c2.B)-float64(c1.B))),
		A: 255,
	}
}

// Viridis reference table (matplotlib viridis)
var Viridis = LinearColormap{
	colors: []color.RGBA{
		{68, 1, 84, 255},
		{72, 35, 116, 255},
		{64, 67, 135, 255},
		{52, 94, 141, 255},
		{41, 120, 142, 255},
		{32, 144, 140, 255},
		{34, 167, 132, 255},
		{68, 190, 112, 255},
		{121, 209, 81, 255},
		{189, 222, 38, 255},
		{253, 231, 37, 255},
	},
}

// Plasma reference table
var Plasma = LinearColormap{
	colors: []color.RGBA{
		{13, 8, 135, 255},
		{75, 3, 161, 255},
		{125, 3, 168, 255},
		{168, 34, 150, 255},
		{203, 70, 121, 255},
		{229, 107, 93, 255},
		{248, 148, 65, 255},
		{253, 195, 40, 255},
		{240, 249, 33, 255},
	},
}

// Inferno reference table
var Inferno = LinearColormap{
	colors: []color.RGBA{
		{0, 0, 4, 255},
		{40, 11, 84, 255},
		{101, 21, 110, 255},
		{159, 42, 99, 255},
		{212, 72, 66, 255},
		{245, 125, 21, 255},
		{250, 193, 39, 255},
		{252, 255, 164, 255},
	},
}

// Magma reference table
var Magma = LinearColormap{
	colors: []color.RGBA{
		{0, 0, 4, 255},
		{28, 16, 68, 255},
		{79, 18, 123, 255},
		{129, 37, 129, 255},
		{181, 54, 122, 255},
		{229, 80, 100, 255},
		{251, 135, 97, 255},
		{254, 194, 135, 255},
		{252, 253, 191, 255},
	},
}

var builtins = map[string]LinearColormap{
	"viridis": Viridis,
	"plasma":  Plasma,
	"inferno": Inferno,
	"magma":   Magma,
}

// Builtin looks up a curated reference table by name.
func Builtin(name string) (LinearColormap, bool) {
	c, ok := builtins[name]
	return c, ok
}

// BuiltinNames lists the curated reference tables in a stable order.
func BuiltinNames() []string {
	return []string{"viridis", "plasma", "inferno", "magma"}
}
