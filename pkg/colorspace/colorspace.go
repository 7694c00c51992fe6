// Package colorspace provides color records and conversions between
// sRGB, HSV, XYZ and CIE Lab.
package colorspace

import "math"

// RGB is a display sRGB color. Channels are nominally in [0, 1];
// out-of-range values are representable so gamut checks can see them.
type RGB struct {
	R, G, B float64
}

// Lab is a CIE L*a*b* color. L is in [0, 100].
type Lab struct {
	L, A, B float64
}

// XYZ is a linear-light tristimulus color, the conversion pivot.
type XYZ struct {
	X, Y, Z float64
}

// HSV is a hue/saturation/value color. Hue is in degrees and wraps at 360.
type HSV struct {
	H, S, V float64
}

// Reference white points.
var (
	// WhiteD65 is the sRGB display white.
	WhiteD65 = XYZ{X: 0.95047, Y: 1.0, Z: 1.08883}
	// WhiteD50 is the ICC profile connection space white.
	WhiteD50 = XYZ{X: 0.96422, Y: 1.0, Z: 0.82521}
)

// labEpsilon is the legacy CIE threshold between the cube-root and
// linear branches of the Lab transfer function.
const labEpsilon = 0.008856

var rgbToXYZMatrix = [3][3]float64{
	{0.412424, 0.357579, 0.180464},
	{0.212656, 0.715158, 0.0721856},
	{0.0193324, 0.119193, 0.950444},
}

var xyzToRGBMatrix = [3][3]float64{
	{3.24071, -1.53726, -0.498571},
	{-0.969258, 1.87599, 0.0415557},
	{0.0556352, -0.203996, 1.05707},
}

var bradfordMatrix = [3][3]float64{
	{0.8951, 0.2664, -0.1614},
	{-0.7502, 1.7135, 0.0367},
	{0.0389, -0.0685, 1.0296},
}

var bradfordInverse = [3][3]float64{
	{0.9869929054667123, -0.14705425642099013, 0.15996265166373122},
	{0.43230526972339456, 0.5183602715367776, 0.0492912282128556},
	{-0.008528664575177328, 0.04004282165408487, 0.9684866957875501},
}

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func linearToSRGB(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1.0/2.4) - 0.055
}

func mulMatrix(m [3][3]float64, x, y, z float64) (float64, float64, float64) {
	return m[0][0]*x + m[0][1]*y + m[0][2]*z,
		m[1][0]*x + m[1][1]*y + m[1][2]*z,
		m[2][0]*x + m[2][1]*y + m[2][2]*z
}

// RGBToXYZ converts display sRGB to tristimulus XYZ (D65 white).
func RGBToXYZ(c RGB) XYZ {
	r := srgbToLinear(c.R)
	g := srgbToLinear(c.G)
	b := srgbToLinear(c.B)
	x, y, z := mulMatrix(rgbToXYZMatrix, r, g, b)
	return XYZ{X: x, Y: y, Z: z}
}

// XYZToRGB converts tristimulus XYZ (D65 white) to display sRGB.
// Out-of-gamut input yields out-of-range channels.
func XYZToRGB(c XYZ) RGB {
	r, g, b := mulMatrix(xyzToRGBMatrix, c.X, c.Y, c.Z)
	return RGB{R: linearToSRGB(r), G: linearToSRGB(g), B: linearToSRGB(b)}
}

func labForward(t float64) float64 {
	if t > labEpsilon {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116.0
}

func labInverse(t float64) float64 {
	t3 := t * t * t
	if t3 > labEpsilon {
		return t3
	}
	return (t - 16.0/116.0) / 7.787
}

// XYZToLab converts XYZ to Lab relative to the given reference white.
func XYZToLab(c XYZ, white XYZ) Lab {
	fx := labForward(c.X / white.X)
	fy := labForward(c.Y / white.Y)
	fz := labForward(c.Z / white.Z)
	return Lab{
		L: 116.0*fy - 16.0,
		A: 500.0 * (fx - fy),
		B: 200.0 * (fy - fz),
	}
}

// LabToXYZ converts Lab to XYZ relative to the given reference white.
func LabToXYZ(c Lab, white XYZ) XYZ {
	fy := (c.L + 16.0) / 116.0
	fx := fy + c.A/500.0
	fz := fy - c.B/200.0
	return XYZ{
		X: labInverse(fx) * white.X,
		Y: labInverse(fy) * white.Y,
		Z: labInverse(fz) * white.Z,
	}
}

// RGBToLab converts display sRGB to Lab referenced to the D65 white.
// LabToRGB inverts it; the pair round-trips within 1e-3 per channel for
// in-gamut colors.
func RGBToLab(c RGB) Lab {
	return XYZToLab(RGBToXYZ(c), WhiteD65)
}

// LabToRGB converts D65-referenced Lab back to display sRGB.
func LabToRGB(c Lab) RGB {
	return XYZToRGB(LabToXYZ(c, WhiteD65))
}

// BradfordAdapt chromatically adapts an XYZ color from one reference
// white to another using the Bradford cone response transform.
func BradfordAdapt(c XYZ, from, to XYZ) XYZ {
	cr, cg, cb := mulMatrix(bradfordMatrix, c.X, c.Y, c.Z)
	fr, fg, fb := mulMatrix(bradfordMatrix, from.X, from.Y, from.Z)
	tr, tg, tb := mulMatrix(bradfordMatrix, to.X, to.Y, to.Z)
	x, y, z := mulMatrix(bradfordInverse, cr*tr/fr, cg*tg/fg, cb*tb/fb)
	return XYZ{X: x, Y: y, Z: z}
}

// LabPCSToRGB converts Lab to display sRGB the way color-managed
// pipelines evaluate Lab-authored data: the Lab values are interpreted
// against the ICC profile connection space white (D50) and the result
// is Bradford-adapted to the display white before encoding. Ramp
// reconstruction uses this path; byte tables generated through it match
// tables published by desktop color-management stacks exactly.
func LabPCSToRGB(c Lab) RGB {
	xyz := LabToXYZ(c, WhiteD50)
	return XYZToRGB(BradfordAdapt(xyz, WhiteD50, WhiteD65))
}

// HSVToRGB converts HSV to sRGB. Hue is taken modulo 360, so negative
// and >360 hues wrap.
func HSVToRGB(c HSV) RGB {
	h := math.Mod(c.H, 360.0)
	if h < 0 {
		h += 360.0
	}
	chroma := c.V * c.S
	x := chroma * (1.0 - math.Abs(math.Mod(h/60.0, 2.0)-1.0))
	m := c.V - chroma

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = chroma, x, 0
	case h < 120:
		r, g, b = x, chroma, 0
	case h < 180:
		r, g, b = 0, chroma, x
	case h < 240:
		r, g, b = 0, x, chroma
	case h < 300:
		r, g, b = x, 0, chroma
	default:
		r, g, b = chroma, 0, x
	}
	return RGB{R: r + m, G: g + m, B: b + m}
}

// RGBToHSV converts sRGB to HSV. Achromatic input has hue 0.
func RGBToHSV(c RGB) HSV {
	max := math.Max(c.R, math.Max(c.G, c.B))
	min := math.Min(c.R, math.Min(c.G, c.B))
	delta := max - min

	var h float64
	switch {
	case delta == 0:
		h = 0
	case max == c.R:
		h = 60.0 * math.Mod((c.G-c.B)/delta, 6.0)
	case max == c.G:
		h = 60.0 * ((c.B-c.R)/delta + 2.0)
	default:
		h = 60.0 * ((c.R-c.G)/delta + 4.0)
	}
	if h < 0 {
		h += 360.0
	}

	s := 0.0
	if max > 0 {
		s = delta / max
	}
	return HSV{H: h, S: s, V: max}
}

// Clamp01 clips every channel to [0, 1].
func Clamp01(c RGB) RGB {
	return RGB{
		R: math.Min(1.0, math.Max(0.0, c.R)),
		G: math.Min(1.0, math.Max(0.0, c.G)),
		B: math.Min(1.0, math.Max(0.0, c.B)),
	}
}
