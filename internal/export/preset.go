package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ramplab/server/pkg/colorspace"
	"github.com/ramplab/server/pkg/ramp"
)

// Preset is the color-preset document visualization tools import. The
// control points are flattened into a single numeric list where every
// 4th value starts a new (scalar, R, G, B) point.
type Preset struct {
	Name       string    `json:"Name"`
	ColorSpace string    `json:"ColorSpace"`
	NanColor   []float64 `json:"NanColor"`
	RGBPoints  []float64 `json:"RGBPoints"`
}

// BuildPreset flattens a control-point table into a preset document.
// The color space is declared as Lab so importers interpolate the
// points perceptually; nan is the sentinel color for undefined input.
func BuildPreset(name string, points ramp.Ramp, nan colorspace.RGB) Preset {
	flat := make([]float64, 0, len(points)*4)
	for _, s := range points {
		c := colorspace.Clamp01(s.Color)
		flat = append(flat, s.Scalar, c.R, c.G, c.B)
	}
	return Preset{
		Name:       name,
		ColorSpace: "Lab",
		NanColor:   []float64{nan.R, nan.G, nan.B},
		RGBPoints:  flat,
	}
}

// WritePreset writes the document in the single-element-array shape
// preset importers expect.
func WritePreset(w io.Writer, p Preset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode([]Preset{p}); err != nil {
		return fmt.Errorf("failed to encode preset: %w", err)
	}
	return nil
}
