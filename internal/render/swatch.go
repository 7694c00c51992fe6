// Package render draws colormap swatches using fogleman/gg.
package render

import (
	"bytes"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"

	"github.com/ramplab/server/pkg/colormap"
)

// Config contains renderer configuration.
type Config struct {
	SwatchWidth  int
	SwatchHeight int
}

// SwatchRenderer rasterizes colormaps into PNG gradient strips.
// Contexts for the default swatch size are pooled; other sizes get a
// fresh context per call.
type SwatchRenderer struct {
	config      Config
	contextPool sync.Pool
	bufferPool  sync.Pool
}

// NewSwatchRenderer creates a swatch renderer.
func NewSwatchRenderer(cfg Config) *SwatchRenderer {
	return &SwatchRenderer{
		config: cfg,
		contextPool: sync.Pool{
			New: func() interface{} {
				return gg.NewContext(cfg.SwatchWidth, cfg.SwatchHeight)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

// RenderSwatch draws a horizontal gradient strip of the colormap.
func (r *SwatchRenderer) RenderSwatch(cm colormap.Colormap, width, height int) ([]byte, error) {
	dc, release := r.context(width, height)
	defer release()

	dc.SetColor(color.White)
	dc.Clear()

	drawStrip(dc, cm, width, 0, height)

	return r.encodeContext(dc)
}

// RenderComparison draws the dense colormap in the top half and the
// reduced one in the bottom half, which makes interpolation banding in
// the reduced table visible at a glance.
func (r *SwatchRenderer) RenderComparison(dense, reduced colormap.Colormap, width, height int) ([]byte, error) {
	dc, release := r.context(width, height)
	defer release()

	dc.SetColor(color.White)
	dc.Clear()

	half := height / 2
	drawStrip(dc, dense, width, 0, half)
	drawStrip(dc, reduced, width, half, height-half)

	return r.encodeContext(dc)
}

func drawStrip(dc *gg.Context, cm colormap.Colormap, width, y, height int) {
	for x := 0; x < width; x++ {
		t := 0.0
		if width > 1 {
			t = float64(x) / float64(width-1)
		}
		dc.SetColor(cm.At(t))
		dc.DrawRectangle(float64(x), float64(y), 1, float64(height))
		dc.Fill()
	}
}

func (r *SwatchRenderer) context(width, height int) (*gg.Context, func()) {
	if width == r.config.SwatchWidth && height == r.config.SwatchHeight {
		dc := r.contextPool.Get().(*gg.Context)
		return dc, func() { r.contextPool.Put(dc) }
	}
	return gg.NewContext(width, height), func() {}
}

func (r *SwatchRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	// Use fast PNG encoder
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
