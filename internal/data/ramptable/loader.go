// Package ramptable loads dense input color tables from interchange
// files: preset JSON documents, CSV tables and hex color lists, each
// optionally zstd-compressed.
package ramptable

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ramplab/server/pkg/colorspace"
	"github.com/ramplab/server/pkg/gamut"
	"github.com/ramplab/server/pkg/ramp"
)

// Loader reads input tables from disk. It holds a shared zstd decoder,
// so Close must be called when the loader is no longer needed.
type Loader struct {
	decoder *zstd.Decoder
}

// NewLoader creates a table loader.
func NewLoader() (*Loader, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Loader{decoder: dec}, nil
}

// Close releases the decoder.
func (l *Loader) Close() {
	l.decoder.Close()
}

// Load reads a table file. The format is chosen by extension (.json,
// .csv, .txt or .hex), with a .zst suffix stripped after decompression.
// The returned table is validated: at least two rows, strictly
// increasing scalars, channels inside the displayable range.
func (l *Loader) Load(path string) (ramp.Ramp, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", path, err)
	}

	name := path
	if strings.HasSuffix(name, ".zst") {
		data, err = l.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress table %s: %w", path, err)
		}
		name = strings.TrimSuffix(name, ".zst")
	}

	var table ramp.Ramp
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".json":
		table, err = parsePreset(data)
	case ".csv":
		table, err = parseCSV(data)
	case ".txt", ".hex":
		table, err = parseHexList(data)
	default:
		return nil, fmt.Errorf("unsupported table format %q for %s", ext, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse table %s: %w", path, err)
	}

	if err := validate(table); err != nil {
		return nil, fmt.Errorf("invalid table %s: %w", path, err)
	}
	return table, nil
}

// FromHexColors builds a table from inline hex colors with uniformly
// spaced scalars. Used for tables declared directly in configuration.
func FromHexColors(hexes []string) (ramp.Ramp, error) {
	if len(hexes) < 2 {
		return nil, fmt.Errorf("need at least 2 colors, got %d", len(hexes))
	}
	out := make(ramp.Ramp, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(strings.TrimSpace(h))
		if err != nil {
			return nil, fmt.Errorf("invalid color %q: %w", h, err)
		}
		out[i] = ramp.Sample{
			Scalar: float64(i) / float64(len(hexes)-1),
			Color:  colorspace.RGB{R: c.R, G: c.G, B: c.B},
		}
	}
	return out, nil
}

// presetDoc is the external preset shape: a flat numeric list where
// every 4th value starts a new (scalar, R, G, B) point.
type presetDoc struct {
	Name       string    `json:"Name"`
	ColorSpace string    `json:"ColorSpace"`
	NanColor   []float64 `json:"NanColor"`
	RGBPoints  []float64 `json:"RGBPoints"`
}

func parsePreset(data []byte) (ramp.Ramp, error) {
	var doc presetDoc

	// Visualization tools export presets as a single-element array;
	// accept a bare object too.
	var docs []presetDoc
	if err := json.Unmarshal(data, &docs); err == nil {
		if len(docs) == 0 {
			return nil, fmt.Errorf("preset document is empty")
		}
		doc = docs[0]
	} else if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode preset JSON: %w", err)
	}

	if len(doc.RGBPoints) == 0 {
		return nil, fmt.Errorf("preset has no RGBPoints")
	}
	if len(doc.RGBPoints)%4 != 0 {
		return nil, fmt.Errorf("flat point list length %d is not a multiple of 4", len(doc.RGBPoints))
	}

	out := make(ramp.Ramp, 0, len(doc.RGBPoints)/4)
	for i := 0; i < len(doc.RGBPoints); i += 4 {
		out = append(out, ramp.Sample{
			Scalar: doc.RGBPoints[i],
			Color: colorspace.RGB{
				R: doc.RGBPoints[i+1],
				G: doc.RGBPoints[i+2],
				B: doc.RGBPoints[i+3],
			},
		})
	}
	return out, nil
}

func parseCSV(data []byte) (ramp.Ramp, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = 4
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV table is empty")
	}

	// A non-numeric first cell means a header row.
	if _, err := strconv.ParseFloat(records[0][0], 64); err != nil {
		records = records[1:]
	}

	out := make(ramp.Ramp, 0, len(records))
	maxChannel := 0.0
	for i, rec := range records {
		vals := make([]float64, 4)
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, j+1, err)
			}
			vals[j] = v
		}
		for _, c := range vals[1:] {
			if c > maxChannel {
				maxChannel = c
			}
		}
		out = append(out, ramp.Sample{
			Scalar: vals[0],
			Color:  colorspace.RGB{R: vals[1], G: vals[2], B: vals[3]},
		})
	}

	// Byte-scaled tables (any channel above 1) are normalized to
	// floats.
	if maxChannel > 1.0 {
		for i := range out {
			out[i].Color.R /= 255.0
			out[i].Color.G /= 255.0
			out[i].Color.B /= 255.0
		}
	}
	return out, nil
}

func parseHexList(data []byte) (ramp.Ramp, error) {
	var hexes []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		hexes = append(hexes, line)
	}
	return FromHexColors(hexes)
}

func validate(table ramp.Ramp) error {
	if err := table.Validate(); err != nil {
		return err
	}
	for i, s := range table {
		if !gamut.InGamut(s.Color) {
			return fmt.Errorf("color out of displayable range at row %d: %+v", i, s.Color)
		}
	}
	return nil
}
