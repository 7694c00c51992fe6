// Package export serializes built ramps into the interchange formats
// downstream tools consume: CSV tables, preset JSON documents and
// compressed bundles.
package export

import (
	"fmt"
	"io"

	"github.com/ramplab/server/pkg/ramp"
)

// Format selects the channel encoding of a CSV table.
type Format string

const (
	// FormatByte writes channels as integers 0-255.
	FormatByte Format = "byte"
	// FormatFloat writes channels as floats 0-1.
	FormatFloat Format = "float"
)

// Formats lists the supported CSV encodings.
var Formats = []Format{FormatByte, FormatFloat}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatByte:
		return FormatByte, nil
	case FormatFloat:
		return FormatFloat, nil
	}
	return "", fmt.Errorf("unknown table format %q (want byte or float)", s)
}

// Resolutions are the standard table sizes, powers of two from 8 to
// 1024.
var Resolutions = []int{8, 16, 32, 64, 128, 256, 512, 1024}

// MinResolution and MaxResolution bound ad-hoc table requests.
const (
	MinResolution = 8
	MaxResolution = 1024
)

// WriteCSV writes a ramp as a scalar,R,G,B table in the requested
// format.
func WriteCSV(w io.Writer, r ramp.Ramp, format Format) error {
	if _, err := fmt.Fprintln(w, "scalar,R,G,B"); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, s := range r {
		var err error
		switch format {
		case FormatFloat:
			_, err = fmt.Fprintf(w, "%g,%g,%g,%g\n", s.Scalar, s.Color.R, s.Color.G, s.Color.B)
		default:
			cr, cg, cb := s.Bytes()
			_, err = fmt.Fprintf(w, "%g,%d,%d,%d\n", s.Scalar, cr, cg, cb)
		}
		if err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	return nil
}
