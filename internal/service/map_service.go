// Package service provides business logic for the ramp server.
package service

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ramplab/server/internal/cache"
	"github.com/ramplab/server/internal/export"
	"github.com/ramplab/server/internal/render"
	"github.com/ramplab/server/pkg/colormap"
	"github.com/ramplab/server/pkg/colorspace"
	"github.com/ramplab/server/pkg/ramp"
)

// MapServiceConfig contains map service configuration.
type MapServiceConfig struct {
	MapID      string
	Mode       string
	Source     string // human-readable origin: hue range or table source
	Rule       ramp.Rule
	Resolution int
	NanColor   colorspace.RGB
	Cache      *cache.Manager
	Renderer   *render.SwatchRenderer
}

// MapService builds and serves the ramp of a single configured map.
type MapService struct {
	mapID      string
	mode       string
	source     string
	rule       ramp.Rule
	resolution int
	nanColor   colorspace.RGB
	cache      *cache.Manager
	renderer   *render.SwatchRenderer

	// Dense ramp, built lazily on first use
	denseOnce sync.Once
	dense     ramp.Ramp
	denseErr  error

	// Per-count reduction cache
	reduceMu    sync.Mutex
	reduceCache map[int]ramp.Reduction
}

// NewMapService creates a new map service.
func NewMapService(cfg MapServiceConfig) *MapService {
	resolution := cfg.Resolution
	if resolution < 2 {
		resolution = 1024 // default dense resolution
	}

	return &MapService{
		mapID:       cfg.MapID,
		mode:        cfg.Mode,
		source:      cfg.Source,
		rule:        cfg.Rule,
		resolution:  resolution,
		nanColor:    cfg.NanColor,
		cache:       cfg.Cache,
		renderer:    cfg.Renderer,
		reduceCache: make(map[int]ramp.Reduction),
	}
}

// MapID returns the map's id.
func (s *MapService) MapID() string {
	return s.mapID
}

// Mode returns the construction mode ("sweep" or "table").
func (s *MapService) Mode() string {
	return s.mode
}

// Source returns the human-readable origin of the map.
func (s *MapService) Source() string {
	return s.source
}

// Dense returns the dense ramp, building it on first call.
func (s *MapService) Dense() (ramp.Ramp, error) {
	s.denseOnce.Do(func() {
		s.dense, s.denseErr = ramp.Build(s.rule, s.resolution)
	})
	return s.dense, s.denseErr
}

// reduction returns the cached reduction for a control-point count.
func (s *MapService) reduction(points int) (ramp.Reduction, error) {
	s.reduceMu.Lock()
	defer s.reduceMu.Unlock()

	if cached, ok := s.reduceCache[points]; ok {
		return cached, nil
	}

	red, err := ramp.ReduceWithError(s.rule, points)
	if err != nil {
		return ramp.Reduction{}, err
	}
	s.reduceCache[points] = red
	return red, nil
}

// tableAt samples the map's rule at the requested resolution, reusing
// the dense ramp when the resolution matches.
func (s *MapService) tableAt(resolution int) (ramp.Ramp, error) {
	if resolution == s.resolution {
		return s.Dense()
	}
	return ramp.Build(s.rule, resolution)
}

// TableCSV returns the map's table as CSV bytes.
func (s *MapService) TableCSV(resolution int, format export.Format) ([]byte, error) {
	// Check cache
	cacheKey := cache.TableKey(s.mapID, resolution, string(format))
	if data, ok := s.cache.GetTable(cacheKey); ok {
		return data, nil
	}

	table, err := s.tableAt(resolution)
	if err != nil {
		return nil, fmt.Errorf("failed to build table: %w", err)
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, table, format); err != nil {
		return nil, fmt.Errorf("failed to write table: %w", err)
	}
	data := buf.Bytes()

	// Cache result
	s.cache.SetTable(cacheKey, data)

	return data, nil
}

// Preset returns the map's preset document built from a reduced
// control-point table.
func (s *MapService) Preset(points int) ([]byte, error) {
	// Check cache
	cacheKey := cache.PresetKey(s.mapID, points)
	if data, ok := s.cache.GetTable(cacheKey); ok {
		return data, nil
	}

	red, err := s.reduction(points)
	if err != nil {
		return nil, fmt.Errorf("failed to reduce ramp: %w", err)
	}

	preset := export.BuildPreset(s.mapID, red.Points, s.nanColor)
	var buf bytes.Buffer
	if err := export.WritePreset(&buf, preset); err != nil {
		return nil, fmt.Errorf("failed to write preset: %w", err)
	}
	data := buf.Bytes()

	// Cache result
	s.cache.SetTable(cacheKey, data)

	return data, nil
}

// Swatch returns a rendered gradient swatch PNG.
func (s *MapService) Swatch(width, height int) ([]byte, error) {
	// Check cache
	cacheKey := cache.SwatchKey(s.mapID, width, height)
	if data, ok := s.cache.GetSwatch(cacheKey); ok {
		return data, nil
	}

	dense, err := s.Dense()
	if err != nil {
		return nil, fmt.Errorf("failed to build ramp: %w", err)
	}

	data, err := s.renderer.RenderSwatch(colormap.FromRamp(dense), width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to render swatch: %w", err)
	}

	// Cache result
	s.cache.SetSwatch(cacheKey, data)

	return data, nil
}

// Comparison returns a PNG with the dense ramp in the top half and the
// interpolated reduced table in the bottom half.
func (s *MapService) Comparison(points, width, height int) ([]byte, error) {
	// Check cache
	cacheKey := cache.ComparisonKey(s.mapID, points, width, height)
	if data, ok := s.cache.GetSwatch(cacheKey); ok {
		return data, nil
	}

	dense, err := s.Dense()
	if err != nil {
		return nil, fmt.Errorf("failed to build ramp: %w", err)
	}
	red, err := s.reduction(points)
	if err != nil {
		return nil, fmt.Errorf("failed to reduce ramp: %w", err)
	}

	data, err := s.renderer.RenderComparison(colormap.FromRamp(dense), colormap.FromRamp(red.Points), width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to render comparison: %w", err)
	}

	// Cache result
	s.cache.SetSwatch(cacheKey, data)

	return data, nil
}

// MapInfo describes a map for the API.
type MapInfo struct {
	ID               string `json:"id"`
	Mode             string `json:"mode"`
	Source           string `json:"source,omitempty"`
	Resolution       int    `json:"resolution"`
	FirstRGB         [3]int `json:"first_rgb"`
	LastRGB          [3]int `json:"last_rgb"`
	CachedReductions int    `json:"cached_reductions"`
}

// Info returns map metadata, building the dense ramp if needed.
func (s *MapService) Info() (MapInfo, error) {
	dense, err := s.Dense()
	if err != nil {
		return MapInfo{}, fmt.Errorf("failed to build ramp: %w", err)
	}

	fr, fg, fb := dense[0].Bytes()
	lr, lg, lb := dense[len(dense)-1].Bytes()

	s.reduceMu.Lock()
	reductions := len(s.reduceCache)
	s.reduceMu.Unlock()

	return MapInfo{
		ID:               s.mapID,
		Mode:             s.mode,
		Source:           s.source,
		Resolution:       s.resolution,
		FirstRGB:         [3]int{int(fr), int(fg), int(fb)},
		LastRGB:          [3]int{int(lr), int(lg), int(lb)},
		CachedReductions: reductions,
	}, nil
}

// ControlPoint is one reduced control point with byte channels.
type ControlPoint struct {
	Scalar float64 `json:"scalar"`
	R      int     `json:"r"`
	G      int     `json:"g"`
	B      int     `json:"b"`
}

// ReductionInfo summarizes a reduction for the API.
type ReductionInfo struct {
	ID       string         `json:"id"`
	Points   int            `json:"points"`
	MaxError float64        `json:"max_error"`
	Controls []ControlPoint `json:"controls"`
}

// Reduction reduces the map to the requested control-point count and
// reports the worst gap-midpoint deviation in 8-bit units.
func (s *MapService) Reduction(points int) (ReductionInfo, error) {
	red, err := s.reduction(points)
	if err != nil {
		return ReductionInfo{}, fmt.Errorf("failed to reduce ramp: %w", err)
	}

	controls := make([]ControlPoint, len(red.Points))
	for i, sample := range red.Points {
		r, g, b := sample.Bytes()
		controls[i] = ControlPoint{
			Scalar: sample.Scalar,
			R:      int(r),
			G:      int(g),
			B:      int(b),
		}
	}

	return ReductionInfo{
		ID:       s.mapID,
		Points:   len(red.Points),
		MaxError: red.MaxError,
		Controls: controls,
	}, nil
}
