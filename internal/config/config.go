// Package config handles configuration loading for the RampLab server.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/ramplab/server/pkg/colorspace"
)

// Map construction modes.
const (
	ModeSweep = "sweep"
	ModeTable = "table"
)

// BuiltinSourcePrefix marks a table source resolved from the curated
// reference tables instead of a file on disk.
const BuiltinSourcePrefix = "builtin:"

// Config represents the server configuration.
type Config struct {
	Server     ServerConfig `yaml:"server" envconfig:"server"`
	Build      BuildConfig  `yaml:"build" envconfig:"build"`
	Maps       MapsConfig   `yaml:"maps"`
	DefaultMap string       `yaml:"default_map" envconfig:"default_map"`
	Render     RenderConfig `yaml:"render" envconfig:"render"`
	Export     ExportConfig `yaml:"export" envconfig:"export"`
	Cache      CacheConfig  `yaml:"cache" envconfig:"cache"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port" envconfig:"port"`
	CORSOrigins []string `yaml:"cors_origins" envconfig:"cors_origins"`
	Title       string   `yaml:"title" envconfig:"title"`
}

// BuildConfig contains ramp construction settings.
type BuildConfig struct {
	// Resolution is the dense sample count each map is built at.
	Resolution int `yaml:"resolution" envconfig:"resolution"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	SwatchWidth  int `yaml:"swatch_width" envconfig:"swatch_width"`
	SwatchHeight int `yaml:"swatch_height" envconfig:"swatch_height"`
}

// ExportConfig contains export job settings.
type ExportConfig struct {
	OutputDir            string `yaml:"output_dir" envconfig:"output_dir"`
	NanColor             string `yaml:"nan_color" envconfig:"nan_color"`
	SQLitePath           string `yaml:"sqlite_path" envconfig:"sqlite_path"`
	MaxConcurrent        int    `yaml:"max_concurrent" envconfig:"max_concurrent"`
	Workers              int    `yaml:"workers" envconfig:"workers"`
	RetentionDays        int    `yaml:"retention_days" envconfig:"retention_days"`
	CleanupPeriodMinutes int    `yaml:"cleanup_period_minutes" envconfig:"cleanup_period_minutes"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	SwatchMB         int `yaml:"swatch_mb" envconfig:"swatch_mb"`
	SwatchTTLMinutes int `yaml:"swatch_ttl_minutes" envconfig:"swatch_ttl_minutes"`
	TableEntries     int `yaml:"table_entries" envconfig:"table_entries"`
}

// MapSpec declares one named map.
type MapSpec struct {
	Mode     string   `yaml:"mode"`
	StartHue float64  `yaml:"start_hue"`
	EndHue   float64  `yaml:"end_hue"`
	Source   string   `yaml:"source"`
	Colors   []string `yaml:"colors"`
}

// MapsConfig is an ordered set of map declarations. YAML mapping order
// is preserved so the first declared map can act as the default.
type MapsConfig struct {
	byID  map[string]MapSpec
	order []string
}

// UnmarshalYAML decodes the maps section keeping declaration order.
func (m *MapsConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("maps section must be a mapping")
	}
	m.byID = make(map[string]MapSpec)
	m.order = nil
	for i := 0; i+1 < len(value.Content); i += 2 {
		id := value.Content[i].Value
		var spec MapSpec
		if err := value.Content[i+1].Decode(&spec); err != nil {
			return fmt.Errorf("map %q: %w", id, err)
		}
		if _, dup := m.byID[id]; dup {
			return fmt.Errorf("duplicate map id %q", id)
		}
		m.byID[id] = spec
		m.order = append(m.order, id)
	}
	return nil
}

// Set adds or replaces a map declaration. New ids append to the order.
func (m *MapsConfig) Set(id string, spec MapSpec) {
	if m.byID == nil {
		m.byID = make(map[string]MapSpec)
	}
	if _, exists := m.byID[id]; !exists {
		m.order = append(m.order, id)
	}
	m.byID[id] = spec
}

// Get looks up a map declaration by id.
func (m MapsConfig) Get(id string) (MapSpec, bool) {
	spec, ok := m.byID[id]
	return spec, ok
}

// IDs returns the map ids in declaration order.
func (m MapsConfig) IDs() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of declared maps.
func (m MapsConfig) Len() int {
	return len(m.order)
}

// Load reads configuration from a YAML file, then applies RAMPLAB_*
// environment overrides and defaults. A missing file is not an error;
// environment and defaults apply alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := envconfig.Process("ramplab", &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			Title:       "RampLab",
		},
		Build: BuildConfig{
			Resolution: 1024,
		},
		Maps:       defaultMaps(),
		DefaultMap: "kindlmann",
		Render: RenderConfig{
			SwatchWidth:  512,
			SwatchHeight: 64,
		},
		Export: ExportConfig{
			OutputDir:            "./data/exports",
			NanColor:             "#ffff00",
			SQLitePath:           "./data/ramplab_jobs.sqlite",
			MaxConcurrent:        2,
			Workers:              4,
			RetentionDays:        7,
			CleanupPeriodMinutes: 60,
		},
		Cache: CacheConfig{
			SwatchMB:         64,
			SwatchTTLMinutes: 10,
			TableEntries:     256,
		},
	}
}

// defaultMaps declares the maps served when the config names none: the
// luminance sweep plus the curated reference tables.
func defaultMaps() MapsConfig {
	var m MapsConfig
	m.Set("kindlmann", MapSpec{Mode: ModeSweep, StartHue: 300, EndHue: 0})
	for _, name := range []string{"viridis", "plasma", "inferno", "magma"} {
		m.Set(name, MapSpec{Mode: ModeTable, Source: BuiltinSourcePrefix + name})
	}
	return m
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = defaults.Server.Title
	}
	if cfg.Build.Resolution == 0 {
		cfg.Build.Resolution = defaults.Build.Resolution
	}
	if cfg.Render.SwatchWidth == 0 {
		cfg.Render.SwatchWidth = defaults.Render.SwatchWidth
	}
	if cfg.Render.SwatchHeight == 0 {
		cfg.Render.SwatchHeight = defaults.Render.SwatchHeight
	}
	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = defaults.Export.OutputDir
	}
	if cfg.Export.NanColor == "" {
		cfg.Export.NanColor = defaults.Export.NanColor
	}
	if cfg.Export.SQLitePath == "" {
		cfg.Export.SQLitePath = defaults.Export.SQLitePath
	}
	if cfg.Export.MaxConcurrent == 0 {
		cfg.Export.MaxConcurrent = defaults.Export.MaxConcurrent
	}
	if cfg.Export.Workers == 0 {
		cfg.Export.Workers = defaults.Export.Workers
	}
	if cfg.Export.RetentionDays == 0 {
		cfg.Export.RetentionDays = defaults.Export.RetentionDays
	}
	if cfg.Export.CleanupPeriodMinutes == 0 {
		cfg.Export.CleanupPeriodMinutes = defaults.Export.CleanupPeriodMinutes
	}
	if cfg.Cache.SwatchMB == 0 {
		cfg.Cache.SwatchMB = defaults.Cache.SwatchMB
	}
	if cfg.Cache.SwatchTTLMinutes == 0 {
		cfg.Cache.SwatchTTLMinutes = defaults.Cache.SwatchTTLMinutes
	}
	if cfg.Cache.TableEntries == 0 {
		cfg.Cache.TableEntries = defaults.Cache.TableEntries
	}
	if cfg.Maps.Len() == 0 {
		cfg.Maps = defaults.Maps
	}
	if cfg.DefaultMap == "" {
		cfg.DefaultMap = cfg.Maps.IDs()[0]
	}
}

// Validate checks the constraints defaults cannot repair.
func (c *Config) Validate() error {
	if c.Build.Resolution < 2 || c.Build.Resolution > 8192 {
		return fmt.Errorf("build resolution %d out of range [2, 8192]", c.Build.Resolution)
	}
	if _, err := c.Export.ParseNanColor(); err != nil {
		return err
	}
	for _, id := range c.Maps.IDs() {
		spec, _ := c.Maps.Get(id)
		if err := validateMapSpec(id, spec); err != nil {
			return err
		}
	}
	if _, ok := c.Maps.Get(c.DefaultMap); !ok {
		return fmt.Errorf("default map %q is not declared", c.DefaultMap)
	}
	return nil
}

func validateMapSpec(id string, spec MapSpec) error {
	switch spec.Mode {
	case ModeSweep:
		if spec.Source != "" || len(spec.Colors) > 0 {
			return fmt.Errorf("map %q: sweep mode takes no source or colors", id)
		}
	case ModeTable:
		if spec.Source != "" && len(spec.Colors) > 0 {
			return fmt.Errorf("map %q: source and colors are mutually exclusive", id)
		}
		if spec.Source == "" && len(spec.Colors) == 0 {
			return fmt.Errorf("map %q: table mode needs a source or inline colors", id)
		}
		if len(spec.Colors) == 1 {
			return fmt.Errorf("map %q: need at least 2 inline colors", id)
		}
		for _, h := range spec.Colors {
			if _, err := colorful.Hex(h); err != nil {
				return fmt.Errorf("map %q: invalid color %q: %w", id, h, err)
			}
		}
	default:
		return fmt.Errorf("map %q: unknown mode %q (want %s or %s)", id, spec.Mode, ModeSweep, ModeTable)
	}
	return nil
}

// ParseNanColor parses the configured NaN sentinel color.
func (e ExportConfig) ParseNanColor() (colorspace.RGB, error) {
	c, err := colorful.Hex(e.NanColor)
	if err != nil {
		return colorspace.RGB{}, fmt.Errorf("invalid nan_color %q: %w", e.NanColor, err)
	}
	return colorspace.RGB{R: c.R, G: c.G, B: c.B}, nil
}
