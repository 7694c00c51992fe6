package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_FullConfig(t *testing.T) {
	content := `
server:
  port: 9000
  cors_origins: ["https://lab.example.org"]
  title: "Ramp Workbench"
build:
  resolution: 512
maps:
  ocean:
    mode: sweep
    start_hue: 240
    end_hue: 120
  lava:
    mode: table
    colors: ["#000000", "#ff0000", "#ffffff"]
default_map: lava
render:
  swatch_width: 256
  swatch_height: 32
export:
  output_dir: "/tmp/exports"
  nan_color: "#ff00ff"
  max_concurrent: 3
cache:
  swatch_mb: 16
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.Title != "Ramp Workbench" {
		t.Errorf("unexpected title: %q", cfg.Server.Title)
	}
	if cfg.Build.Resolution != 512 {
		t.Errorf("expected resolution 512, got %d", cfg.Build.Resolution)
	}
	if cfg.DefaultMap != "lava" {
		t.Errorf("expected default map 'lava', got %q", cfg.DefaultMap)
	}

	ocean, ok := cfg.Maps.Get("ocean")
	if !ok {
		t.Fatal("expected 'ocean' map")
	}
	if ocean.Mode != ModeSweep || ocean.StartHue != 240 || ocean.EndHue != 120 {
		t.Errorf("unexpected ocean spec: %+v", ocean)
	}

	lava, ok := cfg.Maps.Get("lava")
	if !ok {
		t.Fatal("expected 'lava' map")
	}
	if lava.Mode != ModeTable || len(lava.Colors) != 3 {
		t.Errorf("unexpected lava spec: %+v", lava)
	}

	if cfg.Export.OutputDir != "/tmp/exports" {
		t.Errorf("unexpected output dir: %s", cfg.Export.OutputDir)
	}
	if cfg.Export.NanColor != "#ff00ff" {
		t.Errorf("unexpected nan color: %s", cfg.Export.NanColor)
	}
	if cfg.Export.MaxConcurrent != 3 {
		t.Errorf("expected max_concurrent 3, got %d", cfg.Export.MaxConcurrent)
	}
	if cfg.Cache.SwatchMB != 16 {
		t.Errorf("expected swatch_mb 16, got %d", cfg.Cache.SwatchMB)
	}
}

func TestLoad_MapOrderPreserved(t *testing.T) {
	content := `
maps:
  zebra:
    mode: sweep
    start_hue: 0
    end_hue: 360
  apple:
    mode: table
    colors: ["#000000", "#ffffff"]
  mango:
    mode: sweep
    start_hue: 60
    end_hue: 30
`
	cfg := loadFromString(t, content)

	// Declaration order, not lexical order
	ids := cfg.Maps.IDs()
	if len(ids) != 3 || ids[0] != "zebra" || ids[1] != "apple" || ids[2] != "mango" {
		t.Errorf("unexpected map order: %v", ids)
	}

	// First declared map becomes the default when none is named
	if cfg.DefaultMap != "zebra" {
		t.Errorf("expected default map 'zebra', got %q", cfg.DefaultMap)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
server:
  port: 0
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Build.Resolution != 1024 {
		t.Errorf("expected default resolution 1024, got %d", cfg.Build.Resolution)
	}
	if cfg.Render.SwatchWidth != 512 || cfg.Render.SwatchHeight != 64 {
		t.Errorf("unexpected swatch defaults: %dx%d", cfg.Render.SwatchWidth, cfg.Render.SwatchHeight)
	}
	if cfg.Cache.SwatchMB != 64 || cfg.Cache.SwatchTTLMinutes != 10 || cfg.Cache.TableEntries != 256 {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Export.NanColor != "#ffff00" {
		t.Errorf("unexpected nan color default: %s", cfg.Export.NanColor)
	}

	// No maps section: the built-in set with the sweep first
	ids := cfg.Maps.IDs()
	if len(ids) != 5 || ids[0] != "kindlmann" {
		t.Errorf("unexpected default maps: %v", ids)
	}
	if cfg.DefaultMap != "kindlmann" {
		t.Errorf("expected default map 'kindlmann', got %q", cfg.DefaultMap)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Maps.Len() != 5 {
		t.Errorf("expected 5 default maps, got %d", cfg.Maps.Len())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RAMPLAB_SERVER_PORT", "9999")
	t.Setenv("RAMPLAB_EXPORT_MAX_CONCURRENT", "5")
	t.Setenv("RAMPLAB_DEFAULT_MAP", "viridis")

	content := `
server:
  port: 9000
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 9999 {
		t.Errorf("env override lost: port %d", cfg.Server.Port)
	}
	if cfg.Export.MaxConcurrent != 5 {
		t.Errorf("env override lost: max_concurrent %d", cfg.Export.MaxConcurrent)
	}
	if cfg.DefaultMap != "viridis" {
		t.Errorf("env override lost: default_map %q", cfg.DefaultMap)
	}
}

func TestLoad_InvalidSpecs(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown mode", `
maps:
  broken:
    mode: gradient
`},
		{"sweep with colors", `
maps:
  broken:
    mode: sweep
    colors: ["#000000", "#ffffff"]
`},
		{"table without source", `
maps:
  broken:
    mode: table
`},
		{"table with both", `
maps:
  broken:
    mode: table
    source: "tables/x.json"
    colors: ["#000000", "#ffffff"]
`},
		{"single inline color", `
maps:
  broken:
    mode: table
    colors: ["#000000"]
`},
		{"bad hex color", `
maps:
  broken:
    mode: table
    colors: ["#000000", "not-a-color"]
`},
		{"bad nan color", `
export:
  nan_color: "yellow"
`},
		{"undeclared default map", `
default_map: missing
maps:
  ok:
    mode: sweep
`},
		{"duplicate map id", `
maps:
  twice:
    mode: sweep
  twice:
    mode: sweep
`},
		{"resolution out of range", `
build:
  resolution: 1
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := loadError(t, tc.content); err == nil {
				t.Error("expected load error")
			}
		})
	}
}

func TestMapsConfig_Set(t *testing.T) {
	var m MapsConfig
	m.Set("a", MapSpec{Mode: ModeSweep})
	m.Set("b", MapSpec{Mode: ModeSweep, StartHue: 10})
	m.Set("a", MapSpec{Mode: ModeSweep, StartHue: 99})

	if m.Len() != 2 {
		t.Fatalf("expected 2 maps, got %d", m.Len())
	}
	ids := m.IDs()
	if ids[0] != "a" || ids[1] != "b" {
		t.Errorf("replace should not reorder: %v", ids)
	}
	spec, _ := m.Get("a")
	if spec.StartHue != 99 {
		t.Errorf("replace lost new value: %+v", spec)
	}
}

func TestParseNanColor(t *testing.T) {
	rgb, err := ExportConfig{NanColor: "#ffff00"}.ParseNanColor()
	if err != nil {
		t.Fatalf("failed to parse nan color: %v", err)
	}
	if rgb.R != 1 || rgb.G != 1 || rgb.B != 0 {
		t.Errorf("unexpected nan color: %+v", rgb)
	}

	if _, err := (ExportConfig{NanColor: "#zzzzzz"}).ParseNanColor(); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func loadError(t *testing.T, content string) error {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	_, err := Load(path)
	return err
}
