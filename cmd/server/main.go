// Package main is the entry point for the RampLab server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ramplab/server/internal/api"
	"github.com/ramplab/server/internal/cache"
	"github.com/ramplab/server/internal/config"
	"github.com/ramplab/server/internal/data/ramptable"
	"github.com/ramplab/server/internal/render"
	"github.com/ramplab/server/internal/service"
	"github.com/ramplab/server/pkg/colormap"
	"github.com/ramplab/server/pkg/ramp"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting RampLab server on port %d", cfg.Server.Port)

	ctx := context.Background()

	// Initialize cache manager (shared across all maps)
	cacheManager, err := cache.NewManager(cache.Config{
		SwatchCacheSizeMB: cfg.Cache.SwatchMB,
		SwatchTTL:         time.Duration(cfg.Cache.SwatchTTLMinutes) * time.Minute,
		TableCacheSize:    cfg.Cache.TableEntries,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}

	// Initialize swatch renderer (shared across all maps)
	swatchRenderer := render.NewSwatchRenderer(render.Config{
		SwatchWidth:  cfg.Render.SwatchWidth,
		SwatchHeight: cfg.Render.SwatchHeight,
	})

	nanColor, err := cfg.Export.ParseNanColor()
	if err != nil {
		log.Fatalf("Failed to parse NaN color: %v", err)
	}

	// Table loader for file-backed maps
	loader, err := ramptable.NewLoader()
	if err != nil {
		log.Fatalf("Failed to initialize table loader: %v", err)
	}
	defer loader.Close()

	// Initialize map registry
	mapIDs := cfg.Maps.IDs()
	registry := api.NewMapRegistry(cfg.DefaultMap, mapIDs, cfg.Server.Title)

	log.Printf("Initializing %d map(s), default: %s", len(mapIDs), cfg.DefaultMap)

	for _, mapID := range mapIDs {
		spec, _ := cfg.Maps.Get(mapID)

		rule, err := buildRule(spec, loader)
		if err != nil {
			log.Fatalf("Failed to build map %q: %v", mapID, err)
		}

		source := describeSource(spec)
		switch spec.Mode {
		case config.ModeSweep:
			log.Printf("  [%s] Sweep %s", mapID, source)
		case config.ModeTable:
			log.Printf("  [%s] Table from %s", mapID, source)
		}

		registry.Register(mapID, service.NewMapService(service.MapServiceConfig{
			MapID:      mapID,
			Mode:       spec.Mode,
			Source:     source,
			Rule:       rule,
			Resolution: cfg.Build.Resolution,
			NanColor:   nanColor,
			Cache:      cacheManager,
			Renderer:   swatchRenderer,
		}))
	}

	// Initialize job manager for export jobs (SQLite persistence)
	jobManager, err := api.NewJobManager(api.JobManagerConfig{
		MaxConcurrent: cfg.Export.MaxConcurrent,
		SQLitePath:    cfg.Export.SQLitePath,
		RetentionDays: cfg.Export.RetentionDays,
		CleanupPeriod: time.Duration(cfg.Export.CleanupPeriodMinutes) * time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to initialize job manager: %v", err)
	}
	log.Printf("Export job manager: max_concurrent=%d, retention_days=%d, sqlite=%s",
		cfg.Export.MaxConcurrent, cfg.Export.RetentionDays, cfg.Export.SQLitePath)

	// Wire up export service as job executor
	exportService := service.NewExportService(registry, cfg.Export.OutputDir, cfg.Export.Workers)
	jobManager.Executor = exportService.ExecuteExportJob

	jobManager.Start()
	defer jobManager.Stop()

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Registry:     registry,
		CORSOrigins:  cfg.Server.CORSOrigins,
		JobManager:   jobManager,
		SwatchWidth:  cfg.Render.SwatchWidth,
		SwatchHeight: cfg.Render.SwatchHeight,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// describeSource renders the origin of a map for logs and the info
// endpoints: the hue range for sweeps, the table source otherwise.
func describeSource(spec config.MapSpec) string {
	switch spec.Mode {
	case config.ModeSweep:
		return fmt.Sprintf("hue %g to %g deg", spec.StartHue, spec.EndHue)
	case config.ModeTable:
		if spec.Source != "" {
			return spec.Source
		}
		return fmt.Sprintf("%d inline colors", len(spec.Colors))
	}
	return ""
}

// buildRule constructs the generating rule for one configured map.
func buildRule(spec config.MapSpec, loader *ramptable.Loader) (ramp.Rule, error) {
	switch spec.Mode {
	case config.ModeSweep:
		return ramp.NewSweep(spec.StartHue, spec.EndHue), nil
	case config.ModeTable:
		entries, err := tableEntries(spec, loader)
		if err != nil {
			return nil, err
		}
		return ramp.NewTable(entries)
	}
	return nil, fmt.Errorf("unknown map mode %q", spec.Mode)
}

// tableEntries resolves a table spec to its control points: inline hex
// colors, a builtin colormap, or a table file on disk.
func tableEntries(spec config.MapSpec, loader *ramptable.Loader) (ramp.Ramp, error) {
	if len(spec.Colors) > 0 {
		return ramptable.FromHexColors(spec.Colors)
	}
	if strings.HasPrefix(spec.Source, config.BuiltinSourcePrefix) {
		name := strings.TrimPrefix(spec.Source, config.BuiltinSourcePrefix)
		cm, ok := colormap.Builtin(name)
		if !ok {
			return nil, fmt.Errorf("unknown builtin colormap %q", name)
		}
		return cm.Table(), nil
	}
	return loader.Load(spec.Source)
}
