// Package service provides business logic for the ramp server.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ramplab/server/internal/export"
	"github.com/ramplab/server/internal/jobstore"
)

// MapResolver resolves configured maps for export jobs.
type MapResolver interface {
	Get(mapID string) *MapService
	MapIDs() []string
}

// ExportService runs export bundle jobs.
type ExportService struct {
	registry  MapResolver
	outputDir string
	workers   int
}

// NewExportService creates a new export service.
func NewExportService(registry MapResolver, outputDir string, workers int) *ExportService {
	if workers <= 0 {
		workers = 4
	}
	return &ExportService{
		registry:  registry,
		outputDir: outputDir,
		workers:   workers,
	}
}

// ExecuteExportJob renders the requested tables and presets into a
// tar.zst bundle (called by the job manager worker).
func (s *ExportService) ExecuteExportJob(ctx context.Context, store *jobstore.Store, jobID string) error {
	// Load job from store
	job, err := store.GetJob(jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", jobID)
	}

	// Resolve parameters; empty selections mean "everything"
	mapIDs := job.Params.Maps
	if len(mapIDs) == 0 {
		mapIDs = s.registry.MapIDs()
	}
	resolutions := job.Params.Resolutions
	if len(resolutions) == 0 {
		resolutions = export.Resolutions
	}
	for _, res := range resolutions {
		if res < export.MinResolution || res > export.MaxResolution {
			return fmt.Errorf("resolution %d out of range [%d, %d]", res, export.MinResolution, export.MaxResolution)
		}
	}
	var formats []export.Format
	if len(job.Params.Formats) == 0 {
		formats = export.Formats
	} else {
		for _, f := range job.Params.Formats {
			format, err := export.ParseFormat(f)
			if err != nil {
				return err
			}
			formats = append(formats, format)
		}
	}
	points := job.Params.PresetPoints
	if points < 2 {
		points = 32
	}

	// Phase 1: assemble render tasks
	store.UpdateJobProgress(jobID, "prepare", 0, 0)

	var items []export.Item
	for _, mapID := range mapIDs {
		svc := s.registry.Get(mapID)
		if svc == nil {
			return fmt.Errorf("map not found: %s", mapID)
		}

		for _, res := range resolutions {
			for _, format := range formats {
				items = append(items, export.Item{
					Name: fmt.Sprintf("%s_%d_%s.csv", mapID, res, format),
					Render: func() ([]byte, error) {
						if err := ctx.Err(); err != nil {
							return nil, err
						}
						return svc.TableCSV(res, format)
					},
				})
			}
		}

		items = append(items, export.Item{
			Name: mapID + "_preset.json",
			Render: func() ([]byte, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return svc.Preset(points)
			},
		})
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Phase 2: render into the bundle
	store.UpdateJobProgress(jobID, "render", 0, len(items))

	bundlePath := filepath.Join(s.outputDir, jobID+".tar.zst")
	manifest, err := export.WriteBundle(bundlePath, items, s.workers, func(done, total int) {
		store.UpdateJobProgress(jobID, "render", done, total)
	})
	if err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Phase 3: record the bundle and its contents
	store.UpdateJobProgress(jobID, "finalize", len(items), len(items))

	if err := store.UpdateJobBundle(jobID, bundlePath); err != nil {
		return fmt.Errorf("failed to record bundle path: %w", err)
	}

	manifestBytes, err := manifest.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	artifacts := make([]*jobstore.Artifact, 0, len(manifest.Entries)+2)
	artifacts = append(artifacts, &jobstore.Artifact{
		Name: "manifest.json",
		Kind: "manifest",
		Size: int64(len(manifestBytes)),
	})
	for _, entry := range manifest.Entries {
		artifacts = append(artifacts, &jobstore.Artifact{
			Name: entry.Name,
			Kind: artifactKind(entry.Name),
			Size: entry.Size,
		})
	}
	if info, err := os.Stat(bundlePath); err == nil {
		artifacts = append(artifacts, &jobstore.Artifact{
			Name: filepath.Base(bundlePath),
			Kind: "bundle",
			Size: info.Size(),
		})
	}
	if err := store.InsertArtifacts(jobID, artifacts); err != nil {
		return fmt.Errorf("failed to save artifacts: %w", err)
	}

	return nil
}

func artifactKind(name string) string {
	switch {
	case name == "manifest.json":
		return "manifest"
	case strings.HasSuffix(name, "_preset.json"):
		return "preset"
	case strings.HasSuffix(name, ".csv"):
		return "csv"
	default:
		return "file"
	}
}
