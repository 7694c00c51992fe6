// Package api provides HTTP handlers for the RampLab server.
package api

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ramplab/server/internal/export"
	"github.com/ramplab/server/internal/jobstore"
	"github.com/ramplab/server/internal/service"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry     *MapRegistry
	CORSOrigins  []string
	JobManager   *JobManager
	SwatchWidth  int // default width for swatch.png and compare.png
	SwatchHeight int // default height for swatch.png
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	swatchW := cfg.SwatchWidth
	if swatchW <= 0 {
		swatchW = 512
	}
	swatchH := cfg.SwatchHeight
	if swatchH <= 0 {
		swatchH = 64
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Global maps endpoint (not map-scoped)
	r.Get("/api/maps", mapsHandler(cfg.Registry))

	// Global export job endpoints (not map-scoped)
	r.Route("/api/export/jobs", func(r chi.Router) {
		r.Post("/", exportJobSubmitHandler(cfg.Registry, cfg.JobManager))
		r.Get("/{job_id}", exportJobStatusHandler(cfg.JobManager))
		r.Get("/{job_id}/result", exportJobResultHandler(cfg.JobManager))
		r.Get("/{job_id}/bundle", exportJobBundleHandler(cfg.JobManager))
		r.Delete("/{job_id}", exportJobCancelHandler(cfg.JobManager))
	})

	// Map-scoped routes: /m/{map}/...
	r.Route("/m/{map}", func(r chi.Router) {
		r.Use(mapMiddleware(cfg.Registry))

		// Artifact endpoints
		r.Get("/table.csv", mapTableHandler)
		r.Get("/preset.json", mapPresetHandler)
		r.Get("/swatch.png", mapSwatchHandler(swatchW, swatchH))
		r.Get("/compare.png", mapCompareHandler(swatchW, swatchH*2))

		// API endpoints
		r.Route("/api", func(r chi.Router) {
			r.Get("/info", mapInfoHandler)
			r.Get("/reduction", mapReductionHandler)
		})
	})

	return r
}

// Context key for map service
type ctxKey string

const mapServiceKey ctxKey = "mapService"

// mapMiddleware resolves the colormap from URL and injects the map service into context.
func mapMiddleware(registry *MapRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mapID := chi.URLParam(r, "map")
			svc := registry.Get(mapID)
			if svc == nil {
				http.Error(w, "map not found: "+mapID, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), mapServiceKey, svc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getMapService(r *http.Request) *service.MapService {
	if svc, ok := r.Context().Value(mapServiceKey).(*service.MapService); ok {
		return svc
	}
	return nil
}

// mapsHandler returns the list of available colormaps.
func mapsHandler(registry *MapRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"default": registry.DefaultMapID(),
			"maps":    registry.Maps(),
			"title":   registry.Title(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

// Map-scoped handlers (get service from context)
func mapTableHandler(w http.ResponseWriter, r *http.Request) {
	svc := getMapService(r)
	if svc == nil {
		http.Error(w, "map service not found", http.StatusInternalServerError)
		return
	}
	tableHandler(svc)(w, r)
}

func mapPresetHandler(w http.ResponseWriter, r *http.Request) {
	svc := getMapService(r)
	if svc == nil {
		http.Error(w, "map service not found", http.StatusInternalServerError)
		return
	}
	presetHandler(svc)(w, r)
}

func mapSwatchHandler(defWidth, defHeight int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := getMapService(r)
		if svc == nil {
			http.Error(w, "map service not found", http.StatusInternalServerError)
			return
		}
		swatchHandler(svc, defWidth, defHeight)(w, r)
	}
}

func mapCompareHandler(defWidth, defHeight int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := getMapService(r)
		if svc == nil {
			http.Error(w, "map service not found", http.StatusInternalServerError)
			return
		}
		compareHandler(svc, defWidth, defHeight)(w, r)
	}
}

func mapInfoHandler(w http.ResponseWriter, r *http.Request) {
	svc := getMapService(r)
	if svc == nil {
		http.Error(w, "map service not found", http.StatusInternalServerError)
		return
	}
	infoHandler(svc)(w, r)
}

func mapReductionHandler(w http.ResponseWriter, r *http.Request) {
	svc := getMapService(r)
	if svc == nil {
		http.Error(w, "map service not found", http.StatusInternalServerError)
		return
	}
	reductionHandler(svc)(w, r)
}

// Original handlers (take service as parameter)
func tableHandler(svc *service.MapService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := parseBoundedInt(r.URL.Query(), "res", 256, export.MinResolution, export.MaxResolution)
		if err != nil {
			http.Error(w, "invalid res parameter", http.StatusBadRequest)
			return
		}

		format := export.FormatByte
		if raw := strings.TrimSpace(r.URL.Query().Get("format")); raw != "" {
			format, err = export.ParseFormat(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		data, err := svc.TableCSV(res, format)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(data)
	}
}

func presetHandler(svc *service.MapService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		points, err := parseBoundedInt(r.URL.Query(), "points", 32, 2, 1024)
		if err != nil {
			http.Error(w, "invalid points parameter", http.StatusBadRequest)
			return
		}

		data, err := svc.Preset(points)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(data)
	}
}

func swatchHandler(svc *service.MapService, defWidth, defHeight int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		width, err := parseBoundedInt(r.URL.Query(), "width", defWidth, 16, 4096)
		if err != nil {
			http.Error(w, "invalid width parameter", http.StatusBadRequest)
			return
		}
		height, err := parseBoundedInt(r.URL.Query(), "height", defHeight, 4, 1024)
		if err != nil {
			http.Error(w, "invalid height parameter", http.StatusBadRequest)
			return
		}

		data, err := svc.Swatch(width, height)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(data)
	}
}

func compareHandler(svc *service.MapService, defWidth, defHeight int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		points, err := parseBoundedInt(r.URL.Query(), "points", 8, 2, 1024)
		if err != nil {
			http.Error(w, "invalid points parameter", http.StatusBadRequest)
			return
		}
		width, err := parseBoundedInt(r.URL.Query(), "width", defWidth, 16, 4096)
		if err != nil {
			http.Error(w, "invalid width parameter", http.StatusBadRequest)
			return
		}
		height, err := parseBoundedInt(r.URL.Query(), "height", defHeight, 4, 1024)
		if err != nil {
			http.Error(w, "invalid height parameter", http.StatusBadRequest)
			return
		}

		data, err := svc.Comparison(points, width, height)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(data)
	}
}

func infoHandler(svc *service.MapService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.Info()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	}
}

func reductionHandler(svc *service.MapService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		points, err := parseBoundedInt(r.URL.Query(), "points", 8, 2, 1024)
		if err != nil {
			http.Error(w, "invalid points parameter", http.StatusBadRequest)
			return
		}

		summary, err := svc.Reduction(points)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summary)
	}
}

// parseBoundedInt reads an integer query parameter, falling back to def
// when the parameter is absent and clamping the value to [lo, hi].
func parseBoundedInt(query url.Values, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v, nil
}

// Export job handlers

type exportJobSubmitRequest struct {
	Maps        []string `json:"maps"`
	Resolutions []int    `json:"resolutions"`
	Formats     []string `json:"formats"`
	Points      int      `json:"points"`
}

func exportJobSubmitHandler(registry *MapRegistry, jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}

		// An empty body requests the defaults: all maps, standard
		// resolutions, both formats.
		var req exportJobSubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		// Validate selections before queueing
		for _, mapID := range req.Maps {
			if registry.Get(mapID) == nil {
				http.Error(w, "unknown map: "+mapID, http.StatusBadRequest)
				return
			}
		}
		for _, res := range req.Resolutions {
			if res < export.MinResolution || res > export.MaxResolution {
				http.Error(w, "resolution out of range: "+strconv.Itoa(res), http.StatusBadRequest)
				return
			}
		}
		for _, f := range req.Formats {
			if _, err := export.ParseFormat(f); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		params := jobstore.JobParams{
			Maps:         req.Maps,
			Resolutions:  req.Resolutions,
			Formats:      req.Formats,
			PresetPoints: req.Points,
		}
		job, err := jm.Submit(params)
		if err != nil {
			http.Error(w, "failed to submit job: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"job_id": job.ID,
			"status": job.Status,
		})
	}
}

func exportJobStatusHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}

		jobID := chi.URLParam(r, "job_id")
		job := jm.Get(jobID)
		if job == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"job_id":      job.ID,
			"status":      job.Status,
			"created_at":  job.CreatedAt,
			"started_at":  job.StartedAt,
			"finished_at": job.FinishedAt,
			"progress":    job.Progress,
			"params":      job.Params,
			"error":       job.Error,
		})
	}
}

func exportJobResultHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}

		jobID := chi.URLParam(r, "job_id")
		job := jm.Get(jobID)
		if job == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}

		if job.Status != jobstore.JobStatusCompleted {
			http.Error(w, "job not completed (status: "+string(job.Status)+")", http.StatusBadRequest)
			return
		}

		artifacts, err := jm.Store().ListArtifacts(jobID)
		if err != nil {
			http.Error(w, "failed to list artifacts: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"job_id":    job.ID,
			"params":    job.Params,
			"bundle":    filepath.Base(job.BundlePath),
			"artifacts": artifacts,
		})
	}
}

func exportJobBundleHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}

		jobID := chi.URLParam(r, "job_id")
		job := jm.Get(jobID)
		if job == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}

		if job.Status != jobstore.JobStatusCompleted {
			http.Error(w, "job not completed (status: "+string(job.Status)+")", http.StatusBadRequest)
			return
		}
		if job.BundlePath == "" {
			http.NotFound(w, r)
			return
		}

		info, err := os.Stat(job.BundlePath)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		filename := filepath.Base(job.BundlePath)
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
		if disposition != "" {
			w.Header().Set("Content-Disposition", disposition)
		} else {
			w.Header().Set("Content-Disposition", "attachment")
		}
		w.Header().Set("Content-Type", "application/octet-stream")

		http.ServeFile(w, r, job.BundlePath)
	}
}

func exportJobCancelHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}

		jobID := chi.URLParam(r, "job_id")
		job := jm.Get(jobID)
		if job == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}

		jm.Cancel(jobID)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"job_id":    jobID,
			"cancelled": true,
		})
	}
}
