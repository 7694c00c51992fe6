package api

import (
	"github.com/ramplab/server/internal/service"
)

// MapEntry contains information about a colormap for the API response.
type MapEntry struct {
	ID     string `json:"id"`
	Mode   string `json:"mode"`
	Source string `json:"source,omitempty"`
}

// MapRegistry holds map services for all configured colormaps.
type MapRegistry struct {
	services   map[string]*service.MapService
	defaultMap string
	mapOrder   []string
	title      string
}

// NewMapRegistry creates a new map registry.
func NewMapRegistry(defaultMap string, order []string, title string) *MapRegistry {
	return &MapRegistry{
		services:   make(map[string]*service.MapService),
		defaultMap: defaultMap,
		mapOrder:   order,
		title:      title,
	}
}

// Register adds a map service for a colormap.
func (r *MapRegistry) Register(mapID string, svc *service.MapService) {
	r.services[mapID] = svc
}

// Get returns the map service for a colormap, or nil if not found.
func (r *MapRegistry) Get(mapID string) *service.MapService {
	return r.services[mapID]
}

// Default returns the default colormap's map service.
func (r *MapRegistry) Default() *service.MapService {
	return r.services[r.defaultMap]
}

// DefaultMapID returns the default colormap ID.
func (r *MapRegistry) DefaultMapID() string {
	return r.defaultMap
}

// MapIDs returns all colormap IDs in config order.
func (r *MapRegistry) MapIDs() []string {
	return r.mapOrder
}

// Title returns the configured site title.
func (r *MapRegistry) Title() string {
	if r.title != "" {
		return r.title
	}
	return "RampLab"
}

// Maps returns map info for all registered colormaps.
func (r *MapRegistry) Maps() []MapEntry {
	entries := make([]MapEntry, 0, len(r.mapOrder))
	for _, id := range r.mapOrder {
		entry := MapEntry{ID: id}
		if svc := r.services[id]; svc != nil {
			entry.Mode = svc.Mode()
			entry.Source = svc.Source()
		}
		entries = append(entries, entry)
	}
	return entries
}
