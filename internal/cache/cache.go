// Package cache provides caching for rendered swatches and serialized
// tables.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	SwatchCacheSizeMB int
	SwatchTTL         time.Duration
	TableCacheSize    int
}

// Manager manages the swatch and table caches. Swatch PNGs live in a
// TTL byte cache; serialized tables and presets live in an LRU keyed
// by their full request parameters.
type Manager struct {
	swatchCache *bigcache.BigCache
	tableCache  *lru.Cache[string, []byte]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	swatchCacheConfig := bigcache.Config{
		Shards:             1024,
		LifeWindow:         cfg.SwatchTTL,
		CleanWindow:        cfg.SwatchTTL / 2,
		MaxEntriesInWindow: 100000,
		MaxEntrySize:       100 * 1024, // 100KB per swatch
		HardMaxCacheSize:   cfg.SwatchCacheSizeMB,
		Verbose:            false,
	}

	swatchCache, err := bigcache.New(context.Background(), swatchCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create swatch cache: %w", err)
	}

	tableCache, err := lru.New[string, []byte](cfg.TableCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create table cache: %w", err)
	}

	return &Manager{
		swatchCache: swatchCache,
		tableCache:  tableCache,
	}, nil
}

// GetSwatch retrieves a rendered swatch from cache.
func (m *Manager) GetSwatch(key string) ([]byte, bool) {
	data, err := m.swatchCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetSwatch stores a rendered swatch in cache.
func (m *Manager) SetSwatch(key string, data []byte) error {
	return m.swatchCache.Set(key, data)
}

// GetTable retrieves a serialized table from cache.
func (m *Manager) GetTable(key string) ([]byte, bool) {
	return m.tableCache.Get(key)
}

// SetTable stores a serialized table in cache.
func (m *Manager) SetTable(key string, data []byte) {
	m.tableCache.Add(key, data)
}

// SwatchKey generates a cache key for a gradient swatch.
func SwatchKey(mapID string, width, height int) string {
	return fmt.Sprintf("swatch:%s:%dx%d", mapID, width, height)
}

// ComparisonKey generates a cache key for a dense-vs-reduced swatch.
func ComparisonKey(mapID string, points, width, height int) string {
	return fmt.Sprintf("compare:%s:%d:%dx%d", mapID, points, width, height)
}

// TableKey generates a cache key for a CSV table.
func TableKey(mapID string, resolution int, format string) string {
	return fmt.Sprintf("table:%s:%d:%s", mapID, resolution, format)
}

// PresetKey generates a cache key for a preset document.
func PresetKey(mapID string, points int) string {
	return fmt.Sprintf("preset:%s:%d", mapID, points)
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"swatch_cache_len": m.swatchCache.Len(),
		"swatch_cache_cap": m.swatchCache.Capacity(),
		"table_cache_len":  m.tableCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.swatchCache.Close()
}
