package export

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Item is one bundle member: a name inside the archive and a pure
// render function producing its bytes. Render functions run
// concurrently, so they must not share mutable state.
type Item struct {
	Name   string
	Render func() ([]byte, error)
}

// Entry describes one written bundle member.
type Entry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Manifest describes a written bundle. It is returned to the caller
// and also stored inside the archive as manifest.json.
type Manifest struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Entries   []Entry   `json:"entries"`
}

// Encode renders the manifest exactly as it is stored in the archive.
func (m Manifest) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// WriteBundle renders every item on a worker pool and writes the
// results into a tar archive compressed with zstd at path. Rendering
// is an ordered parallel map: items run concurrently but land in the
// archive in their given order. onProgress, if non-nil, is called
// after each rendered item with the completed and total counts.
func WriteBundle(path string, items []Item, workers int, onProgress func(done, total int)) (Manifest, error) {
	if len(items) == 0 {
		return Manifest{}, fmt.Errorf("bundle has no items")
	}
	if workers < 1 {
		workers = 1
	}

	results := make([][]byte, len(items))
	errs := make([]error, len(items))
	var done int64

	pool := pond.New(workers, len(items), pond.MinWorkers(workers))
	for i := range items {
		i := i
		pool.Submit(func() {
			results[i], errs[i] = items[i].Render()
			n := atomic.AddInt64(&done, 1)
			if onProgress != nil {
				onProgress(int(n), len(items))
			}
		})
	}
	pool.StopAndWait()

	for i, err := range errs {
		if err != nil {
			return Manifest{}, fmt.Errorf("failed to render %s: %w", items[i].Name, err)
		}
	}

	manifest := Manifest{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Entries:   make([]Entry, len(items)),
	}
	for i := range items {
		manifest.Entries[i] = Entry{Name: items[i].Name, Size: int64(len(results[i]))}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Manifest{}, fmt.Errorf("failed to create bundle directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to create bundle file: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	manifestBytes, err := manifest.Encode()
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := writeTarFile(tw, "manifest.json", manifestBytes, manifest.CreatedAt); err != nil {
		return Manifest{}, err
	}
	for i := range items {
		if err := writeTarFile(tw, items[i].Name, results[i], manifest.CreatedAt); err != nil {
			return Manifest{}, err
		}
	}

	if err := tw.Close(); err != nil {
		return Manifest{}, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return Manifest{}, fmt.Errorf("failed to finalize compression: %w", err)
	}
	if err := f.Close(); err != nil {
		return Manifest{}, fmt.Errorf("failed to close bundle: %w", err)
	}
	return manifest, nil
}

func writeTarFile(tw *tar.Writer, name string, data []byte, mod time.Time) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: mod,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
