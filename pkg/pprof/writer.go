package pprof

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Writer lays profile snapshots out as one subdirectory per profile
// type, rotating old files so long benchmarks do not fill the disk.
type Writer struct {
	mu         sync.Mutex
	outputDir  string
	maxFiles   int
	autoRotate bool
}

func NewWriter(outputDir string, maxFiles int, autoRotate bool) *Writer {
	return &Writer{
		outputDir:  outputDir,
		maxFiles:   maxFiles,
		autoRotate: autoRotate,
	}
}

// EnsureDir creates the output directory and one subdirectory per
// profile type.
func (w *Writer) EnsureDir(profiles []ProfileType) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, pt := range profiles {
		if err := os.MkdirAll(w.typeDir(pt), 0755); err != nil {
			return fmt.Errorf("failed to create profile directory %s: %w", pt, err)
		}
	}

	return nil
}

// Write stores one snapshot and returns its path. Filenames carry a
// nanosecond timestamp so snapshots taken within the same second never
// clobber each other, and so lexicographic order is capture order.
func (w *Writer) Write(pt ProfileType, data []byte) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := w.typeDir(pt)
	name := fmt.Sprintf("%s_%s.pprof", pt, time.Now().Format("20060102_150405.000000000"))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write profile file: %w", err)
	}

	if w.autoRotate {
		// A failed rotation never fails the write that triggered it.
		w.rotate(dir)
	}

	return path, nil
}

// rotate deletes the oldest snapshots in dir beyond maxFiles.
func (w *Writer) rotate(dir string) {
	if w.maxFiles <= 0 {
		return
	}

	names, err := snapshotNames(dir)
	if err != nil || len(names) <= w.maxFiles {
		return
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-w.maxFiles] {
		_ = os.Remove(filepath.Join(dir, name))
	}
}

// GetOutputDir returns the output directory.
func (w *Writer) GetOutputDir() string {
	return w.outputDir
}

// ListFiles returns the stored snapshot paths for one profile type.
func (w *Writer) ListFiles(pt ProfileType) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := w.typeDir(pt)
	names, err := snapshotNames(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

func (w *Writer) typeDir(pt ProfileType) string {
	return filepath.Join(w.outputDir, string(pt))
}

func snapshotNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pprof" {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
