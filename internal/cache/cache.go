// Package cache manages the on-disk video cache: one file per video id
// under a single root directory.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tubeplayer/internal/filesystem"
	"tubeplayer/internal/logging"
	"tubeplayer/internal/metrics"
)

const (
	// Ext is the extension of cached videos.
	Ext = ".mp4"
	// PartialExt marks a download in progress.
	PartialExt = ".part"
)

// Manager owns the cache directory.
type Manager struct {
	root  string
	retry filesystem.RetryConfig
}

// New creates the cache root if needed.
func New(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Manager{root: root, retry: filesystem.DefaultRetryConfig()}, nil
}

// Root returns the cache directory.
func (m *Manager) Root() string {
	return m.root
}

// Path returns the cache file of videoID. It depends only on the id.
func (m *Manager) Path(videoID string) string {
	return filepath.Join(m.root, videoID+Ext)
}

// IsCached reports whether the cache file of videoID exists, is a regular
// non-empty file and can be opened for reading.
func (m *Manager) IsCached(videoID string) bool {
	path := m.Path(videoID)
	info, err := filesystem.StatWithRetry(path, m.retry)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return false
	}
	f, err := filesystem.OpenWithRetry(path, m.retry)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// EvictExcept removes every entry of the cache directory that does not
// belong to one of keepIDs, including partial downloads of other videos.
// It returns the number of entries removed.
func (m *Manager) EvictExcept(keepIDs ...string) int {
	keep := make(map[string]bool, len(keepIDs)*2)
	for _, id := range keepIDs {
		if id == "" {
			continue
		}
		keep[id+Ext] = true
		keep[id+Ext+PartialExt] = true
	}
	n := m.remove(func(name string) bool { return !keep[name] })
	if n > 0 {
		metrics.CacheEvictionsTotal.WithLabelValues("partial").Add(float64(n))
		logging.Debug("Evicted %d cache entries (kept %v)", n, keepIDs)
	}
	return n
}

// Clear removes every entry of the cache directory.
func (m *Manager) Clear() int {
	n := m.remove(func(string) bool { return true })
	metrics.CacheEvictionsTotal.WithLabelValues("full").Add(float64(n))
	logging.Info("Cleared video cache (%d entries)", n)
	return n
}

func (m *Manager) remove(match func(name string) bool) int {
	entries, err := filesystem.ReadDirWithRetry(m.root, m.retry)
	if err != nil {
		logging.Warn("Failed to read cache directory %s: %v", m.root, err)
		return 0
	}

	removed := 0
	for _, e := range entries {
		if !match(e.Name()) {
			continue
		}
		if err := filesystem.RemoveAllWithRetry(filepath.Join(m.root, e.Name()), m.retry); err != nil {
			logging.Warn("Failed to remove cache entry %s: %v", e.Name(), err)
			continue
		}
		removed++
	}
	return removed
}

// Usage returns the number of cached videos and the bytes used by the
// cache directory.
func (m *Manager) Usage() (files int, bytes int64, err error) {
	entries, err := filesystem.ReadDirWithRetry(m.root, m.retry)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if strings.HasSuffix(e.Name(), Ext) {
			files++
		}
		bytes += info.Size()
	}
	return files, bytes, nil
}
