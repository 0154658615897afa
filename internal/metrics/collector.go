package metrics

import (
	"context"
	"time"

	"tubeplayer/internal/logging"
)

// StatsProvider supplies the numbers sampled by the Collector.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

// Stats holds the current catalog and cache totals.
type Stats struct {
	Playlists  int
	Videos     int
	CacheFiles int
	CacheBytes int64
}

// StatsFunc adapts a function to StatsProvider.
type StatsFunc func(ctx context.Context) (Stats, error)

// Stats implements StatsProvider.
func (f StatsFunc) Stats(ctx context.Context) (Stats, error) { return f(ctx) }

// Collector periodically samples a StatsProvider into gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	done          chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start begins the collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the loop and waits for it to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.done
}

func (c *Collector) collectLoop() {
	defer close(c.done)
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := c.statsProvider.Stats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	CatalogPlaylists.Set(float64(stats.Playlists))
	CatalogVideos.Set(float64(stats.Videos))
	CacheFiles.Set(float64(stats.CacheFiles))
	CacheBytes.Set(float64(stats.CacheBytes))

	logging.Debug("Metrics collected: playlists=%d, videos=%d, cache=%d files/%d bytes",
		stats.Playlists, stats.Videos, stats.CacheFiles, stats.CacheBytes)
}
