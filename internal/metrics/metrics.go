package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tubeplayer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tubeplayer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Catalog database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_db_queries_total",
			Help: "Total number of catalog queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tubeplayer_db_query_duration_seconds",
			Help:    "Catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tubeplayer_db_transaction_duration_seconds",
			Help:    "Catalog transaction duration in seconds by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)

	CatalogPlaylists = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tubeplayer_catalog_playlists",
			Help: "Number of playlists in the catalog",
		},
	)

	CatalogVideos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tubeplayer_catalog_videos",
			Help: "Number of videos in the catalog",
		},
	)
)

// Playback metrics
var (
	PlaybackStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_playback_state_transitions_total",
			Help: "Player state transitions by target state",
		},
		[]string{"state"},
	)

	PlaybackStopsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_playback_stops_total",
			Help: "Playback sessions stopped, by reason",
		},
		[]string{"reason"},
	)

	PlaybackRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tubeplayer_playback_retries_total",
			Help: "Recovery retries of the current video",
		},
	)

	PlaybackSourcesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_playback_sources_total",
			Help: "Videos started, by source (cache or network)",
		},
		[]string{"source"},
	)

	PlaybackSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tubeplayer_playback_session_active",
			Help: "Whether a playback session is running (1) or not (0)",
		},
	)
)

// Resolver and prefetch metrics
var (
	ResolverRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_resolver_requests_total",
			Help: "Stream resolutions by status",
		},
		[]string{"status"},
	)

	ResolverDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tubeplayer_resolver_duration_seconds",
			Help:    "Stream resolution duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	PrefetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_prefetch_total",
			Help: "Prefetch jobs by outcome",
		},
		[]string{"outcome"},
	)

	PrefetchBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tubeplayer_prefetch_bytes_total",
			Help: "Bytes written to the cache by the prefetcher",
		},
	)
)

// Cache metrics
var (
	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_cache_evictions_total",
			Help: "Cache files removed, by mode (partial or full)",
		},
		[]string{"mode"},
	)

	CacheFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tubeplayer_cache_files",
			Help: "Number of files in the video cache",
		},
	)

	CacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tubeplayer_cache_bytes",
			Help: "Size of the video cache in bytes",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_filesystem_retry_attempts_total",
			Help: "Retry attempts after a stale file handle",
		},
		[]string{"operation", "area"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_filesystem_retry_success_total",
			Help: "Operations that succeeded after retrying",
		},
		[]string{"operation", "area"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "area"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "area"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tubeplayer_filesystem_retry_duration_seconds",
			Help:    "Duration of filesystem operations including retries",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "area"},
	)
)

// Realtime metrics
var (
	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tubeplayer_realtime_clients",
			Help: "Connected WebSocket clients",
		},
	)

	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubeplayer_realtime_events_total",
			Help: "Events broadcast to WebSocket clients, by type",
		},
		[]string{"type"},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tubeplayer_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
