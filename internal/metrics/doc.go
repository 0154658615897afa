// Package metrics provides Prometheus instrumentation for tubeplayer.
//
// All metrics are prefixed with "tubeplayer_" and registered at package
// init through promauto. [InitializeMetrics] pre-populates the known label
// combinations so every series is present from the first scrape.
//
// # Metric Categories
//
// HTTP: HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight.
//
// Catalog database: DBQueryTotal, DBQueryDuration, DBTransactionDuration,
// and the CatalogPlaylists / CatalogVideos gauges sampled by [Collector].
//
// Playback: PlaybackStateTransitions, PlaybackStopsTotal,
// PlaybackRetriesTotal, PlaybackSourcesTotal, PlaybackSessionsActive.
//
// Resolution and prefetch: ResolverRequestsTotal, ResolverDuration,
// PrefetchTotal, PrefetchBytes.
//
// Cache: CacheEvictionsTotal, CacheFiles, CacheBytes.
//
// Filesystem retries: the Filesystem* families, fed by the observer
// returned from [NewFilesystemObserver].
//
// Realtime: RealtimeClients, RealtimeEventsTotal.
package metrics
