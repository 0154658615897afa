package metrics

// Known label values, shared with the packages that record them.
var (
	CatalogOperations = []string{
		"create_playlist", "delete_playlist", "update_playlist",
		"add_video", "add_video_ref", "remove_video", "update_video",
		"list_playlists", "get_playlist", "playlist_videos", "list_videos",
		"search_videos", "get_video", "contains", "containing_playlists",
		"stats", "verify", "merge", "import", "export",
	}
	PlayerStates = []string{
		"Invalid", "Idle", "Initialized", "Preparing", "Prepared", "Started",
		"Paused", "Stopped", "PlaybackCompleted", "Error", "End",
	}
	StopReasons      = []string{"done", "force_stopped", "network_unavailable", "unknown_error"}
	PrefetchOutcomes = []string{"success", "retry", "failure", "canceled"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
func InitializeMetrics() {
	for _, op := range CatalogOperations {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	for _, s := range PlayerStates {
		PlaybackStateTransitions.WithLabelValues(s)
	}
	for _, r := range StopReasons {
		PlaybackStopsTotal.WithLabelValues(r)
	}
	for _, src := range []string{"cache", "network"} {
		PlaybackSourcesTotal.WithLabelValues(src)
	}

	for _, status := range []string{"success", "error", "canceled"} {
		ResolverRequestsTotal.WithLabelValues(status)
	}
	for _, o := range PrefetchOutcomes {
		PrefetchTotal.WithLabelValues(o)
	}
	for _, mode := range []string{"partial", "full"} {
		CacheEvictionsTotal.WithLabelValues(mode)
	}

	for _, op := range []string{"stat", "open", "remove", "readdir"} {
		for _, area := range []string{"cache", "unknown"} {
			FilesystemRetryAttempts.WithLabelValues(op, area)
			FilesystemRetrySuccess.WithLabelValues(op, area)
			FilesystemRetryFailures.WithLabelValues(op, area)
			FilesystemStaleErrors.WithLabelValues(op, area)
			FilesystemRetryDuration.WithLabelValues(op, area)
		}
	}

	for _, typ := range []string{"state", "buffering", "queue_started", "queue_stopped", "queue_changed"} {
		RealtimeEventsTotal.WithLabelValues(typ)
	}
}
