package metrics

import "tubeplayer/internal/filesystem"

// filesystemObserver feeds the Filesystem* collectors.
type filesystemObserver struct{}

// NewFilesystemObserver returns an observer to pass to filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return filesystemObserver{}
}

func (filesystemObserver) Observe(op, area string, ev filesystem.Event) {
	switch ev {
	case filesystem.EventStale:
		FilesystemStaleErrors.WithLabelValues(op, area).Inc()
	case filesystem.EventRetry:
		FilesystemRetryAttempts.WithLabelValues(op, area).Inc()
	case filesystem.EventRecovered:
		FilesystemRetrySuccess.WithLabelValues(op, area).Inc()
	case filesystem.EventGaveUp:
		FilesystemRetryFailures.WithLabelValues(op, area).Inc()
	}
}

func (filesystemObserver) ObserveDuration(op, area string, seconds float64) {
	FilesystemRetryDuration.WithLabelValues(op, area).Observe(seconds)
}
