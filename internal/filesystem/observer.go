package filesystem

// Event is something that happened while retrying an operation.
type Event int

const (
	// EventStale is an ESTALE error from one attempt.
	EventStale Event = iota
	// EventRetry is a retry scheduled after a stale handle.
	EventRetry
	// EventRecovered is an operation that succeeded after retrying.
	EventRecovered
	// EventGaveUp is an operation that was still stale after the last retry.
	EventGaveUp
)

// Observer records retry metrics. The metrics package provides the
// implementation.
type Observer interface {
	// op is one of "stat", "open", "remove", "readdir". area is
	// RetryConfig.Area.
	Observe(op, area string, ev Event)
	ObserveDuration(op, area string, seconds float64)
}

type nopObserver struct{}

func (nopObserver) Observe(string, string, Event)           {}
func (nopObserver) ObserveDuration(string, string, float64) {}

var observer Observer = nopObserver{}

// SetObserver installs the package-level observer. Nil disables recording.
func SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	observer = o
}
