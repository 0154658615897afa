package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"tubeplayer/internal/logging"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Area labels the metrics of calls made with this config.
	Area string
}

// DefaultRetryConfig returns the defaults used by the video cache.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
		Area:           "cache",
	}
}

func (c RetryConfig) area() string {
	if c.Area == "" {
		return "unknown"
	}
	return c.Area
}

// isStaleError reports whether err is ESTALE.
func isStaleError(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

// retry calls fn until it returns a result, fails with an error other than
// ESTALE, or MaxRetries stale attempts have been retried.
func retry[T any](op, path string, config RetryConfig, fn func() (T, error)) (T, error) {
	obs, area := observer, config.area()
	start := time.Now()
	defer func() { obs.ObserveDuration(op, area, time.Since(start).Seconds()) }()

	backoff := config.InitialBackoff
	for attempt := 0; ; attempt++ {
		v, err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("%s of %s recovered after %d retries", op, path, attempt)
				obs.Observe(op, area, EventRecovered)
			}
			return v, nil
		}
		if !isStaleError(err) {
			return v, err
		}
		obs.Observe(op, area, EventStale)

		if attempt == config.MaxRetries {
			logging.Warn("%s of %s still stale after %d retries: %v", op, path, attempt, err)
			obs.Observe(op, area, EventGaveUp)
			return v, err
		}

		obs.Observe(op, area, EventRetry)
		logging.Debug("%s of %s hit a stale file handle, retry %d/%d in %v",
			op, path, attempt+1, config.MaxRetries, backoff)
		time.Sleep(backoff)
		backoff = min(backoff*2, config.MaxBackoff)
	}
}

// StatWithRetry performs os.Stat, retrying stale file handles.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return retry("stat", path, config, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// OpenWithRetry performs os.Open, retrying stale file handles.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return retry("open", path, config, func() (*os.File, error) {
		return os.Open(path)
	})
}

// RemoveAllWithRetry performs os.RemoveAll, retrying stale file handles.
func RemoveAllWithRetry(path string, config RetryConfig) error {
	_, err := retry("remove", path, config, func() (struct{}, error) {
		return struct{}{}, os.RemoveAll(path)
	})
	return err
}

// ReadDirWithRetry performs os.ReadDir, retrying stale file handles.
func ReadDirWithRetry(path string, config RetryConfig) ([]os.DirEntry, error) {
	return retry("readdir", path, config, func() ([]os.DirEntry, error) {
		return os.ReadDir(path)
	})
}
