/*
Package filesystem wraps the handful of filesystem calls the video cache
makes (stat, open, remove, readdir) with retry logic for ESTALE errors.

Cache directories are often network mounts. A stale file handle there is
transient, so each call is retried with exponential backoff before the
error is returned. Any other error is returned on the first attempt.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Retries are reported as [Event] values to an [Observer] installed with
[SetObserver]. The metrics package provides the implementation. Each call
is labeled with [RetryConfig.Area].
*/
package filesystem
